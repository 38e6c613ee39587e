package stream

import (
	"bytes"
	"encoding/xml"
	"strings"
	"testing"

	"github.com/dtakken/edxml-sdk/merge"
)

func TestXMLWriterProducesWellFormedDocument(t *testing.T) {
	var buf bytes.Buffer
	w := NewXMLWriter(&buf)

	if err := w.AddXMLDefinitions([]byte(`<definitions></definitions>`)); err != nil {
		t.Fatalf("AddXMLDefinitions: %v", err)
	}
	if err := w.OpenEventGroups(); err != nil {
		t.Fatalf("OpenEventGroups: %v", err)
	}
	if err := w.OpenEventGroup("e", "1"); err != nil {
		t.Fatalf("OpenEventGroup: %v", err)
	}
	objects := merge.Objects{
		"b": objSet("2"),
		"a": objSet("y", "x"),
	}
	if err := w.AddEvent(objects, "some content", []string{"deadbeef"}); err != nil {
		t.Fatalf("AddEvent: %v", err)
	}
	if err := w.CloseEventGroup(); err != nil {
		t.Fatalf("CloseEventGroup: %v", err)
	}
	if err := w.CloseEventGroups(); err != nil {
		t.Fatalf("CloseEventGroups: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "<events>") || !strings.Contains(out, "</events>") {
		t.Fatalf("expected a root events element, got:\n%s", out)
	}

	dec := xml.NewDecoder(strings.NewReader(out))
	var order []string
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == "object" {
			var property, value string
			for _, a := range se.Attr {
				switch a.Name.Local {
				case "property":
					property = a.Value
				case "value":
					value = a.Value
				}
			}
			order = append(order, property+"="+value)
		}
	}
	want := []string{"a=x", "a=y", "b=2"}
	if len(order) != len(want) {
		t.Fatalf("object order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("object[%d] = %s, want %s", i, order[i], want[i])
		}
	}

	if !strings.Contains(out, "some content") {
		t.Error("expected event content to be written")
	}
	if !strings.Contains(out, `hash="deadbeef"`) {
		t.Error("expected a parent hashlink to be written")
	}
}

func TestXMLWriterOmitsEmptyContentAndParents(t *testing.T) {
	var buf bytes.Buffer
	w := NewXMLWriter(&buf)
	if err := w.OpenEventGroups(); err != nil {
		t.Fatalf("OpenEventGroups: %v", err)
	}
	if err := w.OpenEventGroup("e", "1"); err != nil {
		t.Fatalf("OpenEventGroup: %v", err)
	}
	if err := w.AddEvent(merge.Objects{"a": objSet("x")}, "", nil); err != nil {
		t.Fatalf("AddEvent: %v", err)
	}
	if err := w.CloseEventGroup(); err != nil {
		t.Fatalf("CloseEventGroup: %v", err)
	}
	if err := w.CloseEventGroups(); err != nil {
		t.Fatalf("CloseEventGroups: %v", err)
	}

	out := buf.String()
	if strings.Contains(out, "<content>") {
		t.Error("empty content should not be written")
	}
	if strings.Contains(out, "<parents>") {
		t.Error("absent parents should not be written")
	}
}
