package stream

import (
	"encoding/xml"
	"io"
	"strings"
	"testing"
)

func drain(t *testing.T, dec *xml.Decoder) error {
	t.Helper()
	for {
		_, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

func TestLimitedDecoderRejectsExcessiveDepth(t *testing.T) {
	doc := strings.Repeat("<a>", 10) + strings.Repeat("</a>", 10)
	limits := DefaultLimits()
	limits.SetMaxElementDepth(5)
	dec := newLimitedDecoder(xml.NewDecoder(strings.NewReader(doc)), limits)

	if err := drain(t, dec); err == nil {
		t.Fatal("expected an error once nesting exceeds the configured depth")
	}
}

func TestLimitedDecoderRejectsExcessiveElementCount(t *testing.T) {
	doc := "<root>" + strings.Repeat("<a/>", 10) + "</root>"
	limits := DefaultLimits()
	limits.SetMaxElementCount(5)
	dec := newLimitedDecoder(xml.NewDecoder(strings.NewReader(doc)), limits)

	if err := drain(t, dec); err == nil {
		t.Fatal("expected an error once the element count exceeds the configured limit")
	}
}

func TestLimitedDecoderRejectsOversizedAttributeValue(t *testing.T) {
	doc := `<root attr="` + strings.Repeat("x", 100) + `"/>`
	limits := DefaultLimits()
	limits.SetMaxValueLen(10)
	dec := newLimitedDecoder(xml.NewDecoder(strings.NewReader(doc)), limits)

	if err := drain(t, dec); err == nil {
		t.Fatal("expected an error once an attribute value exceeds the configured limit")
	}
}

func TestLimitedDecoderAcceptsWellFormedDocumentWithinLimits(t *testing.T) {
	doc := `<root><child attr="value">text</child></root>`
	dec := newLimitedDecoder(xml.NewDecoder(strings.NewReader(doc)), DefaultLimits())

	if err := drain(t, dec); err != nil {
		t.Fatalf("unexpected error for a well-formed document within limits: %v", err)
	}
}
