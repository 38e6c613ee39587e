package stream

import (
	"context"
	"testing"

	"github.com/dtakken/edxml-sdk/merge"
	"github.com/dtakken/edxml-sdk/schema"
)

// buildRegistry returns a registry with one source and one event type "e"
// holding a unique property "u", an add property "a" and a min property
// "m" of datatype number:int, mirroring edxml/merge's test fixture.
func buildRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	ctx := context.Background()
	reg := schema.New(nil, nil)
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("building registry: %v", err)
		}
	}
	must(reg.AddObjectType(ctx, "ot.string", map[string]string{
		"datatype": "string:64:cs", "display-name": "d", "description": "d",
	}))
	must(reg.AddObjectType(ctx, "ot.int", map[string]string{
		"datatype": "number:int", "display-name": "d", "description": "d",
	}))
	must(reg.AddSource(ctx, "/source/", map[string]string{
		"source-id": "1", "date-acquired": "20260101", "description": "d",
	}))
	must(reg.AddEventType(ctx, "e", map[string]string{"display-name": "e", "description": "d"}))
	must(reg.AddProperty(ctx, "e", "u", map[string]string{"description": "d", "object-type": "ot.string", "unique": "true"}))
	must(reg.AddProperty(ctx, "e", "a", map[string]string{"description": "d", "object-type": "ot.string", "merge": "add"}))
	must(reg.AddProperty(ctx, "e", "m", map[string]string{"description": "d", "object-type": "ot.int", "merge": "min"}))
	return reg
}

// buildRegistryNonUnique returns a registry with one source and one
// non-unique event type "ne" holding two add properties, so a hash
// collision can only arise between events whose full property sets
// already match.
func buildRegistryNonUnique(t *testing.T) *schema.Registry {
	t.Helper()
	ctx := context.Background()
	reg := schema.New(nil, nil)
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("building registry: %v", err)
		}
	}
	must(reg.AddObjectType(ctx, "ot.string", map[string]string{
		"datatype": "string:64:cs", "display-name": "d", "description": "d",
	}))
	must(reg.AddSource(ctx, "/source/", map[string]string{
		"source-id": "1", "date-acquired": "20260101", "description": "d",
	}))
	must(reg.AddEventType(ctx, "ne", map[string]string{"display-name": "ne", "description": "d"}))
	must(reg.AddProperty(ctx, "ne", "a", map[string]string{"description": "d", "object-type": "ot.string", "merge": "add"}))
	must(reg.AddProperty(ctx, "ne", "b", map[string]string{"description": "d", "object-type": "ot.string", "merge": "add"}))
	return reg
}

func objSet(values ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		m[v] = struct{}{}
	}
	return m
}

func objectsEqual(a, b merge.Objects) bool {
	if len(a) != len(b) {
		return false
	}
	for prop, vals := range a {
		other, ok := b[prop]
		if !ok || len(vals) != len(other) {
			return false
		}
		for v := range vals {
			if _, ok := other[v]; !ok {
				return false
			}
		}
	}
	return true
}

// fakeWriter records every call in order, so tests can assert both the
// sequencing (group open/close) and the content written.
type fakeWriter struct {
	defs    []byte
	opens   []string // "eventType/sourceID"
	closes  int
	events  []recordedEvent
	current string
}

type recordedEvent struct {
	group   string
	objects merge.Objects
	content string
	parents []string
}

func (w *fakeWriter) AddXMLDefinitions(data []byte) error {
	w.defs = append([]byte(nil), data...)
	return nil
}

func (w *fakeWriter) OpenEventGroups() error { return nil }

func (w *fakeWriter) OpenEventGroup(eventType, sourceID string) error {
	w.current = eventType + "/" + sourceID
	w.opens = append(w.opens, w.current)
	return nil
}

func (w *fakeWriter) AddEvent(objects merge.Objects, content string, parents []string) error {
	w.events = append(w.events, recordedEvent{group: w.current, objects: objects, content: content, parents: parents})
	return nil
}

func (w *fakeWriter) CloseEventGroup() error {
	w.closes++
	return nil
}

func (w *fakeWriter) CloseEventGroups() error { return nil }
