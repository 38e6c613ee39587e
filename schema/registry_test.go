package schema

import (
	"context"
	"errors"
	"testing"

	"github.com/dtakken/edxml-sdk"
)

func objectTypeAttrs(datatype string) map[string]string {
	return map[string]string{
		"datatype":     datatype,
		"display-name": "Test",
		"description":  "a test object type",
	}
}

func newTestRegistry() (*Registry, *edxml.Counters) {
	counters := &edxml.Counters{}
	return New(counters, nil), counters
}

func TestAddObjectTypeAndProperty(t *testing.T) {
	ctx := context.Background()
	r, counters := newTestRegistry()

	if err := r.AddObjectType(ctx, "object.string", objectTypeAttrs("string:255:cs")); err != nil {
		t.Fatalf("AddObjectType: %v", err)
	}
	if err := r.AddEventType(ctx, "e", map[string]string{
		"display-name": "Event",
		"description":  "an event",
	}); err != nil {
		t.Fatalf("AddEventType: %v", err)
	}
	if err := r.AddProperty(ctx, "e", "u", map[string]string{
		"description": "unique prop",
		"object-type": "object.string",
		"unique":      "true",
	}); err != nil {
		t.Fatalf("AddProperty: %v", err)
	}

	unique, err := r.EventTypeIsUnique("e")
	if err != nil {
		t.Fatalf("EventTypeIsUnique: %v", err)
	}
	if !unique {
		t.Error("expected event type e to be unique")
	}
	if counters.Errors != 0 {
		t.Errorf("unexpected errors recorded: %d", counters.Errors)
	}
}

func TestUnknownAttributeRejected(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry()
	attrs := objectTypeAttrs("string:1:cs")
	attrs["bogus"] = "x"
	err := r.AddObjectType(ctx, "ot", attrs)
	if !errors.Is(err, edxml.ErrUnknownAttribute) {
		t.Fatalf("expected UnknownAttribute error, got %v", err)
	}
}

func TestMissingMandatoryAttribute(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry()
	attrs := objectTypeAttrs("string:1:cs")
	delete(attrs, "description")
	err := r.AddObjectType(ctx, "ot", attrs)
	if !errors.Is(err, edxml.ErrMissingMandatoryAttr) {
		t.Fatalf("expected MissingMandatoryAttribute error, got %v", err)
	}
}

// TestReRegistrationConflict checks that re-registering
// an event type with a different description must fail, naming the
// entity path.
func TestReRegistrationConflict(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry()
	if err := r.AddEventType(ctx, "e", map[string]string{
		"display-name": "Event",
		"description":  "first description",
	}); err != nil {
		t.Fatalf("AddEventType: %v", err)
	}
	err := r.AddEventType(ctx, "e", map[string]string{
		"display-name": "Event",
		"description":  "second description",
	})
	if !errors.Is(err, edxml.ErrSchemaInconsistency) {
		t.Fatalf("expected SchemaInconsistency, got %v", err)
	}
	var se *edxml.Error
	if !errors.As(err, &se) {
		t.Fatalf("expected *edxml.Error, got %T", err)
	}
	if se.Path != "eventtype/e/description" {
		t.Errorf("path = %q, want %q", se.Path, "eventtype/e/description")
	}
}

func TestReRegistrationIdenticalSucceeds(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry()
	attrs := map[string]string{"display-name": "Event", "description": "same"}
	if err := r.AddEventType(ctx, "e", attrs); err != nil {
		t.Fatalf("first AddEventType: %v", err)
	}
	if err := r.AddEventType(ctx, "e", attrs); err != nil {
		t.Fatalf("second AddEventType: %v", err)
	}
}

func TestFinalizeUnresolvedObjectType(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry()
	if err := r.AddEventType(ctx, "e", map[string]string{"display-name": "Event", "description": "d"}); err != nil {
		t.Fatalf("AddEventType: %v", err)
	}
	if err := r.AddProperty(ctx, "e", "p", map[string]string{
		"description": "p",
		"object-type": "does.not.exist",
	}); err != nil {
		t.Fatalf("AddProperty: %v", err)
	}
	if err := r.Finalize(); !errors.Is(err, edxml.ErrSchemaInconsistency) {
		t.Fatalf("expected SchemaInconsistency from Finalize, got %v", err)
	}
}

func TestParentMustMapUniqueProperties(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry()
	if err := r.AddObjectType(ctx, "ot", objectTypeAttrs("string:10:cs")); err != nil {
		t.Fatalf("AddObjectType: %v", err)
	}
	for _, name := range []string{"parent", "child"} {
		if err := r.AddEventType(ctx, name, map[string]string{"display-name": name, "description": name}); err != nil {
			t.Fatalf("AddEventType(%s): %v", name, err)
		}
	}
	if err := r.AddProperty(ctx, "parent", "id", map[string]string{
		"description": "id", "object-type": "ot", "unique": "true",
	}); err != nil {
		t.Fatalf("AddProperty: %v", err)
	}
	if err := r.AddProperty(ctx, "child", "parent-id", map[string]string{
		"description": "id", "object-type": "ot", "merge": "add",
	}); err != nil {
		t.Fatalf("AddProperty: %v", err)
	}
	if err := r.SetEventTypeParent(ctx, "child", "parent", map[string]string{"parent-id": "id"}, "d"); err != nil {
		t.Fatalf("SetEventTypeParent: %v", err)
	}
	if err := r.Finalize(); !errors.Is(err, edxml.ErrSchemaInconsistency) {
		t.Fatalf("expected SchemaInconsistency for merge=add parent mapping, got %v", err)
	}
}

func TestRelationRequiresPlaceholders(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry()
	if err := r.AddObjectType(ctx, "ot", objectTypeAttrs("string:10:cs")); err != nil {
		t.Fatalf("AddObjectType: %v", err)
	}
	if err := r.AddEventType(ctx, "e", map[string]string{"display-name": "e", "description": "e"}); err != nil {
		t.Fatalf("AddEventType: %v", err)
	}
	for _, name := range []string{"a", "b"} {
		if err := r.AddProperty(ctx, "e", name, map[string]string{"description": name, "object-type": "ot"}); err != nil {
			t.Fatalf("AddProperty(%s): %v", name, err)
		}
	}
	err := r.AddRelation(ctx, "e", "a", "b", map[string]string{
		"description": "missing placeholders",
		"type":        "other:related-to",
	})
	if !errors.Is(err, edxml.ErrSchemaInconsistency) {
		t.Fatalf("expected SchemaInconsistency, got %v", err)
	}
}

func TestUniqueSourceIDsRenumbers(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry()
	if err := r.AddSource(ctx, "/a", map[string]string{"source-id": "5", "date-acquired": "20200101", "description": "a"}); err != nil {
		t.Fatalf("AddSource a: %v", err)
	}
	if err := r.AddSource(ctx, "/b", map[string]string{"source-id": "5", "date-acquired": "20200101", "description": "b"}); err == nil {
		t.Fatal("expected conflict for duplicate source-id across distinct URLs")
	}
	mapping := r.UniqueSourceIDs()
	if mapping["/a"] != 1 {
		t.Errorf("expected /a to be renumbered to 1, got %d", mapping["/a"])
	}
}
