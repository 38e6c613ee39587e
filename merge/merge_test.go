package merge

import (
	"context"
	"testing"

	"github.com/dtakken/edxml-sdk/schema"
)

func buildEventType(t *testing.T) (*schema.Registry, *schema.EventType) {
	t.Helper()
	ctx := context.Background()
	reg := schema.New(nil, nil)
	if err := reg.AddObjectType(ctx, "ot.string", map[string]string{
		"datatype": "string:64:cs", "display-name": "d", "description": "d",
	}); err != nil {
		t.Fatalf("AddObjectType ot.string: %v", err)
	}
	if err := reg.AddObjectType(ctx, "ot.int", map[string]string{
		"datatype": "number:int", "display-name": "d", "description": "d",
	}); err != nil {
		t.Fatalf("AddObjectType ot.int: %v", err)
	}
	if err := reg.AddEventType(ctx, "e", map[string]string{"display-name": "e", "description": "d"}); err != nil {
		t.Fatalf("AddEventType: %v", err)
	}
	props := []struct{ name, objectType, merge, unique string }{
		{"a", "ot.string", "add", ""},
		{"m", "ot.int", "min", ""},
		{"r", "ot.string", "replace", ""},
		{"u", "ot.string", "", "true"},
	}
	for _, p := range props {
		attrs := map[string]string{"description": "d", "object-type": p.objectType}
		if p.merge != "" {
			attrs["merge"] = p.merge
		}
		if p.unique != "" {
			attrs["unique"] = p.unique
		}
		if err := reg.AddProperty(ctx, "e", p.name, attrs); err != nil {
			t.Fatalf("AddProperty(%s): %v", p.name, err)
		}
	}
	et, _ := reg.EventType("e")
	return reg, et
}

// TestMergeScenario exercises the add, min and replace strategies
// together with a unique property that must stay untouched.
func TestMergeScenario(t *testing.T) {
	reg, et := buildEventType(t)

	a := Objects{
		"a": {"x": {}},
		"m": {"5": {}},
		"r": {"old": {}},
		"u": {"k": {}},
	}
	b := Objects{
		"a": {"y": {}},
		"m": {"3": {}},
		"r": {"new": {}},
		"u": {"k": {}},
	}

	changed, err := Merge(reg, et, a, b)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !changed {
		t.Error("expected changed=true")
	}

	if _, ok := a["a"]["x"]; !ok {
		t.Error("add property should retain original value x")
	}
	if _, ok := a["a"]["y"]; !ok {
		t.Error("add property should add value y")
	}
	if len(a["a"]) != 2 {
		t.Errorf("add property should have exactly 2 values, got %d", len(a["a"]))
	}

	if len(a["m"]) != 1 {
		t.Fatalf("min property should be a singleton, got %d", len(a["m"]))
	}
	if _, ok := a["m"]["3"]; !ok {
		t.Errorf("min property should keep the smaller value 3, got %v", a["m"])
	}

	if len(a["r"]) != 1 {
		t.Fatalf("replace property should be a singleton, got %d", len(a["r"]))
	}
	if _, ok := a["r"]["new"]; !ok {
		t.Errorf("replace property should take source's value, got %v", a["r"])
	}

	if len(a["u"]) != 1 {
		t.Fatalf("unique property must be untouched, got %v", a["u"])
	}
	if _, ok := a["u"]["k"]; !ok {
		t.Errorf("unique property value must be unchanged, got %v", a["u"])
	}
}

func TestMergeDropLeavesUnchanged(t *testing.T) {
	ctx := context.Background()
	reg := schema.New(nil, nil)
	reg.AddObjectType(ctx, "ot", map[string]string{"datatype": "string:8:cs", "display-name": "d", "description": "d"})
	reg.AddEventType(ctx, "e", map[string]string{"display-name": "e", "description": "d"})
	reg.AddProperty(ctx, "e", "u", map[string]string{"description": "d", "object-type": "ot", "unique": "true"})
	reg.AddProperty(ctx, "e", "d", map[string]string{"description": "d", "object-type": "ot", "merge": "drop"})
	et, _ := reg.EventType("e")

	a := Objects{"u": {"k": {}}, "d": {"keep": {}}}
	b := Objects{"u": {"k": {}}, "d": {"discard": {}}}

	changed, err := Merge(reg, et, a, b)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if changed {
		t.Error("drop-only merge should report changed=false")
	}
	if _, ok := a["d"]["keep"]; !ok {
		t.Errorf("drop property must retain its original value, got %v", a["d"])
	}
}

func TestMergeReplaceEmptiesWhenSourceOmitsProperty(t *testing.T) {
	ctx := context.Background()
	reg := schema.New(nil, nil)
	reg.AddObjectType(ctx, "ot", map[string]string{"datatype": "string:8:cs", "display-name": "d", "description": "d"})
	reg.AddEventType(ctx, "e", map[string]string{"display-name": "e", "description": "d"})
	reg.AddProperty(ctx, "e", "u", map[string]string{"description": "d", "object-type": "ot", "unique": "true"})
	reg.AddProperty(ctx, "e", "r", map[string]string{"description": "d", "object-type": "ot", "merge": "replace"})
	et, _ := reg.EventType("e")

	a := Objects{"u": {"k": {}}, "r": {"old": {}}}
	b := Objects{"u": {"k": {}}}

	changed, err := Merge(reg, et, a, b)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !changed {
		t.Error("expected changed=true when replace empties the property")
	}
	if len(a["r"]) != 0 {
		t.Errorf("replace with source omitting property should empty target, got %v", a["r"])
	}
}

func TestMergeCommutative(t *testing.T) {
	reg, et := buildEventType(t)

	ab := Objects{"a": {"x": {}}, "m": {"5": {}}, "r": {"old": {}}, "u": {"k": {}}}
	ba := Objects{"a": {"y": {}}, "m": {"3": {}}, "r": {"new": {}}, "u": {"k": {}}}

	if _, err := Merge(reg, et, ab, ba); err != nil {
		t.Fatalf("Merge ab<-ba: %v", err)
	}

	ab2 := Objects{"a": {"y": {}}, "m": {"3": {}}, "r": {"new": {}}, "u": {"k": {}}}
	ba2 := Objects{"a": {"x": {}}, "m": {"5": {}}, "r": {"old": {}}, "u": {"k": {}}}
	if _, err := Merge(reg, et, ab2, ba2); err != nil {
		t.Fatalf("Merge ba<-ab: %v", err)
	}

	if !setsEqual(ab["a"], ab2["a"]) {
		t.Errorf("add is not commutative on object sets: %v vs %v", ab["a"], ab2["a"])
	}
	if !setsEqual(ab["m"], ab2["m"]) {
		t.Errorf("min is not commutative: %v vs %v", ab["m"], ab2["m"])
	}
}
