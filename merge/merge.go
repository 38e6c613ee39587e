// Package merge implements the EDXML merge engine: combining two events
// of the same unique event type, property by property, according to the
// property's declared merge strategy.
//
// The engine mutates its target in place and reports whether anything
// changed: a value is built up through mutation, then handed back,
// rather than returning a fresh copy on every call.
package merge

import (
	"fmt"

	"github.com/dtakken/edxml-sdk"
	"github.com/dtakken/edxml-sdk/schema"
)

// Objects is the normalized (property -> set of values) representation
// shared with edxml/hashengine.
type Objects map[string]map[string]struct{}

// Merge combines source into target in place for et, a unique event
// type, using each property's merge strategy. It reports
// whether target changed.
//
// Properties in et.UniqueProperties are left untouched: the caller is
// expected to have already confirmed target and source share a sticky
// hash, which guarantees their unique properties already agree.
func Merge(reg *schema.Registry, et *schema.EventType, target, source Objects) (bool, error) {
	if !et.Unique {
		return false, edxml.NewError(edxml.KindUnsupportedOperation, "eventtype/"+et.Name, fmt.Errorf("merge_events requires a unique event type"))
	}

	changed := false
	for _, p := range et.Properties {
		if et.UniqueProperties[p.Name] {
			continue
		}
		switch p.Merge {
		case schema.MergeDrop:
			continue
		case schema.MergeAdd:
			union := unionSets(target[p.Name], source[p.Name])
			if !setsEqual(target[p.Name], union) {
				target[p.Name] = union
				changed = true
			}
			continue
		case schema.MergeReplace:
			if !setsEqual(target[p.Name], source[p.Name]) {
				target[p.Name] = cloneSet(source[p.Name])
				changed = true
			}
			continue
		case schema.MergeMin, schema.MergeMax:
			ot, ok := reg.ObjectType(p.ObjectTypeName)
			if !ok {
				return changed, edxml.NewError(edxml.KindSchemaInconsistency, "eventtype/"+et.Name+"/property/"+p.Name, fmt.Errorf("unknown object type %s", p.ObjectTypeName))
			}
			winner, found := pickExtreme(ot, target[p.Name], source[p.Name], p.Merge == schema.MergeMax)
			if !found {
				continue
			}
			if _, ok := target[p.Name][winner]; !ok || len(target[p.Name]) != 1 {
				target[p.Name] = map[string]struct{}{winner: {}}
				changed = true
			}
			continue
		case schema.MergeMatch:
			// Values are guaranteed equal by the unique-hash match; no-op.
			continue
		}
	}
	return changed, nil
}

func unionSets(a, b map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(a)+len(b))
	for v := range a {
		out[v] = struct{}{}
	}
	for v := range b {
		out[v] = struct{}{}
	}
	return out
}

func cloneSet(a map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(a))
	for v := range a {
		out[v] = struct{}{}
	}
	return out
}

func setsEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for v := range a {
		if _, ok := b[v]; !ok {
			return false
		}
	}
	return true
}

// pickExtreme returns the minimum or maximum value across a and b's
// union, ordered by ot's descriptor. found is false when
// both sets are empty.
func pickExtreme(ot *schema.ObjectType, a, b map[string]struct{}, max bool) (string, bool) {
	var best string
	found := false
	consider := func(v string) {
		if !found {
			best, found = v, true
			return
		}
		cmp := ot.DataType.Compare(v, best)
		if (max && cmp > 0) || (!max && cmp < 0) {
			best = v
		}
	}
	for v := range a {
		consider(v)
	}
	for v := range b {
		consider(v)
	}
	return best, found
}
