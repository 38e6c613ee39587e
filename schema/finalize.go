package schema

import (
	"fmt"
	"sort"

	"github.com/dtakken/edxml-sdk"
)

// Finalize runs the finalization checks: every property must
// resolve to a registered object type, every relation's properties must
// belong to the same event type, and every parent mapping must cover the
// parent's unique properties with a child merge strategy of match or
// drop. It reports the first SchemaInconsistency found.
func (r *Registry) Finalize() error {
	if err := r.checkPropertyObjectTypes(); err != nil {
		return err
	}
	if err := r.checkEventTypeRelations(); err != nil {
		return err
	}
	if err := r.checkEventTypeParents(); err != nil {
		return err
	}
	r.checkUnusedObjectTypes()
	return nil
}

func (r *Registry) checkPropertyObjectTypes() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range sortedEventTypeNames(r) {
		et := r.eventTypes[name]
		for _, p := range et.Properties {
			if _, ok := r.objectTypes[p.ObjectTypeName]; !ok {
				path := fmt.Sprintf("eventtype/%s/property/%s", et.Name, p.Name)
				err := edxml.NewError(edxml.KindSchemaInconsistency, path,
					fmt.Errorf("references undefined object type %s", p.ObjectTypeName))
				return r.counters.RecordError(err)
			}
		}
	}
	return nil
}

func (r *Registry) checkEventTypeRelations() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range sortedEventTypeNames(r) {
		et := r.eventTypes[name]
		for _, rel := range et.Relations {
			path := fmt.Sprintf("eventtype/%s/relation/%s-%s", et.Name, rel.Property1, rel.Property2)
			if _, ok := et.propertyByName[rel.Property1]; !ok {
				err := edxml.NewError(edxml.KindSchemaInconsistency, path, fmt.Errorf("property1 %s not found on event type", rel.Property1))
				return r.counters.RecordError(err)
			}
			if _, ok := et.propertyByName[rel.Property2]; !ok {
				err := edxml.NewError(edxml.KindSchemaInconsistency, path, fmt.Errorf("property2 %s not found on event type", rel.Property2))
				return r.counters.RecordError(err)
			}
		}
	}
	return nil
}

func (r *Registry) checkEventTypeParents() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range sortedEventTypeNames(r) {
		et := r.eventTypes[name]
		if et.Parent == nil {
			continue
		}
		path := fmt.Sprintf("eventtype/%s/parent", et.Name)
		parent, ok := r.eventTypes[et.Parent.EventTypeName]
		if !ok {
			err := edxml.NewError(edxml.KindSchemaInconsistency, path, fmt.Errorf("parent event type %s not found", et.Parent.EventTypeName))
			return r.counters.RecordError(err)
		}
		for parentUnique := range parent.UniqueProperties {
			childProp, mapped := reverseLookup(et.Parent.PropertyMap, parentUnique)
			if !mapped {
				err := edxml.NewError(edxml.KindSchemaInconsistency, path,
					fmt.Errorf("parent unique property %s is not mapped by any child property", parentUnique))
				return r.counters.RecordError(err)
			}
			cp, ok := et.propertyByName[childProp]
			if !ok {
				err := edxml.NewError(edxml.KindSchemaInconsistency, path,
					fmt.Errorf("mapped child property %s does not exist", childProp))
				return r.counters.RecordError(err)
			}
			if cp.Merge != MergeMatch && cp.Merge != MergeDrop {
				err := edxml.NewError(edxml.KindSchemaInconsistency, path,
					fmt.Errorf("child property %s mapping a unique parent property must use merge=match or merge=drop, has %s", childProp, cp.Merge))
				return r.counters.RecordError(err)
			}
		}
	}
	return nil
}

// checkUnusedObjectTypes emits a warning (not an error) for every object
// type that no event type property references.
func (r *Registry) checkUnusedObjectTypes() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	used := make(map[string]bool)
	for _, et := range r.eventTypes {
		for _, p := range et.Properties {
			used[p.ObjectTypeName] = true
		}
	}
	for name := range r.objectTypes {
		if !used[name] {
			r.counters.RecordWarning(r.warnings, edxml.Warning{
				Path:    "objecttype/" + name,
				Message: "object type is defined but never referenced by a property",
			})
		}
	}
}

func reverseLookup(propertyMap map[string]string, parentProperty string) (string, bool) {
	for child, parent := range propertyMap {
		if parent == parentProperty {
			return child, true
		}
	}
	return "", false
}

func sortedEventTypeNames(r *Registry) []string {
	out := make([]string, 0, len(r.eventTypes))
	for name := range r.eventTypes {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Equal reports whether r and other hold the same entities with the same
// attributes. Used by
// round-trip tests to compare a re-parsed schema against the original.
func (r *Registry) Equal(other *Registry) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	if len(r.objectTypes) != len(other.objectTypes) || len(r.eventTypes) != len(other.eventTypes) || len(r.sourcesByURL) != len(other.sourcesByURL) {
		return false
	}
	for name, ot := range r.objectTypes {
		oot, ok := other.objectTypes[name]
		if !ok || !attrsEqual(ot.attrs, oot.attrs) {
			return false
		}
	}
	for url, src := range r.sourcesByURL {
		osrc, ok := other.sourcesByURL[url]
		if !ok || *src != *osrc {
			return false
		}
	}
	for name, et := range r.eventTypes {
		oet, ok := other.eventTypes[name]
		if !ok || !attrsEqual(et.attrs, oet.attrs) {
			return false
		}
		if len(et.Properties) != len(oet.Properties) {
			return false
		}
		for _, p := range et.Properties {
			op, ok := oet.propertyByName[p.Name]
			if !ok || !attrsEqual(p.attrs, op.attrs) {
				return false
			}
		}
		if len(et.Relations) != len(oet.Relations) {
			return false
		}
		for _, rel := range et.Relations {
			found := false
			for _, orel := range oet.Relations {
				if orel.Property1 == rel.Property1 && orel.Property2 == rel.Property2 && attrsEqual(rel.attrs, orel.attrs) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

func attrsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
