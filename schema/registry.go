// Package schema implements the EDXML schema registry: it holds event
// types, object types and sources, enforces the attribute grammar
// (grammar.go), computes each event type's derived property sets as
// properties are added, and verifies mutual consistency across
// repeated registrations and, at finalization, across the full schema
// section (finalize.go).
//
// The registry is a sync.RWMutex-guarded set of maps with Add/Get-shaped
// methods, covering a richer entity graph of event types, object types,
// sources and relations than a flat type catalog would.
package schema

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/dtakken/edxml-sdk"
	"github.com/dtakken/edxml-sdk/ctxlog"
	"github.com/dtakken/edxml-sdk/typesystem"
)

// MergeStrategy is one of the six per-property merge strategies.
type MergeStrategy string

const (
	MergeDrop    MergeStrategy = "drop"
	MergeAdd     MergeStrategy = "add"
	MergeReplace MergeStrategy = "replace"
	MergeMin     MergeStrategy = "min"
	MergeMax     MergeStrategy = "max"
	MergeMatch   MergeStrategy = "match"
)

// ObjectType is a named, typed atom.
type ObjectType struct {
	Name          string
	DataType      *typesystem.Descriptor
	DisplayName   string
	Description   string
	FuzzyMatching string
	Compress      bool
	ENP           int
	ValueRegexp   string

	attrs map[string]string // raw, grammar-validated attributes, for re-registration equality checks
}

// Attrs returns a copy of the object type's raw, grammar-validated
// attributes, keyed by attribute name. Used by schemaemit to
// re-serialize only the attributes that were actually set to a
// non-default value.
func (ot *ObjectType) Attrs() map[string]string { return copyAttrs(ot.attrs) }

// Property belongs to an event type.
type Property struct {
	Name             string
	EventType        string
	Description      string
	Similar          string
	ObjectTypeName   string
	Unique           bool
	Merge            MergeStrategy
	DefinesEntity    bool
	EntityConfidence float64

	attrs map[string]string
}

// Attrs returns a copy of the property's raw, grammar-validated
// attributes, keyed by attribute name.
func (p *Property) Attrs() map[string]string { return copyAttrs(p.attrs) }

// Relation links two properties of the same event type.
type Relation struct {
	EventType   string
	Property1   string
	Property2   string
	Directed    bool
	Description string
	Type        string // "intra|inter|parent|child|other:predicate"
	Confidence  float64

	attrs map[string]string
}

// Attrs returns a copy of the relation's raw, grammar-validated
// attributes, keyed by attribute name.
func (rel *Relation) Attrs() map[string]string { return copyAttrs(rel.attrs) }

// ParentDef maps a child event type's unique properties onto a parent
// event type's properties.
type ParentDef struct {
	EventTypeName string
	PropertyMap   map[string]string // child property -> parent property

	attrs map[string]string
}

// EventType is a named schema for a class of events.
type EventType struct {
	Name           string
	DisplayName    string
	Description    string
	Classes        []string
	ReporterShort  string
	ReporterLong   string
	Properties     []*Property // insertion order
	Relations      []*Relation
	Parent         *ParentDef

	// Derived sets, recomputed as properties are added.
	UniqueProperties    map[string]bool
	MandatoryProperties map[string]bool
	SingletonProperties map[string]bool
	RelatedProperties   map[string]bool
	Unique              bool

	attrs        map[string]string
	propertyByName map[string]*Property
}

// Property looks up a property of this event type by name.
func (et *EventType) Property(name string) (*Property, bool) {
	p, ok := et.propertyByName[name]
	return p, ok
}

// Attrs returns a copy of the event type's raw, grammar-validated
// attributes, keyed by attribute name.
func (et *EventType) Attrs() map[string]string { return copyAttrs(et.attrs) }

func copyAttrs(attrs map[string]string) map[string]string {
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

// Registry is the schema registry. It is safe for
// concurrent use; a registry is owned by exactly one stream
// processor for the lifetime of a stream, but read operations remain
// available to validation-only, standalone uses after loading.
type Registry struct {
	mu sync.RWMutex

	eventTypes  map[string]*EventType
	objectTypes map[string]*ObjectType
	sourcesByURL map[string]*edxml.Source
	sourcesByID  map[int]string // source-id -> URL

	counters *edxml.Counters
	warnings edxml.WarningSink
}

// New creates an empty registry. counters and warnings may be nil, in
// which case errors/warnings are simply not accumulated/delivered.
func New(counters *edxml.Counters, warnings edxml.WarningSink) *Registry {
	if warnings == nil {
		warnings = edxml.DiscardWarnings
	}
	return &Registry{
		eventTypes:   make(map[string]*EventType),
		objectTypes:  make(map[string]*ObjectType),
		sourcesByURL: make(map[string]*edxml.Source),
		sourcesByID:  make(map[int]string),
		counters:     counters,
		warnings:     warnings,
	}
}

func (r *Registry) fail(kind edxml.Kind, path string, cause error) error {
	err := edxml.NewError(kind, path, cause)
	return r.counters.RecordError(err)
}

// AddObjectType registers or re-registers an object type.
func (r *Registry) AddObjectType(ctx context.Context, name string, rawAttrs map[string]string) error {
	logger := ctxlog.LoggerFromContext(ctx)
	path := "objecttype/" + name
	if !nameRE.MatchString(name) {
		return r.fail(edxml.KindAttributeViolation, path, fmt.Errorf("invalid object type name"))
	}
	attrs, err := ObjectTypeGrammar.Validate(path, rawAttrs)
	if err != nil {
		return r.counters.RecordError(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.objectTypes[name]; ok {
		if err := ObjectTypeGrammar.CheckReRegistration(path, existing.attrs, attrs); err != nil {
			return r.counters.RecordError(err)
		}
		logger.Debug("object type re-registered consistently", "name", name)
		return nil
	}

	descriptor, err := typesystem.Parse(attrs["datatype"])
	if err != nil {
		return r.counters.RecordError(err)
	}
	compress, _ := strconv.ParseBool(attrs["compress"])
	enp, _ := strconv.Atoi(attrs["enp"])

	r.objectTypes[name] = &ObjectType{
		Name:          name,
		DataType:      descriptor,
		DisplayName:   attrs["display-name"],
		Description:   attrs["description"],
		FuzzyMatching: attrs["fuzzy-matching"],
		Compress:      compress,
		ENP:           enp,
		ValueRegexp:   attrs["regexp"],
		attrs:         attrs,
	}
	logger.Debug("object type registered", "name", name)
	return nil
}

// AddSource registers or re-registers a source.
func (r *Registry) AddSource(ctx context.Context, url string, rawAttrs map[string]string) error {
	logger := ctxlog.LoggerFromContext(ctx)
	path := "source/" + url
	attrs, err := SourceGrammar.Validate(path, rawAttrs)
	if err != nil {
		return r.counters.RecordError(err)
	}
	id, err := strconv.Atoi(attrs["source-id"])
	if err != nil || id <= 0 {
		return r.fail(edxml.KindAttributeViolation, path+"/source-id", fmt.Errorf("source-id must be a positive integer"))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sourcesByURL[url]; ok {
		prevAttrs := map[string]string{
			"source-id":     strconv.Itoa(existing.SourceID),
			"date-acquired": existing.DateAcquired,
			"description":   existing.Description,
		}
		if err := SourceGrammar.CheckReRegistration(path, prevAttrs, attrs); err != nil {
			return r.counters.RecordError(err)
		}
		logger.Debug("source re-registered consistently", "url", url)
		return nil
	}
	if otherURL, taken := r.sourcesByID[id]; taken && otherURL != url {
		return r.fail(edxml.KindSchemaInconsistency, path, fmt.Errorf("source-id %d already used by %s", id, otherURL))
	}

	src := &edxml.Source{URL: url, SourceID: id, DateAcquired: attrs["date-acquired"], Description: attrs["description"]}
	r.sourcesByURL[url] = src
	r.sourcesByID[id] = url
	logger.Debug("source registered", "url", url, "source_id", id)
	return nil
}

// AddEventType registers or re-registers an event type.
func (r *Registry) AddEventType(ctx context.Context, name string, rawAttrs map[string]string) error {
	logger := ctxlog.LoggerFromContext(ctx)
	path := "eventtype/" + name
	if !nameRE.MatchString(name) {
		return r.fail(edxml.KindAttributeViolation, path, fmt.Errorf("invalid event type name"))
	}
	attrs, err := EventTypeGrammar.Validate(path, rawAttrs)
	if err != nil {
		return r.counters.RecordError(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.eventTypes[name]; ok {
		if err := EventTypeGrammar.CheckReRegistration(path, existing.attrs, attrs); err != nil {
			return r.counters.RecordError(err)
		}
		logger.Debug("event type re-registered consistently", "name", name)
		return nil
	}

	var classes []string
	if attrs["classlist"] != "" {
		classes = strings.Split(attrs["classlist"], ",")
	}
	r.eventTypes[name] = &EventType{
		Name:                name,
		DisplayName:         attrs["display-name"],
		Description:         attrs["description"],
		Classes:             classes,
		ReporterShort:       attrs["reporter-short"],
		ReporterLong:        attrs["reporter-long"],
		UniqueProperties:    make(map[string]bool),
		MandatoryProperties: make(map[string]bool),
		SingletonProperties: make(map[string]bool),
		RelatedProperties:   make(map[string]bool),
		attrs:               attrs,
		propertyByName:      make(map[string]*Property),
	}
	logger.Debug("event type registered", "name", name)
	return nil
}

// AddProperty registers or re-registers a property of an event type
//, updating the event type's derived sets.
func (r *Registry) AddProperty(ctx context.Context, event, name string, rawAttrs map[string]string) error {
	logger := ctxlog.LoggerFromContext(ctx)
	path := fmt.Sprintf("eventtype/%s/property/%s", event, name)

	attrs, err := PropertyGrammar.Validate(path, rawAttrs)
	if err != nil {
		return r.counters.RecordError(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	et, ok := r.eventTypes[event]
	if !ok {
		return r.fail(edxml.KindSchemaInconsistency, path, fmt.Errorf("unknown event type %s", event))
	}

	if existing, ok := et.propertyByName[name]; ok {
		if err := PropertyGrammar.CheckReRegistration(path, existing.attrs, attrs); err != nil {
			return r.counters.RecordError(err)
		}
		logger.Debug("property re-registered consistently", "event", event, "property", name)
		return nil
	}

	unique, _ := strconv.ParseBool(attrs["unique"])
	definesEntity, _ := strconv.ParseBool(attrs["defines-entity"])
	confidence, _ := strconv.ParseFloat(attrs["entity-confidence"], 64)
	merge := MergeStrategy(attrs["merge"])

	prop := &Property{
		Name:             name,
		EventType:        event,
		Description:      attrs["description"],
		Similar:          attrs["similar"],
		ObjectTypeName:   attrs["object-type"],
		Unique:           unique,
		Merge:            merge,
		DefinesEntity:    definesEntity,
		EntityConfidence: confidence,
		attrs:            attrs,
	}

	et.Properties = append(et.Properties, prop)
	et.propertyByName[name] = prop

	// Derived-set computation.
	if unique {
		et.UniqueProperties[name] = true
		et.Unique = true
	}
	if merge == MergeMatch || merge == MergeMin || merge == MergeMax {
		et.MandatoryProperties[name] = true
	}
	if merge == MergeMatch || merge == MergeReplace || merge == MergeMin || merge == MergeMax {
		et.SingletonProperties[name] = true
	}

	logger.Debug("property registered", "event", event, "property", name, "merge", merge)
	return nil
}

// SetEventTypeParent records event type's parent mapping.
// propertyMap maps child property name to parent property name.
func (r *Registry) SetEventTypeParent(ctx context.Context, event string, parentEventType string, propertyMap map[string]string, description string) error {
	logger := ctxlog.LoggerFromContext(ctx)
	path := fmt.Sprintf("eventtype/%s/parent", event)

	r.mu.Lock()
	defer r.mu.Unlock()

	et, ok := r.eventTypes[event]
	if !ok {
		return r.fail(edxml.KindSchemaInconsistency, path, fmt.Errorf("unknown event type %s", event))
	}
	// The parent event type may be defined later in the schema section;
	// Finalize reports a parent that never gets registered.

	cp :=make(map[string]string, len(propertyMap))
	for k, v := range propertyMap {
		cp[k] = v
	}
	if et.Parent != nil {
		if et.Parent.EventTypeName != parentEventType {
			return r.fail(edxml.KindSchemaInconsistency, path, fmt.Errorf("parent event type changed from %s to %s", et.Parent.EventTypeName, parentEventType))
		}
		if len(et.Parent.PropertyMap) != len(cp) {
			return r.fail(edxml.KindSchemaInconsistency, path, fmt.Errorf("parent property map changed"))
		}
		for k, v := range cp {
			if et.Parent.PropertyMap[k] != v {
				return r.fail(edxml.KindSchemaInconsistency, path, fmt.Errorf("parent property map changed for %s", k))
			}
		}
		logger.Debug("event type parent re-registered consistently", "event", event)
		return nil
	}

	for child := range cp {
		et.SingletonProperties[child] = true
	}
	et.Parent = &ParentDef{EventTypeName: parentEventType, PropertyMap: cp}
	logger.Debug("event type parent registered", "event", event, "parent", parentEventType)
	return nil
}

// AddRelation registers or re-registers a relation between two
// properties of an event type.
func (r *Registry) AddRelation(ctx context.Context, event, p1, p2 string, rawAttrs map[string]string) error {
	logger := ctxlog.LoggerFromContext(ctx)
	path := fmt.Sprintf("eventtype/%s/relation/%s-%s", event, p1, p2)

	attrs, err := RelationGrammar.Validate(path, rawAttrs)
	if err != nil {
		return r.counters.RecordError(err)
	}
	if !strings.Contains(attrs["description"], "[[property1]]") || !strings.Contains(attrs["description"], "[[property2]]") {
		return r.fail(edxml.KindSchemaInconsistency, path, fmt.Errorf("relation description must contain [[property1]] and [[property2]]"))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	et, ok := r.eventTypes[event]
	if !ok {
		return r.fail(edxml.KindSchemaInconsistency, path, fmt.Errorf("unknown event type %s", event))
	}
	if _, ok := et.propertyByName[p1]; !ok {
		return r.fail(edxml.KindSchemaInconsistency, path, fmt.Errorf("unknown property %s", p1))
	}
	if _, ok := et.propertyByName[p2]; !ok {
		return r.fail(edxml.KindSchemaInconsistency, path, fmt.Errorf("unknown property %s", p2))
	}

	for _, existing := range et.Relations {
		if existing.Property1 == p1 && existing.Property2 == p2 {
			if err := RelationGrammar.CheckReRegistration(path, existing.attrs, attrs); err != nil {
				return r.counters.RecordError(err)
			}
			logger.Debug("relation re-registered consistently", "event", event, "p1", p1, "p2", p2)
			return nil
		}
	}

	directed, _ := strconv.ParseBool(attrs["directed"])
	confidence, _ := strconv.ParseFloat(attrs["confidence"], 64)
	rel := &Relation{
		EventType:   event,
		Property1:   p1,
		Property2:   p2,
		Directed:    directed,
		Description: attrs["description"],
		Type:        attrs["type"],
		Confidence:  confidence,
		attrs:       attrs,
	}
	et.Relations = append(et.Relations, rel)
	et.RelatedProperties[p1] = true
	et.RelatedProperties[p2] = true
	logger.Debug("relation registered", "event", event, "p1", p1, "p2", p2)
	return nil
}

// --- Queries ---

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// PropertyObjectType returns the object-type name referenced by a property.
func (r *Registry) PropertyObjectType(event, property string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	et, ok := r.eventTypes[event]
	if !ok {
		return "", edxml.NewError(edxml.KindSchemaInconsistency, "eventtype/"+event, fmt.Errorf("unknown event type"))
	}
	p, ok := et.propertyByName[property]
	if !ok {
		return "", edxml.NewError(edxml.KindSchemaInconsistency, "eventtype/"+event+"/property/"+property, fmt.Errorf("unknown property"))
	}
	return p.ObjectTypeName, nil
}

// UniqueProperties returns the unique property names of an event type, sorted.
func (r *Registry) UniqueProperties(event string) ([]string, error) {
	return r.propertySet(event, func(et *EventType) map[string]bool { return et.UniqueProperties })
}

// MandatoryProperties returns the mandatory property names of an event type, sorted.
func (r *Registry) MandatoryProperties(event string) ([]string, error) {
	return r.propertySet(event, func(et *EventType) map[string]bool { return et.MandatoryProperties })
}

// SingletonProperties returns the singleton property names of an event type, sorted.
func (r *Registry) SingletonProperties(event string) ([]string, error) {
	return r.propertySet(event, func(et *EventType) map[string]bool { return et.SingletonProperties })
}

func (r *Registry) propertySet(event string, pick func(*EventType) map[string]bool) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	et, ok := r.eventTypes[event]
	if !ok {
		return nil, edxml.NewError(edxml.KindSchemaInconsistency, "eventtype/"+event, fmt.Errorf("unknown event type"))
	}
	return sortedKeys(pick(et)), nil
}

// EventTypeIsUnique reports whether event has any unique property.
func (r *Registry) EventTypeIsUnique(event string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	et, ok := r.eventTypes[event]
	if !ok {
		return false, edxml.NewError(edxml.KindSchemaInconsistency, "eventtype/"+event, fmt.Errorf("unknown event type"))
	}
	return et.Unique, nil
}

// EventTypesHavingObjectType returns the names of event types with at
// least one property referencing objectType, sorted.
func (r *Registry) EventTypesHavingObjectType(objectType string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for name, et := range r.eventTypes {
		for _, p := range et.Properties {
			if p.ObjectTypeName == objectType {
				out = append(out, name)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// EventTypesInClass returns the names of event types tagged with any of
// the given classes, sorted.
func (r *Registry) EventTypesInClass(classes ...string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	want := make(map[string]bool, len(classes))
	for _, c := range classes {
		want[c] = true
	}
	var out []string
	for name, et := range r.eventTypes {
		for _, c := range et.Classes {
			if want[c] {
				out = append(out, name)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// SourceIDForURL returns the numeric source id registered for url.
func (r *Registry) SourceIDForURL(url string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.sourcesByURL[url]
	if !ok {
		return 0, edxml.NewError(edxml.KindSchemaInconsistency, "source/"+url, fmt.Errorf("unknown source"))
	}
	return src.SourceID, nil
}

// SourceURLForID returns the URL registered for a numeric source id.
func (r *Registry) SourceURLForID(id int) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	url, ok := r.sourcesByID[id]
	if !ok {
		return "", edxml.NewError(edxml.KindSchemaInconsistency, fmt.Sprintf("source/%d", id), fmt.Errorf("unknown source id"))
	}
	return url, nil
}

// UniqueSourceIDs renumbers all registered sources to consecutive
// positive integers in URL order and returns the URL -> new-id mapping.
// This is used when merging multiple input files whose numeric source
// ids collide.
func (r *Registry) UniqueSourceIDs() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	urls := make([]string, 0, len(r.sourcesByURL))
	for url := range r.sourcesByURL {
		urls = append(urls, url)
	}
	sort.Strings(urls)

	mapping := make(map[string]int, len(urls))
	newByID := make(map[int]string, len(urls))
	for i, url := range urls {
		id := i + 1
		r.sourcesByURL[url].SourceID = id
		newByID[id] = url
		mapping[url] = id
	}
	r.sourcesByID = newByID
	return mapping
}

// ObjectType returns the registered object type, if any.
func (r *Registry) ObjectType(name string) (*ObjectType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ot, ok := r.objectTypes[name]
	return ot, ok
}

// EventType returns the registered event type, if any.
func (r *Registry) EventType(name string) (*EventType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	et, ok := r.eventTypes[name]
	return et, ok
}

// EventTypeNames returns all registered event type names, sorted.
func (r *Registry) EventTypeNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.eventTypes))
	for name := range r.eventTypes {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ObjectTypeNames returns all registered object type names, sorted.
func (r *Registry) ObjectTypeNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.objectTypes))
	for name := range r.objectTypes {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Sources returns all registered sources, sorted by URL.
func (r *Registry) Sources() []*edxml.Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*edxml.Source, 0, len(r.sourcesByURL))
	for _, s := range r.sourcesByURL {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}
