package main

import (
	"context"
	"sort"

	"github.com/dtakken/edxml-sdk/merge"
	"github.com/dtakken/edxml-sdk/schema"
	"github.com/dtakken/edxml-sdk/stream"
)

// discardWriter implements stream.Writer by discarding every call: the
// stats front-end only ever reads events, it never re-emits them.
type discardWriter struct{}

func (discardWriter) AddXMLDefinitions([]byte) error                                   { return nil }
func (discardWriter) OpenEventGroups() error                                           { return nil }
func (discardWriter) OpenEventGroup(eventType, sourceID string) error                  { return nil }
func (discardWriter) AddEvent(objects merge.Objects, content string, p []string) error { return nil }
func (discardWriter) CloseEventGroup() error                                           { return nil }
func (discardWriter) CloseEventGroups() error                                          { return nil }

// statsHandler accumulates the counts the stats front-end reports,
// across one or more input documents sharing a single registry: passing
// every `-f` file through the same registry means a definition in one
// file that conflicts with an earlier file surfaces as an ordinary
// SchemaInconsistency error from the registry's own re-registration
// check, rather than needing bespoke cross-file comparison code.
type statsHandler struct {
	totalEvents     int
	perEventType    map[string]int
	objectTypeTypes map[string]string
	relationPreds   map[string]struct{}
	sourceURLs      map[string]struct{}
}

func newStatsHandler() *statsHandler {
	return &statsHandler{
		perEventType:    make(map[string]int),
		objectTypeTypes: make(map[string]string),
		relationPreds:   make(map[string]struct{}),
		sourceURLs:      make(map[string]struct{}),
	}
}

func (h *statsHandler) DefinitionsLoaded(ctx context.Context, reg *schema.Registry) error {
	for _, name := range reg.ObjectTypeNames() {
		ot, ok := reg.ObjectType(name)
		if !ok {
			continue
		}
		h.objectTypeTypes[name] = ot.DataType.String()
	}
	for _, name := range reg.EventTypeNames() {
		et, ok := reg.EventType(name)
		if !ok {
			continue
		}
		for _, rel := range et.Relations {
			h.relationPreds[rel.Type] = struct{}{}
		}
	}
	for _, src := range reg.Sources() {
		h.sourceURLs[src.URL] = struct{}{}
	}
	return nil
}

func (h *statsHandler) ProcessEvent(ctx context.Context, event stream.Event) error {
	h.totalEvents++
	h.perEventType[event.EventType]++
	return nil
}

func (h *statsHandler) EndOfStream(ctx context.Context) error { return nil }

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
