/*
Package edxml provides the core of an EDXML processing library: a schema
registry, sticky-hash computation, a per-property event-merge engine, and
the streaming parser/writer scaffolding that drives them.

EDXML (Extensible Data eXchange Markup Language) is an XML-based event
interchange format. A stream carries a schema section declaring event
types, object types and sources, followed by groups of events whose
property values reference those declarations.

This package holds the types shared across the sub-packages:

  - edxml/typesystem   — data-type descriptors and value normalization
  - edxml/schema       — the schema registry and its attribute grammar
  - edxml/reporter     — reporter-string validation
  - edxml/hashengine   — sticky-hash computation (v2/v3)
  - edxml/merge        — the per-property merge algebra
  - edxml/stream       — the SAX-driven stream processor
  - edxml/schemaemit   — re-serialization of a registry to EDXML/XSD/RelaxNG

Out of scope for the core: command-line argument parsing,
the raw SAX/XML reader and serializer, and any persistent hash-store
backend. Those are external collaborators whose interfaces are named in
the sub-packages that need them.

Key goals:
  - High cohesion: each sub-package owns exactly one concern.
  - Explicit error values instead of exceptions or panics.
  - Deterministic, bit-stable normalization so hashing is reproducible.
*/
package edxml

import (
	"io"
	"log/slog"
	"sync/atomic"
)

// logger is the package-level logger instance, defaulting to a discard
// handler so the library is silent unless the embedding application opts
// in.
var logger atomic.Pointer[slog.Logger]

func init() {
	logger.Store(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// SetLogger installs l as the package-level logger. Passing nil restores
// the discard default.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger.Store(l)
}

// Logger returns the currently installed package-level logger.
func Logger() *slog.Logger {
	return logger.Load()
}

// Source identifies the origin of a group of events. SourceID is the
// numeric id events reference; URL is the schema-side identifier.
type Source struct {
	URL          string
	SourceID     int
	DateAcquired string // YYYYMMDD
	Description  string
}

// ObjectValue is a single (property, value) pair as found in an <object>
// element, with Value already in canonical normalized form.
type ObjectValue struct {
	Property string
	Value    string
}

// Event is a transient, in-memory representation of one EDXML <event>
// element. It is produced by the stream parser and destroyed on emit.
type Event struct {
	EventType string
	SourceID  int
	Objects   []ObjectValue
	Content   string
	Parents   []string // hashlinks of parent events
}

// ObjectSets returns the event's objects grouped by property name, each
// as a deduplicated set of values. This is the representation the merge
// engine (edxml/merge) and hash engine (edxml/hashengine) operate on.
func (e *Event) ObjectSets() map[string]map[string]struct{} {
	sets := make(map[string]map[string]struct{}, len(e.Objects))
	for _, ov := range e.Objects {
		s, ok := sets[ov.Property]
		if !ok {
			s = make(map[string]struct{})
			sets[ov.Property] = s
		}
		s[ov.Value] = struct{}{}
	}
	return sets
}
