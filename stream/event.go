// Package stream implements the EDXML stream processor: feeding parsed
// events to a handler that either emits them pass-through or merges
// colliding hashes into a bounded buffer.
//
// A Handler interface (DefinitionsLoaded/ProcessEvent/EndOfStream) is
// implemented by both a pass-through and a buffered handler, fed by a
// Processor that owns the XML decoding loop and a security-limited
// token reader.
package stream

import "github.com/dtakken/edxml-sdk/merge"

// Event is one parsed `<event>` element, already normalized against its
// event type's declared data types.
type Event struct {
	EventType string
	SourceURL string
	Objects   merge.Objects
	Content   string
	Parents   []string
}
