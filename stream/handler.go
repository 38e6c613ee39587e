package stream

import (
	"context"

	"github.com/dtakken/edxml-sdk/merge"
	"github.com/dtakken/edxml-sdk/schema"
)

// Handler is the capability set a stream consumer implements:
// DefinitionsLoaded fires once the schema section has been fully
// parsed, ProcessEvent fires per input event, and EndOfStream fires
// once, after the last event, before the writer is closed.
// PassThroughHandler and BufferedHandler are the two implementations
// the core ships; Processor is agnostic to which one it
// drives.
type Handler interface {
	DefinitionsLoaded(ctx context.Context, reg *schema.Registry) error
	ProcessEvent(ctx context.Context, event Event) error
	EndOfStream(ctx context.Context) error
}

// Writer is the output-side collaborator: it receives the
// re-serialized schema section once, then a sequence of event groups.
type Writer interface {
	AddXMLDefinitions(data []byte) error
	OpenEventGroups() error
	OpenEventGroup(eventType, sourceID string) error
	AddEvent(objects merge.Objects, content string, parents []string) error
	CloseEventGroup() error
	CloseEventGroups() error
}
