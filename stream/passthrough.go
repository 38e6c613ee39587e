package stream

import (
	"context"
	"fmt"

	"github.com/dtakken/edxml-sdk"
	"github.com/dtakken/edxml-sdk/hashengine"
	"github.com/dtakken/edxml-sdk/merge"
	"github.com/dtakken/edxml-sdk/schema"
)

// PassThroughHandler implements Handler in pass-through mode: every
// input event yields exactly one output event, merged in place with
// any previously-seen event sharing its sticky hash.
// Memory is proportional to the number of distinct hashes encountered.
type PassThroughHandler struct {
	writer  Writer
	variant hashengine.Variant
	store   HashStore

	reg          *schema.Registry
	currentGroup groupKey
	groupOpen    bool
}

type groupKey struct {
	eventType string
	sourceID  string
}

// NewPassThroughHandler creates a pass-through handler writing to w.
// store may be nil to use the default in-memory map.
func NewPassThroughHandler(w Writer, variant hashengine.Variant, store HashStore) *PassThroughHandler {
	if store == nil {
		store = newMapHashStore()
	}
	return &PassThroughHandler{writer: w, variant: variant, store: store}
}

func (h *PassThroughHandler) DefinitionsLoaded(ctx context.Context, reg *schema.Registry) error {
	h.reg = reg
	return h.writer.OpenEventGroups()
}

func (h *PassThroughHandler) ProcessEvent(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	et, ok := h.reg.EventType(event.EventType)
	if !ok {
		return edxml.NewError(edxml.KindSchemaInconsistency, "eventtype/"+event.EventType, fmt.Errorf("unknown event type"))
	}
	sourceID, err := h.reg.SourceIDForURL(event.SourceURL)
	if err != nil {
		return err
	}

	hash, err := hashengine.Compute(h.variant, et, h.reg, event.SourceURL, hashengine.Objects(event.Objects), event.Content)
	if err != nil {
		return err
	}

	objects := event.Objects
	if prior, found := h.store.Get(hash); found {
		// See buffered.go: a non-unique hash collision implies the
		// colliding events' full property sets already match, so only
		// unique event types need an actual per-property merge.
		if et.Unique {
			if _, err := merge.Merge(h.reg, et, prior, event.Objects); err != nil {
				return err
			}
		}
		objects = prior
	} else {
		// Remember a copy, so later merges never rewrite the map that was
		// just handed to the writer as this event's objects.
		stored := make(merge.Objects, len(objects))
		for property, values := range objects {
			set := make(map[string]struct{}, len(values))
			for v := range values {
				set[v] = struct{}{}
			}
			stored[property] = set
		}
		h.store.Insert(hash, stored)
	}

	key := groupKey{eventType: event.EventType, sourceID: fmt.Sprintf("%d", sourceID)}
	if err := h.ensureGroup(key); err != nil {
		return err
	}
	return h.writer.AddEvent(objects, event.Content, event.Parents)
}

func (h *PassThroughHandler) ensureGroup(key groupKey) error {
	if h.groupOpen && h.currentGroup == key {
		return nil
	}
	if h.groupOpen {
		if err := h.writer.CloseEventGroup(); err != nil {
			return err
		}
	}
	if err := h.writer.OpenEventGroup(key.eventType, key.sourceID); err != nil {
		return err
	}
	h.currentGroup = key
	h.groupOpen = true
	return nil
}

func (h *PassThroughHandler) EndOfStream(ctx context.Context) error {
	if h.groupOpen {
		if err := h.writer.CloseEventGroup(); err != nil {
			return err
		}
		h.groupOpen = false
	}
	// Every remembered hash has already been written; drop the store's
	// references so a long-lived handler doesn't hold onto them past
	// the stream that produced them.
	h.store.IterAndClear(func(string, merge.Objects) {})
	return h.writer.CloseEventGroups()
}
