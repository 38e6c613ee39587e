package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/dtakken/edxml-sdk"
	"github.com/dtakken/edxml-sdk/hashengine"
	"github.com/dtakken/edxml-sdk/merge"
	"github.com/dtakken/edxml-sdk/schema"
)

// bufferedEvent is one buffered slot: objects are mutated in place by
// subsequent merges, while content and parents are fixed at first
// occurrence.
type bufferedEvent struct {
	objects merge.Objects
	content string
	parents []string
}

// groupBuffer holds the buffered events of one (event_type, source_id)
// group, preserving first-occurrence order for flush.
type groupBuffer struct {
	byHash map[string]*bufferedEvent
	order  []string
}

// BufferedHandler implements Handler in buffered mode:
// events sharing a sticky hash are merged before being written, and
// flushed once per group when the buffer fills, the latency clock
// expires, or the stream ends.
type BufferedHandler struct {
	writer  Writer
	variant hashengine.Variant
	reg     *schema.Registry

	maxBufferSize int
	maxLatency    time.Duration
	clock         func() time.Time

	groups     map[groupKey]*groupBuffer
	groupOrder []groupKey
	count      int
	lastFlush  time.Time
}

// NewBufferedHandler creates a buffered handler. maxBufferSize must be
// at least 1. maxLatency of 0 disables latency-driven flushing. clock
// may be nil to use time.Now.
func NewBufferedHandler(w Writer, variant hashengine.Variant, maxBufferSize int, maxLatency time.Duration, clock func() time.Time) *BufferedHandler {
	if maxBufferSize < 1 {
		maxBufferSize = 1
	}
	if clock == nil {
		clock = time.Now
	}
	return &BufferedHandler{
		writer:        w,
		variant:       variant,
		maxBufferSize: maxBufferSize,
		maxLatency:    maxLatency,
		clock:         clock,
		groups:        make(map[groupKey]*groupBuffer),
	}
}

func (h *BufferedHandler) DefinitionsLoaded(ctx context.Context, reg *schema.Registry) error {
	h.reg = reg
	h.lastFlush = h.clock()
	return h.writer.OpenEventGroups()
}

func (h *BufferedHandler) ProcessEvent(ctx context.Context, event Event) error {
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

	key := groupKey{eventType: event.EventType, sourceID: fmt.Sprintf("%d", sourceID)}
	bucket, ok := h.groups[key]
	if !ok {
		bucket = &groupBuffer{byHash: make(map[string]*bufferedEvent)}
		h.groups[key] = bucket
		h.groupOrder = append(h.groupOrder, key)
	}

	if existing, ok := bucket.byHash[hash]; ok {
		// A hash collision on a non-unique event type can only happen
		// when the colliding events' full property sets already match,
		// since the hash preimage covers every property; nothing to
		// merge. For unique event types the hash only binds the unique
		// properties, so the non-unique ones still need merging.
		if et.Unique {
			if _, err := merge.Merge(h.reg, et, existing.objects, event.Objects); err != nil {
				return err
			}
		}
	} else {
		bucket.byHash[hash] = &bufferedEvent{
			objects: event.Objects,
			content: event.Content,
			parents: event.Parents,
		}
		bucket.order = append(bucket.order, hash)
		h.count++
	}

	if h.count >= h.maxBufferSize {
		return h.flush()
	}
	if h.maxLatency > 0 && h.clock().Sub(h.lastFlush) > h.maxLatency {
		return h.flush()
	}
	return nil
}

func (h *BufferedHandler) flush() error {
	for _, key := range h.groupOrder {
		bucket := h.groups[key]
		if len(bucket.order) == 0 {
			continue
		}
		if err := h.writer.OpenEventGroup(key.eventType, key.sourceID); err != nil {
			return err
		}
		for _, hash := range bucket.order {
			be := bucket.byHash[hash]
			if err := h.writer.AddEvent(be.objects, be.content, be.parents); err != nil {
				return err
			}
		}
		if err := h.writer.CloseEventGroup(); err != nil {
			return err
		}
	}
	h.groups = make(map[groupKey]*groupBuffer)
	h.groupOrder = nil
	h.count = 0
	h.lastFlush = h.clock()
	return nil
}

func (h *BufferedHandler) EndOfStream(ctx context.Context) error {
	if err := h.flush(); err != nil {
		return err
	}
	return h.writer.CloseEventGroups()
}
