package stream

import "github.com/dtakken/edxml-sdk/merge"

// HashStore is the pluggable hash-indexed map PassThroughHandler uses to
// remember previously-seen events (BufferedHandler keeps its own
// per-group buffer instead). The default mapHashStore is in-process;
// callers needing an external store for very large streams implement
// the same three operations.
//
// IterAndClear must visit entries in first-insertion order.
type HashStore interface {
	Get(hash string) (merge.Objects, bool)
	Insert(hash string, objects merge.Objects)
	IterAndClear(visit func(hash string, objects merge.Objects))
}

// mapHashStore is the default in-memory HashStore: a map plus an
// insertion-order slice, since plain Go map iteration order is random.
type mapHashStore struct {
	m     map[string]merge.Objects
	order []string
}

func newMapHashStore() *mapHashStore {
	return &mapHashStore{m: make(map[string]merge.Objects)}
}

func (s *mapHashStore) Get(hash string) (merge.Objects, bool) {
	o, ok := s.m[hash]
	return o, ok
}

func (s *mapHashStore) Insert(hash string, objects merge.Objects) {
	if _, exists := s.m[hash]; !exists {
		s.order = append(s.order, hash)
	}
	s.m[hash] = objects
}

func (s *mapHashStore) IterAndClear(visit func(hash string, objects merge.Objects)) {
	for _, hash := range s.order {
		visit(hash, s.m[hash])
	}
	s.m = make(map[string]merge.Objects)
	s.order = nil
}

func (s *mapHashStore) len() int { return len(s.order) }
