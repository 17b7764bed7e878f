package trajectory

import (
	"maps"
	"sort"
	"sync"
	"time"
)

// PointStore is an append-only, ordered collection of observations indexed
// by object id. Add assigns each observation its ingestion sequence number.
// It is safe for concurrent use.
type PointStore struct {
	mu           sync.RWMutex
	observations []Observation
	byObject     map[string][]int
	nextSeq      uint64
}

func NewPointStore() *PointStore {
	return &PointStore{
		byObject: make(map[string][]int),
	}
}

// Add validates and appends observations. Either all are added or none.
func (s *PointStore) Add(obs ...Observation) error {
	if err := Validate(obs); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range obs {
		o.Seq = s.nextSeq
		s.nextSeq++
		if o.Attrs != nil {
			o.Attrs = maps.Clone(o.Attrs)
		}
		s.byObject[o.ObjectID] = append(s.byObject[o.ObjectID], len(s.observations))
		s.observations = append(s.observations, o)
	}
	return nil
}

// Validate checks that every observation carries an object id and a
// timestamp.
func Validate(obs []Observation) error {
	for i, o := range obs {
		if err := validateObservation(i, o); err != nil {
			return err
		}
	}
	return nil
}

func validateObservation(i int, o Observation) error {
	if o.ObjectID == "" {
		return &InvalidInputError{Index: i, Field: "object_id", Reason: "is missing"}
	}
	if o.Timestamp.IsZero() {
		return &InvalidInputError{Index: i, Field: "timestamp", Reason: "is missing"}
	}
	return nil
}

func (s *PointStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.observations)
}

// All returns every observation in ingestion order.
func (s *PointStore) All() []Observation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Observation, len(s.observations))
	copy(out, s.observations)
	return out
}

// ByObject returns one object's observations in ingestion order.
func (s *PointStore) ByObject(objectID string) []Observation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.byObject[objectID]
	out := make([]Observation, len(idx))
	for i, j := range idx {
		out[i] = s.observations[j]
	}
	return out
}

// Objects lists the known object ids in ascending order.
func (s *PointStore) Objects() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.byObject))
	for id := range s.byObject {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Range returns observations whose timestamp lies within [start, end], in
// ingestion order.
func (s *PointStore) Range(start, end time.Time) []Observation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := &TimeRange{Start: start, End: end}
	var out []Observation
	for _, o := range s.observations {
		if r.Contains(o.Timestamp) {
			out = append(out, o)
		}
	}
	return out
}
