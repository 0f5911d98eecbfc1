// Package memstore provides an in-memory implementation of triage.Store.
package memstore

import (
	"context"
	"slices"
	"sync"

	"github.com/linnemanlabs/aftercare/internal/triage"
)

// Store holds triage results in memory. Suitable for dev/testing.
type Store struct {
	mu         sync.RWMutex
	results    map[string]*triage.Result // triage ID -> result
	byResponse map[string]string         // response ID -> triage ID (dedup)
	byPatient  map[string][]string       // patient ID -> triage IDs
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		results:    make(map[string]*triage.Result),
		byResponse: make(map[string]string),
		byPatient:  make(map[string][]string),
	}
}

// Get retrieves a triage result by its ID. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*triage.Result, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[id]
	if !ok {
		return nil, false, nil
	}
	return clone(r), true, nil
}

// GetByResponse retrieves the triage result for a response ID, for deduplication. Returns a copy.
func (s *Store) GetByResponse(_ context.Context, responseID string) (*triage.Result, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byResponse[responseID]
	if !ok {
		return nil, false, nil
	}
	return clone(s.results[id]), true, nil
}

// ListByPatient returns up to limit results for a patient, newest first.
func (s *Store) ListByPatient(_ context.Context, patientID string, limit int) ([]*triage.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byPatient[patientID]
	out := make([]*triage.Result, 0, len(ids))
	for _, id := range ids {
		out = append(out, clone(s.results[id]))
	}
	slices.SortStableFunc(out, func(a, b *triage.Result) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return b.SubmittedAt.Compare(a.SubmittedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Put stores a copy of the triage result.
func (s *Store) Put(_ context.Context, r *triage.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.results[r.ID]; !exists {
		s.byPatient[r.PatientID] = append(s.byPatient[r.PatientID], r.ID)
	}
	s.results[r.ID] = clone(r)
	s.byResponse[r.ResponseID] = r.ID
	return nil
}

// PutNew stores a copy of r unless its response ID is already stored, in which
// case the existing result is returned with created false.
func (s *Store) PutNew(_ context.Context, r *triage.Result) (*triage.Result, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byResponse[r.ResponseID]; ok {
		return clone(s.results[id]), false, nil
	}
	s.results[r.ID] = clone(r)
	s.byResponse[r.ResponseID] = r.ID
	s.byPatient[r.PatientID] = append(s.byPatient[r.PatientID], r.ID)
	return clone(r), true, nil
}

// clone copies the result and its slice/map fields so callers cannot mutate stored state.
func clone(r *triage.Result) *triage.Result {
	cp := *r
	cp.Suggestions = slices.Clone(r.Suggestions)
	if r.Dataset != nil {
		cp.Dataset = make(triage.Dataset, len(r.Dataset))
		for k, v := range r.Dataset {
			cp.Dataset[k] = v
		}
	}
	return &cp
}
