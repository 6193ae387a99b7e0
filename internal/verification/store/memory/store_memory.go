// Package memory holds verification records in process, keyed by user.
package memory

import (
	"context"
	"sync"

	"aegis/internal/verification"
	"aegis/pkg/sentinel"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]*verification.Record
}

func New() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]*verification.Record)}
}

// Get returns the record for one user, sentinel.ErrNotFound when the user has
// never submitted anything.
func (s *InMemoryStore) Get(_ context.Context, userID string) (*verification.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

// Save upserts the record.
func (s *InMemoryStore) Save(_ context.Context, record *verification.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *record
	s.records[record.UserID] = &cp
	return nil
}
