// Package memory holds the audit trail in process. One mutex section covers
// the event append and its review task, so the escalation invariant (no
// high-severity event without its task) holds even if the process dies
// between calls.
package memory

import (
	"context"
	"sync"

	"aegis/internal/audit"
	"aegis/pkg/sentinel"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events []*audit.SecurityEvent
	tasks  map[string]*audit.ReviewTask
}

func New() *InMemoryStore {
	return &InMemoryStore{tasks: make(map[string]*audit.ReviewTask)}
}

// Append persists an event and, when escalation demands it, its review task
// in one atomic step. task may be nil.
func (s *InMemoryStore) Append(_ context.Context, event *audit.SecurityEvent, task *audit.ReviewTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	if task != nil {
		s.tasks[task.ID] = task
	}
	return nil
}

// ListBySubject returns events for one subject user, oldest first.
func (s *InMemoryStore) ListBySubject(_ context.Context, userID string) ([]*audit.SecurityEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*audit.SecurityEvent
	for _, e := range s.events {
		if e.SubjectUserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

// ListOpenTasks returns review tasks that are not yet resolved.
func (s *InMemoryStore) ListOpenTasks(_ context.Context) ([]*audit.ReviewTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*audit.ReviewTask
	for _, t := range s.tasks {
		if t.Status != audit.TaskResolved {
			out = append(out, t)
		}
	}
	return out, nil
}

// GetTask returns a review task by ID.
func (s *InMemoryStore) GetTask(_ context.Context, id string) (*audit.ReviewTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// UpdateTask saves reviewer changes to a task.
func (s *InMemoryStore) UpdateTask(_ context.Context, task *audit.ReviewTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[task.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *task
	s.tasks[task.ID] = &cp
	return nil
}
