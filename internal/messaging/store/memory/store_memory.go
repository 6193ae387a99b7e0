// Package memory holds messages in process. Deletes are soft: the envelope is
// cleared, the row survives.
package memory

import (
	"context"
	"sync"
	"time"

	"aegis/internal/messaging"
	"aegis/pkg/sentinel"
)

type InMemoryStore struct {
	mu       sync.RWMutex
	messages map[string]*messaging.Message
	order    []string
}

func New() *InMemoryStore {
	return &InMemoryStore{messages: make(map[string]*messaging.Message)}
}

// Save persists a new message.
func (s *InMemoryStore) Save(_ context.Context, msg *messaging.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *msg
	s.messages[msg.ID] = &cp
	s.order = append(s.order, msg.ID)
	return nil
}

// Get returns one message by ID, deleted or not.
func (s *InMemoryStore) Get(_ context.Context, id string) (*messaging.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

// ListConversation returns the messages between two users, oldest first,
// excluding soft-deleted ones.
func (s *InMemoryStore) ListConversation(_ context.Context, userA, userB string) ([]*messaging.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*messaging.Message
	for _, id := range s.order {
		m := s.messages[id]
		if m.Deleted() {
			continue
		}
		if (m.SenderID == userA && m.RecipientID == userB) ||
			(m.SenderID == userB && m.RecipientID == userA) {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

// SoftDelete clears the envelope and stamps the deletion time. The row and
// its moderation verdict remain.
func (s *InMemoryStore) SoftDelete(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	m.Envelope = ""
	m.DeletedAt = at
	return nil
}
