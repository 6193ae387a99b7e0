package messaging

import (
	"context"
	"sync"

	"aegis/pkg/sentinel"
)

// KeyDirectory resolves a user's current public key for envelope encryption.
type KeyDirectory interface {
	PublicKey(ctx context.Context, userID string) (string, error)
}

// InMemoryKeyRegistry is a mutex-guarded public key directory.
type InMemoryKeyRegistry struct {
	mu   sync.RWMutex
	keys map[string]string
}

func NewInMemoryKeyRegistry() *InMemoryKeyRegistry {
	return &InMemoryKeyRegistry{keys: make(map[string]string)}
}

// Register stores a user's public key PEM.
func (r *InMemoryKeyRegistry) Register(_ context.Context, userID, publicPEM string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[userID] = publicPEM
	return nil
}

// PublicKey returns the user's public key PEM.
func (r *InMemoryKeyRegistry) PublicKey(_ context.Context, userID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pem, ok := r.keys[userID]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return pem, nil
}
