package auth

import (
	"context"
	"strings"
	"sync"

	"aegis/pkg/sentinel"
)

// Directory holds the users the gate decides over.
type Directory interface {
	Register(ctx context.Context, user *User) error
	Lookup(ctx context.Context, userID string) (*User, error)
}

// InMemoryDirectory is a mutex-guarded user directory.
type InMemoryDirectory struct {
	mu    sync.RWMutex
	users map[string]*User
}

func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{users: make(map[string]*User)}
}

// Register adds or replaces a user.
func (d *InMemoryDirectory) Register(_ context.Context, user *User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *user
	d.users[user.ID] = &cp
	return nil
}

// Lookup returns a user by ID or email.
func (d *InMemoryDirectory) Lookup(_ context.Context, userID string) (*User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if u, ok := d.users[userID]; ok {
		cp := *u
		return &cp, nil
	}
	for _, u := range d.users {
		if strings.EqualFold(u.Email, userID) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}
