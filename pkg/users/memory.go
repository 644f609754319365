package users

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Directory for tests and local development.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	byMail map[string]*User
}

var _ Directory = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory directory.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1, byMail: make(map[string]*User)}
}

// GetByEmail returns the user for the canonical email, or ErrNotFound.
func (m *MemoryStore) GetByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byMail[email]; ok {
		cloned := *u
		return &cloned, nil
	}
	return nil, ErrNotFound
}

// Create inserts a user, returning the existing one on duplicate email.
func (m *MemoryStore) Create(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byMail[email]; ok {
		cloned := *u
		return &cloned, nil
	}
	u := &User{
		ID:        m.nextID,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	m.nextID++
	m.byMail[email] = u
	cloned := *u
	return &cloned, nil
}
