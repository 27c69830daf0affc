package session

import (
	"context"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository.
// Sessions live only as long as the process.
type InMemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewInMemoryRepository creates a new in-memory session repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		sessions: make(map[string]*Session),
	}
}

// Get retrieves a session by ID.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}

	// Return a copy
	cpy := *s
	return &cpy, nil
}

// Create stores a new session.
func (r *InMemoryRepository) Create(_ context.Context, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *s
	r.sessions[s.ID] = &cpy
	return nil
}

// Update replaces an existing session.
func (r *InMemoryRepository) Update(_ context.Context, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.ID]; !ok {
		return ErrSessionNotFound
	}

	cpy := *s
	r.sessions[s.ID] = &cpy
	return nil
}

// Delete removes a session by ID.
func (r *InMemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(r.sessions, id)
	return nil
}

// DeleteIdle removes sessions last seen before cutoff.
func (r *InMemoryRepository) DeleteIdle(_ context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, s := range r.sessions {
		if s.LastSeenAt.Before(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// Count returns the number of stored sessions.
func (r *InMemoryRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions), nil
}

var _ Repository = (*InMemoryRepository)(nil)
