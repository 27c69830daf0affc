package session

import (
	"context"
	"time"
)

// Repository defines the interface for session persistence.
type Repository interface {
	// Get retrieves a session by ID.
	// Returns ErrSessionNotFound if the session doesn't exist.
	Get(ctx context.Context, id string) (*Session, error)

	// Create stores a new session.
	Create(ctx context.Context, s *Session) error

	// Update replaces an existing session.
	Update(ctx context.Context, s *Session) error

	// Delete removes a session by ID.
	Delete(ctx context.Context, id string) error

	// DeleteIdle removes sessions last seen before cutoff and returns how
	// many were removed.
	DeleteIdle(ctx context.Context, cutoff time.Time) (int, error)

	// Count returns the number of stored sessions.
	Count(ctx context.Context) (int, error)
}
