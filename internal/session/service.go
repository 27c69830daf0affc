package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/roadweather/roadweather/internal/dashboard"
	"github.com/roadweather/roadweather/internal/hours"
)

// DefaultIdleTTL is how long an untouched session is kept.
const DefaultIdleTTL = 2 * time.Hour

// Reloader loads the dashboard data for an hour range.
type Reloader interface {
	Reload(ctx context.Context, r hours.Range) error
}

// ServiceConfig holds configuration for the session service.
type ServiceConfig struct {
	// Repository stores sessions.
	Repository Repository

	// Reloader is called with the new range after every hour transition.
	Reloader Reloader

	// IdleTTL is how long an untouched session lives (default: 2 hours).
	IdleTTL time.Duration

	// Logger for service operations.
	Logger zerolog.Logger

	// Now returns the current time (default: time.Now).
	Now func() time.Time
}

// Service provides the session state machine.
type Service struct {
	repo     Repository
	reloader Reloader
	idleTTL  time.Duration
	logger   zerolog.Logger
	now      func() time.Time

	// mu serializes read-modify-write transitions.
	mu sync.Mutex
}

// NewService creates a new session service.
func NewService(cfg ServiceConfig) *Service {
	idleTTL := cfg.IdleTTL
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		repo:     cfg.Repository,
		reloader: cfg.Reloader,
		idleTTL:  idleTTL,
		logger:   cfg.Logger,
		now:      now,
	}
}

// Create starts a session in the initial state and loads its data.
func (s *Service) Create(ctx context.Context) (*Session, error) {
	sess := New("ses_"+uuid.New().String(), s.now())
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.logger.Info().Str("session_id", sess.ID).Msg("session created")

	if err := s.reload(ctx, sess); err != nil {
		return sess, err
	}
	return sess, nil
}

// Get returns a session and marks it as seen.
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	return s.transition(ctx, id, func(*Session) error { return nil })
}

// SetHours sets the hour range directly and reloads.
func (s *Service) SetHours(ctx context.Context, id string, start, end int) (*Session, error) {
	r, err := hours.NewRange(start, end)
	if err != nil {
		return nil, err
	}
	return s.setRange(ctx, id, r)
}

// ApplyPreset sets the hour range to a preset and reloads.
func (s *Service) ApplyPreset(ctx context.Context, id, presetID string) (*Session, error) {
	p, err := hours.LookupPreset(presetID)
	if err != nil {
		return nil, err
	}
	return s.setRange(ctx, id, p.Range)
}

// SetView stores the map camera. The hour range is unchanged, so nothing is
// reloaded.
func (s *Service) SetView(ctx context.Context, id string, view dashboard.ViewState) (*Session, error) {
	if err := ValidateView(view); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, func(sess *Session) error {
		sess.View = view
		sess.UpdatedAt = s.now()
		return nil
	})
}

// End removes a session.
func (s *Service) End(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("session_id", id).Msg("session ended")
	return nil
}

// ExpireIdle removes sessions idle for longer than the configured TTL.
func (s *Service) ExpireIdle(ctx context.Context) (int, error) {
	removed, err := s.repo.DeleteIdle(ctx, s.now().Add(-s.idleTTL))
	if err != nil {
		return 0, fmt.Errorf("expire idle sessions: %w", err)
	}
	if removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("idle sessions expired")
	}
	return removed, nil
}

// Count returns the number of live sessions.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// setRange moves a session to r and reloads. The new state is kept even
// when the reload fails; the error is returned to the caller.
func (s *Service) setRange(ctx context.Context, id string, r hours.Range) (*Session, error) {
	sess, err := s.transition(ctx, id, func(sess *Session) error {
		sess.Hours = r
		sess.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("session_id", id).
		Int("hour_start", r.Start).
		Int("hour_end", r.End).
		Msg("hour range changed")

	if err := s.reload(ctx, sess); err != nil {
		return sess, err
	}
	return sess, nil
}

func (s *Service) transition(ctx context.Context, id string, apply func(*Session) error) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(sess); err != nil {
		return nil, err
	}
	sess.LastSeenAt = s.now()

	if err := s.repo.Update(ctx, sess); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update session: %w", err)
	}
	return sess, nil
}

func (s *Service) reload(ctx context.Context, sess *Session) error {
	if s.reloader == nil {
		return nil
	}
	if err := s.reloader.Reload(ctx, sess.Hours); err != nil {
		return fmt.Errorf("reload %s: %w", sess.Hours, err)
	}
	return nil
}
