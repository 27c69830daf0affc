package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DefaultSweepInterval is how often idle sessions are expired.
const DefaultSweepInterval = 5 * time.Minute

// Expirer removes idle sessions.
type Expirer interface {
	ExpireIdle(ctx context.Context) (int, error)
}

// SessionSweeper periodically expires idle sessions.
type SessionSweeper struct {
	expirer  Expirer
	interval time.Duration
	logger   zerolog.Logger
}

// NewSessionSweeper creates a sweeper. A non-positive interval uses
// DefaultSweepInterval.
func NewSessionSweeper(expirer Expirer, interval time.Duration, logger zerolog.Logger) *SessionSweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &SessionSweeper{
		expirer:  expirer,
		interval: interval,
		logger:   logger,
	}
}

// Start sweeps on every tick until ctx is cancelled.
func (s *SessionSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Msg("starting session sweeper")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("session sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs a single expiry pass.
func (s *SessionSweeper) Sweep(ctx context.Context) int {
	removed, err := s.expirer.ExpireIdle(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("session sweep failed")
		return 0
	}
	return removed
}
