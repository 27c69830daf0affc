package warehouse

import (
	"context"
	"errors"
	"fmt"

	"github.com/roadweather/roadweather/internal/hours"
	"github.com/roadweather/roadweather/internal/resilience"
	"github.com/roadweather/roadweather/internal/table"
)

// DependencyName is the registry name of the warehouse breaker.
const DependencyName = "warehouse"

// GuardedRepository wraps a Repository with a circuit breaker. Failed queries
// are not retried; once the breaker opens, calls fail fast with
// ErrUnavailable until it half-opens again.
type GuardedRepository struct {
	next  Repository
	guard *resilience.Guard[any]
}

// NewGuardedRepository wraps next and registers the breaker with registry,
// which may be nil.
func NewGuardedRepository(next Repository, registry *resilience.Registry) *GuardedRepository {
	return &GuardedRepository{
		next: next,
		guard: resilience.NewGuard[any](resilience.GuardConfig{
			Name:     DependencyName,
			Registry: registry,
		}),
	}
}

// LoadHighways delegates to the wrapped repository through the breaker.
func (g *GuardedRepository) LoadHighways(ctx context.Context, r hours.Range) (*table.Table, error) {
	result, err := g.guard.Execute(ctx, func(ctx context.Context) (any, error) {
		return g.next.LoadHighways(ctx, r)
	})
	if err != nil {
		return nil, mapGuardError(err)
	}
	t, _ := result.(*table.Table)
	return t, nil
}

// LoadWeatherTrends delegates to the wrapped repository through the breaker.
func (g *GuardedRepository) LoadWeatherTrends(ctx context.Context, r hours.Range) ([]HourlyObservation, error) {
	result, err := g.guard.Execute(ctx, func(ctx context.Context) (any, error) {
		return g.next.LoadWeatherTrends(ctx, r)
	})
	if err != nil {
		return nil, mapGuardError(err)
	}
	obs, _ := result.([]HourlyObservation)
	return obs, nil
}

// Ping checks the wrapped repository when it supports it. Pings bypass the
// breaker so readiness reflects the live connection.
func (g *GuardedRepository) Ping(ctx context.Context) error {
	if p, ok := g.next.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func mapGuardError(err error) error {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}

var _ Repository = (*GuardedRepository)(nil)
