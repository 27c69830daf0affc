package resilience

import (
	"context"
	"errors"

	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// GuardConfig configures a Guard.
type GuardConfig struct {
	// Name identifies the protected dependency.
	Name string

	// CircuitBreaker overrides DefaultCircuitBreakerConfig(Name).
	CircuitBreaker *CircuitBreakerConfig

	// Registry receives health updates. Optional.
	Registry *Registry
}

// Guard runs calls to one dependency through a circuit breaker. Calls are
// never retried: a failure is returned to the caller as is.
type Guard[T any] struct {
	name     string
	cb       *gobreaker.CircuitBreaker[T]
	registry *Registry
}

// NewGuard creates a Guard and registers it with cfg.Registry.
func NewGuard[T any](cfg GuardConfig) *Guard[T] {
	cbConfig := DefaultCircuitBreakerConfig(cfg.Name)
	if cfg.CircuitBreaker != nil {
		cbConfig = *cfg.CircuitBreaker
		cbConfig.Name = cfg.Name
	}
	if cbConfig.IsSuccessful == nil {
		cbConfig.IsSuccessful = ignoreCancellation
	}

	g := &Guard[T]{
		name:     cfg.Name,
		cb:       NewCircuitBreaker[T](cbConfig),
		registry: cfg.Registry,
	}
	if g.registry != nil {
		g.registry.Register(cfg.Name, g)
	}
	return g
}

// Execute runs fn unless the breaker is open.
func (g *Guard[T]) Execute(ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	result, err := g.cb.Execute(func() (T, error) {
		return fn(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			var zero T
			return zero, ErrCircuitOpen
		}
		if g.registry != nil {
			g.registry.RecordFailure(g.name, err)
		}
		return result, err
	}

	if g.registry != nil {
		g.registry.RecordSuccess(g.name)
	}
	return result, nil
}

// Name returns the dependency name.
func (g *Guard[T]) Name() string {
	return g.name
}

// State returns the current breaker state.
func (g *Guard[T]) State() gobreaker.State {
	return g.cb.State()
}

// Counts returns the current breaker counts.
func (g *Guard[T]) Counts() gobreaker.Counts {
	return g.cb.Counts()
}

// ignoreCancellation keeps client disconnects from tripping the breaker.
func ignoreCancellation(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}
