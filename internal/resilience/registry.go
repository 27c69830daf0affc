package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Breaker exposes the breaker state of a registered dependency.
type Breaker interface {
	State() gobreaker.State
	Counts() gobreaker.Counts
}

// DependencyHealth represents the health status of a dependency.
type DependencyHealth struct {
	// Name is the dependency identifier.
	Name string

	// CircuitState is the current circuit breaker state.
	CircuitState gobreaker.State

	// Counts contains circuit breaker statistics.
	Counts gobreaker.Counts

	// LastSuccessAt is the timestamp of the last successful call.
	LastSuccessAt *time.Time

	// LastFailureAt is the timestamp of the last failed call.
	LastFailureAt *time.Time

	// LastError is the most recent error message, if any.
	LastError string
}

// IsHealthy returns true if the dependency is considered healthy.
func (h *DependencyHealth) IsHealthy() bool {
	return h.CircuitState == gobreaker.StateClosed
}

// IsDegraded returns true if the dependency is in a degraded state (half-open).
func (h *DependencyHealth) IsDegraded() bool {
	return h.CircuitState == gobreaker.StateHalfOpen
}

// IsUnhealthy returns true if the dependency is unhealthy (circuit open).
func (h *DependencyHealth) IsUnhealthy() bool {
	return h.CircuitState == gobreaker.StateOpen
}

// Registry tracks guarded dependencies and their health status.
type Registry struct {
	mu           sync.RWMutex
	dependencies map[string]*registeredDependency
}

type registeredDependency struct {
	breaker       Breaker
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewRegistry creates a new dependency registry.
func NewRegistry() *Registry {
	return &Registry{
		dependencies: make(map[string]*registeredDependency),
	}
}

// Register adds a dependency to the registry.
func (r *Registry) Register(name string, breaker Breaker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dependencies[name] = &registeredDependency{
		breaker: breaker,
	}
}

// Unregister removes a dependency from the registry.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.dependencies, name)
}

// RecordSuccess records a successful call.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.dependencies[name]; ok {
		now := time.Now()
		d.lastSuccessAt = &now
	}
}

// RecordFailure records a failed call.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.dependencies[name]; ok {
		now := time.Now()
		d.lastFailureAt = &now
		if err != nil {
			d.lastError = err.Error()
		}
	}
}

// GetHealth returns the health status of a specific dependency.
func (r *Registry) GetHealth(name string) *DependencyHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.dependencies[name]
	if !ok {
		return nil
	}
	return d.health(name)
}

// GetAllHealth returns the health of every dependency, sorted by name.
func (r *Registry) GetAllHealth() []*DependencyHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	health := make([]*DependencyHealth, 0, len(r.dependencies))
	for name, d := range r.dependencies {
		health = append(health, d.health(name))
	}
	sort.Slice(health, func(i, j int) bool { return health[i].Name < health[j].Name })
	return health
}

// Count returns the number of registered dependencies.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.dependencies)
}

func (d *registeredDependency) health(name string) *DependencyHealth {
	return &DependencyHealth{
		Name:          name,
		CircuitState:  d.breaker.State(),
		Counts:        d.breaker.Counts(),
		LastSuccessAt: d.lastSuccessAt,
		LastFailureAt: d.lastFailureAt,
		LastError:     d.lastError,
	}
}
