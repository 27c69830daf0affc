// Package handler provides HTTP handlers for the road weather API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/roadweather/roadweather/internal/api/models"
	"github.com/roadweather/roadweather/internal/api/response"
	"github.com/roadweather/roadweather/internal/dashboard"
	"github.com/roadweather/roadweather/internal/resilience"
)

// readinessTimeout bounds the warehouse ping of the readiness check.
const readinessTimeout = 2 * time.Second

// Pinger checks a dependency's connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CacheReporter exposes load cache statistics.
type CacheReporter interface {
	CacheStats() dashboard.CacheStats
	City() string
}

// SessionCounter counts live sessions.
type SessionCounter interface {
	Count(ctx context.Context) (int, error)
}

// MetricsReporter exposes background job metrics.
type MetricsReporter interface {
	MetricsSnapshot() map[string]interface{}
}

// OpsConfig holds the dependencies of the ops endpoints. Every field but
// Version and BuildTime is optional.
type OpsConfig struct {
	Version   string
	BuildTime string
	Warehouse Pinger
	Registry  *resilience.Registry
	Cache     CacheReporter
	Sessions  SessionCounter
	Warmup    MetricsReporter
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check. The service is
// ready once the warehouse answers a ping.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}

	if h.cfg.Warehouse != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		if err := h.cfg.Warehouse.Ping(ctx); err != nil {
			health.Status = models.HealthStatusFail
			health.Details = map[string]interface{}{"warehouse": err.Error()}
			response.JSON(w, r, http.StatusServiceUnavailable, health)
			return
		}
	}
	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - dependency, cache and session
// status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:       models.HealthStatusOK,
		Time:         models.Timestamp(time.Now()),
		Dependencies: []models.DependencyStatus{},
	}

	if h.cfg.Registry != nil {
		for _, dep := range h.cfg.Registry.GetAllHealth() {
			ds := dependencyStatus(dep)
			status.Dependencies = append(status.Dependencies, ds)
			status.Status = worst(status.Status, ds.Status)
		}
	}

	if h.cfg.Cache != nil {
		stats := h.cfg.Cache.CacheStats()
		status.City = h.cfg.Cache.City()
		status.Cache = models.CacheStatus{
			Size:     stats.Size,
			Capacity: stats.Capacity,
			Hits:     stats.Hits,
			Misses:   stats.Misses,
		}
	}

	if h.cfg.Sessions != nil {
		if n, err := h.cfg.Sessions.Count(r.Context()); err == nil {
			status.Sessions = n
		}
	}

	if h.cfg.Warmup != nil {
		status.Warmup = h.cfg.Warmup.MetricsSnapshot()
	}

	response.JSON(w, r, http.StatusOK, status)
}

func dependencyStatus(dep *resilience.DependencyHealth) models.DependencyStatus {
	ds := models.DependencyStatus{
		Name:          dep.Name,
		Status:        models.HealthStatusOK,
		CircuitState:  dep.CircuitState.String(),
		Failures:      dep.Counts.ConsecutiveFailures,
		LastSuccessAt: models.TimestampPtr(dep.LastSuccessAt),
		LastFailureAt: models.TimestampPtr(dep.LastFailureAt),
	}
	switch dep.CircuitState {
	case gobreaker.StateOpen:
		ds.Status = models.HealthStatusFail
	case gobreaker.StateHalfOpen:
		ds.Status = models.HealthStatusDegraded
	}
	if dep.LastError != "" {
		msg := dep.LastError
		ds.Message = &msg
	}
	return ds
}

func worst(a, b models.HealthStatus) models.HealthStatus {
	rank := map[models.HealthStatus]int{
		models.HealthStatusOK:       0,
		models.HealthStatusDegraded: 1,
		models.HealthStatusFail:     2,
	}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
