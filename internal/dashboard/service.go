package dashboard

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/roadweather/roadweather/internal/geometry"
	"github.com/roadweather/roadweather/internal/hours"
	"github.com/roadweather/roadweather/internal/table"
	"github.com/roadweather/roadweather/internal/warehouse"
)

const instrumentationName = "github.com/roadweather/roadweather/internal/dashboard"

// DefaultCacheSize is the number of hour ranges kept in the load cache.
const DefaultCacheSize = 64

// ServiceConfig holds configuration for the dashboard service.
type ServiceConfig struct {
	// Repository runs the highway and weather queries.
	Repository warehouse.Repository

	// City is the target city shown in titles and notices.
	City string

	// CacheSize bounds the load cache (default: 64 ranges).
	CacheSize int

	// Logger for service operations.
	Logger zerolog.Logger
}

// CacheStats describes the load cache.
type CacheStats struct {
	Size     int   `json:"size"`
	Capacity int   `json:"capacity"`
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
}

// Service loads and memoizes snapshots per hour range and builds the
// dashboard payloads from them. Both queries are pure functions of the
// range, so a snapshot stays valid until Purge is called.
type Service struct {
	repo     warehouse.Repository
	city     string
	logger   zerolog.Logger
	capacity int

	cache *lru.Cache[hours.Range, *Snapshot]
	group singleflight.Group

	// generation counts purges. A load started under an older generation
	// is returned to its callers but never cached.
	purgeMu    sync.Mutex
	generation atomic.Uint64

	hits   atomic.Int64
	misses atomic.Int64

	tracer       trace.Tracer
	cacheHits    metric.Int64Counter
	cacheMisses  metric.Int64Counter
	loadDuration metric.Float64Histogram
}

// NewService creates a new dashboard service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Repository == nil {
		return nil, fmt.Errorf("dashboard: repository is required")
	}

	capacity := cfg.CacheSize
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}

	city := cfg.City
	if city == "" {
		city = warehouse.DefaultPostgresConfig().City
	}

	cache, err := lru.New[hours.Range, *Snapshot](capacity)
	if err != nil {
		return nil, fmt.Errorf("create load cache: %w", err)
	}

	meter := otel.Meter(instrumentationName)

	cacheHits, err := meter.Int64Counter(
		"dashboard.cache.hits",
		metric.WithDescription("Number of loads served from the cache"),
		metric.WithUnit("{load}"),
	)
	if err != nil {
		return nil, err
	}

	cacheMisses, err := meter.Int64Counter(
		"dashboard.cache.misses",
		metric.WithDescription("Number of loads that queried the warehouse"),
		metric.WithUnit("{load}"),
	)
	if err != nil {
		return nil, err
	}

	loadDuration, err := meter.Float64Histogram(
		"dashboard.load.duration",
		metric.WithDescription("Duration of warehouse loads in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Service{
		repo:         cfg.Repository,
		city:         city,
		logger:       cfg.Logger,
		capacity:     capacity,
		cache:        cache,
		tracer:       otel.Tracer(instrumentationName),
		cacheHits:    cacheHits,
		cacheMisses:  cacheMisses,
		loadDuration: loadDuration,
	}, nil
}

// City returns the target city.
func (s *Service) City() string {
	return s.city
}

// Load returns the snapshot for r, querying the warehouse on a cache miss.
// Concurrent misses for the same range share one round trip.
func (s *Service) Load(ctx context.Context, r hours.Range) (*Snapshot, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d-%d", hours.ErrInvalidRange, r.Start, r.End)
	}

	attrs := metric.WithAttributes(attribute.String("hours", r.String()))
	if snap, ok := s.cache.Get(r); ok {
		s.hits.Add(1)
		s.cacheHits.Add(ctx, 1, attrs)
		return snap, nil
	}
	s.misses.Add(1)
	s.cacheMisses.Add(ctx, 1, attrs)

	gen := s.generation.Load()
	key := strconv.FormatUint(gen, 10) + "/" + r.String()

	// The shared load must not be cancelled by whichever caller started it.
	ch := s.group.DoChan(key, func() (any, error) {
		if snap, ok := s.cache.Peek(r); ok {
			return snap, nil
		}
		snap, err := s.fetch(context.WithoutCancel(ctx), r)
		if err != nil {
			return nil, err
		}
		s.store(gen, r, snap)
		return snap, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	}
}

// Reload makes sure the snapshot for r is loaded.
func (s *Service) Reload(ctx context.Context, r hours.Range) error {
	_, err := s.Load(ctx, r)
	return err
}

// Purge drops every cached snapshot. Loads already in flight still answer
// their callers but are not cached.
func (s *Service) Purge() {
	s.purgeMu.Lock()
	s.generation.Add(1)
	s.cache.Purge()
	s.purgeMu.Unlock()
	s.logger.Info().Msg("load cache purged")
}

func (s *Service) store(gen uint64, r hours.Range, snap *Snapshot) {
	s.purgeMu.Lock()
	defer s.purgeMu.Unlock()
	if s.generation.Load() != gen {
		s.logger.Debug().Str("hours", r.String()).Msg("discarding load started before purge")
		return
	}
	s.cache.Add(r, snap)
}

// CacheStats returns the current cache statistics.
func (s *Service) CacheStats() CacheStats {
	return CacheStats{
		Size:     s.cache.Len(),
		Capacity: s.capacity,
		Hits:     s.hits.Load(),
		Misses:   s.misses.Load(),
	}
}

// fetch runs both queries concurrently and decimates every geometry.
func (s *Service) fetch(ctx context.Context, r hours.Range) (*Snapshot, error) {
	ctx, span := s.tracer.Start(ctx, "dashboard.load",
		trace.WithAttributes(
			attribute.Int("hours.start", r.Start),
			attribute.Int("hours.end", r.End),
		),
	)
	defer span.End()

	start := time.Now()

	var (
		highways     *table.Table
		observations []warehouse.HourlyObservation
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		highways, err = s.repo.LoadHighways(gctx, r)
		if err != nil {
			return fmt.Errorf("load highways: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		observations, err = s.repo.LoadWeatherTrends(gctx, r)
		if err != nil {
			return fmt.Errorf("load weather trends: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error().Err(err).
			Int("hour_start", r.Start).
			Int("hour_end", r.End).
			Msg("dashboard load failed")
		return nil, err
	}

	if highways == nil {
		highways = table.MustNew()
	}

	paths := make([]geometry.Path, highways.Len())
	if geo, ok := highways.Column(warehouse.ColumnGeometry); ok {
		for i, v := range geo.Values {
			paths[i] = geometry.Decimate(v)
		}
	}

	snap := &Snapshot{
		Range:        r,
		City:         s.city,
		Highways:     highways,
		Paths:        paths,
		Observations: observations,
		LoadedAt:     time.Now(),
	}

	elapsed := time.Since(start)
	s.loadDuration.Record(ctx, elapsed.Seconds())
	span.SetAttributes(
		attribute.Int("highways.rows", highways.Len()),
		attribute.Int("weather.observations", len(observations)),
	)

	s.logger.Info().
		Int("hour_start", r.Start).
		Int("hour_end", r.End).
		Int("rows", highways.Len()).
		Int("valid_paths", snap.ValidPaths()).
		Int("observations", len(observations)).
		Dur("duration", elapsed).
		Msg("dashboard data loaded")

	return snap, nil
}

// Summary loads r and builds the summary metrics.
func (s *Service) Summary(ctx context.Context, r hours.Range) (*Summary, error) {
	snap, err := s.Load(ctx, r)
	if err != nil {
		return nil, err
	}
	return BuildSummary(snap), nil
}

// Map loads r and builds the map payload for view.
func (s *Service) Map(ctx context.Context, r hours.Range, view ViewState, opts MapOptions) (*MapPayload, error) {
	snap, err := s.Load(ctx, r)
	if err != nil {
		return nil, err
	}

	payload, skipped := BuildMap(snap, view, opts)
	if len(skipped) > 0 {
		s.logger.Debug().Strs("columns", skipped).Msg("columns left unsanitized")
	}
	return payload, nil
}

// Trends loads r and builds the weather trend charts.
func (s *Service) Trends(ctx context.Context, r hours.Range) (*Trends, error) {
	snap, err := s.Load(ctx, r)
	if err != nil {
		return nil, err
	}
	return BuildTrends(snap), nil
}

// Analytics loads r and builds the highway analytics.
func (s *Service) Analytics(ctx context.Context, r hours.Range) (*Analytics, error) {
	snap, err := s.Load(ctx, r)
	if err != nil {
		return nil, err
	}
	return BuildAnalytics(snap), nil
}
