package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/roadweather/roadweather/internal/hours"
)

// Loader loads the dashboard data for an hour range.
type Loader interface {
	Reload(ctx context.Context, r hours.Range) error
}

// RefreshJob warms the dashboard load cache.
type RefreshJob struct {
	config RefreshConfig
	logger zerolog.Logger
	loader Loader

	metrics *RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalRuns      int64
	RangesLoaded   int64
	RangesFailed   int64
	LastRunAt      time.Time
	LastRunTook    time.Duration
	TotalRunTime   time.Duration
	LastRunSuccess bool
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config RefreshConfig
	Logger zerolog.Logger
	Loader Loader
}

// NewRefreshJob creates a new warm-up job.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	return &RefreshJob{
		config:  cfg.Config.withDefaults(),
		logger:  cfg.Logger,
		loader:  cfg.Loader,
		metrics: &RefreshMetrics{},
	}
}

// RefreshResult contains the result of a warm-up run.
type RefreshResult struct {
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
	TotalRanges int
	Successful  int
	Failed      int
	Errors      []RefreshError
}

// RefreshError records a range that could not be loaded.
type RefreshError struct {
	Range hours.Range
	Error string
}

// Run loads every configured range.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	startTime := time.Now()
	ranges := j.config.Ranges
	result := &RefreshResult{
		StartTime:   startTime,
		TotalRanges: len(ranges),
	}

	j.logger.Info().
		Int("total_ranges", result.TotalRanges).
		Int("concurrency", j.config.Concurrency).
		Msg("starting cache warm-up")

	rangesChan := make(chan hours.Range, len(ranges))
	resultsChan := make(chan rangeResult, len(ranges))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.refreshWorker(ctx, rangesChan, resultsChan)
		}()
	}

	for _, r := range ranges {
		rangesChan <- r
	}
	close(rangesChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for rr := range resultsChan {
		if rr.err == nil {
			result.Successful++
			continue
		}
		result.Failed++
		result.Errors = append(result.Errors, RefreshError{Range: rr.r, Error: rr.err.Error()})
	}

	// Ranges never picked up because ctx ended count as failures.
	if skipped := result.TotalRanges - result.Successful - result.Failed; skipped > 0 {
		result.Failed += skipped
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("cache warm-up completed")

	return result
}

type rangeResult struct {
	r   hours.Range
	err error
}

func (j *RefreshJob) refreshWorker(ctx context.Context, ranges <-chan hours.Range, results chan<- rangeResult) {
	for r := range ranges {
		select {
		case <-ctx.Done():
			return
		default:
			results <- rangeResult{r: r, err: j.refreshRange(ctx, r)}
		}
	}
}

func (j *RefreshJob) refreshRange(ctx context.Context, r hours.Range) error {
	rangeCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	if err := j.loader.Reload(rangeCtx, r); err != nil {
		j.logger.Warn().Err(err).Str("hours", r.String()).Msg("failed to warm range")
		return err
	}
	j.logger.Debug().Str("hours", r.String()).Msg("range warmed")
	return nil
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.RangesLoaded += int64(result.Successful)
	j.metrics.RangesFailed += int64(result.Failed)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunTook = result.Duration
	j.metrics.TotalRunTime += result.Duration
	j.metrics.LastRunSuccess = result.Failed == 0
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRuns:      j.metrics.TotalRuns,
		RangesLoaded:   j.metrics.RangesLoaded,
		RangesFailed:   j.metrics.RangesFailed,
		LastRunAt:      j.metrics.LastRunAt,
		LastRunTook:    j.metrics.LastRunTook,
		TotalRunTime:   j.metrics.TotalRunTime,
		LastRunSuccess: j.metrics.LastRunSuccess,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *RefreshJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":       m.TotalRuns,
		"ranges_loaded":    m.RangesLoaded,
		"ranges_failed":    m.RangesFailed,
		"last_run_at":      m.LastRunAt,
		"last_run_took":    m.LastRunTook.String(),
		"total_run_time":   m.TotalRunTime.String(),
		"last_run_success": m.LastRunSuccess,
	}
}
