// Package worker provides background jobs for the dashboard: warming the
// load cache for the hour presets, expiring idle sessions and reacting to
// warehouse refresh notifications.
package worker

import (
	"time"

	"github.com/roadweather/roadweather/internal/hours"
)

// RefreshConfig holds configuration for the cache warm-up job.
type RefreshConfig struct {
	// Ranges are the hour ranges to load.
	// If empty, uses DefaultRefreshRanges.
	Ranges []hours.Range

	// Concurrency is the number of ranges loaded at once.
	// Default: 3
	Concurrency int

	// Timeout is the timeout for loading a single range.
	// Default: 30 seconds
	Timeout time.Duration
}

// DefaultRefreshConfig returns the default warm-up configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Ranges:      DefaultRefreshRanges(),
		Concurrency: 3,
		Timeout:     30 * time.Second,
	}
}

// DefaultRefreshRanges returns the range of every preset button, whole day
// first since every new session opens on it.
func DefaultRefreshRanges() []hours.Range {
	presets := hours.Presets()
	ranges := make([]hours.Range, 0, len(presets))
	ranges = append(ranges, hours.All)
	for _, p := range presets {
		if p.Range != hours.All {
			ranges = append(ranges, p.Range)
		}
	}
	return ranges
}

// RangesForPresets resolves preset ids to their ranges, skipping duplicates.
func RangesForPresets(ids []string) ([]hours.Range, error) {
	seen := make(map[hours.Range]bool, len(ids))
	ranges := make([]hours.Range, 0, len(ids))
	for _, id := range ids {
		p, err := hours.LookupPreset(id)
		if err != nil {
			return nil, err
		}
		if seen[p.Range] {
			continue
		}
		seen[p.Range] = true
		ranges = append(ranges, p.Range)
	}
	return ranges, nil
}

// withDefaults fills unset fields.
func (c RefreshConfig) withDefaults() RefreshConfig {
	def := DefaultRefreshConfig()
	if len(c.Ranges) == 0 {
		c.Ranges = def.Ranges
	}
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	return c
}
