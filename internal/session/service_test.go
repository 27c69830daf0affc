package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadweather/roadweather/internal/dashboard"
	"github.com/roadweather/roadweather/internal/hours"
	"github.com/roadweather/roadweather/internal/session"
	"github.com/roadweather/roadweather/internal/table"
	"github.com/roadweather/roadweather/internal/warehouse"
)

type recordingReloader struct {
	mu     sync.Mutex
	ranges []hours.Range
	err    error
}

func (r *recordingReloader) Reload(_ context.Context, hr hours.Range) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ranges = append(r.ranges, hr)
	return r.err
}

func (r *recordingReloader) last() hours.Range {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ranges[len(r.ranges)-1]
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newService(t *testing.T, reloader session.Reloader) (*session.Service, *fakeClock) {
	t.Helper()

	clock := &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc := session.NewService(session.ServiceConfig{
		Repository: session.NewInMemoryRepository(),
		Reloader:   reloader,
		IdleTTL:    time.Hour,
		Logger:     zerolog.Nop(),
		Now:        clock.Now,
	})
	return svc, clock
}

func TestService_CreateInitialState(t *testing.T) {
	reloader := &recordingReloader{}
	svc, _ := newService(t, reloader)

	sess, err := svc.Create(context.Background())

	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, hours.Range{Start: 0, End: 23}, sess.Hours)
	assert.Equal(t, dashboard.ViewState{Latitude: 36.7783, Longitude: -119.4179, Zoom: 6, Pitch: 0}, sess.View)
	assert.Equal(t, []hours.Range{hours.All}, reloader.ranges)
}

func TestService_Presets(t *testing.T) {
	tests := []struct {
		preset string
		want   hours.Range
	}{
		{"midnight-4am", hours.Range{Start: 0, End: 3}},
		{"4am-8am", hours.Range{Start: 4, End: 7}},
		{"8am-noon", hours.Range{Start: 8, End: 11}},
		{"noon-4pm", hours.Range{Start: 12, End: 15}},
		{"4pm-8pm", hours.Range{Start: 16, End: 19}},
		{"8pm-midnight", hours.Range{Start: 20, End: 23}},
		{"all", hours.Range{Start: 0, End: 23}},
	}

	for _, tt := range tests {
		t.Run(tt.preset, func(t *testing.T) {
			reloader := &recordingReloader{}
			svc, _ := newService(t, reloader)
			sess, err := svc.Create(context.Background())
			require.NoError(t, err)

			got, err := svc.ApplyPreset(context.Background(), sess.ID, tt.preset)

			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Hours)
			assert.Equal(t, tt.want, reloader.last())
		})
	}
}

func TestService_SetHoursThenAllHours(t *testing.T) {
	reloader := &recordingReloader{}
	svc, _ := newService(t, reloader)
	ctx := context.Background()
	sess, err := svc.Create(ctx)
	require.NoError(t, err)

	_, err = svc.SetHours(ctx, sess.ID, 8, 11)
	require.NoError(t, err)
	got, err := svc.ApplyPreset(ctx, sess.ID, hours.PresetAll)
	require.NoError(t, err)

	assert.Equal(t, hours.Range{Start: 0, End: 23}, got.Hours)
	assert.Equal(t, []hours.Range{hours.All, {Start: 8, End: 11}, hours.All}, reloader.ranges)

	stored, err := svc.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, hours.All, stored.Hours)
}

// recordingRepo records the ranges both warehouse queries are invoked with.
type recordingRepo struct {
	mu       sync.Mutex
	highways []hours.Range
	trends   []hours.Range
}

func (r *recordingRepo) LoadHighways(_ context.Context, hr hours.Range) (*table.Table, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.highways = append(r.highways, hr)
	return table.MustNew(&table.Column{Name: warehouse.ColumnCityName, Kind: table.KindText, Values: []any{}}), nil
}

func (r *recordingRepo) LoadWeatherTrends(_ context.Context, hr hours.Range) ([]warehouse.HourlyObservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trends = append(r.trends, hr)
	return nil, nil
}

func TestService_AllHoursQueriesWarehouse(t *testing.T) {
	repo := &recordingRepo{}
	dash, err := dashboard.NewService(dashboard.ServiceConfig{Repository: repo, Logger: zerolog.Nop()})
	require.NoError(t, err)
	svc := session.NewService(session.ServiceConfig{
		Repository: session.NewInMemoryRepository(),
		Reloader:   dash,
		Logger:     zerolog.Nop(),
	})
	ctx := context.Background()

	sess, err := svc.Create(ctx)
	require.NoError(t, err)
	_, err = svc.SetHours(ctx, sess.ID, 8, 11)
	require.NoError(t, err)
	got, err := svc.ApplyPreset(ctx, sess.ID, hours.PresetAll)
	require.NoError(t, err)

	assert.Equal(t, hours.All, got.Hours)
	assert.Contains(t, repo.highways, hours.All)
	assert.Contains(t, repo.trends, hours.All)
	assert.Contains(t, repo.highways, hours.Range{Start: 8, End: 11})

	snap, err := dash.Load(ctx, got.Hours)
	require.NoError(t, err)
	assert.Equal(t, hours.All, snap.Range)
}

func TestService_SetHoursValidation(t *testing.T) {
	reloader := &recordingReloader{}
	svc, _ := newService(t, reloader)
	sess, err := svc.Create(context.Background())
	require.NoError(t, err)

	tests := []struct {
		name       string
		start, end int
	}{
		{"start after end", 12, 3},
		{"negative start", -1, 3},
		{"end past 23", 20, 24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SetHours(context.Background(), sess.ID, tt.start, tt.end)
			assert.ErrorIs(t, err, hours.ErrInvalidRange)
		})
	}

	assert.Len(t, reloader.ranges, 1, "rejected transitions do not reload")
}

func TestService_UnknownPreset(t *testing.T) {
	svc, _ := newService(t, &recordingReloader{})
	sess, err := svc.Create(context.Background())
	require.NoError(t, err)

	_, err = svc.ApplyPreset(context.Background(), sess.ID, "dawn")
	assert.ErrorIs(t, err, hours.ErrUnknownPreset)
}

func TestService_UnknownSession(t *testing.T) {
	svc, _ := newService(t, &recordingReloader{})
	ctx := context.Background()

	_, err := svc.Get(ctx, "ses_missing")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)

	_, err = svc.SetHours(ctx, "ses_missing", 1, 2)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)

	assert.ErrorIs(t, svc.End(ctx, "ses_missing"), session.ErrSessionNotFound)
}

func TestService_ReloadFailureKeepsState(t *testing.T) {
	errWarehouse := errors.New("warehouse down")
	reloader := &recordingReloader{}
	svc, _ := newService(t, reloader)
	ctx := context.Background()
	sess, err := svc.Create(ctx)
	require.NoError(t, err)

	reloader.err = errWarehouse
	got, err := svc.SetHours(ctx, sess.ID, 4, 7)

	assert.ErrorIs(t, err, errWarehouse)
	require.NotNil(t, got)
	assert.Equal(t, hours.Range{Start: 4, End: 7}, got.Hours)
}

func TestService_SetView(t *testing.T) {
	reloader := &recordingReloader{}
	svc, _ := newService(t, reloader)
	ctx := context.Background()
	sess, err := svc.Create(ctx)
	require.NoError(t, err)

	view := dashboard.ViewState{Latitude: 34.05, Longitude: -118.24, Zoom: 10, Pitch: 45}
	got, err := svc.SetView(ctx, sess.ID, view)

	require.NoError(t, err)
	assert.Equal(t, view, got.View)
	assert.Equal(t, hours.All, got.Hours)
	assert.Len(t, reloader.ranges, 1, "view changes do not reload")

	_, err = svc.SetView(ctx, sess.ID, dashboard.ViewState{Latitude: 91})
	assert.ErrorIs(t, err, session.ErrInvalidView)
}

func TestService_EndAndExpireIdle(t *testing.T) {
	svc, clock := newService(t, &recordingReloader{})
	ctx := context.Background()

	ended, err := svc.Create(ctx)
	require.NoError(t, err)
	idle, err := svc.Create(ctx)
	require.NoError(t, err)
	active, err := svc.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.End(ctx, ended.ID))

	clock.Advance(45 * time.Minute)
	_, err = svc.Get(ctx, active.ID)
	require.NoError(t, err)
	clock.Advance(30 * time.Minute)

	removed, err := svc.ExpireIdle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = svc.Get(ctx, idle.ID)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	_, err = svc.Get(ctx, active.ID)
	assert.NoError(t, err)

	count, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
