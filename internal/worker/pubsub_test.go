package worker_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/roadweather/roadweather/internal/hours"
	"github.com/roadweather/roadweather/internal/worker"
)

type fakePurger struct{ purges int }

func (p *fakePurger) Purge() { p.purges++ }

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func newProcessor(loader *fakeLoader, purger worker.Purger, pinger worker.Pinger) *worker.MessageProcessor {
	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.RefreshConfig{Ranges: []hours.Range{hours.All, {Start: 8, End: 11}}},
		Logger: zerolog.Nop(),
		Loader: loader,
	})
	return worker.NewMessageProcessor(job, purger, pinger, zerolog.Nop())
}

func TestMessageProcessor_DatasetRefresh(t *testing.T) {
	loader := &fakeLoader{}
	purger := &fakePurger{}
	p := newProcessor(loader, purger, nil)

	ack := p.Process(context.Background(), []byte(`{"job_type":"dataset_refresh","table":"historical.top_city_hourly_imperial"}`))

	assert.True(t, ack)
	assert.Equal(t, 1, purger.purges)
	assert.Len(t, loader.loaded, 2)
}

func TestMessageProcessor_WarmOnly(t *testing.T) {
	purger := &fakePurger{}
	p := newProcessor(&fakeLoader{}, purger, nil)

	assert.True(t, p.Process(context.Background(), []byte(`{"job_type":"dataset_refresh","warm_only":true}`)))
	assert.Zero(t, purger.purges)
}

func TestMessageProcessor_RefreshFailureNacks(t *testing.T) {
	errDown := errors.New("down")
	loader := &fakeLoader{fail: map[hours.Range]error{
		hours.All:           errDown,
		{Start: 8, End: 11}: errDown,
	}}
	p := newProcessor(loader, &fakePurger{}, nil)

	assert.False(t, p.Process(context.Background(), []byte(`{"job_type":"dataset_refresh"}`)))
}

func TestMessageProcessor_HealthCheck(t *testing.T) {
	ok := newProcessor(&fakeLoader{}, nil, fakePinger{})
	assert.True(t, ok.Process(context.Background(), []byte(`{"job_type":"health_check"}`)))

	failing := newProcessor(&fakeLoader{}, nil, fakePinger{err: errors.New("no route")})
	assert.False(t, failing.Process(context.Background(), []byte(`{"job_type":"health_check"}`)))
}

func TestMessageProcessor_DropsBadMessages(t *testing.T) {
	loader := &fakeLoader{}
	p := newProcessor(loader, &fakePurger{}, nil)

	assert.True(t, p.Process(context.Background(), []byte(`not json`)))
	assert.True(t, p.Process(context.Background(), []byte(`{"job_type":"reindex"}`)))
	assert.Empty(t, loader.loaded)
}
