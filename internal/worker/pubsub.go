package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Job types carried in notification messages.
const (
	JobDatasetRefresh = "dataset_refresh"
	JobHealthCheck    = "health_check"
)

// ErrWarmUpFailed is returned when most ranges of a warm-up failed.
var ErrWarmUpFailed = errors.New("cache warm-up failed")

// Purger drops every cached dashboard snapshot.
type Purger interface {
	Purge()
}

// Pinger checks warehouse connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PubSubHandler reacts to warehouse notifications delivered over Pub/Sub.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	processor        *MessageProcessor
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Processor        *MessageProcessor
	Logger           zerolog.Logger
}

// RefreshMessage is a warehouse notification.
type RefreshMessage struct {
	JobType string `json:"job_type"`

	// Table names the refreshed table, for logging only.
	Table string `json:"table,omitempty"`

	// WarmOnly skips the purge and only warms missing ranges.
	WarmOnly bool `json:"warm_only,omitempty"`
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Refreshes are heavy; handle a few at a time.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 2
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		processor:        cfg.Processor,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages. It blocks until ctx is done.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.logger.Debug().
			Str("message_id", msg.ID).
			Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
			Msg("received pubsub message")

		if h.processor.Process(ctx, msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

// MessageProcessor executes notification jobs independently of the transport.
type MessageProcessor struct {
	job    *RefreshJob
	purger Purger
	pinger Pinger
	logger zerolog.Logger
}

// NewMessageProcessor creates a processor. purger and pinger may be nil.
func NewMessageProcessor(job *RefreshJob, purger Purger, pinger Pinger, logger zerolog.Logger) *MessageProcessor {
	return &MessageProcessor{
		job:    job,
		purger: purger,
		pinger: pinger,
		logger: logger,
	}
}

// Process handles one message body and reports whether it should be acked.
// Malformed and unknown messages are dropped; failed jobs are redelivered.
func (p *MessageProcessor) Process(ctx context.Context, data []byte) bool {
	startTime := time.Now()
	logger := p.logger

	var msg RefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		logger.Error().Err(err).Msg("failed to parse message")
		return true
	}

	var err error
	switch msg.JobType {
	case JobDatasetRefresh:
		err = p.handleDatasetRefresh(ctx, msg)
	case JobHealthCheck:
		err = p.handleHealthCheck(ctx)
	default:
		logger.Warn().Str("job_type", msg.JobType).Msg("unknown job type")
		return true
	}

	if err != nil {
		logger.Error().Err(err).Str("job_type", msg.JobType).Msg("job failed")
		return false
	}

	logger.Info().
		Str("job_type", msg.JobType).
		Dur("duration", time.Since(startTime)).
		Msg("job completed successfully")
	return true
}

func (p *MessageProcessor) handleDatasetRefresh(ctx context.Context, msg RefreshMessage) error {
	p.logger.Info().
		Str("table", msg.Table).
		Bool("warm_only", msg.WarmOnly).
		Msg("warehouse dataset refreshed")

	if !msg.WarmOnly && p.purger != nil {
		p.purger.Purge()
	}

	result := p.job.Run(ctx)
	if result.Failed > result.Successful {
		return fmt.Errorf("%w: %d/%d ranges", ErrWarmUpFailed, result.Failed, result.TotalRanges)
	}
	return nil
}

func (p *MessageProcessor) handleHealthCheck(ctx context.Context) error {
	if p.pinger == nil {
		return nil
	}
	if err := p.pinger.Ping(ctx); err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	p.logger.Debug().Msg("health check passed")
	return nil
}
