package learning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recollect/internal/domain/feedback"
)

// Queue defaults.
const (
	DefaultTopic      = "recollect.feedback"
	DefaultMaxPending = 1024
)

var errQueueFull = errors.New("feedback queue full")

// recorder is the consumer interface for the learning engine (ISP).
type recorder interface {
	RecordFeedback(rec feedback.Record)
}

// QueueConfig tunes the feedback queue.
type QueueConfig struct {
	Topic string
	// MaxPending bounds messages published but not yet consumed. Excess is dropped.
	MaxPending int
}

// Queue carries feedback from the request path to the learning engine through an
// in-process watermill pub/sub. Publish never blocks.
type Queue struct {
	pubsub     *gochannel.GoChannel
	topic      string
	maxPending int64
	target     recorder
	total      *prometheus.CounterVec
	logger     *zap.Logger

	pending atomic.Int64
	started atomic.Bool
	wg      sync.WaitGroup
}

// NewQueue creates a queue delivering to target. total is labeled (status) and may be nil.
func NewQueue(
	target recorder,
	cfg QueueConfig,
	wmLogger watermill.LoggerAdapter,
	total *prometheus.CounterVec,
	logger *zap.Logger,
) *Queue {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = DefaultMaxPending
	}
	if wmLogger == nil {
		wmLogger = watermill.NopLogger{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Queue{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: int64(cfg.MaxPending),
		}, wmLogger),
		topic:      cfg.Topic,
		maxPending: int64(cfg.MaxPending),
		target:     target,
		total:      total,
		logger:     logger,
	}
}

// Start subscribes the consumer. It runs until ctx is done or the queue is closed.
func (q *Queue) Start(ctx context.Context) error {
	messages, err := q.pubsub.Subscribe(ctx, q.topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", q.topic, err)
	}
	q.started.Store(true)

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for msg := range messages {
			q.process(msg)
		}
	}()
	return nil
}

// Publish enqueues rec. Failures are logged and the record is dropped.
func (q *Queue) Publish(rec feedback.Record) {
	if err := q.publish(rec); err != nil {
		q.count("dropped")
		q.logger.Warn("Dropped feedback record", zap.String("profile", rec.ProfileID), zap.Error(err))
	}
}

func (q *Queue) publish(rec feedback.Record) error {
	if !q.started.Load() {
		return errors.New("feedback queue not started")
	}
	if q.pending.Add(1) > q.maxPending {
		q.pending.Add(-1)
		return errQueueFull
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		q.pending.Add(-1)
		return fmt.Errorf("marshal feedback: %w", err)
	}
	if err := q.pubsub.Publish(q.topic, message.NewMessage(watermill.NewUUID(), payload)); err != nil {
		q.pending.Add(-1)
		return fmt.Errorf("publish feedback: %w", err)
	}
	return nil
}

func (q *Queue) process(msg *message.Message) {
	defer q.pending.Add(-1)

	var rec feedback.Record
	if err := json.Unmarshal(msg.Payload, &rec); err != nil {
		q.count("dropped")
		q.logger.Warn("Failed to decode feedback message", zap.String("uuid", msg.UUID), zap.Error(err))
		msg.Ack() // poison message, never retried
		return
	}

	q.target.RecordFeedback(rec)
	q.count("ingested")
	msg.Ack()
}

// Pending returns the number of published but unconsumed records.
func (q *Queue) Pending() int64 { return q.pending.Load() }

// Close stops the pub/sub and waits for the consumer to exit.
func (q *Queue) Close() error {
	err := q.pubsub.Close()
	q.wg.Wait()
	if err != nil {
		return fmt.Errorf("close feedback queue: %w", err)
	}
	return nil
}

func (q *Queue) count(status string) {
	if q.total != nil {
		q.total.WithLabelValues(status).Inc()
	}
}
