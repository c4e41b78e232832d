package kafka

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"checkout/internal/domain"
	"checkout/internal/metrics"
)

// Headers attached to dead-lettered messages.
const (
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

const (
	handlerTimeout   = 30 * time.Second
	maxRetryAttempts = 5
	retryBaseDelay   = 500 * time.Millisecond
)

type MessageHandler func(ctx context.Context, msg kafka.Message) error

// Consumer runs one topic's consume loop with the acknowledgment contract:
// commit on success, on duplicate, and on permanent failure (after routing
// the message to the dead-letter topic); leave transient failures
// uncommitted so the broker redelivers them.
type Consumer struct {
	reader     *kafka.Reader
	dlq        Producer
	metrics    *metrics.ConsumerMetrics
	retryDelay time.Duration
	logger     *zap.Logger
}

func NewConsumer(brokers []string, topic, groupID string, dlq Producer, m *metrics.ConsumerMetrics, l *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3,
		MaxBytes: 10e6,
		Logger:   zap.NewStdLog(l.With(zap.String("kafka_component", "consumer"))),
	})
	return &Consumer{
		reader:     reader,
		dlq:        dlq,
		metrics:    m,
		retryDelay: retryBaseDelay,
		logger:     l.With(zap.String("topic", topic), zap.String("group_id", groupID)),
	}
}

// Run blocks until ctx is cancelled, then closes the reader.
func (c *Consumer) Run(ctx context.Context, handler MessageHandler) error {
	c.logger.Info("Kafka consumer started")
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.logger.Error("Failed to close Kafka consumer", zap.Error(err))
		} else {
			c.logger.Info("Kafka consumer closed.")
		}
	}()

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			c.logger.Error("Error fetching message from Kafka", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		if c.process(ctx, handler, m) {
			if err := c.reader.CommitMessages(ctx, m); err != nil {
				c.logger.Error("Failed to commit offset",
					zap.Int("partition", m.Partition),
					zap.Int64("offset", m.Offset),
					zap.Error(err))
			}
		}
	}
}

// process returns true when the message should be acknowledged.
func (c *Consumer) process(ctx context.Context, handler MessageHandler, m kafka.Message) bool {
	var err error
	for attempt := 1; attempt <= maxRetryAttempts; attempt++ {
		hctx, cancel := context.WithTimeout(ctx, handlerTimeout)
		err = handler(hctx, m)
		cancel()

		if err == nil {
			c.metrics.Processed(m.Topic)
			return true
		}
		if errors.Is(err, domain.ErrEventAlreadyProcessed) {
			c.metrics.Duplicate(m.Topic)
			c.logger.Info("Skipping already-processed event",
				zap.String("key", string(m.Key)),
				zap.Int64("offset", m.Offset))
			return true
		}
		if domain.IsPermanent(err) {
			c.metrics.DeadLettered(m.Topic)
			c.logger.Error("Permanent failure handling event, routing to dead letter topic",
				zap.String("key", string(m.Key)),
				zap.Int64("offset", m.Offset),
				zap.Error(err))
			return c.deadLetter(ctx, m, err)
		}

		c.logger.Warn("Transient failure handling event",
			zap.String("key", string(m.Key)),
			zap.Int64("offset", m.Offset),
			zap.Int("attempt", attempt),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.retryDelay << (attempt - 1)):
		}
	}

	// Still transient after the local retries: leave the offset uncommitted
	// so the event is redelivered.
	c.metrics.Retried(m.Topic)
	c.logger.Error("Giving up on event for now, leaving uncommitted for redelivery",
		zap.String("key", string(m.Key)),
		zap.Int64("offset", m.Offset),
		zap.Error(err))
	return false
}

func (c *Consumer) deadLetter(ctx context.Context, m kafka.Message, cause error) bool {
	headers := []kafka.Header{
		{Key: HeaderOriginalTopic, Value: []byte(m.Topic)},
		{Key: HeaderErrorMessage, Value: []byte(cause.Error())},
		{Key: HeaderFailedAt, Value: []byte(time.Now().UTC().Format(time.RFC3339))},
	}
	if err := c.dlq.ProduceHeaders(ctx, domain.TopicDeadLetter, string(m.Key), m.Value, headers); err != nil {
		c.logger.Error("Failed to publish to dead letter topic, leaving event uncommitted",
			zap.String("key", string(m.Key)),
			zap.Error(err))
		return false
	}
	return true
}
