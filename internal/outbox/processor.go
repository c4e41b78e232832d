// Package outbox relays committed outbox rows to Kafka. Publishing after the
// commit gives at-least-once delivery; consumers dedup via their inbox.
package outbox

import (
	"context"
	"time"

	"go.uber.org/zap"

	"checkout/internal/infrastructure/kafka"
	"checkout/internal/metrics"
	"checkout/internal/repository/outbox_repo"
)

const batchSize = 100

type Processor struct {
	outboxRepo   outbox_repo.OutboxRepository
	producer     kafka.Producer
	pollInterval time.Duration
	pollTimeout  time.Duration
	metrics      *metrics.OutboxMetrics
	logger       *zap.Logger
}

func NewProcessor(
	outboxRepo outbox_repo.OutboxRepository,
	producer kafka.Producer,
	pollInterval, pollTimeout time.Duration,
	m *metrics.OutboxMetrics,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		outboxRepo:   outboxRepo,
		producer:     producer,
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
		metrics:      m,
		logger:       logger,
	}
}

// Run polls until ctx is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	p.logger.Info("Outbox processor started", zap.Duration("poll_interval", p.pollInterval))
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox processor stopped.")
			return nil
		case <-ticker.C:
			p.drain(ctx)
		}
	}
}

func (p *Processor) drain(ctx context.Context) {
	pollCtx, cancel := context.WithTimeout(ctx, p.pollTimeout)
	defer cancel()

	messages, err := p.outboxRepo.GetPendingMessages(pollCtx, batchSize)
	if err != nil {
		p.logger.Error("Failed to get pending outbox messages", zap.Error(err))
		return
	}
	if len(messages) == 0 {
		return
	}
	p.logger.Debug("Publishing pending outbox messages", zap.Int("count", len(messages)))

	for _, msg := range messages {
		if err := p.producer.Produce(pollCtx, msg.Topic, msg.Key, msg.Payload); err != nil {
			p.metrics.PublishFailed()
			p.logger.Error("Failed to publish outbox message, will retry",
				zap.String("message_id", msg.ID),
				zap.String("topic", msg.Topic),
				zap.Error(err))
			continue
		}
		// A crash between publish and the mark re-sends the message next
		// poll; consumers tolerate the duplicate.
		if err := p.outboxRepo.MarkMessageSent(pollCtx, msg.ID); err != nil {
			p.logger.Error("Failed to mark outbox message sent",
				zap.String("message_id", msg.ID),
				zap.Error(err))
			continue
		}
		p.metrics.Published()
		p.logger.Debug("Outbox message published",
			zap.String("message_id", msg.ID),
			zap.String("topic", msg.Topic))
	}
}
