package kafka

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"checkout/internal/app/orders"
	"checkout/internal/domain"
	kafka_infra "checkout/internal/infrastructure/kafka"
)

// PaymentOutcomeHandler serves both the payment_completed and payment_failed
// topics on the orders side.
func PaymentOutcomeHandler(orderService orders.OrderService, logger *zap.Logger) kafka_infra.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		event, err := domain.DecodeEvent(msg.Topic, msg.Value)
		if err != nil {
			logger.Error("Failed to decode payment outcome event",
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
			return err
		}

		logger.Info("Processing payment outcome event",
			zap.String("topic", msg.Topic),
			zap.String("key", string(msg.Key)))

		if err := orderService.ApplyPaymentOutcome(ctx, event, msg.Value); err != nil {
			return fmt.Errorf("apply payment outcome from %s: %w", msg.Topic, err)
		}
		return nil
	}
}
