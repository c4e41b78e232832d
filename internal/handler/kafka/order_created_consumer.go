package kafka

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"checkout/internal/app/payments"
	"checkout/internal/domain"
	kafka_infra "checkout/internal/infrastructure/kafka"
)

// OrderCreatedHandler decodes order_created events and hands them to the
// payment service. Decode failures are permanent and end up on the
// dead-letter topic.
func OrderCreatedHandler(paymentService payments.PaymentService, logger *zap.Logger) kafka_infra.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		event, err := domain.DecodeEvent(msg.Topic, msg.Value)
		if err != nil {
			logger.Error("Failed to decode order_created event",
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
			return err
		}
		orderCreated, ok := event.(*domain.OrderCreatedEvent)
		if !ok {
			return domain.NewValidationError("unexpected event type on topic %s", msg.Topic)
		}

		logger.Info("Processing order_created event",
			zap.String("order_id", orderCreated.OrderID),
			zap.Float64("total_amount", orderCreated.TotalAmount))

		if err := paymentService.HandleOrderCreated(ctx, orderCreated, msg.Value); err != nil {
			return fmt.Errorf("handle order_created for order %s: %w", orderCreated.OrderID, err)
		}
		return nil
	}
}
