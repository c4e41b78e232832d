package orders

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"checkout/internal/domain"
	"checkout/internal/repository/inbox_repo"
	"checkout/internal/repository/order_repo"
	"checkout/internal/util"
)

type OrderService interface {
	CreateOrder(ctx context.Context, userID string, req *CreateOrderRequest) (*OrderResponse, error)
	GetOrder(ctx context.Context, orderID, userID string) (*OrderResponse, error)
	ListOrders(ctx context.Context, userID string) ([]*OrderResponse, error)
	CancelOrder(ctx context.Context, orderID, userID string) (*OrderResponse, error)
	AdvanceFulfillment(ctx context.Context, orderID string, status domain.OrderStatus) (*OrderResponse, error)
	ApplyPaymentOutcome(ctx context.Context, event domain.Event, payload []byte) error
}

type orderService struct {
	orderRepo order_repo.OrderRepository
	inboxRepo inbox_repo.InboxRepository
	logger    *zap.Logger
}

func NewOrderService(
	orderRepo order_repo.OrderRepository,
	inboxRepo inbox_repo.InboxRepository,
	logger *zap.Logger,
) OrderService {
	return &orderService{
		orderRepo: orderRepo,
		inboxRepo: inboxRepo,
		logger:    logger,
	}
}

// CreateOrder persists the order and its order_created event as a single
// unit of work. The caller only sees success once both are durable.
func (s *orderService) CreateOrder(ctx context.Context, userID string, req *CreateOrderRequest) (*OrderResponse, error) {
	order, err := domain.NewOrder(util.GenerateUUID(), userID, req.Items, req.ShippingAddress)
	if err != nil {
		s.logger.Warn("Rejected invalid order", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	event := &domain.OrderCreatedEvent{
		OrderID:     order.ID,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		Items:       order.Items,
	}
	msg, err := domain.NewOutboxMessage(util.GenerateUUID(), event, order.ID)
	if err != nil {
		return nil, fmt.Errorf("prepare order_created event: %w", err)
	}

	if err := s.orderRepo.CreateOrderAndOutboxMessage(ctx, order, msg); err != nil {
		s.logger.Error("Failed to save order and outbox message", zap.String("order_id", order.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.logger.Info("Order created and order_created event queued",
		zap.String("order_id", order.ID),
		zap.Float64("total_amount", order.TotalAmount))
	return mapOrderToResponse(order), nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID, userID string) (*OrderResponse, error) {
	order, err := s.getOwnedOrder(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	return mapOrderToResponse(order), nil
}

// getOwnedOrder does not distinguish a foreign order from a missing one, so
// existence is not leaked to non-owners.
func (s *orderService) getOwnedOrder(ctx context.Context, orderID, userID string) (*domain.Order, error) {
	order, err := s.orderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		s.logger.Error("Failed to get order", zap.String("order_id", orderID), zap.Error(err))
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order.UserID != userID {
		s.logger.Debug("Order ownership mismatch", zap.String("order_id", orderID), zap.String("user_id", userID))
		return nil, domain.ErrNotFound
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, userID string) ([]*OrderResponse, error) {
	orders, err := s.orderRepo.GetOrdersByUserID(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to list orders for user", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return mapOrdersToResponse(orders), nil
}

func (s *orderService) CancelOrder(ctx context.Context, orderID, userID string) (*OrderResponse, error) {
	order, err := s.getOwnedOrder(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}

	if err := order.MarkCancelled(); err != nil {
		s.logger.Info("Cancel rejected",
			zap.String("order_id", orderID),
			zap.String("status", string(order.Status)))
		return nil, err
	}

	if err := s.orderRepo.UpdateOrder(ctx, order); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			// A payment outcome committed first; the caller retries against
			// the fresh status.
			return nil, err
		}
		s.logger.Error("Failed to persist cancellation", zap.String("order_id", orderID), zap.Error(err))
		return nil, fmt.Errorf("failed to cancel order: %w", err)
	}

	s.logger.Info("Order cancelled", zap.String("order_id", orderID))
	return mapOrderToResponse(order), nil
}

func (s *orderService) AdvanceFulfillment(ctx context.Context, orderID string, status domain.OrderStatus) (*OrderResponse, error) {
	order, err := s.orderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := order.AdvanceFulfillment(status); err != nil {
		return nil, err
	}
	if err := s.orderRepo.UpdateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to advance fulfillment: %w", err)
	}
	s.logger.Info("Order fulfillment advanced",
		zap.String("order_id", orderID),
		zap.String("status", string(status)))
	return mapOrderToResponse(order), nil
}

// ApplyPaymentOutcome handles payment_completed and payment_failed events.
// The inbox claim plus the update-and-mark transaction make the effect
// exactly-once despite redelivery.
func (s *orderService) ApplyPaymentOutcome(ctx context.Context, event domain.Event, payload []byte) error {
	inboxMsg := domain.NewInboxMessage(event, payload)
	if err := s.inboxRepo.Claim(ctx, inboxMsg); err != nil {
		return err
	}

	var orderID string
	switch e := event.(type) {
	case *domain.PaymentCompletedEvent:
		orderID = e.OrderID
	case *domain.PaymentFailedEvent:
		orderID = e.OrderID
	default:
		s.release(ctx, inboxMsg.ID)
		return domain.NewValidationError("unexpected event %s for order consumer", event.Topic())
	}

	order, err := s.orderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		s.release(ctx, inboxMsg.ID)
		if errors.Is(err, domain.ErrNotFound) {
			// Reconciliation case: a payment outcome for an order this
			// service has never seen. Permanent, so the consumer routes it
			// to the dead-letter topic.
			return domain.NewValidationError("payment outcome for unknown order %s", orderID)
		}
		return fmt.Errorf("failed to load order %s: %w", orderID, err)
	}

	switch event.(type) {
	case *domain.PaymentCompletedEvent:
		return s.applyPaymentSuccess(ctx, order, inboxMsg.ID)
	default:
		return s.applyPaymentFailure(ctx, order, event.(*domain.PaymentFailedEvent), inboxMsg.ID)
	}
}

func (s *orderService) applyPaymentSuccess(ctx context.Context, order *domain.Order, inboxID string) error {
	switch order.Status {
	case domain.OrderStatusPending:
		if err := order.MarkPaid(); err != nil {
			s.release(ctx, inboxID)
			return err
		}
		if err := s.orderRepo.UpdateOrderAndMarkInbox(ctx, order, inboxID); err != nil {
			s.release(ctx, inboxID)
			return fmt.Errorf("failed to mark order %s paid: %w", order.ID, err)
		}
		s.logger.Info("Order marked paid", zap.String("order_id", order.ID))
		return nil

	case domain.OrderStatusCancelled:
		// A late success for a cancelled order is recorded but never
		// auto-reversed; the compensating refund is a separate command.
		s.logger.Warn("Payment succeeded for cancelled order, manual reconciliation required",
			zap.String("order_id", order.ID))
		return s.markProcessed(ctx, inboxID)

	default:
		// Already PAID or further along: a redelivered success is a no-op.
		s.logger.Info("Payment success is a no-op for current order status",
			zap.String("order_id", order.ID),
			zap.String("status", string(order.Status)))
		return s.markProcessed(ctx, inboxID)
	}
}

func (s *orderService) applyPaymentFailure(ctx context.Context, order *domain.Order, event *domain.PaymentFailedEvent, inboxID string) error {
	s.logger.Warn("Payment failed for order",
		zap.String("order_id", order.ID),
		zap.String("status", string(order.Status)),
		zap.String("reason", event.Reason))
	return s.markProcessed(ctx, inboxID)
}

func (s *orderService) markProcessed(ctx context.Context, inboxID string) error {
	if err := s.orderRepo.MarkInboxProcessed(ctx, inboxID); err != nil {
		s.release(ctx, inboxID)
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

func (s *orderService) release(ctx context.Context, inboxID string) {
	if err := s.inboxRepo.Release(ctx, inboxID); err != nil {
		s.logger.Error("Failed to release inbox claim", zap.String("event_id", inboxID), zap.Error(err))
	}
}
