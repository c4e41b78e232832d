package payments

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"checkout/internal/domain"
	"checkout/internal/repository/inbox_repo"
	"checkout/internal/repository/payment_repo"
	"checkout/internal/stripe"
	"checkout/internal/util"
)

// PaymentGateway is the external oracle that moves money. All calls are
// idempotency-keyed by the caller so handler retries cannot double-charge.
type PaymentGateway interface {
	Authorize(ctx context.Context, req stripe.AuthorizeRequest) (*stripe.Authorization, error)
	Confirm(ctx context.Context, authRef, idempotencyKey string) error
	Refund(ctx context.Context, authRef, idempotencyKey string) (*stripe.Refund, error)
}

type PaymentService interface {
	CreateIntent(ctx context.Context, userID string, req *CreateIntentRequest) (*CreateIntentResponse, error)
	ConfirmPayment(ctx context.Context, paymentID, userID string) (*PaymentResponse, error)
	GetPayment(ctx context.Context, paymentID, userID string) (*PaymentResponse, error)
	RefundPayment(ctx context.Context, paymentID, userID string) (*PaymentResponse, error)
	HandleOrderCreated(ctx context.Context, event *domain.OrderCreatedEvent, payload []byte) error
}

type paymentService struct {
	paymentRepo payment_repo.PaymentRepository
	inboxRepo   inbox_repo.InboxRepository
	gateway     PaymentGateway
	logger      *zap.Logger
}

func NewPaymentService(
	paymentRepo payment_repo.PaymentRepository,
	inboxRepo inbox_repo.InboxRepository,
	gateway PaymentGateway,
	logger *zap.Logger,
) PaymentService {
	return &paymentService{
		paymentRepo: paymentRepo,
		inboxRepo:   inboxRepo,
		gateway:     gateway,
		logger:      logger,
	}
}

// HandleOrderCreated reacts to an order_created event: it authorizes the
// amount at the gateway and persists the resulting payment. The inbox claim
// plus the create-and-mark transaction guarantee exactly one payment per
// order no matter how often the event is redelivered; the gateway
// idempotency key (the order id) covers the window where an authorization
// succeeded but the local write did not.
func (s *paymentService) HandleOrderCreated(ctx context.Context, event *domain.OrderCreatedEvent, payload []byte) error {
	inboxMsg := domain.NewInboxMessage(event, payload)
	if err := s.inboxRepo.Claim(ctx, inboxMsg); err != nil {
		return err
	}

	if existing, err := s.paymentRepo.GetPaymentByOrderID(ctx, event.OrderID); err == nil {
		s.logger.Info("Payment already exists for order, skipping authorization",
			zap.String("order_id", event.OrderID),
			zap.String("payment_id", existing.ID),
			zap.String("status", string(existing.Status)))
		return s.markProcessed(ctx, inboxMsg.ID)
	} else if !errors.Is(err, domain.ErrNotFound) {
		s.release(ctx, inboxMsg.ID)
		return fmt.Errorf("failed to check existing payment for order %s: %w", event.OrderID, err)
	}

	payment, err := domain.NewPayment(util.GenerateUUID(), event.OrderID, event.UserID, event.TotalAmount, "usd")
	if err != nil {
		s.release(ctx, inboxMsg.ID)
		return err
	}

	auth, err := s.gateway.Authorize(ctx, stripe.AuthorizeRequest{
		Amount:         payment.Amount,
		Currency:       payment.Currency,
		OrderID:        payment.OrderID,
		UserID:         payment.UserID,
		IdempotencyKey: payment.OrderID,
	})
	if err != nil {
		var gwErr *domain.GatewayError
		if errors.As(err, &gwErr) {
			return s.recordAuthorizationFailure(ctx, payment, inboxMsg.ID, gwErr)
		}
		s.release(ctx, inboxMsg.ID)
		return fmt.Errorf("gateway authorization for order %s: %w", event.OrderID, err)
	}

	payment.StripePaymentID = auth.ID
	payment.StripeClientSecret = auth.ClientSecret

	if err := s.paymentRepo.CreatePaymentAndMarkInbox(ctx, payment, inboxMsg.ID, nil); err != nil {
		s.release(ctx, inboxMsg.ID)
		return fmt.Errorf("failed to persist payment for order %s: %w", event.OrderID, err)
	}

	s.logger.Info("Payment authorized for order",
		zap.String("order_id", event.OrderID),
		zap.String("payment_id", payment.ID))
	return nil
}

// recordAuthorizationFailure persists a FAILED payment and queues the
// payment_failed event atomically with the inbox mark. The gateway's
// definitive rejection is domain state, not an error to retry.
func (s *paymentService) recordAuthorizationFailure(ctx context.Context, payment *domain.Payment, inboxID string, gwErr *domain.GatewayError) error {
	if err := payment.MarkFailed(gwErr.Message); err != nil {
		s.release(ctx, inboxID)
		return err
	}

	msg, err := s.newOutboxEvent(&domain.PaymentFailedEvent{OrderID: payment.OrderID, Reason: gwErr.Message}, payment.OrderID)
	if err != nil {
		s.release(ctx, inboxID)
		return err
	}
	if err := s.paymentRepo.CreatePaymentAndMarkInbox(ctx, payment, inboxID, msg); err != nil {
		s.release(ctx, inboxID)
		return fmt.Errorf("failed to record failed payment for order %s: %w", payment.OrderID, err)
	}

	s.logger.Warn("Gateway declined authorization",
		zap.String("order_id", payment.OrderID),
		zap.String("payment_id", payment.ID),
		zap.String("reason", gwErr.Message))
	return nil
}

// CreateIntent is the synchronous counterpart of HandleOrderCreated, kept
// for clients that drive payment setup directly. At most one non-terminal
// payment may exist per order.
func (s *paymentService) CreateIntent(ctx context.Context, userID string, req *CreateIntentRequest) (*CreateIntentResponse, error) {
	if req.OrderID == "" {
		return nil, domain.NewValidationError("order id is required")
	}

	if existing, err := s.paymentRepo.GetPaymentByOrderID(ctx, req.OrderID); err == nil {
		if !existing.Status.Terminal() {
			return nil, domain.ErrDuplicatePayment
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing payment: %w", err)
	}

	payment, err := domain.NewPayment(util.GenerateUUID(), req.OrderID, userID, req.Amount, "usd")
	if err != nil {
		return nil, err
	}

	auth, err := s.gateway.Authorize(ctx, stripe.AuthorizeRequest{
		Amount:         payment.Amount,
		Currency:       payment.Currency,
		OrderID:        payment.OrderID,
		UserID:         payment.UserID,
		IdempotencyKey: payment.OrderID,
	})
	if err != nil {
		return nil, fmt.Errorf("gateway authorization for order %s: %w", req.OrderID, err)
	}
	payment.StripePaymentID = auth.ID
	payment.StripeClientSecret = auth.ClientSecret

	if err := s.paymentRepo.CreatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to persist payment: %w", err)
	}

	s.logger.Info("Payment intent created",
		zap.String("order_id", req.OrderID),
		zap.String("payment_id", payment.ID))
	return &CreateIntentResponse{PaymentID: payment.ID, ClientSecret: auth.ClientSecret}, nil
}

func (s *paymentService) ConfirmPayment(ctx context.Context, paymentID, userID string) (*PaymentResponse, error) {
	payment, err := s.getOwnedPayment(ctx, paymentID, userID)
	if err != nil {
		return nil, err
	}

	// Safe retry: confirming an already-completed payment returns the
	// stored outcome without touching the gateway again.
	if payment.Status == domain.PaymentStatusCompleted {
		return mapPaymentToResponse(payment), nil
	}
	if payment.Status != domain.PaymentStatusPending {
		return nil, &domain.TransitionError{Entity: "payment", From: string(payment.Status), To: string(domain.PaymentStatusCompleted)}
	}

	if err := s.gateway.Confirm(ctx, payment.StripePaymentID, "confirm:"+payment.ID); err != nil {
		var gwErr *domain.GatewayError
		if errors.As(err, &gwErr) {
			return s.recordConfirmationFailure(ctx, payment, gwErr)
		}
		return nil, fmt.Errorf("gateway confirmation for payment %s: %w", paymentID, err)
	}

	if err := payment.MarkCompleted(); err != nil {
		return nil, err
	}
	msg, err := s.newOutboxEvent(&domain.PaymentCompletedEvent{OrderID: payment.OrderID, Status: string(domain.OrderStatusPaid)}, payment.OrderID)
	if err != nil {
		return nil, err
	}
	if err := s.paymentRepo.UpdatePayment(ctx, payment, msg); err != nil {
		return nil, fmt.Errorf("failed to persist payment confirmation: %w", err)
	}

	s.logger.Info("Payment confirmed",
		zap.String("payment_id", payment.ID),
		zap.String("order_id", payment.OrderID))
	return mapPaymentToResponse(payment), nil
}

func (s *paymentService) recordConfirmationFailure(ctx context.Context, payment *domain.Payment, gwErr *domain.GatewayError) (*PaymentResponse, error) {
	if err := payment.MarkFailed(gwErr.Message); err != nil {
		return nil, err
	}
	msg, err := s.newOutboxEvent(&domain.PaymentFailedEvent{OrderID: payment.OrderID, Reason: gwErr.Message}, payment.OrderID)
	if err != nil {
		return nil, err
	}
	if err := s.paymentRepo.UpdatePayment(ctx, payment, msg); err != nil {
		return nil, fmt.Errorf("failed to record payment failure: %w", err)
	}
	s.logger.Warn("Gateway declined confirmation",
		zap.String("payment_id", payment.ID),
		zap.String("reason", gwErr.Message))
	return nil, gwErr
}

func (s *paymentService) GetPayment(ctx context.Context, paymentID, userID string) (*PaymentResponse, error) {
	payment, err := s.getOwnedPayment(ctx, paymentID, userID)
	if err != nil {
		return nil, err
	}
	return mapPaymentToResponse(payment), nil
}

func (s *paymentService) RefundPayment(ctx context.Context, paymentID, userID string) (*PaymentResponse, error) {
	payment, err := s.getOwnedPayment(ctx, paymentID, userID)
	if err != nil {
		return nil, err
	}
	if payment.Status != domain.PaymentStatusCompleted {
		return nil, &domain.TransitionError{Entity: "payment", From: string(payment.Status), To: string(domain.PaymentStatusRefunded)}
	}

	refund, err := s.gateway.Refund(ctx, payment.StripePaymentID, "refund:"+payment.ID)
	if err != nil {
		var gwErr *domain.GatewayError
		if errors.As(err, &gwErr) {
			return nil, gwErr
		}
		return nil, fmt.Errorf("gateway refund for payment %s: %w", paymentID, err)
	}

	if err := payment.MarkRefunded(refund.ID); err != nil {
		return nil, err
	}
	if err := s.paymentRepo.UpdatePayment(ctx, payment, nil); err != nil {
		return nil, fmt.Errorf("failed to persist refund: %w", err)
	}

	s.logger.Info("Payment refunded",
		zap.String("payment_id", payment.ID),
		zap.String("refund_id", refund.ID))
	return mapPaymentToResponse(payment), nil
}

func (s *paymentService) getOwnedPayment(ctx context.Context, paymentID, userID string) (*domain.Payment, error) {
	payment, err := s.paymentRepo.GetPaymentByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	if payment.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return payment, nil
}

func (s *paymentService) newOutboxEvent(event domain.Event, key string) (*domain.OutboxMessage, error) {
	msg, err := domain.NewOutboxMessage(util.GenerateUUID(), event, key)
	if err != nil {
		return nil, fmt.Errorf("prepare %s event: %w", event.Topic(), err)
	}
	return msg, nil
}

func (s *paymentService) markProcessed(ctx context.Context, inboxID string) error {
	if err := s.paymentRepo.MarkInboxProcessed(ctx, inboxID); err != nil {
		s.release(ctx, inboxID)
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

func (s *paymentService) release(ctx context.Context, inboxID string) {
	if err := s.inboxRepo.Release(ctx, inboxID); err != nil {
		s.logger.Error("Failed to release inbox claim", zap.String("event_id", inboxID), zap.Error(err))
	}
}
