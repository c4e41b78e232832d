package payment_repo

import (
	"context"

	"checkout/internal/domain"
)

// PaymentRepository persists payments. As with orders, the composite methods
// keep the domain effect and the inbox/outbox bookkeeping in one transaction.
type PaymentRepository interface {
	// CreatePayment inserts a payment on the synchronous create-intent path.
	CreatePayment(ctx context.Context, payment *domain.Payment) error

	// CreatePaymentAndMarkInbox atomically inserts the payment, flips the
	// inbox record to PROCESSED and, when msg is non-nil, queues an outbox
	// event. Used by the order_created consumer.
	CreatePaymentAndMarkInbox(ctx context.Context, payment *domain.Payment, inboxID string, msg *domain.OutboxMessage) error

	// GetPaymentByID returns domain.ErrNotFound when absent.
	GetPaymentByID(ctx context.Context, id string) (*domain.Payment, error)

	// GetPaymentByOrderID returns the most recent payment for the order, or
	// domain.ErrNotFound.
	GetPaymentByOrderID(ctx context.Context, orderID string) (*domain.Payment, error)

	// UpdatePayment writes the payment with an optimistic version check and,
	// when msg is non-nil, queues an outbox event in the same transaction.
	UpdatePayment(ctx context.Context, payment *domain.Payment, msg *domain.OutboxMessage) error

	// MarkInboxProcessed records an event as processed when the handler had
	// no payment to write (the duplicate-skip path).
	MarkInboxProcessed(ctx context.Context, inboxID string) error
}
