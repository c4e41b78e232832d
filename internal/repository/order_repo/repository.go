package order_repo

import (
	"context"

	"checkout/internal/domain"
)

// OrderRepository persists orders. Composite methods commit the order change
// together with its outbox event or inbox mark in one transaction, so the
// state change and the message bookkeeping are never separably observable.
type OrderRepository interface {
	// CreateOrderAndOutboxMessage inserts the order and its order_created
	// outbox row atomically.
	CreateOrderAndOutboxMessage(ctx context.Context, order *domain.Order, msg *domain.OutboxMessage) error

	// GetOrderByID returns domain.ErrNotFound when the order does not exist.
	GetOrderByID(ctx context.Context, id string) (*domain.Order, error)

	GetOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error)

	// UpdateOrder writes the order iff the stored version matches
	// order.Version, then bumps it. Returns domain.ErrVersionConflict when a
	// concurrent writer committed first.
	UpdateOrder(ctx context.Context, order *domain.Order) error

	// UpdateOrderAndMarkInbox is UpdateOrder plus flipping the inbox record
	// to PROCESSED in the same transaction.
	UpdateOrderAndMarkInbox(ctx context.Context, order *domain.Order, inboxID string) error

	// MarkInboxProcessed records an event as processed without an order
	// change (the no-op outcome paths).
	MarkInboxProcessed(ctx context.Context, inboxID string) error
}
