package outbox_repo

import (
	"context"

	"checkout/internal/domain"
)

// OutboxRepository is the relay's view of the outbox table. Rows are written
// by the entity repositories inside their effect transactions.
type OutboxRepository interface {
	GetPendingMessages(ctx context.Context, limit int) ([]*domain.OutboxMessage, error)
	MarkMessageSent(ctx context.Context, id string) error
}
