package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"checkout/internal/domain"
	"checkout/internal/repository/inbox_repo"
)

// claimLease bounds how long a PROCESSING claim blocks redelivery. A handler
// that crashed between claim and commit loses the claim after this long.
const claimLease = 5 * time.Minute

type pgInboxRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewInboxRepository(db *sql.DB, l *zap.Logger) inbox_repo.InboxRepository {
	return &pgInboxRepository{db: db, logger: l}
}

func (r *pgInboxRepository) Claim(ctx context.Context, msg *domain.InboxMessage) error {
	query := `
		INSERT INTO inbox_messages (id, topic, payload, status, received_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET received_at = EXCLUDED.received_at
		WHERE inbox_messages.status = $4 AND inbox_messages.received_at < $6
		RETURNING id
	`
	staleBefore := msg.ReceivedAt.Add(-claimLease)
	var claimedID string
	err := r.db.QueryRowContext(ctx, query,
		msg.ID, msg.Topic, msg.Payload, domain.InboxStatusProcessing, msg.ReceivedAt, staleBefore,
	).Scan(&claimedID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		r.logger.Error("Failed to claim inbox message", zap.String("event_id", msg.ID), zap.Error(err))
		return fmt.Errorf("failed to claim inbox message %s: %w", msg.ID, err)
	}

	// The row exists and was not stale. Distinguish done from in-flight.
	var status domain.InboxMessageStatus
	err = r.db.QueryRowContext(ctx, `SELECT status FROM inbox_messages WHERE id = $1`, msg.ID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Claim row vanished between the two queries (released by its
			// owner). Treat as in-flight; redelivery will retry.
			return domain.ErrEventInFlight
		}
		return fmt.Errorf("failed to read inbox message %s: %w", msg.ID, err)
	}
	if status == domain.InboxStatusProcessed {
		return domain.ErrEventAlreadyProcessed
	}
	return domain.ErrEventInFlight
}

func (r *pgInboxRepository) Release(ctx context.Context, id string) error {
	query := `DELETE FROM inbox_messages WHERE id = $1 AND status = $2`
	if _, err := r.db.ExecContext(ctx, query, id, domain.InboxStatusProcessing); err != nil {
		r.logger.Error("Failed to release inbox claim", zap.String("event_id", id), zap.Error(err))
		return fmt.Errorf("failed to release inbox claim %s: %w", id, err)
	}
	return nil
}
