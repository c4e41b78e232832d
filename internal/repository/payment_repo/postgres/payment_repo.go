package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"checkout/internal/domain"
	"checkout/internal/repository/payment_repo"
)

type pgPaymentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPaymentRepository(db *sql.DB, l *zap.Logger) payment_repo.PaymentRepository {
	return &pgPaymentRepository{db: db, logger: l}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const paymentColumns = `id, order_id, user_id, amount, currency, status, stripe_payment_id, stripe_client_secret, refund_id, error_message, version, created_at, updated_at`

func (r *pgPaymentRepository) CreatePayment(ctx context.Context, payment *domain.Payment) error {
	return insertPayment(ctx, r.db, payment)
}

func insertPayment(ctx context.Context, ex execer, payment *domain.Payment) error {
	query := `INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := ex.ExecContext(ctx, query,
		payment.ID, payment.OrderID, payment.UserID, payment.Amount, payment.Currency, payment.Status,
		payment.StripePaymentID, payment.StripeClientSecret, payment.RefundID, payment.ErrorMessage,
		payment.Version, payment.CreatedAt, payment.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create payment %s: %w", payment.ID, err)
	}
	return nil
}

func (r *pgPaymentRepository) CreatePaymentAndMarkInbox(ctx context.Context, payment *domain.Payment, inboxID string, msg *domain.OutboxMessage) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.logger.Error("Failed to begin transaction for payment creation", zap.String("payment_id", payment.ID), zap.Error(err))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			r.logger.Warn("Rolling back payment creation transaction", zap.String("payment_id", payment.ID), zap.Error(err))
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
			if err != nil {
				r.logger.Error("Failed to commit payment creation transaction", zap.String("payment_id", payment.ID), zap.Error(err))
			}
		}
	}()

	if err = insertPayment(ctx, tx, payment); err != nil {
		return err
	}
	if err = markInboxProcessed(ctx, tx, inboxID); err != nil {
		return err
	}
	if msg != nil {
		err = insertOutboxMessage(ctx, tx, msg)
	}
	return err
}

func scanPayment(row interface{ Scan(...any) error }) (*domain.Payment, error) {
	payment := &domain.Payment{}
	err := row.Scan(&payment.ID, &payment.OrderID, &payment.UserID, &payment.Amount, &payment.Currency,
		&payment.Status, &payment.StripePaymentID, &payment.StripeClientSecret, &payment.RefundID,
		&payment.ErrorMessage, &payment.Version, &payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (r *pgPaymentRepository) GetPaymentByID(ctx context.Context, id string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	payment, err := scanPayment(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Error("Failed to get payment by ID", zap.String("payment_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get payment %s: %w", id, err)
	}
	return payment, nil
}

func (r *pgPaymentRepository) GetPaymentByOrderID(ctx context.Context, orderID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1 ORDER BY created_at DESC LIMIT 1`
	payment, err := scanPayment(r.db.QueryRowContext(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Error("Failed to get payment by order ID", zap.String("order_id", orderID), zap.Error(err))
		return nil, fmt.Errorf("failed to get payment for order %s: %w", orderID, err)
	}
	return payment, nil
}

func (r *pgPaymentRepository) UpdatePayment(ctx context.Context, payment *domain.Payment, msg *domain.OutboxMessage) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	query := `UPDATE payments SET status = $3, stripe_payment_id = $4, stripe_client_secret = $5,
		refund_id = $6, error_message = $7, updated_at = $8, version = version + 1
		WHERE id = $1 AND version = $2`
	res, execErr := tx.ExecContext(ctx, query,
		payment.ID, payment.Version, payment.Status, payment.StripePaymentID, payment.StripeClientSecret,
		payment.RefundID, payment.ErrorMessage, payment.UpdatedAt)
	if execErr != nil {
		err = fmt.Errorf("failed to update payment %s: %w", payment.ID, execErr)
		return err
	}
	affected, execErr := res.RowsAffected()
	if execErr != nil {
		err = fmt.Errorf("failed to check update result: %w", execErr)
		return err
	}
	if affected == 0 {
		r.logger.Warn("Payment version conflict on update", zap.String("payment_id", payment.ID), zap.Int64("version", payment.Version))
		err = domain.ErrVersionConflict
		return err
	}
	payment.Version++

	if msg != nil {
		err = insertOutboxMessage(ctx, tx, msg)
	}
	return err
}

func (r *pgPaymentRepository) MarkInboxProcessed(ctx context.Context, inboxID string) error {
	return markInboxProcessed(ctx, r.db, inboxID)
}

func insertOutboxMessage(ctx context.Context, ex execer, msg *domain.OutboxMessage) error {
	query := `INSERT INTO outbox_messages (id, topic, key, payload, status, created_at) VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := ex.ExecContext(ctx, query, msg.ID, msg.Topic, msg.Key, msg.Payload, msg.Status, msg.CreatedAt); err != nil {
		return fmt.Errorf("failed to create outbox message: %w", err)
	}
	return nil
}

func markInboxProcessed(ctx context.Context, ex execer, inboxID string) error {
	query := `UPDATE inbox_messages SET status = $2, processed_at = $3 WHERE id = $1`
	if _, err := ex.ExecContext(ctx, query, inboxID, domain.InboxStatusProcessed, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to mark inbox message %s processed: %w", inboxID, err)
	}
	return nil
}
