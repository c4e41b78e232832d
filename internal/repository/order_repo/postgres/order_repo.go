package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"checkout/internal/domain"
	"checkout/internal/repository/order_repo"
)

type pgOrderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewOrderRepository(db *sql.DB, l *zap.Logger) order_repo.OrderRepository {
	return &pgOrderRepository{db: db, logger: l}
}

func (r *pgOrderRepository) CreateOrderAndOutboxMessage(ctx context.Context, order *domain.Order, msg *domain.OutboxMessage) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("marshal order items: %w", err)
	}
	address, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.logger.Error("Failed to begin transaction for order creation", zap.String("order_id", order.ID), zap.Error(err))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			r.logger.Warn("Rolling back order creation transaction", zap.String("order_id", order.ID), zap.Error(err))
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
			if err != nil {
				r.logger.Error("Failed to commit order creation transaction", zap.String("order_id", order.ID), zap.Error(err))
			}
		}
	}()

	orderQuery := `INSERT INTO orders (id, user_id, items, total_amount, status, shipping_address, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = tx.ExecContext(ctx, orderQuery,
		order.ID, order.UserID, items, order.TotalAmount, order.Status, address, order.Version, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("tx failed to create order: %w", err)
	}

	outboxQuery := `INSERT INTO outbox_messages (id, topic, key, payload, status, created_at) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = tx.ExecContext(ctx, outboxQuery, msg.ID, msg.Topic, msg.Key, msg.Payload, msg.Status, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("tx failed to create outbox message: %w", err)
	}

	return err
}

const orderColumns = `id, user_id, items, total_amount, status, shipping_address, version, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*domain.Order, error) {
	order := &domain.Order{}
	var items, address []byte
	if err := row.Scan(&order.ID, &order.UserID, &items, &order.TotalAmount, &order.Status, &address, &order.Version, &order.CreatedAt, &order.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if err := json.Unmarshal(address, &order.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}
	return order, nil
}

func (r *pgOrderRepository) GetOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Error("Failed to get order by ID", zap.String("order_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get order %s: %w", id, err)
	}
	return order, nil
}

func (r *pgOrderRepository) GetOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to query orders for user", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to get orders for user %s: %w", userID, err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return orders, nil
}

func (r *pgOrderRepository) UpdateOrder(ctx context.Context, order *domain.Order) error {
	return r.updateOrder(ctx, r.db, order)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *pgOrderRepository) updateOrder(ctx context.Context, ex execer, order *domain.Order) error {
	query := `UPDATE orders SET status = $3, updated_at = $4, version = version + 1 WHERE id = $1 AND version = $2`
	res, err := ex.ExecContext(ctx, query, order.ID, order.Version, order.Status, order.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to update order", zap.String("order_id", order.ID), zap.Error(err))
		return fmt.Errorf("failed to update order %s: %w", order.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		r.logger.Warn("Order version conflict on update", zap.String("order_id", order.ID), zap.Int64("version", order.Version))
		return domain.ErrVersionConflict
	}
	order.Version++
	return nil
}

func (r *pgOrderRepository) UpdateOrderAndMarkInbox(ctx context.Context, order *domain.Order, inboxID string) error {
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

	if err = r.updateOrder(ctx, tx, order); err != nil {
		return err
	}
	err = markInboxProcessed(ctx, tx, inboxID)
	return err
}

func (r *pgOrderRepository) MarkInboxProcessed(ctx context.Context, inboxID string) error {
	return markInboxProcessed(ctx, r.db, inboxID)
}

func markInboxProcessed(ctx context.Context, ex execer, inboxID string) error {
	query := `UPDATE inbox_messages SET status = $2, processed_at = $3 WHERE id = $1`
	if _, err := ex.ExecContext(ctx, query, inboxID, domain.InboxStatusProcessed, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to mark inbox message %s processed: %w", inboxID, err)
	}
	return nil
}
