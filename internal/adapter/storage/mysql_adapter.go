package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/robokiosk/checkout-engine/internal/core/domain"
)

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

// SaveOrder persists an order to local history. correlation_id is the
// primary key, so replaying the same order is a no-op rather than an error.
func (m *MySQLAdapter) SaveOrder(ctx context.Context, order domain.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("marshal order items: %w", err)
	}

	_, err = m.db.ExecContext(ctx, `
		INSERT INTO orders
			(correlation_id, id, status, items, customer_name, customer_phone, customer_note,
			 subtotal, delivery_fee, total, robot_id, synthesized, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE correlation_id = correlation_id`,
		order.CorrelationID, order.ID, order.Status, items,
		order.Customer.Name, order.Customer.Phone, order.Customer.Note,
		order.Subtotal, order.DeliveryFee, order.Total,
		order.AssignedRobotID, order.Synthesized, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	return nil
}

func (m *MySQLAdapter) GetOrderByCorrelationID(ctx context.Context, correlationID string) (*domain.Order, error) {
	var (
		order domain.Order
		items []byte
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT correlation_id, id, status, items, customer_name, customer_phone, customer_note,
		       subtotal, delivery_fee, total, robot_id, synthesized, created_at, updated_at
		FROM orders WHERE correlation_id = ?`, correlationID,
	).Scan(&order.CorrelationID, &order.ID, &order.Status, &items,
		&order.Customer.Name, &order.Customer.Phone, &order.Customer.Note,
		&order.Subtotal, &order.DeliveryFee, &order.Total,
		&order.AssignedRobotID, &order.Synthesized, &order.CreatedAt, &order.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	if err := json.Unmarshal(items, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	return &order, nil
}
