package port

import (
	"context"

	"github.com/robokiosk/checkout-engine/internal/core/domain"
)

// OrderRepository is the durable local order history.
type OrderRepository interface {
	// SaveOrder persists an order; saving the same correlation id twice is a no-op
	SaveOrder(ctx context.Context, order domain.Order) error

	// GetOrderByCorrelationID retrieves an order, nil when not found
	GetOrderByCorrelationID(ctx context.Context, correlationID string) (*domain.Order, error)
}
