package domain

import "time"

type OrderStatus string

const (
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusPreparing  OrderStatus = "preparing"
	OrderStatusDelivering OrderStatus = "delivering"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Order is the backend-confirmed record of a paid checkout. CorrelationID is
// the idempotency key: at most one order ever exists per correlation id.
// Synthesized marks orders created locally after a paid-but-unregistered
// fallback; those need operational reconciliation against the gateway.
type Order struct {
	ID              string
	CorrelationID   string
	Status          OrderStatus
	Items           []CartItem
	Customer        CustomerInfo
	Subtotal        int64
	DeliveryFee     int64
	Total           int64
	AssignedRobotID string
	Synthesized     bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
