package port

import (
	"context"
	"errors"
	"time"

	"github.com/robokiosk/checkout-engine/internal/core/domain"
)

// ErrUnauthorized is returned by backends when the access token is rejected.
// Callers recover with exactly one refresh and one retry.
var ErrUnauthorized = errors.New("access token rejected")

// IdentityProvider exchanges a refresh token for a fresh credential pair.
type IdentityProvider interface {
	Refresh(ctx context.Context, refreshToken string) (*domain.Credential, error)
}

// PaymentGateway mints a payable session at the external payment service.
// The returned pay URL is a black box for display only. The extra data blob
// is round-tripped verbatim on the gateway's callbacks.
type PaymentGateway interface {
	CreatePaymentSession(ctx context.Context, amount int64, extraData, correlationID string) (payURL string, err error)
}

type CreateOrderRequest struct {
	CorrelationID string
	Items         []domain.CartItem
	Customer      domain.CustomerInfo
	Subtotal      int64
	DeliveryFee   int64
	Total         int64
}

type CreateOrderResult struct {
	OrderID         string
	AssignedRobotID string
	ETA             time.Duration
}

// OrderBackend registers a paid order with the order service. The
// correlation id doubles as the backend idempotency key.
type OrderBackend interface {
	CreateOrder(ctx context.Context, accessToken string, req CreateOrderRequest) (*CreateOrderResult, error)
}

// AuditSink records payments that succeeded at the gateway but could not be
// registered with the order backend, for operational follow-up.
type AuditSink interface {
	RecordOrphanedPayment(ctx context.Context, cb domain.PaymentCallback, localOrderID string) error
}

// PaymentView is whatever surface is currently displaying the pay URL. The
// reconciler closes it before any backend call so a slow gateway page cannot
// redirect the user again.
type PaymentView interface {
	ClosePayment(ctx context.Context) error
}
