package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/robokiosk/checkout-engine/internal/core/domain"
	"github.com/robokiosk/checkout-engine/internal/port"
)

var (
	// ErrDuplicateOrder means an order for this correlation id was already
	// submitted and no history entry could be found to return instead.
	ErrDuplicateOrder = errors.New("order already submitted for correlation id")
)

const submittedKeyPrefix = "order:submitted:"

// Ledger owns the cart and is the only writer of order state. CreateOrder is
// idempotent on the correlation id: the submitted-set entry in the cache is
// claimed before the backend call, so a second attempt short-circuits even
// across an engine restart.
type Ledger struct {
	mu      sync.Mutex
	cart    domain.Cart
	pricing domain.Pricing
	tokens  *TokenAuthority
	cache   port.CacheRepository
	backend port.OrderBackend
	history port.OrderRepository
	logger  *zap.Logger
	now     func() time.Time
}

func NewLedger(pricing domain.Pricing, tokens *TokenAuthority, cache port.CacheRepository, backend port.OrderBackend, history port.OrderRepository, logger *zap.Logger) *Ledger {
	return &Ledger{
		pricing: pricing,
		tokens:  tokens,
		cache:   cache,
		backend: backend,
		history: history,
		logger:  logger,
		now:     time.Now,
	}
}

func (l *Ledger) AddItem(item domain.CartItem) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cart.AddItem(item)
}

func (l *Ledger) SetQuantity(itemID string, quantity int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cart.SetQuantity(itemID, quantity)
}

func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cart.Clear()
}

// RestoreCart replaces the cart contents wholesale, used when consuming a
// recovery record or rebuilding state from callback extra data.
func (l *Ledger) RestoreCart(cart domain.Cart) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cart = cart.Clone()
}

func (l *Ledger) CartSnapshot() domain.Cart {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cart.Clone()
}

func (l *Ledger) CartEmpty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cart.IsEmpty()
}

func (l *Ledger) Total() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pricing.Total(&l.cart)
}

// CreateOrder registers the current cart with the order backend, keyed by
// the correlation id. On an authorization failure it performs exactly one
// token refresh and exactly one retry, then surfaces whatever remains.
func (l *Ledger) CreateOrder(ctx context.Context, customer domain.CustomerInfo, correlationID string) (*domain.Order, error) {
	ok, err := l.cache.SetIdempotency(ctx, submittedKeyPrefix+correlationID)
	if err != nil {
		return nil, fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		existing, err := l.history.GetOrderByCorrelationID(ctx, correlationID)
		if err == nil && existing != nil {
			l.logger.Info("duplicate order creation short-circuited",
				zap.String("correlation_id", correlationID),
				zap.String("order_id", existing.ID))
			return existing, nil
		}
		return nil, ErrDuplicateOrder
	}

	l.mu.Lock()
	items := l.cart.Clone().Items
	subtotal := l.cart.Subtotal()
	l.mu.Unlock()
	fee := l.pricing.Fee(subtotal)

	req := port.CreateOrderRequest{
		CorrelationID: correlationID,
		Items:         items,
		Customer:      customer,
		Subtotal:      subtotal,
		DeliveryFee:   fee,
		Total:         subtotal + fee,
	}

	token, err := l.tokens.GetValidToken(ctx)
	if err != nil {
		return nil, err
	}

	result, err := l.backend.CreateOrder(ctx, token, req)
	if errors.Is(err, port.ErrUnauthorized) {
		l.logger.Warn("order backend rejected token, refreshing once",
			zap.String("correlation_id", correlationID))
		cred, refreshErr := l.tokens.Refresh(ctx)
		if refreshErr != nil {
			return nil, refreshErr
		}
		result, err = l.backend.CreateOrder(ctx, cred.AccessToken, req)
	}
	if err != nil {
		return nil, fmt.Errorf("create order %s: %w", correlationID, err)
	}

	now := l.now()
	order := domain.Order{
		ID:              result.OrderID,
		CorrelationID:   correlationID,
		Status:          domain.OrderStatusConfirmed,
		Items:           items,
		Customer:        customer,
		Subtotal:        subtotal,
		DeliveryFee:     fee,
		Total:           subtotal + fee,
		AssignedRobotID: result.AssignedRobotID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := l.history.SaveOrder(ctx, order); err != nil {
		// the backend order exists; history is best effort
		l.logger.Warn("failed to persist order history",
			zap.String("order_id", order.ID), zap.Error(err))
	}

	l.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("correlation_id", correlationID),
		zap.Int64("total", order.Total))
	return &order, nil
}

// RecordSynthesizedOrder writes a locally synthesized order to history after
// the paid-but-unregistered fallback, best effort.
func (l *Ledger) RecordSynthesizedOrder(ctx context.Context, customer domain.CustomerInfo, correlationID, localOrderID string) *domain.Order {
	l.mu.Lock()
	items := l.cart.Clone().Items
	subtotal := l.cart.Subtotal()
	l.mu.Unlock()
	fee := l.pricing.Fee(subtotal)

	now := l.now()
	order := domain.Order{
		ID:            localOrderID,
		CorrelationID: correlationID,
		Status:        domain.OrderStatusConfirmed,
		Items:         items,
		Customer:      customer,
		Subtotal:      subtotal,
		DeliveryFee:   fee,
		Total:         subtotal + fee,
		Synthesized:   true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := l.history.SaveOrder(ctx, order); err != nil {
		l.logger.Warn("failed to persist synthesized order",
			zap.String("order_id", localOrderID), zap.Error(err))
	}
	return &order
}

// GetOrder returns an order from history by correlation id, nil when absent.
func (l *Ledger) GetOrder(ctx context.Context, correlationID string) (*domain.Order, error) {
	return l.history.GetOrderByCorrelationID(ctx, correlationID)
}
