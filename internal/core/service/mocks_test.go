package service

import (
	"context"
	"errors"
	"sync"

	"github.com/robokiosk/checkout-engine/internal/core/domain"
	"github.com/robokiosk/checkout-engine/internal/port"
)

// mockCache implements port.CacheRepository in memory.
type mockCache struct {
	mu          sync.Mutex
	idempotency map[string]bool
	recovery    *domain.RecoveryRecord
	credential  *domain.Credential

	saveRecoveryCalls int
}

func newMockCache() *mockCache {
	return &mockCache{idempotency: make(map[string]bool)}
}

func (m *mockCache) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.idempotency[key] {
		return false, nil
	}
	m.idempotency[key] = true
	return true, nil
}

func (m *mockCache) SaveRecovery(ctx context.Context, rec domain.RecoveryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := rec
	m.recovery = &r
	m.saveRecoveryCalls++
	return nil
}

func (m *mockCache) ConsumeRecovery(ctx context.Context) (*domain.RecoveryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.recovery
	m.recovery = nil
	return rec, nil
}

func (m *mockCache) DeleteRecovery(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recovery = nil
	return nil
}

func (m *mockCache) LoadCredential(ctx context.Context) (*domain.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.credential, nil
}

func (m *mockCache) StoreCredential(ctx context.Context, cred domain.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := cred
	m.credential = &c
	return nil
}

// mockHistory implements port.OrderRepository in memory.
type mockHistory struct {
	mu     sync.Mutex
	orders map[string]domain.Order
}

func newMockHistory() *mockHistory {
	return &mockHistory{orders: make(map[string]domain.Order)}
}

func (m *mockHistory) SaveOrder(ctx context.Context, order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[order.CorrelationID]; ok {
		return nil
	}
	m.orders[order.CorrelationID] = order
	return nil
}

func (m *mockHistory) GetOrderByCorrelationID(ctx context.Context, correlationID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[correlationID]
	if !ok {
		return nil, nil
	}
	return &order, nil
}

// mockIdentity implements port.IdentityProvider.
type mockIdentity struct {
	mu       sync.Mutex
	cred     *domain.Credential
	err      error
	refreshN int
}

func (m *mockIdentity) Refresh(ctx context.Context, refreshToken string) (*domain.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshN++
	if m.err != nil {
		return nil, m.err
	}
	cred := *m.cred
	return &cred, nil
}

func (m *mockIdentity) refreshCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshN
}

// mockGateway implements port.PaymentGateway.
type mockGateway struct {
	mu     sync.Mutex
	payURL string
	err    error
	calls  []string // correlation ids, in order
}

func (m *mockGateway) CreatePaymentSession(ctx context.Context, amount int64, extraData, correlationID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, correlationID)
	if m.err != nil {
		return "", m.err
	}
	return m.payURL, nil
}

// mockBackend implements port.OrderBackend. failTimes controls how many
// leading calls fail with failErr before succeeding.
type mockBackend struct {
	mu        sync.Mutex
	orderID   string
	robotID   string
	failTimes int
	failErr   error
	calls     int
}

var errBackendDown = errors.New("backend unavailable")

func (m *mockBackend) CreateOrder(ctx context.Context, accessToken string, req port.CreateOrderRequest) (*port.CreateOrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failTimes > 0 {
		m.failTimes--
		return nil, m.failErr
	}
	return &port.CreateOrderResult{OrderID: m.orderID, AssignedRobotID: m.robotID}, nil
}

func (m *mockBackend) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockView implements port.PaymentView.
type mockView struct {
	mu     sync.Mutex
	closed int
}

func (m *mockView) ClosePayment(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

// mockAudit implements port.AuditSink.
type mockAudit struct {
	mu      sync.Mutex
	entries []string // local order ids
}

func (m *mockAudit) RecordOrphanedPayment(ctx context.Context, cb domain.PaymentCallback, localOrderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, localOrderID)
	return nil
}
