package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/robokiosk/checkout-engine/internal/core/domain"
	"github.com/robokiosk/checkout-engine/internal/port"
)

var (
	ErrInvalidTransition  = errors.New("transition not allowed from current step")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrMissingContact     = errors.New("name and phone are required")
	ErrGatewayUnavailable = errors.New("payment session could not be created")
)

// CheckoutService is the step sequencer for a checkout session. All state
// lives behind one mutex; the reconciling flag is the explicit guard that
// lets at most one payment callback drive the terminal transitions.
type CheckoutService struct {
	mu sync.Mutex

	step            domain.Step
	restaurantID    string
	customer        domain.CustomerInfo
	correlationID   string
	payURL          string
	orderID         string
	lastError       string
	cancelledByUser bool
	reconciling     bool

	ledger  *Ledger
	gateway port.PaymentGateway
	cache   port.CacheRepository
	logger  *zap.Logger
	now     func() time.Time
}

func NewCheckoutService(ledger *Ledger, gateway port.PaymentGateway, cache port.CacheRepository, logger *zap.Logger) *CheckoutService {
	return &CheckoutService{
		step:    domain.StepLocationSelection,
		ledger:  ledger,
		gateway: gateway,
		cache:   cache,
		logger:  logger,
		now:     time.Now,
	}
}

// Restore consumes a pending recovery record, landing the session back in
// the retry prompt with cart and customer exactly as they were before the
// gateway forced a reload. No-op when there is nothing to recover.
func (s *CheckoutService) Restore(ctx context.Context) error {
	rec, err := s.cache.ConsumeRecovery(ctx)
	if err != nil {
		return fmt.Errorf("consume recovery record: %w", err)
	}
	if rec == nil {
		return nil
	}

	s.ledger.RestoreCart(rec.Cart)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.customer = rec.Customer
	s.cancelledByUser = true
	s.lastError = rec.Reason
	s.step = domain.StepPaymentRetryPrompt

	s.logger.Info("checkout session restored from recovery record",
		zap.String("reason", rec.Reason),
		zap.Int("cart_items", len(rec.Cart.Items)))
	return nil
}

// Session returns a serializable snapshot of the current state.
func (s *CheckoutService) Session() domain.CheckoutSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CheckoutSession{
		Step:            s.step,
		RestaurantID:    s.restaurantID,
		Cart:            s.ledger.CartSnapshot(),
		Customer:        s.customer,
		CorrelationID:   s.correlationID,
		PayURL:          s.payURL,
		OrderID:         s.orderID,
		LastError:       s.lastError,
		CancelledByUser: s.cancelledByUser,
	}
}

func (s *CheckoutService) SelectLocation(restaurantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step != domain.StepLocationSelection {
		return ErrInvalidTransition
	}
	s.restaurantID = restaurantID
	s.step = domain.StepItemSelection
	return nil
}

// AddItem adds a cart line. The cart accepts mutations only while the
// session is choosing items; past that point its contents back the amount
// the gateway is asked to charge.
func (s *CheckoutService) AddItem(item domain.CartItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step != domain.StepItemSelection {
		return ErrInvalidTransition
	}
	s.ledger.AddItem(item)
	return nil
}

// SetItemQuantity changes a cart line, subject to the same step gate as
// AddItem.
func (s *CheckoutService) SetItemQuantity(itemID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step != domain.StepItemSelection {
		return ErrInvalidTransition
	}
	s.ledger.SetQuantity(itemID, quantity)
	return nil
}

func (s *CheckoutService) ConfirmItems() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step != domain.StepItemSelection {
		return ErrInvalidTransition
	}
	if s.ledger.CartEmpty() {
		return ErrEmptyCart
	}
	s.step = domain.StepContactDetails
	return nil
}

// SubmitContact validates the contact block and enters payment, minting the
// correlation id exactly once per session and asking the gateway for a
// payable session. A gateway failure discards the correlation id and drops
// back to contact details with a retryable error.
func (s *CheckoutService) SubmitContact(ctx context.Context, customer domain.CustomerInfo) error {
	s.mu.Lock()
	if s.step != domain.StepContactDetails {
		s.mu.Unlock()
		return ErrInvalidTransition
	}
	if !customer.Valid() {
		s.mu.Unlock()
		return ErrMissingContact
	}
	s.customer = customer
	s.step = domain.StepPayment
	s.mu.Unlock()

	return s.enterPayment(ctx)
}

// RetryPayment re-enters payment from the retry prompt, reusing the existing
// correlation id so the gateway resumes the same payable session.
func (s *CheckoutService) RetryPayment(ctx context.Context) error {
	s.mu.Lock()
	if s.step != domain.StepPaymentRetryPrompt {
		s.mu.Unlock()
		return ErrInvalidTransition
	}
	s.step = domain.StepPayment
	s.cancelledByUser = false
	s.lastError = ""
	s.mu.Unlock()

	return s.enterPayment(ctx)
}

// BackToContact leaves the retry prompt toward contact details, discarding
// the correlation id so the next payment attempt starts a fresh session.
func (s *CheckoutService) BackToContact() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step != domain.StepPaymentRetryPrompt {
		return ErrInvalidTransition
	}
	s.correlationID = ""
	s.payURL = ""
	s.cancelledByUser = false
	s.lastError = ""
	s.step = domain.StepContactDetails
	return nil
}

// Reset is the explicit "start over": any step back to location selection,
// cart cleared, correlation id discarded, pending recovery record dropped.
func (s *CheckoutService) Reset(ctx context.Context) {
	s.ledger.Clear()
	s.mu.Lock()
	s.restaurantID = ""
	s.customer = domain.CustomerInfo{}
	s.correlationID = ""
	s.payURL = ""
	s.orderID = ""
	s.lastError = ""
	s.cancelledByUser = false
	s.reconciling = false
	s.step = domain.StepLocationSelection
	s.mu.Unlock()

	s.discardRecovery(ctx)
}

func (s *CheckoutService) enterPayment(ctx context.Context) error {
	s.mu.Lock()
	if s.correlationID == "" {
		s.correlationID = mintCorrelationID(s.now())
	}
	correlationID := s.correlationID
	customer := s.customer
	s.mu.Unlock()

	extra := domain.ExtraData{
		Customer: customer,
		Items:    s.ledger.CartSnapshot().Items,
	}
	blob, err := extra.Encode()
	if err != nil {
		return s.failPaymentEntry(fmt.Errorf("encode extra data: %w", err))
	}

	payURL, err := s.gateway.CreatePaymentSession(ctx, s.ledger.Total(), blob, correlationID)
	if err != nil {
		s.logger.Error("payment session creation failed",
			zap.String("correlation_id", correlationID), zap.Error(err))
		return s.failPaymentEntry(fmt.Errorf("%w: %v", ErrGatewayUnavailable, err))
	}

	s.mu.Lock()
	s.payURL = payURL
	s.mu.Unlock()

	s.logger.Info("payment session created",
		zap.String("correlation_id", correlationID))
	return nil
}

// failPaymentEntry rolls a failed payment entry back to contact details with
// the correlation id discarded.
func (s *CheckoutService) failPaymentEntry(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.correlationID = ""
	s.payURL = ""
	s.lastError = err.Error()
	s.step = domain.StepContactDetails
	return err
}

// TryBeginReconcile claims the reconciliation guard. It refuses when another
// reconciliation is in flight or the session already reached success, and is
// cleared only by the terminal transitions.
func (s *CheckoutService) TryBeginReconcile() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reconciling || s.step == domain.StepSuccess {
		return false
	}
	s.reconciling = true
	return true
}

// AbandonReconcile releases the guard without transitioning, for callbacks
// the reconciler decides not to act on.
func (s *CheckoutService) AbandonReconcile() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconciling = false
}

// CompleteSuccess is the terminal success transition, entered only by the
// reconciler once an order id is known. The cart is cleared here.
func (s *CheckoutService) CompleteSuccess(ctx context.Context, orderID string) {
	s.ledger.Clear()
	s.mu.Lock()
	s.orderID = orderID
	s.payURL = ""
	s.lastError = ""
	s.cancelledByUser = false
	s.reconciling = false
	s.step = domain.StepSuccess
	s.mu.Unlock()

	// a record left by an earlier failed attempt is dead once the session
	// completes; a restart must not resurrect it
	s.discardRecovery(ctx)
}

func (s *CheckoutService) discardRecovery(ctx context.Context) {
	if err := s.cache.DeleteRecovery(ctx); err != nil {
		s.logger.Warn("failed to discard recovery record", zap.Error(err))
	}
}

// FailPayment routes a non-success outcome to the retry prompt, preserving
// cart, customer, and correlation id for a retry with the same session.
func (s *CheckoutService) FailPayment(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payURL = ""
	s.lastError = reason
	s.cancelledByUser = true
	s.reconciling = false
	s.step = domain.StepPaymentRetryPrompt
}

// CorrelationID returns the correlation id on the session, empty when no
// payment attempt has been started.
func (s *CheckoutService) CorrelationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.correlationID
}

// Customer returns the contact block currently on the session.
func (s *CheckoutService) Customer() domain.CustomerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.customer
}

// SetCustomer restores a contact block recovered from callback extra data.
func (s *CheckoutService) SetCustomer(customer domain.CustomerInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customer = customer
}

// mintCorrelationID builds the time-based idempotency key tying the gateway
// session to the eventual backend order.
func mintCorrelationID(now time.Time) string {
	return fmt.Sprintf("KIOSK-%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}
