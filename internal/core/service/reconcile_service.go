package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/robokiosk/checkout-engine/internal/core/domain"
	"github.com/robokiosk/checkout-engine/internal/port"
)

// Reconciler turns a payment outcome into a confirmed local order exactly
// once. The gateway delivers outcomes on two racing channels: the notify
// message while the payment view is embedded, and the return redirect on a
// full navigation. Both funnel into reconcile behind the checkout guard.
type Reconciler struct {
	checkout *CheckoutService
	ledger   *Ledger
	cache    port.CacheRepository
	view     port.PaymentView
	audit    port.AuditSink
	logger   *zap.Logger

	// successDelay lets the closing payment view finish before the UI is
	// handed the success step.
	successDelay time.Duration
}

func NewReconciler(checkout *CheckoutService, ledger *Ledger, cache port.CacheRepository, view port.PaymentView, audit port.AuditSink, successDelay time.Duration, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		checkout:     checkout,
		ledger:       ledger,
		cache:        cache,
		view:         view,
		audit:        audit,
		successDelay: successDelay,
		logger:       logger,
	}
}

// HandleMessage processes a callback delivered on the notify channel. The
// transport-level origin check happens at the handler boundary; a message
// that reaches here is trusted.
func (r *Reconciler) HandleMessage(ctx context.Context, cb domain.PaymentCallback) error {
	return r.reconcile(ctx, cb)
}

// HandleRedirect processes a callback delivered as return-redirect query
// parameters. When the redirect was observed inside the embedded payment
// view, it must not reconcile itself: it re-posts the identical payload
// through the notify channel so exactly one code path performs
// reconciliation.
func (r *Reconciler) HandleRedirect(ctx context.Context, cb domain.PaymentCallback, embedded bool) error {
	if embedded {
		r.logger.Debug("embedded redirect re-posted to notify channel",
			zap.String("gateway_order_id", cb.OrderID))
		return r.HandleMessage(ctx, cb)
	}
	return r.reconcile(ctx, cb)
}

func (r *Reconciler) reconcile(ctx context.Context, cb domain.PaymentCallback) error {
	if !r.checkout.TryBeginReconcile() {
		r.logger.Info("duplicate payment callback ignored",
			zap.String("gateway_order_id", cb.OrderID),
			zap.Int("result_code", cb.ResultCode))
		return nil
	}

	customer := r.checkout.Customer()
	recoverable := false
	extra, err := domain.DecodeExtraData(cb.ExtraData)
	if err != nil {
		r.logger.Warn("payment callback carried undecodable extra data",
			zap.String("gateway_order_id", cb.OrderID), zap.Error(err))
	} else {
		recoverable = extra.Customer.Valid() || len(extra.Items) > 0
		// a redirect after a restart arrives with empty in-memory state;
		// the round-tripped metadata rebuilds it
		if !customer.Valid() && extra.Customer.Valid() {
			customer = extra.Customer
			r.checkout.SetCustomer(customer)
		}
		if r.ledger.CartEmpty() && len(extra.Items) > 0 {
			r.ledger.RestoreCart(domain.Cart{Items: extra.Items})
		}
	}

	if cb.Succeeded() {
		r.reconcileSuccess(ctx, cb, customer)
		return nil
	}

	// a failure outcome only makes sense against a payment attempt: either
	// the session minted a correlation id, or the callback round-trips a
	// payable session from before a restart. Anything else is a stray.
	if r.checkout.CorrelationID() == "" && !recoverable {
		r.checkout.AbandonReconcile()
		r.logger.Warn("failure callback without a payment attempt ignored",
			zap.String("gateway_order_id", cb.OrderID),
			zap.Int("result_code", cb.ResultCode))
		return nil
	}
	r.reconcileFailure(ctx, cb, customer)
	return nil
}

// reconcileSuccess drives a paid callback to the success step. Whatever the
// backend does, a paying customer never lands in an error state.
func (r *Reconciler) reconcileSuccess(ctx context.Context, cb domain.PaymentCallback, customer domain.CustomerInfo) {
	// close the payment view before any backend call so a slow gateway
	// page cannot redirect the user a second time
	if err := r.view.ClosePayment(ctx); err != nil {
		r.logger.Warn("failed to close payment view", zap.Error(err))
	}

	orderID := ""
	order, err := r.ledger.CreateOrder(ctx, customer, cb.OrderID)
	switch {
	case err == nil:
		orderID = order.ID
	default:
		// the user has already paid: proceed with a synthesized order id
		// and flag the payment for operational follow-up
		orderID = "local-" + uuid.NewString()
		r.logger.Error("order registration failed after successful payment, proceeding with local order",
			zap.String("correlation_id", cb.OrderID),
			zap.String("trans_id", cb.TransID),
			zap.String("local_order_id", orderID),
			zap.Error(err))
		if auditErr := r.audit.RecordOrphanedPayment(ctx, cb, orderID); auditErr != nil {
			r.logger.Error("failed to record orphaned payment", zap.Error(auditErr))
		}
		r.ledger.RecordSynthesizedOrder(ctx, customer, cb.OrderID, orderID)
	}

	if r.successDelay > 0 {
		time.Sleep(r.successDelay)
	}
	r.checkout.CompleteSuccess(ctx, orderID)
	r.logger.Info("payment reconciled",
		zap.String("order_id", orderID),
		zap.String("correlation_id", cb.OrderID),
		zap.String("trans_id", cb.TransID))
}

// reconcileFailure routes a failed or cancelled payment to the retry prompt
// and leaves a recovery record behind, since the redirect channel may be
// about to force a full reload.
func (r *Reconciler) reconcileFailure(ctx context.Context, cb domain.PaymentCallback, customer domain.CustomerInfo) {
	if err := r.view.ClosePayment(ctx); err != nil {
		r.logger.Warn("failed to close payment view", zap.Error(err))
	}

	reason := fmt.Sprintf("payment not completed (result code %d)", cb.ResultCode)
	rec := domain.RecoveryRecord{
		Cart:     r.ledger.CartSnapshot(),
		Customer: customer,
		Reason:   reason,
	}
	if err := r.cache.SaveRecovery(ctx, rec); err != nil {
		r.logger.Error("failed to save recovery record", zap.Error(err))
	}

	r.checkout.FailPayment(reason)
	r.logger.Info("payment failed or cancelled, session preserved for retry",
		zap.String("gateway_order_id", cb.OrderID),
		zap.Int("result_code", cb.ResultCode))
}
