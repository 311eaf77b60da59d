package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/robokiosk/checkout-engine/internal/core/domain"
	"github.com/robokiosk/checkout-engine/internal/core/service"
)

type HTTPHandler struct {
	checkout   *service.CheckoutService
	ledger     *service.Ledger
	reconciler *service.Reconciler
	originKey  string
	logger     *zap.Logger
}

func NewHTTPHandler(checkout *service.CheckoutService, ledger *service.Ledger, reconciler *service.Reconciler, originKey string, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{
		checkout:   checkout,
		ledger:     ledger,
		reconciler: reconciler,
		originKey:  originKey,
		logger:     logger,
	}
}

// Register wires every route onto the mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HealthCheck)
	mux.HandleFunc("/api/session", h.Session)
	mux.HandleFunc("/api/location", h.SelectLocation)
	mux.HandleFunc("/api/cart/items", h.CartItems)
	mux.HandleFunc("/api/checkout/confirm-items", h.ConfirmItems)
	mux.HandleFunc("/api/checkout/contact", h.SubmitContact)
	mux.HandleFunc("/api/checkout/retry", h.RetryPayment)
	mux.HandleFunc("/api/checkout/back", h.BackToContact)
	mux.HandleFunc("/api/checkout/reset", h.Reset)
	mux.HandleFunc("/api/payment/notify", h.PaymentNotify)
	mux.HandleFunc("/api/payment/return", h.PaymentReturn)
	mux.HandleFunc("/api/orders/", h.GetOrder)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *HTTPHandler) Session(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.checkout.Session())
}

func (h *HTTPHandler) SelectLocation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		RestaurantID string `json:"restaurantId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RestaurantID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "restaurantId is required"})
		return
	}

	if err := h.checkout.SelectLocation(req.RestaurantID); err != nil {
		h.writeTransitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.checkout.Session())
}

func (h *HTTPHandler) CartItems(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var item domain.CartItem
		if err := json.NewDecoder(r.Body).Decode(&item); err != nil || item.ItemID == "" || item.Quantity <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "itemId and a positive quantity are required"})
			return
		}
		if err := h.checkout.AddItem(item); err != nil {
			h.writeTransitionError(w, err)
			return
		}
	case http.MethodPut:
		var req struct {
			ItemID   string `json:"itemId"`
			Quantity int    `json:"quantity"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ItemID == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "itemId is required"})
			return
		}
		if err := h.checkout.SetItemQuantity(req.ItemID, req.Quantity); err != nil {
			h.writeTransitionError(w, err)
			return
		}
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.checkout.Session())
}

func (h *HTTPHandler) ConfirmItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := h.checkout.ConfirmItems(); err != nil {
		h.writeTransitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.checkout.Session())
}

func (h *HTTPHandler) SubmitContact(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var customer domain.CustomerInfo
	if err := json.NewDecoder(r.Body).Decode(&customer); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	if err := h.checkout.SubmitContact(r.Context(), customer); err != nil {
		h.writeTransitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.checkout.Session())
}

func (h *HTTPHandler) RetryPayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := h.checkout.RetryPayment(r.Context()); err != nil {
		h.writeTransitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.checkout.Session())
}

func (h *HTTPHandler) BackToContact(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := h.checkout.BackToContact(); err != nil {
		h.writeTransitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.checkout.Session())
}

func (h *HTTPHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.checkout.Reset(r.Context())
	writeJSON(w, http.StatusOK, h.checkout.Session())
}

// PaymentNotify is the message channel. The origin key check is a security
// boundary: anything without the kiosk's own key is rejected outright.
func (h *HTTPHandler) PaymentNotify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.Header.Get("X-Kiosk-Origin") != h.originKey {
		h.logger.Warn("payment notify rejected: origin mismatch",
			zap.String("remote", r.RemoteAddr))
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "origin not allowed"})
		return
	}

	var cb domain.PaymentCallback
	if err := json.NewDecoder(r.Body).Decode(&cb); err != nil || cb.Type != domain.CallbackType {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "not a payment callback"})
		return
	}

	if err := h.reconciler.HandleMessage(r.Context(), cb); err != nil {
		h.logger.Error("notify reconciliation failed", zap.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}

// PaymentReturn is the redirect channel: the gateway sends the user's
// browser here with the outcome in the query string.
func (h *HTTPHandler) PaymentReturn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	resultCode, err := strconv.Atoi(q.Get("resultCode"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "resultCode is required"})
		return
	}

	cb := domain.PaymentCallback{
		Type:       domain.CallbackType,
		ResultCode: resultCode,
		OrderID:    q.Get("orderId"),
		TransID:    q.Get("transId"),
		ExtraData:  q.Get("extraData"),
	}
	embedded := q.Get("embedded") == "1"

	if err := h.reconciler.HandleRedirect(r.Context(), cb, embedded); err != nil {
		h.logger.Error("redirect reconciliation failed", zap.Error(err))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("<html><body>Payment processed. You can return to the kiosk.</body></html>"))
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	correlationID := strings.TrimPrefix(r.URL.Path, "/api/orders/")
	if correlationID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "correlation id is required"})
		return
	}

	order, err := h.ledger.GetOrder(r.Context(), correlationID)
	if err != nil {
		h.logger.Error("order lookup failed", zap.String("correlation_id", correlationID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	if order == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "order not found"})
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) writeTransitionError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, service.ErrEmptyCart), errors.Is(err, service.ErrMissingContact):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrGatewayUnavailable):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
