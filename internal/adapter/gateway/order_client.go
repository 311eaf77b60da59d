package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/robokiosk/checkout-engine/internal/core/domain"
	"github.com/robokiosk/checkout-engine/internal/port"
)

// OrderBackendClient registers paid orders with the order backend. The
// correlation id rides the Idempotency-Key header so the backend can dedup
// on its side too.
type OrderBackendClient struct {
	endpoint string
	http     *http.Client
}

func NewOrderBackendClient(endpoint string, httpClient *http.Client) *OrderBackendClient {
	return &OrderBackendClient{endpoint: endpoint, http: httpClient}
}

type createOrderPayload struct {
	CorrelationID string            `json:"correlationId"`
	Items         []domain.CartItem `json:"items"`
	Customer      struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
		Note  string `json:"note,omitempty"`
	} `json:"customer"`
	Subtotal    int64 `json:"subtotal"`
	DeliveryFee int64 `json:"deliveryFee"`
	Total       int64 `json:"total"`
}

type createOrderResponse struct {
	OrderID    string `json:"orderId"`
	RobotID    string `json:"robotId"`
	ETAMinutes int    `json:"etaMinutes"`
}

func (c *OrderBackendClient) CreateOrder(ctx context.Context, accessToken string, req port.CreateOrderRequest) (*port.CreateOrderResult, error) {
	payload := createOrderPayload{
		CorrelationID: req.CorrelationID,
		Items:         req.Items,
		Subtotal:      req.Subtotal,
		DeliveryFee:   req.DeliveryFee,
		Total:         req.Total,
	}
	payload.Customer.Name = req.Customer.Name
	payload.Customer.Phone = req.Customer.Phone
	payload.Customer.Note = req.Customer.Note

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal order payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build order request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	httpReq.Header.Set("Idempotency-Key", req.CorrelationID)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("order backend: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, port.ErrUnauthorized
	default:
		return nil, fmt.Errorf("order backend returned %d", resp.StatusCode)
	}

	var body createOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode order response: %w", err)
	}
	if body.OrderID == "" {
		return nil, fmt.Errorf("order backend returned empty order id")
	}

	return &port.CreateOrderResult{
		OrderID:         body.OrderID,
		AssignedRobotID: body.RobotID,
		ETA:             time.Duration(body.ETAMinutes) * time.Minute,
	}, nil
}
