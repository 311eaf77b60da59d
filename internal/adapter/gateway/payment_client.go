package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/robokiosk/checkout-engine/internal/core/domain"
)

// PaymentClient asks the external payment service to mint a payable session
// for an amount and an opaque metadata blob, keyed by the correlation id.
type PaymentClient struct {
	endpoint    string
	partnerCode string
	returnURL   string
	http        *http.Client
}

func NewPaymentClient(endpoint, partnerCode, returnURL string, httpClient *http.Client) *PaymentClient {
	return &PaymentClient{
		endpoint:    endpoint,
		partnerCode: partnerCode,
		returnURL:   returnURL,
		http:        httpClient,
	}
}

type createSessionRequest struct {
	PartnerCode string `json:"partnerCode"`
	OrderID     string `json:"orderId"`
	Amount      int64  `json:"amount"`
	OrderInfo   string `json:"orderInfo"`
	RedirectURL string `json:"redirectUrl"`
	ExtraData   string `json:"extraData"`
	RequestType string `json:"requestType"`
}

type createSessionResponse struct {
	ResultCode int    `json:"resultCode"`
	Message    string `json:"message"`
	PayURL     string `json:"payUrl"`
}

func (c *PaymentClient) CreatePaymentSession(ctx context.Context, amount int64, extraData, correlationID string) (string, error) {
	payload, err := json.Marshal(createSessionRequest{
		PartnerCode: c.partnerCode,
		OrderID:     correlationID,
		Amount:      amount,
		OrderInfo:   "kiosk food order " + correlationID,
		RedirectURL: c.returnURL,
		ExtraData:   extraData,
		RequestType: "captureWallet",
	})
	if err != nil {
		return "", fmt.Errorf("marshal session request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("payment gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("payment gateway returned %d", resp.StatusCode)
	}

	var body createSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode session response: %w", err)
	}
	if body.ResultCode != domain.ResultCodeSuccess {
		return "", fmt.Errorf("payment gateway refused session: %s (code %d)", body.Message, body.ResultCode)
	}
	if body.PayURL == "" {
		return "", fmt.Errorf("payment gateway returned empty pay url")
	}

	return body.PayURL, nil
}
