package domain

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// CallbackType is the discriminator the gateway puts on notify messages.
const CallbackType = "PAYMENT_CALLBACK"

// ResultCodeSuccess is the gateway's code for a completed payment; every
// other code is a failure or user cancellation.
const ResultCodeSuccess = 0

// PaymentCallback is the payload the gateway delivers on both channels: as a
// JSON notify message and as query parameters on the return redirect.
// OrderID is the gateway's identifier for the payable session, which the
// engine minted as the correlation id.
type PaymentCallback struct {
	Type       string `json:"type"`
	ResultCode int    `json:"resultCode"`
	OrderID    string `json:"orderId"`
	TransID    string `json:"transId"`
	ExtraData  string `json:"extraData"`
}

func (c PaymentCallback) Succeeded() bool {
	return c.ResultCode == ResultCodeSuccess
}

// ExtraData is the opaque metadata round-tripped through the gateway. It
// carries enough to reconcile a payment even when the engine restarted and
// lost its in-memory session.
type ExtraData struct {
	Customer CustomerInfo `json:"customer"`
	Items    []CartItem   `json:"items,omitempty"`
}

func (d ExtraData) Encode() (string, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("marshal extra data: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func DecodeExtraData(s string) (ExtraData, error) {
	var d ExtraData
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("decode extra data: %w", err)
	}
	if err := json.Unmarshal(raw, &d); err != nil {
		return d, fmt.Errorf("unmarshal extra data: %w", err)
	}
	return d, nil
}

// RecoveryRecord is the durable snapshot written when a payment fails or is
// cancelled right before the gateway forces a reload. Consumed exactly once
// on the next start.
type RecoveryRecord struct {
	Cart     Cart         `json:"cart"`
	Customer CustomerInfo `json:"customer"`
	Reason   string       `json:"reason"`
}
