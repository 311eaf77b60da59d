package domain

// Step is a checkout state machine state.
type Step string

const (
	StepLocationSelection  Step = "location_selection"
	StepItemSelection      Step = "item_selection"
	StepContactDetails     Step = "contact_details"
	StepPayment            Step = "payment"
	StepPaymentRetryPrompt Step = "payment_retry_prompt"
	StepSuccess            Step = "success"
)

func (s Step) String() string {
	return string(s)
}

// CustomerInfo is the contact block collected before payment.
type CustomerInfo struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Note  string `json:"note,omitempty"`
}

func (c CustomerInfo) Valid() bool {
	return c.Name != "" && c.Phone != ""
}

// CheckoutSession is a point-in-time snapshot of the checkout state, as
// exposed to the kiosk UI. The engine owns the live state; this copy is safe
// to serialize.
type CheckoutSession struct {
	Step            Step         `json:"step"`
	RestaurantID    string       `json:"restaurantId,omitempty"`
	Cart            Cart         `json:"cart"`
	Customer        CustomerInfo `json:"customer"`
	CorrelationID   string       `json:"correlationId,omitempty"`
	PayURL          string       `json:"payUrl,omitempty"`
	OrderID         string       `json:"orderId,omitempty"`
	LastError       string       `json:"lastError,omitempty"`
	CancelledByUser bool         `json:"cancelledByUser"`
}
