package domain

import "time"

// CheckoutItem is the wire form of a cart line sent to the checkout endpoint.
// UnitAmount is expressed in cents.
type CheckoutItem struct {
	SKU        string `json:"sku" validate:"required"`
	Name       string `json:"name" validate:"required"`
	UnitAmount int64  `json:"unit_amount" validate:"gt=0"`
	Qty        int64  `json:"qty" validate:"gt=0"`
	Image      string `json:"image" validate:"required,url"`
}

type CheckoutRequest struct {
	Items []CheckoutItem `json:"items" validate:"required,min=1,dive"`
}

type CheckoutResponse struct {
	URL string `json:"url"`
}

// PaymentMode mirrors the provider's session modes; only single payments are used.
type PaymentMode string

const PaymentModePayment PaymentMode = "payment"

// PaymentLineItem is a provider-neutral line of a hosted checkout session.
type PaymentLineItem struct {
	Name       string
	UnitAmount int64
	Quantity   int64
	Images     []string
}

type PaymentSessionRequest struct {
	Mode       PaymentMode
	Currency   string
	LineItems  []PaymentLineItem
	SuccessURL string
	CancelURL  string
}

// PaymentSession is the provider-issued hosted checkout.
type PaymentSession struct {
	ID  string
	URL string
}

// CheckoutSessionCreated is published after the provider issued a session.
type CheckoutSessionCreated struct {
	EventID     string              `json:"event_id"`
	SessionID   string              `json:"session_id"`
	RequestID   string              `json:"request_id,omitempty"`
	Items       []CheckoutEventItem `json:"items"`
	TotalAmount int64               `json:"total_amount"`
	Currency    string              `json:"currency"`
	CreatedAt   time.Time           `json:"created_at"`
}

type CheckoutEventItem struct {
	SKU        string `json:"sku"`
	Quantity   int64  `json:"quantity"`
	UnitAmount int64  `json:"unit_amount"`
}
