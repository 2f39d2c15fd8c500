package provider

import (
	"github.com/shopspring/decimal"
)

const (
	// HeaderIdempotencyKey deduplicates remote side effects of retried calls
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderAPIKey         = "X-Api-Key"
	HeaderNamespace      = "X-Namespace"
)

// OrderLine is one priced line of an order sent to the provider
type OrderLine struct {
	ProductID     string          `json:"product_id"`
	Description   string          `json:"description"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	VATPercentage decimal.Decimal `json:"vat_percentage"`
	StartDate     string          `json:"start_date"`
	EndDate       string          `json:"end_date"`
}

// Customer identifies who pays the order
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// CreateOrderRequest creates a checkout at the provider. Subscription is set
// for an open ended permit so the provider renews the order every period.
type CreateOrderRequest struct {
	ReferenceNumber string          `json:"reference_number"`
	PermitID        string          `json:"permit_id"`
	Customer        Customer        `json:"customer"`
	Lines           []OrderLine     `json:"lines"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	Subscription    bool            `json:"subscription"`

	// IdempotencyKey is sent as a header, not in the body
	IdempotencyKey string `json:"-"`
}

// CreateOrderResponse carries the provider's identifiers of the created order
type CreateOrderResponse struct {
	OrderID        string `json:"order_id"`
	CheckoutURL    string `json:"checkout_url"`
	SubscriptionID string `json:"subscription_id,omitempty"`
}

type cancelRequest struct {
	Reason string `json:"reason,omitempty"`
}
