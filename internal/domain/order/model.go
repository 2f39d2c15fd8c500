package order

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/flexprice/parkingpermits/internal/calendar"
	"github.com/flexprice/parkingpermits/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Order is a charge (or credit) sent to the payment provider for one permit
type Order struct {
	// ID is the unique identifier of the order
	ID string `json:"id"`

	// ReferenceNumber is the short human facing order number
	ReferenceNumber string `json:"reference_number"`

	CustomerID string            `json:"customer_id"`
	PermitID   string            `json:"permit_id"`
	Type       types.OrderType   `json:"type"`
	Status     types.OrderStatus `json:"status"`

	// ExternalOrderID is the provider's order id, set once the order is created remotely
	ExternalOrderID string `json:"external_order_id,omitempty"`

	// ExternalSubscriptionID is the provider's subscription id of an open ended permit
	ExternalSubscriptionID string                   `json:"external_subscription_id,omitempty"`
	SubscriptionStatus     types.SubscriptionStatus `json:"subscription_status,omitempty"`

	// CheckoutURL is where the customer pays the order
	CheckoutURL string `json:"checkout_url,omitempty"`

	// IdempotencyKey tags the remote create call so a retry never creates a second provider order
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	// TotalPrice is the VAT inclusive sum of the items, negative for a net credit
	TotalPrice decimal.Decimal `json:"total_price"`

	PaidTime      *time.Time `json:"paid_time,omitempty"`
	CancelledTime *time.Time `json:"cancelled_time,omitempty"`

	// ExtensionRequestID links an extension order to its request
	ExtensionRequestID string `json:"extension_request_id,omitempty"`

	Items []*OrderItem `json:"items"`

	types.BaseModel
}

// IsPaid reports whether the provider confirmed the payment
func (o *Order) IsPaid() bool {
	return o.Status == types.OrderStatusConfirmed && o.PaidTime != nil
}

// ChargeItems returns the items that charge the customer, skipping credit lines
func (o *Order) ChargeItems() []*OrderItem {
	return lo.Filter(o.Items, func(item *OrderItem, _ int) bool {
		return !item.IsCredit()
	})
}

// CalculateTotal sums the item totals
func (o *Order) CalculateTotal() decimal.Decimal {
	return lo.Reduce(o.Items, func(acc decimal.Decimal, item *OrderItem, _ int) decimal.Decimal {
		return acc.Add(item.TotalPrice)
	}, decimal.Zero)
}

// OrderItem is the frozen snapshot of what was charged for one product over a date range
type OrderItem struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	PermitID  string `json:"permit_id"`
	ProductID string `json:"product_id"`

	// StartDate and EndDate form the half-open civil range the item pays for
	StartDate civil.Date `json:"start_date"`
	EndDate   civil.Date `json:"end_date"`

	// Quantity is the number of month periods the item spans
	Quantity int `json:"quantity"`

	// UnitPrice is the modified monthly price at charge time
	UnitPrice decimal.Decimal `json:"unit_price"`

	// TotalPrice is the VAT inclusive amount actually charged, negative for a credit line
	TotalPrice    decimal.Decimal `json:"total_price"`
	VATPercentage decimal.Decimal `json:"vat_percentage"`

	// CreditedItemID is the item a credit line gives money back for
	CreditedItemID string `json:"credited_item_id,omitempty"`

	// RefundedAmount is the part of TotalPrice already returned to the customer
	RefundedAmount decimal.Decimal `json:"refunded_amount"`

	// RefundedFrom is the first date whose value was refunded or credited.
	// Days from it on no longer belong to the item.
	RefundedFrom *civil.Date `json:"refunded_from,omitempty"`

	types.BaseModel
}

// Period returns the civil range the item pays for
func (i *OrderItem) Period() calendar.Period {
	return calendar.Period{Start: i.StartDate, End: i.EndDate}
}

// IsCredit reports whether the item is a credit line of a change order
func (i *OrderItem) IsCredit() bool {
	return i.CreditedItemID != "" || i.TotalPrice.IsNegative()
}

// RefundableUntil returns the exclusive end of the days that were neither
// refunded nor credited yet
func (i *OrderItem) RefundableUntil() civil.Date {
	if i.RefundedFrom == nil {
		return i.EndDate
	}
	return calendar.MinDate(i.EndDate, *i.RefundedFrom)
}

// MarkRefundedFrom records that the item's days from d on were given back
func (i *OrderItem) MarkRefundedFrom(d civil.Date) {
	if i.RefundedFrom == nil || d.Before(*i.RefundedFrom) {
		i.RefundedFrom = &d
	}
}

// Remaining returns the amount that can still be refunded for the item
func (i *OrderItem) Remaining() decimal.Decimal {
	if i.IsCredit() {
		return decimal.Zero
	}
	remaining := i.TotalPrice.Sub(i.RefundedAmount)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}
