package refund

import (
	"github.com/flexprice/parkingpermits/internal/types"
	"github.com/shopspring/decimal"
)

// Refund is money owed back to a customer for unused permit time
type Refund struct {
	ID              string             `json:"id"`
	ReferenceNumber string             `json:"reference_number"`
	CustomerID      string             `json:"customer_id"`
	Name            string             `json:"name,omitempty"`
	IBAN            string             `json:"iban,omitempty"`
	Amount          decimal.Decimal    `json:"amount"`
	VATAmount       decimal.Decimal    `json:"vat_amount"`
	VATPercentage   decimal.Decimal    `json:"vat_percentage"`
	Status          types.RefundStatus `json:"status"`
	Description     string             `json:"description,omitempty"`
	OrderIDs        []string           `json:"order_ids"`
	PermitIDs       []string           `json:"permit_ids"`
	// Items records how much of each order item the refund returns
	Items []Allocation `json:"items"`

	types.BaseModel
}

// Allocation is the part of a refund taken from one order item
type Allocation struct {
	OrderItemID string          `json:"order_item_id"`
	OrderID     string          `json:"order_id"`
	Amount      decimal.Decimal `json:"amount"`
}
