package dto

import (
	"fmt"
	"time"

	ierr "github.com/flexprice/parkingpermits/internal/errors"
	"github.com/flexprice/parkingpermits/internal/types"
	"github.com/flexprice/parkingpermits/internal/validator"
	"github.com/shopspring/decimal"
)

// ProviderEvent is a webhook delivered by the payment provider
type ProviderEvent struct {
	// EventID is the provider's delivery id when it sends one
	EventID   string                  `json:"event_id"`
	EventType types.ProviderEventType `json:"event_type" validate:"required,provider_event"`
	// OrderID is the provider's order id; for a renewal it is the new renewal order
	OrderID        string `json:"order_id"`
	SubscriptionID string `json:"subscription_id"`
	// TotalPrice is the amount the provider is about to charge, sent with right of purchase checks
	TotalPrice *decimal.Decimal `json:"total_price,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
}

func (e *ProviderEvent) Validate() error {
	if err := validator.ValidateRequest(e); err != nil {
		return err
	}
	if e.OrderID == "" && e.SubscriptionID == "" {
		return ierr.NewError("order or subscription id is required").
			WithHint("Provider event must reference an order or a subscription").
			WithReportableDetails(map[string]any{"event_type": e.EventType}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// DedupKey identifies the delivery; redeliveries of one event share it
func (e *ProviderEvent) DedupKey() string {
	if e.EventID != "" {
		return e.EventID
	}
	return fmt.Sprintf("%s:%s:%s", e.EventType, e.OrderID, e.SubscriptionID)
}

type RightOfPurchaseResponse struct {
	RightOfPurchase bool   `json:"right_of_purchase"`
	Reason          string `json:"reason,omitempty"`
}

// ProviderEventResult reports the outcome of one event of a batch
type ProviderEventResult struct {
	DedupKey string `json:"key"`
	Error    string `json:"error,omitempty"`
}
