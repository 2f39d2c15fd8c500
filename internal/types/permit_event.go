package types

import (
	"time"
)

// PermitEvent is an entry of the permit audit trail
type PermitEvent struct {
	ID         string          `json:"id"`
	Type       PermitEventType `json:"type"`
	PermitID   string          `json:"permit_id"`
	CustomerID string          `json:"customer_id,omitempty"`
	OrderID    string          `json:"order_id,omitempty"`
	RefundID   string          `json:"refund_id,omitempty"`
	Status     PermitStatus    `json:"status,omitempty"`
	Message    string          `json:"message,omitempty"`
	Context    map[string]any  `json:"context,omitempty"`
	UserID     string          `json:"user_id"`
	Timestamp  time.Time       `json:"timestamp"`
}
