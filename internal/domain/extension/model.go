package extension

import (
	"time"

	"github.com/flexprice/parkingpermits/internal/types"
)

// Request asks for a fixed period permit to be prolonged by MonthCount months
type Request struct {
	ID         string                       `json:"id"`
	PermitID   string                       `json:"permit_id"`
	MonthCount int                          `json:"month_count"`
	Status     types.ExtensionRequestStatus `json:"status"`

	// OrderID is the order that charges the extension once approved
	OrderID string `json:"order_id,omitempty"`

	// PreviousEndTime is the permit end before approval, restored if the order is cancelled
	PreviousEndTime *time.Time `json:"previous_end_time,omitempty"`

	types.BaseModel
}

// IsOpen reports whether the request still waits for a decision
func (r *Request) IsOpen() bool {
	return r.Status == types.ExtensionRequestStatusOpen
}
