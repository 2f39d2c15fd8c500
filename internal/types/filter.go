package types

import (
	"time"

	"cloud.google.com/go/civil"
)

// PermitFilter selects permits by the query shapes the services need:
// by customer, by status and by time windows used in sweeps.
type PermitFilter struct {
	PermitIDs    []string
	CustomerID   string
	Statuses     []PermitStatus
	ContractType ContractType
	// StatusChangedBefore selects permits that entered their status before the instant
	StatusChangedBefore *time.Time
	// EndTimeBefore selects permits whose end time has passed the instant
	EndTimeBefore *time.Time
	Limit         int
}

// OrderFilter selects orders of a permit or a customer
type OrderFilter struct {
	PermitID   string
	CustomerID string
	Statuses   []OrderStatus
	Types      []OrderType
}

// ProductFilter selects products of a zone whose validity intersects a date range
type ProductFilter struct {
	ZoneID string
	// From and To are inclusive
	From civil.Date
	To   civil.Date
}

// TemporaryVehicleFilter selects temporary vehicle windows of a permit
type TemporaryVehicleFilter struct {
	PermitID     string
	ActiveOnly   bool
	CreatedAfter *time.Time
}

// ExtensionRequestFilter selects extension requests of a permit
type ExtensionRequestFilter struct {
	PermitID string
	Statuses []ExtensionRequestStatus
}

// RefundFilter selects refunds that touch a permit
type RefundFilter struct {
	PermitID string
	Statuses []RefundStatus
}
