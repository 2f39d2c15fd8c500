package types

import (
	"fmt"

	"github.com/samber/lo"
)

// OrderStatus is the payment state of an order
type OrderStatus string

const (
	OrderStatusDraft     OrderStatus = "DRAFT"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

func (s OrderStatus) String() string {
	return string(s)
}

func (s OrderStatus) Validate() error {
	if !lo.Contains([]OrderStatus{OrderStatusDraft, OrderStatusConfirmed, OrderStatusCancelled}, s) {
		return fmt.Errorf("invalid order status: %s", s)
	}
	return nil
}

// OrderType tells why an order was created
type OrderType string

const (
	OrderTypeCreated        OrderType = "CREATED"
	OrderTypeVehicleChanged OrderType = "VEHICLE_CHANGED"
	OrderTypeAddressChanged OrderType = "ADDRESS_CHANGED"
	OrderTypeExtension      OrderType = "EXTENSION"
	OrderTypeRenewal        OrderType = "RENEWAL"
)

func (t OrderType) String() string {
	return string(t)
}

// IsChange reports whether the order settles a price difference of an in-place modification
func (t OrderType) IsChange() bool {
	return t == OrderTypeVehicleChanged || t == OrderTypeAddressChanged
}

// SubscriptionStatus is the local view of a provider subscription
type SubscriptionStatus string

const (
	SubscriptionStatusNone      SubscriptionStatus = ""
	SubscriptionStatusConfirmed SubscriptionStatus = "CONFIRMED"
	SubscriptionStatusCancelled SubscriptionStatus = "CANCELLED"
)

// RefundStatus is the processing state of a refund
type RefundStatus string

const (
	RefundStatusOpen      RefundStatus = "OPEN"
	RefundStatusRequested RefundStatus = "REQUESTED"
	RefundStatusAccepted  RefundStatus = "ACCEPTED"
	RefundStatusRejected  RefundStatus = "REJECTED"
)

func (s RefundStatus) String() string {
	return string(s)
}
