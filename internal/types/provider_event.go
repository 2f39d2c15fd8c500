package types

import (
	"fmt"

	"github.com/samber/lo"
)

// ProviderEventType is the closed set of events the payment provider delivers
type ProviderEventType string

const (
	ProviderEventPaymentPaid                     ProviderEventType = "PAYMENT_PAID"
	ProviderEventPaymentCancelled                ProviderEventType = "PAYMENT_CANCELLED"
	ProviderEventOrderCancelled                  ProviderEventType = "ORDER_CANCELLED"
	ProviderEventSubscriptionCreated             ProviderEventType = "SUBSCRIPTION_CREATED"
	ProviderEventSubscriptionRenewalOrderCreated ProviderEventType = "SUBSCRIPTION_RENEWAL_ORDER_CREATED"
	ProviderEventSubscriptionCancelled           ProviderEventType = "SUBSCRIPTION_CANCELLED"
	ProviderEventRightOfPurchase                 ProviderEventType = "RIGHT_OF_PURCHASE"
)

// ProviderEventTypes lists every event type in dispatch order
var ProviderEventTypes = []ProviderEventType{
	ProviderEventPaymentPaid,
	ProviderEventPaymentCancelled,
	ProviderEventOrderCancelled,
	ProviderEventSubscriptionCreated,
	ProviderEventSubscriptionRenewalOrderCreated,
	ProviderEventSubscriptionCancelled,
	ProviderEventRightOfPurchase,
}

func (t ProviderEventType) String() string {
	return string(t)
}

func (t ProviderEventType) Validate() error {
	if !lo.Contains(ProviderEventTypes, t) {
		return fmt.Errorf("unknown provider event type: %s", t)
	}
	return nil
}
