package types

import (
	"fmt"

	"github.com/samber/lo"
)

// PermitStatus is the lifecycle state of a parking permit
type PermitStatus string

const (
	PermitStatusDraft             PermitStatus = "DRAFT"
	PermitStatusPreliminary       PermitStatus = "PRELIMINARY"
	PermitStatusPaymentInProgress PermitStatus = "PAYMENT_IN_PROGRESS"
	PermitStatusValid             PermitStatus = "VALID"
	PermitStatusCancelled         PermitStatus = "CANCELLED"
	PermitStatusClosed            PermitStatus = "CLOSED"
)

func (s PermitStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no transition may leave the status
func (s PermitStatus) IsTerminal() bool {
	return s == PermitStatusCancelled || s == PermitStatusClosed
}

func (s PermitStatus) Validate() error {
	allowed := []PermitStatus{
		PermitStatusDraft,
		PermitStatusPreliminary,
		PermitStatusPaymentInProgress,
		PermitStatusValid,
		PermitStatusCancelled,
		PermitStatusClosed,
	}
	if !lo.Contains(allowed, s) {
		return fmt.Errorf("invalid permit status: %s", s)
	}
	return nil
}

// ContractType decides whether a permit has an explicit end or renews through a subscription
type ContractType string

const (
	ContractTypeFixedPeriod ContractType = "FIXED_PERIOD"
	ContractTypeOpenEnded   ContractType = "OPEN_ENDED"
)

func (c ContractType) String() string {
	return string(c)
}

func (c ContractType) Validate() error {
	if !lo.Contains([]ContractType{ContractTypeFixedPeriod, ContractTypeOpenEnded}, c) {
		return fmt.Errorf("invalid contract type: %s", c)
	}
	return nil
}

// EndType decides when an ended permit stops being valid
type EndType string

const (
	EndTypeImmediately        EndType = "IMMEDIATELY"
	EndTypeAfterCurrentPeriod EndType = "AFTER_CURRENT_PERIOD"
	EndTypePreviousDayEnd     EndType = "PREVIOUS_DAY_END"
)

func (e EndType) String() string {
	return string(e)
}

func (e EndType) Validate() error {
	allowed := []EndType{
		EndTypeImmediately,
		EndTypeAfterCurrentPeriod,
		EndTypePreviousDayEnd,
	}
	if !lo.Contains(allowed, e) {
		return fmt.Errorf("invalid end type: %s", e)
	}
	return nil
}

// EmissionType is the measurement standard of a vehicle's reported emission
type EmissionType string

const (
	EmissionTypeNEDC EmissionType = "NEDC"
	EmissionTypeWLTP EmissionType = "WLTP"
)

// ExtensionRequestStatus is the state of a permit extension request
type ExtensionRequestStatus string

const (
	ExtensionRequestStatusOpen      ExtensionRequestStatus = "OPEN"
	ExtensionRequestStatusApproved  ExtensionRequestStatus = "APPROVED"
	ExtensionRequestStatusRejected  ExtensionRequestStatus = "REJECTED"
	ExtensionRequestStatusCancelled ExtensionRequestStatus = "CANCELLED"
)

func (s ExtensionRequestStatus) String() string {
	return string(s)
}

// PermitEventType names an entry in the permit audit trail
type PermitEventType string

const (
	PermitEventCheckoutStarted     PermitEventType = "permit.checkout_started"
	PermitEventActivated           PermitEventType = "permit.activated"
	PermitEventCancelled           PermitEventType = "permit.cancelled"
	PermitEventEnded               PermitEventType = "permit.ended"
	PermitEventExpired             PermitEventType = "permit.expired"
	PermitEventVehicleChanged      PermitEventType = "permit.vehicle_changed"
	PermitEventAddressChanged      PermitEventType = "permit.address_changed"
	PermitEventChangeOrderCreated  PermitEventType = "permit.change_order_created"
	PermitEventTemporaryVehicleAdd PermitEventType = "permit.temporary_vehicle_added"
	PermitEventTemporaryVehicleEnd PermitEventType = "permit.temporary_vehicle_removed"
	PermitEventExtensionRequested  PermitEventType = "permit.extension_requested"
	PermitEventExtensionApproved   PermitEventType = "permit.extension_approved"
	PermitEventExtensionRejected   PermitEventType = "permit.extension_rejected"
	PermitEventExtensionReverted   PermitEventType = "permit.extension_reverted"
	PermitEventRenewed             PermitEventType = "permit.renewed"
	PermitEventRefundCreated       PermitEventType = "permit.refund_created"
	PermitEventBecamePrimary       PermitEventType = "permit.became_primary"
)
