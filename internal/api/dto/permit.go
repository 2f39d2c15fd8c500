package dto

import (
	"context"
	"time"

	"github.com/flexprice/parkingpermits/internal/domain/permit"
	"github.com/flexprice/parkingpermits/internal/domain/vehicle"
	ierr "github.com/flexprice/parkingpermits/internal/errors"
	"github.com/flexprice/parkingpermits/internal/types"
	"github.com/flexprice/parkingpermits/internal/validator"
)

type CreatePermitRequest struct {
	CustomerID string `json:"customer_id" validate:"required"`
	// OwnerID is the customer's national id, checked against the vehicle's owners and holders
	OwnerID            string             `json:"owner_id"`
	RegistrationNumber string             `json:"registration_number" validate:"required,max=20"`
	ZoneID             string             `json:"zone_id" validate:"required"`
	AddressID          string             `json:"address_id"`
	ContractType       types.ContractType `json:"contract_type" validate:"required,contract_type"`
	MonthCount         int                `json:"month_count" validate:"omitempty,min=1"`
	// StartTime defaults to now
	StartTime                  *time.Time `json:"start_time,omitempty"`
	ConsentLowEmissionAccepted bool       `json:"consent_low_emission_accepted"`
	// Preliminary marks a permit prepared by an administrator for the customer to confirm
	Preliminary bool `json:"preliminary"`
}

func (r *CreatePermitRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if r.ContractType == types.ContractTypeFixedPeriod && r.MonthCount < 1 {
		return ierr.NewError("month count is required").
			WithHint("A fixed period permit needs a month count").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ToPermit builds a draft permit for the looked up vehicle. Times are filled in by the service.
func (r *CreatePermitRequest) ToPermit(ctx context.Context, v vehicle.Vehicle) *permit.Permit {
	monthCount := r.MonthCount
	if r.ContractType == types.ContractTypeOpenEnded {
		monthCount = 1
	}
	return &permit.Permit{
		ID:                         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PERMIT),
		CustomerID:                 r.CustomerID,
		Vehicle:                    v,
		ZoneID:                     r.ZoneID,
		AddressID:                  r.AddressID,
		ContractType:               r.ContractType,
		Status:                     types.PermitStatusDraft,
		MonthCount:                 monthCount,
		ConsentLowEmissionAccepted: r.ConsentLowEmissionAccepted,
		BaseModel:                  types.GetDefaultBaseModel(ctx),
	}
}

type PermitResponse struct {
	*permit.Permit
}

func NewPermitResponse(p *permit.Permit) *PermitResponse {
	if p == nil {
		return nil
	}
	return &PermitResponse{Permit: p}
}

type CheckoutResponse struct {
	Permit      *PermitResponse `json:"permit"`
	Order       *OrderResponse  `json:"order"`
	CheckoutURL string          `json:"checkout_url"`
}

type EndPermitRequest struct {
	EndType types.EndType `json:"end_type" validate:"required,end_type"`
	IBAN    string        `json:"iban" validate:"omitempty,max=34"`
	// Force ends a primary permit even though a secondary permit is still valid
	Force bool `json:"force"`
}

func (r *EndPermitRequest) Validate() error {
	return validator.ValidateRequest(r)
}

type EndPermitResponse struct {
	Permit *PermitResponse `json:"permit"`
	// Refunds holds one refund per VAT rate of the unused time
	Refunds []*RefundResponse `json:"refunds,omitempty"`
}

type ChangeVehicleRequest struct {
	RegistrationNumber         string `json:"registration_number" validate:"required,max=20"`
	OwnerID                    string `json:"owner_id"`
	ConsentLowEmissionAccepted *bool  `json:"consent_low_emission_accepted,omitempty"`
	IBAN                       string `json:"iban" validate:"omitempty,max=34"`
}

func (r *ChangeVehicleRequest) Validate() error {
	return validator.ValidateRequest(r)
}

type ChangeAddressRequest struct {
	ZoneID    string `json:"zone_id" validate:"required"`
	AddressID string `json:"address_id" validate:"required"`
	IBAN      string `json:"iban" validate:"omitempty,max=34"`
}

func (r *ChangeAddressRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// ChangeResponse describes the outcome of a vehicle or address change. Order is
// set when a price difference was charged or credited; CheckoutURL when it
// still has to be paid.
type ChangeResponse struct {
	Permit      *PermitResponse `json:"permit"`
	Order       *OrderResponse  `json:"order,omitempty"`
	Refund      *RefundResponse `json:"refund,omitempty"`
	CheckoutURL string          `json:"checkout_url,omitempty"`
	// Applied is false while the change waits for its payment
	Applied bool `json:"applied"`
}

type AddTemporaryVehicleRequest struct {
	RegistrationNumber string    `json:"registration_number" validate:"required,max=20"`
	OwnerID            string    `json:"owner_id"`
	StartTime          time.Time `json:"start_time" validate:"required"`
	EndTime            time.Time `json:"end_time" validate:"required"`
}

func (r *AddTemporaryVehicleRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if !r.EndTime.After(r.StartTime) {
		return ierr.NewError("end time must be after start time").
			WithHint("Temporary vehicle end time must be after its start time").
			Mark(ierr.ErrValidation)
	}
	return nil
}

type TemporaryVehicleResponse struct {
	*permit.TemporaryVehicle
}

type PriceQuoteResponse struct {
	Gross string           `json:"gross"`
	Net   string           `json:"net"`
	VAT   string           `json:"vat"`
	Lines []PriceQuoteLine `json:"lines"`
}

type PriceQuoteLine struct {
	ProductID     string `json:"product_id"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	Days          int    `json:"days"`
	UnitPrice     string `json:"unit_price"`
	Amount        string `json:"amount"`
	VATPercentage string `json:"vat_percentage"`
}
