package permit

import (
	"time"

	"github.com/flexprice/parkingpermits/internal/calendar"
	"github.com/flexprice/parkingpermits/internal/domain/vehicle"
	ierr "github.com/flexprice/parkingpermits/internal/errors"
	"github.com/flexprice/parkingpermits/internal/types"
)

// Permit is the root entity of every lifecycle change
type Permit struct {
	// ID is the unique identifier of the permit
	ID string `json:"id"`

	// CustomerID is the owner of the permit
	CustomerID string `json:"customer_id"`

	// Vehicle is a snapshot of the registry record the permit was issued for
	Vehicle vehicle.Vehicle `json:"vehicle"`

	// ZoneID is the parking zone the permit is valid in
	ZoneID string `json:"zone_id"`

	// AddressID is the residence address the zone was resolved from
	AddressID string `json:"address_id"`

	ContractType types.ContractType `json:"contract_type"`
	Status       types.PermitStatus `json:"status"`

	// StartTime is the first instant the permit is valid
	StartTime time.Time `json:"start_time"`

	// EndTime is the last instant the permit is valid; nil for an open ended permit with no end set
	EndTime *time.Time `json:"end_time,omitempty"`

	// MonthCount is the number of paid month periods of a fixed period permit
	MonthCount int `json:"month_count"`

	// PrimaryVehicle is false for the customer's second concurrently valid permit
	PrimaryVehicle bool `json:"primary_vehicle"`

	ConsentLowEmissionAccepted bool `json:"consent_low_emission_accepted"`

	// EndType records how the permit was ended
	EndType types.EndType `json:"end_type,omitempty"`

	// StatusChangedAt is when the permit entered its current status
	StatusChangedAt time.Time `json:"status_changed_at"`

	// NextVehicle and NextZoneID hold a change that waits for its price difference to be paid
	NextVehicle                    *vehicle.Vehicle `json:"next_vehicle,omitempty"`
	NextZoneID                     string           `json:"next_zone_id,omitempty"`
	NextAddressID                  string           `json:"next_address_id,omitempty"`
	NextConsentLowEmissionAccepted *bool            `json:"next_consent_low_emission_accepted,omitempty"`

	types.BaseModel
}

// IsFixedPeriod reports whether the permit was sold for an explicit number of months
func (p *Permit) IsFixedPeriod() bool {
	return p.ContractType == types.ContractTypeFixedPeriod
}

// IsOpenEnded reports whether the permit renews through a provider subscription
func (p *Permit) IsOpenEnded() bool {
	return p.ContractType == types.ContractTypeOpenEnded
}

// IsValidAt reports whether the permit grants parking at t
func (p *Permit) IsValidAt(t time.Time) bool {
	if p.Status != types.PermitStatusValid || t.Before(p.StartTime) {
		return false
	}
	return p.EndTime == nil || !t.After(*p.EndTime)
}

// HasPendingChange reports whether a vehicle or address change waits for payment
func (p *Permit) HasPendingChange() bool {
	return p.NextVehicle != nil || p.NextZoneID != ""
}

// CurrentPeriod returns the month period, anchored at the permit start, that contains now
func (p *Permit) CurrentPeriod(now time.Time, loc *time.Location) calendar.Period {
	start := calendar.DateOf(p.StartTime, loc)
	return calendar.PeriodContaining(start, calendar.DateOf(now, loc))
}

// ChargedPeriod returns the civil dates covered by the permit's paid validity.
// An open ended permit without an end time is charged through its current period.
func (p *Permit) ChargedPeriod(now time.Time, loc *time.Location) calendar.Period {
	if p.EndTime == nil {
		return calendar.Period{Start: calendar.DateOf(p.StartTime, loc), End: p.CurrentPeriod(now, loc).End}
	}
	return calendar.Period{
		Start: calendar.DateOf(p.StartTime, loc),
		End:   calendar.ExclusiveEnd(*p.EndTime, loc),
	}
}

// SetStatus moves the permit to status and stamps the change time
func (p *Permit) SetStatus(status types.PermitStatus, at time.Time) {
	p.Status = status
	p.StatusChangedAt = at
}

// ApplyPendingChange promotes the pending vehicle and zone onto the permit
func (p *Permit) ApplyPendingChange() {
	if p.NextVehicle != nil {
		p.Vehicle = *p.NextVehicle
		p.NextVehicle = nil
	}
	if p.NextZoneID != "" {
		p.ZoneID = p.NextZoneID
		p.AddressID = p.NextAddressID
		p.NextZoneID = ""
		p.NextAddressID = ""
	}
	if p.NextConsentLowEmissionAccepted != nil {
		p.ConsentLowEmissionAccepted = *p.NextConsentLowEmissionAccepted
		p.NextConsentLowEmissionAccepted = nil
	}
}

// DropPendingChange discards a change whose payment will never arrive
func (p *Permit) DropPendingChange() {
	p.NextVehicle = nil
	p.NextZoneID = ""
	p.NextAddressID = ""
	p.NextConsentLowEmissionAccepted = nil
}

// Validate checks the permit invariants that hold in every status
func (p *Permit) Validate() error {
	if p.CustomerID == "" || p.ZoneID == "" {
		return ierr.NewError("customer and zone are required").
			WithHint("Permit must have a customer and a zone").
			Mark(ierr.ErrValidation)
	}
	if p.Vehicle.RegistrationNumber == "" {
		return ierr.NewError("vehicle is required").
			WithHint("Permit must have a vehicle").
			Mark(ierr.ErrValidation)
	}
	if err := p.ContractType.Validate(); err != nil {
		return ierr.WithError(err).
			WithHint("Invalid contract type").
			Mark(ierr.ErrValidation)
	}
	if p.IsFixedPeriod() && p.MonthCount < 1 {
		return ierr.NewError("month count must be positive").
			WithHint("Fixed period permit must last at least one month").
			WithReportableDetails(map[string]any{"month_count": p.MonthCount}).
			Mark(ierr.ErrValidation)
	}
	if p.EndTime != nil && p.EndTime.Before(p.StartTime) {
		return ierr.NewError("end time before start time").
			WithHint("Permit end time must not be before its start time").
			WithReportableDetails(map[string]any{
				"start_time": p.StartTime,
				"end_time":   *p.EndTime,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
