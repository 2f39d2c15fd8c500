package product

import (
	"cloud.google.com/go/civil"
	"github.com/flexprice/parkingpermits/internal/calendar"
	ierr "github.com/flexprice/parkingpermits/internal/errors"
	"github.com/flexprice/parkingpermits/internal/types"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Product is a zone price row valid over an inclusive date range.
// Prices are VAT inclusive and quoted per month period.
type Product struct {
	// ID is the unique identifier of the product
	ID string `json:"id"`
	// ZoneID is the parking zone the price applies to
	ZoneID string `json:"zone_id"`
	// Name is a display label, e.g. "Zone A residents 2025"
	Name string `json:"name"`
	// StartDate is the first day the product is valid
	StartDate civil.Date `json:"start_date"`
	// EndDate is the last day the product is valid (inclusive)
	EndDate civil.Date `json:"end_date"`
	// UnitPrice is the VAT inclusive list price of one month period
	UnitPrice decimal.Decimal `json:"unit_price"`
	// VATPercentage is the VAT rate included in UnitPrice, e.g. 25.5
	VATPercentage decimal.Decimal `json:"vat_percentage"`
	// LowEmissionDiscountPercentage is deducted from the unit price for low emission vehicles
	LowEmissionDiscountPercentage decimal.Decimal `json:"low_emission_discount_percentage"`
	// SecondaryVehicleIncreaseRate is added, as a percentage, for a customer's second permit
	SecondaryVehicleIncreaseRate decimal.Decimal `json:"secondary_vehicle_increase_rate"`

	types.BaseModel
}

// Period returns the validity of the product as a half-open period
func (p *Product) Period() calendar.Period {
	return calendar.Period{Start: p.StartDate, End: p.EndDate.AddDays(1)}
}

// Covers reports whether the product is valid on d
func (p *Product) Covers(d civil.Date) bool {
	return p.Period().Contains(d)
}

// ModifiedUnitPrice applies the low emission discount and then the secondary
// vehicle premium on the already discounted price. The result is not rounded.
func (p *Product) ModifiedUnitPrice(isLowEmission, isSecondary bool) decimal.Decimal {
	price := p.UnitPrice
	if isLowEmission {
		price = price.Mul(decimal.NewFromInt(1).Sub(p.LowEmissionDiscountPercentage.Div(hundred)))
	}
	if isSecondary {
		price = price.Mul(decimal.NewFromInt(1).Add(p.SecondaryVehicleIncreaseRate.Div(hundred)))
	}
	return price
}

// Validate checks the product row before it is stored
func (p *Product) Validate() error {
	if p.ZoneID == "" {
		return ierr.NewError("zone_id is required").
			WithHint("Product must belong to a zone").
			Mark(ierr.ErrValidation)
	}
	if !p.StartDate.IsValid() || !p.EndDate.IsValid() || p.EndDate.Before(p.StartDate) {
		return ierr.NewError("invalid product date range").
			WithHint("Product end date must not be before its start date").
			WithReportableDetails(map[string]any{
				"start_date": p.StartDate.String(),
				"end_date":   p.EndDate.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	if p.UnitPrice.IsNegative() || p.VATPercentage.IsNegative() {
		return ierr.NewError("negative product price").
			WithHint("Unit price and VAT percentage must not be negative").
			Mark(ierr.ErrValidation)
	}
	if p.LowEmissionDiscountPercentage.IsNegative() || p.LowEmissionDiscountPercentage.GreaterThan(hundred) {
		return ierr.NewError("invalid low emission discount").
			WithHint("Low emission discount must be between 0 and 100 percent").
			Mark(ierr.ErrValidation)
	}
	if p.SecondaryVehicleIncreaseRate.IsNegative() {
		return ierr.NewError("invalid secondary vehicle increase rate").
			WithHint("Secondary vehicle increase rate must not be negative").
			Mark(ierr.ErrValidation)
	}
	return nil
}
