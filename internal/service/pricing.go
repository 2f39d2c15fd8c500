package service

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/flexprice/parkingpermits/internal/domain/permit"
	"github.com/flexprice/parkingpermits/internal/domain/pricing"
	"github.com/flexprice/parkingpermits/internal/domain/vehicle"
	"github.com/flexprice/parkingpermits/internal/types"
)

// priceConfig is the part of a permit that decides its price
type priceConfig struct {
	ZoneID    string
	Vehicle   vehicle.Vehicle
	Consent   bool
	Secondary bool
}

func permitPriceConfig(p *permit.Permit) priceConfig {
	return priceConfig{
		ZoneID:    p.ZoneID,
		Vehicle:   p.Vehicle,
		Consent:   p.ConsentLowEmissionAccepted,
		Secondary: !p.PrimaryVehicle,
	}
}

func (s ServiceParams) lowEmissionCriteria() vehicle.Criteria {
	c := s.Config.Permit.LowEmission
	return vehicle.Criteria{
		NEDCMaxEmission: c.NEDCMaxEmission,
		WLTPMaxEmission: c.WLTPMaxEmission,
		EuroMinClass:    c.EuroMinClass,
	}
}

// price prices [start, end) of the zone's products for the configuration
func (s ServiceParams) price(ctx context.Context, cfg priceConfig, start, end civil.Date) (*pricing.Result, error) {
	calc := pricing.NewCalculator()
	params := pricing.Params{
		Start:         start,
		End:           end,
		IsLowEmission: cfg.Consent && cfg.Vehicle.QualifiesForLowEmission(s.lowEmissionCriteria()),
		IsSecondary:   cfg.Secondary,
	}
	if !start.Before(end) {
		return calc.PriceForPeriod(params)
	}

	products, err := s.ProductRepo.List(ctx, &types.ProductFilter{
		ZoneID: cfg.ZoneID,
		From:   start,
		To:     end.AddDays(-1),
	})
	if err != nil {
		return nil, err
	}
	params.Products = products
	return calc.PriceForPeriod(params)
}
