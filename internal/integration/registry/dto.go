package registry

import (
	"github.com/flexprice/parkingpermits/internal/domain/vehicle"
	"github.com/flexprice/parkingpermits/internal/types"
)

// vehicleResponse is the registry's vehicle record
type vehicleResponse struct {
	RegistrationNumber string   `json:"registration_number"`
	Manufacturer       string   `json:"manufacturer"`
	Model              string   `json:"model"`
	PowerType          string   `json:"power_type"`
	EuroClass          *int     `json:"euro_class"`
	Emission           *int     `json:"emission"`
	EmissionType       string   `json:"emission_type"`
	LowEmission        *bool    `json:"low_emission"`
	Restrictions       []string `json:"restrictions"`
	Owners             []string `json:"owners"`
}

// electricPowerTypes are the power type codes the registry uses for battery electric vehicles
var electricPowerTypes = map[string]bool{
	"ELECTRIC": true,
	"04":       true,
}

func (r *vehicleResponse) toVehicle() vehicle.Vehicle {
	return vehicle.Vehicle{
		RegistrationNumber: r.RegistrationNumber,
		Manufacturer:       r.Manufacturer,
		Model:              r.Model,
		PowerType:          r.PowerType,
		IsElectric:         electricPowerTypes[r.PowerType],
		EuroClass:          r.EuroClass,
		Emission:           r.Emission,
		EmissionType:       types.EmissionType(r.EmissionType),
		LowEmission:        r.LowEmission,
		Restrictions:       r.Restrictions,
	}
}
