package vehicle

import (
	"strings"

	"github.com/flexprice/parkingpermits/internal/types"
)

// Vehicle is a value snapshot of a registry record taken when a permit was
// created or changed. The registry owns the vehicle; permits only copy it.
type Vehicle struct {
	RegistrationNumber string             `json:"registration_number"`
	Manufacturer       string             `json:"manufacturer,omitempty"`
	Model              string             `json:"model,omitempty"`
	PowerType          string             `json:"power_type,omitempty"`
	IsElectric         bool               `json:"is_electric"`
	EuroClass          *int               `json:"euro_class,omitempty"`
	Emission           *int               `json:"emission,omitempty"`
	EmissionType       types.EmissionType `json:"emission_type,omitempty"`
	// LowEmission is the registry's own verdict when it reports one
	LowEmission  *bool    `json:"low_emission,omitempty"`
	Restrictions []string `json:"restrictions,omitempty"`
}

// Criteria are the thresholds a combustion vehicle has to meet to count as low emission
type Criteria struct {
	NEDCMaxEmission int
	WLTPMaxEmission int
	EuroMinClass    int
}

// QualifiesForLowEmission applies the low emission rule. An unknown emission
// never qualifies; an explicitly reported zero emission always does.
func (v Vehicle) QualifiesForLowEmission(c Criteria) bool {
	if v.LowEmission != nil {
		return *v.LowEmission
	}
	if v.IsElectric {
		return true
	}
	if v.Emission == nil {
		return false
	}
	if *v.Emission == 0 {
		return true
	}
	if v.EuroClass == nil || *v.EuroClass < c.EuroMinClass {
		return false
	}

	switch v.EmissionType {
	case types.EmissionTypeNEDC:
		return *v.Emission <= c.NEDCMaxEmission
	case types.EmissionTypeWLTP:
		return *v.Emission <= c.WLTPMaxEmission
	default:
		return false
	}
}

// IsRestricted reports whether the registry flagged the vehicle, e.g. as decommissioned
func (v Vehicle) IsRestricted() bool {
	return len(v.Restrictions) > 0
}

// SameAs compares registration numbers ignoring case and spacing
func (v Vehicle) SameAs(o Vehicle) bool {
	return normalize(v.RegistrationNumber) == normalize(o.RegistrationNumber)
}

func normalize(reg string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(reg), " ", ""))
}
