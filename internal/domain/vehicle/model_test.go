package vehicle

import (
	"testing"

	"github.com/flexprice/parkingpermits/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

func TestQualifiesForLowEmission(t *testing.T) {
	criteria := Criteria{NEDCMaxEmission: 95, WLTPMaxEmission: 126, EuroMinClass: 6}

	tests := []struct {
		name    string
		vehicle Vehicle
		want    bool
	}{
		{"unknown emission", Vehicle{EuroClass: lo.ToPtr(6), EmissionType: types.EmissionTypeWLTP}, false},
		{"explicit zero emission", Vehicle{Emission: lo.ToPtr(0)}, true},
		{"electric", Vehicle{IsElectric: true}, true},
		{"wltp under limit", Vehicle{Emission: lo.ToPtr(120), EuroClass: lo.ToPtr(6), EmissionType: types.EmissionTypeWLTP}, true},
		{"wltp over limit", Vehicle{Emission: lo.ToPtr(130), EuroClass: lo.ToPtr(6), EmissionType: types.EmissionTypeWLTP}, false},
		{"nedc at limit", Vehicle{Emission: lo.ToPtr(95), EuroClass: lo.ToPtr(6), EmissionType: types.EmissionTypeNEDC}, true},
		{"old euro class", Vehicle{Emission: lo.ToPtr(90), EuroClass: lo.ToPtr(5), EmissionType: types.EmissionTypeNEDC}, false},
		{"registry verdict wins", Vehicle{Emission: lo.ToPtr(300), LowEmission: lo.ToPtr(true)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.vehicle.QualifiesForLowEmission(criteria))
		})
	}
}

func TestSameAs(t *testing.T) {
	assert.True(t, Vehicle{RegistrationNumber: "abc-123"}.SameAs(Vehicle{RegistrationNumber: " ABC-123"}))
	assert.False(t, Vehicle{RegistrationNumber: "ABC-123"}.SameAs(Vehicle{RegistrationNumber: "ABC-124"}))
}
