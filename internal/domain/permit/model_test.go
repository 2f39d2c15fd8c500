package permit

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/flexprice/parkingpermits/internal/calendar"
	"github.com/flexprice/parkingpermits/internal/domain/vehicle"
	ierr "github.com/flexprice/parkingpermits/internal/errors"
	"github.com/flexprice/parkingpermits/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

func TestCurrentPeriod(t *testing.T) {
	loc := time.UTC
	p := &Permit{StartTime: time.Date(2025, 1, 15, 0, 0, 0, 0, loc)}

	got := p.CurrentPeriod(time.Date(2025, 3, 20, 12, 0, 0, 0, loc), loc)
	assert.Equal(t, calendar.Period{
		Start: civil.Date{Year: 2025, Month: time.March, Day: 15},
		End:   civil.Date{Year: 2025, Month: time.April, Day: 15},
	}, got)
}

func TestChargedPeriod(t *testing.T) {
	loc := time.UTC
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, loc)
	p := &Permit{
		StartTime: start,
		EndTime:   lo.ToPtr(calendar.EndOfPeriod(start, 2, loc)),
	}

	got := p.ChargedPeriod(start, loc)
	assert.Equal(t, civil.Date{Year: 2025, Month: time.January, Day: 1}, got.Start)
	assert.Equal(t, civil.Date{Year: 2025, Month: time.March, Day: 1}, got.End)
}

func TestApplyPendingChange(t *testing.T) {
	p := &Permit{
		Vehicle:       vehicle.Vehicle{RegistrationNumber: "ABC-123"},
		ZoneID:        "A",
		NextVehicle:   &vehicle.Vehicle{RegistrationNumber: "XYZ-987"},
		NextZoneID:    "B",
		NextAddressID: "addr_2",
	}
	assert.True(t, p.HasPendingChange())

	p.ApplyPendingChange()
	assert.Equal(t, "XYZ-987", p.Vehicle.RegistrationNumber)
	assert.Equal(t, "B", p.ZoneID)
	assert.Equal(t, "addr_2", p.AddressID)
	assert.False(t, p.HasPendingChange())
}

func TestValidate(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	base := Permit{
		CustomerID:   "cus_1",
		ZoneID:       "A",
		Vehicle:      vehicle.Vehicle{RegistrationNumber: "ABC-123"},
		ContractType: types.ContractTypeFixedPeriod,
		StartTime:    start,
		MonthCount:   1,
	}

	valid := base
	assert.NoError(t, valid.Validate())

	endBeforeStart := base
	endBeforeStart.EndTime = lo.ToPtr(start.Add(-time.Hour))
	assert.True(t, ierr.IsValidation(endBeforeStart.Validate()))

	noMonths := base
	noMonths.MonthCount = 0
	assert.True(t, ierr.IsValidation(noMonths.Validate()))
}
