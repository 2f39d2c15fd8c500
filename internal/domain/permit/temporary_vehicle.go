package permit

import (
	"time"

	"github.com/flexprice/parkingpermits/internal/domain/vehicle"
	"github.com/flexprice/parkingpermits/internal/types"
)

// TemporaryVehicle is a window during which another vehicle may park on the permit
type TemporaryVehicle struct {
	ID        string          `json:"id"`
	PermitID  string          `json:"permit_id"`
	Vehicle   vehicle.Vehicle `json:"vehicle"`
	StartTime time.Time       `json:"start_time"`
	EndTime   time.Time       `json:"end_time"`
	// IsActive is cleared when the window is removed before its end
	IsActive bool `json:"is_active"`

	types.BaseModel
}

// IsActiveAt reports whether the window applies at t
func (tv *TemporaryVehicle) IsActiveAt(t time.Time) bool {
	return tv.IsActive && !t.Before(tv.StartTime) && t.Before(tv.EndTime)
}

// Overlaps reports whether the window shares an instant with [start, end)
func (tv *TemporaryVehicle) Overlaps(start, end time.Time) bool {
	return tv.IsActive && start.Before(tv.EndTime) && tv.StartTime.Before(end)
}
