package permit

import (
	"context"

	"github.com/flexprice/parkingpermits/internal/types"
)

// Repository defines the interface for permit data access
type Repository interface {
	Create(ctx context.Context, permit *Permit) error
	Get(ctx context.Context, id string) (*Permit, error)
	// GetForUpdate reads the permit and holds it exclusively until the surrounding transaction ends
	GetForUpdate(ctx context.Context, id string) (*Permit, error)
	List(ctx context.Context, filter *types.PermitFilter) ([]*Permit, error)
	Update(ctx context.Context, permit *Permit) error
	Delete(ctx context.Context, id string) error
}

// TemporaryVehicleRepository defines the interface for temporary vehicle data access
type TemporaryVehicleRepository interface {
	Create(ctx context.Context, tv *TemporaryVehicle) error
	List(ctx context.Context, filter *types.TemporaryVehicleFilter) ([]*TemporaryVehicle, error)
	Update(ctx context.Context, tv *TemporaryVehicle) error
}
