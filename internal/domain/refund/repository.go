package refund

import (
	"context"

	"github.com/flexprice/parkingpermits/internal/types"
)

// Repository defines the interface for refund data access
type Repository interface {
	Create(ctx context.Context, refund *Refund) error
	Get(ctx context.Context, id string) (*Refund, error)
	List(ctx context.Context, filter *types.RefundFilter) ([]*Refund, error)
	Update(ctx context.Context, refund *Refund) error
}
