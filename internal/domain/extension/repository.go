package extension

import (
	"context"

	"github.com/flexprice/parkingpermits/internal/types"
)

// Repository defines the interface for extension request data access
type Repository interface {
	Create(ctx context.Context, req *Request) error
	Get(ctx context.Context, id string) (*Request, error)
	List(ctx context.Context, filter *types.ExtensionRequestFilter) ([]*Request, error)
	Update(ctx context.Context, req *Request) error
}
