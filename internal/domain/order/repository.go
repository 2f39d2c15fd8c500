package order

import (
	"context"

	"github.com/flexprice/parkingpermits/internal/types"
)

// Repository defines the interface for order data access.
// Create and Get carry the order items; Update writes the order row only.
type Repository interface {
	Create(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	GetByExternalID(ctx context.Context, externalOrderID string) (*Order, error)
	GetBySubscriptionID(ctx context.Context, externalSubscriptionID string) (*Order, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*Order, error)
	List(ctx context.Context, filter *types.OrderFilter) ([]*Order, error)
	Update(ctx context.Context, order *Order) error
	UpdateItem(ctx context.Context, item *OrderItem) error
}
