package product

import (
	"context"

	"github.com/flexprice/parkingpermits/internal/types"
)

// Repository is read-mostly: the catalog is owned by administrators and
// products are immutable once a priced order item references them.
type Repository interface {
	Create(ctx context.Context, product *Product) error
	Get(ctx context.Context, id string) (*Product, error)
	// List returns the zone's products intersecting the filter range, ordered by start date
	List(ctx context.Context, filter *types.ProductFilter) ([]*Product, error)
}
