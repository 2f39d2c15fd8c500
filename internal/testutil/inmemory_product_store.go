package testutil

import (
	"context"

	"github.com/flexprice/parkingpermits/internal/domain/product"
	"github.com/flexprice/parkingpermits/internal/types"
)

// InMemoryProductStore implements product.Repository
type InMemoryProductStore struct {
	*InMemoryStore[*product.Product]
}

func NewInMemoryProductStore() *InMemoryProductStore {
	return &InMemoryProductStore{
		InMemoryStore: NewInMemoryStore(func(p *product.Product) *product.Product {
			c := *p
			return &c
		}),
	}
}

func (s *InMemoryProductStore) Create(ctx context.Context, p *product.Product) error {
	return s.InMemoryStore.Create(ctx, p.ID, p)
}

func (s *InMemoryProductStore) Get(ctx context.Context, id string) (*product.Product, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryProductStore) List(ctx context.Context, filter *types.ProductFilter) ([]*product.Product, error) {
	if filter == nil {
		filter = &types.ProductFilter{}
	}
	return s.InMemoryStore.List(ctx, func(_ context.Context, p *product.Product) bool {
		if filter.ZoneID != "" && p.ZoneID != filter.ZoneID {
			return false
		}
		if filter.From.IsValid() && p.EndDate.Before(filter.From) {
			return false
		}
		if filter.To.IsValid() && p.StartDate.After(filter.To) {
			return false
		}
		return true
	}, func(a, b *product.Product) bool {
		return a.StartDate.Before(b.StartDate)
	}), nil
}
