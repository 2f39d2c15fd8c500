package testutil

import (
	"context"
	"slices"

	"github.com/flexprice/parkingpermits/internal/domain/extension"
	"github.com/flexprice/parkingpermits/internal/domain/refund"
	"github.com/flexprice/parkingpermits/internal/types"
	"github.com/samber/lo"
)

// InMemoryRefundStore implements refund.Repository
type InMemoryRefundStore struct {
	*InMemoryStore[*refund.Refund]
}

func NewInMemoryRefundStore() *InMemoryRefundStore {
	return &InMemoryRefundStore{
		InMemoryStore: NewInMemoryStore(func(r *refund.Refund) *refund.Refund {
			c := *r
			c.OrderIDs = slices.Clone(r.OrderIDs)
			c.PermitIDs = slices.Clone(r.PermitIDs)
			c.Items = slices.Clone(r.Items)
			return &c
		}),
	}
}

func (s *InMemoryRefundStore) Create(ctx context.Context, r *refund.Refund) error {
	return s.InMemoryStore.Create(ctx, r.ID, r)
}

func (s *InMemoryRefundStore) Get(ctx context.Context, id string) (*refund.Refund, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryRefundStore) List(ctx context.Context, filter *types.RefundFilter) ([]*refund.Refund, error) {
	if filter == nil {
		filter = &types.RefundFilter{}
	}
	return s.InMemoryStore.List(ctx, func(_ context.Context, r *refund.Refund) bool {
		if filter.PermitID != "" && !lo.Contains(r.PermitIDs, filter.PermitID) {
			return false
		}
		return matchesAny(filter.Statuses, r.Status)
	}, nil), nil
}

func (s *InMemoryRefundStore) Update(ctx context.Context, r *refund.Refund) error {
	return s.InMemoryStore.Update(ctx, r.ID, r)
}

// InMemoryExtensionStore implements extension.Repository
type InMemoryExtensionStore struct {
	*InMemoryStore[*extension.Request]
}

func NewInMemoryExtensionStore() *InMemoryExtensionStore {
	return &InMemoryExtensionStore{
		InMemoryStore: NewInMemoryStore(func(r *extension.Request) *extension.Request {
			c := *r
			if r.PreviousEndTime != nil {
				c.PreviousEndTime = lo.ToPtr(*r.PreviousEndTime)
			}
			return &c
		}),
	}
}

func (s *InMemoryExtensionStore) Create(ctx context.Context, r *extension.Request) error {
	return s.InMemoryStore.Create(ctx, r.ID, r)
}

func (s *InMemoryExtensionStore) Get(ctx context.Context, id string) (*extension.Request, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryExtensionStore) List(ctx context.Context, filter *types.ExtensionRequestFilter) ([]*extension.Request, error) {
	if filter == nil {
		filter = &types.ExtensionRequestFilter{}
	}
	return s.InMemoryStore.List(ctx, func(_ context.Context, r *extension.Request) bool {
		if filter.PermitID != "" && r.PermitID != filter.PermitID {
			return false
		}
		return matchesAny(filter.Statuses, r.Status)
	}, nil), nil
}

func (s *InMemoryExtensionStore) Update(ctx context.Context, r *extension.Request) error {
	return s.InMemoryStore.Update(ctx, r.ID, r)
}
