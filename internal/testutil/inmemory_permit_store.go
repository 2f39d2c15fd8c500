package testutil

import (
	"context"

	"github.com/flexprice/parkingpermits/internal/domain/permit"
	"github.com/flexprice/parkingpermits/internal/types"
	"github.com/samber/lo"
)

// InMemoryPermitStore implements permit.Repository
type InMemoryPermitStore struct {
	*InMemoryStore[*permit.Permit]
}

func NewInMemoryPermitStore() *InMemoryPermitStore {
	return &InMemoryPermitStore{
		InMemoryStore: NewInMemoryStore(copyPermit),
	}
}

func copyPermit(p *permit.Permit) *permit.Permit {
	if p == nil {
		return nil
	}
	c := *p
	if p.EndTime != nil {
		c.EndTime = lo.ToPtr(*p.EndTime)
	}
	if p.NextVehicle != nil {
		c.NextVehicle = lo.ToPtr(*p.NextVehicle)
	}
	if p.NextConsentLowEmissionAccepted != nil {
		c.NextConsentLowEmissionAccepted = lo.ToPtr(*p.NextConsentLowEmissionAccepted)
	}
	return &c
}

func (s *InMemoryPermitStore) Create(ctx context.Context, p *permit.Permit) error {
	return s.InMemoryStore.Create(ctx, p.ID, p)
}

func (s *InMemoryPermitStore) Get(ctx context.Context, id string) (*permit.Permit, error) {
	return s.InMemoryStore.Get(ctx, id)
}

// GetForUpdate reads the permit; row locking is left to the keyed locks of the services
func (s *InMemoryPermitStore) GetForUpdate(ctx context.Context, id string) (*permit.Permit, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryPermitStore) List(ctx context.Context, filter *types.PermitFilter) ([]*permit.Permit, error) {
	if filter == nil {
		filter = &types.PermitFilter{}
	}
	items := s.InMemoryStore.List(ctx, func(_ context.Context, p *permit.Permit) bool {
		return permitFilterFn(p, filter)
	}, func(a, b *permit.Permit) bool {
		if a.StartTime.Equal(b.StartTime) {
			return a.ID < b.ID
		}
		return a.StartTime.Before(b.StartTime)
	})
	if filter.Limit > 0 && len(items) > filter.Limit {
		items = items[:filter.Limit]
	}
	return items, nil
}

func permitFilterFn(p *permit.Permit, filter *types.PermitFilter) bool {
	if !matchesAny(filter.PermitIDs, p.ID) || !matchesAny(filter.Statuses, p.Status) {
		return false
	}
	if filter.CustomerID != "" && p.CustomerID != filter.CustomerID {
		return false
	}
	if filter.ContractType != "" && p.ContractType != filter.ContractType {
		return false
	}
	if filter.StatusChangedBefore != nil && !p.StatusChangedAt.Before(*filter.StatusChangedBefore) {
		return false
	}
	if filter.EndTimeBefore != nil && (p.EndTime == nil || !p.EndTime.Before(*filter.EndTimeBefore)) {
		return false
	}
	return true
}

func (s *InMemoryPermitStore) Update(ctx context.Context, p *permit.Permit) error {
	return s.InMemoryStore.Update(ctx, p.ID, p)
}

func (s *InMemoryPermitStore) Delete(ctx context.Context, id string) error {
	return s.InMemoryStore.Delete(ctx, id)
}

// InMemoryTemporaryVehicleStore implements permit.TemporaryVehicleRepository
type InMemoryTemporaryVehicleStore struct {
	*InMemoryStore[*permit.TemporaryVehicle]
}

func NewInMemoryTemporaryVehicleStore() *InMemoryTemporaryVehicleStore {
	return &InMemoryTemporaryVehicleStore{
		InMemoryStore: NewInMemoryStore(func(tv *permit.TemporaryVehicle) *permit.TemporaryVehicle {
			c := *tv
			return &c
		}),
	}
}

func (s *InMemoryTemporaryVehicleStore) Create(ctx context.Context, tv *permit.TemporaryVehicle) error {
	return s.InMemoryStore.Create(ctx, tv.ID, tv)
}

func (s *InMemoryTemporaryVehicleStore) List(ctx context.Context, filter *types.TemporaryVehicleFilter) ([]*permit.TemporaryVehicle, error) {
	if filter == nil {
		filter = &types.TemporaryVehicleFilter{}
	}
	return s.InMemoryStore.List(ctx, func(_ context.Context, tv *permit.TemporaryVehicle) bool {
		if filter.PermitID != "" && tv.PermitID != filter.PermitID {
			return false
		}
		if filter.ActiveOnly && !tv.IsActive {
			return false
		}
		if filter.CreatedAfter != nil && !tv.CreatedAt.After(*filter.CreatedAfter) {
			return false
		}
		return true
	}, func(a, b *permit.TemporaryVehicle) bool {
		return a.StartTime.Before(b.StartTime)
	}), nil
}

func (s *InMemoryTemporaryVehicleStore) Update(ctx context.Context, tv *permit.TemporaryVehicle) error {
	return s.InMemoryStore.Update(ctx, tv.ID, tv)
}
