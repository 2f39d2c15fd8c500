package testutil

import (
	"context"

	"github.com/flexprice/parkingpermits/internal/domain/order"
	"github.com/flexprice/parkingpermits/internal/types"
	"github.com/samber/lo"
)

// InMemoryOrderStore implements order.Repository. Like the database
// repository, Update writes the order row and leaves its items alone.
type InMemoryOrderStore struct {
	*InMemoryStore[*order.Order]
}

func NewInMemoryOrderStore() *InMemoryOrderStore {
	return &InMemoryOrderStore{
		InMemoryStore: NewInMemoryStore(copyOrder),
	}
}

func copyOrder(o *order.Order) *order.Order {
	c := *o
	if o.PaidTime != nil {
		c.PaidTime = lo.ToPtr(*o.PaidTime)
	}
	if o.CancelledTime != nil {
		c.CancelledTime = lo.ToPtr(*o.CancelledTime)
	}
	c.Items = lo.Map(o.Items, func(item *order.OrderItem, _ int) *order.OrderItem {
		i := *item
		if item.RefundedFrom != nil {
			i.RefundedFrom = lo.ToPtr(*item.RefundedFrom)
		}
		return &i
	})
	return &c
}

func (s *InMemoryOrderStore) Create(ctx context.Context, o *order.Order) error {
	return s.InMemoryStore.Create(ctx, o.ID, o)
}

func (s *InMemoryOrderStore) Get(ctx context.Context, id string) (*order.Order, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryOrderStore) GetByExternalID(ctx context.Context, externalOrderID string) (*order.Order, error) {
	return s.first(ctx, externalOrderID, func(o *order.Order) bool {
		return o.ExternalOrderID == externalOrderID
	})
}

func (s *InMemoryOrderStore) GetBySubscriptionID(ctx context.Context, externalSubscriptionID string) (*order.Order, error) {
	return s.first(ctx, externalSubscriptionID, func(o *order.Order) bool {
		return o.ExternalSubscriptionID == externalSubscriptionID
	})
}

func (s *InMemoryOrderStore) GetByIdempotencyKey(ctx context.Context, key string) (*order.Order, error) {
	return s.first(ctx, key, func(o *order.Order) bool {
		return o.IdempotencyKey == key
	})
}

// first returns the oldest order matching fn
func (s *InMemoryOrderStore) first(ctx context.Context, value string, fn func(*order.Order) bool) (*order.Order, error) {
	if value == "" {
		return nil, notFound(value)
	}
	o, ok := s.Find(ctx, func(_ context.Context, o *order.Order) bool { return fn(o) })
	if !ok {
		return nil, notFound(value)
	}
	return o, nil
}

func (s *InMemoryOrderStore) List(ctx context.Context, filter *types.OrderFilter) ([]*order.Order, error) {
	if filter == nil {
		filter = &types.OrderFilter{}
	}
	return s.InMemoryStore.List(ctx, func(_ context.Context, o *order.Order) bool {
		if filter.PermitID != "" && o.PermitID != filter.PermitID {
			return false
		}
		if filter.CustomerID != "" && o.CustomerID != filter.CustomerID {
			return false
		}
		return matchesAny(filter.Statuses, o.Status) && matchesAny(filter.Types, o.Type)
	}, nil), nil
}

func (s *InMemoryOrderStore) Update(ctx context.Context, o *order.Order) error {
	stored, err := s.InMemoryStore.Get(ctx, o.ID)
	if err != nil {
		return err
	}
	updated := copyOrder(o)
	updated.Items = stored.Items
	return s.InMemoryStore.Update(ctx, o.ID, updated)
}

func (s *InMemoryOrderStore) UpdateItem(ctx context.Context, item *order.OrderItem) error {
	o, err := s.InMemoryStore.Get(ctx, item.OrderID)
	if err != nil {
		return err
	}
	_, index, found := lo.FindIndexOf(o.Items, func(i *order.OrderItem) bool { return i.ID == item.ID })
	if !found {
		return notFound(item.ID)
	}
	o.Items[index] = copyOrder(&order.Order{Items: []*order.OrderItem{item}}).Items[0]
	return s.InMemoryStore.Update(ctx, o.ID, o)
}
