package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/flexprice/parkingpermits/internal/domain/order"
	"github.com/flexprice/parkingpermits/internal/domain/permit"
	"github.com/flexprice/parkingpermits/internal/domain/pricing"
	"github.com/flexprice/parkingpermits/internal/domain/refund"
	ierr "github.com/flexprice/parkingpermits/internal/errors"
	"github.com/flexprice/parkingpermits/internal/httpclient"
	"github.com/flexprice/parkingpermits/internal/idempotency"
	"github.com/flexprice/parkingpermits/internal/integration/provider"
	"github.com/flexprice/parkingpermits/internal/metrics"
	"github.com/flexprice/parkingpermits/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// newOrder builds a DRAFT order from a priced range. Credits are appended as
// negative lines pointing at the items they give money back for.
func (s ServiceParams) newOrder(ctx context.Context, p *permit.Permit, orderType types.OrderType, result *pricing.Result, credits []*refund.Spec) *order.Order {
	o := &order.Order{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ORDER),
		ReferenceNumber: types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_ORDER),
		CustomerID:      p.CustomerID,
		PermitID:        p.ID,
		Type:            orderType,
		Status:          types.OrderStatusDraft,
		BaseModel:       types.GetDefaultBaseModel(ctx),
	}

	for _, item := range pricing.NewCalculator().OrderItemsFor(result) {
		item.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ORDER_ITEM)
		item.OrderID = o.ID
		item.PermitID = p.ID
		item.BaseModel = o.BaseModel
		o.Items = append(o.Items, item)
	}
	for _, spec := range credits {
		for _, share := range spec.Items {
			o.Items = append(o.Items, &order.OrderItem{
				ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ORDER_ITEM),
				OrderID:        o.ID,
				PermitID:       p.ID,
				ProductID:      share.Item.ProductID,
				StartDate:      share.From,
				EndDate:        share.Item.RefundableUntil(),
				Quantity:       share.Item.Quantity,
				UnitPrice:      share.Item.UnitPrice,
				TotalPrice:     share.Amount.Neg(),
				VATPercentage:  share.Item.VATPercentage,
				CreditedItemID: share.Item.ID,
				RefundedAmount: decimal.Zero,
				BaseModel:      o.BaseModel,
			})
		}
	}
	o.TotalPrice = o.CalculateTotal()
	return o
}

// orderKey derives the provider idempotency key of an order. attempt is the
// number of orders the permit already has, so a retried call reproduces the
// key while a new attempt after a cancelled one does not.
func (s ServiceParams) orderKey(o *order.Order, attempt int) string {
	params := map[string]interface{}{
		"permit_id": o.PermitID,
		"type":      o.Type,
		"total":     o.TotalPrice.StringFixed(2),
		"attempt":   attempt,
	}
	if len(o.Items) > 0 {
		params["start"] = o.Items[0].StartDate.String()
		params["end"] = o.Items[len(o.Items)-1].EndDate.String()
	}
	return s.Idempotency.GenerateKey(idempotency.ScopeProviderOrder, params)
}

// createProviderOrder creates the order remotely and records the provider's
// identifiers on it. Nothing is written locally; callers persist the order
// only after this succeeds.
func (s ServiceParams) createProviderOrder(ctx context.Context, p *permit.Permit, o *order.Order, subscription bool) error {
	existing, err := s.OrderRepo.List(ctx, &types.OrderFilter{PermitID: p.ID})
	if err != nil {
		return err
	}
	o.IdempotencyKey = s.orderKey(o, len(existing))

	req := &provider.CreateOrderRequest{
		ReferenceNumber: o.ReferenceNumber,
		PermitID:        p.ID,
		Customer:        provider.Customer{ID: p.CustomerID},
		TotalPrice:      o.TotalPrice,
		Subscription:    subscription,
		IdempotencyKey:  o.IdempotencyKey,
		Lines: lo.Map(o.Items, func(item *order.OrderItem, _ int) provider.OrderLine {
			return provider.OrderLine{
				ProductID:     item.ProductID,
				Description:   lineDescription(o.Type, p, item),
				Quantity:      item.Quantity,
				UnitPrice:     item.UnitPrice,
				TotalPrice:    item.TotalPrice,
				VATPercentage: item.VATPercentage,
				StartDate:     item.StartDate.String(),
				EndDate:       item.EndDate.String(),
			}
		}),
	}

	resp, err := s.ProviderClient.CreateOrder(ctx, req)
	metrics.ProviderCalls.WithLabelValues("create_order", metrics.Result(err)).Inc()
	if err != nil {
		return err
	}

	o.ExternalOrderID = resp.OrderID
	o.CheckoutURL = resp.CheckoutURL
	if resp.SubscriptionID != "" {
		o.ExternalSubscriptionID = resp.SubscriptionID
	}
	return nil
}

func lineDescription(orderType types.OrderType, p *permit.Permit, item *order.OrderItem) string {
	if item.IsCredit() {
		return fmt.Sprintf("Credit %s %s-%s", p.Vehicle.RegistrationNumber, item.StartDate, item.EndDate)
	}
	return fmt.Sprintf("%s %s %s-%s", orderType, p.Vehicle.RegistrationNumber, item.StartDate, item.EndDate)
}

// paidItems returns the charge items of the permit's confirmed orders
func (s ServiceParams) paidItems(ctx context.Context, permitID string) ([]*order.OrderItem, error) {
	orders, err := s.OrderRepo.List(ctx, &types.OrderFilter{
		PermitID: permitID,
		Statuses: []types.OrderStatus{types.OrderStatusConfirmed},
	})
	if err != nil {
		return nil, err
	}
	return lo.FlatMap(orders, func(o *order.Order, _ int) []*order.OrderItem {
		return o.ChargeItems()
	}), nil
}

// createRefunds stores one refund per VAT group and records the refunded
// shares on the order items
func (s ServiceParams) createRefunds(ctx context.Context, p *permit.Permit, specs []*refund.Spec, iban, description string) ([]*refund.Refund, error) {
	var refunds []*refund.Refund
	for _, spec := range specs {
		allocations := spec.Allocations()
		r := &refund.Refund{
			ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_REFUND),
			ReferenceNumber: types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_REFUND),
			CustomerID:      p.CustomerID,
			IBAN:            iban,
			Amount:          spec.Amount,
			VATAmount:       spec.VATAmount,
			VATPercentage:   spec.VATPercentage,
			Status:          types.RefundStatusOpen,
			Description:     description,
			OrderIDs:        lo.Uniq(lo.Map(allocations, func(a refund.Allocation, _ int) string { return a.OrderID })),
			PermitIDs:       []string{p.ID},
			Items:           allocations,
			BaseModel:       types.GetDefaultBaseModel(ctx),
		}
		if err := s.RefundRepo.Create(ctx, r); err != nil {
			return nil, err
		}
		for _, item := range spec.Apply() {
			item.Touch(ctx)
			if err := s.OrderRepo.UpdateItem(ctx, item); err != nil {
				return nil, err
			}
		}
		refunds = append(refunds, r)
	}
	return refunds, nil
}

// cancelAtProvider retries a cancellation with exponential backoff. It runs
// after the local change committed, so a failure is reported rather than
// returned: the provider will be reconciled by its own cancellation events.
func (s ServiceParams) cancelAtProvider(ctx context.Context, operation string, fields map[string]string, call func(ctx context.Context) error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.Config.Provider.RetryWaitMin
	b.MaxInterval = s.Config.Provider.RetryWaitMax
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.Config.Provider.MaxRetries)), ctx)

	err := backoff.Retry(func() error {
		err := call(ctx)
		if httpErr, ok := httpclient.IsHTTPError(err); ok && httpErr.StatusCode < http.StatusInternalServerError && httpErr.StatusCode != http.StatusTooManyRequests {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
	metrics.ProviderCalls.WithLabelValues(operation, metrics.Result(err)).Inc()
	if err == nil {
		return
	}

	tags := map[string]string{"operation": operation}
	args := []interface{}{"operation", operation, "error", err}
	for k, v := range fields {
		tags[k] = v
		args = append(args, k, v)
	}
	s.Logger.Errorw("provider cancellation failed", args...)
	if s.Sentry != nil {
		s.Sentry.CaptureExceptionWithTags(err, tags)
	}
}

// cancelOrderAfterCommit schedules the remote cancellation of an unpaid order
func (s ServiceParams) cancelOrderAfterCommit(fx *effects, o *order.Order) {
	if o == nil || o.ExternalOrderID == "" {
		return
	}
	externalID := o.ExternalOrderID
	key := s.Idempotency.GenerateKey(idempotency.ScopeCancelOrder, map[string]interface{}{"order_id": externalID})
	fx.afterCommit(func(ctx context.Context) {
		s.cancelAtProvider(ctx, "cancel_order", map[string]string{"order_id": externalID}, func(ctx context.Context) error {
			return s.ProviderClient.CancelOrder(ctx, externalID, key)
		})
	})
}

// cancelSubscriptionAfterCommit schedules the remote cancellation of a subscription
func (s ServiceParams) cancelSubscriptionAfterCommit(fx *effects, subscriptionID string) {
	if subscriptionID == "" {
		return
	}
	key := s.Idempotency.GenerateKey(idempotency.ScopeCancelSubscription, map[string]interface{}{"subscription_id": subscriptionID})
	fx.afterCommit(func(ctx context.Context) {
		s.cancelAtProvider(ctx, "cancel_subscription", map[string]string{"subscription_id": subscriptionID}, func(ctx context.Context) error {
			return s.ProviderClient.CancelSubscription(ctx, subscriptionID, key)
		})
	})
}

// confirmOrder marks the order paid
func confirmOrder(ctx context.Context, o *order.Order, at time.Time) {
	o.Status = types.OrderStatusConfirmed
	o.PaidTime = lo.ToPtr(at)
	o.Touch(ctx)
}

// cancelOrder marks the order cancelled
func cancelOrder(ctx context.Context, o *order.Order, at time.Time) {
	o.Status = types.OrderStatusCancelled
	o.CancelledTime = lo.ToPtr(at)
	o.Touch(ctx)
}

func notEligible(msg, hint string, details map[string]any) error {
	return ierr.NewError(msg).
		WithHint(hint).
		WithReportableDetails(details).
		Mark(ierr.ErrInvalidOperation)
}
