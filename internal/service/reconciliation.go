package service

import (
	"context"

	"github.com/flexprice/parkingpermits/internal/api/dto"
	"github.com/flexprice/parkingpermits/internal/cache"
	"github.com/flexprice/parkingpermits/internal/calendar"
	"github.com/flexprice/parkingpermits/internal/domain/order"
	"github.com/flexprice/parkingpermits/internal/domain/permit"
	"github.com/flexprice/parkingpermits/internal/domain/refund"
	ierr "github.com/flexprice/parkingpermits/internal/errors"
	"github.com/flexprice/parkingpermits/internal/metrics"
	"github.com/flexprice/parkingpermits/internal/types"
	"github.com/samber/lo"
	"github.com/sourcegraph/conc/pool"
)

// ReconciliationService applies payment provider events to permits and orders.
// Every event is idempotent: a redelivery finds the state already applied and
// returns without writing.
type ReconciliationService interface {
	HandleProviderEvent(ctx context.Context, event dto.ProviderEvent) error
	HandleProviderEvents(ctx context.Context, events []dto.ProviderEvent) []dto.ProviderEventResult
	RightOfPurchase(ctx context.Context, event dto.ProviderEvent) (*dto.RightOfPurchaseResponse, error)
}

type reconciliationService struct {
	ServiceParams
}

func NewReconciliationService(params ServiceParams) ReconciliationService {
	return &reconciliationService{
		ServiceParams: params,
	}
}

func (s *reconciliationService) HandleProviderEvent(ctx context.Context, event dto.ProviderEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	if event.EventType == types.ProviderEventRightOfPurchase {
		_, err := s.RightOfPurchase(ctx, event)
		return err
	}

	key := cache.GenerateKey(cache.PrefixProviderEvent, event.DedupKey())
	if !s.Cache.Add(ctx, key, true, s.Config.Reconciliation.DedupTTL) {
		s.Logger.Debugw("skipping redelivered provider event", "key", event.DedupKey())
		metrics.ProviderEvents.WithLabelValues(string(event.EventType), metrics.ResultDuplicate).Inc()
		return nil
	}

	if s.Sentry != nil {
		span, spanCtx := s.Sentry.MonitorEventProcessing(ctx, string(event.EventType), event.Timestamp, map[string]interface{}{
			"order_id":        event.OrderID,
			"subscription_id": event.SubscriptionID,
		})
		if span != nil {
			ctx = spanCtx
			defer span.Finish()
		}
	}

	err := s.dispatch(ctx, event)
	switch {
	case err == nil:
		metrics.ProviderEvents.WithLabelValues(string(event.EventType), metrics.ResultOK).Inc()
		return nil
	case ierr.IsDuplicateEvent(err):
		s.Logger.Debugw("provider event already applied", "key", event.DedupKey(), "event_type", event.EventType)
		metrics.ProviderEvents.WithLabelValues(string(event.EventType), metrics.ResultDuplicate).Inc()
		return nil
	}

	// let the provider's redelivery try again
	s.Cache.Delete(ctx, key)
	metrics.ProviderEvents.WithLabelValues(string(event.EventType), metrics.ResultError).Inc()
	s.Logger.Errorw("failed to handle provider event",
		"event_type", event.EventType,
		"order_id", event.OrderID,
		"subscription_id", event.SubscriptionID,
		"error", err)
	if s.Sentry != nil && !ierr.IsNotFound(err) && !ierr.IsInvalidTransition(err) {
		s.Sentry.CaptureExceptionWithTags(err, map[string]string{
			"event_type":      string(event.EventType),
			"order_id":        event.OrderID,
			"subscription_id": event.SubscriptionID,
		})
	}
	return err
}

func (s *reconciliationService) dispatch(ctx context.Context, event dto.ProviderEvent) error {
	switch event.EventType {
	case types.ProviderEventPaymentPaid:
		return s.handlePaymentPaid(ctx, event)
	case types.ProviderEventPaymentCancelled, types.ProviderEventOrderCancelled:
		return s.handleOrderCancelled(ctx, event)
	case types.ProviderEventSubscriptionCreated:
		return s.handleSubscriptionCreated(ctx, event)
	case types.ProviderEventSubscriptionRenewalOrderCreated:
		return s.handleRenewal(ctx, event)
	case types.ProviderEventSubscriptionCancelled:
		return s.handleSubscriptionCancelled(ctx, event)
	default:
		return ierr.NewError("unknown provider event type").
			WithHintf("Provider event type %s is not supported", event.EventType).
			Mark(ierr.ErrValidation)
	}
}

// HandleProviderEvents applies a batch concurrently. Events of one permit are
// serialized by the permit lock; events of different permits run in parallel.
func (s *reconciliationService) HandleProviderEvents(ctx context.Context, events []dto.ProviderEvent) []dto.ProviderEventResult {
	results := make([]dto.ProviderEventResult, len(events))
	p := pool.New().WithMaxGoroutines(max(s.Config.Reconciliation.Workers, 1))
	for i, event := range events {
		p.Go(func() {
			results[i] = dto.ProviderEventResult{DedupKey: event.DedupKey()}
			if err := s.HandleProviderEvent(ctx, event); err != nil {
				results[i].Error = err.Error()
			}
		})
	}
	p.Wait()
	return results
}

// orderByExternalID finds the local order of a provider order id
func (s *reconciliationService) orderByExternalID(ctx context.Context, externalID string) (*order.Order, error) {
	if externalID == "" {
		return nil, ierr.NewError("order id is required").
			WithHint("The provider event does not reference an order").
			Mark(ierr.ErrValidation)
	}
	return s.OrderRepo.GetByExternalID(ctx, externalID)
}

func (s *reconciliationService) handlePaymentPaid(ctx context.Context, event dto.ProviderEvent) error {
	found, err := s.orderByExternalID(ctx, event.OrderID)
	if err != nil {
		return err
	}

	return s.withPermitLock(ctx, found.PermitID, func(ctx context.Context, p *permit.Permit, fx *effects) error {
		o, err := s.OrderRepo.Get(ctx, found.ID)
		if err != nil {
			return err
		}
		if o.IsPaid() {
			return ierr.NewError("order already paid").Mark(ierr.ErrDuplicateEvent)
		}
		if o.Status == types.OrderStatusCancelled {
			return s.refundLatePayment(ctx, p, o, fx)
		}

		now := s.now()
		switch o.Type {
		case types.OrderTypeCreated:
			if err := fx.transition(p, types.PermitStatusValid, now); err != nil {
				return err
			}
			if err := s.supersedeDrafts(ctx, p); err != nil {
				return err
			}
			if p.IsOpenEnded() && o.ExternalSubscriptionID != "" && o.SubscriptionStatus == types.SubscriptionStatusNone {
				o.SubscriptionStatus = types.SubscriptionStatusConfirmed
			}
			fx.publish(orderEvent(types.PermitEventActivated, p, o, "permit paid"))

		case types.OrderTypeVehicleChanged, types.OrderTypeAddressChanged:
			if err := s.settleCredits(ctx, o); err != nil {
				return err
			}
			p.ApplyPendingChange()
			eventType := types.PermitEventVehicleChanged
			if o.Type == types.OrderTypeAddressChanged {
				eventType = types.PermitEventAddressChanged
			}
			fx.publish(orderEvent(eventType, p, o, "change paid"))

		case types.OrderTypeExtension:
			fx.publish(orderEvent(types.PermitEventExtensionApproved, p, o, "extension paid"))
		case types.OrderTypeRenewal:
			fx.publish(orderEvent(types.PermitEventRenewed, p, o, "renewal paid"))
		}

		confirmOrder(ctx, o, now)
		if err := s.OrderRepo.Update(ctx, o); err != nil {
			return err
		}
		p.Touch(ctx)
		return s.PermitRepo.Update(ctx, p)
	})
}

// refundLatePayment gives back a payment that arrived after its order was
// cancelled. The order stays cancelled; the money goes to an open refund and
// an alert is raised so that the payment is followed up by hand.
func (s *reconciliationService) refundLatePayment(ctx context.Context, p *permit.Permit, o *order.Order, fx *effects) error {
	existing, err := s.RefundRepo.List(ctx, &types.RefundFilter{PermitID: p.ID})
	if err != nil {
		return err
	}
	if lo.ContainsBy(existing, func(r *refund.Refund) bool { return lo.Contains(r.OrderIDs, o.ID) }) {
		return ierr.NewError("late payment already refunded").Mark(ierr.ErrDuplicateEvent)
	}

	charges := o.ChargeItems()
	if len(charges) == 0 || !o.TotalPrice.IsPositive() {
		return ierr.NewError("payment for cancelled order").
			WithHint("The order was cancelled before the payment arrived").
			WithReportableDetails(map[string]any{"order_id": o.ID, "external_order_id": o.ExternalOrderID}).
			Mark(ierr.ErrInvalidOperation)
	}

	now := s.now()
	amount := o.TotalPrice
	vat := charges[0].VATPercentage
	r := &refund.Refund{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_REFUND),
		ReferenceNumber: types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_REFUND),
		CustomerID:      p.CustomerID,
		Amount:          amount,
		VATAmount:       amount.Sub(types.RoundMoney(types.RemoveVAT(amount, vat))),
		VATPercentage:   vat,
		Status:          types.RefundStatusOpen,
		Description:     "Payment received for cancelled order " + o.ID,
		OrderIDs:        []string{o.ID},
		PermitIDs:       []string{p.ID},
		BaseModel:       types.GetDefaultBaseModel(ctx),
	}
	if err := s.RefundRepo.Create(ctx, r); err != nil {
		return err
	}

	o.PaidTime = lo.ToPtr(now)
	o.Touch(ctx)
	if err := s.OrderRepo.Update(ctx, o); err != nil {
		return err
	}

	event := orderEvent(types.PermitEventRefundCreated, p, o, "payment after cancellation refunded")
	event.RefundID = r.ID
	fx.publish(event)

	fx.afterCommit(func(ctx context.Context) {
		s.Logger.Errorw("payment received for cancelled order",
			"permit_id", p.ID,
			"order_id", o.ID,
			"external_order_id", o.ExternalOrderID,
			"refund_id", r.ID,
			"amount", amount.StringFixed(2))
		if s.Sentry != nil {
			s.Sentry.CaptureExceptionWithTags(
				ierr.NewError("payment received for cancelled order").
					WithReportableDetails(map[string]any{"order_id": o.ID, "refund_id": r.ID}).
					Mark(ierr.ErrInvalidOperation),
				map[string]string{
					"alert":             "payment_after_cancel",
					"order_id":          o.ID,
					"external_order_id": o.ExternalOrderID,
					"refund_id":         r.ID,
				})
		}
	})
	return nil
}

// supersedeDrafts deletes drafts of the customer for the vehicle a permit was just activated for
func (s *reconciliationService) supersedeDrafts(ctx context.Context, p *permit.Permit) error {
	drafts, err := s.PermitRepo.List(ctx, &types.PermitFilter{
		CustomerID: p.CustomerID,
		Statuses:   []types.PermitStatus{types.PermitStatusDraft},
	})
	if err != nil {
		return err
	}
	for _, d := range drafts {
		if d.ID == p.ID || !d.Vehicle.SameAs(p.Vehicle) {
			continue
		}
		if err := s.PermitRepo.Delete(ctx, d.ID); err != nil {
			return err
		}
		s.Logger.Infow("deleted superseded draft permit", "permit_id", d.ID, "activated_permit_id", p.ID)
	}
	return nil
}

func (s *reconciliationService) handleOrderCancelled(ctx context.Context, event dto.ProviderEvent) error {
	found, err := s.orderByExternalID(ctx, event.OrderID)
	if err != nil {
		return err
	}

	return s.withPermitLock(ctx, found.PermitID, func(ctx context.Context, p *permit.Permit, fx *effects) error {
		o, err := s.OrderRepo.Get(ctx, found.ID)
		if err != nil {
			return err
		}
		switch o.Status {
		case types.OrderStatusCancelled:
			return ierr.NewError("order already cancelled").Mark(ierr.ErrDuplicateEvent)
		case types.OrderStatusConfirmed:
			// a paid order is settled through refunds, never by the provider's cancellation
			return ierr.NewError("order already paid").Mark(ierr.ErrDuplicateEvent)
		}

		now := s.now()
		switch o.Type {
		case types.OrderTypeCreated:
			if p.Status == types.PermitStatusPaymentInProgress {
				if err := fx.transition(p, types.PermitStatusCancelled, now); err != nil {
					return err
				}
				fx.publish(orderEvent(types.PermitEventCancelled, p, o, "payment cancelled"))
			}
		case types.OrderTypeVehicleChanged, types.OrderTypeAddressChanged:
			p.DropPendingChange()
		case types.OrderTypeExtension:
			if err := s.revertExtension(ctx, p, o); err != nil {
				return err
			}
			fx.publish(orderEvent(types.PermitEventExtensionReverted, p, o, "extension payment cancelled"))
		}

		cancelOrder(ctx, o, now)
		if err := s.OrderRepo.Update(ctx, o); err != nil {
			return err
		}
		p.Touch(ctx)
		return s.PermitRepo.Update(ctx, p)
	})
}

func (s *reconciliationService) handleSubscriptionCreated(ctx context.Context, event dto.ProviderEvent) error {
	found, err := s.orderByExternalID(ctx, event.OrderID)
	if err != nil {
		return err
	}

	return s.withPermitLock(ctx, found.PermitID, func(ctx context.Context, p *permit.Permit, fx *effects) error {
		o, err := s.OrderRepo.Get(ctx, found.ID)
		if err != nil {
			return err
		}
		if o.ExternalSubscriptionID == event.SubscriptionID && o.SubscriptionStatus != types.SubscriptionStatusNone {
			return ierr.NewError("subscription already recorded").Mark(ierr.ErrDuplicateEvent)
		}
		o.ExternalSubscriptionID = event.SubscriptionID
		o.SubscriptionStatus = types.SubscriptionStatusConfirmed
		o.Touch(ctx)
		return s.OrderRepo.Update(ctx, o)
	})
}

// handleRenewal charges the next month period of an open ended permit. The
// provider's renewal order id keys the local order, so a redelivery is found
// and ignored.
func (s *reconciliationService) handleRenewal(ctx context.Context, event dto.ProviderEvent) error {
	if event.SubscriptionID == "" {
		return ierr.NewError("subscription id is required").
			WithHint("A renewal must reference its subscription").
			Mark(ierr.ErrValidation)
	}
	sub, err := s.OrderRepo.GetBySubscriptionID(ctx, event.SubscriptionID)
	if err != nil {
		return err
	}

	return s.withPermitLock(ctx, sub.PermitID, func(ctx context.Context, p *permit.Permit, fx *effects) error {
		if event.OrderID != "" {
			_, err := s.OrderRepo.GetByExternalID(ctx, event.OrderID)
			if err == nil {
				return ierr.NewError("renewal already recorded").Mark(ierr.ErrDuplicateEvent)
			}
			if !ierr.IsNotFound(err) {
				return err
			}
		}
		if err := p.ValidateTransition(types.PermitStatusValid); err != nil {
			return err
		}
		if !p.IsOpenEnded() || p.EndType != "" || p.EndTime == nil {
			return notEligible("permit does not renew",
				"Only an open ended permit that is not ending renews",
				map[string]any{"permit_id": p.ID, "subscription_id": event.SubscriptionID})
		}

		start := calendar.ExclusiveEnd(*p.EndTime, s.Location)
		result, err := s.price(ctx, permitPriceConfig(p), start, calendar.AddMonths(start, 1))
		if err != nil {
			return err
		}
		now := s.now()
		o := s.newOrder(ctx, p, types.OrderTypeRenewal, result, nil)
		o.ExternalOrderID = event.OrderID
		o.ExternalSubscriptionID = event.SubscriptionID
		o.SubscriptionStatus = types.SubscriptionStatusConfirmed
		confirmOrder(ctx, o, now)
		if err := s.OrderRepo.Create(ctx, o); err != nil {
			return err
		}

		p.EndTime = lo.ToPtr(calendar.EndOfPeriod(calendar.StartOf(start, s.Location), 1, s.Location))
		p.Touch(ctx)
		if err := s.PermitRepo.Update(ctx, p); err != nil {
			return err
		}
		fx.publish(orderEvent(types.PermitEventRenewed, p, o, "subscription renewed"))
		return nil
	})
}

// handleSubscriptionCancelled lets the permit run to the end of its paid period
func (s *reconciliationService) handleSubscriptionCancelled(ctx context.Context, event dto.ProviderEvent) error {
	if event.SubscriptionID == "" {
		return ierr.NewError("subscription id is required").
			WithHint("A subscription cancellation must reference its subscription").
			Mark(ierr.ErrValidation)
	}
	sub, err := s.OrderRepo.GetBySubscriptionID(ctx, event.SubscriptionID)
	if err != nil {
		return err
	}

	return s.withPermitLock(ctx, sub.PermitID, func(ctx context.Context, p *permit.Permit, fx *effects) error {
		o, err := s.OrderRepo.Get(ctx, sub.ID)
		if err != nil {
			return err
		}
		if o.SubscriptionStatus == types.SubscriptionStatusCancelled {
			return ierr.NewError("subscription already cancelled").Mark(ierr.ErrDuplicateEvent)
		}
		o.SubscriptionStatus = types.SubscriptionStatusCancelled
		o.Touch(ctx)
		if err := s.OrderRepo.Update(ctx, o); err != nil {
			return err
		}

		if p.Status == types.PermitStatusValid && p.EndType == "" {
			p.EndType = types.EndTypeAfterCurrentPeriod
			p.Touch(ctx)
			if err := s.PermitRepo.Update(ctx, p); err != nil {
				return err
			}
			fx.publish(orderEvent(types.PermitEventEnded, p, o, "subscription cancelled by provider"))
		}
		return nil
	})
}

// RightOfPurchase answers the provider's check before it charges an order
func (s *reconciliationService) RightOfPurchase(ctx context.Context, event dto.ProviderEvent) (*dto.RightOfPurchaseResponse, error) {
	deny := func(reason string) (*dto.RightOfPurchaseResponse, error) {
		metrics.ProviderEvents.WithLabelValues(string(types.ProviderEventRightOfPurchase), "denied").Inc()
		s.Logger.Infow("denied right of purchase", "order_id", event.OrderID, "reason", reason)
		return &dto.RightOfPurchaseResponse{RightOfPurchase: false, Reason: reason}, nil
	}

	if event.OrderID == "" {
		return s.renewalRightOfPurchase(ctx, event, deny)
	}
	o, err := s.OrderRepo.GetByExternalID(ctx, event.OrderID)
	if ierr.IsNotFound(err) && event.SubscriptionID != "" {
		// the provider asks before a renewal order exists locally
		return s.renewalRightOfPurchase(ctx, event, deny)
	}
	if ierr.IsNotFound(err) {
		return deny("order not found")
	}
	if err != nil {
		return nil, err
	}
	if o.Status != types.OrderStatusDraft && o.Type != types.OrderTypeRenewal {
		return deny("order is " + string(o.Status))
	}
	if event.TotalPrice != nil && !event.TotalPrice.Equal(o.TotalPrice) {
		return deny("price mismatch")
	}

	p, err := s.PermitRepo.Get(ctx, o.PermitID)
	if err != nil {
		return nil, err
	}
	switch {
	case o.Type == types.OrderTypeCreated && p.Status != types.PermitStatusPaymentInProgress:
		return deny("permit is " + string(p.Status))
	case o.Type != types.OrderTypeCreated && p.Status != types.PermitStatusValid:
		return deny("permit is " + string(p.Status))
	}

	if o.Type == types.OrderTypeCreated {
		valid, err := s.PermitRepo.List(ctx, &types.PermitFilter{
			CustomerID: p.CustomerID,
			Statuses:   []types.PermitStatus{types.PermitStatusValid},
		})
		if err != nil {
			return nil, err
		}
		if len(valid) >= s.Config.Permit.MaxPermitsPerCustomer {
			return deny("permit limit reached")
		}
	}

	metrics.ProviderEvents.WithLabelValues(string(types.ProviderEventRightOfPurchase), metrics.ResultOK).Inc()
	return &dto.RightOfPurchaseResponse{RightOfPurchase: true}, nil
}

func (s *reconciliationService) renewalRightOfPurchase(ctx context.Context, event dto.ProviderEvent, deny func(string) (*dto.RightOfPurchaseResponse, error)) (*dto.RightOfPurchaseResponse, error) {
	sub, err := s.OrderRepo.GetBySubscriptionID(ctx, event.SubscriptionID)
	if ierr.IsNotFound(err) {
		return deny("subscription not found")
	}
	if err != nil {
		return nil, err
	}
	if sub.SubscriptionStatus == types.SubscriptionStatusCancelled {
		return deny("subscription is cancelled")
	}
	p, err := s.PermitRepo.Get(ctx, sub.PermitID)
	if err != nil {
		return nil, err
	}
	if p.Status != types.PermitStatusValid || p.EndType != "" {
		return deny("permit does not renew")
	}
	metrics.ProviderEvents.WithLabelValues(string(types.ProviderEventRightOfPurchase), metrics.ResultOK).Inc()
	return &dto.RightOfPurchaseResponse{RightOfPurchase: true}, nil
}

func orderEvent(eventType types.PermitEventType, p *permit.Permit, o *order.Order, message string) *types.PermitEvent {
	event := permitEvent(eventType, p, message)
	event.OrderID = o.ID
	return event
}
