package service

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
	"github.com/flexprice/parkingpermits/internal/api/dto"
	"github.com/flexprice/parkingpermits/internal/calendar"
	"github.com/flexprice/parkingpermits/internal/domain/order"
	"github.com/flexprice/parkingpermits/internal/domain/permit"
	"github.com/flexprice/parkingpermits/internal/domain/refund"
	ierr "github.com/flexprice/parkingpermits/internal/errors"
	"github.com/flexprice/parkingpermits/internal/types"
	"github.com/samber/lo"
)

type PermitService interface {
	CreatePermit(ctx context.Context, req dto.CreatePermitRequest) (*dto.PermitResponse, error)
	GetPermit(ctx context.Context, id string) (*dto.PermitResponse, error)
	ListCustomerPermits(ctx context.Context, customerID string) ([]*dto.PermitResponse, error)
	GetPriceQuote(ctx context.Context, id string, start, end civil.Date) (*dto.PriceQuoteResponse, error)
	Checkout(ctx context.Context, id string) (*dto.CheckoutResponse, error)
	CancelPermit(ctx context.Context, id string) (*dto.PermitResponse, error)
	EndPermit(ctx context.Context, id string, req dto.EndPermitRequest) (*dto.EndPermitResponse, error)
}

type permitService struct {
	ServiceParams
}

func NewPermitService(params ServiceParams) PermitService {
	return &permitService{
		ServiceParams: params,
	}
}

// activeStatuses are the statuses that occupy one of the customer's permit slots
var activeStatuses = []types.PermitStatus{
	types.PermitStatusValid,
	types.PermitStatusPaymentInProgress,
}

func (s *permitService) CreatePermit(ctx context.Context, req dto.CreatePermitRequest) (*dto.PermitResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.MonthCount > s.Config.Permit.MaxFixedPeriodMonths {
		return nil, ierr.NewError("month count too large").
			WithHintf("A permit can be bought for at most %d months", s.Config.Permit.MaxFixedPeriodMonths).
			WithReportableDetails(map[string]any{"month_count": req.MonthCount}).
			Mark(ierr.ErrValidation)
	}

	v, err := s.RegistryClient.LookupVehicle(ctx, req.RegistrationNumber, req.OwnerID)
	if err != nil {
		return nil, err
	}
	if v.IsRestricted() {
		return nil, ierr.NewError("vehicle is restricted").
			WithHint("The vehicle registry does not allow a permit for this vehicle").
			WithReportableDetails(map[string]any{"restrictions": v.Restrictions}).
			Mark(ierr.ErrValidation)
	}

	existing, err := s.PermitRepo.List(ctx, &types.PermitFilter{
		CustomerID: req.CustomerID,
		Statuses:   activeStatuses,
	})
	if err != nil {
		return nil, err
	}
	if len(existing) >= s.Config.Permit.MaxPermitsPerCustomer {
		return nil, notEligible("permit limit reached",
			"The customer already has the maximum number of permits",
			map[string]any{"customer_id": req.CustomerID, "permits": len(existing)})
	}
	if lo.ContainsBy(existing, func(p *permit.Permit) bool { return p.Vehicle.SameAs(v) }) {
		return nil, ierr.NewError("vehicle already has a permit").
			WithHint("The vehicle already has a permit").
			WithReportableDetails(map[string]any{"registration_number": v.RegistrationNumber}).
			Mark(ierr.ErrAlreadyExists)
	}

	now := s.now()
	p := req.ToPermit(ctx, v)
	p.StartTime = now
	if req.StartTime != nil && req.StartTime.After(now) {
		p.StartTime = *req.StartTime
	}
	p.StatusChangedAt = now

	primary, hasPrimary := lo.Find(existing, func(e *permit.Permit) bool { return e.PrimaryVehicle })
	p.PrimaryVehicle = !hasPrimary
	if hasPrimary && primary.IsFixedPeriod() {
		p.ContractType = types.ContractTypeFixedPeriod
	}
	if err := s.schedule(p, primary); err != nil {
		return nil, err
	}

	if req.Preliminary {
		if err := p.Transition(types.PermitStatusPreliminary, now); err != nil {
			return nil, err
		}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.PermitRepo.Create(ctx, p); err != nil {
		return nil, err
	}

	s.Logger.Infow("created permit",
		"permit_id", p.ID,
		"customer_id", p.CustomerID,
		"status", p.Status,
		"primary_vehicle", p.PrimaryVehicle)
	return dto.NewPermitResponse(p), nil
}

// schedule sets the end of a permit starting at p.StartTime. A secondary
// permit never outlasts the customer's primary one.
func (s *permitService) schedule(p *permit.Permit, primary *permit.Permit) error {
	end := calendar.EndOfPeriod(p.StartTime, p.MonthCount, s.Location)
	if primary != nil && primary.EndTime != nil {
		if !p.StartTime.Before(*primary.EndTime) {
			return notEligible("primary permit ends before start",
				"A second permit cannot start after the primary permit ends",
				map[string]any{"primary_permit_id": primary.ID})
		}
		if p.IsFixedPeriod() && end.After(*primary.EndTime) {
			end = *primary.EndTime
			p.MonthCount = calendar.DiffMonthsCeil(
				calendar.DateOf(p.StartTime, s.Location),
				calendar.ExclusiveEnd(end, s.Location),
			)
		}
	}
	p.EndTime = &end
	return nil
}

func (s *permitService) GetPermit(ctx context.Context, id string) (*dto.PermitResponse, error) {
	p, err := s.PermitRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewPermitResponse(p), nil
}

func (s *permitService) ListCustomerPermits(ctx context.Context, customerID string) ([]*dto.PermitResponse, error) {
	permits, err := s.PermitRepo.List(ctx, &types.PermitFilter{CustomerID: customerID})
	if err != nil {
		return nil, err
	}
	return lo.Map(permits, func(p *permit.Permit, _ int) *dto.PermitResponse {
		return dto.NewPermitResponse(p)
	}), nil
}

func (s *permitService) GetPriceQuote(ctx context.Context, id string, start, end civil.Date) (*dto.PriceQuoteResponse, error) {
	if end.Before(start) {
		return nil, ierr.NewError("end before start").
			WithHint("Quote end date must not be before its start date").
			Mark(ierr.ErrValidation)
	}
	p, err := s.PermitRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	result, err := s.price(ctx, permitPriceConfig(p), start, end)
	if err != nil {
		return nil, err
	}

	resp := &dto.PriceQuoteResponse{
		Gross: result.Gross.StringFixed(2),
		Net:   result.Net.StringFixed(2),
		VAT:   result.VAT.StringFixed(2),
	}
	for _, line := range result.Lines {
		resp.Lines = append(resp.Lines, dto.PriceQuoteLine{
			ProductID:     line.Product.ID,
			StartDate:     line.Period.Start.String(),
			EndDate:       line.Period.End.String(),
			Days:          line.Days,
			UnitPrice:     types.RoundMoney(line.UnitPrice).StringFixed(2),
			Amount:        types.RoundMoney(line.Amount).StringFixed(2),
			VATPercentage: line.Product.VATPercentage.String(),
		})
	}
	return resp, nil
}

// Checkout prices the permit, opens the order at the provider and moves the
// permit to PAYMENT_IN_PROGRESS. The provider is called before anything is
// written, so a provider failure leaves the permit untouched.
func (s *permitService) Checkout(ctx context.Context, id string) (*dto.CheckoutResponse, error) {
	var resp *dto.CheckoutResponse
	err := s.withPermitLock(ctx, id, func(ctx context.Context, p *permit.Permit, fx *effects) error {
		if err := p.ValidateTransition(types.PermitStatusPaymentInProgress); err != nil {
			return err
		}

		now := s.now()
		if p.StartTime.Before(now) {
			// a draft left waiting is charged from the moment it is bought
			primary, err := s.primaryOf(ctx, p)
			if err != nil {
				return err
			}
			p.StartTime = now
			if err := s.schedule(p, primary); err != nil {
				return err
			}
		}

		charged := p.ChargedPeriod(now, s.Location)
		result, err := s.price(ctx, permitPriceConfig(p), charged.Start, charged.End)
		if err != nil {
			return err
		}

		o := s.newOrder(ctx, p, types.OrderTypeCreated, result, nil)
		if err := s.createProviderOrder(ctx, p, o, p.IsOpenEnded()); err != nil {
			return err
		}
		if err := s.OrderRepo.Create(ctx, o); err != nil {
			return err
		}

		if err := fx.transition(p, types.PermitStatusPaymentInProgress, now); err != nil {
			return err
		}
		p.Touch(ctx)
		if err := s.PermitRepo.Update(ctx, p); err != nil {
			return err
		}

		event := permitEvent(types.PermitEventCheckoutStarted, p, "checkout started")
		event.OrderID = o.ID
		fx.publish(event)

		resp = &dto.CheckoutResponse{
			Permit:      dto.NewPermitResponse(p),
			Order:       dto.NewOrderResponse(o),
			CheckoutURL: o.CheckoutURL,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// primaryOf returns the customer's valid primary permit when p is not it
func (s ServiceParams) primaryOf(ctx context.Context, p *permit.Permit) (*permit.Permit, error) {
	if p.PrimaryVehicle {
		return nil, nil
	}
	permits, err := s.PermitRepo.List(ctx, &types.PermitFilter{
		CustomerID: p.CustomerID,
		Statuses:   []types.PermitStatus{types.PermitStatusValid},
	})
	if err != nil {
		return nil, err
	}
	primary, _ := lo.Find(permits, func(o *permit.Permit) bool { return o.PrimaryVehicle && o.ID != p.ID })
	return primary, nil
}

// CancelPermit abandons a permit that was never paid
func (s *permitService) CancelPermit(ctx context.Context, id string) (*dto.PermitResponse, error) {
	var resp *dto.PermitResponse
	err := s.withPermitLock(ctx, id, func(ctx context.Context, p *permit.Permit, fx *effects) error {
		if err := s.cancelUnpaid(ctx, p, fx); err != nil {
			return err
		}
		resp = dto.NewPermitResponse(p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// cancelUnpaid cancels the permit and its open orders, locally and at the provider
func (s ServiceParams) cancelUnpaid(ctx context.Context, p *permit.Permit, fx *effects) error {
	now := s.now()
	if err := fx.transition(p, types.PermitStatusCancelled, now); err != nil {
		return err
	}

	drafts, err := s.OrderRepo.List(ctx, &types.OrderFilter{
		PermitID: p.ID,
		Statuses: []types.OrderStatus{types.OrderStatusDraft},
	})
	if err != nil {
		return err
	}
	for _, o := range drafts {
		cancelOrder(ctx, o, now)
		if err := s.OrderRepo.Update(ctx, o); err != nil {
			return err
		}
		s.cancelOrderAfterCommit(fx, o)
	}

	p.Touch(ctx)
	if err := s.PermitRepo.Update(ctx, p); err != nil {
		return err
	}
	fx.publish(permitEvent(types.PermitEventCancelled, p, "permit cancelled before payment"))
	return nil
}

// EndPermit ends a valid permit and refunds the paid time after the cutoff.
// AFTER_CURRENT_PERIOD keeps the permit valid until its current month period
// ends; the other end types close it now.
func (s *permitService) EndPermit(ctx context.Context, id string, req dto.EndPermitRequest) (*dto.EndPermitResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var resp *dto.EndPermitResponse
	err := s.withPermitLock(ctx, id, func(ctx context.Context, p *permit.Permit, fx *effects) error {
		if err := p.ValidateTransition(types.PermitStatusClosed); err != nil {
			return err
		}
		if req.EndType == types.EndTypeAfterCurrentPeriod && p.EndType != "" {
			return notEligible("permit already ending",
				"The permit already ends after its current period",
				map[string]any{"permit_id": p.ID, "end_type": p.EndType})
		}

		siblings, err := s.PermitRepo.List(ctx, &types.PermitFilter{
			CustomerID: p.CustomerID,
			Statuses:   []types.PermitStatus{types.PermitStatusValid},
		})
		if err != nil {
			return err
		}
		others := lo.Filter(siblings, func(o *permit.Permit, _ int) bool { return o.ID != p.ID })
		if p.PrimaryVehicle && len(others) > 0 && !req.Force {
			return notEligible("secondary permit still valid",
				"End the secondary permit first, or force the end to make it the primary permit",
				map[string]any{"permit_id": p.ID, "secondary_permit_id": others[0].ID})
		}

		now := s.now()
		endTime, cutoff := s.endPoint(p, req.EndType, now)
		refunds, err := s.refundUnused(ctx, p, cutoff, req.IBAN)
		if err != nil {
			return err
		}

		if err := s.dropOpenOrders(ctx, p, fx); err != nil {
			return err
		}
		p.EndTime = &endTime
		p.EndType = req.EndType

		closing := req.EndType != types.EndTypeAfterCurrentPeriod
		if closing {
			if err := fx.transition(p, types.PermitStatusClosed, now); err != nil {
				return err
			}
			if err := s.closeAttachments(ctx, p, now); err != nil {
				return err
			}
		}
		p.Touch(ctx)
		if err := s.PermitRepo.Update(ctx, p); err != nil {
			return err
		}

		if err := s.stopBilling(ctx, p, closing, fx); err != nil {
			return err
		}
		if closing && p.PrimaryVehicle && len(others) > 0 {
			next := others[0].ID
			fx.afterCommit(func(ctx context.Context) {
				s.promoteToPrimary(ctx, next)
			})
		}

		fx.publish(permitEvent(types.PermitEventEnded, p, "permit ended "+string(req.EndType)))
		for _, r := range refunds {
			event := permitEvent(types.PermitEventRefundCreated, p, "refund created")
			event.RefundID = r.ID
			fx.publish(event)
		}

		resp = &dto.EndPermitResponse{Permit: dto.NewPermitResponse(p)}
		for _, r := range refunds {
			resp.Refunds = append(resp.Refunds, dto.NewRefundResponse(r))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// endPoint returns the new end instant of the permit and the first civil
// date that is refunded
func (s *permitService) endPoint(p *permit.Permit, endType types.EndType, now time.Time) (time.Time, civil.Date) {
	var endTime time.Time
	var cutoff civil.Date
	switch endType {
	case types.EndTypePreviousDayEnd:
		endTime = calendar.PreviousDayEnd(now, s.Location)
		cutoff = calendar.DateOf(now, s.Location)
	case types.EndTypeAfterCurrentPeriod:
		period := p.CurrentPeriod(now, s.Location)
		endTime = calendar.StartOf(period.End, s.Location).Add(-time.Microsecond)
		cutoff = period.End
	default:
		endTime = now
		cutoff = calendar.CeilDate(now, s.Location)
	}

	// a permit that has not started is refunded in full
	if endTime.Before(p.StartTime) {
		endTime = p.StartTime
		cutoff = calendar.DateOf(p.StartTime, s.Location)
	}
	// ending never prolongs a permit
	if p.EndTime != nil && endTime.After(*p.EndTime) {
		endTime = *p.EndTime
		cutoff = calendar.ExclusiveEnd(endTime, s.Location)
	}
	return endTime, cutoff
}

// refundUnused refunds the paid items from cutoff on
func (s ServiceParams) refundUnused(ctx context.Context, p *permit.Permit, cutoff civil.Date, iban string) ([]*refund.Refund, error) {
	items, err := s.paidItems(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	specs := refund.NewCalculator().Calculate(refund.Params{
		Items:     items,
		Cutoff:    cutoff,
		OpenEnded: p.IsOpenEnded(),
	})
	if len(specs) == 0 {
		return nil, nil
	}

	refunds, err := s.createRefunds(ctx, p, specs, iban, "Unused permit time from "+cutoff.String())
	if err != nil {
		return nil, err
	}
	s.Logger.Infow("refunded unused permit time",
		"permit_id", p.ID,
		"cutoff", cutoff.String(),
		"amount", refund.Total(specs).StringFixed(2))
	return refunds, nil
}

// dropOpenOrders cancels unpaid change and extension orders of an ending
// permit and forgets the change they would have applied
func (s ServiceParams) dropOpenOrders(ctx context.Context, p *permit.Permit, fx *effects) error {
	drafts, err := s.OrderRepo.List(ctx, &types.OrderFilter{
		PermitID: p.ID,
		Statuses: []types.OrderStatus{types.OrderStatusDraft},
	})
	if err != nil {
		return err
	}
	now := s.now()
	for _, o := range drafts {
		if o.Type == types.OrderTypeExtension {
			if err := s.revertExtension(ctx, p, o); err != nil {
				return err
			}
		}
		cancelOrder(ctx, o, now)
		if err := s.OrderRepo.Update(ctx, o); err != nil {
			return err
		}
		s.cancelOrderAfterCommit(fx, o)
	}
	p.DropPendingChange()
	return nil
}

// closeAttachments ends the temporary vehicle and open extension requests of a closed permit
func (s ServiceParams) closeAttachments(ctx context.Context, p *permit.Permit, now time.Time) error {
	windows, err := s.TemporaryVehicleRepo.List(ctx, &types.TemporaryVehicleFilter{PermitID: p.ID, ActiveOnly: true})
	if err != nil {
		return err
	}
	for _, tv := range windows {
		tv.IsActive = false
		if tv.EndTime.After(now) {
			tv.EndTime = now
		}
		tv.Touch(ctx)
		if err := s.TemporaryVehicleRepo.Update(ctx, tv); err != nil {
			return err
		}
	}

	requests, err := s.ExtensionRepo.List(ctx, &types.ExtensionRequestFilter{
		PermitID: p.ID,
		Statuses: []types.ExtensionRequestStatus{types.ExtensionRequestStatusOpen},
	})
	if err != nil {
		return err
	}
	for _, r := range requests {
		r.Status = types.ExtensionRequestStatusCancelled
		r.Touch(ctx)
		if err := s.ExtensionRepo.Update(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// stopBilling cancels the subscription of an open ended permit. A closed fixed
// period permit also has its latest order cancelled at the provider.
func (s ServiceParams) stopBilling(ctx context.Context, p *permit.Permit, closing bool, fx *effects) error {
	orders, err := s.OrderRepo.List(ctx, &types.OrderFilter{
		PermitID: p.ID,
		Statuses: []types.OrderStatus{types.OrderStatusConfirmed},
	})
	if err != nil {
		return err
	}

	if p.IsOpenEnded() {
		sub, ok := lo.Find(orders, func(o *order.Order) bool {
			return o.ExternalSubscriptionID != "" && o.SubscriptionStatus != types.SubscriptionStatusCancelled
		})
		if !ok {
			return nil
		}
		sub.SubscriptionStatus = types.SubscriptionStatusCancelled
		sub.Touch(ctx)
		if err := s.OrderRepo.Update(ctx, sub); err != nil {
			return err
		}
		s.cancelSubscriptionAfterCommit(fx, sub.ExternalSubscriptionID)
		return nil
	}

	if closing && len(orders) > 0 {
		s.cancelOrderAfterCommit(fx, orders[len(orders)-1])
	}
	return nil
}

// promoteToPrimary makes the remaining valid permit of a customer the primary one
func (s ServiceParams) promoteToPrimary(ctx context.Context, permitID string) {
	err := s.withPermitLock(ctx, permitID, func(ctx context.Context, p *permit.Permit, fx *effects) error {
		if p.Status != types.PermitStatusValid || p.PrimaryVehicle {
			return nil
		}
		p.PrimaryVehicle = true
		p.Touch(ctx)
		if err := s.PermitRepo.Update(ctx, p); err != nil {
			return err
		}
		fx.publish(permitEvent(types.PermitEventBecamePrimary, p, "permit became primary"))
		return nil
	})
	if err != nil {
		s.Logger.Errorw("failed to promote permit to primary", "permit_id", permitID, "error", err)
	}
}
