package service

import (
	"context"
	"time"

	"github.com/flexprice/parkingpermits/internal/api/dto"
	"github.com/flexprice/parkingpermits/internal/calendar"
	"github.com/flexprice/parkingpermits/internal/domain/order"
	"github.com/flexprice/parkingpermits/internal/domain/permit"
	"github.com/flexprice/parkingpermits/internal/domain/refund"
	"github.com/flexprice/parkingpermits/internal/domain/vehicle"
	ierr "github.com/flexprice/parkingpermits/internal/errors"
	"github.com/flexprice/parkingpermits/internal/types"
	"github.com/samber/lo"
)

// ChangeService modifies a valid permit in place
type ChangeService interface {
	ChangeVehicle(ctx context.Context, permitID string, req dto.ChangeVehicleRequest) (*dto.ChangeResponse, error)
	ChangeAddress(ctx context.Context, permitID string, req dto.ChangeAddressRequest) (*dto.ChangeResponse, error)
	AddTemporaryVehicle(ctx context.Context, permitID string, req dto.AddTemporaryVehicleRequest) (*dto.TemporaryVehicleResponse, error)
	RemoveTemporaryVehicle(ctx context.Context, permitID string) error
}

type changeService struct {
	ServiceParams
}

func NewChangeService(params ServiceParams) ChangeService {
	return &changeService{
		ServiceParams: params,
	}
}

// change is a pending modification of a valid permit
type change struct {
	orderType types.OrderType
	eventType types.PermitEventType
	config    priceConfig
	iban      string
	// stage records the change as pending; apply promotes it onto the permit
	stage func(p *permit.Permit)
}

func (s *changeService) ChangeVehicle(ctx context.Context, permitID string, req dto.ChangeVehicleRequest) (*dto.ChangeResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
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

	var resp *dto.ChangeResponse
	err = s.withPermitLock(ctx, permitID, func(ctx context.Context, p *permit.Permit, fx *effects) error {
		if p.Vehicle.SameAs(v) {
			return ierr.NewError("vehicle unchanged").
				WithHint("The permit is already for this vehicle").
				Mark(ierr.ErrValidation)
		}
		if err := s.checkVehicleFree(ctx, p, v); err != nil {
			return err
		}

		cfg := permitPriceConfig(p)
		cfg.Vehicle = v
		if req.ConsentLowEmissionAccepted != nil {
			cfg.Consent = *req.ConsentLowEmissionAccepted
		}
		resp, err = s.applyChange(ctx, p, fx, change{
			orderType: types.OrderTypeVehicleChanged,
			eventType: types.PermitEventVehicleChanged,
			config:    cfg,
			iban:      req.IBAN,
			stage: func(p *permit.Permit) {
				p.NextVehicle = lo.ToPtr(v)
				p.NextConsentLowEmissionAccepted = lo.ToPtr(cfg.Consent)
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *changeService) ChangeAddress(ctx context.Context, permitID string, req dto.ChangeAddressRequest) (*dto.ChangeResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var resp *dto.ChangeResponse
	err := s.withPermitLock(ctx, permitID, func(ctx context.Context, p *permit.Permit, fx *effects) error {
		cfg := permitPriceConfig(p)
		cfg.ZoneID = req.ZoneID
		var err error
		resp, err = s.applyChange(ctx, p, fx, change{
			orderType: types.OrderTypeAddressChanged,
			eventType: types.PermitEventAddressChanged,
			config:    cfg,
			iban:      req.IBAN,
			stage: func(p *permit.Permit) {
				p.NextZoneID = req.ZoneID
				p.NextAddressID = req.AddressID
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// checkVehicleFree rejects a vehicle that another active permit of the customer already uses
func (s *changeService) checkVehicleFree(ctx context.Context, p *permit.Permit, v vehicle.Vehicle) error {
	permits, err := s.PermitRepo.List(ctx, &types.PermitFilter{
		CustomerID: p.CustomerID,
		Statuses:   activeStatuses,
	})
	if err != nil {
		return err
	}
	if lo.ContainsBy(permits, func(o *permit.Permit) bool { return o.ID != p.ID && o.Vehicle.SameAs(v) }) {
		return ierr.NewError("vehicle already has a permit").
			WithHint("The vehicle already has a permit").
			WithReportableDetails(map[string]any{"registration_number": v.RegistrationNumber}).
			Mark(ierr.ErrAlreadyExists)
	}
	return nil
}

// applyChange prices the rest of the paid validity with the new configuration
// and nets it against a credit for the old one. A positive difference is
// charged through a provider order and the change waits for its payment; no
// difference applies the change at once; a negative one applies it and
// refunds the difference.
func (s ServiceParams) applyChange(ctx context.Context, p *permit.Permit, fx *effects, c change) (*dto.ChangeResponse, error) {
	// only a valid permit may be modified in place
	if err := p.ValidateTransition(types.PermitStatusValid); err != nil {
		return nil, err
	}
	if p.HasPendingChange() {
		return nil, notEligible("change already pending",
			"A previous change is waiting for its payment",
			map[string]any{"permit_id": p.ID})
	}

	now := s.now()
	remaining := p.ChargedPeriod(now, s.Location)
	remaining.Start = calendar.MaxDate(remaining.Start, calendar.CeilDate(now, s.Location))
	if p.IsOpenEnded() {
		// a subscription is credited and charged one period at a time
		remaining.End = calendar.MinDate(remaining.End, p.CurrentPeriod(now, s.Location).End)
	}

	items, err := s.paidItems(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	credits := refund.NewCalculator().Calculate(refund.Params{
		Items:     items,
		Cutoff:    remaining.Start,
		OpenEnded: p.IsOpenEnded(),
	})
	result, err := s.price(ctx, c.config, remaining.Start, remaining.End)
	if err != nil {
		return nil, err
	}
	net := result.Gross.Sub(refund.Total(credits))

	s.Logger.Infow("computed permit change",
		"permit_id", p.ID,
		"type", c.orderType,
		"new_price", result.Gross.StringFixed(2),
		"credit", refund.Total(credits).StringFixed(2),
		"net", net.StringFixed(2))

	resp := &dto.ChangeResponse{}
	switch {
	case net.IsZero():
		c.stage(p)
		p.ApplyPendingChange()
		resp.Applied = true
		fx.publish(permitEvent(c.eventType, p, "permit changed without price difference"))

	case net.IsPositive():
		o := s.newOrder(ctx, p, c.orderType, result, credits)
		if err := s.createProviderOrder(ctx, p, o, false); err != nil {
			return nil, err
		}
		if err := s.OrderRepo.Create(ctx, o); err != nil {
			return nil, err
		}
		c.stage(p)
		resp.Order = dto.NewOrderResponse(o)
		resp.CheckoutURL = o.CheckoutURL

		event := permitEvent(types.PermitEventChangeOrderCreated, p, "change waits for payment")
		event.OrderID = o.ID
		fx.publish(event)

	default:
		o := s.newOrder(ctx, p, c.orderType, result, credits)
		confirmOrder(ctx, o, now)
		if err := s.OrderRepo.Create(ctx, o); err != nil {
			return nil, err
		}
		if err := s.settleCredits(ctx, o); err != nil {
			return nil, err
		}
		r, err := s.refundDifference(ctx, p, o, credits, c.iban)
		if err != nil {
			return nil, err
		}
		c.stage(p)
		p.ApplyPendingChange()
		resp.Applied = true
		resp.Order = dto.NewOrderResponse(o)
		resp.Refund = dto.NewRefundResponse(r)

		event := permitEvent(c.eventType, p, "permit changed with refund")
		event.OrderID = o.ID
		event.RefundID = r.ID
		fx.publish(event)
	}

	if err := fx.transition(p, types.PermitStatusValid, now); err != nil {
		return nil, err
	}
	p.Touch(ctx)
	if err := s.PermitRepo.Update(ctx, p); err != nil {
		return nil, err
	}
	resp.Permit = dto.NewPermitResponse(p)
	return resp, nil
}

// settleCredits records the credit lines of a paid change order as refunded on the items they credit
func (s ServiceParams) settleCredits(ctx context.Context, o *order.Order) error {
	credits := lo.Filter(o.Items, func(item *order.OrderItem, _ int) bool { return item.CreditedItemID != "" })
	if len(credits) == 0 {
		return nil
	}

	orders, err := s.OrderRepo.List(ctx, &types.OrderFilter{PermitID: o.PermitID})
	if err != nil {
		return err
	}
	byID := make(map[string]*order.OrderItem)
	for _, other := range orders {
		for _, item := range other.Items {
			byID[item.ID] = item
		}
	}

	for _, credit := range credits {
		item, ok := byID[credit.CreditedItemID]
		if !ok {
			return ierr.NewError("credited item not found").
				WithHint("The change order credits an unknown order item").
				WithReportableDetails(map[string]any{
					"order_id":         o.ID,
					"credited_item_id": credit.CreditedItemID,
				}).
				Mark(ierr.ErrNotFound)
		}
		item.RefundedAmount = item.RefundedAmount.Add(credit.TotalPrice.Neg())
		item.MarkRefundedFrom(credit.StartDate)
		item.Touch(ctx)
		if err := s.OrderRepo.UpdateItem(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

// refundDifference pays back the negative total of a change order
func (s ServiceParams) refundDifference(ctx context.Context, p *permit.Permit, o *order.Order, credits []*refund.Spec, iban string) (*refund.Refund, error) {
	amount := o.TotalPrice.Neg()
	vat := credits[0].VATPercentage
	r := &refund.Refund{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_REFUND),
		ReferenceNumber: types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_REFUND),
		CustomerID:      p.CustomerID,
		IBAN:            iban,
		Amount:          amount,
		VATAmount:       amount.Sub(types.RoundMoney(types.RemoveVAT(amount, vat))),
		VATPercentage:   vat,
		Status:          types.RefundStatusOpen,
		Description:     "Price difference of " + string(o.Type),
		OrderIDs:        []string{o.ID},
		PermitIDs:       []string{p.ID},
		BaseModel:       types.GetDefaultBaseModel(ctx),
	}
	if err := s.RefundRepo.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// AddTemporaryVehicle lets another vehicle park on the permit for a while.
// Only one window may be active at a time and a permit gets a limited number
// of windows per rolling year.
func (s *changeService) AddTemporaryVehicle(ctx context.Context, permitID string, req dto.AddTemporaryVehicleRequest) (*dto.TemporaryVehicleResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	v, err := s.RegistryClient.LookupVehicle(ctx, req.RegistrationNumber, req.OwnerID)
	if err != nil {
		return nil, err
	}

	var tv *permit.TemporaryVehicle
	err = s.withPermitLock(ctx, permitID, func(ctx context.Context, p *permit.Permit, fx *effects) error {
		if err := p.ValidateTransition(types.PermitStatusValid); err != nil {
			return err
		}
		if p.Vehicle.SameAs(v) {
			return ierr.NewError("temporary vehicle is the permit vehicle").
				WithHint("The temporary vehicle must differ from the permit vehicle").
				Mark(ierr.ErrValidation)
		}

		now := s.now()
		start := req.StartTime
		if start.Before(now) {
			start = now
		}
		if start.Before(p.StartTime) {
			start = p.StartTime
		}
		end := req.EndTime
		if p.EndTime != nil && end.After(*p.EndTime) {
			end = *p.EndTime
		}
		if end.Sub(start) < s.Config.Permit.TemporaryVehicleMinDuration {
			return ierr.NewError("temporary vehicle window too short").
				WithHintf("A temporary vehicle must be added for at least %s within the permit validity", s.Config.Permit.TemporaryVehicleMinDuration).
				WithReportableDetails(map[string]any{"start_time": start, "end_time": end}).
				Mark(ierr.ErrValidation)
		}

		if err := s.checkTemporaryVehicleLimits(ctx, p, start, end, now); err != nil {
			return err
		}

		tv = &permit.TemporaryVehicle{
			ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_TEMPORARY_VEHICLE),
			PermitID:  p.ID,
			Vehicle:   v,
			StartTime: start,
			EndTime:   end,
			IsActive:  true,
			BaseModel: types.GetDefaultBaseModel(ctx),
		}
		if err := s.TemporaryVehicleRepo.Create(ctx, tv); err != nil {
			return err
		}
		// the temporary vehicle is free of charge, so the permit stays as paid
		if err := fx.transition(p, types.PermitStatusValid, now); err != nil {
			return err
		}
		fx.publish(permitEvent(types.PermitEventTemporaryVehicleAdd, p, "temporary vehicle "+v.RegistrationNumber+" added"))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dto.TemporaryVehicleResponse{TemporaryVehicle: tv}, nil
}

func (s *changeService) checkTemporaryVehicleLimits(ctx context.Context, p *permit.Permit, start, end, now time.Time) error {
	since := now.AddDate(0, 0, -s.Config.Permit.TemporaryVehicleLimitWindowDays)
	recent, err := s.TemporaryVehicleRepo.List(ctx, &types.TemporaryVehicleFilter{
		PermitID:     p.ID,
		CreatedAfter: &since,
	})
	if err != nil {
		return err
	}
	if len(recent) >= s.Config.Permit.TemporaryVehicleLimit {
		return notEligible("temporary vehicle limit reached",
			"The permit has used all of its temporary vehicles for this year",
			map[string]any{"permit_id": p.ID, "limit": s.Config.Permit.TemporaryVehicleLimit})
	}

	active, err := s.TemporaryVehicleRepo.List(ctx, &types.TemporaryVehicleFilter{PermitID: p.ID, ActiveOnly: true})
	if err != nil {
		return err
	}
	if lo.ContainsBy(active, func(tv *permit.TemporaryVehicle) bool {
		return tv.EndTime.After(now) && tv.Overlaps(start, end)
	}) {
		return notEligible("temporary vehicle already active",
			"Remove the current temporary vehicle before adding another",
			map[string]any{"permit_id": p.ID})
	}
	return nil
}

// RemoveTemporaryVehicle ends the permit's active temporary vehicle now
func (s *changeService) RemoveTemporaryVehicle(ctx context.Context, permitID string) error {
	return s.withPermitLock(ctx, permitID, func(ctx context.Context, p *permit.Permit, fx *effects) error {
		active, err := s.TemporaryVehicleRepo.List(ctx, &types.TemporaryVehicleFilter{PermitID: p.ID, ActiveOnly: true})
		if err != nil {
			return err
		}
		if len(active) == 0 {
			return ierr.NewError("no active temporary vehicle").
				WithHint("The permit has no temporary vehicle to remove").
				WithReportableDetails(map[string]any{"permit_id": p.ID}).
				Mark(ierr.ErrNotFound)
		}

		now := s.now()
		for _, tv := range active {
			tv.IsActive = false
			if tv.EndTime.After(now) {
				tv.EndTime = now
			}
			tv.Touch(ctx)
			if err := s.TemporaryVehicleRepo.Update(ctx, tv); err != nil {
				return err
			}
		}
		fx.publish(permitEvent(types.PermitEventTemporaryVehicleEnd, p, "temporary vehicle removed"))
		return nil
	})
}
