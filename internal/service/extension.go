package service

import (
	"context"
	"time"

	"github.com/flexprice/parkingpermits/internal/api/dto"
	"github.com/flexprice/parkingpermits/internal/calendar"
	"github.com/flexprice/parkingpermits/internal/domain/extension"
	"github.com/flexprice/parkingpermits/internal/domain/order"
	"github.com/flexprice/parkingpermits/internal/domain/permit"
	ierr "github.com/flexprice/parkingpermits/internal/errors"
	"github.com/flexprice/parkingpermits/internal/types"
	"github.com/samber/lo"
)

// ExtensionService prolongs fixed period permits
type ExtensionService interface {
	RequestExtension(ctx context.Context, permitID string, req dto.CreateExtensionRequest) (*dto.ExtensionResponse, error)
	ApproveExtension(ctx context.Context, requestID string) (*dto.ExtensionResponse, error)
	RejectExtension(ctx context.Context, requestID string) (*dto.ExtensionResponse, error)
	ListExtensions(ctx context.Context, permitID string) ([]*dto.ExtensionResponse, error)
}

type extensionService struct {
	ServiceParams
}

func NewExtensionService(params ServiceParams) ExtensionService {
	return &extensionService{
		ServiceParams: params,
	}
}

func (s *extensionService) RequestExtension(ctx context.Context, permitID string, req dto.CreateExtensionRequest) (*dto.ExtensionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var r *extension.Request
	err := s.withPermitLock(ctx, permitID, func(ctx context.Context, p *permit.Permit, fx *effects) error {
		if err := s.checkExtendable(ctx, p, req.MonthCount, ""); err != nil {
			return err
		}

		r = &extension.Request{
			ID:         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_EXTENSION_REQUEST),
			PermitID:   p.ID,
			MonthCount: req.MonthCount,
			Status:     types.ExtensionRequestStatusOpen,
			BaseModel:  types.GetDefaultBaseModel(ctx),
		}
		if err := s.ExtensionRepo.Create(ctx, r); err != nil {
			return err
		}
		fx.publish(permitEvent(types.PermitEventExtensionRequested, p, "extension requested"))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dto.ExtensionResponse{Request: r}, nil
}

// checkExtendable reports why p cannot be extended by months. ignoreID is a
// request that is being decided and does not count as pending.
func (s ServiceParams) checkExtendable(ctx context.Context, p *permit.Permit, months int, ignoreID string) error {
	details := map[string]any{"permit_id": p.ID, "month_count": months}
	if err := p.ValidateTransition(types.PermitStatusValid); err != nil {
		return err
	}
	if !p.IsFixedPeriod() || p.EndTime == nil {
		return notEligible("permit is not fixed period",
			"Only fixed period permits can be extended", details)
	}
	if months > s.Config.Permit.MaxExtensionMonths {
		return ierr.NewError("extension too long").
			WithHintf("A permit can be extended by at most %d months", s.Config.Permit.MaxExtensionMonths).
			WithReportableDetails(details).
			Mark(ierr.ErrValidation)
	}

	now := s.now()
	window := time.Duration(s.Config.Permit.ExtensionWindowDays) * 24 * time.Hour
	if p.EndTime.Sub(now) > window {
		return notEligible("permit not ending soon",
			"A permit can be extended only close to its end", details)
	}
	if p.EndType != "" {
		return notEligible("permit is ending",
			"An ended permit cannot be extended", details)
	}

	pending, err := s.ExtensionRepo.List(ctx, &types.ExtensionRequestFilter{
		PermitID: p.ID,
		Statuses: []types.ExtensionRequestStatus{types.ExtensionRequestStatusOpen},
	})
	if err != nil {
		return err
	}
	if lo.ContainsBy(pending, func(r *extension.Request) bool { return r.ID != ignoreID }) {
		return notEligible("extension already requested",
			"The permit already has an open extension request", details)
	}
	unpaid, err := s.OrderRepo.List(ctx, &types.OrderFilter{
		PermitID: p.ID,
		Statuses: []types.OrderStatus{types.OrderStatusDraft},
		Types:    []types.OrderType{types.OrderTypeExtension},
	})
	if err != nil {
		return err
	}
	if len(unpaid) > 0 {
		return notEligible("extension waits for payment",
			"A previous extension is waiting for its payment", details)
	}

	primary, err := s.primaryOf(ctx, p)
	if err != nil {
		return err
	}
	if primary != nil && primary.EndTime != nil && extendedEnd(p, months, s.Location).After(*primary.EndTime) {
		return notEligible("extension outlasts primary permit",
			"A second permit cannot be extended past the primary permit", details)
	}
	return nil
}

// extendedEnd is the end of p after extending it by months
func extendedEnd(p *permit.Permit, months int, loc *time.Location) time.Time {
	start := calendar.ExclusiveEnd(*p.EndTime, loc)
	return calendar.EndOfPeriod(calendar.StartOf(start, loc), months, loc)
}

// ApproveExtension charges the extension and prolongs the permit. The new end
// holds while the order is unpaid and is reverted if the order is cancelled.
func (s *extensionService) ApproveExtension(ctx context.Context, requestID string) (*dto.ExtensionResponse, error) {
	r, err := s.ExtensionRepo.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}

	var resp *dto.ExtensionResponse
	err = s.withPermitLock(ctx, r.PermitID, func(ctx context.Context, p *permit.Permit, fx *effects) error {
		r, err := s.ExtensionRepo.Get(ctx, requestID)
		if err != nil {
			return err
		}
		if !r.IsOpen() {
			return notEligible("extension request already decided",
				"The extension request is not open", map[string]any{"request_id": r.ID, "status": r.Status})
		}
		if err := s.checkExtendable(ctx, p, r.MonthCount, r.ID); err != nil {
			return err
		}

		start := calendar.ExclusiveEnd(*p.EndTime, s.Location)
		result, err := s.price(ctx, permitPriceConfig(p), start, calendar.AddMonths(start, r.MonthCount))
		if err != nil {
			return err
		}
		o := s.newOrder(ctx, p, types.OrderTypeExtension, result, nil)
		o.ExtensionRequestID = r.ID
		if err := s.createProviderOrder(ctx, p, o, false); err != nil {
			return err
		}
		if err := s.OrderRepo.Create(ctx, o); err != nil {
			return err
		}

		r.Status = types.ExtensionRequestStatusApproved
		r.OrderID = o.ID
		r.PreviousEndTime = lo.ToPtr(*p.EndTime)
		r.Touch(ctx)
		if err := s.ExtensionRepo.Update(ctx, r); err != nil {
			return err
		}

		p.EndTime = lo.ToPtr(extendedEnd(p, r.MonthCount, s.Location))
		p.MonthCount += r.MonthCount
		p.Touch(ctx)
		if err := s.PermitRepo.Update(ctx, p); err != nil {
			return err
		}

		event := permitEvent(types.PermitEventExtensionApproved, p, "extension approved")
		event.OrderID = o.ID
		fx.publish(event)
		resp = &dto.ExtensionResponse{Request: r, Order: dto.NewOrderResponse(o)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *extensionService) RejectExtension(ctx context.Context, requestID string) (*dto.ExtensionResponse, error) {
	r, err := s.ExtensionRepo.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}

	var resp *dto.ExtensionResponse
	err = s.withPermitLock(ctx, r.PermitID, func(ctx context.Context, p *permit.Permit, fx *effects) error {
		r, err := s.ExtensionRepo.Get(ctx, requestID)
		if err != nil {
			return err
		}
		if !r.IsOpen() {
			return notEligible("extension request already decided",
				"The extension request is not open", map[string]any{"request_id": r.ID, "status": r.Status})
		}
		r.Status = types.ExtensionRequestStatusRejected
		r.Touch(ctx)
		if err := s.ExtensionRepo.Update(ctx, r); err != nil {
			return err
		}
		fx.publish(permitEvent(types.PermitEventExtensionRejected, p, "extension rejected"))
		resp = &dto.ExtensionResponse{Request: r}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *extensionService) ListExtensions(ctx context.Context, permitID string) ([]*dto.ExtensionResponse, error) {
	requests, err := s.ExtensionRepo.List(ctx, &types.ExtensionRequestFilter{PermitID: permitID})
	if err != nil {
		return nil, err
	}
	return lo.Map(requests, func(r *extension.Request, _ int) *dto.ExtensionResponse {
		return &dto.ExtensionResponse{Request: r}
	}), nil
}

// revertExtension restores the permit end an unpaid extension order had moved.
// The caller persists the permit.
func (s ServiceParams) revertExtension(ctx context.Context, p *permit.Permit, o *order.Order) error {
	if o.ExtensionRequestID == "" {
		return nil
	}
	r, err := s.ExtensionRepo.Get(ctx, o.ExtensionRequestID)
	if err != nil {
		return err
	}
	if r.Status != types.ExtensionRequestStatusApproved {
		return nil
	}
	if r.PreviousEndTime != nil {
		p.EndTime = lo.ToPtr(*r.PreviousEndTime)
		p.MonthCount -= r.MonthCount
	}
	r.Status = types.ExtensionRequestStatusCancelled
	r.Touch(ctx)
	return s.ExtensionRepo.Update(ctx, r)
}
