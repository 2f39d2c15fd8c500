package service

import (
	"context"

	"github.com/flexprice/parkingpermits/internal/domain/permit"
	"github.com/flexprice/parkingpermits/internal/metrics"
	"github.com/flexprice/parkingpermits/internal/types"
	"github.com/sourcegraph/conc/pool"
)

const (
	SweepPaymentTimeout = "payment_timeout"
	SweepExpiry         = "expiry"
)

// SweepResult counts the permits a sweep looked at
type SweepResult struct {
	Sweep     string `json:"sweep"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
}

// SweepService runs the periodic permit maintenance jobs
type SweepService interface {
	// CancelUnpaid cancels permits that waited for payment longer than the payment timeout
	CancelUnpaid(ctx context.Context) (*SweepResult, error)
	// ExpirePermits closes valid permits whose end time has passed
	ExpirePermits(ctx context.Context) (*SweepResult, error)
}

type sweepService struct {
	ServiceParams
}

func NewSweepService(params ServiceParams) SweepService {
	return &sweepService{
		ServiceParams: params,
	}
}

func (s *sweepService) CancelUnpaid(ctx context.Context) (*SweepResult, error) {
	before := s.now().Add(-s.Config.Permit.PaymentTimeout)
	candidates, err := s.PermitRepo.List(ctx, &types.PermitFilter{
		Statuses:            []types.PermitStatus{types.PermitStatusPaymentInProgress},
		StatusChangedBefore: &before,
	})
	if err != nil {
		return nil, err
	}

	return s.sweep(ctx, SweepPaymentTimeout, candidates, func(ctx context.Context, p *permit.Permit, fx *effects) (bool, error) {
		// the payment may have arrived since the permit was listed
		if p.Status != types.PermitStatusPaymentInProgress || !p.StatusChangedAt.Before(before) {
			return false, nil
		}
		return true, s.cancelUnpaid(ctx, p, fx)
	})
}

func (s *sweepService) ExpirePermits(ctx context.Context) (*SweepResult, error) {
	now := s.now()
	candidates, err := s.PermitRepo.List(ctx, &types.PermitFilter{
		Statuses:      []types.PermitStatus{types.PermitStatusValid},
		EndTimeBefore: &now,
	})
	if err != nil {
		return nil, err
	}

	return s.sweep(ctx, SweepExpiry, candidates, func(ctx context.Context, p *permit.Permit, fx *effects) (bool, error) {
		if p.Status != types.PermitStatusValid || p.EndTime == nil || !p.EndTime.Before(now) {
			return false, nil
		}
		if err := fx.transition(p, types.PermitStatusClosed, now); err != nil {
			return false, err
		}
		if err := s.dropOpenOrders(ctx, p, fx); err != nil {
			return false, err
		}
		if err := s.closeAttachments(ctx, p, now); err != nil {
			return false, err
		}
		p.Touch(ctx)
		if err := s.PermitRepo.Update(ctx, p); err != nil {
			return false, err
		}
		if p.PrimaryVehicle {
			if err := s.promoteAfterExpiry(ctx, p, fx); err != nil {
				return false, err
			}
		}
		fx.publish(permitEvent(types.PermitEventExpired, p, "permit expired"))
		return true, nil
	})
}

func (s *sweepService) promoteAfterExpiry(ctx context.Context, p *permit.Permit, fx *effects) error {
	valid, err := s.PermitRepo.List(ctx, &types.PermitFilter{
		CustomerID: p.CustomerID,
		Statuses:   []types.PermitStatus{types.PermitStatusValid},
	})
	if err != nil {
		return err
	}
	for _, other := range valid {
		if other.ID == p.ID {
			continue
		}
		next := other.ID
		fx.afterCommit(func(ctx context.Context) {
			s.promoteToPrimary(ctx, next)
		})
		return nil
	}
	return nil
}

// sweep runs fn for every candidate under its permit lock, a bounded number
// of permits at a time. A failing permit is counted and left for the next run.
func (s *sweepService) sweep(ctx context.Context, name string, candidates []*permit.Permit, fn func(ctx context.Context, p *permit.Permit, fx *effects) (bool, error)) (*SweepResult, error) {
	results := make([]string, len(candidates))
	workers := pool.New().WithMaxGoroutines(max(s.Config.Reconciliation.Workers, 1))
	for i, candidate := range candidates {
		workers.Go(func() {
			var touched bool
			err := s.withPermitLock(ctx, candidate.ID, func(ctx context.Context, p *permit.Permit, fx *effects) error {
				var err error
				touched, err = fn(ctx, p, fx)
				return err
			})
			switch {
			case err != nil:
				s.Logger.Errorw("sweep failed for permit", "sweep", name, "permit_id", candidate.ID, "error", err)
				results[i] = metrics.ResultError
			case touched:
				results[i] = metrics.ResultOK
			}
		})
	}
	workers.Wait()

	result := &SweepResult{Sweep: name}
	for _, r := range results {
		switch r {
		case metrics.ResultOK:
			result.Processed++
		case metrics.ResultError:
			result.Failed++
		default:
			continue
		}
		metrics.SweepPermits.WithLabelValues(name, r).Inc()
	}

	s.Logger.Infow("sweep finished",
		"sweep", name,
		"candidates", len(candidates),
		"processed", result.Processed,
		"failed", result.Failed)
	return result, nil
}
