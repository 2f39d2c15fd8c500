package service

import (
	"context"
	"time"

	"github.com/flexprice/parkingpermits/internal/domain/permit"
	ierr "github.com/flexprice/parkingpermits/internal/errors"
	"github.com/flexprice/parkingpermits/internal/metrics"
	"github.com/flexprice/parkingpermits/internal/types"
)

// effects collects what an operation does once its transaction has committed:
// audit events, transition metrics and calls to the payment provider.
type effects struct {
	events      []*types.PermitEvent
	transitions [][2]types.PermitStatus
	after       []func(ctx context.Context)
}

func (e *effects) publish(event *types.PermitEvent) {
	e.events = append(e.events, event)
}

// transition moves the permit and records the change for the metrics
func (e *effects) transition(p *permit.Permit, to types.PermitStatus, at time.Time) error {
	from := p.Status
	if err := p.Transition(to, at); err != nil {
		return err
	}
	if from != to {
		e.transitions = append(e.transitions, [2]types.PermitStatus{from, to})
	}
	return nil
}

func (e *effects) afterCommit(fn func(ctx context.Context)) {
	e.after = append(e.after, fn)
}

func (s ServiceParams) apply(ctx context.Context, e *effects) {
	for _, t := range e.transitions {
		metrics.PermitTransitions.WithLabelValues(string(t[0]), string(t[1])).Inc()
	}
	for _, event := range e.events {
		if err := s.EventPublisher.Publish(ctx, event); err != nil {
			s.Logger.Warnw("permit event not published",
				"event_type", event.Type,
				"permit_id", event.PermitID,
				"error", err)
		}
	}
	for _, fn := range e.after {
		fn(ctx)
	}
}

// withPermitLock runs fn with exclusive access to one permit. The keyed lock
// serializes callers inside this process; the row lock of GetForUpdate
// serializes processes sharing the database. Nothing fn writes is kept when
// it returns an error. The effects it collected are applied after commit and
// after the lock is released.
func (s ServiceParams) withPermitLock(ctx context.Context, permitID string, fn func(ctx context.Context, p *permit.Permit, fx *effects) error) error {
	unlock, err := s.Locks.Lock(ctx, permitID)
	if err != nil {
		return ierr.WithError(err).
			WithHint("The permit is being changed by another request, please try again").
			Mark(ierr.ErrVersionConflict)
	}

	fx := &effects{}
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		p, err := s.PermitRepo.GetForUpdate(ctx, permitID)
		if err != nil {
			return err
		}
		return fn(ctx, p, fx)
	})
	// effects may lock other permits, so they never run under this lock
	unlock()
	if err != nil {
		return err
	}

	s.apply(ctx, fx)
	return nil
}

func (s ServiceParams) now() time.Time {
	return s.Clock.Now()
}

func permitEvent(eventType types.PermitEventType, p *permit.Permit, message string) *types.PermitEvent {
	return &types.PermitEvent{
		Type:       eventType,
		PermitID:   p.ID,
		CustomerID: p.CustomerID,
		Status:     p.Status,
		Message:    message,
	}
}
