package permit

import (
	"time"

	ierr "github.com/flexprice/parkingpermits/internal/errors"
	"github.com/flexprice/parkingpermits/internal/types"
	"github.com/samber/lo"
)

// transitions lists, per status, the statuses a permit may move to.
// VALID to VALID is an in-place modification (vehicle, address, temporary vehicle).
var transitions = map[types.PermitStatus][]types.PermitStatus{
	types.PermitStatusDraft: {
		types.PermitStatusPreliminary,
		types.PermitStatusPaymentInProgress,
	},
	types.PermitStatusPreliminary: {
		types.PermitStatusPaymentInProgress,
		types.PermitStatusCancelled,
	},
	types.PermitStatusPaymentInProgress: {
		types.PermitStatusValid,
		types.PermitStatusCancelled,
	},
	types.PermitStatusValid: {
		types.PermitStatusValid,
		types.PermitStatusClosed,
	},
}

// CanTransition reports whether a permit in from may move to to
func CanTransition(from, to types.PermitStatus) bool {
	return lo.Contains(transitions[from], to)
}

// ValidateTransition returns ErrInvalidTransition when the permit may not move to status
func (p *Permit) ValidateTransition(to types.PermitStatus) error {
	if CanTransition(p.Status, to) {
		return nil
	}
	return ierr.NewError("invalid permit status transition").
		WithHintf("Permit in status %s cannot move to %s", p.Status, to).
		WithReportableDetails(map[string]any{
			"permit_id": p.ID,
			"from":      p.Status,
			"to":        to,
		}).
		Mark(ierr.ErrInvalidTransition)
}

// Transition validates and applies a status change
func (p *Permit) Transition(to types.PermitStatus, at time.Time) error {
	if err := p.ValidateTransition(to); err != nil {
		return err
	}
	if p.Status != to {
		p.SetStatus(to, at)
	}
	return nil
}
