package permit

import (
	"testing"
	"time"

	ierr "github.com/flexprice/parkingpermits/internal/errors"
	"github.com/flexprice/parkingpermits/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from types.PermitStatus
		to   types.PermitStatus
		want bool
	}{
		{types.PermitStatusDraft, types.PermitStatusPaymentInProgress, true},
		{types.PermitStatusDraft, types.PermitStatusPreliminary, true},
		{types.PermitStatusDraft, types.PermitStatusValid, false},
		{types.PermitStatusDraft, types.PermitStatusClosed, false},
		{types.PermitStatusPaymentInProgress, types.PermitStatusValid, true},
		{types.PermitStatusPaymentInProgress, types.PermitStatusCancelled, true},
		{types.PermitStatusPaymentInProgress, types.PermitStatusClosed, false},
		{types.PermitStatusValid, types.PermitStatusValid, true},
		{types.PermitStatusValid, types.PermitStatusClosed, true},
		{types.PermitStatusValid, types.PermitStatusCancelled, false},
		{types.PermitStatusCancelled, types.PermitStatusValid, false},
		{types.PermitStatusClosed, types.PermitStatusValid, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestTransition(t *testing.T) {
	changed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := changed.Add(time.Hour)

	t.Run("draft cannot be closed", func(t *testing.T) {
		p := &Permit{ID: "prm_1", Status: types.PermitStatusDraft, StatusChangedAt: changed}
		err := p.Transition(types.PermitStatusClosed, now)
		require.Error(t, err)
		assert.True(t, ierr.IsInvalidTransition(err))
		assert.Equal(t, types.PermitStatusDraft, p.Status)
		assert.True(t, p.StatusChangedAt.Equal(changed))
	})

	t.Run("payment confirmed", func(t *testing.T) {
		p := &Permit{ID: "prm_1", Status: types.PermitStatusPaymentInProgress, StatusChangedAt: changed}
		require.NoError(t, p.Transition(types.PermitStatusValid, now))
		assert.Equal(t, types.PermitStatusValid, p.Status)
		assert.True(t, p.StatusChangedAt.Equal(now))
	})

	t.Run("modification keeps status time", func(t *testing.T) {
		p := &Permit{ID: "prm_1", Status: types.PermitStatusValid, StatusChangedAt: changed}
		require.NoError(t, p.Transition(types.PermitStatusValid, now))
		assert.True(t, p.StatusChangedAt.Equal(changed))
	})
}
