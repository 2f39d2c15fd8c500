package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flexprice/parkingpermits/internal/config"
	ierr "github.com/flexprice/parkingpermits/internal/errors"
	"github.com/flexprice/parkingpermits/internal/logger"
	"github.com/flexprice/parkingpermits/internal/sentry"
	"github.com/flexprice/parkingpermits/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSweeps struct {
	cancelled atomic.Int32
	expired   atomic.Int32
	err       error
}

func (f *fakeSweeps) CancelUnpaid(ctx context.Context) (*service.SweepResult, error) {
	f.cancelled.Add(1)
	return &service.SweepResult{Sweep: service.SweepPaymentTimeout, Processed: 1}, f.err
}

func (f *fakeSweeps) ExpirePermits(ctx context.Context) (*service.SweepResult, error) {
	f.expired.Add(1)
	return &service.SweepResult{Sweep: service.SweepExpiry}, f.err
}

func newTestScheduler(t *testing.T, sweeps service.SweepService, mutate func(*config.Configuration)) *Scheduler {
	cfg := config.GetDefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	log := logger.NewNoopLogger()

	s, err := NewScheduler(sweeps, cfg, sentry.NewSentryService(cfg, log), log)
	require.NoError(t, err)
	return s
}

func TestNewScheduler_UnknownTimezone(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Permit.Timezone = "Mars/Olympus"
	log := logger.NewNoopLogger()

	_, err := NewScheduler(&fakeSweeps{}, cfg, sentry.NewSentryService(cfg, log), log)
	assert.True(t, ierr.IsValidation(err))
}

func TestStart(t *testing.T) {
	s := newTestScheduler(t, &fakeSweeps{}, nil)

	require.NoError(t, s.Start())
	assert.Len(t, s.cron.Entries(), 2)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}

func TestStart_InvalidSchedule(t *testing.T) {
	s := newTestScheduler(t, &fakeSweeps{}, func(cfg *config.Configuration) {
		cfg.Scheduler.ExpirySchedule = "every now and then"
	})

	err := s.Start()
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
}

func TestRunSweeps(t *testing.T) {
	sweeps := &fakeSweeps{}
	s := newTestScheduler(t, sweeps, nil)

	s.cancelUnpaid()
	s.expirePermits()
	s.expirePermits()

	assert.EqualValues(t, 1, sweeps.cancelled.Load())
	assert.EqualValues(t, 2, sweeps.expired.Load())
}

func TestRunSweeps_FailureDoesNotPanic(t *testing.T) {
	sweeps := &fakeSweeps{err: errors.New("database unavailable")}
	s := newTestScheduler(t, sweeps, nil)

	assert.NotPanics(t, s.cancelUnpaid)
	assert.EqualValues(t, 1, sweeps.cancelled.Load())
}
