// Package scheduler runs the periodic permit sweeps in process.
package scheduler

import (
	"context"
	"time"

	"github.com/flexprice/parkingpermits/internal/config"
	ierr "github.com/flexprice/parkingpermits/internal/errors"
	"github.com/flexprice/parkingpermits/internal/logger"
	"github.com/flexprice/parkingpermits/internal/sentry"
	"github.com/flexprice/parkingpermits/internal/service"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
)

// sweepTimeout bounds a single sweep run
const sweepTimeout = 5 * time.Minute

// Scheduler manages the cron jobs
type Scheduler struct {
	cron   *cron.Cron
	sweeps service.SweepService
	cfg    *config.Configuration
	sentry *sentry.Service
	logger *logger.Logger
}

// NewScheduler creates a scheduler evaluating its schedules in the permit timezone
func NewScheduler(
	sweeps service.SweepService,
	cfg *config.Configuration,
	sentry *sentry.Service,
	logger *logger.Logger,
) (*Scheduler, error) {
	loc, err := cfg.Permit.Location()
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Unknown permit timezone %q", cfg.Permit.Timezone).
			Mark(ierr.ErrValidation)
	}

	cronLogger := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	return &Scheduler{
		cron:   c,
		sweeps: sweeps,
		cfg:    cfg,
		sentry: sentry,
		logger: logger,
	}, nil
}

// Start registers the sweeps and starts the cron scheduler
func (s *Scheduler) Start() error {
	jobs := []struct {
		name     string
		schedule string
		fn       func()
	}{
		{name: service.SweepPaymentTimeout, schedule: s.cfg.Scheduler.PaymentTimeoutSchedule, fn: s.cancelUnpaid},
		{name: service.SweepExpiry, schedule: s.cfg.Scheduler.ExpirySchedule, fn: s.expirePermits},
	}

	for _, job := range jobs {
		if _, err := s.cron.AddFunc(job.schedule, job.fn); err != nil {
			return ierr.WithError(err).
				WithHintf("Invalid schedule %q for the %s sweep", job.schedule, job.name).
				Mark(ierr.ErrValidation)
		}
		s.logger.Infow("scheduled permit sweep", "sweep", job.name, "schedule", job.schedule)
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running sweeps until ctx is done
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) cancelUnpaid() {
	s.run(service.SweepPaymentTimeout, s.sweeps.CancelUnpaid)
}

func (s *Scheduler) expirePermits() {
	s.run(service.SweepExpiry, s.sweeps.ExpirePermits)
}

func (s *Scheduler) run(name string, sweep func(context.Context) (*service.SweepResult, error)) {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	tx, ctx := s.sentry.StartTransaction(ctx, "sweep."+name)
	if tx != nil {
		defer tx.Finish()
	}

	start := time.Now()
	result, err := sweep(ctx)
	if err != nil {
		s.logger.Errorw("permit sweep failed", "sweep", name, "error", err)
		s.sentry.CaptureExceptionWithTags(err, map[string]string{"sweep": name})
		return
	}

	s.logger.Infow("permit sweep completed",
		"sweep", name,
		"processed", result.Processed,
		"failed", result.Failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// RegisterHooks starts the scheduler with the application when it is enabled
func RegisterHooks(lc fx.Lifecycle, s *Scheduler, cfg *config.Configuration) {
	if !cfg.Scheduler.Enabled {
		s.logger.Info("permit sweep scheduler is disabled")
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return s.Start()
		},
		OnStop: func(ctx context.Context) error {
			return s.Stop(ctx)
		},
	})
}

// cronLogger routes cron's own logging to zap
type cronLogger struct {
	logger *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
