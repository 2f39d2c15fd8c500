package main

import (
	"context"
	"time"

	"github.com/flexprice/parkingpermits/internal/api"
	"github.com/flexprice/parkingpermits/internal/api/cron"
	v1 "github.com/flexprice/parkingpermits/internal/api/v1"
	"github.com/flexprice/parkingpermits/internal/cache"
	"github.com/flexprice/parkingpermits/internal/config"
	"github.com/flexprice/parkingpermits/internal/integration/provider"
	"github.com/flexprice/parkingpermits/internal/integration/registry"
	"github.com/flexprice/parkingpermits/internal/logger"
	"github.com/flexprice/parkingpermits/internal/postgres"
	"github.com/flexprice/parkingpermits/internal/publisher"
	"github.com/flexprice/parkingpermits/internal/pubsub"
	"github.com/flexprice/parkingpermits/internal/pubsub/memory"
	pubsubRouter "github.com/flexprice/parkingpermits/internal/pubsub/router"
	"github.com/flexprice/parkingpermits/internal/repository"
	"github.com/flexprice/parkingpermits/internal/scheduler"
	"github.com/flexprice/parkingpermits/internal/sentry"
	"github.com/flexprice/parkingpermits/internal/service"
	"github.com/flexprice/parkingpermits/internal/types"
	"github.com/flexprice/parkingpermits/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// @title Parking Permits API
// @version 1.0
// @description Resident parking permit service
// @BasePath /v1
// @schemes http https

func init() {
	// Set UTC timezone for the entire application; civil dates use the configured permit timezone
	time.Local = time.UTC
}

func main() {
	// .env is optional, real deployments set the environment directly
	_ = godotenv.Load()

	// Initialize Fx application
	var opts []fx.Option

	// Core dependencies
	opts = append(opts,
		fx.Provide(
			// Validator
			validator.NewValidator,

			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Monitoring
			provideSpanStarter,

			// Cache
			cache.NewInMemoryCache,

			// Permit event stream
			memory.NewPubSub,
			provideSubscriber,
			publisher.NewPermitEventPublisher,
			publisher.NewAuditConsumer,
			pubsubRouter.NewRouter,

			// External collaborators
			provider.NewClient,
			registry.NewClient,

			// Repositories
			repository.NewProductRepository,
			repository.NewPermitRepository,
			repository.NewTemporaryVehicleRepository,
			repository.NewOrderRepository,
			repository.NewRefundRepository,
			repository.NewExtensionRequestRepository,
		),
	)

	// Sentry and Postgres bring their own lifecycle hooks
	opts = append(opts,
		sentry.Module(),
		postgres.Module(),
	)

	// Service layer
	opts = append(opts,
		fx.Provide(
			service.NewServiceParams,

			service.NewPermitService,
			service.NewChangeService,
			service.NewExtensionService,
			service.NewReconciliationService,
			service.NewSweepService,
		),
	)

	// API and scheduler
	opts = append(opts,
		fx.Provide(
			provideHandlers,
			provideRouter,
			scheduler.NewScheduler,
		),
		fx.Invoke(
			startServer,
		),
	)

	app := fx.New(opts...)
	app.Run()
}

func provideSpanStarter(s *sentry.Service) postgres.SpanStarter {
	return s
}

func provideSubscriber(ps pubsub.PubSub) pubsub.Subscriber {
	return ps
}

func provideHandlers(
	db *postgres.DB,
	logger *logger.Logger,
	permitService service.PermitService,
	changeService service.ChangeService,
	extensionService service.ExtensionService,
	reconciliationService service.ReconciliationService,
	sweepService service.SweepService,
) api.Handlers {
	return api.Handlers{
		Health:     v1.NewHealthHandler(db, logger),
		Permit:     v1.NewPermitHandler(permitService, logger),
		Change:     v1.NewChangeHandler(changeService, logger),
		Extension:  v1.NewExtensionHandler(extensionService, logger),
		Webhook:    v1.NewWebhookHandler(reconciliationService, logger),
		CronPermit: cron.NewPermitHandler(sweepService, logger),
	}
}

func provideRouter(handlers api.Handlers, cfg *config.Configuration, logger *logger.Logger) *gin.Engine {
	return api.NewRouter(handlers, cfg, logger)
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	router *pubsubRouter.Router,
	auditConsumer *publisher.AuditConsumer,
	sched *scheduler.Scheduler,
	log *logger.Logger,
) {
	mode := cfg.Deployment.Mode
	if mode == "" {
		mode = types.ModeLocal
	}

	switch mode {
	case types.ModeLocal:
		startAPIServer(lc, r, cfg, log)
		startMessageRouter(lc, router, auditConsumer, log)
		scheduler.RegisterHooks(lc, sched, cfg)
	case types.ModeAPI:
		startAPIServer(lc, r, cfg, log)
		startMessageRouter(lc, router, auditConsumer, log)
	case types.ModeWorker:
		startMessageRouter(lc, router, auditConsumer, log)
		scheduler.RegisterHooks(lc, sched, cfg)
	default:
		log.Fatalf("Unknown deployment mode: %s", mode)
	}
}

func startAPIServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	log.Info("Registering API server start hook")
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("Starting API server...", "address", cfg.Server.Address)
			go func() {
				if err := r.Run(cfg.Server.Address); err != nil {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			return nil
		},
	})
}

func startMessageRouter(
	lc fx.Lifecycle,
	router *pubsubRouter.Router,
	auditConsumer *publisher.AuditConsumer,
	logger *logger.Logger,
) {
	// Register handlers before starting the router
	auditConsumer.RegisterHandler(router)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting message router")
			go func() {
				if err := router.Run(context.Background()); err != nil {
					logger.Errorw("message router failed", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping message router")
			return router.Close()
		},
	})
}
