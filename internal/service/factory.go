package service

import (
	"time"

	"github.com/flexprice/parkingpermits/internal/cache"
	"github.com/flexprice/parkingpermits/internal/config"
	"github.com/flexprice/parkingpermits/internal/domain/extension"
	"github.com/flexprice/parkingpermits/internal/domain/order"
	"github.com/flexprice/parkingpermits/internal/domain/permit"
	"github.com/flexprice/parkingpermits/internal/domain/product"
	"github.com/flexprice/parkingpermits/internal/domain/refund"
	ierr "github.com/flexprice/parkingpermits/internal/errors"
	"github.com/flexprice/parkingpermits/internal/idempotency"
	"github.com/flexprice/parkingpermits/internal/integration/provider"
	"github.com/flexprice/parkingpermits/internal/integration/registry"
	"github.com/flexprice/parkingpermits/internal/lock"
	"github.com/flexprice/parkingpermits/internal/logger"
	"github.com/flexprice/parkingpermits/internal/postgres"
	"github.com/flexprice/parkingpermits/internal/publisher"
	"github.com/flexprice/parkingpermits/internal/sentry"
	"github.com/flexprice/parkingpermits/internal/types"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient
	Clock  types.Clock
	// Location is the civil timezone every date computation is made in
	Location *time.Location

	// Repositories
	ProductRepo          product.Repository
	PermitRepo           permit.Repository
	TemporaryVehicleRepo permit.TemporaryVehicleRepository
	OrderRepo            order.Repository
	RefundRepo           refund.Repository
	ExtensionRepo        extension.Repository

	// External collaborators
	ProviderClient provider.Client
	RegistryClient registry.Client

	EventPublisher publisher.PermitEventPublisher
	Cache          cache.Cache
	Locks          *lock.Keyed
	Sentry         *sentry.Service
	Idempotency    *idempotency.Generator
}

// Common service params
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	productRepo product.Repository,
	permitRepo permit.Repository,
	temporaryVehicleRepo permit.TemporaryVehicleRepository,
	orderRepo order.Repository,
	refundRepo refund.Repository,
	extensionRepo extension.Repository,
	providerClient provider.Client,
	registryClient registry.Client,
	eventPublisher publisher.PermitEventPublisher,
	cache cache.Cache,
	sentry *sentry.Service,
) (ServiceParams, error) {
	loc, err := config.Permit.Location()
	if err != nil {
		return ServiceParams{}, ierr.WithError(err).
			WithHintf("Unknown permit timezone %q", config.Permit.Timezone).
			Mark(ierr.ErrValidation)
	}

	return ServiceParams{
		Logger:               logger,
		Config:               config,
		DB:                   db,
		Clock:                types.SystemClock{},
		Location:             loc,
		ProductRepo:          productRepo,
		PermitRepo:           permitRepo,
		TemporaryVehicleRepo: temporaryVehicleRepo,
		OrderRepo:            orderRepo,
		RefundRepo:           refundRepo,
		ExtensionRepo:        extensionRepo,
		ProviderClient:       providerClient,
		RegistryClient:       registryClient,
		EventPublisher:       eventPublisher,
		Cache:                cache,
		Locks:                lock.NewKeyed(),
		Sentry:               sentry,
		Idempotency:          idempotency.NewGenerator(),
	}, nil
}
