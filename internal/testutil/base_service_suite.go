package testutil

import (
	"context"
	"time"

	"github.com/flexprice/parkingpermits/internal/cache"
	"github.com/flexprice/parkingpermits/internal/config"
	"github.com/flexprice/parkingpermits/internal/logger"
	"github.com/flexprice/parkingpermits/internal/publisher"
	"github.com/flexprice/parkingpermits/internal/sentry"
	"github.com/flexprice/parkingpermits/internal/types"
	"github.com/flexprice/parkingpermits/internal/validator"
	"github.com/stretchr/testify/suite"
)

// Stores holds the in-memory repositories of a test
type Stores struct {
	ProductRepo          *InMemoryProductStore
	PermitRepo           *InMemoryPermitStore
	TemporaryVehicleRepo *InMemoryTemporaryVehicleStore
	OrderRepo            *InMemoryOrderStore
	RefundRepo           *InMemoryRefundStore
	ExtensionRepo        *InMemoryExtensionStore
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx       context.Context
	stores    Stores
	db        *MockPostgresClient
	provider  *MockProviderClient
	registry  *MockRegistryClient
	pubSub    *InMemoryPubSub
	publisher publisher.PermitEventPublisher
	cache     cache.Cache
	sentry    *sentry.Service
	logger    *logger.Logger
	config    *config.Configuration
	location  *time.Location
	clock     *FixedClock
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	validator.NewValidator()
	s.logger = logger.NewNoopLogger()

	loc, err := time.LoadLocation("Europe/Helsinki")
	if err != nil {
		s.T().Fatalf("failed to load timezone: %v", err)
	}
	s.location = loc
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = SetupContext()
	s.setupConfig()
	s.setupStores()
	s.clock = NewFixedClock(time.Date(2025, time.March, 15, 10, 0, 0, 0, s.location))
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.ClearStores()
	s.cache.Flush(s.ctx)
}

func (s *BaseServiceTestSuite) setupConfig() {
	cfg := config.GetDefaultConfig()
	cfg.Permit.Timezone = s.location.String()
	cfg.Provider.MaxRetries = 2
	cfg.Provider.RetryWaitMin = time.Millisecond
	cfg.Provider.RetryWaitMax = 2 * time.Millisecond
	cfg.Reconciliation.Workers = 4
	s.config = cfg
}

func (s *BaseServiceTestSuite) setupStores() {
	s.stores = Stores{
		ProductRepo:          NewInMemoryProductStore(),
		PermitRepo:           NewInMemoryPermitStore(),
		TemporaryVehicleRepo: NewInMemoryTemporaryVehicleStore(),
		OrderRepo:            NewInMemoryOrderStore(),
		RefundRepo:           NewInMemoryRefundStore(),
		ExtensionRepo:        NewInMemoryExtensionStore(),
	}

	s.db = NewMockPostgresClient(s.logger)
	s.provider = NewMockProviderClient()
	s.registry = NewMockRegistryClient()
	s.pubSub = NewInMemoryPubSub()
	s.publisher = publisher.NewPermitEventPublisher(s.pubSub, s.config, s.logger)
	s.cache = cache.NewInMemoryCache(s.config)
	s.sentry = sentry.NewSentryService(s.config, s.logger)
}

func (s *BaseServiceTestSuite) ClearStores() {
	s.stores.ProductRepo.Clear()
	s.stores.PermitRepo.Clear()
	s.stores.TemporaryVehicleRepo.Clear()
	s.stores.OrderRepo.Clear()
	s.stores.RefundRepo.Clear()
	s.stores.ExtensionRepo.Clear()
	s.pubSub.ClearMessages()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns all test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetDB returns the test database client
func (s *BaseServiceTestSuite) GetDB() *MockPostgresClient {
	return s.db
}

func (s *BaseServiceTestSuite) GetProvider() *MockProviderClient {
	return s.provider
}

func (s *BaseServiceTestSuite) GetRegistry() *MockRegistryClient {
	return s.registry
}

// GetPubSub returns the pubsub the permit audit trail is published to
func (s *BaseServiceTestSuite) GetPubSub() *InMemoryPubSub {
	return s.pubSub
}

func (s *BaseServiceTestSuite) GetPublisher() publisher.PermitEventPublisher {
	return s.publisher
}

func (s *BaseServiceTestSuite) GetCache() cache.Cache {
	return s.cache
}

func (s *BaseServiceTestSuite) GetSentry() *sentry.Service {
	return s.sentry
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetLocation returns the civil timezone of the tests
func (s *BaseServiceTestSuite) GetLocation() *time.Location {
	return s.location
}

// GetClock returns the clock services read the time from
func (s *BaseServiceTestSuite) GetClock() *FixedClock {
	return s.clock
}

// GetNow returns the current test time
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.clock.Now()
}

// GetUUID returns a new UUID string
func (s *BaseServiceTestSuite) GetUUID() string {
	return types.GenerateUUID()
}
