package service

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/flexprice/parkingpermits/internal/api/dto"
	"github.com/flexprice/parkingpermits/internal/domain/order"
	"github.com/flexprice/parkingpermits/internal/domain/permit"
	"github.com/flexprice/parkingpermits/internal/domain/product"
	"github.com/flexprice/parkingpermits/internal/domain/vehicle"
	"github.com/flexprice/parkingpermits/internal/testutil"
	"github.com/flexprice/parkingpermits/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const (
	testCustomer = "cust_1"
	zoneA        = "zone_a"
	zoneB        = "zone_b"
	// zoneShort has products only until the end of March 2025
	zoneShort = "zone_short"
)

// permitSuite wires every permit service on in-memory repositories. Suites
// embed it and get a priced catalog and a registry with known vehicles.
type permitSuite struct {
	testutil.BaseServiceTestSuite
	params         ServiceParams
	permits        PermitService
	changes        ChangeService
	extensions     ExtensionService
	reconciliation ReconciliationService
	sweeps         SweepService
}

func (s *permitSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()

	stores := s.GetStores()
	params, err := NewServiceParams(
		s.GetLogger(),
		s.GetConfig(),
		s.GetDB(),
		stores.ProductRepo,
		stores.PermitRepo,
		stores.TemporaryVehicleRepo,
		stores.OrderRepo,
		stores.RefundRepo,
		stores.ExtensionRepo,
		s.GetProvider(),
		s.GetRegistry(),
		s.GetPublisher(),
		s.GetCache(),
		s.GetSentry(),
	)
	s.Require().NoError(err)
	params.Clock = s.GetClock()
	s.params = params

	s.permits = NewPermitService(params)
	s.changes = NewChangeService(params)
	s.extensions = NewExtensionService(params)
	s.reconciliation = NewReconciliationService(params)
	s.sweeps = NewSweepService(params)

	s.setupCatalog()
	s.setupVehicles()
}

func (s *permitSuite) setupCatalog() {
	year := func(zoneID, price string) *product.Product {
		return &product.Product{
			ID:                            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PRODUCT),
			ZoneID:                        zoneID,
			Name:                          zoneID + " 2025",
			StartDate:                     civil.Date{Year: 2025, Month: time.January, Day: 1},
			EndDate:                       civil.Date{Year: 2025, Month: time.December, Day: 31},
			UnitPrice:                     decimal.RequireFromString(price),
			VATPercentage:                 decimal.RequireFromString("25.5"),
			LowEmissionDiscountPercentage: decimal.NewFromInt(50),
			SecondaryVehicleIncreaseRate:  decimal.NewFromInt(50),
			BaseModel:                     types.GetDefaultBaseModel(s.GetContext()),
		}
	}

	short := year(zoneShort, "30.00")
	short.EndDate = civil.Date{Year: 2025, Month: time.March, Day: 31}

	for _, p := range []*product.Product{year(zoneA, "30.00"), year(zoneB, "60.00"), short} {
		s.Require().NoError(s.GetStores().ProductRepo.Create(s.GetContext(), p))
	}
}

func (s *permitSuite) setupVehicles() {
	registry := s.GetRegistry()
	registry.AddVehicle(vehicle.Vehicle{
		RegistrationNumber: "ABC-123",
		Manufacturer:       "Skoda",
		EuroClass:          lo.ToPtr(6),
		Emission:           lo.ToPtr(150),
		EmissionType:       types.EmissionTypeNEDC,
	}, "")
	registry.AddVehicle(vehicle.Vehicle{RegistrationNumber: "DEF-456", Manufacturer: "Volvo"}, "")
	registry.AddVehicle(vehicle.Vehicle{RegistrationNumber: "XYZ-999", Manufacturer: "Tesla", IsElectric: true}, "")
	registry.AddVehicle(vehicle.Vehicle{RegistrationNumber: "TMP-1"}, "")
	registry.AddVehicle(vehicle.Vehicle{RegistrationNumber: "TMP-2"}, "")
	registry.AddVehicle(vehicle.Vehicle{RegistrationNumber: "TMP-3"}, "")
	registry.AddVehicle(vehicle.Vehicle{RegistrationNumber: "BAD-1", Restrictions: []string{"decommissioned"}}, "")
}

// at moves the clock to midnight of the day in the test timezone, plus the given hours
func (s *permitSuite) at(year int, month time.Month, day int, hours int) time.Time {
	t := time.Date(year, month, day, hours, 0, 0, 0, s.GetLocation())
	s.GetClock().Set(t)
	return t
}

// dayEnd is the last instant before the given day starts
func (s *permitSuite) dayEnd(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, s.GetLocation()).Add(-time.Microsecond)
}

func (s *permitSuite) createPermit(registration string, contract types.ContractType, months int) *permit.Permit {
	resp, err := s.permits.CreatePermit(s.GetContext(), dto.CreatePermitRequest{
		CustomerID:         testCustomer,
		RegistrationNumber: registration,
		ZoneID:             zoneA,
		AddressID:          "addr_1",
		ContractType:       contract,
		MonthCount:         months,
	})
	s.Require().NoError(err)
	return resp.Permit
}

func (s *permitSuite) checkout(p *permit.Permit) *order.Order {
	resp, err := s.permits.Checkout(s.GetContext(), p.ID)
	s.Require().NoError(err)
	return resp.Order.Order
}

// activate checks the permit out and delivers the provider's payment
func (s *permitSuite) activate(p *permit.Permit) *order.Order {
	o := s.checkout(p)
	s.pay(o)
	return s.loadOrder(o.ID)
}

func (s *permitSuite) pay(o *order.Order) {
	s.Require().NoError(s.reconciliation.HandleProviderEvent(s.GetContext(), dto.ProviderEvent{
		EventID:   s.GetUUID(),
		EventType: types.ProviderEventPaymentPaid,
		OrderID:   o.ExternalOrderID,
		Timestamp: s.GetNow(),
	}))
}

func (s *permitSuite) loadPermit(id string) *permit.Permit {
	p, err := s.GetStores().PermitRepo.Get(s.GetContext(), id)
	s.Require().NoError(err)
	return p
}

func (s *permitSuite) loadOrder(id string) *order.Order {
	o, err := s.GetStores().OrderRepo.Get(s.GetContext(), id)
	s.Require().NoError(err)
	return o
}

func (s *permitSuite) orders(permitID string) []*order.Order {
	orders, err := s.GetStores().OrderRepo.List(s.GetContext(), &types.OrderFilter{PermitID: permitID})
	s.Require().NoError(err)
	return orders
}

func (s *permitSuite) events(permitID string) []types.PermitEventType {
	return s.GetPubSub().EventTypes(s.GetConfig().Events.Topic, permitID)
}

func money(amount string) decimal.Decimal {
	return decimal.RequireFromString(amount)
}

// assertMoney compares amounts by value so that 20 and 20.00 are equal
func (s *permitSuite) assertMoney(expected string, actual decimal.Decimal) {
	s.Truef(money(expected).Equal(actual), "expected %s, got %s", expected, actual.String())
}
