package service

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/flexprice/parkingpermits/internal/api/dto"
	"github.com/flexprice/parkingpermits/internal/domain/order"
	ierr "github.com/flexprice/parkingpermits/internal/errors"
	"github.com/flexprice/parkingpermits/internal/testutil"
	"github.com/flexprice/parkingpermits/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type PermitServiceSuite struct {
	permitSuite
}

func TestPermitService(t *testing.T) {
	suite.Run(t, new(PermitServiceSuite))
}

func (s *PermitServiceSuite) TestCreatePermit() {
	now := s.GetNow()
	p := s.createPermit("ABC-123", types.ContractTypeFixedPeriod, 2)

	s.Equal(types.PermitStatusDraft, p.Status)
	s.True(p.PrimaryVehicle)
	s.Equal(2, p.MonthCount)
	s.True(p.StartTime.Equal(now))
	s.Require().NotNil(p.EndTime)
	s.True(p.EndTime.Equal(s.dayEnd(2025, time.May, 15)), "end time %s", p.EndTime)
}

func (s *PermitServiceSuite) TestCreatePermit_Validation() {
	tests := []struct {
		name    string
		req     dto.CreatePermitRequest
		checkFn func(error) bool
	}{
		{
			name: "fixed period without month count",
			req: dto.CreatePermitRequest{
				CustomerID: testCustomer, RegistrationNumber: "ABC-123", ZoneID: zoneA,
				ContractType: types.ContractTypeFixedPeriod,
			},
			checkFn: ierr.IsValidation,
		},
		{
			name: "too many months",
			req: dto.CreatePermitRequest{
				CustomerID: testCustomer, RegistrationNumber: "ABC-123", ZoneID: zoneA,
				ContractType: types.ContractTypeFixedPeriod, MonthCount: 13,
			},
			checkFn: ierr.IsValidation,
		},
		{
			name: "restricted vehicle",
			req: dto.CreatePermitRequest{
				CustomerID: testCustomer, RegistrationNumber: "BAD-1", ZoneID: zoneA,
				ContractType: types.ContractTypeOpenEnded,
			},
			checkFn: ierr.IsValidation,
		},
		{
			name: "unknown vehicle",
			req: dto.CreatePermitRequest{
				CustomerID: testCustomer, RegistrationNumber: "NOPE-1", ZoneID: zoneA,
				ContractType: types.ContractTypeOpenEnded,
			},
			checkFn: ierr.IsNotFound,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.permits.CreatePermit(s.GetContext(), tt.req)
			s.Require().Error(err)
			s.True(tt.checkFn(err), "unexpected error: %v", err)
		})
	}
	s.Zero(s.GetStores().PermitRepo.Count(s.GetContext(), nil))
}

func (s *PermitServiceSuite) TestCreatePermit_VehicleAlreadyActive() {
	s.checkout(s.createPermit("ABC-123", types.ContractTypeFixedPeriod, 1))

	_, err := s.permits.CreatePermit(s.GetContext(), dto.CreatePermitRequest{
		CustomerID:         testCustomer,
		RegistrationNumber: "abc-123",
		ZoneID:             zoneA,
		ContractType:       types.ContractTypeFixedPeriod,
		MonthCount:         1,
	})
	s.True(ierr.IsAlreadyExists(err), "unexpected error: %v", err)
}

func (s *PermitServiceSuite) TestCreatePermit_CustomerLimit() {
	s.activate(s.createPermit("ABC-123", types.ContractTypeFixedPeriod, 2))
	s.checkout(s.createPermit("DEF-456", types.ContractTypeFixedPeriod, 1))

	_, err := s.permits.CreatePermit(s.GetContext(), dto.CreatePermitRequest{
		CustomerID:         testCustomer,
		RegistrationNumber: "XYZ-999",
		ZoneID:             zoneA,
		ContractType:       types.ContractTypeFixedPeriod,
		MonthCount:         1,
	})
	s.True(ierr.IsInvalidOperation(err), "unexpected error: %v", err)
}

func (s *PermitServiceSuite) TestCreatePermit_SecondaryFollowsPrimary() {
	primary := s.createPermit("ABC-123", types.ContractTypeFixedPeriod, 2)
	s.activate(primary)

	// an open ended request next to a fixed period primary becomes fixed period
	secondary := s.createPermit("DEF-456", types.ContractTypeOpenEnded, 0)
	s.False(secondary.PrimaryVehicle)
	s.Equal(types.ContractTypeFixedPeriod, secondary.ContractType)
	s.Require().NotNil(secondary.EndTime)
	s.True(secondary.EndTime.Equal(s.dayEnd(2025, time.April, 15)))

	o := s.checkout(secondary)
	// one month at the secondary vehicle premium of 50%
	s.assertMoney("45.00", o.TotalPrice)
}

func (s *PermitServiceSuite) TestCheckout() {
	p := s.createPermit("ABC-123", types.ContractTypeFixedPeriod, 2)

	resp, err := s.permits.Checkout(s.GetContext(), p.ID)
	s.Require().NoError(err)

	s.Equal(types.PermitStatusPaymentInProgress, resp.Permit.Status)
	s.NotEmpty(resp.CheckoutURL)
	o := resp.Order.Order
	s.Equal(types.OrderStatusDraft, o.Status)
	s.Equal(types.OrderTypeCreated, o.Type)
	s.NotEmpty(o.ExternalOrderID)
	s.NotEmpty(o.IdempotencyKey)
	s.assertMoney("60.00", o.TotalPrice)
	s.Require().Len(o.Items, 1)
	s.Equal(2, o.Items[0].Quantity)
	s.Equal(civil.Date{Year: 2025, Month: time.March, Day: 15}, o.Items[0].StartDate)
	s.Equal(civil.Date{Year: 2025, Month: time.May, Day: 15}, o.Items[0].EndDate)

	provider := s.GetProvider()
	s.Require().Equal(1, provider.OrderCount())
	s.False(provider.Orders[0].Subscription)
	s.Equal([]types.PermitEventType{types.PermitEventCheckoutStarted}, s.events(p.ID))

	// a second checkout is not a valid transition
	_, err = s.permits.Checkout(s.GetContext(), p.ID)
	s.True(ierr.IsInvalidTransition(err), "unexpected error: %v", err)
}

func (s *PermitServiceSuite) TestCheckout_ProviderFailureKeepsPermit() {
	p := s.createPermit("ABC-123", types.ContractTypeFixedPeriod, 1)
	s.GetProvider().FailCreate(testutil.ErrProviderDown)

	_, err := s.permits.Checkout(s.GetContext(), p.ID)
	s.True(ierr.IsExternalService(err), "unexpected error: %v", err)

	stored := s.loadPermit(p.ID)
	s.Equal(types.PermitStatusDraft, stored.Status)
	s.Empty(s.orders(p.ID))
	s.Empty(s.events(p.ID))

	// the retry succeeds once the provider is back
	s.GetProvider().FailCreate(nil)
	s.checkout(stored)
	s.Equal(types.PermitStatusPaymentInProgress, s.loadPermit(p.ID).Status)
}

func (s *PermitServiceSuite) TestCheckout_PricingGap() {
	resp, err := s.permits.CreatePermit(s.GetContext(), dto.CreatePermitRequest{
		CustomerID:         testCustomer,
		RegistrationNumber: "ABC-123",
		ZoneID:             zoneShort,
		ContractType:       types.ContractTypeFixedPeriod,
		MonthCount:         1,
	})
	s.Require().NoError(err)

	_, err = s.permits.Checkout(s.GetContext(), resp.Permit.ID)
	s.True(ierr.IsPricingCoverage(err), "unexpected error: %v", err)
	s.Equal(0, s.GetProvider().OrderCount())
	s.Empty(s.orders(resp.Permit.ID))
}

func (s *PermitServiceSuite) TestGetPriceQuote() {
	p := s.createPermit("ABC-123", types.ContractTypeFixedPeriod, 1)

	quote, err := s.permits.GetPriceQuote(s.GetContext(), p.ID,
		civil.Date{Year: 2025, Month: time.April, Day: 1},
		civil.Date{Year: 2025, Month: time.April, Day: 16})
	s.Require().NoError(err)
	// 15 of the 30 days of April
	s.Equal("15.00", quote.Gross)
	s.Require().Len(quote.Lines, 1)
	s.Equal(15, quote.Lines[0].Days)

	_, err = s.permits.GetPriceQuote(s.GetContext(), p.ID,
		civil.Date{Year: 2025, Month: time.April, Day: 2},
		civil.Date{Year: 2025, Month: time.April, Day: 1})
	s.True(ierr.IsValidation(err))
}

func (s *PermitServiceSuite) TestPaymentActivatesPermit() {
	p := s.createPermit("ABC-123", types.ContractTypeFixedPeriod, 1)
	o := s.activate(p)

	s.Equal(types.PermitStatusValid, s.loadPermit(p.ID).Status)
	s.Equal(types.OrderStatusConfirmed, o.Status)
	s.NotNil(o.PaidTime)
	s.Equal([]types.PermitEventType{
		types.PermitEventCheckoutStarted,
		types.PermitEventActivated,
	}, s.events(p.ID))

	// a redelivery of the payment under a new delivery id changes nothing
	s.pay(o)
	s.Len(s.orders(p.ID), 1)
	s.True(o.PaidTime.Equal(*s.loadOrder(o.ID).PaidTime))
	s.Len(s.events(p.ID), 2)
}

func (s *PermitServiceSuite) TestEndPermit_DraftIsInvalidTransition() {
	p := s.createPermit("ABC-123", types.ContractTypeFixedPeriod, 1)

	_, err := s.permits.EndPermit(s.GetContext(), p.ID, dto.EndPermitRequest{EndType: types.EndTypeImmediately})
	s.True(ierr.IsInvalidTransition(err), "unexpected error: %v", err)
	s.Equal(types.PermitStatusDraft, s.loadPermit(p.ID).Status)
}

func (s *PermitServiceSuite) TestEndPermit_RefundsUnusedDays() {
	s.at(2025, time.April, 1, 0)
	p := s.createPermit("ABC-123", types.ContractTypeFixedPeriod, 1)
	o := s.activate(p)
	s.assertMoney("30.00", o.TotalPrice)

	// exactly ten days into the thirty day period
	now := s.at(2025, time.April, 11, 0)
	resp, err := s.permits.EndPermit(s.GetContext(), p.ID, dto.EndPermitRequest{
		EndType: types.EndTypeImmediately,
		IBAN:    "FI2112345600000785",
	})
	s.Require().NoError(err)

	s.Equal(types.PermitStatusClosed, resp.Permit.Status)
	s.Equal(types.EndTypeImmediately, resp.Permit.EndType)
	s.True(resp.Permit.EndTime.Equal(now))
	s.Require().Len(resp.Refunds, 1)
	r := resp.Refunds[0]
	s.assertMoney("20.00", r.Amount)
	s.assertMoney("4.06", r.VATAmount)
	s.Equal(types.RefundStatusOpen, r.Status)
	s.Equal("FI2112345600000785", r.IBAN)
	s.Equal([]string{o.ID}, r.OrderIDs)

	s.assertMoney("20.00", s.loadOrder(o.ID).Items[0].RefundedAmount)
	s.Contains(s.GetProvider().CancelledOrders, o.ExternalOrderID)
	s.Contains(s.events(p.ID), types.PermitEventRefundCreated)

	// a closed permit ends only once
	_, err = s.permits.EndPermit(s.GetContext(), p.ID, dto.EndPermitRequest{EndType: types.EndTypeImmediately})
	s.True(ierr.IsInvalidTransition(err))
}

func (s *PermitServiceSuite) TestEndPermit_AfterCurrentPeriod() {
	p := s.createPermit("ABC-123", types.ContractTypeFixedPeriod, 2)
	o := s.activate(p)

	s.at(2025, time.March, 20, 12)
	resp, err := s.permits.EndPermit(s.GetContext(), p.ID, dto.EndPermitRequest{EndType: types.EndTypeAfterCurrentPeriod})
	s.Require().NoError(err)

	// the permit stays valid until its first month period is over
	s.Equal(types.PermitStatusValid, resp.Permit.Status)
	s.True(resp.Permit.EndTime.Equal(s.dayEnd(2025, time.April, 15)))
	s.Require().Len(resp.Refunds, 1)
	// 30 of the 61 paid days, April 15 to May 14
	s.assertMoney("29.51", resp.Refunds[0].Amount)
	s.Empty(s.GetProvider().CancelledOrders)

	s.at(2025, time.April, 16, 0)
	result, err := s.sweeps.ExpirePermits(s.GetContext())
	s.Require().NoError(err)
	s.Equal(1, result.Processed)
	s.Equal(types.PermitStatusClosed, s.loadPermit(p.ID).Status)
	s.Equal(types.OrderStatusConfirmed, s.loadOrder(o.ID).Status)
}

func (s *PermitServiceSuite) TestEndPermit_AfterCurrentPeriodOnlyOnce() {
	p := s.createPermit("ABC-123", types.ContractTypeFixedPeriod, 2)
	o := s.activate(p)

	s.at(2025, time.March, 20, 12)
	_, err := s.permits.EndPermit(s.GetContext(), p.ID, dto.EndPermitRequest{EndType: types.EndTypeAfterCurrentPeriod})
	s.Require().NoError(err)

	item := s.loadOrder(o.ID).Items[0]
	s.assertMoney("29.51", item.RefundedAmount)
	s.Require().NotNil(item.RefundedFrom)
	s.Equal(civil.Date{Year: 2025, Month: time.April, Day: 15}, *item.RefundedFrom)

	_, err = s.permits.EndPermit(s.GetContext(), p.ID, dto.EndPermitRequest{EndType: types.EndTypeAfterCurrentPeriod})
	s.True(ierr.IsInvalidOperation(err), "unexpected error: %v", err)

	s.assertMoney("29.51", s.loadOrder(o.ID).Items[0].RefundedAmount)
	refunds, err := s.GetStores().RefundRepo.List(s.GetContext(), &types.RefundFilter{PermitID: p.ID})
	s.Require().NoError(err)
	s.Len(refunds, 1)
}

func (s *PermitServiceSuite) TestEndPermit_ImmediatelyAfterAfterCurrentPeriod() {
	p := s.createPermit("ABC-123", types.ContractTypeFixedPeriod, 2)
	o := s.activate(p)

	s.at(2025, time.March, 20, 12)
	_, err := s.permits.EndPermit(s.GetContext(), p.ID, dto.EndPermitRequest{EndType: types.EndTypeAfterCurrentPeriod})
	s.Require().NoError(err)

	resp, err := s.permits.EndPermit(s.GetContext(), p.ID, dto.EndPermitRequest{EndType: types.EndTypeImmediately})
	s.Require().NoError(err)

	// only March 21 to April 14 is left after the first refund
	s.Equal(types.PermitStatusClosed, resp.Permit.Status)
	s.Require().Len(resp.Refunds, 1)
	s.assertMoney("24.59", resp.Refunds[0].Amount)

	item := s.loadOrder(o.ID).Items[0]
	s.assertMoney("54.10", item.RefundedAmount)
	s.Equal(civil.Date{Year: 2025, Month: time.March, Day: 21}, *item.RefundedFrom)
}

func (s *PermitServiceSuite) TestChangeVehicle_AfterCurrentPeriodCreditsRemainingDays() {
	p := s.createPermit("ABC-123", types.ContractTypeFixedPeriod, 2)
	o := s.activate(p)

	s.at(2025, time.March, 20, 12)
	_, err := s.permits.EndPermit(s.GetContext(), p.ID, dto.EndPermitRequest{EndType: types.EndTypeAfterCurrentPeriod})
	s.Require().NoError(err)

	resp, err := s.changes.ChangeVehicle(s.GetContext(), p.ID, dto.ChangeVehicleRequest{
		RegistrationNumber:         "XYZ-999",
		ConsentLowEmissionAccepted: lo.ToPtr(true),
		IBAN:                       "FI2112345600000785",
	})
	s.Require().NoError(err)
	s.True(resp.Applied)
	s.Require().NotNil(resp.Order)

	// the credit covers March 21 to April 14, the rest was refunded already
	credits := lo.Filter(resp.Order.Items, func(item *order.OrderItem, _ int) bool { return item.IsCredit() })
	s.Require().Len(credits, 1)
	s.assertMoney("-24.59", credits[0].TotalPrice)
	s.Equal(civil.Date{Year: 2025, Month: time.April, Day: 15}, credits[0].EndDate)

	item := s.loadOrder(o.ID).Items[0]
	s.assertMoney("54.10", item.RefundedAmount)
	s.Equal(civil.Date{Year: 2025, Month: time.March, Day: 21}, *item.RefundedFrom)

	// ending now has nothing left to refund
	end, err := s.permits.EndPermit(s.GetContext(), p.ID, dto.EndPermitRequest{EndType: types.EndTypeImmediately})
	s.Require().NoError(err)
	for _, r := range end.Refunds {
		s.NotContains(r.OrderIDs, o.ID)
	}
	s.assertMoney("54.10", s.loadOrder(o.ID).Items[0].RefundedAmount)
}

func (s *PermitServiceSuite) TestEndPermit_PreviousDayEndBeforeStart() {
	p := s.createPermit("ABC-123", types.ContractTypeFixedPeriod, 1)
	s.activate(p)

	// ending at the end of yesterday refunds the whole permit
	resp, err := s.permits.EndPermit(s.GetContext(), p.ID, dto.EndPermitRequest{EndType: types.EndTypePreviousDayEnd})
	s.Require().NoError(err)
	s.Equal(types.PermitStatusClosed, resp.Permit.Status)
	s.True(resp.Permit.EndTime.Equal(p.StartTime))
	s.Require().Len(resp.Refunds, 1)
	s.assertMoney("30.00", resp.Refunds[0].Amount)
}

func (s *PermitServiceSuite) TestEndPermit_PrimaryWithSecondary() {
	primary := s.createPermit("ABC-123", types.ContractTypeFixedPeriod, 2)
	s.activate(primary)
	secondary := s.createPermit("DEF-456", types.ContractTypeFixedPeriod, 1)
	s.activate(secondary)

	_, err := s.permits.EndPermit(s.GetContext(), primary.ID, dto.EndPermitRequest{EndType: types.EndTypeImmediately})
	s.True(ierr.IsInvalidOperation(err), "unexpected error: %v", err)
	s.Equal(types.PermitStatusValid, s.loadPermit(primary.ID).Status)

	_, err = s.permits.EndPermit(s.GetContext(), primary.ID, dto.EndPermitRequest{
		EndType: types.EndTypeImmediately,
		Force:   true,
	})
	s.Require().NoError(err)
	s.Equal(types.PermitStatusClosed, s.loadPermit(primary.ID).Status)

	promoted := s.loadPermit(secondary.ID)
	s.True(promoted.PrimaryVehicle)
	s.Contains(s.events(secondary.ID), types.PermitEventBecamePrimary)
}

func (s *PermitServiceSuite) TestEndPermit_OpenEndedCancelsSubscription() {
	s.at(2025, time.April, 1, 0)
	p := s.createPermit("ABC-123", types.ContractTypeOpenEnded, 0)
	o := s.activate(p)
	s.Require().NotEmpty(o.ExternalSubscriptionID)
	s.Equal(types.SubscriptionStatusConfirmed, o.SubscriptionStatus)

	s.at(2025, time.April, 11, 0)
	resp, err := s.permits.EndPermit(s.GetContext(), p.ID, dto.EndPermitRequest{EndType: types.EndTypeImmediately})
	s.Require().NoError(err)
	s.Require().Len(resp.Refunds, 1)
	s.assertMoney("20.00", resp.Refunds[0].Amount)

	s.Equal(types.SubscriptionStatusCancelled, s.loadOrder(o.ID).SubscriptionStatus)
	s.Equal([]string{o.ExternalSubscriptionID}, s.GetProvider().CancelledSubs)
}

func (s *PermitServiceSuite) TestCancelPermit() {
	p := s.createPermit("ABC-123", types.ContractTypeFixedPeriod, 1)
	o := s.checkout(p)

	resp, err := s.permits.CancelPermit(s.GetContext(), p.ID)
	s.Require().NoError(err)
	s.Equal(types.PermitStatusCancelled, resp.Status)
	s.Equal(types.OrderStatusCancelled, s.loadOrder(o.ID).Status)
	s.Equal([]string{o.ExternalOrderID}, s.GetProvider().CancelledOrders)

	// a late payment for the cancelled order is refused
	err = s.reconciliation.HandleProviderEvent(s.GetContext(), dto.ProviderEvent{
		EventType: types.ProviderEventPaymentPaid,
		OrderID:   o.ExternalOrderID,
		Timestamp: s.GetNow(),
	})
	s.True(ierr.IsInvalidOperation(err), "unexpected error: %v", err)
	s.Equal(types.PermitStatusCancelled, s.loadPermit(p.ID).Status)
}

func (s *PermitServiceSuite) TestCancelPermit_ProviderCancelRetried() {
	p := s.createPermit("ABC-123", types.ContractTypeFixedPeriod, 1)
	o := s.checkout(p)
	s.GetProvider().FailCancel(1, testutil.ErrProviderDown)

	_, err := s.permits.CancelPermit(s.GetContext(), p.ID)
	s.Require().NoError(err)
	s.Equal(2, s.GetProvider().CancelCalls())
	s.Equal([]string{o.ExternalOrderID}, s.GetProvider().CancelledOrders)
}

func (s *PermitServiceSuite) TestListCustomerPermits() {
	s.createPermit("ABC-123", types.ContractTypeFixedPeriod, 1)
	s.createPermit("DEF-456", types.ContractTypeFixedPeriod, 1)

	permits, err := s.permits.ListCustomerPermits(s.GetContext(), testCustomer)
	s.Require().NoError(err)
	s.Len(permits, 2)

	permits, err = s.permits.ListCustomerPermits(s.GetContext(), "someone_else")
	s.Require().NoError(err)
	s.Empty(permits)
}
