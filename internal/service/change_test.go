package service

import (
	"testing"
	"time"

	"github.com/flexprice/parkingpermits/internal/api/dto"
	"github.com/flexprice/parkingpermits/internal/domain/order"
	"github.com/flexprice/parkingpermits/internal/domain/permit"
	ierr "github.com/flexprice/parkingpermits/internal/errors"
	"github.com/flexprice/parkingpermits/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type ChangeServiceSuite struct {
	permitSuite
	permit *permit.Permit
	order  *order.Order
}

func TestChangeService(t *testing.T) {
	suite.Run(t, new(ChangeServiceSuite))
}

// SetupTest leaves a valid one month permit paid for April with twenty days left
func (s *ChangeServiceSuite) SetupTest() {
	s.permitSuite.SetupTest()

	s.at(2025, time.April, 1, 0)
	s.permit = s.createPermit("ABC-123", types.ContractTypeFixedPeriod, 1)
	s.order = s.activate(s.permit)
	s.at(2025, time.April, 11, 0)
}

func (s *ChangeServiceSuite) TestChangeVehicle_SamePrice() {
	resp, err := s.changes.ChangeVehicle(s.GetContext(), s.permit.ID, dto.ChangeVehicleRequest{
		RegistrationNumber: "DEF-456",
	})
	s.Require().NoError(err)

	s.True(resp.Applied)
	s.Nil(resp.Order)
	s.Nil(resp.Refund)

	p := s.loadPermit(s.permit.ID)
	s.Equal("DEF-456", p.Vehicle.RegistrationNumber)
	s.False(p.HasPendingChange())
	s.Equal(types.PermitStatusValid, p.Status)
	s.Len(s.orders(s.permit.ID), 1)
	s.Contains(s.events(s.permit.ID), types.PermitEventVehicleChanged)
}

func (s *ChangeServiceSuite) TestChangeVehicle_LowEmissionRefund() {
	resp, err := s.changes.ChangeVehicle(s.GetContext(), s.permit.ID, dto.ChangeVehicleRequest{
		RegistrationNumber:         "XYZ-999",
		ConsentLowEmissionAccepted: lo.ToPtr(true),
		IBAN:                       "FI2112345600000785",
	})
	s.Require().NoError(err)

	// twenty days at half price against a credit of twenty days at full price
	s.True(resp.Applied)
	s.Require().NotNil(resp.Order)
	s.Equal(types.OrderTypeVehicleChanged, resp.Order.Type)
	s.Equal(types.OrderStatusConfirmed, resp.Order.Status)
	s.assertMoney("-10.00", resp.Order.TotalPrice)
	s.Empty(resp.Order.ExternalOrderID)

	s.Require().NotNil(resp.Refund)
	s.assertMoney("10.00", resp.Refund.Amount)
	s.assertMoney("2.03", resp.Refund.VATAmount)
	s.Equal("FI2112345600000785", resp.Refund.IBAN)

	original := s.loadOrder(s.order.ID)
	s.assertMoney("20.00", original.Items[0].RefundedAmount)

	p := s.loadPermit(s.permit.ID)
	s.Equal("XYZ-999", p.Vehicle.RegistrationNumber)
	s.True(p.ConsentLowEmissionAccepted)
	s.Equal(1, s.GetProvider().OrderCount())
}

func (s *ChangeServiceSuite) TestChangeAddress_ChargedDifference() {
	resp, err := s.changes.ChangeAddress(s.GetContext(), s.permit.ID, dto.ChangeAddressRequest{
		ZoneID:    zoneB,
		AddressID: "addr_2",
	})
	s.Require().NoError(err)

	s.False(resp.Applied)
	s.NotEmpty(resp.CheckoutURL)
	s.Require().NotNil(resp.Order)
	o := resp.Order.Order
	s.Equal(types.OrderStatusDraft, o.Status)
	s.Equal(types.OrderTypeAddressChanged, o.Type)
	s.assertMoney("20.00", o.TotalPrice)
	s.Len(o.Items, 2)
	s.Len(o.ChargeItems(), 1)

	p := s.loadPermit(s.permit.ID)
	s.Equal(zoneA, p.ZoneID)
	s.Equal(zoneB, p.NextZoneID)
	s.True(p.HasPendingChange())
	s.Contains(s.events(s.permit.ID), types.PermitEventChangeOrderCreated)

	// nothing is credited until the difference is paid
	s.assertMoney("0", s.loadOrder(s.order.ID).Items[0].RefundedAmount)

	s.pay(o)

	p = s.loadPermit(s.permit.ID)
	s.Equal(zoneB, p.ZoneID)
	s.Equal("addr_2", p.AddressID)
	s.False(p.HasPendingChange())
	s.assertMoney("20.00", s.loadOrder(s.order.ID).Items[0].RefundedAmount)
	s.Equal(types.OrderStatusConfirmed, s.loadOrder(o.ID).Status)
	s.Contains(s.events(s.permit.ID), types.PermitEventAddressChanged)
}

func (s *ChangeServiceSuite) TestChangeAddress_CancelledPaymentDropsChange() {
	resp, err := s.changes.ChangeAddress(s.GetContext(), s.permit.ID, dto.ChangeAddressRequest{
		ZoneID:    zoneB,
		AddressID: "addr_2",
	})
	s.Require().NoError(err)

	err = s.reconciliation.HandleProviderEvent(s.GetContext(), dto.ProviderEvent{
		EventID:   s.GetUUID(),
		EventType: types.ProviderEventPaymentCancelled,
		OrderID:   resp.Order.ExternalOrderID,
		Timestamp: s.GetNow(),
	})
	s.Require().NoError(err)

	p := s.loadPermit(s.permit.ID)
	s.Equal(zoneA, p.ZoneID)
	s.False(p.HasPendingChange())
	s.Equal(types.PermitStatusValid, p.Status)
	s.Equal(types.OrderStatusCancelled, s.loadOrder(resp.Order.ID).Status)
}

func (s *ChangeServiceSuite) TestChangeVehicle_CancelledPaymentKeepsConsent() {
	_, err := s.changes.ChangeVehicle(s.GetContext(), s.permit.ID, dto.ChangeVehicleRequest{
		RegistrationNumber:         "XYZ-999",
		ConsentLowEmissionAccepted: lo.ToPtr(true),
		IBAN:                       "FI2112345600000785",
	})
	s.Require().NoError(err)
	s.True(s.loadPermit(s.permit.ID).ConsentLowEmissionAccepted)

	// back to a full price vehicle without consent costs the difference
	resp, err := s.changes.ChangeVehicle(s.GetContext(), s.permit.ID, dto.ChangeVehicleRequest{
		RegistrationNumber:         "DEF-456",
		ConsentLowEmissionAccepted: lo.ToPtr(false),
	})
	s.Require().NoError(err)
	s.False(resp.Applied)
	s.Require().NotNil(resp.Order)
	s.True(resp.Order.TotalPrice.IsPositive())

	p := s.loadPermit(s.permit.ID)
	s.True(p.ConsentLowEmissionAccepted)
	s.Require().NotNil(p.NextConsentLowEmissionAccepted)
	s.False(*p.NextConsentLowEmissionAccepted)

	err = s.reconciliation.HandleProviderEvent(s.GetContext(), dto.ProviderEvent{
		EventID:   s.GetUUID(),
		EventType: types.ProviderEventPaymentCancelled,
		OrderID:   resp.Order.ExternalOrderID,
		Timestamp: s.GetNow(),
	})
	s.Require().NoError(err)

	p = s.loadPermit(s.permit.ID)
	s.Equal("XYZ-999", p.Vehicle.RegistrationNumber)
	s.True(p.ConsentLowEmissionAccepted)
	s.Nil(p.NextConsentLowEmissionAccepted)
	s.False(p.HasPendingChange())
}

func (s *ChangeServiceSuite) TestChangeVehicle_PaidChangeAppliesConsent() {
	_, err := s.changes.ChangeVehicle(s.GetContext(), s.permit.ID, dto.ChangeVehicleRequest{
		RegistrationNumber:         "XYZ-999",
		ConsentLowEmissionAccepted: lo.ToPtr(true),
		IBAN:                       "FI2112345600000785",
	})
	s.Require().NoError(err)

	resp, err := s.changes.ChangeVehicle(s.GetContext(), s.permit.ID, dto.ChangeVehicleRequest{
		RegistrationNumber:         "DEF-456",
		ConsentLowEmissionAccepted: lo.ToPtr(false),
	})
	s.Require().NoError(err)
	s.Require().NotNil(resp.Order)

	s.pay(resp.Order.Order)

	p := s.loadPermit(s.permit.ID)
	s.Equal("DEF-456", p.Vehicle.RegistrationNumber)
	s.False(p.ConsentLowEmissionAccepted)
	s.Nil(p.NextConsentLowEmissionAccepted)
}

func (s *ChangeServiceSuite) TestChange_PendingChangeBlocksAnother() {
	_, err := s.changes.ChangeAddress(s.GetContext(), s.permit.ID, dto.ChangeAddressRequest{
		ZoneID:    zoneB,
		AddressID: "addr_2",
	})
	s.Require().NoError(err)

	_, err = s.changes.ChangeVehicle(s.GetContext(), s.permit.ID, dto.ChangeVehicleRequest{
		RegistrationNumber: "DEF-456",
	})
	s.True(ierr.IsInvalidOperation(err), "unexpected error: %v", err)
	s.Equal("ABC-123", s.loadPermit(s.permit.ID).Vehicle.RegistrationNumber)
}

func (s *ChangeServiceSuite) TestChangeVehicle_Rejected() {
	tests := []struct {
		name         string
		registration string
		checkFn      func(error) bool
	}{
		{name: "same vehicle", registration: "abc-123", checkFn: ierr.IsValidation},
		{name: "restricted vehicle", registration: "BAD-1", checkFn: ierr.IsValidation},
		{name: "unknown vehicle", registration: "NOPE-1", checkFn: ierr.IsNotFound},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.changes.ChangeVehicle(s.GetContext(), s.permit.ID, dto.ChangeVehicleRequest{
				RegistrationNumber: tt.registration,
			})
			s.Require().Error(err)
			s.True(tt.checkFn(err), "unexpected error: %v", err)
		})
	}
}

func (s *ChangeServiceSuite) TestChangeVehicle_NotValidPermit() {
	draft := s.createPermit("DEF-456", types.ContractTypeFixedPeriod, 1)

	_, err := s.changes.ChangeVehicle(s.GetContext(), draft.ID, dto.ChangeVehicleRequest{
		RegistrationNumber: "XYZ-999",
	})
	s.True(ierr.IsInvalidTransition(err), "unexpected error: %v", err)
}

func (s *ChangeServiceSuite) temporary(registration string, from, to time.Duration) (*dto.TemporaryVehicleResponse, error) {
	now := s.GetNow()
	return s.changes.AddTemporaryVehicle(s.GetContext(), s.permit.ID, dto.AddTemporaryVehicleRequest{
		RegistrationNumber: registration,
		StartTime:          now.Add(from),
		EndTime:            now.Add(to),
	})
}

func (s *ChangeServiceSuite) TestTemporaryVehicle() {
	resp, err := s.temporary("TMP-1", time.Hour, 5*time.Hour)
	s.Require().NoError(err)
	s.True(resp.IsActive)
	s.Equal("TMP-1", resp.Vehicle.RegistrationNumber)
	s.Contains(s.events(s.permit.ID), types.PermitEventTemporaryVehicleAdd)

	// a temporary vehicle is free of charge
	s.Len(s.orders(s.permit.ID), 1)

	_, err = s.temporary("TMP-2", 2*time.Hour, 3*time.Hour)
	s.True(ierr.IsInvalidOperation(err), "overlap: %v", err)

	s.Require().NoError(s.changes.RemoveTemporaryVehicle(s.GetContext(), s.permit.ID))
	windows, err := s.GetStores().TemporaryVehicleRepo.List(s.GetContext(), &types.TemporaryVehicleFilter{
		PermitID:   s.permit.ID,
		ActiveOnly: true,
	})
	s.Require().NoError(err)
	s.Empty(windows)

	err = s.changes.RemoveTemporaryVehicle(s.GetContext(), s.permit.ID)
	s.True(ierr.IsNotFound(err), "unexpected error: %v", err)
}

func (s *ChangeServiceSuite) TestTemporaryVehicle_Limit() {
	_, err := s.temporary("TMP-1", time.Hour, 3*time.Hour)
	s.Require().NoError(err)
	_, err = s.temporary("TMP-2", 5*time.Hour, 7*time.Hour)
	s.Require().NoError(err)

	_, err = s.temporary("TMP-3", 9*time.Hour, 11*time.Hour)
	s.True(ierr.IsInvalidOperation(err), "unexpected error: %v", err)
}

func (s *ChangeServiceSuite) TestTemporaryVehicle_Rejected() {
	_, err := s.temporary("TMP-1", time.Hour, time.Hour+30*time.Minute)
	s.True(ierr.IsValidation(err), "short window: %v", err)

	_, err = s.temporary("ABC-123", time.Hour, 5*time.Hour)
	s.True(ierr.IsValidation(err), "permit vehicle: %v", err)

	_, err = s.temporary("TMP-1", 3*time.Hour, time.Hour)
	s.True(ierr.IsValidation(err), "reversed window: %v", err)
}

func (s *ChangeServiceSuite) TestTemporaryVehicle_ClosedWithPermit() {
	_, err := s.temporary("TMP-1", time.Hour, 48*time.Hour)
	s.Require().NoError(err)

	_, err = s.permits.EndPermit(s.GetContext(), s.permit.ID, dto.EndPermitRequest{EndType: types.EndTypeImmediately})
	s.Require().NoError(err)

	windows, err := s.GetStores().TemporaryVehicleRepo.List(s.GetContext(), &types.TemporaryVehicleFilter{PermitID: s.permit.ID})
	s.Require().NoError(err)
	s.Require().Len(windows, 1)
	s.False(windows[0].IsActive)
	s.True(windows[0].EndTime.Equal(s.GetNow()))
}
