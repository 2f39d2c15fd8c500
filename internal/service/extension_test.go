package service

import (
	"testing"
	"time"

	"github.com/flexprice/parkingpermits/internal/api/dto"
	"github.com/flexprice/parkingpermits/internal/domain/permit"
	ierr "github.com/flexprice/parkingpermits/internal/errors"
	"github.com/flexprice/parkingpermits/internal/types"
	"github.com/stretchr/testify/suite"
)

type ExtensionServiceSuite struct {
	permitSuite
	permit *permit.Permit
}

func TestExtensionService(t *testing.T) {
	suite.Run(t, new(ExtensionServiceSuite))
}

// SetupTest leaves a valid permit for April, paid on the first of the month
func (s *ExtensionServiceSuite) SetupTest() {
	s.permitSuite.SetupTest()

	s.at(2025, time.April, 1, 0)
	s.permit = s.createPermit("ABC-123", types.ContractTypeFixedPeriod, 1)
	s.activate(s.permit)
}

func (s *ExtensionServiceSuite) request(months int) (*dto.ExtensionResponse, error) {
	return s.extensions.RequestExtension(s.GetContext(), s.permit.ID, dto.CreateExtensionRequest{MonthCount: months})
}

func (s *ExtensionServiceSuite) TestRequestExtension_TooEarly() {
	_, err := s.request(1)
	s.True(ierr.IsInvalidOperation(err), "unexpected error: %v", err)
}

func (s *ExtensionServiceSuite) TestRequestExtension_Validation() {
	s.at(2025, time.April, 20, 12)

	_, err := s.request(0)
	s.True(ierr.IsValidation(err), "zero months: %v", err)

	_, err = s.request(13)
	s.True(ierr.IsValidation(err), "too many months: %v", err)
}

func (s *ExtensionServiceSuite) TestApproveExtension() {
	s.at(2025, time.April, 20, 12)
	req, err := s.request(2)
	s.Require().NoError(err)
	s.Equal(types.ExtensionRequestStatusOpen, req.Status)

	_, err = s.request(1)
	s.True(ierr.IsInvalidOperation(err), "second request: %v", err)

	resp, err := s.extensions.ApproveExtension(s.GetContext(), req.ID)
	s.Require().NoError(err)
	s.Equal(types.ExtensionRequestStatusApproved, resp.Status)
	s.Require().NotNil(resp.Order)
	s.Equal(types.OrderTypeExtension, resp.Order.Type)
	s.Equal(types.OrderStatusDraft, resp.Order.Status)
	s.assertMoney("60.00", resp.Order.TotalPrice)
	s.Equal(req.ID, resp.Order.ExtensionRequestID)

	// the new end holds while the order waits for payment
	p := s.loadPermit(s.permit.ID)
	s.True(p.EndTime.Equal(s.dayEnd(2025, time.July, 1)), "end time %s", p.EndTime)
	s.Equal(3, p.MonthCount)
	s.Require().NotNil(resp.PreviousEndTime)
	s.True(resp.PreviousEndTime.Equal(s.dayEnd(2025, time.May, 1)))

	s.pay(resp.Order.Order)
	s.Equal(types.OrderStatusConfirmed, s.loadOrder(resp.Order.ID).Status)
	s.Contains(s.events(s.permit.ID), types.PermitEventExtensionApproved)

	_, err = s.extensions.ApproveExtension(s.GetContext(), req.ID)
	s.True(ierr.IsInvalidOperation(err), "decided twice: %v", err)
}

func (s *ExtensionServiceSuite) TestApproveExtension_CancelledOrderReverts() {
	s.at(2025, time.April, 20, 12)
	req, err := s.request(2)
	s.Require().NoError(err)
	resp, err := s.extensions.ApproveExtension(s.GetContext(), req.ID)
	s.Require().NoError(err)

	err = s.reconciliation.HandleProviderEvent(s.GetContext(), dto.ProviderEvent{
		EventID:   s.GetUUID(),
		EventType: types.ProviderEventOrderCancelled,
		OrderID:   resp.Order.ExternalOrderID,
		Timestamp: s.GetNow(),
	})
	s.Require().NoError(err)

	p := s.loadPermit(s.permit.ID)
	s.True(p.EndTime.Equal(s.dayEnd(2025, time.May, 1)))
	s.Equal(1, p.MonthCount)
	s.Equal(types.OrderStatusCancelled, s.loadOrder(resp.Order.ID).Status)
	s.Contains(s.events(s.permit.ID), types.PermitEventExtensionReverted)

	requests, err := s.extensions.ListExtensions(s.GetContext(), s.permit.ID)
	s.Require().NoError(err)
	s.Require().Len(requests, 1)
	s.Equal(types.ExtensionRequestStatusCancelled, requests[0].Status)

	// the permit can be extended again
	_, err = s.request(1)
	s.NoError(err)
}

func (s *ExtensionServiceSuite) TestRejectExtension() {
	s.at(2025, time.April, 20, 12)
	req, err := s.request(1)
	s.Require().NoError(err)

	resp, err := s.extensions.RejectExtension(s.GetContext(), req.ID)
	s.Require().NoError(err)
	s.Equal(types.ExtensionRequestStatusRejected, resp.Status)
	s.Nil(resp.Order)

	_, err = s.extensions.RejectExtension(s.GetContext(), req.ID)
	s.True(ierr.IsInvalidOperation(err), "unexpected error: %v", err)

	p := s.loadPermit(s.permit.ID)
	s.True(p.EndTime.Equal(s.dayEnd(2025, time.May, 1)))
	s.Len(s.orders(s.permit.ID), 1)
}

func (s *ExtensionServiceSuite) TestRequestExtension_SecondaryCappedByPrimary() {
	s.at(2025, time.April, 25, 0)
	p := s.createPermit("DEF-456", types.ContractTypeOpenEnded, 0)

	// a secondary permit follows the fixed period primary
	s.Equal(types.ContractTypeFixedPeriod, p.ContractType)

	s.activate(p)
	_, err := s.extensions.RequestExtension(s.GetContext(), p.ID, dto.CreateExtensionRequest{MonthCount: 1})
	// a secondary permit cannot be extended past its primary
	s.True(ierr.IsInvalidOperation(err), "unexpected error: %v", err)
}

func (s *ExtensionServiceSuite) TestUnknownRequest() {
	_, err := s.extensions.ApproveExtension(s.GetContext(), "ext_missing")
	s.True(ierr.IsNotFound(err), "unexpected error: %v", err)
}
