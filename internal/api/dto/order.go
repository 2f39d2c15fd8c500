package dto

import (
	"github.com/flexprice/parkingpermits/internal/domain/extension"
	"github.com/flexprice/parkingpermits/internal/domain/order"
	"github.com/flexprice/parkingpermits/internal/domain/refund"
	"github.com/flexprice/parkingpermits/internal/validator"
)

type OrderResponse struct {
	*order.Order
}

func NewOrderResponse(o *order.Order) *OrderResponse {
	if o == nil {
		return nil
	}
	return &OrderResponse{Order: o}
}

type RefundResponse struct {
	*refund.Refund
}

func NewRefundResponse(r *refund.Refund) *RefundResponse {
	if r == nil {
		return nil
	}
	return &RefundResponse{Refund: r}
}

type CreateExtensionRequest struct {
	MonthCount int `json:"month_count" validate:"required,min=1"`
}

func (r *CreateExtensionRequest) Validate() error {
	return validator.ValidateRequest(r)
}

type ExtensionResponse struct {
	*extension.Request
	Order *OrderResponse `json:"order,omitempty"`
}
