package v1

import (
	"net/http"

	"github.com/flexprice/parkingpermits/internal/api/dto"
	ierr "github.com/flexprice/parkingpermits/internal/errors"
	"github.com/flexprice/parkingpermits/internal/logger"
	"github.com/flexprice/parkingpermits/internal/service"
	"github.com/flexprice/parkingpermits/internal/types"
	"github.com/gin-gonic/gin"
)

type PermitHandler struct {
	service service.PermitService
	log     *logger.Logger
}

func NewPermitHandler(service service.PermitService, log *logger.Logger) *PermitHandler {
	return &PermitHandler{
		service: service,
		log:     log,
	}
}

// @Summary Create a permit
// @Description Create a draft permit after looking the vehicle up in the registry
// @Tags Permits
// @Accept json
// @Produce json
// @Param permit body dto.CreatePermitRequest true "Permit"
// @Success 201 {object} dto.PermitResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /permits [post]
func (h *PermitHandler) CreatePermit(c *gin.Context) {
	var req dto.CreatePermitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.CreatePermit(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// @Summary Get a permit
// @Tags Permits
// @Produce json
// @Param id path string true "Permit ID"
// @Success 200 {object} dto.PermitResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /permits/{id} [get]
func (h *PermitHandler) GetPermit(c *gin.Context) {
	resp, err := h.service.GetPermit(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary List the permits of a customer
// @Tags Permits
// @Produce json
// @Param id path string true "Customer ID"
// @Success 200 {array} dto.PermitResponse
// @Router /customers/{id}/permits [get]
func (h *PermitHandler) ListCustomerPermits(c *gin.Context) {
	resp, err := h.service.ListCustomerPermits(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": resp})
}

// PriceQuoteQuery is the date range of a price quote, dates as YYYY-MM-DD
type PriceQuoteQuery struct {
	Start string `form:"start" binding:"required"`
	End   string `form:"end" binding:"required"`
}

// @Summary Quote the price of a permit
// @Description Price the permit's zone and vehicle over [start, end)
// @Tags Permits
// @Produce json
// @Param id path string true "Permit ID"
// @Param start query string true "First day (YYYY-MM-DD)"
// @Param end query string true "Day after the last day (YYYY-MM-DD)"
// @Success 200 {object} dto.PriceQuoteResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 422 {object} ierr.ErrorResponse
// @Router /permits/{id}/price [get]
func (h *PermitHandler) GetPriceQuote(c *gin.Context) {
	var query PriceQuoteQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Both start and end dates are required").
			Mark(ierr.ErrValidation))
		return
	}

	start, err := types.ParseDate(query.Start)
	if err != nil {
		c.Error(ierr.WithError(err).
			WithHintf("Invalid start date %q", query.Start).
			Mark(ierr.ErrValidation))
		return
	}
	end, err := types.ParseDate(query.End)
	if err != nil {
		c.Error(ierr.WithError(err).
			WithHintf("Invalid end date %q", query.End).
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.GetPriceQuote(c.Request.Context(), c.Param("id"), start, end)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Check out a permit
// @Description Create the permit's order at the payment provider and return its checkout url
// @Tags Permits
// @Produce json
// @Param id path string true "Permit ID"
// @Success 200 {object} dto.CheckoutResponse
// @Failure 409 {object} ierr.ErrorResponse
// @Failure 422 {object} ierr.ErrorResponse
// @Failure 502 {object} ierr.ErrorResponse
// @Router /permits/{id}/checkout [post]
func (h *PermitHandler) Checkout(c *gin.Context) {
	resp, err := h.service.Checkout(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Cancel a permit
// @Description Cancel a draft permit or one still waiting for payment
// @Tags Permits
// @Produce json
// @Param id path string true "Permit ID"
// @Success 200 {object} dto.PermitResponse
// @Failure 409 {object} ierr.ErrorResponse
// @Router /permits/{id}/cancel [post]
func (h *PermitHandler) CancelPermit(c *gin.Context) {
	resp, err := h.service.CancelPermit(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary End a permit
// @Description End a valid permit and refund its unused time
// @Tags Permits
// @Accept json
// @Produce json
// @Param id path string true "Permit ID"
// @Param request body dto.EndPermitRequest true "End request"
// @Success 200 {object} dto.EndPermitResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 409 {object} ierr.ErrorResponse
// @Router /permits/{id}/end [post]
func (h *PermitHandler) EndPermit(c *gin.Context) {
	var req dto.EndPermitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.EndPermit(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.Error(err)
		return
	}

	h.log.Infow("permit ended",
		"permit_id", c.Param("id"),
		"end_type", req.EndType,
		"refunds", len(resp.Refunds),
	)
	c.JSON(http.StatusOK, resp)
}
