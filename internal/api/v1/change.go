package v1

import (
	"net/http"

	"github.com/flexprice/parkingpermits/internal/api/dto"
	ierr "github.com/flexprice/parkingpermits/internal/errors"
	"github.com/flexprice/parkingpermits/internal/logger"
	"github.com/flexprice/parkingpermits/internal/service"
	"github.com/gin-gonic/gin"
)

// ChangeHandler serves changes to a valid permit: vehicle, address and temporary vehicles
type ChangeHandler struct {
	service service.ChangeService
	log     *logger.Logger
}

func NewChangeHandler(service service.ChangeService, log *logger.Logger) *ChangeHandler {
	return &ChangeHandler{
		service: service,
		log:     log,
	}
}

// @Summary Change the vehicle of a permit
// @Description Applied immediately unless a price difference has to be paid first
// @Tags Permits
// @Accept json
// @Produce json
// @Param id path string true "Permit ID"
// @Param request body dto.ChangeVehicleRequest true "Vehicle change"
// @Success 200 {object} dto.ChangeResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 409 {object} ierr.ErrorResponse
// @Router /permits/{id}/vehicle [post]
func (h *ChangeHandler) ChangeVehicle(c *gin.Context) {
	var req dto.ChangeVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.ChangeVehicle(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Change the address of a permit
// @Tags Permits
// @Accept json
// @Produce json
// @Param id path string true "Permit ID"
// @Param request body dto.ChangeAddressRequest true "Address change"
// @Success 200 {object} dto.ChangeResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 409 {object} ierr.ErrorResponse
// @Router /permits/{id}/address [post]
func (h *ChangeHandler) ChangeAddress(c *gin.Context) {
	var req dto.ChangeAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.ChangeAddress(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Add a temporary vehicle
// @Tags Permits
// @Accept json
// @Produce json
// @Param id path string true "Permit ID"
// @Param request body dto.AddTemporaryVehicleRequest true "Temporary vehicle"
// @Success 201 {object} dto.TemporaryVehicleResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Router /permits/{id}/temporary-vehicles [post]
func (h *ChangeHandler) AddTemporaryVehicle(c *gin.Context) {
	var req dto.AddTemporaryVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.AddTemporaryVehicle(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// @Summary Remove the active temporary vehicle
// @Tags Permits
// @Param id path string true "Permit ID"
// @Success 204
// @Failure 404 {object} ierr.ErrorResponse
// @Router /permits/{id}/temporary-vehicles [delete]
func (h *ChangeHandler) RemoveTemporaryVehicle(c *gin.Context) {
	if err := h.service.RemoveTemporaryVehicle(c.Request.Context(), c.Param("id")); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}
