package v1

import (
	"net/http"

	"github.com/flexprice/parkingpermits/internal/api/dto"
	ierr "github.com/flexprice/parkingpermits/internal/errors"
	"github.com/flexprice/parkingpermits/internal/logger"
	"github.com/flexprice/parkingpermits/internal/service"
	"github.com/gin-gonic/gin"
)

type ExtensionHandler struct {
	service service.ExtensionService
	log     *logger.Logger
}

func NewExtensionHandler(service service.ExtensionService, log *logger.Logger) *ExtensionHandler {
	return &ExtensionHandler{
		service: service,
		log:     log,
	}
}

// @Summary Request an extension
// @Tags Extensions
// @Accept json
// @Produce json
// @Param id path string true "Permit ID"
// @Param request body dto.CreateExtensionRequest true "Extension"
// @Success 201 {object} dto.ExtensionResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 409 {object} ierr.ErrorResponse
// @Router /permits/{id}/extensions [post]
func (h *ExtensionHandler) RequestExtension(c *gin.Context) {
	var req dto.CreateExtensionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.RequestExtension(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// @Summary List the extension requests of a permit
// @Tags Extensions
// @Produce json
// @Param id path string true "Permit ID"
// @Success 200 {array} dto.ExtensionResponse
// @Router /permits/{id}/extensions [get]
func (h *ExtensionHandler) ListExtensions(c *gin.Context) {
	resp, err := h.service.ListExtensions(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": resp})
}

// @Summary Approve an extension request
// @Description Extend the permit and create the extension order
// @Tags Extensions
// @Produce json
// @Param id path string true "Extension request ID"
// @Success 200 {object} dto.ExtensionResponse
// @Failure 409 {object} ierr.ErrorResponse
// @Router /extensions/{id}/approve [post]
func (h *ExtensionHandler) ApproveExtension(c *gin.Context) {
	resp, err := h.service.ApproveExtension(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Reject an extension request
// @Tags Extensions
// @Produce json
// @Param id path string true "Extension request ID"
// @Success 200 {object} dto.ExtensionResponse
// @Failure 409 {object} ierr.ErrorResponse
// @Router /extensions/{id}/reject [post]
func (h *ExtensionHandler) RejectExtension(c *gin.Context) {
	resp, err := h.service.RejectExtension(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
