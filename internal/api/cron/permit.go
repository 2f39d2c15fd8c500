package cron

import (
	"net/http"

	"github.com/flexprice/parkingpermits/internal/logger"
	"github.com/flexprice/parkingpermits/internal/service"
	"github.com/gin-gonic/gin"
)

// PermitHandler triggers the permit sweeps from an external scheduler
type PermitHandler struct {
	sweepService service.SweepService
	logger       *logger.Logger
}

// NewPermitHandler creates a new permit cron handler
func NewPermitHandler(
	sweepService service.SweepService,
	logger *logger.Logger,
) *PermitHandler {
	return &PermitHandler{
		sweepService: sweepService,
		logger:       logger,
	}
}

// CancelUnpaid cancels permits whose payment was not completed in time
func (h *PermitHandler) CancelUnpaid(c *gin.Context) {
	h.logger.Infow("starting unpaid permit cancellation cron job")

	response, err := h.sweepService.CancelUnpaid(c.Request.Context())
	if err != nil {
		h.logger.Errorw("failed to cancel unpaid permits",
			"error", err)
		c.Error(err)
		return
	}

	h.logger.Infow("completed unpaid permit cancellation cron job",
		"processed", response.Processed,
		"failed", response.Failed)
	c.JSON(http.StatusOK, response)
}

// ExpirePermits closes permits whose end time has passed
func (h *PermitHandler) ExpirePermits(c *gin.Context) {
	h.logger.Infow("starting permit expiry cron job")

	response, err := h.sweepService.ExpirePermits(c.Request.Context())
	if err != nil {
		h.logger.Errorw("failed to expire permits",
			"error", err)
		c.Error(err)
		return
	}

	h.logger.Infow("completed permit expiry cron job",
		"processed", response.Processed,
		"failed", response.Failed)
	c.JSON(http.StatusOK, response)
}
