package v1

import (
	"io"
	"net/http"

	"github.com/flexprice/parkingpermits/internal/api/dto"
	ierr "github.com/flexprice/parkingpermits/internal/errors"
	"github.com/flexprice/parkingpermits/internal/logger"
	"github.com/flexprice/parkingpermits/internal/service"
	"github.com/flexprice/parkingpermits/internal/types"
	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"github.com/samber/lo"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Webhook channels of the payment provider
const (
	WebhookChannelPayment      = "payment"
	WebhookChannelOrder        = "order"
	WebhookChannelSubscription = "subscription"
)

// webhookChannels lists the event types each provider channel may deliver
var webhookChannels = map[string][]types.ProviderEventType{
	WebhookChannelPayment: {
		types.ProviderEventPaymentPaid,
		types.ProviderEventPaymentCancelled,
	},
	WebhookChannelOrder: {
		types.ProviderEventOrderCancelled,
	},
	WebhookChannelSubscription: {
		types.ProviderEventSubscriptionCreated,
		types.ProviderEventSubscriptionRenewalOrderCreated,
		types.ProviderEventSubscriptionCancelled,
	},
}

// WebhookHandler receives the payment provider's webhooks
type WebhookHandler struct {
	reconciliation service.ReconciliationService
	logger         *logger.Logger
}

func NewWebhookHandler(reconciliation service.ReconciliationService, logger *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		reconciliation: reconciliation,
		logger:         logger,
	}
}

// readEvent decodes the request body into v
func (h *WebhookHandler) readEvent(c *gin.Context, v any) error {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to read request body").
			Mark(ierr.ErrValidation)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return ierr.WithError(err).
			WithHint("Invalid webhook payload").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// @Summary Handle a provider webhook
// @Description Reconcile a payment, order or subscription event of the payment provider
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param channel path string true "Webhook channel (payment, order, subscription)"
// @Param event body dto.ProviderEvent true "Provider event"
// @Success 200 {object} map[string]string
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /webhooks/provider/{channel} [post]
func (h *WebhookHandler) HandleProviderWebhook(c *gin.Context) {
	channel := c.Param("channel")
	allowed, ok := webhookChannels[channel]
	if !ok {
		c.Error(ierr.NewError("unknown webhook channel").
			WithHintf("Unknown webhook channel %q", channel).
			Mark(ierr.ErrNotFound))
		return
	}

	var event dto.ProviderEvent
	if err := h.readEvent(c, &event); err != nil {
		c.Error(err)
		return
	}

	if !lo.Contains(allowed, event.EventType) {
		c.Error(ierr.NewError("event type not delivered on this channel").
			WithHintf("Event type %q is not accepted on the %s channel", event.EventType, channel).
			WithReportableDetails(map[string]any{
				"channel":    channel,
				"event_type": event.EventType,
			}).
			Mark(ierr.ErrValidation))
		return
	}

	h.logger.Debugw("received provider webhook",
		"channel", channel,
		"event_type", event.EventType,
		"order_id", event.OrderID,
		"subscription_id", event.SubscriptionID,
	)

	if err := h.reconciliation.HandleProviderEvent(c.Request.Context(), event); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary Handle a batch of provider events
// @Description Reconcile events in parallel across permits; failures are reported per event
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param events body []dto.ProviderEvent true "Provider events"
// @Success 200 {array} dto.ProviderEventResult
// @Failure 400 {object} ierr.ErrorResponse
// @Router /webhooks/provider/events [post]
func (h *WebhookHandler) HandleProviderEvents(c *gin.Context) {
	var events []dto.ProviderEvent
	if err := h.readEvent(c, &events); err != nil {
		c.Error(err)
		return
	}

	results := h.reconciliation.HandleProviderEvents(c.Request.Context(), events)
	failed := lo.CountBy(results, func(r dto.ProviderEventResult) bool { return r.Error != "" })
	if failed > 0 {
		h.logger.Warnw("provider event batch had failures",
			"events", len(events),
			"failed", failed,
		)
	}

	c.JSON(http.StatusOK, gin.H{"items": results})
}

// @Summary Check the right of purchase
// @Description Tell the provider whether an order or subscription renewal may still be charged
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param event body dto.ProviderEvent true "Right of purchase check"
// @Success 200 {object} dto.RightOfPurchaseResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Router /webhooks/provider/right-of-purchase [post]
func (h *WebhookHandler) RightOfPurchase(c *gin.Context) {
	var event dto.ProviderEvent
	if err := h.readEvent(c, &event); err != nil {
		c.Error(err)
		return
	}
	event.EventType = types.ProviderEventRightOfPurchase

	resp, err := h.reconciliation.RightOfPurchase(c.Request.Context(), event)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
