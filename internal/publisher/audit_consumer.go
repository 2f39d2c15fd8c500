package publisher

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/flexprice/parkingpermits/internal/config"
	ierr "github.com/flexprice/parkingpermits/internal/errors"
	"github.com/flexprice/parkingpermits/internal/logger"
	"github.com/flexprice/parkingpermits/internal/metrics"
	"github.com/flexprice/parkingpermits/internal/pubsub"
	"github.com/flexprice/parkingpermits/internal/pubsub/router"
	"github.com/flexprice/parkingpermits/internal/types"
)

// AuditConsumer writes every permit event to the structured log
type AuditConsumer struct {
	subscriber pubsub.Subscriber
	topic      string
	logger     *logger.Logger
}

func NewAuditConsumer(subscriber pubsub.Subscriber, cfg *config.Configuration, logger *logger.Logger) *AuditConsumer {
	return &AuditConsumer{
		subscriber: subscriber,
		topic:      cfg.Events.Topic,
		logger:     logger,
	}
}

// RegisterHandler subscribes the consumer on the router
func (c *AuditConsumer) RegisterHandler(r *router.Router) {
	r.AddNoPublishHandler("permit_audit_log", c.topic, c.subscriber, c.Handle)
}

// Handle decodes and logs one event
func (c *AuditConsumer) Handle(msg *message.Message) error {
	var event types.PermitEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return ierr.WithError(err).
			WithHint("Malformed permit event").
			Mark(ierr.ErrValidation)
	}

	metrics.PermitEvents.WithLabelValues(string(event.Type)).Inc()
	c.logger.Infow("permit event",
		"event_id", event.ID,
		"event_type", event.Type,
		"permit_id", event.PermitID,
		"customer_id", event.CustomerID,
		"order_id", event.OrderID,
		"refund_id", event.RefundID,
		"status", event.Status,
		"message", event.Message,
		"context", event.Context,
		"user_id", event.UserID,
		"timestamp", event.Timestamp,
	)
	return nil
}
