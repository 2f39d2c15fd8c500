package publisher

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/flexprice/parkingpermits/internal/config"
	"github.com/flexprice/parkingpermits/internal/logger"
	"github.com/flexprice/parkingpermits/internal/pubsub"
	"github.com/flexprice/parkingpermits/internal/types"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// PermitEventPublisher writes entries to the permit audit trail
type PermitEventPublisher interface {
	Publish(ctx context.Context, event *types.PermitEvent) error
}

type permitEventPublisher struct {
	pubSub pubsub.PubSub
	topic  string
	logger *logger.Logger
}

// NewPermitEventPublisher creates a publisher on the configured events topic
func NewPermitEventPublisher(
	pubSub pubsub.PubSub,
	cfg *config.Configuration,
	logger *logger.Logger,
) PermitEventPublisher {
	return &permitEventPublisher{
		pubSub: pubSub,
		topic:  cfg.Events.Topic,
		logger: logger,
	}
}

func (p *permitEventPublisher) Publish(ctx context.Context, event *types.PermitEvent) error {
	if event.ID == "" {
		event.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PERMIT_EVENT)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.UserID == "" {
		event.UserID = types.GetUserID(ctx)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set("permit_id", event.PermitID)
	msg.Metadata.Set("event_type", string(event.Type))
	if requestID := types.GetRequestID(ctx); requestID != "" {
		msg.Metadata.Set("request_id", requestID)
	}

	if err := p.pubSub.Publish(ctx, p.topic, msg); err != nil {
		p.logger.Errorw("failed to publish permit event",
			"error", err,
			"event_id", event.ID,
			"event_type", event.Type,
			"permit_id", event.PermitID,
		)
		return err
	}

	p.logger.Debugw("published permit event",
		"event_id", event.ID,
		"event_type", event.Type,
		"permit_id", event.PermitID,
	)
	return nil
}
