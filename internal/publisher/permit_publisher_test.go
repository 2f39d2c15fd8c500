package publisher

import (
	"context"
	"testing"
	"time"

	"github.com/flexprice/parkingpermits/internal/config"
	"github.com/flexprice/parkingpermits/internal/logger"
	"github.com/flexprice/parkingpermits/internal/pubsub/memory"
	"github.com/flexprice/parkingpermits/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermitEventPublisher_RoundTrip(t *testing.T) {
	cfg := config.GetDefaultConfig()
	log := logger.NewNoopLogger()
	ps := memory.NewPubSub(cfg, log)
	defer ps.Close()

	ctx := types.SetUserID(context.Background(), "usr_1")
	messages, err := ps.Subscribe(ctx, cfg.Events.Topic)
	require.NoError(t, err)

	pub := NewPermitEventPublisher(ps, cfg, log)
	require.NoError(t, pub.Publish(ctx, &types.PermitEvent{
		Type:     types.PermitEventEnded,
		PermitID: "prm_1",
		Status:   types.PermitStatusClosed,
	}))

	select {
	case msg := <-messages:
		assert.Equal(t, "prm_1", msg.Metadata.Get("permit_id"))
		assert.Equal(t, string(types.PermitEventEnded), msg.Metadata.Get("event_type"))

		var event types.PermitEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &event))
		assert.Equal(t, "usr_1", event.UserID)
		assert.NotEmpty(t, event.ID)
		assert.False(t, event.Timestamp.IsZero())
		msg.Ack()

		consumer := NewAuditConsumer(ps, cfg, log)
		assert.NoError(t, consumer.Handle(msg))
	case <-time.After(time.Second):
		t.Fatal("permit event not delivered")
	}
}
