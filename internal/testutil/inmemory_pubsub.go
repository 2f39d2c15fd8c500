package testutil

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/flexprice/parkingpermits/internal/pubsub"
	"github.com/flexprice/parkingpermits/internal/types"
	jsoniter "github.com/json-iterator/go"
)

var _ pubsub.PubSub = (*InMemoryPubSub)(nil)

// InMemoryPubSub keeps every published message so tests can inspect the audit trail
type InMemoryPubSub struct {
	subscribers map[string][]chan *message.Message
	messages    map[string][]*message.Message
	failWith    error
	mu          sync.RWMutex
}

// NewInMemoryPubSub creates a new instance of InMemoryPubSub
func NewInMemoryPubSub() *InMemoryPubSub {
	return &InMemoryPubSub{
		subscribers: make(map[string][]chan *message.Message),
		messages:    make(map[string][]*message.Message),
	}
}

// FailPublish makes Publish return err until called again with nil
func (ps *InMemoryPubSub) FailPublish(err error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.failWith = err
}

// Publish implements pubsub.Publisher interface
func (ps *InMemoryPubSub) Publish(ctx context.Context, topic string, msg *message.Message) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.failWith != nil {
		return ps.failWith
	}
	ps.messages[topic] = append(ps.messages[topic], msg)

	for _, ch := range ps.subscribers[topic] {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribe implements pubsub.Subscriber interface. Messages published before
// the call are not replayed.
func (ps *InMemoryPubSub) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ch := make(chan *message.Message, 100)
	ps.subscribers[topic] = append(ps.subscribers[topic], ch)
	return ch, nil
}

// Close implements pubsub.PubSub interface
func (ps *InMemoryPubSub) Close() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	for _, subscribers := range ps.subscribers {
		for _, ch := range subscribers {
			close(ch)
		}
	}
	ps.subscribers = make(map[string][]chan *message.Message)
	return nil
}

// GetMessages returns all messages published to a topic
func (ps *InMemoryPubSub) GetMessages(topic string) []*message.Message {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return append([]*message.Message(nil), ps.messages[topic]...)
}

// Events decodes the permit events published to topic, optionally only those of permitID
func (ps *InMemoryPubSub) Events(topic, permitID string) []*types.PermitEvent {
	var events []*types.PermitEvent
	for _, msg := range ps.GetMessages(topic) {
		var event types.PermitEvent
		if err := jsoniter.Unmarshal(msg.Payload, &event); err != nil {
			continue
		}
		if permitID != "" && event.PermitID != permitID {
			continue
		}
		events = append(events, &event)
	}
	return events
}

// EventTypes lists the types of the events Events returns, in publish order
func (ps *InMemoryPubSub) EventTypes(topic, permitID string) []types.PermitEventType {
	var result []types.PermitEventType
	for _, event := range ps.Events(topic, permitID) {
		result = append(result, event.Type)
	}
	return result
}

// ClearMessages clears all stored messages
func (ps *InMemoryPubSub) ClearMessages() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.messages = make(map[string][]*message.Message)
}
