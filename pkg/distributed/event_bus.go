package distributed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Event is a lobby notification fanned out to every server instance.
type Event struct {
	Type       string          `json:"type"`
	Recipients []string        `json:"recipients"`
	Payload    json.RawMessage `json:"payload"`
	Origin     string          `json:"origin"`
	Timestamp  time.Time       `json:"timestamp"`
}

// EventBus publishes events on a Redis pub/sub channel and delivers every
// event on that channel to a local handler.
type EventBus struct {
	client     redis.UniversalClient
	logger     *zap.Logger
	instanceID string
	channel    string

	ready    chan struct{}
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewEventBus(client redis.UniversalClient, channel string, logger *zap.Logger) *EventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventBus{
		client:     client,
		logger:     logger,
		instanceID: uuid.New().String(),
		channel:    channel,
		ready:      make(chan struct{}),
		stopChan:   make(chan struct{}),
	}
}

func (b *EventBus) InstanceID() string {
	return b.instanceID
}

// Ready is closed once the subscription is confirmed by the server.
func (b *EventBus) Ready() <-chan struct{} {
	return b.ready
}

// Run subscribes to the channel and calls handler for each event until ctx
// is done or Stop is called. Malformed messages are logged and skipped.
func (b *EventBus) Run(ctx context.Context, handler func(Event)) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}
	close(b.ready)

	b.logger.Info("Event bus subscribed",
		zap.String("instance_id", b.instanceID),
		zap.String("channel", b.channel))

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Error("Failed to unmarshal event", zap.Error(err))
				continue
			}

			b.logger.Debug("Received event",
				zap.String("type", event.Type),
				zap.String("origin", event.Origin),
				zap.Int("recipients", len(event.Recipients)))

			handler(event)

		case <-b.stopChan:
			b.logger.Info("Event bus stopped")
			return nil

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (b *EventBus) Stop() {
	b.stopOnce.Do(func() { close(b.stopChan) })
}

// Publish encodes payload as JSON and publishes it for the given recipients.
func (b *EventBus) Publish(ctx context.Context, eventType string, recipients []string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	data, err := json.Marshal(Event{
		Type:       eventType,
		Recipients: recipients,
		Payload:    raw,
		Origin:     b.instanceID,
		Timestamp:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Published event",
		zap.String("type", eventType),
		zap.Strings("recipients", recipients))

	return nil
}
