package broadcast

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// publisher is the slice of the store the broadcaster needs.
type publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Event is the envelope written to the broadcast channel.
type Event struct {
	Type string    `json:"type"`
	Data any       `json:"data"`
	At   time.Time `json:"at"`
}

// Publisher fans pipeline events out over the shared broadcast channel.
// Publishing is fire-and-forget: a failed publish is logged and dropped,
// it never fails the operation that produced the event.
type Publisher struct {
	store   publisher
	channel string
	logger  *zap.Logger
}

func NewPublisher(store publisher, channel string, logger *zap.Logger) *Publisher {
	return &Publisher{store: store, channel: channel, logger: logger}
}

func (p *Publisher) Publish(ctx context.Context, eventType string, payload any) {
	body, err := json.Marshal(Event{Type: eventType, Data: payload, At: time.Now().UTC()})
	if err != nil {
		p.logger.Warn("marshal broadcast event",
			zap.String("event", eventType), zap.Error(err))
		return
	}
	if err := p.store.Publish(ctx, p.channel, body); err != nil {
		p.logger.Warn("publish broadcast event",
			zap.String("event", eventType), zap.Error(err))
	}
}
