package redis

import (
	"context"

	"github.com/redis/rueidis"

	"github.com/civiciq/civiciq/internal/db"
)

// Publish sends a payload to a channel. Delivery is fire-and-forget.
func (s *Store) Publish(ctx context.Context, channel string, payload []byte) error {
	cmd := s.b().Publish().Channel(channel).Message(string(payload)).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpPublish, Err: err}
	}
	return nil
}

// Subscribe delivers channel messages to fn until ctx is cancelled.
// Uses a dedicated connection via rueidis Receive.
func (s *Store) Subscribe(ctx context.Context, channel string, fn func(payload []byte)) error {
	cmd := s.b().Subscribe().Channel(channel).Build()
	err := s.client.Receive(ctx, cmd, func(msg rueidis.PubSubMessage) {
		fn([]byte(msg.Message))
	})
	if err != nil && ctx.Err() == nil {
		return &db.Error{Op: db.OpSubscribe, Err: err}
	}
	return nil
}
