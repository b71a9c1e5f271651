package notifications

import (
	"context"
	"log/slog"
	"runtime/debug"

	"pettit/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// BroadcastChannel is the Redis channel every event is fanned out on.
const BroadcastChannel = "notifications:broadcast"

// Notifier publishes events into Redis pub/sub.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Publish encodes event and broadcasts it.
func (n *Notifier) Publish(ctx context.Context, event Event) error {
	if n.rdb == nil {
		return nil
	}
	payload, err := event.Encode()
	if err != nil {
		return err
	}
	return n.PublishBroadcast(ctx, string(payload))
}

// PublishBroadcast sends a raw payload to all subscribers.
func (n *Notifier) PublishBroadcast(ctx context.Context, payload string) error {
	if n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, BroadcastChannel, payload).Err()
}

// StartBroadcastSubscriber subscribes to the broadcast channel and calls
// onMessage for each payload until ctx is cancelled.
func (n *Notifier) StartBroadcastSubscriber(ctx context.Context, onMessage func(payload string)) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.Subscribe(ctx, BroadcastChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in broadcast subscriber",
								slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
						}
					}()
					onMessage(msg.Payload)
				}()
			}
		}
	}()

	return nil
}
