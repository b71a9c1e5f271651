// Package notifications publishes domain events and relays them to realtime
// feed subscribers.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"pettit/internal/config"

	"github.com/redis/go-redis/v9"
)

// Event types published by the services.
const (
	EventPostCreated     = "post_created"
	EventPostDeleted     = "post_deleted"
	EventPostVoted       = "post_voted"
	EventCommunityJoined = "community_joined"
	EventCommunityLeft   = "community_left"
)

// Event is the envelope written to every backend.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Encode returns the JSON form of e.
func (e Event) Encode() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event %s: %w", e.Type, err)
	}
	return b, nil
}

// Publisher delivers events on a best-effort basis.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher discards every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// NewPublisher builds the Publisher selected by EVENTS_BACKEND. The returned
// close function releases backend resources.
func NewPublisher(cfg *config.Config, rdb *redis.Client) (Publisher, func() error) {
	switch cfg.EventsBackend {
	case "kafka":
		p := NewKafkaPublisher(cfg.KafkaBrokerList(), cfg.KafkaTopic)
		return p, p.Close
	case "none":
		return NopPublisher{}, func() error { return nil }
	default:
		return NewNotifier(rdb), func() error { return nil }
	}
}
