package service

import (
	"context"
	"log/slog"

	"pettit/internal/featureflags"
	"pettit/internal/middleware"
	"pettit/internal/notifications"
)

// eventSink publishes domain events when the event_publishing flag is on.
// Publishing is best effort and never fails the calling operation.
type eventSink struct {
	publisher notifications.Publisher
	flags     featureflags.Checker
}

func (s eventSink) emit(ctx context.Context, eventType string, payload map[string]any) {
	if s.publisher == nil {
		return
	}
	if s.flags != nil && !s.flags.Enabled(featureflags.EventPublishing, 0) {
		return
	}
	if err := s.publisher.Publish(ctx, notifications.Event{Type: eventType, Payload: payload}); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish event",
			slog.String("type", eventType), slog.String("error", err.Error()))
	}
}
