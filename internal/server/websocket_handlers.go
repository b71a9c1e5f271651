package server

import (
	"log/slog"

	"pettit/internal/featureflags"
	"pettit/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// FeedWebSocketUpgrade rejects non-upgrade requests and refuses the realtime
// feed when it is disabled or has no event source.
func (s *Server) FeedWebSocketUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	if s.feedHub == nil || !s.featureFlags.Enabled(featureflags.RealtimeFeed, viewerID(c)) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "realtime feed unavailable",
		})
	}
	c.Locals("feedUserID", viewerID(c))
	return c.Next()
}

// WebSocketFeedHandler streams broadcast events to the connection until
// either side closes it. Anonymous subscribers are allowed.
func (s *Server) WebSocketFeedHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals("feedUserID").(uint)

		client, err := s.feedHub.Register(userID, conn)
		if err != nil {
			middleware.Logger.Warn("feed websocket rejected",
				slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		middleware.Logger.Debug("feed websocket connected", slog.Uint64("user_id", uint64(userID)))
		go client.WritePump()
		client.ReadPump()
	})
}
