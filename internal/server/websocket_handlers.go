package server

import (
	"errors"

	"github.com/Jayriel04/MCCAsset2.0/internal/featureflags"
	"github.com/Jayriel04/MCCAsset2.0/internal/middleware"
	"github.com/Jayriel04/MCCAsset2.0/internal/models"
	"github.com/Jayriel04/MCCAsset2.0/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// EventStreamHandler serves GET /api/ws/events, a live feed of lending
// events. ?department= narrows the feed to one department.
func (s *Server) EventStreamHandler() fiber.Handler {
	upgrade := websocket.New(func(conn *websocket.Conn) {
		department := conn.Query("department")

		client, err := s.hub.Register(department, conn)
		if err != nil {
			middleware.Logger.Warn("event stream registration refused", "department", department, "error", err.Error())
			msg := `{"error":"registration failed"}`
			if errors.Is(err, notifications.ErrHubFull) {
				msg = `{"error":"connection limit reached"}`
			}
			_ = conn.WriteMessage(websocket.TextMessage, []byte(msg))
			_ = conn.Close()
			return
		}

		go client.WritePump()
		client.ReadPump()
	})

	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return models.RespondWithError(c, fiber.StatusUpgradeRequired,
				models.NewValidationError("WebSocket upgrade required"))
		}
		if !s.featureFlags.EnabledOr(featureflags.EventStream, c.Query("department"), true) {
			return models.RespondWithError(c, fiber.StatusNotFound,
				models.NewNotFoundError("Event stream", c.Query("department")))
		}
		return upgrade(c)
	}
}
