package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/notify"
)

// EventsHandler subscribes WebSocket clients to the notification stream.
type EventsHandler struct {
	hub    *notify.Hub
	logger *zap.Logger
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(hub *notify.Hub, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{hub: hub, logger: logger}
}

// Stream handles GET /api/v1/cascade/events (WebSocket upgrade)
func (h *EventsHandler) Stream(c *gin.Context) {
	if err := h.hub.Serve(c.Writer, c.Request); err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
	}
}
