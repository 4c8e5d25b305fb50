package handlers

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/huangang/replydesk/internal/services"
	"github.com/huangang/replydesk/pkg/logger"
)

// EventHandler streams admin events as Server-Sent Events.
type EventHandler struct {
	hub *services.EventHub
}

func NewEventHandler(hub *services.EventHub) *EventHandler {
	return &EventHandler{hub: hub}
}

// Stream keeps the connection open and writes one "data:" frame per event.
// Browsers cannot set headers on EventSource, so auth also accepts ?token=.
// GET /api/admin/events
func (h *EventHandler) Stream(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	clientID := uuid.New().String()
	events := h.hub.Subscribe(clientID)
	defer h.hub.Unsubscribe(clientID)

	logger.Info().Str("client_id", clientID).Str("username", c.GetString("username")).
		Int("total", h.hub.ClientCount()).Msg("event stream connected")

	// tells the client the stream is live before the first event
	fmt.Fprint(c.Writer, ": connected\n\n")
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			data, err := json.Marshal(event)
			if err != nil {
				logger.Error().Err(err).Msg("event marshal failed")
				return true
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			return true
		case <-c.Request.Context().Done():
			logger.Info().Str("client_id", clientID).Msg("event stream disconnected")
			return false
		}
	})
}
