package handlers

import (
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/Hngdcmnh/ai-metric/internal/ingestion"
	"github.com/Hngdcmnh/ai-metric/pkg/logger"
)

// WebSocketHandler streams ingestion progress events to dashboard clients.
type WebSocketHandler struct {
	broadcaster *ingestion.Broadcaster
}

func NewWebSocketHandler(broadcaster *ingestion.Broadcaster) *WebSocketHandler {
	return &WebSocketHandler{
		broadcaster: broadcaster,
	}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	events, cancel := h.broadcaster.Subscribe()
	closed := make(chan struct{})

	defer func() {
		cancel()
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	// Reads are only used to notice the peer going away; inbound payloads
	// are discarded.
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := c.WriteJSON(event); err != nil {
				logger.Warn("Failed to write progress event", zap.Error(err))
				return
			}
		}
	}
}
