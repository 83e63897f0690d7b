package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/revtrace/revtrace-go/internal/infrastructure/messaging"
	"github.com/revtrace/revtrace-go/internal/infrastructure/observability/logging"
	"github.com/revtrace/revtrace-go/pkg/config"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The live feed is consumed by reporting UIs on arbitrary dashboard
	// origins; the data carries no credentials.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamHandlers contains the live touchpoint stream handlers
type StreamHandlers struct {
	broadcaster *messaging.Broadcaster
	logger      *logging.ChanneledLogger
}

// NewStreamHandlers creates stream handlers with injected dependencies
func NewStreamHandlers(broadcaster *messaging.Broadcaster, logger *logging.ChanneledLogger) *StreamHandlers {
	return &StreamHandlers{
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// GetEventStream handles GET /api/v1/events/stream - upgrades to a websocket
// that receives every ingested touchpoint as JSON.
func (h *StreamHandlers) GetEventStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Stream().Error("Websocket upgrade failed", "error", err.Error())
		return
	}

	client := &messaging.Client{
		Conn: conn,
		Send: make(chan []byte, config.StreamSendBuffer),
	}

	if !h.broadcaster.Register(client) {
		h.logger.Stream().Warn("Stream connection rejected, at capacity",
			"maxConnections", config.StreamMaxConnections)
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "at capacity"))
		conn.Close()
		return
	}

	go h.broadcaster.WritePump(client)

	// Drain reads so close frames and pings are processed; subscribers
	// never send application data.
	go func() {
		defer h.broadcaster.Unregister(client)
		conn.SetReadLimit(512)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
