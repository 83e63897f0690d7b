// Package messaging provides the live touchpoint stream broadcaster.
// Reporting UIs connect over websocket and receive each ingested touchpoint
// as it is stored.
package messaging

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/revtrace/revtrace-go/internal/domain/attribution"
	"github.com/revtrace/revtrace-go/internal/infrastructure/observability/logging"
	"github.com/revtrace/revtrace-go/pkg/config"
)

// Client represents a single connected stream subscriber.
type Client struct {
	Conn *websocket.Conn
	Send chan []byte
}

// Broadcaster manages all connected stream clients and fans out touchpoints.
type Broadcaster struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	logger     *logging.ChanneledLogger
	mu         sync.RWMutex
}

// NewBroadcaster creates a new broadcaster instance.
func NewBroadcaster(logger *logging.ChanneledLogger) *Broadcaster {
	return &Broadcaster{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, config.StreamSendBuffer),
		logger:     logger,
	}
}

// Run starts the broadcaster's main loop. This should be run as a goroutine.
func (b *Broadcaster) Run() {
	for {
		select {
		case client := <-b.register:
			b.mu.Lock()
			b.clients[client] = true
			count := len(b.clients)
			b.mu.Unlock()
			b.logger.Stream().Info("Stream client registered", "clientCount", count)

		case client := <-b.unregister:
			b.mu.Lock()
			if _, ok := b.clients[client]; ok {
				delete(b.clients, client)
				close(client.Send)
			}
			count := len(b.clients)
			b.mu.Unlock()
			b.logger.Stream().Info("Stream client unregistered", "clientCount", count)

		case message := <-b.broadcast:
			b.mu.RLock()
			for client := range b.clients {
				select {
				case client.Send <- message:
				default:
					// A subscriber that cannot keep up is disconnected rather
					// than allowed to block the fan-out.
					go func(c *Client) { b.unregister <- c }(client)
				}
			}
			b.mu.RUnlock()
		}
	}
}

// Register adds a new stream client. Returns false when the connection cap
// is reached.
func (b *Broadcaster) Register(client *Client) bool {
	b.mu.RLock()
	atCapacity := len(b.clients) >= config.StreamMaxConnections
	b.mu.RUnlock()
	if atCapacity {
		return false
	}
	b.register <- client
	return true
}

// Unregister removes a stream client.
func (b *Broadcaster) Unregister(client *Client) {
	b.unregister <- client
}

// ClientCount returns the number of connected subscribers.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// BroadcastTouchpoint serializes a touchpoint and queues it for fan-out.
// Serialization failures are logged and dropped; the stream is best-effort.
func (b *Broadcaster) BroadcastTouchpoint(tp *attribution.Touchpoint) {
	payload, err := json.Marshal(tp)
	if err != nil {
		b.logger.Stream().Error("Failed to serialize touchpoint for stream", "error", err.Error())
		return
	}

	select {
	case b.broadcast <- payload:
	default:
		b.logger.Stream().Warn("Stream broadcast buffer full, touchpoint dropped",
			"touchpointId", tp.ID)
	}
}

// WritePump drains a client's send channel to its websocket connection.
// It should be run as a goroutine per connection; it exits when the send
// channel is closed or a write fails.
func (b *Broadcaster) WritePump(client *Client) {
	ticker := time.NewTicker(config.StreamPingInterval)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(config.StreamWriteTimeout))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				b.logger.Stream().Debug("Stream write failed, closing connection", "error", err.Error())
				return
			}
		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(config.StreamWriteTimeout))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
