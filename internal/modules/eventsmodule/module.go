// Package eventsmodule streams bus events to websocket clients. The scan
// pipeline only publishes to the bus; this is the transport on top of it.
package eventsmodule

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/curatorapp/curator/internal/events"
	"github.com/curatorapp/curator/internal/logger"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 64
)

// wirePayload is the shape every streamed event takes on the socket.
type wirePayload struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Module owns the websocket endpoint.
type Module struct {
	bus      events.EventBus
	upgrader websocket.Upgrader
}

func NewModule(bus events.EventBus) *Module {
	return &Module{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// RegisterRoutes registers the websocket feed.
func (m *Module) RegisterRoutes(r *gin.Engine) {
	r.GET("/api/events/ws", m.handleWebSocket)
}

func (m *Module) handleWebSocket(c *gin.Context) {
	conn, err := m.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("WebSocket upgrade failed: %v", err)
		return
	}

	send := make(chan wirePayload, sendBuffer)
	done := make(chan struct{})
	sub, err := m.bus.Subscribe(events.EventFilter{}, func(event events.Event) error {
		payload := wirePayload{
			Type:      string(event.Type),
			Data:      event.Data,
			Timestamp: event.Timestamp,
		}
		select {
		case send <- payload:
		default:
			// Slow client, drop the event rather than block the bus.
		}
		return nil
	})
	if err != nil {
		conn.Close()
		return
	}

	go m.writeLoop(conn, send, done)
	m.readLoop(conn, sub.ID, done)
}

// readLoop blocks until the client disconnects, then tears down the
// subscription. The send channel is never closed: the bus may still be
// mid-dispatch into the subscription handler when Unsubscribe returns, so
// teardown is signalled through done instead.
func (m *Module) readLoop(conn *websocket.Conn, subID string, done chan struct{}) {
	defer func() {
		m.bus.Unsubscribe(subID)
		close(done)
		conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (m *Module) writeLoop(conn *websocket.Conn, send chan wirePayload, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			conn.WriteControl(websocket.CloseMessage, nil, time.Now().Add(writeWait))
			return
		case payload := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(payload); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
