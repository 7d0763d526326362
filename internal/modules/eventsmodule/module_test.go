package eventsmodule

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curatorapp/curator/internal/events"
)

func newFeedServer(t *testing.T) (events.EventBus, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	bus := events.NewEventBus(events.DefaultBusConfig())
	require.NoError(t, bus.Start(context.Background()))
	t.Cleanup(func() { _ = bus.Stop() })

	r := gin.New()
	NewModule(bus).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return bus, "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events/ws"
}

func TestWebSocketStreamsBusEvents(t *testing.T) {
	bus, url := newFeedServer(t)

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// The handler subscribes after the upgrade completes, so publish until
	// a payload comes through.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				bus.PublishAsync(events.NewSystemEvent(events.EventInfo, "tick", "hello"))
			}
		}
	}()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var payload wirePayload
	require.NoError(t, conn.ReadJSON(&payload))
	assert.Equal(t, string(events.EventInfo), payload.Type)
}

func TestClientDisconnectWhileEventsFlow(t *testing.T) {
	bus, url := newFeedServer(t)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				bus.PublishAsync(events.NewSystemEvent(events.EventInfo, "tick", "x"))
			}
		}
	}()

	// Disconnecting mid-dispatch must not crash the bus goroutine: the
	// handler may still be delivering when the subscription tears down.
	for i := 0; i < 25; i++ {
		conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		if resp != nil {
			resp.Body.Close()
		}
		conn.Close()
	}

	close(stop)
	wg.Wait()

	time.Sleep(50 * time.Millisecond)
	bus.PublishAsync(events.NewSystemEvent(events.EventInfo, "tick", "still delivering"))
}
