package web

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"astock-backtest-lab/internal/observability"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsSendBuffer   = 32
)

// Event is one message pushed to /ws/progress subscribers.
type Event struct {
	Type  string `json:"type"` // run-started, progress, run-finished, run-failed
	RunID string `json:"run_id,omitempty"`
	Code  string `json:"code,omitempty"` // instrument that just finished replaying
	Done  int    `json:"done,omitempty"`
	Total int    `json:"total,omitempty"`
	Error string `json:"error,omitempty"`
}

// Hub fans progress events out to every connected WebSocket client.
// Slow clients are dropped rather than allowed to stall a run.
type Hub struct {
	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan Event
	clients    map[*wsClient]struct{}
	done       chan struct{} // closed when Run exits
	logger     *log.Logger
	upgrader   websocket.Upgrader
}

// NewHub creates a hub. Call Run to start dispatching.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan Event, 64),
		clients:    make(map[*wsClient]struct{}),
		done:       make(chan struct{}),
		logger:     logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run dispatches events until the context is cancelled, then closes
// every client connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				c.close()
				delete(h.clients, c)
				observability.ProgressClientConnected(-1)
			}
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			observability.ProgressClientConnected(1)
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				c.close()
				delete(h.clients, c)
				observability.ProgressClientConnected(-1)
			}
		case ev := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- ev:
				default:
					c.close()
					delete(h.clients, c)
					observability.ProgressClientConnected(-1)
				}
			}
		}
	}
}

// Broadcast queues an event for every subscriber. Never blocks; when
// the hub is saturated the event is dropped, progress is advisory.
func (h *Hub) Broadcast(ev Event) {
	select {
	case h.broadcast <- ev:
	default:
	}
}

// ServeWS upgrades an HTTP request and subscribes it to progress events.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("websocket upgrade: %v", err)
		return
	}

	c := &wsClient{conn: conn, send: make(chan Event, wsSendBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump(h)
}

// wsClient is one subscribed connection.
type wsClient struct {
	conn      *websocket.Conn
	send      chan Event
	closeOnce sync.Once
}

// writePump serializes queued events onto the connection and keeps it
// alive with pings. Exits when send is closed or a write fails.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames, the subscription is one-way, and
// unregisters the client when the peer goes away.
func (c *wsClient) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() { close(c.send) })
}
