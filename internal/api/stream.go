package api

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Broadcaster fans out one pair's snapshots and fills to every connected
// dashboard client. Unlike a multi-market dashboard, this agent has exactly
// one engine.Bot and one pair behind it, so a single Broadcaster (no
// per-symbol registry) is the whole fan-out surface; it tags its own log
// lines with the pair it serves rather than a generic component name.
type Broadcaster struct {
	pair string

	mu      sync.Mutex
	clients map[*wsClient]struct{}

	logger *slog.Logger
}

// wsClient wraps one connected dashboard websocket. send is buffered so a
// slow reader cannot block the broadcaster; a client that falls behind is
// dropped rather than stalling every other viewer.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewBroadcaster creates a Broadcaster for one pair's dashboard connections.
func NewBroadcaster(pair string, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		pair:    pair,
		clients: make(map[*wsClient]struct{}),
		logger:  logger.With("component", "ws-broadcaster", "pair", pair),
	}
}

// Connect registers conn as a dashboard client and starts its read/write
// pumps. The returned client accepts one initial message (the current
// snapshot) via Send before further broadcasts arrive.
func (b *Broadcaster) Connect(conn *websocket.Conn) *wsClient {
	c := &wsClient{conn: conn, send: make(chan []byte, 16)}

	b.mu.Lock()
	b.clients[c] = struct{}{}
	count := len(b.clients)
	b.mu.Unlock()
	b.logger.Info("dashboard client connected", "count", count)

	go c.writePump()
	go c.readPump(b)

	return c
}

// Send enqueues one message for delivery, dropping it if the client's buffer
// is full rather than blocking the caller.
func (c *wsClient) Send(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (b *Broadcaster) remove(c *wsClient) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.send)
	}
	count := len(b.clients)
	b.mu.Unlock()
	b.logger.Info("dashboard client disconnected", "count", count)
}

// BroadcastEvent marshals evt once and fans it out to every connected
// client, dropping any client whose send buffer is already full.
func (b *Broadcaster) BroadcastEvent(evt DashboardEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		b.logger.Error("failed to marshal event", "error", err, "event_type", evt.Type)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		if !c.Send(data) {
			b.logger.Warn("dashboard client send buffer full, dropping client")
			delete(b.clients, c)
			close(c.send)
		}
	}
}

// BroadcastSnapshot wraps snapshot in a "snapshot" DashboardEvent and fans
// it out. Called once per control-loop tick from engine.Bot's publish step.
func (b *Broadcaster) BroadcastSnapshot(snapshot StatusSnapshot) {
	b.BroadcastEvent(DashboardEvent{Type: "snapshot", Timestamp: time.Now(), Data: snapshot})
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // this dashboard only ever frames small snapshot/fill JSON
)

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains the connection so pongs are read and the socket notices a
// close. This dashboard is read-only: any inbound application message is
// discarded.
func (c *wsClient) readPump(b *Broadcaster) {
	defer func() {
		b.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				b.logger.Error("websocket error", "error", err)
			}
			return
		}
	}
}
