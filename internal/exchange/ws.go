// ws.go implements the best-bid/best-offer WebSocket feed transport.
//
// A single public channel streams top-of-book updates for one trading pair.
// The feed auto-reconnects with exponential backoff (1s -> 30s max) and
// re-subscribes on reconnect. A read deadline (90s) ensures a silent server
// is detected within ~2 missed pings.
//
// BBOFeed only decodes wire messages and hands the result to a callback —
// it holds no book state of its own. The control loop's Bot owns the single
// mutex region that the callback runs under.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	pingInterval     = 50 * time.Second
	readTimeout      = 90 * time.Second
	maxReconnectWait = 30 * time.Second
	writeTimeout     = 10 * time.Second
)

// BBOUpdate carries a best-bid/best-offer tick decoded off the wire.
type BBOUpdate struct {
	Bid *decimal.Decimal
	Ask *decimal.Decimal
	At  time.Time
}

// BBOHandler is invoked for every decoded update. It is called on the
// feed's read goroutine, so it must return quickly.
type BBOHandler func(BBOUpdate)

type wireBBOEvent struct {
	EventType string `json:"event_type"`
	Coin      string `json:"coin"`
	BestBid   string `json:"best_bid"`
	BestAsk   string `json:"best_ask"`
}

// BBOFeed manages a single WebSocket connection subscribed to one coin's
// top-of-book channel.
type BBOFeed struct {
	url  string
	coin string

	conn   *websocket.Conn
	connMu sync.Mutex

	handler BBOHandler
	logger  *slog.Logger
}

// NewBBOFeed creates a BBO feed for the given coin.
func NewBBOFeed(wsURL, coin string, handler BBOHandler, logger *slog.Logger) *BBOFeed {
	return &BBOFeed{
		url:     wsURL,
		coin:    coin,
		handler: handler,
		logger:  logger.With("component", "ws_bbo"),
	}
}

// Run connects and maintains the WebSocket connection with auto-reconnect.
// Blocks until ctx is cancelled.
func (f *BBOFeed) Run(ctx context.Context) error {
	backoff := time.Second

	for {
		err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Warn("websocket disconnected, reconnecting", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxReconnectWait {
			backoff = maxReconnectWait
		}
	}
}

// Close gracefully closes the connection.
func (f *BBOFeed) Close() error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}

func (f *BBOFeed) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()

	defer func() {
		f.connMu.Lock()
		conn.Close()
		f.conn = nil
		f.connMu.Unlock()
	}()

	if err := f.writeJSON(map[string]interface{}{"operation": "subscribe", "coin": f.coin}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	f.logger.Info("websocket connected", "coin", f.coin)

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go f.pingLoop(pingCtx)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		f.dispatchMessage(msg)
	}
}

func (f *BBOFeed) dispatchMessage(data []byte) {
	var evt wireBBOEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		f.logger.Debug("ignoring non-json ws message", "data", string(data))
		return
	}
	if evt.EventType != "bbo" || evt.Coin != f.coin {
		return
	}

	update := BBOUpdate{At: time.Now()}
	if evt.BestBid != "" {
		if bid, err := decimal.NewFromString(evt.BestBid); err == nil {
			update.Bid = &bid
		}
	}
	if evt.BestAsk != "" {
		if ask, err := decimal.NewFromString(evt.BestAsk); err == nil {
			update.Ask = &ask
		}
	}

	f.handler(update)
}

func (f *BBOFeed) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.writeMessage(websocket.TextMessage, []byte("PING")); err != nil {
				f.logger.Warn("ping failed", "error", err)
				return
			}
		}
	}
}

func (f *BBOFeed) writeJSON(v interface{}) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("websocket not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteJSON(v)
}

func (f *BBOFeed) writeMessage(msgType int, data []byte) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("websocket not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteMessage(msgType, data)
}
