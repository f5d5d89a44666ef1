package mexc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/alanyoungcy/spreadbot/internal/domain"
	"github.com/gorilla/websocket"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 1 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// TickerHandler is called for every ticker update pushed over the socket.
type TickerHandler func(domain.Ticker)

// WSClient is a WebSocket client for the MEXC futures real-time feed. It
// manages the connection lifecycle, the all-tickers subscription, and
// dispatches ticker updates to registered handlers.
type WSClient struct {
	wsURL string
	conn  *websocket.Conn

	mu     sync.RWMutex
	closed bool

	// writeMu serializes writes to the current connection. gorilla allows
	// at most one concurrent writer per connection.
	writeMu sync.Mutex

	// subscribed records whether the all-tickers subscription should be
	// restored after a reconnect.
	subscribed bool

	tickerHandlers []TickerHandler
	handlerMu      sync.RWMutex

	// done is closed when the client is shut down.
	done chan struct{}
}

// NewWSClient creates a new WebSocket client for the given endpoint.
//
// wsURL is the futures WebSocket endpoint, e.g. "wss://contract.mexc.com/edge".
func NewWSClient(wsURL string) *WSClient {
	return &WSClient{
		wsURL: wsURL,
		done:  make(chan struct{}),
	}
}

// Connect establishes a WebSocket connection to the MEXC futures feed.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("mexc/ws: %w", domain.ErrWSDisconnect)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("mexc/ws: connect: %w", err)
	}

	w.conn = conn

	// Set up pong handler for keep-alive.
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go w.readLoop(conn)
	go w.pingLoop(conn)

	// Restore the subscription after reconnect.
	if w.subscribed {
		if err := w.sendSubscribe(conn); err != nil {
			return fmt.Errorf("mexc/ws: restore subscription: %w", err)
		}
	}

	return nil
}

// SubscribeTickers subscribes to updates for all futures tickers in a single
// subscription.
func (w *WSClient) SubscribeTickers(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("mexc/ws: not connected")
	}

	if err := w.sendSubscribe(w.conn); err != nil {
		return fmt.Errorf("mexc/ws: subscribe tickers: %w", err)
	}

	w.subscribed = true
	return nil
}

// OnTicker registers a handler that is called for every ticker update,
// whether it arrives in a batch push or a single-symbol push.
func (w *WSClient) OnTicker(handler func(domain.Ticker)) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.tickerHandlers = append(w.tickerHandlers, handler)
}

// Close shuts down the WebSocket connection and stops the read loop.
func (w *WSClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true
	close(w.done)

	if w.conn != nil {
		_ = w.writeMessage(w.conn, websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return w.conn.Close()
	}

	return nil
}

// --------------------------------------------------------------------------
// Internal methods
// --------------------------------------------------------------------------

// sendSubscribe sends the all-tickers subscription command on the given
// connection.
func (w *WSClient) sendSubscribe(conn *websocket.Conn) error {
	cmd := struct {
		Method string   `json:"method"`
		Param  struct{} `json:"param"`
	}{Method: "sub.tickers"}

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}

	return w.writeMessage(conn, websocket.TextMessage, data)
}

// writeMessage performs one serialized write with a deadline.
func (w *WSClient) writeMessage(conn *websocket.Conn, messageType int, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(messageType, data)
}

// readLoop reads messages from one connection and dispatches them to
// registered handlers. The loop owns the connection it was started with: on
// a read error it closes that connection and, unless the client is shutting
// down, kicks off a reconnect. The replacement connection gets its own
// readLoop, so cleanup here never touches w.conn.
func (w *WSClient) readLoop(conn *websocket.Conn) {
	for {
		select {
		case <-w.done:
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			conn.Close()

			select {
			case <-w.done:
				return
			default:
			}

			w.reconnect()
			return
		}

		w.handleMessage(message)
	}
}

// pingLoop sends periodic ping messages on one connection to keep it alive.
// The loop exits once its connection has been superseded by a reconnect, so
// only a single pinger ever writes to the live socket.
func (w *WSClient) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.mu.RLock()
			current := w.conn
			w.mu.RUnlock()

			if current != conn {
				return
			}

			if err := w.writeMessage(conn, websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage parses a raw push frame and routes ticker updates to
// handlers. Tickers without a positive last price are dropped.
func (w *WSClient) handleMessage(raw []byte) {
	var msg wsTickerMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return // Silently drop unparseable messages.
	}

	switch msg.Channel {
	case "push.tickers":
		for i := range msg.Data.batch {
			w.dispatchTicker(&msg.Data.batch[i])
		}
	case "push.ticker":
		w.dispatchTicker(&msg.Data.single)
	}
}

// dispatchTicker converts a raw ticker entry and calls every handler.
func (w *WSClient) dispatchTicker(t *wsTicker) {
	if t.Symbol == "" || t.LastPrice <= 0 {
		return
	}

	update := domain.Ticker{
		Symbol:    BaseCoin(t.Symbol),
		LastPrice: t.LastPrice,
		Volume24h: t.Volume24,
	}

	w.handlerMu.RLock()
	handlers := w.tickerHandlers
	w.handlerMu.RUnlock()

	for _, h := range handlers {
		h(update)
	}
}

// reconnect attempts to re-establish the WebSocket connection with
// exponential backoff. It blocks until successful or the client is closed.
func (w *WSClient) reconnect() {
	attempt := 1

	for {
		select {
		case <-w.done:
			return
		default:
		}

		time.Sleep(backoffDelay(attempt))

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := w.Connect(ctx)
		cancel()

		if err == nil {
			return
		}

		attempt++
	}
}

// backoffDelay returns the reconnect delay for the given attempt number,
// doubling from reconnectDelay up to maxReconnectDelay. Attempt numbers
// start at 1.
func backoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := reconnectDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxReconnectDelay {
			return maxReconnectDelay
		}
	}
	return delay
}
