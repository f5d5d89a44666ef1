package mexc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/spreadbot/internal/domain"
	"github.com/gorilla/websocket"
)

// wsTestServer accepts WebSocket connections, drops the first one right
// after its subscription arrives, and keeps later ones open.
type wsTestServer struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns int

	subs chan string
}

func newWSTestServer(t *testing.T) *wsTestServer {
	t.Helper()

	s := &wsTestServer{subs: make(chan string, 8)}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *wsTestServer) handle(rw http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.conns++
	n := s.conns
	s.mu.Unlock()

	_, msg, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return
	}
	s.subs <- string(msg)

	if n == 1 {
		conn.Close()
		return
	}

	conn.WriteMessage(websocket.TextMessage, []byte(
		`{"channel":"push.ticker","data":{"symbol":"BTC_USDT","lastPrice":50000,"volume24":123}}`,
	))

	// Hold the connection open until the client hangs up.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			conn.Close()
			return
		}
	}
}

func (s *wsTestServer) connCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns
}

func (s *wsTestServer) url() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *wsTestServer) waitSub(t *testing.T, what string) {
	t.Helper()

	select {
	case msg := <-s.subs:
		if !strings.Contains(msg, "sub.tickers") {
			t.Fatalf("%s: expected sub.tickers command, got %s", what, msg)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("%s: timed out waiting for subscription", what)
	}
}

func TestWSClientReconnectRestoresSubscription(t *testing.T) {
	server := newWSTestServer(t)

	client := NewWSClient(server.url())
	defer client.Close()

	tickers := make(chan domain.Ticker, 1)
	client.OnTicker(func(tk domain.Ticker) {
		select {
		case tickers <- tk:
		default:
		}
	})

	ctx := context.Background()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := client.SubscribeTickers(ctx); err != nil {
		t.Fatalf("SubscribeTickers: %v", err)
	}

	// The server drops the first connection after this subscription; the
	// client must reconnect and resubscribe on its own.
	server.waitSub(t, "initial connection")
	server.waitSub(t, "after reconnect")

	select {
	case tk := <-tickers:
		if tk.Symbol != "BTC" || tk.LastPrice != 50000 {
			t.Errorf("unexpected ticker over reconnected socket: %+v", tk)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("no ticker received over the reconnected socket")
	}

	// The reconnected socket must stay up: give a broken client enough
	// time to churn through further reconnect cycles, then check that
	// the server only ever saw the two expected connections.
	time.Sleep(2500 * time.Millisecond)
	if got := server.connCount(); got != 2 {
		t.Errorf("server saw %d connections, want 2", got)
	}
}
