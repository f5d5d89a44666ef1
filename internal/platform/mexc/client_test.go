package mexc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient_FuturesTickers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/contract/ticker" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"success": true,
			"data": [
				{"symbol": "BTC_USDT", "lastPrice": 65000.5, "volume24": 1000000},
				{"symbol": "PEPE_USDT", "lastPrice": 0.000012, "volume24": 5000000},
				{"symbol": "DEAD_USDT", "lastPrice": 0, "volume24": 99},
				{"symbol": "", "lastPrice": 1.0, "volume24": 1}
			]
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, server.URL)

	tickers, err := client.FuturesTickers(context.Background())
	if err != nil {
		t.Fatalf("FuturesTickers: %v", err)
	}

	if len(tickers) != 2 {
		t.Fatalf("expected 2 tickers after filtering, got %d", len(tickers))
	}

	// Sorted by 24h volume descending.
	if tickers[0].Symbol != "PEPE" {
		t.Errorf("expected PEPE first by volume, got %s", tickers[0].Symbol)
	}
	if tickers[1].Symbol != "BTC" {
		t.Errorf("expected BTC second, got %s", tickers[1].Symbol)
	}
	if tickers[1].LastPrice != 65000.5 {
		t.Errorf("expected BTC price 65000.5, got %v", tickers[1].LastPrice)
	}
}

func TestClient_FuturesTickers_APIFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false, "code": 510, "message": "rate limit"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, server.URL)

	if _, err := client.FuturesTickers(context.Background()); err == nil {
		t.Fatal("expected error for unsuccessful response")
	}
}

func TestClient_PriceChange24h(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("symbol"); got != "DOGE_USDT" {
			t.Errorf("expected symbol DOGE_USDT, got %s", got)
		}
		w.Write([]byte(`{"success": true, "data": {"symbol": "DOGE_USDT", "lastPrice": 0.1, "riseFallRate": -0.052}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, server.URL)

	change, err := client.PriceChange24h(context.Background(), "DOGE")
	if err != nil {
		t.Fatalf("PriceChange24h: %v", err)
	}

	if change != -5.2 {
		t.Errorf("expected -5.2%%, got %v", change)
	}
}

func TestClient_OrderBookDepth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/contract/depth/BTC_USDT" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{
			"success": true,
			"data": {
				"bids": [[100, 50, 1], [99, 100, 1], [90, 500, 1]],
				"asks": [[101, 50, 1], [102, 100, 1], [120, 500, 1]]
			}
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, server.URL)

	depth, err := client.OrderBookDepth(context.Background(), "BTC", 10_000)
	if err != nil {
		t.Fatalf("OrderBookDepth: %v", err)
	}

	if depth.BestBid != 100 {
		t.Errorf("expected best bid 100, got %v", depth.BestBid)
	}
	if depth.BestAsk != 101 {
		t.Errorf("expected best ask 101, got %v", depth.BestAsk)
	}

	// Mid is 100.5, so levels within [99.495, 101.505] count toward depth:
	// bid 100*50 + ask 101*50 = 10050.
	if depth.DepthUSD != 10050 {
		t.Errorf("expected depth 10050, got %v", depth.DepthUSD)
	}

	// Buying 10k USD: 50 qty at 101 (5050) then 4950/102 qty at 102.
	wantAsk := 10000.0 / (50 + 4950.0/102)
	if diff := depth.ExecAskPrice - wantAsk; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected exec ask %v, got %v", wantAsk, depth.ExecAskPrice)
	}
}

func TestExecutablePrice_EmptyBook(t *testing.T) {
	if got := executablePrice(nil, 10_000); got != 0 {
		t.Errorf("expected 0 for empty book, got %v", got)
	}
}

func TestExecutablePrice_FullFillInsideFirstLevel(t *testing.T) {
	// 10 qty at price 100 = 1000 USD available, order is 500 USD.
	levels := [][]float64{{100, 10}}
	if got := executablePrice(levels, 500); got != 100 {
		t.Errorf("expected 100, got %v", got)
	}
}

func TestClient_DepositWithdrawStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/capital/config/getall" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`[
			{"coin": "btc", "networkList": [
				{"network": "BTC", "depositEnable": true, "withdrawEnable": true},
				{"network": "BEP20", "depositEnable": false, "withdrawEnable": false}
			]},
			{"coin": "HALT", "networkList": [
				{"network": "ERC20", "depositEnable": false, "withdrawEnable": false}
			]}
		]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, server.URL)

	status, err := client.DepositWithdrawStatus(context.Background())
	if err != nil {
		t.Fatalf("DepositWithdrawStatus: %v", err)
	}

	btc := status["BTC"]
	if !btc.DepositEnabled || !btc.WithdrawEnabled {
		t.Errorf("expected BTC fully enabled, got %+v", btc)
	}
	if len(btc.Networks) != 1 || btc.Networks[0] != "BTC" {
		t.Errorf("expected only enabled networks listed, got %v", btc.Networks)
	}

	halt := status["HALT"]
	if halt.DepositEnabled || halt.WithdrawEnabled {
		t.Errorf("expected HALT fully disabled, got %+v", halt)
	}

	// Cache is refreshed and case-insensitive.
	cached := client.CachedDepositStatus("btc")
	if !cached.DepositEnabled {
		t.Error("expected cached status for btc to report deposits enabled")
	}

	unknown := client.CachedDepositStatus("NOPE")
	if unknown.DepositEnabled || unknown.WithdrawEnabled {
		t.Errorf("expected zero status for unknown coin, got %+v", unknown)
	}
}

func TestBackoffDelay(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{6, 32 * time.Second},
		{7, 60 * time.Second},
		{20, 60 * time.Second},
		{0, 1 * time.Second},
	}

	for _, tc := range cases {
		if got := backoffDelay(tc.attempt); got != tc.want {
			t.Errorf("backoffDelay(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}
