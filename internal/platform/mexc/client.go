package mexc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/spreadbot/internal/domain"
)

// depthTimeout bounds a single order book lookup so a slow response cannot
// stall a scan cycle.
const depthTimeout = 1 * time.Second

// Client is the REST client for the MEXC futures and spot APIs. It covers
// contract discovery, bulk tickers, order book depth, kline history, and
// deposit/withdrawal availability.
type Client struct {
	contractHost string
	spotHost     string
	httpClient   *http.Client

	mu            sync.RWMutex
	contracts     map[string]APIContract        // keyed by base coin
	depositStatus map[string]domain.DepositStatus // keyed by base coin
}

// NewClient creates a new MEXC REST client.
//
// contractHost is the futures API root, e.g. "https://contract.mexc.com".
// spotHost is the spot API root, e.g. "https://api.mexc.com".
func NewClient(contractHost, spotHost string) *Client {
	return &Client{
		contractHost: contractHost,
		spotHost:     spotHost,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		contracts:     make(map[string]APIContract),
		depositStatus: make(map[string]domain.DepositStatus),
	}
}

// FuturesContracts fetches all active futures contracts and refreshes the
// internal contract cache used by HasFutures.
func (c *Client) FuturesContracts(ctx context.Context) ([]APIContract, error) {
	body, err := c.doGet(ctx, c.contractHost, "/api/v1/contract/detail", nil)
	if err != nil {
		return nil, fmt.Errorf("mexc: get contracts: %w", err)
	}

	var resp struct {
		contractResponse
		Data []APIContract `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("mexc: decode contracts: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("mexc: get contracts: code %d: %s", resp.Code, resp.Message)
	}

	active := make([]APIContract, 0, len(resp.Data))
	for _, ct := range resp.Data {
		if ct.State == 0 {
			active = append(active, ct)
		}
	}

	c.mu.Lock()
	c.contracts = make(map[string]APIContract, len(active))
	for _, ct := range active {
		c.contracts[strings.ToUpper(ct.BaseCoin)] = ct
	}
	c.mu.Unlock()

	return active, nil
}

// HasFutures reports whether a coin has an active futures contract, based on
// the most recent FuturesContracts refresh.
func (c *Client) HasFutures(coin string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.contracts[strings.ToUpper(coin)]
	return ok
}

// FuturesTickers fetches current prices for all futures contracts. Entries
// with a non-positive last price are dropped. The result is keyed by base
// coin and sorted by 24h volume descending.
func (c *Client) FuturesTickers(ctx context.Context) ([]domain.Ticker, error) {
	body, err := c.doGet(ctx, c.contractHost, "/api/v1/contract/ticker", nil)
	if err != nil {
		return nil, fmt.Errorf("mexc: get tickers: %w", err)
	}

	var resp struct {
		contractResponse
		Data []APITicker `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("mexc: decode tickers: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("mexc: get tickers: code %d: %s", resp.Code, resp.Message)
	}

	tickers := make([]domain.Ticker, 0, len(resp.Data))
	for i := range resp.Data {
		t := &resp.Data[i]
		if t.Symbol == "" || t.LastPrice <= 0 {
			continue
		}
		tickers = append(tickers, t.ToDomainTicker())
	}

	sort.Slice(tickers, func(i, j int) bool {
		return tickers[i].Volume24h > tickers[j].Volume24h
	})

	return tickers, nil
}

// PriceChange24h returns the 24h price change for a coin as a percentage
// (e.g. +10.5 or -5.2), taken from the single-symbol futures ticker.
func (c *Client) PriceChange24h(ctx context.Context, coin string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", ContractSymbol(coin))

	body, err := c.doGet(ctx, c.contractHost, "/api/v1/contract/ticker", params)
	if err != nil {
		return 0, fmt.Errorf("mexc: get 24h change for %s: %w", coin, err)
	}

	var resp struct {
		contractResponse
		Data APITicker `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("mexc: decode 24h change: %w", err)
	}
	if !resp.Success {
		return 0, fmt.Errorf("mexc: get 24h change for %s: code %d: %s", coin, resp.Code, resp.Message)
	}

	return resp.Data.RiseFallRate * 100, nil
}

// OrderBookDepth fetches the top of the futures order book for a coin and
// computes the average execution price a trade of amountUSD would get on each
// side, plus the total liquidity within 1% of the mid price.
func (c *Client) OrderBookDepth(ctx context.Context, coin string, amountUSD float64) (domain.OrderBookDepth, error) {
	ctx, cancel := context.WithTimeout(ctx, depthTimeout)
	defer cancel()

	params := url.Values{}
	params.Set("limit", "20")

	path := "/api/v1/contract/depth/" + url.PathEscape(ContractSymbol(coin))
	body, err := c.doGet(ctx, c.contractHost, path, params)
	if err != nil {
		return domain.OrderBookDepth{}, fmt.Errorf("mexc: get depth for %s: %w", coin, err)
	}

	var resp struct {
		contractResponse
		Data APIDepth `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.OrderBookDepth{}, fmt.Errorf("mexc: decode depth: %w", err)
	}
	if !resp.Success || len(resp.Data.Bids) == 0 || len(resp.Data.Asks) == 0 {
		return domain.OrderBookDepth{}, fmt.Errorf("mexc: depth for %s: %w", coin, domain.ErrNotFound)
	}

	return computeDepth(resp.Data.Bids, resp.Data.Asks, amountUSD), nil
}

// DepositWithdrawStatus fetches deposit/withdrawal availability for every
// coin from the spot API and refreshes the internal cache used by
// CachedDepositStatus.
func (c *Client) DepositWithdrawStatus(ctx context.Context) (map[string]domain.DepositStatus, error) {
	body, err := c.doGet(ctx, c.spotHost, "/api/v3/capital/config/getall", nil)
	if err != nil {
		return nil, fmt.Errorf("mexc: get deposit status: %w", err)
	}

	var coins []APICoinConfig
	if err := json.Unmarshal(body, &coins); err != nil {
		return nil, fmt.Errorf("mexc: decode deposit status: %w", err)
	}

	status := make(map[string]domain.DepositStatus, len(coins))
	for i := range coins {
		coin := strings.ToUpper(coins[i].Coin)
		if coin == "" {
			continue
		}
		status[coin] = coins[i].ToDomainDepositStatus()
	}

	c.mu.Lock()
	c.depositStatus = status
	c.mu.Unlock()

	return status, nil
}

// CachedDepositStatus returns the last known deposit/withdrawal status for a
// coin. Unknown coins report everything disabled.
func (c *Client) CachedDepositStatus(coin string) domain.DepositStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.depositStatus[strings.ToUpper(coin)]
}

// Klines fetches candle data for a coin from the futures kline endpoint.
// interval uses MEXC notation, e.g. "Min15".
func (c *Client) Klines(ctx context.Context, coin, interval string, limit int) (APIKline, error) {
	params := url.Values{}
	params.Set("interval", interval)
	params.Set("limit", fmt.Sprint(limit))

	path := "/api/v1/contract/kline/" + url.PathEscape(ContractSymbol(coin))
	body, err := c.doGet(ctx, c.contractHost, path, params)
	if err != nil {
		return APIKline{}, fmt.Errorf("mexc: get klines for %s: %w", coin, err)
	}

	var resp struct {
		contractResponse
		Data APIKline `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return APIKline{}, fmt.Errorf("mexc: decode klines: %w", err)
	}
	if !resp.Success {
		return APIKline{}, fmt.Errorf("mexc: get klines for %s: code %d: %s", coin, resp.Code, resp.Message)
	}

	return resp.Data, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// computeDepth derives executable prices and near-mid liquidity from raw
// order book levels. Each level is a [price, qty, ...] array.
func computeDepth(bids, asks [][]float64, amountUSD float64) domain.OrderBookDepth {
	bestBid := bids[0][0]
	bestAsk := asks[0][0]
	mid := (bestBid + bestAsk) / 2

	var depthUSD float64
	for _, lvl := range bids {
		if len(lvl) >= 2 && lvl[0] >= mid*0.99 {
			depthUSD += lvl[0] * lvl[1]
		}
	}
	for _, lvl := range asks {
		if len(lvl) >= 2 && lvl[0] <= mid*1.01 {
			depthUSD += lvl[0] * lvl[1]
		}
	}

	var spreadPct float64
	if mid > 0 {
		spreadPct = (bestAsk - bestBid) / mid * 100
	}

	return domain.OrderBookDepth{
		BestBid:       bestBid,
		BestAsk:       bestAsk,
		ExecBidPrice:  executablePrice(bids, amountUSD),
		ExecAskPrice:  executablePrice(asks, amountUSD),
		SpreadPercent: spreadPct,
		DepthUSD:      depthUSD,
	}
}

// executablePrice walks order book levels and returns the volume-weighted
// average price a trade of amountUSD would execute at. Returns 0 when the
// book is empty.
func executablePrice(levels [][]float64, amountUSD float64) float64 {
	remaining := amountUSD
	var totalQty, totalValue float64

	for _, lvl := range levels {
		if len(lvl) < 2 || remaining <= 0 {
			break
		}
		price, qty := lvl[0], lvl[1]
		levelValue := price * qty

		if levelValue <= remaining {
			totalQty += qty
			totalValue += levelValue
			remaining -= levelValue
		} else {
			totalQty += remaining / price
			totalValue += remaining
			remaining = 0
		}
	}

	if totalQty <= 0 {
		return 0
	}
	return totalValue / totalQty
}

// doGet sends an unauthenticated GET request to the given API host.
func (c *Client) doGet(ctx context.Context, host, path string, params url.Values) ([]byte, error) {
	endpoint := host + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	return body, nil
}

// checkHTTPStatus converts failing HTTP status codes into domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, string(body))
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, string(body))
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, string(body))
	}
}
