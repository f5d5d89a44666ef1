package mexc

import (
	"encoding/json"
	"strings"

	"github.com/alanyoungcy/spreadbot/internal/domain"
)

// contractResponse is the generic envelope for the MEXC futures API.
type contractResponse struct {
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// APIContract is a futures contract as returned by /api/v1/contract/detail.
type APIContract struct {
	Symbol        string `json:"symbol"`   // e.g. "BTC_USDT"
	BaseCoin      string `json:"baseCoin"` // e.g. "BTC"
	QuoteCoin     string `json:"quoteCoin"`
	DisplayNameEn string `json:"displayNameEn"`
	State         int    `json:"state"` // 0 = active
}

// APITicker is a futures ticker as returned by /api/v1/contract/ticker.
type APITicker struct {
	Symbol       string  `json:"symbol"`
	LastPrice    float64 `json:"lastPrice"`
	Volume24     float64 `json:"volume24"`
	RiseFallRate float64 `json:"riseFallRate"` // 24h change as a fraction
}

// APIDepth is the order book as returned by /api/v1/contract/depth/{symbol}.
// Levels are [price, qty, orderCount] triples.
type APIDepth struct {
	Bids [][]float64 `json:"bids"`
	Asks [][]float64 `json:"asks"`
}

// APIKline is candle data as returned by /api/v1/contract/kline/{symbol}.
// The futures endpoint returns columnar arrays rather than rows.
type APIKline struct {
	Time  []int64   `json:"time"`
	Open  []float64 `json:"open"`
	Close []float64 `json:"close"`
	High  []float64 `json:"high"`
	Low   []float64 `json:"low"`
	Vol   []float64 `json:"vol"`
}

// APICoinConfig is a coin entry from the spot /api/v3/capital/config/getall
// endpoint, used for deposit/withdrawal availability.
type APICoinConfig struct {
	Coin        string           `json:"coin"`
	NetworkList []APICoinNetwork `json:"networkList"`
}

// APICoinNetwork is a single chain entry inside APICoinConfig.
type APICoinNetwork struct {
	Network        string `json:"network"`
	DepositEnable  bool   `json:"depositEnable"`
	WithdrawEnable bool   `json:"withdrawEnable"`
}

// wsTickerMessage is a push frame from the futures WebSocket. The "channel"
// field distinguishes batch pushes (push.tickers) from single-symbol pushes
// (push.ticker).
type wsTickerMessage struct {
	Channel string          `json:"channel"`
	Data    wsTickerPayload `json:"data"`
	Ts      int64           `json:"ts"`
}

// wsTickerPayload absorbs both message shapes: push.tickers carries an array,
// push.ticker carries a single object. Exactly one of the two sets of fields
// is populated per frame.
type wsTickerPayload struct {
	single wsTicker
	batch  []wsTicker
}

func (p *wsTickerPayload) UnmarshalJSON(raw []byte) error {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		return json.Unmarshal(raw, &p.batch)
	}
	return json.Unmarshal(raw, &p.single)
}

// wsTicker is a single ticker entry inside a push frame.
type wsTicker struct {
	Symbol    string  `json:"symbol"`
	LastPrice float64 `json:"lastPrice"`
	Volume24  float64 `json:"volume24"`
}

// BaseCoin strips the quote suffix from a futures symbol: "BTC_USDT" -> "BTC".
func BaseCoin(symbol string) string {
	if i := strings.IndexByte(symbol, '_'); i > 0 {
		return symbol[:i]
	}
	return symbol
}

// ContractSymbol builds the futures symbol for a base coin: "BTC" -> "BTC_USDT".
func ContractSymbol(coin string) string {
	return strings.ToUpper(coin) + "_USDT"
}

// ToDomainTicker converts an API ticker into a domain Ticker keyed by base coin.
func (t *APITicker) ToDomainTicker() domain.Ticker {
	return domain.Ticker{
		Symbol:    BaseCoin(t.Symbol),
		LastPrice: t.LastPrice,
		Volume24h: t.Volume24,
	}
}

// ToDomainDepositStatus collapses the per-network flags into a single status:
// deposits or withdrawals count as enabled when any network allows them.
func (c *APICoinConfig) ToDomainDepositStatus() domain.DepositStatus {
	status := domain.DepositStatus{}
	for _, n := range c.NetworkList {
		if n.DepositEnable {
			status.DepositEnabled = true
		}
		if n.WithdrawEnable {
			status.WithdrawEnabled = true
		}
		if n.DepositEnable || n.WithdrawEnable {
			status.Networks = append(status.Networks, n.Network)
		}
	}
	return status
}
