package domain

import "time"

// QuoteSource identifies which side of the spread a quote came from.
type QuoteSource string

const (
	SourceExchange QuoteSource = "mexc"
	SourceDex      QuoteSource = "dexscreener"
)

// Quote is a point-in-time price observation for a symbol. Quotes are
// ephemeral: they are consumed immediately by the scanner or tracker and
// never persisted on their own.
type Quote struct {
	Symbol     string
	Price      float64
	Source     QuoteSource
	ObservedAt time.Time
}

// Ticker is one entry of the bulk futures ticker endpoint, used as the
// fallback price source when the WebSocket feed has no data yet.
type Ticker struct {
	Symbol    string
	LastPrice float64
	Volume24h float64
}

// DexPair is a DEX trading pair as returned by the quote source, parsed into
// a typed structure immediately at the API boundary. Optional fields default
// to zero when the API omits them.
type DexPair struct {
	Symbol         string
	Chain          string
	DexName        string
	PairAddress    string
	TokenAddress   string
	PriceUSD       float64
	LiquidityUSD   float64
	Volume24hUSD   float64
	FDVUSD         float64
	MarketCapUSD   float64
	PriceChange24h float64
	Txns24h        int
	URL            string
}

// OrderBookDepth summarizes the executable side of the exchange order book
// for a symbol.
type OrderBookDepth struct {
	BestBid       float64
	BestAsk       float64
	ExecBidPrice  float64 // average fill price selling a configured USD amount
	ExecAskPrice  float64 // average fill price buying a configured USD amount
	SpreadPercent float64
	DepthUSD      float64 // total book value within 1% of mid
}

// DepositStatus reports whether a coin can currently be moved on/off the
// exchange. Unknown coins default to both flags false.
type DepositStatus struct {
	DepositEnabled  bool
	WithdrawEnabled bool
	Networks        []string
}
