package dexscreener

import (
	"strconv"
	"strings"

	"github.com/alanyoungcy/spreadbot/internal/domain"
)

// searchResponse is the envelope returned by both the search and the batch
// pair endpoints.
type searchResponse struct {
	SchemaVersion string    `json:"schemaVersion"`
	Pairs         []APIPair `json:"pairs"`
}

// APIPair is a DEX pair as returned by the DexScreener API.
type APIPair struct {
	ChainID     string         `json:"chainId"`
	DexID       string         `json:"dexId"`
	URL         string         `json:"url"`
	PairAddress string         `json:"pairAddress"`
	BaseToken   APIToken       `json:"baseToken"`
	QuoteToken  APIToken       `json:"quoteToken"`
	PriceUSD    string         `json:"priceUsd"` // decimal string
	Liquidity   APILiquidity   `json:"liquidity"`
	Volume      APIVolume      `json:"volume"`
	PriceChange APIPriceChange `json:"priceChange"`
	Txns        APITxns        `json:"txns"`
	FDV         float64        `json:"fdv"`
	MarketCap   float64        `json:"marketCap"`
}

// APIToken identifies one side of a pair.
type APIToken struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

// APILiquidity holds pool liquidity figures.
type APILiquidity struct {
	USD   float64 `json:"usd"`
	Base  float64 `json:"base"`
	Quote float64 `json:"quote"`
}

// APIVolume holds rolling volume figures keyed by window.
type APIVolume struct {
	H24 float64 `json:"h24"`
	H6  float64 `json:"h6"`
	H1  float64 `json:"h1"`
}

// APIPriceChange holds rolling price change percentages keyed by window.
type APIPriceChange struct {
	H24 float64 `json:"h24"`
	H6  float64 `json:"h6"`
	H1  float64 `json:"h1"`
}

// APITxns holds buy/sell transaction counts keyed by window.
type APITxns struct {
	H24 APITxnCount `json:"h24"`
	H6  APITxnCount `json:"h6"`
	H1  APITxnCount `json:"h1"`
}

// APITxnCount is a buy/sell split for one window.
type APITxnCount struct {
	Buys  int `json:"buys"`
	Sells int `json:"sells"`
}

// ToDomainPair converts an API pair into a domain DexPair.
func (p *APIPair) ToDomainPair() domain.DexPair {
	price, _ := strconv.ParseFloat(p.PriceUSD, 64)

	return domain.DexPair{
		Symbol:         strings.ToUpper(p.BaseToken.Symbol),
		Chain:          p.ChainID,
		DexName:        p.DexID,
		PairAddress:    p.PairAddress,
		TokenAddress:   p.BaseToken.Address,
		PriceUSD:       price,
		LiquidityUSD:   p.Liquidity.USD,
		Volume24hUSD:   p.Volume.H24,
		FDVUSD:         p.FDV,
		MarketCapUSD:   p.MarketCap,
		PriceChange24h: p.PriceChange.H24,
		Txns24h:        p.Txns.H24.Buys + p.Txns.H24.Sells,
		URL:            p.URL,
	}
}

// chainNames maps DexScreener chain IDs to display names.
var chainNames = map[string]string{
	"solana":    "Solana",
	"ethereum":  "Ethereum",
	"bsc":       "BSC",
	"arbitrum":  "Arbitrum",
	"base":      "Base",
	"polygon":   "Polygon",
	"avalanche": "Avalanche",
	"optimism":  "Optimism",
	"fantom":    "Fantom",
	"sui":       "Sui",
	"ton":       "TON",
	"tron":      "Tron",
}

// ChainDisplayName returns a human-readable name for a chain ID. Unknown
// chains are title-cased.
func ChainDisplayName(chainID string) string {
	if name, ok := chainNames[strings.ToLower(chainID)]; ok {
		return name
	}
	if chainID == "" {
		return ""
	}
	return strings.ToUpper(chainID[:1]) + strings.ToLower(chainID[1:])
}
