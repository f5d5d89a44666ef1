// Package validate filters out fake and scam tokens before a spread signal
// can be produced. A fake is a DEX token that shares a ticker with a listed
// futures contract but is a different asset entirely.
package validate

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/alanyoungcy/spreadbot/internal/config"
	"github.com/ethereum/go-ethereum/common"
)

// majorTokens are popular tickers that attract copycat tokens and therefore
// get the strict price ratio band and contract verification.
var majorTokens = map[string]bool{
	"BTC": true, "ETH": true, "SOL": true, "BNB": true, "XRP": true,
	"ADA": true, "DOGE": true, "DOT": true, "MATIC": true, "SHIB": true,
	"AVAX": true, "LINK": true, "UNI": true, "ATOM": true, "LTC": true,
	"ETC": true, "XLM": true, "ALGO": true, "VET": true, "FIL": true,
	"NEAR": true, "APT": true, "OP": true, "ARB": true, "INJ": true,
	"SUI": true, "SEI": true, "TIA": true, "JUP": true, "WIF": true,
	"BONK": true, "PEPE": true, "FLOKI": true, "MEME": true, "ORDI": true,
	"STX": true, "IMX": true, "RUNE": true, "FTM": true,
}

// fakeTokenChains lists chains where a major ticker cannot be the real
// asset. A "BTC" pool on any chain is a fake by definition; native coins of
// one chain showing up unwrapped on another are fakes too.
var fakeTokenChains = map[string][]string{
	"ETH": {"solana", "bsc", "base", "arbitrum", "polygon"},
	"BTC": {"solana", "bsc", "base", "arbitrum", "polygon", "ethereum"},
	"SOL": {"ethereum", "bsc", "base", "arbitrum", "polygon"},
	"BNB": {"solana", "ethereum", "base", "arbitrum", "polygon"},
}

// verifiedContracts maps chain -> ticker -> the canonical token contract.
// Any other address carrying the same ticker on that chain is a fake.
var verifiedContracts = map[string]map[string]string{
	"ethereum": {
		"PEPE":  "0x6982508145454ce325ddbe47a25d4ec3d2311933",
		"SHIB":  "0x95ad61b0a150d79219dcf64e1e6cc01f0b64c4ce",
		"LINK":  "0x514910771af9ca656af840dff83e8264ecf986ca",
		"UNI":   "0x1f9840a85d5af5bf1d1762f925bdaddc4201f984",
		"MATIC": "0x7d1afa7b718fb893db30a3abc0cfc608aacfebb0",
		"MEME":  "0xb131f4a55907b10d1f0a50d8ab8fa09ec342cd74",
	},
	"solana": {
		"BONK": "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263",
		"WIF":  "EKpQGSJtjMFqKZ9KQanSqYXRcF8fBopzLHYxdM65zcjm",
		"JUP":  "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN",
		"PYTH": "HZ1JovNiVvGrGNiiYvEozEVgZ58xaU3RKwX8eACQBCt3",
		"RNDR": "rndrizKT3MK1iimdxRdWabcF7Zg7AR5T4nud4EkHBof",
		"RAY":  "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R",
	},
	"bsc": {
		"CAKE": "0x0e09fabb73bd3ade0a17ecc321fd13a19e81ce82",
		"XVS":  "0xcf6bb5389c92bdda8a3747ddb454cb7a64626c63",
	},
	"arbitrum": {
		"ARB": "0x912ce59144191c1204e64559fe8253a0e49e6548",
		"GMX": "0xfc5a1a6eb076a2c7ad06eed21c56c95b7c21d3f4",
	},
	"base": {
		"AERO": "0x940181a94a35a4569e4529a3cdfb74e38fd98631",
	},
}

// evmChains covers the chains whose token addresses are EVM hex addresses
// and can be compared via checksummed parsing rather than string equality.
var evmChains = map[string]bool{
	"ethereum": true,
	"bsc":      true,
	"base":     true,
	"arbitrum": true,
	"polygon":  true,
}

// TokenValidator decides whether a DEX pair quotes the same asset as the
// exchange futures contract with the same ticker.
type TokenValidator struct {
	cfg    config.ValidatorConfig
	fees   float64
	logger *slog.Logger

	mu   sync.Mutex
	memo map[string]bool // keyed by symbol|chain|address
}

// NewTokenValidator creates a validator with the given ratio bands.
// totalFeesPercent is the round-trip cost subtracted when computing net
// profit.
func NewTokenValidator(cfg config.ValidatorConfig, totalFeesPercent float64, logger *slog.Logger) *TokenValidator {
	return &TokenValidator{
		cfg:    cfg,
		fees:   totalFeesPercent,
		logger: logger.With(slog.String("component", "token_validator")),
		memo:   make(map[string]bool),
	}
}

// IsMajorToken reports whether a ticker belongs to the strictly validated
// set.
func (v *TokenValidator) IsMajorToken(symbol string) bool {
	return majorTokens[strings.ToUpper(symbol)]
}

// RatioLimits returns the allowed DEX/exchange price ratio band for a
// ticker.
func (v *TokenValidator) RatioLimits(symbol string) (float64, float64) {
	if v.IsMajorToken(symbol) {
		return v.cfg.MajorRatioMin, v.cfg.MajorRatioMax
	}
	return v.cfg.AltcoinRatioMin, v.cfg.AltcoinRatioMax
}

// ValidatePriceRatio checks that the DEX price sits inside the allowed band
// around the exchange price. Non-positive prices always fail.
func (v *TokenValidator) ValidatePriceRatio(symbol string, dexPrice, exchangePrice float64) bool {
	if exchangePrice <= 0 || dexPrice <= 0 {
		return false
	}

	ratio := dexPrice / exchangePrice
	minRatio, maxRatio := v.RatioLimits(symbol)

	if ratio < minRatio || ratio > maxRatio {
		v.logger.Debug("price ratio out of band",
			slog.String("symbol", symbol),
			slog.Float64("ratio", ratio),
			slog.Float64("min", minRatio),
			slog.Float64("max", maxRatio),
		)
		return false
	}
	return true
}

// IsLikelyFake reports whether a ticker on a given chain is impossible as
// the real asset.
func (v *TokenValidator) IsLikelyFake(symbol, chain string) bool {
	symbol = strings.ToUpper(symbol)
	chain = strings.ToLower(chain)

	for _, fakeChain := range fakeTokenChains[symbol] {
		if chain == fakeChain {
			return true
		}
	}
	return false
}

// IsVerifiedContract reports whether the token address matches the known
// canonical contract for the ticker on that chain. Returns false when no
// canonical contract is recorded.
func (v *TokenValidator) IsVerifiedContract(symbol, chain, address string) bool {
	chain = strings.ToLower(chain)
	symbol = strings.ToUpper(symbol)

	canonical := verifiedContracts[chain][symbol]
	if canonical == "" || address == "" {
		return false
	}

	if evmChains[chain] {
		return common.HexToAddress(address) == common.HexToAddress(canonical)
	}
	// Non-EVM addresses (Solana mints) are case sensitive.
	return address == canonical
}

// ValidateToken runs the full check chain: chain impossibility, price ratio
// band, then contract verification for major tickers with a known canonical
// contract. Returns (false, reason) on the first failing rule. Contract
// verdicts are memoized per (symbol, chain, address).
func (v *TokenValidator) ValidateToken(symbol, chain string, dexPrice, exchangePrice float64, address string) (bool, string) {
	symbol = strings.ToUpper(symbol)
	chain = strings.ToLower(chain)

	if v.IsLikelyFake(symbol, chain) {
		return false, fmt.Sprintf("fake token: %s cannot exist on %s", symbol, chain)
	}

	if !v.ValidatePriceRatio(symbol, dexPrice, exchangePrice) {
		ratio := 0.0
		if exchangePrice > 0 {
			ratio = dexPrice / exchangePrice
		}
		return false, fmt.Sprintf("price mismatch: dex/exchange ratio %.2f", ratio)
	}

	if address != "" && v.IsMajorToken(symbol) {
		if verifiedContracts[chain][symbol] != "" {
			key := symbol + "|" + chain + "|" + strings.ToLower(address)

			v.mu.Lock()
			verified, seen := v.memo[key]
			v.mu.Unlock()

			if !seen {
				verified = v.IsVerifiedContract(symbol, chain, address)
				v.mu.Lock()
				v.memo[key] = verified
				v.mu.Unlock()
			}

			if !verified {
				return false, fmt.Sprintf("unverified contract for %s on %s", symbol, chain)
			}
		}
	}

	return true, "OK"
}

// NetProfit returns the profit left from a raw spread after round-trip fees.
func (v *TokenValidator) NetProfit(spreadPercent float64) float64 {
	return spreadPercent - v.fees
}

// IsProfitable reports whether the net profit clears the given floor.
func (v *TokenValidator) IsProfitable(spreadPercent, minProfit float64) bool {
	return v.NetProfit(spreadPercent) >= minProfit
}
