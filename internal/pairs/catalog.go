// Package pairs maintains the catalog of DEX pairs mapped to exchange
// futures symbols and discovers new ones in the background.
package pairs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/spreadbot/internal/config"
	"github.com/alanyoungcy/spreadbot/internal/domain"
	"github.com/alanyoungcy/spreadbot/internal/validate"
)

// nativeChains names the chain where a major ticker is the genuine DEX
// asset. A major found on any other chain during discovery is dropped.
var nativeChains = map[string]string{
	"SOL":   "solana",
	"ETH":   "ethereum",
	"BNB":   "bsc",
	"MATIC": "polygon",
	"AVAX":  "avalanche",
	"FTM":   "fantom",
	"ARB":   "arbitrum",
	"OP":    "optimism",
}

// PairSource is the subset of the DEX quote client discovery needs.
type PairSource interface {
	BestPair(ctx context.Context, symbol string, minLiquidity, minVolume, referencePrice float64) (domain.DexPair, error)
}

// Catalog is the persistent registry of known symbol -> DEX pair mappings.
// The catalog survives restarts through a JSON cache file and grows through
// background discovery runs.
type Catalog struct {
	source    PairSource
	validator *validate.TokenValidator
	cfg       config.DiscoveryConfig
	scanCfg   config.ScannerConfig
	logger    *slog.Logger

	mu          sync.Mutex
	known       map[string]domain.TradingPair
	blacklisted map[string]bool // session blacklist of failed symbols

	// discovering guards against overlapping discovery runs: at most one
	// runs at a time, extra triggers are dropped.
	discovering atomic.Bool

	// sleep is swappable for tests.
	sleep func(time.Duration)
}

// NewCatalog creates a catalog and loads the cache file if one exists. A
// corrupt or missing cache file is not an error; the catalog starts empty.
func NewCatalog(source PairSource, validator *validate.TokenValidator, cfg config.DiscoveryConfig, scanCfg config.ScannerConfig, logger *slog.Logger) *Catalog {
	c := &Catalog{
		source:      source,
		validator:   validator,
		cfg:         cfg,
		scanCfg:     scanCfg,
		logger:      logger.With(slog.String("component", "pair_catalog")),
		known:       make(map[string]domain.TradingPair),
		blacklisted: make(map[string]bool),
		sleep:       time.Sleep,
	}
	c.loadCache()
	return c
}

// Len returns the number of known pairs.
func (c *Catalog) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.known)
}

// Pair returns the known pair for a symbol.
func (c *Catalog) Pair(symbol string) (domain.TradingPair, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.known[symbol]
	return p, ok
}

// Discover searches for DEX pairs for symbols that are not yet known,
// validates each candidate, and persists verified finds. prices maps symbol
// to the current exchange price, used as the reference for validation.
//
// Only one discovery run executes at a time; a call while one is in flight
// returns immediately.
func (c *Catalog) Discover(ctx context.Context, prices map[string]float64) {
	if !c.discovering.CompareAndSwap(false, true) {
		return
	}
	defer c.discovering.Store(false)

	unknown := c.unknownSymbols(prices)
	if len(unknown) == 0 {
		return
	}

	c.logger.Info("discovering new tokens", slog.Int("count", len(unknown)))

	// Shuffle to spread API load across the symbol space over repeated runs.
	rand.Shuffle(len(unknown), func(i, j int) {
		unknown[i], unknown[j] = unknown[j], unknown[i]
	})

	var found, skipped int
	for _, symbol := range unknown {
		select {
		case <-ctx.Done():
			c.saveCache()
			return
		default:
		}

		refPrice := prices[symbol]
		if refPrice <= 0 {
			continue
		}

		pair, err := c.source.BestPair(ctx, symbol,
			c.scanCfg.MinLiquidityUSD, c.scanCfg.MinVolume24hUSD, refPrice)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				c.logger.Debug("pair lookup failed",
					slog.String("symbol", symbol),
					slog.String("error", err.Error()),
				)
			}
			skipped++
			c.sleep(c.cfg.LookupDelay.Duration)
			continue
		}

		if !c.validateCandidate(symbol, pair, refPrice) {
			skipped++
			c.sleep(c.cfg.LookupDelay.Duration)
			continue
		}

		c.mu.Lock()
		c.known[symbol] = domain.TradingPair{
			Symbol:      symbol,
			Chain:       pair.Chain,
			PairAddress: pair.PairAddress,
			DexName:     pair.DexName,
			Verified:    true,
			UpdatedAt:   time.Now().UTC(),
		}
		c.mu.Unlock()
		found++

		c.logger.Info("pair discovered",
			slog.String("symbol", symbol),
			slog.String("chain", pair.Chain),
			slog.String("dex", pair.DexName),
		)

		if found%c.saveEvery() == 0 {
			c.saveCache()
		}

		c.sleep(c.cfg.LookupDelay.Duration)
	}

	c.saveCache()
	c.logger.Info("discovery complete",
		slog.Int("found", found),
		slog.Int("skipped", skipped),
	)
}

// BatchCandidates returns known pair addresses grouped by chain, excluding
// blacklisted symbols.
func (c *Catalog) BatchCandidates() map[string][]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	batches := make(map[string][]string)
	for symbol, pair := range c.known {
		if c.isBlacklistedSymbol(symbol) || pair.Chain == "" || pair.PairAddress == "" {
			continue
		}
		batches[pair.Chain] = append(batches[pair.Chain], pair.PairAddress)
	}
	return batches
}

// SymbolByAddress reverse-looks-up the symbol owning a pair address.
func (c *Catalog) SymbolByAddress(address string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for symbol, pair := range c.known {
		if pair.PairAddress == address {
			return symbol, true
		}
	}
	return "", false
}

// Invalidate removes a symbol's pair mapping and blocks the symbol from
// rediscovery for the rest of the session.
func (c *Catalog) Invalidate(symbol string) {
	c.mu.Lock()
	_, existed := c.known[symbol]
	delete(c.known, symbol)
	c.blacklisted[symbol] = true
	c.mu.Unlock()

	if existed {
		c.saveCache()
		c.logger.Info("pair invalidated", slog.String("symbol", symbol))
	}
}

// Stats summarizes the catalog for logging and the monitor mode.
func (c *Catalog) Stats() (total, blacklisted int, byChain map[string]int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	byChain = make(map[string]int)
	for _, pair := range c.known {
		byChain[pair.Chain]++
	}
	return len(c.known), len(c.blacklisted), byChain
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// unknownSymbols lists tickers not in the catalog, not blacklisted, and not
// on the static symbol blacklist.
func (c *Catalog) unknownSymbols(prices map[string]float64) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []string
	for symbol := range prices {
		if _, ok := c.known[symbol]; ok {
			continue
		}
		if c.blacklisted[symbol] || c.isBlacklistedSymbol(symbol) {
			continue
		}
		out = append(out, symbol)
	}
	return out
}

// isBlacklistedSymbol checks the static blacklist of wrapped tokens,
// stablecoins, and known fakes. Caller may hold c.mu.
func (c *Catalog) isBlacklistedSymbol(symbol string) bool {
	for _, b := range c.scanCfg.Blacklist {
		if strings.EqualFold(b, symbol) {
			return true
		}
	}
	return false
}

// validateCandidate applies the discovery-time checks to a freshly found
// pair.
func (c *Catalog) validateCandidate(symbol string, pair domain.DexPair, refPrice float64) bool {
	if pair.PriceUSD <= 0 || pair.LiquidityUSD < c.scanCfg.MinLiquidityUSD {
		return false
	}

	ok, reason := c.validator.ValidateToken(symbol, pair.Chain, pair.PriceUSD, refPrice, pair.TokenAddress)
	if !ok {
		c.logger.Debug("candidate rejected",
			slog.String("symbol", symbol),
			slog.String("reason", reason),
		)
		return false
	}

	if c.validator.IsMajorToken(symbol) {
		if expected := nativeChains[strings.ToUpper(symbol)]; expected != "" && pair.Chain != expected {
			return false
		}
		if pair.LiquidityUSD < c.cfg.MajorMinLiqUSD {
			return false
		}
	}

	// Turnover floor weeds out dead pools. Discovery uses a looser floor
	// than the scan-time filter.
	if pair.LiquidityUSD > 0 && pair.Volume24hUSD/pair.LiquidityUSD < c.cfg.MinTurnoverRatio {
		return false
	}

	return true
}

func (c *Catalog) saveEvery() int {
	if c.cfg.SaveEvery <= 0 {
		return 5
	}
	return c.cfg.SaveEvery
}

// loadCache reads the JSON cache file. Entries keep their verified flag;
// legacy entries without one load as unverified.
func (c *Catalog) loadCache() {
	data, err := os.ReadFile(c.cfg.CacheFile)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Error("failed to read pairs cache", slog.String("error", err.Error()))
		}
		return
	}

	var raw map[string]domain.TradingPair
	if err := json.Unmarshal(data, &raw); err != nil {
		c.logger.Error("failed to parse pairs cache", slog.String("error", err.Error()))
		return
	}

	c.mu.Lock()
	for symbol, pair := range raw {
		pair.Symbol = symbol
		c.known[symbol] = pair
	}
	c.mu.Unlock()

	c.logger.Info("loaded known pairs from cache", slog.Int("count", len(raw)))
}

// saveCache writes the catalog to the cache file.
func (c *Catalog) saveCache() {
	c.mu.Lock()
	data, err := json.MarshalIndent(c.known, "", "  ")
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("failed to encode pairs cache", slog.String("error", err.Error()))
		return
	}

	if err := os.WriteFile(c.cfg.CacheFile, data, 0o644); err != nil {
		c.logger.Error("failed to write pairs cache", slog.String("error", err.Error()))
	}
}
