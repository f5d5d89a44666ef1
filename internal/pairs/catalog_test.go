package pairs

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/spreadbot/internal/config"
	"github.com/alanyoungcy/spreadbot/internal/domain"
	"github.com/alanyoungcy/spreadbot/internal/validate"
)

type fakeSource struct {
	mu    sync.Mutex
	pairs map[string]domain.DexPair
	calls int
}

func (s *fakeSource) BestPair(_ context.Context, symbol string, _, _, _ float64) (domain.DexPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	p, ok := s.pairs[symbol]
	if !ok {
		return domain.DexPair{}, domain.ErrNotFound
	}
	return p, nil
}

func newTestCatalog(t *testing.T, source PairSource) *Catalog {
	t.Helper()

	cfg := config.Defaults()
	cfg.Discovery.CacheFile = filepath.Join(t.TempDir(), "pairs.json")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	validator := validate.NewTokenValidator(cfg.Validator, cfg.Scanner.TotalFeesPercent, logger)

	c := NewCatalog(source, validator, cfg.Discovery, cfg.Scanner, logger)
	c.sleep = func(time.Duration) {}
	return c
}

func goodPair(symbol, chain string) domain.DexPair {
	return domain.DexPair{
		Symbol:       symbol,
		Chain:        chain,
		DexName:      "raydium",
		PairAddress:  "addr-" + symbol,
		PriceUSD:     1.0,
		LiquidityUSD: 500_000,
		Volume24hUSD: 400_000,
	}
}

func TestCatalog_DiscoverAddsValidPairs(t *testing.T) {
	source := &fakeSource{pairs: map[string]domain.DexPair{
		"AAA": goodPair("AAA", "solana"),
		"BBB": goodPair("BBB", "bsc"),
	}}
	c := newTestCatalog(t, source)

	c.Discover(context.Background(), map[string]float64{
		"AAA": 1.0,
		"BBB": 1.0,
		"CCC": 1.0, // no pair found
	})

	if c.Len() != 2 {
		t.Fatalf("expected 2 known pairs, got %d", c.Len())
	}

	pair, ok := c.Pair("AAA")
	if !ok || !pair.Verified || pair.Chain != "solana" {
		t.Errorf("unexpected AAA pair: %+v ok=%v", pair, ok)
	}
}

func TestCatalog_DiscoverSkipsBlacklistAndKnown(t *testing.T) {
	source := &fakeSource{pairs: map[string]domain.DexPair{
		"AAA":  goodPair("AAA", "solana"),
		"USDT": goodPair("USDT", "solana"),
		"WETH": goodPair("WETH", "ethereum"),
	}}
	c := newTestCatalog(t, source)

	c.Discover(context.Background(), map[string]float64{"AAA": 1.0, "USDT": 1.0, "WETH": 1.0})
	if c.Len() != 1 {
		t.Fatalf("expected only AAA discovered, got %d pairs", c.Len())
	}

	// A second run finds nothing new and never hits the API.
	before := source.calls
	c.Discover(context.Background(), map[string]float64{"AAA": 1.0, "USDT": 1.0})
	if source.calls != before {
		t.Errorf("expected no lookups for known/blacklisted symbols, got %d extra", source.calls-before)
	}
}

func TestCatalog_DiscoverRejectsChainImpossible(t *testing.T) {
	source := &fakeSource{pairs: map[string]domain.DexPair{
		"ETH": goodPair("ETH", "solana"), // impossible
	}}
	c := newTestCatalog(t, source)

	c.Discover(context.Background(), map[string]float64{"ETH": 3500})
	if c.Len() != 0 {
		t.Error("expected ETH on solana to be rejected")
	}
}

func TestCatalog_DiscoverSingleFlight(t *testing.T) {
	source := &fakeSource{pairs: map[string]domain.DexPair{}}
	c := newTestCatalog(t, source)

	// Simulate an in-flight run: a concurrent trigger must return without
	// doing any work.
	c.discovering.Store(true)
	c.Discover(context.Background(), map[string]float64{"AAA": 1.0})
	if source.calls != 0 {
		t.Errorf("expected no lookups while discovery is in flight, got %d", source.calls)
	}
	c.discovering.Store(false)
}

func TestCatalog_BatchCandidatesGroupsByChain(t *testing.T) {
	source := &fakeSource{pairs: map[string]domain.DexPair{
		"AAA": goodPair("AAA", "solana"),
		"BBB": goodPair("BBB", "solana"),
		"DDD": goodPair("DDD", "bsc"),
	}}
	c := newTestCatalog(t, source)
	c.Discover(context.Background(), map[string]float64{"AAA": 1.0, "BBB": 1.0, "DDD": 1.0})

	batches := c.BatchCandidates()
	if len(batches["solana"]) != 2 {
		t.Errorf("expected 2 solana addresses, got %v", batches["solana"])
	}
	if len(batches["bsc"]) != 1 {
		t.Errorf("expected 1 bsc address, got %v", batches["bsc"])
	}
}

func TestCatalog_SymbolByAddress(t *testing.T) {
	source := &fakeSource{pairs: map[string]domain.DexPair{
		"AAA": goodPair("AAA", "solana"),
	}}
	c := newTestCatalog(t, source)
	c.Discover(context.Background(), map[string]float64{"AAA": 1.0})

	if sym, ok := c.SymbolByAddress("addr-AAA"); !ok || sym != "AAA" {
		t.Errorf("expected AAA, got %q ok=%v", sym, ok)
	}
	if _, ok := c.SymbolByAddress("missing"); ok {
		t.Error("expected no symbol for unknown address")
	}
}

func TestCatalog_InvalidateBlocksRediscovery(t *testing.T) {
	source := &fakeSource{pairs: map[string]domain.DexPair{
		"AAA": goodPair("AAA", "solana"),
	}}
	c := newTestCatalog(t, source)
	c.Discover(context.Background(), map[string]float64{"AAA": 1.0})

	c.Invalidate("AAA")
	if c.Len() != 0 {
		t.Fatal("expected pair removed")
	}

	c.Discover(context.Background(), map[string]float64{"AAA": 1.0})
	if c.Len() != 0 {
		t.Error("expected invalidated symbol to stay out for the session")
	}
}

func TestCatalog_CacheRoundTrip(t *testing.T) {
	cacheFile := filepath.Join(t.TempDir(), "pairs.json")

	cfg := config.Defaults()
	cfg.Discovery.CacheFile = cacheFile
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	validator := validate.NewTokenValidator(cfg.Validator, cfg.Scanner.TotalFeesPercent, logger)

	source := &fakeSource{pairs: map[string]domain.DexPair{
		"AAA": goodPair("AAA", "solana"),
	}}

	c1 := NewCatalog(source, validator, cfg.Discovery, cfg.Scanner, logger)
	c1.sleep = func(time.Duration) {}
	c1.Discover(context.Background(), map[string]float64{"AAA": 1.0})

	// The cache file uses the original flat JSON shape.
	raw, err := os.ReadFile(cacheFile)
	if err != nil {
		t.Fatalf("read cache: %v", err)
	}
	var onDisk map[string]map[string]any
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		t.Fatalf("parse cache: %v", err)
	}
	if onDisk["AAA"]["address"] != "addr-AAA" {
		t.Errorf("unexpected cache entry: %v", onDisk["AAA"])
	}
	if onDisk["AAA"]["verified"] != true {
		t.Errorf("expected verified flag persisted: %v", onDisk["AAA"])
	}

	// A fresh catalog loads the same pairs.
	c2 := NewCatalog(source, validator, cfg.Discovery, cfg.Scanner, logger)
	if c2.Len() != 1 {
		t.Fatalf("expected 1 pair after reload, got %d", c2.Len())
	}
	pair, _ := c2.Pair("AAA")
	if pair.Symbol != "AAA" || !pair.Verified {
		t.Errorf("unexpected reloaded pair: %+v", pair)
	}
}

func TestCatalog_CorruptCacheStartsEmpty(t *testing.T) {
	cacheFile := filepath.Join(t.TempDir(), "pairs.json")
	if err := os.WriteFile(cacheFile, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Defaults()
	cfg.Discovery.CacheFile = cacheFile
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	validator := validate.NewTokenValidator(cfg.Validator, cfg.Scanner.TotalFeesPercent, logger)

	c := NewCatalog(&fakeSource{}, validator, cfg.Discovery, cfg.Scanner, logger)
	if c.Len() != 0 {
		t.Errorf("expected empty catalog for corrupt cache, got %d", c.Len())
	}
}
