package scanner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/spreadbot/internal/config"
	"github.com/alanyoungcy/spreadbot/internal/domain"
	"github.com/alanyoungcy/spreadbot/internal/store/memory"
	"github.com/alanyoungcy/spreadbot/internal/validate"
)

type fakeFeed struct {
	prices map[string]float64
}

func (f *fakeFeed) Prices() map[string]float64 { return f.prices }

type fakeExchange struct {
	tickers      []domain.Ticker
	change24h    map[string]float64
	change24hErr error
	depthUSD     map[string]float64
}

func (f *fakeExchange) FuturesTickers(_ context.Context) ([]domain.Ticker, error) {
	return f.tickers, nil
}

func (f *fakeExchange) PriceChange24h(_ context.Context, coin string) (float64, error) {
	if f.change24hErr != nil {
		return 0, f.change24hErr
	}
	return f.change24h[coin], nil
}

func (f *fakeExchange) OrderBookDepth(_ context.Context, coin string, _ float64) (domain.OrderBookDepth, error) {
	d, ok := f.depthUSD[coin]
	if !ok {
		return domain.OrderBookDepth{}, domain.ErrNotFound
	}
	return domain.OrderBookDepth{DepthUSD: d}, nil
}

func (f *fakeExchange) CachedDepositStatus(string) domain.DepositStatus {
	return domain.DepositStatus{DepositEnabled: true, WithdrawEnabled: true}
}

type fakeDex struct {
	pairs map[string][]domain.DexPair
	errs  map[string]error
	calls int
}

func (f *fakeDex) PairsByAddresses(_ context.Context, chainID string, _ []string) ([]domain.DexPair, error) {
	f.calls++
	if err := f.errs[chainID]; err != nil {
		return nil, err
	}
	return f.pairs[chainID], nil
}

type fakeCatalog struct {
	batches map[string][]string
}

func (f *fakeCatalog) Discover(context.Context, map[string]float64) {}

func (f *fakeCatalog) BatchCandidates() map[string][]string { return f.batches }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// goodPair returns a pair that passes every gate against an exchange price
// of 0.001 (spread +5%).
func goodPair() domain.DexPair {
	return domain.DexPair{
		Symbol:         "TURBO",
		Chain:          "bsc",
		DexName:        "pancakeswap",
		PairAddress:    "0xpair",
		TokenAddress:   "0xtoken",
		PriceUSD:       0.00105,
		LiquidityUSD:   500_000,
		Volume24hUSD:   400_000,
		FDVUSD:         10_000_000,
		PriceChange24h: 3.0,
		Txns24h:        500,
		URL:            "https://dexscreener.com/bsc/0xpair",
	}
}

type testEnv struct {
	scanner  *Scanner
	feed     *fakeFeed
	exchange *fakeExchange
	dex      *fakeDex
	signals  *memory.SignalStore
	history  *memory.PriceHistoryStore
}

func newTestEnv(t *testing.T, pairs ...domain.DexPair) *testEnv {
	t.Helper()

	cfg := config.Defaults()

	feed := &fakeFeed{prices: map[string]float64{"TURBO": 0.001, "MEW": 2.0}}
	exchange := &fakeExchange{
		change24h: map[string]float64{},
		depthUSD:  map[string]float64{"TURBO": 50_000, "MEW": 50_000},
	}

	byChain := make(map[string][]domain.DexPair)
	batches := make(map[string][]string)
	for _, p := range pairs {
		byChain[p.Chain] = append(byChain[p.Chain], p)
		batches[p.Chain] = append(batches[p.Chain], p.PairAddress)
	}
	dex := &fakeDex{pairs: byChain}
	catalog := &fakeCatalog{batches: batches}

	validator := validate.NewTokenValidator(cfg.Validator, cfg.Scanner.TotalFeesPercent, discardLogger())
	signals := memory.NewSignalStore()
	history := memory.NewPriceHistoryStore()

	s := New(cfg.Scanner, feed, exchange, dex, catalog, validator, signals, history, discardLogger())

	return &testEnv{
		scanner:  s,
		feed:     feed,
		exchange: exchange,
		dex:      dex,
		signals:  signals,
		history:  history,
	}
}

func TestScanner_CreatesLongSignal(t *testing.T) {
	env := newTestEnv(t, goodPair())

	got, err := env.scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)

	sig := got[0]
	assert.Equal(t, "TURBO", sig.Symbol)
	assert.Equal(t, domain.DirectionLong, sig.Direction)
	assert.InDelta(t, 5.0, sig.SpreadPercent, 1e-9)
	assert.InDelta(t, 5.0-env.scanner.cfg.TotalFeesPercent, sig.NetProfit, 1e-9)
	assert.Equal(t, "bsc", sig.Chain)
	assert.True(t, sig.DepositEnabled)
	assert.True(t, sig.IsActive)
	assert.NotEmpty(t, sig.ID)

	active, err := env.signals.ListActive(context.Background())
	require.NoError(t, err)
	assert.Len(t, active, 1)

	points, err := env.history.History(context.Background(), "TURBO", time.Time{})
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.InDelta(t, 5.0, points[0].SpreadPercent, 1e-9)
}

func TestScanner_ShortDirection(t *testing.T) {
	p := goodPair()
	p.PriceUSD = 0.00095 // 5% below the exchange price
	env := newTestEnv(t, p)

	got, err := env.scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, domain.DirectionShort, got[0].Direction)
	assert.InDelta(t, 5.0, got[0].SpreadPercent, 1e-9)

	// Recorded history keeps the sign.
	points, err := env.history.History(context.Background(), "TURBO", time.Time{})
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.InDelta(t, -5.0, points[0].SpreadPercent, 1e-9)
}

func TestScanner_RejectsBelowGates(t *testing.T) {
	mutations := map[string]func(*domain.DexPair, *testEnv){
		"spread below minimum": func(p *domain.DexPair, _ *testEnv) {
			p.PriceUSD = 0.00102 // 2%
		},
		"spread above maximum": func(p *domain.DexPair, _ *testEnv) {
			p.PriceUSD = 0.00135 // 35%
		},
		"low liquidity": func(p *domain.DexPair, _ *testEnv) {
			p.LiquidityUSD = 100_000
		},
		"low volume": func(p *domain.DexPair, _ *testEnv) {
			p.Volume24hUSD = 100_000
		},
		"too few transactions": func(p *domain.DexPair, _ *testEnv) {
			p.Txns24h = 100
		},
		"low turnover": func(p *domain.DexPair, _ *testEnv) {
			p.LiquidityUSD = 10_000_000
			p.Volume24hUSD = 200_000
		},
		"reported FDV too small": func(p *domain.DexPair, _ *testEnv) {
			p.FDVUSD = 1_000_000
		},
		"zero dex price": func(p *domain.DexPair, _ *testEnv) {
			p.PriceUSD = 0
		},
		"unlisted symbol": func(p *domain.DexPair, _ *testEnv) {
			p.Symbol = "NOSUCH"
		},
		"blacklisted symbol": func(p *domain.DexPair, env *testEnv) {
			p.Symbol = "USDT"
			p.PriceUSD = 1.05
			env.feed.prices["USDT"] = 1.0
		},
		"diverging 24h moves": func(p *domain.DexPair, env *testEnv) {
			p.PriceChange24h = 25
			env.exchange.change24h["TURBO"] = -25
		},
		"shallow order book": func(p *domain.DexPair, env *testEnv) {
			env.exchange.depthUSD["TURBO"] = 5_000
		},
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			p := goodPair()
			env := newTestEnv(t)
			mutate(&p, env)
			env.dex.pairs = map[string][]domain.DexPair{p.Chain: {p}}
			fc := env.scanner.catalog.(*fakeCatalog)
			fc.batches = map[string][]string{p.Chain: {p.PairAddress}}

			got, err := env.scanner.Scan(context.Background())
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestScanner_ZeroFDVAccepted(t *testing.T) {
	p := goodPair()
	p.FDVUSD = 0
	env := newTestEnv(t, p)

	got, err := env.scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestScanner_DepthLookupFailurePassesGate(t *testing.T) {
	env := newTestEnv(t, goodPair())
	env.exchange.depthUSD = map[string]float64{} // every lookup errors

	got, err := env.scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestScanner_DedupAgainstActiveSignal(t *testing.T) {
	env := newTestEnv(t, goodPair())

	ctx := context.Background()
	first, err := env.scanner.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := env.scanner.Scan(ctx)
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestScanner_Cooldown(t *testing.T) {
	env := newTestEnv(t, goodPair())

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	env.scanner.now = func() time.Time { return now }

	ctx := context.Background()
	first, err := env.scanner.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Close the signal so the active-signal dedup no longer applies; the
	// cooldown alone must hold the line.
	_, err = env.signals.Close(ctx, first[0].ID, 1.0, 2.0, domain.OutcomeDraw)
	require.NoError(t, err)

	now = base.Add(2 * time.Minute)
	second, err := env.scanner.Scan(ctx)
	require.NoError(t, err)
	assert.Empty(t, second)

	now = base.Add(6 * time.Minute)
	third, err := env.scanner.Scan(ctx)
	require.NoError(t, err)
	assert.Len(t, third, 1)
}

func TestScanner_OrdersByQualityScore(t *testing.T) {
	strong := goodPair()
	strong.Symbol = "MEW"
	strong.Chain = "solana"
	strong.PairAddress = "So1pair"
	strong.TokenAddress = "So1token"
	strong.PriceUSD = 2.2 // +10% against the 2.0 exchange price
	strong.LiquidityUSD = 2_000_000
	strong.Volume24hUSD = 1_500_000

	env := newTestEnv(t, goodPair(), strong)

	got, err := env.scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "MEW", got[0].Symbol)
	assert.Equal(t, "TURBO", got[1].Symbol)
	assert.GreaterOrEqual(t, got[0].QualityScore, got[1].QualityScore)
}

func TestScanner_FallsBackToRESTPrices(t *testing.T) {
	env := newTestEnv(t, goodPair())
	env.feed.prices = nil
	env.exchange.tickers = []domain.Ticker{{Symbol: "TURBO", LastPrice: 0.001, Volume24h: 1_000_000}}

	got, err := env.scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestScanner_BatchErrorDoesNotSinkCycle(t *testing.T) {
	strong := goodPair()
	strong.Symbol = "MEW"
	strong.Chain = "solana"
	strong.PairAddress = "So1pair"
	strong.TokenAddress = "So1token"
	strong.PriceUSD = 2.1

	env := newTestEnv(t, goodPair(), strong)
	env.dex.errs = map[string]error{"bsc": errors.New("rate limited")}

	got, err := env.scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "MEW", got[0].Symbol)
}

func TestQualityScore(t *testing.T) {
	cfg := config.Defaults().Scanner.Score

	full := qualityScore(cfg, cfg.LiquidityNorm, cfg.NetProfitNorm, 100)
	assert.InDelta(t, 10.0, full, 1e-9)

	zero := qualityScore(cfg, 0, 0, 0)
	assert.InDelta(t, 0.0, zero, 1e-9)

	// Inputs beyond the norms clamp instead of overflowing.
	over := qualityScore(cfg, cfg.LiquidityNorm*10, cfg.NetProfitNorm*10, 250)
	assert.InDelta(t, 10.0, over, 1e-9)

	mid := qualityScore(cfg, cfg.LiquidityNorm/2, cfg.NetProfitNorm/2, 50)
	assert.InDelta(t, 5.0, mid, 1e-9)
}
