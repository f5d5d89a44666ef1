// Package scanner detects spread opportunities between exchange futures
// prices and DEX spot prices and turns the survivors into stored signals.
package scanner

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/spreadbot/internal/config"
	"github.com/alanyoungcy/spreadbot/internal/domain"
	"github.com/alanyoungcy/spreadbot/internal/validate"
)

// depthProbeUSD is the notional used when probing executable order book
// prices.
const depthProbeUSD = 5_000

// PriceSource supplies the current exchange price snapshot.
type PriceSource interface {
	Prices() map[string]float64
}

// ExchangeClient is the subset of the futures REST client the scanner uses.
type ExchangeClient interface {
	FuturesTickers(ctx context.Context) ([]domain.Ticker, error)
	PriceChange24h(ctx context.Context, coin string) (float64, error)
	OrderBookDepth(ctx context.Context, coin string, amountUSD float64) (domain.OrderBookDepth, error)
	CachedDepositStatus(coin string) domain.DepositStatus
}

// DexClient is the subset of the DEX quote client the scanner uses.
type DexClient interface {
	PairsByAddresses(ctx context.Context, chainID string, addresses []string) ([]domain.DexPair, error)
}

// PairCatalog supplies the known-pair universe and accepts discovery
// triggers for symbols not yet in it.
type PairCatalog interface {
	Discover(ctx context.Context, prices map[string]float64)
	BatchCandidates() map[string][]string
}

// Scanner runs the detection pipeline: collect both price sides, filter
// candidates, and persist the signals that survive every gate.
type Scanner struct {
	cfg       config.ScannerConfig
	feed      PriceSource
	exchange  ExchangeClient
	dex       DexClient
	catalog   PairCatalog
	validator *validate.TokenValidator
	signals   domain.SignalStore
	history   domain.PriceHistoryStore
	logger    *slog.Logger

	// cooldown records the last signal time per (symbol, direction) so a
	// persistent spread does not re-fire every cycle.
	cooldownMu sync.Mutex
	cooldown   map[string]time.Time

	now func() time.Time
}

// New creates a Scanner. history may be nil to skip chart history recording.
func New(
	cfg config.ScannerConfig,
	feed PriceSource,
	exchange ExchangeClient,
	dex DexClient,
	catalog PairCatalog,
	validator *validate.TokenValidator,
	signals domain.SignalStore,
	history domain.PriceHistoryStore,
	logger *slog.Logger,
) *Scanner {
	return &Scanner{
		cfg:       cfg,
		feed:      feed,
		exchange:  exchange,
		dex:       dex,
		catalog:   catalog,
		validator: validator,
		signals:   signals,
		history:   history,
		logger:    logger.With(slog.String("component", "scanner")),
		cooldown:  make(map[string]time.Time),
		now:       time.Now,
	}
}

// Scan runs one detection cycle and returns the new signals, best first
// (quality score descending, net profit breaking ties).
func (s *Scanner) Scan(ctx context.Context) ([]domain.Signal, error) {
	prices := s.feed.Prices()
	if len(prices) == 0 {
		// The stream has nothing yet; fall back to one bulk REST fetch.
		tickers, err := s.exchange.FuturesTickers(ctx)
		if err != nil {
			return nil, err
		}
		prices = make(map[string]float64, len(tickers))
		for _, t := range tickers {
			prices[t.Symbol] = t.LastPrice
		}
	}
	if len(prices) == 0 {
		s.logger.Warn("no exchange prices available")
		return nil, nil
	}

	// Kick discovery for unknown symbols. The catalog drops the trigger if
	// a run is already in flight.
	go s.catalog.Discover(ctx, prices)

	batches := s.catalog.BatchCandidates()
	if len(batches) == 0 {
		s.logger.Info("no known pairs to scan yet")
		return nil, nil
	}

	var (
		mu      sync.Mutex
		signals []domain.Signal
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.ChainConcurrency)

	for chain, addresses := range batches {
		chain, addresses := chain, addresses
		g.Go(func() error {
			dexPairs, err := s.dex.PairsByAddresses(gctx, chain, addresses)
			if err != nil {
				// One failed chain must not sink the whole cycle.
				s.logger.Error("batch fetch failed",
					slog.String("chain", chain),
					slog.String("error", err.Error()),
				)
				return nil
			}

			for i := range dexPairs {
				sig, ok := s.processPair(gctx, &dexPairs[i], prices)
				if !ok {
					continue
				}
				mu.Lock()
				signals = append(signals, sig)
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(signals, func(i, j int) bool {
		if signals[i].QualityScore != signals[j].QualityScore {
			return signals[i].QualityScore > signals[j].QualityScore
		}
		return signals[i].NetProfit > signals[j].NetProfit
	})

	return signals, nil
}

// processPair pushes one DEX pair through every gate and, when all pass,
// persists and returns the resulting signal.
func (s *Scanner) processPair(ctx context.Context, pair *domain.DexPair, prices map[string]float64) (domain.Signal, bool) {
	symbol := pair.Symbol

	exchangePrice, listed := prices[symbol]
	if !listed || s.isBlacklisted(symbol) {
		return domain.Signal{}, false
	}
	if exchangePrice <= 0 || pair.PriceUSD <= 0 {
		return domain.Signal{}, false
	}

	spread := (pair.PriceUSD - exchangePrice) / exchangePrice * 100
	absSpread := math.Abs(spread)

	s.recordPricePoint(ctx, symbol, pair, exchangePrice, spread)

	if ok, reason := s.validator.ValidateToken(symbol, pair.Chain, pair.PriceUSD, exchangePrice, pair.TokenAddress); !ok {
		s.logger.Debug("token rejected",
			slog.String("symbol", symbol),
			slog.String("reason", reason),
		)
		return domain.Signal{}, false
	}

	if absSpread < s.cfg.MinSpreadPercent || absSpread > s.cfg.MaxSpreadPercent {
		return domain.Signal{}, false
	}

	netProfit := s.validator.NetProfit(absSpread)
	if netProfit < s.cfg.MinNetProfit {
		return domain.Signal{}, false
	}

	if pair.LiquidityUSD < s.cfg.MinLiquidityUSD || pair.Volume24hUSD < s.cfg.MinVolume24hUSD {
		return domain.Signal{}, false
	}
	if pair.Txns24h < s.cfg.MinTxns24h {
		return domain.Signal{}, false
	}
	if pair.LiquidityUSD > 0 && pair.Volume24hUSD/pair.LiquidityUSD < s.cfg.MinTurnoverRatio {
		return domain.Signal{}, false
	}
	// FDV of zero means the API did not report one; only a reported low FDV
	// is disqualifying.
	if pair.FDVUSD > 0 && pair.FDVUSD < s.cfg.MinFDVUSD {
		return domain.Signal{}, false
	}

	if !s.pricesCorrelate(ctx, symbol, pair.PriceChange24h) {
		return domain.Signal{}, false
	}

	depthUSD, ok := s.checkBookDepth(ctx, symbol)
	if !ok {
		return domain.Signal{}, false
	}

	direction := domain.DirectionFor(spread)

	if s.inCooldown(symbol, direction) {
		return domain.Signal{}, false
	}

	exists, err := s.signals.Exists(ctx, symbol, direction)
	if err != nil {
		s.logger.Error("duplicate check failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
		return domain.Signal{}, false
	}
	if exists {
		return domain.Signal{}, false
	}

	stats, err := s.signals.TokenStats(ctx, symbol)
	if err != nil {
		stats = domain.TokenStats{Symbol: symbol}
	}

	deposit := s.exchange.CachedDepositStatus(symbol)

	sig := domain.Signal{
		ID:              uuid.NewString(),
		Symbol:          symbol,
		Direction:       direction,
		SpreadPercent:   absSpread,
		NetProfit:       netProfit,
		ExchangePrice:   exchangePrice,
		DexPrice:        pair.PriceUSD,
		Chain:           pair.Chain,
		DexName:         pair.DexName,
		DexURL:          pair.URL,
		LiquidityUSD:    pair.LiquidityUSD,
		Volume24hUSD:    pair.Volume24hUSD,
		QualityScore:    qualityScore(s.cfg.Score, pair.LiquidityUSD, netProfit, stats.WinRate),
		DepositEnabled:  deposit.DepositEnabled,
		WithdrawEnabled: deposit.WithdrawEnabled,
		CreatedAt:       s.now().UTC(),
		IsActive:        true,
	}

	if err := s.signals.Insert(ctx, sig); err != nil {
		s.logger.Error("signal insert failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
		return domain.Signal{}, false
	}

	s.markCooldown(symbol, direction)

	s.logger.Info("new signal",
		slog.String("symbol", symbol),
		slog.String("direction", string(direction)),
		slog.Float64("spread_percent", absSpread),
		slog.Float64("net_profit", netProfit),
		slog.Float64("liquidity_usd", pair.LiquidityUSD),
		slog.Float64("depth_usd", depthUSD),
	)

	return sig, true
}

// --------------------------------------------------------------------------
// Gates
// --------------------------------------------------------------------------

// pricesCorrelate rejects pairs whose 24h moves point in strongly opposite
// directions on the two venues; same ticker, different asset. A failed
// exchange lookup passes the gate rather than stalling the scan.
func (s *Scanner) pricesCorrelate(ctx context.Context, symbol string, dexChange24h float64) bool {
	exchangeChange, err := s.exchange.PriceChange24h(ctx, symbol)
	if err != nil {
		return true
	}

	if (dexChange24h > 20 && exchangeChange < -20) || (dexChange24h < -20 && exchangeChange > 20) {
		s.logger.Debug("price correlation failed",
			slog.String("symbol", symbol),
			slog.Float64("dex_change", dexChange24h),
			slog.Float64("exchange_change", exchangeChange),
		)
		return false
	}
	return true
}

// checkBookDepth verifies the futures book holds enough near-mid liquidity
// to actually execute. Disabled when the configured floor is zero. A lookup
// failure passes the gate.
func (s *Scanner) checkBookDepth(ctx context.Context, symbol string) (float64, bool) {
	if s.cfg.MinBookDepthUSD <= 0 {
		return 0, true
	}

	depth, err := s.exchange.OrderBookDepth(ctx, symbol, depthProbeUSD)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Debug("depth lookup failed",
				slog.String("symbol", symbol),
				slog.String("error", err.Error()),
			)
		}
		return 0, true
	}

	if depth.DepthUSD < s.cfg.MinBookDepthUSD {
		s.logger.Debug("insufficient book depth",
			slog.String("symbol", symbol),
			slog.Float64("depth_usd", depth.DepthUSD),
		)
		return depth.DepthUSD, false
	}
	return depth.DepthUSD, true
}

func (s *Scanner) inCooldown(symbol string, direction domain.Direction) bool {
	s.cooldownMu.Lock()
	defer s.cooldownMu.Unlock()

	last, ok := s.cooldown[cooldownKey(symbol, direction)]
	if !ok {
		return false
	}
	return s.now().Sub(last) < s.cfg.Cooldown.Duration
}

func (s *Scanner) markCooldown(symbol string, direction domain.Direction) {
	s.cooldownMu.Lock()
	s.cooldown[cooldownKey(symbol, direction)] = s.now()
	s.cooldownMu.Unlock()
}

func cooldownKey(symbol string, direction domain.Direction) string {
	return symbol + "|" + string(direction)
}

func (s *Scanner) isBlacklisted(symbol string) bool {
	for _, b := range s.cfg.Blacklist {
		if strings.EqualFold(b, symbol) {
			return true
		}
	}
	return false
}

// recordPricePoint stores one observation for chart history. Best effort.
func (s *Scanner) recordPricePoint(ctx context.Context, symbol string, pair *domain.DexPair, exchangePrice, spread float64) {
	if s.history == nil {
		return
	}

	point := domain.PricePoint{
		Symbol:        symbol,
		Chain:         pair.Chain,
		CexPrice:      exchangePrice,
		DexPrice:      pair.PriceUSD,
		SpreadPercent: spread,
		Timestamp:     s.now().UTC(),
	}
	if err := s.history.Insert(ctx, point); err != nil {
		s.logger.Debug("price history insert failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
	}
}
