// Package tracker watches active signals and closes them once the spread
// between the two venues aligns.
package tracker

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/alanyoungcy/spreadbot/internal/config"
	"github.com/alanyoungcy/spreadbot/internal/domain"
)

// PriceSource supplies the current exchange price snapshot.
type PriceSource interface {
	Prices() map[string]float64
}

// ExchangeClient is the REST fallback when the stream has no price for a
// symbol yet.
type ExchangeClient interface {
	FuturesTickers(ctx context.Context) ([]domain.Ticker, error)
}

// DexQuoter re-quotes the DEX side of a signal.
type DexQuoter interface {
	BestPair(ctx context.Context, symbol string, minLiquidity, minVolume, referencePrice float64) (domain.DexPair, error)
}

// Tracker closes signals whose spread has aligned and classifies the
// outcome.
type Tracker struct {
	cfg      config.TrackerConfig
	feed     PriceSource
	exchange ExchangeClient
	dex      DexQuoter
	signals  domain.SignalStore
	logger   *slog.Logger

	now func() time.Time
}

// New creates a Tracker.
func New(
	cfg config.TrackerConfig,
	feed PriceSource,
	exchange ExchangeClient,
	dex DexQuoter,
	signals domain.SignalStore,
	logger *slog.Logger,
) *Tracker {
	return &Tracker{
		cfg:      cfg,
		feed:     feed,
		exchange: exchange,
		dex:      dex,
		signals:  signals,
		logger:   logger.With(slog.String("component", "tracker")),
		now:      time.Now,
	}
}

// CheckClosures runs one tracking cycle over all active signals and returns
// the ones that closed. A signal missing either price this cycle is skipped,
// not closed; it gets another look next cycle.
func (t *Tracker) CheckClosures(ctx context.Context) ([]domain.ClosedSignal, error) {
	active, err := t.signals.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, nil
	}

	prices := t.feed.Prices()
	if len(prices) == 0 {
		tickers, err := t.exchange.FuturesTickers(ctx)
		if err != nil {
			return nil, err
		}
		prices = make(map[string]float64, len(tickers))
		for _, tk := range tickers {
			prices[tk.Symbol] = tk.LastPrice
		}
	}

	var closed []domain.ClosedSignal
	for _, sig := range active {
		cs, ok := t.checkSignal(ctx, sig, prices)
		if !ok {
			continue
		}
		closed = append(closed, cs)
	}
	return closed, nil
}

func (t *Tracker) checkSignal(ctx context.Context, sig domain.Signal, prices map[string]float64) (domain.ClosedSignal, bool) {
	exchangePrice, ok := prices[sig.Symbol]
	if !ok || exchangePrice <= 0 {
		return domain.ClosedSignal{}, false
	}

	pair, err := t.dex.BestPair(ctx, sig.Symbol, 0, 0, exchangePrice)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			t.logger.Warn("dex re-quote failed",
				slog.String("symbol", sig.Symbol),
				slog.String("error", err.Error()),
			)
		}
		return domain.ClosedSignal{}, false
	}
	if pair.PriceUSD <= 0 {
		return domain.ClosedSignal{}, false
	}

	currentSpread := math.Abs((pair.PriceUSD - exchangePrice) / exchangePrice * 100)
	if currentSpread >= t.cfg.ClosureThreshold {
		return domain.ClosedSignal{}, false
	}

	priceChange := (exchangePrice - sig.ExchangePrice) / sig.ExchangePrice * 100
	if sig.Direction == domain.DirectionShort {
		priceChange = -priceChange
	}

	outcome := t.classify(priceChange)

	if _, err := t.signals.Close(ctx, sig.ID, currentSpread, priceChange, outcome); err != nil {
		if errors.Is(err, domain.ErrAlreadyClosed) {
			return domain.ClosedSignal{}, false
		}
		t.logger.Error("signal close failed",
			slog.String("id", sig.ID),
			slog.String("symbol", sig.Symbol),
			slog.String("error", err.Error()),
		)
		return domain.ClosedSignal{}, false
	}

	align := int(t.now().UTC().Sub(sig.CreatedAt).Seconds())
	if align < 0 {
		align = 0
	}

	t.logger.Info("spread closed",
		slog.String("symbol", sig.Symbol),
		slog.String("outcome", string(outcome)),
		slog.Float64("price_change", priceChange),
		slog.Int("align_seconds", align),
	)

	return domain.ClosedSignal{
		Signal:             sig,
		Outcome:            outcome,
		FinalSpread:        currentSpread,
		PriceChangePercent: priceChange,
		AlignSeconds:       align,
	}, true
}

func (t *Tracker) classify(priceChange float64) domain.Outcome {
	switch {
	case priceChange > t.cfg.WinThreshold:
		return domain.OutcomeWin
	case priceChange < t.cfg.LoseThreshold:
		return domain.OutcomeLose
	default:
		return domain.OutcomeDraw
	}
}
