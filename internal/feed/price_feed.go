// Package feed maintains a live in-memory snapshot of exchange futures
// prices, fed by the real-time WebSocket stream.
package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/spreadbot/internal/domain"
)

// TickerStream is the subset of the WebSocket client the feed needs.
type TickerStream interface {
	Connect(ctx context.Context) error
	SubscribeTickers(ctx context.Context) error
	OnTicker(handler func(domain.Ticker))
	Close() error
}

// PriceFeed holds the latest known futures price per symbol. Updates arrive
// from the WebSocket stream; readers get consistent snapshots via Prices or
// single lookups via Price.
type PriceFeed struct {
	stream TickerStream
	logger *slog.Logger

	mu      sync.RWMutex
	prices  map[string]float64
	updated map[string]time.Time
	started bool
}

// NewPriceFeed creates a PriceFeed on top of the given ticker stream.
func NewPriceFeed(stream TickerStream, logger *slog.Logger) *PriceFeed {
	return &PriceFeed{
		stream:  stream,
		logger:  logger.With(slog.String("component", "price_feed")),
		prices:  make(map[string]float64),
		updated: make(map[string]time.Time),
	}
}

// Start connects the stream, subscribes to all tickers, and begins absorbing
// updates. Calling Start on a running feed logs a warning and returns nil.
func (f *PriceFeed) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.started {
		f.mu.Unlock()
		f.logger.Warn("price feed already started")
		return nil
	}
	f.started = true
	f.mu.Unlock()

	f.stream.OnTicker(f.handleTicker)

	if err := f.stream.Connect(ctx); err != nil {
		return err
	}
	if err := f.stream.SubscribeTickers(ctx); err != nil {
		return err
	}

	f.logger.Info("price feed started")
	return nil
}

// Prices returns a copy of the current price snapshot, keyed by symbol.
func (f *PriceFeed) Prices() map[string]float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make(map[string]float64, len(f.prices))
	for sym, price := range f.prices {
		out[sym] = price
	}
	return out
}

// Price returns the latest price for a symbol and whether one is known.
func (f *PriceFeed) Price(symbol string) (float64, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	price, ok := f.prices[symbol]
	return price, ok
}

// LastUpdate returns when a symbol's price was last refreshed.
func (f *PriceFeed) LastUpdate(symbol string) (time.Time, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ts, ok := f.updated[symbol]
	return ts, ok
}

// Len returns the number of symbols with a known price.
func (f *PriceFeed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.prices)
}

// Close shuts down the underlying stream.
func (f *PriceFeed) Close() error {
	f.logger.Info("price feed stopping")
	return f.stream.Close()
}

// handleTicker records one ticker update. Non-positive prices never reach
// here; the stream filters them.
func (f *PriceFeed) handleTicker(t domain.Ticker) {
	f.mu.Lock()
	f.prices[t.Symbol] = t.LastPrice
	f.updated[t.Symbol] = time.Now()
	f.mu.Unlock()
}
