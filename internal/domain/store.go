package domain

import (
	"context"
	"time"
)

// SignalStore persists signals and their outcomes.
type SignalStore interface {
	// Insert stores a new signal. The caller assigns the ID.
	Insert(ctx context.Context, sig Signal) error
	// Exists reports whether an active signal is open for (symbol, direction).
	Exists(ctx context.Context, symbol string, direction Direction) (bool, error)
	// ListActive returns all open signals.
	ListActive(ctx context.Context) ([]Signal, error)
	// Close marks the signal inactive and records its outcome in a single
	// logical unit. Closing an already-closed signal returns ErrAlreadyClosed
	// and writes nothing.
	Close(ctx context.Context, id string, finalSpread, priceChangePercent float64, outcome Outcome) (SignalOutcome, error)
	// TokenStats aggregates historical outcomes for one symbol.
	TokenStats(ctx context.Context, symbol string) (TokenStats, error)
	// Stats aggregates outcomes across all symbols.
	Stats(ctx context.Context) (Stats, error)
	// ListClosedBefore returns signals closed strictly before the cutoff,
	// for archival.
	ListClosedBefore(ctx context.Context, before time.Time) ([]Signal, error)
}

// PriceHistoryStore persists CEX/DEX price observations for charting.
type PriceHistoryStore interface {
	Insert(ctx context.Context, p PricePoint) error
	// History returns points for a symbol observed since the given time,
	// oldest first.
	History(ctx context.Context, symbol string, since time.Time) ([]PricePoint, error)
	// ListBefore returns points older than the cutoff, for archival.
	ListBefore(ctx context.Context, before time.Time) ([]PricePoint, error)
	// DeleteBefore removes points older than the cutoff and reports how many
	// were removed.
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
