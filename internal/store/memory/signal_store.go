// Package memory provides in-memory store implementations used by tests and
// by modes that run without a database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/spreadbot/internal/domain"
)

// SignalStore implements domain.SignalStore in memory.
type SignalStore struct {
	mu       sync.Mutex
	signals  map[string]domain.Signal
	outcomes map[string]domain.SignalOutcome
}

// NewSignalStore creates an empty in-memory signal store.
func NewSignalStore() *SignalStore {
	return &SignalStore{
		signals:  make(map[string]domain.Signal),
		outcomes: make(map[string]domain.SignalOutcome),
	}
}

// Insert stores a new signal.
func (s *SignalStore) Insert(_ context.Context, sig domain.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.signals[sig.ID]; ok {
		return fmt.Errorf("memory: insert signal %s: %w", sig.ID, domain.ErrAlreadyExists)
	}
	s.signals[sig.ID] = sig
	return nil
}

// Exists reports whether an active signal is open for (symbol, direction).
func (s *SignalStore) Exists(_ context.Context, symbol string, direction domain.Direction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sig := range s.signals {
		if sig.IsActive && sig.Symbol == symbol && sig.Direction == direction {
			return true, nil
		}
	}
	return false, nil
}

// ListActive returns all open signals, oldest first.
func (s *SignalStore) ListActive(_ context.Context) ([]domain.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Signal
	for _, sig := range s.signals {
		if sig.IsActive {
			out = append(out, sig)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Close flips the signal inactive and records its outcome. A second close of
// the same signal returns domain.ErrAlreadyClosed and changes nothing.
func (s *SignalStore) Close(_ context.Context, id string, finalSpread, priceChangePercent float64, outcome domain.Outcome) (domain.SignalOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sig, ok := s.signals[id]
	if !ok || !sig.IsActive {
		return domain.SignalOutcome{}, fmt.Errorf("memory: close signal %s: %w", id, domain.ErrAlreadyClosed)
	}

	closedAt := time.Now().UTC()
	sig.IsActive = false
	sig.ClosedAt = &closedAt
	s.signals[id] = sig

	out := domain.SignalOutcome{
		SignalID:           id,
		Outcome:            outcome,
		InitialSpread:      sig.SpreadPercent,
		FinalSpread:        finalSpread,
		PriceChangePercent: priceChangePercent,
		ClosedAt:           closedAt,
	}
	s.outcomes[id] = out
	return out, nil
}

// TokenStats aggregates historical outcomes for one symbol.
func (s *SignalStore) TokenStats(_ context.Context, symbol string) (domain.TokenStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := domain.TokenStats{Symbol: symbol}
	var pnlSum, spreadSum float64

	for id, out := range s.outcomes {
		sig := s.signals[id]
		if sig.Symbol != symbol {
			continue
		}
		stats.Total++
		pnlSum += out.PriceChangePercent
		spreadSum += sig.SpreadPercent
		if sig.SpreadPercent > stats.MaxSpread {
			stats.MaxSpread = sig.SpreadPercent
		}
		switch out.Outcome {
		case domain.OutcomeWin:
			stats.Wins++
		case domain.OutcomeDraw:
			stats.Draws++
		case domain.OutcomeLose:
			stats.Losses++
		}
	}

	if stats.Total > 0 {
		stats.WinRate = float64(stats.Wins) / float64(stats.Total) * 100
		stats.AvgPnL = pnlSum / float64(stats.Total)
		stats.AvgSpread = spreadSum / float64(stats.Total)
	}
	return stats, nil
}

// Stats aggregates outcomes across all symbols.
func (s *SignalStore) Stats(_ context.Context) (domain.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats domain.Stats
	var spreadSum, changeSum float64

	for id, out := range s.outcomes {
		sig := s.signals[id]
		stats.TotalSignals++
		spreadSum += sig.SpreadPercent
		changeSum += out.PriceChangePercent
		switch out.Outcome {
		case domain.OutcomeWin:
			stats.Wins++
		case domain.OutcomeDraw:
			stats.Draws++
		case domain.OutcomeLose:
			stats.Losses++
		}
	}

	if stats.TotalSignals > 0 {
		stats.AvgSpread = spreadSum / float64(stats.TotalSignals)
		stats.AvgChange = changeSum / float64(stats.TotalSignals)
	}
	return stats, nil
}

// ListClosedBefore returns signals closed strictly before the cutoff, oldest
// first.
func (s *SignalStore) ListClosedBefore(_ context.Context, before time.Time) ([]domain.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Signal
	for _, sig := range s.signals {
		if !sig.IsActive && sig.ClosedAt != nil && sig.ClosedAt.Before(before) {
			out = append(out, sig)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ClosedAt.Before(*out[j].ClosedAt)
	})
	return out, nil
}

// Outcome returns the recorded outcome for a signal, if any. Test helper.
func (s *SignalStore) Outcome(id string) (domain.SignalOutcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, ok := s.outcomes[id]
	return out, ok
}
