package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/spreadbot/internal/domain"
)

// PriceHistoryStore implements domain.PriceHistoryStore in memory.
type PriceHistoryStore struct {
	mu     sync.Mutex
	points []domain.PricePoint
}

// NewPriceHistoryStore creates an empty in-memory price history store.
func NewPriceHistoryStore() *PriceHistoryStore {
	return &PriceHistoryStore{}
}

// Insert stores one price observation.
func (s *PriceHistoryStore) Insert(_ context.Context, p domain.PricePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = append(s.points, p)
	return nil
}

// History returns points for a symbol observed since the given time, oldest
// first.
func (s *PriceHistoryStore) History(_ context.Context, symbol string, since time.Time) ([]domain.PricePoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.PricePoint
	for _, p := range s.points {
		if p.Symbol == symbol && !p.Timestamp.Before(since) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// ListBefore returns points older than the cutoff, oldest first.
func (s *PriceHistoryStore) ListBefore(_ context.Context, before time.Time) ([]domain.PricePoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.PricePoint
	for _, p := range s.points {
		if p.Timestamp.Before(before) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// DeleteBefore removes points older than the cutoff and reports how many
// were removed.
func (s *PriceHistoryStore) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.points[:0]
	var removed int64
	for _, p := range s.points {
		if p.Timestamp.Before(before) {
			removed++
			continue
		}
		kept = append(kept, p)
	}
	s.points = kept
	return removed, nil
}
