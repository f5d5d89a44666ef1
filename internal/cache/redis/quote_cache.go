package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alanyoungcy/spreadbot/internal/domain"
	"github.com/redis/go-redis/v9"
)

// QuoteCache implements domain.QuoteCache using Redis strings holding
// JSON-serialized pair lists.
//
// Key schema:
//
//	dex:search:{SYMBOL} - JSON array of DexPair
type QuoteCache struct {
	rdb *redis.Client
}

// NewQuoteCache creates a QuoteCache backed by the given Client.
func NewQuoteCache(c *Client) *QuoteCache {
	return &QuoteCache{rdb: c.Underlying()}
}

func searchKey(symbol string) string { return "dex:search:" + symbol }

// GetSearch returns cached search results for a symbol. The second return
// value is false on a cache miss. An empty cached result is a valid hit: it
// means the last search found nothing.
func (qc *QuoteCache) GetSearch(ctx context.Context, symbol string) ([]domain.DexPair, bool, error) {
	data, err := qc.rdb.Get(ctx, searchKey(symbol)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis: get search %s: %w", symbol, err)
	}

	var pairs []domain.DexPair
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, false, fmt.Errorf("redis: unmarshal search %s: %w", symbol, err)
	}
	return pairs, true, nil
}

// SetSearch caches search results for a symbol with the given TTL.
func (qc *QuoteCache) SetSearch(ctx context.Context, symbol string, pairs []domain.DexPair, ttl time.Duration) error {
	data, err := json.Marshal(pairs)
	if err != nil {
		return fmt.Errorf("redis: marshal search %s: %w", symbol, err)
	}

	if err := qc.rdb.Set(ctx, searchKey(symbol), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set search %s: %w", symbol, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.QuoteCache = (*QuoteCache)(nil)
