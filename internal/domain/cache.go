package domain

import (
	"context"
	"time"
)

// QuoteCache caches DEX search results so repeated discovery lookups within
// the TTL do not hit the external API again. A miss is (nil, false, nil).
type QuoteCache interface {
	GetSearch(ctx context.Context, symbol string) ([]DexPair, bool, error)
	SetSearch(ctx context.Context, symbol string, pairs []DexPair, ttl time.Duration) error
}
