package dexscreener

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/alanyoungcy/spreadbot/internal/domain"
)

// Client is the REST client for the DexScreener public API. It provides
// token search and batch pair lookups, with an optional shared cache in
// front of the search endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client

	// cache fronts the search endpoint. May be nil, in which case every
	// search hits the API.
	cache domain.QuoteCache

	batchSize int
	cacheTTL  time.Duration
}

// NewClient creates a new DexScreener API client.
//
// baseURL is the API root, e.g. "https://api.dexscreener.com". cache may be
// nil to disable search caching. batchSize caps addresses per batch lookup
// (the API allows at most 30).
func NewClient(baseURL string, cache domain.QuoteCache, batchSize int, cacheTTL time.Duration) *Client {
	if batchSize <= 0 || batchSize > 30 {
		batchSize = 30
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache:     cache,
		batchSize: batchSize,
		cacheTTL:  cacheTTL,
	}
}

// Search looks up DEX pairs whose base token symbol matches the given symbol
// exactly (case-insensitive). Results are sorted by liquidity descending and
// cached for the configured TTL.
func (c *Client) Search(ctx context.Context, symbol string) ([]domain.DexPair, error) {
	symbol = strings.ToUpper(symbol)

	if c.cache != nil {
		if pairs, ok, err := c.cache.GetSearch(ctx, symbol); err == nil && ok {
			return pairs, nil
		}
	}

	params := url.Values{}
	params.Set("q", symbol)

	body, err := c.doGet(ctx, "/latest/dex/search?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("dexscreener: search %s: %w", symbol, err)
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("dexscreener: decode search results: %w", err)
	}

	pairs := make([]domain.DexPair, 0, len(resp.Pairs))
	for i := range resp.Pairs {
		p := resp.Pairs[i].ToDomainPair()
		if p.Symbol != symbol || p.PriceUSD <= 0 {
			continue
		}
		pairs = append(pairs, p)
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].LiquidityUSD > pairs[j].LiquidityUSD
	})

	if c.cache != nil {
		_ = c.cache.SetSearch(ctx, symbol, pairs, c.cacheTTL)
	}

	return pairs, nil
}

// PairsByAddresses fetches pairs on a single chain by their pair addresses,
// splitting the lookup into API-sized batches. Pairs without a positive
// price are dropped.
func (c *Client) PairsByAddresses(ctx context.Context, chainID string, addresses []string) ([]domain.DexPair, error) {
	if len(addresses) == 0 {
		return nil, nil
	}

	var pairs []domain.DexPair
	for start := 0; start < len(addresses); start += c.batchSize {
		end := start + c.batchSize
		if end > len(addresses) {
			end = len(addresses)
		}

		batch, err := c.fetchBatch(ctx, chainID, addresses[start:end])
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, batch...)
	}

	return pairs, nil
}

// BestPair returns the first pair from search results that meets the given
// liquidity and volume floors. When referencePrice is positive, pairs whose
// price differs from it by more than 2x are skipped as a different token
// with the same ticker.
func (c *Client) BestPair(ctx context.Context, symbol string, minLiquidity, minVolume, referencePrice float64) (domain.DexPair, error) {
	pairs, err := c.Search(ctx, symbol)
	if err != nil {
		return domain.DexPair{}, err
	}

	for _, p := range pairs {
		if p.LiquidityUSD < minLiquidity || p.Volume24hUSD < minVolume {
			continue
		}

		if referencePrice > 0 {
			ratio := p.PriceUSD / referencePrice
			if ratio > 2.0 || ratio < 0.5 {
				continue
			}
		}

		return p, nil
	}

	return domain.DexPair{}, fmt.Errorf("dexscreener: best pair for %s: %w", symbol, domain.ErrNotFound)
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// fetchBatch performs one batch pair lookup on a single chain.
func (c *Client) fetchBatch(ctx context.Context, chainID string, addresses []string) ([]domain.DexPair, error) {
	path := fmt.Sprintf("/latest/dex/pairs/%s/%s",
		url.PathEscape(chainID), url.PathEscape(strings.Join(addresses, ",")))

	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("dexscreener: batch pairs on %s: %w", chainID, err)
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("dexscreener: decode batch pairs: %w", err)
	}

	pairs := make([]domain.DexPair, 0, len(resp.Pairs))
	for i := range resp.Pairs {
		p := resp.Pairs[i].ToDomainPair()
		if p.PriceUSD <= 0 {
			continue
		}
		pairs = append(pairs, p)
	}

	return pairs, nil
}

// doGet sends an unauthenticated GET request to the API.
func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, string(body))
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: %s", domain.ErrRateLimited, string(body))
	default:
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
}
