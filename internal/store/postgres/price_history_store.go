package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/spreadbot/internal/domain"
)

// PriceHistoryStore implements domain.PriceHistoryStore using PostgreSQL.
type PriceHistoryStore struct {
	pool *pgxpool.Pool
}

// NewPriceHistoryStore creates a new PriceHistoryStore backed by the given
// connection pool.
func NewPriceHistoryStore(pool *pgxpool.Pool) *PriceHistoryStore {
	return &PriceHistoryStore{pool: pool}
}

const pricePointSelectCols = `symbol, chain, cex_price, dex_price, spread_percent, ts`

func scanPricePointRows(rows pgx.Rows) ([]domain.PricePoint, error) {
	var points []domain.PricePoint
	for rows.Next() {
		var p domain.PricePoint
		if err := rows.Scan(
			&p.Symbol, &p.Chain, &p.CexPrice, &p.DexPrice,
			&p.SpreadPercent, &p.Timestamp,
		); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// Insert stores one price observation.
func (s *PriceHistoryStore) Insert(ctx context.Context, p domain.PricePoint) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO price_history (symbol, chain, cex_price, dex_price, spread_percent, ts)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.Symbol, p.Chain, p.CexPrice, p.DexPrice, p.SpreadPercent, p.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert price point: %w", err)
	}
	return nil
}

// History returns points for a symbol observed since the given time, oldest
// first.
func (s *PriceHistoryStore) History(ctx context.Context, symbol string, since time.Time) ([]domain.PricePoint, error) {
	query := `SELECT ` + pricePointSelectCols + `
		FROM price_history
		WHERE symbol = $1 AND ts >= $2
		ORDER BY ts ASC`

	rows, err := s.pool.Query(ctx, query, symbol, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: price history for %s: %w", symbol, err)
	}
	defer rows.Close()

	points, err := scanPricePointRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan price history: %w", err)
	}
	return points, nil
}

// ListBefore returns all points with ts strictly before the given time (for
// archiving).
func (s *PriceHistoryStore) ListBefore(ctx context.Context, before time.Time) ([]domain.PricePoint, error) {
	query := `SELECT ` + pricePointSelectCols + `
		FROM price_history
		WHERE ts < $1
		ORDER BY ts ASC`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list price points before: %w", err)
	}
	defer rows.Close()

	return scanPricePointRows(rows)
}

// DeleteBefore deletes all points with ts before the given time. Returns the
// number deleted.
func (s *PriceHistoryStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM price_history WHERE ts < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete price points before: %w", err)
	}
	return tag.RowsAffected(), nil
}
