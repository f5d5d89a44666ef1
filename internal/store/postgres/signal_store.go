package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/spreadbot/internal/domain"
)

// SignalStore implements domain.SignalStore using PostgreSQL.
type SignalStore struct {
	pool *pgxpool.Pool
}

// NewSignalStore creates a new SignalStore backed by the given connection pool.
func NewSignalStore(pool *pgxpool.Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

const signalSelectCols = `id, symbol, direction, spread_percent, net_profit,
	exchange_price, dex_price, chain, dex_name, dex_url,
	liquidity_usd, volume_24h_usd, quality_score,
	deposit_enabled, withdraw_enabled, created_at, closed_at, is_active`

func scanSignalRows(rows pgx.Rows) ([]domain.Signal, error) {
	var signals []domain.Signal
	for rows.Next() {
		var s domain.Signal
		if err := rows.Scan(
			&s.ID, &s.Symbol, &s.Direction, &s.SpreadPercent, &s.NetProfit,
			&s.ExchangePrice, &s.DexPrice, &s.Chain, &s.DexName, &s.DexURL,
			&s.LiquidityUSD, &s.Volume24hUSD, &s.QualityScore,
			&s.DepositEnabled, &s.WithdrawEnabled, &s.CreatedAt, &s.ClosedAt, &s.IsActive,
		); err != nil {
			return nil, err
		}
		signals = append(signals, s)
	}
	return signals, rows.Err()
}

// Insert stores a new signal.
func (s *SignalStore) Insert(ctx context.Context, sig domain.Signal) error {
	const query = `
		INSERT INTO signals (
			id, symbol, direction, spread_percent, net_profit,
			exchange_price, dex_price, chain, dex_name, dex_url,
			liquidity_usd, volume_24h_usd, quality_score,
			deposit_enabled, withdraw_enabled, created_at, is_active
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13,
			$14, $15, $16, $17
		)`

	_, err := s.pool.Exec(ctx, query,
		sig.ID, sig.Symbol, sig.Direction, sig.SpreadPercent, sig.NetProfit,
		sig.ExchangePrice, sig.DexPrice, sig.Chain, sig.DexName, sig.DexURL,
		sig.LiquidityUSD, sig.Volume24hUSD, sig.QualityScore,
		sig.DepositEnabled, sig.WithdrawEnabled, sig.CreatedAt, sig.IsActive,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert signal: %w", err)
	}
	return nil
}

// Exists reports whether an active signal is open for (symbol, direction).
func (s *SignalStore) Exists(ctx context.Context, symbol string, direction domain.Direction) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM signals
			WHERE symbol = $1 AND direction = $2 AND is_active
		)`,
		symbol, direction,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: check active signal: %w", err)
	}
	return exists, nil
}

// ListActive returns all open signals, oldest first.
func (s *SignalStore) ListActive(ctx context.Context) ([]domain.Signal, error) {
	query := `SELECT ` + signalSelectCols + ` FROM signals WHERE is_active ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active signals: %w", err)
	}
	defer rows.Close()

	signals, err := scanSignalRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan active signals: %w", err)
	}
	return signals, nil
}

// Close flips the signal inactive and writes its outcome row in one
// transaction. Closing a signal that is already inactive (or unknown)
// returns domain.ErrAlreadyClosed and writes nothing.
func (s *SignalStore) Close(ctx context.Context, id string, finalSpread, priceChangePercent float64, outcome domain.Outcome) (domain.SignalOutcome, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.SignalOutcome{}, fmt.Errorf("postgres: begin close signal: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	closedAt := time.Now().UTC()

	var initialSpread float64
	err = tx.QueryRow(ctx,
		`UPDATE signals
		 SET is_active = FALSE, closed_at = $2
		 WHERE id = $1 AND is_active
		 RETURNING spread_percent`,
		id, closedAt,
	).Scan(&initialSpread)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SignalOutcome{}, fmt.Errorf("postgres: close signal %s: %w", id, domain.ErrAlreadyClosed)
		}
		return domain.SignalOutcome{}, fmt.Errorf("postgres: close signal %s: %w", id, err)
	}

	out := domain.SignalOutcome{
		SignalID:           id,
		Outcome:            outcome,
		InitialSpread:      initialSpread,
		FinalSpread:        finalSpread,
		PriceChangePercent: priceChangePercent,
		ClosedAt:           closedAt,
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO signal_outcomes (
			signal_id, outcome, initial_spread, final_spread,
			price_change_percent, closed_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		out.SignalID, out.Outcome, out.InitialSpread, out.FinalSpread,
		out.PriceChangePercent, out.ClosedAt,
	); err != nil {
		return domain.SignalOutcome{}, fmt.Errorf("postgres: insert signal outcome: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.SignalOutcome{}, fmt.Errorf("postgres: commit close signal: %w", err)
	}
	return out, nil
}

// TokenStats aggregates historical outcomes for one symbol.
func (s *SignalStore) TokenStats(ctx context.Context, symbol string) (domain.TokenStats, error) {
	stats := domain.TokenStats{Symbol: symbol}

	err := s.pool.QueryRow(ctx,
		`SELECT
			COUNT(*) FILTER (WHERE o.outcome = 'win'),
			COUNT(*) FILTER (WHERE o.outcome = 'draw'),
			COUNT(*) FILTER (WHERE o.outcome = 'lose'),
			COUNT(*),
			COALESCE(AVG(o.price_change_percent), 0),
			COALESCE(AVG(sig.spread_percent), 0),
			COALESCE(MAX(sig.spread_percent), 0)
		 FROM signal_outcomes o
		 JOIN signals sig ON sig.id = o.signal_id
		 WHERE sig.symbol = $1`,
		symbol,
	).Scan(
		&stats.Wins, &stats.Draws, &stats.Losses, &stats.Total,
		&stats.AvgPnL, &stats.AvgSpread, &stats.MaxSpread,
	)
	if err != nil {
		return domain.TokenStats{}, fmt.Errorf("postgres: token stats for %s: %w", symbol, err)
	}

	if stats.Total > 0 {
		stats.WinRate = float64(stats.Wins) / float64(stats.Total) * 100
	}
	return stats, nil
}

// Stats aggregates outcomes across all symbols.
func (s *SignalStore) Stats(ctx context.Context) (domain.Stats, error) {
	var stats domain.Stats

	err := s.pool.QueryRow(ctx,
		`SELECT
			COUNT(*),
			COALESCE(AVG(sig.spread_percent), 0),
			COALESCE(AVG(o.price_change_percent), 0),
			COUNT(*) FILTER (WHERE o.outcome = 'win'),
			COUNT(*) FILTER (WHERE o.outcome = 'draw'),
			COUNT(*) FILTER (WHERE o.outcome = 'lose')
		 FROM signal_outcomes o
		 JOIN signals sig ON sig.id = o.signal_id`,
	).Scan(
		&stats.TotalSignals, &stats.AvgSpread, &stats.AvgChange,
		&stats.Wins, &stats.Draws, &stats.Losses,
	)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("postgres: stats: %w", err)
	}
	return stats, nil
}

// ListClosedBefore returns signals closed strictly before the cutoff, oldest
// first (for archiving).
func (s *SignalStore) ListClosedBefore(ctx context.Context, before time.Time) ([]domain.Signal, error) {
	query := `SELECT ` + signalSelectCols + `
		FROM signals
		WHERE NOT is_active AND closed_at < $1
		ORDER BY closed_at ASC`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list closed signals before: %w", err)
	}
	defer rows.Close()

	return scanSignalRows(rows)
}
