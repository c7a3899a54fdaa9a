package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

// HistoricalStatStore implements domain.HistoricalStatStore using PostgreSQL.
// One row per symbol keeps the occurrence count and running profit average
// available across restarts for reinstatement.
type HistoricalStatStore struct {
	pool *pgxpool.Pool
}

// NewHistoricalStatStore creates a HistoricalStatStore backed by the given pool.
func NewHistoricalStatStore(pool *pgxpool.Pool) *HistoricalStatStore {
	return &HistoricalStatStore{pool: pool}
}

// Upsert writes the current stat for a symbol, replacing any previous row.
func (s *HistoricalStatStore) Upsert(ctx context.Context, stat domain.HistoricalStat) error {
	const query = `
		INSERT INTO historical_stats (symbol, occurrence_count, avg_profit_pct, last_seen_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (symbol) DO UPDATE SET
			occurrence_count = EXCLUDED.occurrence_count,
			avg_profit_pct   = EXCLUDED.avg_profit_pct,
			last_seen_at     = EXCLUDED.last_seen_at`

	_, err := s.pool.Exec(ctx, query,
		stat.Symbol, stat.OccurrenceCount, stat.AvgProfitPct, stat.LastSeenAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert historical stat %s: %w", stat.Symbol, err)
	}
	return nil
}

// ListSince returns stats for symbols last seen at or after the given time.
func (s *HistoricalStatStore) ListSince(ctx context.Context, since time.Time) ([]domain.HistoricalStat, error) {
	const query = `
		SELECT symbol, occurrence_count, avg_profit_pct, last_seen_at
		FROM historical_stats
		WHERE last_seen_at >= $1
		ORDER BY last_seen_at DESC`

	rows, err := s.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: list historical stats: %w", err)
	}
	defer rows.Close()

	var stats []domain.HistoricalStat
	for rows.Next() {
		var stat domain.HistoricalStat
		if err := rows.Scan(
			&stat.Symbol, &stat.OccurrenceCount, &stat.AvgProfitPct, &stat.LastSeenAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan historical stat: %w", err)
		}
		stats = append(stats, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate historical stats: %w", err)
	}
	return stats, nil
}

// Compile-time interface check.
var _ domain.HistoricalStatStore = (*HistoricalStatStore)(nil)
