package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates an OpportunityStore backed by the given pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const opportunityCols = `id, symbol, kind, legs, gross_diff_pct, gross_profit,
	fees, net_profit, net_profit_pct, trade_amount, path, observed_at`

// Insert stores a reported opportunity. Legs, fees and path are persisted as
// JSONB so leg counts can differ between pairwise and cyclic rows.
func (s *OpportunityStore) Insert(ctx context.Context, opp domain.ArbitrageOpportunity) error {
	const query = `
		INSERT INTO opportunities (
			id, symbol, kind, legs, gross_diff_pct, gross_profit,
			fees, net_profit, net_profit_pct, trade_amount, path, observed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12
		)`

	legs, err := json.Marshal(opp.Legs)
	if err != nil {
		return fmt.Errorf("postgres: marshal legs for %s: %w", opp.ID, err)
	}
	fees, err := json.Marshal(opp.Fees)
	if err != nil {
		return fmt.Errorf("postgres: marshal fees for %s: %w", opp.ID, err)
	}
	var path []byte
	if len(opp.Path) > 0 {
		if path, err = json.Marshal(opp.Path); err != nil {
			return fmt.Errorf("postgres: marshal path for %s: %w", opp.ID, err)
		}
	}

	_, err = s.pool.Exec(ctx, query,
		opp.ID, opp.Symbol, string(opp.Kind), legs, opp.GrossDiffPct, opp.GrossProfit,
		fees, opp.NetProfit, opp.NetProfitPct, opp.TradeAmount, path, opp.ObservedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity %s: %w", opp.ID, err)
	}
	return nil
}

// ListRecent returns the most recently observed opportunities.
func (s *OpportunityStore) ListRecent(ctx context.Context, limit int) ([]domain.ArbitrageOpportunity, error) {
	query := `SELECT ` + opportunityCols + ` FROM opportunities ORDER BY observed_at DESC`
	args := []any{}

	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent opportunities: %w", err)
	}
	defer rows.Close()

	return scanOpportunities(rows)
}

// ListBefore returns opportunities observed strictly before cutoff, oldest
// first, so the archiver drains in stable batches.
func (s *OpportunityStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.ArbitrageOpportunity, error) {
	query := `SELECT ` + opportunityCols + `
		FROM opportunities
		WHERE observed_at < $1
		ORDER BY observed_at ASC`
	args := []any{cutoff}

	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	defer rows.Close()

	return scanOpportunities(rows)
}

// DeleteIDs removes the given opportunity rows and reports how many were
// actually deleted.
func (s *OpportunityStore) DeleteIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM opportunities WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete opportunities: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanOpportunities(rows pgx.Rows) ([]domain.ArbitrageOpportunity, error) {
	var opps []domain.ArbitrageOpportunity
	for rows.Next() {
		var (
			opp  domain.ArbitrageOpportunity
			kind string
			legs []byte
			fees []byte
			path []byte
		)

		if err := rows.Scan(
			&opp.ID, &opp.Symbol, &kind, &legs, &opp.GrossDiffPct, &opp.GrossProfit,
			&fees, &opp.NetProfit, &opp.NetProfitPct, &opp.TradeAmount, &path, &opp.ObservedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}

		opp.Kind = domain.OpportunityKind(kind)
		if err := json.Unmarshal(legs, &opp.Legs); err != nil {
			return nil, fmt.Errorf("postgres: decode legs for %s: %w", opp.ID, err)
		}
		if err := json.Unmarshal(fees, &opp.Fees); err != nil {
			return nil, fmt.Errorf("postgres: decode fees for %s: %w", opp.ID, err)
		}
		if len(path) > 0 {
			if err := json.Unmarshal(path, &opp.Path); err != nil {
				return nil, fmt.Errorf("postgres: decode path for %s: %w", opp.ID, err)
			}
		}

		opps = append(opps, opp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate opportunities: %w", err)
	}
	return opps, nil
}

// Compile-time interface check.
var _ domain.OpportunityStore = (*OpportunityStore)(nil)
