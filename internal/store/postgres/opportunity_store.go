package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chainarb/chainarb/internal/domain"
)

// listRecentCap bounds how many rows ListRecent can ever return, whatever
// limit the caller asks for.
const listRecentCap = 100

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const oppSelectCols = `id, symbol, buy_exchange, sell_exchange,
	buy_price, sell_price, profit_percentage, profit_amount, volume,
	blockchain, buy_transfer_available, sell_transfer_available,
	common_networks, fees, ts`

// InsertBatch stores a batch of opportunities as one pipelined round trip.
// Rows whose (symbol, buy_exchange, sell_exchange, ts) key already exists
// are silently skipped, so re-inserting a cycle's output is harmless. It
// returns the number of rows actually written. IDs are assigned here, not in
// the calculator.
func (s *OpportunityStore) InsertBatch(ctx context.Context, opps []domain.ArbitrageOpportunity) (int64, error) {
	if len(opps) == 0 {
		return 0, nil
	}

	const query = `
		INSERT INTO opportunities (
			id, symbol, buy_exchange, sell_exchange,
			buy_price, sell_price, profit_percentage, profit_amount, volume,
			blockchain, buy_transfer_available, sell_transfer_available,
			common_networks, fees, ts
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9,
			$10, $11, $12,
			$13, $14, $15
		)
		ON CONFLICT (symbol, buy_exchange, sell_exchange, ts) DO NOTHING`

	batch := &pgx.Batch{}
	for _, opp := range opps {
		id := opp.ID
		if id == "" {
			id = uuid.NewString()
		}
		var buyAvail, sellAvail *bool
		var networks []string
		if opp.Transfer != nil {
			buyAvail = opp.Transfer.BuyAvailable
			sellAvail = opp.Transfer.SellAvailable
			networks = opp.Transfer.CommonNetworks
		}
		if networks == nil {
			networks = []string{}
		}
		batch.Queue(query,
			id, opp.Symbol, opp.BuyExchange, opp.SellExchange,
			opp.BuyPrice, opp.SellPrice, opp.ProfitPercentage, opp.ProfitAmount, opp.Volume,
			opp.Blockchain, buyAvail, sellAvail,
			networks, opp.Fees, opp.Timestamp,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	var inserted int64
	for range opps {
		tag, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("postgres: insert opportunity batch: %w", err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

// ListRecent returns opportunities detected inside the window, most
// profitable first.
func (s *OpportunityStore) ListRecent(ctx context.Context, window time.Duration, limit int) ([]domain.ArbitrageOpportunity, error) {
	if limit <= 0 || limit > listRecentCap {
		limit = listRecentCap
	}
	query := `SELECT ` + oppSelectCols + `
		FROM opportunities
		WHERE ts >= $1
		ORDER BY profit_percentage DESC, ts DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, time.Now().UTC().Add(-window), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent opportunities: %w", err)
	}
	defer rows.Close()
	return scanOpportunities(rows)
}

// ListUnresolved returns opportunities persisted without a blockchain, most
// recent first, for the rescan service.
func (s *OpportunityStore) ListUnresolved(ctx context.Context, limit int) ([]domain.ArbitrageOpportunity, error) {
	query := `SELECT ` + oppSelectCols + `
		FROM opportunities
		WHERE blockchain = ''
		ORDER BY ts DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list unresolved opportunities: %w", err)
	}
	defer rows.Close()
	return scanOpportunities(rows)
}

// BackfillBlockchain stamps the resolved blockchain onto every unresolved
// row whose base asset matches symbol, across all quote currencies.
func (s *OpportunityStore) BackfillBlockchain(ctx context.Context, symbol, blockchain string) (int64, error) {
	const query = `
		UPDATE opportunities SET blockchain = $2
		WHERE blockchain = '' AND UPPER(split_part(symbol, '/', 1)) = UPPER($1)`

	tag, err := s.pool.Exec(ctx, query, symbol, blockchain)
	if err != nil {
		return 0, fmt.Errorf("postgres: backfill blockchain %s: %w", symbol, err)
	}
	return tag.RowsAffected(), nil
}

// Statistics aggregates stored opportunities detected at or after since.
func (s *OpportunityStore) Statistics(ctx context.Context, since time.Time) (domain.Statistics, error) {
	const query = `
		SELECT COUNT(*),
		       COALESCE(AVG(profit_percentage), 0),
		       COALESCE(MAX(profit_percentage), 0)
		FROM opportunities
		WHERE ts >= $1`

	var stats domain.Statistics
	if err := s.pool.QueryRow(ctx, query, since).Scan(&stats.Count, &stats.AvgProfit, &stats.MaxProfit); err != nil {
		return domain.Statistics{}, fmt.Errorf("postgres: opportunity statistics: %w", err)
	}
	return stats, nil
}

// ListBefore returns every opportunity older than cutoff, oldest first. Used
// by the archiver ahead of DeleteBefore.
func (s *OpportunityStore) ListBefore(ctx context.Context, cutoff time.Time) ([]domain.ArbitrageOpportunity, error) {
	query := `SELECT ` + oppSelectCols + `
		FROM opportunities
		WHERE ts < $1
		ORDER BY ts`

	rows, err := s.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities before cutoff: %w", err)
	}
	defer rows.Close()
	return scanOpportunities(rows)
}

// DeleteBefore removes every opportunity older than cutoff and reports how
// many rows went away.
func (s *OpportunityStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM opportunities WHERE ts < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete opportunities before cutoff: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanOpportunities(rows pgx.Rows) ([]domain.ArbitrageOpportunity, error) {
	var opps []domain.ArbitrageOpportunity
	for rows.Next() {
		var opp domain.ArbitrageOpportunity
		var buyAvail, sellAvail *bool
		var networks []string

		if err := rows.Scan(
			&opp.ID, &opp.Symbol, &opp.BuyExchange, &opp.SellExchange,
			&opp.BuyPrice, &opp.SellPrice, &opp.ProfitPercentage, &opp.ProfitAmount, &opp.Volume,
			&opp.Blockchain, &buyAvail, &sellAvail,
			&networks, &opp.Fees, &opp.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		if buyAvail != nil || sellAvail != nil || len(networks) > 0 {
			opp.Transfer = &domain.TransferAvailability{
				BuyAvailable:   buyAvail,
				SellAvailable:  sellAvail,
				CommonNetworks: networks,
			}
		}
		opps = append(opps, opp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: opportunity rows: %w", err)
	}
	return opps, nil
}

var _ domain.OpportunityStore = (*OpportunityStore)(nil)
