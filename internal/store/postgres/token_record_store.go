package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chainarb/chainarb/internal/chain"
	"github.com/chainarb/chainarb/internal/domain"
)

// TokenRecordStore implements domain.TokenRecordStore using PostgreSQL.
type TokenRecordStore struct {
	pool *pgxpool.Pool
}

func NewTokenRecordStore(pool *pgxpool.Pool) *TokenRecordStore {
	return &TokenRecordStore{pool: pool}
}

const tokenSelectCols = `symbol, blockchain, contract_address, is_native,
	is_primary, confidence_score, exchanges, last_verified`

// Upsert writes or refreshes a token-to-blockchain binding. EVM contract
// addresses are stored in checksum form so the uniqueness constraint cannot
// be dodged by case differences.
func (s *TokenRecordStore) Upsert(ctx context.Context, rec domain.TokenBlockchainRecord) error {
	const query = `
		INSERT INTO token_blockchains (
			symbol, blockchain, contract_address, is_native,
			is_primary, confidence_score, exchanges, last_verified
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (symbol, blockchain, contract_address) DO UPDATE SET
			is_native        = EXCLUDED.is_native,
			is_primary       = EXCLUDED.is_primary,
			confidence_score = EXCLUDED.confidence_score,
			exchanges        = EXCLUDED.exchanges,
			last_verified    = EXCLUDED.last_verified`

	exchanges := rec.Exchanges
	if exchanges == nil {
		exchanges = []string{}
	}
	_, err := s.pool.Exec(ctx, query,
		rec.Symbol, rec.Blockchain, chain.ChecksumAddress(rec.ContractAddress), rec.IsNative,
		rec.IsPrimary, rec.ConfidenceScore, exchanges, rec.LastVerified,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert token record %s/%s: %w", rec.Symbol, rec.Blockchain, err)
	}
	return nil
}

// GetBySymbol returns every chain binding known for a token, highest
// confidence first.
func (s *TokenRecordStore) GetBySymbol(ctx context.Context, symbol string) ([]domain.TokenBlockchainRecord, error) {
	query := `SELECT ` + tokenSelectCols + `
		FROM token_blockchains
		WHERE UPPER(symbol) = UPPER($1)
		ORDER BY confidence_score DESC, blockchain`

	rows, err := s.pool.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("postgres: get token records %s: %w", symbol, err)
	}
	defer rows.Close()

	var recs []domain.TokenBlockchainRecord
	for rows.Next() {
		var rec domain.TokenBlockchainRecord
		if err := rows.Scan(
			&rec.Symbol, &rec.Blockchain, &rec.ContractAddress, &rec.IsNative,
			&rec.IsPrimary, &rec.ConfidenceScore, &rec.Exchanges, &rec.LastVerified,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan token record: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: token record rows: %w", err)
	}
	return recs, nil
}

// GetPrimary returns the token's primary-chain binding, or
// domain.ErrNotFound when none is recorded.
func (s *TokenRecordStore) GetPrimary(ctx context.Context, symbol string) (domain.TokenBlockchainRecord, error) {
	query := `SELECT ` + tokenSelectCols + `
		FROM token_blockchains
		WHERE UPPER(symbol) = UPPER($1) AND is_primary
		ORDER BY confidence_score DESC
		LIMIT 1`

	var rec domain.TokenBlockchainRecord
	err := s.pool.QueryRow(ctx, query, symbol).Scan(
		&rec.Symbol, &rec.Blockchain, &rec.ContractAddress, &rec.IsNative,
		&rec.IsPrimary, &rec.ConfidenceScore, &rec.Exchanges, &rec.LastVerified,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TokenBlockchainRecord{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.TokenBlockchainRecord{}, fmt.Errorf("postgres: get primary token record %s: %w", symbol, err)
	}
	return rec, nil
}

var _ domain.TokenRecordStore = (*TokenRecordStore)(nil)
