package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chainarb/chainarb/internal/domain"
)

// FailedLookupStore implements domain.FailedLookupStore using PostgreSQL.
type FailedLookupStore struct {
	pool *pgxpool.Pool
}

func NewFailedLookupStore(pool *pgxpool.Pool) *FailedLookupStore {
	return &FailedLookupStore{pool: pool}
}

// RecordFailure inserts a failure row or bumps the retry counter on an
// existing one.
func (s *FailedLookupStore) RecordFailure(ctx context.Context, symbol, reason string) error {
	const query = `
		INSERT INTO failed_lookups (symbol, last_error, failed_at, retry_count)
		VALUES (UPPER($1), $2, NOW(), 1)
		ON CONFLICT (symbol) DO UPDATE SET
			last_error  = EXCLUDED.last_error,
			failed_at   = EXCLUDED.failed_at,
			retry_count = failed_lookups.retry_count + 1`

	if _, err := s.pool.Exec(ctx, query, symbol, reason); err != nil {
		return fmt.Errorf("postgres: record failed lookup %s: %w", symbol, err)
	}
	return nil
}

// Get returns the failure row for symbol, or domain.ErrNotFound.
func (s *FailedLookupStore) Get(ctx context.Context, symbol string) (domain.FailedLookup, error) {
	const query = `
		SELECT symbol, last_error, failed_at, retry_count
		FROM failed_lookups
		WHERE symbol = UPPER($1)`

	var f domain.FailedLookup
	err := s.pool.QueryRow(ctx, query, symbol).Scan(&f.Symbol, &f.LastError, &f.FailedAt, &f.RetryCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.FailedLookup{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.FailedLookup{}, fmt.Errorf("postgres: get failed lookup %s: %w", symbol, err)
	}
	return f, nil
}

// Clear removes the failure row once a symbol resolves. Clearing a symbol
// with no row is not an error.
func (s *FailedLookupStore) Clear(ctx context.Context, symbol string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM failed_lookups WHERE symbol = UPPER($1)`, symbol); err != nil {
		return fmt.Errorf("postgres: clear failed lookup %s: %w", symbol, err)
	}
	return nil
}

var _ domain.FailedLookupStore = (*FailedLookupStore)(nil)
