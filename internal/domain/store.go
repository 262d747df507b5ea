package domain

import (
	"context"
	"time"
)

// OpportunityStore persists detected arbitrage opportunities. InsertBatch is
// an idempotent sink: rows matching an existing (symbol, buy, sell,
// timestamp) key are silently ignored.
type OpportunityStore interface {
	InsertBatch(ctx context.Context, opps []ArbitrageOpportunity) (int64, error)
	ListRecent(ctx context.Context, window time.Duration, limit int) ([]ArbitrageOpportunity, error)
	ListUnresolved(ctx context.Context, limit int) ([]ArbitrageOpportunity, error)
	BackfillBlockchain(ctx context.Context, symbol, blockchain string) (int64, error)
	Statistics(ctx context.Context, since time.Time) (Statistics, error)
	ListBefore(ctx context.Context, cutoff time.Time) ([]ArbitrageOpportunity, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// TokenRecordStore persists blockchain resolution results.
type TokenRecordStore interface {
	Upsert(ctx context.Context, rec TokenBlockchainRecord) error
	GetBySymbol(ctx context.Context, symbol string) ([]TokenBlockchainRecord, error)
	GetPrimary(ctx context.Context, symbol string) (TokenBlockchainRecord, error)
}

// FailedLookupStore tracks unresolvable symbols with a bounded retry count.
type FailedLookupStore interface {
	RecordFailure(ctx context.Context, symbol, reason string) error
	Get(ctx context.Context, symbol string) (FailedLookup, error)
	Clear(ctx context.Context, symbol string) error
}

// BlobWriter writes archive objects to cold storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data []byte, contentType string) error
}
