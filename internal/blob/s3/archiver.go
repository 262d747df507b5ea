package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chainarb/chainarb/internal/domain"
)

// OpportunityArchiveStore is the slice of the opportunity store the archiver
// needs: just the time-ranged read.
type OpportunityArchiveStore interface {
	ListBefore(ctx context.Context, cutoff time.Time) ([]domain.ArbitrageOpportunity, error)
}

// Archiver copies opportunity rows older than a cutoff into cold storage as
// JSONL. Deleting the archived rows from Postgres is deliberately a separate
// step, run only after the upload succeeded.
type Archiver struct {
	writer domain.BlobWriter
	opps   OpportunityArchiveStore
}

func NewArchiver(writer domain.BlobWriter, opps OpportunityArchiveStore) *Archiver {
	return &Archiver{writer: writer, opps: opps}
}

// ArchiveOpportunities uploads every opportunity older than cutoff to
// archive/opportunities/YYYY-MM-DD.jsonl and returns the number of rows
// archived. No rows is not an error.
func (a *Archiver) ArchiveOpportunities(ctx context.Context, cutoff time.Time) (int64, error) {
	opps, err := a.opps.ListBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities query: %w", err)
	}
	if len(opps) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(opps)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities marshal: %w", err)
	}

	path := archivePath(cutoff)
	if err := a.writer.Put(ctx, path, buf, "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities upload: %w", err)
	}
	return int64(len(opps)), nil
}

// archivePath partitions archive files by the cutoff day:
//
//	archive/opportunities/2026-09-01.jsonl
func archivePath(cutoff time.Time) string {
	return fmt.Sprintf("archive/opportunities/%s.jsonl", cutoff.UTC().Format("2006-01-02"))
}

func marshalJSONL[T any](items []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
