package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainarb/chainarb/internal/domain"
)

type stubTokenStore struct {
	records map[string][]domain.TokenBlockchainRecord
}

func (s *stubTokenStore) Upsert(context.Context, domain.TokenBlockchainRecord) error { return nil }

func (s *stubTokenStore) GetBySymbol(_ context.Context, symbol string) ([]domain.TokenBlockchainRecord, error) {
	return s.records[symbol], nil
}

func (s *stubTokenStore) GetPrimary(_ context.Context, symbol string) (domain.TokenBlockchainRecord, error) {
	recs := s.records[symbol]
	if len(recs) == 0 {
		return domain.TokenBlockchainRecord{}, domain.ErrNotFound
	}
	return recs[0], nil
}

func tokensMux(store domain.TokenRecordStore) *http.ServeMux {
	mux := http.NewServeMux()
	h := NewTokenHandler(store, slog.New(slog.DiscardHandler))
	mux.HandleFunc("GET /api/tokens/{symbol}", h.GetTokenRecords)
	return mux
}

func TestGetTokenRecords(t *testing.T) {
	store := &stubTokenStore{records: map[string][]domain.TokenBlockchainRecord{
		"PEPE": {
			{Symbol: "PEPE", Blockchain: "ethereum", IsPrimary: true, ConfidenceScore: 0.8, Exchanges: []string{"bybit", "okx"}},
			{Symbol: "PEPE", Blockchain: "bsc", ConfidenceScore: 0.5},
		},
	}}
	mux := tokensMux(store)

	// Path symbols are case-insensitive.
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/tokens/pepe", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var got []domain.TokenBlockchainRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "ethereum", got[0].Blockchain)
	assert.Equal(t, []string{"bybit", "okx"}, got[0].Exchanges)
}

func TestGetTokenRecordsNotFound(t *testing.T) {
	mux := tokensMux(&stubTokenStore{})

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/tokens/UNKNOWN", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "error"))
}
