package rescan

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainarb/chainarb/internal/domain"
)

type stubMarket struct {
	blockchain    string
	confidence    float64
	corroborators []string
	hints         []string
}

func (s stubMarket) CorroborateBlockchain(context.Context, string) (string, float64, []string) {
	return s.blockchain, s.confidence, s.corroborators
}

func (s stubMarket) RawNetworks(context.Context, string) []string { return s.hints }

type stubResolver struct {
	answer string
	err    error
	calls  int
}

func (s *stubResolver) Resolve(context.Context, string, []string) (string, error) {
	s.calls++
	return s.answer, s.err
}

type memOppStore struct {
	unresolved []domain.ArbitrageOpportunity
	backfilled map[string]string
}

func (m *memOppStore) InsertBatch(context.Context, []domain.ArbitrageOpportunity) (int64, error) {
	return 0, nil
}

func (m *memOppStore) ListRecent(context.Context, time.Duration, int) ([]domain.ArbitrageOpportunity, error) {
	return nil, nil
}

func (m *memOppStore) ListUnresolved(context.Context, int) ([]domain.ArbitrageOpportunity, error) {
	return m.unresolved, nil
}

func (m *memOppStore) BackfillBlockchain(_ context.Context, symbol, blockchain string) (int64, error) {
	if m.backfilled == nil {
		m.backfilled = make(map[string]string)
	}
	m.backfilled[symbol] = blockchain
	return 1, nil
}

func (m *memOppStore) Statistics(context.Context, time.Time) (domain.Statistics, error) {
	return domain.Statistics{}, nil
}

func (m *memOppStore) ListBefore(context.Context, time.Time) ([]domain.ArbitrageOpportunity, error) {
	return nil, nil
}

func (m *memOppStore) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }

type memTokenStore struct {
	records map[string]domain.TokenBlockchainRecord
}

func (m *memTokenStore) Upsert(_ context.Context, rec domain.TokenBlockchainRecord) error {
	if m.records == nil {
		m.records = make(map[string]domain.TokenBlockchainRecord)
	}
	m.records[rec.Symbol] = rec
	return nil
}

func (m *memTokenStore) GetBySymbol(_ context.Context, symbol string) ([]domain.TokenBlockchainRecord, error) {
	if rec, ok := m.records[symbol]; ok {
		return []domain.TokenBlockchainRecord{rec}, nil
	}
	return nil, nil
}

func (m *memTokenStore) GetPrimary(_ context.Context, symbol string) (domain.TokenBlockchainRecord, error) {
	rec, ok := m.records[symbol]
	if !ok {
		return domain.TokenBlockchainRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

type memFailureStore struct {
	failures map[string]domain.FailedLookup
}

func (m *memFailureStore) RecordFailure(_ context.Context, symbol, reason string) error {
	if m.failures == nil {
		m.failures = make(map[string]domain.FailedLookup)
	}
	f := m.failures[symbol]
	f.Symbol = symbol
	f.LastError = reason
	f.FailedAt = time.Now().UTC()
	f.RetryCount++
	m.failures[symbol] = f
	return nil
}

func (m *memFailureStore) Get(_ context.Context, symbol string) (domain.FailedLookup, error) {
	f, ok := m.failures[symbol]
	if !ok {
		return domain.FailedLookup{}, domain.ErrNotFound
	}
	return f, nil
}

func (m *memFailureStore) Clear(_ context.Context, symbol string) error {
	delete(m.failures, symbol)
	return nil
}

type memResolverCache struct {
	entries map[string]string
}

func (m *memResolverCache) Get(_ context.Context, symbol string) (string, bool, error) {
	v, ok := m.entries[symbol]
	return v, ok, nil
}

func (m *memResolverCache) Set(_ context.Context, symbol, blockchain string, _ time.Duration) error {
	if m.entries == nil {
		m.entries = make(map[string]string)
	}
	m.entries[symbol] = blockchain
	return nil
}

type noopLimiter struct{ waits int }

func (n *noopLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return true, nil
}

func (n *noopLimiter) Wait(context.Context, string, int, time.Duration) error {
	n.waits++
	return nil
}

type fixture struct {
	svc      *Service
	resolver *stubResolver
	opps     *memOppStore
	tokens   *memTokenStore
	failures *memFailureStore
	cache    *memResolverCache
	limiter  *noopLimiter
}

func newFixture(market Market, res *stubResolver, unresolved ...domain.ArbitrageOpportunity) *fixture {
	cfg := DefaultConfig()
	cfg.IntercallDelay = 0
	f := &fixture{
		resolver: res,
		opps:     &memOppStore{unresolved: unresolved},
		tokens:   &memTokenStore{},
		failures: &memFailureStore{},
		cache:    &memResolverCache{},
		limiter:  &noopLimiter{},
	}
	f.svc = NewService(cfg, market, res, f.opps, f.tokens, f.failures, f.cache, f.limiter,
		slog.New(slog.DiscardHandler))
	return f
}

func TestOverrideSymbolNeverReachesResolver(t *testing.T) {
	res := &stubResolver{answer: "tron"}
	f := newFixture(stubMarket{}, res,
		domain.ArbitrageOpportunity{Symbol: "USDT/USDC"},
	)

	summary, err := f.svc.RunRescan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.RescanSummary{Total: 1, Successful: 1}, summary)
	assert.Zero(t, res.calls, "curated overrides must not burn resolver quota")

	rec := f.tokens.records["USDT"]
	assert.Equal(t, "ethereum", rec.Blockchain)
	assert.Equal(t, 0.95, rec.ConfidenceScore)
	assert.True(t, rec.IsPrimary)
	assert.Equal(t, "0xdAC17F958D2ee523a2206206994597C13D831ec7", rec.ContractAddress)
	assert.Equal(t, "ethereum", f.opps.backfilled["USDT"])
}

func TestCorroborationAboveThresholdSkipsResolver(t *testing.T) {
	res := &stubResolver{answer: "ethereum"}
	f := newFixture(stubMarket{blockchain: "bsc", confidence: 0.75, corroborators: []string{"bybit", "gateio", "okx"}}, res,
		domain.ArbitrageOpportunity{Symbol: "CAKE/USDT"},
	)

	summary, err := f.svc.RunRescan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Successful)
	assert.Zero(t, res.calls)

	rec := f.tokens.records["CAKE"]
	assert.Equal(t, "bsc", rec.Blockchain)
	assert.InDelta(t, 0.75, rec.ConfidenceScore, 1e-9)
	assert.Equal(t, []string{"bybit", "gateio", "okx"}, rec.Exchanges,
		"the record must carry the exchanges that corroborated the chain")
}

func TestExistingTokenRecordShortCircuitsLadder(t *testing.T) {
	res := &stubResolver{answer: "tron"}
	// Corroboration would vote bsc; the stored record must win without any
	// market or resolver traffic.
	f := newFixture(stubMarket{blockchain: "bsc", confidence: 1.0, corroborators: []string{"okx"}}, res,
		domain.ArbitrageOpportunity{Symbol: "PEPE/USDT"},
	)
	f.tokens.records = map[string]domain.TokenBlockchainRecord{
		"PEPE": {
			Symbol:          "PEPE",
			Blockchain:      "ethereum",
			ContractAddress: "0x6982508145454Ce325dDbE47a25d4ec3d2311933",
			IsPrimary:       true,
			ConfidenceScore: 0.8,
			Exchanges:       []string{"bybit", "okx"},
		},
	}

	summary, err := f.svc.RunRescan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.RescanSummary{Total: 1, Successful: 1}, summary)
	assert.Zero(t, res.calls)

	rec := f.tokens.records["PEPE"]
	assert.Equal(t, "ethereum", rec.Blockchain)
	assert.Equal(t, "0x6982508145454Ce325dDbE47a25d4ec3d2311933", rec.ContractAddress)
	assert.Equal(t, []string{"bybit", "okx"}, rec.Exchanges)
	assert.Equal(t, "ethereum", f.opps.backfilled["PEPE"], "backfill still runs from the stored record")
}

func TestResolverFallbackIsRateLimitedAndCached(t *testing.T) {
	res := &stubResolver{answer: "solana"}
	f := newFixture(stubMarket{confidence: 0}, res,
		domain.ArbitrageOpportunity{Symbol: "WIF/USDT"},
	)

	summary, err := f.svc.RunRescan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Successful)
	assert.Equal(t, 1, res.calls)
	assert.Equal(t, 1, f.limiter.waits, "every resolver call goes through the limiter")
	assert.Equal(t, "solana", f.cache.entries["WIF"])
	assert.Equal(t, "solana", f.tokens.records["WIF"].Blockchain)
}

func TestCachedAnswerSkipsResolver(t *testing.T) {
	res := &stubResolver{answer: "ethereum"}
	f := newFixture(stubMarket{}, res,
		domain.ArbitrageOpportunity{Symbol: "PEPE/USDT"},
	)
	f.cache.entries = map[string]string{"PEPE": "ethereum"}

	summary, err := f.svc.RunRescan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Successful)
	assert.Zero(t, res.calls)
}

func TestUnresolvableSymbolRecordsFailure(t *testing.T) {
	res := &stubResolver{answer: ""}
	f := newFixture(stubMarket{}, res,
		domain.ArbitrageOpportunity{Symbol: "OBSCURE/USDT"},
	)

	summary, err := f.svc.RunRescan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Successful)

	failure, err := f.failures.Get(context.Background(), "OBSCURE")
	require.NoError(t, err)
	assert.Equal(t, 1, failure.RetryCount)
}

func TestExhaustedRetriesAreSkipped(t *testing.T) {
	res := &stubResolver{answer: "ethereum"}
	f := newFixture(stubMarket{}, res,
		domain.ArbitrageOpportunity{Symbol: "DEAD/USDT"},
	)
	f.failures.failures = map[string]domain.FailedLookup{
		"DEAD": {Symbol: "DEAD", RetryCount: 3, FailedAt: time.Now().Add(-48 * time.Hour)},
	}

	summary, err := f.svc.RunRescan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Successful)
	assert.Zero(t, res.calls)
}

func TestRecentFailureCoolsDown(t *testing.T) {
	res := &stubResolver{answer: "ethereum"}
	f := newFixture(stubMarket{}, res,
		domain.ArbitrageOpportunity{Symbol: "FLAKY/USDT"},
	)
	f.failures.failures = map[string]domain.FailedLookup{
		"FLAKY": {Symbol: "FLAKY", RetryCount: 1, FailedAt: time.Now().UTC()},
	}

	summary, err := f.svc.RunRescan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Successful)
	assert.Zero(t, res.calls)
}

func TestResolverErrorPropagatesToFailureRow(t *testing.T) {
	res := &stubResolver{err: fmt.Errorf("resolver: unexpected status 500")}
	f := newFixture(stubMarket{}, res,
		domain.ArbitrageOpportunity{Symbol: "XYZ/USDT"},
	)

	summary, err := f.svc.RunRescan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Successful)
	failure, err := f.failures.Get(context.Background(), "XYZ")
	require.NoError(t, err)
	assert.Contains(t, failure.LastError, "unexpected status 500")
}

func TestDuplicatePairsCollapseToOneSymbol(t *testing.T) {
	res := &stubResolver{answer: "ethereum"}
	f := newFixture(stubMarket{}, res,
		domain.ArbitrageOpportunity{Symbol: "PEPE/USDT"},
		domain.ArbitrageOpportunity{Symbol: "PEPE/USDC"},
	)

	summary, err := f.svc.RunRescan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.RescanSummary{Total: 1, Successful: 1}, summary)
	assert.Equal(t, 1, res.calls)
}
