package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainarb/chainarb/internal/domain"
)

type fakeAdapter struct {
	name         string
	tickers      []domain.Ticker
	tickersErr   error
	networks     map[string][]string
	networksErr  error
	connectErr   error
	connected    atomic.Bool
	networkCalls atomic.Int64
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Connect(context.Context) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected.Store(true)
	return nil
}

func (f *fakeAdapter) FetchTickers(context.Context) ([]domain.Ticker, error) {
	if f.tickersErr != nil {
		return nil, f.tickersErr
	}
	return f.tickers, nil
}

func (f *fakeAdapter) FetchCurrencyNetworks(_ context.Context, currency string) ([]string, error) {
	f.networkCalls.Add(1)
	if f.networksErr != nil {
		return nil, f.networksErr
	}
	return f.networks[currency], nil
}

func (f *fakeAdapter) IsConnected() bool { return f.connected.Load() }

func (f *fakeAdapter) Disconnect() error {
	f.connected.Store(false)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestManager(t *testing.T, adapters ...Adapter) *Manager {
	t.Helper()
	m := NewManager(adapters, time.Second, time.Hour, testLogger())
	require.NoError(t, m.InitializeExchanges(context.Background()))
	return m
}

func TestUpdateAllTickersKeepsStaleSnapshotOnFailure(t *testing.T) {
	ctx := context.Background()
	a := &fakeAdapter{
		name:    "okx",
		tickers: []domain.Ticker{{Symbol: "BTC/USDT", Exchange: "okx", Bid: 60000, Ask: 60010}},
	}
	m := newTestManager(t, a)

	require.NoError(t, m.UpdateAllTickers(ctx))
	require.Len(t, m.GetAllTickers()["okx"], 1)

	a.tickersErr = fmt.Errorf("okx: fetch tickers: boom")
	require.NoError(t, m.UpdateAllTickers(ctx))

	assert.Len(t, m.GetAllTickers()["okx"], 1, "stale tickers must survive a failed refresh")
	statuses := m.Statuses()
	require.Len(t, statuses, 1)
	assert.False(t, statuses[0].IsOnline)
	assert.Equal(t, 1, statuses[0].ErrorCount)
}

func TestSingleTimeoutKeepsExchangeOnline(t *testing.T) {
	ctx := context.Background()
	a := &fakeAdapter{name: "bybit"}
	m := newTestManager(t, a)
	require.NoError(t, m.UpdateAllTickers(ctx))

	a.tickersErr = fmt.Errorf("bybit: fetch tickers: %w", context.DeadlineExceeded)
	require.NoError(t, m.UpdateAllTickers(ctx))
	assert.True(t, m.Statuses()[0].IsOnline, "one timeout is stale, not offline")

	require.NoError(t, m.UpdateAllTickers(ctx))
	assert.False(t, m.Statuses()[0].IsOnline, "repeated timeout takes the exchange offline")
}

func TestSuccessResetsErrorCount(t *testing.T) {
	ctx := context.Background()
	a := &fakeAdapter{name: "okx"}
	m := newTestManager(t, a)

	a.tickersErr = fmt.Errorf("transient")
	require.NoError(t, m.UpdateAllTickers(ctx))
	require.Equal(t, 1, m.Statuses()[0].ErrorCount)

	a.tickersErr = nil
	require.NoError(t, m.UpdateAllTickers(ctx))
	st := m.Statuses()[0]
	assert.True(t, st.IsOnline)
	assert.Zero(t, st.ErrorCount)
	assert.Empty(t, st.LastError)
}

func TestGetCurrencyNetworksFetchesOncePerTTL(t *testing.T) {
	ctx := context.Background()
	a := &fakeAdapter{
		name:     "gateio",
		networks: map[string][]string{"USDT": {"ERC20", "TRC20"}},
	}
	m := newTestManager(t, a)

	for i := 0; i < 5; i++ {
		got := m.GetCurrencyNetworks(ctx, "gateio", "USDT")
		require.Equal(t, []string{"ERC20", "TRC20"}, got)
	}
	assert.Equal(t, int64(1), a.networkCalls.Load(), "repeat lookups inside the TTL must hit the cache")
}

func TestGetCurrencyNetworksFailureIsEmptyNotError(t *testing.T) {
	ctx := context.Background()
	a := &fakeAdapter{name: "okx", networksErr: fmt.Errorf("unexpected status 500")}
	m := newTestManager(t, a)

	assert.Empty(t, m.GetCurrencyNetworks(ctx, "okx", "XYZ"))

	// Errors are not cached: once the exchange recovers, the next lookup
	// fetches fresh data.
	a.networksErr = nil
	a.networks = map[string][]string{"XYZ": {"BEP20"}}
	assert.Equal(t, []string{"BEP20"}, m.GetCurrencyNetworks(ctx, "okx", "XYZ"))
}

func TestCheckTransferAvailability(t *testing.T) {
	ctx := context.Background()
	buy := &fakeAdapter{
		name:     "okx",
		networks: map[string][]string{"USDT": {"ERC20", "TRC20", "Arbitrum One"}},
	}
	sell := &fakeAdapter{
		name:     "bybit",
		networks: map[string][]string{"USDT": {"TRC20", "ETH", "SOL"}},
	}
	m := newTestManager(t, buy, sell)

	avail := m.CheckTransferAvailability(ctx, "USDT/USDC", "okx", "bybit")
	require.NotNil(t, avail.BuyAvailable)
	require.NotNil(t, avail.SellAvailable)
	assert.True(t, *avail.BuyAvailable)
	assert.True(t, *avail.SellAvailable)
	// Intersection of normalized chains, ordered by chain priority.
	assert.Equal(t, []string{"ethereum", "tron"}, avail.CommonNetworks)
}

func TestCheckTransferAvailabilityUnknownOnFetchFailure(t *testing.T) {
	ctx := context.Background()
	buy := &fakeAdapter{name: "okx", networksErr: fmt.Errorf("timeout")}
	sell := &fakeAdapter{
		name:     "bybit",
		networks: map[string][]string{"BTC": {"BTC"}},
	}
	m := newTestManager(t, buy, sell)

	avail := m.CheckTransferAvailability(ctx, "BTC/USDT", "okx", "bybit")
	assert.Nil(t, avail.BuyAvailable, "failed metadata fetch is unknown, not false")
	require.NotNil(t, avail.SellAvailable)
	assert.True(t, *avail.SellAvailable)
	assert.Empty(t, avail.CommonNetworks)
}

func TestResolveBlockchainOverrideWins(t *testing.T) {
	a := &fakeAdapter{
		name: "okx",
		// Raw labels would vote tron; the curated override must win.
		networks: map[string][]string{"USDT": {"TRC20"}},
	}
	m := newTestManager(t, a)
	assert.Equal(t, "ethereum", m.ResolveBlockchain(context.Background(), "USDT/USDC"))
}

func TestCorroborateBlockchain(t *testing.T) {
	ctx := context.Background()
	a := &fakeAdapter{name: "okx", networks: map[string][]string{"PEPE": {"ERC20"}}}
	b := &fakeAdapter{name: "bybit", networks: map[string][]string{"PEPE": {"ETH", "BSC(BEP20)"}}}
	c := &fakeAdapter{name: "gateio", networks: map[string][]string{"PEPE": {"BEP20"}}}
	m := newTestManager(t, a, b, c)

	winner, confidence, corroborators := m.CorroborateBlockchain(ctx, "PEPE/USDT")
	// ethereum and bsc tie at two votes each; ethereum wins on priority.
	assert.Equal(t, "ethereum", winner)
	assert.InDelta(t, 2.0/3.0, confidence, 1e-9)
	assert.Equal(t, []string{"bybit", "okx"}, corroborators, "the exchanges that voted for the winner, sorted")
}

func TestCorroborateBlockchainInconclusive(t *testing.T) {
	a := &fakeAdapter{name: "okx", networks: map[string][]string{"XYZ": {"SomethingUnheardOf"}}}
	m := newTestManager(t, a)

	winner, confidence, corroborators := m.CorroborateBlockchain(context.Background(), "XYZ/USDT")
	assert.Empty(t, winner)
	assert.Zero(t, confidence)
	assert.Empty(t, corroborators)
}

func TestUpdateAllTickersReconnectsRecoveredExchange(t *testing.T) {
	ctx := context.Background()
	a := &fakeAdapter{name: "okx", tickers: []domain.Ticker{{Symbol: "BTC/USDT", Exchange: "okx", Bid: 60000}}}
	b := &fakeAdapter{
		name:       "bybit",
		tickers:    []domain.Ticker{{Symbol: "BTC/USDT", Exchange: "bybit", Bid: 60100}},
		connectErr: fmt.Errorf("bybit: connect: connection refused"),
	}
	m := NewManager([]Adapter{a, b}, time.Second, time.Hour, testLogger())
	require.NoError(t, m.InitializeExchanges(ctx), "one live exchange is enough to start")
	require.False(t, b.IsConnected())

	// While the exchange stays down, cycles keep failing its reconnect.
	require.NoError(t, m.UpdateAllTickers(ctx))
	assert.Empty(t, m.GetAllTickers()["bybit"])

	// The venue comes back: the next cycle must reconnect and poll it.
	b.connectErr = nil
	require.NoError(t, m.UpdateAllTickers(ctx))

	assert.True(t, b.IsConnected(), "recovered exchange must be reconnected")
	require.Len(t, m.GetAllTickers()["bybit"], 1)
	for _, st := range m.Statuses() {
		if st.Name == "bybit" {
			assert.True(t, st.IsOnline)
			assert.Zero(t, st.ErrorCount)
		}
	}
}

func TestGetTickersForSymbol(t *testing.T) {
	ctx := context.Background()
	a := &fakeAdapter{name: "okx", tickers: []domain.Ticker{
		{Symbol: "BTC/USDT", Exchange: "okx", Bid: 60000},
		{Symbol: "ETH/USDT", Exchange: "okx", Bid: 3000},
	}}
	b := &fakeAdapter{name: "bybit", tickers: []domain.Ticker{
		{Symbol: "BTC/USDT", Exchange: "bybit", Bid: 60100},
	}}
	m := newTestManager(t, a, b)
	require.NoError(t, m.UpdateAllTickers(ctx))

	got := m.GetTickersForSymbol("BTC/USDT")
	require.Len(t, got, 2)
	assert.Equal(t, "bybit", got[0].Exchange)
	assert.Equal(t, "okx", got[1].Exchange)
}

func TestDisconnectIdempotent(t *testing.T) {
	a := &fakeAdapter{name: "okx"}
	m := newTestManager(t, a)
	require.NoError(t, m.Disconnect())
	require.NoError(t, m.Disconnect())
	assert.False(t, a.IsConnected())
}
