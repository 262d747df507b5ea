package arb

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainarb/chainarb/internal/domain"
)

func newTestCalculator() *Calculator {
	return NewCalculator(slog.New(slog.DiscardHandler))
}

func snapshot(tickers ...domain.Ticker) map[string][]domain.Ticker {
	out := make(map[string][]domain.Ticker)
	for _, t := range tickers {
		out[t.Exchange] = append(out[t.Exchange], t)
	}
	return out
}

func TestCalculateProfitExactness(t *testing.T) {
	c := newTestCalculator()
	opps := c.Calculate(snapshot(
		domain.Ticker{Symbol: "BTC/USDT", Exchange: "okx", Bid: 59990, Ask: 60000},
		domain.Ticker{Symbol: "BTC/USDT", Exchange: "bybit", Bid: 60900, Ask: 60910},
	), DefaultParams())

	require.Len(t, opps, 1)
	opp := opps[0]
	assert.Equal(t, "okx", opp.BuyExchange)
	assert.Equal(t, "bybit", opp.SellExchange)
	assert.Equal(t, 60000.0, opp.BuyPrice, "buy happens at the buy exchange's ask")
	assert.Equal(t, 60900.0, opp.SellPrice, "sell happens at the sell exchange's bid")
	assert.InDelta(t, 900.0, opp.ProfitAmount, 1e-9)
	assert.InDelta(t, 1.5, opp.ProfitPercentage, 1e-9)
}

func TestCalculateRejectsBelowFloorAndAboveCeiling(t *testing.T) {
	c := newTestCalculator()

	// 0.1% gap: below the 0.5% floor.
	opps := c.Calculate(snapshot(
		domain.Ticker{Symbol: "ETH/USDT", Exchange: "okx", Bid: 2999, Ask: 3000},
		domain.Ticker{Symbol: "ETH/USDT", Exchange: "bybit", Bid: 3003, Ask: 3004},
	), DefaultParams())
	assert.Empty(t, opps)

	// 121.7% gap: above the 110% sanity ceiling, stale-quote territory.
	opps = c.Calculate(snapshot(
		domain.Ticker{Symbol: "BTC/USDT", Exchange: "okx", Bid: 59990, Ask: 60000},
		domain.Ticker{Symbol: "BTC/USDT", Exchange: "gateio", Bid: 133000, Ask: 133100},
	), DefaultParams())
	assert.Empty(t, opps)
}

func TestCalculateSkipsNonPositiveQuotes(t *testing.T) {
	c := newTestCalculator()
	opps := c.Calculate(snapshot(
		domain.Ticker{Symbol: "XYZ/USDT", Exchange: "okx", Bid: 0, Ask: 0},
		domain.Ticker{Symbol: "XYZ/USDT", Exchange: "bybit", Bid: 1.5, Ask: 1.6},
	), DefaultParams())
	assert.Empty(t, opps)
}

func TestCalculateIsDeterministic(t *testing.T) {
	c := newTestCalculator()
	snap := snapshot(
		domain.Ticker{Symbol: "BTC/USDT", Exchange: "okx", Bid: 60500, Ask: 60510, Volume: 5},
		domain.Ticker{Symbol: "BTC/USDT", Exchange: "bybit", Bid: 61200, Ask: 61210, Volume: 7},
		domain.Ticker{Symbol: "ETH/USDT", Exchange: "okx", Bid: 3030, Ask: 3031, Volume: 100},
		domain.Ticker{Symbol: "ETH/USDT", Exchange: "gateio", Bid: 3065, Ask: 3066, Volume: 80},
		domain.Ticker{Symbol: "SOL/USDT", Exchange: "bybit", Bid: 150, Ask: 150.1, Volume: 400},
		domain.Ticker{Symbol: "SOL/USDT", Exchange: "gateio", Bid: 152, Ask: 152.2, Volume: 300},
	)

	first := c.Calculate(snap, DefaultParams())
	require.NotEmpty(t, first)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, c.Calculate(snap, DefaultParams()), "map iteration order must not leak into results")
	}
	for i := 1; i < len(first); i++ {
		assert.GreaterOrEqual(t, first[i-1].ProfitPercentage, first[i].ProfitPercentage)
	}
}

func TestCalculateTieBreakIsLexical(t *testing.T) {
	c := newTestCalculator()
	// Two symbols with identical percentages and amounts; order must come
	// from the symbol name, not map iteration.
	snap := snapshot(
		domain.Ticker{Symbol: "AAA/USDT", Exchange: "okx", Bid: 99, Ask: 100},
		domain.Ticker{Symbol: "AAA/USDT", Exchange: "bybit", Bid: 102, Ask: 103},
		domain.Ticker{Symbol: "BBB/USDT", Exchange: "okx", Bid: 99, Ask: 100},
		domain.Ticker{Symbol: "BBB/USDT", Exchange: "bybit", Bid: 102, Ask: 103},
	)
	opps := c.Calculate(snap, DefaultParams())
	require.Len(t, opps, 2)
	assert.Equal(t, "AAA/USDT", opps[0].Symbol)
	assert.Equal(t, "BBB/USDT", opps[1].Symbol)
}

func TestCalculateTruncatesToMaxCount(t *testing.T) {
	c := newTestCalculator()
	snap := snapshot(
		domain.Ticker{Symbol: "A/USDT", Exchange: "okx", Bid: 99, Ask: 100},
		domain.Ticker{Symbol: "A/USDT", Exchange: "bybit", Bid: 104, Ask: 105},
		domain.Ticker{Symbol: "B/USDT", Exchange: "okx", Bid: 99, Ask: 100},
		domain.Ticker{Symbol: "B/USDT", Exchange: "bybit", Bid: 102, Ask: 103},
	)
	opps := c.Calculate(snap, Params{MinProfit: 0.5, MaxProfit: 110, MaxCount: 1})
	require.Len(t, opps, 1)
	assert.Equal(t, "A/USDT", opps[0].Symbol, "truncation keeps the most profitable opportunity")
}

func TestCalculateVolumeAndTimestamp(t *testing.T) {
	c := newTestCalculator()
	older := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	newer := older.Add(3 * time.Second)
	opps := c.Calculate(snapshot(
		domain.Ticker{Symbol: "BTC/USDT", Exchange: "okx", Bid: 59990, Ask: 60000, Volume: 12, Timestamp: older},
		domain.Ticker{Symbol: "BTC/USDT", Exchange: "bybit", Bid: 60900, Ask: 60910, Volume: 8, Timestamp: newer},
	), DefaultParams())

	require.Len(t, opps, 1)
	assert.Equal(t, 8.0, opps[0].Volume, "tradable volume is the smaller side")
	assert.Equal(t, newer, opps[0].Timestamp)
}

type stubMarket struct {
	blockchain string
	transfer   *domain.TransferAvailability
}

func (s stubMarket) ResolveBlockchain(context.Context, string) string { return s.blockchain }

func (s stubMarket) CheckTransferAvailability(context.Context, string, string, string) *domain.TransferAvailability {
	return s.transfer
}

func TestEnrichAttachesMetadata(t *testing.T) {
	c := newTestCalculator()
	yes := true
	market := stubMarket{
		blockchain: "ethereum",
		transfer:   &domain.TransferAvailability{BuyAvailable: &yes, SellAvailable: &yes, CommonNetworks: []string{"ethereum"}},
	}

	opps := []domain.ArbitrageOpportunity{{Symbol: "PEPE/USDT", BuyExchange: "okx", SellExchange: "bybit"}}
	got := c.Enrich(context.Background(), opps, market)
	require.Len(t, got, 1)
	assert.Equal(t, "ethereum", got[0].Blockchain)
	require.NotNil(t, got[0].Transfer)
	assert.Equal(t, []string{"ethereum"}, got[0].Transfer.CommonNetworks)
}

func TestEnrichLeavesInconclusiveUnset(t *testing.T) {
	c := newTestCalculator()
	market := stubMarket{blockchain: "", transfer: &domain.TransferAvailability{}}
	got := c.Enrich(context.Background(), []domain.ArbitrageOpportunity{{Symbol: "XYZ/USDT"}}, market)
	require.Len(t, got, 1)
	assert.Empty(t, got[0].Blockchain)
}
