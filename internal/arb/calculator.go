// Package arb turns a ticker snapshot into ranked cross-exchange arbitrage
// opportunities.
package arb

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/chainarb/chainarb/internal/domain"
)

// Params bounds a calculation run. Profit percentages are gross, before
// fees.
type Params struct {
	// MinProfit is the minimum gross profit percentage to report.
	MinProfit float64
	// MaxProfit is the sanity ceiling: anything above it is treated as bad
	// data (stale quote, delisted pair) and dropped.
	MaxProfit float64
	// MaxCount caps the number of opportunities returned per run.
	MaxCount int
}

// DefaultParams returns the standard thresholds: 0.5% floor, 110% ceiling,
// 50 opportunities per run.
func DefaultParams() Params {
	return Params{MinProfit: 0.5, MaxProfit: 110, MaxCount: 50}
}

// Market is the slice of the exchange manager Enrich needs.
type Market interface {
	ResolveBlockchain(ctx context.Context, symbol string) string
	CheckTransferAvailability(ctx context.Context, symbol, buyExchange, sellExchange string) *domain.TransferAvailability
}

// Calculator detects price gaps between exchanges. Calculate itself is pure:
// the same snapshot and params always produce the same result, in the same
// order.
type Calculator struct {
	logger *slog.Logger
}

func NewCalculator(logger *slog.Logger) *Calculator {
	return &Calculator{logger: logger.With(slog.String("component", "calculator"))}
}

// Calculate scans the snapshot for symbols quoted on at least two exchanges
// and emits every ordered (buy, sell) pair whose gross profit percentage
// falls inside [MinProfit, MaxProfit]. Buying happens at the buy exchange's
// ask, selling at the sell exchange's bid. Results are sorted by profit
// percentage desc, then profit amount desc, then symbol and exchange pair,
// and truncated to MaxCount.
func (c *Calculator) Calculate(tickersByExchange map[string][]domain.Ticker, params Params) []domain.ArbitrageOpportunity {
	if params.MaxCount <= 0 {
		params.MaxCount = DefaultParams().MaxCount
	}

	// symbol -> exchange -> ticker
	bySymbol := make(map[string]map[string]domain.Ticker)
	for exchangeName, tickers := range tickersByExchange {
		for _, t := range tickers {
			if bySymbol[t.Symbol] == nil {
				bySymbol[t.Symbol] = make(map[string]domain.Ticker)
			}
			bySymbol[t.Symbol][exchangeName] = t
		}
	}

	var opps []domain.ArbitrageOpportunity
	for symbol, byExchange := range bySymbol {
		if len(byExchange) < 2 {
			continue
		}
		for buyName, buyTicker := range byExchange {
			for sellName, sellTicker := range byExchange {
				if buyName == sellName {
					continue
				}
				buyPrice := buyTicker.Ask
				sellPrice := sellTicker.Bid
				if buyPrice <= 0 || sellPrice <= 0 {
					continue
				}
				amount := sellPrice - buyPrice
				pct := amount / buyPrice * 100
				if pct < params.MinProfit {
					continue
				}
				if pct > params.MaxProfit {
					c.logger.Warn("profit above sanity ceiling, dropping",
						slog.String("symbol", symbol),
						slog.String("buy_exchange", buyName),
						slog.String("sell_exchange", sellName),
						slog.Float64("profit_percent", pct))
					continue
				}
				opps = append(opps, domain.ArbitrageOpportunity{
					Symbol:           symbol,
					BuyExchange:      buyName,
					SellExchange:     sellName,
					BuyPrice:         buyPrice,
					SellPrice:        sellPrice,
					ProfitPercentage: pct,
					ProfitAmount:     amount,
					Volume:           min(buyTicker.Volume, sellTicker.Volume),
					Timestamp:        laterOf(buyTicker.Timestamp, sellTicker.Timestamp),
				})
			}
		}
	}

	sort.Slice(opps, func(i, j int) bool {
		a, b := opps[i], opps[j]
		if a.ProfitPercentage != b.ProfitPercentage {
			return a.ProfitPercentage > b.ProfitPercentage
		}
		if a.ProfitAmount != b.ProfitAmount {
			return a.ProfitAmount > b.ProfitAmount
		}
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		if a.BuyExchange != b.BuyExchange {
			return a.BuyExchange < b.BuyExchange
		}
		return a.SellExchange < b.SellExchange
	})

	if len(opps) > params.MaxCount {
		opps = opps[:params.MaxCount]
	}
	return opps
}

// Enrich attaches blockchain and transfer-availability metadata to each
// opportunity. Inconclusive resolutions leave the fields unset; enrichment
// never drops an opportunity.
func (c *Calculator) Enrich(ctx context.Context, opps []domain.ArbitrageOpportunity, market Market) []domain.ArbitrageOpportunity {
	for i := range opps {
		opps[i].Blockchain = market.ResolveBlockchain(ctx, opps[i].Symbol)
		opps[i].Transfer = market.CheckTransferAvailability(ctx, opps[i].Symbol, opps[i].BuyExchange, opps[i].SellExchange)
	}
	return opps
}

func laterOf(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
