package exchange

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/chainarb/chainarb/internal/domain"
)

// Gate is the REST adapter for the Gate.io spot market.
type Gate struct {
	baseURL    string
	httpClient *http.Client
	connected  atomic.Bool
}

// NewGate creates a Gate.io adapter.
func NewGate(baseURL string) *Gate {
	if baseURL == "" {
		baseURL = "https://api.gateio.ws/api/v4"
	}
	return &Gate{
		baseURL:    baseURL,
		httpClient: newHTTPClient(),
	}
}

func (g *Gate) Name() string { return "gateio" }

type gateTicker struct {
	CurrencyPair string `json:"currency_pair"`
	HighestBid   string `json:"highest_bid"`
	LowestAsk    string `json:"lowest_ask"`
	BaseVolume   string `json:"base_volume"`
	QuoteVolume  string `json:"quote_volume"`
}

type gateChain struct {
	Chain              string `json:"chain"`
	IsDepositDisabled  int    `json:"is_deposit_disabled"`
	IsWithdrawDisabled int    `json:"is_withdraw_disabled"`
}

// Connect checks the spot time endpoint.
func (g *Gate) Connect(ctx context.Context) error {
	var out map[string]any
	if err := getJSON(ctx, g.httpClient, g.baseURL+"/spot/time", &out); err != nil {
		return fmt.Errorf("gateio: connect: %w", err)
	}
	g.connected.Store(true)
	return nil
}

// FetchTickers returns all spot tickers quoted in a supported quote asset.
func (g *Gate) FetchTickers(ctx context.Context) ([]domain.Ticker, error) {
	if !g.connected.Load() {
		return nil, fmt.Errorf("gateio: %w", domain.ErrNotConnected)
	}

	var out []gateTicker
	if err := getJSON(ctx, g.httpClient, g.baseURL+"/spot/tickers", &out); err != nil {
		return nil, fmt.Errorf("gateio: fetch tickers: %w", err)
	}

	now := time.Now().UTC()
	tickers := make([]domain.Ticker, 0, len(out))
	for _, t := range out {
		base, quote, found := strings.Cut(t.CurrencyPair, "_")
		if !found || !supportedQuote(quote) {
			continue
		}
		tickers = append(tickers, domain.Ticker{
			Symbol:    base + "/" + quote,
			Exchange:  g.Name(),
			Bid:       parseFloat(t.HighestBid),
			Ask:       parseFloat(t.LowestAsk),
			Volume:    parseFloat(t.BaseVolume),
			Volume24h: parseFloat(t.QuoteVolume),
			Timestamp: now,
		})
	}
	return tickers, nil
}

// FetchCurrencyNetworks returns the raw chain labels Gate.io supports for a
// currency. Chains with both deposits and withdrawals disabled are skipped
// since the asset cannot actually be moved over them.
func (g *Gate) FetchCurrencyNetworks(ctx context.Context, currency string) ([]string, error) {
	if !g.connected.Load() {
		return nil, fmt.Errorf("gateio: %w", domain.ErrNotConnected)
	}

	endpoint := g.baseURL + "/wallet/currency_chains?currency=" + url.QueryEscape(strings.ToUpper(currency))
	var out []gateChain
	if err := getJSON(ctx, g.httpClient, endpoint, &out); err != nil {
		return nil, fmt.Errorf("gateio: fetch networks %s: %w", currency, err)
	}

	var networks []string
	for _, c := range out {
		if c.Chain == "" {
			continue
		}
		if c.IsDepositDisabled == 1 && c.IsWithdrawDisabled == 1 {
			continue
		}
		networks = append(networks, c.Chain)
	}
	return networks, nil
}

func (g *Gate) IsConnected() bool { return g.connected.Load() }

func (g *Gate) Disconnect() error {
	g.connected.Store(false)
	return nil
}

// Compile-time interface check.
var _ Adapter = (*Gate)(nil)
