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

// Bybit is the REST adapter for the Bybit spot market.
type Bybit struct {
	baseURL    string
	httpClient *http.Client
	connected  atomic.Bool
}

// NewBybit creates a Bybit adapter.
func NewBybit(baseURL string) *Bybit {
	if baseURL == "" {
		baseURL = "https://api.bybit.com"
	}
	return &Bybit{
		baseURL:    baseURL,
		httpClient: newHTTPClient(),
	}
}

func (b *Bybit) Name() string { return "bybit" }

type bybitEnvelope[T any] struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  T      `json:"result"`
}

type bybitTickerList struct {
	List []bybitTicker `json:"list"`
}

type bybitTicker struct {
	Symbol      string `json:"symbol"`
	Bid1Price   string `json:"bid1Price"`
	Ask1Price   string `json:"ask1Price"`
	Volume24h   string `json:"volume24h"`
	Turnover24h string `json:"turnover24h"`
}

type bybitCoinInfo struct {
	Rows []struct {
		Coin   string `json:"coin"`
		Chains []struct {
			Chain     string `json:"chain"`
			ChainType string `json:"chainType"`
		} `json:"chains"`
	} `json:"rows"`
}

// Connect checks the market time endpoint.
func (b *Bybit) Connect(ctx context.Context) error {
	var out bybitEnvelope[map[string]any]
	if err := getJSON(ctx, b.httpClient, b.baseURL+"/v5/market/time", &out); err != nil {
		return fmt.Errorf("bybit: connect: %w", err)
	}
	b.connected.Store(true)
	return nil
}

// FetchTickers returns all spot tickers quoted in a supported quote asset.
func (b *Bybit) FetchTickers(ctx context.Context) ([]domain.Ticker, error) {
	if !b.connected.Load() {
		return nil, fmt.Errorf("bybit: %w", domain.ErrNotConnected)
	}

	var out bybitEnvelope[bybitTickerList]
	if err := getJSON(ctx, b.httpClient, b.baseURL+"/v5/market/tickers?category=spot", &out); err != nil {
		return nil, fmt.Errorf("bybit: fetch tickers: %w", err)
	}
	if out.RetCode != 0 {
		return nil, fmt.Errorf("bybit: fetch tickers: api code %d: %s", out.RetCode, out.RetMsg)
	}

	now := time.Now().UTC()
	tickers := make([]domain.Ticker, 0, len(out.Result.List))
	for _, t := range out.Result.List {
		base, quote, ok := splitPair(t.Symbol)
		if !ok {
			continue
		}
		tickers = append(tickers, domain.Ticker{
			Symbol:    base + "/" + quote,
			Exchange:  b.Name(),
			Bid:       parseFloat(t.Bid1Price),
			Ask:       parseFloat(t.Ask1Price),
			Volume:    parseFloat(t.Volume24h),
			Volume24h: parseFloat(t.Turnover24h),
			Timestamp: now,
		})
	}
	return tickers, nil
}

// FetchCurrencyNetworks returns the raw chain labels Bybit supports for a
// coin. The chainType field carries the network label users see ("TRC20");
// the chain field ("TRX") is used when chainType is absent.
func (b *Bybit) FetchCurrencyNetworks(ctx context.Context, currency string) ([]string, error) {
	if !b.connected.Load() {
		return nil, fmt.Errorf("bybit: %w", domain.ErrNotConnected)
	}

	endpoint := b.baseURL + "/v5/asset/coin/query-info?coin=" + url.QueryEscape(strings.ToUpper(currency))
	var out bybitEnvelope[bybitCoinInfo]
	if err := getJSON(ctx, b.httpClient, endpoint, &out); err != nil {
		return nil, fmt.Errorf("bybit: fetch networks %s: %w", currency, err)
	}
	if out.RetCode != 0 {
		return nil, fmt.Errorf("bybit: fetch networks %s: api code %d: %s", currency, out.RetCode, out.RetMsg)
	}

	var networks []string
	for _, row := range out.Result.Rows {
		for _, c := range row.Chains {
			label := c.ChainType
			if label == "" {
				label = c.Chain
			}
			if label != "" {
				networks = append(networks, label)
			}
		}
	}
	return networks, nil
}

func (b *Bybit) IsConnected() bool { return b.connected.Load() }

func (b *Bybit) Disconnect() error {
	b.connected.Store(false)
	return nil
}

// Compile-time interface check.
var _ Adapter = (*Bybit)(nil)
