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

// Bitget is the REST adapter for the Bitget spot market.
type Bitget struct {
	baseURL    string
	httpClient *http.Client
	connected  atomic.Bool
}

// NewBitget creates a Bitget adapter.
func NewBitget(baseURL string) *Bitget {
	if baseURL == "" {
		baseURL = "https://api.bitget.com"
	}
	return &Bitget{
		baseURL:    baseURL,
		httpClient: newHTTPClient(),
	}
}

func (b *Bitget) Name() string { return "bitget" }

type bitgetEnvelope[T any] struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data T      `json:"data"`
}

type bitgetTicker struct {
	Symbol      string `json:"symbol"`
	BidPr       string `json:"bidPr"`
	AskPr       string `json:"askPr"`
	BaseVolume  string `json:"baseVolume"`
	QuoteVolume string `json:"quoteVolume"`
	Ts          string `json:"ts"`
}

type bitgetCoin struct {
	Coin   string `json:"coin"`
	Chains []struct {
		Chain        string `json:"chain"`
		Withdrawable string `json:"withdrawable"`
		Rechargeable string `json:"rechargeable"`
	} `json:"chains"`
}

// Connect checks the public time endpoint.
func (b *Bitget) Connect(ctx context.Context) error {
	var out bitgetEnvelope[map[string]string]
	if err := getJSON(ctx, b.httpClient, b.baseURL+"/api/v2/public/time", &out); err != nil {
		return fmt.Errorf("bitget: connect: %w", err)
	}
	b.connected.Store(true)
	return nil
}

// FetchTickers returns all spot tickers quoted in a supported quote asset.
func (b *Bitget) FetchTickers(ctx context.Context) ([]domain.Ticker, error) {
	if !b.connected.Load() {
		return nil, fmt.Errorf("bitget: %w", domain.ErrNotConnected)
	}

	var out bitgetEnvelope[[]bitgetTicker]
	if err := getJSON(ctx, b.httpClient, b.baseURL+"/api/v2/spot/market/tickers", &out); err != nil {
		return nil, fmt.Errorf("bitget: fetch tickers: %w", err)
	}
	if out.Code != "00000" {
		return nil, fmt.Errorf("bitget: fetch tickers: api code %s: %s", out.Code, out.Msg)
	}

	now := time.Now().UTC()
	tickers := make([]domain.Ticker, 0, len(out.Data))
	for _, t := range out.Data {
		base, quote, ok := splitPair(t.Symbol)
		if !ok {
			continue
		}
		tickers = append(tickers, domain.Ticker{
			Symbol:    base + "/" + quote,
			Exchange:  b.Name(),
			Bid:       parseFloat(t.BidPr),
			Ask:       parseFloat(t.AskPr),
			Volume:    parseFloat(t.BaseVolume),
			Volume24h: parseFloat(t.QuoteVolume),
			Timestamp: now,
		})
	}
	return tickers, nil
}

// FetchCurrencyNetworks returns the raw chain labels Bitget supports for a
// coin, skipping chains where the asset can be neither deposited nor
// withdrawn.
func (b *Bitget) FetchCurrencyNetworks(ctx context.Context, currency string) ([]string, error) {
	if !b.connected.Load() {
		return nil, fmt.Errorf("bitget: %w", domain.ErrNotConnected)
	}

	endpoint := b.baseURL + "/api/v2/spot/public/coins?coin=" + url.QueryEscape(strings.ToUpper(currency))
	var out bitgetEnvelope[[]bitgetCoin]
	if err := getJSON(ctx, b.httpClient, endpoint, &out); err != nil {
		return nil, fmt.Errorf("bitget: fetch networks %s: %w", currency, err)
	}
	if out.Code != "00000" {
		return nil, fmt.Errorf("bitget: fetch networks %s: api code %s: %s", currency, out.Code, out.Msg)
	}

	var networks []string
	for _, coin := range out.Data {
		for _, c := range coin.Chains {
			if c.Chain == "" {
				continue
			}
			if c.Withdrawable == "false" && c.Rechargeable == "false" {
				continue
			}
			networks = append(networks, c.Chain)
		}
	}
	return networks, nil
}

func (b *Bitget) IsConnected() bool { return b.connected.Load() }

func (b *Bitget) Disconnect() error {
	b.connected.Store(false)
	return nil
}

// Compile-time interface check.
var _ Adapter = (*Bitget)(nil)
