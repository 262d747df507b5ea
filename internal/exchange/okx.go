package exchange

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/chainarb/chainarb/internal/domain"
)

// OKX is the REST adapter for the OKX spot market.
type OKX struct {
	baseURL    string
	httpClient *http.Client
	connected  atomic.Bool
}

// NewOKX creates an OKX adapter. baseURL defaults to the public endpoint
// when empty.
func NewOKX(baseURL string) *OKX {
	if baseURL == "" {
		baseURL = "https://www.okx.com"
	}
	return &OKX{
		baseURL:    baseURL,
		httpClient: newHTTPClient(),
	}
}

func (o *OKX) Name() string { return "okx" }

type okxEnvelope[T any] struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []T    `json:"data"`
}

type okxTicker struct {
	InstID    string `json:"instId"`
	BidPx     string `json:"bidPx"`
	AskPx     string `json:"askPx"`
	Vol24h    string `json:"vol24h"`
	VolCcy24h string `json:"volCcy24h"`
	Ts        string `json:"ts"`
}

type okxCurrency struct {
	Ccy   string `json:"ccy"`
	Chain string `json:"chain"`
	CanWd bool   `json:"canWd"`
}

// Connect checks the public time endpoint.
func (o *OKX) Connect(ctx context.Context) error {
	var out okxEnvelope[map[string]string]
	if err := getJSON(ctx, o.httpClient, o.baseURL+"/api/v5/public/time", &out); err != nil {
		return fmt.Errorf("okx: connect: %w", err)
	}
	o.connected.Store(true)
	return nil
}

// FetchTickers returns all spot tickers quoted in a supported quote asset.
func (o *OKX) FetchTickers(ctx context.Context) ([]domain.Ticker, error) {
	if !o.connected.Load() {
		return nil, fmt.Errorf("okx: %w", domain.ErrNotConnected)
	}

	var out okxEnvelope[okxTicker]
	if err := getJSON(ctx, o.httpClient, o.baseURL+"/api/v5/market/tickers?instType=SPOT", &out); err != nil {
		return nil, fmt.Errorf("okx: fetch tickers: %w", err)
	}
	if out.Code != "0" {
		return nil, fmt.Errorf("okx: fetch tickers: api code %s: %s", out.Code, out.Msg)
	}

	tickers := make([]domain.Ticker, 0, len(out.Data))
	for _, t := range out.Data {
		base, quote, found := strings.Cut(t.InstID, "-")
		if !found {
			continue
		}
		if !supportedQuote(quote) {
			continue
		}
		ts := time.Now().UTC()
		if ms, err := strconv.ParseInt(t.Ts, 10, 64); err == nil {
			ts = time.UnixMilli(ms).UTC()
		}
		tickers = append(tickers, domain.Ticker{
			Symbol:    base + "/" + quote,
			Exchange:  o.Name(),
			Bid:       parseFloat(t.BidPx),
			Ask:       parseFloat(t.AskPx),
			Volume:    parseFloat(t.Vol24h),
			Volume24h: parseFloat(t.VolCcy24h),
			Timestamp: ts,
		})
	}
	return tickers, nil
}

// FetchCurrencyNetworks returns the raw chain labels OKX supports for a
// currency. OKX encodes chains as "CCY-LABEL" (e.g. "USDT-TRC20"); the
// currency prefix is stripped before returning.
func (o *OKX) FetchCurrencyNetworks(ctx context.Context, currency string) ([]string, error) {
	if !o.connected.Load() {
		return nil, fmt.Errorf("okx: %w", domain.ErrNotConnected)
	}

	endpoint := o.baseURL + "/api/v5/asset/currencies?ccy=" + url.QueryEscape(strings.ToUpper(currency))
	var out okxEnvelope[okxCurrency]
	if err := getJSON(ctx, o.httpClient, endpoint, &out); err != nil {
		return nil, fmt.Errorf("okx: fetch networks %s: %w", currency, err)
	}
	if out.Code != "0" {
		return nil, fmt.Errorf("okx: fetch networks %s: api code %s: %s", currency, out.Code, out.Msg)
	}

	var networks []string
	for _, c := range out.Data {
		label := c.Chain
		if prefix := c.Ccy + "-"; strings.HasPrefix(label, prefix) {
			label = label[len(prefix):]
		}
		if label != "" {
			networks = append(networks, label)
		}
	}
	return networks, nil
}

func (o *OKX) IsConnected() bool { return o.connected.Load() }

func (o *OKX) Disconnect() error {
	o.connected.Store(false)
	return nil
}

func supportedQuote(quote string) bool {
	for _, q := range quoteAssets {
		if q == quote {
			return true
		}
	}
	return false
}

// Compile-time interface check.
var _ Adapter = (*OKX)(nil)
