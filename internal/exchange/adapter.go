// Package exchange contains the per-exchange REST adapters and the manager
// that polls them, caches their tickers and network metadata, and reports
// their health.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/chainarb/chainarb/internal/domain"
)

// Adapter is the capability set every exchange integration provides. All
// endpoints used are public; no credentials are required for read-only
// ticker and network metadata access.
type Adapter interface {
	// Name returns the exchange identifier, e.g. "okx".
	Name() string
	// Connect verifies the exchange is reachable and marks the adapter
	// connected. It must be called before FetchTickers.
	Connect(ctx context.Context) error
	// FetchTickers returns the current spot quotes for every symbol the
	// exchange lists against the supported quote assets.
	FetchTickers(ctx context.Context) ([]domain.Ticker, error)
	// FetchCurrencyNetworks returns the raw network labels the exchange
	// supports for deposits/withdrawals of the given currency. Labels are
	// exchange-specific; normalization is the caller's concern.
	FetchCurrencyNetworks(ctx context.Context, currency string) ([]string, error)
	// IsConnected reports whether Connect succeeded and Disconnect has not
	// been called since.
	IsConnected() bool
	// Disconnect releases the adapter. Idempotent.
	Disconnect() error
}

// defaultHTTPTimeout bounds a single REST call independent of the caller's
// context.
const defaultHTTPTimeout = 15 * time.Second

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultHTTPTimeout}
}

// getJSON issues a GET request and decodes the JSON response body into v.
func getJSON(ctx context.Context, client *http.Client, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// parseFloat converts an exchange's string-encoded number, treating the
// empty string as zero.
func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// quoteAssets are the quote currencies adapters report tickers for, checked
// in order when splitting concatenated pair symbols like "BTCUSDT".
var quoteAssets = []string{"USDT", "USDC", "BTC", "ETH"}

// splitPair splits a concatenated pair symbol into base and quote using the
// known quote-asset suffixes. ok is false for symbols that do not end in a
// supported quote asset.
func splitPair(symbol string) (base, quote string, ok bool) {
	for _, q := range quoteAssets {
		if strings.HasSuffix(symbol, q) && len(symbol) > len(q) {
			return symbol[:len(symbol)-len(q)], q, true
		}
	}
	return "", "", false
}
