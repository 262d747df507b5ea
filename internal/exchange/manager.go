package exchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chainarb/chainarb/internal/cache/ttl"
	"github.com/chainarb/chainarb/internal/chain"
	"github.com/chainarb/chainarb/internal/domain"
)

const (
	defaultFetchTimeout = 8 * time.Second
	defaultNetworkTTL   = time.Hour
)

// Manager owns the adapter set, the per-exchange ticker cache, the
// network-metadata cache and the health view. All methods are safe for
// concurrent use.
type Manager struct {
	adapters     []Adapter
	fetchTimeout time.Duration
	logger       *slog.Logger

	mu       sync.RWMutex
	tickers  map[string][]domain.Ticker
	statuses map[string]*domain.ExchangeStatus

	networks *ttl.Cache[string, []string]
}

// NewManager creates a Manager over the given adapters. Zero durations fall
// back to the defaults (8s fetch timeout, 1h network-metadata TTL).
func NewManager(adapters []Adapter, fetchTimeout, networkTTL time.Duration, logger *slog.Logger) *Manager {
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}
	if networkTTL <= 0 {
		networkTTL = defaultNetworkTTL
	}
	m := &Manager{
		adapters:     adapters,
		fetchTimeout: fetchTimeout,
		logger:       logger.With(slog.String("component", "exchange_manager")),
		tickers:      make(map[string][]domain.Ticker),
		statuses:     make(map[string]*domain.ExchangeStatus),
		networks:     ttl.New[string, []string](networkTTL),
	}
	for _, a := range adapters {
		m.statuses[a.Name()] = &domain.ExchangeStatus{Name: a.Name()}
	}
	return m
}

// InitializeExchanges connects every adapter concurrently. Individual
// failures are recorded in the status view and logged; the call only errors
// when no exchange at all came online.
func (m *Manager) InitializeExchanges(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, a := range m.adapters {
		wg.Add(1)
		go func(a Adapter) {
			defer wg.Done()
			connectCtx, cancel := context.WithTimeout(ctx, m.fetchTimeout)
			defer cancel()
			if err := a.Connect(connectCtx); err != nil {
				m.recordFailure(a.Name(), err)
				m.logger.Warn("exchange connect failed",
					slog.String("exchange", a.Name()),
					slog.String("error", err.Error()))
				return
			}
			m.recordSuccess(a.Name(), 0)
			m.logger.Info("exchange connected", slog.String("exchange", a.Name()))
		}(a)
	}
	wg.Wait()

	for _, a := range m.adapters {
		if a.IsConnected() {
			return nil
		}
	}
	return errors.New("exchange: no exchange could be connected")
}

// UpdateAllTickers refreshes every exchange's ticker slice concurrently,
// each fetch bounded by the per-exchange timeout. Disconnected adapters get a
// reconnect attempt first, so an exchange that was down at startup rejoins as
// soon as it recovers. A failed fetch leaves the previous (stale) tickers in
// place; a single timeout keeps the exchange online, a real failure or a
// repeated timeout marks it offline.
func (m *Manager) UpdateAllTickers(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, a := range m.adapters {
		a := a
		g.Go(func() error {
			if !a.IsConnected() {
				connectCtx, cancel := context.WithTimeout(ctx, m.fetchTimeout)
				err := a.Connect(connectCtx)
				cancel()
				if err != nil {
					m.recordFailure(a.Name(), err)
					m.logger.Warn("exchange reconnect failed",
						slog.String("exchange", a.Name()),
						slog.String("error", err.Error()))
					return nil
				}
				m.logger.Info("exchange reconnected", slog.String("exchange", a.Name()))
			}

			fetchCtx, cancel := context.WithTimeout(ctx, m.fetchTimeout)
			defer cancel()

			start := time.Now()
			tickers, err := a.FetchTickers(fetchCtx)
			elapsed := time.Since(start)
			if err != nil {
				m.recordFailure(a.Name(), err)
				m.logger.Warn("ticker update failed",
					slog.String("exchange", a.Name()),
					slog.Duration("elapsed", elapsed),
					slog.String("error", err.Error()))
				return nil
			}

			m.mu.Lock()
			m.tickers[a.Name()] = tickers
			m.mu.Unlock()
			m.recordSuccess(a.Name(), elapsed)

			m.logger.Debug("tickers updated",
				slog.String("exchange", a.Name()),
				slog.Int("count", len(tickers)),
				slog.Duration("elapsed", elapsed))
			return nil
		})
	}
	return g.Wait()
}

func (m *Manager) recordSuccess(name string, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.statuses[name]
	st.IsOnline = true
	st.ErrorCount = 0
	st.LastUpdate = time.Now().UTC()
	st.ResponseTime = elapsed
	st.LastError = ""
}

func (m *Manager) recordFailure(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.statuses[name]
	st.ErrorCount++
	st.LastError = err.Error()
	// A lone timeout is treated as a slow exchange, not a dead one. Anything
	// else, or a second consecutive timeout, takes it offline.
	if errors.Is(err, context.DeadlineExceeded) && st.ErrorCount == 1 {
		return
	}
	st.IsOnline = false
}

// GetAllTickers returns a copy of the current ticker snapshot keyed by
// exchange name.
func (m *Manager) GetAllTickers() map[string][]domain.Ticker {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]domain.Ticker, len(m.tickers))
	for name, list := range m.tickers {
		cp := make([]domain.Ticker, len(list))
		copy(cp, list)
		out[name] = cp
	}
	return out
}

// GetTickersForSymbol returns every exchange's current ticker for the given
// pair symbol, ordered by exchange name.
func (m *Manager) GetTickersForSymbol(symbol string) []domain.Ticker {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Ticker
	for _, list := range m.tickers {
		for _, t := range list {
			if t.Symbol == symbol {
				out = append(out, t)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Exchange < out[j].Exchange })
	return out
}

// GetCurrencyNetworks returns the raw network labels an exchange supports
// for a currency, served from the TTL cache. A failed fetch yields an empty
// list rather than an error so callers degrade to "unknown".
func (m *Manager) GetCurrencyNetworks(ctx context.Context, exchangeName, currency string) []string {
	networks, err := m.networksFor(ctx, exchangeName, currency)
	if err != nil {
		m.logger.Warn("network metadata fetch failed",
			slog.String("exchange", exchangeName),
			slog.String("currency", currency),
			slog.String("error", err.Error()))
		return nil
	}
	return networks
}

// networksFor is the error-preserving variant backing both the public
// accessor and transfer-availability checks, which need to tell "no chains"
// apart from "lookup failed".
func (m *Manager) networksFor(ctx context.Context, exchangeName, currency string) ([]string, error) {
	adapter := m.adapterByName(exchangeName)
	if adapter == nil {
		return nil, fmt.Errorf("exchange: unknown exchange %q", exchangeName)
	}
	key := exchangeName + ":" + strings.ToUpper(currency)
	return m.networks.GetOrFetch(ctx, key, func(ctx context.Context) ([]string, error) {
		fetchCtx, cancel := context.WithTimeout(ctx, m.fetchTimeout)
		defer cancel()
		return adapter.FetchCurrencyNetworks(fetchCtx, currency)
	})
}

func (m *Manager) adapterByName(name string) Adapter {
	for _, a := range m.adapters {
		if a.Name() == name {
			return a
		}
	}
	return nil
}

// CheckTransferAvailability reports whether the base asset of symbol can be
// moved on and off both venues. A nil flag means the exchange's network
// metadata could not be fetched; CommonNetworks holds the canonical chains
// both sides support, ordered by chain priority.
func (m *Manager) CheckTransferAvailability(ctx context.Context, symbol, buyExchange, sellExchange string) *domain.TransferAvailability {
	base, _, _ := strings.Cut(symbol, "/")
	avail := &domain.TransferAvailability{}

	buyNetworks, buyErr := m.networksFor(ctx, buyExchange, base)
	if buyErr == nil {
		v := len(buyNetworks) > 0
		avail.BuyAvailable = &v
	}
	sellNetworks, sellErr := m.networksFor(ctx, sellExchange, base)
	if sellErr == nil {
		v := len(sellNetworks) > 0
		avail.SellAvailable = &v
	}
	if buyErr != nil || sellErr != nil {
		return avail
	}

	sellChains := make(map[string]bool, len(sellNetworks))
	for _, raw := range sellNetworks {
		if c := chain.Normalize(raw); c != "" {
			sellChains[c] = true
		}
	}
	seen := make(map[string]bool)
	for _, raw := range buyNetworks {
		c := chain.Normalize(raw)
		if c != "" && sellChains[c] && !seen[c] {
			seen[c] = true
			avail.CommonNetworks = append(avail.CommonNetworks, c)
		}
	}
	chain.SortByPriority(avail.CommonNetworks)
	return avail
}

// ResolveBlockchain determines the blockchain a token settles on: the
// curated override table wins outright, otherwise the exchanges' normalized
// network lists are put to a vote. Returns "" when nothing conclusive is
// known.
func (m *Manager) ResolveBlockchain(ctx context.Context, symbol string) string {
	base, _, _ := strings.Cut(symbol, "/")
	if o, ok := chain.OverrideFor(base); ok {
		return o.Primary
	}
	winner, _, _ := m.CorroborateBlockchain(ctx, symbol)
	return winner
}

// CorroborateBlockchain queries every connected exchange's network list for
// the token, normalizes the labels and votes. It returns the winning chain
// (ties broken by chain priority), the fraction of queried exchanges that
// corroborated it, and the names of those exchanges; ("", 0, nil) when no
// exchange produced a recognizable chain.
func (m *Manager) CorroborateBlockchain(ctx context.Context, symbol string) (string, float64, []string) {
	base, _, _ := strings.Cut(symbol, "/")

	voters := make(map[string][]string)
	queried := 0
	for _, a := range m.adapters {
		if !a.IsConnected() {
			continue
		}
		networks, err := m.networksFor(ctx, a.Name(), base)
		if err != nil {
			continue
		}
		queried++
		seen := make(map[string]bool)
		for _, raw := range networks {
			c := chain.Normalize(raw)
			if c != "" && !seen[c] {
				seen[c] = true
				voters[c] = append(voters[c], a.Name())
			}
		}
	}
	if len(voters) == 0 || queried == 0 {
		return "", 0, nil
	}

	var winner string
	for c := range voters {
		if winner == "" || len(voters[c]) > len(voters[winner]) ||
			(len(voters[c]) == len(voters[winner]) && chain.Priority(c) < chain.Priority(winner)) {
			winner = c
		}
	}
	corroborators := voters[winner]
	sort.Strings(corroborators)
	return winner, float64(len(corroborators)) / float64(queried), corroborators
}

// RawNetworks collects the raw, un-normalized network labels every
// connected exchange reports for the token, deduplicated. Used as hints for
// the AI resolver.
func (m *Manager) RawNetworks(ctx context.Context, symbol string) []string {
	base, _, _ := strings.Cut(symbol, "/")
	seen := make(map[string]bool)
	var out []string
	for _, a := range m.adapters {
		if !a.IsConnected() {
			continue
		}
		networks, err := m.networksFor(ctx, a.Name(), base)
		if err != nil {
			continue
		}
		for _, raw := range networks {
			if raw != "" && !seen[raw] {
				seen[raw] = true
				out = append(out, raw)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Statuses returns a copy of every exchange's health record, ordered by
// exchange name.
func (m *Manager) Statuses() []domain.ExchangeStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.ExchangeStatus, 0, len(m.statuses))
	for _, st := range m.statuses {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Disconnect releases every adapter. Safe to call more than once.
func (m *Manager) Disconnect() error {
	var errs []error
	for _, a := range m.adapters {
		if err := a.Disconnect(); err != nil {
			errs = append(errs, fmt.Errorf("exchange: disconnect %s: %w", a.Name(), err))
		}
	}
	return errors.Join(errs...)
}
