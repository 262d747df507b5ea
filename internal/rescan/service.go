// Package rescan repairs opportunities that were stored without a resolved
// blockchain. Each pass walks a batch of unresolved symbols and tries, in
// order: the curated override table, cross-exchange corroboration of network
// metadata, and finally the AI resolver. Results are persisted as token
// records and backfilled onto the stored opportunity rows; dead ends are
// tracked with a bounded retry counter.
package rescan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chainarb/chainarb/internal/chain"
	"github.com/chainarb/chainarb/internal/domain"
	"github.com/chainarb/chainarb/internal/resolver"
)

const (
	confidenceOverride = 0.95
	confidenceResolver = 0.80

	// rateKey is the shared sliding-window key bounding AI-resolver calls
	// across all processes.
	rateKey = "resolver"
)

// Market is the slice of the exchange manager the service needs.
type Market interface {
	CorroborateBlockchain(ctx context.Context, symbol string) (blockchain string, confidence float64, corroborators []string)
	RawNetworks(ctx context.Context, symbol string) []string
}

// resolution is one ladder outcome: the chain, how sure the source was, and
// the provenance worth persisting alongside it.
type resolution struct {
	blockchain string
	confidence float64
	contract   string
	exchanges  []string
}

// Config tunes one rescan pass.
type Config struct {
	BatchSize         int
	MinConfidence     float64
	MaxRetries        int
	RetryCooldown     time.Duration
	IntercallDelay    time.Duration
	CacheTTL          time.Duration
	RequestsPerMinute int
}

// DefaultConfig matches the standard rescan tuning.
func DefaultConfig() Config {
	return Config{
		BatchSize:         50,
		MinConfidence:     0.5,
		MaxRetries:        3,
		RetryCooldown:     6 * time.Hour,
		IntercallDelay:    500 * time.Millisecond,
		CacheTTL:          24 * time.Hour,
		RequestsPerMinute: 10,
	}
}

// Service runs rescan passes.
type Service struct {
	cfg      Config
	market   Market
	resolver resolver.Resolver
	opps     domain.OpportunityStore
	tokens   domain.TokenRecordStore
	failures domain.FailedLookupStore
	cache    domain.ResolverCache
	limiter  domain.RateLimiter
	logger   *slog.Logger
}

func NewService(
	cfg Config,
	market Market,
	res resolver.Resolver,
	opps domain.OpportunityStore,
	tokens domain.TokenRecordStore,
	failures domain.FailedLookupStore,
	cache domain.ResolverCache,
	limiter domain.RateLimiter,
	logger *slog.Logger,
) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	return &Service{
		cfg:      cfg,
		market:   market,
		resolver: res,
		opps:     opps,
		tokens:   tokens,
		failures: failures,
		cache:    cache,
		limiter:  limiter,
		logger:   logger.With(slog.String("component", "rescan")),
	}
}

// RunRescan processes one batch of unresolved opportunity symbols and
// reports how many were repaired. Per-symbol failures are recorded and do
// not abort the pass.
func (s *Service) RunRescan(ctx context.Context) (domain.RescanSummary, error) {
	unresolved, err := s.opps.ListUnresolved(ctx, s.cfg.BatchSize)
	if err != nil {
		return domain.RescanSummary{}, fmt.Errorf("rescan: list unresolved: %w", err)
	}

	symbols := uniqueBaseSymbols(unresolved)
	summary := domain.RescanSummary{Total: len(symbols)}

	for i, symbol := range symbols {
		if i > 0 && s.cfg.IntercallDelay > 0 {
			select {
			case <-ctx.Done():
				return summary, ctx.Err()
			case <-time.After(s.cfg.IntercallDelay):
			}
		}

		if s.shouldSkip(ctx, symbol) {
			continue
		}
		if err := s.resolveSymbol(ctx, symbol); err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			s.logger.Warn("symbol resolution failed",
				slog.String("symbol", symbol),
				slog.String("error", err.Error()))
			if ferr := s.failures.RecordFailure(ctx, symbol, err.Error()); ferr != nil {
				s.logger.Error("record failure", slog.String("symbol", symbol), slog.String("error", ferr.Error()))
			}
			continue
		}
		summary.Successful++
	}

	s.logger.Info("rescan pass finished",
		slog.Int("total", summary.Total),
		slog.Int("successful", summary.Successful))
	return summary, nil
}

// shouldSkip consults the failure tracker: symbols that exhausted their
// retries, or failed too recently, sit this pass out.
func (s *Service) shouldSkip(ctx context.Context, symbol string) bool {
	failure, err := s.failures.Get(ctx, symbol)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("failure lookup", slog.String("symbol", symbol), slog.String("error", err.Error()))
		}
		return false
	}
	if failure.RetryCount >= s.cfg.MaxRetries {
		return true
	}
	return time.Since(failure.FailedAt) < s.cfg.RetryCooldown
}

func (s *Service) resolveSymbol(ctx context.Context, symbol string) error {
	res, err := s.determineBlockchain(ctx, symbol)
	if err != nil {
		return err
	}
	if res.blockchain == "" {
		return domain.ErrUnresolvable
	}

	rec := domain.TokenBlockchainRecord{
		Symbol:          symbol,
		Blockchain:      res.blockchain,
		ContractAddress: res.contract,
		IsNative:        chain.IsNative(symbol, res.blockchain),
		IsPrimary:       true,
		ConfidenceScore: res.confidence,
		Exchanges:       res.exchanges,
		LastVerified:    time.Now().UTC(),
	}
	if err := s.tokens.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("upsert token record: %w", err)
	}

	updated, err := s.opps.BackfillBlockchain(ctx, symbol, res.blockchain)
	if err != nil {
		return fmt.Errorf("backfill opportunities: %w", err)
	}
	if err := s.failures.Clear(ctx, symbol); err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("clear failure row", slog.String("symbol", symbol), slog.String("error", err.Error()))
	}

	s.logger.Info("symbol resolved",
		slog.String("symbol", symbol),
		slog.String("blockchain", res.blockchain),
		slog.Float64("confidence", res.confidence),
		slog.Int64("rows_backfilled", updated))
	return nil
}

// determineBlockchain applies the resolution ladder, cheapest source first:
// a token record from an earlier pass, the curated override table,
// cross-exchange corroboration, and finally the AI resolver — which is only
// consulted when the cheaper sources stay below MinConfidence, and whose
// answers are cached (negative ones included) and rate limited.
func (s *Service) determineBlockchain(ctx context.Context, symbol string) (resolution, error) {
	if rec, err := s.tokens.GetPrimary(ctx, symbol); err == nil {
		return resolution{
			blockchain: rec.Blockchain,
			confidence: rec.ConfidenceScore,
			contract:   rec.ContractAddress,
			exchanges:  rec.Exchanges,
		}, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("token record lookup", slog.String("symbol", symbol), slog.String("error", err.Error()))
	}

	if o, ok := chain.OverrideFor(symbol); ok {
		return resolution{blockchain: o.Primary, confidence: confidenceOverride, contract: o.PrimaryContract}, nil
	}

	corroborated, confidence, corroborators := s.market.CorroborateBlockchain(ctx, symbol)
	if corroborated != "" && confidence >= s.cfg.MinConfidence {
		return resolution{blockchain: corroborated, confidence: confidence, exchanges: corroborators}, nil
	}

	if s.resolver == nil {
		return resolution{}, nil
	}

	if cached, found, err := s.cache.Get(ctx, symbol); err != nil {
		s.logger.Warn("resolver cache read", slog.String("symbol", symbol), slog.String("error", err.Error()))
	} else if found {
		return resolution{blockchain: cached, confidence: confidenceResolver}, nil
	}

	if err := s.limiter.Wait(ctx, rateKey, s.cfg.RequestsPerMinute, time.Minute); err != nil {
		return resolution{}, fmt.Errorf("resolver rate limit: %w", err)
	}
	answer, err := s.resolver.Resolve(ctx, symbol, s.market.RawNetworks(ctx, symbol))
	if err != nil {
		return resolution{}, fmt.Errorf("resolver: %w", err)
	}
	if err := s.cache.Set(ctx, symbol, answer, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("resolver cache write", slog.String("symbol", symbol), slog.String("error", err.Error()))
	}
	return resolution{blockchain: answer, confidence: confidenceResolver}, nil
}

func uniqueBaseSymbols(opps []domain.ArbitrageOpportunity) []string {
	seen := make(map[string]bool)
	var out []string
	for _, opp := range opps {
		base, _, _ := strings.Cut(opp.Symbol, "/")
		base = strings.ToUpper(base)
		if base != "" && !seen[base] {
			seen[base] = true
			out = append(out, base)
		}
	}
	return out
}
