// Package engine drives the scan cycle: refresh tickers, detect
// opportunities, enrich them with chain metadata, persist, and fan the
// results out to the signal bus and the notification digest.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/chainarb/chainarb/internal/arb"
	"github.com/chainarb/chainarb/internal/blob/s3"
	"github.com/chainarb/chainarb/internal/domain"
	"github.com/chainarb/chainarb/internal/notify"
)

// MarketData is the slice of the exchange manager the engine drives.
type MarketData interface {
	arb.Market
	UpdateAllTickers(ctx context.Context) error
	GetAllTickers() map[string][]domain.Ticker
	Statuses() []domain.ExchangeStatus
}

// Engine runs scan and maintenance cycles. It is wired once at startup and
// driven by the scheduler.
type Engine struct {
	market   MarketData
	calc     *arb.Calculator
	params   arb.Params
	opps     domain.OpportunityStore
	bus      domain.SignalBus
	notifier *notify.Notifier
	digest   *notify.Digest
	archiver *s3blob.Archiver // nil when cold storage is disabled
	retain   time.Duration
	logger   *slog.Logger
}

func New(
	market MarketData,
	calc *arb.Calculator,
	params arb.Params,
	opps domain.OpportunityStore,
	bus domain.SignalBus,
	notifier *notify.Notifier,
	digest *notify.Digest,
	archiver *s3blob.Archiver,
	retain time.Duration,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		market:   market,
		calc:     calc,
		params:   params,
		opps:     opps,
		bus:      bus,
		notifier: notifier,
		digest:   digest,
		archiver: archiver,
		retain:   retain,
		logger:   logger.With(slog.String("component", "engine")),
	}
}

// RunCycle executes one scan pass. Persistence and publishing failures are
// reported but never abort the cycle: a scanner that keeps scanning beats
// one that stops on a flaky dependency.
func (e *Engine) RunCycle(ctx context.Context) error {
	start := time.Now()

	if err := e.market.UpdateAllTickers(ctx); err != nil {
		return fmt.Errorf("engine: update tickers: %w", err)
	}
	e.publishStatus(ctx)

	snapshot := e.market.GetAllTickers()
	opps := e.calc.Calculate(snapshot, e.params)
	opps = e.calc.Enrich(ctx, opps, e.market)

	if len(opps) > 0 {
		inserted, err := e.opps.InsertBatch(ctx, opps)
		if err != nil {
			e.logger.Error("persist failed", slog.String("error", err.Error()))
			e.notifyError(ctx, "Opportunity persistence failed", err)
		} else if inserted > 0 {
			e.logger.Info("opportunities persisted", slog.Int64("inserted", inserted))
		}
	}

	for _, opp := range opps {
		e.publishOpportunity(ctx, opp)
		e.digest.Add(opp)
	}

	e.logger.Info("scan cycle done",
		slog.Int("exchanges", len(snapshot)),
		slog.Int("opportunities", len(opps)),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

// RunArchiveAndCleanup archives rows past the retention window to cold
// storage and then deletes them. When archiving fails the delete is skipped
// so nothing is lost; when no archiver is configured the delete runs alone.
func (e *Engine) RunArchiveAndCleanup(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-e.retain)

	if e.archiver != nil {
		archived, err := e.archiver.ArchiveOpportunities(ctx, cutoff)
		if err != nil {
			e.notifyError(ctx, "Archive failed, skipping cleanup", err)
			return fmt.Errorf("engine: archive: %w", err)
		}
		if archived > 0 {
			e.logger.Info("opportunities archived", slog.Int64("count", archived))
		}
	}

	deleted, err := e.opps.DeleteBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("engine: cleanup: %w", err)
	}
	if deleted > 0 {
		e.logger.Info("old opportunities deleted", slog.Int64("count", deleted))
	}
	return nil
}

// FlushDigest sends the accumulated notable-opportunity summary.
func (e *Engine) FlushDigest(ctx context.Context) error {
	return e.digest.Flush(ctx)
}

func (e *Engine) publishOpportunity(ctx context.Context, opp domain.ArbitrageOpportunity) {
	data, err := json.Marshal(opp)
	if err != nil {
		return
	}
	if err := e.bus.Publish(ctx, "opportunities", data); err != nil {
		e.logger.Warn("publish opportunity", slog.String("error", err.Error()))
	}
}

func (e *Engine) publishStatus(ctx context.Context) {
	data, err := json.Marshal(map[string]any{
		"type":    "status",
		"payload": e.market.Statuses(),
	})
	if err != nil {
		return
	}
	if err := e.bus.Publish(ctx, "status", data); err != nil {
		e.logger.Warn("publish status", slog.String("error", err.Error()))
	}
}

func (e *Engine) notifyError(ctx context.Context, title string, err error) {
	if nerr := e.notifier.Notify(ctx, "error", title, err.Error()); nerr != nil {
		e.logger.Warn("error notification failed", slog.String("error", nerr.Error()))
	}
}
