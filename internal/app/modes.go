package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chainarb/chainarb/internal/arb"
	"github.com/chainarb/chainarb/internal/engine"
	"github.com/chainarb/chainarb/internal/rescan"
	"github.com/chainarb/chainarb/internal/resolver"
	"github.com/chainarb/chainarb/internal/sched"
	"github.com/chainarb/chainarb/internal/server"
	"github.com/chainarb/chainarb/internal/server/handler"
	"github.com/chainarb/chainarb/internal/server/ws"
)

// ScanMode runs the detection pipeline without the dashboard API: ticker
// polling, opportunity detection and persistence, rescan, archival and
// cleanup, and the notification digest.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startScanJobs(ctx, g, deps)
	return g.Wait()
}

// ServerMode serves the dashboard API from live tickers and persisted
// opportunities. Tickers are still polled so GET /api/tickers stays fresh,
// but nothing is detected or persisted.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.initExchanges(ctx, deps)

	scheduler := sched.New(a.logger)
	g.Go(func() error {
		return scheduler.Run(ctx, sched.Job{
			Name:       "ticker_refresh",
			Interval:   a.cfg.Exchanges.PollInterval.Duration,
			RunOnStart: true,
			Run:        deps.Market.UpdateAllTickers,
		})
	})

	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the scan pipeline and the dashboard API in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startScanJobs(ctx, g, deps)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// initExchanges connects every adapter. Losing some exchanges is tolerable;
// the manager only errors when all of them fail, and even then the process
// keeps running so transient outages heal on the next poll.
func (a *App) initExchanges(ctx context.Context, deps *Dependencies) {
	if err := deps.Market.InitializeExchanges(ctx); err != nil {
		a.logger.WarnContext(ctx, "no exchange available at startup",
			slog.String("error", err.Error()))
	}
}

// startScanJobs wires the detection engine and its periodic jobs onto g.
func (a *App) startScanJobs(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	a.initExchanges(ctx, deps)

	params := arb.Params{
		MinProfit: a.cfg.Arbitrage.MinProfitPercent,
		MaxProfit: a.cfg.Arbitrage.MaxProfitPercent,
		MaxCount:  a.cfg.Arbitrage.MaxOpportunities,
	}
	eng := engine.New(
		deps.Market,
		arb.NewCalculator(a.logger),
		params,
		deps.Opportunities,
		deps.SignalBus,
		deps.Notifier,
		deps.Digest,
		deps.Archiver,
		time.Duration(a.cfg.Cleanup.HoursToKeep)*time.Hour,
		a.logger,
	)

	scheduler := sched.New(a.logger)

	g.Go(func() error {
		return scheduler.Run(ctx, sched.Job{
			Name:       "scan",
			Interval:   a.cfg.Exchanges.PollInterval.Duration,
			RunOnStart: true,
			Run:        eng.RunCycle,
		})
	})

	g.Go(func() error {
		return scheduler.Run(ctx, sched.Job{
			Name:     "archive_cleanup",
			Interval: a.cfg.Cleanup.Interval.Duration,
			Run:      eng.RunArchiveAndCleanup,
		})
	})

	g.Go(func() error {
		return scheduler.Run(ctx, sched.Job{
			Name:     "digest",
			Interval: a.cfg.Notify.DigestInterval.Duration,
			Run:      eng.FlushDigest,
		})
	})

	if a.cfg.Rescan.Enabled {
		var res resolver.Resolver
		if a.cfg.Resolver.APIKey != "" {
			res = resolver.NewOpenAI(resolver.Config{
				Endpoint: a.cfg.Resolver.Endpoint,
				APIKey:   a.cfg.Resolver.APIKey,
				Model:    a.cfg.Resolver.Model,
				Timeout:  a.cfg.Resolver.Timeout.Duration,
			}, a.logger)
		}

		svc := rescan.NewService(
			rescan.Config{
				BatchSize:         a.cfg.Rescan.BatchSize,
				MinConfidence:     a.cfg.Rescan.MinConfidence,
				MaxRetries:        a.cfg.Rescan.MaxRetries,
				RetryCooldown:     a.cfg.Rescan.RetryCooldown.Duration,
				IntercallDelay:    a.cfg.Rescan.IntercallDelay.Duration,
				CacheTTL:          a.cfg.Resolver.CacheTTL.Duration,
				RequestsPerMinute: a.cfg.Resolver.RequestsPerMinute,
			},
			deps.Market,
			res,
			deps.Opportunities,
			deps.Tokens,
			deps.Failures,
			deps.ResolverCache,
			deps.RateLimiter,
			a.logger,
		)

		g.Go(func() error {
			return scheduler.Run(ctx, sched.Job{
				Name:     "rescan",
				Interval: a.cfg.Rescan.Interval.Duration,
				Run: func(ctx context.Context) error {
					summary, err := svc.RunRescan(ctx)
					if err != nil {
						return err
					}
					if summary.Total > 0 {
						a.logger.InfoContext(ctx, "rescan pass done",
							slog.Int("total", summary.Total),
							slog.Int("successful", summary.Successful))
					}
					return nil
				},
			})
		})
	}
}

// startHTTPServer adds the REST + WebSocket server goroutines to g. The
// server is shut down gracefully when the context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Server.Enabled {
		a.logger.InfoContext(ctx, "HTTP server disabled")
		return
	}

	hub := ws.NewHub(deps.SignalBus, a.cfg.Mode, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(
		server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
		},
		server.Handlers{
			Health:        handler.NewHealthHandler(time.Now().UTC()),
			Tickers:       handler.NewTickerHandler(deps.Market),
			Exchanges:     handler.NewExchangeHandler(deps.Market),
			Opportunities: handler.NewOpportunityHandler(deps.Opportunities, a.logger),
			Tokens:        handler.NewTokenHandler(deps.Tokens, a.logger),
		},
		hub,
		a.logger,
	)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
