package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/chainarb/chainarb/internal/blob/s3"
	"github.com/chainarb/chainarb/internal/cache/redis"
	"github.com/chainarb/chainarb/internal/config"
	"github.com/chainarb/chainarb/internal/domain"
	"github.com/chainarb/chainarb/internal/exchange"
	"github.com/chainarb/chainarb/internal/notify"
	"github.com/chainarb/chainarb/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Exchange access
	Market *exchange.Manager

	// Stores
	Opportunities domain.OpportunityStore
	Tokens        domain.TokenRecordStore
	Failures      domain.FailedLookupStore

	// Caches
	ResolverCache domain.ResolverCache
	RateLimiter   domain.RateLimiter
	SignalBus     domain.SignalBus

	// Blob storage
	BlobWriter domain.BlobWriter
	Archiver   *s3blob.Archiver

	// Notifications
	Notifier *notify.Notifier
	Digest   *notify.Digest
}

// newAdapters builds the configured exchange adapters. Unknown names are
// rejected by config validation before this runs.
func newAdapters(names []string) []exchange.Adapter {
	adapters := make([]exchange.Adapter, 0, len(names))
	for _, name := range names {
		switch strings.ToLower(name) {
		case "okx":
			adapters = append(adapters, exchange.NewOKX(""))
		case "bybit":
			adapters = append(adapters, exchange.NewBybit(""))
		case "gateio":
			adapters = append(adapters, exchange.NewGate(""))
		case "bitget":
			adapters = append(adapters, exchange.NewBitget(""))
		}
	}
	return adapters
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Exchange manager ---
	deps.Market = exchange.NewManager(
		newAdapters(cfg.Exchanges.Names),
		cfg.Exchanges.FetchTimeout.Duration,
		cfg.Exchanges.NetworkCacheTTL.Duration,
		logger,
	)
	closers = append(closers, func() { _ = deps.Market.Disconnect() })

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.Opportunities = postgres.NewOpportunityStore(pool)
	deps.Tokens = postgres.NewTokenRecordStore(pool)
	deps.Failures = postgres.NewFailedLookupStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.ResolverCache = redis.NewResolverCache(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- S3 cold storage (optional) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, deps.Opportunities)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	deps.Digest = notify.NewDigest(deps.Notifier, cfg.Notify.DigestMinPercent, cfg.Arbitrage.MaxProfitPercent)

	return deps, cleanup, nil
}
