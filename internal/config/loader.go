package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies CHAINARB_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known CHAINARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Exchanges ──
	setStringSlice(&cfg.Exchanges.Names, "CHAINARB_EXCHANGES_NAMES")
	setDuration(&cfg.Exchanges.PollInterval, "CHAINARB_EXCHANGES_POLL_INTERVAL")
	setDuration(&cfg.Exchanges.FetchTimeout, "CHAINARB_EXCHANGES_FETCH_TIMEOUT")
	setDuration(&cfg.Exchanges.NetworkCacheTTL, "CHAINARB_EXCHANGES_NETWORK_CACHE_TTL")

	// ── Arbitrage ──
	setFloat64(&cfg.Arbitrage.MinProfitPercent, "CHAINARB_ARBITRAGE_MIN_PROFIT_PERCENT")
	setFloat64(&cfg.Arbitrage.MaxProfitPercent, "CHAINARB_ARBITRAGE_MAX_PROFIT_PERCENT")
	setInt(&cfg.Arbitrage.MaxOpportunities, "CHAINARB_ARBITRAGE_MAX_OPPORTUNITIES")

	// ── Rescan ──
	setBool(&cfg.Rescan.Enabled, "CHAINARB_RESCAN_ENABLED")
	setDuration(&cfg.Rescan.Interval, "CHAINARB_RESCAN_INTERVAL")
	setInt(&cfg.Rescan.BatchSize, "CHAINARB_RESCAN_BATCH_SIZE")
	setFloat64(&cfg.Rescan.MinConfidence, "CHAINARB_RESCAN_MIN_CONFIDENCE")
	setInt(&cfg.Rescan.MaxRetries, "CHAINARB_RESCAN_MAX_RETRIES")
	setDuration(&cfg.Rescan.RetryCooldown, "CHAINARB_RESCAN_RETRY_COOLDOWN")

	// ── Resolver ──
	setStr(&cfg.Resolver.Endpoint, "CHAINARB_RESOLVER_ENDPOINT")
	setStr(&cfg.Resolver.APIKey, "CHAINARB_RESOLVER_API_KEY")
	setStr(&cfg.Resolver.APIKey, "OPENAI_API_KEY") // compatibility alias
	setStr(&cfg.Resolver.Model, "CHAINARB_RESOLVER_MODEL")
	setDuration(&cfg.Resolver.Timeout, "CHAINARB_RESOLVER_TIMEOUT")
	setDuration(&cfg.Resolver.CacheTTL, "CHAINARB_RESOLVER_CACHE_TTL")
	setInt(&cfg.Resolver.RequestsPerMinute, "CHAINARB_RESOLVER_REQUESTS_PER_MINUTE")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "CHAINARB_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "CHAINARB_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "CHAINARB_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "CHAINARB_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "CHAINARB_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "CHAINARB_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "CHAINARB_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "CHAINARB_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "CHAINARB_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "CHAINARB_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "CHAINARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "CHAINARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "CHAINARB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "CHAINARB_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "CHAINARB_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "CHAINARB_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "CHAINARB_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "CHAINARB_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "CHAINARB_S3_REGION")
	setStr(&cfg.S3.Bucket, "CHAINARB_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "CHAINARB_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "CHAINARB_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "CHAINARB_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "CHAINARB_S3_FORCE_PATH_STYLE")

	// ── Cleanup ──
	setInt(&cfg.Cleanup.HoursToKeep, "CHAINARB_CLEANUP_HOURS_TO_KEEP")
	setDuration(&cfg.Cleanup.Interval, "CHAINARB_CLEANUP_INTERVAL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "CHAINARB_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "CHAINARB_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "CHAINARB_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "CHAINARB_NOTIFY_EVENTS")
	setDuration(&cfg.Notify.DigestInterval, "CHAINARB_NOTIFY_DIGEST_INTERVAL")
	setFloat64(&cfg.Notify.DigestMinPercent, "CHAINARB_NOTIFY_DIGEST_MIN_PERCENT")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "CHAINARB_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "CHAINARB_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "CHAINARB_SERVER_CORS_ORIGINS")

	// ── Top-level ──
	setStr(&cfg.Mode, "CHAINARB_MODE")
	setStr(&cfg.LogLevel, "CHAINARB_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
