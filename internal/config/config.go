// Package config defines the top-level configuration for the arbitrage
// scanner and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by CHAINARB_* environment variables.
type Config struct {
	Exchanges ExchangesConfig `toml:"exchanges"`
	Arbitrage ArbitrageConfig `toml:"arbitrage"`
	Rescan    RescanConfig    `toml:"rescan"`
	Resolver  ResolverConfig  `toml:"resolver"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Cleanup   CleanupConfig   `toml:"cleanup"`
	Notify    NotifyConfig    `toml:"notify"`
	Server    ServerConfig    `toml:"server"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// ExchangesConfig controls which exchange adapters run and how they poll.
type ExchangesConfig struct {
	Names           []string `toml:"names"`
	PollInterval    duration `toml:"poll_interval"`
	FetchTimeout    duration `toml:"fetch_timeout"`
	NetworkCacheTTL duration `toml:"network_cache_ttl"`
}

// ArbitrageConfig holds detection thresholds.
type ArbitrageConfig struct {
	MinProfitPercent float64 `toml:"min_profit_percent"`
	MaxProfitPercent float64 `toml:"max_profit_percent"`
	MaxOpportunities int     `toml:"max_opportunities"`
}

// RescanConfig controls the blockchain backfill job for opportunities whose
// base asset could not be attributed at detection time.
type RescanConfig struct {
	Enabled        bool     `toml:"enabled"`
	Interval       duration `toml:"interval"`
	BatchSize      int      `toml:"batch_size"`
	MinConfidence  float64  `toml:"min_confidence"`
	MaxRetries     int      `toml:"max_retries"`
	RetryCooldown  duration `toml:"retry_cooldown"`
	IntercallDelay duration `toml:"intercall_delay"`
}

// ResolverConfig holds the AI fallback resolver endpoint and limits.
type ResolverConfig struct {
	Endpoint          string   `toml:"endpoint"`
	APIKey            string   `toml:"api_key"`
	Model             string   `toml:"model"`
	Timeout           duration `toml:"timeout"`
	CacheTTL          duration `toml:"cache_ttl"`
	RequestsPerMinute int      `toml:"requests_per_minute"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible cold storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// CleanupConfig controls retention of persisted opportunities.
type CleanupConfig struct {
	HoursToKeep int      `toml:"hours_to_keep"`
	Interval    duration `toml:"interval"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	DigestInterval    duration `toml:"digest_interval"`
	DigestMinPercent  float64  `toml:"digest_min_percent"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Exchanges: ExchangesConfig{
			Names:           []string{"okx", "bybit", "gateio", "bitget"},
			PollInterval:    duration{30 * time.Second},
			FetchTimeout:    duration{8 * time.Second},
			NetworkCacheTTL: duration{time.Hour},
		},
		Arbitrage: ArbitrageConfig{
			MinProfitPercent: 0.5,
			MaxProfitPercent: 110.0,
			MaxOpportunities: 50,
		},
		Rescan: RescanConfig{
			Enabled:        true,
			Interval:       duration{time.Hour},
			BatchSize:      50,
			MinConfidence:  0.5,
			MaxRetries:     3,
			RetryCooldown:  duration{6 * time.Hour},
			IntercallDelay: duration{500 * time.Millisecond},
		},
		Resolver: ResolverConfig{
			Endpoint:          "https://api.openai.com/v1/chat/completions",
			Model:             "gpt-4o-mini",
			Timeout:           duration{20 * time.Second},
			CacheTTL:          duration{24 * time.Hour},
			RequestsPerMinute: 10,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "chainarb",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "chainarb-archive",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Cleanup: CleanupConfig{
			HoursToKeep: 24,
			Interval:    duration{time.Hour},
		},
		Notify: NotifyConfig{
			Events:           []string{"digest", "error"},
			DigestInterval:   duration{time.Hour},
			DigestMinPercent: 2.0,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"scan":   true,
	"server": true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validExchanges enumerates the exchange adapters the manager can build.
var validExchanges = map[string]bool{
	"okx":    true,
	"bybit":  true,
	"gateio": true,
	"bitget": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scan, server, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Exchanges
	if len(c.Exchanges.Names) == 0 {
		errs = append(errs, "exchanges: names must list at least one exchange")
	}
	for _, name := range c.Exchanges.Names {
		if !validExchanges[strings.ToLower(name)] {
			errs = append(errs, fmt.Sprintf("exchanges: unknown exchange %q (valid: okx, bybit, gateio, bitget)", name))
		}
	}
	if c.Exchanges.PollInterval.Duration <= 0 {
		errs = append(errs, "exchanges: poll_interval must be > 0")
	}
	if c.Exchanges.FetchTimeout.Duration <= 0 {
		errs = append(errs, "exchanges: fetch_timeout must be > 0")
	}

	// Arbitrage
	if c.Arbitrage.MinProfitPercent < 0 {
		errs = append(errs, "arbitrage: min_profit_percent must be >= 0")
	}
	if c.Arbitrage.MaxProfitPercent <= c.Arbitrage.MinProfitPercent {
		errs = append(errs, "arbitrage: max_profit_percent must exceed min_profit_percent")
	}
	if c.Arbitrage.MaxOpportunities < 1 {
		errs = append(errs, "arbitrage: max_opportunities must be >= 1")
	}

	// Rescan
	if c.Rescan.Enabled {
		if c.Rescan.Interval.Duration <= 0 {
			errs = append(errs, "rescan: interval must be > 0 when enabled")
		}
		if c.Rescan.BatchSize < 1 {
			errs = append(errs, "rescan: batch_size must be >= 1")
		}
		if c.Rescan.MinConfidence <= 0 || c.Rescan.MinConfidence > 1 {
			errs = append(errs, fmt.Sprintf("rescan: min_confidence must be in (0, 1], got %g", c.Rescan.MinConfidence))
		}
		if c.Rescan.MaxRetries < 0 {
			errs = append(errs, "rescan: max_retries must be >= 0")
		}
	}

	// Resolver — optional, but the endpoint and model must be set when a key is.
	if c.Resolver.APIKey != "" {
		if c.Resolver.Endpoint == "" {
			errs = append(errs, "resolver: endpoint must not be empty when api_key is set")
		}
		if c.Resolver.Model == "" {
			errs = append(errs, "resolver: model must not be empty when api_key is set")
		}
		if c.Resolver.RequestsPerMinute < 1 {
			errs = append(errs, "resolver: requests_per_minute must be >= 1")
		}
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	// Cleanup
	if c.Cleanup.HoursToKeep < 1 {
		errs = append(errs, "cleanup: hours_to_keep must be >= 1")
	}

	// Notify — both Telegram fields must be set together, or neither.
	tt := c.Notify.TelegramToken != ""
	tc := c.Notify.TelegramChatID != ""
	if tt != tc {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
