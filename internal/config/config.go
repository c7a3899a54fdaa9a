// Package config defines the top-level configuration for the arbitrage
// scanner and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by ARBSCAN_* environment variables.
type Config struct {
	Market    MarketConfig    `toml:"market"`
	Universe  UniverseConfig  `toml:"universe"`
	Scanner   ScannerConfig   `toml:"scanner"`
	ActiveSet ActiveSetConfig `toml:"active_set"`
	Engine    EngineConfig    `toml:"engine"`
	Schedule  ScheduleConfig  `toml:"schedule"`
	Cache     CacheConfig     `toml:"cache"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Redis     RedisConfig     `toml:"redis"`
	Postgres  PostgresConfig  `toml:"postgres"`
	S3        S3Config        `toml:"s3"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// VenueConfig identifies one trading venue and whether transfers to/from it
// touch a blockchain.
type VenueConfig struct {
	Name string `toml:"name"`
	Kind string `toml:"kind"` // "centralized" or "decentralized"
}

// MarketConfig selects the market data provider and the venue list.
type MarketConfig struct {
	// Provider selects the quote source: currently "synthetic".
	Provider string        `toml:"provider"`
	Venues   []VenueConfig `toml:"venues"`
	// Seed makes the synthetic provider deterministic when non-zero.
	Seed int64 `toml:"seed"`
	// BlockedTransfers lists venue/asset pairs whose deposits or withdrawals
	// are suspended, as "venue/ASSET" strings.
	BlockedTransfers []string `toml:"blocked_transfers"`
}

// UniverseConfig supplies the candidate symbol list. When Symbols is empty
// the market provider's own listing is used.
type UniverseConfig struct {
	Symbols []string `toml:"symbols"`
}

// ScannerConfig holds volume-anomaly detection parameters.
type ScannerConfig struct {
	SpikeThreshold float64  `toml:"spike_threshold"`
	MinVolume      float64  `toml:"min_volume"`
	BatchSize      int      `toml:"batch_size"`
	BatchDelay     duration `toml:"batch_delay"`
	WindowSize     int      `toml:"window_size"`
}

// ActiveSetConfig bounds the working set the engines evaluate.
type ActiveSetConfig struct {
	MaxSize           int      `toml:"max_size"`
	EntryTTL          duration `toml:"entry_ttl"`
	ReinstateMinCount int      `toml:"reinstate_min_count"`
	ReinstateWindow   duration `toml:"reinstate_window"`
}

// EngineConfig holds profit-computation parameters shared by both engines.
type EngineConfig struct {
	ProfitThresholdPct float64  `toml:"profit_threshold_pct"`
	TradeAmount        float64  `toml:"trade_amount"`
	FundingCurrency    string   `toml:"funding_currency"`
	Intermediates      []string `toml:"intermediates"`
	CyclicHeadSize     int      `toml:"cyclic_head_size"`
	// GasFeeEstimate is charged as the network fee when a pair involves a
	// decentralized venue, in quote-currency units.
	GasFeeEstimate float64 `toml:"gas_fee_estimate"`
}

// ScheduleConfig holds the periodic task cadences.
type ScheduleConfig struct {
	DiscoveryInterval  duration `toml:"discovery_interval"`
	EvaluationInterval duration `toml:"evaluation_interval"`
	SweepInterval      duration `toml:"sweep_interval"`
}

// CacheConfig holds per-namespace freshness windows.
type CacheConfig struct {
	QuoteTTL    duration `toml:"quote_ttl"`
	MetadataTTL duration `toml:"metadata_ttl"`
}

// RateLimitConfig caps venue API calls via the Redis sliding window.
type RateLimitConfig struct {
	Enabled       bool     `toml:"enabled"`
	CallsPerVenue int      `toml:"calls_per_venue"`
	Window        duration `toml:"window"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	// StreamMaxLen caps the opportunities stream length.
	StreamMaxLen int `toml:"stream_max_len"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
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

// S3Config holds S3-compatible object storage parameters for cold archival.
type S3Config struct {
	Enabled         bool     `toml:"enabled"`
	Endpoint        string   `toml:"endpoint"`
	Region          string   `toml:"region"`
	Bucket          string   `toml:"bucket"`
	AccessKey       string   `toml:"access_key"`
	SecretKey       string   `toml:"secret_key"`
	UseSSL          bool     `toml:"use_ssl"`
	ForcePathStyle  bool     `toml:"force_path_style"`
	RetentionDays   int      `toml:"retention_days"`
	ArchiveInterval duration `toml:"archive_interval"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	Console           bool     `toml:"console"`
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
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
func Defaults() Config {
	return Config{
		Market: MarketConfig{
			Provider: "synthetic",
			Venues: []VenueConfig{
				{Name: "alpha", Kind: "centralized"},
				{Name: "bravo", Kind: "centralized"},
				{Name: "charlie", Kind: "decentralized"},
			},
		},
		Universe: UniverseConfig{
			Symbols: []string{},
		},
		Scanner: ScannerConfig{
			SpikeThreshold: 3.0,
			MinVolume:      200_000,
			BatchSize:      20,
			BatchDelay:     duration{2 * time.Second},
			WindowSize:     12,
		},
		ActiveSet: ActiveSetConfig{
			MaxSize:           50,
			EntryTTL:          duration{30 * time.Minute},
			ReinstateMinCount: 3,
			ReinstateWindow:   duration{7 * 24 * time.Hour},
		},
		Engine: EngineConfig{
			ProfitThresholdPct: 0.5,
			TradeAmount:        1000,
			FundingCurrency:    "USDT",
			Intermediates:      []string{"BTC", "ETH"},
			CyclicHeadSize:     10,
			GasFeeEstimate:     5.0,
		},
		Schedule: ScheduleConfig{
			DiscoveryInterval:  duration{5 * time.Minute},
			EvaluationInterval: duration{15 * time.Second},
			SweepInterval:      duration{time.Minute},
		},
		Cache: CacheConfig{
			QuoteTTL:    duration{10 * time.Second},
			MetadataTTL: duration{time.Hour},
		},
		RateLimit: RateLimitConfig{
			Enabled:       false,
			CallsPerVenue: 60,
			Window:        duration{time.Minute},
		},
		Redis: RedisConfig{
			Enabled:      false,
			Addr:         "localhost:6379",
			PoolSize:     10,
			MaxRetries:   3,
			StreamMaxLen: 10000,
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "arbscan",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		S3: S3Config{
			Enabled:         false,
			Endpoint:        "http://localhost:9000",
			Region:          "us-east-1",
			Bucket:          "arbscan-archive",
			ForcePathStyle:  true,
			RetentionDays:   90,
			ArchiveInterval: duration{24 * time.Hour},
		},
		Notify: NotifyConfig{
			Console: true,
			Events:  []string{},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"scan": true,
	"full": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found. Configuration errors are
// fatal at startup.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scan, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Market
	if c.Market.Provider != "synthetic" {
		errs = append(errs, fmt.Sprintf("market: unknown provider %q (valid: synthetic)", c.Market.Provider))
	}
	if len(c.Market.Venues) < 2 {
		errs = append(errs, "market: at least two venues are required for cross-venue comparison")
	}
	for _, v := range c.Market.Venues {
		if v.Name == "" {
			errs = append(errs, "market: venue name must not be empty")
		}
		if v.Kind != "centralized" && v.Kind != "decentralized" {
			errs = append(errs, fmt.Sprintf("market: venue %q kind must be centralized or decentralized, got %q", v.Name, v.Kind))
		}
	}

	// Scanner
	if c.Scanner.SpikeThreshold <= 1 {
		errs = append(errs, "scanner: spike_threshold must be > 1")
	}
	if c.Scanner.MinVolume <= 0 {
		errs = append(errs, "scanner: min_volume must be > 0")
	}
	if c.Scanner.BatchSize < 1 {
		errs = append(errs, "scanner: batch_size must be >= 1")
	}
	if c.Scanner.WindowSize < 2 {
		errs = append(errs, "scanner: window_size must be >= 2")
	}

	// Active set
	if c.ActiveSet.MaxSize < 1 {
		errs = append(errs, "active_set: max_size must be >= 1")
	}
	if c.ActiveSet.EntryTTL.Duration <= 0 {
		errs = append(errs, "active_set: entry_ttl must be positive")
	}
	if c.ActiveSet.ReinstateMinCount < 1 {
		errs = append(errs, "active_set: reinstate_min_count must be >= 1")
	}

	// Engine
	if c.Engine.ProfitThresholdPct <= 0 {
		errs = append(errs, "engine: profit_threshold_pct must be > 0")
	}
	if c.Engine.TradeAmount <= 0 {
		errs = append(errs, "engine: trade_amount must be > 0")
	}
	if c.Engine.FundingCurrency == "" {
		errs = append(errs, "engine: funding_currency must not be empty")
	}
	if c.Engine.CyclicHeadSize < 1 {
		errs = append(errs, "engine: cyclic_head_size must be >= 1")
	}
	if c.Engine.GasFeeEstimate < 0 {
		errs = append(errs, "engine: gas_fee_estimate must not be negative")
	}

	// Schedule
	if c.Schedule.DiscoveryInterval.Duration <= 0 {
		errs = append(errs, "schedule: discovery_interval must be positive")
	}
	if c.Schedule.EvaluationInterval.Duration <= 0 {
		errs = append(errs, "schedule: evaluation_interval must be positive")
	}
	if c.Schedule.SweepInterval.Duration <= 0 {
		errs = append(errs, "schedule: sweep_interval must be positive")
	}

	// Cache
	if c.Cache.QuoteTTL.Duration <= 0 {
		errs = append(errs, "cache: quote_ttl must be positive")
	}
	if c.Cache.MetadataTTL.Duration <= 0 {
		errs = append(errs, "cache: metadata_ttl must be positive")
	}

	// Rate limit
	if c.RateLimit.Enabled {
		if !c.Redis.Enabled {
			errs = append(errs, "rate_limit: requires redis to be enabled")
		}
		if c.RateLimit.CallsPerVenue < 1 {
			errs = append(errs, "rate_limit: calls_per_venue must be >= 1")
		}
		if c.RateLimit.Window.Duration <= 0 {
			errs = append(errs, "rate_limit: window must be positive")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Postgres
	if c.Postgres.Enabled {
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
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// S3
	if c.S3.Enabled {
		if !c.Postgres.Enabled {
			errs = append(errs, "s3: archival requires postgres to be enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
		if c.S3.RetentionDays < 1 {
			errs = append(errs, "s3: retention_days must be >= 1")
		}
		if c.S3.ArchiveInterval.Duration <= 0 {
			errs = append(errs, "s3: archive_interval must be positive")
		}
	}

	// Notify: token and chat ID go together.
	tk := c.Notify.TelegramToken != ""
	tc := c.Notify.TelegramChatID != ""
	if tk != tc {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
