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
// built-in defaults, applies ARBSCAN_* environment variable overrides, and
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

// applyEnvOverrides reads well-known ARBSCAN_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML.
func applyEnvOverrides(cfg *Config) {
	// --- Scanner ---
	setFloat64(&cfg.Scanner.SpikeThreshold, "ARBSCAN_SCANNER_SPIKE_THRESHOLD")
	setFloat64(&cfg.Scanner.MinVolume, "ARBSCAN_SCANNER_MIN_VOLUME")
	setInt(&cfg.Scanner.BatchSize, "ARBSCAN_SCANNER_BATCH_SIZE")
	setDuration(&cfg.Scanner.BatchDelay, "ARBSCAN_SCANNER_BATCH_DELAY")

	// --- Active set ---
	setInt(&cfg.ActiveSet.MaxSize, "ARBSCAN_ACTIVE_SET_MAX_SIZE")
	setDuration(&cfg.ActiveSet.EntryTTL, "ARBSCAN_ACTIVE_SET_ENTRY_TTL")

	// --- Engine ---
	setFloat64(&cfg.Engine.ProfitThresholdPct, "ARBSCAN_ENGINE_PROFIT_THRESHOLD_PCT")
	setFloat64(&cfg.Engine.TradeAmount, "ARBSCAN_ENGINE_TRADE_AMOUNT")
	setStr(&cfg.Engine.FundingCurrency, "ARBSCAN_ENGINE_FUNDING_CURRENCY")
	setInt(&cfg.Engine.CyclicHeadSize, "ARBSCAN_ENGINE_CYCLIC_HEAD_SIZE")

	// --- Schedule ---
	setDuration(&cfg.Schedule.DiscoveryInterval, "ARBSCAN_SCHEDULE_DISCOVERY_INTERVAL")
	setDuration(&cfg.Schedule.EvaluationInterval, "ARBSCAN_SCHEDULE_EVALUATION_INTERVAL")
	setDuration(&cfg.Schedule.SweepInterval, "ARBSCAN_SCHEDULE_SWEEP_INTERVAL")

	// --- Redis ---
	setBool(&cfg.Redis.Enabled, "ARBSCAN_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "ARBSCAN_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBSCAN_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBSCAN_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "ARBSCAN_REDIS_TLS_ENABLED")

	// --- Postgres ---
	setBool(&cfg.Postgres.Enabled, "ARBSCAN_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "ARBSCAN_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "ARBSCAN_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ARBSCAN_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ARBSCAN_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ARBSCAN_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ARBSCAN_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ARBSCAN_POSTGRES_SSLMODE")
	setBool(&cfg.Postgres.RunMigrations, "ARBSCAN_POSTGRES_RUN_MIGRATIONS")

	// --- S3 ---
	setBool(&cfg.S3.Enabled, "ARBSCAN_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "ARBSCAN_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ARBSCAN_S3_REGION")
	setStr(&cfg.S3.Bucket, "ARBSCAN_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ARBSCAN_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ARBSCAN_S3_SECRET_KEY")
	setInt(&cfg.S3.RetentionDays, "ARBSCAN_S3_RETENTION_DAYS")

	// --- Notify ---
	setBool(&cfg.Notify.Console, "ARBSCAN_NOTIFY_CONSOLE")
	setStr(&cfg.Notify.TelegramToken, "ARBSCAN_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ARBSCAN_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ARBSCAN_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ARBSCAN_NOTIFY_EVENTS")

	// --- Universe ---
	setStringSlice(&cfg.Universe.Symbols, "ARBSCAN_UNIVERSE_SYMBOLS")

	// --- Top-level ---
	setStr(&cfg.Mode, "ARBSCAN_MODE")
	setStr(&cfg.LogLevel, "ARBSCAN_LOG_LEVEL")
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
