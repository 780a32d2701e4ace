package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads a configuration file at path, merges it on top of the
// built-in defaults, applies SETTLE_* environment variable overrides, and
// returns the final Config. Files ending in .yaml or .yml are decoded as
// YAML, anything else as TOML. An empty path skips the file. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after
// Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return yaml.Unmarshal(data, cfg)
	default:
		_, err := toml.DecodeFile(path, cfg)
		return err
	}
}

// applyEnvOverrides reads well-known SETTLE_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Mode, "SETTLE_MODE")
	setStr(&cfg.LogLevel, "SETTLE_LOG_LEVEL")

	// ── Storage ──
	setStr(&cfg.Storage.Backend, "SETTLE_STORAGE_BACKEND")
	setBool(&cfg.Storage.Seed, "SETTLE_STORAGE_SEED")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "SETTLE_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "SETTLE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SETTLE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SETTLE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SETTLE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SETTLE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SETTLE_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SETTLE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SETTLE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SETTLE_POSTGRES_RUN_MIGRATIONS")

	// ── SQLite ──
	setStr(&cfg.SQLite.Path, "SETTLE_SQLITE_PATH")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "SETTLE_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "SETTLE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SETTLE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SETTLE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SETTLE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SETTLE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SETTLE_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.PriceTTL, "SETTLE_REDIS_PRICE_TTL")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "SETTLE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SETTLE_S3_REGION")
	setStr(&cfg.S3.Bucket, "SETTLE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SETTLE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SETTLE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SETTLE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SETTLE_S3_FORCE_PATH_STYLE")

	// ── Ledger / portfolio ──
	setStr(&cfg.Ledger.CashInstrumentKind, "SETTLE_LEDGER_CASH_INSTRUMENT_KIND")
	setStr(&cfg.Ledger.Currency, "SETTLE_LEDGER_CURRENCY")
	setStr(&cfg.Portfolio.PriceMode, "SETTLE_PORTFOLIO_PRICE_MODE")

	// ── Orders ──
	setInt(&cfg.Orders.RateLimit, "SETTLE_ORDERS_RATE_LIMIT")
	setDuration(&cfg.Orders.RateWindow, "SETTLE_ORDERS_RATE_WINDOW")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "SETTLE_ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Format, "SETTLE_ARCHIVE_FORMAT")
	setDuration(&cfg.Archive.Interval, "SETTLE_ARCHIVE_INTERVAL")
	setDuration(&cfg.Archive.LockTTL, "SETTLE_ARCHIVE_LOCK_TTL")

	// ── Server ──
	setInt(&cfg.Server.Port, "SETTLE_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "SETTLE_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "SETTLE_SERVER_API_KEY")
	setStr(&cfg.Server.APIKeyHash, "SETTLE_SERVER_API_KEY_HASH")
	setInt(&cfg.Server.RateLimit, "SETTLE_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "SETTLE_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SETTLE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SETTLE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SETTLE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SETTLE_NOTIFY_EVENTS")
}

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
