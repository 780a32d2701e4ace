// Package config defines the top-level configuration for the settlement
// engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure. Fields are populated from a TOML
// or YAML file and then optionally overridden by SETTLE_* environment variables.
type Config struct {
	Storage   StorageConfig   `toml:"storage" yaml:"storage"`
	Postgres  PostgresConfig  `toml:"postgres" yaml:"postgres"`
	SQLite    SQLiteConfig    `toml:"sqlite" yaml:"sqlite"`
	Redis     RedisConfig     `toml:"redis" yaml:"redis"`
	S3        S3Config        `toml:"s3" yaml:"s3"`
	Ledger    LedgerConfig    `toml:"ledger" yaml:"ledger"`
	Portfolio PortfolioConfig `toml:"portfolio" yaml:"portfolio"`
	Orders    OrdersConfig    `toml:"orders" yaml:"orders"`
	Archive   ArchiveConfig   `toml:"archive" yaml:"archive"`
	Server    ServerConfig    `toml:"server" yaml:"server"`
	Notify    NotifyConfig    `toml:"notify" yaml:"notify"`
	Mode      string          `toml:"mode" yaml:"mode"`
	LogLevel  string          `toml:"log_level" yaml:"log_level"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Backend is "postgres", "sqlite" or "memory".
	Backend string `toml:"backend" yaml:"backend"`
	// Seed loads a demo catalog into the memory backend.
	Seed bool `toml:"seed" yaml:"seed"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn" yaml:"dsn"`
	Host          string `toml:"host" yaml:"host"`
	Port          int    `toml:"port" yaml:"port"`
	Database      string `toml:"database" yaml:"database"`
	User          string `toml:"user" yaml:"user"`
	Password      string `toml:"password" yaml:"password"`
	SSLMode       string `toml:"ssl_mode" yaml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns" yaml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns" yaml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations" yaml:"run_migrations"`
}

// SQLiteConfig locates the embedded database file.
type SQLiteConfig struct {
	Path string `toml:"path" yaml:"path"`
}

// RedisConfig holds Redis connection parameters. When disabled the engine
// falls back to in-process locks, bus and limiter.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled" yaml:"enabled"`
	Addr       string   `toml:"addr" yaml:"addr"`
	Password   string   `toml:"password" yaml:"password"`
	DB         int      `toml:"db" yaml:"db"`
	PoolSize   int      `toml:"pool_size" yaml:"pool_size"`
	MaxRetries int      `toml:"max_retries" yaml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled" yaml:"tls_enabled"`
	PriceTTL   duration `toml:"price_ttl" yaml:"price_ttl"`
}

// S3Config holds the order archive bucket.
type S3Config struct {
	Endpoint       string `toml:"endpoint" yaml:"endpoint"`
	Region         string `toml:"region" yaml:"region"`
	Bucket         string `toml:"bucket" yaml:"bucket"`
	AccessKey      string `toml:"access_key" yaml:"access_key"`
	SecretKey      string `toml:"secret_key" yaml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl" yaml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style" yaml:"force_path_style"`
}

// LedgerConfig identifies the cash-equivalent instrument.
type LedgerConfig struct {
	CashInstrumentKind string `toml:"cash_instrument_kind" yaml:"cash_instrument_kind"`
	// Currency is the display code used in notifications.
	Currency string `toml:"currency" yaml:"currency"`
}

// PortfolioConfig controls valuation.
type PortfolioConfig struct {
	// PriceMode is "per_position" or "first_position".
	PriceMode string `toml:"price_mode" yaml:"price_mode"`
}

// OrdersConfig caps submissions per user. RateLimit zero disables it.
type OrdersConfig struct {
	RateLimit  int      `toml:"rate_limit" yaml:"rate_limit"`
	RateWindow duration `toml:"rate_window" yaml:"rate_window"`
}

// ArchiveConfig schedules the monthly order export.
type ArchiveConfig struct {
	Enabled bool `toml:"enabled" yaml:"enabled"`
	// Format is "jsonl" or "parquet".
	Format   string   `toml:"format" yaml:"format"`
	Interval duration `toml:"interval" yaml:"interval"`
	LockTTL  duration `toml:"lock_ttl" yaml:"lock_ttl"`
}

// duration wraps time.Duration so it can be decoded from a TOML string such as
// "30s" or "5m".
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

// UnmarshalYAML decodes duration strings from YAML config files.
func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port" yaml:"port"`
	CORSOrigins []string `toml:"cors_origins" yaml:"cors_origins"`
	// APIKey guards every route except /api/health. APIKeyHash, a bcrypt
	// hash, takes precedence. Both empty disables auth.
	APIKey     string   `toml:"api_key" yaml:"api_key"`
	APIKeyHash string   `toml:"api_key_hash" yaml:"api_key_hash"`
	RateLimit  int      `toml:"rate_limit" yaml:"rate_limit"`
	RateWindow duration `toml:"rate_window" yaml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token" yaml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id" yaml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url" yaml:"discord_webhook_url"`
	Events            []string `toml:"events" yaml:"events"`
}

// Defaults returns a Config populated with sensible default values suitable
// for local development with the memory backend.
func Defaults() Config {
	return Config{
		Storage: StorageConfig{
			Backend: "memory",
			Seed:    true,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "settlement",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		SQLite: SQLiteConfig{
			Path: "settlement.db",
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
			PriceTTL:   duration{5 * time.Minute},
		},
		S3: S3Config{
			Region:         "us-east-1",
			Bucket:         "settlement-archive",
			ForcePathStyle: true,
		},
		Ledger: LedgerConfig{
			CashInstrumentKind: "MONEDA",
			Currency:           "ARS",
		},
		Portfolio: PortfolioConfig{
			PriceMode: "per_position",
		},
		Orders: OrdersConfig{
			RateLimit:  0,
			RateWindow: duration{time.Minute},
		},
		Archive: ArchiveConfig{
			Format:   "jsonl",
			Interval: duration{24 * time.Hour},
			LockTTL:  duration{5 * time.Minute},
		},
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"*"},
			RateWindow:  duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"order_filled", "order_rejected", "settlement_gap"},
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"server":  true,
	"archive": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validBackends = map[string]bool{
	"postgres": true,
	"sqlite":   true,
	"memory":   true,
}

var validArchiveFormats = map[string]bool{
	"jsonl":   true,
	"parquet": true,
}

var validPriceModes = map[string]bool{
	"per_position":   true,
	"first_position": true,
}

// Validate checks the configuration for obvious mistakes and returns an error
// describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, archive)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	backend := strings.ToLower(c.Storage.Backend)
	if !validBackends[backend] {
		errs = append(errs, fmt.Sprintf("storage: unknown backend %q (valid: postgres, sqlite, memory)", c.Storage.Backend))
	}
	if backend == "postgres" && c.Postgres.DSN == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: either dsn or host must be set")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be between 1 and 65535, got %d", c.Postgres.Port))
		}
	}
	if backend == "sqlite" && strings.TrimSpace(c.SQLite.Path) == "" {
		errs = append(errs, "sqlite: path must not be empty")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, fmt.Sprintf("postgres: pool_min_conns (%d) exceeds pool_max_conns (%d)",
			c.Postgres.PoolMinConns, c.Postgres.PoolMaxConns))
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty when enabled")
	}
	if c.Redis.PriceTTL.Duration < 0 {
		errs = append(errs, "redis: price_ttl must not be negative")
	}

	if strings.TrimSpace(c.Ledger.CashInstrumentKind) == "" {
		errs = append(errs, "ledger: cash_instrument_kind must not be empty")
	}
	if !validPriceModes[c.Portfolio.PriceMode] {
		errs = append(errs, fmt.Sprintf("portfolio: unknown price_mode %q (valid: per_position, first_position)", c.Portfolio.PriceMode))
	}

	if c.Orders.RateLimit < 0 {
		errs = append(errs, "orders: rate_limit must not be negative")
	}
	if c.Orders.RateLimit > 0 && c.Orders.RateWindow.Duration <= 0 {
		errs = append(errs, "orders: rate_window must be positive when rate_limit is set")
	}

	archiving := c.Archive.Enabled || strings.ToLower(c.Mode) == "archive"
	if archiving {
		if backend != "postgres" && backend != "sqlite" {
			errs = append(errs, "archive: requires a persistent storage backend (postgres or sqlite)")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archiving")
		}
		if !validArchiveFormats[c.Archive.Format] {
			errs = append(errs, fmt.Sprintf("archive: unknown format %q (valid: jsonl, parquet)", c.Archive.Format))
		}
		if c.Archive.LockTTL.Duration <= 0 {
			errs = append(errs, "archive: lock_ttl must be positive")
		}
	}
	if c.Archive.Enabled && c.Archive.Interval.Duration <= 0 {
		errs = append(errs, "archive: interval must be positive")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
		errs = append(errs, "server: rate_window must be positive when rate_limit is set")
	}

	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
