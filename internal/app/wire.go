package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	s3blob "github.com/alanyoungcy/settlement/internal/blob/s3"
	"github.com/alanyoungcy/settlement/internal/cache/redis"
	"github.com/alanyoungcy/settlement/internal/config"
	"github.com/alanyoungcy/settlement/internal/domain"
	"github.com/alanyoungcy/settlement/internal/notify"
	"github.com/alanyoungcy/settlement/internal/server/handler"
	"github.com/alanyoungcy/settlement/internal/store/memory"
	"github.com/alanyoungcy/settlement/internal/store/postgres"
	"github.com/alanyoungcy/settlement/internal/store/sqlite"
)

// Dependencies bundles every domain-level dependency that the application modes
// need to operate. It is constructed by Wire and torn down by the returned
// cleanup function.
type Dependencies struct {
	// Stores
	Tx          domain.TxManager
	Users       domain.UserStore
	Instruments domain.InstrumentStore
	Orders      domain.OrderStore
	MarketData  domain.MarketDataStore
	Audit       domain.AuditStore

	// Coordination
	PriceCache  domain.PriceCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus
	Streams     handler.StreamReader

	// Archive; nil unless enabled.
	Archiver domain.Archiver

	// Notifications
	Notifier *notify.Notifier

	// Health checks keyed by dependency name.
	Checks map[string]handler.Checker
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{Checks: make(map[string]handler.Checker)}

	// --- Storage ---
	var archiveOrders s3blob.OrderArchiveStore
	switch strings.ToLower(cfg.Storage.Backend) {
	case "postgres":
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

		repos := pgClient.Repos()
		deps.Tx = pgClient
		deps.Users = repos.Users
		deps.Instruments = repos.Instruments
		deps.Orders = repos.Orders
		deps.MarketData = repos.MarketData
		deps.Audit = pgClient.Audit()
		deps.Checks["postgres"] = pgClient.Health
		archiveOrders = repos.Orders

	case "sqlite":
		sqliteClient, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: sqlite: %w", err)
		}
		closers = append(closers, func() { _ = sqliteClient.Close() })

		if err := sqliteClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: sqlite migrations: %w", err)
		}

		repos := sqliteClient.Repos()
		deps.Tx = sqliteClient
		deps.Users = repos.Users
		deps.Instruments = repos.Instruments
		deps.Orders = repos.Orders
		deps.MarketData = repos.MarketData
		deps.Audit = sqliteClient.Audit()
		deps.Checks["sqlite"] = sqliteClient.Health
		archiveOrders = repos.Orders
		logger.InfoContext(ctx, "wire: using sqlite storage", slog.String("path", cfg.SQLite.Path))

	default:
		store := memory.New()
		if cfg.Storage.Seed {
			if err := memory.Seed(ctx, store, time.Now().UTC()); err != nil {
				return nil, nil, fmt.Errorf("wire: seed memory store: %w", err)
			}
		}
		repos := store.Repos()
		deps.Tx = store
		deps.Users = repos.Users
		deps.Instruments = repos.Instruments
		deps.Orders = repos.Orders
		deps.MarketData = repos.MarketData
		deps.Audit = store
		archiveOrders = repos.Orders
		logger.WarnContext(ctx, "wire: using in-memory storage; data is lost on exit")
	}

	// --- Redis (optional) ---
	if cfg.Redis.Enabled {
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

		bus := redis.NewSignalBus(redisClient)
		deps.PriceCache = redis.NewPriceCache(redisClient, cfg.Redis.PriceTTL.Duration)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = bus
		deps.Streams = bus
		deps.Checks["redis"] = redisClient.Ping
	} else {
		bus := memory.NewBus()
		deps.RateLimiter = memory.NewLimiter()
		deps.LockManager = memory.NewLocks()
		deps.SignalBus = bus
		deps.Streams = bus
	}

	// --- S3 archive ---
	if cfg.Archive.Enabled || strings.ToLower(cfg.Mode) == "archive" {
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
		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			s3blob.NewReader(s3Client),
			archiveOrders,
			deps.Audit,
		).WithFormat(s3blob.Format(cfg.Archive.Format))
		deps.Checks["s3"] = s3Client.Health
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

	return deps, cleanup, nil
}
