// Package sqlite implements the domain stores on an embedded SQLite file via
// the pure-Go modernc.org/sqlite driver, for single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"net/url"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/alanyoungcy/settlement/internal/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Client wraps the database handle and hands out units of work.
type Client struct {
	db *sql.DB
}

var _ domain.TxManager = (*Client)(nil)

// DSN builds the driver connection string for path. Transactions begin
// IMMEDIATE so a unit of work holds the write lock from its first read; WAL
// lets price lookups on other connections proceed meanwhile.
func DSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

// Open opens (or creates) the database at path.
func Open(ctx context.Context, path string) (*Client, error) {
	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(4)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping %s: %w", path, err)
	}
	return &Client{db: db}, nil
}

// Close closes the underlying database.
func (c *Client) Close() error {
	return c.db.Close()
}

// Health pings the database.
func (c *Client) Health(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: health: %w", err)
	}
	return nil
}

// Repos returns stores that run directly on the database.
func (c *Client) Repos() domain.Repos {
	return reposOn(c.db)
}

func reposOn(q querier) domain.Repos {
	return domain.Repos{
		Users:       &UserStore{q: q},
		Instruments: &InstrumentStore{q: q},
		Orders:      &OrderStore{q: q},
		MarketData:  &MarketDataStore{q: q},
	}
}

// WithinUser runs fn in an immediate transaction. SQLite admits one writer
// at a time, so units are serialized across all users, which is stricter
// than the per-user guarantee required.
func (c *Client) WithinUser(ctx context.Context, userID int64, fn func(ctx context.Context, tx domain.Repos) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin for user %d: %w", userID, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(ctx, reposOn(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	committed = true
	return nil
}

// RunMigrations applies embedded migrations/*.sql in lexicographic order,
// tracking applied files in schema_migrations.
func (c *Client) RunMigrations(ctx context.Context) error {
	const createTracker = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename   TEXT PRIMARY KEY,
			applied_at INTEGER NOT NULL
		);`
	if _, err := c.db.ExecContext(ctx, createTracker); err != nil {
		return fmt.Errorf("sqlite: create schema_migrations table: %w", err)
	}

	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("sqlite: read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		if err := c.applyMigration(ctx, entry.Name()); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) applyMigration(ctx context.Context, name string) error {
	var n int
	err := c.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name,
	).Scan(&n)
	if err != nil {
		return fmt.Errorf("sqlite: check migration %s: %w", name, err)
	}
	if n > 0 {
		return nil
	}

	data, err := migrationsFS.ReadFile("migrations/" + name)
	if err != nil {
		return fmt.Errorf("sqlite: read migration %s: %w", name, err)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx for %s: %w", name, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, string(data)); err != nil {
		return fmt.Errorf("sqlite: exec migration %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (filename, applied_at) VALUES (?, ?)",
		name, time.Now().UTC().UnixNano(),
	); err != nil {
		return fmt.Errorf("sqlite: record migration %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit migration %s: %w", name, err)
	}
	return nil
}
