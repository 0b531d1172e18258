// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/merkato/internal/config"
	"github.com/tomtom215/merkato/internal/logging"
)

const (
	defaultQueryTimeout  = 10 * time.Second
	defaultDashboardDays = 30
	maxDashboardDays     = 366
	defaultTopLimit      = 10
)

// Open opens the DuckDB file named by cfg.Path, creating the parent
// directory when needed. ":memory:" opens a private in-memory database.
func Open(cfg *config.AnalyticsConfig) (*sql.DB, error) {
	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "512MB"
	}

	path := cfg.Path
	if path == "" || path == ":memory:" {
		path = ""
	} else if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create analytics directory %s: %w", dir, err)
		}
	}

	// Autoloading is off so startup never reaches out to the extension repository.
	dsn := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		path, threads, maxMemory)
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open analytics database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open analytics database: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Int("threads", threads).
		Str("max_memory", maxMemory).
		Msg("Analytics database opened")
	return db, nil
}

// Store holds the sales fact tables. Writes are serialized; DuckDB
// allows one writer per process.
type Store struct {
	db *sql.DB
	mu sync.RWMutex

	now func() time.Time
}

// NewStore wraps db. Call CreateTables before use.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// DB exposes the connection for stores that share the file.
func (s *Store) DB() *sql.DB { return s.db }

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateTables creates the fact tables and their indexes.
func (s *Store) CreateTables(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS orders_fact (
			order_id TEXT PRIMARY KEY,
			order_number TEXT NOT NULL,
			customer_id TEXT NOT NULL,
			agent_id TEXT,
			status TEXT NOT NULL,
			payment_method TEXT NOT NULL,
			city TEXT,
			region TEXT,
			subtotal DOUBLE NOT NULL,
			delivery_fee DOUBLE NOT NULL,
			vat DOUBLE NOT NULL,
			total DOUBLE NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			delivered_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS order_items_fact (
			order_id TEXT NOT NULL,
			line_no INTEGER NOT NULL,
			product_id TEXT NOT NULL,
			product_name TEXT NOT NULL,
			seller_id TEXT NOT NULL,
			category TEXT,
			quantity INTEGER NOT NULL,
			unit_price DOUBLE NOT NULL,
			line_total DOUBLE NOT NULL,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (order_id, line_no)
		)`,
		`CREATE TABLE IF NOT EXISTS order_status_events (
			order_id TEXT NOT NULL,
			from_status TEXT,
			to_status TEXT NOT NULL,
			actor_id TEXT,
			actor_role TEXT,
			agent_id TEXT,
			occurred_at TIMESTAMP NOT NULL,
			PRIMARY KEY (order_id, to_status)
		)`,
		`CREATE TABLE IF NOT EXISTS user_signups (
			user_id TEXT PRIMARY KEY,
			role TEXT NOT NULL,
			region TEXT,
			occurred_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_fact_created ON orders_fact(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_items_fact_seller ON order_items_fact(seller_id)`,
		`CREATE INDEX IF NOT EXISTS idx_items_fact_product ON order_items_fact(product_id)`,
		`CREATE INDEX IF NOT EXISTS idx_status_events_occurred ON order_status_events(occurred_at)`,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create analytics schema: %w", err)
		}
	}
	logging.Debug().Msg("Analytics tables created/verified")
	return nil
}

// ensureContext applies the default query timeout when ctx has no deadline.
func ensureContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, defaultQueryTimeout)
}
