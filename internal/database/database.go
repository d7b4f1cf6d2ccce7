// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

// Package database is the persistence layer. It exclusively owns durable
// state: players, groups, events, leaderboard aggregates, notification tasks,
// and idempotency keys. Everything other components hold (aggregator views,
// cached artifacts) is derived and reconcilable from the tables here.
//
// The store is DuckDB via database/sql. DuckDB is single-writer; the
// connection pool serializes concurrent commits, which together with atomic
// in-database increments preserves the leaderboard invariant under
// concurrent submissions.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/lootledger/lootledger/internal/config"
	"github.com/lootledger/lootledger/internal/logging"
)

// DB wraps the DuckDB connection and provides data access methods.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig

	// Prepared statement caching for hot-path queries.
	stmtCache   map[string]*sql.Stmt
	stmtCacheMu sync.RWMutex
}

// New creates a database connection and initializes the schema.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// Ensure the parent directory exists for file-backed databases.
	// Use 0750 permissions per gosec G301.
	if cfg.Path != ":memory:" && cfg.Path != "" {
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
	}

	connStr := cfg.Path
	if connStr != ":memory:" && connStr != "" {
		connStr = fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s",
			cfg.Path, numThreads, cfg.MaxMemory)
	}

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{
		conn:      conn,
		cfg:       cfg,
		stmtCache: make(map[string]*sql.Stmt),
	}

	if err := db.initialize(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Msg("Database initialized")
	return db, nil
}

// NewMemory opens an in-memory database for tests.
func NewMemory() (*DB, error) {
	return New(&config.DatabaseConfig{Path: ":memory:"})
}

// Conn exposes the underlying *sql.DB for advanced callers.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Ping verifies the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close releases prepared statements and closes the connection.
func (db *DB) Close() error {
	db.stmtCacheMu.Lock()
	for _, stmt := range db.stmtCache {
		_ = stmt.Close()
	}
	db.stmtCache = nil
	db.stmtCacheMu.Unlock()

	return db.conn.Close()
}

// prepared returns a cached prepared statement for the query, preparing it
// on first use.
func (db *DB) prepared(ctx context.Context, query string) (*sql.Stmt, error) {
	db.stmtCacheMu.RLock()
	stmt, ok := db.stmtCache[query]
	db.stmtCacheMu.RUnlock()
	if ok {
		return stmt, nil
	}

	stmt, err := db.conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}

	db.stmtCacheMu.Lock()
	defer db.stmtCacheMu.Unlock()
	if db.stmtCache == nil {
		_ = stmt.Close()
		return nil, fmt.Errorf("database is closed")
	}
	if existing, ok := db.stmtCache[query]; ok {
		_ = stmt.Close()
		return existing, nil
	}
	db.stmtCache[query] = stmt
	return stmt, nil
}
