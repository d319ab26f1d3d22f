/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"copy-trade-ledger-go/internal/models"
	"copy-trade-ledger-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.LedgerStore.
var _ store.LedgerStore = (*Service)(nil)

type Service struct {
	db     *sql.DB
	ledger *LedgerEngine
	now    func() time.Time
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	// _txlock=immediate makes every BeginTx take the write lock up front, so a
	// unit of work that reads a wallet and then writes it cannot interleave
	// with another writer.
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000&_foreign_keys=on&_txlock=immediate&_busy_timeout=%d",
		cfg.Path, cfg.BusyTimeout.Milliseconds())

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// Set connection timeouts and limits
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	ledger := NewLedgerEngine(db)
	service := &Service{db: db, ledger: ledger, now: func() time.Time { return time.Now().UTC() }}
	if err := service.initSchema(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	// Initialize ledger schema
	if err := ledger.InitSchema(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to initialize ledger schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

func (s *Service) initSchema() error {
	schema := `
	-- Create users table
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
	CREATE INDEX IF NOT EXISTS idx_users_active ON users(active);

	-- One wallet per user, created with the user
	CREATE TABLE IF NOT EXISTS wallets (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
		cash_balance TEXT NOT NULL DEFAULT '0',
		investing_balance TEXT NOT NULL DEFAULT '0',
		profit_loss TEXT NOT NULL DEFAULT '0',
		currency TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TEXT NOT NULL
	);

	-- Asset catalog, seeded from assets.yaml
	CREATE TABLE IF NOT EXISTS assets (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		network TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		UNIQUE(symbol, network)
	);

	-- Platform receiving addresses shown at the payment step
	CREATE TABLE IF NOT EXISTS deposit_addresses (
		id TEXT PRIMARY KEY,
		asset_id TEXT NOT NULL REFERENCES assets(id) ON DELETE CASCADE,
		network TEXT NOT NULL,
		address TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_deposit_addresses_asset ON deposit_addresses(asset_id, network);

	CREATE TABLE IF NOT EXISTS deposit_requests (
		id TEXT PRIMARY KEY,
		wallet_id TEXT NOT NULL REFERENCES wallets(id) ON DELETE CASCADE,
		asset_id TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		network TEXT NOT NULL DEFAULT '',
		deposit_address TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		transaction_hash TEXT NOT NULL DEFAULT '',
		proof_path TEXT NOT NULL DEFAULT '',
		wallet_transaction_id TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		submitted_at TEXT NOT NULL DEFAULT '',
		processed_at TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_deposit_requests_wallet ON deposit_requests(wallet_id);
	CREATE INDEX IF NOT EXISTS idx_deposit_requests_status ON deposit_requests(status);

	CREATE TABLE IF NOT EXISTS traders (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		copy_fee TEXT NOT NULL DEFAULT '0',
		followers_count INTEGER NOT NULL DEFAULT 0,
		leader_trades_count INTEGER NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS copy_relationships (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		trader_id TEXT NOT NULL REFERENCES traders(id) ON DELETE CASCADE,
		allocation_amount TEXT NOT NULL,
		copy_ratio TEXT NOT NULL,
		status TEXT NOT NULL,
		pnl TEXT NOT NULL DEFAULT '0',
		trades_count INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_copy_relationships_trader_status ON copy_relationships(trader_id, status);
	CREATE INDEX IF NOT EXISTS idx_copy_relationships_user ON copy_relationships(user_id);

	CREATE TABLE IF NOT EXISTS copy_trades (
		id TEXT PRIMARY KEY,
		copy_relationship_id TEXT NOT NULL REFERENCES copy_relationships(id) ON DELETE CASCADE,
		asset_id TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity TEXT NOT NULL,
		price TEXT NOT NULL,
		pnl TEXT NOT NULL DEFAULT '0',
		executed_at TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}'
	);

	CREATE INDEX IF NOT EXISTS idx_copy_trades_relationship ON copy_trades(copy_relationship_id);

	CREATE TABLE IF NOT EXISTS portfolio_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		value TEXT NOT NULL,
		buying_power TEXT NOT NULL,
		recorded_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_portfolio_snapshots_user_time ON portfolio_snapshots(user_id, recorded_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// withTx runs fn inside one unit of work. Any error from fn rolls back every
// write fn made.
func (s *Service) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		zap.L().Warn("Failed to close rows", zap.Error(err))
	}
}
