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
	"database/sql"
)

// LedgerEngine is the only code path that changes wallet balances. Every
// balance change is paired with exactly one wallet transaction row.
type LedgerEngine struct {
	db *sql.DB
}

func NewLedgerEngine(db *sql.DB) *LedgerEngine {
	return &LedgerEngine{
		db: db,
	}
}

func (l *LedgerEngine) InitSchema() error {
	schema := `
	-- Wallet Transactions Table (Audit Trail - Cold Data)
	CREATE TABLE IF NOT EXISTS wallet_transactions (
		id TEXT PRIMARY KEY,
		wallet_id TEXT NOT NULL REFERENCES wallets(id),
		asset_id TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL,
		status TEXT NOT NULL,
		direction TEXT NOT NULL,
		balance_account TEXT NOT NULL DEFAULT 'cash',
		amount TEXT NOT NULL,
		balance_before TEXT NOT NULL DEFAULT '0',
		balance_after TEXT NOT NULL DEFAULT '0',
		network TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		metadata TEXT NOT NULL DEFAULT '{}',
		occurred_at TEXT NOT NULL,
		processed_at TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_wallet_transactions_wallet ON wallet_transactions(wallet_id, occurred_at);
	CREATE INDEX IF NOT EXISTS idx_wallet_transactions_status ON wallet_transactions(status);
	CREATE INDEX IF NOT EXISTS idx_wallet_transactions_type ON wallet_transactions(type);

	-- Journal Entries for Double-Entry Bookkeeping
	CREATE TABLE IF NOT EXISTS journal_entries (
		id TEXT PRIMARY KEY,
		transaction_id TEXT NOT NULL,
		account_type TEXT NOT NULL,
		account_id TEXT NOT NULL,
		debit_amount TEXT NOT NULL DEFAULT '0',
		credit_amount TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_journal_transaction_id ON journal_entries(transaction_id);
	CREATE INDEX IF NOT EXISTS idx_journal_account ON journal_entries(account_type, account_id);
	`

	_, err := l.db.Exec(schema)
	return err
}
