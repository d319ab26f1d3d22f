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

const (
	// User queries
	queryGetActiveUsers = `
		SELECT id, name, email, created_at, updated_at
		FROM users
		WHERE active = 1
		ORDER BY created_at`

	queryInsertUser = `
		INSERT OR IGNORE INTO users (id, name, email) VALUES (?, ?, ?)`

	queryGetUserById = `
		SELECT id, name, email, created_at, updated_at
		FROM users
		WHERE id = ? AND active = 1`

	queryGetUserByEmail = `
		SELECT id, name, email, created_at, updated_at
		FROM users
		WHERE email = ? AND active = 1`

	// Wallet queries
	queryInsertWallet = `
		INSERT INTO wallets (id, user_id, cash_balance, investing_balance, profit_loss, currency, version, updated_at)
		VALUES (?, ?, '0', '0', '0', ?, 1, ?)`

	walletColumns = `id, user_id, cash_balance, investing_balance, profit_loss, currency, version, updated_at`

	queryGetWallet = `
		SELECT ` + walletColumns + `
		FROM wallets
		WHERE id = ?`

	queryGetWalletByUser = `
		SELECT ` + walletColumns + `
		FROM wallets
		WHERE user_id = ?`

	// The version guard makes a lost update impossible even if a caller
	// forgets to run inside an immediate transaction.
	queryUpdateCashBalance = `
		UPDATE wallets
		SET cash_balance = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`

	queryUpdateInvestingBalance = `
		UPDATE wallets
		SET investing_balance = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`

	queryUpdateProfitLoss = `
		UPDATE wallets
		SET profit_loss = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`

	// Asset queries
	queryUpsertAsset = `
		INSERT INTO assets (id, symbol, network, name) VALUES (?, ?, ?, ?)
		ON CONFLICT(symbol, network) DO UPDATE SET name = excluded.name
		RETURNING id, symbol, network, name`

	queryGetAsset = `
		SELECT id, symbol, network, name
		FROM assets
		WHERE id = ?`

	queryGetAssets = `
		SELECT id, symbol, network, name
		FROM assets
		ORDER BY symbol, network`

	// Deposit address queries
	queryInsertDepositAddress = `
		INSERT INTO deposit_addresses (id, asset_id, network, address, created_at)
		VALUES (?, ?, ?, ?, ?)`

	queryGetDepositAddress = `
		SELECT id, asset_id, network, address, created_at
		FROM deposit_addresses
		WHERE asset_id = ? AND network = ?
		ORDER BY created_at DESC
		LIMIT 1`

	// Wallet transaction queries
	transactionColumns = `id, wallet_id, asset_id, type, status, direction, balance_account, amount,
		balance_before, balance_after, network, notes, metadata, occurred_at, processed_at`

	queryInsertTransaction = `
		INSERT INTO wallet_transactions (` + transactionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetTransaction = `
		SELECT ` + transactionColumns + `
		FROM wallet_transactions
		WHERE id = ?`

	queryGetTransactionHistory = `
		SELECT ` + transactionColumns + `
		FROM wallet_transactions
		WHERE wallet_id = ?
		ORDER BY occurred_at DESC, id DESC
		LIMIT ? OFFSET ?`

	queryGetApprovedTransactions = `
		SELECT balance_account, direction, amount
		FROM wallet_transactions
		WHERE wallet_id = ? AND status = 'approved'`

	queryGetPendingWithdrawalAmounts = `
		SELECT amount
		FROM wallet_transactions
		WHERE wallet_id = ? AND type = 'withdrawal' AND status = 'pending'`

	queryFinalizeTransaction = `
		UPDATE wallet_transactions
		SET status = ?, balance_before = ?, balance_after = ?, metadata = ?, processed_at = ?
		WHERE id = ? AND status = 'pending'`

	queryDeletePendingTransaction = `
		DELETE FROM wallet_transactions WHERE id = ? AND status = 'pending'`

	queryInsertJournalEntry = `
		INSERT INTO journal_entries (id, transaction_id, account_type, account_id, debit_amount, credit_amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	// Deposit request queries
	depositColumns = `id, wallet_id, asset_id, amount, currency, network, deposit_address, status,
		transaction_hash, proof_path, wallet_transaction_id, created_at, submitted_at, processed_at`

	queryInsertDepositRequest = `
		INSERT INTO deposit_requests (` + depositColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetDepositRequest = `
		SELECT ` + depositColumns + `
		FROM deposit_requests
		WHERE id = ?`

	queryUpdateDepositNetwork = `
		UPDATE deposit_requests
		SET asset_id = ?, network = ?, deposit_address = ?, status = 'payment'
		WHERE id = ? AND status IN ('input', 'payment')`

	queryUpdateDepositProof = `
		UPDATE deposit_requests
		SET transaction_hash = ?, proof_path = ?, status = 'processing', submitted_at = ?
		WHERE id = ? AND status IN ('input', 'payment')`

	queryApproveDepositRequest = `
		UPDATE deposit_requests
		SET status = 'approved', processed_at = ?, wallet_transaction_id = ?
		WHERE id = ? AND status = 'processing'`

	queryRejectDepositRequest = `
		UPDATE deposit_requests
		SET status = 'rejected', processed_at = ?
		WHERE id = ? AND status NOT IN ('approved', 'rejected')`

	queryDeleteDepositRequest = `
		DELETE FROM deposit_requests WHERE id = ? AND status != 'approved'`

	// Trader and copy relationship queries
	queryInsertTrader = `
		INSERT INTO traders (id, name, copy_fee, followers_count, leader_trades_count, active, created_at)
		VALUES (?, ?, ?, 0, 0, 1, ?)`

	queryGetTrader = `
		SELECT id, name, copy_fee, followers_count, leader_trades_count, active, created_at
		FROM traders
		WHERE id = ?`

	queryGetTraders = `
		SELECT id, name, copy_fee, followers_count, leader_trades_count, active, created_at
		FROM traders
		ORDER BY name, id`

	queryAdjustTraderFollowers = `
		UPDATE traders SET followers_count = followers_count + ? WHERE id = ?`

	queryIncrementTraderTrades = `
		UPDATE traders SET leader_trades_count = leader_trades_count + 1 WHERE id = ?`

	relationshipColumns = `id, user_id, trader_id, allocation_amount, copy_ratio, status, pnl, trades_count, created_at, updated_at`

	queryInsertRelationship = `
		INSERT INTO copy_relationships (` + relationshipColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, '0', 0, ?, ?)`

	queryGetRelationship = `
		SELECT ` + relationshipColumns + `
		FROM copy_relationships
		WHERE id = ?`

	queryCountOpenRelationships = `
		SELECT COUNT(*)
		FROM copy_relationships
		WHERE user_id = ? AND trader_id = ? AND status IN ('active', 'paused')`

	queryGetActiveRelationships = `
		SELECT ` + relationshipColumns + `
		FROM copy_relationships
		WHERE trader_id = ? AND status = 'active'
		ORDER BY created_at, id`

	queryUpdateRelationshipStatus = `
		UPDATE copy_relationships SET status = ?, updated_at = ? WHERE id = ? AND status != 'closed'`

	queryUpdateRelationshipCounters = `
		UPDATE copy_relationships
		SET trades_count = trades_count + 1, pnl = ?, updated_at = ?
		WHERE id = ? AND status = 'active'`

	copyTradeColumns = `id, copy_relationship_id, asset_id, side, quantity, price, pnl, executed_at, metadata`

	queryInsertCopyTrade = `
		INSERT INTO copy_trades (` + copyTradeColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetCopyTrades = `
		SELECT ` + copyTradeColumns + `
		FROM copy_trades
		WHERE copy_relationship_id = ?
		ORDER BY executed_at, id`

	// Snapshot queries
	queryInsertSnapshot = `
		INSERT INTO portfolio_snapshots (user_id, value, buying_power, recorded_at)
		VALUES (?, ?, ?, ?)
		RETURNING id`

	queryGetSnapshotsInRange = `
		SELECT id, user_id, value, buying_power, recorded_at
		FROM portfolio_snapshots
		WHERE user_id = ? AND recorded_at >= ? AND recorded_at <= ?
		ORDER BY recorded_at, id`

	queryGetSnapshotUsers = `
		SELECT DISTINCT user_id
		FROM portfolio_snapshots
		ORDER BY user_id`
)
