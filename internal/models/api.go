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

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OutcomeCode classifies why an operation did not succeed
type OutcomeCode string

const (
	OutcomeOK            OutcomeCode = "ok"
	OutcomeValidation    OutcomeCode = "validation"
	OutcomeStateConflict OutcomeCode = "state_conflict"
	OutcomePersistence   OutcomeCode = "persistence"
)

// Outcome is the structured result every ledger operation returns to its caller
type Outcome struct {
	Success bool        `json:"success"`
	Code    OutcomeCode `json:"code"`
	Message string      `json:"message,omitempty"`
}

// WalletBalance represents a wallet's balances as shown to a user
type WalletBalance struct {
	WalletId         string          `json:"wallet_id"`
	Currency         string          `json:"currency"`
	CashBalance      decimal.Decimal `json:"cash_balance"`
	InvestingBalance decimal.Decimal `json:"investing_balance"`
	ProfitLoss       decimal.Decimal `json:"profit_loss"`
}

// TransactionRecord represents a transaction in the user's history
type TransactionRecord struct {
	Id          string          `json:"id"`
	Type        string          `json:"type"`
	Direction   string          `json:"direction"`
	Status      string          `json:"status"`
	Amount      decimal.Decimal `json:"amount"`
	Network     string          `json:"network,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
	ProcessedAt time.Time       `json:"processed_at"`
}

// LedgerResult is returned by operations that post to the ledger
type LedgerResult struct {
	Outcome
	Transaction *WalletTransaction `json:"transaction,omitempty"`
	NewBalance  decimal.Decimal    `json:"new_balance,omitempty"`
}

// FanOutResult reports what a leader trade produced across followers
type FanOutResult struct {
	Outcome
	Created int    `json:"created"`
	Skipped int    `json:"skipped"`
	Summary string `json:"summary"`
}

// FollowResult is returned by FollowTrader
type FollowResult struct {
	Outcome
	Relationship *CopyRelationship `json:"relationship,omitempty"`
}

// CompactionResult reports how many snapshot rows a compaction pass removed
// (or would remove in dry-run mode)
type CompactionResult struct {
	Outcome
	Users   int  `json:"users"`
	Scanned int  `json:"scanned"`
	Removed int  `json:"removed"`
	DryRun  bool `json:"dry_run"`
}
