package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the kind of financial event a wallet transaction records
type TransactionType string

const (
	TransactionTypeDeposit        TransactionType = "deposit"
	TransactionTypeWithdrawal     TransactionType = "withdrawal"
	TransactionTypeCopyFee        TransactionType = "copy_fee"
	TransactionTypeCopyAllocation TransactionType = "copy_allocation"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeWithdrawal, TransactionTypeCopyFee, TransactionTypeCopyAllocation:
		return true
	}
	return false
}

// TransactionStatus is the lifecycle state of a wallet transaction.
// Only withdrawal rows ever leave the status they were created with.
type TransactionStatus string

const (
	TransactionStatusPending  TransactionStatus = "pending"
	TransactionStatusApproved TransactionStatus = "approved"
	TransactionStatusRejected TransactionStatus = "rejected"
)

func (s TransactionStatus) Terminal() bool {
	return s == TransactionStatusApproved || s == TransactionStatusRejected
}

type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

func (d Direction) Valid() bool {
	return d == DirectionCredit || d == DirectionDebit
}

// Signed returns amount with the sign this direction applies to a balance
func (d Direction) Signed(amount decimal.Decimal) decimal.Decimal {
	if d == DirectionDebit {
		return amount.Neg()
	}
	return amount
}

// BalanceAccount names one of the three balance columns of a wallet
type BalanceAccount string

const (
	BalanceAccountCash      BalanceAccount = "cash"
	BalanceAccountInvesting BalanceAccount = "investing"
	BalanceAccountProfit    BalanceAccount = "profit_loss"
)

// MayGoNegative reports whether debits can take the account below zero.
// Profit and loss records realized losses, so it can.
func (a BalanceAccount) MayGoNegative() bool {
	return a == BalanceAccountProfit
}

func (a BalanceAccount) Valid() bool {
	switch a {
	case BalanceAccountCash, BalanceAccountInvesting, BalanceAccountProfit:
		return true
	}
	return false
}

type DepositStatus string

const (
	DepositStatusInput      DepositStatus = "input"
	DepositStatusPayment    DepositStatus = "payment"
	DepositStatusProcessing DepositStatus = "processing"
	DepositStatusApproved   DepositStatus = "approved"
	DepositStatusRejected   DepositStatus = "rejected"
)

func (s DepositStatus) Terminal() bool {
	return s == DepositStatusApproved || s == DepositStatusRejected
}

type RelationshipStatus string

const (
	RelationshipStatusActive RelationshipStatus = "active"
	RelationshipStatusPaused RelationshipStatus = "paused"
	RelationshipStatusClosed RelationshipStatus = "closed"
)

type TradeSide string

const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

func (s TradeSide) Valid() bool {
	return s == TradeSideBuy || s == TradeSideSell
}

// User represents a user in the system
type User struct {
	Id        string    `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Wallet holds the three balances of a user. Balances change only through the ledger.
type Wallet struct {
	Id               string          `db:"id"`
	UserId           string          `db:"user_id"`
	CashBalance      decimal.Decimal `db:"cash_balance"`
	InvestingBalance decimal.Decimal `db:"investing_balance"`
	ProfitLoss       decimal.Decimal `db:"profit_loss"`
	Currency         string          `db:"currency"`
	Version          int64           `db:"version"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

// Balance returns the balance held in the given account
func (w *Wallet) Balance(account BalanceAccount) decimal.Decimal {
	switch account {
	case BalanceAccountInvesting:
		return w.InvestingBalance
	case BalanceAccountProfit:
		return w.ProfitLoss
	default:
		return w.CashBalance
	}
}

// WalletTransaction is an append-only ledger entry (cold data)
type WalletTransaction struct {
	Id             string              `db:"id"`
	WalletId       string              `db:"wallet_id"`
	AssetId        string              `db:"asset_id"`
	Type           TransactionType     `db:"type"`
	Status         TransactionStatus   `db:"status"`
	Direction      Direction           `db:"direction"`
	Account        BalanceAccount      `db:"balance_account"`
	Amount         decimal.Decimal     `db:"amount"`
	BalanceBefore  decimal.Decimal     `db:"balance_before"`
	BalanceAfter   decimal.Decimal     `db:"balance_after"`
	Network        string              `db:"network"`
	Notes          string              `db:"notes"`
	Metadata       TransactionMetadata `db:"metadata"`
	OccurredAt     time.Time           `db:"occurred_at"`
	ProcessedAt    time.Time           `db:"processed_at"`
}

// Asset is a tradable or depositable asset from the catalog
type Asset struct {
	Id      string `db:"id"`
	Symbol  string `db:"symbol"`
	Network string `db:"network"`
	Name    string `db:"name"`
}

// DepositAddress is the platform receiving address for an asset on a network
type DepositAddress struct {
	Id        string    `db:"id"`
	AssetId   string    `db:"asset_id"`
	Network   string    `db:"network"`
	Address   string    `db:"address"`
	CreatedAt time.Time `db:"created_at"`
}

type DepositRequest struct {
	Id                  string          `db:"id"`
	WalletId            string          `db:"wallet_id"`
	AssetId             string          `db:"asset_id"`
	Amount              decimal.Decimal `db:"amount"`
	Currency            string          `db:"currency"`
	Network             string          `db:"network"`
	DepositAddress      string          `db:"deposit_address"`
	Status              DepositStatus   `db:"status"`
	TransactionHash     string          `db:"transaction_hash"`
	ProofPath           string          `db:"proof_path"`
	WalletTransactionId string          `db:"wallet_transaction_id"`
	CreatedAt           time.Time       `db:"created_at"`
	SubmittedAt         *time.Time      `db:"submitted_at"`
	ProcessedAt         *time.Time      `db:"processed_at"`
}

// Trader is a leader profile that followers copy
type Trader struct {
	Id                string          `db:"id"`
	Name              string          `db:"name"`
	CopyFee           decimal.Decimal `db:"copy_fee"`
	FollowersCount    int64           `db:"followers_count"`
	LeaderTradesCount int64           `db:"leader_trades_count"`
	Active            bool            `db:"active"`
	CreatedAt         time.Time       `db:"created_at"`
}

type CopyRelationship struct {
	Id               string             `db:"id"`
	UserId           string             `db:"user_id"`
	TraderId         string             `db:"trader_id"`
	AllocationAmount decimal.Decimal    `db:"allocation_amount"`
	CopyRatio        decimal.Decimal    `db:"copy_ratio"`
	Status           RelationshipStatus `db:"status"`
	Pnl              decimal.Decimal    `db:"pnl"`
	TradesCount      int64              `db:"trades_count"`
	CreatedAt        time.Time          `db:"created_at"`
	UpdatedAt        time.Time          `db:"updated_at"`
}

// CopyTrade is one follower's scaled replica of a leader trade
type CopyTrade struct {
	Id                 string            `db:"id"`
	CopyRelationshipId string            `db:"copy_relationship_id"`
	AssetId            string            `db:"asset_id"`
	Side               TradeSide         `db:"side"`
	Quantity           decimal.Decimal   `db:"quantity"`
	Price              decimal.Decimal   `db:"price"`
	Pnl                decimal.Decimal   `db:"pnl"`
	ExecutedAt         time.Time         `db:"executed_at"`
	Metadata           CopyTradeMetadata `db:"metadata"`
}

type PortfolioSnapshot struct {
	Id          int64           `db:"id"`
	UserId      string          `db:"user_id"`
	Value       decimal.Decimal `db:"value"`
	BuyingPower decimal.Decimal `db:"buying_power"`
	RecordedAt  time.Time       `db:"recorded_at"`
}
