package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"copy-trade-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across the ledger. Validation errors are raised
// before any lock is taken; the state-conflict errors after the locks are
// held but before anything is written.
var (
	ErrValidation             = errors.New("validation failed")
	ErrNotFound               = errors.New("not found")
	ErrAlreadyFinalized       = errors.New("already finalized")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrNoActiveFollowers      = errors.New("no active followers")
	ErrAlreadyFollowing       = errors.New("already following trader")
	ErrDeleteForbidden        = errors.New("delete not permitted")
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// IsStateConflict reports whether err is a user-visible state conflict
func IsStateConflict(err error) bool {
	return errors.Is(err, ErrAlreadyFinalized) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrNoActiveFollowers) ||
		errors.Is(err, ErrAlreadyFollowing) ||
		errors.Is(err, ErrDeleteForbidden)
}

// RequireDepositEditable refuses changes to a deposit request that is under
// review or already finalized. Only input and payment requests take a new
// network or proof.
func RequireDepositEditable(r *models.DepositRequest) error {
	if r.Status.Terminal() {
		return fmt.Errorf("%w: deposit request %s is %s", ErrAlreadyFinalized, r.Id, r.Status)
	}
	if r.Status == models.DepositStatusProcessing {
		return fmt.Errorf("%w: deposit request %s is awaiting review", ErrInvalidTransition, r.Id)
	}
	return nil
}

// IsValidation reports whether err was rejected before touching the store
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound)
}

// LedgerEvent is a single balance-affecting financial event
type LedgerEvent struct {
	WalletId  string
	AssetId   string
	Type      models.TransactionType
	Direction models.Direction
	Account   models.BalanceAccount // defaults to cash
	Amount    decimal.Decimal
	Network   string
	Notes     string
	Metadata  models.TransactionMetadata
}

type CreateDepositParams struct {
	WalletId string
	AssetId  string
	Amount   decimal.Decimal
	Currency string
	Network  string
}

// DepositProofParams is what a user submits when attaching payment proof.
// AutoApprove is accepted for client compatibility and never honoured.
type DepositProofParams struct {
	RequestId       string
	TransactionHash string
	ProofPath       string
	AutoApprove     bool
}

type SubmitWithdrawalParams struct {
	WalletId    string
	AssetId     string
	Amount      decimal.Decimal
	Network     string
	Destination string
	Notes       string
}

type FollowParams struct {
	UserId           string
	TraderId         string
	AllocationAmount decimal.Decimal
	CopyRatio        decimal.Decimal
}

// LeaderTrade is a trade placed by a leader that is fanned out to followers
type LeaderTrade struct {
	TraderId   string
	AssetId    string
	Side       models.TradeSide
	Quantity   decimal.Decimal
	Price      decimal.Decimal
	ExecutedAt time.Time
	Pnl        *decimal.Decimal
	Note       string
}

// FanOutStats is the per-batch result of a leader trade fan-out
type FanOutStats struct {
	Created                 int
	SkippedNonPositiveRatio int
	SkippedZeroQuantity     int
}

func (s FanOutStats) Skipped() int {
	return s.SkippedNonPositiveRatio + s.SkippedZeroQuantity
}

// LedgerStore defines the contract of the relational backend
type LedgerStore interface {
	// --- Users & wallets ---
	GetUsers(ctx context.Context) ([]models.User, error)
	GetUserById(ctx context.Context, userId string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, userId, name, email, currency string) (*models.User, error)
	GetWallet(ctx context.Context, walletId string) (*models.Wallet, error)
	GetWalletByUser(ctx context.Context, userId string) (*models.Wallet, error)
	ReconcileWallet(ctx context.Context, walletId string) error

	// --- Catalog ---
	GetAsset(ctx context.Context, assetId string) (*models.Asset, error)
	GetDepositAddress(ctx context.Context, assetId, network string) (*models.DepositAddress, error)

	// --- Ledger ---
	ApplyLedgerEvent(ctx context.Context, event LedgerEvent) (*models.WalletTransaction, error)
	GetWalletTransaction(ctx context.Context, transactionId string) (*models.WalletTransaction, error)
	GetTransactionHistory(ctx context.Context, walletId string, limit, offset int) ([]models.WalletTransaction, error)

	// --- Deposits ---
	CreateDepositRequest(ctx context.Context, params CreateDepositParams) (*models.DepositRequest, error)
	GetDepositRequest(ctx context.Context, requestId string) (*models.DepositRequest, error)
	SelectDepositNetwork(ctx context.Context, requestId, assetId, network string) (*models.DepositRequest, error)
	SubmitDepositProof(ctx context.Context, params DepositProofParams) (*models.DepositRequest, error)
	ApproveDeposit(ctx context.Context, requestId, actor string) (*models.WalletTransaction, error)
	RejectDeposit(ctx context.Context, requestId, actor, reason string) error
	DeleteDepositRequest(ctx context.Context, requestId string) (*models.DepositRequest, error)

	// --- Withdrawals ---
	SubmitWithdrawal(ctx context.Context, params SubmitWithdrawalParams) (*models.WalletTransaction, error)
	ApproveWithdrawal(ctx context.Context, transactionId, actor string) (*models.WalletTransaction, error)
	RejectWithdrawal(ctx context.Context, transactionId, actor, reason string) error
	DeleteWithdrawal(ctx context.Context, transactionId string) error

	// --- Copy trading ---
	GetTrader(ctx context.Context, traderId string) (*models.Trader, error)
	CreateTrader(ctx context.Context, name string, copyFee decimal.Decimal) (*models.Trader, error)
	FollowTrader(ctx context.Context, params FollowParams) (*models.CopyRelationship, *models.WalletTransaction, error)
	SetRelationshipStatus(ctx context.Context, relationshipId string, status models.RelationshipStatus) (*models.CopyRelationship, error)
	GetRelationship(ctx context.Context, relationshipId string) (*models.CopyRelationship, error)
	ExecuteLeaderTrade(ctx context.Context, trade LeaderTrade) (FanOutStats, error)
	GetCopyTrades(ctx context.Context, relationshipId string) ([]models.CopyTrade, error)

	// --- Snapshots ---
	RecordSnapshot(ctx context.Context, userId string, value, buyingPower decimal.Decimal, recordedAt time.Time) (*models.PortfolioSnapshot, error)
	ListSnapshots(ctx context.Context, userId string, from, to time.Time) ([]models.PortfolioSnapshot, error)
	ListSnapshotUsers(ctx context.Context) ([]string, error)
	DeleteSnapshots(ctx context.Context, ids []int64) (int, error)

	// --- Lifecycle ---
	Close()
}

// LedgerMirror receives every approved wallet transaction after it commits
type LedgerMirror interface {
	RecordWalletTransaction(ctx context.Context, tx models.WalletTransaction, currency string) error
}
