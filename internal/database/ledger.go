package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"copy-trade-ledger-go/internal/models"
	"copy-trade-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ApplyLedgerEvent atomically updates the wallet balance and records an approved transaction
func (s *Service) ApplyLedgerEvent(ctx context.Context, event store.LedgerEvent) (*models.WalletTransaction, error) {
	if err := validateLedgerEvent(event); err != nil {
		return nil, err
	}
	if event.AssetId != "" {
		if _, err := s.GetAsset(ctx, event.AssetId); err != nil {
			return nil, err
		}
	}
	if _, err := s.GetWallet(ctx, event.WalletId); err != nil {
		return nil, err
	}

	var transaction *models.WalletTransaction
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		transaction, err = s.ledger.apply(ctx, tx, event, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return transaction, nil
}

func validateLedgerEvent(event store.LedgerEvent) error {
	if event.WalletId == "" {
		return fmt.Errorf("%w: wallet_id is required", store.ErrValidation)
	}
	if !event.Type.Valid() {
		return fmt.Errorf("%w: unknown transaction type %q", store.ErrValidation, event.Type)
	}
	if !event.Direction.Valid() {
		return fmt.Errorf("%w: unknown direction %q", store.ErrValidation, event.Direction)
	}
	if event.Account != "" && !event.Account.Valid() {
		return fmt.Errorf("%w: unknown balance account %q", store.ErrValidation, event.Account)
	}
	if !event.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero, got %s", store.ErrValidation, event.Amount.String())
	}
	if err := event.Metadata.Validate(event.Type); err != nil {
		return fmt.Errorf("%w: %v", store.ErrValidation, err)
	}
	return nil
}

// apply posts event inside tx. The caller's transaction was opened with
// BEGIN IMMEDIATE, so the wallet row read here cannot change until commit.
func (l *LedgerEngine) apply(ctx context.Context, tx *sql.Tx, event store.LedgerEvent, now time.Time) (*models.WalletTransaction, error) {
	account := event.Account
	if account == "" {
		account = models.BalanceAccountCash
	}

	zap.L().Info("Processing ledger event",
		zap.String("wallet_id", event.WalletId),
		zap.String("type", string(event.Type)),
		zap.String("direction", string(event.Direction)),
		zap.String("account", string(account)),
		zap.String("amount", event.Amount.String()))

	wallet, err := getWallet(ctx, tx, queryGetWallet, event.WalletId)
	if err != nil {
		return nil, err
	}

	before, after, err := l.mutateBalance(ctx, tx, wallet, account, event.Direction, event.Amount, now)
	if err != nil {
		return nil, err
	}

	transaction := &models.WalletTransaction{
		Id:            uuid.New().String(),
		WalletId:      event.WalletId,
		AssetId:       event.AssetId,
		Type:          event.Type,
		Status:        models.TransactionStatusApproved,
		Direction:     event.Direction,
		Account:       account,
		Amount:        event.Amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		Network:       event.Network,
		Notes:         event.Notes,
		Metadata:      event.Metadata,
		OccurredAt:    now,
		ProcessedAt:   now,
	}
	if err := insertTransaction(ctx, tx, transaction); err != nil {
		return nil, err
	}

	if err := l.addJournalEntries(ctx, tx, transaction, now); err != nil {
		return nil, fmt.Errorf("failed to add journal entries: %w", err)
	}

	zap.L().Info("Ledger event applied",
		zap.String("transaction_id", transaction.Id),
		zap.String("wallet_id", event.WalletId),
		zap.String("old_balance", before.String()),
		zap.String("new_balance", after.String()))

	return transaction, nil
}

// mutateBalance writes balance ± amount to the account and returns the
// balances before and after. Debits may not take cash or investing below zero.
func (l *LedgerEngine) mutateBalance(ctx context.Context, tx *sql.Tx, wallet *models.Wallet, account models.BalanceAccount, direction models.Direction, amount decimal.Decimal, now time.Time) (decimal.Decimal, decimal.Decimal, error) {
	before := wallet.Balance(account)
	after := before.Add(direction.Signed(amount))
	if direction == models.DirectionDebit && after.IsNegative() && !account.MayGoNegative() {
		return before, before, fmt.Errorf("%w: %s balance=%s, requested=%s, shortfall=%s",
			store.ErrInsufficientBalance, account, before.String(), amount.String(), after.Neg().String())
	}

	query := queryUpdateCashBalance
	switch account {
	case models.BalanceAccountInvesting:
		query = queryUpdateInvestingBalance
	case models.BalanceAccountProfit:
		query = queryUpdateProfitLoss
	}

	result, err := tx.ExecContext(ctx, query, after.String(), formatTime(now), wallet.Id, wallet.Version)
	if err != nil {
		return before, before, fmt.Errorf("failed to update balance: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return before, before, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return before, before, fmt.Errorf("balance update failed - %w", store.ErrConcurrentModification)
	}

	wallet.Version++
	switch account {
	case models.BalanceAccountInvesting:
		wallet.InvestingBalance = after
	case models.BalanceAccountProfit:
		wallet.ProfitLoss = after
	default:
		wallet.CashBalance = after
	}
	return before, after, nil
}

func insertTransaction(ctx context.Context, q queryer, t *models.WalletTransaction) error {
	metadata, err := t.Metadata.Encode()
	if err != nil {
		return err
	}
	processedAt := ""
	if !t.ProcessedAt.IsZero() {
		processedAt = formatTime(t.ProcessedAt)
	}
	_, err = q.ExecContext(ctx, queryInsertTransaction,
		t.Id, t.WalletId, t.AssetId, string(t.Type), string(t.Status), string(t.Direction), string(t.Account),
		t.Amount.String(), t.BalanceBefore.String(), t.BalanceAfter.String(),
		t.Network, t.Notes, metadata, formatTime(t.OccurredAt), processedAt)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// journalCounterAccount is the platform side of each transaction type
func journalCounterAccount(t models.TransactionType) string {
	switch t {
	case models.TransactionTypeCopyFee:
		return "copy_fee_revenue"
	case models.TransactionTypeCopyAllocation:
		return "copy_allocations"
	default:
		return "system_liability"
	}
}

// addJournalEntries creates double-entry bookkeeping entries
func (l *LedgerEngine) addJournalEntries(ctx context.Context, tx *sql.Tx, transaction *models.WalletTransaction, now time.Time) error {
	// A credit grows what we owe the user: debit the user account, credit the
	// counter account. A debit is the mirror image.
	userAccount := fmt.Sprintf("%s_%s", transaction.WalletId, transaction.Account)
	counterAccount := journalCounterAccount(transaction.Type)

	type entry struct {
		accountType  string
		accountId    string
		debitAmount  decimal.Decimal
		creditAmount decimal.Decimal
	}
	var entries []entry
	if transaction.Direction == models.DirectionCredit {
		entries = []entry{
			{"user_" + string(transaction.Account), userAccount, transaction.Amount, decimal.Zero},
			{counterAccount, counterAccount, decimal.Zero, transaction.Amount},
		}
	} else {
		entries = []entry{
			{"user_" + string(transaction.Account), userAccount, decimal.Zero, transaction.Amount},
			{counterAccount, counterAccount, transaction.Amount, decimal.Zero},
		}
	}

	for _, e := range entries {
		_, err := tx.ExecContext(ctx, queryInsertJournalEntry,
			uuid.New().String(), transaction.Id, e.accountType, e.accountId,
			e.debitAmount.String(), e.creditAmount.String(), formatTime(now))
		if err != nil {
			return err
		}
	}
	return nil
}

// GetWalletTransaction returns a single wallet transaction
func (s *Service) GetWalletTransaction(ctx context.Context, transactionId string) (*models.WalletTransaction, error) {
	return getTransaction(ctx, s.db, transactionId)
}

func getTransaction(ctx context.Context, q queryer, transactionId string) (*models.WalletTransaction, error) {
	t, err := scanTransaction(q.QueryRowContext(ctx, queryGetTransaction, transactionId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: transaction %s", store.ErrNotFound, transactionId)
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return t, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.WalletTransaction, error) {
	var t models.WalletTransaction
	var txType, status, direction, account string
	var amountStr, beforeStr, afterStr, metadataStr, occurredStr, processedStr string
	err := row.Scan(&t.Id, &t.WalletId, &t.AssetId, &txType, &status, &direction, &account,
		&amountStr, &beforeStr, &afterStr, &t.Network, &t.Notes, &metadataStr, &occurredStr, &processedStr)
	if err != nil {
		return nil, err
	}
	t.Type = models.TransactionType(txType)
	t.Status = models.TransactionStatus(status)
	t.Direction = models.Direction(direction)
	t.Account = models.BalanceAccount(account)

	if t.Amount, err = parseDecimal("amount", amountStr); err != nil {
		return nil, err
	}
	if t.BalanceBefore, err = parseDecimal("balance_before", beforeStr); err != nil {
		return nil, err
	}
	if t.BalanceAfter, err = parseDecimal("balance_after", afterStr); err != nil {
		return nil, err
	}
	if t.Metadata, err = models.DecodeTransactionMetadata(metadataStr); err != nil {
		return nil, err
	}
	if t.OccurredAt, err = parseTime(occurredStr); err != nil {
		return nil, err
	}
	if t.ProcessedAt, err = parseTime(processedStr); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTransactionHistory returns paginated transaction history for a wallet
func (s *Service) GetTransactionHistory(ctx context.Context, walletId string, limit, offset int) ([]models.WalletTransaction, error) {
	zap.L().Debug("Getting transaction history",
		zap.String("wallet_id", walletId),
		zap.Int("limit", limit),
		zap.Int("offset", offset))

	rows, err := s.db.QueryContext(ctx, queryGetTransactionHistory, walletId, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}
	defer closeRows(rows)

	var transactions []models.WalletTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *t)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during transaction row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}

	return transactions, nil
}
