package database

import (
	"context"
	"database/sql"
	"fmt"

	"copy-trade-ledger-go/internal/models"
	"copy-trade-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// pendingWithdrawals sums every withdrawal still awaiting review for a wallet
func pendingWithdrawals(ctx context.Context, q queryer, walletId string) (decimal.Decimal, error) {
	rows, err := q.QueryContext(ctx, queryGetPendingWithdrawalAmounts, walletId)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query pending withdrawals: %w", err)
	}
	defer closeRows(rows)

	total := decimal.Zero
	for rows.Next() {
		var amountStr string
		if err := rows.Scan(&amountStr); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan pending withdrawal: %w", err)
		}
		amount, err := parseDecimal("amount", amountStr)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(amount)
	}
	return total, rows.Err()
}

// SubmitWithdrawal records a pending debit. The amount must fit in the cash
// balance minus what is already pending; the balance itself is untouched
// until approval.
func (s *Service) SubmitWithdrawal(ctx context.Context, params store.SubmitWithdrawalParams) (*models.WalletTransaction, error) {
	zap.L().Info("Submitting withdrawal",
		zap.String("wallet_id", params.WalletId),
		zap.String("amount", params.Amount.String()),
		zap.String("destination", params.Destination))

	if !params.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: withdrawal amount must be greater than zero", store.ErrValidation)
	}
	if params.Destination == "" {
		return nil, fmt.Errorf("%w: destination is required", store.ErrValidation)
	}
	if _, err := s.GetWallet(ctx, params.WalletId); err != nil {
		return nil, err
	}
	if params.AssetId != "" {
		if _, err := s.GetAsset(ctx, params.AssetId); err != nil {
			return nil, err
		}
	}

	var transaction *models.WalletTransaction
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		wallet, err := getWallet(ctx, tx, queryGetWallet, params.WalletId)
		if err != nil {
			return err
		}
		pending, err := pendingWithdrawals(ctx, tx, params.WalletId)
		if err != nil {
			return err
		}
		available := wallet.CashBalance.Sub(pending)
		if params.Amount.GreaterThan(available) {
			return fmt.Errorf("%w: available=%s, requested=%s", store.ErrInsufficientBalance, available.String(), params.Amount.String())
		}

		transaction = &models.WalletTransaction{
			Id:         uuid.New().String(),
			WalletId:   params.WalletId,
			AssetId:    params.AssetId,
			Type:       models.TransactionTypeWithdrawal,
			Status:     models.TransactionStatusPending,
			Direction:  models.DirectionDebit,
			Account:    models.BalanceAccountCash,
			Amount:     params.Amount,
			Network:    params.Network,
			Notes:      params.Notes,
			Metadata:   models.TransactionMetadata{Destination: params.Destination},
			OccurredAt: s.now(),
		}
		return insertTransaction(ctx, tx, transaction)
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Withdrawal submitted", zap.String("transaction_id", transaction.Id))
	return transaction, nil
}

func (s *Service) actionableWithdrawal(ctx context.Context, transactionId string) error {
	t, err := s.GetWalletTransaction(ctx, transactionId)
	if err != nil {
		return err
	}
	if t.Type != models.TransactionTypeWithdrawal {
		return fmt.Errorf("%w: transaction %s is a %s, not a withdrawal", store.ErrValidation, transactionId, t.Type)
	}
	if t.Status.Terminal() {
		return fmt.Errorf("%w: withdrawal %s is %s", store.ErrAlreadyFinalized, transactionId, t.Status)
	}
	return nil
}

// ApproveWithdrawal debits the live cash balance and marks the row approved.
// Sufficiency is checked again under the lock, so two pending withdrawals
// that together exceed the balance cannot both be approved.
func (s *Service) ApproveWithdrawal(ctx context.Context, transactionId, actor string) (*models.WalletTransaction, error) {
	zap.L().Info("Approving withdrawal", zap.String("transaction_id", transactionId), zap.String("actor", actor))

	if err := s.actionableWithdrawal(ctx, transactionId); err != nil {
		return nil, err
	}

	var approved *models.WalletTransaction
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		// Lock order: transaction row, then wallet.
		t, err := getTransaction(ctx, tx, transactionId)
		if err != nil {
			return err
		}
		if t.Status.Terminal() {
			return nil
		}
		wallet, err := getWallet(ctx, tx, queryGetWallet, t.WalletId)
		if err != nil {
			return err
		}

		now := s.now()
		before, after, err := s.ledger.mutateBalance(ctx, tx, wallet, models.BalanceAccountCash, models.DirectionDebit, t.Amount, now)
		if err != nil {
			return err
		}

		t.Status = models.TransactionStatusApproved
		t.BalanceBefore = before
		t.BalanceAfter = after
		t.Metadata.Actor = actor
		t.ProcessedAt = now
		if err := finalizeTransaction(ctx, tx, t); err != nil {
			return err
		}
		if err := s.ledger.addJournalEntries(ctx, tx, t, now); err != nil {
			return fmt.Errorf("failed to add journal entries: %w", err)
		}
		approved = t
		return nil
	})
	if err != nil {
		zap.L().Error("Withdrawal approval failed", zap.String("transaction_id", transactionId), zap.Error(err))
		return nil, err
	}

	if approved != nil {
		zap.L().Info("Withdrawal approved",
			zap.String("transaction_id", transactionId),
			zap.String("new_balance", approved.BalanceAfter.String()))
	}
	return approved, nil
}

// RejectWithdrawal finalizes a pending withdrawal without touching the wallet
func (s *Service) RejectWithdrawal(ctx context.Context, transactionId, actor, reason string) error {
	zap.L().Info("Rejecting withdrawal",
		zap.String("transaction_id", transactionId),
		zap.String("actor", actor),
		zap.String("reason", reason))

	if err := s.actionableWithdrawal(ctx, transactionId); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		t, err := getTransaction(ctx, tx, transactionId)
		if err != nil {
			return err
		}
		if t.Status.Terminal() {
			return nil
		}
		t.Status = models.TransactionStatusRejected
		t.Metadata.Actor = actor
		t.Metadata.Reason = reason
		t.ProcessedAt = s.now()
		return finalizeTransaction(ctx, tx, t)
	})
}

// DeleteWithdrawal removes a withdrawal that is still pending
func (s *Service) DeleteWithdrawal(ctx context.Context, transactionId string) error {
	zap.L().Info("Deleting withdrawal", zap.String("transaction_id", transactionId))

	return s.withTx(ctx, func(tx *sql.Tx) error {
		t, err := getTransaction(ctx, tx, transactionId)
		if err != nil {
			return err
		}
		if t.Type != models.TransactionTypeWithdrawal {
			return fmt.Errorf("%w: transaction %s is not a withdrawal", store.ErrValidation, transactionId)
		}
		if t.Status != models.TransactionStatusPending {
			return fmt.Errorf("%w: withdrawal %s is %s", store.ErrDeleteForbidden, transactionId, t.Status)
		}
		if _, err := tx.ExecContext(ctx, queryDeletePendingTransaction, transactionId); err != nil {
			return fmt.Errorf("unable to delete withdrawal: %w", err)
		}
		return nil
	})
}

func finalizeTransaction(ctx context.Context, tx *sql.Tx, t *models.WalletTransaction) error {
	metadata, err := t.Metadata.Encode()
	if err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, queryFinalizeTransaction,
		string(t.Status), t.BalanceBefore.String(), t.BalanceAfter.String(), metadata, formatTime(t.ProcessedAt), t.Id)
	if err != nil {
		return fmt.Errorf("unable to finalize transaction: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil || n != 1 {
		return fmt.Errorf("transaction %s changed during finalization - %w", t.Id, store.ErrConcurrentModification)
	}
	return nil
}
