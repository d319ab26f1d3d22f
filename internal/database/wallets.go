package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"copy-trade-ledger-go/internal/models"
	"copy-trade-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetWallet returns a wallet by id (O(1) lookup)
func (s *Service) GetWallet(ctx context.Context, walletId string) (*models.Wallet, error) {
	zap.L().Debug("Getting wallet", zap.String("wallet_id", walletId))
	return getWallet(ctx, s.db, queryGetWallet, walletId)
}

// GetWalletByUser returns the single wallet owned by a user
func (s *Service) GetWalletByUser(ctx context.Context, userId string) (*models.Wallet, error) {
	zap.L().Debug("Getting wallet for user", zap.String("user_id", userId))
	return getWallet(ctx, s.db, queryGetWalletByUser, userId)
}

func getWallet(ctx context.Context, q queryer, query, key string) (*models.Wallet, error) {
	var wallet models.Wallet
	var cash, investing, pnl, updatedAt string
	err := q.QueryRowContext(ctx, query, key).Scan(&wallet.Id, &wallet.UserId, &cash, &investing, &pnl,
		&wallet.Currency, &wallet.Version, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: wallet %s", store.ErrNotFound, key)
		}
		zap.L().Error("Failed to get wallet", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	if wallet.CashBalance, err = parseDecimal("cash_balance", cash); err != nil {
		return nil, err
	}
	if wallet.InvestingBalance, err = parseDecimal("investing_balance", investing); err != nil {
		return nil, err
	}
	if wallet.ProfitLoss, err = parseDecimal("profit_loss", pnl); err != nil {
		return nil, err
	}
	if wallet.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &wallet, nil
}

// ReconcileWallet verifies that each stored balance matches the sum of its approved transactions
func (s *Service) ReconcileWallet(ctx context.Context, walletId string) error {
	zap.L().Info("Reconciling wallet", zap.String("wallet_id", walletId))

	wallet, err := s.GetWallet(ctx, walletId)
	if err != nil {
		return fmt.Errorf("failed to get current wallet: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, queryGetApprovedTransactions, walletId)
	if err != nil {
		return fmt.Errorf("failed to calculate balance from transactions: %w", err)
	}
	defer closeRows(rows)

	calculated := map[models.BalanceAccount]decimal.Decimal{}
	for rows.Next() {
		var account, direction, amountStr string
		if err := rows.Scan(&account, &direction, &amountStr); err != nil {
			return fmt.Errorf("failed to scan transaction: %w", err)
		}
		amount, err := parseDecimal("amount", amountStr)
		if err != nil {
			return err
		}
		acct := models.BalanceAccount(account)
		calculated[acct] = calculated[acct].Add(models.Direction(direction).Signed(amount))
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating transaction rows: %w", err)
	}

	for _, account := range []models.BalanceAccount{models.BalanceAccountCash, models.BalanceAccountInvesting, models.BalanceAccountProfit} {
		current := wallet.Balance(account)
		expected := calculated[account]
		// Check if balances match (exact decimal comparison)
		if !current.Equal(expected) {
			zap.L().Error("Wallet reconciliation failed",
				zap.String("wallet_id", walletId),
				zap.String("account", string(account)),
				zap.String("current_balance", current.String()),
				zap.String("calculated_balance", expected.String()),
				zap.String("difference", current.Sub(expected).String()))
			return fmt.Errorf("%s balance mismatch: current=%s, calculated=%s", account, current.String(), expected.String())
		}
	}

	zap.L().Info("Wallet reconciliation successful",
		zap.String("wallet_id", walletId),
		zap.String("cash_balance", wallet.CashBalance.String()))
	return nil
}
