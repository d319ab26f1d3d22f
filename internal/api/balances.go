package api

import (
	"context"
	"fmt"
	"time"

	"copy-trade-ledger-go/internal/models"
	"copy-trade-ledger-go/internal/store"

	"go.uber.org/zap"
)

// ApplyLedgerEvent posts a single financial event to a wallet
func (s *LedgerService) ApplyLedgerEvent(ctx context.Context, event store.LedgerEvent) *models.LedgerResult {
	started := time.Now()
	zap.L().Info("Applying ledger event",
		zap.String("wallet_id", event.WalletId),
		zap.String("type", string(event.Type)),
		zap.String("direction", string(event.Direction)),
		zap.String("amount", event.Amount.String()))

	if event.Metadata.Actor == "" {
		event.Metadata.Actor = models.ActorFrom(ctx)
	}

	tx, err := s.db.ApplyLedgerEvent(ctx, event)
	result := &models.LedgerResult{Outcome: s.finish("apply_ledger_event", started, err)}
	if err != nil {
		return result
	}
	s.mirrorTransaction(ctx, tx)

	result.Transaction = tx
	result.NewBalance = tx.BalanceAfter
	return result
}

// GetWalletBalance returns the balances of a user's wallet
func (s *LedgerService) GetWalletBalance(ctx context.Context, userId string) (*models.WalletBalance, error) {
	if userId == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	wallet, err := s.db.GetWalletByUser(ctx, userId)
	if err != nil {
		zap.L().Error("Failed to get wallet", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve wallet: %w", err)
	}

	return &models.WalletBalance{
		WalletId:         wallet.Id,
		Currency:         wallet.Currency,
		CashBalance:      wallet.CashBalance,
		InvestingBalance: wallet.InvestingBalance,
		ProfitLoss:       wallet.ProfitLoss,
	}, nil
}

// GetTransactionHistory returns paginated transaction history for a user's wallet
func (s *LedgerService) GetTransactionHistory(ctx context.Context, userId string, limit, offset int) ([]models.TransactionRecord, error) {
	if userId == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	wallet, err := s.db.GetWalletByUser(ctx, userId)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve wallet: %w", err)
	}

	transactions, err := s.db.GetTransactionHistory(ctx, wallet.Id, limit, offset)
	if err != nil {
		zap.L().Error("Failed to get transaction history",
			zap.String("user_id", userId),
			zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve transaction history")
	}

	result := make([]models.TransactionRecord, len(transactions))
	for i, tx := range transactions {
		result[i] = models.TransactionRecord{
			Id:          tx.Id,
			Type:        string(tx.Type),
			Direction:   string(tx.Direction),
			Status:      string(tx.Status),
			Amount:      tx.Amount,
			Network:     tx.Network,
			OccurredAt:  tx.OccurredAt,
			ProcessedAt: tx.ProcessedAt,
		}
	}

	return result, nil
}

// ReconcileWallet verifies a user's balances against their approved transactions
func (s *LedgerService) ReconcileWallet(ctx context.Context, userId string) models.Outcome {
	started := time.Now()
	wallet, err := s.db.GetWalletByUser(ctx, userId)
	if err == nil {
		err = s.db.ReconcileWallet(ctx, wallet.Id)
	}
	return s.finish("reconcile_wallet", started, err)
}
