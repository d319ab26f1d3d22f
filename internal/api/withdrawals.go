package api

import (
	"context"
	"time"

	"copy-trade-ledger-go/internal/models"
	"copy-trade-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

// SubmitWithdrawal records a pending withdrawal request for the user's wallet
func (s *LedgerService) SubmitWithdrawal(ctx context.Context, userId, assetId string, amount decimal.Decimal, network, destination string) *models.LedgerResult {
	started := time.Now()
	settings := s.settings.Settings()

	tx, err := func() (*models.WalletTransaction, error) {
		if !settings.WithdrawsEnabled {
			return nil, invalid("withdrawals are currently disabled")
		}
		if amount.LessThan(settings.MinWithdrawal) {
			return nil, invalid("minimum withdrawal is %s %s", settings.MinWithdrawal.String(), settings.Currency)
		}
		if destination == "" {
			return nil, invalid("destination is required")
		}
		wallet, err := s.db.GetWalletByUser(ctx, userId)
		if err != nil {
			return nil, err
		}
		return s.db.SubmitWithdrawal(ctx, store.SubmitWithdrawalParams{
			WalletId:    wallet.Id,
			AssetId:     assetId,
			Amount:      amount,
			Network:     network,
			Destination: destination,
		})
	}()
	return &models.LedgerResult{Outcome: s.finish("submit_withdrawal", started, err), Transaction: tx}
}

// ApproveWithdrawal debits the wallet for a pending withdrawal
func (s *LedgerService) ApproveWithdrawal(ctx context.Context, transactionId string) *models.LedgerResult {
	started := time.Now()
	tx, err := s.db.ApproveWithdrawal(ctx, transactionId, models.ActorFrom(ctx))
	result := &models.LedgerResult{Outcome: s.finish("approve_withdrawal", started, err)}
	if err != nil {
		return result
	}
	if tx == nil {
		result.Message = "withdrawal was already finalized"
		return result
	}
	s.mirrorTransaction(ctx, tx)

	result.Transaction = tx
	result.NewBalance = tx.BalanceAfter
	return result
}

func (s *LedgerService) RejectWithdrawal(ctx context.Context, transactionId, reason string) models.Outcome {
	started := time.Now()
	err := s.db.RejectWithdrawal(ctx, transactionId, models.ActorFrom(ctx), reason)
	return s.finish("reject_withdrawal", started, err)
}

func (s *LedgerService) DeleteWithdrawal(ctx context.Context, transactionId string) models.Outcome {
	started := time.Now()
	err := s.db.DeleteWithdrawal(ctx, transactionId)
	return s.finish("delete_withdrawal", started, err)
}
