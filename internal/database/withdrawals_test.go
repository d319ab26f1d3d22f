package database

import (
	"context"
	"testing"

	"copy-trade-ledger-go/internal/models"
	"copy-trade-ledger-go/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submitWithdrawal(t *testing.T, s *Service, walletId, amount string) (*models.WalletTransaction, error) {
	t.Helper()
	return s.SubmitWithdrawal(context.Background(), store.SubmitWithdrawalParams{
		WalletId:    walletId,
		Amount:      dec(amount),
		Network:     "tron",
		Destination: "TDest",
	})
}

func TestWithdrawal_ApproveDebitsCash(t *testing.T) {
	s := setupTestService(t)
	wallet := createWallet(t, s)
	fund(t, s, wallet.Id, "100")
	ctx := context.Background()

	pending, err := submitWithdrawal(t, s, wallet.Id, "40")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, pending.Status)
	assert.Equal(t, "TDest", pending.Metadata.Destination)
	assert.True(t, cashBalance(t, s, wallet.Id).Equal(dec("100")), "submission must not move the balance")

	approved, err := s.ApproveWithdrawal(ctx, pending.Id, "admin-2")
	require.NoError(t, err)
	require.NotNil(t, approved)
	assert.Equal(t, models.TransactionStatusApproved, approved.Status)
	assert.True(t, approved.BalanceBefore.Equal(dec("100")))
	assert.True(t, approved.BalanceAfter.Equal(dec("60")))
	assert.True(t, cashBalance(t, s, wallet.Id).Equal(dec("60")))

	stored, err := s.GetWalletTransaction(ctx, pending.Id)
	require.NoError(t, err)
	assert.Equal(t, "admin-2", stored.Metadata.Actor)
	assert.Equal(t, "TDest", stored.Metadata.Destination)
	require.NoError(t, s.ReconcileWallet(ctx, wallet.Id))

	_, err = s.ApproveWithdrawal(ctx, pending.Id, "admin-2")
	require.ErrorIs(t, err, store.ErrAlreadyFinalized)
	require.ErrorIs(t, s.DeleteWithdrawal(ctx, pending.Id), store.ErrDeleteForbidden)
}

func TestWithdrawal_SubmissionChecksAvailableBalance(t *testing.T) {
	s := setupTestService(t)
	wallet := createWallet(t, s)
	fund(t, s, wallet.Id, "100")

	_, err := submitWithdrawal(t, s, wallet.Id, "60")
	require.NoError(t, err)

	// 100 cash - 60 pending leaves 40 available
	_, err = submitWithdrawal(t, s, wallet.Id, "50")
	require.ErrorIs(t, err, store.ErrInsufficientBalance)

	_, err = submitWithdrawal(t, s, wallet.Id, "40")
	require.NoError(t, err)
}

func TestWithdrawal_ApprovalRechecksLiveBalance(t *testing.T) {
	s := setupTestService(t)
	wallet := createWallet(t, s)
	fund(t, s, wallet.Id, "100")
	ctx := context.Background()

	first, err := submitWithdrawal(t, s, wallet.Id, "80")
	require.NoError(t, err)

	// Cash drops after submission
	_, err = s.ApplyLedgerEvent(ctx, store.LedgerEvent{
		WalletId:  wallet.Id,
		Type:      models.TransactionTypeCopyFee,
		Direction: models.DirectionDebit,
		Amount:    dec("30"),
	})
	require.NoError(t, err)

	_, err = s.ApproveWithdrawal(ctx, first.Id, "admin")
	require.ErrorIs(t, err, store.ErrInsufficientBalance)

	stored, err := s.GetWalletTransaction(ctx, first.Id)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, stored.Status)
	assert.True(t, cashBalance(t, s, wallet.Id).Equal(dec("70")))
}

func TestWithdrawal_Reject(t *testing.T) {
	s := setupTestService(t)
	wallet := createWallet(t, s)
	fund(t, s, wallet.Id, "10")
	ctx := context.Background()

	pending, err := submitWithdrawal(t, s, wallet.Id, "10")
	require.NoError(t, err)

	require.NoError(t, s.RejectWithdrawal(ctx, pending.Id, "admin", "address flagged"))

	stored, err := s.GetWalletTransaction(ctx, pending.Id)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusRejected, stored.Status)
	assert.Equal(t, "address flagged", stored.Metadata.Reason)
	assert.True(t, cashBalance(t, s, wallet.Id).Equal(dec("10")))

	_, err = s.ApproveWithdrawal(ctx, pending.Id, "admin")
	require.ErrorIs(t, err, store.ErrAlreadyFinalized)

	// Rejected withdrawals no longer count against available balance
	_, err = submitWithdrawal(t, s, wallet.Id, "10")
	require.NoError(t, err)
}

func TestWithdrawal_DeleteWhilePending(t *testing.T) {
	s := setupTestService(t)
	wallet := createWallet(t, s)
	fund(t, s, wallet.Id, "10")
	ctx := context.Background()

	pending, err := submitWithdrawal(t, s, wallet.Id, "5")
	require.NoError(t, err)

	require.NoError(t, s.DeleteWithdrawal(ctx, pending.Id))
	_, err = s.GetWalletTransaction(ctx, pending.Id)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestWithdrawal_ApproveRejectsNonWithdrawal(t *testing.T) {
	s := setupTestService(t)
	wallet := createWallet(t, s)
	fund(t, s, wallet.Id, "10")

	history, err := s.GetTransactionHistory(context.Background(), wallet.Id, 1, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)

	_, err = s.ApproveWithdrawal(context.Background(), history[0].Id, "admin")
	require.ErrorIs(t, err, store.ErrValidation)
}
