package database

import (
	"context"
	"sync"
	"testing"

	"copy-trade-ledger-go/internal/models"
	"copy-trade-ledger-go/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDepositLifecycle(t *testing.T) {
	s := setupTestService(t)
	wallet := createWallet(t, s)
	asset := createAsset(t, s)
	ctx := context.Background()

	_, err := s.StoreDepositAddress(ctx, asset.Id, "tron", "TXyz123")
	require.NoError(t, err)

	request, err := s.CreateDepositRequest(ctx, store.CreateDepositParams{
		WalletId: wallet.Id,
		Amount:   dec("250"),
		Currency: "USD",
	})
	require.NoError(t, err)
	assert.Equal(t, models.DepositStatusInput, request.Status)

	request, err = s.SelectDepositNetwork(ctx, request.Id, asset.Id, "tron")
	require.NoError(t, err)
	assert.Equal(t, models.DepositStatusPayment, request.Status)
	assert.Equal(t, "TXyz123", request.DepositAddress)

	request, err = s.SubmitDepositProof(ctx, store.DepositProofParams{
		RequestId:       request.Id,
		TransactionHash: "0xfeed",
		ProofPath:       "proofs/a.png",
		AutoApprove:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.DepositStatusProcessing, request.Status, "auto approve must be ignored")
	assert.NotNil(t, request.SubmittedAt)
	assert.True(t, cashBalance(t, s, wallet.Id).IsZero())

	transaction, err := s.ApproveDeposit(ctx, request.Id, "admin-1")
	require.NoError(t, err)
	require.NotNil(t, transaction)
	assert.Equal(t, models.TransactionTypeDeposit, transaction.Type)
	assert.Equal(t, request.Id, transaction.Metadata.DepositRequestId)
	assert.Equal(t, "0xfeed", transaction.Metadata.TransactionHash)
	assert.Equal(t, "admin-1", transaction.Metadata.Actor)
	assert.True(t, cashBalance(t, s, wallet.Id).Equal(dec("250")))

	approved, err := s.GetDepositRequest(ctx, request.Id)
	require.NoError(t, err)
	assert.Equal(t, models.DepositStatusApproved, approved.Status)
	assert.Equal(t, transaction.Id, approved.WalletTransactionId)
	assert.NotNil(t, approved.ProcessedAt)
}

func TestApproveDeposit_TerminalImmutability(t *testing.T) {
	s := setupTestService(t)
	wallet := createWallet(t, s)
	request := processingDeposit(t, s, wallet.Id, "100")
	ctx := context.Background()

	_, err := s.ApproveDeposit(ctx, request.Id, "admin")
	require.NoError(t, err)

	_, err = s.ApproveDeposit(ctx, request.Id, "admin")
	require.ErrorIs(t, err, store.ErrAlreadyFinalized)

	err = s.RejectDeposit(ctx, request.Id, "admin", "changed my mind")
	require.ErrorIs(t, err, store.ErrAlreadyFinalized)

	_, err = s.DeleteDepositRequest(ctx, request.Id)
	require.ErrorIs(t, err, store.ErrDeleteForbidden)

	assert.True(t, cashBalance(t, s, wallet.Id).Equal(dec("100")))
	after, err := s.GetDepositRequest(ctx, request.Id)
	require.NoError(t, err)
	assert.Equal(t, models.DepositStatusApproved, after.Status)
}

func TestApproveDeposit_RejectedCannotBeApproved(t *testing.T) {
	s := setupTestService(t)
	wallet := createWallet(t, s)
	request := processingDeposit(t, s, wallet.Id, "100")
	ctx := context.Background()

	require.NoError(t, s.RejectDeposit(ctx, request.Id, "admin", "blurry proof"))

	_, err := s.ApproveDeposit(ctx, request.Id, "admin")
	require.ErrorIs(t, err, store.ErrAlreadyFinalized)
	assert.True(t, store.IsStateConflict(err))
	assert.True(t, cashBalance(t, s, wallet.Id).IsZero())
}

func TestApproveDeposit_RequiresProcessing(t *testing.T) {
	s := setupTestService(t)
	wallet := createWallet(t, s)
	ctx := context.Background()

	request, err := s.CreateDepositRequest(ctx, store.CreateDepositParams{WalletId: wallet.Id, Amount: dec("5"), Currency: "USD"})
	require.NoError(t, err)

	_, err = s.ApproveDeposit(ctx, request.Id, "admin")
	require.ErrorIs(t, err, store.ErrInvalidTransition)

	// Reject is allowed from any non-terminal state
	require.NoError(t, s.RejectDeposit(ctx, request.Id, "admin", "abandoned"))
}

func TestApproveDeposit_ConcurrentApprovalsCreditOnce(t *testing.T) {
	s := setupTestService(t)
	wallet := createWallet(t, s)
	request := processingDeposit(t, s, wallet.Id, "75.50")

	const approvers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	credited := 0
	for i := 0; i < approvers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			transaction, err := s.ApproveDeposit(context.Background(), request.Id, "admin")
			if err != nil {
				assert.ErrorIs(t, err, store.ErrAlreadyFinalized)
				return
			}
			if transaction != nil {
				mu.Lock()
				credited++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, credited)
	assert.True(t, cashBalance(t, s, wallet.Id).Equal(dec("75.50")))

	var deposits int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM wallet_transactions WHERE wallet_id = ? AND type = 'deposit' AND status = 'approved'`,
		wallet.Id).Scan(&deposits)
	require.NoError(t, err)
	assert.Equal(t, 1, deposits)
	require.NoError(t, s.ReconcileWallet(context.Background(), wallet.Id))
}

func TestSubmitDepositProof_Transitions(t *testing.T) {
	s := setupTestService(t)
	wallet := createWallet(t, s)
	request := processingDeposit(t, s, wallet.Id, "10")

	_, err := s.SubmitDepositProof(context.Background(), store.DepositProofParams{
		RequestId:       request.Id,
		TransactionHash: "0xagain",
	})
	require.ErrorIs(t, err, store.ErrInvalidTransition)

	_, err = s.SubmitDepositProof(context.Background(), store.DepositProofParams{RequestId: request.Id})
	require.ErrorIs(t, err, store.ErrValidation)
}

func TestSelectDepositNetwork_UnknownAddress(t *testing.T) {
	s := setupTestService(t)
	wallet := createWallet(t, s)
	asset := createAsset(t, s)
	ctx := context.Background()

	request, err := s.CreateDepositRequest(ctx, store.CreateDepositParams{WalletId: wallet.Id, Amount: dec("5"), Currency: "USD"})
	require.NoError(t, err)

	_, err = s.SelectDepositNetwork(ctx, request.Id, asset.Id, "ethereum")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateDepositRequest_Validation(t *testing.T) {
	s := setupTestService(t)
	wallet := createWallet(t, s)
	ctx := context.Background()

	_, err := s.CreateDepositRequest(ctx, store.CreateDepositParams{WalletId: wallet.Id, Amount: dec("0"), Currency: "USD"})
	assert.ErrorIs(t, err, store.ErrValidation)

	_, err = s.CreateDepositRequest(ctx, store.CreateDepositParams{WalletId: "nope", Amount: dec("1"), Currency: "USD"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.CreateDepositRequest(ctx, store.CreateDepositParams{WalletId: wallet.Id, AssetId: "nope", Amount: dec("1"), Currency: "USD"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteDepositRequest(t *testing.T) {
	s := setupTestService(t)
	wallet := createWallet(t, s)
	request := processingDeposit(t, s, wallet.Id, "10")
	ctx := context.Background()

	deleted, err := s.DeleteDepositRequest(ctx, request.Id)
	require.NoError(t, err)
	assert.Equal(t, request.ProofPath, deleted.ProofPath)

	_, err = s.GetDepositRequest(ctx, request.Id)
	require.ErrorIs(t, err, store.ErrNotFound)
}
