package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"copy-trade-ledger-go/internal/models"
	"copy-trade-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// setupTestService opens a file-backed database so concurrent tests get
// several connections onto the same store.
func setupTestService(t *testing.T) *Service {
	t.Helper()

	service, err := NewService(context.Background(), models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "ledger.db"),
		MaxOpenConns: 8,
		MaxIdleConns: 4,
		PingTimeout:  5 * time.Second,
		BusyTimeout:  10 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(service.Close)
	return service
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// createWallet creates a user and returns its wallet
func createWallet(t *testing.T, s *Service) *models.Wallet {
	t.Helper()
	ctx := context.Background()

	userId := uuid.New().String()
	_, err := s.CreateUser(ctx, userId, "Test User", userId+"@example.com", "USD")
	require.NoError(t, err)

	wallet, err := s.GetWalletByUser(ctx, userId)
	require.NoError(t, err)
	return wallet
}

// fund credits cash through the ledger
func fund(t *testing.T, s *Service, walletId string, amount string) {
	t.Helper()
	_, err := s.ApplyLedgerEvent(context.Background(), store.LedgerEvent{
		WalletId:  walletId,
		Type:      models.TransactionTypeDeposit,
		Direction: models.DirectionCredit,
		Amount:    dec(amount),
	})
	require.NoError(t, err)
}

func cashBalance(t *testing.T, s *Service, walletId string) decimal.Decimal {
	t.Helper()
	wallet, err := s.GetWallet(context.Background(), walletId)
	require.NoError(t, err)
	return wallet.CashBalance
}

func createAsset(t *testing.T, s *Service) *models.Asset {
	t.Helper()
	asset, err := s.UpsertAsset(context.Background(), "USDT", "tron", "Tether USD")
	require.NoError(t, err)
	return asset
}

// processingDeposit returns a deposit request that is ready for review
func processingDeposit(t *testing.T, s *Service, walletId, amount string) *models.DepositRequest {
	t.Helper()
	ctx := context.Background()

	request, err := s.CreateDepositRequest(ctx, store.CreateDepositParams{
		WalletId: walletId,
		Amount:   dec(amount),
		Currency: "USD",
	})
	require.NoError(t, err)

	request, err = s.SubmitDepositProof(ctx, store.DepositProofParams{
		RequestId:       request.Id,
		TransactionHash: "0x" + uuid.New().String(),
		ProofPath:       "proofs/" + request.Id + ".png",
	})
	require.NoError(t, err)
	require.Equal(t, models.DepositStatusProcessing, request.Status)
	return request
}
