package api

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"copy-trade-ledger-go/internal/compactor"
	"copy-trade-ledger-go/internal/database"
	"copy-trade-ledger-go/internal/metrics"
	"copy-trade-ledger-go/internal/models"
	"copy-trade-ledger-go/internal/proofs"
	"copy-trade-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMirror struct {
	mu       sync.Mutex
	recorded []models.WalletTransaction
	currency []string
	err      error
}

func (m *recordingMirror) RecordWalletTransaction(_ context.Context, tx models.WalletTransaction, currency string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.recorded = append(m.recorded, tx)
	m.currency = append(m.currency, currency)
	return nil
}

func (m *recordingMirror) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recorded)
}

type settingsStub struct {
	settings models.PlatformSettings
}

func (s *settingsStub) Settings() models.PlatformSettings { return s.settings }

type harness struct {
	db       *database.Service
	svc      *LedgerService
	mirror   *recordingMirror
	metrics  *metrics.LedgerMetrics
	settings *settingsStub
	proofDir string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	db, err := database.NewService(ctx, models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "ledger.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 2,
		PingTimeout:  5 * time.Second,
		BusyTimeout:  10 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	proofDir := filepath.Join(t.TempDir(), "proofs")
	proofStore, err := proofs.NewStore(proofDir)
	require.NoError(t, err)

	c, err := compactor.New(db, models.CompactionConfig{
		FineDays:         1,
		MidDays:          7,
		CoarseDays:       30,
		MidBucketMinutes: 5,
		Concurrency:      2,
	})
	require.NoError(t, err)

	h := &harness{
		db:       db,
		mirror:   &recordingMirror{},
		metrics:  metrics.New("ledger"),
		settings: &settingsStub{settings: models.PlatformSettings{
			Currency:         "USD",
			MinDeposit:       decimal.NewFromInt(10),
			MinWithdrawal:    decimal.NewFromInt(10),
			DepositsEnabled:  true,
			WithdrawsEnabled: true,
		}},
		proofDir: proofDir,
	}
	h.svc = NewLedgerService(db, h.settings,
		WithMirror(h.mirror),
		WithMetrics(h.metrics),
		WithProofStore(proofStore),
		WithCompactor(c))
	return h
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (h *harness) user(t *testing.T) *models.Wallet {
	t.Helper()
	ctx := context.Background()
	userId := uuid.New().String()
	_, err := h.db.CreateUser(ctx, userId, "Test User", userId+"@example.com", "USD")
	require.NoError(t, err)
	wallet, err := h.db.GetWalletByUser(ctx, userId)
	require.NoError(t, err)
	return wallet
}

func (h *harness) fund(t *testing.T, walletId, amount string) {
	t.Helper()
	result := h.svc.ApplyLedgerEvent(context.Background(), store.LedgerEvent{
		WalletId:  walletId,
		Type:      models.TransactionTypeDeposit,
		Direction: models.DirectionCredit,
		Amount:    dec(amount),
	})
	require.True(t, result.Success, result.Message)
}

func (h *harness) cash(t *testing.T, userId string) decimal.Decimal {
	t.Helper()
	balance, err := h.svc.GetWalletBalance(context.Background(), userId)
	require.NoError(t, err)
	return balance.CashBalance
}

func TestApplyLedgerEvent_Outcomes(t *testing.T) {
	h := newHarness(t)
	wallet := h.user(t)
	ctx := models.WithActor(context.Background(), "admin-7")

	result := h.svc.ApplyLedgerEvent(ctx, store.LedgerEvent{
		WalletId:  wallet.Id,
		Type:      models.TransactionTypeDeposit,
		Direction: models.DirectionCredit,
		Amount:    dec("100"),
	})
	require.True(t, result.Success)
	assert.Equal(t, models.OutcomeOK, result.Code)
	assert.True(t, result.NewBalance.Equal(dec("100")))
	assert.Equal(t, "admin-7", result.Transaction.Metadata.Actor)

	require.Equal(t, 1, h.mirror.count())
	assert.Equal(t, "USD", h.mirror.currency[0])

	tests := []struct {
		name  string
		event store.LedgerEvent
		code  models.OutcomeCode
	}{
		{
			name:  "overdraft",
			event: store.LedgerEvent{WalletId: wallet.Id, Type: models.TransactionTypeWithdrawal, Direction: models.DirectionDebit, Amount: dec("500")},
			code:  models.OutcomeStateConflict,
		},
		{
			name:  "zero amount",
			event: store.LedgerEvent{WalletId: wallet.Id, Type: models.TransactionTypeDeposit, Direction: models.DirectionCredit, Amount: decimal.Zero},
			code:  models.OutcomeValidation,
		},
		{
			name:  "unknown wallet",
			event: store.LedgerEvent{WalletId: "missing", Type: models.TransactionTypeDeposit, Direction: models.DirectionCredit, Amount: dec("1")},
			code:  models.OutcomeValidation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := h.svc.ApplyLedgerEvent(ctx, tt.event)
			assert.False(t, result.Success)
			assert.Equal(t, tt.code, result.Code)
			assert.NotEmpty(t, result.Message)
		})
	}

	assert.True(t, h.cash(t, wallet.UserId).Equal(dec("100")))
	assert.Equal(t, 1, h.mirror.count())
	assert.True(t, h.svc.ReconcileWallet(ctx, wallet.UserId).Success)
}

func TestApplyLedgerEvent_MirrorFailureKeepsCommit(t *testing.T) {
	h := newHarness(t)
	wallet := h.user(t)
	h.mirror.err = errors.New("stack unreachable")

	h.fund(t, wallet.Id, "75")
	assert.True(t, h.cash(t, wallet.UserId).Equal(dec("75")))

	rec := httptest.NewRecorder()
	h.metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "ledger_mirror_failures_total 1")
}

func TestDepositFlow(t *testing.T) {
	h := newHarness(t)
	wallet := h.user(t)
	admin := models.WithActor(context.Background(), "admin-1")
	ctx := context.Background()

	created := h.svc.CreateDepositRequest(ctx, wallet.UserId, "", dec("200"), "")
	require.True(t, created.Success, created.Message)
	assert.Equal(t, models.DepositStatusInput, created.Request.Status)
	assert.Equal(t, "USD", created.Request.Currency)

	submitted := h.svc.SubmitDepositProof(ctx, created.Request.Id, "0xabc", ".png", strings.NewReader("receipt"), true)
	require.True(t, submitted.Success, submitted.Message)
	assert.Equal(t, models.DepositStatusProcessing, submitted.Request.Status)
	require.NotEmpty(t, submitted.Request.ProofPath)
	_, err := os.Stat(submitted.Request.ProofPath)
	require.NoError(t, err)

	approved := h.svc.ApproveDeposit(admin, created.Request.Id)
	require.True(t, approved.Success, approved.Message)
	assert.True(t, approved.NewBalance.Equal(dec("200")))
	assert.Equal(t, "admin-1", approved.Transaction.Metadata.Actor)
	assert.Equal(t, created.Request.Id, approved.Transaction.Metadata.DepositRequestId)

	again := h.svc.ApproveDeposit(admin, created.Request.Id)
	assert.False(t, again.Success)
	assert.Equal(t, models.OutcomeStateConflict, again.Code)

	rejected := h.svc.RejectDeposit(admin, created.Request.Id, "late")
	assert.Equal(t, models.OutcomeStateConflict, rejected.Code)

	deleted := h.svc.DeleteDepositRequest(ctx, created.Request.Id)
	assert.Equal(t, models.OutcomeStateConflict, deleted.Code)

	assert.True(t, h.cash(t, wallet.UserId).Equal(dec("200")))
	assert.Equal(t, 1, h.mirror.count())
}

func TestDepositSettingsAreReadPerCall(t *testing.T) {
	h := newHarness(t)
	wallet := h.user(t)
	ctx := context.Background()

	result := h.svc.CreateDepositRequest(ctx, wallet.UserId, "", dec("5"), "")
	assert.Equal(t, models.OutcomeValidation, result.Code)

	h.settings.settings.DepositsEnabled = false
	result = h.svc.CreateDepositRequest(ctx, wallet.UserId, "", dec("50"), "")
	assert.Equal(t, models.OutcomeValidation, result.Code)

	h.settings.settings.DepositsEnabled = true
	result = h.svc.CreateDepositRequest(ctx, wallet.UserId, "", dec("50"), "")
	assert.True(t, result.Success)
}

func TestDeleteDepositRequest_RemovesProof(t *testing.T) {
	h := newHarness(t)
	wallet := h.user(t)
	ctx := context.Background()

	created := h.svc.CreateDepositRequest(ctx, wallet.UserId, "", dec("20"), "")
	require.True(t, created.Success)
	submitted := h.svc.SubmitDepositProof(ctx, created.Request.Id, "0xdef", "jpg", strings.NewReader("img"), false)
	require.True(t, submitted.Success)

	require.True(t, h.svc.RejectDeposit(ctx, created.Request.Id, "blurry").Success)
	require.True(t, h.svc.DeleteDepositRequest(ctx, created.Request.Id).Success)

	_, err := os.Stat(submitted.Request.ProofPath)
	assert.True(t, os.IsNotExist(err))
}

func TestSubmitDepositProof_UnknownRequestStoresNothing(t *testing.T) {
	h := newHarness(t)
	result := h.svc.SubmitDepositProof(context.Background(), "missing", "0x1", ".png", strings.NewReader("x"), false)
	assert.Equal(t, models.OutcomeValidation, result.Code)

	entries, err := os.ReadDir(h.proofDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSubmitDepositProof_ResubmitKeepsStoredProof(t *testing.T) {
	h := newHarness(t)
	wallet := h.user(t)
	ctx := context.Background()
	admin := models.WithActor(ctx, "admin-1")

	created := h.svc.CreateDepositRequest(ctx, wallet.UserId, "", dec("40"), "")
	require.True(t, created.Success, created.Message)
	submitted := h.svc.SubmitDepositProof(ctx, created.Request.Id, "0xaaa", ".png", strings.NewReader("original"), false)
	require.True(t, submitted.Success, submitted.Message)
	stored := submitted.Request.ProofPath

	assertProofIntact := func(t *testing.T) {
		t.Helper()
		data, err := os.ReadFile(stored)
		require.NoError(t, err)
		assert.Equal(t, "original", string(data))

		entries, err := os.ReadDir(h.proofDir)
		require.NoError(t, err)
		assert.Len(t, entries, 1)

		request, err := h.db.GetDepositRequest(ctx, created.Request.Id)
		require.NoError(t, err)
		assert.Equal(t, stored, request.ProofPath)
		assert.Equal(t, "0xaaa", request.TransactionHash)
	}

	// Under review
	again := h.svc.SubmitDepositProof(ctx, created.Request.Id, "0xbbb", ".png", strings.NewReader("replacement"), false)
	assert.Equal(t, models.OutcomeStateConflict, again.Code)
	assertProofIntact(t)

	// Approved
	approved := h.svc.ApproveDeposit(admin, created.Request.Id)
	require.True(t, approved.Success, approved.Message)
	again = h.svc.SubmitDepositProof(ctx, created.Request.Id, "0xccc", ".png", strings.NewReader("replacement"), false)
	assert.Equal(t, models.OutcomeStateConflict, again.Code)
	assertProofIntact(t)
}

func TestSubmitDepositProof_RequiresImage(t *testing.T) {
	h := newHarness(t)
	wallet := h.user(t)
	ctx := context.Background()

	created := h.svc.CreateDepositRequest(ctx, wallet.UserId, "", dec("40"), "")
	require.True(t, created.Success, created.Message)

	result := h.svc.SubmitDepositProof(ctx, created.Request.Id, "0xaaa", ".png", nil, false)
	assert.Equal(t, models.OutcomeValidation, result.Code)

	request, err := h.db.GetDepositRequest(ctx, created.Request.Id)
	require.NoError(t, err)
	assert.Equal(t, models.DepositStatusInput, request.Status)
}

func TestWithdrawalFlow(t *testing.T) {
	h := newHarness(t)
	wallet := h.user(t)
	h.fund(t, wallet.Id, "100")
	ctx := models.WithActor(context.Background(), "admin-2")

	first := h.svc.SubmitWithdrawal(ctx, wallet.UserId, "", dec("60"), "tron", "TXYZ")
	require.True(t, first.Success, first.Message)
	assert.Equal(t, models.TransactionStatusPending, first.Transaction.Status)

	// Only 40 is still available while the first request is pending
	second := h.svc.SubmitWithdrawal(ctx, wallet.UserId, "", dec("50"), "tron", "TXYZ")
	assert.Equal(t, models.OutcomeStateConflict, second.Code)

	missingDestination := h.svc.SubmitWithdrawal(ctx, wallet.UserId, "", dec("20"), "tron", "")
	assert.Equal(t, models.OutcomeValidation, missingDestination.Code)

	approved := h.svc.ApproveWithdrawal(ctx, first.Transaction.Id)
	require.True(t, approved.Success, approved.Message)
	assert.True(t, approved.NewBalance.Equal(dec("40")))

	assert.Equal(t, models.OutcomeStateConflict, h.svc.RejectWithdrawal(ctx, first.Transaction.Id, "too late").Code)
	assert.Equal(t, models.OutcomeStateConflict, h.svc.DeleteWithdrawal(ctx, first.Transaction.Id).Code)

	// The initial funding plus the approved withdrawal
	assert.Equal(t, 2, h.mirror.count())

	history, err := h.svc.GetTransactionHistory(ctx, wallet.UserId, 0, 0)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestFollowTrader_EndToEnd(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	trader, err := h.db.CreateTrader(ctx, "Leader", dec("50"))
	require.NoError(t, err)

	wallet := h.user(t)
	h.fund(t, wallet.Id, "1000")

	result := h.svc.FollowTrader(ctx, wallet.UserId, trader.Id, dec("500"), dec("0.5"))
	require.True(t, result.Success, result.Message)
	assert.True(t, h.cash(t, wallet.UserId).Equal(dec("950")))

	require.Equal(t, 2, h.mirror.count())
	fee := h.mirror.recorded[1]
	assert.Equal(t, models.TransactionTypeCopyFee, fee.Type)
	assert.True(t, fee.Amount.Equal(dec("50")))

	duplicate := h.svc.FollowTrader(ctx, wallet.UserId, trader.Id, dec("500"), dec("0.5"))
	assert.Equal(t, models.OutcomeStateConflict, duplicate.Code)

	assert.True(t, h.svc.PauseRelationship(ctx, result.Relationship.Id).Success)
	assert.True(t, h.svc.ResumeRelationship(ctx, result.Relationship.Id).Success)
	assert.True(t, h.svc.CloseRelationship(ctx, result.Relationship.Id).Success)
	assert.Equal(t, models.OutcomeStateConflict, h.svc.ResumeRelationship(ctx, result.Relationship.Id).Code)
}

func TestExecuteLeaderTrade(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	trader, err := h.db.CreateTrader(ctx, "Leader", decimal.Zero)
	require.NoError(t, err)
	asset, err := h.db.UpsertAsset(ctx, "BTC", "bitcoin", "Bitcoin")
	require.NoError(t, err)

	trade := store.LeaderTrade{
		TraderId: trader.Id,
		AssetId:  asset.Id,
		Side:     models.TradeSideBuy,
		Quantity: dec("2"),
		Price:    dec("64000"),
	}

	none := h.svc.ExecuteLeaderTrade(ctx, trade)
	assert.False(t, none.Success)
	assert.Equal(t, models.OutcomeStateConflict, none.Code)
	assert.Equal(t, "no active followers", none.Summary)

	wallet := h.user(t)
	followed := h.svc.FollowTrader(ctx, wallet.UserId, trader.Id, dec("100"), dec("0.25"))
	require.True(t, followed.Success, followed.Message)

	result := h.svc.ExecuteLeaderTrade(ctx, trade)
	require.True(t, result.Success, result.Message)
	assert.Equal(t, 1, result.Created)
	assert.Zero(t, result.Skipped)
	assert.Equal(t, "1 copy trade(s) created", result.Summary)

	trades, err := h.db.GetCopyTrades(ctx, followed.Relationship.Id)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.True(t, trades[0].Quantity.Equal(dec("0.5")))

	invalidTrade := trade
	invalidTrade.Quantity = decimal.Zero
	assert.Equal(t, models.OutcomeValidation, h.svc.ExecuteLeaderTrade(ctx, invalidTrade).Code)
}

func TestCompactSnapshots(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(5 * time.Minute).Add(-48 * time.Hour)
	for i := 0; i < 10; i++ {
		outcome := h.svc.RecordSnapshot(ctx, "user-1", dec("100"), dec("50"), base.Add(time.Duration(i)*time.Minute))
		require.True(t, outcome.Success)
	}

	dry := h.svc.CompactSnapshots(ctx, "user-1", true)
	require.True(t, dry.Success, dry.Message)
	assert.True(t, dry.DryRun)
	assert.Equal(t, 8, dry.Removed)

	result := h.svc.CompactSnapshots(ctx, "", false)
	require.True(t, result.Success, result.Message)
	assert.Equal(t, 1, result.Users)
	assert.Equal(t, 8, result.Removed)

	remaining, err := h.db.ListSnapshots(ctx, "user-1", base, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, remaining, 2)

	unconfigured := NewLedgerService(h.db, StaticSettings(h.settings.settings))
	assert.Equal(t, models.OutcomePersistence, unconfigured.CompactSnapshots(ctx, "", true).Code)
}

func TestOutcomeMetrics(t *testing.T) {
	h := newHarness(t)
	h.svc.ApproveDeposit(context.Background(), "missing")

	rec := httptest.NewRecorder()
	h.metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `ledger_operations_total{code="validation",operation="approve_deposit"} 1`)
}
