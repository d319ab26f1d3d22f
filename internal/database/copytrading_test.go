package database

import (
	"context"
	"testing"
	"time"

	"copy-trade-ledger-go/internal/models"
	"copy-trade-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTrader(t *testing.T, s *Service, fee string) *models.Trader {
	t.Helper()
	trader, err := s.CreateTrader(context.Background(), "Leader", dec(fee))
	require.NoError(t, err)
	return trader
}

func follow(t *testing.T, s *Service, traderId, ratio string) (*models.Wallet, *models.CopyRelationship) {
	t.Helper()
	wallet := createWallet(t, s)
	relationship, _, err := s.FollowTrader(context.Background(), store.FollowParams{
		UserId:           wallet.UserId,
		TraderId:         traderId,
		AllocationAmount: dec("100"),
		CopyRatio:        dec(ratio),
	})
	require.NoError(t, err)
	return wallet, relationship
}

func countCopyTrades(t *testing.T, s *Service) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM copy_trades").Scan(&n))
	return n
}

func TestFollowTrader_ChargesCopyFee(t *testing.T) {
	s := setupTestService(t)
	trader := createTrader(t, s, "50")
	wallet := createWallet(t, s)
	fund(t, s, wallet.Id, "1000")
	ctx := context.Background()

	relationship, fee, err := s.FollowTrader(ctx, store.FollowParams{
		UserId:           wallet.UserId,
		TraderId:         trader.Id,
		AllocationAmount: dec("500"),
		CopyRatio:        dec("0.5"),
	})
	require.NoError(t, err)
	require.NotNil(t, fee)
	assert.Equal(t, models.RelationshipStatusActive, relationship.Status)

	assert.True(t, cashBalance(t, s, wallet.Id).Equal(dec("950")))

	history, err := s.GetTransactionHistory(ctx, wallet.Id, 10, 0)
	require.NoError(t, err)
	var feeRows []models.WalletTransaction
	for _, h := range history {
		if h.Type == models.TransactionTypeCopyFee || h.Type == models.TransactionTypeCopyAllocation {
			feeRows = append(feeRows, h)
		}
	}
	require.Len(t, feeRows, 1)
	assert.Equal(t, models.DirectionDebit, feeRows[0].Direction)
	assert.Equal(t, models.TransactionStatusApproved, feeRows[0].Status)
	assert.True(t, feeRows[0].Amount.Equal(dec("50")))
	assert.Equal(t, relationship.Id, feeRows[0].Metadata.CopyRelationshipId)

	updated, err := s.GetTrader(ctx, trader.Id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.FollowersCount)
	require.NoError(t, s.ReconcileWallet(ctx, wallet.Id))
}

func TestFollowTrader_FeeAndRelationshipAreAtomic(t *testing.T) {
	s := setupTestService(t)
	trader := createTrader(t, s, "50")
	wallet := createWallet(t, s)
	fund(t, s, wallet.Id, "20")
	ctx := context.Background()

	_, _, err := s.FollowTrader(ctx, store.FollowParams{
		UserId:           wallet.UserId,
		TraderId:         trader.Id,
		AllocationAmount: dec("10"),
		CopyRatio:        dec("1"),
	})
	require.ErrorIs(t, err, store.ErrInsufficientBalance)

	var relationships int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM copy_relationships").Scan(&relationships))
	assert.Zero(t, relationships)
	assert.True(t, cashBalance(t, s, wallet.Id).Equal(dec("20")))

	updated, err := s.GetTrader(ctx, trader.Id)
	require.NoError(t, err)
	assert.Zero(t, updated.FollowersCount)
}

func TestFollowTrader_RejectsDuplicatesAndBadInput(t *testing.T) {
	s := setupTestService(t)
	trader := createTrader(t, s, "0")
	wallet, _ := follow(t, s, trader.Id, "1")
	ctx := context.Background()

	_, _, err := s.FollowTrader(ctx, store.FollowParams{
		UserId: wallet.UserId, TraderId: trader.Id, AllocationAmount: dec("1"), CopyRatio: dec("1"),
	})
	require.ErrorIs(t, err, store.ErrAlreadyFollowing)

	_, _, err = s.FollowTrader(ctx, store.FollowParams{
		UserId: wallet.UserId, TraderId: trader.Id, AllocationAmount: dec("1"), CopyRatio: decimal.Zero,
	})
	require.ErrorIs(t, err, store.ErrValidation)

	_, _, err = s.FollowTrader(ctx, store.FollowParams{
		UserId: wallet.UserId, TraderId: "missing", AllocationAmount: dec("1"), CopyRatio: dec("1"),
	})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSetRelationshipStatus(t *testing.T) {
	s := setupTestService(t)
	trader := createTrader(t, s, "0")
	_, relationship := follow(t, s, trader.Id, "1")
	ctx := context.Background()

	paused, err := s.SetRelationshipStatus(ctx, relationship.Id, models.RelationshipStatusPaused)
	require.NoError(t, err)
	assert.Equal(t, models.RelationshipStatusPaused, paused.Status)

	_, err = s.SetRelationshipStatus(ctx, relationship.Id, models.RelationshipStatusPaused)
	require.ErrorIs(t, err, store.ErrInvalidTransition)

	_, err = s.SetRelationshipStatus(ctx, relationship.Id, models.RelationshipStatusActive)
	require.NoError(t, err)

	_, err = s.SetRelationshipStatus(ctx, relationship.Id, models.RelationshipStatusClosed)
	require.NoError(t, err)

	_, err = s.SetRelationshipStatus(ctx, relationship.Id, models.RelationshipStatusActive)
	require.ErrorIs(t, err, store.ErrAlreadyFinalized)

	updated, err := s.GetTrader(ctx, trader.Id)
	require.NoError(t, err)
	assert.Zero(t, updated.FollowersCount)
}

func TestExecuteLeaderTrade_ScalesPerFollower(t *testing.T) {
	s := setupTestService(t)
	asset := createAsset(t, s)
	trader := createTrader(t, s, "0")
	_, half := follow(t, s, trader.Id, "0.5")
	_, third := follow(t, s, trader.Id, "0.333333333")
	_, tiny := follow(t, s, trader.Id, "0.000000001")
	_, paused := follow(t, s, trader.Id, "2")
	ctx := context.Background()

	_, err := s.SetRelationshipStatus(ctx, paused.Id, models.RelationshipStatusPaused)
	require.NoError(t, err)

	// A legacy row with a zero ratio
	zero := createWallet(t, s)
	_, err = s.db.Exec(`INSERT INTO copy_relationships (id, user_id, trader_id, allocation_amount, copy_ratio, status, pnl, trades_count, created_at, updated_at)
		VALUES ('legacy', ?, ?, '100', '0', 'active', '0', 0, ?, ?)`, zero.UserId, trader.Id, formatTime(time.Now()), formatTime(time.Now()))
	require.NoError(t, err)

	pnl := dec("12.5")
	stats, err := s.ExecuteLeaderTrade(ctx, store.LeaderTrade{
		TraderId: trader.Id,
		AssetId:  asset.Id,
		Side:     models.TradeSideBuy,
		Quantity: dec("3.14159265358979"),
		Price:    dec("64000"),
		Pnl:      &pnl,
		Note:     "breakout",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Created)
	assert.Equal(t, 1, stats.SkippedNonPositiveRatio)
	assert.Equal(t, 1, stats.SkippedZeroQuantity)

	trades, err := s.GetCopyTrades(ctx, half.Id)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "1.57079633", trades[0].Quantity.String())
	assert.True(t, trades[0].Pnl.Equal(dec("6.25")))
	assert.Equal(t, "admin", trades[0].Metadata.Source)
	assert.Equal(t, "breakout", trades[0].Metadata.Note)
	assert.True(t, trades[0].Metadata.CopyRatio.Equal(dec("0.5")))

	trades, err = s.GetCopyTrades(ctx, third.Id)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "1.04719755", trades[0].Quantity.String())

	for _, id := range []string{tiny.Id, paused.Id, "legacy"} {
		trades, err = s.GetCopyTrades(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, trades)
	}

	updated, err := s.GetRelationship(ctx, half.Id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.TradesCount)
	assert.True(t, updated.Pnl.Equal(dec("6.25")))

	leader, err := s.GetTrader(ctx, trader.Id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), leader.LeaderTradesCount)
}

func TestExecuteLeaderTrade_NoActiveFollowers(t *testing.T) {
	s := setupTestService(t)
	asset := createAsset(t, s)
	trader := createTrader(t, s, "0")

	_, err := s.ExecuteLeaderTrade(context.Background(), store.LeaderTrade{
		TraderId: trader.Id,
		AssetId:  asset.Id,
		Side:     models.TradeSideSell,
		Quantity: dec("1"),
		Price:    dec("1"),
	})
	require.ErrorIs(t, err, store.ErrNoActiveFollowers)

	leader, err := s.GetTrader(context.Background(), trader.Id)
	require.NoError(t, err)
	assert.Zero(t, leader.LeaderTradesCount)
}

func TestExecuteLeaderTrade_AllOrNothing(t *testing.T) {
	s := setupTestService(t)
	asset := createAsset(t, s)
	trader := createTrader(t, s, "0")
	var relationships []*models.CopyRelationship
	for i := 0; i < 5; i++ {
		_, r := follow(t, s, trader.Id, "1")
		relationships = append(relationships, r)
	}

	_, err := s.db.Exec(`CREATE TRIGGER fail_third_copy_trade BEFORE INSERT ON copy_trades
		WHEN (SELECT COUNT(*) FROM copy_trades) >= 2
		BEGIN SELECT RAISE(ABORT, 'forced failure'); END;`)
	require.NoError(t, err)

	_, err = s.ExecuteLeaderTrade(context.Background(), store.LeaderTrade{
		TraderId: trader.Id,
		AssetId:  asset.Id,
		Side:     models.TradeSideBuy,
		Quantity: dec("1"),
		Price:    dec("100"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forced failure")

	assert.Zero(t, countCopyTrades(t, s))
	for _, r := range relationships {
		stored, err := s.GetRelationship(context.Background(), r.Id)
		require.NoError(t, err)
		assert.Zero(t, stored.TradesCount)
	}
	leader, err := s.GetTrader(context.Background(), trader.Id)
	require.NoError(t, err)
	assert.Zero(t, leader.LeaderTradesCount)
}

func TestExecuteLeaderTrade_Validation(t *testing.T) {
	s := setupTestService(t)
	asset := createAsset(t, s)
	trader := createTrader(t, s, "0")
	follow(t, s, trader.Id, "1")

	_, err := s.ExecuteLeaderTrade(context.Background(), store.LeaderTrade{
		TraderId: trader.Id, AssetId: asset.Id, Side: models.TradeSideBuy, Quantity: decimal.Zero, Price: dec("1"),
	})
	require.ErrorIs(t, err, store.ErrValidation)

	_, err = s.ExecuteLeaderTrade(context.Background(), store.LeaderTrade{
		TraderId: trader.Id, AssetId: "missing", Side: models.TradeSideBuy, Quantity: dec("1"), Price: dec("1"),
	})
	require.ErrorIs(t, err, store.ErrNotFound)
	assert.Zero(t, countCopyTrades(t, s))
}

func TestGetTraders(t *testing.T) {
	s := setupTestService(t)
	createTrader(t, s, "10")
	_, err := s.CreateTrader(context.Background(), "Alpha Desk", dec("0"))
	require.NoError(t, err)

	traders, err := s.GetTraders(context.Background())
	require.NoError(t, err)
	require.Len(t, traders, 2)
	assert.Equal(t, "Alpha Desk", traders[0].Name)
	assert.Equal(t, "Leader", traders[1].Name)
	assert.True(t, traders[1].CopyFee.Equal(dec("10")))
	assert.True(t, traders[1].Active)
}
