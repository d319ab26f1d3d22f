package api

import (
	"context"
	"errors"
	"time"

	"copy-trade-ledger-go/internal/copytrade"
	"copy-trade-ledger-go/internal/models"
	"copy-trade-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// FollowTrader starts copying a trader and charges the trader's copy fee
func (s *LedgerService) FollowTrader(ctx context.Context, userId, traderId string, allocationAmount, copyRatio decimal.Decimal) *models.FollowResult {
	started := time.Now()
	relationship, fee, err := s.db.FollowTrader(ctx, store.FollowParams{
		UserId:           userId,
		TraderId:         traderId,
		AllocationAmount: allocationAmount,
		CopyRatio:        copyRatio,
	})
	result := &models.FollowResult{Outcome: s.finish("follow_trader", started, err)}
	if err != nil {
		return result
	}
	s.mirrorTransaction(ctx, fee)

	result.Relationship = relationship
	return result
}

func (s *LedgerService) PauseRelationship(ctx context.Context, relationshipId string) *models.FollowResult {
	return s.setRelationshipStatus(ctx, "pause_relationship", relationshipId, models.RelationshipStatusPaused)
}

func (s *LedgerService) ResumeRelationship(ctx context.Context, relationshipId string) *models.FollowResult {
	return s.setRelationshipStatus(ctx, "resume_relationship", relationshipId, models.RelationshipStatusActive)
}

// CloseRelationship stops copying for good
func (s *LedgerService) CloseRelationship(ctx context.Context, relationshipId string) *models.FollowResult {
	return s.setRelationshipStatus(ctx, "close_relationship", relationshipId, models.RelationshipStatusClosed)
}

func (s *LedgerService) setRelationshipStatus(ctx context.Context, operation, relationshipId string, status models.RelationshipStatus) *models.FollowResult {
	started := time.Now()
	relationship, err := s.db.SetRelationshipStatus(ctx, relationshipId, status)
	return &models.FollowResult{Outcome: s.finish(operation, started, err), Relationship: relationship}
}

// ExecuteLeaderTrade fans a leader trade out to the trader's active followers
func (s *LedgerService) ExecuteLeaderTrade(ctx context.Context, trade store.LeaderTrade) *models.FanOutResult {
	started := time.Now()
	if trade.ExecutedAt.IsZero() {
		trade.ExecutedAt = time.Now().UTC()
	}

	stats, err := s.db.ExecuteLeaderTrade(ctx, trade)
	result := &models.FanOutResult{
		Outcome: s.finish("execute_leader_trade", started, err),
		Created: stats.Created,
		Skipped: stats.Skipped(),
		Summary: copytrade.Summary(stats.Created, stats.SkippedNonPositiveRatio, stats.SkippedZeroQuantity),
	}
	if errors.Is(err, store.ErrNoActiveFollowers) {
		result.Summary = copytrade.Summary(0, 0, 0)
		return result
	}
	if err != nil {
		result.Summary = ""
		return result
	}

	s.metrics.RecordFanOut(stats.Created, stats.SkippedNonPositiveRatio, stats.SkippedZeroQuantity)
	zap.L().Info("Leader trade fanned out",
		zap.String("trader_id", trade.TraderId),
		zap.String("summary", result.Summary))
	return result
}
