package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"copy-trade-ledger-go/internal/copytrade"
	"copy-trade-ledger-go/internal/models"
	"copy-trade-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const copyTradeSource = "admin"

func (s *Service) CreateTrader(ctx context.Context, name string, copyFee decimal.Decimal) (*models.Trader, error) {
	zap.L().Info("Creating trader", zap.String("name", name), zap.String("copy_fee", copyFee.String()))

	if name == "" {
		return nil, fmt.Errorf("%w: trader name is required", store.ErrValidation)
	}
	if copyFee.IsNegative() {
		return nil, fmt.Errorf("%w: copy fee cannot be negative", store.ErrValidation)
	}

	trader := &models.Trader{
		Id:        uuid.New().String(),
		Name:      name,
		CopyFee:   copyFee,
		Active:    true,
		CreatedAt: s.now(),
	}
	if _, err := s.db.ExecContext(ctx, queryInsertTrader, trader.Id, name, copyFee.String(), formatTime(trader.CreatedAt)); err != nil {
		return nil, fmt.Errorf("unable to insert trader: %w", err)
	}
	return trader, nil
}

func (s *Service) GetTrader(ctx context.Context, traderId string) (*models.Trader, error) {
	return getTrader(ctx, s.db, traderId)
}

func getTrader(ctx context.Context, q queryer, traderId string) (*models.Trader, error) {
	t, err := scanTrader(q.QueryRowContext(ctx, queryGetTrader, traderId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: trader %s", store.ErrNotFound, traderId)
		}
		return nil, fmt.Errorf("unable to query trader: %w", err)
	}
	return t, nil
}

// GetTraders lists every trader profile ordered by name
func (s *Service) GetTraders(ctx context.Context) ([]models.Trader, error) {
	rows, err := s.db.QueryContext(ctx, queryGetTraders)
	if err != nil {
		return nil, fmt.Errorf("unable to query traders: %w", err)
	}
	defer closeRows(rows)

	var traders []models.Trader
	for rows.Next() {
		t, err := scanTrader(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan trader row: %w", err)
		}
		traders = append(traders, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trader rows: %w", err)
	}
	return traders, nil
}

func scanTrader(row rowScanner) (*models.Trader, error) {
	var t models.Trader
	var fee, createdAt string
	err := row.Scan(&t.Id, &t.Name, &fee, &t.FollowersCount, &t.LeaderTradesCount, &t.Active, &createdAt)
	if err != nil {
		return nil, err
	}
	if t.CopyFee, err = parseDecimal("copy_fee", fee); err != nil {
		return nil, err
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func scanRelationship(row rowScanner) (*models.CopyRelationship, error) {
	var r models.CopyRelationship
	var allocation, ratio, status, pnl, createdAt, updatedAt string
	err := row.Scan(&r.Id, &r.UserId, &r.TraderId, &allocation, &ratio, &status, &pnl, &r.TradesCount, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	r.Status = models.RelationshipStatus(status)
	if r.AllocationAmount, err = parseDecimal("allocation_amount", allocation); err != nil {
		return nil, err
	}
	if r.CopyRatio, err = parseDecimal("copy_ratio", ratio); err != nil {
		return nil, err
	}
	if r.Pnl, err = parseDecimal("pnl", pnl); err != nil {
		return nil, err
	}
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Service) GetRelationship(ctx context.Context, relationshipId string) (*models.CopyRelationship, error) {
	return getRelationship(ctx, s.db, relationshipId)
}

func getRelationship(ctx context.Context, q queryer, relationshipId string) (*models.CopyRelationship, error) {
	r, err := scanRelationship(q.QueryRowContext(ctx, queryGetRelationship, relationshipId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: copy relationship %s", store.ErrNotFound, relationshipId)
		}
		return nil, fmt.Errorf("unable to query copy relationship: %w", err)
	}
	return r, nil
}

// FollowTrader creates an active copy relationship and charges the trader's
// copy fee to the follower's cash in the same unit of work.
func (s *Service) FollowTrader(ctx context.Context, params store.FollowParams) (*models.CopyRelationship, *models.WalletTransaction, error) {
	zap.L().Info("Following trader",
		zap.String("user_id", params.UserId),
		zap.String("trader_id", params.TraderId),
		zap.String("allocation", params.AllocationAmount.String()),
		zap.String("copy_ratio", params.CopyRatio.String()))

	if !params.CopyRatio.IsPositive() {
		return nil, nil, fmt.Errorf("%w: copy ratio must be greater than zero", store.ErrValidation)
	}
	if !params.AllocationAmount.IsPositive() {
		return nil, nil, fmt.Errorf("%w: allocation amount must be greater than zero", store.ErrValidation)
	}
	trader, err := s.GetTrader(ctx, params.TraderId)
	if err != nil {
		return nil, nil, err
	}
	if !trader.Active {
		return nil, nil, fmt.Errorf("%w: trader %s is not accepting followers", store.ErrValidation, params.TraderId)
	}
	wallet, err := s.GetWalletByUser(ctx, params.UserId)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	relationship := &models.CopyRelationship{
		Id:               uuid.New().String(),
		UserId:           params.UserId,
		TraderId:         params.TraderId,
		AllocationAmount: params.AllocationAmount,
		CopyRatio:        params.CopyRatio,
		Status:           models.RelationshipStatusActive,
		Pnl:              decimal.Zero,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	var fee *models.WalletTransaction
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var open int
		if err := tx.QueryRowContext(ctx, queryCountOpenRelationships, params.UserId, params.TraderId).Scan(&open); err != nil {
			return fmt.Errorf("unable to check existing relationships: %w", err)
		}
		if open > 0 {
			return fmt.Errorf("%w: user %s already follows trader %s", store.ErrAlreadyFollowing, params.UserId, params.TraderId)
		}

		// Re-read inside the lock so a fee change cannot slip in
		locked, err := getTrader(ctx, tx, params.TraderId)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, queryInsertRelationship,
			relationship.Id, relationship.UserId, relationship.TraderId,
			relationship.AllocationAmount.String(), relationship.CopyRatio.String(), string(relationship.Status),
			formatTime(now), formatTime(now))
		if err != nil {
			return fmt.Errorf("unable to insert copy relationship: %w", err)
		}

		if locked.CopyFee.IsPositive() {
			fee, err = s.ledger.apply(ctx, tx, store.LedgerEvent{
				WalletId:  wallet.Id,
				Type:      models.TransactionTypeCopyFee,
				Direction: models.DirectionDebit,
				Amount:    locked.CopyFee,
				Notes:     fmt.Sprintf("copy fee for %s", locked.Name),
				Metadata: models.TransactionMetadata{
					TraderId:           locked.Id,
					CopyRelationshipId: relationship.Id,
					Actor:              models.ActorFrom(ctx),
				},
			}, now)
			if err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, queryAdjustTraderFollowers, 1, params.TraderId); err != nil {
			return fmt.Errorf("unable to update trader followers: %w", err)
		}
		return nil
	})
	if err != nil {
		zap.L().Error("Follow failed", zap.String("user_id", params.UserId), zap.String("trader_id", params.TraderId), zap.Error(err))
		return nil, nil, err
	}

	zap.L().Info("Copy relationship created", zap.String("relationship_id", relationship.Id))
	return relationship, fee, nil
}

// SetRelationshipStatus pauses, resumes or closes a relationship. Closed is terminal.
func (s *Service) SetRelationshipStatus(ctx context.Context, relationshipId string, status models.RelationshipStatus) (*models.CopyRelationship, error) {
	zap.L().Info("Updating copy relationship status",
		zap.String("relationship_id", relationshipId),
		zap.String("status", string(status)))

	switch status {
	case models.RelationshipStatusActive, models.RelationshipStatusPaused, models.RelationshipStatusClosed:
	default:
		return nil, fmt.Errorf("%w: unknown relationship status %q", store.ErrValidation, status)
	}

	var updated *models.CopyRelationship
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		r, err := getRelationship(ctx, tx, relationshipId)
		if err != nil {
			return err
		}
		if r.Status == models.RelationshipStatusClosed {
			return fmt.Errorf("%w: copy relationship %s is closed", store.ErrAlreadyFinalized, relationshipId)
		}
		if r.Status == status {
			return fmt.Errorf("%w: copy relationship %s is already %s", store.ErrInvalidTransition, relationshipId, status)
		}

		now := s.now()
		if _, err := tx.ExecContext(ctx, queryUpdateRelationshipStatus, string(status), formatTime(now), relationshipId); err != nil {
			return fmt.Errorf("unable to update copy relationship: %w", err)
		}
		if status == models.RelationshipStatusClosed {
			if _, err := tx.ExecContext(ctx, queryAdjustTraderFollowers, -1, r.TraderId); err != nil {
				return fmt.Errorf("unable to update trader followers: %w", err)
			}
		}
		r.Status = status
		r.UpdatedAt = now
		updated = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ExecuteLeaderTrade replicates a leader trade to every active follower as
// one unit of work. Followers whose scaled quantity is not positive are
// skipped; any persistence failure leaves no copy trade from the batch.
func (s *Service) ExecuteLeaderTrade(ctx context.Context, trade store.LeaderTrade) (store.FanOutStats, error) {
	var stats store.FanOutStats

	zap.L().Info("Executing leader trade",
		zap.String("trader_id", trade.TraderId),
		zap.String("asset_id", trade.AssetId),
		zap.String("side", string(trade.Side)),
		zap.String("quantity", trade.Quantity.String()),
		zap.String("price", trade.Price.String()))

	if !trade.Side.Valid() {
		return stats, fmt.Errorf("%w: unknown side %q", store.ErrValidation, trade.Side)
	}
	if !trade.Quantity.IsPositive() {
		return stats, fmt.Errorf("%w: quantity must be greater than zero", store.ErrValidation)
	}
	if !trade.Price.IsPositive() {
		return stats, fmt.Errorf("%w: price must be greater than zero", store.ErrValidation)
	}
	if _, err := s.GetTrader(ctx, trade.TraderId); err != nil {
		return stats, err
	}
	if _, err := s.GetAsset(ctx, trade.AssetId); err != nil {
		return stats, err
	}
	executedAt := trade.ExecutedAt
	if executedAt.IsZero() {
		executedAt = s.now()
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stats = store.FanOutStats{}

		relationships, err := activeRelationships(ctx, tx, trade.TraderId)
		if err != nil {
			return err
		}
		if len(relationships) == 0 {
			return fmt.Errorf("%w: trader %s", store.ErrNoActiveFollowers, trade.TraderId)
		}

		now := s.now()
		for _, r := range relationships {
			leg := copytrade.Scale(trade.Quantity, trade.Pnl, r.CopyRatio)
			switch leg.Reason {
			case copytrade.SkipNonPositiveRatio:
				stats.SkippedNonPositiveRatio++
				continue
			case copytrade.SkipZeroQuantity:
				stats.SkippedZeroQuantity++
				continue
			}

			metadata, err := models.CopyTradeMetadata{
				LeaderQuantity: trade.Quantity,
				LeaderPnl:      trade.Pnl,
				CopyRatio:      r.CopyRatio,
				Source:         copyTradeSource,
				Note:           trade.Note,
			}.Encode()
			if err != nil {
				return err
			}

			_, err = tx.ExecContext(ctx, queryInsertCopyTrade,
				uuid.New().String(), r.Id, trade.AssetId, string(trade.Side),
				leg.Quantity.String(), trade.Price.String(), leg.Pnl.String(), formatTime(executedAt), metadata)
			if err != nil {
				return fmt.Errorf("unable to insert copy trade for relationship %s: %w", r.Id, err)
			}

			result, err := tx.ExecContext(ctx, queryUpdateRelationshipCounters, r.Pnl.Add(leg.Pnl).String(), formatTime(now), r.Id)
			if err != nil {
				return fmt.Errorf("unable to update relationship %s: %w", r.Id, err)
			}
			if n, err := result.RowsAffected(); err != nil || n != 1 {
				return fmt.Errorf("relationship %s changed during fan-out - %w", r.Id, store.ErrConcurrentModification)
			}
			stats.Created++
		}

		if _, err := tx.ExecContext(ctx, queryIncrementTraderTrades, trade.TraderId); err != nil {
			return fmt.Errorf("unable to update trader stats: %w", err)
		}
		return nil
	})
	if err != nil {
		zap.L().Error("Leader trade fan-out failed", zap.String("trader_id", trade.TraderId), zap.Error(err))
		return store.FanOutStats{}, err
	}

	zap.L().Info("Leader trade fanned out",
		zap.String("trader_id", trade.TraderId),
		zap.Int("created", stats.Created),
		zap.Int("skipped", stats.Skipped()))
	return stats, nil
}

func activeRelationships(ctx context.Context, q queryer, traderId string) ([]models.CopyRelationship, error) {
	rows, err := q.QueryContext(ctx, queryGetActiveRelationships, traderId)
	if err != nil {
		return nil, fmt.Errorf("unable to query active relationships: %w", err)
	}
	defer closeRows(rows)

	var relationships []models.CopyRelationship
	for rows.Next() {
		r, err := scanRelationship(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan relationship row: %w", err)
		}
		relationships = append(relationships, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating relationship rows: %w", err)
	}
	return relationships, nil
}

func (s *Service) GetCopyTrades(ctx context.Context, relationshipId string) ([]models.CopyTrade, error) {
	rows, err := s.db.QueryContext(ctx, queryGetCopyTrades, relationshipId)
	if err != nil {
		return nil, fmt.Errorf("unable to query copy trades: %w", err)
	}
	defer closeRows(rows)

	var trades []models.CopyTrade
	for rows.Next() {
		var t models.CopyTrade
		var side, quantity, price, pnl, executedAt, metadata string
		if err := rows.Scan(&t.Id, &t.CopyRelationshipId, &t.AssetId, &side, &quantity, &price, &pnl, &executedAt, &metadata); err != nil {
			return nil, fmt.Errorf("unable to scan copy trade row: %w", err)
		}
		t.Side = models.TradeSide(side)
		if t.Quantity, err = parseDecimal("quantity", quantity); err != nil {
			return nil, err
		}
		if t.Price, err = parseDecimal("price", price); err != nil {
			return nil, err
		}
		if t.Pnl, err = parseDecimal("pnl", pnl); err != nil {
			return nil, err
		}
		if t.ExecutedAt, err = parseTime(executedAt); err != nil {
			return nil, err
		}
		if t.Metadata, err = models.DecodeCopyTradeMetadata(metadata); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating copy trade rows: %w", err)
	}
	return trades, nil
}
