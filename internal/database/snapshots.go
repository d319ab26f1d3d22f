package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"copy-trade-ledger-go/internal/models"
	"copy-trade-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// deleteChunkSize keeps each DELETE under SQLite's bound-parameter limit
const deleteChunkSize = 500

// RecordSnapshot appends one portfolio data point
func (s *Service) RecordSnapshot(ctx context.Context, userId string, value, buyingPower decimal.Decimal, recordedAt time.Time) (*models.PortfolioSnapshot, error) {
	if userId == "" {
		return nil, fmt.Errorf("%w: user_id is required", store.ErrValidation)
	}
	if recordedAt.IsZero() {
		recordedAt = s.now()
	}

	snapshot := &models.PortfolioSnapshot{
		UserId:      userId,
		Value:       value,
		BuyingPower: buyingPower,
		RecordedAt:  recordedAt.UTC(),
	}
	err := s.db.QueryRowContext(ctx, queryInsertSnapshot, userId, value.String(), buyingPower.String(), formatTime(recordedAt)).Scan(&snapshot.Id)
	if err != nil {
		return nil, fmt.Errorf("unable to insert snapshot: %w", err)
	}
	return snapshot, nil
}

// ListSnapshots returns a user's snapshots with from <= recordedAt <= to, oldest first
func (s *Service) ListSnapshots(ctx context.Context, userId string, from, to time.Time) ([]models.PortfolioSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, queryGetSnapshotsInRange, userId, formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("unable to query snapshots: %w", err)
	}
	defer closeRows(rows)

	var snapshots []models.PortfolioSnapshot
	for rows.Next() {
		var snap models.PortfolioSnapshot
		var value, buyingPower, recordedAt string
		if err := rows.Scan(&snap.Id, &snap.UserId, &value, &buyingPower, &recordedAt); err != nil {
			return nil, fmt.Errorf("unable to scan snapshot row: %w", err)
		}
		if snap.Value, err = parseDecimal("value", value); err != nil {
			return nil, err
		}
		if snap.BuyingPower, err = parseDecimal("buying_power", buyingPower); err != nil {
			return nil, err
		}
		if snap.RecordedAt, err = parseTime(recordedAt); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshot rows: %w", err)
	}
	return snapshots, nil
}

// ListSnapshotUsers returns every user id that has at least one snapshot
func (s *Service) ListSnapshotUsers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, queryGetSnapshotUsers)
	if err != nil {
		return nil, fmt.Errorf("unable to query snapshot users: %w", err)
	}
	defer closeRows(rows)

	var users []string
	for rows.Next() {
		var userId string
		if err := rows.Scan(&userId); err != nil {
			return nil, fmt.Errorf("unable to scan snapshot user: %w", err)
		}
		users = append(users, userId)
	}
	return users, rows.Err()
}

// DeleteSnapshots removes the given snapshot rows in one unit of work
func (s *Service) DeleteSnapshots(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	removed := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		removed = 0
		for start := 0; start < len(ids); start += deleteChunkSize {
			end := min(start+deleteChunkSize, len(ids))
			chunk := ids[start:end]

			args := make([]any, len(chunk))
			for i, id := range chunk {
				args[i] = id
			}
			query := "DELETE FROM portfolio_snapshots WHERE id IN (?" + strings.Repeat(", ?", len(chunk)-1) + ")"
			result, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				return fmt.Errorf("unable to delete snapshots: %w", err)
			}
			n, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("unable to get rows affected: %w", err)
			}
			removed += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	zap.L().Debug("Deleted snapshots", zap.Int("requested", len(ids)), zap.Int("removed", removed))
	return removed, nil
}
