package api

import (
	"context"
	"fmt"
	"time"

	"copy-trade-ledger-go/internal/compactor"
	"copy-trade-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

// RecordSnapshot appends a portfolio value point for a user
func (s *LedgerService) RecordSnapshot(ctx context.Context, userId string, value, buyingPower decimal.Decimal, recordedAt time.Time) models.Outcome {
	started := time.Now()
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}
	_, err := s.db.RecordSnapshot(ctx, userId, value, buyingPower, recordedAt)
	return s.finish("record_snapshot", started, err)
}

// CompactSnapshots downsamples one user's snapshots, or every user's when
// userId is empty. With dryRun nothing is deleted.
func (s *LedgerService) CompactSnapshots(ctx context.Context, userId string, dryRun bool) *models.CompactionResult {
	started := time.Now()
	if s.compactor == nil {
		return &models.CompactionResult{
			Outcome: s.finish("compact_snapshots", started, fmt.Errorf("snapshot compaction is not configured")),
			DryRun:  dryRun,
		}
	}

	var (
		report compactor.Report
		err    error
	)
	if userId == "" {
		report, err = s.compactor.CompactAll(ctx, dryRun)
	} else {
		report, err = s.compactor.CompactUser(ctx, userId, dryRun)
	}
	if err == nil && !dryRun {
		s.metrics.RecordCompaction(report.Scanned, report.Removed)
	}

	return &models.CompactionResult{
		Outcome: s.finish("compact_snapshots", started, err),
		Users:   report.Users,
		Scanned: report.Scanned,
		Removed: report.Removed,
		DryRun:  dryRun,
	}
}
