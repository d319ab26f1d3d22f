package compactor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"copy-trade-ledger-go/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const day = 24 * time.Hour

// SnapshotStore is the part of the ledger store the compactor needs
type SnapshotStore interface {
	ListSnapshots(ctx context.Context, userId string, from, to time.Time) ([]models.PortfolioSnapshot, error)
	ListSnapshotUsers(ctx context.Context) ([]string, error)
	DeleteSnapshots(ctx context.Context, ids []int64) (int, error)
}

// Report is the outcome of one compaction pass
type Report struct {
	Users   int
	Scanned int
	Removed int
	DryRun  bool
}

func (r *Report) add(o Report) {
	r.Users += o.Users
	r.Scanned += o.Scanned
	r.Removed += o.Removed
}

// tier is one retention window and the bucket width applied inside it
type tier struct {
	name  string
	from  time.Time
	to    time.Time
	width time.Duration
}

type Compactor struct {
	store SnapshotStore
	cfg   models.CompactionConfig
	now   func() time.Time
}

func New(store SnapshotStore, cfg models.CompactionConfig) (*Compactor, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Compactor{
		store: store,
		cfg:   cfg,
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

// ValidateConfig checks the retention windows are ascending and buckets are positive
func ValidateConfig(cfg models.CompactionConfig) error {
	if cfg.FineDays < 0 {
		return fmt.Errorf("fine days cannot be negative, got %d", cfg.FineDays)
	}
	if cfg.MidDays <= cfg.FineDays {
		return fmt.Errorf("mid days (%d) must be greater than fine days (%d)", cfg.MidDays, cfg.FineDays)
	}
	if cfg.MidBucketMinutes <= 0 {
		return fmt.Errorf("mid bucket minutes must be positive, got %d", cfg.MidBucketMinutes)
	}
	if cfg.CoarseBucketMinutes > 0 && cfg.CoarseDays <= cfg.MidDays {
		return fmt.Errorf("coarse days (%d) must be greater than mid days (%d)", cfg.CoarseDays, cfg.MidDays)
	}
	return nil
}

// tiers returns the windows to compact relative to now. The mid window is
// closed on both ends; the coarse window stops just short of the mid one.
func (c *Compactor) tiers(now time.Time) []tier {
	tiers := []tier{{
		name:  "mid",
		from:  now.Add(-time.Duration(c.cfg.MidDays) * day),
		to:    now.Add(-time.Duration(c.cfg.FineDays) * day),
		width: time.Duration(c.cfg.MidBucketMinutes) * time.Minute,
	}}
	if c.cfg.CoarseBucketMinutes > 0 {
		tiers = append(tiers, tier{
			name:  "coarse",
			from:  now.Add(-time.Duration(c.cfg.CoarseDays) * day),
			to:    now.Add(-time.Duration(c.cfg.MidDays) * day).Add(-time.Nanosecond),
			width: time.Duration(c.cfg.CoarseBucketMinutes) * time.Minute,
		})
	}
	return tiers
}

// CompactUser downsamples one user's snapshots. With dryRun nothing is
// deleted and Removed counts the rows that would go.
func (c *Compactor) CompactUser(ctx context.Context, userId string, dryRun bool) (Report, error) {
	report := Report{Users: 1, DryRun: dryRun}
	now := c.now()

	for _, t := range c.tiers(now) {
		snapshots, err := c.store.ListSnapshots(ctx, userId, t.from, t.to)
		if err != nil {
			return report, fmt.Errorf("failed to list %s snapshots for user %s: %w", t.name, userId, err)
		}
		report.Scanned += len(snapshots)

		remove := Plan(snapshots, t.width)
		if len(remove) == 0 {
			continue
		}

		if dryRun {
			report.Removed += len(remove)
			continue
		}
		n, err := c.store.DeleteSnapshots(ctx, remove)
		if err != nil {
			return report, fmt.Errorf("failed to delete %s snapshots for user %s: %w", t.name, userId, err)
		}
		report.Removed += n

		zap.L().Debug("Compacted snapshot tier",
			zap.String("user_id", userId),
			zap.String("tier", t.name),
			zap.Int("scanned", len(snapshots)),
			zap.Int("removed", n))
	}
	return report, nil
}

// CompactAll compacts every user that has snapshots, a bounded number at a time
func (c *Compactor) CompactAll(ctx context.Context, dryRun bool) (Report, error) {
	users, err := c.store.ListSnapshotUsers(ctx)
	if err != nil {
		return Report{DryRun: dryRun}, fmt.Errorf("failed to list snapshot users: %w", err)
	}

	var mu sync.Mutex
	total := Report{DryRun: dryRun}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for _, userId := range users {
		userId := userId
		g.Go(func() error {
			report, err := c.CompactUser(gctx, userId, dryRun)
			if err != nil {
				return err
			}
			mu.Lock()
			total.add(report)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return total, err
	}

	zap.L().Info("Snapshot compaction finished",
		zap.Int("users", total.Users),
		zap.Int("scanned", total.Scanned),
		zap.Int("removed", total.Removed),
		zap.Bool("dry_run", dryRun))
	return total, nil
}
