package compactor

import (
	"time"

	"copy-trade-ledger-go/internal/models"
)

// Plan returns the ids to delete so that every bucket of the given width
// holds at most one snapshot. Buckets are aligned to the Unix epoch. The
// survivor of a bucket is its latest snapshot, the highest id on a tie.
func Plan(snapshots []models.PortfolioSnapshot, width time.Duration) []int64 {
	if width <= 0 || len(snapshots) < 2 {
		return nil
	}

	keep := make(map[int64]models.PortfolioSnapshot)
	for _, snap := range snapshots {
		bucket := bucketOf(snap.RecordedAt, width)
		current, ok := keep[bucket]
		if !ok || later(snap, current) {
			keep[bucket] = snap
		}
	}

	var remove []int64
	for _, snap := range snapshots {
		if keep[bucketOf(snap.RecordedAt, width)].Id != snap.Id {
			remove = append(remove, snap.Id)
		}
	}
	return remove
}

func bucketOf(t time.Time, width time.Duration) int64 {
	ns := t.UnixNano()
	w := width.Nanoseconds()
	b := ns / w
	// floor for instants before the epoch
	if ns%w < 0 {
		b--
	}
	return b
}

func later(a, b models.PortfolioSnapshot) bool {
	if a.RecordedAt.Equal(b.RecordedAt) {
		return a.Id > b.Id
	}
	return a.RecordedAt.After(b.RecordedAt)
}
