package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"copy-trade-ledger-go/internal/api"
	"copy-trade-ledger-go/internal/compactor"
	"copy-trade-ledger-go/internal/database"
	"copy-trade-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompactionJob(t *testing.T) {
	ctx := context.Background()
	db, err := database.NewService(ctx, models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "ledger.db"),
		MaxOpenConns: 2,
		PingTimeout:  5 * time.Second,
	})
	require.NoError(t, err)
	defer db.Close()

	c, err := compactor.New(db, models.CompactionConfig{FineDays: 1, MidDays: 7, CoarseDays: 30, MidBucketMinutes: 5})
	require.NoError(t, err)
	ledger := api.NewLedgerService(db, api.StaticSettings{}, api.WithCompactor(c))

	base := time.Now().UTC().Truncate(5 * time.Minute).Add(-48 * time.Hour)
	for i := 0; i < 10; i++ {
		_, err := db.RecordSnapshot(ctx, "user-1", decimal.NewFromInt(100), decimal.NewFromInt(100), base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}

	compactionJob(ledger, "", true)(ctx)
	snapshots, err := db.ListSnapshots(ctx, "user-1", base, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, snapshots, 10)

	compactionJob(ledger, "user-1", false)(ctx)
	snapshots, err = db.ListSnapshots(ctx, "user-1", base, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, snapshots, 2)
}
