/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"copy-trade-ledger-go/internal/api"
	"copy-trade-ledger-go/internal/common"
	"copy-trade-ledger-go/internal/compactor"
	"copy-trade-ledger-go/internal/config"

	"go.uber.org/zap"
)

// compactionJob returns the scheduled pass. Failures are logged and the next
// tick tries again.
func compactionJob(ledger *api.LedgerService, userId string, dryRun bool) func(ctx context.Context) {
	return func(ctx context.Context) {
		result := ledger.CompactSnapshots(ctx, userId, dryRun)
		if !result.Success {
			zap.L().Error("Snapshot compaction failed",
				zap.String("code", string(result.Code)),
				zap.String("message", result.Message))
			return
		}
		zap.L().Info("Snapshot compaction pass complete",
			zap.Int("users", result.Users),
			zap.Int("scanned", result.Scanned),
			zap.Int("removed", result.Removed),
			zap.Bool("dry_run", result.DryRun))
	}
}

func main() {
	once := flag.Bool("once", false, "Run a single compaction pass and exit")
	dryRun := flag.Bool("dry-run", false, "Report what would be removed without deleting")
	userId := flag.String("user", "", "Compact only this user id (default: every user)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	_, loggerCleanup := common.InitializeLogger(cfg.LogLevel)
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	job := compactionJob(services.Ledger, *userId, *dryRun)

	if *once {
		job(ctx)
		return
	}

	go func() {
		if err := services.Metrics.Serve(ctx, cfg.Metrics.ListenAddr); err != nil {
			zap.L().Error("Metrics server stopped", zap.Error(err))
		}
	}()

	scheduler, err := compactor.NewScheduler(cfg.Compaction.Interval, job)
	if err != nil {
		zap.L().Fatal("Invalid compaction schedule", zap.Error(err))
	}
	scheduler.Start(ctx)

	zap.L().Info("Snapshot compactor running, press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zap.L().Info("Shutdown signal received, stopping compactor...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		scheduler.Stop()
		close(done)
	}()

	select {
	case <-done:
		zap.L().Info("Compactor stopped gracefully")
	case <-shutdownCtx.Done():
		zap.L().Warn("Forced shutdown after timeout")
	}
	cancel()
}
