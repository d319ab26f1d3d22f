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

package compactor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Scheduler runs a compaction job once on start and then on every tick
type Scheduler struct {
	interval time.Duration
	job      func(ctx context.Context)

	stopChan chan struct{}
	doneChan chan struct{}
}

func NewScheduler(interval time.Duration, job func(ctx context.Context)) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("compaction interval must be positive, got %v", interval)
	}
	return &Scheduler{
		interval: interval,
		job:      job,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}, nil
}

// Start begins the compaction loop
func (s *Scheduler) Start(ctx context.Context) {
	zap.L().Info("Starting snapshot compaction scheduler", zap.Duration("interval", s.interval))
	go s.loop(ctx)
}

// Stop gracefully stops the scheduler, waiting for a running pass to finish
func (s *Scheduler) Stop() {
	zap.L().Info("Stopping snapshot compaction scheduler")
	close(s.stopChan)
	<-s.doneChan
	zap.L().Info("Snapshot compaction scheduler stopped")
}

// Done is closed once the loop has exited
func (s *Scheduler) Done() <-chan struct{} {
	return s.doneChan
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.doneChan)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.job(ctx)

	for {
		select {
		case <-ticker.C:
			s.job(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}
