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

package api

import (
	"context"
	"fmt"
	"io"
	"time"

	"copy-trade-ledger-go/internal/compactor"
	"copy-trade-ledger-go/internal/metrics"
	"copy-trade-ledger-go/internal/models"
	"copy-trade-ledger-go/internal/store"

	"go.uber.org/zap"
)

// SettingsProvider supplies the admin-controlled platform settings. It is
// consulted on every call, so changes apply without a restart.
type SettingsProvider interface {
	Settings() models.PlatformSettings
}

// StaticSettings serves fixed settings, typically loaded from the environment
type StaticSettings models.PlatformSettings

func (s StaticSettings) Settings() models.PlatformSettings {
	return models.PlatformSettings(s)
}

// ProofStore keeps the files users attach as deposit proof
type ProofStore interface {
	Save(requestId, ext string, r io.Reader) (string, error)
	Delete(path string) error
}

// LedgerService is the in-process entry point for ledger operations. Every
// operation reports a models.Outcome instead of failing with an error.
type LedgerService struct {
	db        store.LedgerStore
	settings  SettingsProvider
	mirror    store.LedgerMirror
	metrics   *metrics.LedgerMetrics
	proofs    ProofStore
	compactor *compactor.Compactor
}

type Option func(*LedgerService)

func WithMirror(m store.LedgerMirror) Option {
	return func(s *LedgerService) { s.mirror = m }
}

func WithMetrics(m *metrics.LedgerMetrics) Option {
	return func(s *LedgerService) { s.metrics = m }
}

func WithProofStore(p ProofStore) Option {
	return func(s *LedgerService) { s.proofs = p }
}

func WithCompactor(c *compactor.Compactor) Option {
	return func(s *LedgerService) { s.compactor = c }
}

func NewLedgerService(db store.LedgerStore, settings SettingsProvider, opts ...Option) *LedgerService {
	s := &LedgerService{
		db:       db,
		settings: settings,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *LedgerService) HealthCheck(ctx context.Context) error {
	_, err := s.db.GetUsers(ctx)
	if err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// outcomeFor classifies err into the outcome returned to callers
func outcomeFor(err error) models.Outcome {
	switch {
	case err == nil:
		return models.Outcome{Success: true, Code: models.OutcomeOK}
	case store.IsValidation(err):
		return models.Outcome{Code: models.OutcomeValidation, Message: err.Error()}
	case store.IsStateConflict(err):
		return models.Outcome{Code: models.OutcomeStateConflict, Message: err.Error()}
	default:
		return models.Outcome{Code: models.OutcomePersistence, Message: err.Error()}
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", store.ErrValidation, fmt.Sprintf(format, args...))
}

// finish classifies err, records it against operation and logs failures
func (s *LedgerService) finish(operation string, started time.Time, err error) models.Outcome {
	outcome := outcomeFor(err)
	s.metrics.ObserveOperation(operation, string(outcome.Code), started)

	switch outcome.Code {
	case models.OutcomeOK:
	case models.OutcomePersistence:
		zap.L().Error("Ledger operation failed",
			zap.String("operation", operation),
			zap.Error(err))
	default:
		zap.L().Info("Ledger operation refused",
			zap.String("operation", operation),
			zap.String("code", string(outcome.Code)),
			zap.String("reason", outcome.Message))
	}
	return outcome
}

// mirrorTransaction exports a committed transaction. Failures are logged
// and counted but never undo the commit.
func (s *LedgerService) mirrorTransaction(ctx context.Context, tx *models.WalletTransaction) {
	if s.mirror == nil || tx == nil {
		return
	}
	wallet, err := s.db.GetWallet(ctx, tx.WalletId)
	if err != nil {
		zap.L().Warn("Skipping mirror, wallet lookup failed",
			zap.String("transaction_id", tx.Id),
			zap.Error(err))
		s.metrics.RecordMirrorFailure()
		return
	}
	if err := s.mirror.RecordWalletTransaction(ctx, *tx, wallet.Currency); err != nil {
		zap.L().Warn("Failed to mirror wallet transaction",
			zap.String("transaction_id", tx.Id),
			zap.Error(err))
		s.metrics.RecordMirrorFailure()
	}
}
