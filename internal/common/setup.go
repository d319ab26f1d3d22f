package common

import (
	"context"
	"fmt"
	"log"
	"strings"

	"copy-trade-ledger-go/internal/api"
	"copy-trade-ledger-go/internal/compactor"
	"copy-trade-ledger-go/internal/database"
	"copy-trade-ledger-go/internal/formance"
	"copy-trade-ledger-go/internal/metrics"
	"copy-trade-ledger-go/internal/models"
	"copy-trade-ledger-go/internal/proofs"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const metricsNamespace = "copytrade_ledger"

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
	} else {
		log.Println("Loaded environment variables from .env file")
	}
}

type Services struct {
	DbService *database.Service
	Ledger    *api.LedgerService
	Mirror    *formance.Mirror
	Metrics   *metrics.LedgerMetrics
	Compactor *compactor.Compactor
}

// InitializeLogger installs a production logger at the given level as the
// global zap logger. An unknown level falls back to info.
func InitializeLogger(level string) (*zap.Logger, func()) {
	cfg := zap.NewProductionConfig()
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	logger, err := cfg.Build()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices opens the database and wires the ledger API with its
// optional collaborators: Formance mirror, metrics, proof store, compactor.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	services := &Services{
		DbService: dbService,
		Metrics:   metrics.New(metricsNamespace),
	}

	opts := []api.Option{api.WithMetrics(services.Metrics)}

	if cfg.Formance.Enabled() {
		mirror, err := formance.NewMirror(ctx, cfg.Formance)
		if err != nil {
			dbService.Close()
			return nil, fmt.Errorf("failed to initialize formance mirror: %w", err)
		}
		services.Mirror = mirror
		opts = append(opts, api.WithMirror(mirror))
	} else {
		zap.L().Info("Formance mirror disabled, FORMANCE_STACK_URL not set")
	}

	proofStore, err := proofs.NewStore(cfg.ProofsDir)
	if err != nil {
		dbService.Close()
		return nil, err
	}
	opts = append(opts, api.WithProofStore(proofStore))

	snapshotCompactor, err := compactor.New(dbService, cfg.Compaction)
	if err != nil {
		dbService.Close()
		return nil, fmt.Errorf("invalid compaction config: %w", err)
	}
	services.Compactor = snapshotCompactor
	opts = append(opts, api.WithCompactor(snapshotCompactor))

	services.Ledger = api.NewLedgerService(dbService, api.StaticSettings(cfg.Platform), opts...)
	return services, nil
}

// InitializeDatabaseOnly initializes just the database service.
// Useful for read-only operations like querying balances
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

func (cs *Services) Close() {
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
