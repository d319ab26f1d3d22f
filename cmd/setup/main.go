package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"copy-trade-ledger-go/internal/common"
	"copy-trade-ledger-go/internal/config"
	"copy-trade-ledger-go/internal/database"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type seedStats struct {
	assets    int
	addresses int
	traders   int
	failed    []string
}

// seedAsset stores a catalog asset and, when configured, its platform deposit address
func seedAsset(ctx context.Context, dbService *database.Service, assetConfig common.AssetConfig, stats *seedStats) error {
	key := common.AssetKey(assetConfig.Symbol, assetConfig.Network)
	zap.L().Info("Processing asset", zap.String("asset", key))

	asset, err := dbService.UpsertAsset(ctx, assetConfig.Symbol, assetConfig.Network, assetConfig.Name)
	if err != nil {
		return fmt.Errorf("error storing asset %s: %w", key, err)
	}
	stats.assets++

	if assetConfig.Address == "" {
		zap.L().Info("No platform deposit address configured", zap.String("asset", key))
		return nil
	}

	stored, err := dbService.StoreDepositAddress(ctx, asset.Id, assetConfig.Network, assetConfig.Address)
	if err != nil {
		return fmt.Errorf("error storing deposit address for %s: %w", key, err)
	}
	stats.addresses++

	zap.L().Info("Stored deposit address",
		zap.String("asset", key),
		zap.String("address", stored.Address))
	return nil
}

// seedTraders creates the configured traders that do not exist yet, matched by name
func seedTraders(ctx context.Context, dbService *database.Service, traderConfigs []common.TraderConfig, stats *seedStats) {
	existing, err := dbService.GetTraders(ctx)
	if err != nil {
		zap.L().Fatal("Failed to read traders from database", zap.Error(err))
	}
	known := make(map[string]bool, len(existing))
	for _, t := range existing {
		known[t.Name] = true
	}

	for _, traderConfig := range traderConfigs {
		if known[traderConfig.Name] {
			zap.L().Info("Trader already exists", zap.String("name", traderConfig.Name))
			continue
		}

		fee := decimal.Zero
		if traderConfig.CopyFee != "" {
			fee, err = decimal.NewFromString(traderConfig.CopyFee)
			if err != nil {
				zap.L().Error("Invalid copy fee", zap.String("name", traderConfig.Name), zap.Error(err))
				stats.failed = append(stats.failed, traderConfig.Name)
				continue
			}
		}

		trader, err := dbService.CreateTrader(ctx, traderConfig.Name, fee)
		if err != nil {
			zap.L().Error("Failed to create trader", zap.String("name", traderConfig.Name), zap.Error(err))
			stats.failed = append(stats.failed, traderConfig.Name)
			continue
		}
		stats.traders++
		fmt.Printf("✓ Trader %s (%s), copy fee %s\n", trader.Name, trader.Id, trader.CopyFee.String())
	}
}

func seedCatalog(ctx context.Context, dbService *database.Service, assetsFile string) seedStats {
	zap.L().Info("Loading asset configuration", zap.String("file", assetsFile))
	catalog, err := common.LoadAssetConfig(assetsFile)
	if err != nil {
		zap.L().Fatal("Failed to load asset config", zap.Error(err))
	}
	zap.L().Info("Asset configuration loaded",
		zap.Int("assets", len(catalog.Assets)),
		zap.Int("traders", len(catalog.Traders)))

	var stats seedStats
	for _, assetConfig := range catalog.Assets {
		if err := seedAsset(ctx, dbService, assetConfig, &stats); err != nil {
			zap.L().Error("Failed to seed asset", zap.Error(err))
			stats.failed = append(stats.failed, common.AssetKey(assetConfig.Symbol, assetConfig.Network))
			continue
		}
		fmt.Printf("✓ %s\n", common.AssetKey(assetConfig.Symbol, assetConfig.Network))
	}

	seedTraders(ctx, dbService, catalog.Traders, &stats)
	return stats
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	_, loggerCleanup := common.InitializeLogger(cfg.LogLevel)
	defer loggerCleanup()

	assetsFlag := flag.String("assets", cfg.AssetsFile, "Asset and trader catalog file")
	flag.Parse()

	// Opening the database creates the schema
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	stats := seedCatalog(ctx, dbService, *assetsFlag)

	summary := fmt.Sprintf("SETUP: %d assets, %d deposit addresses, %d new traders, %d failures",
		stats.assets, stats.addresses, stats.traders, len(stats.failed))
	common.PrintFooter(summary, common.DefaultWidth)

	if len(stats.failed) > 0 {
		zap.L().Warn("Setup completed with some failures", zap.Strings("failed", stats.failed))
	} else {
		zap.L().Info("Setup completed successfully")
	}
}
