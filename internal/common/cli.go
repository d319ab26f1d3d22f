package common

import (
	"context"
	"fmt"
	"strings"

	"copy-trade-ledger-go/internal/database"
	"copy-trade-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

// ResolveAsset finds a catalog asset from a "SYMBOL-network" key
func ResolveAsset(ctx context.Context, dbService *database.Service, key string) (*models.Asset, error) {
	if key == "" {
		return nil, nil
	}
	parts := strings.SplitN(key, "-", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid asset format, expected SYMBOL-network (e.g. USDT-tron)")
	}

	assets, err := dbService.GetAssets(ctx)
	if err != nil {
		return nil, err
	}
	for i := range assets {
		if strings.EqualFold(assets[i].Symbol, parts[0]) && strings.EqualFold(assets[i].Network, parts[1]) {
			return &assets[i], nil
		}
	}
	return nil, fmt.Errorf("asset %s is not in the catalog, run cmd/setup first", key)
}

// ResolveTrader finds a trader by name, ignoring case
func ResolveTrader(ctx context.Context, dbService *database.Service, name string) (*models.Trader, error) {
	traders, err := dbService.GetTraders(ctx)
	if err != nil {
		return nil, err
	}
	for i := range traders {
		if strings.EqualFold(traders[i].Name, name) {
			return &traders[i], nil
		}
	}
	return nil, fmt.Errorf("trader %q not found", name)
}

// AssetId returns the id of asset, or "" when no asset was given
func AssetId(asset *models.Asset) string {
	if asset == nil {
		return ""
	}
	return asset.Id
}

// ParseAmount parses a strictly positive decimal flag value
func ParseAmount(name, value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, fmt.Errorf("--%s is required", name)
	}
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s format: %w", name, err)
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%s must be greater than zero", name)
	}
	return amount, nil
}
