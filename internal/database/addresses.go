package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"copy-trade-ledger-go/internal/models"
	"copy-trade-ledger-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UpsertAsset adds an asset to the catalog or refreshes its display name
func (s *Service) UpsertAsset(ctx context.Context, symbol, network, name string) (*models.Asset, error) {
	zap.L().Info("Storing asset",
		zap.String("symbol", symbol),
		zap.String("network", network))

	if symbol == "" || network == "" {
		return nil, fmt.Errorf("%w: asset symbol and network are required", store.ErrValidation)
	}

	asset := &models.Asset{}
	err := s.db.QueryRowContext(ctx, queryUpsertAsset, uuid.New().String(), symbol, network, name).Scan(
		&asset.Id, &asset.Symbol, &asset.Network, &asset.Name)
	if err != nil {
		zap.L().Error("Failed to upsert asset", zap.String("symbol", symbol), zap.Error(err))
		return nil, fmt.Errorf("unable to upsert asset: %w", err)
	}
	return asset, nil
}

func (s *Service) GetAsset(ctx context.Context, assetId string) (*models.Asset, error) {
	asset := &models.Asset{}
	err := s.db.QueryRowContext(ctx, queryGetAsset, assetId).Scan(&asset.Id, &asset.Symbol, &asset.Network, &asset.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: asset %s", store.ErrNotFound, assetId)
		}
		return nil, fmt.Errorf("unable to query asset: %w", err)
	}
	return asset, nil
}

func (s *Service) GetAssets(ctx context.Context) ([]models.Asset, error) {
	rows, err := s.db.QueryContext(ctx, queryGetAssets)
	if err != nil {
		return nil, fmt.Errorf("unable to query assets: %w", err)
	}
	defer closeRows(rows)

	var assets []models.Asset
	for rows.Next() {
		var asset models.Asset
		if err := rows.Scan(&asset.Id, &asset.Symbol, &asset.Network, &asset.Name); err != nil {
			return nil, fmt.Errorf("unable to scan asset row: %w", err)
		}
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating asset rows: %w", err)
	}
	return assets, nil
}

// StoreDepositAddress records the platform receiving address for an asset on a network
func (s *Service) StoreDepositAddress(ctx context.Context, assetId, network, address string) (*models.DepositAddress, error) {
	zap.L().Info("Storing deposit address",
		zap.String("asset_id", assetId),
		zap.String("network", network),
		zap.String("address", address))

	if address == "" {
		return nil, fmt.Errorf("%w: address is required", store.ErrValidation)
	}
	if _, err := s.GetAsset(ctx, assetId); err != nil {
		return nil, err
	}

	now := s.now()
	addr := &models.DepositAddress{
		Id:        uuid.New().String(),
		AssetId:   assetId,
		Network:   network,
		Address:   address,
		CreatedAt: now,
	}
	if _, err := s.db.ExecContext(ctx, queryInsertDepositAddress, addr.Id, assetId, network, address, formatTime(now)); err != nil {
		zap.L().Error("Failed to insert deposit address", zap.String("asset_id", assetId), zap.Error(err))
		return nil, fmt.Errorf("unable to insert deposit address: %w", err)
	}

	zap.L().Info("Deposit address stored successfully", zap.String("id", addr.Id))
	return addr, nil
}

// GetDepositAddress returns the most recently stored address for an asset and network
func (s *Service) GetDepositAddress(ctx context.Context, assetId, network string) (*models.DepositAddress, error) {
	zap.L().Debug("Querying deposit address",
		zap.String("asset_id", assetId),
		zap.String("network", network))

	var addr models.DepositAddress
	var createdAt string
	err := s.db.QueryRowContext(ctx, queryGetDepositAddress, assetId, network).Scan(
		&addr.Id, &addr.AssetId, &addr.Network, &addr.Address, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: no deposit address for asset %s on %s", store.ErrNotFound, assetId, network)
		}
		return nil, fmt.Errorf("unable to query deposit address: %w", err)
	}
	if addr.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &addr, nil
}
