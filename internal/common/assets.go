package common

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// AssetConfig is one catalog entry of the assets file. Address is the
// platform deposit address shown to users paying on this network.
type AssetConfig struct {
	Symbol  string `yaml:"symbol"`
	Network string `yaml:"network"`
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
}

// TraderConfig seeds a leader profile
type TraderConfig struct {
	Name    string `yaml:"name"`
	CopyFee string `yaml:"copy_fee"`
}

type AssetsConfig struct {
	Assets  []AssetConfig  `yaml:"assets"`
	Traders []TraderConfig `yaml:"traders"`
}

func LoadAssetConfig(assetsFile string) (*AssetsConfig, error) {
	var assetsPath string
	if filepath.IsAbs(assetsFile) {
		assetsPath = assetsFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		assetsPath = filepath.Join(wd, assetsFile)
	}

	data, err := os.ReadFile(assetsPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", assetsFile, err)
	}

	var config AssetsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", assetsFile, err)
	}

	for i, asset := range config.Assets {
		if asset.Symbol == "" {
			return nil, fmt.Errorf("asset at index %d missing symbol", i)
		}
		if asset.Network == "" {
			return nil, fmt.Errorf("asset at index %d missing network", i)
		}
	}
	for i, trader := range config.Traders {
		if trader.Name == "" {
			return nil, fmt.Errorf("trader at index %d missing name", i)
		}
	}

	return &config, nil
}

// AssetKey is the display key of an asset, e.g. "USDT-tron"
func AssetKey(symbol, network string) string {
	return fmt.Sprintf("%s-%s", symbol, network)
}
