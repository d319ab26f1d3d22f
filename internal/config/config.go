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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"copy-trade-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

func Load() (*models.Config, error) {
	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	busyTimeout, err := getEnvDuration("DB_BUSY_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	compactionInterval, err := getEnvDuration("COMPACTION_INTERVAL", time.Hour)
	if err != nil {
		return nil, err
	}

	minDeposit, err := getEnvDecimal("PLATFORM_MIN_DEPOSIT", decimal.NewFromInt(10))
	if err != nil {
		return nil, err
	}

	minWithdrawal, err := getEnvDecimal("PLATFORM_MIN_WITHDRAWAL", decimal.NewFromInt(10))
	if err != nil {
		return nil, err
	}

	return &models.Config{
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "ledger.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
			BusyTimeout:     busyTimeout,
		},
		Compaction: models.CompactionConfig{
			FineDays:            getEnvInt("SNAPSHOT_FINE_DAYS", 1),
			MidDays:             getEnvInt("SNAPSHOT_MID_DAYS", 7),
			CoarseDays:          getEnvInt("SNAPSHOT_COARSE_DAYS", 30),
			MidBucketMinutes:    getEnvInt("SNAPSHOT_MID_BUCKET_MINUTES", 5),
			CoarseBucketMinutes: getEnvInt("SNAPSHOT_COARSE_BUCKET_MINUTES", 0),
			Interval:            compactionInterval,
			Concurrency:         getEnvInt("COMPACTION_CONCURRENCY", 4),
		},
		Platform: models.PlatformSettings{
			Currency:         getEnvString("PLATFORM_CURRENCY", "USD"),
			MinDeposit:       minDeposit,
			MinWithdrawal:    minWithdrawal,
			DepositsEnabled:  getEnvBool("PLATFORM_DEPOSITS_ENABLED", true),
			WithdrawsEnabled: getEnvBool("PLATFORM_WITHDRAWALS_ENABLED", true),
		},
		Formance: models.FormanceConfig{
			StackURL:     getEnvString("FORMANCE_STACK_URL", ""),
			ClientID:     getEnvString("FORMANCE_CLIENT_ID", ""),
			ClientSecret: getEnvString("FORMANCE_CLIENT_SECRET", ""),
			LedgerName:   getEnvString("FORMANCE_LEDGER", ""),
		},
		Metrics: models.MetricsConfig{
			ListenAddr: getEnvString("METRICS_ADDR", ":9102"),
		},
		ProofsDir:  getEnvString("PROOFS_DIR", "proofs"),
		AssetsFile: getEnvString("ASSETS_FILE", "assets.yaml"),
		LogLevel:   getEnvString("LOG_LEVEL", "info"),
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	if value := os.Getenv(key); value != "" {
		d, err := decimal.NewFromString(value)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid decimal for %s: %q (%w)", key, value, err)
		}
		return d, nil
	}
	return defaultValue, nil
}
