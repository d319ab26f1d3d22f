package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config represents the application configuration
type Config struct {
	Database   DatabaseConfig
	Compaction CompactionConfig
	Platform   PlatformSettings
	Formance   FormanceConfig
	Metrics    MetricsConfig
	ProofsDir  string
	AssetsFile string
	LogLevel   string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	BusyTimeout     time.Duration
}

// CompactionConfig holds the snapshot retention tiers. Days are ages
// measured back from now; FineDays < MidDays < CoarseDays.
type CompactionConfig struct {
	FineDays            int
	MidDays             int
	CoarseDays          int
	MidBucketMinutes    int
	CoarseBucketMinutes int
	Interval            time.Duration
	Concurrency         int
}

// PlatformSettings are the admin-controlled settings read at call time
type PlatformSettings struct {
	Currency         string
	MinDeposit       decimal.Decimal
	MinWithdrawal    decimal.Decimal
	DepositsEnabled  bool
	WithdrawsEnabled bool
}

// FormanceConfig enables mirroring approved wallet transactions to a Formance ledger
type FormanceConfig struct {
	StackURL     string
	ClientID     string
	ClientSecret string
	LedgerName   string
}

func (c FormanceConfig) Enabled() bool {
	return c.StackURL != ""
}

type MetricsConfig struct {
	ListenAddr string
}
