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
	"fmt"
	"log"

	"copy-trade-ledger-go/internal/common"
	"copy-trade-ledger-go/internal/config"
	"copy-trade-ledger-go/internal/database"
	"copy-trade-ledger-go/internal/formance"
	"copy-trade-ledger-go/internal/models"

	"go.uber.org/zap"
)

type balanceStats struct {
	totalUsers       int
	usersWithFunds   int
	reconcileFailed  int
	mirrorMismatches int
}

var balanceAccounts = []models.BalanceAccount{
	models.BalanceAccountCash,
	models.BalanceAccountInvesting,
	models.BalanceAccountProfit,
}

func formatTransactionId(txId string) string {
	if txId == "" {
		return "none"
	}
	if len(txId) > 8 {
		return txId[:8] + "..."
	}
	return txId
}

func printUserHeader(user common.UserInfo, wallet *models.Wallet) {
	fmt.Printf("\n┌─ User: %s (%s)\n", user.Name, user.Email)
	fmt.Printf("│  ID: %s\n", user.Id)
	fmt.Printf("│  Wallet: %s (v%d, %s)\n", wallet.Id, wallet.Version, wallet.Currency)
	common.PrintBoxSeparator(78)
}

func printBalances(wallet *models.Wallet, lastTx string) {
	for _, account := range balanceAccounts {
		fmt.Printf("%s %-15s: %20s\n", common.BoxPrefix(false), account, wallet.Balance(account).String())
	}
	fmt.Printf("%s last_tx: %s, updated: %s\n",
		common.BoxPrefix(true),
		formatTransactionId(lastTx),
		wallet.UpdatedAt.Format("2006-01-02 15:04:05"))
}

// compareMirror reports accounts whose mirrored balance differs from the wallet
func compareMirror(ctx context.Context, mirror *formance.Mirror, wallet *models.Wallet) (int, error) {
	mismatches := 0
	for _, account := range balanceAccounts {
		mirrored, err := mirror.WalletBalance(ctx, wallet.Id, account, wallet.Currency)
		if err != nil {
			return mismatches, err
		}
		if !mirrored.Equal(wallet.Balance(account)) {
			mismatches++
			fmt.Printf("%s mirror %-8s: %20s (ledger %s)\n",
				common.BoxDetailPrefix(true), account, mirrored.String(), wallet.Balance(account).String())
		}
	}
	return mismatches, nil
}

func processUser(ctx context.Context, user common.UserInfo, dbService *database.Service, mirror *formance.Mirror, reconcile bool, stats *balanceStats) error {
	wallet, err := dbService.GetWallet(ctx, user.WalletId)
	if err != nil {
		return fmt.Errorf("failed to get wallet: %w", err)
	}

	history, err := dbService.GetTransactionHistory(ctx, wallet.Id, 1, 0)
	if err != nil {
		return fmt.Errorf("failed to get history: %w", err)
	}
	lastTx := ""
	if len(history) > 0 {
		lastTx = history[0].Id
	}

	printUserHeader(user, wallet)
	printBalances(wallet, lastTx)

	if !wallet.CashBalance.IsZero() || !wallet.InvestingBalance.IsZero() || !wallet.ProfitLoss.IsZero() {
		stats.usersWithFunds++
	}

	if reconcile {
		if err := dbService.ReconcileWallet(ctx, wallet.Id); err != nil {
			stats.reconcileFailed++
			fmt.Printf("%s reconcile: FAILED (%v)\n", common.BoxDetailPrefix(true), err)
		} else {
			fmt.Printf("%s reconcile: ok\n", common.BoxDetailPrefix(true))
		}
	}

	if mirror != nil {
		n, err := compareMirror(ctx, mirror, wallet)
		if err != nil {
			return fmt.Errorf("failed to compare mirror: %w", err)
		}
		stats.mirrorMismatches += n
	}
	return nil
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, loggerCleanup := common.InitializeLogger(cfg.LogLevel)
	defer loggerCleanup()

	emailFlag := flag.String("email", "", "Filter by specific user email (optional)")
	reconcileFlag := flag.Bool("reconcile", false, "Verify balances against approved transactions")
	mirrorFlag := flag.Bool("mirror", false, "Compare balances with the Formance mirror")
	flag.Parse()

	logger.Info("Starting balance query")

	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	var mirror *formance.Mirror
	if *mirrorFlag {
		if !cfg.Formance.Enabled() {
			logger.Fatal("--mirror requires FORMANCE_STACK_URL")
		}
		mirror, err = formance.NewMirror(ctx, cfg.Formance)
		if err != nil {
			logger.Fatal("Failed to connect to Formance", zap.Error(err))
		}
	}

	users, err := common.InitializeUsers(ctx, dbService, *emailFlag, logger)
	if err != nil {
		logger.Fatal("Failed to initialize users", zap.Error(err))
	}

	common.PrintHeader("WALLET BALANCE REPORT", common.DefaultWidth)

	stats := balanceStats{}
	for _, user := range users {
		stats.totalUsers++
		if err := processUser(ctx, user, dbService, mirror, *reconcileFlag, &stats); err != nil {
			logger.Error("Failed to process user",
				zap.String("user_id", user.Id),
				zap.String("user_name", user.Name),
				zap.Error(err))
		}
	}

	summary := fmt.Sprintf("SUMMARY: %d of %d users hold funds, %d reconcile failures, %d mirror mismatches",
		stats.usersWithFunds, stats.totalUsers, stats.reconcileFailed, stats.mirrorMismatches)
	common.PrintFooter(summary, common.DefaultWidth)

	logger.Info("Balance query completed",
		zap.Int("users_queried", stats.totalUsers),
		zap.Int("users_with_funds", stats.usersWithFunds),
		zap.Int("reconcile_failed", stats.reconcileFailed),
		zap.Int("mirror_mismatches", stats.mirrorMismatches))
}
