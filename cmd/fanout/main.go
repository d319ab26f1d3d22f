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
	"os"
	"strings"
	"time"

	"copy-trade-ledger-go/internal/common"
	"copy-trade-ledger-go/internal/config"
	"copy-trade-ledger-go/internal/models"
	"copy-trade-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type tradeFlags struct {
	trader   string
	asset    string
	side     string
	quantity string
	price    string
	pnl      string
	note     string
}

func parseFlags(args []string) (*tradeFlags, error) {
	f := &tradeFlags{}
	fs := flag.NewFlagSet("fanout", flag.ContinueOnError)
	fs.StringVar(&f.trader, "trader", "", "Trader name")
	fs.StringVar(&f.asset, "asset", "", "Asset as SYMBOL-network")
	fs.StringVar(&f.side, "side", "", "buy or sell")
	fs.StringVar(&f.quantity, "quantity", "", "Leader quantity")
	fs.StringVar(&f.price, "price", "", "Execution price")
	fs.StringVar(&f.pnl, "pnl", "", "Realized pnl of the leader trade (optional, may be negative)")
	fs.StringVar(&f.note, "note", "", "Free-form note")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if f.trader == "" || f.asset == "" || f.side == "" {
		return nil, fmt.Errorf("--trader, --asset and --side are required")
	}
	if !models.TradeSide(strings.ToLower(f.side)).Valid() {
		return nil, fmt.Errorf("invalid side %q, expected buy or sell", f.side)
	}
	return f, nil
}

// buildTrade parses the numeric flags into a leader trade for traderId
func buildTrade(f *tradeFlags, traderId, assetId string, now time.Time) (store.LeaderTrade, error) {
	quantity, err := common.ParseAmount("quantity", f.quantity)
	if err != nil {
		return store.LeaderTrade{}, err
	}
	price, err := common.ParseAmount("price", f.price)
	if err != nil {
		return store.LeaderTrade{}, err
	}

	trade := store.LeaderTrade{
		TraderId:   traderId,
		AssetId:    assetId,
		Side:       models.TradeSide(strings.ToLower(f.side)),
		Quantity:   quantity,
		Price:      price,
		ExecutedAt: now,
		Note:       f.note,
	}
	if f.pnl != "" {
		pnl, err := decimal.NewFromString(f.pnl)
		if err != nil {
			return store.LeaderTrade{}, fmt.Errorf("invalid pnl format: %w", err)
		}
		trade.Pnl = &pnl
	}
	return trade, nil
}

func main() {
	ctx := context.Background()

	f, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	_, loggerCleanup := common.InitializeLogger(cfg.LogLevel)
	defer loggerCleanup()

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	trader, err := common.ResolveTrader(ctx, services.DbService, f.trader)
	if err != nil {
		zap.L().Fatal("Trader lookup failed", zap.Error(err))
	}
	asset, err := common.ResolveAsset(ctx, services.DbService, f.asset)
	if err != nil {
		zap.L().Fatal("Invalid asset", zap.Error(err))
	}
	trade, err := buildTrade(f, trader.Id, asset.Id, time.Now().UTC())
	if err != nil {
		zap.L().Fatal("Invalid trade", zap.Error(err))
	}

	result := services.Ledger.ExecuteLeaderTrade(ctx, trade)
	if !common.PrintOutcome("Fan out "+trader.Name+" trade", result.Outcome) {
		services.Close()
		loggerCleanup()
		os.Exit(1)
	}

	common.PrintHeader("LEADER TRADE", common.DefaultWidth)
	fmt.Printf("Trader:   %s\n", trader.Name)
	fmt.Printf("Trade:    %s %s %s @ %s\n", trade.Side, trade.Quantity.String(), asset.Symbol, trade.Price.String())
	fmt.Printf("Created:  %d follower trades\n", result.Created)
	fmt.Printf("Skipped:  %d\n", result.Skipped)
	fmt.Printf("Summary:  %s\n", result.Summary)
	common.PrintSeparator("=", common.DefaultWidth)
}
