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
	"path/filepath"

	"copy-trade-ledger-go/internal/common"
	"copy-trade-ledger-go/internal/config"
	"copy-trade-ledger-go/internal/models"

	"go.uber.org/zap"
)

const usage = `usage: deposits <command> [flags]

commands:
  create   --email --amount [--asset SYMBOL-network]
  network  --id --asset SYMBOL-network
  proof    --id --hash --file [--auto-approve]
  approve  --id [--actor]
  reject   --id [--actor] [--reason]
  delete   --id`

type depositRequest struct {
	command     string
	email       string
	asset       string
	amount      string
	id          string
	hash        string
	file        string
	autoApprove bool
	actor       string
	reason      string
}

func parseFlags(args []string) (*depositRequest, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("missing command")
	}
	req := &depositRequest{command: args[0]}

	fs := flag.NewFlagSet(req.command, flag.ContinueOnError)
	fs.StringVar(&req.email, "email", "", "User email")
	fs.StringVar(&req.asset, "asset", "", "Asset as SYMBOL-network")
	fs.StringVar(&req.amount, "amount", "", "Amount to deposit")
	fs.StringVar(&req.id, "id", "", "Deposit request id")
	fs.StringVar(&req.hash, "hash", "", "On-chain transaction hash")
	fs.StringVar(&req.file, "file", "", "Path of the proof image")
	fs.BoolVar(&req.autoApprove, "auto-approve", false, "Request auto-approval (recorded, the deposit still needs an admin)")
	fs.StringVar(&req.actor, "actor", "admin", "Who performs the action")
	fs.StringVar(&req.reason, "reason", "", "Rejection reason")
	if err := fs.Parse(args[1:]); err != nil {
		return nil, err
	}

	switch req.command {
	case "create":
		if req.email == "" || req.amount == "" {
			return nil, fmt.Errorf("create requires --email and --amount")
		}
	case "network":
		if req.id == "" || req.asset == "" {
			return nil, fmt.Errorf("network requires --id and --asset")
		}
	case "proof":
		if req.id == "" || req.hash == "" || req.file == "" {
			return nil, fmt.Errorf("proof requires --id, --hash and --file")
		}
	case "approve", "reject", "delete":
		if req.id == "" {
			return nil, fmt.Errorf("%s requires --id", req.command)
		}
	default:
		return nil, fmt.Errorf("unknown command %q", req.command)
	}
	return req, nil
}

func printDepositRequest(request *models.DepositRequest) {
	if request == nil {
		return
	}
	common.PrintHeader("DEPOSIT REQUEST", common.DefaultWidth)
	fmt.Printf("Request:  %s\n", request.Id)
	fmt.Printf("Status:   %s\n", request.Status)
	fmt.Printf("Amount:   %s %s\n", request.Amount.String(), request.Currency)
	if request.Network != "" {
		fmt.Printf("Network:  %s\n", request.Network)
	}
	if request.DepositAddress != "" {
		fmt.Printf("Send to:  %s\n", request.DepositAddress)
	}
	if request.TransactionHash != "" {
		fmt.Printf("Tx hash:  %s\n", request.TransactionHash)
	}
	common.PrintSeparator("=", common.DefaultWidth)
}

func run(ctx context.Context, services *common.Services, req *depositRequest) bool {
	ledger := services.Ledger
	ctx = models.WithActor(ctx, req.actor)

	switch req.command {
	case "create":
		user, err := common.ResolveUser(ctx, services.DbService, req.email)
		if err != nil {
			zap.L().Fatal("User not found", zap.String("email", req.email), zap.Error(err))
		}
		amount, err := common.ParseAmount("amount", req.amount)
		if err != nil {
			zap.L().Fatal("Invalid amount", zap.Error(err))
		}
		asset, err := common.ResolveAsset(ctx, services.DbService, req.asset)
		if err != nil {
			zap.L().Fatal("Invalid asset", zap.Error(err))
		}
		network := ""
		if asset != nil {
			network = asset.Network
		}

		result := ledger.CreateDepositRequest(ctx, user.Id, common.AssetId(asset), amount, network)
		if !common.PrintOutcome("Create deposit request", result.Outcome) {
			return false
		}
		printDepositRequest(result.Request)

	case "network":
		asset, err := common.ResolveAsset(ctx, services.DbService, req.asset)
		if err != nil {
			zap.L().Fatal("Invalid asset", zap.Error(err))
		}
		result := ledger.SelectDepositNetwork(ctx, req.id, common.AssetId(asset), asset.Network)
		if !common.PrintOutcome("Select deposit network", result.Outcome) {
			return false
		}
		printDepositRequest(result.Request)

	case "proof":
		file, err := os.Open(req.file)
		if err != nil {
			zap.L().Fatal("Failed to open proof file", zap.String("file", req.file), zap.Error(err))
		}
		defer file.Close()

		result := ledger.SubmitDepositProof(ctx, req.id, req.hash, filepath.Ext(req.file), file, req.autoApprove)
		if !common.PrintOutcome("Submit deposit proof", result.Outcome) {
			return false
		}
		printDepositRequest(result.Request)

	case "approve":
		result := ledger.ApproveDeposit(ctx, req.id)
		if !common.PrintOutcome("Approve deposit", result.Outcome) {
			return false
		}
		if result.Transaction != nil {
			fmt.Printf("Credited %s, new balance %s\n", result.Transaction.Amount.String(), result.NewBalance.String())
		}

	case "reject":
		return common.PrintOutcome("Reject deposit", ledger.RejectDeposit(ctx, req.id, req.reason))

	case "delete":
		return common.PrintOutcome("Delete deposit request", ledger.DeleteDepositRequest(ctx, req.id))
	}
	return true
}

func main() {
	ctx := context.Background()

	req, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usage)
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

	if !run(ctx, services, req) {
		services.Close()
		loggerCleanup()
		os.Exit(1)
	}
}
