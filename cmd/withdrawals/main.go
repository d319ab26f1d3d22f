package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"copy-trade-ledger-go/internal/common"
	"copy-trade-ledger-go/internal/config"
	"copy-trade-ledger-go/internal/models"

	"go.uber.org/zap"
)

const usage = `usage: withdrawals <command> [flags]

commands:
  submit   --email --amount --destination [--asset SYMBOL-network]
  approve  --id [--actor]
  reject   --id [--actor] [--reason]
  delete   --id`

type withdrawalRequest struct {
	command     string
	email       string
	asset       string
	amount      string
	destination string
	id          string
	actor       string
	reason      string
}

func parseFlags(args []string) (*withdrawalRequest, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("missing command")
	}
	req := &withdrawalRequest{command: args[0]}

	fs := flag.NewFlagSet(req.command, flag.ContinueOnError)
	fs.StringVar(&req.email, "email", "", "User email")
	fs.StringVar(&req.asset, "asset", "", "Asset as SYMBOL-network (optional)")
	fs.StringVar(&req.amount, "amount", "", "Amount to withdraw")
	fs.StringVar(&req.destination, "destination", "", "Destination address")
	fs.StringVar(&req.id, "id", "", "Withdrawal transaction id")
	fs.StringVar(&req.actor, "actor", "admin", "Who performs the action")
	fs.StringVar(&req.reason, "reason", "", "Rejection reason")
	if err := fs.Parse(args[1:]); err != nil {
		return nil, err
	}

	switch req.command {
	case "submit":
		if req.email == "" || req.amount == "" || req.destination == "" {
			return nil, fmt.Errorf("submit requires --email, --amount and --destination")
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

func printWithdrawal(tx *models.WalletTransaction, newBalance string) {
	common.PrintHeader("WITHDRAWAL", common.DefaultWidth)
	fmt.Printf("Transaction: %s\n", tx.Id)
	fmt.Printf("Status:      %s\n", tx.Status)
	fmt.Printf("Amount:      %s\n", tx.Amount.String())
	fmt.Printf("Destination: %s\n", tx.Metadata.Destination)
	if newBalance != "" {
		fmt.Printf("New Balance: %s\n", newBalance)
	}
	common.PrintSeparator("=", common.DefaultWidth)
}

func run(ctx context.Context, services *common.Services, req *withdrawalRequest) bool {
	ledger := services.Ledger
	ctx = models.WithActor(ctx, req.actor)

	switch req.command {
	case "submit":
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

		result := ledger.SubmitWithdrawal(ctx, user.Id, common.AssetId(asset), amount, network, req.destination)
		if !common.PrintOutcome("Submit withdrawal", result.Outcome) {
			return false
		}
		printWithdrawal(result.Transaction, "")

	case "approve":
		result := ledger.ApproveWithdrawal(ctx, req.id)
		if !common.PrintOutcome("Approve withdrawal", result.Outcome) {
			return false
		}
		if result.Transaction != nil {
			printWithdrawal(result.Transaction, result.NewBalance.String())
		}

	case "reject":
		return common.PrintOutcome("Reject withdrawal", ledger.RejectWithdrawal(ctx, req.id, req.reason))

	case "delete":
		return common.PrintOutcome("Delete withdrawal", ledger.DeleteWithdrawal(ctx, req.id))
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

	zap.L().Info("Initializing services")
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
