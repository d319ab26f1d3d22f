package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"copy-trade-ledger-go/internal/common"
	"copy-trade-ledger-go/internal/config"
	"copy-trade-ledger-go/internal/models"

	"go.uber.org/zap"
)

const usage = `usage: follow <command> [flags]

commands:
  traders
  follow   --email --trader NAME --allocation [--ratio]
  pause    --id
  resume   --id
  close    --id`

type followRequest struct {
	command    string
	email      string
	trader     string
	allocation string
	ratio      string
	id         string
	actor      string
}

func parseFlags(args []string) (*followRequest, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("missing command")
	}
	req := &followRequest{command: args[0]}

	fs := flag.NewFlagSet(req.command, flag.ContinueOnError)
	fs.StringVar(&req.email, "email", "", "Follower email")
	fs.StringVar(&req.trader, "trader", "", "Trader name")
	fs.StringVar(&req.allocation, "allocation", "", "Amount allocated to the trader")
	fs.StringVar(&req.ratio, "ratio", "1", "Copy ratio applied to the trader's quantities")
	fs.StringVar(&req.id, "id", "", "Copy relationship id")
	fs.StringVar(&req.actor, "actor", "", "Who performs the action (defaults to the follower)")
	if err := fs.Parse(args[1:]); err != nil {
		return nil, err
	}

	switch req.command {
	case "traders":
	case "follow":
		if req.email == "" || req.trader == "" || req.allocation == "" {
			return nil, fmt.Errorf("follow requires --email, --trader and --allocation")
		}
	case "pause", "resume", "close":
		if req.id == "" {
			return nil, fmt.Errorf("%s requires --id", req.command)
		}
	default:
		return nil, fmt.Errorf("unknown command %q", req.command)
	}
	return req, nil
}

func printTraders(traders []models.Trader) {
	common.PrintHeader("TRADERS", common.DefaultWidth)
	for i, trader := range traders {
		isLast := i == len(traders)-1
		fmt.Printf("%s%s (copy fee %s)\n", common.BoxPrefix(isLast), trader.Name, trader.CopyFee.String())
		fmt.Printf("%sfollowers: %d  trades: %d  active: %t\n",
			common.BoxDetailPrefix(isLast), trader.FollowersCount, trader.LeaderTradesCount, trader.Active)
	}
	common.PrintSeparator("=", common.DefaultWidth)
}

func printRelationship(rel *models.CopyRelationship) {
	if rel == nil {
		return
	}
	fmt.Printf("Relationship: %s\n", rel.Id)
	fmt.Printf("Status:       %s\n", rel.Status)
	fmt.Printf("Allocation:   %s\n", rel.AllocationAmount.String())
	fmt.Printf("Copy ratio:   %s\n", rel.CopyRatio.String())
}

func run(ctx context.Context, services *common.Services, req *followRequest) bool {
	ledger := services.Ledger

	switch req.command {
	case "traders":
		traders, err := services.DbService.GetTraders(ctx)
		if err != nil {
			zap.L().Fatal("Failed to list traders", zap.Error(err))
		}
		printTraders(traders)

	case "follow":
		user, err := common.ResolveUser(ctx, services.DbService, req.email)
		if err != nil {
			zap.L().Fatal("User not found", zap.String("email", req.email), zap.Error(err))
		}
		trader, err := common.ResolveTrader(ctx, services.DbService, req.trader)
		if err != nil {
			zap.L().Fatal("Trader lookup failed", zap.Error(err))
		}
		allocation, err := common.ParseAmount("allocation", req.allocation)
		if err != nil {
			zap.L().Fatal("Invalid allocation", zap.Error(err))
		}
		ratio, err := common.ParseAmount("ratio", req.ratio)
		if err != nil {
			zap.L().Fatal("Invalid ratio", zap.Error(err))
		}

		actor := req.actor
		if actor == "" {
			actor = user.Email
		}
		result := ledger.FollowTrader(models.WithActor(ctx, actor), user.Id, trader.Id, allocation, ratio)
		if !common.PrintOutcome("Follow "+trader.Name, result.Outcome) {
			return false
		}
		printRelationship(result.Relationship)

	case "pause", "resume", "close":
		ctx = models.WithActor(ctx, req.actor)
		var result *models.FollowResult
		switch req.command {
		case "pause":
			result = ledger.PauseRelationship(ctx, req.id)
		case "resume":
			result = ledger.ResumeRelationship(ctx, req.id)
		default:
			result = ledger.CloseRelationship(ctx, req.id)
		}
		if !common.PrintOutcome(strings.ToUpper(req.command[:1])+req.command[1:]+" relationship", result.Outcome) {
			return false
		}
		printRelationship(result.Relationship)
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
