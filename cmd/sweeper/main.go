package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"minem-be/internal/config"
	"minem-be/internal/db"
	"minem-be/internal/logger"
	"minem-be/internal/notification"
	"minem-be/internal/order"
	"minem-be/internal/stock"

	"go.uber.org/zap"
)

func main() {
	hours := flag.Float64("hours", 0, "cancel unpaid orders older than this many hours (default: ORDER_TTL)")
	dryRun := flag.Bool("dry-run", false, "report matching orders without canceling them")
	flag.Parse()

	cfg := config.LoadConfig()

	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database := db.InitDB(cfg)
	defer database.Close()

	cutoff := cfg.OrderTTL
	if *hours > 0 {
		cutoff = time.Duration(*hours * float64(time.Hour))
	}

	notifier := notification.NewEmailSender(
		cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.EmailFrom,
	)
	repo := order.NewRepository(database, stock.NewLedger())
	sweeper := order.NewSweeper(repo, notifier)

	res, err := sweeper.Sweep(context.Background(), cutoff, *dryRun)
	if err != nil {
		logger.L().Error("sweep failed", zap.Error(err))
		os.Exit(1)
	}

	fmt.Printf("matched=%d canceled=%d restored_items=%d failed=%d\n",
		res.Matched, res.Canceled, res.RestoredItems, res.Failed)

	if res.Failed > 0 {
		os.Exit(1)
	}
}
