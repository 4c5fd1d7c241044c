package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"NiftyPulse/internal/di"
	"NiftyPulse/pkg/config"
	applogger "NiftyPulse/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	symbol := flag.String("symbol", "ALL", "ticker to backfill, or ALL")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	tool, err := di.InitializeBackfill(cfg)
	if err != nil {
		log.Fatalf("backfill initialization failed: %v", err)
	}
	defer tool.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := tool.UseCase.Run(ctx, *symbol)
	if err != nil {
		tool.Logger.Error("backfill failed", applogger.String("symbol", *symbol), applogger.Error(err))
		tool.Close()
		os.Exit(1)
	}
	tool.Logger.Info("backfill complete", applogger.String("symbol", *symbol), applogger.Int("bars", n))
}
