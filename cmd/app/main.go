package main

import (
	"flag"
	"log"
	"os"

	"NiftyPulse/internal/di"
	"NiftyPulse/pkg/config"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config/config.yaml", "config file path")
	mode := flag.String("mode", "", "ingestion engine override: poll or live")
	flag.Parse()

	// Load config
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *mode != "" {
		cfg.Mode = *mode
		if err := cfg.Validate(); err != nil {
			log.Fatalf("invalid -mode: %v", err)
		}
	}

	log.Printf("env=%s mode=%s provider=%s storage=%s", cfg.Environment, cfg.Mode, cfg.Feed.Provider, cfg.Storage.Backend)

	// Wire DI: Initialize all dependencies
	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	// Run application (blocks until signal or run_duration)
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
