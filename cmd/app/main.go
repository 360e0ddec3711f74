package main

import (
	"flag"
	"log"
	"os"

	"TrapFlow/internal/di"
	"TrapFlow/pkg/config"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config/config.yaml", "config file path")
	streamURL := flag.String("trade-stream-url", "", "trade stream WebSocket URL (overrides config)")
	storeURL := flag.String("store-url", "", "store backend URL, memory:// or redis://host:port/db (overrides config)")
	flag.Parse()

	// Load config; flags win over environment, environment over file
	cfg, err := config.Read(*configPath)
	if err != nil {
		log.Printf("config load failed: %v", err)
		os.Exit(1)
	}
	if *streamURL != "" {
		cfg.Stream.URL = *streamURL
	}
	if *storeURL != "" {
		cfg.Store.URL = *storeURL
	}
	if err := cfg.Finalize(); err != nil {
		log.Printf("config invalid: %v", err)
		os.Exit(1)
	}

	log.Printf("env=%s store=%s", cfg.Environment, cfg.Store.URL)

	// Wire DI: Initialize all dependencies
	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Printf("app initialization failed: %v", err)
		os.Exit(1)
	}

	// Run application (blocks until signal)
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
