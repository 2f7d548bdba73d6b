package main

import (
	"flag"
	"log"
	"os"

	"StockWatch/internal/di"
	"StockWatch/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	serve := flag.Bool("serve", false, "run the admin API server instead of a one-shot batch pass")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s job=%s keep=%d", cfg.Environment, cfg.Watcher.Job, cfg.Watcher.Keep)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	if *serve {
		if err := app.Serve(); err != nil {
			log.Printf("app error: %v", err)
			os.Exit(1)
		}
		return
	}

	if err := app.RunOnce(); err != nil {
		log.Printf("run failed: %v", err)
		os.Exit(1)
	}
}
