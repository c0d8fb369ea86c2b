package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"streamhub/internal/config"
	"streamhub/internal/engine"
	"streamhub/internal/logging"

	_ "streamhub/sink/database"
	_ "streamhub/sink/file"
	_ "streamhub/sink/forward"
)

func main() {
	cfgPath := flag.String("config", "streamhub.yml", "path to the service config file")
	flag.Parse()

	logging.InitFromEnv()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Configure(logging.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, err := engine.Bootstrap(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}

	if err := e.Run(ctx); err != nil {
		log.Fatalf("engine: %v", err)
	}
}
