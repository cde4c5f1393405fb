package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"fxstream/config"
	"fxstream/internal/oanda/collector"
	"fxstream/internal/oanda/heartbeat"
	"fxstream/logger"

	"go.uber.org/zap"
)

func main() {
	configDir := flag.String("config", ".", "directory holding config.yaml")
	flag.Parse()

	// viper config
	cfg, err := config.Load(*configDir)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// zap logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := collector.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to build collector", zap.Error(err))
	}

	err = c.Run(ctx)

	var fc *heartbeat.FatalCondition
	switch {
	case err == nil:
		log.Info("collector stopped")
	case errors.As(err, &fc):
		log.Error("collector stopped on fatal condition", zap.Error(err))
		log.Sync()
		os.Exit(1)
	default:
		log.Fatal("collector failed", zap.Error(err))
	}
}
