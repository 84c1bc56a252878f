// Package main wires together the schedule crawler service binary.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/fitsched/schedule-crawler/internal/app"
	"github.com/fitsched/schedule-crawler/internal/config"
	"github.com/fitsched/schedule-crawler/internal/logging"
	"github.com/fitsched/schedule-crawler/internal/metrics"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	metrics.Init()

	ctx := context.Background()
	application, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("application build failed", zap.Error(err))
	}

	if err := application.Run(ctx); err != nil {
		logger.Fatal("application run failed", zap.Error(err))
	}
}
