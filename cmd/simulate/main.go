// Package main provides the simulate binary, which runs a scenario through the
// battle engine and prints every finished log with its summary as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/epika/internal/config"
	"github.com/cory-johannsen/epika/internal/observability"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "", "path to configuration file; empty = defaults and EPIKA_ environment")
	scenarioPath := flag.String("scenario", "content/scenarios/goblin_ambush.yaml", "path to scenario YAML file")
	seed := flag.Uint64("seed", 0, "seed of the first battle; 0 = scenario seed, or random when the scenario has none")
	runs := flag.Int("runs", 0, "number of battles to simulate; 0 = simulation.runs")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *runs > 0 {
		cfg.Simulation.Runs = *runs
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	reports, err := simulate(ctx, cfg, *scenarioPath, *seed, logger)
	if err != nil {
		logger.Fatal("simulation failed", zap.Error(err))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for _, r := range reports {
		if err := enc.Encode(r); err != nil {
			logger.Fatal("writing report", zap.Error(err))
		}
	}
	logger.Info("simulation complete",
		zap.Int("runs", len(reports)),
		zap.Duration("elapsed", time.Since(start)),
	)
}
