// Command reconcile runs the fee status reconciliation once and exits. It is meant
// for cron-style deployments where the API's own scheduler is disabled.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/yigit/bursar/internal/bootstrap"
	"github.com/yigit/bursar/internal/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file (default configs/config.yaml)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, lgr, err := bootstrap.LoadConfigAndSetupLogger(*configPath)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}
	// Demo data belongs to the API process
	cfg.Ledger.SeedDemoData = false

	deps, err := bootstrap.BuildDependencies(ctx, cfg, lgr)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to setup dependencies")
		os.Exit(1)
	}
	defer deps.Close()

	result, err := deps.Reconciler.Reconcile(ctx)
	if err != nil {
		lgr.Error().Err(err).Msg("Status reconciliation failed")
		deps.Close()
		os.Exit(1)
	}

	lgr.Info().
		Int("scanned", result.Scanned).
		Int("updated", result.Updated).
		Int("skipped", result.Skipped).
		Bool("leaseHeld", result.LeaseHeld).
		Dur("took", result.CompletedAt.Sub(result.StartedAt)).
		Msg("Status reconciliation run complete")
}
