package cmd

import (
	"context"
	"fmt"
	"log"

	"settlement/application"
	"settlement/config"
	"settlement/database"
	"settlement/domain/resolver"
	"settlement/infrastructure"
)

// RunSweep runs one settlement sweep and exits. Events raised by the sweep
// are dropped; receivers see their money on the next /balance.
func RunSweep(ctx context.Context) error {
	cfg := config.Get()
	ConfigureLogging(cfg)

	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	uowFactory := infrastructure.NewUnitOfWorkFactory(db, infrastructure.NewNoopEventPublisher())
	rng, err := resolver.NewSecureSource()
	if err != nil {
		return err
	}
	sweeper := application.NewSettlementSweeper(uowFactory, resolver.NewDefault(rng), cfg.SweepBatchSize)

	report, err := sweeper.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	log.Printf("Sweep finished: %d released, %d resettled, %d skipped, %d failed",
		report.Released, report.Resettled, report.Skipped, report.Failed)
	return nil
}
