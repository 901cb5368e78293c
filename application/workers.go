package application

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// Worker names reported to the heartbeat gauge
const (
	WorkerSessions         = "sessions"
	WorkerSettlementSweep  = "settlement_sweep"
	WorkerIdempotencyPurge = "idempotency_purge"
)

// startTicker runs fn immediately and then on every tick until ctx ends or
// the returned cleanup function is called
func startTicker(ctx context.Context, name string, interval time.Duration, heartbeat Heartbeater, fn func(context.Context) error) func() {
	ticker := time.NewTicker(interval)
	stopChan := make(chan struct{})

	run := func() {
		if err := fn(ctx); err != nil {
			log.WithFields(log.Fields{
				"worker": name,
				"error":  err,
			}).Error("Worker run failed")
			return
		}
		if heartbeat != nil {
			heartbeat.Heartbeat(name)
		}
	}

	go func() {
		log.WithField("interval", interval).Infof("%s worker started", name)

		// Run immediately on startup
		run()

		for {
			select {
			case <-ctx.Done():
				log.Infof("%s worker shutting down (context cancelled)...", name)
				return
			case <-stopChan:
				log.Infof("%s worker shutting down (stop requested)...", name)
				return
			case <-ticker.C:
				run()
			}
		}
	}()

	// Return cleanup function
	return func() {
		ticker.Stop()
		close(stopChan)
	}
}

// StartSessionWorker closes, settles and resumes betting sessions on every tick
func StartSessionWorker(ctx context.Context, worker *SessionWorker, interval time.Duration, heartbeat Heartbeater) func() {
	return startTicker(ctx, WorkerSessions, interval, heartbeat, worker.Tick)
}

// StartSettlementSweepWorker sweeps deferred transfers on every tick
func StartSettlementSweepWorker(ctx context.Context, sweeper *SettlementSweeper, interval time.Duration, heartbeat Heartbeater) func() {
	return startTicker(ctx, WorkerSettlementSweep, interval, heartbeat, func(ctx context.Context) error {
		_, err := sweeper.Sweep(ctx)
		return err
	})
}

// StartIdempotencyPurgeWorker deletes expired idempotency claims on every tick
func StartIdempotencyPurgeWorker(ctx context.Context, store IdempotencyStore, interval time.Duration, heartbeat Heartbeater) func() {
	return startTicker(ctx, WorkerIdempotencyPurge, interval, heartbeat, func(ctx context.Context) error {
		purged, err := store.PurgeExpired(ctx)
		if err != nil {
			return err
		}
		if purged > 0 {
			log.WithField("purged", purged).Debug("Purged expired idempotency keys")
		}
		return nil
	})
}
