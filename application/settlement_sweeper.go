package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"settlement/domain/entities"
	"settlement/domain/interfaces"
	"settlement/infrastructure/observability"

	log "github.com/sirupsen/logrus"
)

// SweepReport counts what one sweep did
type SweepReport struct {
	Released  int
	Resettled int
	Skipped   int // Another sweep got there first
	Failed    int
}

// SettlementSweeper releases due deferred transfers and retries the
// settlement leg of transfers that were flipped but never marked settled
type SettlementSweeper struct {
	uowFactory UnitOfWorkFactory
	resolver   interfaces.OutcomeResolver
	batchSize  int
	now        func() time.Time
}

// NewSettlementSweeper creates a new settlement sweeper
func NewSettlementSweeper(uowFactory UnitOfWorkFactory, resolver interfaces.OutcomeResolver, batchSize int) *SettlementSweeper {
	return &SettlementSweeper{
		uowFactory: uowFactory,
		resolver:   resolver,
		batchSize:  batchSize,
		now:        time.Now,
	}
}

// Sweep processes one batch of due and unsettled transfers. Each transfer is
// handled in its own guild scoped unit of work so one failure does not stop
// the rest.
func (s *SettlementSweeper) Sweep(ctx context.Context) (*SweepReport, error) {
	due, unsettled, err := s.listWork(ctx)
	if err != nil {
		return nil, err
	}

	report := &SweepReport{}
	for _, transfer := range unsettled {
		err := s.processTransfer(ctx, transfer, func(svc *serviceSet) error {
			return svc.transfers.Resettle(ctx, transfer)
		})
		report.record(err, &report.Resettled)
	}
	for _, transfer := range due {
		err := s.processTransfer(ctx, transfer, func(svc *serviceSet) error {
			return svc.transfers.Release(ctx, transfer)
		})
		report.record(err, &report.Released)
	}

	metrics := observability.GetMetrics()
	metrics.RecordSweepItems(observability.SweepItemReleased, report.Released)
	metrics.RecordSweepItems(observability.SweepItemResettled, report.Resettled)
	metrics.RecordSweepItems(observability.SweepItemFailed, report.Failed)

	if len(due)+len(unsettled) > 0 {
		log.WithFields(log.Fields{
			"due":       len(due),
			"unsettled": len(unsettled),
			"released":  report.Released,
			"resettled": report.Resettled,
			"skipped":   report.Skipped,
			"failed":    report.Failed,
		}).Info("Completed settlement sweep")
	}
	return report, nil
}

// listWork reads both work lists across all guilds
func (s *SettlementSweeper) listWork(ctx context.Context) ([]*entities.DeferredTransfer, []*entities.DeferredTransfer, error) {
	uow := s.uowFactory.CreateForGuild(0)
	if err := uow.Begin(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to begin unit of work: %w", err)
	}
	defer uow.Rollback()

	due, err := uow.DeferredTransferRepository().ListDue(ctx, s.now(), s.batchSize)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list due transfers: %w", err)
	}
	unsettled, err := uow.DeferredTransferRepository().ListUnsettled(ctx, s.batchSize)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list unsettled transfers: %w", err)
	}
	return due, unsettled, nil
}

func (s *SettlementSweeper) processTransfer(ctx context.Context, transfer *entities.DeferredTransfer, fn func(*serviceSet) error) error {
	uow := s.uowFactory.CreateForGuild(transfer.GuildID)
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin unit of work: %w", err)
	}

	if err := fn(newServiceSet(uow, s.resolver)); err != nil {
		_ = uow.Rollback()
		if !entities.IsBenign(err) {
			log.WithFields(log.Fields{
				"transferID": transfer.ID,
				"guildID":    transfer.GuildID,
				"status":     transfer.Status,
				"error":      err,
			}).Error("Failed to settle deferred transfer")
		}
		return err
	}
	return uow.Commit()
}

func (r *SweepReport) record(err error, succeeded *int) {
	switch {
	case err == nil:
		*succeeded++
	case errors.Is(err, entities.ErrAlreadyProcessed):
		r.Skipped++
	default:
		r.Failed++
	}
}
