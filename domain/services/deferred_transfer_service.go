package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"settlement/config"
	"settlement/domain/entities"
	"settlement/domain/events"
	"settlement/domain/interfaces"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// DeferredTransferService debits senders up front and releases the receiving
// leg exactly once at maturity. The status flip is the concurrency guard; the
// settled marker makes the credit after the flip retryable.
type DeferredTransferService struct {
	transferRepo       interfaces.DeferredTransferRepository
	ledger             interfaces.LedgerService
	eventPublisher     interfaces.EventPublisher
	postalFeeBps       int64
	investmentYieldBps int64
	now                func() time.Time
}

// NewDeferredTransferService creates a new deferred transfer service
func NewDeferredTransferService(
	transferRepo interfaces.DeferredTransferRepository,
	ledger interfaces.LedgerService,
	eventPublisher interfaces.EventPublisher,
) *DeferredTransferService {
	cfg := config.Get()
	return &DeferredTransferService{
		transferRepo:       transferRepo,
		ledger:             ledger,
		eventPublisher:     eventPublisher,
		postalFeeBps:       cfg.PostalFeeBps,
		investmentYieldBps: cfg.InvestmentYieldBps,
		now:                time.Now,
	}
}

// Quote validates a request and prices it without touching money
func (s *DeferredTransferService) Quote(req interfaces.ScheduleRequest) (*entities.DeferredTransfer, error) {
	if err := entities.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	if _, err := entities.ParseTransferKind(string(req.Kind)); err != nil {
		return nil, err
	}
	if req.SenderID <= 0 {
		return nil, entities.NewValidationError("sender", "missing sender")
	}

	route := req.Kind.Route()
	receiverID := req.ReceiverID
	if route.ToSelf {
		receiverID = req.SenderID
	} else if receiverID <= 0 || receiverID == req.SenderID {
		return nil, entities.NewValidationError("receiver", "pick someone other than yourself")
	}

	reference := uuid.New()
	if req.Reference != "" {
		// Same originating event, same transfer
		reference = uuid.NewSHA1(uuid.NameSpaceOID, []byte(req.Reference))
	}

	transfer := &entities.DeferredTransfer{
		Reference:          reference,
		Kind:               req.Kind,
		SenderID:           req.SenderID,
		SenderInstrument:   route.SenderInstrument,
		ReceiverID:         receiverID,
		ReceiverInstrument: route.ReceiverInstrument,
		Amount:             req.Amount,
		Payout:             req.Amount,
		Reason:             req.Reason,
		ReleaseAt:          s.now().Add(route.Delay),
		Status:             entities.TransferStatusPending,
	}

	switch req.Kind {
	case entities.TransferKindPostal:
		transfer.Fee = entities.ApplyBps(req.Amount, s.postalFeeBps)
	case entities.TransferKindInvestment:
		transfer.Payout = req.Amount + entities.ApplyBps(req.Amount, s.investmentYieldBps)
	}
	if transfer.TotalDebit() > entities.MaxAmount {
		return nil, entities.NewValidationError("amount", "must be at most %d including fees", entities.MaxAmount)
	}
	return transfer, nil
}

// Schedule debits the sender and records the pending transfer. The debit is
// refunded only once the record is known to be absent.
func (s *DeferredTransferService) Schedule(ctx context.Context, req interfaces.ScheduleRequest) (*entities.DeferredTransfer, error) {
	transfer, err := s.Quote(req)
	if err != nil {
		return nil, err
	}

	debit, err := s.ledger.Transfer(ctx, entities.LedgerMutation{
		DiscordID:       transfer.SenderID,
		Instrument:      transfer.SenderInstrument,
		Delta:           -transfer.TotalDebit(),
		TransactionType: entities.TransactionTypeDeferredDebit,
		Memo:            fmt.Sprintf("%s to %d", transfer.Kind, transfer.ReceiverID),
		Reference:       transfer.DebitReference(),
		Metadata:        map[string]any{"kind": string(transfer.Kind), "fee": transfer.Fee},
	})
	if errors.Is(err, entities.ErrAlreadyProcessed) {
		existing, lookupErr := s.transferRepo.GetByReference(ctx, transfer.Reference)
		if lookupErr != nil {
			return nil, entities.NewExternalServiceError("get deferred transfer", lookupErr)
		}
		if existing == nil {
			// An earlier delivery debited the sender but never recorded the transfer
			log.WithField("reference", transfer.Reference).Warn("Debit found without deferred transfer, refunding sender")
			s.refund(ctx, transfer, transfer.GuildID)
		}
		return existing, entities.ErrAlreadyProcessed
	}
	if err != nil {
		return nil, err
	}

	if createErr := s.transferRepo.Create(ctx, transfer); createErr != nil {
		recorded, lookupErr := s.transferRepo.GetByReference(ctx, transfer.Reference)
		if lookupErr != nil {
			log.WithFields(log.Fields{
				"reference": transfer.Reference,
				"sender":    transfer.SenderID,
				"error":     lookupErr,
			}).Error("Failed to check deferred transfer after create failure, debit left in place")
			return nil, entities.NewUnknownOutcomeError("create deferred transfer", createErr)
		}
		if recorded == nil {
			log.WithFields(log.Fields{
				"reference": transfer.Reference,
				"sender":    transfer.SenderID,
				"error":     createErr,
			}).Error("Failed to record deferred transfer, refunding sender")
			s.refund(ctx, transfer, debit.GuildID)
			return nil, entities.NewExternalServiceError("create deferred transfer", createErr)
		}
		log.WithField("reference", transfer.Reference).Info("Deferred transfer recorded despite create error")
		transfer = recorded
	}

	log.WithFields(log.Fields{
		"transferID": transfer.ID,
		"kind":       transfer.Kind,
		"sender":     transfer.SenderID,
		"receiver":   transfer.ReceiverID,
		"amount":     transfer.Amount,
		"fee":        transfer.Fee,
		"releaseAt":  transfer.ReleaseAt,
	}).Info("Deferred transfer scheduled")

	if err := s.eventPublisher.Publish(events.TransferScheduledEvent{TransferEvent: events.NewTransferEvent(transfer)}); err != nil {
		log.WithError(err).Error("Failed to publish transfer scheduled event")
	}
	return transfer, nil
}

func (s *DeferredTransferService) refund(ctx context.Context, transfer *entities.DeferredTransfer, guildID int64) {
	mutation := entities.LedgerMutation{
		DiscordID:       transfer.SenderID,
		Instrument:      transfer.SenderInstrument,
		Delta:           transfer.TotalDebit(),
		TransactionType: entities.TransactionTypeDeferredRefund,
		Memo:            fmt.Sprintf("%s not scheduled", transfer.Kind),
		Reference:       transfer.RefundReference(),
	}
	if _, err := s.ledger.Transfer(ctx, mutation); err != nil && !errors.Is(err, entities.ErrAlreadyProcessed) {
		if pubErr := s.eventPublisher.Publish(events.CompensationFailedEvent{
			GuildID:    guildID,
			DiscordID:  mutation.DiscordID,
			Instrument: mutation.Instrument,
			Amount:     mutation.Delta,
			Reference:  mutation.Reference,
			Error:      err.Error(),
		}); pubErr != nil {
			log.WithError(pubErr).Error("Failed to publish compensation failed event")
		}
	}
}

// Release flips a due transfer to released and credits the receiver. Only
// the caller that wins the flip credits.
func (s *DeferredTransferService) Release(ctx context.Context, transfer *entities.DeferredTransfer) error {
	now := s.now()
	if !transfer.IsDue(now) {
		return entities.NewValidationError("transfer", "transfer %d is not due until %s", transfer.ID, transfer.ReleaseAt.Format(time.RFC3339))
	}

	flipped, err := s.transferRepo.Transition(ctx, transfer.ID, entities.TransferStatusPending, entities.TransferStatusReleased, now)
	if err != nil {
		return entities.NewExternalServiceError("release deferred transfer", err)
	}
	if !flipped {
		return entities.ErrAlreadyProcessed
	}
	transfer.Status = entities.TransferStatusReleased
	transfer.ReleasedAt = &now

	return s.settle(ctx, transfer)
}

// Resettle retries the credit or refund of a transfer that was flipped but
// never marked settled
func (s *DeferredTransferService) Resettle(ctx context.Context, transfer *entities.DeferredTransfer) error {
	if !transfer.NeedsSettlement() {
		return entities.ErrAlreadyProcessed
	}
	return s.settle(ctx, transfer)
}

// settle applies the money side of a flipped transfer. The ledger reference
// keeps a repeated call from crediting twice.
func (s *DeferredTransferService) settle(ctx context.Context, transfer *entities.DeferredTransfer) error {
	var mutation entities.LedgerMutation
	switch transfer.Status {
	case entities.TransferStatusReleased:
		mutation = entities.LedgerMutation{
			DiscordID:       transfer.ReceiverID,
			Instrument:      transfer.ReceiverInstrument,
			Delta:           transfer.Payout,
			TransactionType: entities.TransactionTypeDeferredRelease,
			Memo:            fmt.Sprintf("%s from %d", transfer.Kind, transfer.SenderID),
			Reference:       transfer.CreditReference(),
			Metadata:        map[string]any{"transfer_id": transfer.ID},
		}
	case entities.TransferStatusCancelled:
		mutation = entities.LedgerMutation{
			DiscordID:       transfer.SenderID,
			Instrument:      transfer.SenderInstrument,
			Delta:           transfer.TotalDebit(),
			TransactionType: entities.TransactionTypeDeferredRefund,
			Memo:            fmt.Sprintf("%s cancelled", transfer.Kind),
			Reference:       transfer.RefundReference(),
			Metadata:        map[string]any{"transfer_id": transfer.ID},
		}
	default:
		return fmt.Errorf("transfer %d is %s, nothing to settle", transfer.ID, transfer.Status)
	}

	if _, err := s.ledger.Transfer(ctx, mutation); err != nil && !errors.Is(err, entities.ErrAlreadyProcessed) {
		log.WithFields(log.Fields{
			"transferID": transfer.ID,
			"status":     transfer.Status,
			"error":      err,
		}).Error("Failed to settle deferred transfer, will retry")
		return fmt.Errorf("failed to settle transfer %d: %w", transfer.ID, err)
	}

	now := s.now()
	if _, err := s.transferRepo.MarkSettled(ctx, transfer.ID, now); err != nil {
		// The credit stands; the next sweep sees the fence and only marks
		return entities.NewExternalServiceError("mark deferred transfer settled", err)
	}
	transfer.SettledAt = &now

	log.WithFields(log.Fields{
		"transferID": transfer.ID,
		"status":     transfer.Status,
		"amount":     mutation.Delta,
		"discordID":  mutation.DiscordID,
	}).Info("Deferred transfer settled")

	var event events.Event
	if transfer.Status == entities.TransferStatusReleased {
		event = events.TransferReleasedEvent{TransferEvent: events.NewTransferEvent(transfer)}
	} else {
		event = events.TransferCancelledEvent{TransferEvent: events.NewTransferEvent(transfer)}
	}
	if err := s.eventPublisher.Publish(event); err != nil {
		log.WithError(err).Error("Failed to publish transfer event")
	}
	return nil
}

// Cancel flips a pending transfer to cancelled and refunds the sender,
// including any fee. Only the sender may cancel.
func (s *DeferredTransferService) Cancel(ctx context.Context, transferID, actorID int64) (*entities.DeferredTransfer, error) {
	transfer, err := s.transferRepo.GetByID(ctx, transferID)
	if err != nil {
		return nil, entities.NewExternalServiceError("get deferred transfer", err)
	}
	if transfer == nil {
		return nil, entities.ErrTransferNotFound
	}
	if transfer.SenderID != actorID {
		return nil, entities.NewValidationError("transfer", "only the sender can cancel transfer %d", transferID)
	}
	if err := cancelState(transfer.Status); err != nil {
		return transfer, err
	}

	now := s.now()
	flipped, err := s.transferRepo.Transition(ctx, transfer.ID, entities.TransferStatusPending, entities.TransferStatusCancelled, now)
	if err != nil {
		return nil, entities.NewExternalServiceError("cancel deferred transfer", err)
	}
	if !flipped {
		// Lost a race with a sweep or a second cancel
		current, err := s.transferRepo.GetByID(ctx, transferID)
		if err != nil {
			return nil, entities.NewExternalServiceError("get deferred transfer", err)
		}
		if current == nil {
			return nil, entities.ErrTransferNotFound
		}
		return current, cancelState(current.Status)
	}
	transfer.Status = entities.TransferStatusCancelled
	transfer.CancelledAt = &now

	if err := s.settle(ctx, transfer); err != nil {
		return transfer, err
	}
	return transfer, nil
}

// cancelState maps the status of a transfer to the error a cancel gets
func cancelState(status entities.TransferStatus) error {
	switch status {
	case entities.TransferStatusReleased:
		return entities.ErrAlreadyReleased
	case entities.TransferStatusCancelled:
		return entities.ErrAlreadyProcessed
	}
	return nil
}

// ListPending returns an actor's pending transfers
func (s *DeferredTransferService) ListPending(ctx context.Context, senderID int64) ([]*entities.DeferredTransfer, error) {
	transfers, err := s.transferRepo.ListPendingBySender(ctx, senderID)
	if err != nil {
		return nil, entities.NewExternalServiceError("list pending transfers", err)
	}
	return transfers, nil
}
