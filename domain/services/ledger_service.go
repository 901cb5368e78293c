package services

import (
	"context"
	"errors"
	"fmt"

	"settlement/config"
	"settlement/domain/entities"
	"settlement/domain/events"
	"settlement/domain/interfaces"
	"settlement/domain/utils"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	// creditAttempts bounds retries of a credit whose landing could not be confirmed
	creditAttempts = 3

	historyLimitMax = 50
)

// LedgerService is the only writer of account balances. Each call is one
// conditional statement; composite moves compensate instead of rolling back.
type LedgerService struct {
	accountRepo     interfaces.AccountRepository
	ledgerRepo      interfaces.LedgerRepository
	eventPublisher  interfaces.EventPublisher
	startingBalance int64
	creditLimit     int64
}

// NewLedgerService creates a new ledger service
func NewLedgerService(
	accountRepo interfaces.AccountRepository,
	ledgerRepo interfaces.LedgerRepository,
	eventPublisher interfaces.EventPublisher,
) *LedgerService {
	cfg := config.Get()
	return &LedgerService{
		accountRepo:     accountRepo,
		ledgerRepo:      ledgerRepo,
		eventPublisher:  eventPublisher,
		startingBalance: cfg.StartingBalance,
		creditLimit:     cfg.DefaultCreditLimit,
	}
}

// Transfer applies one mutation. Debits fail with ErrInsufficientFunds when
// the balance or the unused credit does not cover them. A storage failure is
// checked against the reference before it is surfaced; credits are retried.
func (s *LedgerService) Transfer(ctx context.Context, mutation entities.LedgerMutation) (*entities.LedgerEntry, error) {
	if err := mutation.Validate(); err != nil {
		return nil, err
	}
	if err := s.ensureAccount(ctx, mutation.DiscordID); err != nil {
		return nil, err
	}

	entry, err := s.apply(ctx, mutation)
	if err != nil {
		return nil, err
	}
	utils.PublishBalanceChange(s.eventPublisher, entry)

	if overflow := creditOverflow(mutation, entry); overflow > 0 {
		// Repayment beyond the outstanding debt lands in cash
		spill := entities.LedgerMutation{
			DiscordID:       mutation.DiscordID,
			Instrument:      entities.InstrumentCash,
			Delta:           overflow,
			TransactionType: mutation.TransactionType,
			Memo:            mutation.Memo,
		}
		if mutation.Reference != "" {
			spill.Reference = mutation.Reference + ":overflow"
		}
		spillEntry, err := s.apply(ctx, spill)
		if err != nil && !errors.Is(err, entities.ErrAlreadyProcessed) {
			s.reportCompensationFailure(entry.GuildID, spill, err)
			return entry, fmt.Errorf("failed to credit repayment overflow: %w", err)
		}
		utils.PublishBalanceChange(s.eventPublisher, spillEntry)
	}

	return entry, nil
}

// apply runs the mutation against storage and resolves unknown outcomes
// through the fencing reference
func (s *LedgerService) apply(ctx context.Context, mutation entities.LedgerMutation) (*entities.LedgerEntry, error) {
	attempts := 1
	if mutation.Delta > 0 && mutation.Reference != "" {
		attempts = creditAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		entry, err := s.ledgerRepo.ApplyDelta(ctx, mutation)
		if err == nil {
			return entry, nil
		}
		if !entities.IsExternal(err) || mutation.Reference == "" {
			return nil, err
		}

		lastErr = err
		landed, lookupErr := s.ledgerRepo.GetByReference(ctx, mutation.Reference)
		if lookupErr != nil {
			log.WithFields(log.Fields{
				"reference": mutation.Reference,
				"error":     lookupErr,
			}).Error("Failed to check ledger fence after storage failure")
			return nil, entities.NewUnknownOutcomeError("apply ledger delta", err)
		}
		if landed != nil {
			log.WithField("reference", mutation.Reference).Info("Ledger mutation landed despite storage error")
			return landed, nil
		}

		log.WithFields(log.Fields{
			"reference": mutation.Reference,
			"attempt":   attempt,
			"error":     err,
		}).Warn("Ledger mutation did not land")
	}
	return nil, lastErr
}

// creditOverflow is the part of a credit-line repayment the debt could not absorb
func creditOverflow(mutation entities.LedgerMutation, entry *entities.LedgerEntry) int64 {
	if !mutation.Instrument.IsCredit() || mutation.Delta <= 0 || entry == nil {
		return 0
	}
	repaid := entry.BalanceBefore - entry.BalanceAfter
	return mutation.Delta - repaid
}

// Move debits the source and credits the destination. When the credit is
// known not to have landed the debit is reversed before the error is returned;
// when its outcome is unknown the debit stays for the fence to settle.
func (s *LedgerService) Move(ctx context.Context, req interfaces.MoveRequest) (*interfaces.MoveResult, error) {
	if err := entities.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	if req.FromID == req.ToID && req.FromInstrument.StorageInstrument() == req.ToInstrument.StorageInstrument() {
		return nil, entities.NewValidationError("destination", "source and destination are the same balance")
	}

	reference := req.Reference
	if reference == "" {
		reference = "move:" + uuid.NewString()
	}
	debitType, creditType := req.DebitType, req.CreditType
	if debitType == "" {
		debitType = entities.TransactionTypeInternal
	}
	if creditType == "" {
		creditType = debitType
	}

	debit, err := s.Transfer(ctx, entities.LedgerMutation{
		DiscordID:       req.FromID,
		Instrument:      req.FromInstrument,
		Delta:           -req.Amount,
		TransactionType: debitType,
		Memo:            req.Memo,
		Reference:       reference + ":debit",
		Metadata:        map[string]any{"to": req.ToID, "to_instrument": string(req.ToInstrument)},
	})
	if err != nil {
		return nil, err
	}

	creditMutation := entities.LedgerMutation{
		DiscordID:       req.ToID,
		Instrument:      req.ToInstrument,
		Delta:           req.Amount,
		TransactionType: creditType,
		Memo:            req.Memo,
		Reference:       reference + ":credit",
		Metadata:        map[string]any{"from": req.FromID, "from_instrument": string(req.FromInstrument)},
	}
	credit, err := s.Transfer(ctx, creditMutation)
	if err == nil || errors.Is(err, entities.ErrAlreadyProcessed) {
		return &interfaces.MoveResult{Debit: debit, Credit: credit}, nil
	}
	if credit != nil || errors.Is(err, entities.ErrOutcomeUnknown) {
		log.WithFields(log.Fields{
			"reference": reference,
			"from":      req.FromID,
			"to":        req.ToID,
			"amount":    req.Amount,
			"error":     err,
		}).Error("Move credit may have landed, debit left in place")
		return nil, fmt.Errorf("failed to confirm destination credit: %w", err)
	}

	log.WithFields(log.Fields{
		"reference": reference,
		"from":      req.FromID,
		"to":        req.ToID,
		"amount":    req.Amount,
		"error":     err,
	}).Warn("Move credit failed, compensating debit")

	if compErr := s.Compensate(ctx, debit, reference); compErr != nil {
		return nil, fmt.Errorf("failed to credit destination and to restore source: %w", errors.Join(err, compErr))
	}
	return nil, fmt.Errorf("failed to credit destination, source restored: %w", err)
}

// Compensate reverses a landed debit. A failure is published for manual
// reconciliation since the money is then out of every account.
func (s *LedgerService) Compensate(ctx context.Context, debit *entities.LedgerEntry, reference string) error {
	mutation := entities.LedgerMutation{
		DiscordID:       debit.DiscordID,
		Instrument:      debit.Instrument,
		Delta:           -debit.Delta,
		TransactionType: entities.TransactionTypeCompensation,
		Memo:            "reversal of " + debit.ReferenceOrEmpty(),
		Reference:       reference + ":compensation",
	}

	entry, err := s.Transfer(ctx, mutation)
	if err == nil || errors.Is(err, entities.ErrAlreadyProcessed) {
		if entry != nil {
			log.WithFields(log.Fields{
				"reference": reference,
				"discordID": debit.DiscordID,
				"amount":    mutation.Delta,
			}).Info("Compensated debit")
		}
		return nil
	}

	s.reportCompensationFailure(debit.GuildID, mutation, err)
	return err
}

func (s *LedgerService) reportCompensationFailure(guildID int64, mutation entities.LedgerMutation, err error) {
	log.WithFields(log.Fields{
		"guildID":    guildID,
		"discordID":  mutation.DiscordID,
		"instrument": mutation.Instrument,
		"amount":     mutation.Delta,
		"reference":  mutation.Reference,
		"error":      err,
	}).Error("Compensation failed, manual reconciliation required")

	event := events.CompensationFailedEvent{
		GuildID:    guildID,
		DiscordID:  mutation.DiscordID,
		Instrument: mutation.Instrument,
		Amount:     mutation.Delta,
		Reference:  mutation.Reference,
		Error:      err.Error(),
	}
	if pubErr := s.eventPublisher.Publish(event); pubErr != nil {
		log.WithError(pubErr).Error("Failed to publish compensation failed event")
	}
}

// Balances returns an actor's balances, opening the account if needed
func (s *LedgerService) Balances(ctx context.Context, discordID int64) (*entities.Balances, error) {
	if err := s.ensureAccount(ctx, discordID); err != nil {
		return nil, err
	}

	balances, err := s.accountRepo.GetBalances(ctx, discordID)
	if err != nil {
		return nil, entities.NewExternalServiceError("get balances", err)
	}
	if balances == nil {
		return nil, fmt.Errorf("account %d missing after creation", discordID)
	}
	return balances, nil
}

// History returns an actor's latest ledger entries
func (s *LedgerService) History(ctx context.Context, discordID int64, limit int) ([]*entities.LedgerEntry, error) {
	if limit <= 0 || limit > historyLimitMax {
		limit = historyLimitMax
	}
	entries, err := s.ledgerRepo.GetHistory(ctx, discordID, limit)
	if err != nil {
		return nil, entities.NewExternalServiceError("get ledger history", err)
	}
	return entries, nil
}

func (s *LedgerService) ensureAccount(ctx context.Context, discordID int64) error {
	initial, err := s.accountRepo.EnsureAccount(ctx, discordID, s.startingBalance, s.creditLimit)
	if err != nil {
		return entities.NewExternalServiceError("ensure account", err)
	}
	if initial != nil {
		log.WithFields(log.Fields{
			"guildID":   initial.GuildID,
			"discordID": discordID,
			"balance":   initial.BalanceAfter,
		}).Info("Opened account")
		utils.PublishBalanceChange(s.eventPublisher, initial)
	}
	return nil
}
