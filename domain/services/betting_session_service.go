package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"settlement/domain/entities"
	"settlement/domain/events"
	"settlement/domain/interfaces"
	"settlement/domain/resolver"

	log "github.com/sirupsen/logrus"
)

const (
	// openAttempts bounds the create-or-attach loop when a session terminates
	// between the insert conflict and the lookup
	openAttempts = 3

	recentLimitMax = 25
)

// BettingSessionService runs the session state machine
// open -> locked -> resolving -> resolved, or open -> expired when empty
type BettingSessionService struct {
	sessionRepo    interfaces.BettingSessionRepository
	wagerRepo      interfaces.WagerRepository
	ledger         interfaces.LedgerService
	resolver       interfaces.OutcomeResolver
	eventPublisher interfaces.EventPublisher
	now            func() time.Time
}

// NewBettingSessionService creates a new betting session service
func NewBettingSessionService(
	sessionRepo interfaces.BettingSessionRepository,
	wagerRepo interfaces.WagerRepository,
	ledger interfaces.LedgerService,
	resolver interfaces.OutcomeResolver,
	eventPublisher interfaces.EventPublisher,
) *BettingSessionService {
	return &BettingSessionService{
		sessionRepo:    sessionRepo,
		wagerRepo:      wagerRepo,
		ledger:         ledger,
		resolver:       resolver,
		eventPublisher: eventPublisher,
		now:            time.Now,
	}
}

// Join escrows the stake, then appends the wager. The escrow is refunded only
// once the wager is known to be absent.
func (s *BettingSessionService) Join(ctx context.Context, req interfaces.JoinRequest) (*interfaces.JoinResult, error) {
	if err := entities.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	if !req.Instrument.IsValid() {
		return nil, entities.NewValidationError("instrument", "unknown instrument %q", req.Instrument)
	}
	selection, err := s.resolver.NormalizeSelection(req.GameType, req.Selection, req.DiscordID)
	if err != nil {
		return nil, err
	}

	session, created, err := s.openOrAttach(ctx, req.ChannelID, req.GameType)
	if err != nil {
		return nil, err
	}
	if created {
		s.publishStateChange(session, "", entities.SessionStatusOpen)
	}

	existing, err := s.wagerRepo.GetBySessionAndActor(ctx, session.ID, req.DiscordID)
	if err != nil {
		return nil, entities.NewExternalServiceError("get wager", err)
	}
	if existing != nil {
		return nil, entities.ErrAlreadyJoined
	}

	escrowRef := entities.EscrowReference(session.ID, req.DiscordID, req.Attempt)
	escrow, err := s.ledger.Transfer(ctx, entities.LedgerMutation{
		DiscordID:       req.DiscordID,
		Instrument:      req.Instrument,
		Delta:           -req.Amount,
		TransactionType: entities.TransactionTypeWagerEscrow,
		Memo:            fmt.Sprintf("%s session %d", session.GameType, session.ID),
		Reference:       escrowRef,
		Metadata:        map[string]any{"session_id": session.ID, "selection": selection},
	})
	if errors.Is(err, entities.ErrAlreadyProcessed) {
		if req.Attempt == "" {
			return nil, entities.ErrAlreadyJoined
		}
		// This attempt escrowed before and no wager holds the stake
		log.WithFields(log.Fields{
			"sessionID": session.ID,
			"discordID": req.DiscordID,
			"reference": escrowRef,
		}).Warn("Redelivered join found escrow without wager, refunding")
		s.refundEscrow(ctx, session, req.DiscordID, req.Instrument, req.Amount, escrowRef)
		return nil, entities.ErrJoinRefunded
	}
	if err != nil {
		return nil, err
	}

	wager := &entities.Wager{
		SessionID:  session.ID,
		GuildID:    session.GuildID,
		DiscordID:  req.DiscordID,
		Amount:     req.Amount,
		Instrument: req.Instrument,
		Selection:  selection,
	}
	if appendErr := s.wagerRepo.Append(ctx, wager, s.now()); appendErr != nil {
		landed, err := s.confirmAppend(ctx, session.ID, req.DiscordID, appendErr)
		if err != nil {
			return nil, err
		}
		if landed == nil {
			s.refundEscrow(ctx, session, escrow.DiscordID, escrow.Instrument, -escrow.Delta, escrowRef)
			return nil, appendErr
		}
		wager = landed
	}

	session.WagerCount++
	log.WithFields(log.Fields{
		"sessionID": session.ID,
		"wagerID":   wager.ID,
		"discordID": req.DiscordID,
		"amount":    req.Amount,
		"selection": selection,
	}).Info("Wager placed")

	if err := s.eventPublisher.Publish(events.WagerPlacedEvent{
		SessionID: session.ID,
		WagerID:   wager.ID,
		GuildID:   session.GuildID,
		ChannelID: session.ChannelID,
		GameType:  session.GameType,
		DiscordID: req.DiscordID,
		Amount:    req.Amount,
		Selection: selection,
		ClosesAt:  session.ClosesAt,
	}); err != nil {
		log.WithError(err).Error("Failed to publish wager placed event")
	}

	return &interfaces.JoinResult{Session: session, Wager: wager, Created: created}, nil
}

// openOrAttach returns the table's open session, opening one if none is active
func (s *BettingSessionService) openOrAttach(ctx context.Context, channelID int64, gameType entities.GameType) (*entities.BettingSession, bool, error) {
	for attempt := 0; attempt < openAttempts; attempt++ {
		now := s.now()
		session, created, err := s.sessionRepo.GetOrCreateOpen(ctx, channelID, gameType, now, now.Add(gameType.Window()))
		if err != nil {
			return nil, false, entities.NewExternalServiceError("open session", err)
		}
		if session == nil {
			continue
		}
		if !session.AcceptsJoinsAt(now) {
			return nil, false, entities.ErrSessionLocked
		}
		return session, created, nil
	}
	return nil, false, entities.NewExternalServiceError("open session", fmt.Errorf("session for channel %d kept changing", channelID))
}

// confirmAppend decides whether a failed append left a wager behind. Locked
// sessions and duplicate actors are definite misses; any other failure is
// checked against the stored wager. A failed check keeps the escrow in place.
func (s *BettingSessionService) confirmAppend(ctx context.Context, sessionID, discordID int64, appendErr error) (*entities.Wager, error) {
	if errors.Is(appendErr, entities.ErrSessionLocked) || errors.Is(appendErr, entities.ErrAlreadyJoined) {
		return nil, nil
	}

	wager, err := s.wagerRepo.GetBySessionAndActor(ctx, sessionID, discordID)
	if err != nil {
		log.WithFields(log.Fields{
			"sessionID": sessionID,
			"discordID": discordID,
			"error":     err,
		}).Error("Failed to check wager after append failure, escrow left in place")
		return nil, entities.NewUnknownOutcomeError("append wager", appendErr)
	}
	if wager != nil {
		log.WithFields(log.Fields{
			"sessionID": sessionID,
			"wagerID":   wager.ID,
		}).Info("Wager landed despite append error")
	}
	return wager, nil
}

func (s *BettingSessionService) refundEscrow(ctx context.Context, session *entities.BettingSession, discordID int64, instrument entities.Instrument, amount int64, escrowRef string) {
	refund := entities.LedgerMutation{
		DiscordID:       discordID,
		Instrument:      instrument,
		Delta:           amount,
		TransactionType: entities.TransactionTypeWagerRefund,
		Memo:            fmt.Sprintf("%s session %d not joined", session.GameType, session.ID),
		Reference:       entities.EscrowRefundReference(escrowRef),
	}
	if _, err := s.ledger.Transfer(ctx, refund); err != nil && !errors.Is(err, entities.ErrAlreadyProcessed) {
		log.WithFields(log.Fields{
			"sessionID": session.ID,
			"discordID": discordID,
			"amount":    refund.Delta,
			"error":     err,
		}).Error("Failed to refund escrow of rejected wager")
		if pubErr := s.eventPublisher.Publish(events.CompensationFailedEvent{
			GuildID:    session.GuildID,
			DiscordID:  discordID,
			Instrument: instrument,
			Amount:     refund.Delta,
			Reference:  refund.Reference,
			Error:      err.Error(),
		}); pubErr != nil {
			log.WithError(pubErr).Error("Failed to publish compensation failed event")
		}
	}
}

// CloseWindow locks a session once its window elapsed, or expires it when
// nobody joined. Closing a session that is no longer open is a no-op.
func (s *BettingSessionService) CloseWindow(ctx context.Context, sessionID int64) (*entities.BettingSession, error) {
	return s.closeWindow(ctx, sessionID, false)
}

func (s *BettingSessionService) closeWindow(ctx context.Context, sessionID int64, force bool) (*entities.BettingSession, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsOpen() {
		return session, nil
	}

	now := s.now()
	if !force && !session.IsWindowClosed(now) {
		return session, nil
	}

	closed, err := s.sessionRepo.CloseWindow(ctx, sessionID, now)
	if err != nil {
		return nil, entities.NewExternalServiceError("close session window", err)
	}
	if closed == nil {
		// Someone else closed it
		return s.getSession(ctx, sessionID)
	}

	log.WithFields(log.Fields{
		"sessionID":  sessionID,
		"status":     closed.Status,
		"wagerCount": closed.WagerCount,
	}).Info("Session window closed")
	s.publishStateChange(closed, entities.SessionStatusOpen, closed.Status)
	return closed, nil
}

// ForceResolve closes the table's active session early and settles it
func (s *BettingSessionService) ForceResolve(ctx context.Context, channelID int64, gameType entities.GameType) (*entities.SessionSettlement, error) {
	session, err := s.sessionRepo.GetActive(ctx, channelID, gameType)
	if err != nil {
		return nil, entities.NewExternalServiceError("get active session", err)
	}
	if session == nil {
		return nil, entities.ErrSessionNotFound
	}

	session, err = s.closeWindow(ctx, session.ID, true)
	if err != nil {
		return nil, err
	}
	if session.Status == entities.SessionStatusExpired {
		return &entities.SessionSettlement{Session: session, Payouts: map[int64]int64{}}, nil
	}
	return s.Settle(ctx, session.ID)
}

// Settle pays out a locked or resolving session. A locked session gets a fresh
// draw that is stored before any credit; a resolving session replays the
// stored draw and pays only the wagers not yet settled. Terminal sessions are
// reported as ErrAlreadyProcessed without touching money.
func (s *BettingSessionService) Settle(ctx context.Context, sessionID int64) (*entities.SessionSettlement, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	switch session.Status {
	case entities.SessionStatusResolved, entities.SessionStatusExpired:
		return nil, entities.ErrAlreadyProcessed
	case entities.SessionStatusOpen:
		return nil, entities.NewValidationError("session", "session %d is still accepting wagers", sessionID)
	}

	wagers, err := s.wagerRepo.GetBySession(ctx, sessionID)
	if err != nil {
		return nil, entities.NewExternalServiceError("get session wagers", err)
	}
	session.Wagers = wagers

	resolution, err := s.resolution(ctx, session)
	if err != nil {
		return nil, err
	}

	settlement := &entities.SessionSettlement{
		Session:     session,
		Outcome:     resolution.Outcome,
		Payouts:     make(map[int64]int64, len(wagers)),
		TotalStaked: session.TotalStaked(),
	}

	for _, w := range wagers {
		payout, multiplier, err := resolution.PayoutFor(w)
		if err != nil {
			return nil, fmt.Errorf("failed to price wager %d: %w", w.ID, err)
		}
		settlement.Payouts[w.DiscordID] = payout
		settlement.TotalPaid += payout
		if w.IsSettled() {
			continue
		}

		if payout > 0 {
			_, err := s.ledger.Transfer(ctx, entities.LedgerMutation{
				DiscordID:       w.DiscordID,
				Instrument:      w.Instrument,
				Delta:           payout,
				TransactionType: entities.TransactionTypeWagerPayout,
				Memo:            fmt.Sprintf("%s session %d: %s", session.GameType, session.ID, resolution.Outcome.Label),
				Reference:       entities.PayoutReference(w.ID),
				Metadata:        map[string]any{"session_id": session.ID, "multiplier": multiplier.String()},
			})
			if err != nil && !errors.Is(err, entities.ErrAlreadyProcessed) {
				// Session stays resolving; the worker resumes it
				return nil, fmt.Errorf("failed to pay wager %d: %w", w.ID, err)
			}
		}

		if _, err := s.wagerRepo.MarkSettled(ctx, w.ID, multiplier, payout, s.now()); err != nil {
			return nil, entities.NewExternalServiceError("mark wager settled", err)
		}
	}

	resolved, err := s.sessionRepo.MarkResolved(ctx, sessionID, s.now())
	if err != nil {
		return nil, entities.NewExternalServiceError("mark session resolved", err)
	}
	if !resolved {
		return nil, entities.ErrAlreadyProcessed
	}
	session.Status = entities.SessionStatusResolved

	log.WithFields(log.Fields{
		"sessionID":   sessionID,
		"outcome":     resolution.Outcome.Value,
		"totalStaked": settlement.TotalStaked,
		"totalPaid":   settlement.TotalPaid,
	}).Info("Session resolved")

	s.publishStateChange(session, entities.SessionStatusResolving, entities.SessionStatusResolved)
	if err := s.eventPublisher.Publish(events.SessionResolvedEvent{
		SessionID:   session.ID,
		GuildID:     session.GuildID,
		ChannelID:   session.ChannelID,
		GameType:    session.GameType,
		Outcome:     resolution.Outcome,
		Payouts:     settlement.Payouts,
		TotalStaked: settlement.TotalStaked,
		TotalPaid:   settlement.TotalPaid,
	}); err != nil {
		log.WithError(err).Error("Failed to publish session resolved event")
	}

	return settlement, nil
}

// resolution draws the outcome of a locked session and persists it, or
// replays the persisted outcome of a resolving one
func (s *BettingSessionService) resolution(ctx context.Context, session *entities.BettingSession) (*resolver.Resolution, error) {
	if session.Status == entities.SessionStatusResolving {
		if session.Outcome == nil {
			return nil, fmt.Errorf("session %d is resolving without an outcome", session.ID)
		}
		return s.resolver.Replay(session.GameType, *session.Outcome, session.Wagers)
	}

	resolution, err := s.resolver.Resolve(session.GameType, session.Wagers)
	if err != nil {
		return nil, err
	}
	won, err := s.sessionRepo.BeginResolving(ctx, session.ID, resolution.Outcome)
	if err != nil {
		return nil, entities.NewExternalServiceError("begin resolving", err)
	}
	if !won {
		return nil, entities.ErrAlreadyProcessed
	}

	session.Status = entities.SessionStatusResolving
	session.Outcome = &resolution.Outcome
	s.publishStateChange(session, entities.SessionStatusLocked, entities.SessionStatusResolving)
	return resolution, nil
}

// GetActive returns the table's non-terminal session with its wagers
func (s *BettingSessionService) GetActive(ctx context.Context, channelID int64, gameType entities.GameType) (*entities.BettingSession, error) {
	session, err := s.sessionRepo.GetActive(ctx, channelID, gameType)
	if err != nil {
		return nil, entities.NewExternalServiceError("get active session", err)
	}
	if session == nil {
		return nil, entities.ErrSessionNotFound
	}
	wagers, err := s.wagerRepo.GetBySession(ctx, session.ID)
	if err != nil {
		return nil, entities.NewExternalServiceError("get session wagers", err)
	}
	session.Wagers = wagers
	return session, nil
}

// Recent returns the latest rounds played at a table, newest first
func (s *BettingSessionService) Recent(ctx context.Context, channelID int64, limit int) ([]*entities.BettingSession, error) {
	if limit <= 0 || limit > recentLimitMax {
		limit = recentLimitMax
	}
	sessions, err := s.sessionRepo.ListRecent(ctx, channelID, limit)
	if err != nil {
		return nil, entities.NewExternalServiceError("list recent sessions", err)
	}
	return sessions, nil
}

func (s *BettingSessionService) getSession(ctx context.Context, sessionID int64) (*entities.BettingSession, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, entities.NewExternalServiceError("get session", err)
	}
	if session == nil {
		return nil, entities.ErrSessionNotFound
	}
	return session, nil
}

func (s *BettingSessionService) publishStateChange(session *entities.BettingSession, from, to entities.SessionStatus) {
	if err := s.eventPublisher.Publish(events.SessionStateChangeEvent{
		SessionID: session.ID,
		GuildID:   session.GuildID,
		ChannelID: session.ChannelID,
		GameType:  session.GameType,
		OldStatus: from,
		NewStatus: to,
	}); err != nil {
		log.WithError(err).Error("Failed to publish session state change event")
	}
}
