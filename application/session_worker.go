package application

import (
	"context"
	"fmt"
	"time"

	"settlement/domain/entities"
	"settlement/domain/interfaces"
	"settlement/infrastructure/observability"

	log "github.com/sirupsen/logrus"
)

// SessionWorker drives sessions nobody is touching: it closes elapsed
// windows, settles locked sessions and resumes sessions left resolving
type SessionWorker struct {
	uowFactory UnitOfWorkFactory
	resolver   interfaces.OutcomeResolver
	batchSize  int
	now        func() time.Time
}

// NewSessionWorker creates a new session worker
func NewSessionWorker(uowFactory UnitOfWorkFactory, resolver interfaces.OutcomeResolver, batchSize int) *SessionWorker {
	return &SessionWorker{
		uowFactory: uowFactory,
		resolver:   resolver,
		batchSize:  batchSize,
		now:        time.Now,
	}
}

// Tick processes every session that needs the worker once
func (w *SessionWorker) Tick(ctx context.Context) error {
	uow := w.uowFactory.CreateForGuild(0)
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin unit of work: %w", err)
	}
	due, err := uow.BettingSessionRepository().ListDue(ctx, w.now(), w.batchSize)
	uow.Rollback()
	if err != nil {
		return fmt.Errorf("failed to list due sessions: %w", err)
	}

	for _, session := range due {
		if err := w.advance(ctx, session); err != nil && !entities.IsBenign(err) {
			log.WithFields(log.Fields{
				"sessionID": session.ID,
				"guildID":   session.GuildID,
				"status":    session.Status,
				"error":     err,
			}).Error("Failed to advance betting session")
		}
	}
	return nil
}

// advance moves one session as far as it can go
func (w *SessionWorker) advance(ctx context.Context, session *entities.BettingSession) error {
	uow := w.uowFactory.CreateForGuild(session.GuildID)
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin unit of work: %w", err)
	}
	svc := newServiceSet(uow, w.resolver)

	if session.Status == entities.SessionStatusOpen {
		closed, err := svc.sessions.CloseWindow(ctx, session.ID)
		if err != nil {
			_ = uow.Rollback()
			return err
		}
		if closed.Status != entities.SessionStatusLocked {
			return uow.Commit()
		}
	}

	settlement, err := svc.sessions.Settle(ctx, session.ID)
	if err != nil {
		_ = uow.Rollback()
		return err
	}
	observability.GetMetrics().RecordSessionSettled(string(settlement.Session.GameType))
	return uow.Commit()
}
