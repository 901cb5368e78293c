package application

import (
	"context"
	"fmt"
	"time"

	"settlement/domain/interfaces"
	"settlement/infrastructure/observability"

	log "github.com/sirupsen/logrus"
)

// commandHandler handles one slash command
type commandHandler func(ctx context.Context, intent Intent) (*Result, error)

// Engine turns intents into results. Every intent is claimed once by its ID
// and handled inside a guild scoped unit of work.
type Engine struct {
	uowFactory  UnitOfWorkFactory
	idempotency IdempotencyStore
	resolver    interfaces.OutcomeResolver
	collector   *Collector
	notifier    Notifier
	timeout     time.Duration
	commands    map[string]commandHandler
}

// NewEngine creates an intent engine. notifier may be nil when timed out
// prompts need no announcement.
func NewEngine(
	uowFactory UnitOfWorkFactory,
	idempotency IdempotencyStore,
	resolver interfaces.OutcomeResolver,
	collector *Collector,
	notifier Notifier,
	timeout time.Duration,
) *Engine {
	e := &Engine{
		uowFactory:  uowFactory,
		idempotency: idempotency,
		resolver:    resolver,
		collector:   collector,
		notifier:    notifier,
		timeout:     timeout,
	}
	e.commands = map[string]commandHandler{
		CommandBet:            e.handleBet,
		CommandResolve:        e.handleResolve,
		CommandBalance:        e.handleBalance,
		CommandHistory:        e.handleHistory,
		CommandWithdraw:       e.handleWithdraw,
		CommandMove:           e.handleMove,
		CommandPay:            e.handlePay,
		CommandTransfer:       e.handleTransfer,
		CommandCancelTransfer: e.handleCancelTransfer,
		CommandTransfers:      e.handleTransfers,
		CommandRounds:         e.handleRounds,
	}
	return e
}

// SetNotifier sets the notifier once the adapter exists
func (e *Engine) SetNotifier(notifier Notifier) {
	e.notifier = notifier
}

// AwaitingReply reports whether a free text message from the actor at this
// table answers a prompt
func (e *Engine) AwaitingReply(key CollectorKey) bool {
	return e.collector.IsWaiting(key)
}

// Handle processes one intent and always returns something to render
func (e *Engine) Handle(ctx context.Context, intent Intent) *Result {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	result, outcome := e.handle(ctx, intent)
	observability.GetMetrics().RecordIntent(string(intent.Kind), outcome, time.Since(start))
	return result
}

func (e *Engine) handle(ctx context.Context, intent Intent) (*Result, string) {
	fields := log.Fields{
		"intentID": intent.ID,
		"kind":     intent.Kind,
		"name":     intent.Name,
		"guildID":  intent.GuildID,
		"actorID":  intent.ActorID,
	}
	if intent.ID == "" || intent.ActorID == 0 {
		log.WithFields(fields).Warn("Dropping intent without ID or actor")
		return &Result{Message: genericFailure, Ephemeral: true}, observability.OutcomeRejected
	}

	key := "intent:" + intent.ID
	claimed, err := e.idempotency.Claim(ctx, key)
	if err != nil {
		log.WithFields(fields).WithError(err).Error("Failed to claim intent")
		return &Result{Message: genericFailure, Ephemeral: true}, observability.OutcomeFailed
	}
	if !claimed {
		log.WithFields(fields).Debug("Duplicate intent ignored")
		return &Result{Message: "That was already handled.", Ephemeral: true}, observability.OutcomeSkipped
	}

	result, err := e.route(ctx, intent)
	if err == nil {
		if result == nil {
			result = &Result{}
		}
		return result, observability.OutcomeOK
	}

	message, expected := userMessage(err)
	if expected {
		log.WithFields(fields).WithError(err).Debug("Intent rejected")
		return &Result{Message: message, Ephemeral: true}, observability.OutcomeRejected
	}

	// The outcome is unknown; references fence whatever already landed, so a
	// redelivery may try again
	if relErr := e.idempotency.Release(context.WithoutCancel(ctx), key); relErr != nil {
		log.WithFields(fields).WithError(relErr).Warn("Failed to release intent claim")
	}
	log.WithFields(fields).WithError(err).Error("Failed to handle intent")
	return &Result{Message: message, Ephemeral: true}, observability.OutcomeFailed
}

func (e *Engine) route(ctx context.Context, intent Intent) (*Result, error) {
	switch intent.Kind {
	case IntentKindCommand:
		handler, ok := e.commands[intent.Name]
		if !ok {
			return nil, NewUserError("Unknown command.", "unknown command "+intent.Name)
		}
		return handler(ctx, intent)
	case IntentKindButton, IntentKindSelect, IntentKindFreeText:
		return e.collector.Deliver(ctx, intent)
	}
	return nil, NewUserError("That action is not supported.", fmt.Sprintf("unsupported intent kind %q", intent.Kind))
}

// withServices runs fn in a unit of work scoped to the guild
func (e *Engine) withServices(ctx context.Context, guildID int64, fn func(*serviceSet) (*Result, error)) (*Result, error) {
	uow := e.uowFactory.CreateForGuild(guildID)
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin unit of work: %w", err)
	}

	result, err := fn(newServiceSet(uow, e.resolver))
	if err != nil {
		_ = uow.Rollback()
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit unit of work: %w", err)
	}
	return result, nil
}

// await registers a follow-up for the actor. A timed out prompt moved no
// money, so the notice only says nothing happened.
func (e *Engine) await(intent Intent, next Continuation, timeoutNotice string) time.Time {
	e.collector.Await(intent.Key(), next, func() {
		if e.notifier == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		defer cancel()
		if err := e.notifier.Notify(ctx, intent.ChannelID, intent.ActorID, timeoutNotice); err != nil {
			log.WithError(err).Warn("Failed to send prompt timeout notice")
		}
	})
	return time.Now().Add(e.collector.Timeout())
}
