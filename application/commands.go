package application

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"settlement/domain/entities"
	"settlement/domain/interfaces"
	"settlement/infrastructure/observability"
)

// Command names
const (
	CommandBet            = "bet"
	CommandResolve        = "resolve"
	CommandBalance        = "balance"
	CommandHistory        = "history"
	CommandWithdraw       = "withdraw"
	CommandMove           = "move"
	CommandPay            = "pay"
	CommandTransfer       = "transfer"
	CommandCancelTransfer = "cancel-transfer"
	CommandTransfers      = "transfers"
	CommandRounds         = "rounds"
)

const (
	defaultHistoryLimit = 10
	defaultRoundsLimit  = 5
)

// intentReference is the stable ledger reference of money moved by an intent
func intentReference(intent Intent) string {
	return "intent:" + intent.ID
}

func requiredAmount(intent Intent, name string) (int64, error) {
	amount, ok, err := intent.Int64Option(name)
	if err != nil {
		return 0, NewUserError("The amount must be a whole number.", fmt.Sprintf("bad %s option: %v", name, err))
	}
	if !ok {
		return 0, NewUserError("Please provide an amount.", "missing "+name+" option")
	}
	return amount, nil
}

func requiredUser(intent Intent, name string) (int64, error) {
	raw := intent.Option(name, "")
	if raw == "" {
		return 0, NewUserError("Please pick someone.", "missing "+name+" option")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, NewUserError("That user could not be found.", fmt.Sprintf("bad %s option %q", name, raw))
	}
	return id, nil
}

func instrumentOption(intent Intent, name, def string) (entities.Instrument, error) {
	return entities.ParseInstrument(intent.Option(name, def))
}

func (e *Engine) handleBet(ctx context.Context, intent Intent) (*Result, error) {
	gameType, err := entities.ParseGameType(intent.Option("game", ""))
	if err != nil {
		return nil, err
	}
	amount, err := requiredAmount(intent, "amount")
	if err != nil {
		return nil, err
	}
	instrument, err := instrumentOption(intent, "instrument", string(entities.InstrumentCash))
	if err != nil {
		return nil, err
	}

	return e.withServices(ctx, intent.GuildID, func(s *serviceSet) (*Result, error) {
		joined, err := s.sessions.Join(ctx, interfaces.JoinRequest{
			ChannelID:  intent.ChannelID,
			GameType:   gameType,
			DiscordID:  intent.ActorID,
			Amount:     amount,
			Instrument: instrument,
			Selection:  intent.Option("selection", ""),
			Attempt:    intentReference(intent),
		})
		if err != nil {
			return nil, err
		}
		return &Result{Message: renderJoin(joined, time.Now())}, nil
	})
}

func (e *Engine) handleResolve(ctx context.Context, intent Intent) (*Result, error) {
	gameType, err := entities.ParseGameType(intent.Option("game", ""))
	if err != nil {
		return nil, err
	}

	return e.withServices(ctx, intent.GuildID, func(s *serviceSet) (*Result, error) {
		settlement, err := s.sessions.ForceResolve(ctx, intent.ChannelID, gameType)
		if err != nil {
			return nil, err
		}
		if settlement.Session.Status == entities.SessionStatusResolved {
			observability.GetMetrics().RecordSessionSettled(string(gameType))
		}
		return &Result{Message: renderSettlement(settlement)}, nil
	})
}

func (e *Engine) handleBalance(ctx context.Context, intent Intent) (*Result, error) {
	return e.withServices(ctx, intent.GuildID, func(s *serviceSet) (*Result, error) {
		balances, err := s.ledger.Balances(ctx, intent.ActorID)
		if err != nil {
			return nil, err
		}
		return &Result{Message: renderBalances(balances), Ephemeral: true}, nil
	})
}

func (e *Engine) handleHistory(ctx context.Context, intent Intent) (*Result, error) {
	limit := defaultHistoryLimit
	if n, ok, err := intent.Int64Option("limit"); err == nil && ok && n > 0 {
		limit = int(n)
	}

	return e.withServices(ctx, intent.GuildID, func(s *serviceSet) (*Result, error) {
		entries, err := s.ledger.History(ctx, intent.ActorID, limit)
		if err != nil {
			return nil, err
		}
		return &Result{Message: renderHistory(entries), Ephemeral: true}, nil
	})
}

func (e *Engine) handleRounds(ctx context.Context, intent Intent) (*Result, error) {
	limit := defaultRoundsLimit
	if n, ok, err := intent.Int64Option("limit"); err == nil && ok && n > 0 {
		limit = int(n)
	}

	return e.withServices(ctx, intent.GuildID, func(s *serviceSet) (*Result, error) {
		sessions, err := s.sessions.Recent(ctx, intent.ChannelID, limit)
		if err != nil {
			return nil, err
		}
		return &Result{Message: renderRounds(sessions)}, nil
	})
}

func (e *Engine) handleWithdraw(ctx context.Context, intent Intent) (*Result, error) {
	amount, err := requiredAmount(intent, "amount")
	if err != nil {
		return nil, err
	}
	return e.move(ctx, intent, entities.InstrumentBank, entities.InstrumentCash, amount)
}

func (e *Engine) handleMove(ctx context.Context, intent Intent) (*Result, error) {
	from, err := instrumentOption(intent, "from", "")
	if err != nil {
		return nil, err
	}
	to, err := instrumentOption(intent, "to", "")
	if err != nil {
		return nil, err
	}
	amount, err := requiredAmount(intent, "amount")
	if err != nil {
		return nil, err
	}
	return e.move(ctx, intent, from, to, amount)
}

// move shifts money between two instruments of the actor, e.g. paying off
// credit from cash
func (e *Engine) move(ctx context.Context, intent Intent, from, to entities.Instrument, amount int64) (*Result, error) {
	return e.withServices(ctx, intent.GuildID, func(s *serviceSet) (*Result, error) {
		moved, err := s.ledger.Move(ctx, interfaces.MoveRequest{
			FromID:         intent.ActorID,
			FromInstrument: from,
			ToID:           intent.ActorID,
			ToInstrument:   to,
			Amount:         amount,
			Memo:           fmt.Sprintf("%s to %s", from, to),
			Reference:      intentReference(intent),
		})
		if err != nil {
			return nil, err
		}
		return &Result{Message: renderMove(moved, from, to, amount), Ephemeral: true}, nil
	})
}

func (e *Engine) handlePay(ctx context.Context, intent Intent) (*Result, error) {
	receiverID, err := requiredUser(intent, "user")
	if err != nil {
		return nil, err
	}
	amount, err := requiredAmount(intent, "amount")
	if err != nil {
		return nil, err
	}
	if receiverID == intent.ActorID {
		return nil, NewUserError("You can't pay yourself.", "self payment")
	}

	return e.withServices(ctx, intent.GuildID, func(s *serviceSet) (*Result, error) {
		_, err := s.ledger.Move(ctx, interfaces.MoveRequest{
			FromID:         intent.ActorID,
			FromInstrument: entities.InstrumentCash,
			ToID:           receiverID,
			ToInstrument:   entities.InstrumentCash,
			Amount:         amount,
			Memo:           intent.Option("reason", "payment"),
			Reference:      intentReference(intent),
			DebitType:      entities.TransactionTypeTransferOut,
			CreditType:     entities.TransactionTypeTransferIn,
		})
		if err != nil {
			return nil, err
		}
		return &Result{Message: renderPayment(intent.ActorID, receiverID, amount)}, nil
	})
}

func (e *Engine) handleTransfer(ctx context.Context, intent Intent) (*Result, error) {
	kind, err := entities.ParseTransferKind(intent.Option("kind", ""))
	if err != nil {
		return nil, err
	}

	req := interfaces.ScheduleRequest{
		Kind:      kind,
		SenderID:  intent.ActorID,
		Reason:    intent.Option("reason", ""),
		Reference: intentReference(intent),
	}
	if !kind.Route().ToSelf {
		if req.ReceiverID, err = requiredUser(intent, "user"); err != nil {
			return nil, err
		}
	}

	amount, ok, err := intent.Int64Option("amount")
	if err != nil {
		return nil, NewUserError("The amount must be a whole number.", fmt.Sprintf("bad amount option: %v", err))
	}
	if !ok {
		return e.askAmount(intent, req), nil
	}
	req.Amount = amount
	return e.continueTransfer(ctx, intent, req)
}

// askAmount waits for the amount as a free text reply
func (e *Engine) askAmount(intent Intent, req interfaces.ScheduleRequest) *Result {
	expires := e.await(intent, func(ctx context.Context, reply Intent) (*Result, error) {
		if reply.Kind != IntentKindFreeText {
			return nil, NewUserError("Reply with an amount to continue.", "expected free text amount")
		}
		amount, err := strconv.ParseInt(strings.ReplaceAll(strings.TrimSpace(reply.Text), ",", ""), 10, 64)
		if err != nil {
			return nil, NewUserError("That is not a whole number. Run the command again.", fmt.Sprintf("bad free text amount %q", reply.Text))
		}
		req.Amount = amount
		return e.continueTransfer(ctx, reply, req)
	}, fmt.Sprintf("Your %s transfer timed out waiting for an amount. Nothing was sent.", req.Kind))

	return &Result{
		Message:   fmt.Sprintf("How much do you want to send by %s? Reply with an amount.", req.Kind),
		Ephemeral: true,
		Prompt: &Prompt{
			Kind:    PromptKindFreeText,
			Text:    "Reply with an amount",
			Expires: expires,
		},
	}
}

// continueTransfer schedules the transfer, asking for confirmation first when
// the kind charges a fee
func (e *Engine) continueTransfer(ctx context.Context, intent Intent, req interfaces.ScheduleRequest) (*Result, error) {
	if req.Kind == entities.TransferKindPostal {
		return e.confirmTransfer(ctx, intent, req)
	}
	return e.scheduleTransfer(ctx, intent.GuildID, req)
}

func (e *Engine) confirmTransfer(ctx context.Context, intent Intent, req interfaces.ScheduleRequest) (*Result, error) {
	quote, err := e.withServices(ctx, intent.GuildID, func(s *serviceSet) (*Result, error) {
		transfer, err := s.transfers.Quote(req)
		if err != nil {
			return nil, err
		}
		return &Result{Message: renderQuote(transfer)}, nil
	})
	if err != nil {
		return nil, err
	}

	expires := e.await(intent, func(ctx context.Context, reply Intent) (*Result, error) {
		if reply.Kind != IntentKindButton || reply.Name != ButtonConfirm {
			return &Result{Message: "Transfer cancelled. Nothing was sent.", Ephemeral: true}, nil
		}
		return e.scheduleTransfer(ctx, reply.GuildID, req)
	}, "Your postal transfer was not confirmed in time. Nothing was sent.")

	quote.Ephemeral = true
	quote.Prompt = &Prompt{
		Kind: PromptKindConfirm,
		Text: "Confirm the transfer",
		Buttons: []Button{
			{CustomID: ButtonConfirm, Label: "Send"},
			{CustomID: ButtonCancel, Label: "Cancel", Danger: true},
		},
		Expires: expires,
	}
	return quote, nil
}

func (e *Engine) scheduleTransfer(ctx context.Context, guildID int64, req interfaces.ScheduleRequest) (*Result, error) {
	return e.withServices(ctx, guildID, func(s *serviceSet) (*Result, error) {
		transfer, err := s.transfers.Schedule(ctx, req)
		if err != nil {
			return nil, err
		}
		return &Result{Message: renderScheduled(transfer, time.Now())}, nil
	})
}

func (e *Engine) handleCancelTransfer(ctx context.Context, intent Intent) (*Result, error) {
	id, ok, err := intent.Int64Option("id")
	if err != nil || !ok {
		return nil, NewUserError("Please give the transfer number.", "missing or bad id option")
	}

	return e.withServices(ctx, intent.GuildID, func(s *serviceSet) (*Result, error) {
		transfer, err := s.transfers.Cancel(ctx, id, intent.ActorID)
		if err != nil {
			return nil, err
		}
		return &Result{Message: renderCancelled(transfer), Ephemeral: true}, nil
	})
}

func (e *Engine) handleTransfers(ctx context.Context, intent Intent) (*Result, error) {
	return e.withServices(ctx, intent.GuildID, func(s *serviceSet) (*Result, error) {
		transfers, err := s.transfers.ListPending(ctx, intent.ActorID)
		if err != nil {
			return nil, err
		}
		return &Result{Message: renderPending(transfers, time.Now()), Ephemeral: true}, nil
	})
}
