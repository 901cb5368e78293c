package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"settlement/domain/entities"
	"settlement/domain/resolver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type engineFixture struct {
	uow      *fakeUnitOfWork
	store    *memoryIdempotencyStore
	notifier *recordingNotifier
	engine   *Engine
}

func newEngineFixture(promptTimeout time.Duration) *engineFixture {
	f := &engineFixture{
		uow:      newFakeUnitOfWork(),
		store:    newMemoryIdempotencyStore(),
		notifier: newRecordingNotifier(),
	}
	f.engine = NewEngine(
		f.uow,
		f.store,
		resolver.NewDefault(resolver.NewSeededSource([32]byte{7})),
		NewCollector(promptTimeout),
		f.notifier,
		5*time.Second,
	)
	return f
}

func (f *engineFixture) expectAccounts() {
	f.uow.accounts.On("EnsureAccount", mock.Anything, mock.Anything, int64(10000), int64(50000)).Return(nil, nil)
}

func command(id, name string, options map[string]string) Intent {
	return Intent{
		ID:        id,
		Kind:      IntentKindCommand,
		GuildID:   testGuildID,
		ChannelID: testChannelID,
		ActorID:   testActorID,
		Name:      name,
		Options:   options,
		Received:  time.Now(),
	}
}

func followUp(id string, kind IntentKind, name, text string) Intent {
	return Intent{
		ID:        id,
		Kind:      kind,
		GuildID:   testGuildID,
		ChannelID: testChannelID,
		ActorID:   testActorID,
		Name:      name,
		Text:      text,
		Received:  time.Now(),
	}
}

func debitOf(discordID, delta int64) any {
	return mock.MatchedBy(func(m entities.LedgerMutation) bool {
		return m.DiscordID == discordID && m.Delta == delta
	})
}

func TestEngine_Balance(t *testing.T) {
	f := newEngineFixture(time.Minute)
	f.expectAccounts()
	f.uow.accounts.On("GetBalances", mock.Anything, testActorID).Return(&entities.Balances{
		GuildID:     testGuildID,
		DiscordID:   testActorID,
		Cash:        1500,
		Bank:        250000,
		CreditLimit: 50000,
	}, nil).Once()

	result := f.engine.Handle(context.Background(), command("evt-balance", CommandBalance, nil))

	assert.Contains(t, result.Message, "1,500")
	assert.Contains(t, result.Message, "250,000")
	assert.True(t, result.Ephemeral)
	assert.Equal(t, []int64{testGuildID}, f.uow.guilds)
	assert.Equal(t, 1, f.uow.commits)
}

func TestEngine_DuplicateIntentIsHandledOnce(t *testing.T) {
	f := newEngineFixture(time.Minute)
	f.expectAccounts()
	f.uow.accounts.On("GetBalances", mock.Anything, testActorID).Return(&entities.Balances{CreditLimit: 50000}, nil).Once()

	intent := command("evt-dup", CommandBalance, nil)
	f.engine.Handle(context.Background(), intent)
	second := f.engine.Handle(context.Background(), intent)

	assert.Equal(t, "That was already handled.", second.Message)
	f.uow.accounts.AssertExpectations(t)
}

func TestEngine_Rejections(t *testing.T) {
	tests := []struct {
		name        string
		intent      Intent
		setupMocks  func(f *engineFixture)
		wantMessage string
		wantRelease bool
	}{
		{
			name:        "unknown command",
			intent:      command("evt-unknown", "launder", nil),
			wantMessage: "Unknown command.",
		},
		{
			name:        "stale button",
			intent:      followUp("evt-stale", IntentKindButton, ButtonConfirm, ""),
			wantMessage: "This prompt has expired. Run the command again.",
		},
		{
			name:        "pay without amount",
			intent:      command("evt-noamount", CommandPay, map[string]string{"user": "2002"}),
			wantMessage: "Please provide an amount.",
		},
		{
			name:        "pay yourself",
			intent:      command("evt-self", CommandPay, map[string]string{"user": "1001", "amount": "5"}),
			wantMessage: "You can't pay yourself.",
		},
		{
			name:   "insufficient funds keeps the claim",
			intent: command("evt-broke", CommandPay, map[string]string{"user": "2002", "amount": "500"}),
			setupMocks: func(f *engineFixture) {
				f.expectAccounts()
				f.uow.ledger.On("ApplyDelta", mock.Anything, debitOf(testActorID, -500)).Return(nil, entities.ErrInsufficientFunds)
			},
			wantMessage: "You don't have enough funds for that.",
		},
		{
			name:   "unexpected failure releases the claim",
			intent: command("evt-boom", CommandPay, map[string]string{"user": "2002", "amount": "500"}),
			setupMocks: func(f *engineFixture) {
				f.expectAccounts()
				f.uow.ledger.On("ApplyDelta", mock.Anything, debitOf(testActorID, -500)).Return(nil, errors.New("connection reset"))
			},
			wantMessage: genericFailure,
			wantRelease: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEngineFixture(time.Minute)
			if tt.setupMocks != nil {
				tt.setupMocks(f)
			}

			result := f.engine.Handle(context.Background(), tt.intent)

			assert.Equal(t, tt.wantMessage, result.Message)
			assert.True(t, result.Ephemeral)
			if tt.wantRelease {
				assert.Equal(t, []string{"intent:" + tt.intent.ID}, f.store.released)
			} else {
				assert.Empty(t, f.store.released)
			}
			f.uow.ledger.AssertExpectations(t)
		})
	}
}

func TestEngine_Pay(t *testing.T) {
	f := newEngineFixture(time.Minute)
	f.expectAccounts()
	f.uow.ledger.On("ApplyDelta", mock.Anything, mock.MatchedBy(func(m entities.LedgerMutation) bool {
		return m.DiscordID == testActorID && m.Delta == -750 && m.Reference == "intent:evt-pay:debit" &&
			m.TransactionType == entities.TransactionTypeTransferOut
	})).Return(&entities.LedgerEntry{GuildID: testGuildID, DiscordID: testActorID, Delta: -750}, nil).Once()
	f.uow.ledger.On("ApplyDelta", mock.Anything, mock.MatchedBy(func(m entities.LedgerMutation) bool {
		return m.DiscordID == testPeerID && m.Delta == 750 && m.Reference == "intent:evt-pay:credit" &&
			m.TransactionType == entities.TransactionTypeTransferIn
	})).Return(&entities.LedgerEntry{GuildID: testGuildID, DiscordID: testPeerID, Delta: 750}, nil).Once()

	result := f.engine.Handle(context.Background(), command("evt-pay", CommandPay, map[string]string{"user": "2002", "amount": "750"}))

	assert.Equal(t, "💸 <@1001> paid <@2002> **750**.", result.Message)
	f.uow.ledger.AssertExpectations(t)
}

func TestEngine_PostalTransferNeedsConfirmation(t *testing.T) {
	f := newEngineFixture(time.Minute)
	f.expectAccounts()
	f.uow.ledger.On("ApplyDelta", mock.Anything, debitOf(testActorID, -1050)).
		Return(&entities.LedgerEntry{GuildID: testGuildID, DiscordID: testActorID, Delta: -1050}, nil).Once()
	f.uow.transfers.On("Create", mock.Anything, mock.MatchedBy(func(t *entities.DeferredTransfer) bool {
		return t.Kind == entities.TransferKindPostal && t.ReceiverID == testPeerID && t.Fee == 50
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*entities.DeferredTransfer).ID = 7
	}).Return(nil).Once()

	prompt := f.engine.Handle(context.Background(), command("evt-post", CommandTransfer, map[string]string{
		"kind": "postal", "user": "2002", "amount": "1000",
	}))
	require.NotNil(t, prompt.Prompt)
	assert.Equal(t, PromptKindConfirm, prompt.Prompt.Kind)
	assert.Contains(t, prompt.Message, "Fee: 50")
	f.uow.ledger.AssertNotCalled(t, "ApplyDelta", mock.Anything, mock.Anything)

	confirmed := f.engine.Handle(context.Background(), followUp("evt-post-confirm", IntentKindButton, ButtonConfirm, ""))
	assert.Contains(t, confirmed.Message, "Transfer #7")
	f.uow.ledger.AssertExpectations(t)
	f.uow.transfers.AssertExpectations(t)
}

func TestEngine_PostalTransferCancelledMovesNothing(t *testing.T) {
	f := newEngineFixture(time.Minute)

	f.engine.Handle(context.Background(), command("evt-post2", CommandTransfer, map[string]string{
		"kind": "postal", "user": "2002", "amount": "1000",
	}))
	result := f.engine.Handle(context.Background(), followUp("evt-post2-cancel", IntentKindButton, ButtonCancel, ""))

	assert.Equal(t, "Transfer cancelled. Nothing was sent.", result.Message)
	f.uow.ledger.AssertNotCalled(t, "ApplyDelta", mock.Anything, mock.Anything)
}

func TestEngine_TransferAsksForMissingAmount(t *testing.T) {
	f := newEngineFixture(time.Minute)
	f.expectAccounts()
	f.uow.ledger.On("ApplyDelta", mock.Anything, debitOf(testActorID, -2500)).
		Return(&entities.LedgerEntry{GuildID: testGuildID, DiscordID: testActorID, Delta: -2500}, nil).Once()
	f.uow.transfers.On("Create", mock.Anything, mock.MatchedBy(func(t *entities.DeferredTransfer) bool {
		return t.Kind == entities.TransferKindDeposit && t.ReceiverID == testActorID && t.Amount == 2500
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*entities.DeferredTransfer).ID = 9
	}).Return(nil).Once()

	prompt := f.engine.Handle(context.Background(), command("evt-dep", CommandTransfer, map[string]string{"kind": "deposit"}))
	require.NotNil(t, prompt.Prompt)
	assert.Equal(t, PromptKindFreeText, prompt.Prompt.Kind)
	assert.True(t, f.engine.AwaitingReply(Intent{GuildID: testGuildID, ChannelID: testChannelID, ActorID: testActorID}.Key()))

	result := f.engine.Handle(context.Background(), followUp("msg-1", IntentKindFreeText, "", "2,500"))
	assert.Contains(t, result.Message, "Deposit #9")
	f.uow.transfers.AssertExpectations(t)
}

func TestEngine_PromptTimeoutNotifies(t *testing.T) {
	f := newEngineFixture(20 * time.Millisecond)

	f.engine.Handle(context.Background(), command("evt-slow", CommandTransfer, map[string]string{
		"kind": "postal", "user": "2002", "amount": "1000",
	}))

	select {
	case <-f.notifier.notified:
	case <-time.After(time.Second):
		t.Fatal("no timeout notice")
	}
	f.notifier.mu.Lock()
	defer f.notifier.mu.Unlock()
	assert.Equal(t, []string{"Your postal transfer was not confirmed in time. Nothing was sent."}, f.notifier.messages)
	f.uow.ledger.AssertNotCalled(t, "ApplyDelta", mock.Anything, mock.Anything)
}

func TestEngine_RoundsListsTableHistory(t *testing.T) {
	f := newEngineFixture(time.Minute)
	opened := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	f.uow.sessions.On("ListRecent", mock.Anything, testChannelID, 3).Return([]*entities.BettingSession{
		{ID: 9, GameType: entities.GameTypeCrash, Status: entities.SessionStatusOpen, WagerCount: 1, OpenedAt: opened},
		{ID: 8, GameType: entities.GameTypeRoulette, Status: entities.SessionStatusResolved, WagerCount: 4, OpenedAt: opened,
			Outcome: &entities.SessionOutcome{Value: "17", Label: "17 black"}},
		{ID: 7, GameType: entities.GameTypeRaffle, Status: entities.SessionStatusExpired, OpenedAt: opened},
	}, nil).Once()

	result := f.engine.Handle(context.Background(), command("evt-rounds", CommandRounds, map[string]string{"limit": "3"}))

	assert.Equal(t, "🎲 Recent rounds\n"+
		"#9 crash `03-14 12:00` 1 bets, open\n"+
		"#8 roulette `03-14 12:00` 4 bets, 17 black\n"+
		"#7 raffle `03-14 12:00` 0 bets, expired", result.Message)
	assert.False(t, result.Ephemeral)
	f.uow.sessions.AssertExpectations(t)
}

func TestEngine_RoundsEmptyTable(t *testing.T) {
	f := newEngineFixture(time.Minute)
	f.uow.sessions.On("ListRecent", mock.Anything, testChannelID, defaultRoundsLimit).Return(nil, nil).Once()

	result := f.engine.Handle(context.Background(), command("evt-rounds-empty", CommandRounds, nil))

	assert.Equal(t, "No rounds have been played at this table.", result.Message)
	f.uow.sessions.AssertExpectations(t)
}
