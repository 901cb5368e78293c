package testhelpers

import (
	"context"
	"time"

	"settlement/domain/entities"
	"settlement/domain/events"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockAccountRepository is a mock implementation of AccountRepository
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) EnsureAccount(ctx context.Context, discordID int64, startingBalance, creditLimit int64) (*entities.LedgerEntry, error) {
	args := m.Called(ctx, discordID, startingBalance, creditLimit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.LedgerEntry), args.Error(1)
}

func (m *MockAccountRepository) GetBalances(ctx context.Context, discordID int64) (*entities.Balances, error) {
	args := m.Called(ctx, discordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Balances), args.Error(1)
}

// MockLedgerRepository is a mock implementation of LedgerRepository
type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) ApplyDelta(ctx context.Context, mutation entities.LedgerMutation) (*entities.LedgerEntry, error) {
	args := m.Called(ctx, mutation)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.LedgerEntry), args.Error(1)
}

func (m *MockLedgerRepository) GetByReference(ctx context.Context, reference string) (*entities.LedgerEntry, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.LedgerEntry), args.Error(1)
}

func (m *MockLedgerRepository) GetHistory(ctx context.Context, discordID int64, limit int) ([]*entities.LedgerEntry, error) {
	args := m.Called(ctx, discordID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.LedgerEntry), args.Error(1)
}

// MockBettingSessionRepository is a mock implementation of BettingSessionRepository
type MockBettingSessionRepository struct {
	mock.Mock
}

func (m *MockBettingSessionRepository) GetOrCreateOpen(ctx context.Context, channelID int64, gameType entities.GameType, openedAt, closesAt time.Time) (*entities.BettingSession, bool, error) {
	args := m.Called(ctx, channelID, gameType, openedAt, closesAt)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*entities.BettingSession), args.Bool(1), args.Error(2)
}

func (m *MockBettingSessionRepository) GetByID(ctx context.Context, id int64) (*entities.BettingSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.BettingSession), args.Error(1)
}

func (m *MockBettingSessionRepository) GetActive(ctx context.Context, channelID int64, gameType entities.GameType) (*entities.BettingSession, error) {
	args := m.Called(ctx, channelID, gameType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.BettingSession), args.Error(1)
}

func (m *MockBettingSessionRepository) CloseWindow(ctx context.Context, id int64, now time.Time) (*entities.BettingSession, error) {
	args := m.Called(ctx, id, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.BettingSession), args.Error(1)
}

func (m *MockBettingSessionRepository) BeginResolving(ctx context.Context, id int64, outcome entities.SessionOutcome) (bool, error) {
	args := m.Called(ctx, id, outcome)
	return args.Bool(0), args.Error(1)
}

func (m *MockBettingSessionRepository) MarkResolved(ctx context.Context, id int64, now time.Time) (bool, error) {
	args := m.Called(ctx, id, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockBettingSessionRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*entities.BettingSession, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.BettingSession), args.Error(1)
}

func (m *MockBettingSessionRepository) ListRecent(ctx context.Context, channelID int64, limit int) ([]*entities.BettingSession, error) {
	args := m.Called(ctx, channelID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.BettingSession), args.Error(1)
}

// MockWagerRepository is a mock implementation of WagerRepository
type MockWagerRepository struct {
	mock.Mock
}

func (m *MockWagerRepository) Append(ctx context.Context, wager *entities.Wager, now time.Time) error {
	args := m.Called(ctx, wager, now)
	return args.Error(0)
}

func (m *MockWagerRepository) GetBySession(ctx context.Context, sessionID int64) ([]*entities.Wager, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Wager), args.Error(1)
}

func (m *MockWagerRepository) GetBySessionAndActor(ctx context.Context, sessionID, discordID int64) (*entities.Wager, error) {
	args := m.Called(ctx, sessionID, discordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Wager), args.Error(1)
}

func (m *MockWagerRepository) MarkSettled(ctx context.Context, wagerID int64, multiplier decimal.Decimal, payout int64, now time.Time) (bool, error) {
	args := m.Called(ctx, wagerID, multiplier, payout, now)
	return args.Bool(0), args.Error(1)
}

// MockDeferredTransferRepository is a mock implementation of DeferredTransferRepository
type MockDeferredTransferRepository struct {
	mock.Mock
}

func (m *MockDeferredTransferRepository) Create(ctx context.Context, transfer *entities.DeferredTransfer) error {
	args := m.Called(ctx, transfer)
	return args.Error(0)
}

func (m *MockDeferredTransferRepository) GetByID(ctx context.Context, id int64) (*entities.DeferredTransfer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.DeferredTransfer), args.Error(1)
}

func (m *MockDeferredTransferRepository) GetByReference(ctx context.Context, reference uuid.UUID) (*entities.DeferredTransfer, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.DeferredTransfer), args.Error(1)
}

func (m *MockDeferredTransferRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*entities.DeferredTransfer, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.DeferredTransfer), args.Error(1)
}

func (m *MockDeferredTransferRepository) ListUnsettled(ctx context.Context, limit int) ([]*entities.DeferredTransfer, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.DeferredTransfer), args.Error(1)
}

func (m *MockDeferredTransferRepository) ListPendingBySender(ctx context.Context, senderID int64) ([]*entities.DeferredTransfer, error) {
	args := m.Called(ctx, senderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.DeferredTransfer), args.Error(1)
}

func (m *MockDeferredTransferRepository) Transition(ctx context.Context, id int64, from, to entities.TransferStatus, now time.Time) (bool, error) {
	args := m.Called(ctx, id, from, to, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockDeferredTransferRepository) MarkSettled(ctx context.Context, id int64, now time.Time) (bool, error) {
	args := m.Called(ctx, id, now)
	return args.Bool(0), args.Error(1)
}

// MockIdempotencyRepository is a mock implementation of IdempotencyRepository
type MockIdempotencyRepository struct {
	mock.Mock
}

func (m *MockIdempotencyRepository) Claim(ctx context.Context, key string, now, expiresAt time.Time) (bool, error) {
	args := m.Called(ctx, key, now, expiresAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyRepository) Release(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockIdempotencyRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) error {
	args := m.Called(event)
	return args.Error(0)
}
