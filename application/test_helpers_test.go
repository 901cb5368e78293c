package application

import (
	"context"
	"sync"

	"settlement/domain/interfaces"
	"settlement/domain/testhelpers"

	"github.com/stretchr/testify/mock"
)

const (
	testGuildID   = int64(111222333)
	testChannelID = int64(444555666)
	testActorID   = int64(1001)
	testPeerID    = int64(2002)
)

// fakeUnitOfWork hands out the same mocks for every unit
type fakeUnitOfWork struct {
	accounts  *testhelpers.MockAccountRepository
	ledger    *testhelpers.MockLedgerRepository
	sessions  *testhelpers.MockBettingSessionRepository
	wagers    *testhelpers.MockWagerRepository
	transfers *testhelpers.MockDeferredTransferRepository
	events    *testhelpers.MockEventPublisher

	mu        sync.Mutex
	guilds    []int64
	commits   int
	rollbacks int
}

func newFakeUnitOfWork() *fakeUnitOfWork {
	events := &testhelpers.MockEventPublisher{}
	events.On("Publish", mock.Anything).Return(nil).Maybe()
	return &fakeUnitOfWork{
		accounts:  &testhelpers.MockAccountRepository{},
		ledger:    &testhelpers.MockLedgerRepository{},
		sessions:  &testhelpers.MockBettingSessionRepository{},
		wagers:    &testhelpers.MockWagerRepository{},
		transfers: &testhelpers.MockDeferredTransferRepository{},
		events:    events,
	}
}

func (u *fakeUnitOfWork) CreateForGuild(guildID int64) UnitOfWork {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.guilds = append(u.guilds, guildID)
	return u
}

func (u *fakeUnitOfWork) Begin(ctx context.Context) error { return nil }

func (u *fakeUnitOfWork) Commit() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.commits++
	return nil
}

func (u *fakeUnitOfWork) Rollback() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.rollbacks++
	return nil
}

func (u *fakeUnitOfWork) AccountRepository() interfaces.AccountRepository { return u.accounts }
func (u *fakeUnitOfWork) LedgerRepository() interfaces.LedgerRepository   { return u.ledger }
func (u *fakeUnitOfWork) BettingSessionRepository() interfaces.BettingSessionRepository {
	return u.sessions
}
func (u *fakeUnitOfWork) WagerRepository() interfaces.WagerRepository { return u.wagers }
func (u *fakeUnitOfWork) DeferredTransferRepository() interfaces.DeferredTransferRepository {
	return u.transfers
}
func (u *fakeUnitOfWork) EventBus() interfaces.EventPublisher { return u.events }

// memoryIdempotencyStore is an in-process IdempotencyStore
type memoryIdempotencyStore struct {
	mu       sync.Mutex
	claims   map[string]bool
	released []string
}

func newMemoryIdempotencyStore() *memoryIdempotencyStore {
	return &memoryIdempotencyStore{claims: make(map[string]bool)}
}

func (s *memoryIdempotencyStore) Claim(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claims[key] {
		return false, nil
	}
	s.claims[key] = true
	return true, nil
}

func (s *memoryIdempotencyStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claims, key)
	s.released = append(s.released, key)
	return nil
}

func (s *memoryIdempotencyStore) PurgeExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

// recordingNotifier captures notices
type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
	notified chan struct{}
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{notified: make(chan struct{}, 8)}
}

func (n *recordingNotifier) Notify(ctx context.Context, channelID, actorID int64, message string) error {
	n.mu.Lock()
	n.messages = append(n.messages, message)
	n.mu.Unlock()
	n.notified <- struct{}{}
	return nil
}
