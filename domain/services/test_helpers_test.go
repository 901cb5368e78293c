package services

import (
	"context"
	"testing"
	"time"

	"settlement/config"
	"settlement/domain/entities"
	"settlement/domain/events"
	"settlement/domain/testhelpers"

	"github.com/stretchr/testify/mock"
)

const (
	testGuildID   = int64(555555555)
	testChannelID = int64(987654321)
	testUser1ID   = int64(100)
	testUser2ID   = int64(200)
	testUser3ID   = int64(300)
)

var testNow = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

// testMocks aggregates the mocks the services depend on
type testMocks struct {
	AccountRepo    *testhelpers.MockAccountRepository
	LedgerRepo     *testhelpers.MockLedgerRepository
	SessionRepo    *testhelpers.MockBettingSessionRepository
	WagerRepo      *testhelpers.MockWagerRepository
	TransferRepo   *testhelpers.MockDeferredTransferRepository
	Ledger         *testhelpers.MockLedgerService
	EventPublisher *testhelpers.MockEventPublisher
}

func newTestMocks(t *testing.T) *testMocks {
	config.SetTestConfig(config.NewTestConfig())
	t.Cleanup(config.ResetConfig)

	return &testMocks{
		AccountRepo:    &testhelpers.MockAccountRepository{},
		LedgerRepo:     &testhelpers.MockLedgerRepository{},
		SessionRepo:    &testhelpers.MockBettingSessionRepository{},
		WagerRepo:      &testhelpers.MockWagerRepository{},
		TransferRepo:   &testhelpers.MockDeferredTransferRepository{},
		Ledger:         &testhelpers.MockLedgerService{},
		EventPublisher: &testhelpers.MockEventPublisher{},
	}
}

func (m *testMocks) assertAll(t *testing.T) {
	m.AccountRepo.AssertExpectations(t)
	m.LedgerRepo.AssertExpectations(t)
	m.SessionRepo.AssertExpectations(t)
	m.WagerRepo.AssertExpectations(t)
	m.TransferRepo.AssertExpectations(t)
	m.Ledger.AssertExpectations(t)
	m.EventPublisher.AssertExpectations(t)
}

// expectEvent expects one published event of the given type
func (m *testMocks) expectEvent(eventType events.EventType) *mock.Call {
	return m.EventPublisher.On("Publish", mock.MatchedBy(func(e events.Event) bool {
		return e.Type() == eventType
	})).Return(nil)
}

// expectAnyEvents accepts any published event
func (m *testMocks) expectAnyEvents() {
	m.EventPublisher.On("Publish", mock.Anything).Return(nil).Maybe()
}

func (m *testMocks) expectExistingAccount(discordID int64) {
	m.AccountRepo.On("EnsureAccount", mock.Anything, discordID, int64(10000), int64(50000)).Return(nil, nil)
}

// mutationMatching matches a ledger mutation by holder, delta and reference
func mutationMatching(discordID, delta int64, reference string) any {
	return mock.MatchedBy(func(m entities.LedgerMutation) bool {
		return m.DiscordID == discordID && m.Delta == delta && m.Reference == reference
	})
}

// entryFor builds the ledger entry a mutation would produce
func entryFor(discordID int64, instrument entities.Instrument, delta, before int64, reference string) *entities.LedgerEntry {
	ref := reference
	return &entities.LedgerEntry{
		ID:            1,
		GuildID:       testGuildID,
		DiscordID:     discordID,
		Instrument:    instrument,
		Delta:         delta,
		AppliedDelta:  delta,
		BalanceBefore: before,
		BalanceAfter:  before + delta,
		Reference:     &ref,
		CreatedAt:     testNow,
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var ctx = context.Background()
