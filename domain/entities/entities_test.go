package entities

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInstrument(t *testing.T) {
	inst, err := ParseInstrument(" Debit ")
	require.NoError(t, err)
	assert.Equal(t, InstrumentDebit, inst)
	assert.Equal(t, InstrumentBank, inst.StorageInstrument())

	_, err = ParseInstrument("gold")
	assert.True(t, IsValidation(err))
}

func TestBalancesFromRows(t *testing.T) {
	b := BalancesFromRows(1, 2, []*InstrumentBalance{
		{Instrument: InstrumentCash, Balance: 100},
		{Instrument: InstrumentBank, Balance: 250},
		{Instrument: InstrumentCredit, Balance: 40, CreditLimit: 500},
	})

	assert.Equal(t, int64(100), b.Of(InstrumentCash))
	assert.Equal(t, int64(250), b.Of(InstrumentDebit))
	assert.Equal(t, int64(40), b.Of(InstrumentCredit))
	assert.Equal(t, int64(460), b.AvailableCredit())
	assert.Equal(t, int64(310), b.NetWorth())
}

func TestBettingSession_Window(t *testing.T) {
	opened := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &BettingSession{
		Status:   SessionStatusOpen,
		GameType: GameTypeCrash,
		OpenedAt: opened,
		ClosesAt: opened.Add(GameTypeCrash.Window()),
	}

	assert.Equal(t, 45*time.Second, GameTypeCrash.Window())
	assert.True(t, s.AcceptsJoinsAt(opened.Add(44*time.Second)))
	assert.False(t, s.AcceptsJoinsAt(opened.Add(45*time.Second)))
	assert.True(t, s.IsWindowClosed(opened.Add(45*time.Second)))

	s.Status = SessionStatusLocked
	assert.False(t, s.AcceptsJoinsAt(opened))
	assert.False(t, s.IsTerminal())
	assert.True(t, SessionStatusExpired.IsTerminal())
}

func TestParseGameType(t *testing.T) {
	gt, err := ParseGameType("Roulette")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, gt.Window())

	_, err = ParseGameType("blackjack")
	assert.True(t, IsValidation(err))
}

func TestDeferredTransfer_References(t *testing.T) {
	ref := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	tr := &DeferredTransfer{Reference: ref, Amount: 1000, Fee: 50}

	assert.Equal(t, "deferred:00000000-0000-0000-0000-000000000001:debit", tr.DebitReference())
	assert.Equal(t, "deferred:00000000-0000-0000-0000-000000000001:credit", tr.CreditReference())
	assert.Equal(t, "deferred:00000000-0000-0000-0000-000000000001:refund", tr.RefundReference())
	assert.Equal(t, int64(1050), tr.TotalDebit())
}

func TestTransferKind_Routes(t *testing.T) {
	assert.Equal(t, 5*time.Minute, TransferKindDeposit.Route().Delay)
	assert.Equal(t, 4*time.Hour, TransferKindPostal.Route().Delay)
	assert.Equal(t, 7*24*time.Hour, TransferKindInvestment.Route().Delay)
	assert.True(t, TransferKindDeposit.Route().ToSelf)
	assert.False(t, TransferKindPostal.Route().ToSelf)
	assert.Equal(t, int64(33), ApplyBps(1111, 300))
}

func TestLedgerMutation_Validate(t *testing.T) {
	valid := LedgerMutation{DiscordID: 1, Instrument: InstrumentCash, Delta: -5, TransactionType: TransactionTypeAdjustment}
	require.NoError(t, valid.Validate())
	assert.Nil(t, valid.ReferencePtr())

	valid.Reference = "x"
	require.NotNil(t, valid.ReferencePtr())
	assert.Equal(t, "x", *valid.ReferencePtr())

	tooBig := valid
	tooBig.Delta = -(MaxAmount + 1)
	assert.True(t, IsValidation(tooBig.Validate()))
}

func TestErrorClassification(t *testing.T) {
	wrapped := fmt.Errorf("join: %w", ErrSessionLocked)
	external := NewExternalServiceError("apply", errors.New("timeout"))

	assert.True(t, IsExpected(wrapped))
	assert.True(t, IsBenign(fmt.Errorf("sweep: %w", ErrAlreadyProcessed)))
	assert.False(t, IsExpected(external))
	assert.True(t, IsExternal(fmt.Errorf("wrapped: %w", external)))
	assert.Equal(t, "invalid amount: must be positive", ValidateAmount(0).Error())
}
