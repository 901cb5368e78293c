package services

import (
	"errors"
	"testing"

	"settlement/domain/entities"
	"settlement/domain/events"
	"settlement/domain/interfaces"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestLedgerService(m *testMocks) *LedgerService {
	return NewLedgerService(m.AccountRepo, m.LedgerRepo, m.EventPublisher)
}

func TestLedgerService_Transfer_Debit(t *testing.T) {
	m := newTestMocks(t)
	service := newTestLedgerService(m)

	m.expectExistingAccount(testUser1ID)
	entry := entryFor(testUser1ID, entities.InstrumentCash, -1000, 5000, "ref-1")
	m.LedgerRepo.On("ApplyDelta", mock.Anything, mutationMatching(testUser1ID, -1000, "ref-1")).Return(entry, nil)
	m.EventPublisher.On("Publish", mock.MatchedBy(func(e events.Event) bool {
		bc, ok := e.(events.BalanceChangeEvent)
		return ok && bc.OldBalance == 5000 && bc.NewBalance == 4000 && bc.ChangeAmount == -1000 && bc.Reference == "ref-1"
	})).Return(nil)

	got, err := service.Transfer(ctx, entities.LedgerMutation{
		DiscordID:       testUser1ID,
		Instrument:      entities.InstrumentCash,
		Delta:           -1000,
		TransactionType: entities.TransactionTypeTransferOut,
		Reference:       "ref-1",
	})

	require.NoError(t, err)
	assert.Equal(t, int64(4000), got.BalanceAfter)
	m.assertAll(t)
}

func TestLedgerService_Transfer_OpensAccountWithStartingBalance(t *testing.T) {
	m := newTestMocks(t)
	service := newTestLedgerService(m)

	initial := entryFor(testUser1ID, entities.InstrumentCash, 10000, 0, "")
	initial.TransactionType = entities.TransactionTypeInitial
	m.AccountRepo.On("EnsureAccount", mock.Anything, testUser1ID, int64(10000), int64(50000)).Return(initial, nil)
	m.LedgerRepo.On("ApplyDelta", mock.Anything, mutationMatching(testUser1ID, -500, "")).
		Return(entryFor(testUser1ID, entities.InstrumentCash, -500, 10000, ""), nil)
	m.expectEvent(events.EventTypeBalanceChange).Twice()

	got, err := service.Transfer(ctx, entities.LedgerMutation{
		DiscordID:       testUser1ID,
		Instrument:      entities.InstrumentCash,
		Delta:           -500,
		TransactionType: entities.TransactionTypeTransferOut,
	})

	require.NoError(t, err)
	assert.Equal(t, int64(9500), got.BalanceAfter)
	m.assertAll(t)
}

func TestLedgerService_Transfer_InsufficientFunds(t *testing.T) {
	m := newTestMocks(t)
	service := newTestLedgerService(m)

	m.expectExistingAccount(testUser1ID)
	m.LedgerRepo.On("ApplyDelta", mock.Anything, mock.Anything).Return(nil, entities.ErrInsufficientFunds)

	_, err := service.Transfer(ctx, entities.LedgerMutation{
		DiscordID:       testUser1ID,
		Instrument:      entities.InstrumentBank,
		Delta:           -1_000_000,
		TransactionType: entities.TransactionTypeInternal,
		Reference:       "ref-2",
	})

	assert.ErrorIs(t, err, entities.ErrInsufficientFunds)
	m.LedgerRepo.AssertNotCalled(t, "GetByReference", mock.Anything, mock.Anything)
	m.EventPublisher.AssertNotCalled(t, "Publish", mock.Anything)
	m.assertAll(t)
}

func TestLedgerService_Transfer_Validation(t *testing.T) {
	tests := []struct {
		name     string
		mutation entities.LedgerMutation
	}{
		{"zero delta", entities.LedgerMutation{DiscordID: testUser1ID, Instrument: entities.InstrumentCash, TransactionType: entities.TransactionTypeAdjustment}},
		{"unknown instrument", entities.LedgerMutation{DiscordID: testUser1ID, Instrument: "gold", Delta: 5, TransactionType: entities.TransactionTypeAdjustment}},
		{"too large", entities.LedgerMutation{DiscordID: testUser1ID, Instrument: entities.InstrumentCash, Delta: entities.MaxAmount + 1, TransactionType: entities.TransactionTypeAdjustment}},
		{"missing holder", entities.LedgerMutation{Instrument: entities.InstrumentCash, Delta: 5, TransactionType: entities.TransactionTypeAdjustment}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMocks(t)
			service := newTestLedgerService(m)

			_, err := service.Transfer(ctx, tt.mutation)

			require.Error(t, err)
			assert.True(t, entities.IsValidation(err))
			m.AccountRepo.AssertNotCalled(t, "EnsureAccount", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			m.LedgerRepo.AssertNotCalled(t, "ApplyDelta", mock.Anything, mock.Anything)
		})
	}
}

func TestLedgerService_Transfer_StorageFailureButLanded(t *testing.T) {
	m := newTestMocks(t)
	service := newTestLedgerService(m)

	m.expectExistingAccount(testUser1ID)
	storageErr := entities.NewExternalServiceError("apply ledger delta", errors.New("connection reset"))
	m.LedgerRepo.On("ApplyDelta", mock.Anything, mock.Anything).Return(nil, storageErr).Once()
	landed := entryFor(testUser1ID, entities.InstrumentCash, -300, 1000, "ref-3")
	m.LedgerRepo.On("GetByReference", mock.Anything, "ref-3").Return(landed, nil)
	m.expectEvent(events.EventTypeBalanceChange)

	got, err := service.Transfer(ctx, entities.LedgerMutation{
		DiscordID:       testUser1ID,
		Instrument:      entities.InstrumentCash,
		Delta:           -300,
		TransactionType: entities.TransactionTypeTransferOut,
		Reference:       "ref-3",
	})

	require.NoError(t, err)
	assert.Same(t, landed, got)
	m.assertAll(t)
}

func TestLedgerService_Transfer_DebitNotRetried(t *testing.T) {
	m := newTestMocks(t)
	service := newTestLedgerService(m)

	m.expectExistingAccount(testUser1ID)
	storageErr := entities.NewExternalServiceError("apply ledger delta", errors.New("timeout"))
	m.LedgerRepo.On("ApplyDelta", mock.Anything, mock.Anything).Return(nil, storageErr).Once()
	m.LedgerRepo.On("GetByReference", mock.Anything, "ref-4").Return(nil, nil).Once()

	_, err := service.Transfer(ctx, entities.LedgerMutation{
		DiscordID:       testUser1ID,
		Instrument:      entities.InstrumentCash,
		Delta:           -300,
		TransactionType: entities.TransactionTypeTransferOut,
		Reference:       "ref-4",
	})

	require.Error(t, err)
	assert.True(t, entities.IsExternal(err))
	m.assertAll(t)
}

func TestLedgerService_Transfer_CreditRetried(t *testing.T) {
	m := newTestMocks(t)
	service := newTestLedgerService(m)

	m.expectExistingAccount(testUser1ID)
	storageErr := entities.NewExternalServiceError("apply ledger delta", errors.New("timeout"))
	m.LedgerRepo.On("ApplyDelta", mock.Anything, mock.Anything).Return(nil, storageErr).Once()
	m.LedgerRepo.On("GetByReference", mock.Anything, "ref-5").Return(nil, nil).Once()
	m.LedgerRepo.On("ApplyDelta", mock.Anything, mock.Anything).
		Return(entryFor(testUser1ID, entities.InstrumentCash, 300, 0, "ref-5"), nil).Once()
	m.expectEvent(events.EventTypeBalanceChange)

	got, err := service.Transfer(ctx, entities.LedgerMutation{
		DiscordID:       testUser1ID,
		Instrument:      entities.InstrumentCash,
		Delta:           300,
		TransactionType: entities.TransactionTypeTransferIn,
		Reference:       "ref-5",
	})

	require.NoError(t, err)
	assert.Equal(t, int64(300), got.BalanceAfter)
	m.assertAll(t)
}

func TestLedgerService_Transfer_UncheckedFailureIsUnknown(t *testing.T) {
	m := newTestMocks(t)
	service := newTestLedgerService(m)

	m.expectExistingAccount(testUser1ID)
	storageErr := entities.NewExternalServiceError("apply ledger delta", errors.New("conn reset by peer"))
	m.LedgerRepo.On("ApplyDelta", mock.Anything, mock.Anything).Return(nil, storageErr).Once()
	m.LedgerRepo.On("GetByReference", mock.Anything, "ref-6").Return(nil, errors.New("connection refused")).Once()

	_, err := service.Transfer(ctx, entities.LedgerMutation{
		DiscordID:       testUser1ID,
		Instrument:      entities.InstrumentCash,
		Delta:           300,
		TransactionType: entities.TransactionTypeTransferIn,
		Reference:       "ref-6",
	})

	require.Error(t, err)
	assert.True(t, entities.IsExternal(err))
	assert.ErrorIs(t, err, entities.ErrOutcomeUnknown)
	m.LedgerRepo.AssertNumberOfCalls(t, "ApplyDelta", 1)
	m.assertAll(t)
}

func TestLedgerService_Transfer_CreditRepaymentOverflowsToCash(t *testing.T) {
	m := newTestMocks(t)
	service := newTestLedgerService(m)

	m.expectExistingAccount(testUser1ID)
	// Debt of 400 absorbs 400 of a 1000 repayment
	repay := &entities.LedgerEntry{
		GuildID:       testGuildID,
		DiscordID:     testUser1ID,
		Instrument:    entities.InstrumentCredit,
		Delta:         1000,
		AppliedDelta:  -400,
		BalanceBefore: 400,
		BalanceAfter:  0,
	}
	m.LedgerRepo.On("ApplyDelta", mock.Anything, mutationMatching(testUser1ID, 1000, "wager:9:payout")).Return(repay, nil)
	m.LedgerRepo.On("ApplyDelta", mock.Anything, mock.MatchedBy(func(mu entities.LedgerMutation) bool {
		return mu.Instrument == entities.InstrumentCash && mu.Delta == 600 && mu.Reference == "wager:9:payout:overflow"
	})).Return(entryFor(testUser1ID, entities.InstrumentCash, 600, 0, "wager:9:payout:overflow"), nil)
	m.expectEvent(events.EventTypeBalanceChange).Twice()

	_, err := service.Transfer(ctx, entities.LedgerMutation{
		DiscordID:       testUser1ID,
		Instrument:      entities.InstrumentCredit,
		Delta:           1000,
		TransactionType: entities.TransactionTypeWagerPayout,
		Reference:       "wager:9:payout",
	})

	require.NoError(t, err)
	m.assertAll(t)
}

func TestLedgerService_Move(t *testing.T) {
	m := newTestMocks(t)
	service := newTestLedgerService(m)

	m.expectExistingAccount(testUser1ID)
	m.expectExistingAccount(testUser2ID)
	m.LedgerRepo.On("ApplyDelta", mock.Anything, mutationMatching(testUser1ID, -700, "pay:1:debit")).
		Return(entryFor(testUser1ID, entities.InstrumentCash, -700, 1000, "pay:1:debit"), nil)
	m.LedgerRepo.On("ApplyDelta", mock.Anything, mutationMatching(testUser2ID, 700, "pay:1:credit")).
		Return(entryFor(testUser2ID, entities.InstrumentCash, 700, 50, "pay:1:credit"), nil)
	m.expectEvent(events.EventTypeBalanceChange).Twice()

	result, err := service.Move(ctx, interfaces.MoveRequest{
		FromID:         testUser1ID,
		FromInstrument: entities.InstrumentCash,
		ToID:           testUser2ID,
		ToInstrument:   entities.InstrumentCash,
		Amount:         700,
		Reference:      "pay:1",
		DebitType:      entities.TransactionTypeTransferOut,
		CreditType:     entities.TransactionTypeTransferIn,
	})

	require.NoError(t, err)
	assert.Equal(t, int64(300), result.Debit.BalanceAfter)
	assert.Equal(t, int64(750), result.Credit.BalanceAfter)
	m.assertAll(t)
}

func TestLedgerService_Move_CompensatesFailedCredit(t *testing.T) {
	m := newTestMocks(t)
	service := newTestLedgerService(m)

	m.expectExistingAccount(testUser1ID)
	m.AccountRepo.On("EnsureAccount", mock.Anything, testUser2ID, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused"))

	m.LedgerRepo.On("ApplyDelta", mock.Anything, mutationMatching(testUser1ID, -700, "pay:2:debit")).
		Return(entryFor(testUser1ID, entities.InstrumentCash, -700, 1000, "pay:2:debit"), nil)
	m.LedgerRepo.On("ApplyDelta", mock.Anything, mock.MatchedBy(func(mu entities.LedgerMutation) bool {
		return mu.DiscordID == testUser1ID &&
			mu.Delta == 700 &&
			mu.TransactionType == entities.TransactionTypeCompensation &&
			mu.Reference == "pay:2:compensation"
	})).Return(entryFor(testUser1ID, entities.InstrumentCash, 700, 300, "pay:2:compensation"), nil)
	m.expectEvent(events.EventTypeBalanceChange).Twice()

	_, err := service.Move(ctx, interfaces.MoveRequest{
		FromID:         testUser1ID,
		FromInstrument: entities.InstrumentCash,
		ToID:           testUser2ID,
		ToInstrument:   entities.InstrumentCash,
		Amount:         700,
		Reference:      "pay:2",
	})

	require.Error(t, err)
	assert.True(t, entities.IsExternal(err))
	assert.Contains(t, err.Error(), "source restored")
	m.assertAll(t)
}

func TestLedgerService_Move_UnknownCreditKeepsDebit(t *testing.T) {
	m := newTestMocks(t)
	service := newTestLedgerService(m)

	m.expectExistingAccount(testUser1ID)
	m.expectExistingAccount(testUser2ID)
	m.LedgerRepo.On("ApplyDelta", mock.Anything, mutationMatching(testUser1ID, -700, "pay:4:debit")).
		Return(entryFor(testUser1ID, entities.InstrumentCash, -700, 1000, "pay:4:debit"), nil)
	storageErr := entities.NewExternalServiceError("apply ledger delta", errors.New("conn reset by peer"))
	m.LedgerRepo.On("ApplyDelta", mock.Anything, mutationMatching(testUser2ID, 700, "pay:4:credit")).
		Return(nil, storageErr).Once()
	m.LedgerRepo.On("GetByReference", mock.Anything, "pay:4:credit").Return(nil, errors.New("connection refused")).Once()
	m.expectEvent(events.EventTypeBalanceChange).Once()

	_, err := service.Move(ctx, interfaces.MoveRequest{
		FromID:         testUser1ID,
		FromInstrument: entities.InstrumentCash,
		ToID:           testUser2ID,
		ToInstrument:   entities.InstrumentCash,
		Amount:         700,
		Reference:      "pay:4",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, entities.ErrOutcomeUnknown)
	m.LedgerRepo.AssertNotCalled(t, "ApplyDelta", mock.Anything, mutationMatching(testUser1ID, 700, "pay:4:compensation"))
	m.LedgerRepo.AssertNumberOfCalls(t, "ApplyDelta", 2)
	m.assertAll(t)
}

func TestLedgerService_Move_ReportsFailedCompensation(t *testing.T) {
	m := newTestMocks(t)
	service := newTestLedgerService(m)

	m.AccountRepo.On("EnsureAccount", mock.Anything, testUser1ID, mock.Anything, mock.Anything).Return(nil, nil).Once()
	m.AccountRepo.On("EnsureAccount", mock.Anything, testUser2ID, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused"))
	m.AccountRepo.On("EnsureAccount", mock.Anything, testUser1ID, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused")).Once()

	m.LedgerRepo.On("ApplyDelta", mock.Anything, mutationMatching(testUser1ID, -700, "pay:3:debit")).
		Return(entryFor(testUser1ID, entities.InstrumentCash, -700, 1000, "pay:3:debit"), nil)
	m.expectEvent(events.EventTypeBalanceChange)
	m.EventPublisher.On("Publish", mock.MatchedBy(func(e events.Event) bool {
		cf, ok := e.(events.CompensationFailedEvent)
		return ok && cf.DiscordID == testUser1ID && cf.Amount == 700 && cf.Reference == "pay:3:compensation"
	})).Return(nil).Once()

	_, err := service.Move(ctx, interfaces.MoveRequest{
		FromID:         testUser1ID,
		FromInstrument: entities.InstrumentCash,
		ToID:           testUser2ID,
		ToInstrument:   entities.InstrumentCash,
		Amount:         700,
		Reference:      "pay:3",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "restore source")
	m.assertAll(t)
}

func TestLedgerService_Move_RejectsSameBalance(t *testing.T) {
	m := newTestMocks(t)
	service := newTestLedgerService(m)

	_, err := service.Move(ctx, interfaces.MoveRequest{
		FromID:         testUser1ID,
		FromInstrument: entities.InstrumentDebit,
		ToID:           testUser1ID,
		ToInstrument:   entities.InstrumentBank,
		Amount:         10,
	})

	require.Error(t, err)
	assert.True(t, entities.IsValidation(err))
}

func TestLedgerService_Balances(t *testing.T) {
	m := newTestMocks(t)
	service := newTestLedgerService(m)

	m.expectExistingAccount(testUser1ID)
	m.AccountRepo.On("GetBalances", mock.Anything, testUser1ID).Return(&entities.Balances{
		GuildID:     testGuildID,
		DiscordID:   testUser1ID,
		Cash:        100,
		Bank:        200,
		CreditDebt:  50,
		CreditLimit: 500,
	}, nil)

	balances, err := service.Balances(ctx, testUser1ID)

	require.NoError(t, err)
	assert.Equal(t, int64(250), balances.NetWorth())
	assert.Equal(t, int64(450), balances.AvailableCredit())
	m.assertAll(t)
}
