package repository

import (
	"context"
	"sync"
	"testing"

	"settlement/domain/entities"
	"settlement/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGuildID int64 = 987654321

func TestAccountRepository_EnsureAccount(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewAccountRepositoryScoped(testDB.DB.Pool, testGuildID)
	ctx := context.Background()

	t.Run("creates rows and starting cash once", func(t *testing.T) {
		entry, err := repo.EnsureAccount(ctx, 1001, 10000, 50000)
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, int64(10000), entry.BalanceAfter)
		assert.Equal(t, entities.TransactionTypeInitial, entry.TransactionType)

		again, err := repo.EnsureAccount(ctx, 1001, 10000, 50000)
		require.NoError(t, err)
		assert.Nil(t, again)

		balances, err := repo.GetBalances(ctx, 1001)
		require.NoError(t, err)
		require.NotNil(t, balances)
		assert.Equal(t, int64(10000), balances.Cash)
		assert.Equal(t, int64(0), balances.Bank)
		assert.Equal(t, int64(0), balances.CreditDebt)
		assert.Equal(t, int64(50000), balances.CreditLimit)
	})

	t.Run("unknown account", func(t *testing.T) {
		balances, err := repo.GetBalances(ctx, 424242)
		require.NoError(t, err)
		assert.Nil(t, balances)
	})

	t.Run("accounts are guild scoped", func(t *testing.T) {
		other := NewAccountRepositoryScoped(testDB.DB.Pool, testGuildID+1)
		balances, err := other.GetBalances(ctx, 1001)
		require.NoError(t, err)
		assert.Nil(t, balances)
	})
}

func TestLedgerRepository_ApplyDelta(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	accounts := NewAccountRepositoryScoped(testDB.DB.Pool, testGuildID)
	repo := NewLedgerRepositoryScoped(testDB.DB.Pool, testGuildID)
	ctx := context.Background()

	_, err := accounts.EnsureAccount(ctx, 2001, 10000, 50000)
	require.NoError(t, err)

	t.Run("debit records before and after", func(t *testing.T) {
		entry, err := repo.ApplyDelta(ctx, testutil.CreateTestMutation(2001, -3000))
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.NotZero(t, entry.ID)
		assert.Equal(t, int64(10000), entry.BalanceBefore)
		assert.Equal(t, int64(7000), entry.BalanceAfter)
		assert.Equal(t, int64(-3000), entry.AppliedDelta)
	})

	t.Run("overdraft is rejected without mutation", func(t *testing.T) {
		_, err := repo.ApplyDelta(ctx, testutil.CreateTestMutation(2001, -7001))
		assert.ErrorIs(t, err, entities.ErrInsufficientFunds)

		balances, err := accounts.GetBalances(ctx, 2001)
		require.NoError(t, err)
		assert.Equal(t, int64(7000), balances.Cash)

		history, err := repo.GetHistory(ctx, 2001, 10)
		require.NoError(t, err)
		assert.Len(t, history, 2)
	})

	t.Run("missing account is insufficient", func(t *testing.T) {
		_, err := repo.ApplyDelta(ctx, testutil.CreateTestMutation(777, 100))
		assert.ErrorIs(t, err, entities.ErrInsufficientFunds)
	})

	t.Run("credit line stays within limit", func(t *testing.T) {
		entry, err := repo.ApplyDelta(ctx, testutil.CreateTestMutationOn(2001, entities.InstrumentCredit, -40000))
		require.NoError(t, err)
		assert.Equal(t, int64(40000), entry.BalanceAfter)

		_, err = repo.ApplyDelta(ctx, testutil.CreateTestMutationOn(2001, entities.InstrumentCredit, -10001))
		assert.ErrorIs(t, err, entities.ErrInsufficientFunds)

		entry, err = repo.ApplyDelta(ctx, testutil.CreateTestMutationOn(2001, entities.InstrumentCredit, 50000))
		require.NoError(t, err)
		assert.Equal(t, int64(0), entry.BalanceAfter)
		assert.Equal(t, int64(-40000), entry.AppliedDelta)
	})

	t.Run("debit card draws on the bank row", func(t *testing.T) {
		_, err := repo.ApplyDelta(ctx, testutil.CreateTestMutationOn(2001, entities.InstrumentDebit, -1))
		assert.ErrorIs(t, err, entities.ErrInsufficientFunds)

		_, err = repo.ApplyDelta(ctx, testutil.CreateTestMutationOn(2001, entities.InstrumentBank, 500))
		require.NoError(t, err)

		entry, err := repo.ApplyDelta(ctx, testutil.CreateTestMutationOn(2001, entities.InstrumentDebit, -200))
		require.NoError(t, err)
		assert.Equal(t, entities.InstrumentDebit, entry.Instrument)
		assert.Equal(t, int64(300), entry.BalanceAfter)

		balances, err := accounts.GetBalances(ctx, 2001)
		require.NoError(t, err)
		assert.Equal(t, int64(300), balances.Bank)
	})
}

func TestLedgerRepository_ReferenceFencing(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	accounts := NewAccountRepositoryScoped(testDB.DB.Pool, testGuildID)
	repo := NewLedgerRepositoryScoped(testDB.DB.Pool, testGuildID)
	ctx := context.Background()

	_, err := accounts.EnsureAccount(ctx, 3001, 10000, 50000)
	require.NoError(t, err)

	mutation := testutil.CreateTestMutation(3001, 500)
	mutation.Reference = "wager:1:payout"

	first, err := repo.ApplyDelta(ctx, mutation)
	require.NoError(t, err)

	_, err = repo.ApplyDelta(ctx, mutation)
	assert.ErrorIs(t, err, entities.ErrAlreadyProcessed)

	balances, err := accounts.GetBalances(ctx, 3001)
	require.NoError(t, err)
	assert.Equal(t, int64(10500), balances.Cash)

	found, err := repo.GetByReference(ctx, "wager:1:payout")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, first.ID, found.ID)
	assert.Equal(t, true, found.Metadata["test"])

	missing, err := repo.GetByReference(ctx, "wager:2:payout")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestLedgerRepository_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	accounts := NewAccountRepositoryScoped(testDB.DB.Pool, testGuildID)
	repo := NewLedgerRepositoryScoped(testDB.DB.Pool, testGuildID)
	ctx := context.Background()

	_, err := accounts.EnsureAccount(ctx, 4001, 10000, 50000)
	require.NoError(t, err)

	const attempts = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.ApplyDelta(ctx, testutil.CreateTestMutation(4001, -2000))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case assert.ErrorIs(t, err, entities.ErrInsufficientFunds):
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 5, rejected)

	balances, err := accounts.GetBalances(ctx, 4001)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balances.Cash)
}
