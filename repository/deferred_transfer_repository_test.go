package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"settlement/domain/entities"
	"settlement/repository/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeferredTransferRepository_CreateAndLookup(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewDeferredTransferRepositoryScoped(testDB.DB.Pool, testGuildID)
	ctx := context.Background()
	now := time.Now().UTC()

	transfer := testutil.CreateTestPostalTransfer(1, 2, 1000, 50, now.Add(4*time.Hour))
	require.NoError(t, repo.Create(ctx, transfer))
	assert.NotZero(t, transfer.ID)
	assert.Equal(t, testGuildID, transfer.GuildID)

	byID, err := repo.GetByID(ctx, transfer.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, transfer.Reference, byID.Reference)
	assert.Equal(t, entities.TransferKindPostal, byID.Kind)
	assert.Equal(t, int64(1050), byID.TotalDebit())

	byRef, err := repo.GetByReference(ctx, transfer.Reference)
	require.NoError(t, err)
	require.NotNil(t, byRef)
	assert.Equal(t, transfer.ID, byRef.ID)

	missing, err := repo.GetByReference(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	// The reference is unique
	duplicate := testutil.CreateTestDeferredTransfer(1, 500, now)
	duplicate.Reference = transfer.Reference
	assert.Error(t, repo.Create(ctx, duplicate))

	pending, err := repo.ListPendingBySender(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestDeferredTransferRepository_ReleasesExactlyOnce(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewDeferredTransferRepositoryScoped(testDB.DB.Pool, testGuildID)
	crossGuild := NewDeferredTransferRepository(testDB.DB)
	ctx := context.Background()
	now := time.Now().UTC()

	transfer := testutil.CreateTestDeferredTransfer(7, 500, now.Add(5*time.Minute))
	require.NoError(t, repo.Create(ctx, transfer))

	due, err := crossGuild.ListDue(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = crossGuild.ListDue(ctx, now.Add(5*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)

	const sweepers = 8
	var (
		wg      sync.WaitGroup
		flipped atomic.Int32
	)
	for i := 0; i < sweepers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.Transition(ctx, transfer.ID, entities.TransferStatusPending, entities.TransferStatusReleased, now.Add(5*time.Minute))
			if assert.NoError(t, err) && ok {
				flipped.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), flipped.Load())

	// Cancel after release loses
	ok, err := repo.Transition(ctx, transfer.ID, entities.TransferStatusPending, entities.TransferStatusCancelled, now.Add(6*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)

	unsettled, err := crossGuild.ListUnsettled(ctx, 10)
	require.NoError(t, err)
	require.Len(t, unsettled, 1)
	assert.True(t, unsettled[0].NeedsSettlement())
	assert.NotNil(t, unsettled[0].ReleasedAt)

	ok, err = repo.MarkSettled(ctx, transfer.ID, now.Add(6*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkSettled(ctx, transfer.ID, now.Add(7*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)

	unsettled, err = crossGuild.ListUnsettled(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, unsettled)

	pending, err := repo.ListPendingBySender(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDeferredTransferRepository_PendingCannotBeMarkedSettled(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewDeferredTransferRepositoryScoped(testDB.DB.Pool, testGuildID)
	ctx := context.Background()
	now := time.Now().UTC()

	transfer := testutil.CreateTestDeferredTransfer(9, 500, now.Add(time.Hour))
	require.NoError(t, repo.Create(ctx, transfer))

	ok, err := repo.MarkSettled(ctx, transfer.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Transition(ctx, transfer.ID, entities.TransferStatusPending, entities.TransferStatusCancelled, now)
	require.NoError(t, err)
	assert.True(t, ok)

	current, err := repo.GetByID(ctx, transfer.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.TransferStatusCancelled, current.Status)
	assert.NotNil(t, current.CancelledAt)
	assert.Nil(t, current.ReleasedAt)
}
