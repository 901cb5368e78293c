package repository

import (
	"context"
	"testing"
	"time"

	"settlement/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyRepository(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewIdempotencyRepository(testDB.DB)
	ctx := context.Background()
	now := time.Now().UTC()
	ttl := 15 * time.Minute

	t.Run("claims a key once until it expires", func(t *testing.T) {
		ok, err := repo.Claim(ctx, "intent:1", now, now.Add(ttl))
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.Claim(ctx, "intent:1", now.Add(time.Minute), now.Add(time.Minute+ttl))
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = repo.Claim(ctx, "intent:1", now.Add(ttl), now.Add(2*ttl))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("released keys can be claimed again", func(t *testing.T) {
		ok, err := repo.Claim(ctx, "intent:2", now, now.Add(ttl))
		require.NoError(t, err)
		require.True(t, ok)

		require.NoError(t, repo.Release(ctx, "intent:2"))

		ok, err = repo.Claim(ctx, "intent:2", now, now.Add(ttl))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("purge drops expired keys only", func(t *testing.T) {
		_, err := repo.Claim(ctx, "intent:3", now, now.Add(time.Minute))
		require.NoError(t, err)

		purged, err := repo.PurgeExpired(ctx, now.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, int64(1), purged)

		ok, err := repo.Claim(ctx, "intent:2", now, now.Add(ttl))
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
