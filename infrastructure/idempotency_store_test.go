package infrastructure

import (
	"context"
	"errors"
	"testing"
	"time"

	"settlement/domain/testhelpers"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var storeNow = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestStore(redisClient *redis.Client, repo *testhelpers.MockIdempotencyRepository) *IdempotencyStore {
	store := NewIdempotencyStore(redisClient, repo, 15*time.Minute)
	store.now = func() time.Time { return storeNow }
	return store
}

func TestIdempotencyStore_KeyTableOnly(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		setupMocks func(repo *testhelpers.MockIdempotencyRepository)
		want       bool
		wantErr    bool
	}{
		{
			name: "first claim wins",
			setupMocks: func(repo *testhelpers.MockIdempotencyRepository) {
				repo.On("Claim", ctx, "intent:1", storeNow, storeNow.Add(15*time.Minute)).Return(true, nil)
			},
			want: true,
		},
		{
			name: "duplicate is dropped",
			setupMocks: func(repo *testhelpers.MockIdempotencyRepository) {
				repo.On("Claim", ctx, "intent:1", storeNow, storeNow.Add(15*time.Minute)).Return(false, nil)
			},
			want: false,
		},
		{
			name: "store failure surfaces",
			setupMocks: func(repo *testhelpers.MockIdempotencyRepository) {
				repo.On("Claim", ctx, "intent:1", storeNow, storeNow.Add(15*time.Minute)).Return(false, errors.New("connection reset"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(testhelpers.MockIdempotencyRepository)
			tt.setupMocks(repo)

			got, err := newTestStore(nil, repo).Claim(ctx, "intent:1")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestIdempotencyStore_PurgeUsesClock(t *testing.T) {
	repo := new(testhelpers.MockIdempotencyRepository)
	repo.On("PurgeExpired", mock.Anything, storeNow).Return(int64(3), nil)

	purged, err := newTestStore(nil, repo).PurgeExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), purged)
	repo.AssertExpectations(t)
}

func setupRedis(t *testing.T) *redis.Client {
	if testing.Short() {
		t.Skip("redis container test skipped in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate redis container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client, err := ConnectRedis(ctx, "redis://"+endpoint)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestIdempotencyStore_RedisTier(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	t.Run("redis answers duplicates without the key table", func(t *testing.T) {
		repo := new(testhelpers.MockIdempotencyRepository)
		repo.On("Claim", mock.Anything, "intent:a", storeNow, storeNow.Add(15*time.Minute)).Return(true, nil).Once()
		store := newTestStore(client, repo)

		first, err := store.Claim(ctx, "intent:a")
		require.NoError(t, err)
		assert.True(t, first)

		second, err := store.Claim(ctx, "intent:a")
		require.NoError(t, err)
		assert.False(t, second)

		repo.AssertExpectations(t)
	})

	t.Run("key table failure clears the cached claim", func(t *testing.T) {
		repo := new(testhelpers.MockIdempotencyRepository)
		repo.On("Claim", mock.Anything, "intent:b", storeNow, storeNow.Add(15*time.Minute)).Return(false, errors.New("timeout")).Once()
		repo.On("Claim", mock.Anything, "intent:b", storeNow, storeNow.Add(15*time.Minute)).Return(true, nil).Once()
		store := newTestStore(client, repo)

		_, err := store.Claim(ctx, "intent:b")
		require.Error(t, err)

		ok, err := store.Claim(ctx, "intent:b")
		require.NoError(t, err)
		assert.True(t, ok)
		repo.AssertExpectations(t)
	})

	t.Run("release frees both tiers", func(t *testing.T) {
		repo := new(testhelpers.MockIdempotencyRepository)
		repo.On("Claim", mock.Anything, "intent:c", storeNow, storeNow.Add(15*time.Minute)).Return(true, nil).Twice()
		repo.On("Release", mock.Anything, "intent:c").Return(nil).Once()
		store := newTestStore(client, repo)

		ok, err := store.Claim(ctx, "intent:c")
		require.NoError(t, err)
		require.True(t, ok)

		require.NoError(t, store.Release(ctx, "intent:c"))

		ok, err = store.Claim(ctx, "intent:c")
		require.NoError(t, err)
		assert.True(t, ok)
		repo.AssertExpectations(t)
	})
}
