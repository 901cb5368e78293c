package infrastructure

import (
	"context"
	"fmt"
	"time"

	"settlement/domain/interfaces"
	"settlement/infrastructure/observability"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const redisKeyPrefix = "settlement:idem:"

// IdempotencyStore drops duplicate events. Redis answers the hot path when
// configured; the Postgres key table is authoritative.
type IdempotencyStore struct {
	redis *redis.Client
	repo  interfaces.IdempotencyRepository
	ttl   time.Duration
	now   func() time.Time
}

// NewIdempotencyStore creates a store. redisClient may be nil.
func NewIdempotencyStore(redisClient *redis.Client, repo interfaces.IdempotencyRepository, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		redis: redisClient,
		repo:  repo,
		ttl:   ttl,
		now:   time.Now,
	}
}

// ConnectRedis parses a redis URL and checks the server answers
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// Claim reports whether the caller is the first to present key within the TTL
func (s *IdempotencyStore) Claim(ctx context.Context, key string) (bool, error) {
	cached := false
	if s.redis != nil {
		ok, err := s.redis.SetNX(ctx, redisKeyPrefix+key, 1, s.ttl).Result()
		switch {
		case err != nil:
			log.WithFields(log.Fields{
				"key":   key,
				"error": err,
			}).Warn("Redis idempotency check failed, using key table only")
		case !ok:
			observability.GetMetrics().RecordDuplicate(observability.TierRedis)
			return false, nil
		default:
			cached = true
		}
	}

	now := s.now()
	claimed, err := s.repo.Claim(ctx, key, now, now.Add(s.ttl))
	if err != nil {
		if cached {
			s.forget(ctx, key)
		}
		return false, err
	}
	if !claimed {
		observability.GetMetrics().RecordDuplicate(observability.TierPostgres)
		return false, nil
	}
	return true, nil
}

// Release drops a claim so the event can be processed again
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	s.forget(ctx, key)
	return s.repo.Release(ctx, key)
}

// PurgeExpired deletes expired keys from the key table. Redis expires its own.
func (s *IdempotencyStore) PurgeExpired(ctx context.Context) (int64, error) {
	return s.repo.PurgeExpired(ctx, s.now())
}

func (s *IdempotencyStore) forget(ctx context.Context, key string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		log.WithFields(log.Fields{
			"key":   key,
			"error": err,
		}).Warn("Failed to drop redis idempotency key")
	}
}
