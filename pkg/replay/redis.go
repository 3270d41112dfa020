package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "replay"

// RedisStore is a Store backed by a shared redis instance. SET NX with a
// TTL is a single atomic operation, so the exactly-one-winner guarantee
// holds across every process sharing the instance.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: defaultRedisPrefix}
}

// ConsumeOnce implements Store. Redis expires the key itself, so there
// is no sweep to run.
func (s *RedisStore) ConsumeOnce(ctx context.Context, fingerprint string, ttl time.Duration) error {
	ok, err := s.client.SetNX(ctx, s.key(fingerprint), 1, ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !ok {
		return ErrReplayed
	}
	return nil
}

func (s *RedisStore) key(fingerprint string) string {
	return s.prefix + ":" + fingerprint
}
