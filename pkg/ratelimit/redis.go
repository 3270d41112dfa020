package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "ratelimit"

// Redis is a Limiter backed by a shared redis instance, for deployments
// running more than one BFF process. Windows are anchored to wall-clock
// buckets so every instance counts against the same key; INCR makes the
// count-and-check atomic across all of them. Keys expire shortly after
// their window ends, so stale counters clean themselves up.
type Redis struct {
	client *redis.Client
	prefix string

	now func() time.Time
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, prefix: defaultRedisPrefix, now: time.Now}
}

// Allow implements Limiter.
func (r *Redis) Allow(ctx context.Context, key string, p Policy) (Decision, error) {
	now := r.now()
	bucket := now.Truncate(p.Window)
	redisKey := fmt.Sprintf("%s:%s:%d", r.prefix, key, bucket.Unix())

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	// Expire a little after the window closes so a request racing the
	// boundary still sees its own bucket.
	pipe.ExpireNX(ctx, redisKey, p.Window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	count := int(incr.Val())
	if count > p.Limit {
		return Decision{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: bucket.Add(p.Window).Sub(now),
		}, nil
	}

	return Decision{Allowed: true, Remaining: p.Limit - count}, nil
}
