package repository

import (
    "context"
    "time"

    "github.com/redis/go-redis/v9"
)

// RedisSequence allocates display numbers with INCR on one key per day.
// INCR is atomic on the server, so numbers stay unique across every
// process that shares the Redis instance.
type RedisSequence struct {
    rdb    *redis.Client
    prefix string
    ttl    time.Duration
}

// NewRedisSequence returns a RedisSequence.  Keys are named
// "<prefix>:<day>" and expire ttl after the first number of the day.
func NewRedisSequence(rdb *redis.Client, prefix string, ttl time.Duration) *RedisSequence {
    if prefix == "" {
        prefix = "waitlist:seq"
    }
    if ttl <= 0 {
        ttl = 48 * time.Hour
    }
    return &RedisSequence{rdb: rdb, prefix: prefix, ttl: ttl}
}

// Next returns the next number of day.
func (q *RedisSequence) Next(ctx context.Context, day string) (int, error) {
    key := q.prefix + ":" + day
    n, err := q.rdb.Incr(ctx, key).Result()
    if err != nil {
        return 0, err
    }
    if n == 1 {
        // first allocation of the day owns the expiry
        if err := q.rdb.Expire(ctx, key, q.ttl).Err(); err != nil {
            return 0, err
        }
    }
    return int(n), nil
}
