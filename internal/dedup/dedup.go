// Package dedup tracks delivery attempts and applied batch keys in Redis, so
// the counts survive consumer restarts and are shared across group members.
package dedup

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	attemptPrefix = "dashsvc:attempts:"
	batchPrefix   = "dashsvc:batch:"
)

// Tracker is a redis-backed attempt counter and batch-key set.
type Tracker struct {
	rdb *redis.Client
	ttl time.Duration
}

// New returns a Tracker whose keys expire after ttl.
func New(rdb *redis.Client, ttl time.Duration) *Tracker {
	return &Tracker{rdb: rdb, ttl: ttl}
}

// Bump increments and returns the delivery attempt count for the message
// identified by id. The first call for an id returns 1.
func (t *Tracker) Bump(ctx context.Context, id string) (int64, error) {
	key := attemptPrefix + id
	n, err := t.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := t.rdb.Expire(ctx, key, t.ttl).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Clear drops the attempt count for id once the message is resolved.
func (t *Tracker) Clear(ctx context.Context, id string) error {
	return t.rdb.Del(ctx, attemptPrefix+id).Err()
}

// Seen reports whether the batch key has already been marked applied.
func (t *Tracker) Seen(ctx context.Context, key string) (bool, error) {
	n, err := t.rdb.Exists(ctx, batchPrefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Mark records the batch key as applied.
func (t *Tracker) Mark(ctx context.Context, key string) error {
	return t.rdb.Set(ctx, batchPrefix+key, 1, t.ttl).Err()
}
