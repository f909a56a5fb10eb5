package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// AttemptLimiter is a sliding-window counter stored in Redis sorted sets,
// scored by attempt time in nanoseconds.
type AttemptLimiter struct {
	rdb *redis.Client
}

// NewAttemptLimiter creates a new AttemptLimiter.
func NewAttemptLimiter(rdb *redis.Client) *AttemptLimiter {
	return &AttemptLimiter{rdb: rdb}
}

// Allow records an attempt for key at now and reports whether the attempts
// inside window, this one included, stay within limit.
func (l *AttemptLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (bool, error) {
	if window <= 0 || limit <= 0 {
		return true, nil
	}

	oldest := now.Add(-window).UnixNano()

	pipe := l.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("(%d", oldest))
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: fmt.Sprintf("%d:%s", now.UnixNano(), uuid.NewString()),
	})
	card := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis sliding window: %w", err)
	}

	return card.Val() <= int64(limit), nil
}
