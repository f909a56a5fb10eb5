package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/mathcourse-portal/internal/config"
	"github.com/stemsi/mathcourse-portal/internal/model"
)

// AuditQueue buffers auth events in a Redis list until the audit worker
// persists them.
type AuditQueue struct {
	rdb *redis.Client
}

// NewAuditQueue creates a new AuditQueue.
func NewAuditQueue(rdb *redis.Client) *AuditQueue {
	return &AuditQueue{rdb: rdb}
}

// Enqueue appends an event to the queue.
func (q *AuditQueue) Enqueue(ctx context.Context, ev *model.AuthEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode auth event: %w", err)
	}
	if err := q.rdb.RPush(ctx, config.WorkerKey.PersistAuthEventsQueue, raw).Err(); err != nil {
		return fmt.Errorf("redis rpush: %w", err)
	}
	return nil
}

// Next blocks up to timeout for the next event. It returns ErrMiss when the
// queue stayed empty.
func (q *AuditQueue) Next(ctx context.Context, timeout time.Duration) (*model.AuthEvent, error) {
	result, err := q.rdb.BLPop(ctx, timeout, config.WorkerKey.PersistAuthEventsQueue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("redis blpop: %w", err)
	}
	if len(result) < 2 {
		return nil, ErrMiss
	}

	var ev model.AuthEvent
	if err := json.Unmarshal([]byte(result[1]), &ev); err != nil {
		return nil, fmt.Errorf("decode auth event: %w", err)
	}
	return &ev, nil
}

// TryNext pops an event without blocking. It returns ErrMiss when the queue is empty.
func (q *AuditQueue) TryNext(ctx context.Context) (*model.AuthEvent, error) {
	raw, err := q.rdb.LPop(ctx, config.WorkerKey.PersistAuthEventsQueue).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("redis lpop: %w", err)
	}

	var ev model.AuthEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("decode auth event: %w", err)
	}
	return &ev, nil
}
