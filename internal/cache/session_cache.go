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

// ErrMiss is returned when a key is not cached.
var ErrMiss = errors.New("cache: miss")

// SessionCache keeps validated sessions in Redis so repeated validations of a
// live token skip PostgreSQL. Entries never outlive the session.
type SessionCache struct {
	rdb *redis.Client
}

// NewSessionCache creates a new SessionCache.
func NewSessionCache(rdb *redis.Client) *SessionCache {
	return &SessionCache{rdb: rdb}
}

// Get returns the cached session for a token hash or ErrMiss.
func (c *SessionCache) Get(ctx context.Context, tokenHash string) (*model.SessionInfo, error) {
	raw, err := c.rdb.Get(ctx, config.CacheKey.AdminSessionKey(tokenHash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("redis get session: %w", err)
	}

	var info model.SessionInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("decode cached session: %w", err)
	}
	return &info, nil
}

// Set caches a session for ttl. Non-positive ttl is a no-op.
func (c *SessionCache) Set(ctx context.Context, tokenHash string, info *model.SessionInfo, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := c.rdb.Set(ctx, config.CacheKey.AdminSessionKey(tokenHash), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

// Delete evicts a cached session.
func (c *SessionCache) Delete(ctx context.Context, tokenHash string) error {
	if err := c.rdb.Del(ctx, config.CacheKey.AdminSessionKey(tokenHash)).Err(); err != nil {
		return fmt.Errorf("redis del session: %w", err)
	}
	return nil
}
