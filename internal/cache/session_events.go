package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/mathcourse-portal/internal/config"
	"github.com/stemsi/mathcourse-portal/internal/model"
)

// SessionEvents publishes and subscribes to per-session revocation events.
type SessionEvents struct {
	rdb *redis.Client
}

// NewSessionEvents creates a new SessionEvents.
func NewSessionEvents(rdb *redis.Client) *SessionEvents {
	return &SessionEvents{rdb: rdb}
}

// Publish sends ev on the session's channel.
func (e *SessionEvents) Publish(ctx context.Context, tokenHash string, ev model.SessionEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode session event: %w", err)
	}
	if err := e.rdb.Publish(ctx, config.CacheKey.AdminSessionEventsChannel(tokenHash), raw).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Subscribe opens a subscription to the session's channel. Callers must Close it.
func (e *SessionEvents) Subscribe(ctx context.Context, tokenHash string) *redis.PubSub {
	return e.rdb.Subscribe(ctx, config.CacheKey.AdminSessionEventsChannel(tokenHash))
}

// DecodeSessionEvent parses a pub/sub payload.
func DecodeSessionEvent(payload string) (model.SessionEvent, error) {
	var ev model.SessionEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return ev, fmt.Errorf("decode session event: %w", err)
	}
	return ev, nil
}

// Subscription delivers decoded session events until closed.
type Subscription struct {
	C       <-chan model.SessionEvent
	closeFn func() error
}

// NewSubscription wraps an event channel and its release function.
func NewSubscription(c <-chan model.SessionEvent, closeFn func() error) *Subscription {
	return &Subscription{C: c, closeFn: closeFn}
}

// Close releases the underlying subscription.
func (s *Subscription) Close() error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}

// Listen subscribes to a session's channel and waits for Redis to confirm,
// so events published after Listen returns are not missed.
func (e *SessionEvents) Listen(ctx context.Context, tokenHash string) (*Subscription, error) {
	ps := e.Subscribe(ctx, tokenHash)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan model.SessionEvent, 1)
	go func() {
		defer close(out)
		for msg := range ps.Channel() {
			ev, err := DecodeSessionEvent(msg.Payload)
			if err != nil {
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return NewSubscription(out, ps.Close), nil
}
