package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/mathcourse-portal/internal/cache"
	"github.com/stemsi/mathcourse-portal/internal/model"
)

type auditQueue interface {
	Enqueue(ctx context.Context, ev *model.AuthEvent) error
	Next(ctx context.Context, timeout time.Duration) (*model.AuthEvent, error)
	TryNext(ctx context.Context) (*model.AuthEvent, error)
}

type auditStore interface {
	Insert(ctx context.Context, e *model.AuthEvent) error
}

// AuditWorker consumes persist_auth_events_queue and inserts rows into admin_auth_events.
type AuditWorker struct {
	queue      auditQueue
	store      auditStore
	log        zerolog.Logger
	pollWait   time.Duration
	retryDelay time.Duration
}

// NewAuditWorker creates a new AuditWorker.
func NewAuditWorker(queue auditQueue, store auditStore, log zerolog.Logger) *AuditWorker {
	return &AuditWorker{
		queue:      queue,
		store:      store,
		log:        log.With().Str("component", "audit_worker").Logger(),
		pollWait:   time.Second,
		retryDelay: 5 * time.Second,
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *AuditWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *AuditWorker) processNext(ctx context.Context) {
	ev, err := w.queue.Next(ctx, w.pollWait)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("Queue read error")
			sleep(ctx, w.retryDelay)
		}
		return
	}

	if err := w.store.Insert(ctx, ev); err != nil {
		w.log.Error().Err(err).Str("kind", string(ev.Kind)).Msg("Persist error, retrying")
		// Push back to queue for retry.
		if err := w.queue.Enqueue(context.Background(), ev); err != nil {
			w.log.Error().Err(err).Msg("Requeue failed, event dropped")
		}
		sleep(ctx, w.retryDelay)
	}
}

// drain persists all remaining items in the queue before shutdown.
func (w *AuditWorker) drain(ctx context.Context) {
	drained := 0
	for {
		ev, err := w.queue.TryNext(ctx)
		if err != nil {
			if !errors.Is(err, cache.ErrMiss) {
				w.log.Error().Err(err).Msg("Drain read error")
			}
			break
		}

		if err := w.store.Insert(ctx, ev); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			_ = w.queue.Enqueue(ctx, ev)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}

// sleep waits for d or until ctx is cancelled.
func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
