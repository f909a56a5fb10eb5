package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type expiredSweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// SessionSweeper periodically deletes expired admin sessions so their holders
// are notified and the table does not grow without bound.
type SessionSweeper struct {
	sessions expiredSweeper
	interval time.Duration
	log      zerolog.Logger
}

// NewSessionSweeper creates a new SessionSweeper.
func NewSessionSweeper(sessions expiredSweeper, interval time.Duration, log zerolog.Logger) *SessionSweeper {
	return &SessionSweeper{
		sessions: sessions,
		interval: interval,
		log:      log.With().Str("component", "session_sweeper").Logger(),
	}
}

// Start sweeps once immediately and then on every interval. Call in a goroutine.
func (w *SessionSweeper) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *SessionSweeper) sweep(ctx context.Context) {
	n, err := w.sessions.SweepExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error().Err(err).Msg("Sweep failed")
		}
		return
	}
	if n > 0 {
		w.log.Info().Int("count", n).Msg("Expired sessions removed")
	}
}
