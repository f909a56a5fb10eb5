package cli

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/stemsi/mathcourse-portal/internal/auth"
	ws "github.com/stemsi/mathcourse-portal/internal/websocket"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the cached session until it is revoked or expires",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if _, err := s.auth.Restore(ctx); err != nil {
				return errors.New(describe(err))
			}
			out := cmd.OutOrStdout()

			final, err := s.client.WatchSession(ctx, s.auth.Token(),
				func(msg ws.ServerMessage) {
					switch msg.Event {
					case ws.EventConnected:
						if msg.ExpiresAt != nil {
							fmt.Fprintf(out, "Watching session, expires %s.\n", humanize.Time(*msg.ExpiresAt))
						}
					case ws.EventError:
						fmt.Fprintf(out, "Server error: %s\n", msg.Error)
					}
				},
				func(err error, next time.Duration) {
					s.log.Warn().Err(err).Dur("retry_in", next).Msg("Session stream lost, reconnecting")
				},
			)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				if errors.Is(err, auth.ErrNotFound) {
					s.auth.Logout(ctx, "")
					return errors.New(describe(auth.ErrInvalidSession))
				}
				return err
			}

			// The session is gone server-side; drop the local copy too.
			s.auth.Logout(ctx, "")
			fmt.Fprintf(out, "Session %s. Local session cleared.\n", final)
			return nil
		},
	}
}
