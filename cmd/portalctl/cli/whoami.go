package cli

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/stemsi/mathcourse-portal/internal/auth"
)

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the admin of the cached session",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}

			user, err := s.auth.Restore(cmd.Context())
			if err != nil {
				if errors.Is(err, auth.ErrInvalidSession) {
					fmt.Fprintln(cmd.OutOrStdout(), describe(err))
					return nil
				}
				return errors.New(describe(err))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>\n", user.FullName, user.Email)
			if !user.CreatedAt.IsZero() {
				fmt.Fprintf(cmd.OutOrStdout(), "Account created %s\n", humanize.Time(user.CreatedAt))
			}
			return nil
		},
	}
}
