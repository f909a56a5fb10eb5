package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/stemsi/mathcourse-portal/internal/auth"
	"golang.org/x/term"
)

func newLoginCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and cache the session",
		Example: `  portalctl login --email coord@mathcourse.edu
  portalctl login  # prompts for email and password`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}

			in := bufio.NewReader(os.Stdin)
			if email == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Email: ")
				line, _ := in.ReadString('\n')
				email = strings.TrimSpace(line)
			}

			return runLogin(cmd.Context(), s.auth, email, promptPassword(cmd.OutOrStdout()), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Admin email address")

	return cmd
}

func promptPassword(out io.Writer) func() (string, error) {
	return func() (string, error) {
		fmt.Fprint(out, "Password: ")
		pw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(pw), nil
	}
}

// runLogin prompts until the login succeeds, the local attempt limit is hit,
// or the portal cannot be reached.
func runLogin(ctx context.Context, a *auth.Authenticator, email string, readPassword func() (string, error), out io.Writer) error {
	for {
		password, err := readPassword()
		if err != nil {
			return err
		}

		session, err := a.Login(ctx, email, password)
		if err == nil {
			fmt.Fprintf(out, "Logged in as %s <%s>. Session expires %s.\n",
				session.FullName, session.Email, humanize.Time(session.ExpiresAt))
			return nil
		}

		if !errors.Is(err, auth.ErrInvalidCredentials) {
			return errors.New(describe(err))
		}
		fmt.Fprintln(out, describe(err))
	}
}
