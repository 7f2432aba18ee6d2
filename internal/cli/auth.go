package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/and161185/tasktime/internal/errs"
	"github.com/and161185/tasktime/internal/session"
)

// PasswordEnv supplies the login password non-interactively.
const PasswordEnv = "TASKTIME_PASSWORD"

func newLoginCmd(a *app) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and hand the session to the timer agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			email = strings.TrimSpace(email)
			if email == "" {
				return usageError{errors.New("--email is required")}
			}
			password, err := a.readPassword()
			if err != nil {
				return err
			}

			api, err := a.newAPI(a)
			if err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			res, err := api.Login(ctx, email, password)
			if err != nil {
				if errors.Is(err, errs.ErrUnauthorized) {
					return errors.New("invalid email or password")
				}
				return err
			}
			s := session.FromLogin(res, a.apiURL(), a.now())
			if err := a.sessions.Save(s); err != nil {
				return fmt.Errorf("save session: %w", err)
			}

			fmt.Fprintf(a.out, "Logged in as %s (%s)\n", s.Name, s.Role)
			if err := a.loadAgentUser(ctx, s.UserID); err != nil {
				fmt.Fprintf(a.out, "Timer agent not updated: %s\n", userMessage(err))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	return cmd
}

// readPassword takes the password from PasswordEnv or the first line of stdin.
func (a *app) readPassword() (string, error) {
	if pw := os.Getenv(PasswordEnv); pw != "" {
		return pw, nil
	}
	fmt.Fprint(a.out, "Password: ")
	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && line == "" {
		return "", usageError{fmt.Errorf("read password: %w", err)}
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", usageError{errors.New("empty password")}
	}
	return pw, nil
}

func (a *app) loadAgentUser(ctx context.Context, userID int64) error {
	ag, err := a.newAgent(a)
	if err != nil {
		return err
	}
	defer ag.Close()
	_, err = ag.LoadUser(ctx, userID)
	return err
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if err := a.sessions.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Logged out")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			s, err := a.sessions.Load()
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(a.out, map[string]any{
					"userId": s.UserID, "name": s.Name, "role": s.Role,
					"server": s.ServerURL, "expiresAt": s.ExpiresAt,
				})
			}
			fmt.Fprintf(a.out, "%s (id %d, %s), session expires %s\n",
				s.Name, s.UserID, s.Role, s.ExpiresAt.Local().Format(dateTime))
			if s.ServerURL != "" {
				fmt.Fprintf(a.out, "Server %s\n", s.ServerURL)
			}
			return nil
		},
	}
}
