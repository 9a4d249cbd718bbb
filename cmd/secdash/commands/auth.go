package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/bl4ck0w1/secdash/internal/client"
	"github.com/bl4ck0w1/secdash/pkg/utils"
)

func NewAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Log in to the scanner API and manage the session",
	}
	cmd.AddCommand(newAuthLoginCommand())
	cmd.AddCommand(newAuthLogoutCommand())
	cmd.AddCommand(newAuthRefreshCommand())
	cmd.AddCommand(newAuthWhoamiCommand())
	cmd.AddCommand(newAuthPasswdCommand())
	return cmd
}

func newAuthLoginCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the access token",
		Long: `Log in with a username and password. The password is read without echo
from the terminal, or as one line from stdin when --password-stdin is set.`,
		Args: cobra.NoArgs,
		RunE: runAuthLogin,
	}
	cmd.Flags().StringP("username", "u", "", "Username (prompted when empty)")
	cmd.Flags().Bool("password-stdin", false, "Read the password from stdin")
	return cmd
}

func newAuthLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget the stored token",
		Args:  cobra.NoArgs,
		RunE:  runAuthLogout,
	}
}

func newAuthRefreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the stored token for a fresh one",
		Args:  cobra.NoArgs,
		RunE:  runAuthRefresh,
	}
}

func newAuthWhoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE:  runAuthWhoami,
	}
}

func newAuthPasswdCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change the password of the logged-in user",
		Args:  cobra.NoArgs,
		RunE:  runAuthPasswd,
	}
	cmd.Flags().Bool("password-stdin", false, "Read current and new password from stdin, one per line")
	return cmd
}

// promptReader reads answers from the command's input, falling back to a
// no-echo terminal read for secrets when stdin is a terminal.
type promptReader struct {
	cmd   *cobra.Command
	lines *bufio.Reader
}

func newPromptReader(cmd *cobra.Command) *promptReader {
	return &promptReader{cmd: cmd, lines: bufio.NewReader(cmd.InOrStdin())}
}

func (p *promptReader) line(prompt string) (string, error) {
	if prompt != "" {
		fmt.Fprint(p.cmd.ErrOrStderr(), prompt)
	}
	s, err := p.lines.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && s != "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimRight(s, "\r\n"), nil
}

func (p *promptReader) secret(prompt string, fromStdin bool) (string, error) {
	if !fromStdin {
		if f, ok := p.cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			fmt.Fprint(p.cmd.ErrOrStderr(), prompt)
			b, err := term.ReadPassword(int(f.Fd()))
			fmt.Fprintln(p.cmd.ErrOrStderr())
			if err != nil {
				return "", fmt.Errorf("failed to read password: %w", err)
			}
			return string(b), nil
		}
	}
	return p.line("")
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	prompt := newPromptReader(cmd)
	username, _ := cmd.Flags().GetString("username")
	if strings.TrimSpace(username) == "" {
		var err error
		if username, err = prompt.line("Username: "); err != nil {
			return err
		}
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username is required")
	}
	fromStdin, _ := cmd.Flags().GetBool("password-stdin")
	password, err := prompt.secret("Password: ", fromStdin)
	if err != nil {
		return err
	}
	if password == "" {
		return fmt.Errorf("password is required")
	}

	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	tr, err := sess.client.Login(ctx, client.Credentials{Username: username, Password: password})
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if tr.BearerToken() == "" {
		logrus.Warn("Server accepted the login but returned no token")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", username)
	if exp, err := utils.TokenExpiry(tr.BearerToken()); err == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Session valid until %s\n", exp.UTC().Format(time.RFC3339))
	}
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	if err := sess.client.Logout(ctx); err != nil {
		logrus.Warnf("Server logout failed, local token removed anyway: %v", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
	return nil
}

func runAuthRefresh(cmd *cobra.Command, args []string) error {
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	tr, err := sess.client.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh session: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Session refreshed")
	if exp, err := utils.TokenExpiry(tr.BearerToken()); err == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Session valid until %s\n", exp.UTC().Format(time.RFC3339))
	}
	return nil
}

func runAuthWhoami(cmd *cobra.Command, args []string) error {
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	token, err := sess.tokens.Token()
	if err != nil {
		return fmt.Errorf("failed to read stored token: %w", err)
	}
	if token == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "Not logged in. Run: secdash auth login")
		return nil
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	user, err := sess.client.Me(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}

	r := newRenderer(cmd)
	info := map[string]interface{}{
		"user": user.Name(),
		"api":  sess.client.BaseURL(),
	}
	if user.Email != "" {
		info["email"] = user.Email
	}
	if user.Role != "" {
		info["role"] = user.Role
	}
	if exp, err := utils.TokenExpiry(token); err == nil {
		info["expires"] = exp.UTC().Format(time.RFC3339)
	}
	r.KeyValues("Session", info)
	return r.Err()
}

func runAuthPasswd(cmd *cobra.Command, args []string) error {
	fromStdin, _ := cmd.Flags().GetBool("password-stdin")
	prompt := newPromptReader(cmd)

	current, err := prompt.secret("Current password: ", fromStdin)
	if err != nil {
		return err
	}
	next, err := prompt.secret("New password: ", fromStdin)
	if err != nil {
		return err
	}
	if !fromStdin {
		again, err := prompt.secret("Repeat new password: ", fromStdin)
		if err != nil {
			return err
		}
		if again != next {
			return fmt.Errorf("passwords do not match")
		}
	}

	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	if err := sess.client.ChangePassword(ctx, client.PasswordChange{CurrentPassword: current, NewPassword: next}); err != nil {
		return fmt.Errorf("failed to change password: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Password changed")
	return nil
}
