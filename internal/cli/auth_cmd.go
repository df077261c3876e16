// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// auth_cmd.go - Sign-in management: login, logout, whoami and the auth
// helpers that prepare local-mode credentials.

package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-chat/internal/auth"
)

// interactiveLogin asks for each credential the authenticator needs and
// signs in. Anonymous mode needs no input.
func interactiveLogin(ctx context.Context, a *app, in io.Reader, out io.Writer) error {
	var creds auth.Credentials
	for _, p := range a.auth.Prompts() {
		var (
			value string
			err   error
		)
		if p.Secret {
			value, err = readSecret(in, p.Label+": ")
		} else {
			fmt.Fprint(out, p.Label+": ")
			value, err = readLine(in)
		}
		if err != nil {
			return err
		}
		creds.Set(p.Field, value)
	}
	if err := a.auth.Login(ctx, creds); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s Signed in as %s\n", SuccessStyle.Render("[OK]"), a.auth.State().User.DisplayName())
	return nil
}

func newLoginCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			a, err := wire(ctx, cfg, stderrLogger(cfg), wireOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			a.auth.Restore(ctx)
			if a.auth.Mode() != auth.ModeNone && a.auth.State().SignedIn() {
				fmt.Fprintf(cmd.OutOrStdout(), "Already signed in as %s\n", a.auth.State().User.DisplayName())
				return nil
			}
			return interactiveLogin(ctx, a, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func newLogoutCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			a, err := wire(ctx, cfg, stderrLogger(cfg), wireOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			a.auth.Logout(ctx)
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func newWhoamiCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			a, err := wire(ctx, cfg, stderrLogger(cfg), wireOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			a.auth.Restore(ctx)
			out := cmd.OutOrStdout()
			u := a.auth.State().User
			if u == nil {
				fmt.Fprintf(out, "Not signed in (auth mode %s).\n", a.auth.Mode())
				return nil
			}
			fmt.Fprintln(out, RenderLabel("User:")+ValueStyle.Render(u.DisplayName()))
			fmt.Fprintln(out, RenderLabel("ID:")+ValueStyle.Render(u.ID))
			if u.Email != "" {
				fmt.Fprintln(out, RenderLabel("Email:")+ValueStyle.Render(u.Email))
			}
			fmt.Fprintln(out, RenderLabel("Method:")+ValueStyle.Render(u.Method))
			if !u.ExpiresAt.IsZero() {
				fmt.Fprintln(out, RenderLabel("Expires:")+ValueStyle.Render(u.ExpiresAt.Local().Format("2006-01-02 15:04")))
			}
			return nil
		},
	}
}

// =============================================================================
// AUTH HELPERS
// =============================================================================

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Prepare credentials for local sign-in",
	}
	cmd.AddCommand(newHashPasswordCmd(), newTOTPSetupCmd())
	return cmd
}

type hashPasswordCommander struct {
	username string
	save     bool
}

func newHashPasswordCmd() *cobra.Command {
	cmder := &hashPasswordCommander{}
	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Hash a password for auth.password_hash",
		Long: `Read a password without echo and print its bcrypt hash.

With --save the hash and --username are written to the config file and the
auth mode is switched to local.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}
	cmd.Flags().StringVarP(&cmder.username, "username", "u", "", "Username to save with --save")
	cmd.Flags().BoolVar(&cmder.save, "save", false, "Write the hash to the config file")
	return cmd
}

func (c *hashPasswordCommander) run(cmd *cobra.Command) error {
	if c.save && c.username == "" {
		return usageErrorf("--save needs --username")
	}

	in := cmd.InOrStdin()
	password, err := readSecret(in, "Password: ")
	if err != nil {
		return err
	}
	if password == "" {
		return usageErrorf("password must not be empty")
	}
	if _, ok := in.(*os.File); ok && IsTTY() {
		confirm, err := readSecret(in, "Confirm password: ")
		if err != nil {
			return err
		}
		if confirm != password {
			return usageErrorf("passwords do not match")
		}
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !c.save {
		fmt.Fprintln(out, hash)
		return nil
	}

	cfg, path, err := loadFileConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Auth.Mode = auth.ModeLocal
	cfg.Auth.Username = c.username
	cfg.Auth.PasswordHash = hash
	if err := saveFileConfig(cfg, path); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s Local sign-in enabled for %s in %s\n", SuccessStyle.Render("[OK]"), c.username, path)
	return nil
}

type totpSetupCommander struct {
	account string
	save    bool
}

func newTOTPSetupCmd() *cobra.Command {
	cmder := &totpSetupCommander{}
	cmd := &cobra.Command{
		Use:   "totp-setup",
		Short: "Generate a one-time-code secret for local sign-in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}
	cmd.Flags().StringVarP(&cmder.account, "account", "a", "", "Account name shown in the authenticator app (default auth.username)")
	cmd.Flags().BoolVar(&cmder.save, "save", false, "Write the secret to the config file")
	return cmd
}

func (c *totpSetupCommander) run(cmd *cobra.Command) error {
	cfg, path, err := loadFileConfig(cmd)
	if err != nil {
		return err
	}
	account := c.account
	if account == "" {
		account = cfg.Auth.Username
	}
	if account == "" {
		return usageErrorf("no account name: pass --account or set auth.username")
	}

	key, err := auth.GenerateTOTP("rigchat", account)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, RenderLabel("Secret:")+ValueStyle.Render(key.Secret()))
	fmt.Fprintln(out, RenderLabel("URL:")+ValueStyle.Render(key.URL()))
	fmt.Fprintln(out, DimStyle.Render("Add the URL or secret to an authenticator app."))

	if !c.save {
		return nil
	}
	cfg.Auth.TOTPSecret = key.Secret()
	if err := saveFileConfig(cfg, path); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s Saved to %s\n", SuccessStyle.Render("[OK]"), path)
	return nil
}
