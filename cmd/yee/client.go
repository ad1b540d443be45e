// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/paeltech/yee-sub000/internal/auth"
	"github.com/paeltech/yee-sub000/internal/session"
)

// clientEnv is a signed-in client: a Manager over the local token store.
type clientEnv struct {
	manager *session.Manager
	groups  groupService
	close   func()
}

// openClient connects the backend and restores the stored session.
func openClient(cmd *cobra.Command, opts *rootOptions) (*clientEnv, error) {
	cfg, logger, err := opts.load(cmd)
	if err != nil {
		return nil, err
	}
	ctx := cmd.Context()

	b, err := opts.deps.OpenBackend(ctx, cfg, logger, nil)
	if err != nil {
		return nil, err
	}
	tokens, err := opts.deps.OpenTokens(ctx, cfg)
	if err != nil {
		b.Close()
		return nil, err
	}
	closeAll := func() {
		if err := tokens.Close(); err != nil {
			logger.Warn("failed to close token store", "error", err)
		}
		b.Close()
	}

	m, err := session.NewManager(session.Deps{
		Users:    b.Users,
		Sessions: b.Sessions,
		Hasher:   b.Hasher,
		Tokens:   tokens,
	},
		session.WithLogger(logger),
		session.WithTTL(cfg.Session.TTL),
	)
	if err != nil {
		closeAll()
		return nil, err
	}
	if err := m.Bootstrap(ctx); err != nil {
		closeAll()
		return nil, err
	}
	return &clientEnv{manager: m, groups: b.Groups, close: closeAll}, nil
}

// withClient runs fn against a bootstrapped client and closes it afterwards.
func withClient(cmd *cobra.Command, opts *rootOptions, fn func(context.Context, *clientEnv) error) error {
	env, err := openClient(cmd, opts)
	if err != nil {
		return err
	}
	defer env.close()
	return fn(cmd.Context(), env)
}

func newLoginCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and keep the session for later commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			email, _ := cmd.Flags().GetString("email")
			if email == "" {
				return oops.Code("CLI_USAGE").Errorf("--email is required")
			}
			secrets, err := readSecrets(cmd, "Password: ")
			if err != nil {
				return err
			}
			password := secrets[0]
			return withClient(cmd, opts, func(ctx context.Context, env *clientEnv) error {
				u, err := env.manager.Login(ctx, email, password)
				if err != nil {
					return err
				}
				cmd.Printf("Signed in as %s (%s)\n", u.Email, u.Role)
				return nil
			})
		},
	}
	cmd.Flags().String("email", "", "account email")
	return cmd
}

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, opts, func(ctx context.Context, env *clientEnv) error {
				if err := env.manager.Logout(ctx); err != nil {
					return err
				}
				cmd.Println("Signed out")
				return nil
			})
		},
	}
}

func newWhoamiCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, opts, func(_ context.Context, env *clientEnv) error {
				u := env.manager.Current()
				if u == nil {
					cmd.Println("Not signed in")
					return nil
				}
				cmd.Printf("%s <%s>\nrole: %s\n", u.FullName(), u.Email, u.Role)
				if u.GroupID != nil {
					cmd.Printf("group: %d\n", *u.GroupID)
				}
				return nil
			})
		},
	}
}

func newPasswdCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "passwd",
		Short: "Change your password and sign out other clients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secrets, err := readSecrets(cmd, "Current password: ", "New password: ")
			if err != nil {
				return err
			}
			current, next := secrets[0], secrets[1]
			return withClient(cmd, opts, func(ctx context.Context, env *clientEnv) error {
				if err := env.manager.ChangePassword(ctx, current, next); err != nil {
					return err
				}
				cmd.Println("Password changed")
				return nil
			})
		},
	}
}

func newUserCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Register a new user (admin only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			email, _ := flags.GetString("email")
			first, _ := flags.GetString("first-name")
			last, _ := flags.GetString("last-name")
			roleName, _ := flags.GetString("role")
			groupID, _ := flags.GetInt64("group-id")

			role, err := auth.ParseRole(roleName)
			if err != nil {
				return err
			}
			in := auth.NewUserInput{Email: email, FirstName: first, LastName: last, Role: role}
			if flags.Changed("group-id") {
				in.GroupID = &groupID
			}
			secrets, err := readSecrets(cmd, "Password for new user: ")
			if err != nil {
				return err
			}
			in.Password = secrets[0]

			return withClient(cmd, opts, func(ctx context.Context, env *clientEnv) error {
				u, err := env.manager.Register(ctx, in)
				if err != nil {
					return err
				}
				cmd.Printf("Created %s %s (%s)\n", u.Role, u.Email, u.ID)
				return nil
			})
		},
	}
	create.Flags().String("email", "", "email address")
	create.Flags().String("first-name", "", "first name")
	create.Flags().String("last-name", "", "last name")
	create.Flags().String("role", "", "admin, chairperson or secretary")
	create.Flags().Int64("group-id", 0, "group the user belongs to (required for chairperson and secretary)")
	cmd.AddCommand(create)

	return cmd
}

func newProfileCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage your own profile",
	}

	update := &cobra.Command{
		Use:   "update",
		Short: "Change your email or name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var p auth.ProfileUpdate
			for name, dst := range map[string]**string{
				"email":      &p.Email,
				"first-name": &p.FirstName,
				"last-name":  &p.LastName,
			} {
				if cmd.Flags().Changed(name) {
					v, _ := cmd.Flags().GetString(name)
					*dst = &v
				}
			}
			return withClient(cmd, opts, func(ctx context.Context, env *clientEnv) error {
				u, err := env.manager.UpdateProfile(ctx, p)
				if err != nil {
					return err
				}
				cmd.Printf("Profile updated: %s <%s>\n", u.FullName(), u.Email)
				return nil
			})
		},
	}
	update.Flags().String("email", "", "new email address")
	update.Flags().String("first-name", "", "new first name")
	update.Flags().String("last-name", "", "new last name")
	cmd.AddCommand(update)

	return cmd
}

// readSecrets prompts for each value without echo on a terminal, and reads
// one line per prompt otherwise.
func readSecrets(cmd *cobra.Command, prompts ...string) ([]string, error) {
	in := cmd.InOrStdin()
	out := make([]string, 0, len(prompts))

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		for _, prompt := range prompts {
			cmd.PrintErr(prompt)
			b, err := term.ReadPassword(int(f.Fd()))
			cmd.PrintErrln()
			if err != nil {
				return nil, oops.Code("CLI_INPUT_FAILED").Wrap(err)
			}
			out = append(out, string(b))
		}
		return out, nil
	}

	r := bufio.NewReader(in)
	for _, prompt := range prompts {
		line, err := r.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return nil, oops.Code("CLI_INPUT_FAILED").Wrapf(err, "read %s", strings.TrimSuffix(prompt, ": "))
		}
		out = append(out, strings.TrimRight(line, "\r\n"))
	}
	return out, nil
}
