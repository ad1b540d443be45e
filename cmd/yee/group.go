// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

package main

import (
	"context"
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/paeltech/yee-sub000/internal/auth"
)

func newGroupCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Manage youth groups",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create NAME",
		Short: "Create a group with a fresh join code (admin only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, opts, func(ctx context.Context, env *clientEnv) error {
				if err := requireSignedIn(env); err != nil {
					return err
				}
				if !env.manager.HasRole(auth.RoleAdmin) {
					return forbidden(env, "create group")
				}
				g, err := env.groups.Create(ctx, args[0])
				if err != nil {
					return err
				}
				cmd.Printf("Created group %d %q with join code %s\n", g.ID, g.Name, g.Code)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "regen-code ID",
		Short: "Give a group a new join code",
		Long:  `Give a group a new join code. Admins may do this for any group; chairpersons and secretaries for their own.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return oops.Code("CLI_USAGE").With("id", args[0]).Errorf("group id must be a positive integer")
			}
			return withClient(cmd, opts, func(ctx context.Context, env *clientEnv) error {
				if err := requireSignedIn(env); err != nil {
					return err
				}
				if !env.manager.CanManageGroup(id) {
					return forbidden(env, "regenerate group code")
				}
				g, err := env.groups.RegenerateCode(ctx, id)
				if err != nil {
					return err
				}
				cmd.Printf("Group %d join code is now %s\n", g.ID, g.Code)
				return nil
			})
		},
	})

	return cmd
}

func requireSignedIn(env *clientEnv) error {
	if env.manager.Current() == nil {
		return oops.Code(auth.CodeNotAuthenticated).
			Hint("run 'yee login --email you@example.org'").
			Errorf("not signed in")
	}
	return nil
}

func forbidden(env *clientEnv, op string) error {
	u := env.manager.Current()
	return oops.Code(auth.CodeForbidden).
		With("operation", op).
		With("user_id", u.ID.String()).
		With("role", string(u.Role)).
		Errorf("%s is not allowed for role %s", op, u.Role)
}
