// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

package main

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/paeltech/yee-sub000/internal/auth"
	"github.com/paeltech/yee-sub000/pkg/errutil"
)

// Default timeout for seed command.
const defaultSeedTimeout = 30 * time.Second

// seedFile is the YAML layout read by yee seed. The json and jsonschema tags
// drive the schema the file is validated against.
type seedFile struct {
	Admins []seedAdmin `yaml:"admins" json:"admins" jsonschema:"minItems=1"`
}

type seedAdmin struct {
	Email     string `yaml:"email" json:"email" jsonschema:"format=email,minLength=3"`
	FirstName string `yaml:"first_name" json:"first_name" jsonschema:"minLength=1,maxLength=120"`
	LastName  string `yaml:"last_name" json:"last_name" jsonschema:"minLength=1,maxLength=120"`
	// Exactly one of Password and PasswordEnv is set. PasswordEnv names an
	// environment variable holding the password.
	Password    string `yaml:"password,omitempty" json:"password,omitempty" jsonschema:"minLength=1,oneof_required=password"`
	PasswordEnv string `yaml:"password_env,omitempty" json:"password_env,omitempty" jsonschema:"minLength=1,oneof_required=password_env"`
}

type seedConfig struct {
	file    string
	timeout time.Duration
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the initial admin accounts",
		Long: `Creates the admin accounts listed in a YAML file. Accounts whose email
already exists are left untouched, so the command is safe to re-run.

  admins:
    - email: admin@example.org
      first_name: Asha
      last_name: Mushi
      password_env: YEE_ADMIN_PASSWORD`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, opts, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.file, "file", "", "YAML file listing admin accounts (required)")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")
	_ = cmd.MarkFlagRequired("file")
	cmd.AddCommand(newSeedSchemaCmd())

	return cmd
}

func runSeed(cmd *cobra.Command, opts *rootOptions, sc *seedConfig) error {
	cfg, logger, err := opts.load(cmd)
	if err != nil {
		return err
	}

	f, err := os.Open(sc.file)
	if err != nil {
		return oops.Code("SEED_FILE_INVALID").With("path", sc.file).Wrap(err)
	}
	defer func() { _ = f.Close() }()
	seed, err := parseSeedFile(f, opts.deps.Getenv)
	if err != nil {
		return oops.With("path", sc.file).Wrap(err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), sc.timeout)
	defer cancel()

	b, err := opts.deps.OpenBackend(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer b.Close()

	created, skipped, err := seedAdmins(ctx, b.Users, b.Hasher, seed)
	if err != nil {
		return err
	}
	cmd.Printf("Seeding complete: %d created, %d already present\n", created, skipped)
	return nil
}

// parseSeedFile validates a seed file against its schema, decodes it and
// resolves password_env.
func parseSeedFile(r io.Reader, getenv func(string) string) (*seedFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, oops.Code("SEED_FILE_INVALID").Wrap(err)
	}
	if err := validateSeedDocument(data); err != nil {
		return nil, err
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, oops.Code("SEED_FILE_INVALID").Wrap(err)
	}
	for i := range seed.Admins {
		a := &seed.Admins[i]
		if a.PasswordEnv == "" {
			continue
		}
		a.Password = getenv(a.PasswordEnv)
		if a.Password == "" {
			return nil, oops.Code("SEED_FILE_INVALID").
				With("email", a.Email).
				With("password_env", a.PasswordEnv).
				Errorf("admin %d: %s is not set", i, a.PasswordEnv)
		}
	}
	return &seed, nil
}

// seedAdmins creates every admin whose email is not registered yet.
func seedAdmins(ctx context.Context, users auth.UserRepository, hasher auth.PasswordHasher, seed *seedFile) (created, skipped int, err error) {
	for _, a := range seed.Admins {
		_, err := users.GetByEmail(ctx, auth.NormalizeEmail(a.Email))
		if err == nil {
			skipped++
			continue
		}
		if !errors.Is(err, auth.ErrNotFound) {
			return created, skipped, oops.Code("SEED_FAILED").With("email", a.Email).Wrap(err)
		}

		in := auth.NewUserInput{
			Email:     a.Email,
			Password:  a.Password,
			FirstName: a.FirstName,
			LastName:  a.LastName,
			Role:      auth.RoleAdmin,
		}
		if err := in.Validate(); err != nil {
			return created, skipped, oops.With("email", a.Email).Wrap(err)
		}
		digest, err := hasher.Hash(a.Password)
		if err != nil {
			return created, skipped, err
		}
		u, err := auth.NewUser(in, digest)
		if err != nil {
			return created, skipped, err
		}
		if err := users.Create(ctx, u); err != nil {
			if errutil.Code(err) == auth.CodeEmailTaken {
				skipped++
				continue
			}
			return created, skipped, oops.Code("SEED_FAILED").With("email", a.Email).Wrap(err)
		}
		created++
	}
	return created, skipped, nil
}
