// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PlayerGate Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/playergate/playergate/internal/auth"
	authpg "github.com/playergate/playergate/internal/auth/postgres"
	"github.com/playergate/playergate/internal/config"
	"github.com/playergate/playergate/internal/store"
)

// Default timeout for the seed command.
const defaultSeedTimeout = 30 * time.Second

// seedFile is the YAML shape the seed command reads.
type seedFile struct {
	Users []seedUser `yaml:"users"`
}

type seedUser struct {
	Email     string  `yaml:"email"`
	Password  string  `yaml:"password"`
	Nickname  string  `yaml:"nickname"`
	AvatarURL *string `yaml:"avatar_url,omitempty"`
}

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	file     string
	validate bool
	timeout  time.Duration
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed player accounts from a YAML file",
		Long: `Creates player accounts listed in a YAML file. This command is
idempotent - accounts whose email already exists are skipped, not
duplicated. With --validate the file is checked without touching the
database (useful in CI):

  playergate seed --file players.yaml --validate`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.file, "file", "", "YAML file with a users list (required)")
	cmd.Flags().BoolVar(&cfg.validate, "validate", false, "validate the seed file without a database connection")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")
	_ = cmd.MarkFlagRequired("file") //nolint:errcheck // flag is registered above

	return cmd
}

func runSeed(cmd *cobra.Command, cfg *seedConfig) error {
	users, err := loadSeedFile(cfg.file)
	if err != nil {
		return err
	}

	if cfg.validate {
		cmd.Printf("Seed file valid: %d user(s)\n", len(users))
		return nil
	}

	appCfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}
	if appCfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url is required (set DATABASE_URL)")
	}

	// Use cmd.Context() to respect SIGINT/SIGTERM signals
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	cmd.Println("Connecting to database...")
	st, err := store.Connect(ctx, appCfg.Database.URL, appCfg.Database.ConnectTimeout)
	if err != nil {
		return err
	}
	defer st.Close()

	repo := authpg.NewUserRepository(st.Pool())
	hasher := auth.NewArgon2idHasher()

	var created, skipped int
	for _, u := range users {
		hash, hashErr := hasher.Hash(u.Password)
		if hashErr != nil {
			return oops.Code("SEED_FAILED").With("email", u.Email).With("operation", "hash password").Wrap(hashErr)
		}

		user, newErr := auth.NewUser(u.Email, hash, u.Nickname, u.AvatarURL)
		if newErr != nil {
			return oops.Code("SEED_FAILED").With("email", u.Email).Wrap(newErr)
		}

		if createErr := repo.Create(ctx, user); createErr != nil {
			// The unique index arbitrates; an existing email is a skip,
			// not a failure.
			if errors.Is(createErr, auth.ErrDuplicateEmail) {
				cmd.Printf("Skipping %s: already registered\n", u.Email)
				slog.Info("seed user already exists", "email", u.Email)
				skipped++
				continue
			}
			return oops.Code("SEED_FAILED").With("email", u.Email).With("operation", "create user").Wrap(createErr)
		}

		cmd.Printf("Created %s (%s)\n", u.Email, u.Nickname)
		slog.Info("seed user created", "id", user.ID, "email", user.Email)
		created++
	}

	cmd.Printf("Seeding complete: %d created, %d skipped\n", created, skipped)
	return nil
}

// loadSeedFile parses and validates the seed YAML. Validation reuses
// the registration rules so a file that validates here will seed
// cleanly (duplicates aside).
func loadSeedFile(path string) ([]seedUser, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, oops.Code("SEED_FILE_INVALID").With("path", path).Wrap(err)
	}

	var sf seedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, oops.Code("SEED_FILE_INVALID").With("path", path).Wrap(err)
	}
	if len(sf.Users) == 0 {
		return nil, oops.Code("SEED_FILE_INVALID").With("path", path).Errorf("seed file has no users")
	}

	seen := make(map[string]struct{}, len(sf.Users))
	for i, u := range sf.Users {
		// Normalize before validating, matching what registration does.
		email := auth.NormalizeEmail(u.Email)
		params := auth.RegisterParams{
			Email:     email,
			Password:  u.Password,
			Nickname:  u.Nickname,
			AvatarURL: u.AvatarURL,
		}
		if err := params.Validate(); err != nil {
			// Flatten the cause: wrapping would let its code shadow ours.
			return nil, oops.Code("SEED_FILE_INVALID").
				With("path", path).
				With("index", i).
				With("email", email).
				Errorf("user %d: %v", i, err)
		}
		if _, dup := seen[email]; dup {
			return nil, oops.Code("SEED_FILE_INVALID").
				With("path", path).
				Errorf("duplicate email in seed file: %s", email)
		}
		seen[email] = struct{}{}
		sf.Users[i].Email = email
	}

	return sf.Users, nil
}
