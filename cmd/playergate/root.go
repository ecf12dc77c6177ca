// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PlayerGate Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the PlayerGate CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "playergate",
		Short: "PlayerGate - player account authentication service",
		Long: `PlayerGate is an authentication backend for a game platform:
register players, verify email/password credentials, issue bearer
tokens, and resolve tokens back to player profiles.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewCertsCmd())

	return cmd
}
