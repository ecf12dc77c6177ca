// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PlayerGate Contributors

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/playergate/playergate/internal/config"
	"github.com/playergate/playergate/internal/store"
)

// ServiceStatus holds the probe results for a running instance.
type ServiceStatus struct {
	Live             bool   `json:"live"`
	Ready            bool   `json:"ready"`
	MigrationVersion uint   `json:"migration_version,omitempty"`
	MigrationName    string `json:"migration_name,omitempty"`
	MigrationDirty   bool   `json:"migration_dirty,omitempty"`
	Error            string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	jsonOutput bool
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show status of a running PlayerGate instance",
		Long: `Probe the observability listener's health endpoints and report the
current database migration version.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")

	return cmd
}

// runStatus executes the status command.
func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	appCfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	status := queryServiceStatus(appCfg)

	if cfg.jsonOutput {
		data, marshalErr := json.MarshalIndent(status, "", "  ")
		if marshalErr != nil {
			return fmt.Errorf("failed to marshal status: %w", marshalErr)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Println(formatStatusTable(status))
	return nil
}

// queryServiceStatus probes health endpoints and the migration version.
// Probe failures populate Error but never abort: a stopped service is a
// status, not a command failure.
func queryServiceStatus(appCfg *config.Config) ServiceStatus {
	var status ServiceStatus

	client := &http.Client{Timeout: 2 * time.Second}
	base := "http://" + appCfg.Server.MetricsAddr

	status.Live = probe(client, base+"/healthz/liveness")
	if status.Live {
		status.Ready = probe(client, base+"/healthz/readiness")
	} else {
		status.Error = "observability listener unreachable"
	}

	if appCfg.Database.URL != "" {
		if migrator, err := store.NewMigrator(appCfg.Database.URL); err == nil {
			version, dirty, verErr := migrator.Version()
			if verErr == nil {
				status.MigrationVersion = version
				status.MigrationDirty = dirty
				if name, nameErr := store.MigrationName(version); nameErr == nil {
					status.MigrationName = name
				}
			} else if status.Error == "" {
				status.Error = fmt.Sprintf("migration version: %v", verErr)
			}
			_ = migrator.Close() //nolint:errcheck // read-only probe
		} else if status.Error == "" {
			status.Error = fmt.Sprintf("migrator: %v", err)
		}
	}

	return status
}

// probe returns true when the endpoint answers 200.
func probe(client *http.Client, url string) bool {
	resp, err := client.Get(url)
	if err != nil {
		return false
	}
	_ = resp.Body.Close() //nolint:errcheck // probe only cares about the status
	return resp.StatusCode == http.StatusOK
}

// formatStatusTable formats the status as a human-readable table.
func formatStatusTable(status ServiceStatus) string {
	var buf []byte
	w := tabwriter.NewWriter((*byteWriter)(&buf), 0, 0, 2, ' ', 0)

	boolWord := func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	}

	_, _ = fmt.Fprintln(w, "CHECK\tRESULT")
	_, _ = fmt.Fprintln(w, "-----\t------")
	_, _ = fmt.Fprintf(w, "live\t%s\n", boolWord(status.Live))
	_, _ = fmt.Fprintf(w, "ready\t%s\n", boolWord(status.Ready))
	if status.MigrationVersion > 0 {
		migration := fmt.Sprintf("%d (%s)", status.MigrationVersion, status.MigrationName)
		if status.MigrationDirty {
			migration += " DIRTY"
		}
		_, _ = fmt.Fprintf(w, "migration\t%s\n", migration)
	}
	if status.Error != "" {
		_, _ = fmt.Fprintf(w, "error\t%s\n", status.Error)
	}

	_ = w.Flush()
	return string(buf)
}

// byteWriter is a simple writer that appends to a byte slice.
type byteWriter []byte

func (w *byteWriter) Write(p []byte) (int, error) {
	*w = append(*w, p...)
	return len(p), nil
}
