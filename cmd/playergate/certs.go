// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PlayerGate Contributors

package main

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/playergate/playergate/internal/tls"
	"github.com/playergate/playergate/internal/xdg"
)

// certsConfig holds configuration for the certs command.
type certsConfig struct {
	dir   string
	hosts []string
}

// NewCertsCmd creates the certs subcommand.
func NewCertsCmd() *cobra.Command {
	cfg := &certsConfig{}

	cmd := &cobra.Command{
		Use:   "certs",
		Short: "Generate development TLS certificates",
		Long: `Generate a local CA and API server certificate for development TLS.
Refuses to overwrite existing material; delete the certs directory
first to regenerate.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCerts(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.dir, "certs-dir", "", "output directory (default: XDG data dir)")
	cmd.Flags().StringSliceVar(&cfg.hosts, "host", nil, "extra DNS names or IPs for the server certificate")

	return cmd
}

func runCerts(cmd *cobra.Command, cfg *certsConfig) error {
	dir := cfg.dir
	if dir == "" {
		dir = xdg.CertsDir()
	}

	for _, name := range []string{"root-ca.crt", "root-ca.key", "api.crt", "api.key"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return oops.Code("CERTS_EXIST").
				With("path", filepath.Join(dir, name)).
				Errorf("certificate material already exists in %s", dir)
		}
	}

	ca, err := tls.GenerateCA()
	if err != nil {
		return oops.Code("CERTS_FAILED").With("operation", "generate CA").Wrap(err)
	}
	serverCert, err := tls.GenerateServerCert(ca, cfg.hosts...)
	if err != nil {
		return oops.Code("CERTS_FAILED").With("operation", "generate server certificate").Wrap(err)
	}
	if err := tls.SaveCertificates(dir, ca, serverCert); err != nil {
		return oops.Code("CERTS_FAILED").With("operation", "save certificates").Wrap(err)
	}

	cmd.Printf("Generated development TLS material in %s\n", dir)
	cmd.Println("  root-ca.crt  root-ca.key  api.crt  api.key")
	return nil
}
