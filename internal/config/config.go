// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PlayerGate Contributors

// Package config loads and validates PlayerGate configuration.
//
// Configuration is layered, later sources overriding earlier ones:
// built-in defaults, an optional YAML file, PLAYERGATE_* environment
// variables, and command-line flags. The result is an explicit Config
// struct constructed once at startup and passed into constructors.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/playergate/playergate/internal/xdg"
)

// InsecureDefaultSecret is the built-in development token secret.
// Anyone holding the signing secret can forge any identity, so serving
// with this value outside local development is a misconfiguration; the
// serve command logs a prominent warning when it is in effect.
const InsecureDefaultSecret = "dev-secret-key-change-me"

// envPrefix namespaces PlayerGate environment variables, e.g.
// PLAYERGATE_SERVER_ADDR overrides server.addr.
const envPrefix = "PLAYERGATE_"

// Config is the root configuration for all PlayerGate processes.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	Log      LogConfig      `koanf:"log"`
}

// ServerConfig configures the public API listener and the
// observability listener.
type ServerConfig struct {
	Addr        string    `koanf:"addr"`
	MetricsAddr string    `koanf:"metrics_addr"`
	TLS         TLSConfig `koanf:"tls"`
}

// TLSConfig configures transport security for the API listener.
// When Enabled is true and no cert/key pair is given, a locally
// generated CA under CertsDir is used (development only).
type TLSConfig struct {
	Enabled  bool   `koanf:"enabled"`
	CertFile string `koanf:"cert_file"`
	KeyFile  string `koanf:"key_file"`
	CertsDir string `koanf:"certs_dir"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	URL            string        `koanf:"url"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
}

// AuthConfig configures the authentication core.
type AuthConfig struct {
	TokenSecret  string        `koanf:"token_secret"`
	TokenTTL     time.Duration `koanf:"token_ttl"`
	StoreTimeout time.Duration `koanf:"store_timeout"`
}

// LogConfig configures structured logging output.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// defaults returns the built-in configuration layer.
func defaults() map[string]any {
	return map[string]any{
		"server.addr":              ":8080",
		"server.metrics_addr":      "127.0.0.1:9100",
		"server.tls.enabled":       false,
		"server.tls.cert_file":     "",
		"server.tls.key_file":      "",
		"server.tls.certs_dir":     "",
		"database.url":             "",
		"database.connect_timeout": 30 * time.Second,
		"auth.token_secret":        InsecureDefaultSecret,
		"auth.token_ttl":           168 * time.Hour,
		"auth.store_timeout":       5 * time.Second,
		"log.format":               "json",
		"log.level":                "info",
	}
}

// DefaultPath returns the default config file location under the XDG
// config directory.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigDir(), "config.yaml")
}

// Load builds a Config from defaults, the YAML file at path (skipped
// when path is empty and the default file does not exist), environment
// variables, and the given flag set (may be nil).
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("layer", "defaults").Wrap(err)
	}

	explicit := path != ""
	if path == "" {
		path = DefaultPath()
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// A missing default file is fine; a missing explicit file is not.
		if explicit || !os.IsNotExist(err) {
			return nil, oops.Code("CONFIG_INVALID").With("path", path).Wrap(err)
		}
	}

	// PLAYERGATE_AUTH_TOKEN_SECRET -> auth.token_secret
	if err := k.Load(env.Provider(envPrefix, ".", envToKey), nil); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("layer", "env").Wrap(err)
	}

	// DATABASE_URL wins over database.url, matching what deployment
	// platforms inject.
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		if err := k.Set("database.url", dbURL); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("layer", "env").Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("layer", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "unmarshal").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values that would fail at
// runtime. The database URL is checked by the commands that need it,
// not here, so read-only commands work without one.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("server.addr is required")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").Errorf("log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return oops.Code("CONFIG_INVALID").Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	if c.Auth.TokenSecret == "" {
		return oops.Code("CONFIG_INVALID").Errorf("auth.token_secret is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("auth.token_ttl must be positive, got %s", c.Auth.TokenTTL)
	}
	if c.Auth.StoreTimeout <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("auth.store_timeout must be positive, got %s", c.Auth.StoreTimeout)
	}
	if c.Server.TLS.Enabled {
		// Either an explicit pair or neither (generated local CA).
		if (c.Server.TLS.CertFile == "") != (c.Server.TLS.KeyFile == "") {
			return oops.Code("CONFIG_INVALID").Errorf("server.tls.cert_file and server.tls.key_file must be set together")
		}
	}
	return nil
}

// UsingInsecureSecret reports whether the built-in development token
// secret is in effect.
func (c *Config) UsingInsecureSecret() bool {
	return c.Auth.TokenSecret == InsecureDefaultSecret
}

// envToKey maps an environment variable name to a config key. The
// first underscore after the prefix separates the section from the key
// name; underscores inside key names stay literal, so
// PLAYERGATE_AUTH_TOKEN_SECRET becomes auth.token_secret. The tls
// subsection is the one nested group and is handled explicitly.
func envToKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	parts := strings.SplitN(s, "_", 2)
	if len(parts) != 2 {
		return s
	}
	key := parts[0] + "." + parts[1]
	if rest, found := strings.CutPrefix(key, "server.tls_"); found {
		key = "server.tls." + rest
	}
	return key
}
