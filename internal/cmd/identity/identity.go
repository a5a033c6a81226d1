// Package identity parses identity command flags and composes the server
// entrypoint.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"

	entrypoint "lifeasagame.dev/internal/platform/cmd"
	"lifeasagame.dev/internal/platform/config"
	server "lifeasagame.dev/internal/services/identity/app"
	"lifeasagame.dev/internal/services/identity/session"
	"lifeasagame.dev/internal/services/identity/token"
)

// Config holds identity command configuration.
type Config struct {
	HTTPAddr     string
	DatabasePath string
	Environment  config.Environment
	Debug        bool
	MaxConns     int
	Tokens       token.Config
	Sessions     session.Config
}

// EnvLookup returns the value for a key when present.
type EnvLookup func(string) (string, bool)

// ParseConfig parses environment and flags into a Config.
//
// PRIMARY_SECRET must be set in the prd profile; the process exits instead of
// signing tokens with a generated secret there. Local and test profiles fall
// back to a random per-process secret with a warning.
func ParseConfig(fs *flag.FlagSet, args []string, lookup EnvLookup) (Config, error) {
	environment, err := config.ParseEnvironment(envOrDefault(lookup, "CONFIG_ENV", ""))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		HTTPAddr: net.JoinHostPort(
			envOrDefault(lookup, "SERVER_HOST", "0.0.0.0"),
			envOrDefault(lookup, "SERVER_PORT", "18000"),
		),
		DatabasePath: envOrDefault(lookup, "DB_PATH", "identity.db"),
		Environment:  environment,
		Debug:        environment.IsLocal(),
		MaxConns:     15,
	}
	if raw := envOrDefault(lookup, "DEBUG", ""); raw != "" {
		debug, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse DEBUG: %w", err)
		}
		cfg.Debug = debug
	}
	if raw := envOrDefault(lookup, "SERVER_WORKER_CONNECTIONS", ""); raw != "" {
		maxConns, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse SERVER_WORKER_CONNECTIONS: %w", err)
		}
		if maxConns < 0 {
			return Config{}, fmt.Errorf("SERVER_WORKER_CONNECTIONS must not be negative, got %d", maxConns)
		}
		cfg.MaxConns = maxConns
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "The identity HTTP server address")
	fs.StringVar(&cfg.DatabasePath, "db-path", cfg.DatabasePath, "The identity sqlite database path")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg.Tokens = token.LoadConfigFromEnv()
	cfg.Sessions = session.LoadConfigFromEnv()
	if strings.TrimSpace(cfg.Tokens.PrimarySecret) == "" {
		if cfg.Environment == config.EnvPrd {
			config.Exitf("PRIMARY_SECRET must be set when CONFIG_ENV=%s", cfg.Environment)
		}
		secret, err := developmentSecret()
		if err != nil {
			return Config{}, err
		}
		cfg.Tokens.PrimarySecret = secret
		log.Printf("PRIMARY_SECRET is not set, using a generated %s secret", cfg.Environment)
	}
	return cfg, nil
}

// Run starts the identity server with tracing configured around the serve
// loop.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceIdentity, func(ctx context.Context) error {
		if cfg.Debug {
			log.Printf(
				"config http_addr=%s db_path=%s environment=%s max_conns=%d",
				cfg.HTTPAddr, cfg.DatabasePath, cfg.Environment, cfg.MaxConns,
			)
		}
		if err := server.Run(ctx, server.Config{
			HTTPAddr:     cfg.HTTPAddr,
			DatabasePath: cfg.DatabasePath,
			Environment:  cfg.Environment,
			MaxConns:     cfg.MaxConns,
			Tokens:       cfg.Tokens,
			Sessions:     cfg.Sessions,
		}); err != nil {
			return fmt.Errorf("serve identity: %w", err)
		}
		return nil
	})
}

func developmentSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate development token secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func envOrDefault(lookup EnvLookup, key, fallback string) string {
	if lookup == nil {
		return fallback
	}
	if value, ok := lookup(key); ok {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
