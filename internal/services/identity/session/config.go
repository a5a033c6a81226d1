package session

import (
	"time"

	"lifeasagame.dev/internal/platform/config"
)

// Config tunes background maintenance of the session store.
type Config struct {
	// CleanupInterval is how often expired session rows are reaped.
	CleanupInterval time.Duration
}

type envConfig struct {
	CleanupInterval time.Duration `env:"SESSION_CLEANUP_INTERVAL" envDefault:"10m"`
}

// LoadConfigFromEnv loads session maintenance configuration from environment
// variables.
func LoadConfigFromEnv() Config {
	var raw envConfig
	if err := config.ParseEnv(&raw); err != nil {
		return Config{CleanupInterval: 10 * time.Minute}
	}
	return Config{CleanupInterval: raw.CleanupInterval}
}
