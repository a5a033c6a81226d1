package token

import (
	"time"

	"lifeasagame.dev/internal/platform/config"
)

// envConfig holds raw env values for token signing.
type envConfig struct {
	PrimarySecret   string        `env:"PRIMARY_SECRET"`
	SecondarySecret string        `env:"SECONDARY_SECRET"`
	AccessTTL       time.Duration `env:"ACCESS_TOKEN_TTL"  envDefault:"5m"`
	RefreshTTL      time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`
}

// LoadConfigFromEnv loads token signing configuration from environment
// variables. Malformed lifetimes fall back to the package defaults.
func LoadConfigFromEnv() Config {
	var raw envConfig
	if err := config.ParseEnv(&raw); err != nil {
		return Config{
			PrimarySecret:   raw.PrimarySecret,
			SecondarySecret: raw.SecondarySecret,
			AccessTTL:       AccessTTL,
			RefreshTTL:      RefreshTTL,
		}
	}
	return Config{
		PrimarySecret:   raw.PrimarySecret,
		SecondarySecret: raw.SecondarySecret,
		AccessTTL:       raw.AccessTTL,
		RefreshTTL:      raw.RefreshTTL,
	}
}
