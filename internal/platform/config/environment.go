package config

import "fmt"

// Environment names a runtime profile selected by the CONFIG_ENV variable.
type Environment string

const (
	EnvLocal Environment = "local"
	EnvTest  Environment = "test"
	EnvPrd   Environment = "prd"
)

// ParseEnvironment validates a CONFIG_ENV value. An empty value selects the
// local profile.
func ParseEnvironment(raw string) (Environment, error) {
	switch Environment(raw) {
	case "":
		return EnvLocal, nil
	case EnvLocal, EnvTest, EnvPrd:
		return Environment(raw), nil
	default:
		return "", fmt.Errorf("unknown CONFIG_ENV %q", raw)
	}
}

// String returns the profile name as reported by the healthcheck.
func (e Environment) String() string {
	return string(e)
}

// IsLocal reports whether the profile is the developer default.
func (e Environment) IsLocal() bool {
	return e == EnvLocal
}
