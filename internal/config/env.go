package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Env is the process configuration read from environment variables.
type Env struct {
	Addr           string        `env:"BATTLE_ADDR"`
	ConfigPath     string        `env:"BATTLE_CONFIG"   envDefault:"./battle_config.json"`
	DBPath         string        `env:"BATTLE_DB"       envDefault:"file::memory:?cache=shared"`
	SessionSecret  string        `env:"SESSION_SECRET"`
	AdminKey       string        `env:"ADMIN_KEY"`
	LogLevel       string        `env:"LOG_LEVEL"       envDefault:"info"`
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
	GinMode        string        `env:"GIN_MODE"        envDefault:"release"`
	SweepInterval  time.Duration `env:"SWEEP_INTERVAL"  envDefault:"1m"`
}

// LoadEnv parses Env from the environment.
func LoadEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}

// Address picks the listen address: env first, then the file, then the default.
func (e Env) Address(cfg *LoadedConfig) string {
	if e.Addr != "" {
		return e.Addr
	}
	return cfg.ServerAddress
}
