// Package config loads SDK configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config contains client configuration parameters.
type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	API      API    `envPrefix:"API_"`
	Auth     Auth   `envPrefix:"AUTH_"`
	Store    Store  `envPrefix:"STORE_"`
	Cache    Cache  `envPrefix:"CACHE_"`
}

// API contains request-layer parameters.
type API struct {
	BaseURL string        `env:"BASE_URL" envDefault:"https://placeholder.api"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"15s"`
}

// Auth contains session parameters.
type Auth struct {
	// RefreshLead is how long before access-token expiry the proactive
	// refresh runs.
	RefreshLead time.Duration `env:"REFRESH_LEAD" envDefault:"1m"`
}

// Store contains secure-store parameters.
type Store struct {
	Path       string `env:"PATH" envDefault:"localspot.store"`
	Passphrase string `env:"PASSPHRASE" envDefault:""`
	KDF        KDF    `envPrefix:"KDF_"`
}

// KDF contains argon2id parameters for the store's key derivation.
type KDF struct {
	Time   uint32 `env:"TIME" envDefault:"1"`
	MemKiB uint32 `env:"MEM" envDefault:"65536"`
	Par    uint8  `env:"PAR" envDefault:"4"`
}

// Cache contains cache parameters.
type Cache struct {
	DefaultTTL time.Duration `env:"DEFAULT_TTL" envDefault:"1h"`
}

// New loads configuration from LOCALSPOT_-prefixed environment variables.
func New() (*Config, error) {
	cfg := Config{}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "LOCALSPOT_"}); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
