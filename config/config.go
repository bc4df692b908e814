/*
Package config loads the hub daemon configuration.

Configuration is a TOML file plus defaults; every field has a working
default so the daemon runs with no file at all. Secrets (the admin token)
can also come from the environment, which wins over the file.

EXAMPLE:
  listen_addr     = ":8080"
  database_path   = "./data/hub.db"
  admin_token     = "change-me"
  base_currency   = "USD"
  base_symbol     = "$"
  verify_interval = "15m"
  metrics         = true
  allowed_origins = ["http://localhost:5173"]
*/
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the hub daemon configuration.
type Config struct {
	ListenAddr     string   `toml:"listen_addr"`
	DatabasePath   string   `toml:"database_path"`
	AdminToken     string   `toml:"admin_token"`
	BaseCurrency   string   `toml:"base_currency"`
	BaseSymbol     string   `toml:"base_symbol"`
	VerifyInterval duration `toml:"verify_interval"`
	Metrics        bool     `toml:"metrics"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// duration lets TOML carry durations as strings ("15m").
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		ListenAddr:     ":8080",
		DatabasePath:   "./data/hub.db",
		BaseCurrency:   "USD",
		BaseSymbol:     "$",
		VerifyInterval: duration{15 * time.Minute},
		Metrics:        true,
	}
}

// Load reads the TOML file at path on top of the defaults. A missing file is
// not an error; a malformed one is. HUB_ADMIN_TOKEN overrides admin_token.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("failed to load config %s: %w", path, err)
			}
		}
	}
	if token := os.Getenv("HUB_ADMIN_TOKEN"); token != "" {
		cfg.AdminToken = token
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path must not be empty")
	}
	if c.BaseCurrency == "" {
		return fmt.Errorf("base_currency must not be empty")
	}
	if c.VerifyInterval.Duration <= 0 {
		return fmt.Errorf("verify_interval must be positive")
	}
	return nil
}

// VerifyEvery returns the consistency-check interval.
func (c Config) VerifyEvery() time.Duration {
	return c.VerifyInterval.Duration
}
