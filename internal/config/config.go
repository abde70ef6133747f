// Package config loads shopcli settings from ~/.shopcli/config.toml, an
// optional .env file and SHOPCLI_* environment variables, in increasing order
// of precedence. Command-line flags are applied on top by cmd.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Environment variables that override the file.
const (
	EnvAPIURL    = "SHOPCLI_API_URL"
	EnvToken     = "SHOPCLI_TOKEN"
	EnvTokenFile = "SHOPCLI_TOKEN_FILE"
	EnvCache     = "SHOPCLI_CACHE"
	EnvRedisURL  = "SHOPCLI_REDIS_URL"
	EnvLogLevel  = "SHOPCLI_LOG_LEVEL"
)

type API struct {
	BaseURL   string  `toml:"base_url"`
	RateLimit float64 `toml:"rate_limit"`
	Burst     int     `toml:"burst"`
	// TimeoutSeconds bounds each HTTP request.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

type Auth struct {
	Token     string `toml:"token"`
	TokenFile string `toml:"token_file"`
}

type Cache struct {
	Backend  string `toml:"backend"`
	DataDir  string `toml:"data_dir"`
	RedisURL string `toml:"redis_url"`
}

type Facets struct {
	CollapsedBase int `toml:"collapsed_base"`
	Step          int `toml:"step"`
}

type Log struct {
	Level string `toml:"level"`
}

// Config is the merged configuration.
type Config struct {
	API    API    `toml:"api"`
	Auth   Auth   `toml:"auth"`
	Cache  Cache  `toml:"cache"`
	Facets Facets `toml:"facets"`
	Log    Log    `toml:"log"`

	// Path is the file the config was read from, if any.
	Path string `toml:"-"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		API: API{
			BaseURL:        "http://localhost:8080/api",
			RateLimit:      10,
			Burst:          5,
			TimeoutSeconds: 15,
		},
		Cache:  Cache{Backend: "sqlite"},
		Facets: Facets{CollapsedBase: 5, Step: 50},
		Log:    Log{Level: "warn"},
	}
}

// Dir returns ~/.shopcli.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".shopcli"), nil
}

// Load reads path (default ~/.shopcli/config.toml) over the defaults, then
// applies envFiles (default ".env" in the working directory) and the process
// environment. A missing config or env file is not an error.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path == "" {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "config.toml")
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		cfg.Path = path
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		// Existing environment variables win over the file.
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	setString(EnvAPIURL, &c.API.BaseURL)
	setString(EnvToken, &c.Auth.Token)
	setString(EnvTokenFile, &c.Auth.TokenFile)
	setString(EnvCache, &c.Cache.Backend)
	setString(EnvRedisURL, &c.Cache.RedisURL)
	setString(EnvLogLevel, &c.Log.Level)

	if v, ok := os.LookupEnv("SHOPCLI_RATE_LIMIT"); ok && v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid SHOPCLI_RATE_LIMIT %q: %w", v, err)
		}
		c.API.RateLimit = rps
	}
	return nil
}

// TokenFilePath returns the configured token file, defaulting to
// ~/.shopcli/token.
func (c *Config) TokenFilePath() string {
	if c.Auth.TokenFile != "" {
		return c.Auth.TokenFile
	}
	dir, err := Dir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "token")
}
