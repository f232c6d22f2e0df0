// Package config loads the deployd runtime configuration from an optional
// .env file and DEPLOY_* environment variables. Command-line flags are
// applied on top by cmd/deployd.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const EnvPrefix = "DEPLOY_"

// Store kinds accepted by STORE.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
	StoreMongo  = "mongo"
)

type Config struct {
	Port          int           `env:"PORT" envDefault:"8080"`
	Store         string        `env:"STORE" envDefault:"sqlite"`
	DBPath        string        `env:"DB_PATH" envDefault:"deploy.db"`
	MongoURI      string        `env:"MONGO_URI"`
	MongoDatabase string        `env:"MONGO_DATABASE" envDefault:"deploy"`
	HorizonDays   int           `env:"HORIZON_DAYS" envDefault:"42"` // compliance look-ahead
	Timezone      string        `env:"TIMEZONE" envDefault:"Local"`
	RollEnabled   bool          `env:"ROLL_ENABLED" envDefault:"true"`
	RollInterval  time.Duration `env:"ROLL_INTERVAL" envDefault:"1h"`
	CORSOrigins   []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"info"`
	Dev           bool          `env:"DEV" envDefault:"false"`
}

// Load reads envFile when it exists (an empty path means ".env") and then
// parses the process environment. Variables already set win over the file.
// The result is not validated; call Validate once every override is in.
func Load(envFile string) (Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load env file %s: %w", envFile, err)
	}
	return parse(env.Options{Prefix: EnvPrefix})
}

// FromMap parses vars (keys without the prefix) instead of the process
// environment.
func FromMap(vars map[string]string) (Config, error) {
	prefixed := make(map[string]string, len(vars))
	for k, v := range vars {
		prefixed[EnvPrefix+k] = v
	}
	return parse(env.Options{Prefix: EnvPrefix, Environment: prefixed})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Store = NormalizeStore(cfg.Store)
	return cfg, nil
}

// NormalizeStore lower-cases and trims a store kind.
func NormalizeStore(kind string) string {
	return strings.ToLower(strings.TrimSpace(kind))
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.HorizonDays <= 0 {
		return fmt.Errorf("horizon days must be positive, got %d", c.HorizonDays)
	}
	switch c.Store {
	case StoreSQLite:
		if c.DBPath == "" {
			return errors.New("sqlite store requires DB_PATH")
		}
	case StoreMemory:
	case StoreMongo:
		if c.MongoURI == "" {
			return errors.New("mongo store requires MONGO_URI")
		}
	default:
		return fmt.Errorf("unknown store %q (want sqlite, memory or mongo)", c.Store)
	}
	if c.RollEnabled && c.RollInterval <= 0 {
		return fmt.Errorf("roll interval must be positive, got %s", c.RollInterval)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone; "Local" and "" mean the host zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c Config) Addr() string { return fmt.Sprintf(":%d", c.Port) }
