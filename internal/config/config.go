package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Port      string `envconfig:"SERVER_PORT" default:"8080"`
	Env       string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	StoreDriver string `envconfig:"STORE_DRIVER" default:"postgres"`
	DBSource    string `envconfig:"DB_SOURCE"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"ledger.db"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns  int32  `envconfig:"DB_MIN_CONNS" default:"2"`

	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	JWTIssuer string        `envconfig:"JWT_ISSUER" default:"planetq-ledger"`
	JWTTTL    time.Duration `envconfig:"JWT_TTL" default:"1h"`

	RewardPointsPerMinute float64 `envconfig:"REWARD_POINTS_PER_MINUTE" default:"1"`
	HistoryLimit          int     `envconfig:"HISTORY_LIMIT" default:"50"`
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DBSource == "" {
			return fmt.Errorf("DB_SOURCE environment variable is required for the %s driver", DriverPostgres)
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH must not be empty")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("invalid DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}
	if c.RewardPointsPerMinute <= 0 {
		return fmt.Errorf("REWARD_POINTS_PER_MINUTE must be positive")
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("HISTORY_LIMIT must be positive")
	}
	return nil
}

// HTTPAddress returns the listen address for the API server.
func (c *Config) HTTPAddress() string {
	return ":" + c.Port
}
