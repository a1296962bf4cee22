package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("STORE_DRIVER", "sqlite")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ":8080", cfg.HTTPAddress())
	assert.Equal(t, "ledger.db", cfg.SQLitePath)
	assert.Equal(t, "planetq-ledger", cfg.JWTIssuer)
	assert.Equal(t, time.Hour, cfg.JWTTTL)
	assert.Equal(t, 1.0, cfg.RewardPointsPerMinute)
	assert.Equal(t, 50, cfg.HistoryLimit)
}

func TestLoadReadsDotEnv(t *testing.T) {
	chdirTemp(t)
	t.Setenv("JWT_SECRET", "test-secret")
	require.NoError(t, os.WriteFile(".env", []byte("STORE_DRIVER=sqlite\nSERVER_PORT=9191\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("STORE_DRIVER")
		os.Unsetenv("SERVER_PORT")
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9191", cfg.Port)
	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
}

func TestLoadRequiresSecret(t *testing.T) {
	chdirTemp(t)
	t.Setenv("JWT_SECRET", "")
	t.Setenv("STORE_DRIVER", "sqlite")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			StoreDriver:           DriverPostgres,
			DBSource:              "postgres://localhost/ledger",
			DBMaxConns:            10,
			DBMinConns:            1,
			JWTSecret:             "secret",
			JWTTTL:                time.Minute,
			RewardPointsPerMinute: 1,
			HistoryLimit:          10,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"postgres without source", func(c *Config) { c.DBSource = "" }, true},
		{"unknown driver", func(c *Config) { c.StoreDriver = "mysql" }, true},
		{"min above max", func(c *Config) { c.DBMinConns = 20 }, true},
		{"zero reward rate", func(c *Config) { c.RewardPointsPerMinute = 0 }, true},
		{"zero history limit", func(c *Config) { c.HistoryLimit = 0 }, true},
		{"sqlite without source", func(c *Config) { c.StoreDriver = DriverSQLite; c.DBSource = ""; c.SQLitePath = "x.db" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
