package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Narrative.Timeout)
	assert.Equal(t, 10, cfg.Narrative.TailSize)
	assert.Equal(t, 30, cfg.Forecast.Horizon)
	assert.Equal(t, "desc", cfg.Forecast.HistoryOrder)
	assert.Equal(t, "local", cfg.Artifacts.Backend)
	assert.Equal(t, time.Duration(0), cfg.Artifacts.Retention)
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("NARRATIVE_API_KEY", "  key-from-env  ")
	t.Setenv("NARRATIVE_TIMEOUT", "5s")
	t.Setenv("FORECAST_HORIZON", "14")
	t.Setenv("DATABASE_URL", "postgres://localhost/forecastd")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "key-from-env", cfg.Narrative.APIKey)
	assert.Equal(t, 5*time.Second, cfg.Narrative.Timeout)
	assert.Equal(t, 14, cfg.Forecast.Horizon)
	assert.Equal(t, "postgres://localhost/forecastd", cfg.Database.URL)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forecastd.yaml")
	content := `
environment: production
log_level: debug
auth:
  jwt_secret: 0123456789abcdef0123456789abcdef
forecast:
  horizon: 7
  history_order: asc
artifacts:
  backend: s3
  retention: 72h
  s3:
    bucket: reports
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, EnvProduction, cfg.Environment)
	assert.Equal(t, 7, cfg.Forecast.Horizon)
	assert.Equal(t, "asc", cfg.Forecast.HistoryOrder)
	assert.Equal(t, "reports", cfg.Artifacts.S3.Bucket)
	assert.Equal(t, "forecastd", cfg.Artifacts.S3.Prefix)
	assert.Equal(t, 72*time.Hour, cfg.Artifacts.Retention)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := Load("")
	require.NoError(t, err)
	return cfg
}

func TestValidate(t *testing.T) {
	testData := map[string]struct {
		mutate func(c *Config)
		errMsg string
	}{
		"valid": {
			mutate: func(c *Config) {},
		},
		"production without secret": {
			mutate: func(c *Config) { c.Environment = EnvProduction },
			errMsg: "JWT_SECRET",
		},
		"production with secret": {
			mutate: func(c *Config) {
				c.Environment = EnvProduction
				c.Auth.JWTSecret = strings.Repeat("s", 32)
			},
		},
		"bcrypt cost": {
			mutate: func(c *Config) { c.Auth.BcryptCost = 2 },
			errMsg: "bcrypt cost",
		},
		"horizon above max": {
			mutate: func(c *Config) { c.Forecast.Horizon = 400 },
			errMsg: "horizon",
		},
		"significance": {
			mutate: func(c *Config) { c.Forecast.Significance = 1 },
			errMsg: "significance",
		},
		"history order": {
			mutate: func(c *Config) { c.Forecast.HistoryOrder = "newest" },
			errMsg: "history order",
		},
		"s3 without bucket": {
			mutate: func(c *Config) { c.Artifacts.Backend = "s3" },
			errMsg: "bucket",
		},
		"unknown backend": {
			mutate: func(c *Config) { c.Artifacts.Backend = "ftp" },
			errMsg: "artifact backend",
		},
		"bad sweep schedule": {
			mutate: func(c *Config) {
				c.Artifacts.Retention = time.Hour
				c.Artifacts.SweepSchedule = "every so often"
			},
			errMsg: "sweep schedule",
		},
		"narrative timeout": {
			mutate: func(c *Config) { c.Narrative.Timeout = 0 },
			errMsg: "narrative timeout",
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig(t)
			td.mutate(cfg)
			err := cfg.Validate()
			if td.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), td.errMsg)
		})
	}
}

func TestNewLogger(t *testing.T) {
	testData := map[string]struct {
		level string
		env   string
	}{
		"development text": {level: "debug", env: EnvDevelopment},
		"production json":  {level: "warn", env: EnvProduction},
		"bad level":        {level: "loud", env: EnvProduction},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			assert.NotNil(t, NewLogger(td.level, td.env))
		})
	}
}
