// Package config loads service settings from defaults, an optional config file, a .env file
// and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aouyang1/forecastd/artifact"
	"github.com/aouyang1/forecastd/narrative"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidConfig = errors.New("invalid configuration")

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	minJWTSecretLen = 32
)

type Config struct {
	Environment string           `mapstructure:"environment"`
	LogLevel    string           `mapstructure:"log_level"`
	Server      ServerConfig     `mapstructure:"server"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Redis       RedisConfig      `mapstructure:"redis"`
	Auth        AuthConfig       `mapstructure:"auth"`
	Narrative   narrative.Config `mapstructure:"narrative"`
	Artifacts   ArtifactConfig   `mapstructure:"artifacts"`
	Forecast    ForecastConfig   `mapstructure:"forecast"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
}

// DatabaseConfig selects PostgreSQL when URL is set, otherwise in-memory stores are used.
type DatabaseConfig struct {
	URL      string `mapstructure:"database_url"`
	MaxConns int32  `mapstructure:"max_conns"`
	Migrate  bool   `mapstructure:"migrate"`
}

// RedisConfig enables the history cache when Addr is set.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret"`
	Issuer     string        `mapstructure:"issuer"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	BcryptCost int           `mapstructure:"bcrypt_cost"`
}

// ArtifactConfig selects where charts and report documents are written. Backend is local or
// s3. A zero Retention disables the sweep.
type ArtifactConfig struct {
	Backend       string            `mapstructure:"backend"`
	Dir           string            `mapstructure:"dir"`
	S3            artifact.S3Config `mapstructure:"s3"`
	Retention     time.Duration     `mapstructure:"retention"`
	SweepSchedule string            `mapstructure:"sweep_schedule"`
}

type ForecastConfig struct {
	Horizon      int     `mapstructure:"horizon"`
	MaxHorizon   int     `mapstructure:"max_horizon"`
	Significance float64 `mapstructure:"significance"`
	HistoryOrder string  `mapstructure:"history_order"`
}

// Load reads the configuration. path names an explicit config file; when empty config.yaml
// is looked up in ./configs and the working directory. Environment variables override file
// values with dots replaced by underscores.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("unable to load .env, %w", err)
	}

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("narrative.api_key", "NARRATIVE_API_KEY")
	_ = v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	_ = v.BindEnv("database.database_url", "DATABASE_URL")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("artifacts.s3.access_key_id", "AWS_ACCESS_KEY_ID")
	_ = v.BindEnv("artifacts.s3.secret_access_key", "AWS_SECRET_ACCESS_KEY")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("unable to read config, %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config, %w", err)
	}
	cfg.Auth.JWTSecret = strings.TrimSpace(cfg.Auth.JWTSecret)
	cfg.Narrative.APIKey = strings.TrimSpace(cfg.Narrative.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", EnvDevelopment)
	v.SetDefault("log_level", "info")

	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "90s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.max_upload_bytes", 32<<20)

	v.SetDefault("database.database_url", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.migrate", true)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cache_ttl", "5m")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "forecastd")
	v.SetDefault("auth.token_ttl", "30m")
	v.SetDefault("auth.bcrypt_cost", bcrypt.DefaultCost)

	narrativeDefaults := narrative.NewDefaultConfig()
	v.SetDefault("narrative.url", narrativeDefaults.URL)
	v.SetDefault("narrative.api_key", "")
	v.SetDefault("narrative.model", narrativeDefaults.Model)
	v.SetDefault("narrative.temperature", narrativeDefaults.Temperature)
	v.SetDefault("narrative.timeout", narrativeDefaults.Timeout.String())
	v.SetDefault("narrative.tail_size", narrativeDefaults.TailSize)
	v.SetDefault("narrative.system_prompt", narrativeDefaults.SystemPrompt)

	v.SetDefault("artifacts.backend", "local")
	v.SetDefault("artifacts.dir", "uploads")
	v.SetDefault("artifacts.s3.bucket", "")
	v.SetDefault("artifacts.s3.prefix", "forecastd")
	v.SetDefault("artifacts.s3.region", "us-east-1")
	v.SetDefault("artifacts.s3.endpoint", "")
	v.SetDefault("artifacts.s3.access_key_id", "")
	v.SetDefault("artifacts.s3.secret_access_key", "")
	v.SetDefault("artifacts.retention", "0s")
	v.SetDefault("artifacts.sweep_schedule", artifact.DefaultSweepSchedule)

	v.SetDefault("forecast.horizon", 30)
	v.SetDefault("forecast.max_horizon", 365)
	v.SetDefault("forecast.significance", 0.05)
	v.SetDefault("forecast.history_order", "desc")
}

// Validate checks settings that would otherwise fail at request time.
func (c *Config) Validate() error {
	var errs []error
	if c.Environment != EnvDevelopment && len(c.Auth.JWTSecret) < minJWTSecretLen {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters in %s", minJWTSecretLen, c.Environment))
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("bcrypt cost %d outside [%d, %d]", c.Auth.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("token ttl %s must be positive", c.Auth.TokenTTL))
	}
	if c.Narrative.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("narrative timeout %s must be positive", c.Narrative.Timeout))
	}
	if c.Forecast.MaxHorizon < 1 || c.Forecast.Horizon < 1 || c.Forecast.Horizon > c.Forecast.MaxHorizon {
		errs = append(errs, fmt.Errorf("horizon %d must be within [1, %d]", c.Forecast.Horizon, c.Forecast.MaxHorizon))
	}
	if c.Forecast.Significance <= 0 || c.Forecast.Significance >= 1 {
		errs = append(errs, fmt.Errorf("significance %f must be within (0, 1)", c.Forecast.Significance))
	}
	switch strings.ToLower(c.Forecast.HistoryOrder) {
	case "asc", "desc":
	default:
		errs = append(errs, fmt.Errorf("history order %q must be asc or desc", c.Forecast.HistoryOrder))
	}
	switch c.Artifacts.Backend {
	case "local":
		if c.Artifacts.Dir == "" {
			errs = append(errs, errors.New("artifact dir is required for the local backend"))
		}
	case "s3":
		if c.Artifacts.S3.Bucket == "" {
			errs = append(errs, errors.New("artifact bucket is required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("artifact backend %q must be local or s3", c.Artifacts.Backend))
	}
	if c.Artifacts.Retention < 0 {
		errs = append(errs, fmt.Errorf("artifact retention %s must not be negative", c.Artifacts.Retention))
	}
	if c.Artifacts.Retention > 0 {
		if _, err := cron.ParseStandard(c.Artifacts.SweepSchedule); err != nil {
			errs = append(errs, fmt.Errorf("sweep schedule %q, %w", c.Artifacts.SweepSchedule, err))
		}
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("max upload bytes %d must be positive", c.Server.MaxUploadBytes))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w, %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// NewLogger returns a JSON logger outside development and a text logger in development.
func NewLogger(level, env string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	if env == EnvDevelopment {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler).With("service", "forecastd")
}
