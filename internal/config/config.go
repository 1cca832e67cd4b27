package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port              string        `mapstructure:"PORT"`
	Env               string        `mapstructure:"ENV"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	DatabaseURL       string        `mapstructure:"DATABASE_URL"`
	DBMaxConns        int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns        int32         `mapstructure:"DB_MIN_CONNS"`
	DefaultTenant     string        `mapstructure:"DEFAULT_TENANT"`
	CORSOrigins       []string      `mapstructure:"CORS_ORIGINS"`
	BodyLimit         string        `mapstructure:"BODY_LIMIT"`
	MetadataFile      string        `mapstructure:"METADATA_FILE"`
	MigrationsDir     string        `mapstructure:"MIGRATIONS_DIR"`
	EvaluationTimeout time.Duration `mapstructure:"EVALUATION_TIMEOUT"`
	TLSEnabled        bool          `mapstructure:"TLS_ENABLED"`
	TLSCertFile       string        `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile        string        `mapstructure:"TLS_KEY_FILE"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"DEFAULT_TENANT", "CORS_ORIGINS", "BODY_LIMIT", "METADATA_FILE", "MIGRATIONS_DIR",
	"EVALUATION_TIMEOUT", "TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE",
}

// Load reads configuration from the environment, falling back to a .env
// file in the working directory when present.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DEFAULT_TENANT", "default")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("BODY_LIMIT", "2M")
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("EVALUATION_TIMEOUT", "30s")

	// Bind explicitly so Unmarshal sees variables without defaults.
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	if cfg.CORSOrigins == nil {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks settings that Load cannot default safely.
func (c *Config) Validate() error {
	if c.DBMaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive, got %d", c.DBMaxConns)
	}
	if c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS (%d), got %d", c.DBMaxConns, c.DBMinConns)
	}
	if c.EvaluationTimeout <= 0 {
		return fmt.Errorf("EVALUATION_TIMEOUT must be positive, got %s", c.EvaluationTimeout)
	}
	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}
	return nil
}
