package config

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port             string   `mapstructure:"PORT"`
	Env              string   `mapstructure:"ENV"`
	DatabaseURL      string   `mapstructure:"DATABASE_URL"`
	DBMaxConns       int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int32    `mapstructure:"DB_MIN_CONNS"`
	RedisURL         string   `mapstructure:"REDIS_URL"`
	JWTSecretKey     string   `mapstructure:"JWT_SECRET_KEY"`
	JWTTTLMinutes    int      `mapstructure:"JWT_TTL_MINUTES"`
	PHIEncryptionKey string   `mapstructure:"PHI_ENCRYPTION_KEY"`
	MailFrom         string   `mapstructure:"MAIL_FROM"`
	CORSOrigins      []string `mapstructure:"CORS_ORIGINS"`
	TLSEnabled       bool     `mapstructure:"TLS_ENABLED"`
	TLSCertFile      string   `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile       string   `mapstructure:"TLS_KEY_FILE"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("JWT_TTL_MINUTES", 30)
	v.SetDefault("MAIL_FROM", "noreply@medconnect.example")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("REDIS_URL")
	v.BindEnv("JWT_SECRET_KEY")
	v.BindEnv("JWT_TTL_MINUTES")
	v.BindEnv("PHI_ENCRYPTION_KEY")
	v.BindEnv("MAIL_FROM")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("TLS_ENABLED")
	v.BindEnv("TLS_CERT_FILE")
	v.BindEnv("TLS_KEY_FILE")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
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

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// TokenTTL returns the access-token lifetime.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.JWTTTLMinutes) * time.Minute
}

// EncryptionKey decodes PHI_ENCRYPTION_KEY into raw key bytes. It returns nil
// when the key is unset, which the caller treats as a request for an ephemeral
// derived key (development only).
func (c *Config) EncryptionKey() ([]byte, error) {
	if c.PHIEncryptionKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.PHIEncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("PHI_ENCRYPTION_KEY is not valid hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("PHI_ENCRYPTION_KEY must be 32 bytes (64 hex chars), got %d bytes", len(key))
	}
	return key, nil
}

// Validate checks that the configuration is safe to run. In production a JWT
// signing secret and a PHI encryption key are required; development may fall
// back to ephemeral values.
func (c *Config) Validate() error {
	if c.Env != "development" && c.Env != "production" && c.Env != "test" {
		return fmt.Errorf("ENV must be \"development\", \"test\", or \"production\", got %q", c.Env)
	}

	if c.IsProduction() && c.JWTSecretKey == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required in production")
	}

	if c.IsProduction() && c.PHIEncryptionKey == "" {
		return fmt.Errorf("PHI_ENCRYPTION_KEY is required in production")
	}
	if _, err := c.EncryptionKey(); err != nil {
		return err
	}

	if c.JWTTTLMinutes <= 0 {
		return fmt.Errorf("JWT_TTL_MINUTES must be positive, got %d", c.JWTTTLMinutes)
	}

	// When TLS is enabled, cert and key files must be specified.
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
