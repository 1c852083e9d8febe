package config

import (
	"errors"
	"os"
	"time"
)

type Config struct {
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	JWTExpiry   time.Duration

	// SMTP settings for best-effort borrower notifications. Mail is
	// disabled when SMTPHost is empty.
	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	// Optional validation hooks. Both default to off, preserving the
	// historical behavior of the system.
	ValidateReturnDate bool
	GuardQuantityEdits bool
}

func Load() *Config {
	config := &Config{
		JWTSecret:   getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		JWTIssuer:   getEnv("JWT_ISS", "toolledger-api"),
		JWTAudience: getEnv("JWT_AUD", "toolledger-api"),
		JWTExpiry:   24 * time.Hour, // Default to 24 hours

		SMTPHost: os.Getenv("EMAIL_HOST"),
		SMTPPort: getEnv("EMAIL_PORT", "587"),
		SMTPUser: os.Getenv("EMAIL_USER"),
		SMTPPass: os.Getenv("EMAIL_PASS"),
		SMTPFrom: os.Getenv("EMAIL_FROM"),

		ValidateReturnDate: os.Getenv("VALIDATE_RETURN_DATE") == "true",
		GuardQuantityEdits: os.Getenv("GUARD_QUANTITY_EDITS") == "true",
	}

	// Parse JWT expiry from environment if provided
	if expiryStr := os.Getenv("JWT_EXPIRY"); expiryStr != "" {
		if expiry, err := time.ParseDuration(expiryStr); err == nil {
			config.JWTExpiry = expiry
		}
	}

	return config
}

// LoadAndValidate loads the configuration and rejects values the server
// cannot safely start with.
func LoadAndValidate() (*Config, error) {
	cfg := Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must not be empty")
	}
	if c.JWTIssuer == "" {
		return errors.New("JWT_ISS must not be empty")
	}
	if c.JWTAudience == "" {
		return errors.New("JWT_AUD must not be empty")
	}
	if c.JWTExpiry <= 0 {
		return errors.New("JWT_EXPIRY must be positive")
	}
	return nil
}

// MailEnabled reports whether SMTP notifications are configured.
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
