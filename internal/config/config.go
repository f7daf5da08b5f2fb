// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN of the system store (principals, sessions, attempts, OTPs, organizations).
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// TenantDatabaseURL is the base Postgres DSN for per-organization stores; the database
	// name is replaced with each organization's store handle. Defaults to DATABASE_URL.
	TenantDatabaseURL string `mapstructure:"TENANT_DATABASE_URL"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim (e.g. "tenant-auth").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim (e.g. "tenant-api").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// TokenTTL is the bearer token and session lifetime (e.g. "24h").
	TokenTTL string `mapstructure:"TOKEN_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// LockoutWindow is the rolling window over which failed attempts are counted (e.g. "15m").
	LockoutWindow string `mapstructure:"LOCKOUT_WINDOW"`
	// LockoutThreshold is the number of failed attempts inside the window that locks an identifier.
	LockoutThreshold int `mapstructure:"LOCKOUT_THRESHOLD"`
	// OTPTTL is the one-time passcode lifetime (e.g. "10m").
	OTPTTL string `mapstructure:"OTP_TTL"`
	// GoogleClientID is the OAuth client ID that federated ID-token assertions must be issued for.
	GoogleClientID string `mapstructure:"GOOGLE_CLIENT_ID"`
	// SMTPHost is the SMTP relay host for OTP mail. Empty disables mail (dev OTP mode only).
	SMTPHost string `mapstructure:"SMTP_HOST"`
	// SMTPPort is the SMTP relay port (default 587).
	SMTPPort int `mapstructure:"SMTP_PORT"`
	// SMTPUsername authenticates against the SMTP relay.
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	// SMTPPassword authenticates against the SMTP relay.
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	// SMTPFrom is the From address on outbound OTP mail.
	SMTPFrom string `mapstructure:"SMTP_FROM"`
	// OTPReturnToClient when true enables dev OTP mode: no mail, OTP held for GET /api/dev/otp.
	// Must not be true when Env is production (startup error).
	OTPReturnToClient bool `mapstructure:"OTP_RETURN_TO_CLIENT"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// OTLPEndpoint is the OTLP gRPC collector endpoint for traces/metrics/logs. Empty disables export.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP export even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("TENANT_DATABASE_URL", "")
	v.SetDefault("JWT_ISSUER", "tenant-auth")
	v.SetDefault("JWT_AUDIENCE", "tenant-api")
	v.SetDefault("TOKEN_TTL", "24h")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("LOCKOUT_WINDOW", "15m")
	v.SetDefault("LOCKOUT_THRESHOLD", 5)
	v.SetDefault("OTP_TTL", "10m")
	v.SetDefault("GOOGLE_CLIENT_ID", "")
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "no-reply@localhost")
	v.SetDefault("OTP_RETURN_TO_CLIENT", false)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", false)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.TenantDatabaseURL == "" {
		cfg.TenantDatabaseURL = cfg.DatabaseURL
	}
	if cfg.OTPReturnToClient && cfg.Env == "production" {
		return nil, errors.New("config: OTP_RETURN_TO_CLIENT must not be true when APP_ENV=production")
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if cfg.LockoutThreshold <= 0 {
		return nil, errors.New("config: LOCKOUT_THRESHOLD must be positive")
	}

	return &cfg, nil
}

// TokenLifetime parses TokenTTL as a time.Duration. Returns 24h if unset or invalid.
func (c *Config) TokenLifetime() time.Duration {
	d, err := time.ParseDuration(c.TokenTTL)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// LockoutWindowDuration parses LockoutWindow as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) LockoutWindowDuration() time.Duration {
	d, err := time.ParseDuration(c.LockoutWindow)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// OTPLifetime parses OTPTTL as a time.Duration. Returns 10m if unset or invalid.
func (c *Config) OTPLifetime() time.Duration {
	d, err := time.ParseDuration(c.OTPTTL)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}
