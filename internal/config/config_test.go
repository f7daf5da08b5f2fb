package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.JWTIssuer != "tenant-auth" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "tenant-auth")
	}
	if cfg.JWTAudience != "tenant-api" {
		t.Errorf("JWTAudience = %q, want %q", cfg.JWTAudience, "tenant-api")
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.LockoutThreshold != 5 {
		t.Errorf("LockoutThreshold = %d, want 5", cfg.LockoutThreshold)
	}
	if cfg.OTPReturnToClient {
		t.Error("OTPReturnToClient should default to false")
	}
	if cfg.TokenLifetime() != 24*time.Hour {
		t.Errorf("TokenLifetime = %v, want 24h", cfg.TokenLifetime())
	}
	if cfg.LockoutWindowDuration() != 15*time.Minute {
		t.Errorf("LockoutWindowDuration = %v, want 15m", cfg.LockoutWindowDuration())
	}
	if cfg.OTPLifetime() != 10*time.Minute {
		t.Errorf("OTPLifetime = %v, want 10m", cfg.OTPLifetime())
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("TOKEN_TTL", "1h")
	os.Setenv("BCRYPT_COST", "10")
	os.Setenv("LOCKOUT_WINDOW", "5m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}
	if cfg.TokenLifetime() != time.Hour {
		t.Errorf("TokenLifetime = %v, want 1h", cfg.TokenLifetime())
	}
	if cfg.BcryptCost != 10 {
		t.Errorf("BcryptCost = %d, want 10", cfg.BcryptCost)
	}
	if cfg.LockoutWindowDuration() != 5*time.Minute {
		t.Errorf("LockoutWindowDuration = %v, want 5m", cfg.LockoutWindowDuration())
	}
}

func TestLoad_TenantDSNFallsBackToDatabaseURL(t *testing.T) {
	os.Clearenv()
	os.Setenv("DATABASE_URL", "postgres://localhost/system")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TenantDatabaseURL != "postgres://localhost/system" {
		t.Errorf("TenantDatabaseURL = %q, want DATABASE_URL fallback", cfg.TenantDatabaseURL)
	}
}

func TestLoad_DevOTPRefusedInProduction(t *testing.T) {
	os.Clearenv()
	os.Setenv("OTP_RETURN_TO_CLIENT", "true")
	os.Setenv("APP_ENV", "production")

	if _, err := Load(); err == nil {
		t.Fatal("dev OTP mode must be rejected in production")
	}

	os.Setenv("APP_ENV", "development")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load in development: %v", err)
	}
	if !cfg.OTPReturnToClient {
		t.Error("OTPReturnToClient should be true")
	}
}

func TestLoad_InvalidBcryptCost(t *testing.T) {
	os.Clearenv()
	os.Setenv("BCRYPT_COST", "99")

	if _, err := Load(); err == nil {
		t.Fatal("out-of-range bcrypt cost must be rejected")
	}
}

func TestDurationAccessorsToleratesGarbage(t *testing.T) {
	cfg := &Config{TokenTTL: "not-a-duration", LockoutWindow: "-5m", OTPTTL: ""}
	if cfg.TokenLifetime() != 24*time.Hour {
		t.Errorf("TokenLifetime fallback = %v", cfg.TokenLifetime())
	}
	if cfg.LockoutWindowDuration() != 15*time.Minute {
		t.Errorf("LockoutWindowDuration fallback = %v", cfg.LockoutWindowDuration())
	}
	if cfg.OTPLifetime() != 10*time.Minute {
		t.Errorf("OTPLifetime fallback = %v", cfg.OTPLifetime())
	}
}
