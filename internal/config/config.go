// Package config loads runtime settings from the environment.
//
// In development a .env file in the working directory is loaded first, so
// local secrets (SMTP password, PayPal credentials) never need exporting by
// hand. Any variable already set in the real environment wins over .env.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	Port     int
	DBPath   string
	LogLevel slog.Level

	JWTSecret string
	JWTTTL    time.Duration

	// Redis is optional. When RedisAddr is empty pending registrations are
	// kept in the SQLite database instead.
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	RegistrationTTL time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string

	PayPalClientID string
	PayPalSecret   string
	PayPalSandbox  bool
	Currency       string
	ReturnURL      string
	CancelURL      string
}

// LoadEnv reads .env unless APP_ENV names a non-development environment.
// A missing .env file is not an error.
func LoadEnv() error {
	env := os.Getenv("APP_ENV")
	if env != "" && env != "development" {
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("config: loading .env: %w", err)
	}
	return nil
}

func Load() (Config, error) {
	if err := LoadEnv(); err != nil {
		return Config{}, err
	}

	port := getenvInt("PORT", 8080)
	cfg := Config{
		Env:      getenv("APP_ENV", "development"),
		Port:     port,
		DBPath:   getenv("DB_PATH", "data/coursemarket.db"),
		LogLevel: getenvLevel("LOG_LEVEL", slog.LevelInfo),

		JWTSecret: os.Getenv("JWT_SECRET"),
		JWTTTL:    getenvDuration("JWT_TTL", 24*time.Hour),

		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         getenvInt("REDIS_DB", 0),
		RegistrationTTL: getenvDuration("REGISTRATION_TTL", 15*time.Minute),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getenvInt("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		MailFrom:     getenv("MAIL_FROM", "no-reply@coursemarket.local"),

		PayPalClientID: os.Getenv("PAYPAL_CLIENT_ID"),
		PayPalSecret:   os.Getenv("PAYPAL_SECRET"),
		PayPalSandbox:  getenvBool("PAYPAL_SANDBOX", true),
		Currency:       strings.ToUpper(getenv("PAYMENT_CURRENCY", "USD")),
		ReturnURL:      getenv("PAYMENT_RETURN_URL", fmt.Sprintf("http://localhost:%d/api/payments/success", port)),
		CancelURL:      getenv("PAYMENT_CANCEL_URL", fmt.Sprintf("http://localhost:%d/api/payments/cancel", port)),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if len(c.JWTSecret) < 16 {
		return errors.New("config: JWT_SECRET must be at least 16 characters")
	}
	if c.Currency == "" {
		return errors.New("config: PAYMENT_CURRENCY must not be empty")
	}
	if c.RegistrationTTL <= 0 {
		return errors.New("config: REGISTRATION_TTL must be positive")
	}
	return nil
}

// MailEnabled reports whether SMTP delivery is configured.
func (c Config) MailEnabled() bool {
	return c.SMTPHost != ""
}

// PaymentsEnabled reports whether PayPal credentials are present.
func (c Config) PaymentsEnabled() bool {
	return c.PayPalClientID != "" && c.PayPalSecret != ""
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	if val := os.Getenv(key + "_SECONDS"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

func getenvLevel(key string, fallback slog.Level) slog.Level {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(val)); err != nil {
		return fallback
	}
	return level
}
