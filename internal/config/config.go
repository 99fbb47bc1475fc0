package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds application configuration
type Config struct {
	Port     string
	DBConn   string
	Storage  string
	LogLevel string

	JWTSecret string
	JWTTTL    time.Duration

	HMACSecret         string
	EncryptionKey      string
	EncryptionIV       string
	CipherMode         string
	CardNumberAttempts int

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SenderEmail  string

	AdminUsername string
	AdminPassword string
	AdminFullName string

	ExpiryReminderSchedule string
	ExpiryReminderDays     int
}

// NewConfig loads configuration from environment variables
func NewConfig() (*Config, error) {
	jwtTTL, err := getEnvDuration("JWT_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	attempts, err := getEnvInt("CARD_NUMBER_ATTEMPTS", 5)
	if err != nil {
		return nil, err
	}
	reminderDays, err := getEnvInt("EXPIRY_REMINDER_DAYS", 30)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		DBConn:   getEnv("DB_CONN", "host=localhost port=5436 user=test password=test dbname=bank sslmode=disable"),
		Storage:  strings.ToLower(getEnv("STORAGE", StoragePostgres)),
		LogLevel: getEnv("LOG_LEVEL", "INFO"),

		JWTSecret: getEnv("JWT_SECRET", "secret"),
		JWTTTL:    jwtTTL,

		HMACSecret:         getEnv("HMAC_SECRET", "a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6"),
		EncryptionKey:      getEnv("ENCRYPTION_KEY", "a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6"),
		EncryptionIV:       getEnv("ENCRYPTION_IV", ""),
		CipherMode:         strings.ToLower(getEnv("CIPHER_MODE", "gcm")),
		CardNumberAttempts: attempts,

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnv("SMTP_PORT", "587"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SenderEmail:  getEnv("SENDER_EMAIL", "noreply@bank-cards.local"),

		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		AdminFullName: getEnv("ADMIN_FULL_NAME", "Administrator"),

		ExpiryReminderSchedule: getEnv("EXPIRY_REMINDER_SCHEDULE", "0 9 * * *"),
		ExpiryReminderDays:     reminderDays,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage {
	case StoragePostgres:
		if c.DBConn == "" {
			return fmt.Errorf("DB_CONN is required")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("STORAGE must be %q or %q, got %q", StoragePostgres, StorageMemory, c.Storage)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.HMACSecret == "" {
		return fmt.Errorf("HMAC_SECRET is required")
	}
	if c.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required")
	}
	if c.CipherMode == "cbc" && c.EncryptionIV == "" {
		return fmt.Errorf("ENCRYPTION_IV is required when CIPHER_MODE=cbc")
	}
	if c.CardNumberAttempts < 1 {
		return fmt.Errorf("CARD_NUMBER_ATTEMPTS must be positive")
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}
	return nil
}

// NotificationsEnabled reports whether an SMTP host is configured
func (c *Config) NotificationsEnabled() bool {
	return c.SMTPHost != ""
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}
