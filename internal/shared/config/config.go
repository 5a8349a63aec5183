package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Rules     RulesConfig
	Telemetry TelemetryConfig
}

type ServerConfig struct {
	Port string
	Host string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RulesConfig tunes the business controls. Defaults match the standard
// rendition guidelines; deployments for stricter funds tighten them.
type RulesConfig struct {
	// EnforceCategoryMatch rejects expenses whose provider category does
	// not match the budget line's declared category.
	EnforceCategoryMatch bool
	// RequireReconciliation demands bank and receipt-date data on income
	// before it can be registered.
	RequireReconciliation bool
	// MaxAmount caps a single transaction; zero disables the cap.
	MaxAmount int64
}

type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	OTLPEndpoint string
}

func Load() (*Config, error) {

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	maxAmount, err := strconv.ParseInt(getEnv("RULES_MAX_AMOUNT", "0"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid RULES_MAX_AMOUNT: %w", err)
	}
	if maxAmount < 0 {
		return nil, fmt.Errorf("RULES_MAX_AMOUNT must not be negative")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Host: getEnv("HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "sumarte"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "sumarte"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Rules: RulesConfig{
			EnforceCategoryMatch:  getBoolEnv("RULES_ENFORCE_CATEGORY", true),
			RequireReconciliation: getBoolEnv("RULES_REQUIRE_RECONCILIATION", true),
			MaxAmount:             maxAmount,
		},
		Telemetry: TelemetryConfig{
			Enabled:      getBoolEnv("OTEL_ENABLED", false),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "sumarte-api"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
		},
	}

	return cfg, nil
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	// Accept: true, false, 1, 0, yes, no (case-insensitive)
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}
