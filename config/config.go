package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/pulsar-base/pulsar-backend/internal/logger"
)

var (
	customLog = logger.NewLogger()
)

// Config holds application configuration values
type Config struct {
	ServerPort    string
	DatabaseURL   string
	JWTSecret     string
	JWTExpiration time.Duration

	// Permission sync worker settings
	PermissionsURL string
	WebhookSecret  string
	SyncInterval   time.Duration
}

// LoadConfig loads configuration from environment variables.
// It uses a .env file for local development if present (ignores it for production).
func LoadConfig() (*Config, error) {
	customLog.Println("Loading configuration from environment variables...")

	// Attempt to load .env file if in development environment (skip in production)
	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			customLog.Warnf("Warning: Error loading .env file: %v", err)
		}
	}

	// Read values from environment variables, providing defaults where appropriate
	port := getEnv("SERVER_PORT", "8080")
	databaseURL := getEnv("DATABASE_URL", "postgres://localhost:5432/pulsar?sslmode=disable")
	jwtSecret := getEnv("JWT_SECRET", "") // No sensible default for secret!
	jwtExpHoursStr := getEnv("JWT_EXPIRATION_HOURS", "24")
	permissionsURL := os.Getenv("PERMISSIONS_URL") // Optional; sync worker is idle without it
	webhookSecret := os.Getenv("PERMISSIONS_WEBHOOK_SECRET")
	syncIntervalStr := getEnv("PERMISSIONS_SYNC_INTERVAL_MINUTES", "15")

	// --- Validation and Parsing ---
	// Critical: Ensure JWT Secret is set
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable must be set")
	}
	if jwtSecret == "!!replace_this_with_a_real_secret_key!!" {
		customLog.Warnln("WARNING: JWT_SECRET is set to the default placeholder!")
	}

	// Parse JWT Expiration (hours)
	jwtExpHours, err := strconv.Atoi(jwtExpHoursStr)
	if err != nil || jwtExpHours <= 0 {
		customLog.Warnf("Invalid JWT_EXPIRATION_HOURS '%s'. Using default 24h. Error: %v", jwtExpHoursStr, err)
		jwtExpHours = 24
	}
	jwtExpiration := time.Hour * time.Duration(jwtExpHours)

	// Parse permission sync interval (minutes)
	syncMinutes, err := strconv.Atoi(syncIntervalStr)
	if err != nil || syncMinutes <= 0 {
		customLog.Warnf("Invalid PERMISSIONS_SYNC_INTERVAL_MINUTES '%s'. Using default 15m. Error: %v", syncIntervalStr, err)
		syncMinutes = 15
	}
	syncInterval := time.Minute * time.Duration(syncMinutes)

	cfg := &Config{
		ServerPort:     port,
		DatabaseURL:    databaseURL,
		JWTSecret:      jwtSecret,
		JWTExpiration:  jwtExpiration,
		PermissionsURL: permissionsURL,
		WebhookSecret:  webhookSecret,
		SyncInterval:   syncInterval,
	}

	customLog.Printf("Configuration loaded successfully. Port: %s, JWT Exp: %v, Sync Interval: %v", cfg.ServerPort, cfg.JWTExpiration, cfg.SyncInterval)
	return cfg, nil
}

// getEnv reads an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
