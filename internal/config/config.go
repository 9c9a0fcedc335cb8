package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/NT710/willmyflightbelate/internal/types"
)

// Config holds the application configuration
type Config struct {
	// Flight data source (OpenSky-compatible)
	FlightBaseURL   string
	OpenSkyUsername string
	OpenSkyPassword string

	// Weather data source (weather.gov-compatible)
	WeatherBaseURL string

	// Storage
	DBConnStr string
	RedisAddr string
	NATSURL   string

	// Audit log output directory; empty disables the audit log
	AuditDir string

	// Pipeline tuning
	PredictionTTL     time.Duration
	WeatherTTL        time.Duration
	PredictionTimeout time.Duration

	// HTTP edge
	ListenAddr string
}

// Load loads the configuration from environment variables and .env file
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	username := os.Getenv("OPENSKY_USERNAME")
	password := os.Getenv("OPENSKY_PASSWORD")
	if username == "" || password == "" {
		return nil, fmt.Errorf("OPENSKY_USERNAME and OPENSKY_PASSWORD are required: %w", types.ErrMissingConfig)
	}

	dbConnStr := os.Getenv("DB_CONN_STR")
	if dbConnStr == "" {
		return nil, fmt.Errorf("DB_CONN_STR is required: %w", types.ErrMissingConfig)
	}

	cfg := &Config{
		FlightBaseURL:     getEnvDefault("FLIGHT_BASE_URL", "https://opensky-network.org/api"),
		OpenSkyUsername:   username,
		OpenSkyPassword:   password,
		WeatherBaseURL:    getEnvDefault("WEATHER_BASE_URL", "https://api.weather.gov"),
		DBConnStr:         dbConnStr,
		RedisAddr:         os.Getenv("REDIS_ADDR"), // empty falls back to the in-process cache
		NATSURL:           os.Getenv("NATS_URL"),   // empty disables event publishing
		AuditDir:          getEnvDefault("AUDIT_DIR", "./audit"),
		PredictionTTL:     getEnvDuration("PREDICTION_TTL_SECONDS", 5*time.Minute),
		WeatherTTL:        getEnvDuration("WEATHER_TTL_SECONDS", 30*time.Minute),
		PredictionTimeout: getEnvDuration("PREDICTION_TIMEOUT_SECONDS", 15*time.Second),
		ListenAddr:        getEnvDefault("LISTEN_ADDR", ":8080"),
	}

	return cfg, nil
}

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	seconds, err := strconv.Atoi(v)
	if err != nil || seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
