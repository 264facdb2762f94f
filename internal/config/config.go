// Package config loads the attendant client configuration from the
// environment, optionally seeded by a .env file.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/eventdesk/attendant/internal/logging"
)

// Config holds all runtime configuration values. Each field corresponds
// to an environment variable.
type Config struct {
	DataDir string // directory holding the sqlite database

	// Base URLs, one per remote service. The remote API is split by
	// service behind distinct ports.
	EventsURL        string
	UsersURL         string
	RegistrationsURL string
	TicketsURL       string
	CheckInsURL      string

	// Per-service API keys, passed through as part of the auth context.
	EventsAPIKey        string
	UsersAPIKey         string
	RegistrationsAPIKey string
	TicketsAPIKey       string
	CheckInsAPIKey      string

	RequestTimeout  time.Duration // per remote call, drives Unreachable on expiry
	DrainInterval   time.Duration // how often the scheduler drains the queue
	CatalogInterval time.Duration // how often the event catalog is refreshed

	LogLevel logging.LogLevel
}

// Load reads configuration from the environment. A .env file in the
// working directory is loaded first when present; absence is not an
// error so deployments can rely on real environment variables.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		logging.Debug("no .env file loaded", map[string]interface{}{"reason": err.Error()})
	}

	return &Config{
		DataDir: getEnv("ATTENDANT_DATA_DIR", "data"),

		EventsURL:        getEnv("EVENTS_API_URL", "http://localhost:8002"),
		UsersURL:         getEnv("USERS_API_URL", "http://localhost:8003"),
		RegistrationsURL: getEnv("REGISTRATIONS_API_URL", "http://localhost:8004"),
		TicketsURL:       getEnv("TICKETS_API_URL", "http://localhost:8005"),
		CheckInsURL:      getEnv("CHECKINS_API_URL", "http://localhost:8006"),

		EventsAPIKey:        os.Getenv("EVENTS_API_KEY"),
		UsersAPIKey:         os.Getenv("USERS_API_KEY"),
		RegistrationsAPIKey: os.Getenv("REGISTRATIONS_API_KEY"),
		TicketsAPIKey:       os.Getenv("TICKETS_API_KEY"),
		CheckInsAPIKey:      os.Getenv("CHECKINS_API_KEY"),

		RequestTimeout:  getEnvDuration("REQUEST_TIMEOUT_SECONDS", 6*time.Second),
		DrainInterval:   getEnvDuration("DRAIN_INTERVAL_SECONDS", 60*time.Second),
		CatalogInterval: getEnvDuration("CATALOG_INTERVAL_SECONDS", 15*60*time.Second),

		LogLevel: logging.LogLevel(getEnv("LOG_LEVEL", string(logging.LevelInfo))),
	}
}

// getEnv returns the value of key or a default when unset or empty.
func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// getEnvDuration reads an integer number of seconds.
func getEnvDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		logging.Warn("invalid duration env var, using default",
			map[string]interface{}{"key": key, "value": v})
		return def
	}
	return time.Duration(n) * time.Second
}
