// Package config gathers the environment-driven settings. Values come from
// the process environment (a .env file is loaded in main via godotenv).
package config

import (
	"os"
	"time"
)

// Config is everything main needs to wire the app.
type Config struct {
	ListenAddr    string
	DatabaseDSN   string
	RedisAddr     string
	RedisPassword string
	JWTSecret     string

	PlacesAPIURL    string
	PlacesAPIKey    string
	AssistantAPIURL string
	AssistantAPIKey string

	PresenceKeepAlive time.Duration
}

// Load reads the environment with sane local-dev defaults.
func Load() Config {
	return Config{
		ListenAddr:    getenv("LISTEN_ADDR", ":8080"),
		DatabaseDSN:   getenv("DATABASE_DSN", "host=localhost user=user password=password dbname=spotmatchdb port=5432 sslmode=disable"),
		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		JWTSecret:     getenv("JWT_SECRET", "dev-only-secret"),

		PlacesAPIURL:    os.Getenv("PLACES_API_URL"),
		PlacesAPIKey:    os.Getenv("PLACES_API_KEY"),
		AssistantAPIURL: os.Getenv("ASSISTANT_API_URL"),
		AssistantAPIKey: os.Getenv("ASSISTANT_API_KEY"),

		PresenceKeepAlive: getduration("PRESENCE_KEEPALIVE", 30*time.Second),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
