package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds gateway configuration, sourced from the environment with
// an optional .env file.
type Config struct {
	ListenAddr      string
	RedisAddr       string
	JWTSecret       string
	ShutdownTimeout time.Duration

	// Broker publish retry policy
	BrokerMaxRetries     int
	BrokerInitialBackoff time.Duration
	BrokerMaxBackoff     time.Duration
}

// Load reads configuration from the environment. Explicit environment
// variables win over .env entries.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		ListenAddr:      getEnv("LISTEN_ADDR", ":8080"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		JWTSecret:       getEnv("JWT_SECRET", "dev-only-secret"),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 15*time.Second),

		BrokerMaxRetries:     getInt("BROKER_MAX_RETRIES", 3),
		BrokerInitialBackoff: getDuration("BROKER_INITIAL_BACKOFF", 100*time.Millisecond),
		BrokerMaxBackoff:     getDuration("BROKER_MAX_BACKOFF", 5*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		log.Printf("Invalid %s %q, using default %d", key, value, fallback)
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Invalid %s %q, using default %s", key, value, fallback)
		return fallback
	}
	return d
}
