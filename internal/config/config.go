package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration values.  Each field
// corresponds to an environment variable.  Required variables are
// enforced by must() and missing values cause the program to exit with
// a fatal log message; tunables with sensible defaults use the env*
// helpers instead.
type Config struct {
	Env               string        // application environment (e.g. "dev", "prod")
	Port              string        // HTTP port to listen on
	DBUser            string        // database username
	DBPass            string        // database password (optional)
	DBHost            string        // database host address
	DBPort            string        // database port number
	DBName            string        // database name
	JWTSecret         string        // secret used to verify bearer tokens
	DefaultLeaseLimit int           // concurrent-lease quota without an ad-group override
	ReleaseInterval   time.Duration // how often the release timer sweeps
	WarnWindow        time.Duration // look-ahead and debounce window for expiry warnings
	AmqpURL           string        // message broker address; empty disables notifications
}

// Load reads configuration values from environment variables and
// returns a Config.
func Load() Config {
	return Config{
		Env:               must("APP_ENV"),
		Port:              must("APP_PORT"),
		DBUser:            must("DB_USER"),
		DBPass:            os.Getenv("DB_PASS"), // empty allowed
		DBHost:            must("DB_HOST"),
		DBPort:            must("DB_PORT"),
		DBName:            must("DB_NAME"),
		JWTSecret:         must("JWT_SECRET"),
		DefaultLeaseLimit: mustInt("DEFAULT_LEASE_LIMIT"),
		ReleaseInterval:   envDur("RELEASE_POLL_INTERVAL", 10*time.Second),
		WarnWindow:        envDur("EXPIRY_WARN_WINDOW", 30*time.Minute),
		AmqpURL:           os.Getenv("AMQP_URL"), // empty disables the live sender
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and
// exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an
// integer.  If conversion fails, the application logs a fatal error
// and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
