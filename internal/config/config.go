package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable.  Database values are required; everything
// else has a sensible default so the service can start against local
// infrastructure with only DB_* set.
type Config struct {
	Env    string // application environment (e.g. "dev", "prod")
	Port   string // HTTP port to listen on
	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	StaffJWTSecret string // secret validating staff tokens; empty disables the guard

	Payment Payment // payment-service endpoint and resilience policy

	ReminderInterval   time.Duration // how often the reminder sweep runs
	WaitlistInterval   time.Duration // how often the waitlist sweep runs
	ReminderWindowDays int           // reminders cover events within this many days
}

// Payment configures the payment-service client: where to reach it, how
// long a single request may take, and the retry/circuit-breaker policy
// applied around every call.
type Payment struct {
	BaseURL string        // payment service base URL
	Secret  string        // bearer secret, empty for unauthenticated gateways
	Timeout time.Duration // per-request HTTP timeout

	MaxAttempts      int           // total attempts per logical call
	BackoffFactor    time.Duration // initial backoff, doubled per failure
	MaxBackoff       time.Duration // backoff ceiling
	FailureThreshold int           // consecutive failures before the breaker opens
	ResetTimeout     time.Duration // how long the breaker stays open
}

// Load reads configuration from the environment after loading an
// optional .env file.  Required variables are enforced by must() and
// missing values cause the program to exit with a fatal log message.
func Load() Config {
	_ = godotenv.Load() // missing .env is fine; real env wins anyway

	return Config{
		Env:    getEnv("APP_ENV", "dev"),
		Port:   getEnv("APP_PORT", "8080"),
		DBUser: must("DB_USER"),
		DBPass: os.Getenv("DB_PASS"), // empty allowed
		DBHost: must("DB_HOST"),
		DBPort: must("DB_PORT"),
		DBName: must("DB_NAME"),

		StaffJWTSecret: os.Getenv("STAFF_JWT_SECRET"),

		Payment: Payment{
			BaseURL: getEnv("PAYMENT_SERVICE_URL", "http://payment-service.local/api"),
			Secret:  os.Getenv("PAYMENT_SERVICE_SECRET"),
			Timeout: getDurationMS("PAYMENT_SERVICE_TIMEOUT_MS", 5*time.Second),

			MaxAttempts:      getInt("PAYMENT_MAX_ATTEMPTS", 3),
			BackoffFactor:    getDurationMS("PAYMENT_BACKOFF_FACTOR_MS", 500*time.Millisecond),
			MaxBackoff:       getDurationMS("PAYMENT_MAX_BACKOFF_MS", 5*time.Second),
			FailureThreshold: getInt("PAYMENT_CB_FAILURE_THRESHOLD", 5),
			ResetTimeout:     getDurationMS("PAYMENT_CB_RESET_TIMEOUT_MS", 30*time.Second),
		},

		ReminderInterval:   getDurationMS("REMINDER_INTERVAL_MS", 24*time.Hour),
		WaitlistInterval:   getDurationMS("WAITLIST_INTERVAL_MS", 30*time.Minute),
		ReminderWindowDays: getInt("REMINDER_WINDOW_DAYS", 3),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// getEnv returns the variable's value or the given default when unset.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getInt parses an integer variable, falling back to the default on
// absence or parse failure.
func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("config: invalid int for %s: %q, using default %d", key, v, def)
		return def
	}
	return n
}

// getDurationMS parses a millisecond count into a time.Duration.
// Non-positive values are rejected: these durations feed tickers and
// timeouts, where zero panics or disables the limit.
func getDurationMS(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("config: invalid duration for %s: %q, using default %s", key, v, def)
		return def
	}
	return time.Duration(n) * time.Millisecond
}
