package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int           `validate:"min=1,max=10000"`
	ShutdownTimeout    time.Duration `validate:"min=1s"`

	// Storage
	DataBackend         string `validate:"oneof=memory sqlite firestore"`
	SQLiteDBPath        string
	FirestoreProjectID  string
	FirestoreCollection string
	KVCacheSize         int           `validate:"min=0"`
	KVCacheTTL          time.Duration `validate:"min=0s"`
	CacheCleanup        time.Duration

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Advisor
	GeminiAPIKey string
	GeminiModel  string

	// Google Sheets history mirror
	GoogleSpreadsheetID string
	GoogleSheetName     string

	LogLevel string `validate:"omitempty,oneof=debug info warn warning error"`
}

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		DataBackend:         getEnv("DATA_BACKEND", "memory"),
		SQLiteDBPath:        getEnv("SQLITE_DB_PATH", "./data/ahorro.db"),
		FirestoreProjectID:  getEnv("FIRESTORE_PROJECT_ID", ""),
		FirestoreCollection: getEnv("FIRESTORE_COLLECTION", "ahorro_kv"),
		KVCacheSize:         getEnvInt("KV_CACHE_SIZE", 256),
		KVCacheTTL:          getEnvDuration("KV_CACHE_TTL", 5*time.Minute),
		CacheCleanup:        getEnvDuration("CACHE_CLEANUP_INTERVAL", 10*time.Minute),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "ahorro"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_history"),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", getEnv("GOOGLE_API_KEY", "")),
		GeminiModel:  getEnv("GEMINI_MODEL", ""),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Historial"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				problems = append(problems, fieldProblem(fe))
			}
		} else {
			problems = append(problems, err.Error())
		}
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			problems = append(problems, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					problems = append(problems, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	case "firestore":
		if c.FirestoreProjectID == "" {
			problems = append(problems, "FIRESTORE_PROJECT_ID is required when using firestore backend")
		}
		if c.FirestoreCollection == "" {
			problems = append(problems, "Firestore collection cannot be empty when using firestore backend")
		}
	}

	if c.AMQPURL != "" {
		problems = append(problems, c.amqpProblems()...)
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

// ValidateWorker adds the requirements of the history worker.
func (c *Config) ValidateWorker() error {
	var problems []string
	if c.AMQPURL == "" {
		problems = append(problems, "AMQP_URL is required for the history worker")
	} else {
		problems = append(problems, c.amqpProblems()...)
	}
	if c.GoogleSpreadsheetID != "" && c.GoogleSheetName == "" {
		problems = append(problems, "Google Sheet name is required when a spreadsheet id is set")
	}
	if len(problems) > 0 {
		return fmt.Errorf("worker configuration invalid:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

func (c *Config) amqpProblems() []string {
	var problems []string
	if u, err := url.Parse(c.AMQPURL); err != nil {
		problems = append(problems, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
	} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
		problems = append(problems, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", u.Scheme))
	}
	if c.AMQPExchange == "" {
		problems = append(problems, "AMQP exchange name cannot be empty when AMQP URL is provided")
	}
	if c.AMQPQueue == "" {
		problems = append(problems, "AMQP queue name cannot be empty when AMQP URL is provided")
	}
	return problems
}

func fieldProblem(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("invalid %s '%v': must be one of [%s]", fe.Field(), fe.Value(), fe.Param())
	case "min", "max":
		return fmt.Sprintf("invalid %s %v: %s is %s", fe.Field(), fe.Value(), fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("invalid %s: failed %s", fe.Field(), fe.Tag())
	}
}

// AdvisorEnabled reports whether a Gemini credential is configured.
func (c *Config) AdvisorEnabled() bool {
	return c.GeminiAPIKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
