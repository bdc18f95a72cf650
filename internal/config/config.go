package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"scandesk/internal/adapters/shipment"
)

type Config struct {
	Env             string        `validate:"oneof=development test production"`
	ListenAddr      string        `validate:"required"`
	MaxConns        int           `validate:"gte=0"`
	LogLevel        string        `validate:"oneof=trace debug info warn warning error fatal panic"`
	DatabaseURL     string        `validate:"omitempty,url"`
	RedisURL        string        `validate:"omitempty,url"`
	LookupCacheTTL  time.Duration `validate:"gte=0"`
	RulesFile       string        `validate:"omitempty,file"`
	LookupBaseURL   string        `validate:"required,url"`
	LookupAPIKey    string
	LookupAPISecret string
	LookupShape     string        `validate:"oneof=items order"`
	LookupTimeout   time.Duration `validate:"gt=0"`
	ReverifyWorkers int           `validate:"min=1,max=64"`
}

// HasLookupCredentials reports whether both halves of the provider's basic
// auth pair are set. Without them every verification reports missing
// credentials.
func (c Config) HasLookupCredentials() bool {
	return c.LookupAPIKey != "" && c.LookupAPISecret != ""
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Load reads the environment, after an optional .env in the working
// directory, and validates the result.
func Load() (Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	var errs []error
	cfg := Config{
		Env:             getenv("APP_ENV", "development"),
		ListenAddr:      getenv("LISTEN_ADDR", ":8080"),
		MaxConns:        getenvInt("MAX_CONNS", 256, &errs),
		LogLevel:        strings.ToLower(getenv("LOG_LEVEL", "info")),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		LookupCacheTTL:  getenvDuration("LOOKUP_CACHE_TTL", 5*time.Minute, &errs),
		RulesFile:       os.Getenv("RULES_FILE"),
		LookupBaseURL:   getenv("LOOKUP_BASE_URL", shipment.DefaultBaseURL),
		LookupAPIKey:    os.Getenv("LOOKUP_API_KEY"),
		LookupAPISecret: os.Getenv("LOOKUP_API_SECRET"),
		LookupShape:     strings.ToLower(getenv("LOOKUP_SHAPE", "items")),
		LookupTimeout:   getenvDuration("LOOKUP_TIMEOUT", 10*time.Second, &errs),
		ReverifyWorkers: getenvInt("REVERIFY_WORKERS", 4, &errs),
	}
	if len(errs) > 0 {
		return cfg, errors.Join(errs...)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return cfg, describe(err)
	}
	return cfg, nil
}

func getenvInt(key string, def int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	out, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return def
	}
	return out
}

func getenvDuration(key string, def time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	out, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not a duration", key, v))
		return def
	}
	return out
}

var envNames = map[string]string{
	"Env":             "APP_ENV",
	"ListenAddr":      "LISTEN_ADDR",
	"MaxConns":        "MAX_CONNS",
	"LogLevel":        "LOG_LEVEL",
	"DatabaseURL":     "DATABASE_URL",
	"RedisURL":        "REDIS_URL",
	"LookupCacheTTL":  "LOOKUP_CACHE_TTL",
	"RulesFile":       "RULES_FILE",
	"LookupBaseURL":   "LOOKUP_BASE_URL",
	"LookupShape":     "LOOKUP_SHAPE",
	"LookupTimeout":   "LOOKUP_TIMEOUT",
	"ReverifyWorkers": "REVERIFY_WORKERS",
}

// describe turns validator errors into messages naming the variable.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		name := envNames[fe.Field()]
		if name == "" {
			name = fe.Field()
		}
		out = append(out, fmt.Errorf("%s: invalid value %v (%s)", name, fe.Value(), fe.Tag()))
	}
	return errors.Join(out...)
}
