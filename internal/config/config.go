package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultSessionSecret signs session cookies when SESSION_SECRET is unset.
// It is public, so cookies signed with it can be forged.
const DefaultSessionSecret = "change-me-in-production"

type Config struct {
	HTTPAddr string

	// Answer store
	AnswerDriver  string // sqlite, postgres or mongo
	DBDSN         string
	MongoURI      string
	MongoDatabase string

	// Session position store
	SessionDriver string // redis or memory
	RedisAddr     string
	SessionTTL    time.Duration
	SessionSecret string
	CookieSecure  bool

	Locales       []string
	DefaultLocale string

	SurveyRevision string
	SurveyFile     string // overrides SurveyRevision when set

	ExportSeparator         string
	ExportInternalSeparator string

	AdminUser     string
	AdminPassHash string // bcrypt

	LogLevel       string
	LogDevelopment bool
}

func Load() *Config {
	return &Config{
		HTTPAddr:                getEnv("HTTP_ADDR", ":8080"),
		AnswerDriver:            getEnv("ANSWER_DRIVER", "sqlite"),
		DBDSN:                   getEnv("DB_DSN", ""),
		MongoURI:                getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:           getEnv("MONGO_DATABASE", "survey"),
		SessionDriver:           getEnv("SESSION_DRIVER", "redis"),
		RedisAddr:               strings.TrimPrefix(getEnv("REDIS_URI", "localhost:6379"), "redis://"),
		SessionTTL:              envDuration("SESSION_TTL", 24*time.Hour),
		SessionSecret:           getEnv("SESSION_SECRET", DefaultSessionSecret),
		CookieSecure:            envBool("COOKIE_SECURE", false),
		Locales:                 csvOr("LOCALES", []string{"en", "ptbr"}),
		DefaultLocale:           getEnv("DEFAULT_LOCALE", "en"),
		SurveyRevision:          getEnv("SURVEY_REVISION", "v2"),
		SurveyFile:              getEnv("SURVEY_FILE", ""),
		ExportSeparator:         getEnv("EXPORT_SEPARATOR", ";"),
		ExportInternalSeparator: getEnv("EXPORT_INTERNAL_SEPARATOR", ", "),
		AdminUser:               getEnv("ADMIN_USER", "admin"),
		AdminPassHash:           getEnv("ADMIN_PASS_HASH", ""),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		LogDevelopment:          envBool("LOG_DEVELOPMENT", false),
	}
}

// Validate reports the first inconsistent setting
// InsecureSecret reports whether cookies are signed with the built-in secret
func (c *Config) InsecureSecret() bool {
	return c.SessionSecret == DefaultSessionSecret
}

func (c *Config) Validate() error {
	if !slices.Contains([]string{"sqlite", "postgres", "mongo"}, c.AnswerDriver) {
		return fmt.Errorf("ANSWER_DRIVER: unsupported driver %q", c.AnswerDriver)
	}
	if !slices.Contains([]string{"redis", "memory"}, c.SessionDriver) {
		return fmt.Errorf("SESSION_DRIVER: unsupported driver %q", c.SessionDriver)
	}
	if len(c.Locales) == 0 {
		return fmt.Errorf("LOCALES: at least one locale is required")
	}
	if !slices.Contains(c.Locales, c.DefaultLocale) {
		return fmt.Errorf("DEFAULT_LOCALE: %q is not in LOCALES", c.DefaultLocale)
	}
	if utf8.RuneCountInString(c.ExportSeparator) != 1 {
		return fmt.Errorf("EXPORT_SEPARATOR: must be a single character")
	}
	if c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET: must not be empty")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultVal
	}
	return v
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return defaultVal
	}
	return v
}

func csvOr(key string, defaultVal []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
