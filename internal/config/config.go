// Package config loads the server configuration from environment variables,
// optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends.
const (
	BackendSQLite    = "sqlite"
	BackendFirestore = "firestore"
)

// MinJWTSecretLength matches what auth.NewTokenService accepts.
const MinJWTSecretLength = 16

// Config holds all configuration for the server.
type Config struct {
	Port        int
	BaseURL     string // public origin, e.g. https://wishes.example
	LogLevel    slog.Level
	TemplateDir string
	StaticDir   string

	// Storage
	StorageBackend    string // BackendSQLite ("mock" mode) or BackendFirestore
	DBPath            string
	FirebaseProjectID string
	CredentialsFile   string

	// Sessions
	JWTSecret string
	TokenTTL  time.Duration

	// Sign-in methods
	DemoAuth           bool
	DemoPasswordHash   string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string
	FirebaseAuth       bool

	// Link previews
	PreviewEnabled bool
	PreviewTimeout time.Duration
}

// LoadDotEnv copies variables from the given .env files (default ".env")
// into the process environment. Variables already set win. A missing file
// is not an error.
func LoadDotEnv(filenames ...string) error {
	if err := godotenv.Load(filenames...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: reading .env: %w", err)
	}
	return nil
}

// Load reads the configuration from the environment, applies defaults and
// validates it. Every problem is reported, not just the first.
func Load() (*Config, error) {
	p := &parser{}

	cfg := &Config{
		Port:        p.int("PORT", 8080),
		LogLevel:    p.level("LOG_LEVEL", slog.LevelInfo),
		TemplateDir: getEnvOrDefault("TEMPLATE_DIR", "web/templates"),
		StaticDir:   getEnvOrDefault("STATIC_DIR", "web/static"),

		StorageBackend:    strings.ToLower(getEnvOrDefault("STORAGE_BACKEND", BackendSQLite)),
		DBPath:            getEnvOrDefault("DB_PATH", "data/wishlist.db"),
		FirebaseProjectID: os.Getenv("FIREBASE_PROJECT_ID"),
		CredentialsFile:   os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),

		JWTSecret: os.Getenv("JWT_SECRET"),
		TokenTTL:  p.duration("TOKEN_TTL", 24*time.Hour),

		DemoAuth:           p.bool("DEMO_AUTH", true),
		DemoPasswordHash:   os.Getenv("DEMO_PASSWORD_HASH"),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		FirebaseAuth:       p.bool("FIREBASE_AUTH", false),

		PreviewEnabled: p.bool("PREVIEW_ENABLED", true),
		PreviewTimeout: p.duration("PREVIEW_TIMEOUT", 5*time.Second),
	}
	cfg.BaseURL = strings.TrimRight(getEnvOrDefault("BASE_URL", fmt.Sprintf("http://localhost:%d", cfg.Port)), "/")
	cfg.GoogleCallbackURL = getEnvOrDefault("GOOGLE_CALLBACK_URL", cfg.BaseURL+"/auth/google/callback")

	errs := append(p.errs, cfg.validate()...)
	if len(errs) > 0 {
		return nil, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return cfg, nil
}

func (c *Config) validate() []error {
	var errs []error

	if len(c.JWTSecret) < MinJWTSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters", MinJWTSecretLength))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d is out of range", c.Port))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.PreviewTimeout <= 0 {
		errs = append(errs, errors.New("PREVIEW_TIMEOUT must be positive"))
	}

	switch c.StorageBackend {
	case BackendSQLite:
	case BackendFirestore:
		if c.FirebaseProjectID == "" {
			errs = append(errs, errors.New("FIREBASE_PROJECT_ID is required for the firestore backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", BackendSQLite, BackendFirestore, c.StorageBackend))
	}

	if c.FirebaseAuth && c.FirebaseProjectID == "" {
		errs = append(errs, errors.New("FIREBASE_AUTH needs FIREBASE_PROJECT_ID"))
	}
	if (c.GoogleClientID == "") != (c.GoogleClientSecret == "") {
		errs = append(errs, errors.New("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set together"))
	}
	if !c.DemoAuth && !c.GoogleEnabled() && !c.FirebaseAuth {
		errs = append(errs, errors.New("no sign-in method enabled (DEMO_AUTH, GOOGLE_CLIENT_ID or FIREBASE_AUTH)"))
	}

	return errs
}

// GoogleEnabled reports whether Google sign-in is configured.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// NeedsFirebase reports whether the Firebase app has to be initialised.
func (c *Config) NeedsFirebase() bool {
	return c.StorageBackend == BackendFirestore || c.FirebaseAuth
}

// SecureCookies reports whether the site is served over HTTPS.
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(c.BaseURL, "https://")
}

// parser reads typed variables and remembers what failed to parse.
type parser struct {
	errs []error
}

func (p *parser) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not a number", key, v))
		return def
	}
	return n
}

func (p *parser) bool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not a boolean", key, v))
		return def
	}
	return b
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not a duration", key, v))
		return def
	}
	return d
}

func (p *parser) level(key string, def slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(v)); err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not a log level", key, v))
		return def
	}
	return l
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
