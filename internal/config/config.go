// Package config loads ghdash settings from the environment.
//
// Every field maps to a GHDASH_-prefixed variable (GHDASH_PORT,
// GHDASH_CACHE_BACKEND, ...). A .env file in the working directory, and
// .env.<APP_ENV> after it, are applied on top of the process environment
// first.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is the environment variable prefix.
const Prefix = "GHDASH"

const appDir = "ghdash"

type Config struct {
	// App
	Env           string        `split_words:"true" default:"dev" validate:"oneof=dev staging prod"`
	LogLevel      string        `split_words:"true" default:"info" validate:"oneof=debug info warn error"`
	Port          int           `default:"8080" validate:"gt=0,lt=65536"`
	ShutdownGrace time.Duration `split_words:"true" default:"15s" validate:"gt=0"`

	// DBPath defaults to ghdash/ghdash.db under the XDG data directory.
	DBPath string `split_words:"true"`

	// Timezone groups commits by date. Empty means the local zone.
	Timezone string

	// Sessions
	SessionSecret      string        `split_words:"true" validate:"required_if=Env prod,omitempty,min=16"`
	SessionLifetime    time.Duration `split_words:"true" default:"168h" validate:"gt=0"`
	SessionCacheSize   int           `split_words:"true" default:"1000" validate:"gt=0"`
	SessionIdleTimeout time.Duration `split_words:"true" default:"1h" validate:"gt=0"`
	CookieSecure       bool          `split_words:"true"`

	// Snapshot cache
	CacheBackend string        `split_words:"true" default:"sqlite" validate:"oneof=sqlite memory redis"`
	CacheSize    int           `split_words:"true" default:"1024" validate:"gt=0"`
	CacheTTL     time.Duration `split_words:"true" default:"15m" validate:"gt=0"`
	RedisURL     string        `split_words:"true" validate:"required_if=CacheBackend redis,omitempty,url"`

	// Commit history
	SearchDebounce time.Duration `split_words:"true" default:"500ms" validate:"gt=0"`
	CommitPageSize int           `split_words:"true" default:"30" validate:"gt=0,lte=100"`

	// GitHub
	GithubBaseURL      string        `split_words:"true" default:"https://api.github.com/" validate:"url"`
	GithubRateLimit    int           `split_words:"true" default:"80" validate:"gt=0"`
	GithubConcurrency  int           `split_words:"true" default:"4" validate:"gt=0"`
	HTTPClientTimeout  time.Duration `split_words:"true" default:"30s" validate:"gt=0"`
	GithubClientID     string        `split_words:"true"`
	GithubClientSecret string        `split_words:"true" validate:"required_with=GithubClientID"`
	GithubCallbackURL  string        `split_words:"true" validate:"omitempty,url"`
}

type Loader struct {
	Prefix   string
	Validate *validator.Validate
	// Dir is where .env files are looked up. Empty means the working
	// directory.
	Dir string
}

func NewLoader(prefix string) *Loader {
	return &Loader{Prefix: prefix, Validate: validator.New()}
}

func (l *Loader) Load() (Config, error) {
	var cfg Config

	if err := l.loadDotEnv(); err != nil {
		return cfg, fmt.Errorf("dotenv: %w", err)
	}
	if err := envconfig.Process(l.Prefix, &cfg); err != nil {
		return cfg, fmt.Errorf("env load: %w", err)
	}
	if err := l.Validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("config validation: %w", err)
	}

	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(xdg.DataHome, appDir, "ghdash.db")
	}
	if cfg.GithubCallbackURL == "" {
		cfg.GithubCallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Port)
	}
	if _, err := cfg.Location(); err != nil {
		return cfg, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// loadDotEnv applies .env and .env.<APP_ENV> when present. Missing files
// are not an error; unreadable ones are.
func (l *Loader) loadDotEnv() error {
	files := []string{".env"}
	if appEnv := strings.TrimSpace(os.Getenv("APP_ENV")); appEnv != "" {
		files = append(files, ".env."+appEnv)
	}

	for _, f := range files {
		path := filepath.Join(l.Dir, f)
		if !fileExists(path) {
			continue
		}
		if err := godotenv.Overload(path); err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Location returns the zone commits are grouped in.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Level maps LogLevel to a slog level.
func (c Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// OAuthEnabled reports whether "Sign in with GitHub" is configured.
func (c Config) OAuthEnabled() bool {
	return c.GithubClientID != ""
}

// Secret returns the key material for session cookies and token sealing.
//
// An explicit SessionSecret wins. Otherwise a random secret is generated
// once and kept in ghdash/secret under the XDG config directory, so a
// single-user install works without configuration.
func (c Config) Secret() (string, error) {
	if c.SessionSecret != "" {
		return c.SessionSecret, nil
	}
	path, err := xdg.ConfigFile(filepath.Join(appDir, "secret"))
	if err != nil {
		return "", fmt.Errorf("config: locating secret file: %w", err)
	}
	return loadOrCreateSecret(path)
}

func loadOrCreateSecret(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if secret := strings.TrimSpace(string(data)); len(secret) >= 16 {
			return secret, nil
		}
		return "", fmt.Errorf("config: secret file %s is too short", path)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("config: reading secret file: %w", err)
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("config: generating secret: %w", err)
	}
	secret := hex.EncodeToString(buf)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("config: creating secret dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(secret+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("config: writing secret file: %w", err)
	}
	return secret, nil
}
