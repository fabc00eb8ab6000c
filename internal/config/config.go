// Package config loads server settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      string
	LogLevel  string
	LogFormat string
	// DBPath selects the SQLite store. Empty keeps everything in memory.
	DBPath  string
	BaseURL string

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubscriber string

	PostmarkToken string
	EmailFrom     string

	TokenPassphrase string

	SweepInterval           time.Duration
	MaxConcurrentDeliveries int64
	AttachmentTimeout       time.Duration
	AttachmentDir           string
	AllowedWebSocketOrigins []string
}

// Load reads files into the environment without overriding variables that
// are already set, then builds the config. Missing files are ignored.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Config{
		Port:            getenv("HERALD_PORT", "8080"),
		LogLevel:        getenv("HERALD_LOG_LEVEL", "info"),
		LogFormat:       getenv("HERALD_LOG_FORMAT", "text"),
		DBPath:          os.Getenv("HERALD_DB_PATH"),
		VAPIDPublicKey:  os.Getenv("HERALD_VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("HERALD_VAPID_PRIVATE_KEY"),
		VAPIDSubscriber: getenv("HERALD_VAPID_SUBSCRIBER", "mailto:admin@localhost"),
		PostmarkToken:   os.Getenv("HERALD_POSTMARK_TOKEN"),
		EmailFrom:       os.Getenv("HERALD_EMAIL_FROM"),
		TokenPassphrase: os.Getenv("HERALD_TOKEN_PASSPHRASE"),
		AttachmentDir:   os.Getenv("HERALD_ATTACHMENT_DIR"),
	}
	cfg.BaseURL = getenv("HERALD_BASE_URL", "http://localhost:"+cfg.Port)
	if origins := os.Getenv("HERALD_WS_ORIGINS"); origins != "" {
		cfg.AllowedWebSocketOrigins = splitList(origins)
	}

	var err error
	if cfg.SweepInterval, err = durationEnv("HERALD_SWEEP_INTERVAL", time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.AttachmentTimeout, err = durationEnv("HERALD_ATTACHMENT_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.MaxConcurrentDeliveries, err = intEnv("HERALD_MAX_CONCURRENT_DELIVERIES", 16); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// PushEnabled reports whether both VAPID keys are configured.
func (c Config) PushEnabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, v)
	}
	return d, nil
}

func intEnv(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, n)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
