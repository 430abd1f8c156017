package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	defaultDataDir         = "/var/lib/storyforge"
	defaultListenAddr      = "0.0.0.0:8080"
	defaultMetricsAddr     = "127.0.0.1:9091"
	defaultProfileCacheTTL = 30 * time.Second
)

// Config holds runtime settings for the Storyforge server.
type Config struct {
	DataDir     string
	ListenAddr  string
	MetricsAddr string

	LogLevel  string
	LogFormat string

	// AllowedOrigins are CORS origin patterns; "*" wildcards are supported.
	AllowedOrigins []string

	// ProfileCacheTTL bounds how stale a cached user tier may be.
	ProfileCacheTTL time.Duration

	// UpgradeURL is the pricing page linked from denial responses.
	UpgradeURL string

	// EnvFile is the .env path that Load read from the data dir, if any.
	EnvFile string
}

// DatabasePath returns the SQLite profile database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "profiles.db")
}

// AuditDatabasePath returns the SQLite plan history location.
func (c *Config) AuditDatabasePath() string {
	return filepath.Join(c.DataDir, "audit", "audit.db")
}

// Load reads configuration from the environment, after applying .env files
// from the data directory and the working directory.
func Load() (*Config, error) {
	dataDir := defaultDataDir
	if dir := os.Getenv("STORYFORGE_DATA_DIR"); dir != "" {
		dataDir = dir
	}

	envFile := filepath.Join(dataDir, ".env")
	loadedEnv := ""
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			log.Warn().Err(err).Str("file", envFile).Msg("Failed to load .env file")
		} else {
			loadedEnv = envFile
			log.Info().Str("file", envFile).Msg("Loaded .env file for deployment overrides")
		}
	}

	// Also try loading from current directory for development
	if err := godotenv.Load(); err == nil {
		log.Info().Msg("Loaded configuration from .env in current directory")
	}

	cfg := &Config{
		DataDir:         dataDir,
		ListenAddr:      defaultListenAddr,
		MetricsAddr:     defaultMetricsAddr,
		LogLevel:        "info",
		LogFormat:       "auto",
		ProfileCacheTTL: defaultProfileCacheTTL,
		EnvFile:         loadedEnv,
	}

	if err := applyEnv(cfg, os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	if addr := strings.TrimSpace(getenv("LISTEN_ADDR")); addr != "" {
		cfg.ListenAddr = addr
	} else if port := strings.TrimSpace(getenv("PORT")); port != "" {
		cfg.ListenAddr = net.JoinHostPort("0.0.0.0", port)
	}
	if addr := strings.TrimSpace(getenv("METRICS_ADDR")); addr != "" {
		cfg.MetricsAddr = addr
	}
	if level := strings.TrimSpace(getenv("LOG_LEVEL")); level != "" {
		cfg.LogLevel = strings.ToLower(level)
	}
	if format := strings.TrimSpace(getenv("LOG_FORMAT")); format != "" {
		cfg.LogFormat = strings.ToLower(format)
	}
	if origins := getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = splitList(origins)
	}
	if ttl := strings.TrimSpace(getenv("PROFILE_CACHE_TTL")); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return fmt.Errorf("parse PROFILE_CACHE_TTL %q: %w", ttl, err)
		}
		cfg.ProfileCacheTTL = d
	}
	if upgradeURL := strings.TrimSpace(getenv("UPGRADE_URL")); upgradeURL != "" {
		cfg.UpgradeURL = upgradeURL
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks for settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, errors.New("data directory is required"))
	}
	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		errs = append(errs, fmt.Errorf("listen address %q: %w", c.ListenAddr, err))
	}
	if c.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(c.MetricsAddr); err != nil {
			errs = append(errs, fmt.Errorf("metrics address %q: %w", c.MetricsAddr, err))
		}
	}
	if c.ProfileCacheTTL < 0 {
		errs = append(errs, fmt.Errorf("profile cache TTL %s is negative", c.ProfileCacheTTL))
	}
	switch c.LogFormat {
	case "auto", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log format %q is not one of auto, json, console", c.LogFormat))
	}
	return errors.Join(errs...)
}
