package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFrom(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := &Config{ListenAddr: defaultListenAddr, LogFormat: "auto", ProfileCacheTTL: defaultProfileCacheTTL}

	err := applyEnv(cfg, envFrom(map[string]string{
		"PORT":              "9000",
		"METRICS_ADDR":      "127.0.0.1:9999",
		"LOG_LEVEL":         "DEBUG",
		"LOG_FORMAT":        "json",
		"ALLOWED_ORIGINS":   "https://app.storyforge.test, https://*.preview.test ,",
		"PROFILE_CACHE_TTL": "5s",
		"UPGRADE_URL":       "https://pricing.test",
	}))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.ListenAddr)
	assert.Equal(t, "127.0.0.1:9999", cfg.MetricsAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, []string{"https://app.storyforge.test", "https://*.preview.test"}, cfg.AllowedOrigins)
	assert.Equal(t, 5*time.Second, cfg.ProfileCacheTTL)
	assert.Equal(t, "https://pricing.test", cfg.UpgradeURL)
}

func TestApplyEnvListenAddrWinsOverPort(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, applyEnv(cfg, envFrom(map[string]string{
		"LISTEN_ADDR": "127.0.0.1:7000",
		"PORT":        "9000",
	})))
	assert.Equal(t, "127.0.0.1:7000", cfg.ListenAddr)
}

func TestApplyEnvRejectsBadDuration(t *testing.T) {
	cfg := &Config{}
	err := applyEnv(cfg, envFrom(map[string]string{"PROFILE_CACHE_TTL": "soon"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PROFILE_CACHE_TTL")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			DataDir:     "/tmp/storyforge",
			ListenAddr:  "0.0.0.0:8080",
			MetricsAddr: "127.0.0.1:9091",
			LogFormat:   "auto",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "metrics_disabled", mutate: func(c *Config) { c.MetricsAddr = "" }},
		{name: "missing_data_dir", mutate: func(c *Config) { c.DataDir = " " }, wantErr: true},
		{name: "bad_listen_addr", mutate: func(c *Config) { c.ListenAddr = "8080" }, wantErr: true},
		{name: "negative_ttl", mutate: func(c *Config) { c.ProfileCacheTTL = -time.Second }, wantErr: true},
		{name: "bad_log_format", mutate: func(c *Config) { c.LogFormat = "xml" }, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadReadsDataDirEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("STORYFORGE_TEST_UPGRADE=1\nUPGRADE_URL=https://from-env-file.test\n"), 0o600))

	t.Setenv("STORYFORGE_DATA_DIR", dir)
	// godotenv.Load sets os env vars directly, bypassing t.Setenv cleanup
	t.Cleanup(func() {
		_ = os.Unsetenv("STORYFORGE_TEST_UPGRADE")
		_ = os.Unsetenv("UPGRADE_URL")
	})

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, envPath, cfg.EnvFile)
	assert.Equal(t, "https://from-env-file.test", cfg.UpgradeURL)
	assert.Equal(t, filepath.Join(dir, "profiles.db"), cfg.DatabasePath())
	assert.Equal(t, filepath.Join(dir, "audit", "audit.db"), cfg.AuditDatabasePath())
}
