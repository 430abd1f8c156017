package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyforge/storyforge/internal/metrics"
	"github.com/storyforge/storyforge/pkg/entitlements"
)

// runCLI executes the root command with args and returns its output.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	tiersPDFPath = ""
	checkJSON = false
	dataDirFlag = ""
	historyLimit = 20

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	oldVersion, oldBuildTime, oldGitCommit := Version, BuildTime, GitCommit
	defer func() {
		Version, BuildTime, GitCommit = oldVersion, oldBuildTime, oldGitCommit
	}()

	Version = "1.2.3"
	BuildTime = "2026-01-01"
	GitCommit = "abcdef"

	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Storyforge 1.2.3")
	assert.Contains(t, out, "Built: 2026-01-01")
	assert.Contains(t, out, "Commit: abcdef")

	BuildTime, GitCommit = "unknown", "unknown"
	out, err = runCLI(t, "version")
	require.NoError(t, err)
	assert.NotContains(t, out, "Built:")
	assert.NotContains(t, out, "Commit:")
}

func TestTiersCmdPrintsTable(t *testing.T) {
	out, err := runCLI(t, "tiers")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1+len(entitlements.Capabilities()))
	assert.Contains(t, lines[0], "Apprentice")
	assert.Contains(t, lines[0], "Legendary")

	var seriesLine string
	for _, line := range lines {
		if strings.HasPrefix(line, "maxSeries ") {
			seriesLine = line
		}
	}
	require.NotEmpty(t, seriesLine)
	assert.Equal(t, []string{"maxSeries", "limit", "1", "5", "20", "unlimited"}, strings.Fields(seriesLine))
}

func TestTiersCmdWritesPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans.pdf")
	out, err := runCLI(t, "tiers", "--pdf", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Comparison sheet written to "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestCheckCmd(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		contains []string
		wantErr  string
	}{
		{
			name:     "flag_denied",
			args:     []string{"check", "apprentice", "timelineManagement"},
			contains: []string{"BLOCKED", "denied", "Upgrade to Wordsmith"},
		},
		{
			name:     "limit_reached",
			args:     []string{"check", "Apprentice", "maxSeries", "1"},
			contains: []string{"BLOCKED", "limit_reached", "usage: 1 of 1"},
		},
		{
			name:     "unlimited",
			args:     []string{"check", "legendary", "aiSuggestionsLimit", "10000000"},
			contains: []string{"ALLOWED", "usage: 10000000 of unlimited"},
		},
		{name: "unknown_tier", args: []string{"check", "mythic", "maxSeries"}, wantErr: "unknown tier"},
		{name: "unknown_capability", args: []string{"check", "apprentice", "dragons"}, wantErr: "unknown capability"},
		{name: "bad_count", args: []string{"check", "apprentice", "maxSeries", "-3"}, wantErr: "non-negative"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCLI(t, tt.args...)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestCheckCmdJSON(t *testing.T) {
	out, err := runCLI(t, "check", "wordsmith", "maxCollaborators", "0", "--json")
	require.NoError(t, err)

	var decision map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &decision))
	assert.Equal(t, false, decision["accessible"])
	assert.Equal(t, "loremaster", decision["required_tier"])
	assert.Equal(t, float64(0), decision["limit"])
}

func TestValidateCmd(t *testing.T) {
	out, err := runCLI(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "OK: 4 tiers x 14 capabilities, 0 ordering warning(s)")
}

func TestValidateTableReportsProblems(t *testing.T) {
	t.Run("missing_values", func(t *testing.T) {
		var out bytes.Buffer
		err := validateTable(&out, nil)
		require.ErrorIs(t, err, errValidation)
		assert.Contains(t, out.String(), "ERROR: apprentice has no value for maxSeries")
	})

	t.Run("ordering_warning", func(t *testing.T) {
		values := map[entitlements.Tier]map[entitlements.Capability]entitlements.Value{}
		for _, tier := range entitlements.Tiers() {
			values[tier] = entitlements.DefaultTable().Row(tier)
		}
		values[entitlements.TierLegendary][entitlements.CapExportPDF] = entitlements.Flag(false)
		table, err := entitlements.NewTable(values)
		require.NoError(t, err)

		var out bytes.Buffer
		require.NoError(t, validateTable(&out, table))
		assert.Contains(t, out.String(), "WARN: exportPdf")
		assert.Contains(t, out.String(), "1 ordering warning(s)")
	})
}

func TestProfileCommands(t *testing.T) {
	t.Setenv("STORYFORGE_DATA_DIR", t.TempDir())

	out, err := runCLI(t, "profile", "create", "writer@example.com")
	require.NoError(t, err)
	fields := strings.Fields(out)
	require.Len(t, fields, 3)
	id := fields[0]
	assert.Equal(t, "writer@example.com", fields[1])
	assert.Equal(t, "apprentice", fields[2])

	out, err = runCLI(t, "profile", "set-tier", id, "Loremaster")
	require.NoError(t, err)
	assert.Contains(t, out, "is now on Loremaster (was Apprentice)")

	out, err = runCLI(t, "profile", "set-tier", id, "loremaster")
	require.NoError(t, err)
	assert.Contains(t, out, "is already on Loremaster")

	out, err = runCLI(t, "profile", "show", id)
	require.NoError(t, err)
	var shown map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Equal(t, id, shown["id"])
	assert.Equal(t, "loremaster", shown["tier"])

	out, err = runCLI(t, "profile", "list")
	require.NoError(t, err)
	assert.Contains(t, out, id)

	out, err = runCLI(t, "profile", "reset-usage", id, "aiSuggestionsLimit")
	require.NoError(t, err)
	assert.Contains(t, out, "0 counter(s) remain")

	out, err = runCLI(t, "profile", "history", id)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "usage_reset")
	assert.Contains(t, lines[1], "aiSuggestionsLimit")
	assert.Contains(t, lines[2], "tier_changed")
	assert.Contains(t, lines[2], "cli")
	assert.Contains(t, lines[2], "upgrade: apprentice -> loremaster")

	_, err = runCLI(t, "profile", "set-tier", id, "gold")
	require.ErrorIs(t, err, entitlements.ErrUnknownTier)

	_, err = runCLI(t, "profile", "show", "missing")
	require.Error(t, err)
}

func TestProfileCommandsHonorDataDirFlag(t *testing.T) {
	// loadConfig exports --data-dir; t.Setenv restores the variable afterwards
	t.Setenv("STORYFORGE_DATA_DIR", t.TempDir())
	dir := t.TempDir()

	_, err := runCLI(t, "profile", "create", "flag@example.com", "wordsmith", "--data-dir", dir)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "profiles.db"))
	require.NoError(t, err)
}

func TestMetricsMux(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewEntitlementMetrics(reg)
	m.RecordUsage(entitlements.CapMaxSeries, 2)

	mux := newMetricsMux(reg)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `storyforge_entitlements_usage_recorded_total{capability="maxSeries"} 2`)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/metrics", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
