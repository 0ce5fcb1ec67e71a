package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "bridge.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.InDelta(t, 1.0, cfg.Analysis.Tolerance.R1, 1e-12)
	assert.InDelta(t, 2e-2, cfg.Analysis.Tolerance.R2, 1e-12)
	assert.InDelta(t, 0.01, cfg.Analysis.Tolerance.Gain, 1e-12)
	assert.InDelta(t, 2000, cfg.Analysis.RlinkMax, 1e-9)
	assert.InDelta(t, 0.95, cfg.Analysis.CoverageProbability, 1e-12)
	assert.InDelta(t, 3, cfg.Analysis.TDefDoF, 1e-12)
	assert.Equal(t, 4, cfg.Analysis.BlockSize)
	assert.Equal(t, 4, cfg.Analysis.MaxConcurrentRuns)
	assert.True(t, cfg.Profiles.UseWorkbook)
	assert.Equal(t, ".", cfg.Report.Dir)
	assert.Equal(t, 3, cfg.Store.RetryAttempts)
	assert.Empty(t, cfg.Analysis.CSVCharset)

	assert.NoError(t, cfg.Validate("analyze"))
	assert.NoError(t, cfg.Validate("serve"))
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/bridge
log:
  level: debug
  format: console
server:
  port: 9090
analysis:
  tolerance:
    r1: 0.05
  block_size: 6
  range_mode: FIXED
profiles:
  path: profiles.yaml
  use_workbook: false
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/bridge", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.InDelta(t, 0.05, cfg.Analysis.Tolerance.R1, 1e-12)
	assert.InDelta(t, 2e-2, cfg.Analysis.Tolerance.R2, 1e-12)
	assert.Equal(t, 6, cfg.Analysis.BlockSize)
	assert.Equal(t, "FIXED", cfg.Analysis.RangeMode)
	assert.Equal(t, "profiles.yaml", cfg.Profiles.Path)
	assert.False(t, cfg.Profiles.UseWorkbook)
	assert.NoError(t, cfg.Validate("analyze"))
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("BRIDGE_STORE_DRIVER", "postgres")
	t.Setenv("BRIDGE_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("BRIDGE_SERVER_PORT", "3000")
	t.Setenv("BRIDGE_ANALYSIS_RLINK_MAX", "500")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.InDelta(t, 500, cfg.Analysis.RlinkMax, 1e-9)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0o644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

func validConfig() *Config {
	return &Config{
		Store: StoreConfig{Driver: "sqlite", DatabaseURL: "bridge.db"},
		Analysis: AnalysisConfig{
			Tolerance:           ToleranceConfig{R1: 1, R2: 2e-2, Gain: 0.01},
			RlinkMax:            2000,
			TDefDoF:             3,
			NominalDoF:          8,
			DriftDoF:            8,
			CoverageProbability: 0.95,
			BlockSize:           4,
			MaxConcurrentRuns:   4,
		},
		Server: ServerConfig{Port: 8080},
	}
}

func TestValidateAnalyze(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"block size", func(c *Config) { c.Analysis.BlockSize = 5 }, "block_size"},
		{"coverage", func(c *Config) { c.Analysis.CoverageProbability = 1 }, "coverage_probability"},
		{"tolerance", func(c *Config) { c.Analysis.Tolerance.Gain = 0 }, "tolerance"},
		{"rlink max", func(c *Config) { c.Analysis.RlinkMax = -1 }, "rlink_max"},
		{"dof", func(c *Config) { c.Analysis.DriftDoF = 0 }, "dof"},
		{"concurrency", func(c *Config) { c.Analysis.MaxConcurrentRuns = 0 }, "max_concurrent_runs"},
		{"range mode", func(c *Config) { c.Analysis.RangeMode = "manual" }, "range_mode"},
		{"driver", func(c *Config) { c.Store.Driver = "mysql" }, "store.driver"},
		{"database url", func(c *Config) { c.Store.DatabaseURL = "" }, "database_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate("analyze")
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")

	// analysis settings are not checked when serving
	cfg = validConfig()
	cfg.Analysis.BlockSize = 5
	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validConfig()
	err := cfg.Validate("bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
