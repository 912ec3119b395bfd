package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/KyungWonPark/Connectivity/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, config.Default().Validate())
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(config.New(), "")
	require.NoError(t, err)

	assert.Equal(t, config.Default().Decomposition, cfg.Decomposition)
	assert.True(t, cfg.DualRegression.Normalize)
	assert.Equal(t, "npy", cfg.Output.Format)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "featx.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
decomposition:
  components: 7
  mode: separately
  groups: [left, right, "BRAIN_STEM"]
parcellation:
  threshold: 0.5
output:
  format: csv
`), 0o644))

	cfg, err := config.Load(config.New(), path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Decomposition.Components)
	assert.Equal(t, "separately", cfg.Decomposition.Mode)
	assert.Equal(t, []string{"left", "right", "BRAIN_STEM"}, cfg.Decomposition.Groups)
	assert.InDelta(t, 0.5, cfg.Parcellation.Threshold, 0)
	assert.Equal(t, "csv", cfg.Output.Format)
	assert.Equal(t, "gonum", cfg.Decomposition.Eigensolver)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("FEATX_DECOMPOSITION_COMPONENTS", "12")
	t.Setenv("FEATX_LOGGING_LEVEL", "debug")

	cfg, err := config.Load(config.New(), "")
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Decomposition.Components)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
		field  string
	}{
		{"zero components", func(c *config.Config) { c.Decomposition.Components = 0 }, "Components"},
		{"unknown mode", func(c *config.Config) { c.Decomposition.Mode = "both" }, "Mode"},
		{"magma without path", func(c *config.Config) { c.Decomposition.Eigensolver = "magma" }, "MagmaPath"},
		{"negative threshold", func(c *config.Config) { c.Parcellation.Threshold = -1 }, "Threshold"},
		{"time range", func(c *config.Config) { c.Input.TimeEnd = -1 }, "TimeEnd"},
		{"format", func(c *config.Config) { c.Output.Format = "mat" }, "Format"},
		{"log level", func(c *config.Config) { c.Logging.Level = "loud" }, "Level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.modify(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestValidateMagmaWithPath(t *testing.T) {
	cfg := config.Default()
	cfg.Decomposition.Eigensolver = "magma"
	cfg.Decomposition.MagmaPath = "/usr/local/bin/magma"

	assert.NoError(t, cfg.Validate())
}
