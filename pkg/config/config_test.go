package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1.5, cfg.BaseScale)
	assert.Equal(t, 0.2, cfg.ZoomStep)
	assert.Equal(t, 0.4, cfg.MinZoom)
	assert.True(t, cfg.CancelStaleRenders)
	assert.Equal(t, 2.0, cfg.Export.Multiplier)
	assert.Equal(t, "edited.pdf", cfg.Export.Filename)
	assert.Equal(t, []string{"eng", "ara"}, cfg.OCR.Languages)
	assert.Equal(t, uint8(160), cfg.OCR.Threshold)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pdfannotate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
base_scale: 2
cancel_stale_renders: false
export:
  multiplier: 3
ocr:
  languages: [deu]
log_level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2.0, cfg.BaseScale)
	assert.False(t, cfg.CancelStaleRenders)
	assert.Equal(t, 3.0, cfg.Export.Multiplier)
	assert.Equal(t, 4, cfg.Export.Concurrency, "unset keys keep defaults")
	assert.Equal(t, []string{"deu"}, cfg.OCR.Languages)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(EnvBaseScale, "1.25")
	t.Setenv(EnvExportConcurrency, "8")
	t.Setenv(EnvOCRLanguages, "eng+fra")
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 1.25, cfg.BaseScale)
	assert.Equal(t, 8, cfg.Export.Concurrency)
	assert.Equal(t, []string{"eng", "fra"}, cfg.OCR.Languages)
	assert.Equal(t, slog.LevelWarn, cfg.Level())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	t.Setenv(EnvExportMultiplier, "abc")
	_, err = Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero base scale", func(c *Config) { c.BaseScale = 0 }},
		{"negative step", func(c *Config) { c.ZoomStep = -0.2 }},
		{"zero min zoom", func(c *Config) { c.MinZoom = 0 }},
		{"multiplier under one", func(c *Config) { c.Export.Multiplier = 0.5 }},
		{"no workers", func(c *Config) { c.Export.Concurrency = 0 }},
		{"zero ocr scale", func(c *Config) { c.OCR.Scale = 0 }},
		{"negative ocr confidence", func(c *Config) { c.OCR.MinConfidence = -1 }},
		{"ocr confidence over 100", func(c *Config) { c.OCR.MinConfidence = 101 }},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := Default()
	cfg.OCR.MinConfidence = 100
	assert.NoError(t, cfg.Validate(), "confidence bounds are inclusive")
}
