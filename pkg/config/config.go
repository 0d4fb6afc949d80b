// Package config loads pdfannotate settings from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"
)

// Environment variables that override file values
const (
	EnvBaseScale         = "PDFANNOTATE_BASE_SCALE"
	EnvExportMultiplier  = "PDFANNOTATE_EXPORT_MULTIPLIER"
	EnvExportConcurrency = "PDFANNOTATE_EXPORT_CONCURRENCY"
	EnvLogLevel          = "PDFANNOTATE_LOG_LEVEL"
	EnvOCRLanguages      = "PDFANNOTATE_OCR_LANGUAGES"
)

// Config holds every tunable of a session
type Config struct {
	// BaseScale is the viewport scale at zoom 1.0
	BaseScale          float64      `yaml:"base_scale"`
	ZoomStep           float64      `yaml:"zoom_step"`
	MinZoom            float64      `yaml:"min_zoom"`
	CancelStaleRenders bool         `yaml:"cancel_stale_renders"`
	Export             ExportConfig `yaml:"export"`
	OCR                OCRConfig    `yaml:"ocr"`
	LogLevel           string       `yaml:"log_level"`
}

// ExportConfig controls the export compositor
type ExportConfig struct {
	Multiplier      float64 `yaml:"multiplier"`
	Concurrency     int     `yaml:"concurrency"`
	Filename        string  `yaml:"filename"`
	ExtractFilename string  `yaml:"extract_filename"`
	MergeFilename   string  `yaml:"merge_filename"`
}

// OCRConfig controls text recognition
type OCRConfig struct {
	Languages     []string `yaml:"languages"`
	Scale         float64  `yaml:"scale"`
	Threshold     uint8    `yaml:"threshold"`
	MinConfidence float64  `yaml:"min_confidence"`
	PageSegMode   int      `yaml:"page_seg_mode"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		BaseScale:          1.5,
		ZoomStep:           0.2,
		MinZoom:            0.4,
		CancelStaleRenders: true,
		Export: ExportConfig{
			Multiplier:      2,
			Concurrency:     4,
			Filename:        "edited.pdf",
			ExtractFilename: "extracted.pdf",
			MergeFilename:   "merged.pdf",
		},
		OCR: OCRConfig{
			Languages:     []string{"eng", "ara"},
			Scale:         2,
			Threshold:     160,
			MinConfidence: 60,
			PageSegMode:   3,
		},
		LogLevel: "info",
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// GetEnv returns the value of key, or fallback when it is unset
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func (c *Config) applyEnv() error {
	if v := GetEnv(EnvBaseScale, ""); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvBaseScale, err)
		}
		c.BaseScale = f
	}
	if v := GetEnv(EnvExportMultiplier, ""); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvExportMultiplier, err)
		}
		c.Export.Multiplier = f
	}
	if v := GetEnv(EnvExportConcurrency, ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvExportConcurrency, err)
		}
		c.Export.Concurrency = n
	}
	c.LogLevel = GetEnv(EnvLogLevel, c.LogLevel)
	if v := GetEnv(EnvOCRLanguages, ""); v != "" {
		var langs []string
		for _, l := range strings.Split(v, "+") {
			if l = strings.TrimSpace(l); l != "" {
				langs = append(langs, l)
			}
		}
		c.OCR.Languages = langs
	}
	return nil
}

// Validate reports every invalid setting
func (c Config) Validate() error {
	var errs []error
	if c.BaseScale <= 0 {
		errs = append(errs, fmt.Errorf("base_scale must be positive, got %v", c.BaseScale))
	}
	if c.ZoomStep <= 0 {
		errs = append(errs, fmt.Errorf("zoom_step must be positive, got %v", c.ZoomStep))
	}
	if c.MinZoom <= 0 {
		errs = append(errs, fmt.Errorf("min_zoom must be positive, got %v", c.MinZoom))
	}
	if c.Export.Multiplier < 1 {
		errs = append(errs, fmt.Errorf("export.multiplier must be at least 1, got %v", c.Export.Multiplier))
	}
	if c.Export.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("export.concurrency must be at least 1, got %d", c.Export.Concurrency))
	}
	if c.OCR.Scale <= 0 {
		errs = append(errs, fmt.Errorf("ocr.scale must be positive, got %v", c.OCR.Scale))
	}
	if c.OCR.MinConfidence < 0 || c.OCR.MinConfidence > 100 {
		errs = append(errs, fmt.Errorf("ocr.min_confidence must be within [0, 100], got %v", c.OCR.MinConfidence))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// ParseLevel maps a log level name to a slog level
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log_level %q", s)
	}
	return level, nil
}

// Level returns the configured slog level, info when unset or invalid
func (c Config) Level() slog.Level {
	level, _ := ParseLevel(c.LogLevel)
	return level
}
