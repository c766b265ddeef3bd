// Package config builds the tunables of a jitter buffer from defaults, an
// optional YAML file and RTPJITTER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Validation constants for configuration bounds checking.
const (
	// MinFramesDelayWindow is the smallest allowed target latency in milliseconds.
	MinFramesDelayWindow = 0
	// MaxFramesDelayWindow is the largest allowed target latency in milliseconds (1 minute).
	MaxFramesDelayWindow = 60000

	// DefaultFramesDelayWindow is the target latency used when nothing overrides it.
	DefaultFramesDelayWindow = 100
)

// Environment variables consulted by Load.
const (
	EnvDebugging    = "RTPJITTER_DEBUGGING"
	EnvFramesWindow = "RTPJITTER_FRAMES_WINDOW"
)

// ErrFramesWindowOutOfRange indicates a frames delay window outside the allowed bounds.
var ErrFramesWindowOutOfRange = errors.New("frames delay window out of range")

// Config holds the externally tunable knobs of a buffer. The sending delay is
// not configurable; the buffer learns it from the stream.
type Config struct {
	// EnableDebugLogging turns on per-packet and per-cycle diagnostics.
	EnableDebugLogging bool `yaml:"debugging"`

	// FramesDelayWindow is the latency in milliseconds introduced before the
	// earliest admitted frame becomes eligible for delivery.
	FramesDelayWindow int64 `yaml:"frames_window"`
}

// Default returns the configuration used when no file or environment override exists.
func Default() Config {
	return Config{
		EnableDebugLogging: false,
		FramesDelayWindow:  DefaultFramesDelayWindow,
	}
}

// Validate checks the configuration bounds.
func (c Config) Validate() error {
	if c.FramesDelayWindow < MinFramesDelayWindow || c.FramesDelayWindow > MaxFramesDelayWindow {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrFramesWindowOutOfRange,
			c.FramesDelayWindow, MinFramesDelayWindow, MaxFramesDelayWindow)
	}
	return nil
}

// Load builds a configuration from defaults, then the YAML file at path (skipped
// when path is empty), then environment overrides. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnvironmentOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	logConfigurationInfo(cfg, path)
	return cfg, nil
}

// loadFile decodes YAML from path over the values already in cfg.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides updates configuration based on environment variables.
func applyEnvironmentOverrides(cfg *Config) {
	parseDebuggingSetting(cfg)
	parseFramesWindowSetting(cfg)
}

// parseDebuggingSetting updates EnableDebugLogging from RTPJITTER_DEBUGGING.
// A value that does not parse as a boolean is logged and ignored.
func parseDebuggingSetting(cfg *Config) {
	raw := os.Getenv(EnvDebugging)
	if raw == "" {
		return
	}

	debugging, err := strconv.ParseBool(raw)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "parseDebuggingSetting",
			"env_var":     EnvDebugging,
			"value":       raw,
			"error":       err.Error(),
			"using_value": cfg.EnableDebugLogging,
		}).Warn("Failed to parse RTPJITTER_DEBUGGING environment variable, using previous value")
		return
	}
	cfg.EnableDebugLogging = debugging
}

// parseFramesWindowSetting updates FramesDelayWindow from RTPJITTER_FRAMES_WINDOW.
// It validates the value is within [MinFramesDelayWindow, MaxFramesDelayWindow]
// and only updates the config when parsing succeeds and the value is in range.
func parseFramesWindowSetting(cfg *Config) {
	raw := os.Getenv(EnvFramesWindow)
	if raw == "" {
		return
	}

	window, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "parseFramesWindowSetting",
			"env_var":     EnvFramesWindow,
			"value":       raw,
			"error":       err.Error(),
			"using_value": cfg.FramesDelayWindow,
		}).Warn("Failed to parse RTPJITTER_FRAMES_WINDOW environment variable, using previous value")
		return
	}
	if window < MinFramesDelayWindow || window > MaxFramesDelayWindow {
		logrus.WithFields(logrus.Fields{
			"function":    "parseFramesWindowSetting",
			"env_var":     EnvFramesWindow,
			"value":       window,
			"min":         MinFramesDelayWindow,
			"max":         MaxFramesDelayWindow,
			"using_value": cfg.FramesDelayWindow,
		}).Warn("RTPJITTER_FRAMES_WINDOW value out of bounds, using previous value")
		return
	}
	cfg.FramesDelayWindow = window
}

func logConfigurationInfo(cfg Config, path string) {
	logrus.WithFields(logrus.Fields{
		"function":      "Load",
		"config_file":   path,
		"debugging":     cfg.EnableDebugLogging,
		"frames_window": cfg.FramesDelayWindow,
	}).Info("Jitter buffer configuration loaded")
}
