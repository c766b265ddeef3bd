package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.False(t, cfg.EnableDebugLogging)
	assert.Equal(t, int64(100), cfg.FramesDelayWindow)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		window  int64
		wantErr bool
	}{
		{name: "zero window", window: 0},
		{name: "default window", window: 100},
		{name: "maximum window", window: MaxFramesDelayWindow},
		{name: "negative window", window: -1, wantErr: true},
		{name: "above maximum", window: MaxFramesDelayWindow + 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Config{FramesDelayWindow: tt.window}.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrFramesWindowOutOfRange)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv(EnvDebugging, "")
	t.Setenv(EnvFramesWindow, "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFile(t *testing.T) {
	t.Setenv(EnvDebugging, "")
	t.Setenv(EnvFramesWindow, "")

	path := filepath.Join(t.TempDir(), "rtpjitter.yaml")
	require.NoError(t, os.WriteFile(path, []byte("debugging: true\nframes_window: 250\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.EnableDebugLogging)
	assert.Equal(t, int64(250), cfg.FramesDelayWindow)
}

func TestLoadFilePartialKeepsDefaults(t *testing.T) {
	t.Setenv(EnvDebugging, "")
	t.Setenv(EnvFramesWindow, "")

	path := filepath.Join(t.TempDir(), "rtpjitter.yaml")
	require.NoError(t, os.WriteFile(path, []byte("debugging: true\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.EnableDebugLogging)
	assert.Equal(t, int64(DefaultFramesDelayWindow), cfg.FramesDelayWindow)
}

func TestLoadFileErrors(t *testing.T) {
	t.Setenv(EnvDebugging, "")
	t.Setenv(EnvFramesWindow, "")

	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("frames_window: [1, 2\n"), 0o600))
	_, err = Load(bad)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")

	outOfRange := filepath.Join(dir, "range.yaml")
	require.NoError(t, os.WriteFile(outOfRange, []byte("frames_window: -5\n"), 0o600))
	_, err = Load(outOfRange)
	assert.ErrorIs(t, err, ErrFramesWindowOutOfRange)
}

func TestEnvironmentVariableParsing(t *testing.T) {
	tests := []struct {
		name         string
		debugging    string
		framesWindow string
		wantDebug    bool
		wantWindow   int64
	}{
		{
			name:       "no overrides",
			wantWindow: DefaultFramesDelayWindow,
		},
		{
			name:         "valid overrides",
			debugging:    "true",
			framesWindow: "800",
			wantDebug:    true,
			wantWindow:   800,
		},
		{
			name:         "unparseable values keep defaults",
			debugging:    "maybe",
			framesWindow: "soon",
			wantWindow:   DefaultFramesDelayWindow,
		},
		{
			name:         "out of bounds window keeps default",
			framesWindow: "600001",
			wantWindow:   DefaultFramesDelayWindow,
		},
		{
			name:         "negative window keeps default",
			framesWindow: "-10",
			wantWindow:   DefaultFramesDelayWindow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvDebugging, tt.debugging)
			t.Setenv(EnvFramesWindow, tt.framesWindow)

			cfg, err := Load("")
			require.NoError(t, err)
			assert.Equal(t, tt.wantDebug, cfg.EnableDebugLogging)
			assert.Equal(t, tt.wantWindow, cfg.FramesDelayWindow)
		})
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rtpjitter.yaml")
	require.NoError(t, os.WriteFile(path, []byte("frames_window: 250\n"), 0o600))

	t.Setenv(EnvDebugging, "")
	t.Setenv(EnvFramesWindow, "40")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(40), cfg.FramesDelayWindow)
}
