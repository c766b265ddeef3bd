package main

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/opd-ai/rtpjitter/config"
	testsim "github.com/opd-ai/rtpjitter/testing"
	"github.com/opd-ai/rtpjitter/transport"
)

const testTimeout = 3 * time.Second

// parseArgs runs the app with an action that captures the resolved config.
func parseArgs(t *testing.T, args ...string) (relayConfig, error) {
	t.Helper()

	var rc relayConfig
	app := newApp(func(c *cli.Context) error {
		var err error
		rc, err = resolveConfig(c)
		return err
	})
	app.Writer = io.Discard
	app.ErrWriter = io.Discard

	err := app.Run(append([]string{"rtpjitter"}, args...))
	return rc, err
}

func TestResolveConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "buffer.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("debugging: true\nframes_window: 300\n"), 0o600))

	tests := []struct {
		name       string
		args       []string
		wantWindow int64
		wantDebug  bool
		wantErr    bool
	}{
		{
			name:       "defaults",
			args:       []string{"--forward", "127.0.0.1:6004"},
			wantWindow: config.DefaultFramesDelayWindow,
		},
		{
			name:       "flags override defaults",
			args:       []string{"--forward", "127.0.0.1:6004", "--frames-window", "40", "--debug"},
			wantWindow: 40,
			wantDebug:  true,
		},
		{
			name:       "config file",
			args:       []string{"--forward", "127.0.0.1:6004", "--config", cfgPath},
			wantWindow: 300,
			wantDebug:  true,
		},
		{
			name:       "flags override config file",
			args:       []string{"--forward", "127.0.0.1:6004", "--config", cfgPath, "--frames-window", "0", "--debug=false"},
			wantWindow: 0,
			wantDebug:  false,
		},
		{
			name:    "missing forward",
			args:    []string{"--listen", ":5004"},
			wantErr: true,
		},
		{
			name:    "window out of range",
			args:    []string{"--forward", "127.0.0.1:6004", "--frames-window=-5"},
			wantErr: true,
		},
		{
			name:    "missing config file",
			args:    []string{"--forward", "127.0.0.1:6004", "--config", filepath.Join(t.TempDir(), "absent.yaml")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc, err := parseArgs(t, tt.args...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantWindow, rc.buffer.FramesDelayWindow)
			assert.Equal(t, tt.wantDebug, rc.buffer.EnableDebugLogging)
			assert.Equal(t, "127.0.0.1:6004", rc.forwardAddr)
			assert.Equal(t, ":5004", rc.listenAddr)
			assert.Equal(t, "default", rc.stream)
		})
	}
}

func TestSetupLogging(t *testing.T) {
	defer logrus.SetLevel(logrus.InfoLevel)

	closeLog, err := setupLogging("DEBUG", "")
	require.NoError(t, err)
	closeLog()
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())

	_, err = setupLogging("LOUD", "")
	assert.Error(t, err)

	logPath := filepath.Join(t.TempDir(), "relay.log")
	closeLog, err = setupLogging("info", logPath)
	require.NoError(t, err)
	logrus.Info("written to file")
	closeLog()

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestRelayEndToEnd(t *testing.T) {
	received := testsim.NewRecordingSink()
	downstream, err := transport.NewUDPSource("127.0.0.1:0", received)
	require.NoError(t, err)
	defer downstream.Close()

	cfg := config.Default()
	cfg.FramesDelayWindow = 0
	r, err := startRelay(relayConfig{
		listenAddr:  "127.0.0.1:0",
		forwardAddr: downstream.LocalAddr().String(),
		metricsAddr: "127.0.0.1:0",
		stream:      "e2e",
		buffer:      cfg,
	}, prometheus.NewRegistry())
	require.NoError(t, err)
	defer r.Close()

	upstream, err := transport.NewUDPSink(r.source.LocalAddr().String())
	require.NoError(t, err)
	defer upstream.Close()

	sim := testsim.NewStreamSimulator(testsim.StreamConfig{
		Frames:          6,
		PacketsPerFrame: 2,
		FrameSpacing:    90 * 20,
		StartTimestamp:  90 * 1000,
	})
	require.NoError(t, sim.Feed(upstream))

	require.True(t, received.WaitForCount(12, testTimeout))
	got := received.Packets()
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1].SequenceNumber, got[i].SequenceNumber)
	}

	resp, err := http.Get("http://" + r.metricsL.Addr().String() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `rtpjitter_packets_received_total{stream="e2e"}`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestStartRelayDuplicateStream(t *testing.T) {
	reg := prometheus.NewRegistry()
	rc := relayConfig{
		listenAddr:  "127.0.0.1:0",
		forwardAddr: "127.0.0.1:9",
		stream:      "dup",
		buffer:      config.Default(),
	}

	r, err := startRelay(rc, reg)
	require.NoError(t, err)
	defer r.Close()

	_, err = startRelay(rc, reg)
	assert.Error(t, err)
}
