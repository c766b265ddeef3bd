package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/opd-ai/rtpjitter/buffer"
	"github.com/opd-ai/rtpjitter/config"
	"github.com/opd-ai/rtpjitter/transport"
)

const shutdownTimeout = 5 * time.Second

var relayFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "listen",
		Usage: "UDP address to receive RTP packets on",
		Value: ":5004",
	},
	&cli.StringFlag{
		Name:     "forward",
		Usage:    "UDP address delivered packets are sent to",
		Required: true,
	},
	&cli.StringFlag{
		Name:  "config",
		Usage: "path to a YAML buffer config `file`",
	},
	&cli.BoolFlag{
		Name:  "debug",
		Usage: "emit per-packet and per-cycle buffer diagnostics",
	},
	&cli.Int64Flag{
		Name:  "frames-window",
		Usage: "delivery latency in milliseconds, overrides the config file",
	},
	&cli.StringFlag{
		Name:  "metrics-addr",
		Usage: "address to serve prometheus /metrics on, disabled when empty",
	},
	&cli.StringFlag{
		Name:  "stream",
		Usage: "stream name used in logs and metric labels",
		Value: "default",
	},
	&cli.StringFlag{
		Name:  "log-level",
		Usage: "log level (DEBUG, INFO, WARN, ERROR)",
		Value: "INFO",
	},
	&cli.StringFlag{
		Name:  "log-file",
		Usage: "log file path (default: stderr)",
	},
}

// relayConfig is the resolved command line.
type relayConfig struct {
	listenAddr  string
	forwardAddr string
	metricsAddr string
	stream      string
	buffer      config.Config
}

// relay is a running source, buffer and sink chain.
type relay struct {
	source   *transport.UDPSource
	buffer   *buffer.Buffer
	sink     *transport.UDPSink
	metrics  *http.Server
	metricsL net.Listener
}

func newApp(action cli.ActionFunc) *cli.App {
	return &cli.App{
		Name:        "rtpjitter",
		Usage:       "UDP RTP relay with a jitter-absorbing reassembly buffer",
		Description: "receives RTP on --listen, reorders it into frames and forwards it to --forward at the learned frame rate",
		Flags:       relayFlags,
		Action:      action,
	}
}

func main() {
	app := newApp(runRelay)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "rtpjitter: %v\n", err)
		os.Exit(1)
	}
}

func runRelay(c *cli.Context) error {
	closeLog, err := setupLogging(c.String("log-level"), c.String("log-file"))
	if err != nil {
		return err
	}
	defer closeLog()

	rc, err := resolveConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, err := startRelay(rc, prometheus.NewRegistry())
	if err != nil {
		return err
	}

	<-ctx.Done()
	logrus.WithField("function", "runRelay").Info("Received shutdown signal")
	return r.Close()
}

// setupLogging configures the standard logrus logger. The returned func
// closes the log file, if any.
func setupLogging(level, file string) (func(), error) {
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if file == "" {
		logrus.SetOutput(os.Stderr)
		return func() {}, nil
	}

	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logrus.SetOutput(io.MultiWriter(os.Stderr, f))
	return func() {
		logrus.SetOutput(os.Stderr)
		_ = f.Close()
	}, nil
}

// resolveConfig loads the buffer config and applies flag overrides on top.
func resolveConfig(c *cli.Context) (relayConfig, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return relayConfig{}, err
	}

	if c.IsSet("debug") {
		cfg.EnableDebugLogging = c.Bool("debug")
	}
	if c.IsSet("frames-window") {
		cfg.FramesDelayWindow = c.Int64("frames-window")
	}
	if err := cfg.Validate(); err != nil {
		return relayConfig{}, fmt.Errorf("invalid --frames-window: %w", err)
	}

	return relayConfig{
		listenAddr:  c.String("listen"),
		forwardAddr: c.String("forward"),
		metricsAddr: c.String("metrics-addr"),
		stream:      c.String("stream"),
		buffer:      cfg,
	}, nil
}

// startRelay builds the chain back to front so nothing is received before
// there is somewhere to put it.
func startRelay(rc relayConfig, reg *prometheus.Registry) (*relay, error) {
	logger := logrus.WithFields(logrus.Fields{
		"function": "startRelay",
		"listen":   rc.listenAddr,
		"forward":  rc.forwardAddr,
		"stream":   rc.stream,
	})

	m, err := buffer.NewMetrics(reg, rc.stream)
	if err != nil {
		return nil, err
	}

	r := &relay{}

	r.sink, err = transport.NewUDPSink(rc.forwardAddr)
	if err != nil {
		return nil, err
	}

	r.buffer, err = buffer.New(r.sink, rc.buffer,
		buffer.WithMetrics(m),
		buffer.WithStreamName(rc.stream),
	)
	if err != nil {
		_ = r.sink.Close()
		return nil, err
	}

	r.source, err = transport.NewUDPSource(rc.listenAddr, r.buffer)
	if err != nil {
		_ = r.buffer.Close()
		_ = r.sink.Close()
		return nil, err
	}

	if rc.metricsAddr != "" {
		if err := r.serveMetrics(rc.metricsAddr, reg); err != nil {
			_ = r.Close()
			return nil, err
		}
	}

	logger.Info("Relay started")
	return r, nil
}

func (r *relay) serveMetrics(addr string, reg *prometheus.Registry) error {
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen for metrics on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.metricsL = l
	r.metrics = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := r.metrics.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithFields(logrus.Fields{
				"function": "relay.serveMetrics",
				"error":    err.Error(),
			}).Error("Metrics server stopped")
		}
	}()

	logrus.WithFields(logrus.Fields{
		"function": "relay.serveMetrics",
		"addr":     l.Addr().String(),
	}).Info("Serving metrics")
	return nil
}

// Close stops the chain front to back: no new packets, then no new deliveries.
func (r *relay) Close() error {
	var errs []error

	if r.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		errs = append(errs, r.metrics.Shutdown(ctx))
		cancel()
	}
	errs = append(errs, r.source.Close(), r.buffer.Close(), r.sink.Close())

	stats := r.buffer.Stats()
	logrus.WithFields(logrus.Fields{
		"function":          "relay.Close",
		"packets_received":  stats.PacketsReceived,
		"packets_delivered": stats.PacketsDelivered,
		"packets_discarded": stats.PacketsDiscarded,
		"frames_evicted":    stats.FramesEvicted,
		"packets_evicted":   stats.PacketsEvicted,
	}).Info("Relay stopped")

	return errors.Join(errs...)
}
