package buffer

import (
	"fmt"
	"sync"
	"time"

	"github.com/frostbyte73/core"
	"github.com/looplab/fsm"
	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/opd-ai/rtpjitter/config"
	"github.com/opd-ai/rtpjitter/interfaces"
	"github.com/opd-ai/rtpjitter/limits"
)

// DeliveryErrorHandler is told about every packet the sink failed to accept.
type DeliveryErrorHandler func(packet *rtp.Packet, err error)

// Option overrides Buffer defaults.
type Option func(b *Buffer)

// WithTimeProvider sets the clock used for the starting point and the delivery wait.
func WithTimeProvider(tp TimeProvider) Option {
	return func(b *Buffer) {
		b.timeProvider = getTimeProvider(tp)
	}
}

// WithLogger sets the logger used for lifecycle and diagnostic output.
func WithLogger(logger *logrus.Logger) Option {
	return func(b *Buffer) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMetrics sets the prometheus collectors updated by the buffer.
func WithMetrics(m *Metrics) Option {
	return func(b *Buffer) {
		if m != nil {
			b.metrics = m
		}
	}
}

// WithStreamName labels log entries and default metrics with a stream name.
func WithStreamName(name string) Option {
	return func(b *Buffer) {
		b.stream = name
	}
}

// WithDeliveryErrorHandler registers a callback for per-packet sink failures.
func WithDeliveryErrorHandler(h DeliveryErrorHandler) Option {
	return func(b *Buffer) {
		b.onDeliveryError = h
	}
}

// Buffer is a jitter-absorbing reassembly buffer for one RTP stream.
//
// Packets handed to OnPacketReceived are grouped into frames by converted
// timestamp. Once the stream's frame spacing is learned, a delivery goroutine
// forwards the frames that fall inside a sliding window to the sink, one packet
// at a time in timestamp then sequence number order, advancing the window by
// the learned spacing every cycle.
//
// Buffer is safe for concurrent use. It implements interfaces.IPacketSink.
type Buffer struct {
	config          config.Config
	sink            interfaces.IPacketSink
	timeProvider    TimeProvider
	logger          *logrus.Logger
	metrics         *Metrics
	stream          string
	onDeliveryError DeliveryErrorHandler

	// Ingestion-side lifecycle; guarded by stateMu.
	stateMu       sync.Mutex
	fsm           *fsm.FSM
	lastTimestamp int64
	startingPoint time.Time

	// Learned on entering streaming, then advanced by the delivery task.
	// Writes happen under mu; reads outside mu are allowed.
	sendingDelay atomic.Int64
	downBound    atomic.Int64
	upBound      atomic.Int64

	mu     sync.Mutex
	frames *frameCollection

	streaming core.Fuse
	closed    core.Fuse
	closeOnce sync.Once
	wg        sync.WaitGroup

	stats counters
}

// New creates a buffer delivering to sink and starts its delivery goroutine,
// which stays parked until the stream's frame spacing has been learned.
func New(sink interfaces.IPacketSink, cfg config.Config, opts ...Option) (*Buffer, error) {
	if sink == nil {
		return nil, ErrNilSink
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	b := &Buffer{
		config:       cfg,
		sink:         sink,
		timeProvider: RealTimeProvider{},
		logger:       logrus.StandardLogger(),
		frames:       newFrameCollection(),
		streaming:    core.NewFuse(),
		closed:       core.NewFuse(),
	}
	for _, opt := range opts {
		opt(b)
	}

	b.log("New").WithFields(logrus.Fields{
		"debugging":     cfg.EnableDebugLogging,
		"frames_window": cfg.FramesDelayWindow,
	}).Info("Creating new jitter buffer")

	if b.metrics == nil {
		// Unregistered collectors; construction cannot fail without a registerer.
		b.metrics, _ = NewMetrics(nil, b.stream)
	}

	b.fsm = newStateMachine(b.log("stateMachine.enterStreaming"), b.streaming.Break)

	b.wg.Add(1)
	go b.run()

	b.log("New").WithFields(logrus.Fields{
		"frames_window": cfg.FramesDelayWindow,
	}).Info("Jitter buffer created successfully")

	return b, nil
}

// OnPacketReceived ingests one packet. It must be called once per arriving
// packet, in arrival order, and may run concurrently with delivery.
//
// Packets that arrive too late for the current window are dropped without an
// error. A nil packet or one whose payload exceeds limits.MaxPayloadSize is
// rejected with an error wrapping ErrMalformedPacket and leaves the buffer
// untouched. Header fields other than timestamp and sequence number are not
// inspected; wire-level checks such as the RTP version belong to the source.
func (b *Buffer) OnPacketReceived(packet *rtp.Packet) error {
	if b.closed.IsBroken() {
		return ErrBufferClosed
	}

	if err := validatePacket(packet); err != nil {
		b.stats.malformed.Inc()
		b.metrics.PacketsDiscarded.WithLabelValues(DiscardReasonMalformed).Inc()
		b.log("Buffer.OnPacketReceived").WithError(err).Warn("Rejected malformed packet")
		return err
	}

	b.stats.received.Inc()
	b.metrics.PacketsReceived.Inc()

	ts := ConvertTimestamp(packet.Timestamp)

	b.stateMu.Lock()
	err := b.advanceState(ts)
	streaming := b.fsm.Is(string(StateStreaming))
	b.stateMu.Unlock()
	if err != nil {
		// Transitions are driven from the only source states that allow them.
		b.log("Buffer.OnPacketReceived").WithError(err).Error("State transition failed")
	}

	b.mu.Lock()
	if streaming && ts < b.downBound.Load() {
		down := b.downBound.Load()
		b.mu.Unlock()

		b.stats.discarded.Inc()
		b.metrics.PacketsDiscarded.WithLabelValues(DiscardReasonLate).Inc()
		b.debug("Buffer.OnPacketReceived", "Discarded late packet", logrus.Fields{
			"timestamp":  ts,
			"sequence":   packet.SequenceNumber,
			"down_bound": down,
		})
		return nil
	}
	b.frames.put(packet)
	buffered := b.frames.len()
	b.mu.Unlock()

	b.metrics.BufferedFrames.Set(float64(buffered))
	return nil
}

// Close stops the delivery goroutine and rejects further packets. Frames still
// buffered are dropped. Close is idempotent.
func (b *Buffer) Close() error {
	b.closeOnce.Do(func() {
		b.log("Buffer.Close").Info("Closing jitter buffer")
		b.closed.Break()
		b.wg.Wait()

		b.mu.Lock()
		dropped := b.frames.len()
		b.frames = newFrameCollection()
		b.mu.Unlock()
		b.metrics.BufferedFrames.Set(0)

		b.log("Buffer.Close").WithField("dropped_frames", dropped).Info("Jitter buffer closed")
	})
	return nil
}

// State returns the current lifecycle state.
func (b *Buffer) State() State {
	return State(b.fsm.Current())
}

// Streaming returns a channel closed once the buffer enters StateStreaming.
func (b *Buffer) Streaming() <-chan struct{} {
	return b.streaming.Watch()
}

// SendingDelay returns the learned delivery period in milliseconds, zero before streaming.
func (b *Buffer) SendingDelay() int64 {
	return b.sendingDelay.Load()
}

// Window returns the current delivery window [down, up) in converted timestamp units.
func (b *Buffer) Window() (down, up int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.downBound.Load(), b.upBound.Load()
}

// StartingPoint returns the wall-clock instant corresponding to converted
// timestamp zero, captured from the first packet. Zero before any packet.
func (b *Buffer) StartingPoint() time.Time {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	return b.startingPoint
}

// Frame returns a copy of the packets buffered for converted timestamp ts, in
// ascending sequence number order.
func (b *Buffer) Frame(ts int64) ([]*rtp.Packet, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	frame, ok := b.frames.get(ts)
	if !ok {
		return nil, false
	}
	return frame.Packets(), true
}

// BufferedTimestamps returns the converted timestamps of all buffered frames in ascending order.
func (b *Buffer) BufferedTimestamps() []int64 {
	b.mu.Lock()
	snap := b.frames.snapshot()
	b.mu.Unlock()

	out := make([]int64, 0, len(snap))
	for _, f := range snap {
		out = append(out, f.timestamp)
	}
	return out
}

func validatePacket(packet *rtp.Packet) error {
	if packet == nil {
		return fmt.Errorf("%w: packet is nil", ErrMalformedPacket)
	}
	if err := limits.ValidatePayload(packet.Payload); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPacket, err)
	}
	return nil
}

func (b *Buffer) log(function string) *logrus.Entry {
	return b.logger.WithFields(logrus.Fields{
		"function": function,
		"stream":   b.stream,
	})
}

// debug emits a diagnostic only when debug logging is enabled in the config.
func (b *Buffer) debug(function, msg string, fields logrus.Fields) {
	if !b.config.EnableDebugLogging {
		return
	}
	b.log(function).WithFields(fields).Info(msg)
}

func millis(units int64) time.Duration {
	return time.Duration(units) * time.Millisecond
}
