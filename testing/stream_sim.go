package testing

import (
	"math/rand"

	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/rtpjitter/interfaces"
)

// StreamConfig describes a simulated RTP stream and how its arrival is perturbed.
type StreamConfig struct {
	Frames          int
	PacketsPerFrame int

	// FrameSpacing is the RTP timestamp increment between frames in raw 90 kHz units.
	FrameSpacing   uint32
	StartTimestamp uint32
	StartSequence  uint16
	SSRC           uint32
	PayloadType    uint8

	// ReorderDepth bounds how far forward a packet may be swapped in arrival order.
	ReorderDepth int
	// DuplicateRate and DropRate are probabilities in [0, 1] applied per packet.
	DuplicateRate float64
	DropRate      float64

	Seed int64
}

// StreamSimulator generates a deterministic RTP stream and its perturbed arrival order.
type StreamSimulator struct {
	config StreamConfig
	sent   []*rtp.Packet
}

// NewStreamSimulator builds the sent-order packet list for cfg.
func NewStreamSimulator(cfg StreamConfig) *StreamSimulator {
	logrus.Warn("SIMULATION FUNCTION - NOT A REAL OPERATION")
	logrus.WithFields(logrus.Fields{
		"function":          "NewStreamSimulator",
		"frames":            cfg.Frames,
		"packets_per_frame": cfg.PacketsPerFrame,
		"frame_spacing":     cfg.FrameSpacing,
		"reorder_depth":     cfg.ReorderDepth,
		"seed":              cfg.Seed,
	}).Info("Creating simulated RTP stream")

	if cfg.PacketsPerFrame <= 0 {
		cfg.PacketsPerFrame = 1
	}
	if cfg.PayloadType == 0 {
		cfg.PayloadType = 96
	}

	s := &StreamSimulator{config: cfg}

	seq := cfg.StartSequence
	for f := 0; f < cfg.Frames; f++ {
		ts := cfg.StartTimestamp + uint32(f)*cfg.FrameSpacing
		for p := 0; p < cfg.PacketsPerFrame; p++ {
			s.sent = append(s.sent, &rtp.Packet{
				Header: rtp.Header{
					Version:        2,
					Marker:         p == cfg.PacketsPerFrame-1,
					PayloadType:    cfg.PayloadType,
					SequenceNumber: seq,
					Timestamp:      ts,
					SSRC:           cfg.SSRC,
				},
				Payload: []byte{byte(f >> 8), byte(f), byte(p)},
			})
			seq++
		}
	}

	return s
}

// Sent returns the packets in the order the sender produced them.
func (s *StreamSimulator) Sent() []*rtp.Packet {
	out := make([]*rtp.Packet, len(s.sent))
	copy(out, s.sent)
	return out
}

// Arrivals returns the packets in perturbed arrival order. The result depends
// only on the configuration, including Seed.
func (s *StreamSimulator) Arrivals() []*rtp.Packet {
	rng := rand.New(rand.NewSource(s.config.Seed))

	out := make([]*rtp.Packet, 0, len(s.sent))
	for _, p := range s.sent {
		if s.config.DropRate > 0 && rng.Float64() < s.config.DropRate {
			continue
		}
		out = append(out, p)
		if s.config.DuplicateRate > 0 && rng.Float64() < s.config.DuplicateRate {
			out = append(out, p)
		}
	}

	if s.config.ReorderDepth > 0 {
		for i := range out {
			j := i + rng.Intn(s.config.ReorderDepth+1)
			if j >= len(out) {
				j = len(out) - 1
			}
			out[i], out[j] = out[j], out[i]
		}
	}

	return out
}

// Feed hands every arrival to sink in arrival order and returns the first error
// reported. Delivery continues after an error.
func (s *StreamSimulator) Feed(sink interfaces.IPacketSink) error {
	var firstErr error
	arrivals := s.Arrivals()
	for _, p := range arrivals {
		if err := sink.OnPacketReceived(p); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "StreamSimulator.Feed",
		"packets":  len(arrivals),
	}).Debug("Simulated stream fed")

	return firstErr
}
