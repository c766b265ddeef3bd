package buffer

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "rtpjitter"

// Discard reasons used as the "reason" label of packets_discarded_total.
const (
	DiscardReasonLate      = "late"
	DiscardReasonMalformed = "malformed"
)

// Metrics holds the prometheus collectors updated by a Buffer.
//
// Collectors are always usable; they are only exported when a Registerer
// was supplied to NewMetrics.
type Metrics struct {
	PacketsReceived  prometheus.Counter
	PacketsDiscarded *prometheus.CounterVec
	PacketsDelivered prometheus.Counter
	FramesDelivered  prometheus.Counter
	FramesEvicted    prometheus.Counter
	PacketsEvicted   prometheus.Counter
	SinkErrors       prometheus.Counter
	BufferedFrames   prometheus.Gauge
	SendingDelay     prometheus.Gauge
}

// NewMetrics creates the buffer collectors labelled with the stream name and
// registers them with reg when reg is non-nil.
func NewMetrics(reg prometheus.Registerer, stream string) (*Metrics, error) {
	labels := prometheus.Labels{"stream": stream}

	m := &Metrics{
		PacketsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "packets_received_total",
			Help:        "Packets handed to the buffer by the packet source.",
			ConstLabels: labels,
		}),
		PacketsDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "packets_discarded_total",
			Help:        "Packets rejected at ingestion, by reason.",
			ConstLabels: labels,
		}, []string{"reason"}),
		PacketsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "packets_delivered_total",
			Help:        "Packets forwarded to the delivery sink.",
			ConstLabels: labels,
		}),
		FramesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "frames_delivered_total",
			Help:        "Frames delivered inside the delivery window.",
			ConstLabels: labels,
		}),
		FramesEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "frames_evicted_total",
			Help:        "Frames dropped for falling below the delivery window.",
			ConstLabels: labels,
		}),
		PacketsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "packets_evicted_total",
			Help:        "Packets dropped along with evicted frames.",
			ConstLabels: labels,
		}),
		SinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "sink_errors_total",
			Help:        "Per-packet failures reported by the delivery sink.",
			ConstLabels: labels,
		}),
		BufferedFrames: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Name:        "buffered_frames",
			Help:        "Frames currently held in the buffer.",
			ConstLabels: labels,
		}),
		SendingDelay: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Name:        "sending_delay_ms",
			Help:        "Learned delivery cycle period and window width.",
			ConstLabels: labels,
		}),
	}

	if reg == nil {
		return m, nil
	}

	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				return nil, fmt.Errorf("metrics for stream %q already registered: %w", stream, err)
			}
			return nil, fmt.Errorf("failed to register buffer metrics: %w", err)
		}
	}

	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.PacketsReceived,
		m.PacketsDiscarded,
		m.PacketsDelivered,
		m.FramesDelivered,
		m.FramesEvicted,
		m.PacketsEvicted,
		m.SinkErrors,
		m.BufferedFrames,
		m.SendingDelay,
	}
}
