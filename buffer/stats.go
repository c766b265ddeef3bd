package buffer

import "go.uber.org/atomic"

// counters are updated from both the ingestion path and the delivery task.
type counters struct {
	received        atomic.Uint64
	discarded       atomic.Uint64
	malformed       atomic.Uint64
	delivered       atomic.Uint64
	sinkErrors      atomic.Uint64
	framesDelivered atomic.Uint64
	framesEvicted   atomic.Uint64
	packetsEvicted  atomic.Uint64
}

// Stats is a point-in-time view of a buffer.
type Stats struct {
	State State

	SendingDelay int64
	DownBound    int64
	UpBound      int64

	BufferedFrames int

	PacketsReceived  uint64
	PacketsDiscarded uint64 // late for the window
	PacketsMalformed uint64
	PacketsDelivered uint64
	SinkErrors       uint64
	FramesDelivered  uint64
	FramesEvicted    uint64
	PacketsEvicted   uint64 // dropped with evicted frames
}

// Stats returns the buffer's counters and window.
func (b *Buffer) Stats() Stats {
	b.mu.Lock()
	buffered := b.frames.len()
	down, up := b.downBound.Load(), b.upBound.Load()
	b.mu.Unlock()

	return Stats{
		State:            b.State(),
		SendingDelay:     b.sendingDelay.Load(),
		DownBound:        down,
		UpBound:          up,
		BufferedFrames:   buffered,
		PacketsReceived:  b.stats.received.Load(),
		PacketsDiscarded: b.stats.discarded.Load(),
		PacketsMalformed: b.stats.malformed.Load(),
		PacketsDelivered: b.stats.delivered.Load(),
		SinkErrors:       b.stats.sinkErrors.Load(),
		FramesDelivered:  b.stats.framesDelivered.Load(),
		FramesEvicted:    b.stats.framesEvicted.Load(),
		PacketsEvicted:   b.stats.packetsEvicted.Load(),
	}
}
