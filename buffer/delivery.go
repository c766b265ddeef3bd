package buffer

import (
	"fmt"

	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
)

// run is the delivery task. It waits for the streaming gate, then delivers one
// window per cycle until the buffer is closed.
func (b *Buffer) run() {
	defer b.wg.Done()

	select {
	case <-b.streaming.Watch():
	case <-b.closed.Watch():
		return
	}

	b.log("Buffer.run").WithFields(logrus.Fields{
		"sending_delay": b.sendingDelay.Load(),
	}).Info("Delivery started")

	for {
		b.deliverCycle()

		select {
		case <-b.timeProvider.After(millis(b.sendingDelay.Load())):
		case <-b.closed.Watch():
			b.log("Buffer.run").Debug("Delivery stopped")
			return
		}

		b.advanceWindow()
	}
}

// deliverCycle makes one pass over a snapshot of the frame collection.
// Frames inside [down, up) are delivered then removed, frames below down are
// evicted, and later frames are left for a future cycle.
//
// The snapshot only decides which frames to visit. Each frame is taken out of
// the collection right before it is handled, so packets admitted to it since
// the snapshot go out with it. A packet admitted to a timestamp after its frame
// was taken starts a new frame, which a later cycle evicts.
func (b *Buffer) deliverCycle() {
	b.mu.Lock()
	snap := b.frames.snapshot()
	down, up := b.downBound.Load(), b.upBound.Load()
	b.mu.Unlock()

	b.debug("Buffer.deliverCycle", "Copied frames", logrus.Fields{
		"frames":     len(snap),
		"down_bound": down,
		"up_bound":   up,
	})

	for _, frame := range snap {
		switch {
		case frame.timestamp >= down && frame.timestamp < up:
			packets, ok := b.takeFrame(frame.timestamp)
			if !ok {
				continue
			}
			for _, packet := range packets {
				b.deliver(packet)
			}
			b.stats.framesDelivered.Inc()
			b.metrics.FramesDelivered.Inc()

		case frame.timestamp < down:
			packets, ok := b.takeFrame(frame.timestamp)
			if !ok {
				continue
			}
			b.stats.framesEvicted.Inc()
			b.stats.packetsEvicted.Add(uint64(len(packets)))
			b.metrics.FramesEvicted.Inc()
			b.metrics.PacketsEvicted.Add(float64(len(packets)))
			b.debug("Buffer.deliverCycle", "Evicted stale frame", logrus.Fields{
				"timestamp":  frame.timestamp,
				"packets":    len(packets),
				"down_bound": down,
			})
		}
	}
}

// deliver hands one packet to the sink. Sink failures, including panics, are
// reported and counted but never stop the cycle.
func (b *Buffer) deliver(packet *rtp.Packet) {
	err := b.callSink(packet)
	if err == nil {
		b.stats.delivered.Inc()
		b.metrics.PacketsDelivered.Inc()
		return
	}

	b.stats.sinkErrors.Inc()
	b.metrics.SinkErrors.Inc()
	b.log("Buffer.deliver").WithFields(logrus.Fields{
		"timestamp": ConvertTimestamp(packet.Timestamp),
		"sequence":  packet.SequenceNumber,
		"error":     err.Error(),
	}).Warn("Delivery sink rejected packet")

	if b.onDeliveryError != nil {
		b.onDeliveryError(packet, err)
	}
}

func (b *Buffer) callSink(packet *rtp.Packet) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrSinkPanic, r)
		}
	}()
	return b.sink.OnPacketReceived(packet)
}

// takeFrame removes the frame for ts and returns its packets in sequence order.
func (b *Buffer) takeFrame(ts int64) ([]*rtp.Packet, bool) {
	b.mu.Lock()
	frame, ok := b.frames.get(ts)
	if ok {
		b.frames.remove(ts)
	}
	buffered := b.frames.len()
	b.mu.Unlock()

	b.metrics.BufferedFrames.Set(float64(buffered))
	if !ok {
		return nil, false
	}
	return frame.Packets(), true
}

// advanceWindow slides the window forward by one sending delay.
func (b *Buffer) advanceWindow() {
	b.mu.Lock()
	defer b.mu.Unlock()

	up := b.upBound.Load()
	b.downBound.Store(up)
	b.upBound.Store(up + b.sendingDelay.Load())
}
