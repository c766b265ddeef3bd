// Package buffer implements a jitter-absorbing reassembly buffer for a single
// RTP media stream.
//
// Packets from an unreliable transport arrive out of order and at irregular
// intervals. The buffer regroups them into frames keyed by timestamp, orders
// each frame by sequence number, and releases frames to a downstream sink at a
// steady pace learned from the stream itself.
//
// # Timeline
//
// RTP timestamps are converted by integer division by 90, turning the 90 kHz
// media clock into milliseconds. All keys, comparisons and bounds use the
// converted value:
//
//	ts := buffer.ConvertTimestamp(packet.Timestamp)
//
// # Lifecycle
//
// A Buffer moves through three states:
//
//   - StateIdle: nothing received. The first packet's timestamp is remembered.
//   - StateConfiguring: waits for the first packet with a different timestamp.
//     The absolute difference becomes the sending delay, which is both the
//     delivery period and the window width.
//   - StateStreaming: terminal. The initial window is
//     [first - FramesDelayWindow, first - FramesDelayWindow + delay).
//
// The sending delay is learned from the first timestamp change only. If packets
// are reordered while configuring, the learned spacing can be wrong; this is a
// known limitation and is not re-estimated later.
//
// # Delivery
//
// A single goroutine, released when the buffer enters StateStreaming, runs one
// cycle per sending delay:
//
//  1. copy the frame collection under the lock
//  2. deliver frames inside the window, in timestamp then sequence order, and
//     remove them; remove frames below the window without delivering them
//  3. wait one sending delay, then slide the window forward by one delay
//
// The sink is never called with the lock held. A slow sink delays the rest of
// its cycle; there is no backpressure.
//
// # Usage
//
//	buf, err := buffer.New(sink, config.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer buf.Close()
//
//	// from the packet source, once per packet, in arrival order
//	if err := buf.OnPacketReceived(packet); err != nil {
//	    log.Printf("rejected packet: %v", err)
//	}
//
// # Deterministic Testing
//
// The delivery wait goes through a TimeProvider, so tests can release cycles by
// hand instead of sleeping:
//
//	buf, _ := buffer.New(sink, cfg, buffer.WithTimeProvider(clock))
//
// # Thread Safety
//
// OnPacketReceived may be called from several goroutines and runs concurrently
// with delivery. The frame collection is the only shared structure and is
// guarded by a mutex held only for short copy, insert and remove steps.
package buffer
