package buffer

import (
	"sort"

	"github.com/pion/rtp"
)

// ClockDivisor reduces the 90 kHz media clock to the buffer's time unit (milliseconds).
const ClockDivisor = 90

// ConvertTimestamp converts a raw RTP timestamp into the buffer's internal time unit.
// Every comparison, key and bound inside the buffer uses the converted value.
func ConvertTimestamp(raw uint32) int64 {
	return int64(raw / ClockDivisor)
}

// Frame groups the packets that share one converted timestamp.
//
// A Frame is never empty: it is created with its first packet. Frames carry no
// synchronization of their own; the Buffer guards them with its collection lock.
type Frame struct {
	timestamp int64
	packets   map[uint16]*rtp.Packet // sequence number -> packet
}

// NewFrame creates a frame from the first packet seen for its timestamp.
func NewFrame(packet *rtp.Packet) *Frame {
	f := &Frame{
		timestamp: ConvertTimestamp(packet.Timestamp),
		packets:   make(map[uint16]*rtp.Packet, 1),
	}
	f.packets[packet.SequenceNumber] = packet
	return f
}

// Add stores a packet under its sequence number, replacing any packet already
// stored with that number. Duplicates and retransmissions are not told apart.
func (f *Frame) Add(packet *rtp.Packet) {
	f.packets[packet.SequenceNumber] = packet
}

// Timestamp returns the converted timestamp of the frame.
func (f *Frame) Timestamp() int64 {
	return f.timestamp
}

// Len returns the number of distinct sequence numbers held by the frame.
func (f *Frame) Len() int {
	return len(f.packets)
}

// Packets returns the frame's packets in ascending sequence number order.
func (f *Frame) Packets() []*rtp.Packet {
	seqs := make([]uint16, 0, len(f.packets))
	for seq := range f.packets {
		seqs = append(seqs, seq)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })

	out := make([]*rtp.Packet, 0, len(seqs))
	for _, seq := range seqs {
		out = append(out, f.packets[seq])
	}
	return out
}

// frameSnapshot is a copy of a frame taken under the collection lock, safe to
// iterate after the lock is released.
type frameSnapshot struct {
	timestamp int64
	packets   []*rtp.Packet
}

// frameCollection maps converted timestamps to frames. It is not safe for
// concurrent use; callers hold Buffer.mu.
type frameCollection struct {
	frames map[int64]*Frame
}

func newFrameCollection() *frameCollection {
	return &frameCollection{frames: make(map[int64]*Frame)}
}

// put locates or creates the frame for the packet's timestamp and adds the packet to it.
// It reports whether a new frame was created.
func (c *frameCollection) put(packet *rtp.Packet) bool {
	ts := ConvertTimestamp(packet.Timestamp)
	if frame, ok := c.frames[ts]; ok {
		frame.Add(packet)
		return false
	}
	c.frames[ts] = NewFrame(packet)
	return true
}

func (c *frameCollection) get(ts int64) (*Frame, bool) {
	f, ok := c.frames[ts]
	return f, ok
}

func (c *frameCollection) remove(ts int64) {
	delete(c.frames, ts)
}

func (c *frameCollection) len() int {
	return len(c.frames)
}

// snapshot copies every frame in ascending timestamp order. Packet slices are
// copied too, so packets added later by the ingestion path are not observed.
func (c *frameCollection) snapshot() []frameSnapshot {
	keys := make([]int64, 0, len(c.frames))
	for ts := range c.frames {
		keys = append(keys, ts)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := make([]frameSnapshot, 0, len(keys))
	for _, ts := range keys {
		out = append(out, frameSnapshot{
			timestamp: ts,
			packets:   c.frames[ts].Packets(),
		})
	}
	return out
}
