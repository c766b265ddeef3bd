package interfaces

import "github.com/pion/rtp"

// IPacketSink receives RTP packets one at a time.
type IPacketSink interface {
	// OnPacketReceived consumes a single packet. A returned error affects only
	// this packet; callers keep delivering subsequent packets.
	OnPacketReceived(packet *rtp.Packet) error
}

// PacketSinkFunc adapts a plain function to IPacketSink.
type PacketSinkFunc func(packet *rtp.Packet) error

// OnPacketReceived calls f(packet).
func (f PacketSinkFunc) OnPacketReceived(packet *rtp.Packet) error {
	return f(packet)
}
