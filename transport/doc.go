// Package transport moves RTP packets over UDP at the edges of a jitter buffer.
//
// UDPSource listens on a local address and turns each datagram into an
// *rtp.Packet, handing it to an interfaces.IPacketSink from a single receive
// goroutine so arrival order is preserved. Datagrams that fail size validation
// or RTP decoding are logged and counted, never fatal.
//
// UDPSink implements interfaces.IPacketSink by writing each packet as one
// datagram to a fixed peer.
//
//	sink, err := transport.NewUDPSink("127.0.0.1:6000")
//	buf, err := buffer.New(sink, config.Default())
//	src, err := transport.NewUDPSource(":5004", buf)
//	defer src.Close()
package transport
