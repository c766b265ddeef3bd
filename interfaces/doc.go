// Package interfaces defines the packet hand-off contract shared by packet
// sources, jitter buffers and delivery sinks.
//
// A source calls OnPacketReceived once per arriving packet, in arrival order.
// A jitter buffer is itself an IPacketSink, so buffers and sinks can be chained.
package interfaces
