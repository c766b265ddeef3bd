// Command rtpjitter relays an RTP stream over UDP through a jitter buffer.
//
// Packets received on --listen are grouped into frames by timestamp. Once the
// frame spacing has been learned from the stream, frames are forwarded to
// --forward in timestamp and sequence number order, one frame interval at a
// time, after a latency of --frames-window milliseconds.
//
// Usage:
//
//	rtpjitter --listen :5004 --forward 127.0.0.1:6004
//	rtpjitter --listen :5004 --forward 10.0.0.2:6004 --frames-window 250 --metrics-addr :9100
//	rtpjitter --config buffer.yaml --forward 127.0.0.1:6004 --log-level debug --log-file relay.log
//
// The buffer config file is YAML:
//
//	debugging: false
//	frames_window: 100
//
// RTPJITTER_DEBUGGING and RTPJITTER_FRAMES_WINDOW override the file; the
// --debug and --frames-window flags override both.
//
// SIGINT or SIGTERM stops the relay. Frames still buffered at that point are
// dropped.
package main
