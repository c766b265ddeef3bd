// Package limits provides centralized size limits for RTP datagrams and payloads.
// This ensures consistent validation between the UDP transport and the jitter buffer.
package limits
