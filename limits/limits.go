package limits

import (
	"errors"
	"fmt"
)

const (
	// MinRTPHeaderSize is the size of a fixed RTP header without CSRCs or extensions.
	MinRTPHeaderSize = 12

	// MaxDatagramSize is the largest datagram read from a UDP socket.
	MaxDatagramSize = 65535

	// MaxPayloadSize is the largest payload that fits in a datagram after the fixed header.
	MaxPayloadSize = MaxDatagramSize - MinRTPHeaderSize
)

var (
	// ErrDatagramEmpty indicates an empty datagram was provided
	ErrDatagramEmpty = errors.New("empty datagram")

	// ErrDatagramTooShort indicates a datagram shorter than a fixed RTP header
	ErrDatagramTooShort = errors.New("datagram too short for RTP header")

	// ErrDatagramTooLarge indicates datagram exceeds maximum size
	ErrDatagramTooLarge = errors.New("datagram too large")

	// ErrPayloadTooLarge indicates a packet payload exceeds maximum size
	ErrPayloadTooLarge = errors.New("payload too large")
)

// ValidateDatagram validates a raw datagram before RTP parsing.
// Returns an error with context including the actual and allowed sizes.
func ValidateDatagram(data []byte) error {
	if len(data) == 0 {
		return ErrDatagramEmpty
	}
	if len(data) < MinRTPHeaderSize {
		return fmt.Errorf("%w: size %d below minimum %d", ErrDatagramTooShort, len(data), MinRTPHeaderSize)
	}
	if len(data) > MaxDatagramSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrDatagramTooLarge, len(data), MaxDatagramSize)
	}
	return nil
}

// ValidatePayload validates a packet payload against MaxPayloadSize.
// Empty payloads are allowed; the buffer treats payloads as opaque.
func ValidatePayload(payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrPayloadTooLarge, len(payload), MaxPayloadSize)
	}
	return nil
}
