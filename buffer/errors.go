package buffer

import "errors"

// Sentinel errors for buffer operations.
// These errors enable reliable error classification using errors.Is().

// Construction errors.
var (
	// ErrNilSink indicates the buffer was created without a delivery sink.
	ErrNilSink = errors.New("delivery sink cannot be nil")

	// ErrInvalidConfig indicates the supplied configuration failed validation.
	ErrInvalidConfig = errors.New("invalid buffer configuration")
)

// Ingestion errors.
var (
	// ErrMalformedPacket indicates a packet that cannot be buffered safely.
	ErrMalformedPacket = errors.New("malformed packet")

	// ErrBufferClosed indicates the buffer no longer accepts packets.
	ErrBufferClosed = errors.New("buffer is closed")
)

// Delivery errors.
var (
	// ErrSinkPanic wraps a panic raised by the delivery sink.
	ErrSinkPanic = errors.New("delivery sink panicked")
)
