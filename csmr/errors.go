package csmr

import "errors"

// Sentinel errors for frame decoding. These enable callers to
// programmatically distinguish failure modes using errors.Is.
var (
	// ErrBadMagic indicates the stream does not start a frame with the
	// protocol magic. The stream position is unrecoverable afterwards.
	ErrBadMagic = errors.New("csmr: bad magic")

	// ErrPayloadTooLarge indicates a declared or supplied payload length
	// above MaxPayloadSize. On decode it is reported before any payload
	// byte is read.
	ErrPayloadTooLarge = errors.New("csmr: payload too large")

	// ErrTruncated indicates the stream ended or failed partway through
	// a frame. A clean end of stream at a frame boundary is reported as
	// io.EOF instead.
	ErrTruncated = errors.New("csmr: truncated frame")
)
