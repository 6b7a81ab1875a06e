package csmr

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Receiver decodes CSMR frames from a byte stream, one frame per call.
// It performs no read-ahead: each call consumes exactly the bytes of the
// frame it returns, so the underlying reader may be handed over between
// calls. A Receiver is not safe for concurrent use.
type Receiver struct {
	r   io.Reader
	hdr [HeaderSize]byte
}

// NewReceiver wraps r for the lifetime of one connection.
func NewReceiver(r io.Reader) *Receiver {
	return &Receiver{r: r}
}

// ReadFrame reads the next frame. It returns io.EOF only when the stream
// ends with zero bytes available at a frame boundary; an end or failure
// anywhere inside a frame is reported as ErrTruncated. A read deadline
// expiring before the first header byte arrives is returned unchanged, so
// callers can tell a quiet peer apart from a broken one.
func (rc *Receiver) ReadFrame() (*Frame, error) {
	// The first header byte is read on its own: io.ReadFull over the
	// whole header would report a deadline expiring at the boundary and
	// one expiring mid-header as the same error.
	if _, err := io.ReadFull(rc.r, rc.hdr[:1]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	if n, err := io.ReadFull(rc.r, rc.hdr[1:]); err != nil {
		return nil, fmt.Errorf("%w: header after %d of %d bytes: %v", ErrTruncated, 1+n, HeaderSize, err)
	}

	if string(rc.hdr[0:4]) != Magic {
		return nil, fmt.Errorf("%w: got % X", ErrBadMagic, rc.hdr[0:4])
	}

	length := binary.BigEndian.Uint32(rc.hdr[13:17])
	if length > MaxPayloadSize {
		return nil, fmt.Errorf("%w: declared %d bytes (limit %d)", ErrPayloadTooLarge, length, MaxPayloadSize)
	}

	f := &Frame{
		Type:      FrameType(rc.hdr[4]),
		Timestamp: int64(binary.BigEndian.Uint64(rc.hdr[5:13])),
	}
	if length > 0 {
		f.Payload = make([]byte, length)
		if n, err := io.ReadFull(rc.r, f.Payload); err != nil {
			return nil, fmt.Errorf("%w: payload after %d of %d bytes: %v", ErrTruncated, n, length, err)
		}
	}
	return f, nil
}
