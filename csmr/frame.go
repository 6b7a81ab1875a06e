package csmr

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Magic is the 4-byte ASCII literal that opens every CSMR frame.
const Magic = "CSMR"

const (
	// HeaderSize is the fixed frame header length:
	// magic (4) + type (1) + timestamp (8) + payload length (4).
	HeaderSize = 17

	// MaxPayloadSize bounds a single frame's payload.
	MaxPayloadSize = 8 << 20
)

// Frame type IDs. Values outside this set are reserved and must be
// skipped by receivers once structurally validated.
const (
	TypeVideo       FrameType = 0x01
	TypeEndOfStream FrameType = 0x02
)

// FrameType is the 1-byte frame type tag.
type FrameType uint8

func (t FrameType) String() string {
	switch t {
	case TypeVideo:
		return "video"
	case TypeEndOfStream:
		return "end-of-stream"
	default:
		return fmt.Sprintf("reserved(0x%02X)", uint8(t))
	}
}

// Frame is one CSMR protocol unit. Timestamp is sender-monotonic
// nanoseconds with no epoch meaning. Payload is opaque to the codec.
type Frame struct {
	Type      FrameType
	Timestamp int64
	Payload   []byte
}

// EncodeFrame serializes f into a freshly allocated buffer.
func EncodeFrame(f Frame) ([]byte, error) {
	if len(f.Payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrPayloadTooLarge, len(f.Payload), MaxPayloadSize)
	}
	buf := make([]byte, HeaderSize+len(f.Payload))
	copy(buf[0:4], Magic)
	buf[4] = byte(f.Type)
	binary.BigEndian.PutUint64(buf[5:13], uint64(f.Timestamp))
	binary.BigEndian.PutUint32(buf[13:17], uint32(len(f.Payload)))
	copy(buf[HeaderSize:], f.Payload)
	return buf, nil
}

// WriteFrame encodes f and emits it as a single Write call so a frame is
// never interleaved with another writer's bytes.
func WriteFrame(w io.Writer, f Frame) error {
	buf, err := EncodeFrame(f)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}
