package csmr

import (
	"bytes"
	"testing"
)

func FuzzReadFrame(f *testing.F) {
	// Seed: valid video frame with a small payload
	f.Add(frameBytes(TypeVideo, 1_000_000_000, []byte{0x01, 0x02, 0x03, 0x04}))
	// Seed: end-of-stream frame with empty payload
	f.Add(frameBytes(TypeEndOfStream, 0, nil))
	// Seed: reserved type
	f.Add(frameBytes(FrameType(0x7F), -1, []byte{0xFF}))
	// Seed: bad magic
	f.Add([]byte("XXXX\x01\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00"))

	f.Fuzz(func(t *testing.T, data []byte) {
		rc := NewReceiver(bytes.NewReader(data))
		fr, err := rc.ReadFrame() // must not panic
		if err != nil {
			return
		}
		if len(fr.Payload) > MaxPayloadSize {
			t.Fatalf("decoded payload of %d bytes exceeds limit", len(fr.Payload))
		}
		// A decoded frame must re-encode to exactly the bytes consumed.
		enc, err := EncodeFrame(*fr)
		if err != nil {
			t.Fatalf("re-encode: %v", err)
		}
		if !bytes.Equal(enc, data[:len(enc)]) {
			t.Fatalf("re-encode mismatch:\n got % X\nwant % X", enc, data[:len(enc)])
		}
		rc.ReadFrame() // the remainder must parse or fail cleanly, not panic
	})
}
