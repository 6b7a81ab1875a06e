package decode

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
)

func init() {
	Register("file", NewFileSink)
}

// FileSink writes payloads to its target in arrival order, producing a
// raw elementary stream (for H.264, playable with standard tools). The
// target may be an io.Writer or a filesystem path; a path is created on
// construction and closed by Stop.
type FileSink struct {
	w        io.Writer
	c        io.Closer
	rendered OnRendered
	frames   atomic.Int64
}

// NewFileSink is the Factory for the "file" codec identifier.
func NewFileSink(_ Config, target Target, rendered OnRendered) (Decoder, error) {
	switch t := target.(type) {
	case io.Writer:
		return &FileSink{w: t, rendered: rendered}, nil
	case string:
		f, err := os.Create(t)
		if err != nil {
			return nil, fmt.Errorf("decode: create sink file: %w", err)
		}
		return &FileSink{w: f, c: f, rendered: rendered}, nil
	default:
		return nil, fmt.Errorf("decode: file sink target must be io.Writer or path, got %T", target)
	}
}

func (s *FileSink) Start() error { return nil }

func (s *FileSink) Feed(payload []byte, ptsMicros int64) error {
	if _, err := s.w.Write(payload); err != nil {
		return fmt.Errorf("decode: write payload: %w", err)
	}
	s.frames.Add(1)
	if s.rendered != nil {
		s.rendered(ptsMicros)
	}
	return nil
}

func (s *FileSink) Stop() error {
	if s.c != nil {
		return s.c.Close()
	}
	return nil
}

// Frames reports how many payloads have been written.
func (s *FileSink) Frames() int64 { return s.frames.Load() }
