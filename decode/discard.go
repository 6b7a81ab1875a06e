package decode

import "sync/atomic"

func init() {
	Register("discard", func(_ Config, _ Target, rendered OnRendered) (Decoder, error) {
		return &Discard{rendered: rendered}, nil
	})
}

// Discard counts frames and reports them rendered without touching the
// payload. It stands in for a real decoder in tools and tests.
type Discard struct {
	rendered OnRendered
	frames   atomic.Int64
	bytes    atomic.Int64
}

func (d *Discard) Start() error { return nil }

func (d *Discard) Feed(payload []byte, ptsMicros int64) error {
	d.frames.Add(1)
	d.bytes.Add(int64(len(payload)))
	if d.rendered != nil {
		d.rendered(ptsMicros)
	}
	return nil
}

func (d *Discard) Stop() error { return nil }

// Frames reports how many payloads have been fed.
func (d *Discard) Frames() int64 { return d.frames.Load() }

// Bytes reports the total payload bytes fed.
func (d *Discard) Bytes() int64 { return d.bytes.Load() }
