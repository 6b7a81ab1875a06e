// Package decode defines the video decoder collaborator boundary: the
// Decoder interface the stream session feeds, the factory registry that
// maps codec identifiers to implementations, and built-in decoders used
// by tools and tests. Real hardware decoding lives outside this module;
// platform integrations implement Decoder and register a Factory.
package decode

// Target is the opaque render surface handle supplied by the caller and
// passed through to the decoder unchanged. Its concrete type is a
// contract between the caller and the decoder implementation.
type Target any

// OnRendered is invoked by a decoder each time a frame has been
// rendered. Decoders may call it from any goroutine; it is advisory and
// must not block.
type OnRendered func(ptsMicros int64)

// Config carries the session's negotiated video parameters, passed to
// the decoder unchanged.
type Config struct {
	Width  int
	Height int
	FPS    int
	Codec  string
}

// Decoder consumes video payloads in wire order and renders them to a
// target. Feed is always called from one goroutine, with Start called
// once before the first Feed. Stop is called exactly once, but a forced
// session stop may issue it from another goroutine while a Feed is
// still in flight; implementations must tolerate that race, and an
// error from the interrupted Feed is reported as a stop rather than a
// failure.
type Decoder interface {
	Start() error
	Feed(payload []byte, ptsMicros int64) error
	Stop() error
}

// Factory builds a Decoder bound to a render target. rendered may be
// nil when the caller has no use for render notifications.
type Factory func(cfg Config, target Target, rendered OnRendered) (Decoder, error)
