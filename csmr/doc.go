// Package csmr implements the wire-protocol codec for CSMR, a framed
// video-streaming protocol carried over plain TCP: frame encoding and
// decoding, the one-frame-per-call [Receiver], and typed error
// definitions.
//
// This package contains no socket or lifecycle logic; those higher-level
// concerns live in [github.com/zsiec/csmr/session].
package csmr
