// Package session implements the CSMR stream session: one TCP listener,
// one accepted peer, one blocking receive loop feeding a decoder in wire
// order, with the lifecycle published through an observable state cell.
//
// A session runs exactly once. Prepare binds the listener and publishes
// the negotiated port; AcceptAndStream drives the connection on the
// calling goroutine until a terminal state; Stop forces termination from
// anywhere. A failed or stopped session is not reusable; retry means
// constructing a new one.
package session

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zsiec/csmr/csmr"
	"github.com/zsiec/csmr/decode"
	"github.com/zsiec/csmr/metrics"
)

// Defaults for the Config tunables.
const (
	DefaultAcceptTimeout = 30 * time.Second
	DefaultReadTimeout   = 10 * time.Second
	DefaultIdleBudget    = 3
)

// Stop reasons reported in the Stopped state.
const (
	ReasonEndOfStream   = "end of stream"
	ReasonStopRequested = "stop requested"
)

// Sentinel errors surfaced through the Error state or returned by
// Prepare.
var (
	ErrAlreadyPrepared = errors.New("session: already prepared")
	ErrNotPrepared     = errors.New("session: not prepared")
	ErrStopped         = errors.New("session: stopped")
	ErrAcceptTimeout   = errors.New("session: no peer before accept timeout")
	ErrIdleTimeout     = errors.New("session: peer idle budget exhausted")
)

// Config carries the session's immutable parameters. Width, Height,
// FPS, and Codec are handed to the decoder unchanged. Zero tunables
// take the package defaults.
type Config struct {
	Width  int
	Height int
	FPS    int
	Codec  string

	// AcceptTimeout bounds the wait for a peer to connect.
	AcceptTimeout time.Duration
	// ReadTimeout bounds each wait for frame bytes on the peer socket.
	ReadTimeout time.Duration
	// IdleBudget is how many consecutive idle reads (boundary timeout
	// or clean EOF) are tolerated before the session fails the
	// connection as dead.
	IdleBudget int
}

func (c Config) withDefaults() Config {
	if c.AcceptTimeout <= 0 {
		c.AcceptTimeout = DefaultAcceptTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.IdleBudget <= 0 {
		c.IdleBudget = DefaultIdleBudget
	}
	return c
}

// Session orchestrates one CSMR streaming lifecycle. All socket work
// happens on the goroutine that calls AcceptAndStream; Stop may be
// called from any goroutine and unblocks the worker by closing the
// sockets out from under it.
type Session struct {
	cfg     Config
	factory decode.Factory
	log     *slog.Logger
	cell    *StateCell
	met     *metrics.Set

	prepared atomic.Bool
	// stopped is the single-shot teardown guard. Set by the first
	// teardown, checked by the worker to reclassify forced-close errors
	// as "stopped by request" rather than genuine failures.
	stopped atomic.Bool

	// mu guards the resource handover between the worker and a
	// concurrent Stop. Resources adopted under mu are released by
	// teardown; a resource refused adoption is released by its creator.
	mu   sync.Mutex
	ln   *net.TCPListener
	conn net.Conn
	rcv  *csmr.Receiver
	dec  decode.Decoder

	preparedAt     atomic.Int64
	framesReceived atomic.Int64
	framesRendered atomic.Int64
	framesDropped  atomic.Int64
	unknownFrames  atomic.Int64
	bytesReceived  atomic.Int64
	idleReads      atomic.Int64
}

// New creates an idle session. factory builds the decoder when a peer
// connects; m may be nil to skip metrics.
func New(cfg Config, factory decode.Factory, m *metrics.Set) *Session {
	return &Session{
		cfg:     cfg.withDefaults(),
		factory: factory,
		log:     slog.With("component", "session"),
		cell:    NewStateCell(),
		met:     m,
	}
}

// State returns the currently published lifecycle state.
func (s *Session) State() State { return s.cell.Load() }

// Subscribe watches lifecycle updates, latest value wins. The channel
// is primed with the current state.
func (s *Session) Subscribe() (<-chan State, func()) { return s.cell.Subscribe() }

// Prepare binds the listening socket on an OS-assigned ephemeral port
// and publishes WaitingForConnection with that port. It is callable
// exactly once and does not wait for a peer.
func (s *Session) Prepare() error {
	if s.stopped.Load() {
		return ErrStopped
	}
	if !s.prepared.CompareAndSwap(false, true) {
		return ErrAlreadyPrepared
	}

	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		err = fmt.Errorf("session: bind listener: %w", err)
		s.finish(State{Phase: PhaseError, Cause: err})
		return err
	}
	tln := ln.(*net.TCPListener)
	if !s.adoptListener(tln) {
		tln.Close()
		return ErrStopped
	}

	port := tln.Addr().(*net.TCPAddr).Port
	s.preparedAt.Store(time.Now().UnixMilli())
	s.publish(State{Phase: PhaseWaiting, Port: port})
	s.log.Info("listening", "port", port, "accept_timeout", s.cfg.AcceptTimeout)
	return nil
}

// AcceptAndStream accepts one peer and drives the receive loop until
// the session reaches a terminal state. It blocks for the session's
// whole streaming life, so run it on a dedicated goroutine, never on a
// latency-sensitive one. Every outcome, including failure, is published
// through the state cell; nothing is returned. target is handed to the
// decoder factory unchanged.
func (s *Session) AcceptAndStream(target decode.Target) {
	if !s.prepared.Load() {
		s.finish(State{Phase: PhaseError, Cause: ErrNotPrepared})
		return
	}
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		// Prepare failed or Stop already ran; a terminal state is
		// published either way.
		s.finish(State{Phase: PhaseStopped, Reason: ReasonStopRequested})
		return
	}

	if err := ln.SetDeadline(time.Now().Add(s.cfg.AcceptTimeout)); err != nil {
		if s.stopped.Load() {
			s.finish(State{Phase: PhaseStopped, Reason: ReasonStopRequested})
			return
		}
		s.finish(State{Phase: PhaseError, Cause: fmt.Errorf("session: arm accept deadline: %w", err)})
		return
	}
	conn, err := ln.Accept()
	if err != nil {
		switch {
		case s.stopped.Load():
			s.finish(State{Phase: PhaseStopped, Reason: ReasonStopRequested})
		case isTimeout(err):
			s.finish(State{Phase: PhaseError, Cause: fmt.Errorf("%w (%v)", ErrAcceptTimeout, s.cfg.AcceptTimeout)})
		default:
			s.finish(State{Phase: PhaseError, Cause: fmt.Errorf("session: accept: %w", err)})
		}
		return
	}
	rcv := csmr.NewReceiver(conn)
	if !s.adoptConn(conn, rcv) {
		conn.Close()
		s.finish(State{Phase: PhaseStopped, Reason: ReasonStopRequested})
		return
	}
	s.log.Info("peer connected", "remote", conn.RemoteAddr())

	dec, err := s.factory(decode.Config{
		Width:  s.cfg.Width,
		Height: s.cfg.Height,
		FPS:    s.cfg.FPS,
		Codec:  s.cfg.Codec,
	}, target, s.onRendered)
	if err != nil {
		s.finish(State{Phase: PhaseError, Cause: fmt.Errorf("session: create decoder: %w", err)})
		return
	}
	if !s.adoptDecoder(dec) {
		dec.Stop()
		s.finish(State{Phase: PhaseStopped, Reason: ReasonStopRequested})
		return
	}
	if err := dec.Start(); err != nil {
		s.finish(State{Phase: PhaseError, Cause: fmt.Errorf("session: start decoder: %w", err)})
		return
	}

	// The decoder is ready; frames may flow now.
	s.publish(State{
		Phase:  PhaseReceiving,
		Width:  s.cfg.Width,
		Height: s.cfg.Height,
		FPS:    s.cfg.FPS,
	})

	s.finish(s.receive(conn, rcv, dec))
}

// receive runs the frame loop and returns the terminal state to
// publish.
func (s *Session) receive(conn net.Conn, rcv *csmr.Receiver, dec decode.Decoder) State {
	idle := 0
	for {
		if err := conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout)); err != nil {
			if s.stopped.Load() {
				return State{Phase: PhaseStopped, Reason: ReasonStopRequested}
			}
			return State{Phase: PhaseError, Cause: fmt.Errorf("session: arm read deadline: %w", err)}
		}

		f, err := rcv.ReadFrame()
		if err != nil {
			if s.stopped.Load() {
				return State{Phase: PhaseStopped, Reason: ReasonStopRequested}
			}
			// Truncation and protocol violations are classified before
			// the idle classes: a deadline can expire mid-frame, and
			// that is a broken peer, not a quiet one.
			switch {
			case errors.Is(err, csmr.ErrBadMagic),
				errors.Is(err, csmr.ErrPayloadTooLarge),
				errors.Is(err, csmr.ErrTruncated):
				return State{Phase: PhaseError, Cause: err}
			case errors.Is(err, io.EOF), isTimeout(err):
				idle++
				s.idleReads.Add(1)
				s.met.IdleRead()
				s.log.Debug("no frame available", "consecutive", idle, "budget", s.cfg.IdleBudget)
				if idle >= s.cfg.IdleBudget {
					return State{Phase: PhaseError, Cause: fmt.Errorf("%w: %d consecutive idle reads", ErrIdleTimeout, idle)}
				}
				continue
			default:
				return State{Phase: PhaseError, Cause: fmt.Errorf("session: read frame: %w", err)}
			}
		}

		idle = 0
		s.framesReceived.Add(1)
		s.bytesReceived.Add(int64(csmr.HeaderSize + len(f.Payload)))
		s.met.FrameReceived(csmr.HeaderSize + len(f.Payload))

		switch f.Type {
		case csmr.TypeEndOfStream:
			return State{Phase: PhaseStopped, Reason: ReasonEndOfStream}
		case csmr.TypeVideo:
			if len(f.Payload) == 0 {
				s.framesDropped.Add(1)
				s.met.FrameDropped()
				s.log.Debug("dropping empty video frame", "timestamp_ns", f.Timestamp)
				continue
			}
			// Wire timestamps are nanoseconds; the decoder takes
			// microseconds.
			if err := dec.Feed(f.Payload, f.Timestamp/1000); err != nil {
				if s.stopped.Load() {
					return State{Phase: PhaseStopped, Reason: ReasonStopRequested}
				}
				return State{Phase: PhaseError, Cause: fmt.Errorf("session: feed decoder: %w", err)}
			}
		default:
			s.unknownFrames.Add(1)
			s.met.UnknownFrame()
			s.log.Debug("ignoring frame", "type", f.Type, "bytes", len(f.Payload))
		}
	}
}

// Stop forces the session to a terminal state. Safe to call from any
// goroutine, repeatedly, at any point in the session's life: only the
// first call runs the teardown, and a worker blocked in accept or read
// is unblocked by the forced socket close and lands in Stopped via the
// stop flag.
func (s *Session) Stop() {
	s.teardown()
	if s.cell.set(State{Phase: PhaseStopped, Reason: ReasonStopRequested}) {
		s.met.SetPhase(int(PhaseStopped))
		s.met.SessionEnded("stopped")
		s.log.Info("session stopped", "reason", ReasonStopRequested)
	}
}

// teardown releases every owned resource exactly once. Each release is
// guarded on its own so one failure cannot block the others.
func (s *Session) teardown() {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}
	s.mu.Lock()
	ln, conn, dec := s.ln, s.conn, s.dec
	s.ln, s.conn, s.rcv, s.dec = nil, nil, nil, nil
	s.mu.Unlock()

	if dec != nil {
		if err := dec.Stop(); err != nil {
			s.log.Warn("decoder stop", "error", err)
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			s.log.Debug("close peer socket", "error", err)
		}
	}
	if ln != nil {
		if err := ln.Close(); err != nil {
			s.log.Debug("close listener", "error", err)
		}
	}
}

// finish runs the teardown and publishes the worker's terminal state.
// If Stop or a failure already published one, the cell keeps it.
func (s *Session) finish(st State) {
	s.teardown()
	if !s.cell.set(st) {
		return
	}
	s.met.SetPhase(int(st.Phase))
	switch st.Phase {
	case PhaseError:
		s.met.SessionEnded("error")
		s.log.Error("session failed", "cause", st.Cause, "stats", s.Stats())
	default:
		s.met.SessionEnded("stopped")
		s.log.Info("session stopped", "reason", st.Reason, "frames", s.framesReceived.Load(),
			"bytes", s.bytesReceived.Load())
	}
}

// publish pushes a non-terminal state update.
func (s *Session) publish(st State) {
	if s.cell.set(st) {
		s.met.SetPhase(int(st.Phase))
	}
}

// onRendered is the decoder's frame-rendered notification. It advances
// the advisory frame count in the Receiving state; after a terminal
// state the update is dropped by the cell.
func (s *Session) onRendered(int64) {
	n := s.framesRendered.Add(1)
	s.met.FrameRendered()
	s.cell.set(State{
		Phase:  PhaseReceiving,
		Width:  s.cfg.Width,
		Height: s.cfg.Height,
		FPS:    s.cfg.FPS,
		Frames: n,
	})
}

// adoptListener hands the listener to the session unless teardown
// already ran; on false the caller still owns it.
func (s *Session) adoptListener(ln *net.TCPListener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped.Load() {
		return false
	}
	s.ln = ln
	return true
}

func (s *Session) adoptConn(conn net.Conn, rcv *csmr.Receiver) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped.Load() {
		return false
	}
	s.conn = conn
	s.rcv = rcv
	return true
}

func (s *Session) adoptDecoder(dec decode.Decoder) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped.Load() {
		return false
	}
	s.dec = dec
	return true
}

// isTimeout reports whether err is a deadline expiry from the listener
// or the peer socket.
func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
