// Package controlplane announces session lifecycle transitions over
// NATS. Its main job is port negotiation: the desktop peer subscribes
// to the waiting announcement to learn which TCP port the receiver
// bound, then dials it and starts streaming. The stream itself never
// touches the control plane.
package controlplane

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/zsiec/csmr/session"
)

// DefaultSubjectPrefix is prepended to the event name when no prefix is
// configured, yielding subjects like "csmr.session.waiting".
const DefaultSubjectPrefix = "csmr.session"

// Publisher is the slice of a NATS connection the announcer needs.
// *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Source is the observable session surface the announcer watches.
// *session.Session satisfies it.
type Source interface {
	Subscribe() (<-chan session.State, func())
}

var _ Source = (*session.Session)(nil)

// Announcement is the JSON body of one lifecycle event.
type Announcement struct {
	Event  string `json:"event"`
	Port   int    `json:"port,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	FPS    int    `json:"fps,omitempty"`
	Reason string `json:"reason,omitempty"`
	Error  string `json:"error,omitempty"`
	At     int64  `json:"at"`
}

// Announcer publishes session lifecycle events to a control-plane
// subject tree.
type Announcer struct {
	pub    Publisher
	prefix string
	log    *slog.Logger
}

// New creates an announcer publishing under the given subject prefix;
// empty means DefaultSubjectPrefix.
func New(pub Publisher, prefix string) *Announcer {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Announcer{
		pub:    pub,
		prefix: prefix,
		log:    slog.With("component", "controlplane"),
	}
}

// Run watches src and publishes one announcement per phase transition
// until the session reaches a terminal state or ctx is cancelled. The
// per-frame Receiving updates stay on the state cell; the control plane
// sees transitions only. The terminal announcement is published before
// returning, including when a terminal state is already pending at the
// moment ctx is cancelled. Publish failures are logged, not fatal: the
// status API also exposes the port, so a flaky broker must not kill the
// session.
func (a *Announcer) Run(ctx context.Context, src Source) error {
	states, cancel := src.Subscribe()
	defer cancel()

	announced := session.PhaseIdle
	for {
		select {
		case <-ctx.Done():
			// The session publishes its terminal state before the worker
			// returns and cancels the shared context, so both can be
			// ready at once and the select picks arbitrarily. A pending
			// terminal state still gets its announcement.
			select {
			case st, ok := <-states:
				if ok && st.Terminal() {
					a.announce(st)
				}
			default:
			}
			return nil
		case st, ok := <-states:
			if !ok {
				return nil
			}
			if st.Phase != session.PhaseIdle && st.Phase != announced {
				a.announce(st)
				announced = st.Phase
			}
			if st.Terminal() {
				return nil
			}
		}
	}
}

func (a *Announcer) announce(st session.State) {
	ann := Announcement{
		Event: st.Phase.String(),
		At:    time.Now().UnixMilli(),
	}
	switch st.Phase {
	case session.PhaseWaiting:
		ann.Port = st.Port
	case session.PhaseReceiving:
		ann.Width = st.Width
		ann.Height = st.Height
		ann.FPS = st.FPS
	case session.PhaseStopped:
		ann.Reason = st.Reason
	case session.PhaseError:
		if st.Cause != nil {
			ann.Error = st.Cause.Error()
		}
	}

	data, err := json.Marshal(ann)
	if err != nil {
		a.log.Warn("marshal announcement", "event", ann.Event, "error", err)
		return
	}
	subject := fmt.Sprintf("%s.%s", a.prefix, ann.Event)
	if err := a.pub.Publish(subject, data); err != nil {
		a.log.Warn("publish announcement", "subject", subject, "error", err)
		return
	}
	a.log.Debug("announced", "subject", subject, "event", ann.Event)
}
