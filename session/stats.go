package session

import "time"

// Stats captures receive-loop counters for one session, exposed via the
// status API for monitoring stream health.
type Stats struct {
	FramesReceived int64 `json:"framesReceived"`
	FramesRendered int64 `json:"framesRendered"`
	FramesDropped  int64 `json:"framesDropped"`
	UnknownFrames  int64 `json:"unknownFrames"`
	BytesReceived  int64 `json:"bytesReceived"`
	IdleReads      int64 `json:"idleReads"`
	PreparedAt     int64 `json:"preparedAt,omitempty"`
	UptimeMs       int64 `json:"uptimeMs,omitempty"`
}

// Stats returns a snapshot of the session's counters.
func (s *Session) Stats() Stats {
	st := Stats{
		FramesReceived: s.framesReceived.Load(),
		FramesRendered: s.framesRendered.Load(),
		FramesDropped:  s.framesDropped.Load(),
		UnknownFrames:  s.unknownFrames.Load(),
		BytesReceived:  s.bytesReceived.Load(),
		IdleReads:      s.idleReads.Load(),
	}
	if at := s.preparedAt.Load(); at != 0 {
		st.PreparedAt = at
		st.UptimeMs = time.Now().UnixMilli() - at
	}
	return st
}
