package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zsiec/csmr/metrics"
	"github.com/zsiec/csmr/session"
)

// fakeView serves canned session state and stats.
type fakeView struct {
	state session.State
	stats session.Stats
}

func (v *fakeView) State() session.State { return v.state }
func (v *fakeView) Stats() session.Stats { return v.stats }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	s := New(Config{Addr: ":0"}, &fakeView{})

	rec := get(t, s.Handler(), "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
}

func TestStatusPerPhase(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		state session.State
		check func(t *testing.T, resp map[string]any)
	}{
		{
			name:  "idle",
			state: session.State{Phase: session.PhaseIdle},
			check: func(t *testing.T, resp map[string]any) {
				if resp["phase"] != "idle" {
					t.Errorf("phase = %v", resp["phase"])
				}
				if _, ok := resp["port"]; ok {
					t.Error("idle must not carry a port")
				}
			},
		},
		{
			name:  "waiting",
			state: session.State{Phase: session.PhaseWaiting, Port: 50123},
			check: func(t *testing.T, resp map[string]any) {
				if resp["phase"] != "waiting" {
					t.Errorf("phase = %v", resp["phase"])
				}
				if resp["port"] != float64(50123) {
					t.Errorf("port = %v, want 50123", resp["port"])
				}
			},
		},
		{
			name: "receiving",
			state: session.State{
				Phase: session.PhaseReceiving,
				Width: 1920, Height: 1080, FPS: 60, Frames: 17,
			},
			check: func(t *testing.T, resp map[string]any) {
				if resp["width"] != float64(1920) || resp["height"] != float64(1080) {
					t.Errorf("dimensions = %vx%v", resp["width"], resp["height"])
				}
				if resp["framesRendered"] != float64(17) {
					t.Errorf("framesRendered = %v, want 17", resp["framesRendered"])
				}
			},
		},
		{
			name:  "stopped",
			state: session.State{Phase: session.PhaseStopped, Reason: session.ReasonEndOfStream},
			check: func(t *testing.T, resp map[string]any) {
				if resp["reason"] != session.ReasonEndOfStream {
					t.Errorf("reason = %v", resp["reason"])
				}
			},
		},
		{
			name:  "error",
			state: session.State{Phase: session.PhaseError, Cause: errors.New("socket exploded")},
			check: func(t *testing.T, resp map[string]any) {
				if resp["error"] != "socket exploded" {
					t.Errorf("error = %v", resp["error"])
				}
			},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := New(Config{Addr: ":0"}, &fakeView{state: tc.state})
			rec := get(t, s.Handler(), "/api/status")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			var resp map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			tc.check(t, resp)
		})
	}
}

func TestStats(t *testing.T) {
	t.Parallel()
	view := &fakeView{stats: session.Stats{
		FramesReceived: 12,
		FramesRendered: 10,
		BytesReceived:  4096,
	}}
	s := New(Config{Addr: ":0"}, view)

	rec := get(t, s.Handler(), "/api/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var stats session.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats != view.stats {
		t.Errorf("stats = %+v, want %+v", stats, view.stats)
	}
}

func TestMetricsRoute(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.FrameReceived(21)

	s := New(Config{Addr: ":0", Gatherer: reg}, &fakeView{})
	rec := get(t, s.Handler(), "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "csmr_frames_received_total 1") {
		t.Errorf("metrics output missing frame counter:\n%s", rec.Body.String())
	}
}

func TestMetricsRouteAbsentWithoutGatherer(t *testing.T) {
	t.Parallel()
	s := New(Config{Addr: ":0"}, &fakeView{})
	if rec := get(t, s.Handler(), "/metrics"); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 when no gatherer is wired", rec.Code)
	}
}

func TestStartStopsOnContextCancel(t *testing.T) {
	t.Parallel()
	s := New(Config{Addr: "127.0.0.1:0"}, &fakeView{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start returned %v, want nil after cancel", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Start did not return after context cancel")
	}
}
