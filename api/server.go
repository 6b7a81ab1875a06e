// Package api serves the receiver's observability surface over HTTP:
// health, current session state, receive-loop counters, and Prometheus
// metrics. It reads the session through a narrow view and never mutates
// it.
package api

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zsiec/csmr/certs"
	"github.com/zsiec/csmr/session"
)

// shutdownGrace bounds how long in-flight requests may run after the
// context is cancelled.
const shutdownGrace = 5 * time.Second

// View is the read-only slice of the session the API exposes.
type View interface {
	State() session.State
	Stats() session.Stats
}

// Config configures the API server.
type Config struct {
	Addr string
	// Cert enables TLS when non-nil.
	Cert *certs.CertInfo
	// Gatherer backs GET /metrics; nil leaves the route unregistered.
	Gatherer prometheus.Gatherer
}

// Server is the status/metrics HTTP server.
type Server struct {
	cfg     Config
	view    View
	log     *slog.Logger
	router  *gin.Engine
	started time.Time
}

// New builds the server and its routes.
func New(cfg Config, view View) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		cfg:     cfg,
		view:    view,
		log:     slog.With("component", "api"),
		router:  router,
		started: time.Now(),
	}

	router.GET("/healthz", s.handleHealth)
	api := router.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.GET("/stats", s.handleStats)
	}
	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}
	return s
}

// Handler exposes the route tree, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until ctx is cancelled, then shuts down gracefully. A
// nil return means the server ran and stopped cleanly.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.router,
	}
	if s.cfg.Cert != nil {
		srv.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{s.cfg.Cert.TLSCert},
		}
	}

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("shutdown", "error", err)
		}
	})
	defer stop()

	s.log.Info("status API listening", "addr", s.cfg.Addr, "tls", s.cfg.Cert != nil)

	var err error
	if s.cfg.Cert != nil {
		err = srv.ListenAndServeTLS("", "")
	} else {
		err = srv.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) || ctx.Err() != nil {
		return nil
	}
	return fmt.Errorf("api: serve %s: %w", s.cfg.Addr, err)
}

// statusResponse is the JSON shape of GET /api/status. Only the fields
// belonging to the current phase are populated.
type statusResponse struct {
	Phase  string `json:"phase"`
	Port   int    `json:"port,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	FPS    int    `json:"fps,omitempty"`
	Frames int64  `json:"framesRendered,omitempty"`
	Reason string `json:"reason,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.started).Truncate(time.Millisecond).String(),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	st := s.view.State()
	resp := statusResponse{Phase: st.Phase.String()}
	switch st.Phase {
	case session.PhaseWaiting:
		resp.Port = st.Port
	case session.PhaseReceiving:
		resp.Width = st.Width
		resp.Height = st.Height
		resp.FPS = st.FPS
		resp.Frames = st.Frames
	case session.PhaseStopped:
		resp.Reason = st.Reason
	case session.PhaseError:
		if st.Cause != nil {
			resp.Error = st.Cause.Error()
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.view.Stats())
}
