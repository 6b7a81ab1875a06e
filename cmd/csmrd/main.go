// csmrd runs one CSMR receive session as a daemon: it binds an
// ephemeral TCP port, announces it over the control plane, accepts one
// desktop peer, and feeds the stream to the configured decoder while
// serving status and metrics over HTTP. The process exits when the
// session reaches a terminal state; a failed session is never retried
// in place.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/zsiec/csmr/api"
	"github.com/zsiec/csmr/certs"
	"github.com/zsiec/csmr/config"
	"github.com/zsiec/csmr/controlplane"
	"github.com/zsiec/csmr/decode"
	"github.com/zsiec/csmr/metrics"
	"github.com/zsiec/csmr/session"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to TOML config file")
	flag.Parse()

	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	factory, ok := decode.Lookup(cfg.Decoder.Name)
	if !ok {
		slog.Error("unknown decoder", "name", cfg.Decoder.Name, "registered", decode.Names())
		os.Exit(1)
	}

	var cert *certs.CertInfo
	if cfg.API.TLS {
		cert, err = certs.Generate(certs.DefaultValidity)
		if err != nil {
			slog.Error("failed to generate cert", "error", err)
			os.Exit(1)
		}
		slog.Info("certificate generated",
			"fingerprint", cert.FingerprintBase64(),
			"expires", cert.NotAfter.Format(time.RFC3339),
		)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	reg := prometheus.NewRegistry()
	sess := session.New(cfg.SessionConfig(), factory, metrics.New(reg))

	if err := sess.Prepare(); err != nil {
		slog.Error("prepare failed", "error", err)
		os.Exit(1)
	}

	slog.Info("csmrd starting",
		"version", version,
		"port", sess.State().Port,
		"codec", cfg.Video.Codec,
		"decoder", cfg.Decoder.Name,
		"api", cfg.API.Addr,
	)

	g, ctx := errgroup.WithContext(ctx)

	if cfg.API.Addr != "" {
		apiSrv := api.New(api.Config{Addr: cfg.API.Addr, Cert: cert, Gatherer: reg}, sess)
		g.Go(func() error {
			return apiSrv.Start(ctx)
		})
	}

	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL)
		if err != nil {
			slog.Error("failed to connect to NATS", "url", cfg.NATS.URL, "error", err)
			os.Exit(1)
		}
		defer nc.Close()
		ann := controlplane.New(nc, cfg.NATS.Subject)
		g.Go(func() error {
			return ann.Run(ctx, sess)
		})
	}

	// Stop bridge: signal or component failure forces the worker out of
	// its blocking socket calls.
	g.Go(func() error {
		<-ctx.Done()
		sess.Stop()
		return nil
	})

	var target decode.Target
	if cfg.Decoder.Output != "" {
		target = cfg.Decoder.Output
	}

	g.Go(func() error {
		defer cancel() // session over: wind down the API and announcer
		sess.AcceptAndStream(target)
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	final := sess.State()
	if final.Phase == session.PhaseError {
		slog.Error("session failed", "cause", final.Cause, "stats", sess.Stats())
		os.Exit(1)
	}
	slog.Info("session complete", "state", final.String(), "stats", sess.Stats())
}
