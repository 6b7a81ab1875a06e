// Package config loads csmrd configuration: package defaults, then an
// optional TOML file, then CSMR_* environment overrides, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/zsiec/csmr/session"
)

// Duration wraps time.Duration so TOML fields accept strings like
// "30s" or "1m30s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full csmrd configuration.
type Config struct {
	Video   Video    `toml:"video"`
	Session Timeouts `toml:"session"`
	Decoder Decoder  `toml:"decoder"`
	API     API      `toml:"api"`
	NATS    NATS     `toml:"nats"`
}

// Video carries the negotiated stream parameters handed to the decoder
// unchanged.
type Video struct {
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	FPS    int    `toml:"fps"`
	Codec  string `toml:"codec"`
}

// Timeouts are the session tunables.
type Timeouts struct {
	AcceptTimeout Duration `toml:"accept_timeout"`
	ReadTimeout   Duration `toml:"read_timeout"`
	IdleBudget    int      `toml:"idle_budget"`
}

// Decoder selects which registered decoder implementation receives the
// stream. Output is the render target handle for implementations that
// take one, such as the file sink's destination path.
type Decoder struct {
	Name   string `toml:"name"`
	Output string `toml:"output"`
}

// API configures the status/metrics HTTP server. An empty Addr disables
// it.
type API struct {
	Addr string `toml:"addr"`
	TLS  bool   `toml:"tls"`
}

// NATS configures the control-plane announcer. An empty URL disables
// it.
type NATS struct {
	URL     string `toml:"url"`
	Subject string `toml:"subject_prefix"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Video: Video{
			Width:  1280,
			Height: 720,
			FPS:    30,
			Codec:  "h264",
		},
		Session: Timeouts{
			AcceptTimeout: Duration(session.DefaultAcceptTimeout),
			ReadTimeout:   Duration(session.DefaultReadTimeout),
			IdleBudget:    session.DefaultIdleBudget,
		},
		Decoder: Decoder{
			Name: "discard",
		},
		API: API{
			Addr: ":4444",
		},
		NATS: NATS{
			Subject: "csmr.session",
		},
	}
}

// Load builds the configuration: defaults, then the TOML file at path
// if path is non-empty, then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	cfg.Video.Width = envInt("CSMR_WIDTH", cfg.Video.Width)
	cfg.Video.Height = envInt("CSMR_HEIGHT", cfg.Video.Height)
	cfg.Video.FPS = envInt("CSMR_FPS", cfg.Video.FPS)
	cfg.Video.Codec = envOr("CSMR_CODEC", cfg.Video.Codec)
	cfg.Session.AcceptTimeout = envDuration("CSMR_ACCEPT_TIMEOUT", cfg.Session.AcceptTimeout)
	cfg.Session.ReadTimeout = envDuration("CSMR_READ_TIMEOUT", cfg.Session.ReadTimeout)
	cfg.Session.IdleBudget = envInt("CSMR_IDLE_BUDGET", cfg.Session.IdleBudget)
	cfg.Decoder.Name = envOr("CSMR_DECODER", cfg.Decoder.Name)
	cfg.Decoder.Output = envOr("CSMR_DECODER_OUTPUT", cfg.Decoder.Output)
	cfg.API.Addr = envOr("CSMR_API_ADDR", cfg.API.Addr)
	cfg.API.TLS = envBool("CSMR_API_TLS", cfg.API.TLS)
	cfg.NATS.URL = envOr("CSMR_NATS_URL", cfg.NATS.URL)
	cfg.NATS.Subject = envOr("CSMR_NATS_SUBJECT", cfg.NATS.Subject)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the session or decoder cannot work with.
func (c Config) Validate() error {
	if c.Video.Width <= 0 || c.Video.Height <= 0 {
		return fmt.Errorf("config: video dimensions %dx%d must be positive", c.Video.Width, c.Video.Height)
	}
	if c.Video.FPS <= 0 {
		return fmt.Errorf("config: fps %d must be positive", c.Video.FPS)
	}
	if c.Video.Codec == "" {
		return fmt.Errorf("config: codec must be set")
	}
	if c.Decoder.Name == "" {
		return fmt.Errorf("config: decoder name must be set")
	}
	if c.Session.AcceptTimeout < 0 || c.Session.ReadTimeout < 0 {
		return fmt.Errorf("config: timeouts must not be negative")
	}
	return nil
}

// SessionConfig maps the loaded values onto the session package's
// configuration.
func (c Config) SessionConfig() session.Config {
	return session.Config{
		Width:         c.Video.Width,
		Height:        c.Video.Height,
		FPS:           c.Video.FPS,
		Codec:         c.Video.Codec,
		AcceptTimeout: c.Session.AcceptTimeout.Std(),
		ReadTimeout:   c.Session.ReadTimeout.Std(),
		IdleBudget:    c.Session.IdleBudget,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback Duration) Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return Duration(d)
		}
	}
	return fallback
}
