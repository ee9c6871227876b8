package server

import (
	"log/slog"
	"time"

	"wsforge/httpmsg"
	"wsforge/websocket"
)

// Config holds everything Server needs to accept connections and drive
// the per-connection worker, matching the enumerated configuration in the
// library surface: bind address, port, timeouts, and size limits.
type Config struct {
	BindAddress string // default: all interfaces
	Port        int    // 0 = ephemeral; report the actual port via Server.Addr

	HTTPReadTimeout      time.Duration // default 2s
	MaxFramePayloadBytes int64         // default 16 MiB
	MaxRequestBodyBytes  int64         // default 8 MiB
	SocketLingerSeconds  int           // default 5
	StrictMasking        bool          // default false (lenient: unmasked client frames accepted)

	Handler           httpmsg.Handler
	WebSocketSelector websocket.Selector

	ShutdownTimeout time.Duration // default 30s

	Logger  *slog.Logger
	Metrics *Metrics

	// MetricsAddr, when non-empty and Metrics is non-nil, is the address
	// (e.g. ":9090") a second listener serves promhttp.Handler() on at
	// "/metrics" alongside the accept loop, so Metrics's counters are
	// actually scrapable rather than only incremented in memory.
	MetricsAddr string
}

func (c *Config) setDefaults() {
	if c.HTTPReadTimeout == 0 {
		c.HTTPReadTimeout = 2 * time.Second
	}
	if c.MaxFramePayloadBytes == 0 {
		c.MaxFramePayloadBytes = 16 << 20
	}
	if c.MaxRequestBodyBytes == 0 {
		c.MaxRequestBodyBytes = 8 << 20
	}
	if c.SocketLingerSeconds == 0 {
		c.SocketLingerSeconds = 5
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
