package socketio

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/simtap/simtap-go/pkg/log"
)

// Version is reported in the default user agent.
const Version = "0.1.0"

// Default configuration values.
const (
	DefaultURL              = "https://api.onomondo.com"
	DefaultPath             = "/monitor"
	DefaultUserAgent        = "simtap-go/" + Version
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
)

// Config configures a Client.
type Config struct {
	// URL is the service base URL. http(s) schemes are mapped to ws(s).
	URL string

	// Path is the Socket.IO endpoint path on the server.
	Path string

	// UserAgent is sent with the WebSocket handshake.
	UserAgent string

	// Header carries additional handshake headers.
	Header http.Header

	// HandshakeTimeout bounds the WebSocket and Socket.IO handshakes when
	// the context passed to Connect has no earlier deadline.
	HandshakeTimeout time.Duration

	// WriteTimeout bounds a single frame write when the Emit context has no
	// earlier deadline.
	WriteTimeout time.Duration

	// Dialer overrides the WebSocket dialer (nil uses websocket.DefaultDialer).
	Dialer *websocket.Dialer

	// Logger is used for operational logging. Nil discards.
	Logger *slog.Logger

	// ProtocolLogger receives frame, event and control packet captures.
	// Nil disables protocol capture.
	ProtocolLogger log.Logger
}

// DefaultConfig returns the configuration for the Onomondo monitor endpoint.
func DefaultConfig() Config {
	return Config{
		URL:              DefaultURL,
		Path:             DefaultPath,
		UserAgent:        DefaultUserAgent,
		HandshakeTimeout: DefaultHandshakeTimeout,
		WriteTimeout:     DefaultWriteTimeout,
	}
}

func (c *Config) applyDefaults() {
	if c.URL == "" {
		c.URL = DefaultURL
	}
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.Dialer == nil {
		c.Dialer = websocket.DefaultDialer
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	c.ProtocolLogger = log.OrNoop(c.ProtocolLogger)
}

// endpoint returns the Engine.IO websocket URL for the configuration.
func (c *Config) endpoint() (string, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}

	path := strings.TrimSuffix(u.Path, "/") + "/" + strings.Trim(c.Path, "/")
	u.Path = strings.TrimSuffix(path, "/") + "/"

	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Config) header() http.Header {
	h := c.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	if c.UserAgent != "" && h.Get("User-Agent") == "" {
		h.Set("User-Agent", c.UserAgent)
	}
	return h
}
