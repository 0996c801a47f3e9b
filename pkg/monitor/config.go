package monitor

import (
	"log/slog"
	"time"

	"github.com/simtap/simtap-go/pkg/log"
	"github.com/simtap/simtap-go/pkg/metrics"
)

// Default timeouts.
const (
	DefaultAuthTimeout        = 2 * time.Second
	DefaultUnsubscribeTimeout = 5 * time.Second
)

// Config configures a Monitor.
type Config struct {
	// APIKey is sent with the authenticate event.
	APIKey string

	// AuthTimeout bounds the wait for the authenticated event.
	AuthTimeout time.Duration

	// UnsubscribeTimeout bounds each best-effort unsubscribe emission.
	UnsubscribeTimeout time.Duration

	// Logger is used for operational logging. Nil discards.
	Logger *slog.Logger

	// ProtocolLogger receives state changes and protocol errors.
	// Nil disables protocol capture.
	ProtocolLogger log.Logger

	// Metrics records packet and attachment counters. Nil disables metrics.
	Metrics *metrics.Metrics
}

// DefaultConfig returns the default configuration without an API key.
func DefaultConfig() Config {
	return Config{
		AuthTimeout:        DefaultAuthTimeout,
		UnsubscribeTimeout: DefaultUnsubscribeTimeout,
	}
}

func (c *Config) applyDefaults() {
	if c.AuthTimeout <= 0 {
		c.AuthTimeout = DefaultAuthTimeout
	}
	if c.UnsubscribeTimeout <= 0 {
		c.UnsubscribeTimeout = DefaultUnsubscribeTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	c.ProtocolLogger = log.OrNoop(c.ProtocolLogger)
}
