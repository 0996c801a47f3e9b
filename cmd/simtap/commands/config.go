package commands

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/simtap/simtap-go/pkg/monitor"
	"github.com/simtap/simtap-go/pkg/socketio"
)

// APIKeyEnv is the environment variable consulted when no API key is
// configured by flag or file.
const APIKeyEnv = "SIMTAP_API_KEY"

// ErrMissingAPIKey is returned when no API key is configured.
var ErrMissingAPIKey = errors.New("api key required (-api-key, config file or " + APIKeyEnv + ")")

// Config holds the settings shared by commands that talk to the service.
type Config struct {
	APIKey      string        `yaml:"api_key"`
	URL         string        `yaml:"url"`
	Path        string        `yaml:"path"`
	LogLevel    string        `yaml:"log_level"`
	AuthTimeout time.Duration `yaml:"auth_timeout"`
	ProtocolLog string        `yaml:"protocol_log"`
	MetricsAddr string        `yaml:"metrics_addr"`
	Reconnect   bool          `yaml:"reconnect"`
	PcapFile    string        `yaml:"pcap"`
}

// DefaultCLIConfig returns the defaults used before the file and flags apply.
func DefaultCLIConfig() Config {
	return Config{
		URL:         socketio.DefaultURL,
		Path:        socketio.DefaultPath,
		LogLevel:    "info",
		AuthTimeout: monitor.DefaultAuthTimeout,
	}
}

// LoadConfigFile reads a YAML config file. Durations use Go syntax ("2s").
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseConfigYAML(data)
}

// ParseConfigYAML parses YAML config data over the defaults.
func ParseConfigYAML(data []byte) (Config, error) {
	cfg := DefaultCLIConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// RegisterFlags binds the connection flags to fs.
func RegisterFlags(fs *flag.FlagSet) {
	defaults := DefaultCLIConfig()
	fs.String("config", "", "YAML configuration file")
	fs.String("api-key", "", "Onomondo API key (default $"+APIKeyEnv+")")
	fs.String("url", defaults.URL, "Service URL")
	fs.String("path", defaults.Path, "Socket.IO path")
	fs.String("log-level", defaults.LogLevel, "Log level: debug, info, warn, error")
	fs.Duration("auth-timeout", defaults.AuthTimeout, "Authentication timeout")
	fs.String("protocol-log", "", "Write protocol events to file (CBOR)")
}

// ResolveConfig builds the effective config from a parsed flag set. The
// config file named by -config is read first, explicitly set flags
// override it, and the API key falls back to the environment.
func ResolveConfig(fs *flag.FlagSet) (Config, error) {
	cfg := DefaultCLIConfig()
	if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
		var err error
		if cfg, err = LoadConfigFile(f.Value.String()); err != nil {
			return Config{}, err
		}
	}

	var err error
	fs.Visit(func(f *flag.Flag) {
		if err != nil {
			return
		}
		err = cfg.set(f)
	})
	if err != nil {
		return Config{}, err
	}

	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv(APIKeyEnv)
	}
	if cfg.APIKey == "" {
		return Config{}, ErrMissingAPIKey
	}
	return cfg, nil
}

func (c *Config) set(f *flag.Flag) error {
	v := f.Value.String()
	switch f.Name {
	case "api-key":
		c.APIKey = v
	case "url":
		c.URL = v
	case "path":
		c.Path = v
	case "log-level":
		c.LogLevel = v
	case "auth-timeout":
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid -auth-timeout: %w", err)
		}
		c.AuthTimeout = d
	case "protocol-log":
		c.ProtocolLog = v
	case "metrics-addr":
		c.MetricsAddr = v
	case "reconnect":
		c.Reconnect = v == "true"
	case "pcap":
		c.PcapFile = v
	}
	return nil
}

// ParseLogLevel maps a level name to an slog.Level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", s)
	}
}

// NewLogger creates a text slog.Logger writing to w at the given level.
func NewLogger(level string, w io.Writer) (*slog.Logger, error) {
	lvl, err := ParseLogLevel(level)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}
