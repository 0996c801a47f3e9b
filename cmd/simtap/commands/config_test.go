package commands

import (
	"flag"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simtap/simtap-go/pkg/socketio"
)

func newFlagSet(t *testing.T, args ...string) *flag.FlagSet {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	RegisterFlags(fs)
	fs.String("pcap", "", "")
	fs.Bool("reconnect", false, "")
	fs.String("metrics-addr", "", "")
	require.NoError(t, fs.Parse(args))
	return fs
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "simtap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseConfigYAML(t *testing.T) {
	cfg, err := ParseConfigYAML([]byte(`
api_key: file-key
url: https://example.test
auth_timeout: 5s
reconnect: true
metrics_addr: ":9090"
`))
	require.NoError(t, err)

	assert.Equal(t, "file-key", cfg.APIKey)
	assert.Equal(t, "https://example.test", cfg.URL)
	assert.Equal(t, socketio.DefaultPath, cfg.Path)
	assert.Equal(t, 5*time.Second, cfg.AuthTimeout)
	assert.True(t, cfg.Reconnect)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestParseConfigYAMLInvalid(t *testing.T) {
	_, err := ParseConfigYAML([]byte("auth_timeout: [1, 2]"))
	assert.Error(t, err)
}

func TestResolveConfig(t *testing.T) {
	t.Run("flags override file", func(t *testing.T) {
		path := writeConfig(t, "api_key: file-key\nurl: https://file.test\nlog_level: warn\n")
		fs := newFlagSet(t, "-config", path, "-url", "https://flag.test", "-reconnect", "-auth-timeout", "3s")

		cfg, err := ResolveConfig(fs)
		require.NoError(t, err)
		assert.Equal(t, "file-key", cfg.APIKey)
		assert.Equal(t, "https://flag.test", cfg.URL)
		assert.Equal(t, "warn", cfg.LogLevel)
		assert.Equal(t, 3*time.Second, cfg.AuthTimeout)
		assert.True(t, cfg.Reconnect)
	})

	t.Run("unset flags keep file values", func(t *testing.T) {
		path := writeConfig(t, "api_key: file-key\npcap: file.pcap\n")
		cfg, err := ResolveConfig(newFlagSet(t, "-config", path))
		require.NoError(t, err)
		assert.Equal(t, "file.pcap", cfg.PcapFile)
		assert.Equal(t, socketio.DefaultURL, cfg.URL)
	})

	t.Run("environment api key", func(t *testing.T) {
		t.Setenv(APIKeyEnv, "env-key")
		cfg, err := ResolveConfig(newFlagSet(t))
		require.NoError(t, err)
		assert.Equal(t, "env-key", cfg.APIKey)
	})

	t.Run("flag api key wins over environment", func(t *testing.T) {
		t.Setenv(APIKeyEnv, "env-key")
		cfg, err := ResolveConfig(newFlagSet(t, "-api-key", "flag-key"))
		require.NoError(t, err)
		assert.Equal(t, "flag-key", cfg.APIKey)
	})

	t.Run("missing api key", func(t *testing.T) {
		t.Setenv(APIKeyEnv, "")
		_, err := ResolveConfig(newFlagSet(t))
		assert.ErrorIs(t, err, ErrMissingAPIKey)
	})

	t.Run("missing config file", func(t *testing.T) {
		_, err := ResolveConfig(newFlagSet(t, "-config", filepath.Join(t.TempDir(), "nope.yaml")))
		assert.Error(t, err)
	})
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLogLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
