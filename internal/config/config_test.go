package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/extensivelabs/agentecs-viz/internal/core/observability/log"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadFileOverDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "viz.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "wss://sim.example.com/ws", cfg.URL)
	assert.Equal(t, log.LevelDebug, cfg.LogLevel())
	assert.Equal(t, log.Options{Level: log.LevelDebug, Format: log.FormatConsole}, cfg.LogOptions())
	assert.Equal(t, 3*time.Second, cfg.Transport.DialTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Transport.ReconnectBaseDelay)
	assert.Equal(t, 4, cfg.Transport.MaxReconnectAttempts)
	assert.Equal(t, 2.5, cfg.Replay.DefaultSpeed)
	assert.Equal(t, 50, cfg.Buffers.ErrorEvents)

	// untouched keys keep their defaults
	assert.Equal(t, Default().Transport.WriteTimeout, cfg.Transport.WriteTimeout)
	assert.Equal(t, Default().Buffers.SpanEvents, cfg.Buffers.SpanEvents)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("VIZ_URL", "quic://127.0.0.1:9000")
	t.Setenv("VIZ_TRANSPORT_MAX_RECONNECT_ATTEMPTS", "9")
	t.Setenv("VIZ_REPLAY_FALLBACK_INTERVAL", "750ms")

	cfg, err := Load(filepath.Join("testdata", "viz.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "quic://127.0.0.1:9000", cfg.URL)
	assert.Equal(t, 9, cfg.Transport.MaxReconnectAttempts)
	assert.Equal(t, 750*time.Millisecond, cfg.Replay.FallbackInterval)
	assert.Equal(t, 3*time.Second, cfg.Transport.DialTimeout)
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(filepath.Join("testdata", "unknown_field.yaml"))
	assert.Error(t, err)

	t.Setenv("VIZ_TRANSPORT_DIAL_TIMEOUT", "soon")
	_, err = Load("")
	assert.Error(t, err)
}

func TestLoadYAMLEmptyDocument(t *testing.T) {
	cfg, err := LoadYAML(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"bad scheme", func(c *Config) { c.URL = "http://localhost" }, ErrInvalidURL},
		{"no host", func(c *Config) { c.URL = "ws://" }, ErrInvalidURL},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, ErrInvalidValue},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, ErrInvalidValue},
		{"zero dial timeout", func(c *Config) { c.Transport.DialTimeout = 0 }, ErrInvalidValue},
		{"max below base", func(c *Config) { c.Transport.ReconnectMaxDelay = time.Millisecond }, ErrInvalidValue},
		{"negative attempts", func(c *Config) { c.Transport.MaxReconnectAttempts = -1 }, ErrInvalidValue},
		{"zero fallback", func(c *Config) { c.Replay.FallbackInterval = 0 }, ErrInvalidValue},
		{"zero buffer", func(c *Config) { c.Buffers.SpanEvents = 0 }, ErrInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}

func TestConversions(t *testing.T) {
	cfg := Default()
	cfg.Transport.MaxReconnectAttempts = 3
	cfg.Buffers.ErrorEvents = 7
	cfg.Replay.DefaultSpeed = 5

	tc := cfg.TransportConfig()
	assert.Equal(t, 3, tc.Policy().MaxAttempts)

	opts := cfg.StoreOptions()
	assert.Equal(t, 7, opts.ErrorBufferSize)
	assert.Equal(t, 5.0, opts.DefaultSpeed)
}
