// Package config loads client settings from an optional YAML file, then from
// VIZ_* environment variables, then validates them.
package config

import (
	"bytes"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/extensivelabs/agentecs-viz/internal/core/observability/log"
	"github.com/extensivelabs/agentecs-viz/internal/core/transport"
	"github.com/extensivelabs/agentecs-viz/internal/core/world"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "VIZ_"

type Config struct {
	URL       string          `yaml:"url" env:"URL"`
	Log       LogConfig       `yaml:"log" envPrefix:"LOG_"`
	Transport TransportConfig `yaml:"transport" envPrefix:"TRANSPORT_"`
	Replay    ReplayConfig    `yaml:"replay" envPrefix:"REPLAY_"`
	Buffers   BufferConfig    `yaml:"buffers" envPrefix:"BUFFERS_"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

type TransportConfig struct {
	DialTimeout          time.Duration `yaml:"dial_timeout" env:"DIAL_TIMEOUT"`
	WriteTimeout         time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	MaxMessageSize       int64         `yaml:"max_message_size" env:"MAX_MESSAGE_SIZE"`
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay" env:"RECONNECT_BASE_DELAY"`
	ReconnectMaxDelay    time.Duration `yaml:"reconnect_max_delay" env:"RECONNECT_MAX_DELAY"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts" env:"MAX_RECONNECT_ATTEMPTS"`
	ALPN                 string        `yaml:"alpn" env:"ALPN"`
	InsecureSkipVerify   bool          `yaml:"insecure_skip_verify" env:"INSECURE_SKIP_VERIFY"`
	KeepAlivePeriod      time.Duration `yaml:"keep_alive_period" env:"KEEP_ALIVE_PERIOD"`
}

type ReplayConfig struct {
	DefaultSpeed     float64       `yaml:"default_speed" env:"DEFAULT_SPEED"`
	FallbackInterval time.Duration `yaml:"fallback_interval" env:"FALLBACK_INTERVAL"`
}

type BufferConfig struct {
	ErrorEvents int `yaml:"error_events" env:"ERROR_EVENTS"`
	SpanEvents  int `yaml:"span_events" env:"SPAN_EVENTS"`
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	tc := transport.DefaultConfig()
	opts := world.DefaultOptions()
	return Config{
		URL: "ws://localhost:8000/ws",
		Log: LogConfig{Level: "info", Format: string(log.FormatJSON)},
		Transport: TransportConfig{
			DialTimeout:          tc.DialTimeout,
			WriteTimeout:         tc.WriteTimeout,
			MaxMessageSize:       tc.MaxMessageSize,
			ReconnectBaseDelay:   tc.ReconnectBaseDelay,
			ReconnectMaxDelay:    tc.ReconnectMaxDelay,
			MaxReconnectAttempts: tc.MaxReconnectAttempts,
			ALPN:                 tc.ALPN,
			InsecureSkipVerify:   tc.InsecureSkipVerify,
			KeepAlivePeriod:      tc.KeepAlivePeriod,
		},
		Replay: ReplayConfig{
			DefaultSpeed:     opts.DefaultSpeed,
			FallbackInterval: opts.ReplayFallbackInterval,
		},
		Buffers: BufferConfig{
			ErrorEvents: opts.ErrorBufferSize,
			SpanEvents:  opts.SpanBufferSize,
		},
	}
}

// Load reads path (skipped when empty), applies environment overrides and
// validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrap(err, "failed to read config file")
		}
		if err := decodeYAML(bytes.NewReader(data), &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "failed to parse %s", path)
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadYAML decodes r over the defaults without consulting the environment.
func LoadYAML(r io.Reader) (Config, error) {
	cfg := Default()
	if err := decodeYAML(r, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides cfg with any VIZ_* variables that are set.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return errors.Wrap(err, "parse env")
	}
	return nil
}

// Validate rejects settings the client cannot run with.
func (c Config) Validate() error {
	u, err := url.Parse(c.URL)
	if err != nil || u.Host == "" {
		return errors.Wrapf(ErrInvalidURL, "%q", c.URL)
	}
	switch u.Scheme {
	case "ws", "wss", "quic":
	default:
		return errors.Wrapf(ErrInvalidURL, "unsupported scheme %q", u.Scheme)
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(ErrInvalidValue, err.Error())
	}
	if _, err := log.ParseFormat(c.Log.Format); err != nil {
		return errors.Wrap(ErrInvalidValue, err.Error())
	}

	t := c.Transport
	switch {
	case t.DialTimeout <= 0:
		return errors.Wrap(ErrInvalidValue, "transport.dial_timeout must be positive")
	case t.MaxMessageSize <= 0:
		return errors.Wrap(ErrInvalidValue, "transport.max_message_size must be positive")
	case t.ReconnectBaseDelay <= 0:
		return errors.Wrap(ErrInvalidValue, "transport.reconnect_base_delay must be positive")
	case t.ReconnectMaxDelay < t.ReconnectBaseDelay:
		return errors.Wrap(ErrInvalidValue, "transport.reconnect_max_delay is below the base delay")
	case t.MaxReconnectAttempts < 0:
		return errors.Wrap(ErrInvalidValue, "transport.max_reconnect_attempts cannot be negative")
	}

	if c.Replay.FallbackInterval <= 0 {
		return errors.Wrap(ErrInvalidValue, "replay.fallback_interval must be positive")
	}
	if c.Buffers.ErrorEvents <= 0 || c.Buffers.SpanEvents <= 0 {
		return errors.Wrap(ErrInvalidValue, "buffer sizes must be positive")
	}
	return nil
}

// LogLevel parses Log.Level. Validate has already rejected bad values.
func (c Config) LogLevel() log.Level {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.LevelInfo
	}
	return level
}

// LogOptions builds the logger settings. Output is left to the caller.
func (c Config) LogOptions() log.Options {
	format, err := log.ParseFormat(c.Log.Format)
	if err != nil {
		format = log.FormatJSON
	}
	return log.Options{Level: c.LogLevel(), Format: format}
}

func (c Config) TransportConfig() transport.Config {
	t := c.Transport
	return transport.Config{
		DialTimeout:          t.DialTimeout,
		WriteTimeout:         t.WriteTimeout,
		MaxMessageSize:       t.MaxMessageSize,
		ReconnectBaseDelay:   t.ReconnectBaseDelay,
		ReconnectMaxDelay:    t.ReconnectMaxDelay,
		MaxReconnectAttempts: t.MaxReconnectAttempts,
		ALPN:                 t.ALPN,
		InsecureSkipVerify:   t.InsecureSkipVerify,
		KeepAlivePeriod:      t.KeepAlivePeriod,
	}
}

func (c Config) StoreOptions() world.Options {
	opts := world.DefaultOptions()
	opts.DefaultSpeed = c.Replay.DefaultSpeed
	opts.ReplayFallbackInterval = c.Replay.FallbackInterval
	opts.ErrorBufferSize = c.Buffers.ErrorEvents
	opts.SpanBufferSize = c.Buffers.SpanEvents
	return opts
}
