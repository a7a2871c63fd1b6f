package transport

import "time"

// Config holds connection and reconnection settings.
type Config struct {
	// Dial settings
	DialTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxMessageSize int64

	// Reconnection
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
	MaxReconnectAttempts int

	// QUIC only
	ALPN               string
	InsecureSkipVerify bool
	KeepAlivePeriod    time.Duration
}

// DefaultConfig returns default transport configuration
func DefaultConfig() Config {
	return Config{
		DialTimeout:          10 * time.Second,
		WriteTimeout:         5 * time.Second,
		MaxMessageSize:       64 * 1024 * 1024, // snapshots of large worlds
		ReconnectBaseDelay:   time.Second,
		ReconnectMaxDelay:    30 * time.Second,
		MaxReconnectAttempts: 10,
		ALPN:                 "agentecs-viz",
		KeepAlivePeriod:      15 * time.Second,
	}
}

func (c Config) Policy() ReconnectPolicy {
	return ReconnectPolicy{
		BaseDelay:   c.ReconnectBaseDelay,
		MaxDelay:    c.ReconnectMaxDelay,
		MaxAttempts: c.MaxReconnectAttempts,
	}
}
