package transport

import (
	"context"
	"net/url"

	"github.com/pkg/errors"
)

// Conn is one physical, message-framed connection.
type Conn interface {
	// ReadFrame blocks until a full frame arrives or the connection fails.
	ReadFrame() ([]byte, error)
	// WriteFrame writes one frame. Safe for concurrent use with ReadFrame.
	WriteFrame(data []byte) error
	Close() error
	RemoteAddr() string
}

type Dialer interface {
	Dial(ctx context.Context, rawURL string) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, rawURL string) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context, rawURL string) (Conn, error) {
	return f(ctx, rawURL)
}

// SchemeDialer picks a dialer from the URL scheme.
type SchemeDialer map[string]Dialer

// NewDialer returns the default scheme table: ws and wss over WebSocket,
// quic over a single QUIC stream.
func NewDialer(cfg Config) SchemeDialer {
	ws := NewWebSocketDialer(cfg)
	return SchemeDialer{
		"ws":   ws,
		"wss":  ws,
		"quic": NewQUICDialer(cfg),
	}
}

func (d SchemeDialer) Dial(ctx context.Context, rawURL string) (Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid server url")
	}
	dialer, ok := d[u.Scheme]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedScheme, "%q", u.Scheme)
	}
	return dialer.Dial(ctx, rawURL)
}
