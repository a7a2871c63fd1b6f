package transport

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"io"
	"net"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"
)

const quicFrameHeader = 4

// QUICDialer carries the same JSON frames over one bidirectional QUIC stream,
// each frame prefixed with its big-endian uint32 length.
type QUICDialer struct {
	tlsConfig  *tls.Config
	quicConfig *quic.Config
	maxFrame   int64
}

func NewQUICDialer(cfg Config) *QUICDialer {
	return &QUICDialer{
		tlsConfig: &tls.Config{
			NextProtos:         []string{cfg.ALPN},
			InsecureSkipVerify: cfg.InsecureSkipVerify,
			MinVersion:         tls.VersionTLS13,
		},
		quicConfig: &quic.Config{
			HandshakeIdleTimeout: cfg.DialTimeout,
			KeepAlivePeriod:      cfg.KeepAlivePeriod,
		},
		maxFrame: cfg.MaxMessageSize,
	}
}

func (d *QUICDialer) Dial(ctx context.Context, rawURL string) (Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid quic url")
	}

	tlsConfig := d.tlsConfig.Clone()
	if tlsConfig.ServerName == "" {
		host, _, err := net.SplitHostPort(u.Host)
		if err != nil {
			tlsConfig.ServerName = u.Host
		} else {
			tlsConfig.ServerName = host
		}
	}

	conn, err := quic.DialAddr(ctx, u.Host, tlsConfig, d.quicConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to dial QUIC connection")
	}

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "stream open failed")
		return nil, errors.Wrap(err, "failed to open QUIC stream")
	}

	return &quicConn{conn: conn, stream: stream, maxFrame: d.maxFrame}, nil
}

type quicConn struct {
	conn     *quic.Conn
	stream   *quic.Stream
	maxFrame int64
	closed   int32
	writeMu  sync.Mutex
}

func (c *quicConn) ReadFrame() ([]byte, error) {
	var header [quicFrameHeader]byte
	if _, err := io.ReadFull(c.stream, header[:]); err != nil {
		return nil, errors.Wrap(err, "failed to read frame header")
	}
	size := binary.BigEndian.Uint32(header[:])
	if c.maxFrame > 0 && int64(size) > c.maxFrame {
		return nil, errors.Wrapf(ErrFrameTooLarge, "%d bytes", size)
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(c.stream, data); err != nil {
		return nil, errors.Wrap(err, "failed to read frame body")
	}
	return data, nil
}

func (c *quicConn) WriteFrame(data []byte) error {
	if atomic.LoadInt32(&c.closed) == 1 {
		return ErrConnectionClosed
	}

	frame := make([]byte, quicFrameHeader+len(data))
	binary.BigEndian.PutUint32(frame, uint32(len(data)))
	copy(frame[quicFrameHeader:], data)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.stream.Write(frame); err != nil {
		return errors.Wrap(err, "failed to write frame")
	}
	return nil
}

func (c *quicConn) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	_ = c.stream.Close()
	return c.conn.CloseWithError(0, "client disconnect")
}

func (c *quicConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
