package transport

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// WebSocketDialer opens text-frame JSON connections with gorilla/websocket.
type WebSocketDialer struct {
	dialer       *websocket.Dialer
	writeTimeout time.Duration
	readLimit    int64
}

func NewWebSocketDialer(cfg Config) *WebSocketDialer {
	return &WebSocketDialer{
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.DialTimeout,
			ReadBufferSize:   64 * 1024,
			WriteBufferSize:  4 * 1024,
		},
		writeTimeout: cfg.WriteTimeout,
		readLimit:    cfg.MaxMessageSize,
	}
}

func (d *WebSocketDialer) Dial(ctx context.Context, rawURL string) (Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, rawURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, errors.Wrap(err, "websocket dial failed")
	}
	if d.readLimit > 0 {
		conn.SetReadLimit(d.readLimit)
	}
	return &webSocketConn{conn: conn, writeTimeout: d.writeTimeout}, nil
}

type webSocketConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	closed       int32

	// gorilla allows one concurrent writer
	writeMu sync.Mutex
}

func (c *webSocketConn) ReadFrame() ([]byte, error) {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, errors.Wrap(err, "failed to read frame")
		}
		if messageType == websocket.TextMessage || messageType == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (c *webSocketConn) WriteFrame(data []byte) error {
	if atomic.LoadInt32(&c.closed) == 1 {
		return ErrConnectionClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.Wrap(err, "failed to write frame")
	}
	return nil
}

func (c *webSocketConn) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}

	c.writeMu.Lock()
	closeMessage := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect")
	_ = c.conn.WriteControl(websocket.CloseMessage, closeMessage, time.Now().Add(time.Second))
	c.writeMu.Unlock()

	return c.conn.Close()
}

func (c *webSocketConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
