package transport

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/binary"
	"encoding/pem"
	"io"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func selfSignedTLS(t *testing.T, alpn string) *tls.Config {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{Organization: []string{"agentecs-viz test"}},
		NotBefore:    time.Now().Add(-time.Minute),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:  []net.IP{net.IPv4(127, 0, 0, 1)},
	}
	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	require.NoError(t, err)

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	require.NoError(t, err)

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{alpn},
		MinVersion:   tls.VersionTLS13,
	}
}

func readQUICFrame(r io.Reader) ([]byte, error) {
	var header [quicFrameHeader]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	data := make([]byte, binary.BigEndian.Uint32(header[:]))
	_, err := io.ReadFull(r, data)
	return data, err
}

func writeQUICFrame(w io.Writer, data []byte) error {
	frame := make([]byte, quicFrameHeader+len(data))
	binary.BigEndian.PutUint32(frame, uint32(len(data)))
	copy(frame[quicFrameHeader:], data)
	_, err := w.Write(frame)
	return err
}

func TestQUICDialerFraming(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InsecureSkipVerify = true

	ln, err := quic.ListenAddr("127.0.0.1:0", selfSignedTLS(t, cfg.ALPN), nil)
	require.NoError(t, err)
	defer ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	echoed := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept(ctx)
		if err != nil {
			return
		}
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			return
		}
		data, err := readQUICFrame(stream)
		if err != nil {
			return
		}
		echoed <- data
		_ = writeQUICFrame(stream, []byte(`{"type":"error","message":"hello"}`))
	}()

	conn, err := NewQUICDialer(cfg).Dial(ctx, "quic://"+ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	// The server only sees the stream once the client writes to it.
	require.NoError(t, conn.WriteFrame([]byte(`{"command":"pause"}`)))

	select {
	case data := <-echoed:
		assert.JSONEq(t, `{"command":"pause"}`, string(data))
	case <-ctx.Done():
		t.Fatal("server did not receive frame")
	}

	frame, err := conn.ReadFrame()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","message":"hello"}`, string(frame))

	require.NoError(t, conn.Close())
	assert.ErrorIs(t, conn.WriteFrame([]byte("{}")), ErrConnectionClosed)
}
