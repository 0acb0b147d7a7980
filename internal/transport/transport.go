// Package transport opens the TLS byte stream each protocol state machine
// runs over. It owns nothing about framing or handshakes; it only
// guarantees reliable, ordered byte delivery and a single close
// notification.
package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"
)

// Transport is a TLS connection to host:443 with SNI set to host.
// Certificate validation against the system trust store is always on;
// there is no option to disable it.
type Transport struct {
	host string

	mu     sync.Mutex
	conn   *tls.Conn
	reader *bufio.Reader

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
}

// DialTimeout bounds how long the initial TLS handshake may take. The
// feed's own handshake (socket.io polling, then upgrade) has no timeout
// — only the TCP+TLS dial itself is bounded.
const DialTimeout = 10 * time.Second

// Dial opens a TLS connection to host:443.
func Dial(ctx context.Context, host string) (*Transport, error) {
	dialer := &tls.Dialer{
		Config: &tls.Config{
			ServerName: host,
			MinVersion: tls.VersionTLS12,
		},
	}

	dialCtx, cancel := context.WithTimeout(ctx, DialTimeout)
	defer cancel()

	rawConn, err := dialer.DialContext(dialCtx, "tcp", net.JoinHostPort(host, "443"))
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", host, err)
	}

	conn, ok := rawConn.(*tls.Conn)
	if !ok {
		rawConn.Close()
		return nil, fmt.Errorf("transport: dial %s: unexpected connection type", host)
	}

	t := &Transport{
		host:   host,
		conn:   conn,
		reader: bufio.NewReader(conn),
		closed: make(chan struct{}),
	}
	return t, nil
}

// Reader exposes the buffered byte stream for frame/line decoding.
func (t *Transport) Reader() *bufio.Reader {
	return t.reader
}

// Write sends bytes to the server. Safe for concurrent use with Reader
// reads; concurrent Write calls are serialized by an internal mutex.
func (t *Transport) Write(p []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return fmt.Errorf("transport: write to %s: closed", t.host)
	}
	_, err := t.conn.Write(p)
	if err != nil {
		return fmt.Errorf("transport: write to %s: %w", t.host, err)
	}
	return nil
}

// CloseNotify returns a channel closed once the transport has been shut
// down, for any reason. Err returns the reason after that channel fires.
func (t *Transport) CloseNotify() <-chan struct{} {
	return t.closed
}

// Err returns the reason the transport closed, valid only after
// CloseNotify has fired.
func (t *Transport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeErr
}

// Close tears down the underlying connection and records reason as the
// close cause. Idempotent.
func (t *Transport) Close(reason error) {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.closeErr = reason
		if t.conn != nil {
			t.conn.Close()
		}
		t.mu.Unlock()
		close(t.closed)
	})
}
