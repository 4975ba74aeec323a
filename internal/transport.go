package internal

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/aleybovich/carrot-amqp/config"
	"github.com/cenkalti/backoff/v4"
	"golang.org/x/net/proxy"
)

const readBufferSize = 64 * 1024

type tcpTransport struct {
	conn net.Conn
}

func (t *tcpTransport) Send(data []byte) error {
	_, err := t.conn.Write(data)
	return err
}

func (t *tcpTransport) Close() error {
	return t.conn.Close()
}

// dialerAdapter lets a context dialer forward connections for proxy.FromURL
type dialerAdapter struct {
	proxy.ContextDialer
}

func (d dialerAdapter) Dial(network, addr string) (net.Conn, error) {
	return d.DialContext(context.Background(), network, addr)
}

// tcpDriver owns the socket side of a Connection: dialing, the read loop and reconnects
type tcpDriver struct {
	c            *Connection
	reconnecting atomic.Bool
}

func (d *tcpDriver) dialer() (proxy.ContextDialer, error) {
	var base proxy.ContextDialer = &net.Dialer{KeepAlive: 30 * time.Second}
	if d.c.dialer != nil {
		base = d.c.dialer
	}

	settings := d.c.settings
	if settings.Proxy == "" {
		return base, nil
	}
	u, err := url.Parse(settings.Proxy)
	if err != nil {
		return nil, fmt.Errorf("parsing proxy url: %w", err)
	}
	pd, err := proxy.FromURL(u, dialerAdapter{base})
	if err != nil {
		return nil, fmt.Errorf("creating proxy dialer: %w", err)
	}
	cd, ok := pd.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("proxy dialer for %s does not support contexts", u.Scheme)
	}
	return cd, nil
}

func (d *tcpDriver) dial(ctx context.Context) (net.Conn, error) {
	settings := d.c.settings
	if settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, settings.Timeout)
		defer cancel()
	}

	dialer, err := d.dialer()
	if err != nil {
		return nil, err
	}
	conn, err := dialer.DialContext(ctx, "tcp", settings.Addr())
	if err != nil {
		return nil, err
	}
	if !settings.SSL {
		return conn, nil
	}

	cfg := &tls.Config{}
	if settings.TLSConfig != nil {
		cfg = settings.TLSConfig.Clone()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = settings.Host
	}
	tlsConn := tls.Client(conn, cfg)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tls handshake: %w", err)
	}
	return tlsConn, nil
}

// connect dials once, attaches the transport and starts reading
func (d *tcpDriver) connect(ctx context.Context) error {
	conn, err := d.dial(ctx)
	if err != nil {
		return err
	}
	if err := d.c.TCPConnected(&tcpTransport{conn: conn}); err != nil {
		conn.Close()
		return err
	}
	go d.readLoop(conn)
	return nil
}

func (d *tcpDriver) readLoop(conn net.Conn) {
	buf := make([]byte, readBufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			if rerr := d.c.Receive(buf[:n]); rerr != nil {
				d.c.log.Err("Handling inbound data: %v", rerr)
			}
		}
		if err != nil {
			d.c.TCPConnectionLost(err)
			break
		}
	}
	conn.Close()

	if d.c.shouldReconnect() {
		go d.reconnect(context.Background())
	}
}

// reconnect retries connect with backoff until it succeeds or the connection is closed for good
func (d *tcpDriver) reconnect(ctx context.Context) {
	if !d.reconnecting.CompareAndSwap(false, true) {
		return
	}
	defer d.reconnecting.Store(false)

	b := backoff.WithContext(d.c.newBackOff(), ctx)
	err := backoff.RetryNotify(func() error {
		if !d.c.shouldReconnect() {
			return backoff.Permanent(ErrConnectionClosed)
		}
		return d.connect(ctx)
	}, b, func(err error, wait time.Duration) {
		d.c.log.Warn("Reconnect to %s failed: %v, retrying in %s", d.c.settings.Addr(), err, wait)
	})
	if err != nil && !errors.Is(err, ErrConnectionClosed) {
		d.c.log.Err("Giving up reconnecting to %s: %v", d.c.settings.Addr(), err)
	}
}

// Dial opens the TCP connection and starts the handshake. Use WaitUntilOpen to
// block until the connection is usable.
func (c *Connection) Dial(ctx context.Context) error {
	c.mu.Lock()
	if c.driver == nil {
		c.driver = &tcpDriver{c: c}
	}
	d := c.driver
	c.mu.Unlock()

	if err := d.connect(ctx); err != nil {
		return c.TCPConnectionFailed(err)
	}
	return nil
}

// Reconnect dials again after the TCP connection was lost. Auto-recovering
// channels are recovered once the new handshake completes.
func (c *Connection) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.terminated {
		c.mu.Unlock()
		return ErrConnectionClosed
	}
	if c.tcpEstablished {
		c.mu.Unlock()
		return nil
	}
	if c.driver == nil {
		c.driver = &tcpDriver{c: c}
	}
	c.reconnecting = true
	d := c.driver
	c.mu.Unlock()

	return d.connect(ctx)
}

// Connect dials the broker described by settings
func Connect(ctx context.Context, settings config.Settings, opts ...ConnectionOption) (*Connection, error) {
	c, err := NewConnection(settings, opts...)
	if err != nil {
		return nil, err
	}
	if err := c.Dial(ctx); err != nil {
		return nil, err
	}
	return c, nil
}
