package internal

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/aleybovich/carrot-amqp/config"
	"github.com/aleybovich/carrot-amqp/logger"
	"github.com/aleybovich/carrot-amqp/protocol"
	"github.com/stretchr/testify/require"
)

var errTransportBroken = errors.New("transport broken")

// fakeTransport records every Send call. One Send carries one frame,
// except for the protocol header.
type fakeTransport struct {
	mu     sync.Mutex
	writes [][]byte
	closed bool
	broken bool
}

func (t *fakeTransport) Send(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.broken {
		return errTransportBroken
	}
	t.writes = append(t.writes, append([]byte(nil), data...))
	return nil
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *fakeTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *fakeTransport) setBroken(broken bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.broken = broken
}

func (t *fakeTransport) rawWrites() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([][]byte(nil), t.writes...)
}

// frames decodes everything written so far, skipping the protocol header
func (t *fakeTransport) frames(tb testing.TB) []protocol.Frame {
	tb.Helper()
	var out []protocol.Frame
	for _, raw := range t.rawWrites() {
		if bytes.Equal(raw, []byte(protocol.ProtocolHeader)) {
			continue
		}
		f, err := protocol.DecodeFrame(raw)
		require.NoError(tb, err)
		out = append(out, f)
	}
	return out
}

func (t *fakeTransport) methods(tb testing.TB) []protocol.Method {
	tb.Helper()
	var out []protocol.Method
	for _, f := range t.frames(tb) {
		if mf, ok := f.(*protocol.MethodFrame); ok {
			out = append(out, mf.Method)
		}
	}
	return out
}

// methodNames lists the written methods by name, e.g. "queue.declare"
func (t *fakeTransport) methodNames(tb testing.TB) []string {
	tb.Helper()
	var out []string
	for _, m := range t.methods(tb) {
		out = append(out, m.Key().String())
	}
	return out
}

// lastMethod returns the most recent method of type T
func lastMethod[T protocol.Method](tb testing.TB, t *fakeTransport) T {
	tb.Helper()
	methods := t.methods(tb)
	for i := len(methods) - 1; i >= 0; i-- {
		if m, ok := methods[i].(T); ok {
			return m
		}
	}
	var zero T
	tb.Fatalf("no %T was sent", zero)
	return zero
}

func allMethods[T protocol.Method](tb testing.TB, t *fakeTransport) []T {
	tb.Helper()
	var out []T
	for _, m := range t.methods(tb) {
		if typed, ok := m.(T); ok {
			out = append(out, typed)
		}
	}
	return out
}

func (t *fakeTransport) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writes = nil
}

// fakeBroker scripts the broker side of a Connection over a fakeTransport
type fakeBroker struct {
	t    testing.TB
	c    *Connection
	tr   *fakeTransport
	log  *MockLogger
	tune protocol.ConnectionTune
}

func testSettings() config.Settings {
	s := config.DefaultSettings()
	s.AutoRecovery = true
	return s
}

func newFakeBroker(t *testing.T, settings config.Settings, opts ...ConnectionOption) *fakeBroker {
	t.Helper()
	mock := NewMockLogger(t)
	opts = append([]ConnectionOption{WithLogger(mock)}, opts...)
	c, err := NewConnection(settings, opts...)
	require.NoError(t, err)
	return &fakeBroker{
		t:    t,
		c:    c,
		tr:   &fakeTransport{},
		log:  mock,
		tune: protocol.ConnectionTune{ChannelMax: 2047, FrameMax: protocol.DefaultFrameMax, Heartbeat: 0},
	}
}

// send feeds one method frame to the connection
func (b *fakeBroker) send(channel uint16, m protocol.Method) {
	b.t.Helper()
	raw, err := (&protocol.MethodFrame{ChannelID: channel, Method: m}).Encode()
	require.NoError(b.t, err)
	require.NoError(b.t, b.c.Receive(raw))
}

// sendContent feeds a method with its content header and body frames
func (b *fakeBroker) sendContent(channel uint16, m protocol.Method, props protocol.Properties, body []byte) {
	b.t.Helper()
	frames, err := protocol.EncodeContent(channel, m, props, body, b.c.negotiatedFrameMax())
	require.NoError(b.t, err)
	for _, f := range frames {
		require.NoError(b.t, b.c.Receive(f))
	}
}

// connect attaches the transport and walks the handshake up to, not including, open-ok
func (b *fakeBroker) connect() {
	b.t.Helper()
	require.NoError(b.t, b.c.TCPConnected(b.tr))
	b.send(0, &protocol.ConnectionStart{
		VersionMajor:     0,
		VersionMinor:     9,
		ServerProperties: protocol.Table{"product": "fake-broker"},
		Mechanisms:       "PLAIN AMQPLAIN",
		Locales:          "en_US",
	})
	tune := b.tune
	b.send(0, &tune)
}

// open completes the whole handshake
func (b *fakeBroker) open() {
	b.t.Helper()
	b.connect()
	b.send(0, &protocol.ConnectionOpenOk{})
	require.True(b.t, b.c.IsOpen())
}

// openChannel opens a channel and confirms it
func (b *fakeBroker) openChannel(opts ...ChannelOption) *Channel {
	b.t.Helper()
	ch, err := b.c.OpenChannel(opts...)
	require.NoError(b.t, err)
	b.send(ch.ID(), &protocol.ChannelOpenOk{})
	require.True(b.t, ch.IsOpen())
	return ch
}

// dropTCP simulates the socket going away and a new one being attached
func (b *fakeBroker) dropTCP() {
	b.t.Helper()
	b.c.TCPConnectionLost(errors.New("connection reset by peer"))
	b.tr = &fakeTransport{}
}

var _ logger.Logger = (*MockLogger)(nil)
