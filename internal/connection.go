package internal

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
	amqpError "github.com/aleybovich/carrot-amqp/amqperror"
	"github.com/aleybovich/carrot-amqp/config"
	"github.com/aleybovich/carrot-amqp/logger"
	"github.com/aleybovich/carrot-amqp/protocol"
	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/net/proxy"
)

const maxChannelID = protocol.MaxChannelID

// Transport is the byte pipe under a connection. Inbound bytes are handed to
// Connection.Receive by whoever owns the transport.
type Transport interface {
	Send(data []byte) error
	Close() error
}

type ConnectionStatus int

const (
	ConnectionOpening ConnectionStatus = iota
	ConnectionOpened
	ConnectionClosing
	ConnectionClosed
)

func (s ConnectionStatus) String() string {
	switch s {
	case ConnectionOpening:
		return "opening"
	case ConnectionOpened:
		return "opened"
	case ConnectionClosing:
		return "closing"
	case ConnectionClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

type handshakePhase int

const (
	phaseAwaitingStart handshakePhase = iota
	phaseAuthenticating
	phaseOpening
	phaseDone
)

// connection events
const (
	evOpen                = "open"
	evClose               = "close"
	evCloseOk             = "close_ok"
	evError               = "error"
	evTCPConnectionLost   = "tcp_connection_lost"
	evTCPConnectionFailed = "tcp_connection_failed"
	evPossibleAuthFailure = "possible_authentication_failure"
	evInterruption        = "interruption"
	evBeforeRecovery      = "before_recovery"
	evAfterRecovery       = "after_recovery"
	evSkippedHeartbeats   = "skipped_heartbeats"
	evBlocked             = "blocked"
	evUnblocked           = "unblocked"
)

// Connection is one AMQP session over one transport
type Connection struct {
	settings config.Settings
	log      logger.Logger
	logCfg   config.LoggingConfig
	handlers *handlerRegistry
	clock    clock.Clock
	auth     AuthMechanism
	metrics  *metrics

	meterProvider metric.MeterProvider
	dialer        proxy.ContextDialer
	newBackOff    func() backoff.BackOff
	driver        *tcpDriver

	callbacks *callbacks
	ids       *channelIDAllocator

	// writeMu keeps the frames of one send contiguous on the wire
	writeMu sync.Mutex

	mu             sync.Mutex
	status         ConnectionStatus
	phase          handshakePhase
	tcpEstablished bool
	everConnected  bool
	everOpened     bool
	reconnecting   bool
	terminated     bool // closed for good, by the client or by a broker exception
	transport      Transport
	readBuf        []byte
	frames         *framesetBuffer

	channelMax uint16
	frameMax   uint32
	heartbeat  uint16

	serverProperties protocol.Table
	serverMechanisms []string
	serverLocales    []string
	blocked          bool

	channels map[uint16]*Channel
	dormant  []*Channel          // auto-recovering channels closed by an exception
	retiring map[uint16]struct{} // ids waiting for a close-ok before release
	deferred []func()            // channel opens requested before the connection was open
	openSig  *signal
	hb       *heartbeater
}

// NewConnection builds a connection that is not attached to any transport yet.
// Use Connect to dial, or attach a transport with TCPConnected.
func NewConnection(settings config.Settings, opts ...ConnectionOption) (*Connection, error) {
	settings, err := settings.WithDefaults()
	if err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid connection settings: %w", err)
	}

	c := &Connection{
		settings:   settings,
		clock:      clock.NewClock(),
		newBackOff: defaultBackOff,
		callbacks:  newCallbacks(),
		ids:        newChannelIDAllocator(settings.ChannelMax),
		frames:     newFramesetBuffer(),
		status:     ConnectionOpening,
		channels:   make(map[uint16]*Channel),
		retiring:   make(map[uint16]struct{}),
		openSig:    newSignal(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.logCfg.Validate(); err != nil {
		return nil, err
	}
	c.log = c.logCfg.Logger(logger.NewStdLogger(nil))

	if c.handlers == nil {
		c.handlers = defaultHandlerRegistry()
	}

	c.auth, err = authMechanismFor(settings.AuthMechanism)
	if err != nil {
		return nil, err
	}

	if c.meterProvider == nil {
		c.meterProvider = otel.GetMeterProvider()
	}
	c.metrics, err = newMetrics(c.meterProvider)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// Settings returns the effective settings, defaults applied
func (c *Connection) Settings() config.Settings { return c.settings }

// Logger returns the logger used by the connection
func (c *Connection) Logger() logger.Logger { return c.log }

func (c *Connection) Status() ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Connection) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status == ConnectionOpened && c.tcpEstablished
}

// IsBlocked reports whether the broker has blocked publishing with connection.blocked
func (c *Connection) IsBlocked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blocked
}

// Tuning returns the negotiated channel_max, frame_max and heartbeat interval
func (c *Connection) Tuning() (channelMax uint16, frameMax uint32, heartbeat uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channelMax, c.frameMax, c.heartbeat
}

func (c *Connection) ServerProperties() protocol.Table {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverProperties
}

func (c *Connection) ServerMechanisms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.serverMechanisms)
}

func (c *Connection) ServerLocales() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.serverLocales)
}

// WaitUntilOpen blocks until the handshake completes, fails, or ctx is done
func (c *Connection) WaitUntilOpen(ctx context.Context) error {
	c.mu.Lock()
	sig := c.openSig
	c.mu.Unlock()
	return sig.wait(ctx)
}

// ---- transport boundary ----

// TCPConnected attaches a freshly connected transport and starts the handshake
func (c *Connection) TCPConnected(t Transport) error {
	c.mu.Lock()
	if c.terminated {
		c.mu.Unlock()
		return ErrConnectionClosed
	}
	c.transport = t
	c.tcpEstablished = true
	c.everConnected = true
	c.status = ConnectionOpening
	c.phase = phaseAwaitingStart
	c.readBuf = nil
	c.frames.reset()
	recovering := c.reconnecting
	c.mu.Unlock()

	if recovering {
		c.log.Info("TCP connection to %s re-established, recovering", c.settings.Addr())
		c.callbacks.exec(evBeforeRecovery, c)
	} else {
		c.log.Info("TCP connection to %s established", c.settings.Addr())
	}

	return c.sendRaw([]byte(protocol.ProtocolHeader))
}

// TCPConnectionFailed reports that a connect attempt never succeeded.
// The returned error is a *TCPConnectionFailedError.
func (c *Connection) TCPConnectionFailed(err error) error {
	ferr := &TCPConnectionFailedError{Addr: c.settings.Addr(), Err: err}

	c.mu.Lock()
	first := !c.everConnected
	if first {
		c.status = ConnectionClosed
	}
	sig := c.openSig
	c.mu.Unlock()

	c.log.Err("TCP connection to %s failed: %v", ferr.Addr, err)
	if !first {
		return ferr
	}

	sig.resolve(ferr)
	if hook := c.settings.OnTCPConnectionFailure; hook != nil {
		hook(c.settings, err)
	}
	c.callbacks.exec(evTCPConnectionFailed, ferr)
	return ferr
}

// TCPConnectionLost reports that an established transport dropped
func (c *Connection) TCPConnectionLost(err error) {
	c.mu.Lock()
	if !c.tcpEstablished {
		c.mu.Unlock()
		return
	}
	c.tcpEstablished = false
	c.transport = nil
	c.readBuf = nil
	c.frames.reset()
	phase := c.phase
	terminated := c.terminated
	status := c.status
	recovering := c.reconnecting && c.everOpened
	// close-oks for retiring ids will never arrive on a new socket
	for id := range c.retiring {
		c.ids.release(id)
	}
	c.retiring = make(map[uint16]struct{})
	c.mu.Unlock()

	c.stopHeartbeat()

	if terminated {
		// close-ok never arrived, or the broker closed first; either way we are done
		c.mu.Lock()
		c.status = ConnectionClosed
		c.mu.Unlock()
		if status == ConnectionClosing {
			c.log.Info("TCP connection closed before close-ok")
			c.shutdown(ErrConnectionClosed)
			c.callbacks.execOnce(evCloseOk, c)
			c.callbacks.exec(evClose, c)
		}
		return
	}

	if phase == phaseAuthenticating || phase == phaseOpening {
		if recovering {
			// a broker still booting may reset during startup; keep recovering
			c.reportPossibleAuthenticationFailure(err)
			c.log.Warn("TCP connection to %s lost during handshake: %v", c.settings.Addr(), err)
			c.callbacks.exec(evTCPConnectionLost, c, err)
			c.interrupt()
			return
		}
		c.mu.Lock()
		c.terminated = true
		c.status = ConnectionClosed
		c.mu.Unlock()
		c.shutdown(ErrConnectionClosed)
		c.possibleAuthenticationFailure(err)
		return
	}

	c.log.Warn("TCP connection to %s lost: %v", c.settings.Addr(), err)
	c.callbacks.exec(evTCPConnectionLost, c, err)
	c.interrupt()
}

// Receive feeds inbound bytes. Frames are decoded and dispatched as soon as
// they are complete; handlers and callbacks run on the calling goroutine.
// Receive must not be called concurrently.
func (c *Connection) Receive(data []byte) error {
	c.mu.Lock()
	c.readBuf = append(c.readBuf, data...)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		// frame_max bounds the whole frame, header and end marker included
		if size, ok := protocol.PayloadSize(c.readBuf); ok && c.frameMax > 0 && uint64(size)+protocol.FrameOverhead > uint64(c.frameMax) {
			c.readBuf = nil
			c.mu.Unlock()
			perr := &ProtocolError{Code: amqpError.FrameError, Reason: fmt.Sprintf("frame size %d exceeds negotiated max %d", uint64(size)+protocol.FrameOverhead, c.frameMax)}
			c.protocolFailure(perr)
			return perr
		}
		raw, ok := protocol.ExtractFrame(c.readBuf)
		if !ok {
			c.mu.Unlock()
			return nil
		}
		frame := make([]byte, len(raw))
		copy(frame, raw)
		c.readBuf = c.readBuf[len(raw):]
		c.mu.Unlock()

		if err := c.handleFrame(frame); err != nil {
			return err
		}
	}
}

func (c *Connection) handleFrame(raw []byte) error {
	f, err := protocol.DecodeFrame(raw)
	if err != nil {
		perr := &ProtocolError{Code: amqpError.FrameError, Reason: "malformed frame", Err: err}
		c.protocolFailure(perr)
		return perr
	}
	c.metrics.frameReceived(f.Type())
	c.touchHeartbeat()

	if _, ok := f.(*protocol.HeartbeatFrame); ok {
		if c.logCfg.HeartbeatLogging {
			c.log.Debug("Received heartbeat")
		}
		return nil
	}

	c.log.Debug("Received frame: type=%s, channel=%d", protocol.FrameTypeName(f.Type()), f.Channel())

	c.mu.Lock()
	fs, err := c.frames.add(f)
	if err != nil {
		c.frames.discard(f.Channel())
	}
	c.mu.Unlock()
	if err != nil {
		var perr *ProtocolError
		if !errors.As(err, &perr) {
			perr = &ProtocolError{ChannelID: f.Channel(), Code: amqpError.UnexpectedFrame, Reason: "unexpected frame", Err: err}
		}
		c.protocolFailure(perr)
		return perr
	}
	if fs == nil {
		return nil
	}
	return c.dispatch(fs)
}

func (c *Connection) dispatch(fs *frameset) error {
	key := fs.method.Key()
	h, ok := c.handlers.lookup(key)
	if !ok {
		perr := &ProtocolError{ChannelID: fs.channelID, Code: amqpError.NotImplemented, Reason: fmt.Sprintf("no handler for %s", key)}
		c.protocolFailure(perr)
		return perr
	}
	c.log.Debug("Dispatching %s on channel %d", key, fs.channelID)
	return h(c, fs)
}

// protocolFailure closes the connection after a frame the client cannot handle
func (c *Connection) protocolFailure(perr *ProtocolError) {
	c.log.Err("%v", perr)

	c.mu.Lock()
	if c.status == ConnectionClosing || c.status == ConnectionClosed {
		c.mu.Unlock()
		return
	}
	c.status = ConnectionClosing
	c.terminated = true
	c.mu.Unlock()

	closeMethod := &protocol.ConnectionClose{ReplyCode: perr.Code.Code(), ReplyText: perr.Reason}
	if err := c.sendMethod(0, closeMethod); err != nil {
		c.log.Err("Failed to send connection.close: %v", err)
	}
}

// ---- sending ----

func (c *Connection) currentTransport() (Transport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transport == nil || !c.tcpEstablished {
		return nil, ErrConnectionClosed
	}
	return c.transport, nil
}

func (c *Connection) sendRaw(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	t, err := c.currentTransport()
	if err != nil {
		return err
	}
	return t.Send(data)
}

// sendFrames writes frames back to back; no other send is interleaved
func (c *Connection) sendFrames(frames ...[]byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	t, err := c.currentTransport()
	if err != nil {
		return err
	}
	for _, f := range frames {
		if err := t.Send(f); err != nil {
			return fmt.Errorf("sending frame: %w", err)
		}
		c.metrics.frameSent(f[0])
	}
	return nil
}

func (c *Connection) sendMethod(channelID uint16, m protocol.Method) error {
	raw, err := (&protocol.MethodFrame{ChannelID: channelID, Method: m}).Encode()
	if err != nil {
		return err
	}
	c.log.Debug("Sending %s on channel %d", m.Key(), channelID)
	return c.sendFrames(raw)
}

func (c *Connection) closeTransport() {
	c.mu.Lock()
	t := c.transport
	c.mu.Unlock()
	if t != nil {
		if err := t.Close(); err != nil {
			c.log.Debug("Closing transport: %v", err)
		}
	}
}

func (c *Connection) negotiatedFrameMax() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frameMax == 0 {
		return protocol.DefaultFrameMax
	}
	return c.frameMax
}

// ---- client operations ----

// Close starts a client initiated close. cb fires once the broker confirms with close-ok.
func (c *Connection) Close(cb func()) error {
	c.mu.Lock()
	if c.status == ConnectionClosing || c.status == ConnectionClosed {
		c.mu.Unlock()
		return ErrConnectionClosed
	}
	c.terminated = true
	if !c.tcpEstablished {
		c.status = ConnectionClosed
		c.mu.Unlock()
		c.shutdown(ErrConnectionClosed)
		if cb != nil {
			cb()
		}
		c.callbacks.exec(evClose, c)
		return nil
	}
	c.status = ConnectionClosing
	c.mu.Unlock()

	if cb != nil {
		c.callbacks.append(evCloseOk, func(...any) { cb() })
	}
	return c.sendMethod(0, &protocol.ConnectionClose{ReplyCode: protocol.ReplySuccess, ReplyText: "Goodbye"})
}

// OpenChannel allocates a channel and sends channel.open, or defers the open
// until the connection handshake completes.
func (c *Connection) OpenChannel(opts ...ChannelOption) (*Channel, error) {
	s := channelSettings{autoRecovery: c.settings.AutoRecovery}
	for _, opt := range opts {
		opt(&s)
	}

	c.mu.Lock()
	terminated := c.terminated
	c.mu.Unlock()
	if terminated {
		return nil, ErrConnectionClosed
	}

	id := s.id
	var err error
	if id == 0 {
		id, err = c.ids.next()
	} else {
		err = c.ids.reserve(id)
	}
	if err != nil {
		return nil, err
	}

	ch := newChannel(c, id, s.autoRecovery)
	if s.onOpen != nil {
		ch.OnOpen(s.onOpen)
	}

	c.mu.Lock()
	c.channels[id] = ch
	ready := c.status == ConnectionOpened && c.tcpEstablished
	if !ready {
		c.deferred = append(c.deferred, func() {
			if err := ch.open(); err != nil {
				c.log.Err("Deferred open of channel %d failed: %v", ch.ID(), err)
			}
		})
	}
	c.mu.Unlock()

	if ready {
		if err := ch.open(); err != nil {
			c.forgetChannel(ch, id)
			return nil, err
		}
	}
	return ch, nil
}

// Channel returns the channel registered under id
func (c *Connection) Channel(id uint16) (*Channel, bool) {
	ch := c.channel(id)
	return ch, ch != nil
}

func (c *Connection) channel(id uint16) *Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channels[id]
}

func (c *Connection) sortedChannels() []*Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]uint16, 0, len(c.channels))
	for id := range c.channels {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]*Channel, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.channels[id])
	}
	return out
}

// forgetChannel removes ch from the channel map and releases id
func (c *Connection) forgetChannel(ch *Channel, id uint16) {
	c.mu.Lock()
	if c.channels[id] == ch {
		delete(c.channels, id)
	}
	_, retiring := c.retiring[id]
	c.mu.Unlock()
	if !retiring {
		c.ids.release(id)
	}
}

// ---- callbacks ----

// OnOpen registers a callback fired when the first handshake completes
func (c *Connection) OnOpen(fn func(*Connection)) {
	c.callbacks.append(evOpen, func(args ...any) { fn(args[0].(*Connection)) })
}

// OnClose registers a callback fired once the connection is closed for good
func (c *Connection) OnClose(fn func(*Connection)) {
	c.callbacks.append(evClose, func(args ...any) { fn(args[0].(*Connection)) })
}

// OnError registers the handler for connection.close sent by the broker.
// Without one, such an exception panics.
func (c *Connection) OnError(fn func(*Connection, *ConnectionError)) {
	c.callbacks.append(evError, func(args ...any) { fn(args[0].(*Connection), args[1].(*ConnectionError)) })
}

func (c *Connection) OnTCPConnectionLost(fn func(*Connection, error)) {
	c.callbacks.append(evTCPConnectionLost, func(args ...any) {
		err, _ := args[1].(error)
		fn(args[0].(*Connection), err)
	})
}

func (c *Connection) OnTCPConnectionFailed(fn func(*TCPConnectionFailedError)) {
	c.callbacks.append(evTCPConnectionFailed, func(args ...any) { fn(args[0].(*TCPConnectionFailedError)) })
}

func (c *Connection) OnPossibleAuthenticationFailure(fn func(*PossibleAuthenticationFailureError)) {
	c.callbacks.append(evPossibleAuthFailure, func(args ...any) { fn(args[0].(*PossibleAuthenticationFailureError)) })
}

// OnInterruption fires after a TCP drop has been broadcast to every channel
func (c *Connection) OnInterruption(fn func(*Connection)) {
	c.callbacks.append(evInterruption, func(args ...any) { fn(args[0].(*Connection)) })
}

func (c *Connection) BeforeRecovery(fn func(*Connection)) {
	c.callbacks.append(evBeforeRecovery, func(args ...any) { fn(args[0].(*Connection)) })
}

func (c *Connection) AfterRecovery(fn func(*Connection)) {
	c.callbacks.append(evAfterRecovery, func(args ...any) { fn(args[0].(*Connection)) })
}

// OnSkippedHeartbeats fires when nothing was received for two heartbeat intervals.
// The connection is not closed; what to do is up to the callback.
func (c *Connection) OnSkippedHeartbeats(fn func(*Connection, time.Duration)) {
	c.callbacks.append(evSkippedHeartbeats, func(args ...any) { fn(args[0].(*Connection), args[1].(time.Duration)) })
}

func (c *Connection) OnBlocked(fn func(c *Connection, reason string)) {
	c.callbacks.append(evBlocked, func(args ...any) { fn(args[0].(*Connection), args[1].(string)) })
}

func (c *Connection) OnUnblocked(fn func(*Connection)) {
	c.callbacks.append(evUnblocked, func(args ...any) { fn(args[0].(*Connection)) })
}

// ---- lifecycle helpers ----

// possibleAuthenticationFailure ends a connection that never got past the handshake
func (c *Connection) possibleAuthenticationFailure(cause error) {
	c.mu.Lock()
	sig := c.openSig
	c.mu.Unlock()

	aerr := c.reportPossibleAuthenticationFailure(cause)
	sig.resolve(aerr)
	c.callbacks.exec(evClose, c)
}

// reportPossibleAuthenticationFailure logs and fires the hooks without changing state
func (c *Connection) reportPossibleAuthenticationFailure(cause error) *PossibleAuthenticationFailureError {
	aerr := &PossibleAuthenticationFailureError{
		User:      c.settings.User,
		VHost:     c.settings.VHost,
		Mechanism: c.auth.Name(),
		Err:       cause,
	}
	c.log.Err("%v", aerr)

	if hook := c.settings.OnPossibleAuthenticationFailure; hook != nil {
		hook(c.settings)
	}
	c.callbacks.exec(evPossibleAuthFailure, aerr)
	return aerr
}

// interrupt broadcasts a TCP drop to the channels and arms recovery
func (c *Connection) interrupt() {
	c.mu.Lock()
	c.status = ConnectionClosed
	if c.settings.AutoRecovery {
		c.reconnecting = true
	}
	if c.openSig.resolved() {
		c.openSig = newSignal()
	}
	c.mu.Unlock()

	for _, ch := range c.sortedChannels() {
		ch.handleConnectionInterruption()
	}
	c.callbacks.exec(evInterruption, c)
}

// shutdown closes every channel after the connection ended for good
func (c *Connection) shutdown(reason error) {
	c.stopHeartbeat()

	c.mu.Lock()
	channels := make([]*Channel, 0, len(c.channels)+len(c.dormant))
	for _, ch := range c.channels {
		channels = append(channels, ch)
	}
	channels = append(channels, c.dormant...)
	c.channels = make(map[uint16]*Channel)
	c.dormant = nil
	c.deferred = nil
	c.frames.reset()
	c.readBuf = nil
	c.mu.Unlock()

	for _, ch := range channels {
		c.ids.release(ch.ID())
		ch.handleConnectionClosed(reason)
	}
}

func (c *Connection) shouldReconnect() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconnecting && !c.terminated && !c.tcpEstablished
}

func (c *Connection) isReconnecting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconnecting
}

func (c *Connection) isTCPEstablished() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tcpEstablished
}
