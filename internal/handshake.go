package internal

import (
	"maps"
	"runtime"
	"strings"

	"github.com/aleybovich/carrot-amqp/protocol"
)

const (
	productName    = "carrot-amqp"
	productVersion = "1.0.0"
)

// negotiate picks the tuning value both peers can live with. Zero means
// "no limit" on that side, so the other side's value wins.
func negotiate[T ~uint16 | ~uint32](client, server T) T {
	if client == 0 || server == 0 {
		return max(client, server)
	}
	return min(client, server)
}

func (c *Connection) clientProperties() protocol.Table {
	props := protocol.Table{
		"product":  productName,
		"version":  productVersion,
		"platform": "Go " + runtime.Version(),
		"capabilities": protocol.Table{
			"publisher_confirms":           true,
			"consumer_cancel_notify":       true,
			"exchange_exchange_bindings":   true,
			"basic.nack":                   true,
			"connection.blocked":           true,
			"authentication_failure_close": true,
		},
	}
	maps.Copy(props, c.settings.ClientProperties)
	return props
}

func handleConnectionStart(c *Connection, fs *frameset) error {
	m := fs.method.(*protocol.ConnectionStart)
	c.log.Info("Received connection.start: version %d.%d, mechanisms %q", m.VersionMajor, m.VersionMinor, m.Mechanisms)

	mechanisms := strings.Fields(m.Mechanisms)
	c.mu.Lock()
	c.serverProperties = m.ServerProperties
	c.serverMechanisms = mechanisms
	c.serverLocales = strings.Fields(m.Locales)
	c.mu.Unlock()

	if !containsFold(mechanisms, c.auth.Name()) {
		c.log.Warn("Broker does not offer %s (offers %q), trying anyway", c.auth.Name(), m.Mechanisms)
	}

	response, err := c.auth.Response(c.settings.User, c.settings.Password)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.phase = phaseAuthenticating
	c.mu.Unlock()

	return c.sendMethod(0, &protocol.ConnectionStartOk{
		ClientProperties: c.clientProperties(),
		Mechanism:        c.auth.Name(),
		Response:         response,
		Locale:           c.settings.Locale,
	})
}

func handleConnectionSecure(c *Connection, fs *frameset) error {
	m := fs.method.(*protocol.ConnectionSecure)
	c.log.Debug("Received connection.secure challenge")
	response, err := c.auth.Challenge(m.Challenge, c.settings.User, c.settings.Password)
	if err != nil {
		return err
	}
	return c.sendMethod(0, &protocol.ConnectionSecureOk{Response: response})
}

func handleConnectionTune(c *Connection, fs *frameset) error {
	m := fs.method.(*protocol.ConnectionTune)

	channelMax := negotiate(c.settings.ChannelMax, m.ChannelMax)
	frameMax := negotiate(c.settings.FrameMax, m.FrameMax)
	heartbeat := negotiate(c.settings.Heartbeat, m.Heartbeat)
	c.log.Info("Tuning: channel_max=%d frame_max=%d heartbeat=%ds (broker proposed %d/%d/%d)",
		channelMax, frameMax, heartbeat, m.ChannelMax, m.FrameMax, m.Heartbeat)

	c.mu.Lock()
	c.channelMax = channelMax
	c.frameMax = frameMax
	c.heartbeat = heartbeat
	c.phase = phaseOpening
	c.mu.Unlock()
	c.ids.limit(channelMax)

	if err := c.sendMethod(0, &protocol.ConnectionTuneOk{ChannelMax: channelMax, FrameMax: frameMax, Heartbeat: heartbeat}); err != nil {
		return err
	}
	return c.sendMethod(0, &protocol.ConnectionOpen{VirtualHost: c.settings.VHost})
}

func handleConnectionOpenOk(c *Connection, fs *frameset) error {
	c.mu.Lock()
	c.status = ConnectionOpened
	c.phase = phaseDone
	c.everOpened = true
	recovering := c.reconnecting
	c.reconnecting = false
	deferred := c.deferred
	c.deferred = nil
	sig := c.openSig
	heartbeat := c.heartbeat
	c.mu.Unlock()

	c.log.Info("Connection to %s opened, vhost %s", c.settings.Addr(), c.settings.VHost)
	sig.resolve(nil)
	c.startHeartbeat(heartbeat)

	if recovering {
		c.autoRecover()
	}
	for _, open := range deferred {
		open()
	}

	if recovering {
		c.metrics.recovered()
		c.callbacks.exec(evAfterRecovery, c)
	} else {
		c.callbacks.exec(evOpen, c)
	}
	return nil
}

func handleConnectionClose(c *Connection, fs *frameset) error {
	m := fs.method.(*protocol.ConnectionClose)
	cerr := &ConnectionError{ReplyCode: m.ReplyCode, ReplyText: m.ReplyText, ClassID: m.ClassId, MethodID: m.MethodId}
	if cerr.Code().IsSoftError() {
		c.log.Warn("Broker closed the connection with channel-level code %s", cerr.Code())
	}

	if err := c.sendMethod(0, &protocol.ConnectionCloseOk{}); err != nil {
		c.log.Warn("Failed to send connection.close-ok: %v", err)
	}

	c.mu.Lock()
	duringHandshake := c.phase != phaseDone
	c.status = ConnectionClosed
	c.terminated = true
	c.mu.Unlock()

	c.shutdown(cerr)
	defer c.closeTransport()

	if duringHandshake {
		c.possibleAuthenticationFailure(cerr)
		return nil
	}

	c.log.Err("%v", cerr)
	c.mu.Lock()
	sig := c.openSig
	c.mu.Unlock()
	sig.resolve(cerr)

	if !c.callbacks.exec(evError, c, cerr) {
		panic(cerr)
	}
	c.callbacks.exec(evClose, c)
	return nil
}

func handleConnectionCloseOk(c *Connection, fs *frameset) error {
	c.mu.Lock()
	c.status = ConnectionClosed
	c.terminated = true
	c.mu.Unlock()

	c.log.Info("Connection to %s closed", c.settings.Addr())
	c.shutdown(ErrConnectionClosed)
	c.closeTransport()
	c.callbacks.execOnce(evCloseOk, c)
	c.callbacks.exec(evClose, c)
	return nil
}

func handleConnectionBlocked(c *Connection, fs *frameset) error {
	m := fs.method.(*protocol.ConnectionBlocked)
	c.mu.Lock()
	c.blocked = true
	c.mu.Unlock()
	c.log.Warn("Connection blocked by broker: %s", m.Reason)
	c.callbacks.exec(evBlocked, c, m.Reason)
	return nil
}

func handleConnectionUnblocked(c *Connection, fs *frameset) error {
	c.mu.Lock()
	c.blocked = false
	c.mu.Unlock()
	c.log.Info("Connection unblocked by broker")
	c.callbacks.exec(evUnblocked, c)
	return nil
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}
