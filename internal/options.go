package internal

import (
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/aleybovich/carrot-amqp/config"
	"github.com/aleybovich/carrot-amqp/logger"
	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/net/proxy"
)

// ConnectionOption configures a Connection
type ConnectionOption func(*Connection)

// WithLogger sets the logger used by the connection and its channels
func WithLogger(l logger.Logger) ConnectionOption {
	return func(c *Connection) {
		c.logCfg.CustomLogger = l
	}
}

// WithLoggingConfig replaces the whole logging configuration
func WithLoggingConfig(cfg config.LoggingConfig) ConnectionOption {
	return func(c *Connection) {
		c.logCfg = cfg
	}
}

// WithClock sets the clock driving heartbeats
func WithClock(clk clock.Clock) ConnectionOption {
	return func(c *Connection) {
		c.clock = clk
	}
}

// WithMeterProvider sets where connection counters are recorded
func WithMeterProvider(mp metric.MeterProvider) ConnectionOption {
	return func(c *Connection) {
		c.meterProvider = mp
	}
}

// WithDialer sets the dialer used for TCP connections; a configured proxy wraps it
func WithDialer(d proxy.ContextDialer) ConnectionOption {
	return func(c *Connection) {
		c.dialer = d
	}
}

// WithReconnectBackOff sets the backoff policy for automatic reconnection
func WithReconnectBackOff(newBackOff func() backoff.BackOff) ConnectionOption {
	return func(c *Connection) {
		c.newBackOff = newBackOff
	}
}

func withHandlerRegistry(r *handlerRegistry) ConnectionOption {
	return func(c *Connection) {
		c.handlers = r
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// ChannelOption configures a Channel opened by Connection.OpenChannel
type ChannelOption func(*channelSettings)

type channelSettings struct {
	id           uint16
	autoRecovery bool
	onOpen       func(*Channel)
}

// WithChannelID requests a specific channel id instead of the lowest free one
func WithChannelID(id uint16) ChannelOption {
	return func(s *channelSettings) {
		s.id = id
	}
}

// WithChannelAutoRecovery overrides the connection's auto-recovery setting for one channel
func WithChannelAutoRecovery(enabled bool) ChannelOption {
	return func(s *channelSettings) {
		s.autoRecovery = enabled
	}
}

// WithOnChannelOpen registers a callback fired once the broker confirms the channel
func WithOnChannelOpen(fn func(*Channel)) ChannelOption {
	return func(s *channelSettings) {
		s.onOpen = fn
	}
}
