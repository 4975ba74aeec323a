// Package carrotamqp provides the public API of an asynchronous AMQP 0.9.1 client.
// A Connection multiplexes channels over one TCP connection; every request that
// the broker answers takes a callback, and channels, queues and consumers
// automatically recover after a network drop when auto-recovery is enabled.
package carrotamqp

import (
	"context"

	"code.cloudfoundry.org/clock"
	"github.com/aleybovich/carrot-amqp/config"
	"github.com/aleybovich/carrot-amqp/internal"
	"github.com/aleybovich/carrot-amqp/logger"
	"github.com/aleybovich/carrot-amqp/protocol"
	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/net/proxy"
)

type (
	Connection       = internal.Connection
	ConnectionStatus = internal.ConnectionStatus
	Channel          = internal.Channel
	Exchange         = internal.Exchange
	Queue            = internal.Queue
	Consumer         = internal.Consumer
	Delivery         = internal.Delivery
	Return           = internal.Return
	Publishing       = internal.Publishing
	Binding          = internal.Binding
	ExchangeBinding  = internal.ExchangeBinding

	ExchangeOptions    = internal.ExchangeOptions
	QueueOptions       = internal.QueueOptions
	QueueDeleteOptions = internal.QueueDeleteOptions
	ConsumeOptions     = internal.ConsumeOptions

	// Transport lets callers drive a Connection over their own byte pipe
	Transport     = internal.Transport
	AuthMechanism = internal.AuthMechanism

	ConnectionOption = internal.ConnectionOption
	ChannelOption    = internal.ChannelOption

	ConnectionError                    = internal.ConnectionError
	ChannelError                       = internal.ChannelError
	TCPConnectionFailedError           = internal.TCPConnectionFailedError
	PossibleAuthenticationFailureError = internal.PossibleAuthenticationFailureError
	ProtocolError                      = internal.ProtocolError

	Settings   = config.Settings
	Properties = protocol.Properties
	Table      = protocol.Table
)

const (
	ConnectionOpening = internal.ConnectionOpening
	ConnectionOpened  = internal.ConnectionOpened
	ConnectionClosing = internal.ConnectionClosing
	ConnectionClosed  = internal.ConnectionClosed

	ExchangeDirect  = internal.ExchangeDirect
	ExchangeFanout  = internal.ExchangeFanout
	ExchangeTopic   = internal.ExchangeTopic
	ExchangeHeaders = internal.ExchangeHeaders

	Transient  = protocol.Transient
	Persistent = protocol.Persistent
)

var (
	ErrChannelIDOutOfRange   = internal.ErrChannelIDOutOfRange
	ErrNoFreeChannelIDs      = internal.ErrNoFreeChannelIDs
	ErrChannelClosed         = internal.ErrChannelClosed
	ErrConnectionClosed      = internal.ErrConnectionClosed
	ErrDuplicateSubscription = internal.ErrDuplicateSubscription
	ErrConsumerTagInUse      = internal.ErrConsumerTagInUse
	ErrNilArgument           = internal.ErrNilArgument
	ErrPredefinedExchange    = internal.ErrPredefinedExchange
)

// Connect dials the broker and starts the handshake. The returned connection
// may still be opening; use WaitUntilOpen or OnOpen.
//
// Example:
//
//	conn, err := carrotamqp.Connect(ctx, carrotamqp.DefaultSettings())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ch, _ := conn.OpenChannel()
//	q, _ := ch.DeclareQueue("q1", carrotamqp.QueueOptions{}, nil)
//	q.Subscribe(func(d *carrotamqp.Delivery) { fmt.Println(string(d.Body)) })
func Connect(ctx context.Context, settings Settings, opts ...ConnectionOption) (*Connection, error) {
	return internal.Connect(ctx, settings, opts...)
}

// ConnectURI is Connect with settings parsed from an amqp:// or amqps:// URI
func ConnectURI(ctx context.Context, uri string, opts ...ConnectionOption) (*Connection, error) {
	settings, err := config.ParseURI(uri)
	if err != nil {
		return nil, err
	}
	return internal.Connect(ctx, settings, opts...)
}

// NewConnection creates a connection without dialing. Call Dial, or attach
// your own transport with TCPConnected and feed it with Receive.
func NewConnection(settings Settings, opts ...ConnectionOption) (*Connection, error) {
	return internal.NewConnection(settings, opts...)
}

func DefaultSettings() Settings {
	return config.DefaultSettings()
}

func ParseURI(uri string) (Settings, error) {
	return config.ParseURI(uri)
}

// RegisterAuthMechanism makes an additional SASL mechanism available by name
func RegisterAuthMechanism(name string, factory func() AuthMechanism) {
	internal.RegisterAuthMechanism(name, factory)
}

// WithLogger sets a custom logger that implements the logger.Logger interface.
// If not used, a default logger that writes to stdout will be used.
func WithLogger(l logger.Logger) ConnectionOption {
	return internal.WithLogger(l)
}

func WithLoggingConfig(cfg config.LoggingConfig) ConnectionOption {
	return internal.WithLoggingConfig(cfg)
}

// WithClock replaces the clock driving heartbeats, mostly for tests
func WithClock(clk clock.Clock) ConnectionOption {
	return internal.WithClock(clk)
}

func WithMeterProvider(mp metric.MeterProvider) ConnectionOption {
	return internal.WithMeterProvider(mp)
}

func WithDialer(d proxy.ContextDialer) ConnectionOption {
	return internal.WithDialer(d)
}

// WithReconnectBackOff sets the pacing of automatic reconnect attempts
func WithReconnectBackOff(newBackOff func() backoff.BackOff) ConnectionOption {
	return internal.WithReconnectBackOff(newBackOff)
}

func WithChannelID(id uint16) ChannelOption {
	return internal.WithChannelID(id)
}

func WithChannelAutoRecovery(enabled bool) ChannelOption {
	return internal.WithChannelAutoRecovery(enabled)
}

func WithOnChannelOpen(fn func(*Channel)) ChannelOption {
	return internal.WithOnChannelOpen(fn)
}
