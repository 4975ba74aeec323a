package internal

import (
	"strings"
	"sync"

	"github.com/aleybovich/carrot-amqp/protocol"
)

// Exchange types understood by every broker
const (
	ExchangeDirect  = "direct"
	ExchangeFanout  = "fanout"
	ExchangeTopic   = "topic"
	ExchangeHeaders = "headers"
)

type ExchangeOptions struct {
	Passive    bool
	Durable    bool
	AutoDelete bool
	Internal   bool
	NoWait     bool
	Arguments  protocol.Table
}

// ExchangeBinding is an exchange-to-exchange binding with the exchange as destination
type ExchangeBinding struct {
	Source     string
	RoutingKey string
	Arguments  protocol.Table
}

type Exchange struct {
	ch         *Channel
	name       string
	kind       string
	opts       ExchangeOptions
	predefined bool

	mu        sync.Mutex
	requested bool
	deleted   bool
	bindings  []ExchangeBinding
}

// isPredefined reports exchanges the broker declares itself; clients may not redeclare them
func isPredefined(name string) bool {
	return name == "" || strings.HasPrefix(name, "amq.")
}

// DeclareExchange declares an exchange. The default exchange and amq.* exchanges
// are never sent to the broker; cb fires once the channel is open.
func (ch *Channel) DeclareExchange(name, kind string, opts ExchangeOptions, cb func(*Exchange)) (*Exchange, error) {
	if kind == "" && !isPredefined(name) {
		return nil, ErrNilArgument
	}
	ex := &Exchange{ch: ch, name: name, kind: kind, opts: opts, predefined: isPredefined(name)}
	if !ch.acceptsOperations() {
		return nil, ErrChannelClosed
	}
	ch.registerExchange(ex)

	err := ch.whenOpen(func() error { return ex.declare(cb, false) })
	if err != nil {
		ch.removeExchange(ex)
		return nil, err
	}
	return ex, nil
}

// DefaultExchange returns the nameless direct exchange every queue is bound to
func (ch *Channel) DefaultExchange() *Exchange {
	if ex, ok := ch.Exchange(""); ok {
		return ex
	}
	ex := &Exchange{ch: ch, kind: ExchangeDirect, predefined: true, requested: true}
	ch.registerExchange(ex)
	return ex
}

func (ex *Exchange) declare(cb func(*Exchange), recovering bool) error {
	ex.mu.Lock()
	ex.requested = true
	ex.mu.Unlock()

	if ex.predefined {
		if cb != nil {
			cb(ex)
		}
		return nil
	}

	m := &protocol.ExchangeDeclare{
		Exchange:   ex.name,
		Type:       ex.kind,
		Passive:    ex.opts.Passive,
		Durable:    ex.opts.Durable,
		AutoDelete: ex.opts.AutoDelete,
		Internal:   ex.opts.Internal,
		Arguments:  ex.opts.Arguments,
	}
	wait := recovering || (!ex.opts.NoWait && cb != nil)
	m.NoWait = !wait
	return ex.ch.request(m, replyExchangeDeclare, ex, wait, func(*frameset) {
		if cb != nil {
			cb(ex)
		}
	})
}

func (ex *Exchange) Name() string { return ex.name }

func (ex *Exchange) Type() string { return ex.kind }

func (ex *Exchange) Predefined() bool { return ex.predefined }

func (ex *Exchange) Bindings() []ExchangeBinding {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return append([]ExchangeBinding(nil), ex.bindings...)
}

// Publish publishes to this exchange
func (ex *Exchange) Publish(routingKey string, msg Publishing) error {
	return ex.ch.Publish(ex.name, routingKey, msg)
}

// Delete deletes the exchange; the exchange is forgotten right away
func (ex *Exchange) Delete(ifUnused bool, cb func()) error {
	if ex.predefined {
		return ErrPredefinedExchange
	}
	err := ex.ch.whenOpen(func() error {
		m := &protocol.ExchangeDelete{Exchange: ex.name, IfUnused: ifUnused, NoWait: cb == nil}
		return ex.ch.request(m, replyExchangeDelete, ex, cb != nil, func(*frameset) { cb() })
	})
	if err != nil {
		return err
	}
	ex.mu.Lock()
	ex.deleted = true
	ex.mu.Unlock()
	ex.ch.removeExchange(ex)
	return nil
}

// Bind routes messages from source to this exchange
func (ex *Exchange) Bind(source, routingKey string, args protocol.Table, cb func()) error {
	b := ExchangeBinding{Source: source, RoutingKey: routingKey, Arguments: args}
	return ex.ch.whenOpen(func() error { return ex.sendBind(b, cb, true) })
}

func (ex *Exchange) sendBind(b ExchangeBinding, cb func(), record bool) error {
	if record {
		ex.recordBinding(b)
	}
	m := &protocol.ExchangeBind{Destination: ex.name, Source: b.Source, RoutingKey: b.RoutingKey, NoWait: cb == nil, Arguments: b.Arguments}
	return ex.ch.request(m, replyExchangeBind, ex, cb != nil, func(*frameset) {
		if cb != nil {
			cb()
		}
	})
}

// Unbind removes a binding made with Bind
func (ex *Exchange) Unbind(source, routingKey string, args protocol.Table, cb func()) error {
	return ex.ch.whenOpen(func() error {
		ex.mu.Lock()
		ex.bindings = removeBinding(ex.bindings, func(b ExchangeBinding) bool {
			return b.Source == source && b.RoutingKey == routingKey
		})
		ex.mu.Unlock()

		m := &protocol.ExchangeUnbind{Destination: ex.name, Source: source, RoutingKey: routingKey, NoWait: cb == nil, Arguments: args}
		return ex.ch.request(m, replyExchangeUnbind, ex, cb != nil, func(*frameset) {
			if cb != nil {
				cb()
			}
		})
	})
}

func (ex *Exchange) recordBinding(b ExchangeBinding) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	for i, existing := range ex.bindings {
		if existing.Source == b.Source && existing.RoutingKey == b.RoutingKey {
			ex.bindings[i] = b
			return
		}
	}
	ex.bindings = append(ex.bindings, b)
}

func (ex *Exchange) recoverable() bool {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.requested && !ex.deleted
}

func removeBinding[T any](list []T, match func(T) bool) []T {
	out := list[:0:0]
	for _, b := range list {
		if !match(b) {
			out = append(out, b)
		}
	}
	return out
}
