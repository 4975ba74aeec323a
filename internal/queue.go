package internal

import (
	"sync"

	"github.com/aleybovich/carrot-amqp/protocol"
)

type QueueOptions struct {
	Passive    bool
	Durable    bool
	Exclusive  bool
	AutoDelete bool
	NoWait     bool
	Arguments  protocol.Table
}

type QueueDeleteOptions struct {
	IfUnused bool
	IfEmpty  bool
}

// Binding is a queue-to-exchange binding
type Binding struct {
	Exchange   string
	RoutingKey string
	Arguments  protocol.Table
}

// Queue is a queue declared on a channel. Operations on it wait for
// declare-ok when the queue is server-named, and after a recovery.
type Queue struct {
	ch          *Channel
	opts        QueueOptions
	serverNamed bool

	mu              sync.Mutex
	name            string
	requested       bool
	declared        bool
	deleted         bool
	pending         []func() error
	bindings        []Binding
	consumers       []*Consumer
	defaultConsumer *Consumer
}

// DeclareQueue declares a queue; an empty name asks the broker to pick one.
// cb receives the message and consumer counts from declare-ok.
func (ch *Channel) DeclareQueue(name string, opts QueueOptions, cb func(q *Queue, messageCount, consumerCount uint32)) (*Queue, error) {
	if !ch.acceptsOperations() {
		return nil, ErrChannelClosed
	}
	q := &Queue{ch: ch, name: name, opts: opts, serverNamed: name == ""}
	ch.registerQueue(q)

	if err := ch.whenOpen(func() error { return q.declare(cb, false) }); err != nil {
		ch.removeQueue(q)
		return nil, err
	}
	return q, nil
}

func (q *Queue) declare(cb func(*Queue, uint32, uint32), recovering bool) error {
	q.mu.Lock()
	q.requested = true
	name := q.name
	if q.serverNamed && recovering {
		name = ""
	}
	q.mu.Unlock()

	// a server-named queue has no name to use until declare-ok arrives
	wait := recovering || q.serverNamed || (!q.opts.NoWait && cb != nil)
	m := &protocol.QueueDeclare{
		Queue:      name,
		Passive:    q.opts.Passive,
		Durable:    q.opts.Durable,
		Exclusive:  q.opts.Exclusive,
		AutoDelete: q.opts.AutoDelete,
		NoWait:     !wait,
		Arguments:  q.opts.Arguments,
	}

	if !wait {
		if err := q.ch.request(m, replyQueueDeclare, q, false, nil); err != nil {
			return err
		}
		q.markDeclared()
		return nil
	}
	return q.ch.request(m, replyQueueDeclare, q, true, func(fs *frameset) {
		ok := fs.method.(*protocol.QueueDeclareOk)
		q.handleDeclareOk(ok)
		if cb != nil {
			cb(q, ok.MessageCount, ok.ConsumerCount)
		}
	})
}

func (q *Queue) handleDeclareOk(ok *protocol.QueueDeclareOk) {
	q.mu.Lock()
	oldName := q.name
	if ok.Queue != "" {
		q.name = ok.Queue
	}
	newName := q.name
	q.mu.Unlock()

	if oldName != newName {
		q.ch.log.Debug("Queue on channel %d named %s by broker", q.ch.ID(), newName)
	}
	q.ch.renameQueue(q, oldName, newName)
	q.markDeclared()
}

// markDeclared replays operations queued while the declare was in flight
func (q *Queue) markDeclared() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.declared = true
			q.mu.Unlock()
			return
		}
		op := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		if err := op(); err != nil {
			q.ch.log.Err("Deferred operation on queue %s failed: %v", q.Name(), err)
		}
	}
}

// whenDeclared runs op once the queue's declare-ok has been seen
func (q *Queue) whenDeclared(op func() error) error {
	if !q.ch.acceptsOperations() {
		return ErrChannelClosed
	}
	q.mu.Lock()
	if q.deleted {
		q.mu.Unlock()
		return ErrChannelClosed
	}
	if !q.declared {
		q.pending = append(q.pending, op)
		q.mu.Unlock()
		return nil
	}
	q.mu.Unlock()
	return q.ch.whenOpen(op)
}

// interrupted forgets the broker side state; the queue is declared again on recovery
func (q *Queue) interrupted() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.declared = false
}

func (q *Queue) Name() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.name
}

func (q *Queue) ServerNamed() bool { return q.serverNamed }

func (q *Queue) Options() QueueOptions { return q.opts }

func (q *Queue) Declared() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.declared
}

func (q *Queue) Bindings() []Binding {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Binding(nil), q.bindings...)
}

// Bind binds the queue to an exchange
func (q *Queue) Bind(exchange, routingKey string, args protocol.Table, cb func()) error {
	b := Binding{Exchange: exchange, RoutingKey: routingKey, Arguments: args}
	return q.whenDeclared(func() error { return q.sendBind(b, cb, true) })
}

func (q *Queue) sendBind(b Binding, cb func(), record bool) error {
	if record {
		q.recordBinding(b)
	}
	m := &protocol.QueueBind{Queue: q.Name(), Exchange: b.Exchange, RoutingKey: b.RoutingKey, NoWait: cb == nil, Arguments: b.Arguments}
	return q.ch.request(m, replyQueueBind, q, cb != nil, func(*frameset) {
		if cb != nil {
			cb()
		}
	})
}

func (q *Queue) recordBinding(b Binding) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, existing := range q.bindings {
		if existing.Exchange == b.Exchange && existing.RoutingKey == b.RoutingKey {
			q.bindings[i] = b
			return
		}
	}
	q.bindings = append(q.bindings, b)
}

// Unbind removes a binding. queue.unbind has no nowait flag, so the reply is always awaited.
func (q *Queue) Unbind(exchange, routingKey string, args protocol.Table, cb func()) error {
	return q.whenDeclared(func() error {
		q.mu.Lock()
		q.bindings = removeBinding(q.bindings, func(b Binding) bool {
			return b.Exchange == exchange && b.RoutingKey == routingKey
		})
		name := q.name
		q.mu.Unlock()

		m := &protocol.QueueUnbind{Queue: name, Exchange: exchange, RoutingKey: routingKey, Arguments: args}
		return q.ch.request(m, replyQueueUnbind, q, true, func(*frameset) {
			if cb != nil {
				cb()
			}
		})
	})
}

// Purge drops every ready message; cb receives how many were dropped
func (q *Queue) Purge(cb func(messageCount uint32)) error {
	return q.whenDeclared(func() error {
		m := &protocol.QueuePurge{Queue: q.Name(), NoWait: cb == nil}
		return q.ch.request(m, replyQueuePurge, q, cb != nil, func(fs *frameset) {
			cb(fs.method.(*protocol.QueuePurgeOk).MessageCount)
		})
	})
}

// Delete deletes the queue and detaches its consumers once the broker confirms
func (q *Queue) Delete(opts QueueDeleteOptions, cb func(messageCount uint32)) error {
	return q.whenDeclared(func() error {
		m := &protocol.QueueDelete{Queue: q.Name(), IfUnused: opts.IfUnused, IfEmpty: opts.IfEmpty, NoWait: cb == nil}
		if cb == nil {
			if err := q.ch.request(m, replyQueueDelete, q, false, nil); err != nil {
				return err
			}
			q.deletedByBroker()
			return nil
		}
		return q.ch.request(m, replyQueueDelete, q, true, func(fs *frameset) {
			q.deletedByBroker()
			cb(fs.method.(*protocol.QueueDeleteOk).MessageCount)
		})
	})
}

func (q *Queue) deletedByBroker() {
	q.mu.Lock()
	q.deleted = true
	q.pending = nil
	consumers := q.consumers
	q.consumers = nil
	q.defaultConsumer = nil
	q.mu.Unlock()

	for _, c := range consumers {
		q.ch.releaseTag(c.Tag())
	}
	q.ch.removeQueue(q)
}

// Consume starts a consumer. handler runs on the connection's reader goroutine.
// cb receives the consumer tag once consume-ok arrives.
func (q *Queue) Consume(opts ConsumeOptions, handler func(*Delivery), cb func(tag string)) (*Consumer, error) {
	if handler == nil {
		return nil, ErrNilArgument
	}
	c := newConsumer(q, opts, handler)
	if opts.ConsumerTag != "" {
		if err := q.ch.reserveTag(opts.ConsumerTag, c); err != nil {
			return nil, err
		}
		c.tag = opts.ConsumerTag
	}

	q.mu.Lock()
	q.consumers = append(q.consumers, c)
	q.mu.Unlock()

	if err := q.whenDeclared(func() error { return c.sendConsume(cb, false) }); err != nil {
		q.removeConsumer(c)
		if c.tag != "" {
			q.ch.releaseTag(c.tag)
		}
		return nil, err
	}
	return c, nil
}

// Subscribe is Consume with automatic acknowledgement. A queue takes one subscription.
func (q *Queue) Subscribe(handler func(*Delivery)) (*Consumer, error) {
	q.mu.Lock()
	if q.defaultConsumer != nil {
		q.mu.Unlock()
		return nil, ErrDuplicateSubscription
	}
	q.mu.Unlock()

	c, err := q.Consume(ConsumeOptions{NoAck: true}, handler, nil)
	if err != nil {
		return nil, err
	}
	q.mu.Lock()
	q.defaultConsumer = c
	q.mu.Unlock()
	return c, nil
}

// DefaultConsumer returns the consumer created by Subscribe
func (q *Queue) DefaultConsumer() *Consumer {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.defaultConsumer
}

func (q *Queue) Consumers() []*Consumer {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*Consumer(nil), q.consumers...)
}

func (q *Queue) hasConsumer(c *Consumer) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, existing := range q.consumers {
		if existing == c {
			return true
		}
	}
	return false
}

func (q *Queue) removeConsumer(c *Consumer) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.consumers = removeItem(q.consumers, c)
	if q.defaultConsumer == c {
		q.defaultConsumer = nil
	}
}

// Get fetches one message. cb gets ok=false when the queue is empty.
func (q *Queue) Get(noAck bool, cb func(d *Delivery, ok bool)) error {
	if cb == nil {
		return ErrNilArgument
	}
	return q.whenDeclared(func() error {
		m := &protocol.BasicGet{Queue: q.Name(), NoAck: noAck}
		return q.ch.request(m, replyGet, q, true, func(fs *frameset) {
			ok, found := fs.method.(*protocol.BasicGetOk)
			if !found {
				cb(nil, false)
				return
			}
			cb(&Delivery{
				channel:      q.ch,
				DeliveryTag:  ok.DeliveryTag,
				Redelivered:  ok.Redelivered,
				Exchange:     ok.Exchange,
				RoutingKey:   ok.RoutingKey,
				MessageCount: ok.MessageCount,
				Properties:   fs.properties(),
				Body:         fs.body(),
			}, true)
		})
	})
}

// recover declares the queue again, then replays its bindings and consumers
// ahead of anything queued while the connection was down
func (q *Queue) recover() error {
	q.mu.Lock()
	if !q.requested || q.deleted {
		q.mu.Unlock()
		return nil
	}
	q.declared = false
	var replay []func() error
	for _, b := range q.bindings {
		replay = append(replay, func() error { return q.sendBind(b, nil, false) })
	}
	for _, c := range q.consumers {
		if !c.subscribed() {
			continue
		}
		replay = append(replay, func() error { return c.sendConsume(nil, true) })
	}
	q.pending = append(replay, q.pending...)
	q.mu.Unlock()

	return q.declare(nil, true)
}
