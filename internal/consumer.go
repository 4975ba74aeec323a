package internal

import (
	"sync"

	"github.com/aleybovich/carrot-amqp/protocol"
	"github.com/google/uuid"
)

type ConsumeOptions struct {
	ConsumerTag string // empty means generated
	NoLocal     bool
	NoAck       bool
	Exclusive   bool
	NoWait      bool
	Arguments   protocol.Table
}

// Consumer receives deliveries for one basic.consume
type Consumer struct {
	queue     *Queue
	ch        *Channel
	opts      ConsumeOptions
	callbacks *callbacks

	mu   sync.Mutex
	tag  string
	sent bool
}

const (
	evConsumerDelivery = "delivery"
	evConsumerCancel   = "cancel"
)

func newConsumer(q *Queue, opts ConsumeOptions, handler func(*Delivery)) *Consumer {
	c := &Consumer{queue: q, ch: q.ch, opts: opts, callbacks: newCallbacks()}
	c.SetHandler(handler)
	return c
}

// Delivery is a message pushed by basic.deliver or fetched by basic.get
type Delivery struct {
	channel *Channel

	ConsumerTag  string
	DeliveryTag  uint64
	Redelivered  bool
	Exchange     string
	RoutingKey   string
	MessageCount uint32 // basic.get only
	Properties   protocol.Properties
	Body         []byte
}

func (d *Delivery) Ack(multiple bool) error {
	return d.channel.Ack(d.DeliveryTag, multiple)
}

func (d *Delivery) Nack(multiple, requeue bool) error {
	return d.channel.Nack(d.DeliveryTag, multiple, requeue)
}

func (d *Delivery) Reject(requeue bool) error {
	return d.channel.Reject(d.DeliveryTag, requeue)
}

func generateConsumerTag(queue string) string {
	return queue + "-" + uuid.NewString()
}

func (c *Consumer) Tag() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tag
}

func (c *Consumer) Queue() *Queue { return c.queue }

func (c *Consumer) subscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent
}

// SetHandler replaces the delivery handler. A nil handler is ignored.
func (c *Consumer) SetHandler(handler func(*Delivery)) {
	if handler == nil {
		return
	}
	c.callbacks.define(evConsumerDelivery, func(args ...any) { handler(args[1].(*Delivery)) })
}

// OnCancel fires when the broker cancels the consumer, e.g. because its queue was deleted
func (c *Consumer) OnCancel(fn func(*Consumer)) {
	c.callbacks.append(evConsumerCancel, func(args ...any) { fn(args[0].(*Consumer)) })
}

// sendConsume writes basic.consume. A generated tag is picked here, and a fresh
// one on every recovery, so a recovered consumer never reuses its old tag.
func (c *Consumer) sendConsume(cb func(tag string), recovering bool) error {
	c.mu.Lock()
	oldTag := c.tag
	tag := oldTag
	if tag == "" || recovering {
		tag = generateConsumerTag(c.queue.Name())
	}
	c.tag = tag
	c.sent = true
	c.mu.Unlock()

	if tag != oldTag {
		c.ch.retagConsumer(c, oldTag, tag)
	}

	wait := recovering || (!c.opts.NoWait && cb != nil)
	m := &protocol.BasicConsume{
		Queue:       c.queue.Name(),
		ConsumerTag: tag,
		NoLocal:     c.opts.NoLocal,
		NoAck:       c.opts.NoAck,
		Exclusive:   c.opts.Exclusive,
		NoWait:      !wait,
		Arguments:   c.opts.Arguments,
	}
	return c.ch.request(m, replyConsume, c, wait, func(fs *frameset) {
		if cb != nil {
			cb(fs.method.(*protocol.BasicConsumeOk).ConsumerTag)
		}
	})
}

// Cancel stops the consumer. Its tag is never reused on this channel.
func (c *Consumer) Cancel(cb func()) error {
	return c.ch.whenOpen(func() error {
		m := &protocol.BasicCancel{ConsumerTag: c.Tag(), NoWait: cb == nil}
		if cb == nil {
			if err := c.ch.request(m, replyCancel, c, false, nil); err != nil {
				return err
			}
			c.detach()
			c.callbacks.clear(evConsumerCancel)
			return nil
		}
		return c.ch.request(m, replyCancel, c, true, func(*frameset) {
			c.detach()
			c.callbacks.clear(evConsumerCancel)
			cb()
		})
	})
}

func (c *Consumer) detach() {
	c.ch.releaseTag(c.Tag())
	c.queue.removeConsumer(c)
}

// cancelledByBroker handles basic.cancel sent by the broker
func (c *Consumer) cancelledByBroker() {
	c.detach()
	c.callbacks.execOnce(evConsumerCancel, c)
}

func (c *Consumer) deliver(d *Delivery) {
	c.callbacks.execWithSelf(evConsumerDelivery, c, d)
}
