package internal

import (
	"sync"

	"github.com/aleybovich/carrot-amqp/protocol"
)

type methodHandler func(c *Connection, fs *frameset) error

// handlerRegistry maps every method the broker may send to its handler.
// It is built once and shared by all connections unless one is injected.
type handlerRegistry struct {
	handlers map[protocol.MethodKey]methodHandler
}

func newHandlerRegistry() *handlerRegistry {
	return &handlerRegistry{handlers: make(map[protocol.MethodKey]methodHandler)}
}

func (r *handlerRegistry) register(m protocol.Method, h methodHandler) {
	r.handlers[m.Key()] = h
}

func (r *handlerRegistry) unregister(key protocol.MethodKey) {
	delete(r.handlers, key)
}

func (r *handlerRegistry) lookup(key protocol.MethodKey) (methodHandler, bool) {
	h, ok := r.handlers[key]
	return h, ok
}

var defaultHandlerRegistry = sync.OnceValue(newDefaultHandlerRegistry)

func newDefaultHandlerRegistry() *handlerRegistry {
	r := newHandlerRegistry()

	r.register(&protocol.ConnectionStart{}, handleConnectionStart)
	r.register(&protocol.ConnectionSecure{}, handleConnectionSecure)
	r.register(&protocol.ConnectionTune{}, handleConnectionTune)
	r.register(&protocol.ConnectionOpenOk{}, handleConnectionOpenOk)
	r.register(&protocol.ConnectionClose{}, handleConnectionClose)
	r.register(&protocol.ConnectionCloseOk{}, handleConnectionCloseOk)
	r.register(&protocol.ConnectionBlocked{}, handleConnectionBlocked)
	r.register(&protocol.ConnectionUnblocked{}, handleConnectionUnblocked)

	r.register(&protocol.ChannelOpenOk{}, replyHandler(replyChannelOpen))
	r.register(&protocol.ChannelFlow{}, channelHandler(handleChannelFlow))
	r.register(&protocol.ChannelFlowOk{}, replyHandler(replyFlow))
	r.register(&protocol.ChannelClose{}, channelHandler(handleChannelClose))
	r.register(&protocol.ChannelCloseOk{}, handleChannelCloseOk)

	r.register(&protocol.ExchangeDeclareOk{}, replyHandler(replyExchangeDeclare))
	r.register(&protocol.ExchangeDeleteOk{}, replyHandler(replyExchangeDelete))
	r.register(&protocol.ExchangeBindOk{}, replyHandler(replyExchangeBind))
	r.register(&protocol.ExchangeUnbindOk{}, replyHandler(replyExchangeUnbind))

	r.register(&protocol.QueueDeclareOk{}, replyHandler(replyQueueDeclare))
	r.register(&protocol.QueueBindOk{}, replyHandler(replyQueueBind))
	r.register(&protocol.QueueUnbindOk{}, replyHandler(replyQueueUnbind))
	r.register(&protocol.QueuePurgeOk{}, replyHandler(replyQueuePurge))
	r.register(&protocol.QueueDeleteOk{}, replyHandler(replyQueueDelete))

	r.register(&protocol.BasicQosOk{}, replyHandler(replyQos))
	r.register(&protocol.BasicConsumeOk{}, replyHandler(replyConsume))
	r.register(&protocol.BasicCancelOk{}, replyHandler(replyCancel))
	r.register(&protocol.BasicRecoverOk{}, replyHandler(replyRecover))
	r.register(&protocol.BasicGetOk{}, replyHandler(replyGet))
	r.register(&protocol.BasicGetEmpty{}, replyHandler(replyGet))
	r.register(&protocol.BasicCancel{}, channelHandler(handleBasicCancel))
	r.register(&protocol.BasicDeliver{}, channelHandler(handleBasicDeliver))
	r.register(&protocol.BasicReturn{}, channelHandler(handleBasicReturn))
	r.register(&protocol.BasicAck{}, channelHandler(handleBasicAck))
	r.register(&protocol.BasicNack{}, channelHandler(handleBasicNack))

	r.register(&protocol.ConfirmSelectOk{}, replyHandler(replyConfirmSelect))
	r.register(&protocol.TxSelectOk{}, replyHandler(replyTxSelect))
	r.register(&protocol.TxCommitOk{}, replyHandler(replyTxCommit))
	r.register(&protocol.TxRollbackOk{}, replyHandler(replyTxRollback))

	return r
}

// channelHandler resolves the frameset's channel; frames for unknown channels are dropped
func channelHandler(fn func(ch *Channel, fs *frameset) error) methodHandler {
	return func(c *Connection, fs *frameset) error {
		ch := c.channel(fs.channelID)
		if ch == nil {
			c.log.Warn("Received %s for unknown channel %d, dropping", fs.method.Key(), fs.channelID)
			return nil
		}
		return fn(ch, fs)
	}
}

// replyHandler hands a reply to whoever sent the oldest matching request
func replyHandler(kind replyKind) methodHandler {
	return channelHandler(func(ch *Channel, fs *frameset) error {
		r, ok := ch.popReply(kind)
		if !ok {
			ch.log.Warn("Received %s on channel %d but nothing is waiting for it", fs.method.Key(), fs.channelID)
			return nil
		}
		r.fn(fs)
		return nil
	})
}

func handleChannelFlow(ch *Channel, fs *frameset) error {
	m := fs.method.(*protocol.ChannelFlow)
	ch.mu.Lock()
	ch.flowActive = m.Active
	ch.mu.Unlock()

	ch.log.Info("Broker set flow on channel %d to %t", fs.channelID, m.Active)
	if err := ch.call(&protocol.ChannelFlowOk{Active: m.Active}, replyNone, nil, nil); err != nil {
		return err
	}
	ch.callbacks.exec(evChannelFlow, ch, m.Active)
	return nil
}

func handleChannelClose(ch *Channel, fs *frameset) error {
	m := fs.method.(*protocol.ChannelClose)
	cerr := &ChannelError{ChannelID: fs.channelID, ReplyCode: m.ReplyCode, ReplyText: m.ReplyText, ClassID: m.ClassId, MethodID: m.MethodId}

	ch.mu.Lock()
	crossed := ch.status == channelClosing
	ch.mu.Unlock()
	if crossed {
		// our channel.close is still unanswered; its close-ok frees the id
		c := ch.conn
		c.mu.Lock()
		c.retiring[fs.channelID] = struct{}{}
		c.mu.Unlock()
	}

	if err := ch.conn.sendMethod(fs.channelID, &protocol.ChannelCloseOk{}); err != nil {
		ch.log.Warn("Failed to send channel.close-ok on channel %d: %v", fs.channelID, err)
	}
	ch.exception(cerr)
	return nil
}

func handleChannelCloseOk(c *Connection, fs *frameset) error {
	c.mu.Lock()
	_, retiring := c.retiring[fs.channelID]
	delete(c.retiring, fs.channelID)
	c.mu.Unlock()
	if retiring {
		c.ids.release(fs.channelID)
		return nil
	}

	ch := c.channel(fs.channelID)
	if ch == nil {
		c.log.Warn("Received channel.close-ok for unknown channel %d", fs.channelID)
		return nil
	}
	r, ok := ch.popReply(replyChannelClose)
	ch.log.Info("Channel %d closed", fs.channelID)
	ch.closed(nil)
	if ok {
		r.fn(fs)
	}
	return nil
}

func handleBasicCancel(ch *Channel, fs *frameset) error {
	m := fs.method.(*protocol.BasicCancel)
	consumer := ch.consumer(m.ConsumerTag)
	if consumer == nil {
		ch.log.Warn("Broker cancelled unknown consumer %s on channel %d", m.ConsumerTag, fs.channelID)
	} else {
		ch.log.Warn("Broker cancelled consumer %s on channel %d", m.ConsumerTag, fs.channelID)
		consumer.cancelledByBroker()
	}
	if m.NoWait {
		return nil
	}
	return ch.call(&protocol.BasicCancelOk{ConsumerTag: m.ConsumerTag}, replyNone, nil, nil)
}

func handleBasicDeliver(ch *Channel, fs *frameset) error {
	m := fs.method.(*protocol.BasicDeliver)
	consumer := ch.consumer(m.ConsumerTag)
	if consumer == nil || !consumer.queue.hasConsumer(consumer) {
		ch.log.Warn("Delivery %d for unknown consumer %s on channel %d, dropping", m.DeliveryTag, m.ConsumerTag, fs.channelID)
		return nil
	}
	consumer.deliver(&Delivery{
		channel:     ch,
		ConsumerTag: m.ConsumerTag,
		DeliveryTag: m.DeliveryTag,
		Redelivered: m.Redelivered,
		Exchange:    m.Exchange,
		RoutingKey:  m.RoutingKey,
		Properties:  fs.properties(),
		Body:        fs.body(),
	})
	return nil
}

func handleBasicReturn(ch *Channel, fs *frameset) error {
	m := fs.method.(*protocol.BasicReturn)
	ret := &Return{
		ReplyCode:  m.ReplyCode,
		ReplyText:  m.ReplyText,
		Exchange:   m.Exchange,
		RoutingKey: m.RoutingKey,
		Properties: fs.properties(),
		Body:       fs.body(),
	}
	if !ch.callbacks.exec(evChannelReturn, ch, ret) {
		ch.log.Warn("Message returned by broker on channel %d: %d %s (exchange %q, routing key %q)",
			fs.channelID, m.ReplyCode, m.ReplyText, m.Exchange, m.RoutingKey)
	}
	return nil
}

func handleBasicAck(ch *Channel, fs *frameset) error {
	m := fs.method.(*protocol.BasicAck)
	ch.callbacks.exec(evChannelAck, m.DeliveryTag, m.Multiple)
	return nil
}

func handleBasicNack(ch *Channel, fs *frameset) error {
	m := fs.method.(*protocol.BasicNack)
	ch.callbacks.exec(evChannelNack, m.DeliveryTag, m.Multiple, m.Requeue)
	return nil
}
