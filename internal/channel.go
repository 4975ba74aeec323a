package internal

import (
	"context"
	"fmt"
	"sync"

	"github.com/aleybovich/carrot-amqp/logger"
	"github.com/aleybovich/carrot-amqp/protocol"
)

type channelStatus int

const (
	channelOpening channelStatus = iota
	channelOpen
	channelClosing
	channelClosed
)

func (s channelStatus) String() string {
	switch s {
	case channelOpening:
		return "opening"
	case channelOpen:
		return "open"
	case channelClosing:
		return "closing"
	case channelClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// replyKind names a method pair whose replies are matched by arrival order
type replyKind int

const (
	replyNone replyKind = iota
	replyChannelOpen
	replyChannelClose
	replyFlow
	replyExchangeDeclare
	replyExchangeDelete
	replyExchangeBind
	replyExchangeUnbind
	replyQueueDeclare
	replyQueueBind
	replyQueueUnbind
	replyQueuePurge
	replyQueueDelete
	replyQos
	replyConsume
	replyCancel
	replyGet
	replyRecover
	replyConfirmSelect
	replyTxSelect
	replyTxCommit
	replyTxRollback
)

type pendingReply struct {
	owner any
	fn    func(fs *frameset)
}

// channel events
const (
	evChannelOpen         = "open"
	evChannelClose        = "close"
	evChannelError        = "error"
	evChannelReturn       = "return"
	evChannelAck          = "ack"
	evChannelNack         = "nack"
	evChannelFlow         = "flow"
	evChannelInterruption = "interruption"
	evChannelRecovery     = "recovery"
)

type qosSettings struct {
	prefetchSize  uint32
	prefetchCount uint16
	global        bool
}

// Publishing is a message to publish
type Publishing struct {
	Mandatory  bool
	Immediate  bool
	Properties protocol.Properties
	Body       []byte
}

// Return is a message sent back by the broker with basic.return
type Return struct {
	ReplyCode  uint16
	ReplyText  string
	Exchange   string
	RoutingKey string
	Properties protocol.Properties
	Body       []byte
}

// Channel is one multiplexed stream of a Connection. The connection owns its
// channels; a channel owns the exchanges, queues and consumers created on it.
type Channel struct {
	conn      *Connection
	log       logger.Logger
	callbacks *callbacks

	// sendMu covers queueing a reply expectation and writing its request,
	// and every multi-frame publish
	sendMu sync.Mutex

	mu             sync.Mutex
	id             uint16
	status         channelStatus
	everOpened     bool
	requested      bool // channel.open has been sent at least once
	autoRecovery   bool
	flowActive     bool
	publisherIndex uint64
	confirmMode    bool
	txMode         bool
	qos            *qosSettings
	replies        map[replyKind][]pendingReply
	pending        []func() error // operations issued before open-ok, replayed in order

	exchanges     map[string]*Exchange
	exchangeOrder []*Exchange
	queues        map[string]*Queue
	queueOrder    []*Queue
	consumers     map[string]*Consumer
	cancelledTags map[string]struct{}

	openSig  *signal
	closeErr error
}

func newChannel(c *Connection, id uint16, autoRecovery bool) *Channel {
	return &Channel{
		conn:          c,
		log:           c.log,
		callbacks:     newCallbacks(),
		id:            id,
		status:        channelOpening,
		autoRecovery:  autoRecovery,
		flowActive:    true,
		replies:       make(map[replyKind][]pendingReply),
		exchanges:     make(map[string]*Exchange),
		queues:        make(map[string]*Queue),
		consumers:     make(map[string]*Consumer),
		cancelledTags: make(map[string]struct{}),
		openSig:       newSignal(),
	}
}

func (ch *Channel) ID() uint16 {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.id
}

// Connection returns the owning connection
func (ch *Channel) Connection() *Connection { return ch.conn }

func (ch *Channel) IsOpen() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.status == channelOpen
}

// acceptsOperations is false once the channel is closing or closed
func (ch *Channel) acceptsOperations() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.status == channelOpening || ch.status == channelOpen
}

func (ch *Channel) AutoRecovery() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.autoRecovery
}

func (ch *Channel) FlowActive() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.flowActive
}

// PublisherIndex is the number of messages published since confirm.select,
// which is the delivery tag the broker uses to confirm the latest one
func (ch *Channel) PublisherIndex() uint64 {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.publisherIndex
}

// WaitUntilOpen blocks until open-ok, a channel exception, or ctx is done
func (ch *Channel) WaitUntilOpen(ctx context.Context) error {
	ch.mu.Lock()
	sig := ch.openSig
	ch.mu.Unlock()
	return sig.wait(ctx)
}

// ---- request/reply plumbing ----

// call writes a request. With fn set, fn is queued for the matching reply
// before the write so a fast reply cannot overtake it.
func (ch *Channel) call(m protocol.Method, kind replyKind, owner any, fn func(fs *frameset)) error {
	ch.sendMu.Lock()
	defer ch.sendMu.Unlock()

	ch.mu.Lock()
	id := ch.id
	if fn != nil {
		ch.replies[kind] = append(ch.replies[kind], pendingReply{owner: owner, fn: fn})
	}
	ch.mu.Unlock()

	if err := ch.conn.sendMethod(id, m); err != nil {
		if fn != nil {
			ch.mu.Lock()
			if q := ch.replies[kind]; len(q) > 0 {
				ch.replies[kind] = q[:len(q)-1]
			}
			ch.mu.Unlock()
		}
		return err
	}
	return nil
}

func (ch *Channel) popReply(kind replyKind) (pendingReply, bool) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	q := ch.replies[kind]
	if len(q) == 0 {
		return pendingReply{}, false
	}
	r := q[0]
	ch.replies[kind] = q[1:]
	return r, true
}

func (ch *Channel) awaiting(kind replyKind) int {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return len(ch.replies[kind])
}

// request picks nowait the usual way: without a callback nobody waits for the reply
func (ch *Channel) request(m protocol.Method, kind replyKind, owner any, wait bool, fn func(fs *frameset)) error {
	if !wait {
		return ch.call(m, replyNone, nil, nil)
	}
	if fn == nil {
		fn = func(*frameset) {}
	}
	return ch.call(m, kind, owner, fn)
}

// whenOpen runs op now if the channel is open, or queues it until open-ok
func (ch *Channel) whenOpen(op func() error) error {
	ch.mu.Lock()
	switch ch.status {
	case channelOpening:
		ch.pending = append(ch.pending, op)
		ch.mu.Unlock()
		return nil
	case channelOpen:
		ch.mu.Unlock()
		return op()
	default:
		ch.mu.Unlock()
		return ErrChannelClosed
	}
}

// becomeOpen replays queued operations, then flips the channel to open.
// Operations queued while replaying are replayed too, in order.
func (ch *Channel) becomeOpen() {
	for {
		ch.mu.Lock()
		if ch.status != channelOpening {
			ch.mu.Unlock()
			return
		}
		if len(ch.pending) == 0 {
			ch.status = channelOpen
			ch.everOpened = true
			sig := ch.openSig
			id := ch.id
			ch.mu.Unlock()
			sig.resolve(nil)
			ch.log.Info("Channel %d opened", id)
			return
		}
		op := ch.pending[0]
		ch.pending = ch.pending[1:]
		ch.mu.Unlock()

		if err := op(); err != nil {
			ch.log.Err("Deferred operation on channel %d failed: %v", ch.ID(), err)
		}
	}
}

// ---- lifecycle ----

func (ch *Channel) open() error {
	ch.mu.Lock()
	if ch.status != channelOpening {
		ch.mu.Unlock()
		return ErrChannelClosed
	}
	ch.requested = true
	ch.mu.Unlock()

	return ch.call(&protocol.ChannelOpen{}, replyChannelOpen, ch, func(*frameset) {
		ch.becomeOpen()
		ch.callbacks.exec(evChannelOpen, ch)
	})
}

// Close sends channel.close; cb fires on close-ok
func (ch *Channel) Close(cb func(*Channel)) error {
	ch.mu.Lock()
	if ch.status == channelClosing || ch.status == channelClosed {
		ch.mu.Unlock()
		return ErrChannelClosed
	}
	ch.status = channelClosing
	ch.pending = nil
	ch.mu.Unlock()

	return ch.call(&protocol.ChannelClose{ReplyCode: protocol.ReplySuccess, ReplyText: "Goodbye"}, replyChannelClose, ch, func(*frameset) {
		if cb != nil {
			cb(ch)
		}
	})
}

// closed marks the channel closed and detaches it from the connection. The id
// is released here, after close-ok or after the connection went away.
func (ch *Channel) closed(reason error) {
	ch.mu.Lock()
	ch.status = channelClosed
	ch.replies = make(map[replyKind][]pendingReply)
	ch.pending = nil
	ch.closeErr = reason
	id := ch.id
	sig := ch.openSig
	ch.mu.Unlock()

	ch.conn.forgetChannel(ch, id)
	if reason == nil {
		reason = ErrChannelClosed
	}
	sig.resolve(reason)
	ch.callbacks.exec(evChannelClose, ch)
}

// handleConnectionInterruption resets per-connection state after a TCP drop.
// Auto-recovering channels keep their topology and wait for recovery.
func (ch *Channel) handleConnectionInterruption() {
	ch.mu.Lock()
	ch.replies = make(map[replyKind][]pendingReply)
	recoverable := ch.autoRecovery && (ch.status == channelOpen || ch.status == channelOpening)
	if recoverable {
		ch.status = channelOpening
		if ch.openSig.resolved() {
			ch.openSig = newSignal()
		}
	}
	queues := append([]*Queue(nil), ch.queueOrder...)
	id := ch.id
	ch.mu.Unlock()

	if recoverable {
		for _, q := range queues {
			q.interrupted()
		}
		ch.log.Info("Channel %d interrupted, waiting for recovery", id)
	} else {
		ch.log.Info("Channel %d closed by connection interruption", id)
		ch.closed(ErrConnectionClosed)
	}
	ch.callbacks.exec(evChannelInterruption, ch)
}

// handleConnectionClosed runs when the whole connection is gone for good
func (ch *Channel) handleConnectionClosed(reason error) {
	ch.mu.Lock()
	alreadyClosed := ch.status == channelClosed
	ch.status = channelClosed
	ch.replies = make(map[replyKind][]pendingReply)
	ch.pending = nil
	sig := ch.openSig
	ch.mu.Unlock()

	sig.resolve(reason)
	if !alreadyClosed {
		ch.callbacks.exec(evChannelClose, ch)
	}
}

// ---- callbacks ----

func (ch *Channel) OnOpen(fn func(*Channel)) {
	ch.callbacks.append(evChannelOpen, func(args ...any) { fn(args[0].(*Channel)) })
}

func (ch *Channel) OnClose(fn func(*Channel)) {
	ch.callbacks.append(evChannelClose, func(args ...any) { fn(args[0].(*Channel)) })
}

// OnError registers the handler for channel.close sent by the broker.
// Without one, such an exception panics.
func (ch *Channel) OnError(fn func(*Channel, *ChannelError)) {
	ch.callbacks.append(evChannelError, func(args ...any) { fn(args[0].(*Channel), args[1].(*ChannelError)) })
}

func (ch *Channel) OnReturn(fn func(*Channel, *Return)) {
	ch.callbacks.append(evChannelReturn, func(args ...any) { fn(args[0].(*Channel), args[1].(*Return)) })
}

// OnAck registers a publisher confirm handler
func (ch *Channel) OnAck(fn func(deliveryTag uint64, multiple bool)) {
	ch.callbacks.append(evChannelAck, func(args ...any) { fn(args[0].(uint64), args[1].(bool)) })
}

func (ch *Channel) OnNack(fn func(deliveryTag uint64, multiple, requeue bool)) {
	ch.callbacks.append(evChannelNack, func(args ...any) { fn(args[0].(uint64), args[1].(bool), args[2].(bool)) })
}

// OnFlow fires when the broker sends channel.flow
func (ch *Channel) OnFlow(fn func(ch *Channel, active bool)) {
	ch.callbacks.append(evChannelFlow, func(args ...any) { fn(args[0].(*Channel), args[1].(bool)) })
}

func (ch *Channel) OnInterruption(fn func(*Channel)) {
	ch.callbacks.append(evChannelInterruption, func(args ...any) { fn(args[0].(*Channel)) })
}

// OnRecovery fires once the channel's topology has been replayed after a recovery
func (ch *Channel) OnRecovery(fn func(*Channel)) {
	ch.callbacks.append(evChannelRecovery, func(args ...any) { fn(args[0].(*Channel)) })
}

// ---- channel class ----

// Flow asks the broker to pause (false) or resume (true) deliveries
func (ch *Channel) Flow(active bool, cb func(active bool)) error {
	return ch.whenOpen(func() error {
		return ch.call(&protocol.ChannelFlow{Active: active}, replyFlow, ch, func(fs *frameset) {
			ok := fs.method.(*protocol.ChannelFlowOk)
			if cb != nil {
				cb(ok.Active)
			}
		})
	})
}

// ---- basic class ----

// Qos sets the prefetch window. The setting is re-applied on recovery.
func (ch *Channel) Qos(prefetchCount uint16, prefetchSize uint32, global bool, cb func()) error {
	ch.mu.Lock()
	ch.qos = &qosSettings{prefetchSize: prefetchSize, prefetchCount: prefetchCount, global: global}
	ch.mu.Unlock()

	return ch.whenOpen(func() error { return ch.sendQos(cb) })
}

func (ch *Channel) sendQos(cb func()) error {
	ch.mu.Lock()
	qos := ch.qos
	ch.mu.Unlock()
	if qos == nil {
		return nil
	}
	m := &protocol.BasicQos{PrefetchSize: qos.prefetchSize, PrefetchCount: qos.prefetchCount, Global: qos.global}
	return ch.call(m, replyQos, ch, func(*frameset) {
		if cb != nil {
			cb()
		}
	})
}

// Recover asks the broker to redeliver unacknowledged messages
func (ch *Channel) Recover(requeue bool, cb func()) error {
	return ch.whenOpen(func() error {
		return ch.call(&protocol.BasicRecover{Requeue: requeue}, replyRecover, ch, func(*frameset) {
			if cb != nil {
				cb()
			}
		})
	})
}

// Publish sends a message as one contiguous frameset
func (ch *Channel) Publish(exchange, routingKey string, msg Publishing) error {
	return ch.whenOpen(func() error { return ch.publish(exchange, routingKey, msg) })
}

func (ch *Channel) publish(exchange, routingKey string, msg Publishing) error {
	frameMax := ch.conn.negotiatedFrameMax()

	ch.sendMu.Lock()
	defer ch.sendMu.Unlock()

	id := ch.ID()
	m := &protocol.BasicPublish{Exchange: exchange, RoutingKey: routingKey, Mandatory: msg.Mandatory, Immediate: msg.Immediate}
	frames, err := protocol.EncodeContent(id, m, msg.Properties, msg.Body, frameMax)
	if err != nil {
		return err
	}
	if err := ch.conn.sendFrames(frames...); err != nil {
		return err
	}

	ch.mu.Lock()
	if ch.confirmMode {
		ch.publisherIndex++
	}
	ch.mu.Unlock()

	ch.conn.metrics.published(exchange)
	return nil
}

// Ack acknowledges a delivery
func (ch *Channel) Ack(deliveryTag uint64, multiple bool) error {
	return ch.whenOpen(func() error {
		return ch.call(&protocol.BasicAck{DeliveryTag: deliveryTag, Multiple: multiple}, replyNone, nil, nil)
	})
}

func (ch *Channel) Nack(deliveryTag uint64, multiple, requeue bool) error {
	return ch.whenOpen(func() error {
		return ch.call(&protocol.BasicNack{DeliveryTag: deliveryTag, Multiple: multiple, Requeue: requeue}, replyNone, nil, nil)
	})
}

func (ch *Channel) Reject(deliveryTag uint64, requeue bool) error {
	return ch.whenOpen(func() error {
		return ch.call(&protocol.BasicReject{DeliveryTag: deliveryTag, Requeue: requeue}, replyNone, nil, nil)
	})
}

// ---- confirm and tx classes ----

// ConfirmSelect enables publisher confirms. The mode survives recovery.
func (ch *Channel) ConfirmSelect(cb func()) error {
	ch.mu.Lock()
	ch.confirmMode = true
	ch.mu.Unlock()
	return ch.whenOpen(func() error { return ch.sendConfirmSelect(cb) })
}

func (ch *Channel) sendConfirmSelect(cb func()) error {
	ch.mu.Lock()
	ch.publisherIndex = 0
	ch.mu.Unlock()
	return ch.call(&protocol.ConfirmSelect{}, replyConfirmSelect, ch, func(*frameset) {
		if cb != nil {
			cb()
		}
	})
}

func (ch *Channel) ConfirmMode() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.confirmMode
}

// TxSelect puts the channel in transactional mode. The mode survives recovery.
func (ch *Channel) TxSelect(cb func()) error {
	ch.mu.Lock()
	ch.txMode = true
	ch.mu.Unlock()
	return ch.whenOpen(func() error { return ch.sendTxSelect(cb) })
}

func (ch *Channel) sendTxSelect(cb func()) error {
	return ch.call(&protocol.TxSelect{}, replyTxSelect, ch, func(*frameset) {
		if cb != nil {
			cb()
		}
	})
}

func (ch *Channel) TxCommit(cb func()) error {
	return ch.whenOpen(func() error {
		return ch.call(&protocol.TxCommit{}, replyTxCommit, ch, func(*frameset) {
			if cb != nil {
				cb()
			}
		})
	})
}

func (ch *Channel) TxRollback(cb func()) error {
	return ch.whenOpen(func() error {
		return ch.call(&protocol.TxRollback{}, replyTxRollback, ch, func(*frameset) {
			if cb != nil {
				cb()
			}
		})
	})
}

// ---- entity registry ----

func (ch *Channel) registerExchange(ex *Exchange) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if old, ok := ch.exchanges[ex.name]; ok {
		ch.exchangeOrder = removeItem(ch.exchangeOrder, old)
	}
	ch.exchanges[ex.name] = ex
	ch.exchangeOrder = append(ch.exchangeOrder, ex)
}

func (ch *Channel) removeExchange(ex *Exchange) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.exchanges[ex.name] == ex {
		delete(ch.exchanges, ex.name)
	}
	ch.exchangeOrder = removeItem(ch.exchangeOrder, ex)
}

// Exchange returns a known exchange by name
func (ch *Channel) Exchange(name string) (*Exchange, bool) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ex, ok := ch.exchanges[name]
	return ex, ok
}

func (ch *Channel) registerQueue(q *Queue) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if q.name != "" {
		if old, ok := ch.queues[q.name]; ok {
			ch.queueOrder = removeItem(ch.queueOrder, old)
		}
		ch.queues[q.name] = q
	}
	ch.queueOrder = append(ch.queueOrder, q)
}

// renameQueue re-keys a server-named queue once the broker assigned its name
func (ch *Channel) renameQueue(q *Queue, oldName, newName string) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if oldName != "" && ch.queues[oldName] == q {
		delete(ch.queues, oldName)
	}
	ch.queues[newName] = q
}

func (ch *Channel) removeQueue(q *Queue) {
	name := q.Name()
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.queues[name] == q {
		delete(ch.queues, name)
	}
	ch.queueOrder = removeItem(ch.queueOrder, q)
}

// Queue returns a known queue by name
func (ch *Channel) Queue(name string) (*Queue, bool) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	q, ok := ch.queues[name]
	return q, ok
}

// reserveTag claims a consumer tag; tags in use or cancelled earlier are refused
func (ch *Channel) reserveTag(tag string, c *Consumer) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if _, ok := ch.consumers[tag]; ok {
		return fmt.Errorf("%w: %s", ErrConsumerTagInUse, tag)
	}
	if _, ok := ch.cancelledTags[tag]; ok {
		return fmt.Errorf("%w: %s was cancelled", ErrConsumerTagInUse, tag)
	}
	ch.consumers[tag] = c
	return nil
}

func (ch *Channel) retagConsumer(c *Consumer, oldTag, newTag string) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if oldTag != "" && ch.consumers[oldTag] == c {
		delete(ch.consumers, oldTag)
	}
	ch.consumers[newTag] = c
}

// releaseTag forgets a consumer and records its tag as never to be reused
func (ch *Channel) releaseTag(tag string) {
	if tag == "" {
		return
	}
	ch.mu.Lock()
	defer ch.mu.Unlock()
	delete(ch.consumers, tag)
	ch.cancelledTags[tag] = struct{}{}
}

func (ch *Channel) consumer(tag string) *Consumer {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.consumers[tag]
}

// Consumers returns the tags of the active consumers
func (ch *Channel) Consumers() []string {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	tags := make([]string, 0, len(ch.consumers))
	for tag := range ch.consumers {
		tags = append(tags, tag)
	}
	return tags
}

func removeItem[T comparable](list []T, item T) []T {
	for i, v := range list {
		if v == item {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}
