package internal

import (
	"github.com/aleybovich/carrot-amqp/protocol"
)

// exception handles channel.close from the broker. Only this channel is
// affected. An auto-recovering channel is parked and reopened under a new id
// by the next connection recovery, or by Reuse.
func (ch *Channel) exception(cerr *ChannelError) {
	ch.log.Err("%v", cerr)

	ch.mu.Lock()
	// a channel the client was already closing is not parked, and neither is one
	// closed with a hard code, since reopening it would fail the same way
	auto := ch.autoRecovery && ch.status != channelClosing && cerr.Code().IsSoftError()
	id := ch.id
	ch.mu.Unlock()

	if auto {
		ch.mu.Lock()
		ch.status = channelClosed
		ch.replies = make(map[replyKind][]pendingReply)
		ch.pending = nil
		ch.closeErr = cerr
		sig := ch.openSig
		queues := append([]*Queue(nil), ch.queueOrder...)
		ch.mu.Unlock()

		for _, q := range queues {
			q.interrupted()
		}
		// the id stays allocated while parked so the channel comes back under a different one
		c := ch.conn
		c.mu.Lock()
		if c.channels[id] == ch {
			delete(c.channels, id)
		}
		c.dormant = append(c.dormant, ch)
		c.mu.Unlock()
		sig.resolve(cerr)
	} else {
		ch.closed(cerr)
	}

	if !ch.callbacks.exec(evChannelError, ch, cerr) {
		panic(cerr)
	}
}

// autoRecover reopens every auto-recovering channel after a reconnect. Channels
// parked by an exception get fresh ids; the rest keep the id they had.
func (c *Connection) autoRecover() {
	c.log.Info("Recovering channels on %s", c.settings.Addr())

	for _, ch := range c.sortedChannels() {
		if !ch.recoverable() {
			continue
		}
		if err := ch.recover(); err != nil {
			c.log.Err("Recovery of channel %d failed: %v", ch.ID(), err)
		}
	}

	c.mu.Lock()
	dormant := c.dormant
	c.dormant = nil
	c.mu.Unlock()

	for _, ch := range dormant {
		if err := ch.reopen(); err != nil {
			c.log.Err("Reopening channel after exception failed: %v", err)
		}
	}
}

func (ch *Channel) recoverable() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.autoRecovery && ch.status == channelOpening && ch.requested
}

// recover sends channel.open on the current id and queues the topology replay
// ahead of operations issued while the connection was down
func (ch *Channel) recover() error {
	ch.mu.Lock()
	ch.status = channelOpening
	if ch.openSig.resolved() {
		ch.openSig = newSignal()
	}
	if ch.everOpened {
		ch.pending = append([]func() error{ch.recoverTopology}, ch.pending...)
	}
	id := ch.id
	ch.mu.Unlock()

	ch.log.Info("Recovering channel %d", id)
	return ch.call(&protocol.ChannelOpen{}, replyChannelOpen, ch, func(*frameset) {
		ch.becomeOpen()
		ch.callbacks.exec(evChannelRecovery, ch)
	})
}

// reopen moves a parked channel to a newly allocated id and recovers it
func (ch *Channel) reopen() error {
	c := ch.conn
	id, err := c.ids.next()
	if err != nil {
		return err
	}

	ch.mu.Lock()
	old := ch.id
	ch.id = id
	ch.mu.Unlock()

	c.mu.Lock()
	c.channels[id] = ch
	c.mu.Unlock()
	c.ids.release(old)

	ch.log.Info("Channel %d reopening as channel %d", old, id)
	return ch.recover()
}

// Reuse abandons the channel's current id and reopens the channel under a new
// one, replaying its exchanges, queues, bindings and consumers. It is the manual
// way back from a channel exception.
func (ch *Channel) Reuse() error {
	c := ch.conn
	if !c.IsOpen() {
		return ErrConnectionClosed
	}
	id, err := c.ids.next()
	if err != nil {
		return err
	}

	ch.mu.Lock()
	old := ch.id
	oldStatus := ch.status
	ch.id = id
	ch.replies = make(map[replyKind][]pendingReply)
	queues := append([]*Queue(nil), ch.queueOrder...)
	ch.mu.Unlock()

	for _, q := range queues {
		q.interrupted()
	}

	c.mu.Lock()
	if c.channels[old] == ch {
		delete(c.channels, old)
	}
	c.dormant = removeItem(c.dormant, ch)
	c.channels[id] = ch
	stillOpen := oldStatus == channelOpen || oldStatus == channelOpening
	if stillOpen {
		c.retiring[old] = struct{}{}
	}
	c.mu.Unlock()

	if stillOpen {
		// the old id is released when its close-ok arrives
		if err := c.sendMethod(old, &protocol.ChannelClose{ReplyCode: protocol.ReplySuccess, ReplyText: "Reused"}); err != nil {
			c.log.Warn("Failed to close channel %d: %v", old, err)
		}
	} else {
		c.ids.release(old)
	}

	ch.log.Info("Channel %d reused as channel %d", old, id)
	return ch.recover()
}

// recoverTopology re-applies channel settings, then declares exchanges,
// exchange bindings and queues in that order. Queues replay their own
// bindings and consumers after their declare-ok.
func (ch *Channel) recoverTopology() error {
	ch.mu.Lock()
	qos := ch.qos
	confirm := ch.confirmMode
	tx := ch.txMode
	exchanges := append([]*Exchange(nil), ch.exchangeOrder...)
	queues := append([]*Queue(nil), ch.queueOrder...)
	ch.mu.Unlock()

	if qos != nil {
		if err := ch.sendQos(nil); err != nil {
			return err
		}
	}
	if confirm {
		if err := ch.sendConfirmSelect(nil); err != nil {
			return err
		}
	}
	if tx {
		if err := ch.sendTxSelect(nil); err != nil {
			return err
		}
	}

	for _, ex := range exchanges {
		if ex.predefined || !ex.recoverable() {
			continue
		}
		if err := ex.declare(nil, true); err != nil {
			return err
		}
	}
	for _, ex := range exchanges {
		if !ex.recoverable() {
			continue
		}
		for _, b := range ex.Bindings() {
			if err := ex.sendBind(b, nil, false); err != nil {
				return err
			}
		}
	}
	for _, q := range queues {
		if err := q.recover(); err != nil {
			return err
		}
	}
	return nil
}
