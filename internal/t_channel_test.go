package internal

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	amqpError "github.com/aleybovich/carrot-amqp/amqperror"
	"github.com/aleybovich/carrot-amqp/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openBroker returns a broker with an open connection and one open channel, writes cleared
func openBroker(t *testing.T, opts ...ChannelOption) (*fakeBroker, *Channel) {
	t.Helper()
	b := newFakeBroker(t, testSettings())
	b.open()
	ch := b.openChannel(opts...)
	b.tr.reset()
	return b, ch
}

// methodFrames returns the method frames written so far with their channel ids
func methodFrames(t *testing.T, tr *fakeTransport) []*protocol.MethodFrame {
	t.Helper()
	var out []*protocol.MethodFrame
	for _, f := range tr.frames(t) {
		if mf, ok := f.(*protocol.MethodFrame); ok {
			out = append(out, mf)
		}
	}
	return out
}

func TestChannel_RepliesMatchedInRequestOrder(t *testing.T) {
	b, ch := openBroker(t)

	var order []int
	for i := 0; i < 3; i++ {
		name := fmt.Sprintf("q%d", i)
		_, err := ch.DeclareQueue(name, QueueOptions{}, func(q *Queue, messages, consumers uint32) {
			assert.Equal(t, name, q.Name())
			assert.Equal(t, uint32(i), messages, "reply %d went to the wrong callback", i)
			order = append(order, i)
		})
		require.NoError(t, err)
	}
	declares := allMethods[*protocol.QueueDeclare](t, b.tr)
	require.Len(t, declares, 3)
	for _, d := range declares {
		assert.False(t, d.NoWait)
	}
	assert.Equal(t, 3, ch.awaiting(replyQueueDeclare))

	for i := 0; i < 3; i++ {
		b.send(ch.ID(), &protocol.QueueDeclareOk{Queue: fmt.Sprintf("q%d", i), MessageCount: uint32(i)})
	}
	assert.Equal(t, []int{0, 1, 2}, order)
	assert.Zero(t, ch.awaiting(replyQueueDeclare))
}

func TestChannel_OperationsDeferredUntilOpenOk(t *testing.T) {
	b := newFakeBroker(t, testSettings())
	b.open()
	b.tr.reset()

	ch, err := b.c.OpenChannel()
	require.NoError(t, err)
	_, err = ch.DeclareExchange("ex1", ExchangeTopic, ExchangeOptions{Durable: true}, nil)
	require.NoError(t, err)
	q, err := ch.DeclareQueue("q1", QueueOptions{}, nil)
	require.NoError(t, err)
	require.NoError(t, q.Bind("ex1", "a.*", nil, nil))
	require.NoError(t, ch.Publish("ex1", "a.b", Publishing{Body: []byte("early")}))

	assert.Equal(t, []string{"channel.open"}, b.tr.methodNames(t))
	assert.False(t, ch.IsOpen())

	opened := false
	ch.OnOpen(func(*Channel) { opened = true })
	b.send(ch.ID(), &protocol.ChannelOpenOk{})

	assert.Equal(t, []string{"channel.open", "exchange.declare", "queue.declare", "queue.bind", "basic.publish"}, b.tr.methodNames(t))
	assert.True(t, ch.IsOpen())
	assert.True(t, opened)

	declare := lastMethod[*protocol.ExchangeDeclare](t, b.tr)
	assert.Equal(t, "ex1", declare.Exchange)
	assert.Equal(t, ExchangeTopic, declare.Type)
	assert.True(t, declare.Durable)
	assert.True(t, declare.NoWait, "no callback means nobody waits")

	bind := lastMethod[*protocol.QueueBind](t, b.tr)
	assert.Equal(t, "q1", bind.Queue)
	assert.Equal(t, "a.*", bind.RoutingKey)
	assert.Equal(t, []Binding{{Exchange: "ex1", RoutingKey: "a.*"}}, q.Bindings())
}

func TestQueue_ServerNamedWaitsForDeclareOk(t *testing.T) {
	b, ch := openBroker(t)

	q, err := ch.DeclareQueue("", QueueOptions{Exclusive: true}, nil)
	require.NoError(t, err)
	assert.True(t, q.ServerNamed())
	require.NoError(t, q.Bind("amq.fanout", "", nil, nil))
	_, err = q.Subscribe(func(*Delivery) {})
	require.NoError(t, err)

	assert.Equal(t, []string{"queue.declare"}, b.tr.methodNames(t))
	declare := lastMethod[*protocol.QueueDeclare](t, b.tr)
	assert.Equal(t, "", declare.Queue)
	assert.False(t, declare.NoWait)
	assert.False(t, q.Declared())

	b.send(ch.ID(), &protocol.QueueDeclareOk{Queue: "amq.gen-X"})

	assert.Equal(t, []string{"queue.declare", "queue.bind", "basic.consume"}, b.tr.methodNames(t))
	assert.Equal(t, "amq.gen-X", q.Name())
	assert.Equal(t, "amq.gen-X", lastMethod[*protocol.QueueBind](t, b.tr).Queue)
	consume := lastMethod[*protocol.BasicConsume](t, b.tr)
	assert.Equal(t, "amq.gen-X", consume.Queue)
	assert.True(t, strings.HasPrefix(consume.ConsumerTag, "amq.gen-X-"))
	assert.True(t, consume.NoAck)

	got, ok := ch.Queue("amq.gen-X")
	require.True(t, ok)
	assert.Same(t, q, got)
}

func TestChannelException_OnlyThatChannelCloses(t *testing.T) {
	b := newFakeBroker(t, testSettings())
	b.open()
	ch1 := b.openChannel(WithChannelAutoRecovery(false))
	ch2 := b.openChannel()
	b.tr.reset()

	var got *ChannelError
	closed := false
	ch1.OnError(func(_ *Channel, err *ChannelError) { got = err })
	ch1.OnClose(func(*Channel) { closed = true })

	b.send(1, &protocol.ChannelClose{ReplyCode: 404, ReplyText: "NOT_FOUND - no queue 'missing'", ClassId: 50, MethodId: 10})

	require.NotNil(t, got)
	assert.Equal(t, uint16(1), got.ChannelID)
	assert.Equal(t, amqpError.NotFound, got.Code())
	assert.Equal(t, uint16(50), got.ClassID)
	assert.True(t, closed)

	frames := methodFrames(t, b.tr)
	require.Len(t, frames, 1)
	assert.IsType(t, &protocol.ChannelCloseOk{}, frames[0].Method)
	assert.Equal(t, uint16(1), frames[0].ChannelID)

	assert.False(t, ch1.IsOpen())
	assert.True(t, ch2.IsOpen())
	assert.True(t, b.c.IsOpen())
	assert.False(t, b.c.ids.allocated(1))

	_, err := ch1.DeclareQueue("q", QueueOptions{}, nil)
	require.ErrorIs(t, err, ErrChannelClosed)

	ch3 := b.openChannel()
	assert.Equal(t, uint16(1), ch3.ID(), "the released id is handed out again")
}

func TestChannelException_WithoutOnErrorPanics(t *testing.T) {
	b, ch := openBroker(t, WithChannelAutoRecovery(false))

	cerr := &ChannelError{ChannelID: ch.ID(), ReplyCode: 406, ReplyText: "PRECONDITION_FAILED"}
	assert.PanicsWithError(t, cerr.Error(), func() {
		b.send(ch.ID(), &protocol.ChannelClose{ReplyCode: 406, ReplyText: "PRECONDITION_FAILED"})
	})
}

func TestChannelException_AutoRecoveringChannelIsParked(t *testing.T) {
	b, ch := openBroker(t)
	q, err := ch.DeclareQueue("q1", QueueOptions{}, nil)
	require.NoError(t, err)
	ch.OnError(func(*Channel, *ChannelError) {})
	recovered := false
	ch.OnRecovery(func(*Channel) { recovered = true })

	b.send(1, &protocol.ChannelClose{ReplyCode: 406, ReplyText: "PRECONDITION_FAILED"})

	assert.False(t, ch.IsOpen())
	assert.True(t, b.c.ids.allocated(1), "a parked channel keeps its id")
	_, ok := b.c.Channel(1)
	assert.False(t, ok)
	assert.False(t, q.Declared())

	b.tr.reset()
	require.NoError(t, ch.Reuse())
	assert.Equal(t, uint16(2), ch.ID())
	assert.False(t, b.c.ids.allocated(1))

	frames := methodFrames(t, b.tr)
	require.Len(t, frames, 1)
	assert.IsType(t, &protocol.ChannelOpen{}, frames[0].Method)
	assert.Equal(t, uint16(2), frames[0].ChannelID)

	b.send(2, &protocol.ChannelOpenOk{})
	assert.True(t, ch.IsOpen())
	assert.True(t, recovered)

	declare := lastMethod[*protocol.QueueDeclare](t, b.tr)
	assert.Equal(t, "q1", declare.Queue)
	assert.False(t, declare.NoWait, "recovery declares wait for declare-ok")
	b.send(2, &protocol.QueueDeclareOk{Queue: "q1"})
	assert.True(t, q.Declared())
}

func TestChannelException_HardCodeIsNotParked(t *testing.T) {
	b, ch := openBroker(t)
	var got *ChannelError
	ch.OnError(func(_ *Channel, err *ChannelError) { got = err })

	b.send(1, &protocol.ChannelClose{ReplyCode: 504, ReplyText: "CHANNEL_ERROR"})

	require.NotNil(t, got)
	assert.True(t, got.Code().IsHardError())
	assert.False(t, ch.IsOpen())
	assert.False(t, b.c.ids.allocated(1), "a channel closed with a hard code releases its id")
	assert.Empty(t, b.c.dormant)
}

func TestChannel_ClientClose(t *testing.T) {
	b, ch := openBroker(t)
	var closedWith *Channel
	onClose := 0
	ch.OnClose(func(*Channel) { onClose++ })

	require.NoError(t, ch.Close(func(c *Channel) { closedWith = c }))
	closeMethod := lastMethod[*protocol.ChannelClose](t, b.tr)
	assert.Equal(t, uint16(protocol.ReplySuccess), closeMethod.ReplyCode)
	require.ErrorIs(t, ch.Close(nil), ErrChannelClosed)
	require.ErrorIs(t, ch.Publish("", "q", Publishing{}), ErrChannelClosed)

	b.send(ch.ID(), &protocol.ChannelCloseOk{})
	assert.Same(t, ch, closedWith)
	assert.Equal(t, 1, onClose)
	assert.False(t, b.c.ids.allocated(1))
	_, ok := b.c.Channel(1)
	assert.False(t, ok)
}

func TestChannel_CloseCrossingBrokerCloseHoldsIDUntilCloseOk(t *testing.T) {
	b, ch := openBroker(t)
	var cerr *ChannelError
	ch.OnError(func(_ *Channel, e *ChannelError) { cerr = e })

	require.NoError(t, ch.Close(nil))
	b.send(1, &protocol.ChannelClose{ReplyCode: 406, ReplyText: "PRECONDITION_FAILED"})
	require.NotNil(t, cerr)
	assert.Equal(t, uint16(406), cerr.ReplyCode)
	assert.True(t, b.c.ids.allocated(1), "the close-ok for our own close is still due on this id")
	_, parked := b.c.Channel(1)
	assert.False(t, parked)

	next := b.openChannel()
	assert.Equal(t, uint16(2), next.ID())

	b.send(1, &protocol.ChannelCloseOk{})
	assert.True(t, next.IsOpen())
	assert.False(t, b.c.ids.allocated(1))

	third := b.openChannel()
	assert.Equal(t, uint16(1), third.ID())
}

func TestPublish_BodySplitByFrameMax(t *testing.T) {
	b := newFakeBroker(t, testSettings())
	b.tune.FrameMax = 4096
	b.open()
	ch := b.openChannel()
	b.tr.reset()

	body := bytes.Repeat([]byte("x"), 10000)
	props := protocol.Properties{ContentType: "application/octet-stream", DeliveryMode: protocol.Persistent}
	require.NoError(t, ch.Publish("amq.direct", "key", Publishing{Mandatory: true, Properties: props, Body: body}))

	frames := b.tr.frames(t)
	require.Len(t, frames, 5)

	mf := frames[0].(*protocol.MethodFrame)
	publish := mf.Method.(*protocol.BasicPublish)
	assert.Equal(t, "amq.direct", publish.Exchange)
	assert.Equal(t, "key", publish.RoutingKey)
	assert.True(t, publish.Mandatory)

	hf := frames[1].(*protocol.HeaderFrame)
	assert.Equal(t, uint64(10000), hf.Header.BodySize)
	assert.Equal(t, props.ContentType, hf.Header.Properties.ContentType)

	var got []byte
	for _, f := range frames[2:] {
		bf := f.(*protocol.BodyFrame)
		assert.LessOrEqual(t, len(bf.Body), 4096-protocol.FrameOverhead)
		assert.Equal(t, uint16(1), bf.ChannelID)
		got = append(got, bf.Body...)
	}
	assert.Equal(t, body, got)
}

func TestPublish_ConcurrentFramesetsStayContiguous(t *testing.T) {
	b := newFakeBroker(t, testSettings())
	b.tune.FrameMax = 4096
	b.open()
	channels := []*Channel{b.openChannel(), b.openChannel()}
	b.tr.reset()

	const perChannel = 25
	var wg sync.WaitGroup
	for _, ch := range channels {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := fmt.Sprintf("ch%d", ch.ID())
			body := bytes.Repeat([]byte{byte(ch.ID())}, 6000)
			for i := 0; i < perChannel; i++ {
				assert.NoError(t, ch.Publish("", key, Publishing{Body: body}))
			}
		}()
	}
	wg.Wait()

	frames := b.tr.frames(t)
	require.Len(t, frames, 2*perChannel*4)
	for i := 0; i < len(frames); i += 4 {
		mf, ok := frames[i].(*protocol.MethodFrame)
		require.True(t, ok, "frame %d should start a frameset", i)
		id := mf.ChannelID
		assert.Equal(t, fmt.Sprintf("ch%d", id), mf.Method.(*protocol.BasicPublish).RoutingKey)

		hf, ok := frames[i+1].(*protocol.HeaderFrame)
		require.True(t, ok, "frame %d should be a header", i+1)
		assert.Equal(t, id, hf.ChannelID)

		for _, f := range frames[i+2 : i+4] {
			bf, ok := f.(*protocol.BodyFrame)
			require.True(t, ok)
			assert.Equal(t, id, bf.ChannelID)
			assert.Equal(t, byte(id), bf.Body[0])
		}
	}
}

func TestPublisherConfirms(t *testing.T) {
	b, ch := openBroker(t)

	selected := false
	require.NoError(t, ch.ConfirmSelect(func() { selected = true }))
	lastMethod[*protocol.ConfirmSelect](t, b.tr)
	b.send(ch.ID(), &protocol.ConfirmSelectOk{})
	assert.True(t, selected)
	assert.True(t, ch.ConfirmMode())

	for i := 0; i < 3; i++ {
		require.NoError(t, ch.Publish("", "q", Publishing{Body: []byte("m")}))
	}
	assert.Equal(t, uint64(3), ch.PublisherIndex())

	var acked []uint64
	var ackMultiple bool
	ch.OnAck(func(tag uint64, multiple bool) {
		acked = append(acked, tag)
		ackMultiple = multiple
	})
	var nacked uint64
	var requeue bool
	ch.OnNack(func(tag uint64, _, rq bool) {
		nacked = tag
		requeue = rq
	})

	b.send(ch.ID(), &protocol.BasicAck{DeliveryTag: 2, Multiple: true})
	b.send(ch.ID(), &protocol.BasicNack{DeliveryTag: 3, Requeue: true})
	assert.Equal(t, []uint64{2}, acked)
	assert.True(t, ackMultiple)
	assert.Equal(t, uint64(3), nacked)
	assert.True(t, requeue)
}

func TestPublisherIndex_StaysZeroWithoutConfirms(t *testing.T) {
	_, ch := openBroker(t)
	require.NoError(t, ch.Publish("", "q", Publishing{}))
	assert.Zero(t, ch.PublisherIndex())
}

func TestChannelFlow(t *testing.T) {
	b, ch := openBroker(t)

	var flows []bool
	ch.OnFlow(func(_ *Channel, active bool) { flows = append(flows, active) })

	b.send(ch.ID(), &protocol.ChannelFlow{Active: false})
	assert.False(t, ch.FlowActive())
	assert.False(t, lastMethod[*protocol.ChannelFlowOk](t, b.tr).Active)

	b.send(ch.ID(), &protocol.ChannelFlow{Active: true})
	assert.True(t, ch.FlowActive())
	assert.Equal(t, []bool{false, true}, flows)

	var confirmed *bool
	require.NoError(t, ch.Flow(false, func(active bool) { confirmed = &active }))
	assert.False(t, lastMethod[*protocol.ChannelFlow](t, b.tr).Active)
	b.send(ch.ID(), &protocol.ChannelFlowOk{Active: false})
	require.NotNil(t, confirmed)
	assert.False(t, *confirmed)
}

func TestBasicReturn(t *testing.T) {
	b, ch := openBroker(t)

	b.sendContent(ch.ID(), &protocol.BasicReturn{ReplyCode: 312, ReplyText: "NO_ROUTE", RoutingKey: "nowhere"},
		protocol.Properties{MessageId: "m-1"}, []byte("lost"))
	assert.True(t, b.log.Contains("warn", "Message returned by broker"))

	var got *Return
	ch.OnReturn(func(_ *Channel, r *Return) { got = r })
	b.sendContent(ch.ID(), &protocol.BasicReturn{ReplyCode: 312, ReplyText: "NO_ROUTE", Exchange: "amq.direct", RoutingKey: "nowhere"},
		protocol.Properties{MessageId: "m-2"}, []byte("lost again"))

	require.NotNil(t, got)
	assert.Equal(t, uint16(312), got.ReplyCode)
	assert.Equal(t, "amq.direct", got.Exchange)
	assert.Equal(t, "nowhere", got.RoutingKey)
	assert.Equal(t, "m-2", got.Properties.MessageId)
	assert.Equal(t, []byte("lost again"), got.Body)
}

func TestConsume_DeliveryAndAck(t *testing.T) {
	b, ch := openBroker(t)
	q, err := ch.DeclareQueue("q1", QueueOptions{}, nil)
	require.NoError(t, err)

	var deliveries []*Delivery
	var tagFromOk string
	c, err := q.Consume(ConsumeOptions{}, func(d *Delivery) { deliveries = append(deliveries, d) }, func(tag string) { tagFromOk = tag })
	require.NoError(t, err)

	consume := lastMethod[*protocol.BasicConsume](t, b.tr)
	assert.False(t, consume.NoWait)
	assert.True(t, strings.HasPrefix(consume.ConsumerTag, "q1-"))
	assert.Equal(t, consume.ConsumerTag, c.Tag())

	b.send(ch.ID(), &protocol.BasicConsumeOk{ConsumerTag: c.Tag()})
	assert.Equal(t, c.Tag(), tagFromOk)

	b.sendContent(ch.ID(), &protocol.BasicDeliver{ConsumerTag: c.Tag(), DeliveryTag: 9, Redelivered: true, Exchange: "amq.fanout"},
		protocol.Properties{ContentType: "text/plain"}, []byte("hello"))
	require.Len(t, deliveries, 1)
	d := deliveries[0]
	assert.Equal(t, uint64(9), d.DeliveryTag)
	assert.True(t, d.Redelivered)
	assert.Equal(t, "amq.fanout", d.Exchange)
	assert.Equal(t, []byte("hello"), d.Body)

	require.NoError(t, d.Ack(false))
	ack := lastMethod[*protocol.BasicAck](t, b.tr)
	assert.Equal(t, uint64(9), ack.DeliveryTag)
	require.NoError(t, d.Reject(true))
	assert.True(t, lastMethod[*protocol.BasicReject](t, b.tr).Requeue)

	var replaced []*Delivery
	c.SetHandler(func(d *Delivery) { replaced = append(replaced, d) })
	b.sendContent(ch.ID(), &protocol.BasicDeliver{ConsumerTag: c.Tag(), DeliveryTag: 11}, protocol.Properties{}, []byte("again"))
	assert.Len(t, deliveries, 1, "SetHandler replaces the previous handler")
	require.Len(t, replaced, 1)
	assert.Equal(t, uint64(11), replaced[0].DeliveryTag)

	b.sendContent(ch.ID(), &protocol.BasicDeliver{ConsumerTag: "stranger", DeliveryTag: 10}, protocol.Properties{}, nil)
	assert.Len(t, deliveries, 1)
	assert.Len(t, replaced, 1)
	assert.True(t, b.log.Contains("warn", "unknown consumer stranger"))
}

func TestConsume_Validation(t *testing.T) {
	_, ch := openBroker(t)
	q, err := ch.DeclareQueue("q1", QueueOptions{}, nil)
	require.NoError(t, err)

	_, err = q.Consume(ConsumeOptions{}, nil, nil)
	require.ErrorIs(t, err, ErrNilArgument)

	_, err = q.Consume(ConsumeOptions{ConsumerTag: "mine"}, func(*Delivery) {}, nil)
	require.NoError(t, err)
	_, err = q.Consume(ConsumeOptions{ConsumerTag: "mine"}, func(*Delivery) {}, nil)
	require.ErrorIs(t, err, ErrConsumerTagInUse)

	sub, err := q.Subscribe(func(*Delivery) {})
	require.NoError(t, err)
	assert.Same(t, sub, q.DefaultConsumer())
	_, err = q.Subscribe(func(*Delivery) {})
	require.ErrorIs(t, err, ErrDuplicateSubscription)
	assert.Len(t, q.Consumers(), 2)
}

func TestConsumer_CancelledByBroker(t *testing.T) {
	b, ch := openBroker(t)
	q, err := ch.DeclareQueue("q1", QueueOptions{}, nil)
	require.NoError(t, err)
	c, err := q.Consume(ConsumeOptions{ConsumerTag: "c1"}, func(*Delivery) {
		t.Fatal("no delivery expected after cancel")
	}, nil)
	require.NoError(t, err)

	var cancelled *Consumer
	c.OnCancel(func(c *Consumer) { cancelled = c })

	b.send(ch.ID(), &protocol.BasicCancel{ConsumerTag: "c1"})
	assert.Same(t, c, cancelled)
	assert.Equal(t, "c1", lastMethod[*protocol.BasicCancelOk](t, b.tr).ConsumerTag)
	assert.Empty(t, q.Consumers())
	assert.NotContains(t, ch.Consumers(), "c1")

	b.sendContent(ch.ID(), &protocol.BasicDeliver{ConsumerTag: "c1", DeliveryTag: 1}, protocol.Properties{}, []byte("late"))

	_, err = q.Consume(ConsumeOptions{ConsumerTag: "c1"}, func(*Delivery) {}, nil)
	require.ErrorIs(t, err, ErrConsumerTagInUse, "a cancelled tag is never reused")
}

func TestConsumer_ClientCancel(t *testing.T) {
	b, ch := openBroker(t)
	q, err := ch.DeclareQueue("q1", QueueOptions{}, nil)
	require.NoError(t, err)
	c, err := q.Consume(ConsumeOptions{ConsumerTag: "c2"}, func(*Delivery) {}, nil)
	require.NoError(t, err)

	done := false
	require.NoError(t, c.Cancel(func() { done = true }))
	cancel := lastMethod[*protocol.BasicCancel](t, b.tr)
	assert.Equal(t, "c2", cancel.ConsumerTag)
	assert.False(t, cancel.NoWait)
	assert.Len(t, q.Consumers(), 1, "still attached until cancel-ok")

	b.send(ch.ID(), &protocol.BasicCancelOk{ConsumerTag: "c2"})
	assert.True(t, done)
	assert.Empty(t, q.Consumers())

	c3, err := q.Consume(ConsumeOptions{}, func(*Delivery) {}, nil)
	require.NoError(t, err)
	require.NoError(t, c3.Cancel(nil))
	assert.True(t, lastMethod[*protocol.BasicCancel](t, b.tr).NoWait)
	assert.Empty(t, q.Consumers(), "nowait cancel detaches immediately")
}

func TestQueue_Get(t *testing.T) {
	b, ch := openBroker(t)
	q, err := ch.DeclareQueue("q1", QueueOptions{}, nil)
	require.NoError(t, err)

	require.ErrorIs(t, q.Get(false, nil), ErrNilArgument)

	var empty bool
	require.NoError(t, q.Get(false, func(d *Delivery, ok bool) {
		assert.Nil(t, d)
		empty = !ok
	}))
	assert.Equal(t, "q1", lastMethod[*protocol.BasicGet](t, b.tr).Queue)
	b.send(ch.ID(), &protocol.BasicGetEmpty{})
	assert.True(t, empty)

	var got *Delivery
	require.NoError(t, q.Get(false, func(d *Delivery, ok bool) {
		require.True(t, ok)
		got = d
	}))
	b.sendContent(ch.ID(), &protocol.BasicGetOk{DeliveryTag: 7, Exchange: "amq.direct", RoutingKey: "k", MessageCount: 2},
		protocol.Properties{CorrelationId: "c"}, []byte("one"))
	require.NotNil(t, got)
	assert.Equal(t, uint64(7), got.DeliveryTag)
	assert.Equal(t, uint32(2), got.MessageCount)
	assert.Equal(t, "c", got.Properties.CorrelationId)
	assert.Equal(t, []byte("one"), got.Body)

	require.NoError(t, got.Nack(false, true))
	nack := lastMethod[*protocol.BasicNack](t, b.tr)
	assert.Equal(t, uint64(7), nack.DeliveryTag)
	assert.True(t, nack.Requeue)
}

func TestQueue_BindUnbindPurgeDelete(t *testing.T) {
	b, ch := openBroker(t)
	q, err := ch.DeclareQueue("q1", QueueOptions{Durable: true}, nil)
	require.NoError(t, err)

	require.NoError(t, q.Bind("amq.topic", "a.#", protocol.Table{"x-match": "all"}, nil))
	assert.True(t, lastMethod[*protocol.QueueBind](t, b.tr).NoWait)
	bound := false
	require.NoError(t, q.Bind("amq.direct", "k", nil, func() { bound = true }))
	assert.False(t, lastMethod[*protocol.QueueBind](t, b.tr).NoWait)
	b.send(ch.ID(), &protocol.QueueBindOk{})
	assert.True(t, bound)
	assert.Len(t, q.Bindings(), 2)

	require.NoError(t, q.Unbind("amq.topic", "a.#", nil, nil))
	assert.Equal(t, 1, ch.awaiting(replyQueueUnbind), "unbind always waits for unbind-ok")
	assert.Equal(t, []Binding{{Exchange: "amq.direct", RoutingKey: "k"}}, q.Bindings())
	b.send(ch.ID(), &protocol.QueueUnbindOk{})
	assert.Zero(t, ch.awaiting(replyQueueUnbind))

	var purged uint32
	require.NoError(t, q.Purge(func(n uint32) { purged = n }))
	b.send(ch.ID(), &protocol.QueuePurgeOk{MessageCount: 4})
	assert.Equal(t, uint32(4), purged)

	c, err := q.Consume(ConsumeOptions{ConsumerTag: "c1"}, func(*Delivery) {}, nil)
	require.NoError(t, err)

	var deleted uint32
	require.NoError(t, q.Delete(QueueDeleteOptions{IfEmpty: true}, func(n uint32) { deleted = n }))
	del := lastMethod[*protocol.QueueDelete](t, b.tr)
	assert.True(t, del.IfEmpty)
	b.send(ch.ID(), &protocol.QueueDeleteOk{MessageCount: 5})
	assert.Equal(t, uint32(5), deleted)

	_, ok := ch.Queue("q1")
	assert.False(t, ok)
	assert.Nil(t, ch.consumer(c.Tag()))
	require.ErrorIs(t, q.Bind("amq.direct", "k", nil, nil), ErrChannelClosed)
}

func TestExchange_Operations(t *testing.T) {
	b, ch := openBroker(t)

	_, err := ch.DeclareExchange("ex1", "", ExchangeOptions{}, nil)
	require.ErrorIs(t, err, ErrNilArgument)

	var predefined *Exchange
	fanout, err := ch.DeclareExchange("amq.fanout", "", ExchangeOptions{}, func(ex *Exchange) { predefined = ex })
	require.NoError(t, err)
	assert.Same(t, fanout, predefined)
	assert.True(t, fanout.Predefined())
	assert.Empty(t, b.tr.methodNames(t), "predefined exchanges are never declared")
	require.ErrorIs(t, fanout.Delete(false, nil), ErrPredefinedExchange)
	require.ErrorIs(t, ch.DefaultExchange().Delete(false, nil), ErrPredefinedExchange)

	def := ch.DefaultExchange()
	assert.Equal(t, "", def.Name())
	assert.Same(t, def, ch.DefaultExchange())
	require.NoError(t, def.Publish("q1", Publishing{Body: []byte("via default")}))
	assert.Equal(t, "q1", lastMethod[*protocol.BasicPublish](t, b.tr).RoutingKey)

	declared := false
	ex, err := ch.DeclareExchange("ex1", ExchangeHeaders, ExchangeOptions{AutoDelete: true}, func(*Exchange) { declared = true })
	require.NoError(t, err)
	assert.False(t, lastMethod[*protocol.ExchangeDeclare](t, b.tr).NoWait)
	b.send(ch.ID(), &protocol.ExchangeDeclareOk{})
	assert.True(t, declared)

	require.NoError(t, ex.Bind("amq.fanout", "", nil, nil))
	bind := lastMethod[*protocol.ExchangeBind](t, b.tr)
	assert.Equal(t, "ex1", bind.Destination)
	assert.Equal(t, "amq.fanout", bind.Source)
	assert.Equal(t, []ExchangeBinding{{Source: "amq.fanout"}}, ex.Bindings())

	require.NoError(t, ex.Unbind("amq.fanout", "", nil, nil))
	assert.Empty(t, ex.Bindings())
	assert.Equal(t, "ex1", lastMethod[*protocol.ExchangeUnbind](t, b.tr).Destination)

	require.NoError(t, ex.Delete(true, nil))
	assert.True(t, lastMethod[*protocol.ExchangeDelete](t, b.tr).IfUnused)
	_, ok := ch.Exchange("ex1")
	assert.False(t, ok)
}

func TestChannel_QosRecoverAndTx(t *testing.T) {
	b, ch := openBroker(t)

	qosDone := false
	require.NoError(t, ch.Qos(10, 0, false, func() { qosDone = true }))
	qos := lastMethod[*protocol.BasicQos](t, b.tr)
	assert.Equal(t, uint16(10), qos.PrefetchCount)
	b.send(ch.ID(), &protocol.BasicQosOk{})
	assert.True(t, qosDone)

	recovered := false
	require.NoError(t, ch.Recover(true, func() { recovered = true }))
	assert.True(t, lastMethod[*protocol.BasicRecover](t, b.tr).Requeue)
	b.send(ch.ID(), &protocol.BasicRecoverOk{})
	assert.True(t, recovered)

	var steps []string
	require.NoError(t, ch.TxSelect(func() { steps = append(steps, "select") }))
	require.NoError(t, ch.TxCommit(func() { steps = append(steps, "commit") }))
	require.NoError(t, ch.TxRollback(func() { steps = append(steps, "rollback") }))
	b.send(ch.ID(), &protocol.TxSelectOk{})
	b.send(ch.ID(), &protocol.TxCommitOk{})
	b.send(ch.ID(), &protocol.TxRollbackOk{})
	assert.Equal(t, []string{"select", "commit", "rollback"}, steps)
}

func TestChannel_FailedWriteDropsReplyExpectation(t *testing.T) {
	b, ch := openBroker(t)
	b.tr.setBroken(true)

	_, err := ch.DeclareQueue("q1", QueueOptions{}, func(*Queue, uint32, uint32) {
		t.Fatal("callback of an unsent request must not fire")
	})
	require.Error(t, err)
	assert.Zero(t, ch.awaiting(replyQueueDeclare))
	_, ok := ch.Queue("q1")
	assert.False(t, ok)
}

func TestChannel_WaitUntilOpen(t *testing.T) {
	b := newFakeBroker(t, testSettings())
	b.open()
	ch, err := b.c.OpenChannel()
	require.NoError(t, err)

	errs := make(chan error, 1)
	go func() { errs <- ch.WaitUntilOpen(context.Background()) }()
	b.send(ch.ID(), &protocol.ChannelOpenOk{})
	require.NoError(t, <-errs)
}
