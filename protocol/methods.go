package protocol

import (
	"errors"
	"fmt"
)

// ErrUnknownMethod is returned when a method frame names a class/method pair the codec does not know
var ErrUnknownMethod = errors.New("unknown method")

// Method is one decoded AMQP method. The set of implementations is closed:
// every method the client sends or receives is declared in this file.
type Method interface {
	Key() MethodKey
	// HasContent reports whether the method is followed by a content header and body frames
	HasContent() bool

	read(a *argReader)
	write(a *argWriter)
}

type noContent struct{}

func (noContent) HasContent() bool { return false }

type withContent struct{}

func (withContent) HasContent() bool { return true }

// ---- connection ----

type ConnectionStart struct {
	noContent
	VersionMajor     uint8
	VersionMinor     uint8
	ServerProperties Table
	Mechanisms       string
	Locales          string
}

func (*ConnectionStart) Key() MethodKey {
	return NewMethodKey(ClassConnection, MethodConnectionStart)
}
func (m *ConnectionStart) read(a *argReader) {
	m.VersionMajor = a.octet()
	m.VersionMinor = a.octet()
	m.ServerProperties = a.table()
	m.Mechanisms = a.longstr()
	m.Locales = a.longstr()
}
func (m *ConnectionStart) write(a *argWriter) {
	a.octet(m.VersionMajor)
	a.octet(m.VersionMinor)
	a.table(m.ServerProperties)
	a.longstr(m.Mechanisms)
	a.longstr(m.Locales)
}

type ConnectionStartOk struct {
	noContent
	ClientProperties Table
	Mechanism        string
	Response         string
	Locale           string
}

func (*ConnectionStartOk) Key() MethodKey {
	return NewMethodKey(ClassConnection, MethodConnectionStartOk)
}
func (m *ConnectionStartOk) read(a *argReader) {
	m.ClientProperties = a.table()
	m.Mechanism = a.shortstr()
	m.Response = a.longstr()
	m.Locale = a.shortstr()
}
func (m *ConnectionStartOk) write(a *argWriter) {
	a.table(m.ClientProperties)
	a.shortstr(m.Mechanism)
	a.longstr(m.Response)
	a.shortstr(m.Locale)
}

type ConnectionSecure struct {
	noContent
	Challenge string
}

func (*ConnectionSecure) Key() MethodKey {
	return NewMethodKey(ClassConnection, MethodConnectionSecure)
}
func (m *ConnectionSecure) read(a *argReader)  { m.Challenge = a.longstr() }
func (m *ConnectionSecure) write(a *argWriter) { a.longstr(m.Challenge) }

type ConnectionSecureOk struct {
	noContent
	Response string
}

func (*ConnectionSecureOk) Key() MethodKey {
	return NewMethodKey(ClassConnection, MethodConnectionSecureOk)
}
func (m *ConnectionSecureOk) read(a *argReader)  { m.Response = a.longstr() }
func (m *ConnectionSecureOk) write(a *argWriter) { a.longstr(m.Response) }

type ConnectionTune struct {
	noContent
	ChannelMax uint16
	FrameMax   uint32
	Heartbeat  uint16
}

func (*ConnectionTune) Key() MethodKey {
	return NewMethodKey(ClassConnection, MethodConnectionTune)
}
func (m *ConnectionTune) read(a *argReader) {
	m.ChannelMax = a.short()
	m.FrameMax = a.long()
	m.Heartbeat = a.short()
}
func (m *ConnectionTune) write(a *argWriter) {
	a.short(m.ChannelMax)
	a.long(m.FrameMax)
	a.short(m.Heartbeat)
}

type ConnectionTuneOk struct {
	noContent
	ChannelMax uint16
	FrameMax   uint32
	Heartbeat  uint16
}

func (*ConnectionTuneOk) Key() MethodKey {
	return NewMethodKey(ClassConnection, MethodConnectionTuneOk)
}
func (m *ConnectionTuneOk) read(a *argReader) {
	m.ChannelMax = a.short()
	m.FrameMax = a.long()
	m.Heartbeat = a.short()
}
func (m *ConnectionTuneOk) write(a *argWriter) {
	a.short(m.ChannelMax)
	a.long(m.FrameMax)
	a.short(m.Heartbeat)
}

type ConnectionOpen struct {
	noContent
	VirtualHost string
}

func (*ConnectionOpen) Key() MethodKey {
	return NewMethodKey(ClassConnection, MethodConnectionOpen)
}
func (m *ConnectionOpen) read(a *argReader) {
	m.VirtualHost = a.shortstr()
	a.shortstr() // capabilities, reserved
	a.bit()      // insist, reserved
}
func (m *ConnectionOpen) write(a *argWriter) {
	a.shortstr(m.VirtualHost)
	a.shortstr("")
	a.bit(false)
}

type ConnectionOpenOk struct {
	noContent
}

func (*ConnectionOpenOk) Key() MethodKey {
	return NewMethodKey(ClassConnection, MethodConnectionOpenOk)
}
func (m *ConnectionOpenOk) read(a *argReader)  { a.shortstr() }
func (m *ConnectionOpenOk) write(a *argWriter) { a.shortstr("") }

type ConnectionClose struct {
	noContent
	ReplyCode uint16
	ReplyText string
	ClassId   uint16
	MethodId  uint16
}

func (*ConnectionClose) Key() MethodKey {
	return NewMethodKey(ClassConnection, MethodConnectionClose)
}
func (m *ConnectionClose) read(a *argReader) {
	m.ReplyCode = a.short()
	m.ReplyText = a.shortstr()
	m.ClassId = a.short()
	m.MethodId = a.short()
}
func (m *ConnectionClose) write(a *argWriter) {
	a.short(m.ReplyCode)
	a.shortstr(m.ReplyText)
	a.short(m.ClassId)
	a.short(m.MethodId)
}

type ConnectionCloseOk struct {
	noContent
}

func (*ConnectionCloseOk) Key() MethodKey {
	return NewMethodKey(ClassConnection, MethodConnectionCloseOk)
}
func (m *ConnectionCloseOk) read(a *argReader)  {}
func (m *ConnectionCloseOk) write(a *argWriter) {}

type ConnectionBlocked struct {
	noContent
	Reason string
}

func (*ConnectionBlocked) Key() MethodKey {
	return NewMethodKey(ClassConnection, MethodConnectionBlocked)
}
func (m *ConnectionBlocked) read(a *argReader)  { m.Reason = a.shortstr() }
func (m *ConnectionBlocked) write(a *argWriter) { a.shortstr(m.Reason) }

type ConnectionUnblocked struct {
	noContent
}

func (*ConnectionUnblocked) Key() MethodKey {
	return NewMethodKey(ClassConnection, MethodConnectionUnblocked)
}
func (m *ConnectionUnblocked) read(a *argReader)  {}
func (m *ConnectionUnblocked) write(a *argWriter) {}

// ---- channel ----

type ChannelOpen struct {
	noContent
}

func (*ChannelOpen) Key() MethodKey {
	return NewMethodKey(ClassChannel, MethodChannelOpen)
}
func (m *ChannelOpen) read(a *argReader)  { a.shortstr() }
func (m *ChannelOpen) write(a *argWriter) { a.shortstr("") }

type ChannelOpenOk struct {
	noContent
}

func (*ChannelOpenOk) Key() MethodKey {
	return NewMethodKey(ClassChannel, MethodChannelOpenOk)
}
func (m *ChannelOpenOk) read(a *argReader)  { a.longstr() }
func (m *ChannelOpenOk) write(a *argWriter) { a.longstr("") }

type ChannelFlow struct {
	noContent
	Active bool
}

func (*ChannelFlow) Key() MethodKey {
	return NewMethodKey(ClassChannel, MethodChannelFlow)
}
func (m *ChannelFlow) read(a *argReader)  { m.Active = a.bit() }
func (m *ChannelFlow) write(a *argWriter) { a.bit(m.Active) }

type ChannelFlowOk struct {
	noContent
	Active bool
}

func (*ChannelFlowOk) Key() MethodKey {
	return NewMethodKey(ClassChannel, MethodChannelFlowOk)
}
func (m *ChannelFlowOk) read(a *argReader)  { m.Active = a.bit() }
func (m *ChannelFlowOk) write(a *argWriter) { a.bit(m.Active) }

type ChannelClose struct {
	noContent
	ReplyCode uint16
	ReplyText string
	ClassId   uint16
	MethodId  uint16
}

func (*ChannelClose) Key() MethodKey {
	return NewMethodKey(ClassChannel, MethodChannelClose)
}
func (m *ChannelClose) read(a *argReader) {
	m.ReplyCode = a.short()
	m.ReplyText = a.shortstr()
	m.ClassId = a.short()
	m.MethodId = a.short()
}
func (m *ChannelClose) write(a *argWriter) {
	a.short(m.ReplyCode)
	a.shortstr(m.ReplyText)
	a.short(m.ClassId)
	a.short(m.MethodId)
}

type ChannelCloseOk struct {
	noContent
}

func (*ChannelCloseOk) Key() MethodKey {
	return NewMethodKey(ClassChannel, MethodChannelCloseOk)
}
func (m *ChannelCloseOk) read(a *argReader)  {}
func (m *ChannelCloseOk) write(a *argWriter) {}

// ---- exchange ----

type ExchangeDeclare struct {
	noContent
	Exchange   string
	Type       string
	Passive    bool
	Durable    bool
	AutoDelete bool
	Internal   bool
	NoWait     bool
	Arguments  Table
}

func (*ExchangeDeclare) Key() MethodKey {
	return NewMethodKey(ClassExchange, MethodExchangeDeclare)
}
func (m *ExchangeDeclare) read(a *argReader) {
	a.short()
	m.Exchange = a.shortstr()
	m.Type = a.shortstr()
	m.Passive = a.bit()
	m.Durable = a.bit()
	m.AutoDelete = a.bit()
	m.Internal = a.bit()
	m.NoWait = a.bit()
	m.Arguments = a.table()
}
func (m *ExchangeDeclare) write(a *argWriter) {
	a.short(0)
	a.shortstr(m.Exchange)
	a.shortstr(m.Type)
	a.bit(m.Passive)
	a.bit(m.Durable)
	a.bit(m.AutoDelete)
	a.bit(m.Internal)
	a.bit(m.NoWait)
	a.table(m.Arguments)
}

type ExchangeDeclareOk struct {
	noContent
}

func (*ExchangeDeclareOk) Key() MethodKey {
	return NewMethodKey(ClassExchange, MethodExchangeDeclareOk)
}
func (m *ExchangeDeclareOk) read(a *argReader)  {}
func (m *ExchangeDeclareOk) write(a *argWriter) {}

type ExchangeDelete struct {
	noContent
	Exchange string
	IfUnused bool
	NoWait   bool
}

func (*ExchangeDelete) Key() MethodKey {
	return NewMethodKey(ClassExchange, MethodExchangeDelete)
}
func (m *ExchangeDelete) read(a *argReader) {
	a.short()
	m.Exchange = a.shortstr()
	m.IfUnused = a.bit()
	m.NoWait = a.bit()
}
func (m *ExchangeDelete) write(a *argWriter) {
	a.short(0)
	a.shortstr(m.Exchange)
	a.bit(m.IfUnused)
	a.bit(m.NoWait)
}

type ExchangeDeleteOk struct {
	noContent
}

func (*ExchangeDeleteOk) Key() MethodKey {
	return NewMethodKey(ClassExchange, MethodExchangeDeleteOk)
}
func (m *ExchangeDeleteOk) read(a *argReader)  {}
func (m *ExchangeDeleteOk) write(a *argWriter) {}

type ExchangeBind struct {
	noContent
	Destination string
	Source      string
	RoutingKey  string
	NoWait      bool
	Arguments   Table
}

func (*ExchangeBind) Key() MethodKey {
	return NewMethodKey(ClassExchange, MethodExchangeBind)
}
func (m *ExchangeBind) read(a *argReader) {
	a.short()
	m.Destination = a.shortstr()
	m.Source = a.shortstr()
	m.RoutingKey = a.shortstr()
	m.NoWait = a.bit()
	m.Arguments = a.table()
}
func (m *ExchangeBind) write(a *argWriter) {
	a.short(0)
	a.shortstr(m.Destination)
	a.shortstr(m.Source)
	a.shortstr(m.RoutingKey)
	a.bit(m.NoWait)
	a.table(m.Arguments)
}

type ExchangeBindOk struct {
	noContent
}

func (*ExchangeBindOk) Key() MethodKey {
	return NewMethodKey(ClassExchange, MethodExchangeBindOk)
}
func (m *ExchangeBindOk) read(a *argReader)  {}
func (m *ExchangeBindOk) write(a *argWriter) {}

type ExchangeUnbind struct {
	noContent
	Destination string
	Source      string
	RoutingKey  string
	NoWait      bool
	Arguments   Table
}

func (*ExchangeUnbind) Key() MethodKey {
	return NewMethodKey(ClassExchange, MethodExchangeUnbind)
}
func (m *ExchangeUnbind) read(a *argReader) {
	a.short()
	m.Destination = a.shortstr()
	m.Source = a.shortstr()
	m.RoutingKey = a.shortstr()
	m.NoWait = a.bit()
	m.Arguments = a.table()
}
func (m *ExchangeUnbind) write(a *argWriter) {
	a.short(0)
	a.shortstr(m.Destination)
	a.shortstr(m.Source)
	a.shortstr(m.RoutingKey)
	a.bit(m.NoWait)
	a.table(m.Arguments)
}

type ExchangeUnbindOk struct {
	noContent
}

func (*ExchangeUnbindOk) Key() MethodKey {
	return NewMethodKey(ClassExchange, MethodExchangeUnbindOk)
}
func (m *ExchangeUnbindOk) read(a *argReader)  {}
func (m *ExchangeUnbindOk) write(a *argWriter) {}

// ---- queue ----

type QueueDeclare struct {
	noContent
	Queue      string
	Passive    bool
	Durable    bool
	Exclusive  bool
	AutoDelete bool
	NoWait     bool
	Arguments  Table
}

func (*QueueDeclare) Key() MethodKey {
	return NewMethodKey(ClassQueue, MethodQueueDeclare)
}
func (m *QueueDeclare) read(a *argReader) {
	a.short()
	m.Queue = a.shortstr()
	m.Passive = a.bit()
	m.Durable = a.bit()
	m.Exclusive = a.bit()
	m.AutoDelete = a.bit()
	m.NoWait = a.bit()
	m.Arguments = a.table()
}
func (m *QueueDeclare) write(a *argWriter) {
	a.short(0)
	a.shortstr(m.Queue)
	a.bit(m.Passive)
	a.bit(m.Durable)
	a.bit(m.Exclusive)
	a.bit(m.AutoDelete)
	a.bit(m.NoWait)
	a.table(m.Arguments)
}

type QueueDeclareOk struct {
	noContent
	Queue         string
	MessageCount  uint32
	ConsumerCount uint32
}

func (*QueueDeclareOk) Key() MethodKey {
	return NewMethodKey(ClassQueue, MethodQueueDeclareOk)
}
func (m *QueueDeclareOk) read(a *argReader) {
	m.Queue = a.shortstr()
	m.MessageCount = a.long()
	m.ConsumerCount = a.long()
}
func (m *QueueDeclareOk) write(a *argWriter) {
	a.shortstr(m.Queue)
	a.long(m.MessageCount)
	a.long(m.ConsumerCount)
}

type QueueBind struct {
	noContent
	Queue      string
	Exchange   string
	RoutingKey string
	NoWait     bool
	Arguments  Table
}

func (*QueueBind) Key() MethodKey {
	return NewMethodKey(ClassQueue, MethodQueueBind)
}
func (m *QueueBind) read(a *argReader) {
	a.short()
	m.Queue = a.shortstr()
	m.Exchange = a.shortstr()
	m.RoutingKey = a.shortstr()
	m.NoWait = a.bit()
	m.Arguments = a.table()
}
func (m *QueueBind) write(a *argWriter) {
	a.short(0)
	a.shortstr(m.Queue)
	a.shortstr(m.Exchange)
	a.shortstr(m.RoutingKey)
	a.bit(m.NoWait)
	a.table(m.Arguments)
}

type QueueBindOk struct {
	noContent
}

func (*QueueBindOk) Key() MethodKey {
	return NewMethodKey(ClassQueue, MethodQueueBindOk)
}
func (m *QueueBindOk) read(a *argReader)  {}
func (m *QueueBindOk) write(a *argWriter) {}

type QueueUnbind struct {
	noContent
	Queue      string
	Exchange   string
	RoutingKey string
	Arguments  Table
}

func (*QueueUnbind) Key() MethodKey {
	return NewMethodKey(ClassQueue, MethodQueueUnbind)
}
func (m *QueueUnbind) read(a *argReader) {
	a.short()
	m.Queue = a.shortstr()
	m.Exchange = a.shortstr()
	m.RoutingKey = a.shortstr()
	m.Arguments = a.table()
}
func (m *QueueUnbind) write(a *argWriter) {
	a.short(0)
	a.shortstr(m.Queue)
	a.shortstr(m.Exchange)
	a.shortstr(m.RoutingKey)
	a.table(m.Arguments)
}

type QueueUnbindOk struct {
	noContent
}

func (*QueueUnbindOk) Key() MethodKey {
	return NewMethodKey(ClassQueue, MethodQueueUnbindOk)
}
func (m *QueueUnbindOk) read(a *argReader)  {}
func (m *QueueUnbindOk) write(a *argWriter) {}

type QueuePurge struct {
	noContent
	Queue  string
	NoWait bool
}

func (*QueuePurge) Key() MethodKey {
	return NewMethodKey(ClassQueue, MethodQueuePurge)
}
func (m *QueuePurge) read(a *argReader) {
	a.short()
	m.Queue = a.shortstr()
	m.NoWait = a.bit()
}
func (m *QueuePurge) write(a *argWriter) {
	a.short(0)
	a.shortstr(m.Queue)
	a.bit(m.NoWait)
}

type QueuePurgeOk struct {
	noContent
	MessageCount uint32
}

func (*QueuePurgeOk) Key() MethodKey {
	return NewMethodKey(ClassQueue, MethodQueuePurgeOk)
}
func (m *QueuePurgeOk) read(a *argReader)  { m.MessageCount = a.long() }
func (m *QueuePurgeOk) write(a *argWriter) { a.long(m.MessageCount) }

type QueueDelete struct {
	noContent
	Queue    string
	IfUnused bool
	IfEmpty  bool
	NoWait   bool
}

func (*QueueDelete) Key() MethodKey {
	return NewMethodKey(ClassQueue, MethodQueueDelete)
}
func (m *QueueDelete) read(a *argReader) {
	a.short()
	m.Queue = a.shortstr()
	m.IfUnused = a.bit()
	m.IfEmpty = a.bit()
	m.NoWait = a.bit()
}
func (m *QueueDelete) write(a *argWriter) {
	a.short(0)
	a.shortstr(m.Queue)
	a.bit(m.IfUnused)
	a.bit(m.IfEmpty)
	a.bit(m.NoWait)
}

type QueueDeleteOk struct {
	noContent
	MessageCount uint32
}

func (*QueueDeleteOk) Key() MethodKey {
	return NewMethodKey(ClassQueue, MethodQueueDeleteOk)
}
func (m *QueueDeleteOk) read(a *argReader)  { m.MessageCount = a.long() }
func (m *QueueDeleteOk) write(a *argWriter) { a.long(m.MessageCount) }

// ---- basic ----

type BasicQos struct {
	noContent
	PrefetchSize  uint32
	PrefetchCount uint16
	Global        bool
}

func (*BasicQos) Key() MethodKey {
	return NewMethodKey(ClassBasic, MethodBasicQos)
}
func (m *BasicQos) read(a *argReader) {
	m.PrefetchSize = a.long()
	m.PrefetchCount = a.short()
	m.Global = a.bit()
}
func (m *BasicQos) write(a *argWriter) {
	a.long(m.PrefetchSize)
	a.short(m.PrefetchCount)
	a.bit(m.Global)
}

type BasicQosOk struct {
	noContent
}

func (*BasicQosOk) Key() MethodKey {
	return NewMethodKey(ClassBasic, MethodBasicQosOk)
}
func (m *BasicQosOk) read(a *argReader)  {}
func (m *BasicQosOk) write(a *argWriter) {}

type BasicConsume struct {
	noContent
	Queue       string
	ConsumerTag string
	NoLocal     bool
	NoAck       bool
	Exclusive   bool
	NoWait      bool
	Arguments   Table
}

func (*BasicConsume) Key() MethodKey {
	return NewMethodKey(ClassBasic, MethodBasicConsume)
}
func (m *BasicConsume) read(a *argReader) {
	a.short()
	m.Queue = a.shortstr()
	m.ConsumerTag = a.shortstr()
	m.NoLocal = a.bit()
	m.NoAck = a.bit()
	m.Exclusive = a.bit()
	m.NoWait = a.bit()
	m.Arguments = a.table()
}
func (m *BasicConsume) write(a *argWriter) {
	a.short(0)
	a.shortstr(m.Queue)
	a.shortstr(m.ConsumerTag)
	a.bit(m.NoLocal)
	a.bit(m.NoAck)
	a.bit(m.Exclusive)
	a.bit(m.NoWait)
	a.table(m.Arguments)
}

type BasicConsumeOk struct {
	noContent
	ConsumerTag string
}

func (*BasicConsumeOk) Key() MethodKey {
	return NewMethodKey(ClassBasic, MethodBasicConsumeOk)
}
func (m *BasicConsumeOk) read(a *argReader)  { m.ConsumerTag = a.shortstr() }
func (m *BasicConsumeOk) write(a *argWriter) { a.shortstr(m.ConsumerTag) }

type BasicCancel struct {
	noContent
	ConsumerTag string
	NoWait      bool
}

func (*BasicCancel) Key() MethodKey {
	return NewMethodKey(ClassBasic, MethodBasicCancel)
}
func (m *BasicCancel) read(a *argReader) {
	m.ConsumerTag = a.shortstr()
	m.NoWait = a.bit()
}
func (m *BasicCancel) write(a *argWriter) {
	a.shortstr(m.ConsumerTag)
	a.bit(m.NoWait)
}

type BasicCancelOk struct {
	noContent
	ConsumerTag string
}

func (*BasicCancelOk) Key() MethodKey {
	return NewMethodKey(ClassBasic, MethodBasicCancelOk)
}
func (m *BasicCancelOk) read(a *argReader)  { m.ConsumerTag = a.shortstr() }
func (m *BasicCancelOk) write(a *argWriter) { a.shortstr(m.ConsumerTag) }

type BasicPublish struct {
	withContent
	Exchange   string
	RoutingKey string
	Mandatory  bool
	Immediate  bool
}

func (*BasicPublish) Key() MethodKey {
	return NewMethodKey(ClassBasic, MethodBasicPublish)
}
func (m *BasicPublish) read(a *argReader) {
	a.short()
	m.Exchange = a.shortstr()
	m.RoutingKey = a.shortstr()
	m.Mandatory = a.bit()
	m.Immediate = a.bit()
}
func (m *BasicPublish) write(a *argWriter) {
	a.short(0)
	a.shortstr(m.Exchange)
	a.shortstr(m.RoutingKey)
	a.bit(m.Mandatory)
	a.bit(m.Immediate)
}

type BasicReturn struct {
	withContent
	ReplyCode  uint16
	ReplyText  string
	Exchange   string
	RoutingKey string
}

func (*BasicReturn) Key() MethodKey {
	return NewMethodKey(ClassBasic, MethodBasicReturn)
}
func (m *BasicReturn) read(a *argReader) {
	m.ReplyCode = a.short()
	m.ReplyText = a.shortstr()
	m.Exchange = a.shortstr()
	m.RoutingKey = a.shortstr()
}
func (m *BasicReturn) write(a *argWriter) {
	a.short(m.ReplyCode)
	a.shortstr(m.ReplyText)
	a.shortstr(m.Exchange)
	a.shortstr(m.RoutingKey)
}

type BasicDeliver struct {
	withContent
	ConsumerTag string
	DeliveryTag uint64
	Redelivered bool
	Exchange    string
	RoutingKey  string
}

func (*BasicDeliver) Key() MethodKey {
	return NewMethodKey(ClassBasic, MethodBasicDeliver)
}
func (m *BasicDeliver) read(a *argReader) {
	m.ConsumerTag = a.shortstr()
	m.DeliveryTag = a.longlong()
	m.Redelivered = a.bit()
	m.Exchange = a.shortstr()
	m.RoutingKey = a.shortstr()
}
func (m *BasicDeliver) write(a *argWriter) {
	a.shortstr(m.ConsumerTag)
	a.longlong(m.DeliveryTag)
	a.bit(m.Redelivered)
	a.shortstr(m.Exchange)
	a.shortstr(m.RoutingKey)
}

type BasicGet struct {
	noContent
	Queue string
	NoAck bool
}

func (*BasicGet) Key() MethodKey {
	return NewMethodKey(ClassBasic, MethodBasicGet)
}
func (m *BasicGet) read(a *argReader) {
	a.short()
	m.Queue = a.shortstr()
	m.NoAck = a.bit()
}
func (m *BasicGet) write(a *argWriter) {
	a.short(0)
	a.shortstr(m.Queue)
	a.bit(m.NoAck)
}

type BasicGetOk struct {
	withContent
	DeliveryTag  uint64
	Redelivered  bool
	Exchange     string
	RoutingKey   string
	MessageCount uint32
}

func (*BasicGetOk) Key() MethodKey {
	return NewMethodKey(ClassBasic, MethodBasicGetOk)
}
func (m *BasicGetOk) read(a *argReader) {
	m.DeliveryTag = a.longlong()
	m.Redelivered = a.bit()
	m.Exchange = a.shortstr()
	m.RoutingKey = a.shortstr()
	m.MessageCount = a.long()
}
func (m *BasicGetOk) write(a *argWriter) {
	a.longlong(m.DeliveryTag)
	a.bit(m.Redelivered)
	a.shortstr(m.Exchange)
	a.shortstr(m.RoutingKey)
	a.long(m.MessageCount)
}

type BasicGetEmpty struct {
	noContent
}

func (*BasicGetEmpty) Key() MethodKey {
	return NewMethodKey(ClassBasic, MethodBasicGetEmpty)
}
func (m *BasicGetEmpty) read(a *argReader)  { a.shortstr() }
func (m *BasicGetEmpty) write(a *argWriter) { a.shortstr("") }

type BasicAck struct {
	noContent
	DeliveryTag uint64
	Multiple    bool
}

func (*BasicAck) Key() MethodKey {
	return NewMethodKey(ClassBasic, MethodBasicAck)
}
func (m *BasicAck) read(a *argReader) {
	m.DeliveryTag = a.longlong()
	m.Multiple = a.bit()
}
func (m *BasicAck) write(a *argWriter) {
	a.longlong(m.DeliveryTag)
	a.bit(m.Multiple)
}

type BasicReject struct {
	noContent
	DeliveryTag uint64
	Requeue     bool
}

func (*BasicReject) Key() MethodKey {
	return NewMethodKey(ClassBasic, MethodBasicReject)
}
func (m *BasicReject) read(a *argReader) {
	m.DeliveryTag = a.longlong()
	m.Requeue = a.bit()
}
func (m *BasicReject) write(a *argWriter) {
	a.longlong(m.DeliveryTag)
	a.bit(m.Requeue)
}

type BasicRecoverAsync struct {
	noContent
	Requeue bool
}

func (*BasicRecoverAsync) Key() MethodKey {
	return NewMethodKey(ClassBasic, MethodBasicRecoverAsync)
}
func (m *BasicRecoverAsync) read(a *argReader)  { m.Requeue = a.bit() }
func (m *BasicRecoverAsync) write(a *argWriter) { a.bit(m.Requeue) }

type BasicRecover struct {
	noContent
	Requeue bool
}

func (*BasicRecover) Key() MethodKey {
	return NewMethodKey(ClassBasic, MethodBasicRecover)
}
func (m *BasicRecover) read(a *argReader)  { m.Requeue = a.bit() }
func (m *BasicRecover) write(a *argWriter) { a.bit(m.Requeue) }

type BasicRecoverOk struct {
	noContent
}

func (*BasicRecoverOk) Key() MethodKey {
	return NewMethodKey(ClassBasic, MethodBasicRecoverOk)
}
func (m *BasicRecoverOk) read(a *argReader)  {}
func (m *BasicRecoverOk) write(a *argWriter) {}

type BasicNack struct {
	noContent
	DeliveryTag uint64
	Multiple    bool
	Requeue     bool
}

func (*BasicNack) Key() MethodKey {
	return NewMethodKey(ClassBasic, MethodBasicNack)
}
func (m *BasicNack) read(a *argReader) {
	m.DeliveryTag = a.longlong()
	m.Multiple = a.bit()
	m.Requeue = a.bit()
}
func (m *BasicNack) write(a *argWriter) {
	a.longlong(m.DeliveryTag)
	a.bit(m.Multiple)
	a.bit(m.Requeue)
}

// ---- confirm ----

type ConfirmSelect struct {
	noContent
	NoWait bool
}

func (*ConfirmSelect) Key() MethodKey {
	return NewMethodKey(ClassConfirm, MethodConfirmSelect)
}
func (m *ConfirmSelect) read(a *argReader)  { m.NoWait = a.bit() }
func (m *ConfirmSelect) write(a *argWriter) { a.bit(m.NoWait) }

type ConfirmSelectOk struct {
	noContent
}

func (*ConfirmSelectOk) Key() MethodKey {
	return NewMethodKey(ClassConfirm, MethodConfirmSelectOk)
}
func (m *ConfirmSelectOk) read(a *argReader)  {}
func (m *ConfirmSelectOk) write(a *argWriter) {}

// ---- tx ----

type TxSelect struct{ noContent }

func (*TxSelect) Key() MethodKey       { return NewMethodKey(ClassTx, MethodTxSelect) }
func (m *TxSelect) read(a *argReader)  {}
func (m *TxSelect) write(a *argWriter) {}

type TxSelectOk struct{ noContent }

func (*TxSelectOk) Key() MethodKey       { return NewMethodKey(ClassTx, MethodTxSelectOk) }
func (m *TxSelectOk) read(a *argReader)  {}
func (m *TxSelectOk) write(a *argWriter) {}

type TxCommit struct{ noContent }

func (*TxCommit) Key() MethodKey       { return NewMethodKey(ClassTx, MethodTxCommit) }
func (m *TxCommit) read(a *argReader)  {}
func (m *TxCommit) write(a *argWriter) {}

type TxCommitOk struct{ noContent }

func (*TxCommitOk) Key() MethodKey       { return NewMethodKey(ClassTx, MethodTxCommitOk) }
func (m *TxCommitOk) read(a *argReader)  {}
func (m *TxCommitOk) write(a *argWriter) {}

type TxRollback struct{ noContent }

func (*TxRollback) Key() MethodKey       { return NewMethodKey(ClassTx, MethodTxRollback) }
func (m *TxRollback) read(a *argReader)  {}
func (m *TxRollback) write(a *argWriter) {}

type TxRollbackOk struct{ noContent }

func (*TxRollbackOk) Key() MethodKey       { return NewMethodKey(ClassTx, MethodTxRollbackOk) }
func (m *TxRollbackOk) read(a *argReader)  {}
func (m *TxRollbackOk) write(a *argWriter) {}

var methodFactories = map[MethodKey]func() Method{
	NewMethodKey(ClassConnection, MethodConnectionStart):     func() Method { return &ConnectionStart{} },
	NewMethodKey(ClassConnection, MethodConnectionStartOk):   func() Method { return &ConnectionStartOk{} },
	NewMethodKey(ClassConnection, MethodConnectionSecure):    func() Method { return &ConnectionSecure{} },
	NewMethodKey(ClassConnection, MethodConnectionSecureOk):  func() Method { return &ConnectionSecureOk{} },
	NewMethodKey(ClassConnection, MethodConnectionTune):      func() Method { return &ConnectionTune{} },
	NewMethodKey(ClassConnection, MethodConnectionTuneOk):    func() Method { return &ConnectionTuneOk{} },
	NewMethodKey(ClassConnection, MethodConnectionOpen):      func() Method { return &ConnectionOpen{} },
	NewMethodKey(ClassConnection, MethodConnectionOpenOk):    func() Method { return &ConnectionOpenOk{} },
	NewMethodKey(ClassConnection, MethodConnectionClose):     func() Method { return &ConnectionClose{} },
	NewMethodKey(ClassConnection, MethodConnectionCloseOk):   func() Method { return &ConnectionCloseOk{} },
	NewMethodKey(ClassConnection, MethodConnectionBlocked):   func() Method { return &ConnectionBlocked{} },
	NewMethodKey(ClassConnection, MethodConnectionUnblocked): func() Method { return &ConnectionUnblocked{} },

	NewMethodKey(ClassChannel, MethodChannelOpen):    func() Method { return &ChannelOpen{} },
	NewMethodKey(ClassChannel, MethodChannelOpenOk):  func() Method { return &ChannelOpenOk{} },
	NewMethodKey(ClassChannel, MethodChannelFlow):    func() Method { return &ChannelFlow{} },
	NewMethodKey(ClassChannel, MethodChannelFlowOk):  func() Method { return &ChannelFlowOk{} },
	NewMethodKey(ClassChannel, MethodChannelClose):   func() Method { return &ChannelClose{} },
	NewMethodKey(ClassChannel, MethodChannelCloseOk): func() Method { return &ChannelCloseOk{} },

	NewMethodKey(ClassExchange, MethodExchangeDeclare):   func() Method { return &ExchangeDeclare{} },
	NewMethodKey(ClassExchange, MethodExchangeDeclareOk): func() Method { return &ExchangeDeclareOk{} },
	NewMethodKey(ClassExchange, MethodExchangeDelete):    func() Method { return &ExchangeDelete{} },
	NewMethodKey(ClassExchange, MethodExchangeDeleteOk):  func() Method { return &ExchangeDeleteOk{} },
	NewMethodKey(ClassExchange, MethodExchangeBind):      func() Method { return &ExchangeBind{} },
	NewMethodKey(ClassExchange, MethodExchangeBindOk):    func() Method { return &ExchangeBindOk{} },
	NewMethodKey(ClassExchange, MethodExchangeUnbind):    func() Method { return &ExchangeUnbind{} },
	NewMethodKey(ClassExchange, MethodExchangeUnbindOk):  func() Method { return &ExchangeUnbindOk{} },

	NewMethodKey(ClassQueue, MethodQueueDeclare):   func() Method { return &QueueDeclare{} },
	NewMethodKey(ClassQueue, MethodQueueDeclareOk): func() Method { return &QueueDeclareOk{} },
	NewMethodKey(ClassQueue, MethodQueueBind):      func() Method { return &QueueBind{} },
	NewMethodKey(ClassQueue, MethodQueueBindOk):    func() Method { return &QueueBindOk{} },
	NewMethodKey(ClassQueue, MethodQueueUnbind):    func() Method { return &QueueUnbind{} },
	NewMethodKey(ClassQueue, MethodQueueUnbindOk):  func() Method { return &QueueUnbindOk{} },
	NewMethodKey(ClassQueue, MethodQueuePurge):     func() Method { return &QueuePurge{} },
	NewMethodKey(ClassQueue, MethodQueuePurgeOk):   func() Method { return &QueuePurgeOk{} },
	NewMethodKey(ClassQueue, MethodQueueDelete):    func() Method { return &QueueDelete{} },
	NewMethodKey(ClassQueue, MethodQueueDeleteOk):  func() Method { return &QueueDeleteOk{} },

	NewMethodKey(ClassBasic, MethodBasicQos):          func() Method { return &BasicQos{} },
	NewMethodKey(ClassBasic, MethodBasicQosOk):        func() Method { return &BasicQosOk{} },
	NewMethodKey(ClassBasic, MethodBasicConsume):      func() Method { return &BasicConsume{} },
	NewMethodKey(ClassBasic, MethodBasicConsumeOk):    func() Method { return &BasicConsumeOk{} },
	NewMethodKey(ClassBasic, MethodBasicCancel):       func() Method { return &BasicCancel{} },
	NewMethodKey(ClassBasic, MethodBasicCancelOk):     func() Method { return &BasicCancelOk{} },
	NewMethodKey(ClassBasic, MethodBasicPublish):      func() Method { return &BasicPublish{} },
	NewMethodKey(ClassBasic, MethodBasicReturn):       func() Method { return &BasicReturn{} },
	NewMethodKey(ClassBasic, MethodBasicDeliver):      func() Method { return &BasicDeliver{} },
	NewMethodKey(ClassBasic, MethodBasicGet):          func() Method { return &BasicGet{} },
	NewMethodKey(ClassBasic, MethodBasicGetOk):        func() Method { return &BasicGetOk{} },
	NewMethodKey(ClassBasic, MethodBasicGetEmpty):     func() Method { return &BasicGetEmpty{} },
	NewMethodKey(ClassBasic, MethodBasicAck):          func() Method { return &BasicAck{} },
	NewMethodKey(ClassBasic, MethodBasicReject):       func() Method { return &BasicReject{} },
	NewMethodKey(ClassBasic, MethodBasicRecoverAsync): func() Method { return &BasicRecoverAsync{} },
	NewMethodKey(ClassBasic, MethodBasicRecover):      func() Method { return &BasicRecover{} },
	NewMethodKey(ClassBasic, MethodBasicRecoverOk):    func() Method { return &BasicRecoverOk{} },
	NewMethodKey(ClassBasic, MethodBasicNack):         func() Method { return &BasicNack{} },

	NewMethodKey(ClassConfirm, MethodConfirmSelect):   func() Method { return &ConfirmSelect{} },
	NewMethodKey(ClassConfirm, MethodConfirmSelectOk): func() Method { return &ConfirmSelectOk{} },

	NewMethodKey(ClassTx, MethodTxSelect):     func() Method { return &TxSelect{} },
	NewMethodKey(ClassTx, MethodTxSelectOk):   func() Method { return &TxSelectOk{} },
	NewMethodKey(ClassTx, MethodTxCommit):     func() Method { return &TxCommit{} },
	NewMethodKey(ClassTx, MethodTxCommitOk):   func() Method { return &TxCommitOk{} },
	NewMethodKey(ClassTx, MethodTxRollback):   func() Method { return &TxRollback{} },
	NewMethodKey(ClassTx, MethodTxRollbackOk): func() Method { return &TxRollbackOk{} },
}

// DecodeMethod parses a method frame payload: class id, method id and arguments.
func DecodeMethod(payload []byte) (Method, error) {
	a := newArgReader(payload)
	classID := a.short()
	methodID := a.short()
	if a.err != nil {
		return nil, fmt.Errorf("reading method header: %w", a.err)
	}

	key := NewMethodKey(classID, methodID)
	factory, ok := methodFactories[key]
	if !ok {
		return nil, fmt.Errorf("%w: class %d, method %d", ErrUnknownMethod, classID, methodID)
	}

	m := factory()
	m.read(a)
	if a.err != nil {
		return nil, fmt.Errorf("decoding %s: %w", key, a.err)
	}
	return m, nil
}

// EncodeMethod serializes a method into a method frame payload.
func EncodeMethod(m Method) ([]byte, error) {
	a := newArgWriter()
	key := m.Key()
	a.short(key.ClassID())
	a.short(key.MethodID())
	m.write(a)
	payload, err := a.bytes()
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", key, err)
	}
	return payload, nil
}
