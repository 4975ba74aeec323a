package protocol

import "fmt"

// MethodKey identifies a method by its class and method id (class<<16 | method).
type MethodKey uint32

// NewMethodKey builds the key for a class and method id pair
func NewMethodKey(classID, methodID uint16) MethodKey {
	return MethodKey(uint32(classID)<<16 | uint32(methodID))
}

// ClassID returns the class part of the key
func (k MethodKey) ClassID() uint16 { return uint16(k >> 16) }

// MethodID returns the method part of the key
func (k MethodKey) MethodID() uint16 { return uint16(k) }

func (k MethodKey) String() string {
	return FullMethodName(k.ClassID(), k.MethodID())
}

// FrameTypeName returns a string representation of a frame type
func FrameTypeName(frameType byte) string {
	switch frameType {
	case FrameMethod:
		return "METHOD"
	case FrameHeader:
		return "HEADER"
	case FrameBody:
		return "BODY"
	case FrameHeartbeat:
		return "HEARTBEAT"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", frameType)
	}
}

// ClassName returns a string representation of a class ID
func ClassName(classID uint16) string {
	switch classID {
	case ClassConnection:
		return "connection"
	case ClassChannel:
		return "channel"
	case ClassExchange:
		return "exchange"
	case ClassQueue:
		return "queue"
	case ClassBasic:
		return "basic"
	case ClassConfirm:
		return "confirm"
	case ClassTx:
		return "tx"
	default:
		return fmt.Sprintf("unknown(%d)", classID)
	}
}

var methodNames = map[MethodKey]string{
	NewMethodKey(ClassConnection, MethodConnectionStart):     "start",
	NewMethodKey(ClassConnection, MethodConnectionStartOk):   "start-ok",
	NewMethodKey(ClassConnection, MethodConnectionSecure):    "secure",
	NewMethodKey(ClassConnection, MethodConnectionSecureOk):  "secure-ok",
	NewMethodKey(ClassConnection, MethodConnectionTune):      "tune",
	NewMethodKey(ClassConnection, MethodConnectionTuneOk):    "tune-ok",
	NewMethodKey(ClassConnection, MethodConnectionOpen):      "open",
	NewMethodKey(ClassConnection, MethodConnectionOpenOk):    "open-ok",
	NewMethodKey(ClassConnection, MethodConnectionClose):     "close",
	NewMethodKey(ClassConnection, MethodConnectionCloseOk):   "close-ok",
	NewMethodKey(ClassConnection, MethodConnectionBlocked):   "blocked",
	NewMethodKey(ClassConnection, MethodConnectionUnblocked): "unblocked",

	NewMethodKey(ClassChannel, MethodChannelOpen):    "open",
	NewMethodKey(ClassChannel, MethodChannelOpenOk):  "open-ok",
	NewMethodKey(ClassChannel, MethodChannelFlow):    "flow",
	NewMethodKey(ClassChannel, MethodChannelFlowOk):  "flow-ok",
	NewMethodKey(ClassChannel, MethodChannelClose):   "close",
	NewMethodKey(ClassChannel, MethodChannelCloseOk): "close-ok",

	NewMethodKey(ClassExchange, MethodExchangeDeclare):   "declare",
	NewMethodKey(ClassExchange, MethodExchangeDeclareOk): "declare-ok",
	NewMethodKey(ClassExchange, MethodExchangeDelete):    "delete",
	NewMethodKey(ClassExchange, MethodExchangeDeleteOk):  "delete-ok",
	NewMethodKey(ClassExchange, MethodExchangeBind):      "bind",
	NewMethodKey(ClassExchange, MethodExchangeBindOk):    "bind-ok",
	NewMethodKey(ClassExchange, MethodExchangeUnbind):    "unbind",
	NewMethodKey(ClassExchange, MethodExchangeUnbindOk):  "unbind-ok",

	NewMethodKey(ClassQueue, MethodQueueDeclare):   "declare",
	NewMethodKey(ClassQueue, MethodQueueDeclareOk): "declare-ok",
	NewMethodKey(ClassQueue, MethodQueueBind):      "bind",
	NewMethodKey(ClassQueue, MethodQueueBindOk):    "bind-ok",
	NewMethodKey(ClassQueue, MethodQueuePurge):     "purge",
	NewMethodKey(ClassQueue, MethodQueuePurgeOk):   "purge-ok",
	NewMethodKey(ClassQueue, MethodQueueDelete):    "delete",
	NewMethodKey(ClassQueue, MethodQueueDeleteOk):  "delete-ok",
	NewMethodKey(ClassQueue, MethodQueueUnbind):    "unbind",
	NewMethodKey(ClassQueue, MethodQueueUnbindOk):  "unbind-ok",

	NewMethodKey(ClassBasic, MethodBasicQos):          "qos",
	NewMethodKey(ClassBasic, MethodBasicQosOk):        "qos-ok",
	NewMethodKey(ClassBasic, MethodBasicConsume):      "consume",
	NewMethodKey(ClassBasic, MethodBasicConsumeOk):    "consume-ok",
	NewMethodKey(ClassBasic, MethodBasicCancel):       "cancel",
	NewMethodKey(ClassBasic, MethodBasicCancelOk):     "cancel-ok",
	NewMethodKey(ClassBasic, MethodBasicPublish):      "publish",
	NewMethodKey(ClassBasic, MethodBasicReturn):       "return",
	NewMethodKey(ClassBasic, MethodBasicDeliver):      "deliver",
	NewMethodKey(ClassBasic, MethodBasicGet):          "get",
	NewMethodKey(ClassBasic, MethodBasicGetOk):        "get-ok",
	NewMethodKey(ClassBasic, MethodBasicGetEmpty):     "get-empty",
	NewMethodKey(ClassBasic, MethodBasicAck):          "ack",
	NewMethodKey(ClassBasic, MethodBasicReject):       "reject",
	NewMethodKey(ClassBasic, MethodBasicRecoverAsync): "recover-async",
	NewMethodKey(ClassBasic, MethodBasicRecover):      "recover",
	NewMethodKey(ClassBasic, MethodBasicRecoverOk):    "recover-ok",
	NewMethodKey(ClassBasic, MethodBasicNack):         "nack",

	NewMethodKey(ClassConfirm, MethodConfirmSelect):   "select",
	NewMethodKey(ClassConfirm, MethodConfirmSelectOk): "select-ok",

	NewMethodKey(ClassTx, MethodTxSelect):     "select",
	NewMethodKey(ClassTx, MethodTxSelectOk):   "select-ok",
	NewMethodKey(ClassTx, MethodTxCommit):     "commit",
	NewMethodKey(ClassTx, MethodTxCommitOk):   "commit-ok",
	NewMethodKey(ClassTx, MethodTxRollback):   "rollback",
	NewMethodKey(ClassTx, MethodTxRollbackOk): "rollback-ok",
}

// MethodName returns a string representation of a method ID within a class
func MethodName(classID uint16, methodID uint16) string {
	if name, ok := methodNames[NewMethodKey(classID, methodID)]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", methodID)
}

// FullMethodName returns the complete method name as class.method
func FullMethodName(classID uint16, methodID uint16) string {
	return fmt.Sprintf("%s.%s", ClassName(classID), MethodName(classID, methodID))
}
