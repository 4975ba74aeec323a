package protocol

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFrame_PartialHeaderAndPayload(t *testing.T) {
	raw := EncodeFrame(FrameBody, 3, []byte("hello"))

	for i := 0; i < len(raw); i++ {
		_, ok := ExtractFrame(raw[:i])
		assert.False(t, ok, "frame should not be complete with %d of %d bytes", i, len(raw))
	}

	got, ok := ExtractFrame(append(append([]byte{}, raw...), 0x01, 0x02))
	require.True(t, ok)
	assert.Equal(t, raw, got, "only the first frame should be returned")
}

func TestDecodeFrame_BadFrameEnd(t *testing.T) {
	raw := EncodeFrame(FrameBody, 1, []byte("x"))
	raw[len(raw)-1] = 0x00

	_, err := DecodeFrame(raw)
	require.ErrorIs(t, err, ErrFrameEnd)
}

func TestDecodeFrame_UnknownType(t *testing.T) {
	_, err := DecodeFrame(EncodeFrame(42, 1, nil))
	require.ErrorIs(t, err, ErrUnknownFrameType)
}

func TestDecodeFrame_Heartbeat(t *testing.T) {
	raw, err := (&HeartbeatFrame{}).Encode()
	require.NoError(t, err)
	assert.Equal(t, []byte{FrameHeartbeat, 0, 0, 0, 0, 0, 0, FrameEnd}, raw)

	f, err := DecodeFrame(raw)
	require.NoError(t, err)
	assert.IsType(t, &HeartbeatFrame{}, f)
}

func TestDecodeMethod_UnknownMethod(t *testing.T) {
	_, err := DecodeMethod([]byte{0, 60, 0, 99})
	require.ErrorIs(t, err, ErrUnknownMethod)
}

func TestMethodFrame_QueueDeclareBits(t *testing.T) {
	m := &QueueDeclare{Queue: "q1", Durable: true, AutoDelete: true, NoWait: true, Arguments: Table{"x-max-length": int32(10)}}
	raw, err := (&MethodFrame{ChannelID: 7, Method: m}).Encode()
	require.NoError(t, err)

	// class, method, reserved short, shortstr "q1", then one packed bit octet
	payload := raw[7 : len(raw)-1]
	bitsOctet := payload[2+2+2+1+2]
	assert.Equal(t, byte(0b00011010), bitsOctet, "durable, auto-delete and no-wait bits")

	f, err := DecodeFrame(raw)
	require.NoError(t, err)
	mf, ok := f.(*MethodFrame)
	require.True(t, ok)
	assert.Equal(t, uint16(7), mf.Channel())
	decoded, ok := mf.Method.(*QueueDeclare)
	require.True(t, ok)
	assert.Equal(t, "q1", decoded.Queue)
	assert.False(t, decoded.Passive)
	assert.True(t, decoded.Durable)
	assert.False(t, decoded.Exclusive)
	assert.True(t, decoded.AutoDelete)
	assert.True(t, decoded.NoWait)
	assert.Equal(t, int32(10), decoded.Arguments["x-max-length"])
}

func TestMethodFrame_DeliverMixesBitsAndStrings(t *testing.T) {
	m := &BasicDeliver{ConsumerTag: "ctag", DeliveryTag: 42, Redelivered: true, Exchange: "amq.fanout", RoutingKey: "rk"}
	payload, err := EncodeMethod(m)
	require.NoError(t, err)

	decoded, err := DecodeMethod(payload)
	require.NoError(t, err)
	assert.Equal(t, m, decoded)
	assert.True(t, decoded.HasContent())
}

func TestMethodKey_Names(t *testing.T) {
	key := (&QueueDeclareOk{}).Key()
	assert.Equal(t, uint16(ClassQueue), key.ClassID())
	assert.Equal(t, uint16(MethodQueueDeclareOk), key.MethodID())
	assert.Equal(t, "queue.declare-ok", key.String())
	assert.Equal(t, "basic.unknown(999)", FullMethodName(ClassBasic, 999))
}

func TestShortStringTooLong(t *testing.T) {
	long := string(bytes.Repeat([]byte("a"), 256))
	_, err := EncodeMethod(&QueueDeclare{Queue: long})
	require.Error(t, err)
}

func TestContentHeader_Properties(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	h := &ContentHeader{
		BodySize: 5,
		Properties: Properties{
			ContentType:   "text/plain",
			Headers:       Table{"k": "v"},
			DeliveryMode:  Persistent,
			CorrelationId: "corr",
			Timestamp:     ts,
			AppId:         "app",
		},
	}
	payload, err := h.Encode()
	require.NoError(t, err)

	// flags sit after class (2), weight (2) and body size (8)
	flags := uint16(payload[12])<<8 | uint16(payload[13])
	assert.Equal(t, uint16(flagContentType|flagHeaders|flagDeliveryMode|flagCorrelationId|flagTimestamp|flagAppId), flags)

	decoded, err := DecodeContentHeader(payload)
	require.NoError(t, err)
	assert.Equal(t, uint16(ClassBasic), decoded.ClassID)
	assert.Equal(t, uint64(5), decoded.BodySize)
	assert.Equal(t, "text/plain", decoded.Properties.ContentType)
	assert.Equal(t, "v", decoded.Properties.Headers["k"])
	assert.Equal(t, Persistent, decoded.Properties.DeliveryMode)
	assert.Equal(t, "corr", decoded.Properties.CorrelationId)
	assert.True(t, ts.Equal(decoded.Properties.Timestamp))
	assert.Equal(t, "app", decoded.Properties.AppId)
	assert.Empty(t, decoded.Properties.ReplyTo)
}

func TestEncodeContent_SplitsBodyToFrameMax(t *testing.T) {
	body := bytes.Repeat([]byte("b"), 25)
	frames, err := EncodeContent(1, &BasicPublish{Exchange: "amq.fanout"}, Properties{}, body, FrameOverhead+10)
	require.NoError(t, err)
	require.Len(t, frames, 5, "method, header and three body frames")

	var reassembled []byte
	for i, raw := range frames[2:] {
		f, err := DecodeFrame(raw)
		require.NoError(t, err)
		bf, ok := f.(*BodyFrame)
		require.True(t, ok, "frame %d should be a body frame", i)
		assert.LessOrEqual(t, len(raw), FrameOverhead+10)
		reassembled = append(reassembled, bf.Body...)
	}
	assert.Equal(t, body, reassembled)
}

func TestEncodeContent_EmptyBodyHasNoBodyFrames(t *testing.T) {
	frames, err := EncodeContent(1, &BasicPublish{}, Properties{}, nil, 0)
	require.NoError(t, err)
	assert.Len(t, frames, 2)
}

func TestEncodeContent_RejectsContentFreeMethod(t *testing.T) {
	_, err := EncodeContent(1, &QueueBind{}, Properties{}, []byte("x"), 0)
	require.Error(t, err)
}
