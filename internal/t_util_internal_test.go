package internal

import (
	"testing"

	"github.com/aleybovich/carrot-amqp/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelIDAllocator(t *testing.T) {
	a := newChannelIDAllocator(3)

	for want := uint16(1); want <= 3; want++ {
		id, err := a.next()
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}
	_, err := a.next()
	require.ErrorIs(t, err, ErrNoFreeChannelIDs)

	a.release(2)
	a.release(2)
	id, err := a.next()
	require.NoError(t, err)
	assert.Equal(t, uint16(2), id, "lowest free id first")

	a.release(1)
	require.NoError(t, a.reserve(1))
	require.Error(t, a.reserve(1))
	require.ErrorIs(t, a.reserve(0), ErrChannelIDOutOfRange)
	require.ErrorIs(t, a.reserve(4), ErrChannelIDOutOfRange)

	a.release(1000)
	assert.False(t, a.allocated(1000))
}

func TestChannelIDAllocator_Limit(t *testing.T) {
	a := newChannelIDAllocator(0)
	require.NoError(t, a.reserve(maxChannelID))

	a.limit(2)
	assert.True(t, a.allocated(maxChannelID), "ids above a new limit stay allocated")
	require.ErrorIs(t, a.reserve(3), ErrChannelIDOutOfRange)

	a.release(maxChannelID)
	assert.False(t, a.allocated(maxChannelID), "ids above the limit can still be released")

	a.limit(0)
	require.NoError(t, a.reserve(3))
	require.NoError(t, a.reserve(maxChannelID), "the released id is free once the limit widens")
}

func TestCallbacks(t *testing.T) {
	cb := newCallbacks()
	assert.False(t, cb.exec("nothing"))

	var got []string
	cb.append("ev", func(args ...any) { got = append(got, "first:"+args[0].(string)) })
	cb.append("ev", func(args ...any) {
		got = append(got, "second:"+args[0].(string))
		// registering from inside a callback must not deadlock
		cb.append("ev", func(...any) { got = append(got, "late") })
	})
	cb.append("ev", nil)

	assert.True(t, cb.exec("ev", "a"))
	assert.Equal(t, []string{"first:a", "second:a"}, got)

	got = nil
	assert.True(t, cb.execOnce("ev", "b"))
	assert.Equal(t, []string{"first:b", "second:b", "late"}, got)

	// the callbacks that ran are gone; one registered while they ran survives
	got = nil
	assert.True(t, cb.exec("ev", "c"))
	assert.Equal(t, []string{"late"}, got)

	got = nil
	cb.clear("ev")
	assert.False(t, cb.execOnce("ev", "d"))
	assert.Empty(t, got)
}

func TestCallbacks_DefineClearAndSelf(t *testing.T) {
	cb := newCallbacks()
	var got []any

	cb.append("ev", func(args ...any) { got = append(got, "appended") })
	cb.define("ev", func(args ...any) { got = append(got, args...) })
	assert.True(t, cb.execWithSelf("ev", "self", 1))
	assert.Equal(t, []any{"self", 1}, got, "define replaces earlier callbacks")

	cb.clear("ev")
	assert.False(t, cb.exec("ev"))

	cb.define("ev", func(...any) {})
	cb.define("ev", nil)
	assert.False(t, cb.exec("ev"), "defining nil clears the event")
}

func TestFramesetBuffer(t *testing.T) {
	buf := newFramesetBuffer()

	fs, err := buf.add(&protocol.MethodFrame{ChannelID: 1, Method: &protocol.QueueDeclareOk{Queue: "q"}})
	require.NoError(t, err)
	require.NotNil(t, fs, "a method without content is complete on its own")

	fs, err = buf.add(&protocol.MethodFrame{ChannelID: 1, Method: &protocol.BasicDeliver{ConsumerTag: "c"}})
	require.NoError(t, err)
	assert.Nil(t, fs)

	// another channel may interleave
	fs, err = buf.add(&protocol.MethodFrame{ChannelID: 2, Method: &protocol.BasicAck{DeliveryTag: 1}})
	require.NoError(t, err)
	require.NotNil(t, fs)

	fs, err = buf.add(&protocol.HeaderFrame{ChannelID: 1, Header: &protocol.ContentHeader{ClassID: protocol.ClassBasic, BodySize: 5}})
	require.NoError(t, err)
	assert.Nil(t, fs)

	fs, err = buf.add(&protocol.BodyFrame{ChannelID: 1, Body: []byte("he")})
	require.NoError(t, err)
	assert.Nil(t, fs)
	fs, err = buf.add(&protocol.BodyFrame{ChannelID: 1, Body: []byte("llo")})
	require.NoError(t, err)
	require.NotNil(t, fs)
	assert.Equal(t, []byte("hello"), fs.body())

	_, err = buf.add(&protocol.BodyFrame{ChannelID: 3, Body: []byte("x")})
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
}

func TestFramesetBuffer_EmptyBodyCompletesOnHeader(t *testing.T) {
	buf := newFramesetBuffer()
	_, err := buf.add(&protocol.MethodFrame{ChannelID: 1, Method: &protocol.BasicDeliver{ConsumerTag: "c"}})
	require.NoError(t, err)
	fs, err := buf.add(&protocol.HeaderFrame{ChannelID: 1, Header: &protocol.ContentHeader{ClassID: protocol.ClassBasic}})
	require.NoError(t, err)
	require.NotNil(t, fs)
	assert.Empty(t, fs.body())
}
