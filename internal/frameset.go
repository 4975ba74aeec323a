package internal

import (
	"fmt"

	amqpError "github.com/aleybovich/carrot-amqp/amqperror"
	"github.com/aleybovich/carrot-amqp/protocol"
)

// frameset is one complete method, with its content header and body when the method carries content
type frameset struct {
	channelID uint16
	method    protocol.Method
	header    *protocol.ContentHeader
	bodies    [][]byte
}

func (fs *frameset) body() []byte {
	var size int
	for _, b := range fs.bodies {
		size += len(b)
	}
	out := make([]byte, 0, size)
	for _, b := range fs.bodies {
		out = append(out, b...)
	}
	return out
}

func (fs *frameset) properties() protocol.Properties {
	if fs.header == nil {
		return protocol.Properties{}
	}
	return fs.header.Properties
}

// framesetBuffer collects frames per channel until a frameset is complete.
// At most one frameset is in progress per channel.
type framesetBuffer struct {
	inProgress map[uint16]*pendingFrameset
}

type pendingFrameset struct {
	fs       *frameset
	received uint64
}

func newFramesetBuffer() *framesetBuffer {
	return &framesetBuffer{inProgress: make(map[uint16]*pendingFrameset)}
}

func unexpectedFrame(channelID uint16, format string, a ...any) error {
	return &ProtocolError{ChannelID: channelID, Code: amqpError.UnexpectedFrame, Reason: fmt.Sprintf(format, a...)}
}

// add appends a frame and returns the frameset once it is complete
func (b *framesetBuffer) add(f protocol.Frame) (*frameset, error) {
	id := f.Channel()
	pending := b.inProgress[id]

	switch fr := f.(type) {
	case *protocol.MethodFrame:
		if pending != nil {
			return nil, unexpectedFrame(id, "method %s while content of %s is incomplete", fr.Method.Key(), pending.fs.method.Key())
		}
		fs := &frameset{channelID: id, method: fr.Method}
		if !fr.Method.HasContent() {
			return fs, nil
		}
		b.inProgress[id] = &pendingFrameset{fs: fs}
		return nil, nil

	case *protocol.HeaderFrame:
		if pending == nil {
			return nil, unexpectedFrame(id, "content header without a method")
		}
		if pending.fs.header != nil {
			return nil, unexpectedFrame(id, "second content header for %s", pending.fs.method.Key())
		}
		pending.fs.header = fr.Header
		if fr.Header.BodySize == 0 {
			delete(b.inProgress, id)
			return pending.fs, nil
		}
		return nil, nil

	case *protocol.BodyFrame:
		if pending == nil || pending.fs.header == nil {
			return nil, unexpectedFrame(id, "content body without a header")
		}
		pending.fs.bodies = append(pending.fs.bodies, fr.Body)
		pending.received += uint64(len(fr.Body))
		size := pending.fs.header.BodySize
		if pending.received > size {
			return nil, unexpectedFrame(id, "content body of %d bytes exceeds declared %d", pending.received, size)
		}
		if pending.received == size {
			delete(b.inProgress, id)
			return pending.fs, nil
		}
		return nil, nil

	default:
		return nil, unexpectedFrame(id, "frame type %s cannot be part of a frameset", protocol.FrameTypeName(f.Type()))
	}
}

// discard drops the frameset in progress on one channel
func (b *framesetBuffer) discard(channelID uint16) {
	delete(b.inProgress, channelID)
}

func (b *framesetBuffer) reset() {
	b.inProgress = make(map[uint16]*pendingFrameset)
}
