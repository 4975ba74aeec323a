package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrFrameEnd is returned when a frame is not terminated by the frame-end octet
	ErrFrameEnd = errors.New("frame-end octet missing")
	// ErrUnknownFrameType is returned for frame types outside method, header, body and heartbeat
	ErrUnknownFrameType = errors.New("unknown frame type")
)

// Frame is a decoded frame tagged with the channel it arrived on
type Frame interface {
	Channel() uint16
	Type() byte
}

type MethodFrame struct {
	ChannelID uint16
	Method    Method
}

func (f *MethodFrame) Channel() uint16 { return f.ChannelID }
func (f *MethodFrame) Type() byte      { return FrameMethod }

// Encode returns the wire bytes of the frame
func (f *MethodFrame) Encode() ([]byte, error) {
	payload, err := EncodeMethod(f.Method)
	if err != nil {
		return nil, err
	}
	return EncodeFrame(FrameMethod, f.ChannelID, payload), nil
}

type HeaderFrame struct {
	ChannelID uint16
	Header    *ContentHeader
}

func (f *HeaderFrame) Channel() uint16 { return f.ChannelID }
func (f *HeaderFrame) Type() byte      { return FrameHeader }

func (f *HeaderFrame) Encode() ([]byte, error) {
	payload, err := f.Header.Encode()
	if err != nil {
		return nil, err
	}
	return EncodeFrame(FrameHeader, f.ChannelID, payload), nil
}

type BodyFrame struct {
	ChannelID uint16
	Body      []byte
}

func (f *BodyFrame) Channel() uint16 { return f.ChannelID }
func (f *BodyFrame) Type() byte      { return FrameBody }

func (f *BodyFrame) Encode() ([]byte, error) {
	return EncodeFrame(FrameBody, f.ChannelID, f.Body), nil
}

type HeartbeatFrame struct{}

func (f *HeartbeatFrame) Channel() uint16 { return 0 }
func (f *HeartbeatFrame) Type() byte      { return FrameHeartbeat }

func (f *HeartbeatFrame) Encode() ([]byte, error) {
	return EncodeFrame(FrameHeartbeat, 0, nil), nil
}

// ExtractFrame returns the first complete frame held in buf, including its header and
// frame-end octet. ok is false if buf does not hold a whole frame yet; buf is never modified.
func ExtractFrame(buf []byte) (raw []byte, ok bool) {
	if len(buf) < frameHeaderSize {
		return nil, false
	}
	size := binary.BigEndian.Uint32(buf[3:7])
	total := uint64(frameHeaderSize) + uint64(size) + 1
	if uint64(len(buf)) < total {
		return nil, false
	}
	return buf[:total], true
}

// PayloadSize reports the payload length announced by a frame header.
// buf must hold at least the 7 header bytes.
func PayloadSize(buf []byte) (uint32, bool) {
	if len(buf) < frameHeaderSize {
		return 0, false
	}
	return binary.BigEndian.Uint32(buf[3:7]), true
}

// DecodeFrame parses one complete frame as returned by ExtractFrame
func DecodeFrame(raw []byte) (Frame, error) {
	if len(raw) < FrameOverhead {
		return nil, fmt.Errorf("frame too short: %d bytes", len(raw))
	}
	frameType := raw[0]
	channel := binary.BigEndian.Uint16(raw[1:3])
	size := binary.BigEndian.Uint32(raw[3:7])
	if uint64(len(raw)) != uint64(frameHeaderSize)+uint64(size)+1 {
		return nil, fmt.Errorf("frame length %d does not match payload size %d", len(raw), size)
	}
	if raw[len(raw)-1] != FrameEnd {
		return nil, fmt.Errorf("%w: got %x", ErrFrameEnd, raw[len(raw)-1])
	}
	payload := raw[frameHeaderSize : len(raw)-1]

	switch frameType {
	case FrameMethod:
		m, err := DecodeMethod(payload)
		if err != nil {
			return nil, err
		}
		return &MethodFrame{ChannelID: channel, Method: m}, nil
	case FrameHeader:
		h, err := DecodeContentHeader(payload)
		if err != nil {
			return nil, fmt.Errorf("decoding content header: %w", err)
		}
		return &HeaderFrame{ChannelID: channel, Header: h}, nil
	case FrameBody:
		body := make([]byte, len(payload))
		copy(body, payload)
		return &BodyFrame{ChannelID: channel, Body: body}, nil
	case FrameHeartbeat:
		return &HeartbeatFrame{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownFrameType, frameType)
	}
}

// EncodeFrame wraps a payload with the frame header and frame-end octet
func EncodeFrame(frameType byte, channel uint16, payload []byte) []byte {
	out := make([]byte, frameHeaderSize+len(payload)+1)
	out[0] = frameType
	binary.BigEndian.PutUint16(out[1:3], channel)
	binary.BigEndian.PutUint32(out[3:7], uint32(len(payload)))
	copy(out[frameHeaderSize:], payload)
	out[len(out)-1] = FrameEnd
	return out
}

// EncodeContent encodes a content-carrying method as a frameset: method frame, header frame
// and as many body frames as needed for every frame to fit in frameMax.
func EncodeContent(channel uint16, m Method, props Properties, body []byte, frameMax uint32) ([][]byte, error) {
	if !m.HasContent() {
		return nil, fmt.Errorf("%s does not carry content", m.Key())
	}
	if frameMax == 0 {
		frameMax = DefaultFrameMax
	}
	if frameMax <= FrameOverhead {
		return nil, fmt.Errorf("frame max %d too small", frameMax)
	}

	methodFrame, err := (&MethodFrame{ChannelID: channel, Method: m}).Encode()
	if err != nil {
		return nil, err
	}
	header := &ContentHeader{ClassID: m.Key().ClassID(), BodySize: uint64(len(body)), Properties: props}
	headerFrame, err := (&HeaderFrame{ChannelID: channel, Header: header}).Encode()
	if err != nil {
		return nil, err
	}

	frames := [][]byte{methodFrame, headerFrame}
	chunk := int(frameMax - FrameOverhead)
	for start := 0; start < len(body); start += chunk {
		end := start + chunk
		if end > len(body) {
			end = len(body)
		}
		frames = append(frames, EncodeFrame(FrameBody, channel, body[start:end]))
	}
	return frames, nil
}
