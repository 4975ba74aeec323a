package protocol

import (
	"bytes"
	"fmt"
	"time"
)

// Property flag bits of the basic class content header, highest bit first
const (
	flagContentType     = 0x8000
	flagContentEncoding = 0x4000
	flagHeaders         = 0x2000
	flagDeliveryMode    = 0x1000
	flagPriority        = 0x0800
	flagCorrelationId   = 0x0400
	flagReplyTo         = 0x0200
	flagExpiration      = 0x0100
	flagMessageId       = 0x0080
	flagTimestamp       = 0x0040
	flagType            = 0x0020
	flagUserId          = 0x0010
	flagAppId           = 0x0008
	flagClusterId       = 0x0004
)

const (
	Transient  uint8 = 1
	Persistent uint8 = 2
)

// Properties are the basic class content properties carried by a header frame
type Properties struct {
	ContentType     string
	ContentEncoding string
	Headers         Table
	DeliveryMode    uint8
	Priority        uint8
	CorrelationId   string
	ReplyTo         string
	Expiration      string
	MessageId       string
	Timestamp       time.Time
	Type            string
	UserId          string
	AppId           string
	ClusterId       string
}

// ContentHeader is the payload of a header frame
type ContentHeader struct {
	ClassID    uint16
	Weight     uint16
	BodySize   uint64
	Properties Properties
}

// DecodeContentHeader parses a header frame payload
func DecodeContentHeader(payload []byte) (*ContentHeader, error) {
	reader := bytes.NewReader(payload)
	h := &ContentHeader{}
	var err error

	if h.ClassID, err = readShort(reader); err != nil {
		return nil, fmt.Errorf("reading class id: %w", err)
	}
	if h.Weight, err = readShort(reader); err != nil {
		return nil, fmt.Errorf("reading weight: %w", err)
	}
	if h.BodySize, err = readLongLong(reader); err != nil {
		return nil, fmt.Errorf("reading body size: %w", err)
	}
	flags, err := readShort(reader)
	if err != nil {
		return nil, fmt.Errorf("reading property flags: %w", err)
	}

	p := &h.Properties
	if flags&flagContentType != 0 {
		if p.ContentType, err = readShortString(reader); err != nil {
			return nil, fmt.Errorf("reading content-type: %w", err)
		}
	}
	if flags&flagContentEncoding != 0 {
		if p.ContentEncoding, err = readShortString(reader); err != nil {
			return nil, fmt.Errorf("reading content-encoding: %w", err)
		}
	}
	if flags&flagHeaders != 0 {
		if p.Headers, err = readTable(reader); err != nil {
			return nil, fmt.Errorf("reading headers: %w", err)
		}
	}
	if flags&flagDeliveryMode != 0 {
		if p.DeliveryMode, err = readOctet(reader); err != nil {
			return nil, fmt.Errorf("reading delivery-mode: %w", err)
		}
	}
	if flags&flagPriority != 0 {
		if p.Priority, err = readOctet(reader); err != nil {
			return nil, fmt.Errorf("reading priority: %w", err)
		}
	}
	if flags&flagCorrelationId != 0 {
		if p.CorrelationId, err = readShortString(reader); err != nil {
			return nil, fmt.Errorf("reading correlation-id: %w", err)
		}
	}
	if flags&flagReplyTo != 0 {
		if p.ReplyTo, err = readShortString(reader); err != nil {
			return nil, fmt.Errorf("reading reply-to: %w", err)
		}
	}
	if flags&flagExpiration != 0 {
		if p.Expiration, err = readShortString(reader); err != nil {
			return nil, fmt.Errorf("reading expiration: %w", err)
		}
	}
	if flags&flagMessageId != 0 {
		if p.MessageId, err = readShortString(reader); err != nil {
			return nil, fmt.Errorf("reading message-id: %w", err)
		}
	}
	if flags&flagTimestamp != 0 {
		ts, err := readLongLong(reader)
		if err != nil {
			return nil, fmt.Errorf("reading timestamp: %w", err)
		}
		p.Timestamp = time.Unix(int64(ts), 0)
	}
	if flags&flagType != 0 {
		if p.Type, err = readShortString(reader); err != nil {
			return nil, fmt.Errorf("reading type: %w", err)
		}
	}
	if flags&flagUserId != 0 {
		if p.UserId, err = readShortString(reader); err != nil {
			return nil, fmt.Errorf("reading user-id: %w", err)
		}
	}
	if flags&flagAppId != 0 {
		if p.AppId, err = readShortString(reader); err != nil {
			return nil, fmt.Errorf("reading app-id: %w", err)
		}
	}
	if flags&flagClusterId != 0 {
		if p.ClusterId, err = readShortString(reader); err != nil {
			return nil, fmt.Errorf("reading cluster-id: %w", err)
		}
	}

	return h, nil
}

// Encode serializes the header into a header frame payload.
// Only non-zero properties are written and flagged.
func (h *ContentHeader) Encode() ([]byte, error) {
	p := h.Properties
	var flags uint16
	if p.ContentType != "" {
		flags |= flagContentType
	}
	if p.ContentEncoding != "" {
		flags |= flagContentEncoding
	}
	if p.Headers != nil {
		flags |= flagHeaders
	}
	if p.DeliveryMode != 0 {
		flags |= flagDeliveryMode
	}
	if p.Priority != 0 {
		flags |= flagPriority
	}
	if p.CorrelationId != "" {
		flags |= flagCorrelationId
	}
	if p.ReplyTo != "" {
		flags |= flagReplyTo
	}
	if p.Expiration != "" {
		flags |= flagExpiration
	}
	if p.MessageId != "" {
		flags |= flagMessageId
	}
	if !p.Timestamp.IsZero() {
		flags |= flagTimestamp
	}
	if p.Type != "" {
		flags |= flagType
	}
	if p.UserId != "" {
		flags |= flagUserId
	}
	if p.AppId != "" {
		flags |= flagAppId
	}
	if p.ClusterId != "" {
		flags |= flagClusterId
	}

	classID := h.ClassID
	if classID == 0 {
		classID = ClassBasic
	}

	buf := &bytes.Buffer{}
	writeShort(buf, classID)
	writeShort(buf, h.Weight)
	writeLongLong(buf, h.BodySize)
	writeShort(buf, flags)

	shortStrings := []struct {
		flag  uint16
		value string
	}{
		{flagContentType, p.ContentType},
		{flagContentEncoding, p.ContentEncoding},
	}
	for _, s := range shortStrings {
		if flags&s.flag != 0 {
			if err := writeShortString(buf, s.value); err != nil {
				return nil, err
			}
		}
	}
	if flags&flagHeaders != 0 {
		if err := writeTable(buf, p.Headers); err != nil {
			return nil, fmt.Errorf("writing headers: %w", err)
		}
	}
	if flags&flagDeliveryMode != 0 {
		writeOctet(buf, p.DeliveryMode)
	}
	if flags&flagPriority != 0 {
		writeOctet(buf, p.Priority)
	}

	shortStrings = []struct {
		flag  uint16
		value string
	}{
		{flagCorrelationId, p.CorrelationId},
		{flagReplyTo, p.ReplyTo},
		{flagExpiration, p.Expiration},
		{flagMessageId, p.MessageId},
	}
	for _, s := range shortStrings {
		if flags&s.flag != 0 {
			if err := writeShortString(buf, s.value); err != nil {
				return nil, err
			}
		}
	}
	if flags&flagTimestamp != 0 {
		writeLongLong(buf, uint64(p.Timestamp.Unix()))
	}

	shortStrings = []struct {
		flag  uint16
		value string
	}{
		{flagType, p.Type},
		{flagUserId, p.UserId},
		{flagAppId, p.AppId},
		{flagClusterId, p.ClusterId},
	}
	for _, s := range shortStrings {
		if flags&s.flag != 0 {
			if err := writeShortString(buf, s.value); err != nil {
				return nil, err
			}
		}
	}

	return buf.Bytes(), nil
}
