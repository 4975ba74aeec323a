package protocol

import "bytes"

// argReader reads method arguments and keeps the first error it runs into,
// so method decoders can read all fields and check once.
type argReader struct {
	r   *bytes.Reader
	err error

	bits   uint8
	bitPos uint
	inBits bool
}

func newArgReader(payload []byte) *argReader {
	return &argReader{r: bytes.NewReader(payload)}
}

func (a *argReader) endBits() {
	a.inBits = false
	a.bitPos = 0
}

func (a *argReader) octet() uint8 {
	a.endBits()
	if a.err != nil {
		return 0
	}
	var v uint8
	v, a.err = readOctet(a.r)
	return v
}

func (a *argReader) short() uint16 {
	a.endBits()
	if a.err != nil {
		return 0
	}
	var v uint16
	v, a.err = readShort(a.r)
	return v
}

func (a *argReader) long() uint32 {
	a.endBits()
	if a.err != nil {
		return 0
	}
	var v uint32
	v, a.err = readLong(a.r)
	return v
}

func (a *argReader) longlong() uint64 {
	a.endBits()
	if a.err != nil {
		return 0
	}
	var v uint64
	v, a.err = readLongLong(a.r)
	return v
}

func (a *argReader) shortstr() string {
	a.endBits()
	if a.err != nil {
		return ""
	}
	var v string
	v, a.err = readShortString(a.r)
	return v
}

func (a *argReader) longstr() string {
	a.endBits()
	if a.err != nil {
		return ""
	}
	var v string
	v, a.err = readLongString(a.r)
	return v
}

func (a *argReader) table() Table {
	a.endBits()
	if a.err != nil {
		return nil
	}
	var v Table
	v, a.err = readTable(a.r)
	return v
}

// bit reads the next packed bit; consecutive bits share an octet.
func (a *argReader) bit() bool {
	if a.err != nil {
		return false
	}
	if !a.inBits || a.bitPos == 8 {
		a.bits, a.err = readOctet(a.r)
		if a.err != nil {
			return false
		}
		a.inBits = true
		a.bitPos = 0
	}
	v := bit(a.bits, a.bitPos)
	a.bitPos++
	return v
}

// argWriter mirrors argReader for encoding.
type argWriter struct {
	w   *bytes.Buffer
	err error

	bits []bool
}

func newArgWriter() *argWriter {
	return &argWriter{w: &bytes.Buffer{}}
}

func (a *argWriter) flushBits() {
	for len(a.bits) > 0 {
		n := len(a.bits)
		if n > 8 {
			n = 8
		}
		writeBits(a.w, a.bits[:n]...)
		a.bits = a.bits[n:]
	}
	a.bits = nil
}

func (a *argWriter) octet(v uint8) {
	a.flushBits()
	writeOctet(a.w, v)
}

func (a *argWriter) short(v uint16) {
	a.flushBits()
	writeShort(a.w, v)
}

func (a *argWriter) long(v uint32) {
	a.flushBits()
	writeLong(a.w, v)
}

func (a *argWriter) longlong(v uint64) {
	a.flushBits()
	writeLongLong(a.w, v)
}

func (a *argWriter) shortstr(v string) {
	a.flushBits()
	if a.err != nil {
		return
	}
	a.err = writeShortString(a.w, v)
}

func (a *argWriter) longstr(v string) {
	a.flushBits()
	writeLongString(a.w, v)
}

func (a *argWriter) table(v Table) {
	a.flushBits()
	if a.err != nil {
		return
	}
	a.err = writeTable(a.w, v)
}

func (a *argWriter) bit(v bool) {
	a.bits = append(a.bits, v)
}

func (a *argWriter) bytes() ([]byte, error) {
	a.flushBits()
	return a.w.Bytes(), a.err
}
