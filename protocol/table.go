package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// Table is an AMQP field table
type Table map[string]interface{}

// Decimal is the AMQP decimal-value field type
type Decimal struct {
	Scale uint8
	Value int32
}

func readOctet(reader *bytes.Reader) (uint8, error) {
	b, err := reader.ReadByte()
	if err != nil {
		return 0, fmt.Errorf("reading octet: %w", err)
	}
	return b, nil
}

func readShort(reader *bytes.Reader) (uint16, error) {
	var v uint16
	if err := binary.Read(reader, binary.BigEndian, &v); err != nil {
		return 0, fmt.Errorf("reading short: %w", err)
	}
	return v, nil
}

func readLong(reader *bytes.Reader) (uint32, error) {
	var v uint32
	if err := binary.Read(reader, binary.BigEndian, &v); err != nil {
		return 0, fmt.Errorf("reading long: %w", err)
	}
	return v, nil
}

func readLongLong(reader *bytes.Reader) (uint64, error) {
	var v uint64
	if err := binary.Read(reader, binary.BigEndian, &v); err != nil {
		return 0, fmt.Errorf("reading long long: %w", err)
	}
	return v, nil
}

func readShortString(reader *bytes.Reader) (string, error) {
	var length uint8
	if err := binary.Read(reader, binary.BigEndian, &length); err != nil {
		return "", fmt.Errorf("reading short string length: %w", err)
	}

	if length == 0 {
		return "", nil
	}

	if int(length) > reader.Len() {
		return "", fmt.Errorf("not enough data for short string: expected %d, available %d", length, reader.Len())
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(reader, data); err != nil {
		return "", fmt.Errorf("reading short string data (expected %d bytes): %w", length, err)
	}
	return string(data), nil
}

func readLongString(reader *bytes.Reader) (string, error) {
	var length uint32
	if err := binary.Read(reader, binary.BigEndian, &length); err != nil {
		return "", fmt.Errorf("reading long string length: %w", err)
	}

	if length == 0 {
		return "", nil
	}

	if int(length) > reader.Len() {
		return "", fmt.Errorf("not enough data for long string: expected %d, available %d", length, reader.Len())
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(reader, data); err != nil {
		return "", fmt.Errorf("reading long string data (expected %d bytes): %w", length, err)
	}
	return string(data), nil
}

func writeOctet(writer *bytes.Buffer, v uint8) {
	writer.WriteByte(v)
}

func writeShort(writer *bytes.Buffer, v uint16) {
	writer.Write(binary.BigEndian.AppendUint16(nil, v))
}

func writeLong(writer *bytes.Buffer, v uint32) {
	writer.Write(binary.BigEndian.AppendUint32(nil, v))
}

func writeLongLong(writer *bytes.Buffer, v uint64) {
	writer.Write(binary.BigEndian.AppendUint64(nil, v))
}

func writeShortString(writer *bytes.Buffer, s string) error {
	if len(s) > 255 {
		return fmt.Errorf("short string too long: %d bytes", len(s))
	}
	writer.WriteByte(uint8(len(s)))
	writer.WriteString(s)
	return nil
}

func writeLongString(writer *bytes.Buffer, s string) {
	writeLong(writer, uint32(len(s)))
	writer.WriteString(s)
}

// writeBits packs consecutive bit arguments into a single octet, first argument in the lowest bit
func writeBits(writer *bytes.Buffer, bits ...bool) {
	var octet uint8
	for i, b := range bits {
		if b {
			octet |= 1 << uint(i)
		}
	}
	writer.WriteByte(octet)
}

func bit(octet uint8, pos uint) bool {
	return octet&(1<<pos) != 0
}

func readFieldValue(reader *bytes.Reader, valueType byte) (interface{}, error) {
	switch valueType {
	case 't': // boolean
		b, err := reader.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("reading boolean value: %w", err)
		}
		return b != 0, nil
	case 'b': // signed octet
		var val int8
		if err := binary.Read(reader, binary.BigEndian, &val); err != nil {
			return nil, fmt.Errorf("reading int8 value: %w", err)
		}
		return val, nil
	case 'B': // unsigned octet
		b, err := reader.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("reading uint8 value: %w", err)
		}
		return b, nil
	case 's': // signed short
		var val int16
		if err := binary.Read(reader, binary.BigEndian, &val); err != nil {
			return nil, fmt.Errorf("reading int16 value: %w", err)
		}
		return val, nil
	case 'u': // unsigned short
		var val uint16
		if err := binary.Read(reader, binary.BigEndian, &val); err != nil {
			return nil, fmt.Errorf("reading uint16 value: %w", err)
		}
		return val, nil
	case 'I': // signed long
		var val int32
		if err := binary.Read(reader, binary.BigEndian, &val); err != nil {
			return nil, fmt.Errorf("reading int32 value: %w", err)
		}
		return val, nil
	case 'i': // unsigned long
		var val uint32
		if err := binary.Read(reader, binary.BigEndian, &val); err != nil {
			return nil, fmt.Errorf("reading uint32 value: %w", err)
		}
		return val, nil
	case 'l': // signed long long
		var val int64
		if err := binary.Read(reader, binary.BigEndian, &val); err != nil {
			return nil, fmt.Errorf("reading int64 value: %w", err)
		}
		return val, nil
	case 'f':
		var val float32
		if err := binary.Read(reader, binary.BigEndian, &val); err != nil {
			return nil, fmt.Errorf("reading float32 value: %w", err)
		}
		return val, nil
	case 'd':
		var val float64
		if err := binary.Read(reader, binary.BigEndian, &val); err != nil {
			return nil, fmt.Errorf("reading float64 value: %w", err)
		}
		return val, nil
	case 'D':
		var scale uint8
		if err := binary.Read(reader, binary.BigEndian, &scale); err != nil {
			return nil, fmt.Errorf("reading decimal scale: %w", err)
		}
		var val int32
		if err := binary.Read(reader, binary.BigEndian, &val); err != nil {
			return nil, fmt.Errorf("reading decimal value: %w", err)
		}
		return Decimal{Scale: scale, Value: val}, nil
	case 'S':
		strVal, err := readLongString(reader)
		if err != nil {
			return nil, fmt.Errorf("reading long string field value: %w", err)
		}
		return strVal, nil
	case 'A':
		var arrayPayloadLength uint32
		if err := binary.Read(reader, binary.BigEndian, &arrayPayloadLength); err != nil {
			return nil, fmt.Errorf("reading field array payload length: %w", err)
		}
		if arrayPayloadLength == 0 {
			return []interface{}{}, nil
		}
		if int(arrayPayloadLength) > reader.Len() {
			return nil, fmt.Errorf("not enough data for field array payload: expected %d, available %d", arrayPayloadLength, reader.Len())
		}

		arrayPayloadBytes := make([]byte, arrayPayloadLength)
		if _, err := io.ReadFull(reader, arrayPayloadBytes); err != nil {
			return nil, fmt.Errorf("reading field array payload bytes (expected %d): %w", arrayPayloadLength, err)
		}

		arrayDataReader := bytes.NewReader(arrayPayloadBytes)
		arr := make([]interface{}, 0)
		for arrayDataReader.Len() > 0 {
			valueTypeInArray, err := arrayDataReader.ReadByte()
			if err != nil {
				return nil, fmt.Errorf("reading type in field array: %w", err)
			}
			val, errVal := readFieldValue(arrayDataReader, valueTypeInArray)
			if errVal != nil {
				return nil, fmt.Errorf("reading value in field array (type %c): %w", valueTypeInArray, errVal)
			}
			arr = append(arr, val)
		}
		return arr, nil
	case 'T': // timestamp, seconds since epoch
		var val uint64
		if err := binary.Read(reader, binary.BigEndian, &val); err != nil {
			return nil, fmt.Errorf("reading timestamp value: %w", err)
		}
		return time.Unix(int64(val), 0), nil
	case 'F':
		nestedTable, err := readTable(reader)
		if err != nil {
			return nil, fmt.Errorf("reading nested field table: %w", err)
		}
		return nestedTable, nil
	case 'x':
		var length uint32
		if err := binary.Read(reader, binary.BigEndian, &length); err != nil {
			return nil, fmt.Errorf("reading byte array length: %w", err)
		}
		if length == 0 {
			return []byte{}, nil
		}
		if int(length) > reader.Len() {
			return nil, fmt.Errorf("not enough data for byte array: expected %d, available %d", length, reader.Len())
		}
		data := make([]byte, length)
		if _, err := io.ReadFull(reader, data); err != nil {
			return nil, fmt.Errorf("reading byte array data (expected %d): %w", length, err)
		}
		return data, nil
	case 'V':
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported field table value type: %c (%d)", valueType, valueType)
	}
}

// writeFieldValue writes a single AMQP field value to the writer, including its type indicator.
func writeFieldValue(writer *bytes.Buffer, value interface{}) error {
	switch v := value.(type) {
	case bool:
		writer.WriteByte('t')
		if v {
			writer.WriteByte(1)
		} else {
			writer.WriteByte(0)
		}
	case int8:
		writer.WriteByte('b')
		binary.Write(writer, binary.BigEndian, v)
	case uint8:
		writer.WriteByte('B')
		writer.WriteByte(v)
	case int16:
		writer.WriteByte('s')
		binary.Write(writer, binary.BigEndian, v)
	case uint16:
		writer.WriteByte('u')
		binary.Write(writer, binary.BigEndian, v)
	case int32:
		writer.WriteByte('I')
		binary.Write(writer, binary.BigEndian, v)
	case uint32:
		writer.WriteByte('i')
		binary.Write(writer, binary.BigEndian, v)
	case int:
		writer.WriteByte('l')
		binary.Write(writer, binary.BigEndian, int64(v))
	case int64:
		writer.WriteByte('l')
		binary.Write(writer, binary.BigEndian, v)
	case time.Time:
		writer.WriteByte('T')
		binary.Write(writer, binary.BigEndian, uint64(v.Unix()))
	case float32:
		writer.WriteByte('f')
		binary.Write(writer, binary.BigEndian, v)
	case float64:
		writer.WriteByte('d')
		binary.Write(writer, binary.BigEndian, v)
	case Decimal:
		writer.WriteByte('D')
		binary.Write(writer, binary.BigEndian, v.Scale)
		binary.Write(writer, binary.BigEndian, v.Value)
	case string:
		writer.WriteByte('S')
		writeLongString(writer, v)
	case []byte:
		writer.WriteByte('x')
		binary.Write(writer, binary.BigEndian, uint32(len(v)))
		writer.Write(v)
	case []interface{}:
		writer.WriteByte('A')
		arrayPayloadBuffer := &bytes.Buffer{}
		for _, item := range v {
			if err := writeFieldValue(arrayPayloadBuffer, item); err != nil {
				return fmt.Errorf("writing item of type %T in field array: %w", item, err)
			}
		}
		binary.Write(writer, binary.BigEndian, uint32(arrayPayloadBuffer.Len()))
		writer.Write(arrayPayloadBuffer.Bytes())
	case Table:
		writer.WriteByte('F')
		if err := writeTable(writer, v); err != nil {
			return fmt.Errorf("writing nested field table: %w", err)
		}
	case map[string]interface{}:
		writer.WriteByte('F')
		if err := writeTable(writer, v); err != nil {
			return fmt.Errorf("writing nested field table: %w", err)
		}
	case nil:
		writer.WriteByte('V')
	default:
		return fmt.Errorf("unsupported type for field table serialization: %T", v)
	}
	return nil
}

func readTable(reader *bytes.Reader) (Table, error) {
	var tablePayloadLength uint32
	if err := binary.Read(reader, binary.BigEndian, &tablePayloadLength); err != nil {
		return nil, fmt.Errorf("reading table payload length: %w", err)
	}

	if tablePayloadLength == 0 {
		return Table{}, nil
	}

	tablePayloadBytes := make([]byte, tablePayloadLength)
	n, err := io.ReadFull(reader, tablePayloadBytes)
	if err != nil {
		return nil, fmt.Errorf("reading table payload bytes (expected %d, read %d): %w", tablePayloadLength, n, err)
	}

	return decodeTableBody(tablePayloadBytes)
}

// decodeTableBody parses the key/value pairs of a table without its length prefix
func decodeTableBody(payload []byte) (Table, error) {
	tableReader := bytes.NewReader(payload)
	table := Table{}

	for tableReader.Len() > 0 {
		key, err := readShortString(tableReader)
		if err != nil {
			return table, fmt.Errorf("malformed table: error reading field key: %w", err)
		}

		valueType, err := tableReader.ReadByte()
		if err != nil {
			return table, fmt.Errorf("malformed table: key '%s' read but no value type followed: %w", key, err)
		}

		value, err := readFieldValue(tableReader, valueType)
		if err != nil {
			return table, fmt.Errorf("reading value for key '%s' (type %c): %w", key, valueType, err)
		}
		table[key] = value
	}
	return table, nil
}

// encodeTableBody serializes the key/value pairs of a table without its length prefix
func encodeTableBody(table map[string]interface{}) ([]byte, error) {
	tablePayloadBuffer := &bytes.Buffer{}
	for key, value := range table {
		if err := writeShortString(tablePayloadBuffer, key); err != nil {
			return nil, fmt.Errorf("serializing key '%s': %w", key, err)
		}
		if err := writeFieldValue(tablePayloadBuffer, value); err != nil {
			return nil, fmt.Errorf("serializing value for key '%s' (type %T): %w", key, value, err)
		}
	}
	return tablePayloadBuffer.Bytes(), nil
}

func writeTable(writer *bytes.Buffer, table map[string]interface{}) error {
	payload, err := encodeTableBody(table)
	if err != nil {
		return err
	}
	writeLong(writer, uint32(len(payload)))
	writer.Write(payload)
	return nil
}

// EncodeTableBody returns the wire form of a table without its length prefix,
// as used by the AMQPLAIN authentication response.
func EncodeTableBody(table Table) ([]byte, error) {
	return encodeTableBody(table)
}

// DecodeTableBody is the inverse of EncodeTableBody
func DecodeTableBody(payload []byte) (Table, error) {
	return decodeTableBody(payload)
}
