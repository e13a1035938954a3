package rowcodec

import (
	"encoding/binary"
	"math"

	tegerrors "github.com/tegdb/tegdb/pkg/errors"
)

// Type codes (spec §4.5).
const (
	codeNull = 0
	// 1, 2, 4, 8: signed integer of that byte width.
	codeReal = 5
	// >= codeTextBlobBase: text/blob, length and kind encoded in the code.
	codeTextBlobBase = 12
)

// Encode serializes values (already in schema's non-PK column order) into
// the row record format: varint record_size, varint header_size, one
// varint type code per column, then the concatenated payloads.
func Encode(values []Value) []byte {
	header := make([]byte, 0, len(values)*2)
	payload := make([]byte, 0, 64)

	for _, v := range values {
		code, bytes := encodeValue(v)
		header = appendUvarint(header, code)
		payload = append(payload, bytes...)
	}

	headerSizeBuf := appendUvarint(nil, uint64(len(header)))
	recordSize := len(headerSizeBuf) + len(header) + len(payload)
	recordSizeBuf := appendUvarint(nil, uint64(recordSize))

	out := make([]byte, 0, len(recordSizeBuf)+recordSize)
	out = append(out, recordSizeBuf...)
	out = append(out, headerSizeBuf...)
	out = append(out, header...)
	out = append(out, payload...)
	return out
}

// encodeValue returns the type code and payload bytes for one column.
func encodeValue(v Value) (uint64, []byte) {
	switch v.Kind {
	case KindNull:
		return codeNull, nil
	case KindInt:
		return encodeInt(v.Int)
	case KindReal:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, math.Float64bits(v.Real))
		return codeReal, buf
	case KindText:
		return codeTextBlobBase + 2*uint64(len(v.Bytes)) + 0, v.Bytes
	case KindBlob:
		return codeTextBlobBase + 2*uint64(len(v.Bytes)) + 1, v.Bytes
	default:
		return codeNull, nil
	}
}

// encodeInt picks the narrowest width in {1, 2, 4, 8} bytes that holds v.
func encodeInt(v int64) (uint64, []byte) {
	switch {
	case v >= -1<<7 && v <= 1<<7-1:
		return 1, []byte{byte(int8(v))}
	case v >= -1<<15 && v <= 1<<15-1:
		buf := make([]byte, 2)
		binary.BigEndian.PutUint16(buf, uint16(int16(v)))
		return 2, buf
	case v >= -1<<31 && v <= 1<<31-1:
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(int32(v)))
		return 4, buf
	default:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(v))
		return 8, buf
	}
}

func decodeInt(width int, buf []byte) int64 {
	switch width {
	case 1:
		return int64(int8(buf[0]))
	case 2:
		return int64(int16(binary.BigEndian.Uint16(buf)))
	case 4:
		return int64(int32(binary.BigEndian.Uint32(buf)))
	default:
		return int64(binary.BigEndian.Uint64(buf))
	}
}

// columnWidth returns the payload byte width a type code occupies, and
// for text/blob codes the decoded Kind and byte length.
func columnWidth(code uint64) (width int, kind Kind) {
	switch {
	case code == codeNull:
		return 0, KindNull
	case code == 1 || code == 2 || code == 4 || code == 8:
		return int(code), KindInt
	case code == codeReal:
		return 8, KindReal
	case code >= codeTextBlobBase:
		n := int((code - codeTextBlobBase) / 2)
		if (code-codeTextBlobBase)%2 == 0 {
			return n, KindText
		}
		return n, KindBlob
	default:
		return 0, KindNull
	}
}

// appendUvarint appends a varint-encoded v to buf.
func appendUvarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

// header is the decoded type-code region plus enough bookkeeping to find
// any column's payload offset without re-parsing.
type header struct {
	codes       []uint64
	payloadOff  int // offset of the payload region within the record
}

// parseHeader reads record_size, header_size and the type codes from the
// start of data. It returns the header and the total record length.
func parseHeader(data []byte) (header, int, error) {
	recordSize, n1 := binary.Uvarint(data)
	if n1 <= 0 {
		return header{}, 0, &tegerrors.CorruptionError{Context: "rowcodec: record_size varint", Err: errMalformed}
	}

	rest := data[n1:]
	headerSize, n2 := binary.Uvarint(rest)
	if n2 <= 0 {
		return header{}, 0, &tegerrors.CorruptionError{Context: "rowcodec: header_size varint", Err: errMalformed}
	}
	rest = rest[n2:]

	var codes []uint64
	var consumed int
	for consumed < int(headerSize) {
		code, n := binary.Uvarint(rest[consumed:])
		if n <= 0 {
			return header{}, 0, &tegerrors.CorruptionError{Context: "rowcodec: type code varint", Err: errMalformed}
		}
		codes = append(codes, code)
		consumed += n
	}

	return header{codes: codes, payloadOff: n1 + n2 + consumed}, n1 + int(recordSize), nil
}

// Decode fully decodes every column of one record.
func Decode(data []byte) ([]Value, error) {
	h, _, err := parseHeader(data)
	if err != nil {
		return nil, err
	}

	values := make([]Value, len(h.codes))
	offset := h.payloadOff
	for i, code := range h.codes {
		width, kind := columnWidth(code)
		v, err := decodeColumnPayload(kind, code, data[offset:offset+width])
		if err != nil {
			return nil, err
		}
		values[i] = v
		offset += width
	}
	return values, nil
}

// DecodeColumn decodes only column idx, skipping the payload bytes of
// every earlier column without allocating anything for them (spec §4.5's
// partial-decode contract, used by the executor to evaluate WHERE
// predicates without materializing a full row).
func DecodeColumn(data []byte, idx int) (Value, error) {
	h, _, err := parseHeader(data)
	if err != nil {
		return Value{}, err
	}
	if idx < 0 || idx >= len(h.codes) {
		return Value{}, &tegerrors.CorruptionError{Context: "rowcodec: column index out of range", Err: errMalformed}
	}

	offset := h.payloadOff
	for i, code := range h.codes {
		width, kind := columnWidth(code)
		if i == idx {
			return decodeColumnPayload(kind, code, data[offset:offset+width])
		}
		offset += width
	}
	return Value{}, &tegerrors.CorruptionError{Context: "rowcodec: column index out of range", Err: errMalformed}
}

func decodeColumnPayload(kind Kind, code uint64, buf []byte) (Value, error) {
	switch kind {
	case KindNull:
		return Null(), nil
	case KindInt:
		return Int(decodeInt(len(buf), buf)), nil
	case KindReal:
		return Real(math.Float64frombits(binary.BigEndian.Uint64(buf))), nil
	case KindText:
		return Text(string(buf)), nil
	case KindBlob:
		return Blob(buf), nil
	default:
		return Value{}, &tegerrors.CorruptionError{Context: "rowcodec: unknown type code", Err: errMalformed}
	}
}
