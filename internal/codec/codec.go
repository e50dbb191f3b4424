// Package codec implements the little-endian integer and variable-length
// integer primitives used to encode and decode Bitcoin-family wire messages.
package codec

import (
	"encoding/binary"
	"errors"
)

// ErrTruncated is returned when a buffer is shorter than the field being decoded.
var ErrTruncated = errors.New("codec: truncated buffer")

// ErrValintFF is returned when a valint's leading byte is 0xff, which this
// codec does not support (see spec: valint decode of 0xff is an error).
var ErrValintFF = errors.New("codec: valint 0xff prefix not supported")

func EncodeU16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func DecodeU16(b []byte) (uint16, error) {
	if len(b) < 2 {
		return 0, ErrTruncated
	}
	return binary.LittleEndian.Uint16(b), nil
}

func EncodeU32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func DecodeU32(b []byte) (uint32, error) {
	if len(b) < 4 {
		return 0, ErrTruncated
	}
	return binary.LittleEndian.Uint32(b), nil
}

func EncodeU64(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func DecodeU64(b []byte) (uint64, error) {
	if len(b) < 8 {
		return 0, ErrTruncated
	}
	return binary.LittleEndian.Uint64(b), nil
}

func EncodeI32(v int32) []byte {
	return EncodeU32(uint32(v))
}

func DecodeI32(b []byte) (int32, error) {
	v, err := DecodeU32(b)
	return int32(v), err
}

func EncodeI64(v int64) []byte {
	return EncodeU64(uint64(v))
}

func DecodeI64(b []byte) (int64, error) {
	v, err := DecodeU64(b)
	return int64(v), err
}

// EncodeValint encodes v in the Bitcoin-family variable-length integer form:
// 1 byte for values below 0xfd, a 0xfd prefix plus 2 LE bytes up to 0xffff,
// or a 0xfe prefix plus 4 LE bytes up to 0xffffffff.
func EncodeValint(v uint32) []byte {
	switch {
	case v < 0xfd:
		return []byte{byte(v)}
	case v <= 0xffff:
		b := make([]byte, 3)
		b[0] = 0xfd
		binary.LittleEndian.PutUint16(b[1:], uint16(v))
		return b
	default:
		b := make([]byte, 5)
		b[0] = 0xfe
		binary.LittleEndian.PutUint32(b[1:], v)
		return b
	}
}

// DecodeValint decodes a valint from the head of b. It returns the decoded
// value and the number of bytes consumed. A leading 0xff byte is not
// supported and yields ErrValintFF with consumed == 0 and value == MaxUint32.
func DecodeValint(b []byte) (value uint32, consumed int, err error) {
	if len(b) < 1 {
		return 0, 0, ErrTruncated
	}
	c := b[0]
	switch {
	case c < 0xfd:
		return uint32(c), 1, nil
	case c == 0xfd:
		if len(b) < 3 {
			return 0, 0, ErrTruncated
		}
		return uint32(binary.LittleEndian.Uint16(b[1:3])), 3, nil
	case c == 0xfe:
		if len(b) < 5 {
			return 0, 0, ErrTruncated
		}
		return binary.LittleEndian.Uint32(b[1:5]), 5, nil
	default: // 0xff
		return 0xffffffff, 0, ErrValintFF
	}
}

// EncodeValstring encodes a valint length prefix followed by the raw bytes of s.
func EncodeValstring(s string) []byte {
	out := EncodeValint(uint32(len(s)))
	return append(out, s...)
}
