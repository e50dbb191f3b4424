// Package wire implements the Bitcoin-family message framing, checksum,
// and the subset of message builders/parsers the crawler exercises:
// header, version, verack, getaddr, addr, ping/pong.
package wire

import (
	"errors"

	"github.com/sebastiankr/hoschicrawl/internal/codec"
)

// Network magics, one per Bitcoin-family network. The crawler is built
// against a single magic chosen at startup (TESTNET3 unless configured
// otherwise).
const (
	MagicMain     uint32 = 0xD9B4BEF9
	MagicTestnet  uint32 = 0xDAB5BFFA
	MagicTestnet3 uint32 = 0x0709110B
	MagicNamecoin uint32 = 0xFEB4BEF9
)

const (
	// HeaderSize is the fixed 24-byte message header size.
	HeaderSize = 24
	// MaxPaylen is the hard cap on a declared payload length.
	MaxPaylen = 0x10000
	commandSize = 12
)

var (
	ErrBadMagic    = errors.New("wire: magic mismatch")
	ErrOversized   = errors.New("wire: payload length exceeds cap")
	ErrTruncated   = errors.New("wire: truncated header")
)

// Header is the 24-byte frame header common to every message.
type Header struct {
	Magic    uint32
	Command  string // decoded, zero-padding stripped
	PayLen   uint32
	Checksum [4]byte
}

// EncodeHeader serializes a header for the given command and payload.
// The checksum is computed over payload here; command is truncated/padded
// to 12 bytes with the last byte always forced to zero, matching spec §4.2.
func EncodeHeader(magic uint32, command string, payload []byte) []byte {
	b := make([]byte, HeaderSize)
	copy(b[0:4], codec.EncodeU32(magic))

	cmd := make([]byte, commandSize)
	copy(cmd, command)
	cmd[commandSize-1] = 0
	copy(b[4:16], cmd)

	copy(b[16:20], codec.EncodeU32(uint32(len(payload))))
	sum := Checksum(payload)
	copy(b[20:24], sum[:])
	return b
}

// BuildMessage returns a full header+payload frame.
func BuildMessage(magic uint32, command string, payload []byte) []byte {
	return append(EncodeHeader(magic, command, payload), payload...)
}

// ParseHeader decodes and validates the leading 24 bytes of b against the
// expected network magic. It does not validate the checksum: the crawler is
// lenient and trusts the peer's self-claimed payload length (spec §4.2).
func ParseHeader(b []byte, expectedMagic uint32) (h Header, err error) {
	if len(b) < HeaderSize {
		return Header{}, ErrTruncated
	}
	magic, _ := codec.DecodeU32(b[0:4])
	if magic != expectedMagic {
		return Header{}, ErrBadMagic
	}

	cmd := make([]byte, commandSize)
	copy(cmd, b[4:16])
	cmd[commandSize-1] = 0 // force-zero per spec §4.2 before string comparison
	h.Command = trimZero(cmd)

	payLen, _ := codec.DecodeU32(b[16:20])
	if payLen > MaxPaylen {
		return Header{}, ErrOversized
	}

	h.Magic = magic
	h.PayLen = payLen
	copy(h.Checksum[:], b[20:24])
	return h, nil
}

func trimZero(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
