package wire

import (
	"errors"
	"net"

	"github.com/sebastiankr/hoschicrawl/internal/codec"
)

var (
	ErrAddrCount      = errors.New("wire: addr count exceeds payload cap")
	ErrAddrTruncated  = errors.New("wire: addr payload truncated")
)

// recordSizeWithTime is used once the peer has advertised protocol >= 31402,
// which adds a leading 4-byte time field to each addr record.
const (
	recordSizeNoTime   = 26
	recordSizeWithTime = 30
	timeFieldProtocol  = 31402
)

// NetAddr is a single address record from an addr message.
type NetAddr struct {
	IP   net.IP
	Port uint16
}

// ParseAddr parses an addr message payload (everything after the header)
// into its list of address records. peerProtocolVersion selects the 26- or
// 30-byte record layout per spec §4.3.
func ParseAddr(payload []byte, peerProtocolVersion uint32) ([]NetAddr, error) {
	count, consumed, err := codec.DecodeValint(payload)
	if err != nil {
		return nil, err
	}
	if count > MaxPaylen {
		return nil, ErrAddrCount
	}

	recSize := recordSizeNoTime
	if peerProtocolVersion >= timeFieldProtocol {
		recSize = recordSizeWithTime
	}

	need := consumed + int(count)*recSize
	if need > len(payload) {
		return nil, ErrAddrTruncated
	}

	out := make([]NetAddr, 0, count)
	off := consumed
	for i := uint32(0); i < count; i++ {
		rec := payload[off : off+recSize]
		off += recSize

		ipOff := recSize - 18 // 16 bytes IP + 2 bytes port trail the optional time+services prefix
		ipBytes := rec[ipOff : ipOff+16]
		port := uint16(rec[ipOff+16])<<8 | uint16(rec[ipOff+17])

		ip := net.IP(append([]byte(nil), ipBytes...))
		out = append(out, NetAddr{IP: ip, Port: port})
	}
	return out, nil
}
