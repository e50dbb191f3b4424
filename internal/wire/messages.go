package wire

import (
	"net"
	"time"

	"github.com/sebastiankr/hoschicrawl/internal/codec"
	"github.com/sebastiankr/hoschicrawl/internal/peerid"
)

// ProtocolVersion is the version this crawler claims in its own version message.
const ProtocolVersion = 70015

// services advertised by the crawler: NODE_NETWORK | NODE_WITNESS, faked —
// the crawler stores and relays nothing, it only needs peers to answer getaddr.
const fakeServices = 1 | (1 << 3)

// UserAgent identifies this crawler in the version handshake.
const UserAgent = "/crawler:0.1/"

const relayProtocolVersion = 70001

// netAddrVersion encodes a version-message net_addr: 8B services, 16B IPv6
// address (IPv4 embedded as ::ffff:A.B.C.D), 2B port big-endian.
func netAddrVersion(services uint64, ip net.IP, port uint16) []byte {
	b := make([]byte, 26)
	copy(b[0:8], codec.EncodeU64(services))
	if ip == nil {
		ip = net.IPv6zero
	}
	copy(b[8:24], ip.To16())
	b[24] = byte(port >> 8)
	b[25] = byte(port)
	return b
}

// MakeVersion builds a full version message frame addressed to remotePeer.
func MakeVersion(magic uint32, remotePeer string) ([]byte, error) {
	remoteIP, remotePort, err := peerid.Parse(remotePeer)
	if err != nil {
		return nil, err
	}

	payload := make([]byte, 0, 128)
	payload = append(payload, codec.EncodeI32(ProtocolVersion)...)
	payload = append(payload, codec.EncodeU64(fakeServices)...)
	payload = append(payload, codec.EncodeI64(time.Now().Unix())...)
	payload = append(payload, netAddrVersion(fakeServices, remoteIP, remotePort)...)
	payload = append(payload, netAddrVersion(0, nil, 0)...) // addr_from, zeroed
	payload = append(payload, codec.EncodeU64(0)...)        // nonce
	payload = append(payload, codec.EncodeValstring(UserAgent)...)
	payload = append(payload, codec.EncodeI32(0)...) // start_height
	if ProtocolVersion >= relayProtocolVersion {
		payload = append(payload, 0) // relay = false
	}

	return BuildMessage(magic, "version", payload), nil
}

// MakeVerack builds a verack message: header only, empty payload.
func MakeVerack(magic uint32) []byte {
	return BuildMessage(magic, "verack", nil)
}

// MakeGetAddr builds a getaddr message: header only, empty payload.
func MakeGetAddr(magic uint32) []byte {
	return BuildMessage(magic, "getaddr", nil)
}

// MakePong echoes the 8-byte nonce from a received ping.
func MakePong(magic uint32, nonce [8]byte) []byte {
	return BuildMessage(magic, "pong", nonce[:])
}

// ParseVersionProtocol extracts the peer's advertised protocol version from
// the first 4 bytes of a version message payload.
func ParseVersionProtocol(payload []byte) (uint32, error) {
	v, err := codec.DecodeU32(payload)
	return v, err
}

// ParsePingNonce extracts the 8-byte nonce from a ping message payload.
func ParsePingNonce(payload []byte) (nonce [8]byte, ok bool) {
	if len(payload) < 8 {
		return nonce, false
	}
	copy(nonce[:], payload[:8])
	return nonce, true
}
