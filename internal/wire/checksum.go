package wire

import "github.com/btcsuite/btcd/chaincfg/chainhash"

// Checksum returns the first 4 bytes of SHA256(SHA256(payload)), the
// checksum field of a message header. It is computed on every outbound
// message but, per spec §4.2, never required to match on inbound ones —
// the crawler trusts the peer's self-claimed payload length instead.
func Checksum(payload []byte) (sum [4]byte) {
	digest := chainhash.DoubleHashB(payload)
	copy(sum[:], digest[:4])
	return sum
}
