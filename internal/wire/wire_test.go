package wire

import (
	"bytes"
	"net"
	"testing"

	"github.com/sebastiankr/hoschicrawl/internal/codec"
)

// TestChecksumEmptyPayload checks the well-known SHA256(SHA256(""))
// checksum vector (spec §8): the first four bytes are 0x5df6e0e2.
func TestChecksumEmptyPayload(t *testing.T) {
	sum := Checksum(nil)
	want := [4]byte{0x5d, 0xf6, 0xe0, 0xe2}
	if sum != want {
		t.Fatalf("Checksum(nil) = %x, want %x", sum, want)
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	payload := []byte("hello")
	msg := BuildMessage(MagicTestnet3, "ping", payload)

	h, err := ParseHeader(msg[:HeaderSize], MagicTestnet3)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if h.Command != "ping" {
		t.Errorf("Command = %q, want ping", h.Command)
	}
	if h.PayLen != uint32(len(payload)) {
		t.Errorf("PayLen = %d, want %d", h.PayLen, len(payload))
	}
	if !bytes.Equal(msg[HeaderSize:], payload) {
		t.Errorf("payload = %q, want %q", msg[HeaderSize:], payload)
	}
}

func TestParseHeaderRejectsBadMagic(t *testing.T) {
	msg := BuildMessage(MagicTestnet3, "verack", nil)
	_, err := ParseHeader(msg[:HeaderSize], MagicMain)
	if err != ErrBadMagic {
		t.Fatalf("err = %v, want ErrBadMagic", err)
	}
}

func TestParseHeaderRejectsTruncated(t *testing.T) {
	_, err := ParseHeader(make([]byte, HeaderSize-1), MagicTestnet3)
	if err != ErrTruncated {
		t.Fatalf("err = %v, want ErrTruncated", err)
	}
}

func TestParseHeaderRejectsOversizedPayload(t *testing.T) {
	b := EncodeHeader(MagicTestnet3, "addr", nil)
	copy(b[16:20], codec.EncodeU32(MaxPaylen+1))
	_, err := ParseHeader(b, MagicTestnet3)
	if err != ErrOversized {
		t.Fatalf("err = %v, want ErrOversized", err)
	}
}

func TestParseAddrRejectsOversizedCount(t *testing.T) {
	payload := codec.EncodeValint(MaxPaylen + 1)
	_, err := ParseAddr(payload, 0)
	if err != ErrAddrCount {
		t.Fatalf("err = %v, want ErrAddrCount", err)
	}
}

func TestParseAddrRejectsTruncatedPayload(t *testing.T) {
	// count=2 but only one 26-byte record actually follows.
	payload := append(codec.EncodeValint(2), make([]byte, 26)...)
	_, err := ParseAddr(payload, 0)
	if err != ErrAddrTruncated {
		t.Fatalf("err = %v, want ErrAddrTruncated", err)
	}
}

func TestParseAddrPreAndPost31402Layout(t *testing.T) {
	rec := make([]byte, 26)
	ip4 := net.ParseIP("198.51.100.1").To4()
	copy(rec[8+10:8+12], []byte{0xff, 0xff})
	copy(rec[8+12:8+16], ip4)
	rec[24], rec[25] = 0x20, 0x8d // 8333

	payload := append(codec.EncodeValint(1), rec...)
	addrs, err := ParseAddr(payload, 0)
	if err != nil {
		t.Fatalf("ParseAddr (pre-31402): %v", err)
	}
	if len(addrs) != 1 || addrs[0].Port != 8333 {
		t.Fatalf("got %+v, want one record on port 8333", addrs)
	}

	withTime := append([]byte{0, 0, 0, 0}, rec...)
	payload = append(codec.EncodeValint(1), withTime...)
	addrs, err = ParseAddr(payload, timeFieldProtocol)
	if err != nil {
		t.Fatalf("ParseAddr (post-31402): %v", err)
	}
	if len(addrs) != 1 || addrs[0].Port != 8333 {
		t.Fatalf("got %+v, want one record on port 8333", addrs)
	}
}

func TestMakeVersionAndParseVersionProtocol(t *testing.T) {
	msg, err := MakeVersion(MagicTestnet3, "[203.0.113.1]:8333")
	if err != nil {
		t.Fatalf("MakeVersion: %v", err)
	}
	h, err := ParseHeader(msg[:HeaderSize], MagicTestnet3)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if h.Command != "version" {
		t.Fatalf("Command = %q, want version", h.Command)
	}

	v, err := ParseVersionProtocol(msg[HeaderSize:])
	if err != nil {
		t.Fatalf("ParseVersionProtocol: %v", err)
	}
	if v != ProtocolVersion {
		t.Errorf("protocol version = %d, want %d", v, ProtocolVersion)
	}
}

func TestParsePingNonceRoundTrip(t *testing.T) {
	nonce := [8]byte{1, 2, 3, 4, 5, 6, 7, 8}
	msg := BuildMessage(MagicTestnet3, "ping", nonce[:])

	got, ok := ParsePingNonce(msg[HeaderSize:])
	if !ok {
		t.Fatal("ParsePingNonce: ok = false, want true")
	}
	if got != nonce {
		t.Errorf("nonce = %v, want %v", got, nonce)
	}
}

func TestParsePingNonceRejectsTruncated(t *testing.T) {
	_, ok := ParsePingNonce([]byte{1, 2, 3})
	if ok {
		t.Fatal("ParsePingNonce: ok = true, want false for truncated payload")
	}
}
