package codec

import "testing"

func TestValintRoundTrip(t *testing.T) {
	samples := []uint32{0, 1, 0xfc, 0xfd, 0xfe, 0xff, 0x100, 0xffff, 0x10000, 0xffffffff}
	for _, v := range samples {
		enc := EncodeValint(v)
		got, n, err := DecodeValint(enc)
		if err != nil {
			t.Fatalf("decode(%x) unexpected error: %v", v, err)
		}
		if got != v {
			t.Errorf("decode(encode(%d)) = %d, want %d", v, got, v)
		}
		if n != len(enc) {
			t.Errorf("decode(encode(%d)) consumed %d, want %d", v, n, len(enc))
		}
	}
}

func TestValintRejectsFF(t *testing.T) {
	_, n, err := DecodeValint([]byte{0xff, 1, 2, 3, 4, 5, 6, 7, 8})
	if err != ErrValintFF {
		t.Fatalf("expected ErrValintFF, got %v", err)
	}
	if n != 0 {
		t.Errorf("expected consumed == 0 on error, got %d", n)
	}
}

func TestValintPrefixSizes(t *testing.T) {
	cases := []struct {
		v    uint32
		size int
	}{
		{0, 1}, {252, 1}, {253, 3}, {65535, 3}, {65536, 5}, {4294967295, 5},
	}
	for _, c := range cases {
		if got := len(EncodeValint(c.v)); got != c.size {
			t.Errorf("EncodeValint(%d) length = %d, want %d", c.v, got, c.size)
		}
	}
}

func TestU32RoundTrip(t *testing.T) {
	v := uint32(0xdeadbeef)
	got, err := DecodeU32(EncodeU32(v))
	if err != nil || got != v {
		t.Fatalf("got %x, %v; want %x, nil", got, err, v)
	}
}

func TestEncodeValstring(t *testing.T) {
	enc := EncodeValstring("hoschi")
	if enc[0] != 6 {
		t.Fatalf("expected length prefix 6, got %d", enc[0])
	}
	if string(enc[1:]) != "hoschi" {
		t.Fatalf("unexpected payload %q", enc[1:])
	}
}
