package logging

import (
	"bytes"
	"log"
	"testing"
	"time"
)

func TestLogSanitizesAndStripsNewline(t *testing.T) {
	var buf bytes.Buffer
	l := New(log.New(&buf, "", 0))

	l.Log("main", "hello\x01world\n", time.Unix(0, 0).UTC())

	got := buf.String()
	if !bytes.Contains([]byte(got), []byte("hello?world")) {
		t.Fatalf("expected sanitized message in output, got %q", got)
	}
	if bytes.Contains([]byte(got), []byte("hello?world?")) {
		t.Fatalf("trailing newline should have been stripped before formatting, got %q", got)
	}
}
