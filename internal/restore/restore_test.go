package restore

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadRestoreFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "restore.txt")
	content := "[203.0.113.1]:8333,version=x,[203.0.113.2]:8333\n[203.0.113.3]:8333,\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	handled, learned, err := Load(path, 7)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if handled["[203.0.113.1]:8333"] != 1 || handled["[203.0.113.3]:8333"] != 1 {
		t.Fatalf("handled = %v, want both first-field peers at count 1", handled)
	}

	if _, ok := learned["[203.0.113.2]:8333"]; !ok {
		t.Fatalf("learned = %v, want [203.0.113.2]:8333 present", learned)
	}
	if len(learned) != 1 {
		t.Fatalf("learned = %v, want exactly one entry", learned)
	}
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	handled, learned, err := Load(filepath.Join(t.TempDir(), "missing.txt"), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(handled) != 0 || len(learned) != 0 {
		t.Fatalf("expected empty maps for missing file")
	}
}

func TestLoadSkipsTokensAtCap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "restore.txt")
	// [a] was already handled 7 times in a prior pass represented as 7 lines
	// naming it as source, then one more line learns it as a neighbor.
	content := ""
	for i := 0; i < 7; i++ {
		content += "[198.51.100.9]:8333,\n"
	}
	content += "[198.51.100.1]:8333,[198.51.100.9]:8333\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	handled, learned, err := Load(path, 7)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if handled["[198.51.100.9]:8333"] != 7 {
		t.Fatalf("expected handled count 7, got %d", handled["[198.51.100.9]:8333"])
	}
	if _, ok := learned["[198.51.100.9]:8333"]; ok {
		t.Fatalf("peer already at cap must not be inserted into learned")
	}
}

func TestLoadSkipsLeadingCommentLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "restore.txt")
	content := "# run=d34db33f-0000-0000-0000-000000000000\n[203.0.113.1]:8333,[203.0.113.2]:8333\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	handled, _, err := Load(path, 7)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := handled["# run=d34db33f-0000-0000-0000-000000000000"]; ok {
		t.Fatalf("comment line must not be treated as a source peer")
	}
	if handled["[203.0.113.1]:8333"] != 1 {
		t.Fatalf("expected the data line after the comment to still be parsed")
	}
}

func TestAppendLinesCopiesIntoWriter(t *testing.T) {
	var dst bytes.Buffer
	src := strings.NewReader("[203.0.113.1]:8333,[203.0.113.2]:8333\n")

	if err := AppendLines(&dst, src); err != nil {
		t.Fatalf("AppendLines: %v", err)
	}
	if dst.String() != "[203.0.113.1]:8333,[203.0.113.2]:8333\n" {
		t.Fatalf("got %q", dst.String())
	}
}
