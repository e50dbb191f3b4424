// Package dedupe supplements the engine's in-memory handled/learned maps
// with an optional durable "ever learned this peer" membership set, backed
// by a pogreb key/value store keyed on a blake3 fingerprint of the peer
// identifier. It is a pure enrichment: the engine's default, in-memory-only
// behaviour (spec §3, §8) is unaffected when no store is configured.
package dedupe

import (
	"io"
	"log"
	"sync"

	"github.com/akrylysov/pogreb"
	"lukechampine.com/blake3"
)

// Store is the membership test the engine consults in addition to its
// in-memory handled/learned maps, so that a long crawl can resume without
// re-walking the whole dump file.
type Store interface {
	Seen(peerID string) bool
	Mark(peerID string) error
	Close() error
}

// PogrebStore is a Store backed by an on-disk pogreb database.
type PogrebStore struct {
	mu sync.Mutex
	db *pogreb.DB
}

// Open creates or reopens a PogrebStore at path.
func Open(path string) (*PogrebStore, error) {
	pogreb.SetLogger(log.New(io.Discard, "", 0))

	db, err := pogreb.Open(path, nil)
	if err != nil {
		return nil, err
	}
	return &PogrebStore{db: db}, nil
}

func fingerprint(peerID string) []byte {
	sum := blake3.Sum256([]byte(peerID))
	return sum[:16] // not a security boundary: truncated for a smaller key footprint
}

// Seen reports whether peerID has ever been marked.
func (s *PogrebStore) Seen(peerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	val, err := s.db.Get(fingerprint(peerID))
	return err == nil && val != nil
}

// Mark records peerID as seen.
func (s *PogrebStore) Mark(peerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Put(fingerprint(peerID), []byte{1})
}

func (s *PogrebStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Close()
}

// NullStore is a Store that remembers nothing; used when no -pogreb
// directory is configured.
type NullStore struct{}

func (NullStore) Seen(string) bool   { return false }
func (NullStore) Mark(string) error  { return nil }
func (NullStore) Close() error       { return nil }
