package statusapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeSource struct {
	stats Stats
}

func (f fakeSource) Snapshot() Stats { return f.stats }

func TestHandleStatsReturnsSnapshot(t *testing.T) {
	src := fakeSource{stats: Stats{Handled: 3, Learned: 5, Active: 2, RunID: "run-1", SampledAt: time.Unix(0, 0)}}
	s := New("127.0.0.1:0", src)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var got Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Handled != 3 || got.Learned != 5 || got.Active != 2 || got.RunID != "run-1" {
		t.Fatalf("got %+v, want a copy of %+v", got, src.stats)
	}
}

func TestBroadcastWithNoClientsIsSafe(t *testing.T) {
	src := fakeSource{stats: Stats{Handled: 1}}
	s := New("127.0.0.1:0", src)
	s.Broadcast() // must not panic with zero connected clients
}
