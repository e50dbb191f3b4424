// Package statusapi exposes live crawl progress over HTTP, the observability
// analogue of the teacher's own webapi package: a gorilla/mux router serving
// a JSON snapshot plus a gorilla/websocket feed that pushes one when a client
// connects and again on every Broadcast.
// It is purely additive: the crawl's termination condition (spec §3) does
// not depend on whether this server is running.
package statusapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Stats is one snapshot of crawl progress.
type Stats struct {
	Handled    int       `json:"handled"`
	Learned    int       `json:"learned"`
	Active     int       `json:"active"`
	RunID      string    `json:"run_id"`
	SampledAt  time.Time `json:"sampled_at"`
}

// Source supplies the current snapshot on demand.
type Source interface {
	Snapshot() Stats
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server is the running status API.
type Server struct {
	router *mux.Router
	src    Source
	http   *http.Server

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// New builds a status server reading snapshots from src.
func New(addr string, src Source) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		src:     src,
		clients: make(map[*websocket.Conn]struct{}),
	}
	s.router.HandleFunc("/stats", s.handleStats).Methods("GET")
	s.router.HandleFunc("/live", s.handleLive).Methods("GET")
	s.http = &http.Server{Addr: addr, Handler: s.router}
	return s
}

// Serve starts serving and blocks until the server is stopped. It is meant
// to be run in its own goroutine.
func (s *Server) Serve() error {
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Close stops the server and drops any connected websocket clients.
func (s *Server) Close() error {
	s.mu.Lock()
	for c := range s.clients {
		c.Close()
	}
	s.mu.Unlock()
	return s.http.Close()
}

// Broadcast pushes the current snapshot to every connected live client.
// The engine calls this once per dispatch iteration.
func (s *Server) Broadcast() {
	stats := s.src.Snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		if err := c.WriteJSON(stats); err != nil {
			c.Close()
			delete(s.clients, c)
		}
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.src.Snapshot())
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	conn.WriteJSON(s.src.Snapshot())
}
