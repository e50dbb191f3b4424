// Package engine implements the crawl engine of spec §4.7-§4.8: dispatch,
// reconnect, and the handled/learned bookkeeping that bounds the crawl.
//
// The reference design drives every connection from one outer poll(2) loop
// over fd-indexed arrays (spec §5). This module keeps that design's
// *observable* behaviour — one mutex-guarded set of handled/learned maps, a
// bounded per-iteration reconnect budget, a reconnect cooldown, and
// termination when both the active-connection set and the learned queue are
// empty — but expresses it with one dispatcher goroutine plus one goroutine
// per live connection instead of raw fd bookkeeping, the shape Go's own
// network stack already gives for free.
package engine

import (
	"bytes"
	"context"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sebastiankr/hoschicrawl/internal/dedupe"
	"github.com/sebastiankr/hoschicrawl/internal/filter"
	"github.com/sebastiankr/hoschicrawl/internal/peerconn"
	"github.com/sebastiankr/hoschicrawl/internal/restore"
	"github.com/sebastiankr/hoschicrawl/internal/statusapi"
)

// Named constants, kept at one site per spec §9.
const (
	ReconnectCap       = 7                      // btc_reconnects
	DispatchBudget     = 256                     // max new dispatches per outer iteration
	InterDispatchSleep = 15 * time.Millisecond
	CooldownNoPort     = 2 * time.Second
	CooldownFinWait    = 60 * time.Second
	tickInterval       = 1 * time.Second // mirrors the reference poll(timeout=1s)
)

// Logger is the abstract log sink (spec §6).
type Logger interface {
	Logf(tag, format string, args ...interface{})
}

// Dumper appends raw dump-file bytes. Satisfied by *os.File.
type Dumper interface {
	Write(p []byte) (int, error)
}

// Dialer opens an outbound connection to a peer identifier, applying the
// bind-address and socket-option policy of spec §4.7's connect(). Returning
// outOfSockets=true signals socket() itself failed (resource exhaustion),
// distinct from an ordinary per-peer connect failure.
type Dialer interface {
	Dial(ctx context.Context, peerID string) (conn net.Conn, outOfSockets bool, err error)
}

// Engine owns the pending-learned queue, the handled-count map, the set of
// live connections, and runs the dispatch loop (spec §3, §4.7).
type Engine struct {
	magic             uint32
	dialer            Dialer
	logger            Logger
	dedupe            dedupe.Store
	dumper            Dumper
	status            *statusapi.Server
	runID             uuid.UUID
	reconnectCooldown time.Duration

	mu      sync.Mutex
	handled map[string]int
	learned map[string]time.Time
	active  map[string]*activeConn

	outOfSockets bool
	lastErr      error

	connDone chan cleanupEvent
}

type activeConn struct {
	conn *peerconn.Conn
	flt  *filter.AddrFilter
}

type cleanupEvent struct {
	peerID  string
	outcome peerconn.Outcome
	dump    []byte
}

// Option configures an Engine at construction time.
type Option func(*Engine)

func WithLogger(l Logger) Option       { return func(e *Engine) { e.logger = l } }
func WithDedupe(d dedupe.Store) Option { return func(e *Engine) { e.dedupe = d } }

// New builds an Engine. fixedLocalPort indicates whether the crawler was
// configured with an explicit local bind port (spec §3's
// reconnect_cooldown: 2s if not, 60s — the TCP FIN_WAIT grace — if so).
func New(magic uint32, dialer Dialer, dumper Dumper, fixedLocalPort bool, opts ...Option) *Engine {
	cooldown := CooldownNoPort
	if fixedLocalPort {
		cooldown = CooldownFinWait
	}

	e := &Engine{
		magic:             magic,
		dialer:            dialer,
		dumper:            dumper,
		reconnectCooldown: cooldown,
		handled:           make(map[string]int),
		learned:           make(map[string]time.Time),
		active:            make(map[string]*activeConn),
		connDone:          make(chan cleanupEvent, 64),
		dedupe:            dedupe.NullStore{},
		runID:             newRunID(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func newRunID() uuid.UUID {
	id, err := uuid.NewRandom()
	if err != nil {
		return uuid.Nil
	}
	return id
}

// RunID is the crawl session identifier, logged at start/end and in the
// dump file, for correlating dump and log files across restarts.
func (e *Engine) RunID() uuid.UUID { return e.runID }

// SetStatusServer attaches the observability server after construction,
// letting a caller build it from the engine itself (it implements
// statusapi.Source) before wiring the two together.
func (e *Engine) SetStatusServer(s *statusapi.Server) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = s
}

func (e *Engine) logf(format string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Logf("engine", format, args...)
	}
}

// IsHandled implements filter.NodeLearner.
func (e *Engine) IsHandled(peerID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.handled[peerID]
	return ok
}

// IsLearned implements filter.NodeLearner.
func (e *Engine) IsLearned(peerID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.learned[peerID]
	return ok
}

// LearnNode implements filter.NodeLearner: only learn if not already
// handled in this run, nor marked seen in a prior one by the durable
// dedupe store (spec §3's across-restart membership test).
func (e *Engine) LearnNode(peerID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.handled[peerID]; ok {
		return
	}
	if e.dedupe != nil && e.dedupe.Seen(peerID) {
		return
	}
	e.learned[peerID] = time.Unix(1, 0)
	if e.dedupe != nil {
		e.dedupe.Mark(peerID)
	}
}

// SeedNodes learns every seed not already handled or learned.
func (e *Engine) SeedNodes(seeds []string) {
	for _, s := range seeds {
		if !e.IsHandled(s) && !e.IsLearned(s) {
			e.LearnNode(s)
		}
	}
}

// RestoreHandled merges a restore file's handled counts (spec §6).
func (e *Engine) RestoreHandled(handled map[string]int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for k, v := range handled {
		e.handled[k] += v
	}
}

// RestoreLearned merges a restore file's learned queue, skipping anything
// that the merged handled map already put at cap.
func (e *Engine) RestoreLearned(learned map[string]time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for k, v := range learned {
		if e.handled[k] >= ReconnectCap {
			continue
		}
		if _, ok := e.learned[k]; !ok {
			e.learned[k] = v
		}
	}
}

// OutOfSockets reports whether the engine has ever hit socket exhaustion.
func (e *Engine) OutOfSockets() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.outOfSockets
}

// Why returns a description of the most recent abnormal condition the
// engine hit (an out-of-sockets reconnect-pass abort, for instance), or an
// empty string if nothing noteworthy has happened. Mirrors the why()
// accessor the reference scan engine exposes alongside its node-level one
// (peerconn.Conn.Why).
func (e *Engine) Why() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastErr == nil {
		return ""
	}
	return e.lastErr.Error()
}

// Snapshot implements statusapi.Source.
func (e *Engine) Snapshot() statusapi.Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return statusapi.Stats{
		Handled:   len(e.handled),
		Learned:   len(e.learned),
		Active:    len(e.active),
		RunID:     e.runID.String(),
		SampledAt: time.Now(),
	}
}

// Run drives the engine until no peer remains in either the active set or
// the learned queue (spec §3), or ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	if e.terminated() {
		return nil
	}

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-e.connDone:
			e.handleCleanup(ev)
		case <-ticker.C:
			e.reconnectPass(ctx)
			if e.status != nil {
				e.status.Broadcast()
			}
		}
		if e.terminated() {
			return nil
		}
	}
}

func (e *Engine) terminated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active) == 0 && len(e.learned) == 0
}

// reconnectPass implements spec §4.7 step 3: up to DispatchBudget new
// dispatches, skipping peers still within their cooldown, retiring peers
// that reached the reconnect cap, and aborting (but retaining the peer) on
// out-of-sockets.
func (e *Engine) reconnectPass(ctx context.Context) {
	e.mu.Lock()
	keys := make([]string, 0, len(e.learned))
	for k := range e.learned {
		keys = append(keys, k)
	}
	e.mu.Unlock()
	sort.Strings(keys) // deterministic stand-in for the reference std::map's key order

	dispatched := 0
	now := time.Now()

	for _, id := range keys {
		if dispatched >= DispatchBudget {
			return
		}

		e.mu.Lock()
		ts, ok := e.learned[id]
		if !ok {
			e.mu.Unlock()
			continue
		}
		if now.Sub(ts) <= e.reconnectCooldown {
			e.mu.Unlock()
			continue
		}
		if e.handled[id] >= ReconnectCap {
			delete(e.learned, id)
			e.mu.Unlock()
			e.logf("retiring %s: reconnect cap reached", id)
			continue
		}
		e.mu.Unlock()

		time.Sleep(InterDispatchSleep)

		conn, outOfSockets, err := e.dialer.Dial(ctx, id)
		if err != nil {
			if outOfSockets {
				e.mu.Lock()
				e.outOfSockets = true
				e.lastErr = err
				e.mu.Unlock()
				e.logf("out of sockets, aborting reconnect pass")
				return
			}
			e.mu.Lock()
			delete(e.learned, id)
			e.mu.Unlock()
			e.logf("connect %s failed: %v", id, err)
			continue
		}

		peerFilter := filter.NewAddrFilter(e, e.logger)
		pc := peerconn.New(id, conn, e.magic, peerFilter, e.logger)

		e.mu.Lock()
		delete(e.learned, id)
		e.handled[id]++
		e.active[id] = &activeConn{conn: pc, flt: peerFilter}
		e.mu.Unlock()
		dispatched++

		go e.runConnection(ctx, id, pc, peerFilter)
	}
}

func (e *Engine) runConnection(ctx context.Context, peerID string, pc *peerconn.Conn, flt *filter.AddrFilter) {
	outcome := pc.Run(ctx)

	var buf bytes.Buffer
	flt.Dump(&buf)
	pc.Close()

	select {
	case e.connDone <- cleanupEvent{peerID: peerID, outcome: outcome, dump: buf.Bytes()}:
	case <-ctx.Done():
	}
}

// handleCleanup implements spec §4.7 step 2: close, dump, and either retire
// (handled clamped to cap) or re-enqueue (learned[peer] = now) the peer.
func (e *Engine) handleCleanup(ev cleanupEvent) {
	e.mu.Lock()
	delete(e.active, ev.peerID)
	if ev.outcome == peerconn.OutcomeReuse {
		e.learned[ev.peerID] = time.Now()
	} else {
		e.handled[ev.peerID] = ReconnectCap
	}
	e.mu.Unlock()

	if len(ev.dump) > 0 && e.dumper != nil {
		if err := restore.AppendLines(e.dumper, bytes.NewReader(ev.dump)); err != nil {
			e.logf("dump write for %s failed: %v", ev.peerID, err)
		}
	}
	e.logf("cleanup %s outcome=%d", ev.peerID, ev.outcome)
}
