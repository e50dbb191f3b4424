// Package peerconn implements the per-connection protocol state machine of
// spec §4.6: version handshake, getaddr/addr exchange, and ping/pong, over
// one already-connected socket.
package peerconn

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/sebastiankr/hoschicrawl/internal/filter"
	"github.com/sebastiankr/hoschicrawl/internal/wire"
)

// State mirrors spec §3's FSM states. Go's blocking-with-deadline net.Conn
// model collapses "incomplete" (EAGAIN) into ordinary blocking, so State is
// tracked for introspection/testing rather than to drive a poll loop.
type State int

const (
	StateConnecting State = iota
	StateConnected
	StateSendVersion
	StateGenericRead
	StateGenericWrite
	StateFail
	StateNone
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateSendVersion:
		return "SendVersion"
	case StateGenericRead:
		return "GenericRead"
	case StateGenericWrite:
		return "GenericWrite"
	case StateFail:
		return "Fail"
	default:
		return "None"
	}
}

// Named magic numbers, kept at one site per spec §9.
const (
	MaxSendSize = 4096
	MaxRxSize   = 4096

	TimeoutConnect = 30 * time.Second
	TimeoutTx      = 180 * time.Second
	TimeoutRx      = 180 * time.Second
	TimeoutDead    = 180 * time.Second
)

// Outcome is what the engine should do once Run returns.
type Outcome int

const (
	// OutcomeReuse: the peer disclosed its addr book; re-enqueue for a
	// possible later reconnect (spec §4.6 GenericRead -> "end").
	OutcomeReuse Outcome = iota
	// OutcomeTerminal: protocol violation, I/O error, or timeout; the peer
	// is not retried.
	OutcomeTerminal
)

var ErrClosed = errors.New("peerconn: connection closed")

// Conn owns one peer connection: its socket, FSM state, and attached filter.
type Conn struct {
	PeerID string

	conn   net.Conn
	magic  uint32
	flt    filter.Collector
	logger Logger

	state        State
	peerVersion  uint32
	lastActivity time.Time
	err          error

	r *bufio.Reader
}

// Logger is the abstract log sink (spec §6).
type Logger interface {
	Logf(tag, format string, args ...interface{})
}

// New wraps an already-connected socket. Initial state is Connected: dialing
// (and its 30s connect timeout) is the engine's responsibility since it owns
// the local bind address and socket options (spec §4.7 connect()).
func New(peerID string, conn net.Conn, magic uint32, flt filter.Collector, logger Logger) *Conn {
	return &Conn{
		PeerID:       peerID,
		conn:         conn,
		magic:        magic,
		flt:          flt,
		logger:       logger,
		state:        StateConnected,
		lastActivity: time.Now(),
		r:            bufio.NewReaderSize(conn, MaxRxSize),
	}
}

func (c *Conn) State() State   { return c.state }
func (c *Conn) Why() string {
	if c.err == nil {
		return ""
	}
	return c.err.Error()
}

func (c *Conn) setErr(tag string, err error) {
	c.err = fmt.Errorf("%s: %w", tag, err)
}

// Close releases the underlying socket. Safe to call multiple times.
func (c *Conn) Close() {
	c.conn.Close()
}

// Run drives the connection through SendVersion -> GenericRead/GenericWrite
// until the peer discloses its addr book (OutcomeReuse), a protocol
// violation or timeout occurs (OutcomeTerminal), or ctx is cancelled.
func (c *Conn) Run(ctx context.Context) Outcome {
	c.state = StateConnected
	if c.logger != nil {
		c.logger.Logf("peerconn", "%s connected", c.PeerID)
	}

	c.state = StateSendVersion
	versionMsg, err := wire.MakeVersion(c.magic, c.PeerID)
	if err != nil {
		c.setErr("make_version", err)
		return c.fail()
	}
	if err := c.writeFrame(versionMsg); err != nil {
		c.setErr("send_version", err)
		return c.fail()
	}

	c.state = StateGenericRead
	c.touch()

	for {
		select {
		case <-ctx.Done():
			c.setErr("run", ctx.Err())
			return c.fail()
		default:
		}

		header, payload, err := c.readFrame()
		if err != nil {
			c.setErr("read_frame", err)
			return c.fail()
		}
		c.touch()

		reply, outcome, done := c.dispatch(header.Command, payload)
		if done {
			return outcome
		}
		if reply != nil {
			c.state = StateGenericWrite
			if err := c.writeFrame(reply); err != nil {
				c.setErr("write_reply", err)
				return c.fail()
			}
			c.state = StateGenericRead
			c.touch()
		}
	}
}

// dispatch mirrors spec §4.6's parse_msg: every inbound message is handed to
// the filter first (non-addr commands are ignored but logged there), then:
// version -> verack, verack -> getaddr, addr -> "end", ping -> pong, anything
// else -> no-op.
func (c *Conn) dispatch(command string, payload []byte) (reply []byte, outcome Outcome, done bool) {
	if c.flt != nil {
		c.flt.Collect(c.peerVersion, c.PeerID, command, payload)
	}

	switch command {
	case "version":
		v, err := wire.ParseVersionProtocol(payload)
		if err != nil {
			c.setErr("parse_version", err)
			return nil, c.fail(), true
		}
		c.peerVersion = v
		return wire.MakeVerack(c.magic), 0, false

	case "verack":
		return wire.MakeGetAddr(c.magic), 0, false

	case "addr":
		return nil, OutcomeReuse, true

	case "ping":
		nonce, ok := wire.ParsePingNonce(payload)
		if !ok {
			if c.logger != nil {
				c.logger.Logf("peerconn", "%s sent truncated ping", c.PeerID)
			}
			return nil, 0, false
		}
		return wire.MakePong(c.magic, nonce), 0, false

	default:
		return nil, 0, false
	}
}

func (c *Conn) fail() Outcome {
	c.state = StateFail
	return OutcomeTerminal
}

func (c *Conn) touch() {
	c.lastActivity = time.Now()
}

// readFrame reads one complete framed message: header, then declared
// payload, honoring spec §4.8's rx_complete/dead timeout.
func (c *Conn) readFrame() (wire.Header, []byte, error) {
	c.conn.SetReadDeadline(time.Now().Add(TimeoutRx))

	headerBuf := make([]byte, wire.HeaderSize)
	if _, err := io.ReadFull(c.r, headerBuf); err != nil {
		return wire.Header{}, nil, err
	}

	header, err := wire.ParseHeader(headerBuf, c.magic)
	if err != nil {
		return wire.Header{}, nil, err
	}

	payload := make([]byte, header.PayLen)
	if header.PayLen > 0 {
		c.conn.SetReadDeadline(time.Now().Add(TimeoutRx))
		if _, err := io.ReadFull(c.r, payload); err != nil {
			return wire.Header{}, nil, err
		}
	}

	return header, payload, nil
}

// writeFrame writes a fully framed message, honoring spec §4.8's
// tx_complete timeout. Writes are chunked to MaxSendSize to mirror the
// reference write_one primitive's bounded-buffer behaviour.
func (c *Conn) writeFrame(frame []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(TimeoutTx))

	for len(frame) > 0 {
		n := len(frame)
		if n > MaxSendSize {
			n = MaxSendSize
		}
		written, err := c.conn.Write(frame[:n])
		if err != nil {
			return err
		}
		frame = frame[written:]
	}
	return nil
}
