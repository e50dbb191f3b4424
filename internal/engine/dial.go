package engine

import (
	"context"
	"errors"
	"net"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/sebastiankr/hoschicrawl/internal/peerconn"
	"github.com/sebastiankr/hoschicrawl/internal/peerid"
)

// TCPDialer implements Dialer over a real socket, applying spec §4.7's
// connect() policy: pick the local bind address by the target's IP family,
// set SO_REUSEADDR/SO_REUSEPORT so a short-lived process can rebind a port
// still draining TIME_WAIT, and classify fd exhaustion separately from an
// ordinary connect refusal.
type TCPDialer struct {
	LocalV4 *net.TCPAddr
	LocalV6 *net.TCPAddr
}

var (
	ErrNoIPv4Bind = errors.New("engine: no local IPv4 bind address configured")
	ErrNoIPv6Bind = errors.New("engine: no local IPv6 bind address configured")
)

func (d *TCPDialer) Dial(ctx context.Context, id string) (net.Conn, bool, error) {
	ip, port, err := peerid.Parse(id)
	if err != nil {
		return nil, false, err
	}

	var laddr *net.TCPAddr
	if ip.To4() != nil {
		if d.LocalV4 == nil {
			return nil, false, ErrNoIPv4Bind
		}
		laddr = d.LocalV4
	} else {
		if d.LocalV6 == nil {
			return nil, false, ErrNoIPv6Bind
		}
		laddr = d.LocalV6
	}

	dialCtx, cancel := context.WithTimeout(ctx, peerconn.TimeoutConnect)
	defer cancel()

	dialer := &net.Dialer{
		LocalAddr: laddr,
		Control:   reuseAddrAndPort,
	}

	conn, err := dialer.DialContext(dialCtx, "tcp", net.JoinHostPort(ip.String(), strconv.Itoa(int(port))))
	if err != nil {
		return nil, isOutOfSockets(err), err
	}
	return conn, false, nil
}

// reuseAddrAndPort mirrors the reference connect()'s SO_REUSEADDR/
// SO_REUSEPORT setsockopt calls, letting a crawl re-dial a peer whose
// previous connection is still draining TIME_WAIT on the same local port.
func reuseAddrAndPort(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		if e := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); e != nil {
			sockErr = e
			return
		}
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// isOutOfSockets reports whether err reflects fd/resource exhaustion at the
// socket() call itself, which spec §4.7 treats as reason to abort the whole
// reconnect pass rather than simply drop one peer.
func isOutOfSockets(err error) bool {
	return errors.Is(err, syscall.EMFILE) || errors.Is(err, syscall.ENFILE) || errors.Is(err, syscall.ENOBUFS)
}

// RaiseFDLimit raises RLIMIT_NOFILE to the highest value the kernel permits,
// up to want, so a crawl can hold far more concurrent peers open than the
// shell's default ulimit allows (spec §9: "raise fd limit at startup").
func RaiseFDLimit(want uint64) (uint64, error) {
	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlim); err != nil {
		return 0, err
	}

	target := want
	if rlim.Max < target {
		target = rlim.Max
	}
	if rlim.Cur >= target {
		return rlim.Cur, nil
	}

	rlim.Cur = target
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &rlim); err != nil {
		return 0, err
	}
	return rlim.Cur, nil
}
