// Package peerid implements the canonical "[ip]:port" peer identifier
// string form used as the dedup key throughout the crawler (spec §3).
package peerid

import (
	"errors"
	"net"
	"strconv"
	"strings"
)

var ErrInvalid = errors.New("peerid: invalid peer identifier")

// Format returns the canonical "[ip]:port" string for ip/port.
func Format(ip net.IP, port uint16) string {
	return "[" + ip.String() + "]:" + strconv.Itoa(int(port))
}

// Parse splits a canonical "[ip]:port" identifier into its IP and port.
func Parse(id string) (ip net.IP, port uint16, err error) {
	if len(id) < 4 || id[0] != '[' {
		return nil, 0, ErrInvalid
	}
	end := strings.LastIndexByte(id, ']')
	if end < 0 || end+2 > len(id) || id[end+1] != ':' {
		return nil, 0, ErrInvalid
	}
	ipPart := id[1:end]
	portPart := id[end+2:]

	parsed := net.ParseIP(ipPart)
	if parsed == nil {
		return nil, 0, ErrInvalid
	}
	p, err := strconv.ParseUint(portPart, 10, 16)
	if err != nil {
		return nil, 0, ErrInvalid
	}
	return parsed, uint16(p), nil
}
