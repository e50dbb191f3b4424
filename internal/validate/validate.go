// Package validate implements the address validator of spec §4.4: it
// rejects RFC1918/loopback/link-local/multicast/mixed-notation/low-port
// addresses learned from peers.
package validate

import (
	"net"
	"strings"
)

const minPort = 1024

var blockedV4Prefixes = []string{
	"10.",
	"127.",
	"192.168.",
}

var blockedV4Ranges = struct {
	loNibble, hiNibble byte
}{16, 31} // 172.16.0.0 - 172.31.255.255

var blockedV6Prefixes = []string{
	"fc00:",
	"fd00:",
	"fe80:",
}

const blockedMulticastV4 = "224.0.0."
const blockedMappedPrefix = "::ffff:"

// Address reports whether ip:port is acceptable to learn and dispatch to.
func Address(ip net.IP, port uint16) bool {
	if port <= minPort {
		return false
	}

	text := ip.String()

	if text == "::1" || text == "::" {
		return false
	}
	if strings.Contains(text, ":") && strings.Contains(text, ".") {
		// guards mixed-notation quirks (e.g. a malformed re-mapped v4-in-v6 text form)
		return false
	}
	if strings.HasPrefix(text, blockedMappedPrefix) {
		return false
	}

	for _, p := range blockedV4Prefixes {
		if strings.HasPrefix(text, p) {
			return false
		}
	}
	if strings.HasPrefix(text, blockedMulticastV4) {
		return false
	}
	if strings.HasPrefix(text, "172.") {
		parts := strings.SplitN(text, ".", 3)
		if len(parts) >= 2 {
			var second int
			for _, c := range parts[1] {
				if c < '0' || c > '9' {
					second = -1
					break
				}
				second = second*10 + int(c-'0')
			}
			if second >= int(blockedV4Ranges.loNibble) && second <= int(blockedV4Ranges.hiNibble) {
				return false
			}
		}
	}
	for _, p := range blockedV6Prefixes {
		if strings.HasPrefix(text, p) {
			return false
		}
	}

	return true
}
