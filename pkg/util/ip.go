package util

import (
	"net"
	"strings"
)

// StripMask returns the part of s before the first "/", so both
// "10.0.0.1/32" and "10.0.0.1" yield "10.0.0.1". Route destinations and
// NetBox primary addresses carry a mask; device keys never do.
func StripMask(s string) string {
	if i := strings.IndexByte(s, '/'); i >= 0 {
		return s[:i]
	}
	return s
}

// IsIPAddress reports whether s is a bare IPv4 or IPv6 address
func IsIPAddress(s string) bool {
	return net.ParseIP(s) != nil
}
