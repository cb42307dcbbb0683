// Package netconf opens NETCONF-over-SSH sessions to Junos devices and
// issues the read-only RPCs routewatch collects.
//
// Framing, the hello exchange and <rpc> encoding come from
// github.com/Juniper/go-netconf; this package owns the SSH connection
// (host keys, per-device credentials, context cancellation), the reply
// size limit and the mapping of <rpc-error> to RPCError.
package netconf

import (
	"fmt"
	"strings"
)

const (
	// CapBase10 is the base capability both sides advertise. Sessions use
	// end-of-message framing.
	CapBase10 = "urn:ietf:params:netconf:base:1.0"

	// DefaultPort is the IANA NETCONF-over-SSH port.
	DefaultPort = 830
)

// Query is one RPC request body, sent inside <rpc>.
type Query struct {
	Name string // short name used in logs and errors
	Body string
}

func (q Query) String() string { return q.Name }

// Junos RPCs issued by the collector, in collection order.
var (
	QueryInterfaces = Query{
		Name: "interfaces",
		Body: `<get-interface-information xmlns="http://yang.juniper.net/junos/rpc/interfaces"/>`,
	}
	QueryInet3 = Query{
		Name: "inet.3",
		Body: `<get-route-information xmlns="http://yang.juniper.net/junos/rpc/route"><table>inet.3</table></get-route-information>`,
	}
	QueryMPLS0 = Query{
		Name: "mpls.0",
		Body: `<get-route-information xmlns="http://yang.juniper.net/junos/rpc/route"><table>mpls.0</table></get-route-information>`,
	}

	closeSession = Query{Name: "close-session", Body: `<close-session/>`}
)

// RPCError is an <rpc-error> element of an <rpc-reply>.
type RPCError struct {
	Type     string `xml:"error-type"`
	Tag      string `xml:"error-tag"`
	Severity string `xml:"error-severity"`
	Path     string `xml:"error-path"`
	Message  string `xml:"error-message"`
}

func (e *RPCError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = strings.TrimSpace(e.Tag)
	}
	if p := strings.TrimSpace(e.Path); p != "" {
		return fmt.Sprintf("rpc-error (%s): %s at %s", strings.TrimSpace(e.Type), msg, p)
	}
	return fmt.Sprintf("rpc-error (%s): %s", strings.TrimSpace(e.Type), msg)
}

// Credentials for SSH password / keyboard-interactive authentication.
type Credentials struct {
	Username string
	Password string
}
