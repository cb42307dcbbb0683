// Package collector runs the per-device NETCONF exchange: one session, the
// three Junos queries, and parsing of the replies.
package collector

import (
	"context"

	"github.com/newtron-network/routewatch/pkg/model"
	"github.com/newtron-network/routewatch/pkg/netconf"
	"github.com/newtron-network/routewatch/pkg/rpcparse"
	"github.com/newtron-network/routewatch/pkg/util"
)

// Session is an open request/response channel to one device.
type Session interface {
	Request(ctx context.Context, q netconf.Query) ([]byte, error)
	Close() error
}

// SessionOpener establishes sessions to devices by management address.
type SessionOpener interface {
	Open(ctx context.Context, address string) (Session, error)
}

// Result is the parsed state of one device.
type Result struct {
	Interfaces map[string]model.LogicalInterface
	NextHops   model.NextHops
	MPLSLabels model.MPLSLabels
}

// Queries are issued in this order over one session.
var Queries = []netconf.Query{netconf.QueryInterfaces, netconf.QueryInet3, netconf.QueryMPLS0}

// Collector collects one device at a time; it is safe for concurrent use
// as long as its Opener is.
type Collector struct {
	Opener SessionOpener
}

// New returns a collector using opener.
func New(opener SessionOpener) *Collector {
	return &Collector{Opener: opener}
}

// Collect opens a session to address, runs the three queries and parses
// the replies. A failure to open yields a DeviceError of kind unreachable,
// a failed exchange one of kind session; either way no partial result is
// returned.
func (c *Collector) Collect(ctx context.Context, address string) (*Result, error) {
	sess, err := c.Opener.Open(ctx, address)
	if err != nil {
		return nil, util.NewUnreachableError(address, err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			util.WithDevice(address, "").Debugf("close session: %v", err)
		}
	}()

	replies := make([][]byte, len(Queries))
	for i, q := range Queries {
		reply, err := sess.Request(ctx, q)
		if err != nil {
			return nil, util.NewSessionError(address, q.Name, err)
		}
		replies[i] = reply
	}

	return &Result{
		Interfaces: rpcparse.ParseInterfaces(replies[0]),
		NextHops:   rpcparse.ParseNextHops(replies[1]),
		MPLSLabels: rpcparse.ParseMPLSLabels(replies[2]),
	}, nil
}

// NetconfOpener opens sessions with a netconf.Dialer.
type NetconfOpener struct {
	Dialer *netconf.Dialer
}

// Open implements SessionOpener.
func (o NetconfOpener) Open(ctx context.Context, address string) (Session, error) {
	s, err := o.Dialer.Dial(ctx, address)
	if err != nil {
		return nil, err
	}
	return s, nil
}
