package netconf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	gonetconf "github.com/Juniper/go-netconf/netconf"
)

const closeTimeout = 5 * time.Second

// DefaultMaxReplySize bounds a single rpc-reply. A full mpls.0 table of a
// large PE is a few megabytes.
const DefaultMaxReplySize = 64 << 20

// ErrReplyTooLarge is returned when a device sends more than the
// configured reply size. The session is closed.
var ErrReplyTooLarge = errors.New("netconf reply exceeds size limit")

// Session is an established NETCONF session. Requests are serialized; a
// Session may be shared between goroutines but is normally used by one
// collection pipeline.
type Session struct {
	mu sync.Mutex
	nc *gonetconf.Session
	rw *limitedReader

	closeOnce sync.Once
	closeErr  error

	// ID is the session-id assigned by the server.
	ID string
	// Capabilities advertised by the server.
	Capabilities []string
}

// limitedReader counts bytes read since the last reset and fails reads
// beyond max.
type limitedReader struct {
	io.ReadWriteCloser
	max      int64
	n        int64
	exceeded bool
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.max > 0 {
		if l.n >= l.max {
			l.exceeded = true
			return 0, ErrReplyTooLarge
		}
		if rest := l.max - l.n; int64(len(p)) > rest {
			p = p[:rest]
		}
	}
	n, err := l.ReadWriteCloser.Read(p)
	l.n += int64(n)
	return n, err
}

func (l *limitedReader) reset() {
	l.n = 0
	l.exceeded = false
}

// NewSession runs the hello exchange over rw and returns a ready session.
// Replies larger than maxReply bytes fail the request; zero or less means
// DefaultMaxReplySize. Closing the session closes rw. If ctx ends during
// the exchange rw is closed and ctx.Err() returned.
func NewSession(ctx context.Context, rw io.ReadWriteCloser, maxReply int64) (*Session, error) {
	if maxReply <= 0 {
		maxReply = DefaultMaxReplySize
	}
	s := &Session{rw: &limitedReader{ReadWriteCloser: rw, max: maxReply}}

	stop := context.AfterFunc(ctx, func() { s.shutdown() })
	defer stop()

	nc, err := hello(s.rw)
	if err == nil && len(nc.ServerCapabilities) == 0 {
		err = errors.New("no server hello")
	}
	if err != nil {
		s.shutdown()
		if ctx.Err() != nil {
			return nil, fmt.Errorf("hello: %w", ctx.Err())
		}
		return nil, fmt.Errorf("hello: %w", err)
	}

	s.nc = nc
	s.ID = strconv.Itoa(nc.SessionID)
	for _, c := range nc.ServerCapabilities {
		s.Capabilities = append(s.Capabilities, strings.TrimSpace(c))
	}
	s.rw.reset()
	return s, nil
}

// hello opens the library session. NewSession there reports no error; a
// failed exchange leaves the server capabilities empty.
func hello(rw io.ReadWriteCloser) (nc *gonetconf.Session, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return gonetconf.NewSession(&gonetconf.TransportBasicIO{ReadWriteCloser: rw}), nil
}

// Request sends q and returns the body of the <rpc-reply>. An rpc-error of
// severity "error" is returned as *RPCError; warnings are ignored. When ctx
// ends mid-exchange the underlying connection is closed, so the session
// cannot be reused.
func (s *Session) Request(ctx context.Context, q Query) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", q.Name, err)
	}
	stop := context.AfterFunc(ctx, func() { s.shutdown() })
	defer stop()

	s.rw.reset()
	reply, err := s.nc.Exec(gonetconf.RawMethod(q.Body))
	if reply != nil {
		if rerr := firstError(reply.Errors); rerr != nil {
			return nil, fmt.Errorf("%s: %w", q.Name, rerr)
		}
	}
	switch {
	case s.rw.exceeded:
		s.shutdown()
		return nil, fmt.Errorf("%s: %w", q.Name, ErrReplyTooLarge)
	case ctx.Err() != nil:
		return nil, fmt.Errorf("%s: %w", q.Name, ctx.Err())
	case err != nil:
		return nil, fmt.Errorf("%s: %w", q.Name, err)
	case reply == nil:
		return nil, fmt.Errorf("%s: empty reply", q.Name)
	}
	return []byte(reply.Data), nil
}

func firstError(errs []gonetconf.RPCError) *RPCError {
	for _, e := range errs {
		if strings.TrimSpace(e.Severity) == "warning" {
			continue
		}
		return &RPCError{
			Type:     e.Type,
			Tag:      e.Tag,
			Severity: e.Severity,
			Path:     e.Path,
			Message:  e.Message,
		}
	}
	return nil
}

// Close sends close-session (best effort) and closes the transport.
func (s *Session) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	_, _ = s.Request(ctx, closeSession)
	return s.shutdown()
}

func (s *Session) shutdown() error {
	s.closeOnce.Do(func() { s.closeErr = s.rw.Close() })
	return s.closeErr
}
