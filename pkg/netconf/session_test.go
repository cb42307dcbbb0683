package netconf

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"
)

const endOfMessage = "]]>]]>"

func readMessage(r *bufio.Reader) (string, error) {
	var b strings.Builder
	for {
		part, err := r.ReadString('>')
		b.WriteString(part)
		if strings.HasSuffix(b.String(), endOfMessage) {
			return strings.TrimSuffix(b.String(), endOfMessage), nil
		}
		if err != nil {
			return "", err
		}
	}
}

func writeMessage(w io.Writer, msg string) error {
	_, err := io.WriteString(w, msg+endOfMessage)
	return err
}

// fakeServer plays the device side of a NETCONF session over net.Pipe.
type fakeServer struct {
	conn net.Conn
	r    *bufio.Reader
}

func newPipe(t *testing.T) (*fakeServer, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return &fakeServer{conn: server, r: bufio.NewReader(server)}, client
}

// hello sends the server hello and returns the client's.
func (f *fakeServer) hello() (string, error) {
	msg := `<?xml version="1.0" encoding="UTF-8"?>` +
		`<hello xmlns="urn:ietf:params:xml:ns:netconf:base:1.0"><capabilities>` +
		`<capability>` + CapBase10 + `</capability>` +
		`<capability>http://xml.juniper.net/netconf/junos/1.0</capability>` +
		`</capabilities><session-id>4711</session-id></hello>`
	if err := writeMessage(f.conn, msg); err != nil {
		return "", err
	}
	return readMessage(f.r)
}

// serve answers one rpc with the reply built from the rpc text.
func (f *fakeServer) serve(reply func(rpc string) string) error {
	rpc, err := readMessage(f.r)
	if err != nil {
		return err
	}
	return writeMessage(f.conn, reply(rpc))
}

func okReply(body string) func(rpc string) string {
	return func(string) string {
		return `<rpc-reply xmlns="urn:ietf:params:xml:ns:netconf:base:1.0">` + body + `</rpc-reply>`
	}
}

func TestSession_Request(t *testing.T) {
	srv, client := newPipe(t)
	clientHello := make(chan string, 1)
	rpcs := make(chan string, 2)
	go func() {
		h, err := srv.hello()
		if err != nil {
			return
		}
		clientHello <- h
		for i := 0; i < 2; i++ {
			srv.serve(func(rpc string) string {
				rpcs <- rpc
				return okReply(`<route-information><route-table/></route-information>`)(rpc)
			})
		}
	}()

	s, err := NewSession(context.Background(), client, 0)
	if err != nil {
		t.Fatalf("NewSession() error: %v", err)
	}
	if s.ID != "4711" {
		t.Errorf("ID = %q, want 4711", s.ID)
	}
	if len(s.Capabilities) != 2 || s.Capabilities[0] != CapBase10 {
		t.Errorf("Capabilities = %v", s.Capabilities)
	}
	if h := <-clientHello; !strings.Contains(h, CapBase10) {
		t.Errorf("client hello = %s", h)
	}

	for _, q := range []Query{QueryInet3, QueryMPLS0} {
		reply, err := s.Request(context.Background(), q)
		if err != nil {
			t.Fatalf("Request(%s) error: %v", q, err)
		}
		if !strings.Contains(string(reply), "<route-information>") {
			t.Errorf("Request(%s) reply = %s", q, reply)
		}
	}
	if first := <-rpcs; !strings.Contains(first, "<rpc") || !strings.Contains(first, "<table>inet.3</table>") {
		t.Errorf("first rpc = %s", first)
	}
	if second := <-rpcs; !strings.Contains(second, "<table>mpls.0</table>") {
		t.Errorf("second rpc = %s", second)
	}
}

func TestSession_RPCError(t *testing.T) {
	srv, client := newPipe(t)
	go func() {
		srv.hello()
		srv.serve(okReply(`<rpc-error><error-type>protocol</error-type><error-tag>operation-failed</error-tag>` +
			`<error-severity>error</error-severity><error-message>syntax error</error-message></rpc-error>`))
	}()

	s, err := NewSession(context.Background(), client, 0)
	if err != nil {
		t.Fatalf("NewSession() error: %v", err)
	}
	_, err = s.Request(context.Background(), QueryMPLS0)
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("Request() error = %v, want *RPCError", err)
	}
	if rpcErr.Message != "syntax error" || rpcErr.Tag != "operation-failed" {
		t.Errorf("RPCError = %+v", rpcErr)
	}
	if !strings.Contains(err.Error(), "mpls.0") {
		t.Errorf("error should name the query: %v", err)
	}
}

func TestSession_RPCWarningIgnored(t *testing.T) {
	srv, client := newPipe(t)
	go func() {
		srv.hello()
		srv.serve(okReply(`<rpc-error><error-severity>warning</error-severity><error-message>statement deprecated</error-message></rpc-error><route-information/>`))
	}()

	s, err := NewSession(context.Background(), client, 0)
	if err != nil {
		t.Fatalf("NewSession() error: %v", err)
	}
	if _, err := s.Request(context.Background(), QueryInet3); err != nil {
		t.Errorf("warning should not fail the request: %v", err)
	}
}

func TestSession_ReplyTooLarge(t *testing.T) {
	srv, client := newPipe(t)
	go func() {
		srv.hello()
		srv.serve(okReply("<route-information>" + strings.Repeat("<rt/>", 4096) + "</route-information>"))
	}()

	s, err := NewSession(context.Background(), client, 1024)
	if err != nil {
		t.Fatalf("NewSession() error: %v", err)
	}
	_, err = s.Request(context.Background(), QueryMPLS0)
	if !errors.Is(err, ErrReplyTooLarge) {
		t.Fatalf("Request() error = %v, want ErrReplyTooLarge", err)
	}
	if _, err := s.Request(context.Background(), QueryInet3); err == nil {
		t.Error("session should be closed after an oversized reply")
	}
}

func TestSession_ContextCancelUnblocksRead(t *testing.T) {
	srv, client := newPipe(t)
	go func() {
		srv.hello()
		// Read the rpc and never answer.
		readMessage(srv.r)
	}()

	s, err := NewSession(context.Background(), client, 0)
	if err != nil {
		t.Fatalf("NewSession() error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = s.Request(ctx, QueryInterfaces)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Request() error = %v, want deadline exceeded", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("Request() did not return promptly after the deadline")
	}
}

func TestNewSession_HelloTimeout(t *testing.T) {
	_, client := newPipe(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := NewSession(ctx, client, 0); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("NewSession() error = %v, want deadline exceeded", err)
	}
}

func TestSession_Close(t *testing.T) {
	srv, client := newPipe(t)
	got := make(chan string, 1)
	go func() {
		srv.hello()
		srv.serve(func(rpc string) string {
			got <- rpc
			return okReply("<ok/>")(rpc)
		})
	}()

	s, err := NewSession(context.Background(), client, 0)
	if err != nil {
		t.Fatalf("NewSession() error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
	if rpc := <-got; !strings.Contains(rpc, "<close-session/>") {
		t.Errorf("Close() sent %s", rpc)
	}
	if _, err := s.Request(context.Background(), QueryInet3); err == nil {
		t.Error("Request() after Close() should fail")
	}
}

func TestDialer_CredentialsFor(t *testing.T) {
	d := &Dialer{
		Credentials: Credentials{Username: "netconf", Password: "secret"},
		Overrides:   map[string]Credentials{"10.27.193.80": {Username: "lab", Password: "lab123"}},
	}
	if c := d.CredentialsFor("10.27.193.80"); c.Username != "lab" {
		t.Errorf("override not applied: %+v", c)
	}
	if c := d.CredentialsFor("10.0.0.1"); c.Username != "netconf" {
		t.Errorf("default credentials not applied: %+v", c)
	}
}

func TestDialer_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	d := &Dialer{Port: port, Timeout: time.Second}
	if _, err := d.Dial(context.Background(), "127.0.0.1"); err == nil {
		t.Error("Dial() to a closed port should fail")
	}
}

func TestRPCError_Error(t *testing.T) {
	e := &RPCError{Type: "application", Tag: "invalid-value", Path: "/rpc/get-route-information"}
	if got := e.Error(); got != "rpc-error (application): invalid-value at /rpc/get-route-information" {
		t.Errorf("Error() = %q", got)
	}
}
