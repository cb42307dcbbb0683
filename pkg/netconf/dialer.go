package netconf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Dialer opens NETCONF sessions to devices over SSH.
type Dialer struct {
	Port        int
	Credentials Credentials
	// Overrides holds per-address credentials for devices that do not use
	// the fleet-wide account.
	Overrides map[string]Credentials
	// Timeout bounds TCP connect, SSH handshake and hello.
	Timeout time.Duration
	// MaxReplySize bounds one rpc-reply in bytes, DefaultMaxReplySize
	// when zero.
	MaxReplySize int64
	// HostKeyCallback verifies device host keys. Nil accepts any key.
	HostKeyCallback ssh.HostKeyCallback
}

// KnownHosts returns a host key callback backed by OpenSSH known_hosts files.
func KnownHosts(files ...string) (ssh.HostKeyCallback, error) {
	cb, err := knownhosts.New(files...)
	if err != nil {
		return nil, fmt.Errorf("known_hosts: %w", err)
	}
	return cb, nil
}

// CredentialsFor returns the credentials used for address.
func (d *Dialer) CredentialsFor(address string) Credentials {
	if c, ok := d.Overrides[address]; ok {
		return c
	}
	return d.Credentials
}

func (d *Dialer) clientConfig(address string) *ssh.ClientConfig {
	creds := d.CredentialsFor(address)
	hostKey := d.HostKeyCallback
	if hostKey == nil {
		hostKey = ssh.InsecureIgnoreHostKey()
	}
	return &ssh.ClientConfig{
		User: creds.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(creds.Password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = creds.Password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: hostKey,
		Timeout:         d.Timeout,
	}
}

// Dial connects to address, starts the netconf subsystem and completes the
// hello exchange. The returned session owns the SSH connection.
func (d *Dialer) Dial(ctx context.Context, address string) (*Session, error) {
	port := d.Port
	if port == 0 {
		port = DefaultPort
	}
	hostport := net.JoinHostPort(address, strconv.Itoa(port))

	setupCtx := ctx
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		setupCtx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	var nd net.Dialer
	conn, err := nd.DialContext(setupCtx, "tcp", hostport)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", hostport, err)
	}

	// The SSH handshake does not take a context; closing the socket is the
	// only way to interrupt it.
	stop := context.AfterFunc(setupCtx, func() { conn.Close() })
	c, chans, reqs, err := ssh.NewClientConn(conn, hostport, d.clientConfig(address))
	if err != nil {
		stop()
		conn.Close()
		if setupCtx.Err() != nil {
			return nil, fmt.Errorf("ssh handshake %s: %w", hostport, setupCtx.Err())
		}
		return nil, fmt.Errorf("ssh handshake %s: %w", hostport, err)
	}
	client := ssh.NewClient(c, chans, reqs)

	rw, err := subsystem(client)
	if !stop() {
		err = errors.Join(err, setupCtx.Err())
	}
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("netconf subsystem %s: %w", hostport, err)
	}

	s, err := NewSession(setupCtx, rw, d.MaxReplySize)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// sshChannel adapts an SSH session running the netconf subsystem to
// io.ReadWriteCloser. Close tears down the whole client connection.
type sshChannel struct {
	io.Reader
	io.WriteCloser
	session *ssh.Session
	client  *ssh.Client
}

func (c *sshChannel) Close() error {
	c.WriteCloser.Close()
	c.session.Close()
	return c.client.Close()
}

func subsystem(client *ssh.Client) (*sshChannel, error) {
	sess, err := client.NewSession()
	if err != nil {
		return nil, err
	}
	stdin, err := sess.StdinPipe()
	if err != nil {
		sess.Close()
		return nil, err
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		return nil, err
	}
	if err := sess.RequestSubsystem("netconf"); err != nil {
		sess.Close()
		return nil, err
	}
	return &sshChannel{Reader: stdout, WriteCloser: stdin, session: sess, client: client}, nil
}
