// Package cli is the SSH console transport for RouterOS. It serves routers
// whose API service is disabled by translating API sentences into console
// lines and parsing terse print output back into rows.
package cli

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/nanoncore/nano-ctlplane/drivers/routeros"
	"github.com/nanoncore/nano-ctlplane/types"
)

const (
	DefaultPort    = 22
	DefaultTimeout = 10 * time.Second

	// consoleFlags disables colors and terminal detection; RouterOS reads
	// them from the login name.
	consoleFlags = "+cte"
)

// Dial opens an SSH console session. It implements routeros.Dialer.
func Dial(ctx context.Context, p types.RouterProfile) (routeros.Conn, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	timeout := p.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	// some devices only offer keyboard-interactive
	keyboardInteractive := ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
		answers := make([]string, len(questions))
		for i := range questions {
			answers[i] = p.Password
		}
		return answers, nil
	})

	sshConfig := &ssh.ClientConfig{
		User: p.Username + consoleFlags,
		Auth: []ssh.AuthMethod{
			ssh.Password(p.Password),
			keyboardInteractive,
		},
		Timeout:         timeout,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // routers are addressed by operator-provided profiles
	}

	addr := p.Address(DefaultPort)
	d := net.Dialer{Timeout: timeout}
	raw, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", types.ErrConnection, addr, err)
	}

	// ssh.NewClientConn ignores sshConfig.Timeout; bound the handshake and
	// the first prompt on the socket itself.
	if err := raw.SetDeadline(time.Now().Add(timeout)); err != nil {
		raw.Close()
		return nil, fmt.Errorf("%w: %s: %v", types.ErrConnection, addr, err)
	}
	stop := context.AfterFunc(ctx, func() { raw.Close() })

	conn, err := login(raw, addr, sshConfig, timeout)
	if !stop() {
		if conn != nil {
			conn.Close()
		}
		return nil, fmt.Errorf("%w: login to %s: %v", types.ErrConnection, addr, ctx.Err())
	}
	if err != nil {
		raw.Close()
		return nil, err
	}
	if err := raw.SetDeadline(time.Time{}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %s: %v", types.ErrConnection, addr, err)
	}
	return conn, nil
}

func login(raw net.Conn, addr string, sshConfig *ssh.ClientConfig, timeout time.Duration) (*consoleConn, error) {
	c, chans, reqs, err := ssh.NewClientConn(raw, addr, sshConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: ssh handshake with %s: %v", types.ErrConnection, addr, err)
	}
	client := ssh.NewClient(c, chans, reqs)

	session, err := NewExpectSession(ExpectSessionConfig{SSHClient: client, Timeout: timeout})
	if err != nil {
		client.Close()
		return nil, err
	}
	return &consoleConn{client: client, session: session}, nil
}

type consoleConn struct {
	client  *ssh.Client
	session *ExpectSession
}

func (c *consoleConn) Run(sentence []string) ([]map[string]string, error) {
	cmd, err := translate(sentence)
	if err != nil {
		return nil, err
	}
	output, err := c.session.Execute(cmd.line)
	if err != nil {
		return nil, err
	}
	if err := consoleError(output); err != nil {
		return nil, err
	}
	switch {
	case cmd.print:
		return parseTerse(output), nil
	case cmd.add:
		return putResult(output), nil
	default:
		return []map[string]string{}, nil
	}
}

func (c *consoleConn) Close() error {
	_ = c.session.Close()
	return c.client.Close()
}
