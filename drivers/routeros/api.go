package routeros

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	ros "github.com/go-routeros/routeros/v3"

	"github.com/nanoncore/nano-ctlplane/types"
)

const (
	DefaultAPIPort    = 8728
	DefaultAPISSLPort = 8729
	DefaultTimeout    = 10 * time.Second
)

// apiConn is a Conn backed by the RouterOS API protocol
type apiConn struct {
	client  *ros.Client
	timeout time.Duration
}

// NewAPIDialer returns a Dialer speaking the binary API, over TLS when
// useTLS is set.
func NewAPIDialer(useTLS bool) Dialer {
	return func(ctx context.Context, p types.RouterProfile) (Conn, error) {
		return DialAPI(ctx, p, useTLS)
	}
}

// DialAPI logs in to the router API service
func DialAPI(ctx context.Context, p types.RouterProfile, useTLS bool) (Conn, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if dl, ok := ctx.Deadline(); ok {
		if remaining := time.Until(dl); remaining < timeout {
			timeout = remaining
		}
	}

	var (
		client *ros.Client
		err    error
	)
	if useTLS {
		addr := p.Address(DefaultAPISSLPort)
		cfg := &tls.Config{
			ServerName:         p.Host,
			InsecureSkipVerify: p.TLSSkipVerify, //nolint:gosec // RouterOS ships self-signed certificates
			MinVersion:         tls.VersionTLS12,
		}
		client, err = ros.DialTLSTimeout(addr, p.Username, p.Password, cfg, timeout)
	} else {
		client, err = ros.DialTimeout(p.Address(DefaultAPIPort), p.Username, p.Password, timeout)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: dial router %s: %v", types.ErrConnection, p.ID, Classify(err))
	}

	cmdTimeout := p.Timeout
	if cmdTimeout <= 0 {
		cmdTimeout = DefaultTimeout
	}
	return &apiConn{client: client, timeout: cmdTimeout}, nil
}

type runResult struct {
	reply *ros.Reply
	err   error
}

// Run executes one sentence. The client has no read deadline of its own, so
// an exchange that outlives the timeout closes the client, which unblocks
// the pending read.
func (c *apiConn) Run(sentence []string) ([]map[string]string, error) {
	done := make(chan runResult, 1)
	go func() {
		reply, err := c.client.RunArgs(sentence)
		done <- runResult{reply: reply, err: err}
	}()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, Classify(res.err)
		}
		return rows(res.reply), nil
	case <-timer.C:
		c.client.Close()
		return nil, fmt.Errorf("%w: %s after %s", types.ErrTimeout, sentence[0], c.timeout)
	}
}

func (c *apiConn) Close() error {
	c.client.Close()
	return nil
}

func rows(reply *ros.Reply) []map[string]string {
	if reply == nil {
		return nil
	}
	out := make([]map[string]string, 0, len(reply.Re))
	for _, re := range reply.Re {
		row := make(map[string]string, len(re.Map))
		for k, v := range re.Map {
			row[k] = v
		}
		out = append(out, row)
	}
	return out
}
