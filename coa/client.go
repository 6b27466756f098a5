// Package coa sends RADIUS Disconnect-Request packets (RFC 5176) to a NAS
// and classifies the response.
//
// Every call uses its own ephemeral UDP socket and random identifier, so
// concurrent disconnects, even to the same NAS, need no coordination.
package coa

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"layeh.com/radius"
	"layeh.com/radius/rfc2865"
	"layeh.com/radius/rfc2866"
	"layeh.com/radius/rfc3576"

	"github.com/nanoncore/nano-ctlplane/logging"
	"github.com/nanoncore/nano-ctlplane/metrics"
	"github.com/nanoncore/nano-ctlplane/types"
)

const (
	DefaultTimeout = 5 * time.Second

	maxPacketSize = 4096
)

// Client sends Disconnect-Requests
type Client struct {
	timeout  time.Duration
	log      logging.Logger
	metrics  *metrics.Collectors
	resolver *net.Resolver
}

// Option configures a Client
type Option func(*Client)

// WithTimeout bounds the wait for a response
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(l logging.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithMetrics sets the Prometheus collectors
func WithMetrics(m *metrics.Collectors) Option {
	return func(c *Client) { c.metrics = m }
}

// New creates a Client with a 5 second response timeout
func New(opts ...Option) *Client {
	c := &Client{
		timeout: DefaultTimeout,
		log:     logging.NewTestLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithComponent("coa")
	return c
}

// Timeout returns the response timeout
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Disconnect asks the NAS to terminate the subscriber session.
//
// The error is non-nil only when username, NAS address or secret is
// missing, and is returned before any socket is opened. Every other
// result, including timeouts and undecodable replies, is a CoaOutcome.
func (c *Client) Disconnect(ctx context.Context, req types.CoaRequest) (types.CoaOutcome, error) {
	if err := req.Validate(); err != nil {
		return types.CoaOutcome{}, err
	}
	out := c.exchange(ctx, req)
	c.metrics.CoADisconnect(string(out.Kind))
	c.report(req, out)
	return out, nil
}

func (c *Client) report(req types.CoaRequest, out types.CoaOutcome) {
	var ev = c.log.Warn()
	switch out.Kind {
	case types.OutcomeAcknowledged:
		ev = c.log.Info()
	case types.OutcomeDecodeFailed, types.OutcomeTransportFailed:
		ev = c.log.Error()
	}
	ev.Err(out.Err()).
		Str("user", req.Username).
		Str("nas", req.NASAddress).
		Str("outcome", string(out.Kind)).
		Int("code", out.Code).
		Bool("anomaly", out.Anomaly).
		Msg(out.Message)
}

// target returns host:port, keeping an explicit port in NASAddress
func target(req types.CoaRequest) string {
	if host, port, err := net.SplitHostPort(req.NASAddress); err == nil && port != "" {
		return net.JoinHostPort(host, port)
	}
	port := req.Port
	if port <= 0 {
		port = types.DefaultCoAPort
	}
	return net.JoinHostPort(req.NASAddress, strconv.Itoa(port))
}

// packet builds the Disconnect-Request. User-Name is always present;
// Acct-Session-Id and Framed-IP-Address narrow the match when known.
func (c *Client) packet(req types.CoaRequest) (*radius.Packet, error) {
	p := radius.New(radius.CodeDisconnectRequest, []byte(req.Secret))
	if err := rfc2865.UserName_SetString(p, req.Username); err != nil {
		return nil, fmt.Errorf("user-name: %w", err)
	}
	if req.SessionID != "" {
		if err := rfc2866.AcctSessionID_SetString(p, req.SessionID); err != nil {
			return nil, fmt.Errorf("acct-session-id: %w", err)
		}
	}
	if req.FramedIP != "" {
		ip := net.ParseIP(req.FramedIP).To4()
		if ip == nil {
			c.log.Warn().Str("user", req.Username).Str("framed_ip", req.FramedIP).Msg("ignoring non-IPv4 framed address")
		} else if err := rfc2865.FramedIPAddress_Set(p, ip); err != nil {
			return nil, fmt.Errorf("framed-ip-address: %w", err)
		}
	}
	return p, nil
}

type datagram struct {
	data []byte
	err  error
}

// exchange performs one request/response round trip. Dialing, sending and
// waiting share one deadline of c.timeout.
func (c *Client) exchange(ctx context.Context, req types.CoaRequest) types.CoaOutcome {
	pkt, err := c.packet(req)
	if err != nil {
		return transportFailed("build request: %v", err)
	}
	wire, err := pkt.Encode()
	if err != nil {
		return transportFailed("encode request: %v", err)
	}

	bounded, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	d := net.Dialer{Resolver: c.resolver}
	conn, err := d.DialContext(bounded, "udp", target(req))
	if err != nil {
		if bounded.Err() != nil {
			return types.CoaOutcome{
				Kind:    types.OutcomeTimedOut,
				Message: fmt.Sprintf("resolve %s: %v", target(req), bounded.Err()),
			}
		}
		return transportFailed("dial %s: %v", target(req), err)
	}
	defer conn.Close()

	if _, err := conn.Write(wire); err != nil {
		return transportFailed("send to %s: %v", target(req), err)
	}

	replies := make(chan datagram, 1)
	go read(conn, pkt.Identifier, replies)

	select {
	case r := <-replies:
		if r.err != nil {
			return transportFailed("read from %s: %v", target(req), r.err)
		}
		return classify(r.data, wire, []byte(req.Secret))
	case <-bounded.Done():
		conn.Close()
		if ctx.Err() != nil {
			return types.CoaOutcome{
				Kind:    types.OutcomeTimedOut,
				Message: fmt.Sprintf("gave up waiting for %s: %v", target(req), ctx.Err()),
			}
		}
		return types.CoaOutcome{
			Kind:    types.OutcomeTimedOut,
			Message: fmt.Sprintf("no response from %s within %s", target(req), c.timeout),
		}
	}
}

// read delivers the first datagram carrying the request identifier.
// ICMP port-unreachable surfaces as ECONNREFUSED on a connected UDP socket;
// it is ignored so an unreachable NAS resolves through the timeout.
func read(conn net.Conn, id byte, out chan<- datagram) {
	buf := make([]byte, maxPacketSize)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if errors.Is(err, syscall.ECONNREFUSED) {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			out <- datagram{err: err}
			return
		}
		if n < 20 || buf[1] != id {
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		out <- datagram{data: data}
		return
	}
}

func classify(data, request, secret []byte) types.CoaOutcome {
	resp, err := radius.Parse(data, secret)
	if err != nil {
		return types.CoaOutcome{Kind: types.OutcomeDecodeFailed, Message: fmt.Sprintf("decode response: %v", err)}
	}
	if !radius.IsAuthenticResponse(data, request, secret) {
		return types.CoaOutcome{
			Kind:    types.OutcomeDecodeFailed,
			Message: "response authenticator mismatch, check the shared secret",
			Code:    int(resp.Code),
		}
	}

	switch resp.Code {
	case radius.CodeDisconnectACK:
		return types.CoaOutcome{Kind: types.OutcomeAcknowledged, Message: "session disconnected", Code: int(resp.Code)}
	case radius.CodeDisconnectNAK:
		return types.CoaOutcome{Kind: types.OutcomeRejected, Message: nakReason(resp), Code: int(resp.Code)}
	default:
		return types.CoaOutcome{
			Kind:    types.OutcomeRejected,
			Message: fmt.Sprintf("unexpected response code %v", resp.Code),
			Code:    int(resp.Code),
			Anomaly: true,
		}
	}
}

// nakReason renders Reply-Message and Error-Cause of a Disconnect-NAK
func nakReason(resp *radius.Packet) string {
	msg := "disconnect rejected"
	if reply, err := rfc2865.ReplyMessage_LookupString(resp); err == nil && reply != "" {
		msg += ": " + reply
	}
	if cause, err := rfc3576.ErrorCause_Lookup(resp); err == nil {
		msg += fmt.Sprintf(" (error-cause %d %v)", uint32(cause), cause)
	}
	return msg
}

func transportFailed(format string, args ...interface{}) types.CoaOutcome {
	return types.CoaOutcome{Kind: types.OutcomeTransportFailed, Message: fmt.Sprintf(format, args...)}
}

// Result pairs a request with its outcome in DisconnectMany
type Result struct {
	Request types.CoaRequest
	Outcome types.CoaOutcome
	Err     error
}

// DisconnectMany sends independent disconnects concurrently. Results are
// in input order; one failure never affects the others.
func (c *Client) DisconnectMany(ctx context.Context, reqs []types.CoaRequest) []Result {
	results := make([]Result, len(reqs))
	var g errgroup.Group
	for i, req := range reqs {
		g.Go(func() error {
			out, err := c.Disconnect(ctx, req)
			results[i] = Result{Request: req, Outcome: out, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
