package router

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/nanoncore/nano-ctlplane/drivers/routeros"
	"github.com/nanoncore/nano-ctlplane/logging"
	"github.com/nanoncore/nano-ctlplane/metrics"
	"github.com/nanoncore/nano-ctlplane/types"
)

// ErrPoolClosed is returned for commands submitted to, or still queued in,
// a closed pool.
var ErrPoolClosed = errors.New("router pool closed")

const defaultQueueDepth = 256

// Transport resolves the dialer for a router profile
type Transport func(profile types.RouterProfile) (routeros.Dialer, error)

// Pool owns one worker per router id. Each worker holds the router's live
// connection exclusively and drains a FIFO queue, so at most one command is
// in flight per connection while different routers run in parallel.
type Pool struct {
	transport  Transport
	log        logging.Logger
	metrics    *metrics.Collectors
	queueDepth int

	mu      sync.Mutex
	workers map[string]*worker
	closed  bool
}

// Option configures a Pool
type Option func(*Pool)

// WithLogger sets the logger
func WithLogger(l logging.Logger) Option {
	return func(p *Pool) { p.log = l }
}

// WithMetrics sets the Prometheus collectors
func WithMetrics(m *metrics.Collectors) Option {
	return func(p *Pool) { p.metrics = m }
}

// WithQueueDepth sets how many commands may wait per router before
// submitters block.
func WithQueueDepth(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.queueDepth = n
		}
	}
}

// NewPool creates an empty pool. Workers start lazily on first use.
func NewPool(transport Transport, opts ...Option) *Pool {
	p := &Pool{
		transport:  transport,
		log:        logging.NewTestLogger(),
		queueDepth: defaultQueueDepth,
		workers:    make(map[string]*worker),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.WithComponent("router")
	return p
}

// worker returns the worker for profile.ID, starting it on first use
func (p *Pool) worker(profile types.RouterProfile) (*worker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPoolClosed
	}
	if w, ok := p.workers[profile.ID]; ok {
		return w, nil
	}

	dial, err := p.transport(profile)
	if err != nil {
		return nil, err
	}
	w := &worker{
		profile:    profile,
		dial:       dial,
		log:        p.log.With("router", profile.ID),
		metrics:    p.metrics,
		tasks:      make(chan *task, p.queueDepth),
		invalidate: make(chan struct{}, 1),
		quit:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	p.workers[profile.ID] = w
	go w.run()
	return w, nil
}

// enqueue appends a sentence to the router's queue
func (p *Pool) enqueue(ctx context.Context, profile types.RouterProfile, sentence []string) (*Pending, error) {
	w, err := p.worker(profile)
	if err != nil {
		return nil, err
	}

	t := &task{
		id:       uuid.NewString(),
		ctx:      ctx,
		sentence: sentence,
		done:     make(chan result, 1),
	}
	select {
	case w.tasks <- t:
		return &Pending{t: t, stopped: w.stopped}, nil
	case <-w.quit:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops the cached connection of a router. The next command
// dials a fresh one.
func (p *Pool) Invalidate(routerID string) {
	p.mu.Lock()
	w, ok := p.workers[routerID]
	p.mu.Unlock()
	if !ok {
		return
	}
	select {
	case w.invalidate <- struct{}{}:
	default:
	}
}

// Close stops every worker and closes its connection. Queued commands fail
// with ErrPoolClosed.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	workers := make([]*worker, 0, len(p.workers))
	for _, w := range p.workers {
		workers = append(workers, w)
	}
	p.mu.Unlock()

	for _, w := range workers {
		close(w.quit)
	}
	for _, w := range workers {
		<-w.stopped
	}
	return nil
}

type result struct {
	rows []map[string]string
	err  error
}

type task struct {
	id       string
	ctx      context.Context
	sentence []string
	done     chan result
}

// Pending is a queued command
type Pending struct {
	t       *task
	stopped <-chan struct{}
}

// ID is the command id used in log entries
func (p *Pending) ID() string {
	return p.t.id
}

// Wait blocks until the command completes or ctx is done. A command whose
// ctx ends while still queued is skipped by the worker.
func (p *Pending) Wait(ctx context.Context) ([]map[string]string, error) {
	select {
	case r := <-p.t.done:
		return r.rows, r.err
	case <-p.stopped:
		select {
		case r := <-p.t.done:
			return r.rows, r.err
		default:
			return nil, ErrPoolClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type worker struct {
	profile types.RouterProfile
	dial    routeros.Dialer
	log     logging.Logger
	metrics *metrics.Collectors

	tasks      chan *task
	invalidate chan struct{}
	quit       chan struct{}
	stopped    chan struct{}

	// conn is only touched by the run goroutine
	conn      routeros.Conn
	connected bool
}

func (w *worker) run() {
	defer close(w.stopped)
	for {
		select {
		case <-w.quit:
			w.drop()
			w.drain()
			return
		case <-w.invalidate:
			w.drop()
		case t := <-w.tasks:
			w.execute(t)
		}
	}
}

// drain fails everything still queued after quit
func (w *worker) drain() {
	for {
		select {
		case t := <-w.tasks:
			t.done <- result{err: ErrPoolClosed}
		default:
			return
		}
	}
}

func (w *worker) execute(t *task) {
	if err := t.ctx.Err(); err != nil {
		t.done <- result{err: err}
		return
	}

	path := t.sentence[0]
	w.log.Debug().Str("cmd", t.id).Str("path", path).Msg("running command")

	rows, err := w.attempt(t)
	if errors.Is(err, routeros.ErrDesync) {
		w.log.Warn().Err(err).Str("cmd", t.id).Str("path", path).Msg("session desynchronized, reconnecting")
		w.metrics.RouterReconnect(w.profile.ID)
		w.drop()
		rows, err = w.attempt(t)
	}

	w.metrics.RouterCommand(w.profile.ID, err)
	if err != nil {
		w.log.Error().Err(err).
			Str("cmd", t.id).
			Str("path", path).
			Bool("recoverable", routeros.IsRecoverable(err)).
			Msg("command failed")
	}
	t.done <- result{rows: rows, err: err}
}

// attempt runs the task once, dialing if needed. Trap errors keep the
// connection; any other failure drops it.
func (w *worker) attempt(t *task) ([]map[string]string, error) {
	if w.conn == nil {
		conn, err := w.dial(t.ctx, w.profile)
		if err != nil {
			if errors.Is(err, types.ErrConnection) || errors.Is(err, types.ErrValidation) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: router %s: %v", types.ErrConnection, w.profile.ID, err)
		}
		w.conn = conn
		if !w.connected {
			w.log.Info().Str("host", w.profile.Host).Str("protocol", string(w.profile.Protocol)).Msg("connected to router")
			w.connected = true
		}
	}

	rows, err := w.conn.Run(t.sentence)
	if err == nil {
		return rows, nil
	}
	err = routeros.Classify(err)

	var trap *routeros.TrapError
	if !errors.As(err, &trap) {
		w.drop()
	}
	return nil, err
}

func (w *worker) drop() {
	if w.conn == nil {
		return
	}
	if err := w.conn.Close(); err != nil {
		w.log.Debug().Err(err).Msg("close router connection")
	}
	w.conn = nil
}
