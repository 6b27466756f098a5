// Package ctlplane is the device control plane of an ISP back office: a
// serialized RouterOS command channel, SNMP inventory of PON OLTs and
// RADIUS Disconnect-Requests toward the NAS.
//
// A ControlPlane is built from a TOML configuration file and wires the
// registry, the router pool, the OLT service and the CoA client together.
package ctlplane

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nanoncore/nano-ctlplane/coa"
	"github.com/nanoncore/nano-ctlplane/config"
	"github.com/nanoncore/nano-ctlplane/drivers/snmp"
	"github.com/nanoncore/nano-ctlplane/logging"
	"github.com/nanoncore/nano-ctlplane/metrics"
	"github.com/nanoncore/nano-ctlplane/olt"
	"github.com/nanoncore/nano-ctlplane/registry"
	"github.com/nanoncore/nano-ctlplane/router"
	"github.com/nanoncore/nano-ctlplane/types"
	"github.com/nanoncore/nano-ctlplane/vendors"
)

// ControlPlane is the entry point for callers
type ControlPlane struct {
	log      logging.Logger
	registry *registry.Registry
	metrics  *metrics.Collectors
	routers  *router.Channel
	olts     *olt.Service
	coa      *coa.Client
}

type options struct {
	log        logging.Logger
	registerer prometheus.Registerer
	transport  router.Transport
	oltDialer  snmp.Dialer
}

// Option configures a ControlPlane
type Option func(*options)

// WithLogger replaces the logger built from the [log] table
func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithRegisterer registers the control plane's collectors with reg
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithRouterTransport replaces NewRouterTransport
func WithRouterTransport(t router.Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithOltDialer replaces the SNMP dialer
func WithOltDialer(d snmp.Dialer) Option {
	return func(o *options) { o.oltDialer = d }
}

// Open loads a configuration file and builds a ControlPlane from it
func Open(path string, opts ...Option) (*ControlPlane, error) {
	f, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return New(f, opts...)
}

// New builds a ControlPlane from a decoded configuration
func New(file *config.File, opts ...Option) (*ControlPlane, error) {
	if file == nil {
		return nil, fmt.Errorf("config is required")
	}
	o := options{transport: NewRouterTransport, oltDialer: snmp.Dial}
	for _, opt := range opts {
		opt(&o)
	}

	log := o.log
	if log == nil {
		var err error
		log, err = logging.New(file.Log)
		if err != nil {
			return nil, fmt.Errorf("build logger: %w", err)
		}
	}

	reg, err := registry.FromFile(file)
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}

	m := metrics.New()
	if o.registerer != nil {
		if err := m.Register(o.registerer); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	pool := router.NewPool(o.transport, router.WithLogger(log), router.WithMetrics(m))
	cp := &ControlPlane{
		log:      log.WithComponent("ctlplane"),
		registry: reg,
		metrics:  m,
		routers:  router.NewChannel(reg, pool),
		olts:     olt.New(olt.WithDialer(o.oltDialer), olt.WithLogger(log), olt.WithMetrics(m)),
		coa:      coa.New(coa.WithTimeout(file.CoATimeout()), coa.WithLogger(log), coa.WithMetrics(m)),
	}
	for _, p := range reg.Olts() {
		if !vendors.Known(p.Vendor) {
			cp.log.Warn().Str("olt", p.ID).Str("vendor", string(p.Vendor)).Msg("unknown vendor tag, only IF-MIB data will be read")
		}
	}
	cp.log.Info().
		Int("routers", len(reg.Routers())).
		Int("olts", len(reg.Olts())).
		Str("default_router", reg.DefaultRouterID()).
		Msg("control plane ready")
	return cp, nil
}

// Registry returns the device profiles
func (c *ControlPlane) Registry() *registry.Registry { return c.registry }

// Routers returns the router command channel
func (c *ControlPlane) Routers() *router.Channel { return c.routers }

// Metrics returns the Prometheus collectors
func (c *ControlPlane) Metrics() *metrics.Collectors { return c.metrics }

// Submit runs a RouterOS command. An empty routerID selects the default router.
func (c *ControlPlane) Submit(ctx context.Context, routerID, path string, params ...string) ([]map[string]string, error) {
	return c.routers.Submit(ctx, routerID, path, params...)
}

// DeviceInfo reads the identity of an OLT
func (c *ControlPlane) DeviceInfo(ctx context.Context, oltID string) types.Result[types.DeviceInfo] {
	p, err := c.registry.Olt(oltID)
	if err != nil {
		return types.Fail[types.DeviceInfo]("%v", err)
	}
	return c.olts.DeviceInfo(ctx, p)
}

// Ports lists the PON ports of an OLT
func (c *ControlPlane) Ports(ctx context.Context, oltID string) types.Result[[]types.PortInfo] {
	p, err := c.registry.Olt(oltID)
	if err != nil {
		return types.Fail[[]types.PortInfo]("%v", err)
	}
	return c.olts.Ports(ctx, p)
}

// Onus lists the terminals of an OLT, optionally on one port
func (c *ControlPlane) Onus(ctx context.Context, oltID string, port *int) types.Result[[]types.OnuRecord] {
	p, err := c.registry.Olt(oltID)
	if err != nil {
		return types.Fail[[]types.OnuRecord]("%v", err)
	}
	return c.olts.Onus(ctx, p, port)
}

// OnuCounts returns terminal counts per port of an OLT
func (c *ControlPlane) OnuCounts(ctx context.Context, oltID string) types.Result[map[int]int] {
	p, err := c.registry.Olt(oltID)
	if err != nil {
		return types.Fail[map[int]int]("%v", err)
	}
	return c.olts.OnuCounts(ctx, p)
}

// Stats polls identity, ports and traffic counters of an OLT
func (c *ControlPlane) Stats(ctx context.Context, oltID string) types.Result[types.OltStats] {
	p, err := c.registry.Olt(oltID)
	if err != nil {
		return types.Fail[types.OltStats]("%v", err)
	}
	return c.olts.Stats(ctx, p)
}

// Sweep polls every configured OLT, in id order
func (c *ControlPlane) Sweep(ctx context.Context) []types.Result[types.OltStats] {
	return c.olts.Sweep(ctx, c.registry.Olts())
}

// Disconnect sends a Disconnect-Request. Secret and port default to the
// [radius] table when the request omits them.
func (c *ControlPlane) Disconnect(ctx context.Context, req types.CoaRequest) (types.CoaOutcome, error) {
	rad := c.registry.Radius()
	if req.Secret == "" {
		req.Secret = rad.Secret
	}
	if req.Port == 0 {
		req.Port = rad.CoAPort
	}
	return c.coa.Disconnect(ctx, req)
}

// Close stops the router workers and closes their connections
func (c *ControlPlane) Close() error {
	return c.routers.Close()
}
