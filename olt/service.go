// Package olt is the OLT inventory service: device identity, PON ports,
// subscriber terminals and traffic counters read over SNMP.
//
// Every public operation opens its own SNMP session, closes it before
// returning and reports failures in a types.Result instead of an error, so
// one unreachable device never aborts a polling loop over many.
package olt

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nanoncore/nano-ctlplane/drivers/snmp"
	"github.com/nanoncore/nano-ctlplane/logging"
	"github.com/nanoncore/nano-ctlplane/metrics"
	"github.com/nanoncore/nano-ctlplane/types"
	"github.com/nanoncore/nano-ctlplane/vendors/common"
)

// IF-MIB and SNMPv2-MIB OIDs
const (
	OIDSysDescr    = "1.3.6.1.2.1.1.1.0"
	OIDSysUpTime   = "1.3.6.1.2.1.1.3.0"
	OIDSysName     = "1.3.6.1.2.1.1.5.0"
	OIDSysLocation = "1.3.6.1.2.1.1.6.0"

	OIDIfDescr       = "1.3.6.1.2.1.2.2.1.2"
	OIDIfOperStatus  = "1.3.6.1.2.1.2.2.1.8"
	OIDIfInOctets    = "1.3.6.1.2.1.2.2.1.10"
	OIDIfOutOctets   = "1.3.6.1.2.1.2.2.1.16"
	OIDIfHCInOctets  = "1.3.6.1.2.1.31.1.1.1.6"
	OIDIfHCOutOctets = "1.3.6.1.2.1.31.1.1.1.10"
)

const (
	unknownText = "Unknown"
	notAvail    = "N/A"

	defaultSweepLimit = 8
)

// ponPattern matches PON-family interface names: gpon-olt_1/1/1, EPON0/1,
// xgspon 0/2/1, "PON 1".
var ponPattern = regexp.MustCompile(`(?i)pon`)

// Service polls OLTs. It holds no per-device state and is safe for
// concurrent use.
type Service struct {
	dial       snmp.Dialer
	log        logging.Logger
	metrics    *metrics.Collectors
	now        func() time.Time
	sweepLimit int
}

// Option configures a Service
type Option func(*Service)

// WithDialer replaces the SNMP dialer
func WithDialer(d snmp.Dialer) Option {
	return func(s *Service) { s.dial = d }
}

// WithLogger sets the logger
func WithLogger(l logging.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithMetrics sets the Prometheus collectors
func WithMetrics(m *metrics.Collectors) Option {
	return func(s *Service) { s.metrics = m }
}

// WithSweepLimit bounds how many OLTs Sweep polls at once
func WithSweepLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.sweepLimit = n
		}
	}
}

// New creates a Service
func New(opts ...Option) *Service {
	s := &Service{
		dial:       snmp.Dial,
		log:        logging.NewTestLogger(),
		now:        time.Now,
		sweepLimit: defaultSweepLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithComponent("olt")
	return s
}

// failed logs and counts a failed operation
func (s *Service) failed(op string, p types.OltProfile, err error) {
	s.metrics.SNMPRequest(op, false)
	s.log.Error().Err(err).Str("olt", p.ID).Str("host", p.Host).Str("op", op).Msg("SNMP request failed")
}

// DeviceInfo reads system identity and uptime. Missing fields are filled
// with placeholders.
func (s *Service) DeviceInfo(ctx context.Context, p types.OltProfile) types.Result[types.DeviceInfo] {
	const op = "device_info"

	sess, err := s.dial(ctx, p)
	if err != nil {
		s.failed(op, p, err)
		return types.Fail[types.DeviceInfo]("%s: %v", p.Host, err)
	}
	defer sess.Close()

	vals, err := snmp.GetScalars(sess, []string{OIDSysDescr, OIDSysUpTime, OIDSysName, OIDSysLocation})
	if err != nil {
		s.failed(op, p, err)
		return types.Fail[types.DeviceInfo]("%s: %v", p.Host, err)
	}

	info := types.DeviceInfo{
		Description: textOr(vals, OIDSysDescr, unknownText),
		Name:        textOr(vals, OIDSysName, unknownText),
		Location:    textOr(vals, OIDSysLocation, unknownText),
		Uptime:      notAvail,
	}
	if vb, ok := vals[OIDSysUpTime]; ok {
		if ticks, ok := common.ParseUint64SNMPValue(vb.Value); ok {
			info.UptimeParts = SplitUptime(uint32(ticks)) //nolint:gosec // TimeTicks is 32-bit on the wire
			info.Uptime = info.UptimeParts.String()
		}
	}

	s.metrics.SNMPRequest(op, true)
	return types.OK(info)
}

func textOr(vals map[string]snmp.Varbind, oid, def string) string {
	vb, ok := vals[oid]
	if !ok || vb.Text == "" {
		return def
	}
	return vb.Text
}

// SplitUptime converts sysUpTime centisecond ticks to days, hours and minutes
func SplitUptime(ticks uint32) types.Uptime {
	secs := ticks / 100
	return types.Uptime{
		Ticks:   ticks,
		Days:    int(secs / 86400),
		Hours:   int(secs % 86400 / 3600),
		Minutes: int(secs % 3600 / 60),
	}
}

// Ports lists PON line ports from ifDescr joined with ifOperStatus
func (s *Service) Ports(ctx context.Context, p types.OltProfile) types.Result[[]types.PortInfo] {
	const op = "ports"

	sess, err := s.dial(ctx, p)
	if err != nil {
		s.failed(op, p, err)
		return types.Fail[[]types.PortInfo]("%s: %v", p.Host, err)
	}
	defer sess.Close()

	ports, err := s.ports(sess, p)
	if err != nil {
		s.failed(op, p, err)
		return types.Fail[[]types.PortInfo]("%s: %v", p.Host, err)
	}

	s.metrics.SNMPRequest(op, true)
	return types.OK(ports)
}

func (s *Service) ports(sess snmp.Session, p types.OltProfile) ([]types.PortInfo, error) {
	descr, skipped, err := snmp.WalkSubtree(sess, OIDIfDescr)
	if err != nil {
		return nil, err
	}
	s.logSkipped(p, OIDIfDescr, skipped)

	status, skipped, err := snmp.WalkSubtree(sess, OIDIfOperStatus)
	if err != nil {
		return nil, err
	}
	s.logSkipped(p, OIDIfOperStatus, skipped)

	oper := make(map[int]int64, len(status))
	for _, vb := range status {
		arcs, ok := common.LastArcs(vb.Index, 1)
		if !ok {
			continue
		}
		if v, ok := common.ParseIntSNMPValue(vb.Value); ok {
			oper[arcs[0]] = v
		}
	}

	ports := make([]types.PortInfo, 0)
	for _, vb := range descr {
		if !ponPattern.MatchString(vb.Text) {
			continue
		}
		arcs, ok := common.LastArcs(vb.Index, 1)
		if !ok {
			continue
		}
		st := "down"
		if oper[arcs[0]] == 1 {
			st = "up"
		}
		ports = append(ports, types.PortInfo{Index: arcs[0], Name: vb.Text, Status: st})
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i].Index < ports[j].Index })
	return ports, nil
}

func (s *Service) logSkipped(p types.OltProfile, root string, skipped int) {
	if skipped == 0 {
		return
	}
	s.log.Warn().Str("olt", p.ID).Str("oid", root).Int("skipped", skipped).Msg("skipped varbinds during walk")
}

// Stats reads device info and ports concurrently, then traffic counters one
// port at a time. Embedded SNMP agents handle few concurrent requests.
func (s *Service) Stats(ctx context.Context, p types.OltProfile) types.Result[types.OltStats] {
	var (
		dev   types.Result[types.DeviceInfo]
		ports types.Result[[]types.PortInfo]
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		dev = s.DeviceInfo(gctx, p)
		if !dev.Success {
			return errors.New(dev.Message)
		}
		return nil
	})
	g.Go(func() error {
		ports = s.Ports(gctx, p)
		if !ports.Success {
			return errors.New(ports.Message)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return types.Fail[types.OltStats]("%v", err)
	}

	const op = "counters"
	sess, err := s.dial(ctx, p)
	if err != nil {
		s.failed(op, p, err)
		return types.Fail[types.OltStats]("%s: %v", p.Host, err)
	}
	defer sess.Close()

	stats := types.OltStats{
		Device:   dev.Data,
		Ports:    make([]types.PortTraffic, 0, len(ports.Data)),
		PolledAt: s.now(),
	}
	for _, port := range ports.Data {
		if err := ctx.Err(); err != nil {
			return types.Fail[types.OltStats]("%s: %v", p.Host, err)
		}
		stats.Ports = append(stats.Ports, s.portTraffic(sess, p, port))
		if port.Status == "up" {
			stats.PortsUp++
		} else {
			stats.PortsDown++
		}
	}

	s.metrics.SNMPRequest(op, true)
	return types.OK(stats)
}

// portTraffic reads the 64-bit counters, falling back to the 32-bit ones on
// agents without IF-MIB ifXTable.
func (s *Service) portTraffic(sess snmp.Session, p types.OltProfile, port types.PortInfo) types.PortTraffic {
	t := types.PortTraffic{Port: port}

	hcIn := fmt.Sprintf("%s.%d", OIDIfHCInOctets, port.Index)
	hcOut := fmt.Sprintf("%s.%d", OIDIfHCOutOctets, port.Index)
	vals, err := snmp.GetScalars(sess, []string{hcIn, hcOut})
	if err == nil {
		in, okIn := common.ParseUint64SNMPValue(vals[hcIn].Value)
		out, okOut := common.ParseUint64SNMPValue(vals[hcOut].Value)
		if okIn && okOut {
			t.InOctets, t.OutOctets, t.HighCapacity = in, out, true
			return t
		}
	}

	in32 := fmt.Sprintf("%s.%d", OIDIfInOctets, port.Index)
	out32 := fmt.Sprintf("%s.%d", OIDIfOutOctets, port.Index)
	vals, err = snmp.GetScalars(sess, []string{in32, out32})
	if err != nil {
		s.log.Warn().Err(err).Str("olt", p.ID).Int("port", port.Index).Msg("counter read failed")
		t.Error = err.Error()
		return t
	}
	t.InOctets, _ = common.ParseUint64SNMPValue(vals[in32].Value)
	t.OutOctets, _ = common.ParseUint64SNMPValue(vals[out32].Value)
	return t
}

// Sweep polls many OLTs concurrently. Results are in input order and one
// failing device only fails its own entry.
func (s *Service) Sweep(ctx context.Context, olts []types.OltProfile) []types.Result[types.OltStats] {
	results := make([]types.Result[types.OltStats], len(olts))

	var g errgroup.Group
	g.SetLimit(s.sweepLimit)
	for i, p := range olts {
		g.Go(func() error {
			results[i] = s.Stats(ctx, p)
			return nil
		})
	}
	_ = g.Wait()

	return results
}
