// Package metrics holds the Prometheus collectors shared by the control plane.
// A nil *Collectors is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ctlplane"

// Collectors groups every counter exported by the control plane
type Collectors struct {
	RouterCommands   *prometheus.CounterVec
	RouterReconnects *prometheus.CounterVec
	SNMPRequests     *prometheus.CounterVec
	CoADisconnects   *prometheus.CounterVec
}

// New creates unregistered collectors
func New() *Collectors {
	return &Collectors{
		RouterCommands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "router_commands_total",
			Help:      "Router commands executed, by router and result.",
		}, []string{"router", "result"}),
		RouterReconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "router_reconnects_total",
			Help:      "Reconnects performed after a protocol desync.",
		}, []string{"router"}),
		SNMPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "olt_snmp_requests_total",
			Help:      "OLT inventory operations, by operation and result.",
		}, []string{"op", "result"}),
		CoADisconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coa_disconnects_total",
			Help:      "RADIUS Disconnect-Request exchanges, by outcome.",
		}, []string{"outcome"}),
	}
}

// Register adds all collectors to reg
func (c *Collectors) Register(reg prometheus.Registerer) error {
	if c == nil {
		return nil
	}
	for _, col := range []prometheus.Collector{c.RouterCommands, c.RouterReconnects, c.SNMPRequests, c.CoADisconnects} {
		if err := reg.Register(col); err != nil {
			return err
		}
	}
	return nil
}

// RouterCommand counts one finished command
func (c *Collectors) RouterCommand(router string, err error) {
	if c == nil {
		return
	}
	c.RouterCommands.WithLabelValues(router, resultLabel(err == nil)).Inc()
}

// RouterReconnect counts one desync reconnect
func (c *Collectors) RouterReconnect(router string) {
	if c == nil {
		return
	}
	c.RouterReconnects.WithLabelValues(router).Inc()
}

// SNMPRequest counts one inventory operation
func (c *Collectors) SNMPRequest(op string, ok bool) {
	if c == nil {
		return
	}
	c.SNMPRequests.WithLabelValues(op, resultLabel(ok)).Inc()
}

// CoADisconnect counts one disconnect outcome
func (c *Collectors) CoADisconnect(outcome string) {
	if c == nil {
		return
	}
	c.CoADisconnects.WithLabelValues(outcome).Inc()
}

func resultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
