package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorsCount(t *testing.T) {
	c := New()
	reg := prometheus.NewRegistry()
	require.NoError(t, c.Register(reg))

	c.RouterCommand("core-1", nil)
	c.RouterCommand("core-1", nil)
	c.RouterCommand("core-1", errors.New("boom"))
	c.RouterReconnect("core-1")
	c.SNMPRequest("onus", true)
	c.CoADisconnect("timed-out")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.RouterCommands.WithLabelValues("core-1", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.RouterCommands.WithLabelValues("core-1", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.RouterReconnects.WithLabelValues("core-1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.SNMPRequests.WithLabelValues("onus", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.CoADisconnects.WithLabelValues("timed-out")))
}

func TestDoubleRegisterFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, New().Register(reg))
	require.Error(t, New().Register(reg))
}

func TestNilCollectorsAreNoops(t *testing.T) {
	var c *Collectors
	assert.NotPanics(t, func() {
		c.RouterCommand("r", nil)
		c.RouterReconnect("r")
		c.SNMPRequest("op", false)
		c.CoADisconnect("acknowledged")
		_ = c.Register(prometheus.NewRegistry())
	})
}
