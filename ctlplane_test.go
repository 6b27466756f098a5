package ctlplane

import (
	"context"
	"errors"
	"net"
	"strconv"
	"testing"

	"github.com/gosnmp/gosnmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanoncore/nano-ctlplane/config"
	"github.com/nanoncore/nano-ctlplane/drivers/mock"
	"github.com/nanoncore/nano-ctlplane/logging"
	"github.com/nanoncore/nano-ctlplane/olt"
	"github.com/nanoncore/nano-ctlplane/types"
)

const testConfig = `
[[routers]]
id = "lab-1"
host = "192.0.2.1"
username = "api"
protocol = "mock"

[[olts]]
id = "olt-1"
host = "192.0.2.10"
vendor = "cdata"

[radius]
secret = "testing123"
timeout = "150ms"
`

func newTestPlane(t *testing.T, o *mock.OLT, opts ...Option) *ControlPlane {
	t.Helper()
	f, err := config.Parse(testConfig)
	require.NoError(t, err)

	opts = append([]Option{WithLogger(logging.NewTestLogger()), WithOltDialer(o.Dial)}, opts...)
	cp, err := New(f, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cp.Close() })
	return cp
}

func TestNewRouterTransport(t *testing.T) {
	tests := []struct {
		protocol Protocol
		wantErr  bool
	}{
		{"", false},
		{ProtocolAPI, false},
		{ProtocolAPISSL, false},
		{ProtocolSSH, false},
		{ProtocolMock, false},
		{"telnet", true},
	}
	for _, tt := range tests {
		t.Run(string(tt.protocol), func(t *testing.T) {
			dial, err := NewRouterTransport(RouterProfile{ID: "r1", Host: "192.0.2.1", Username: "api", Protocol: tt.protocol})
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "unsupported protocol")
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, dial)
		})
	}
}

func TestTransportMatrix(t *testing.T) {
	caps, ok := GetTransportCapabilities(ProtocolAPISSL)
	require.True(t, ok)
	assert.Equal(t, 8729, caps.DefaultPort)
	assert.True(t, caps.TLS)

	caps, ok = GetTransportCapabilities(ProtocolSSH)
	require.True(t, ok)
	assert.Equal(t, 22, caps.DefaultPort)
	assert.True(t, caps.Interactive)

	assert.Len(t, GetSupportedProtocols(), 4)
}

func TestSubmitDefaultRouter(t *testing.T) {
	cp := newTestPlane(t, mock.NewOLT())

	rows, err := cp.Submit(context.Background(), "", "/system/identity/print")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "lab-1", rows[0]["name"])

	name, err := cp.Routers().Identity(context.Background(), "lab-1")
	require.NoError(t, err)
	assert.Equal(t, "lab-1", name)
}

func TestSubmitUnknownRouter(t *testing.T) {
	cp := newTestPlane(t, mock.NewOLT())

	_, err := cp.Submit(context.Background(), "nope", "/system/identity/print")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrProfileNotFound))
}

func TestInventoryDelegation(t *testing.T) {
	o := mock.NewOLT().
		Set(olt.OIDSysDescr, gosnmp.OctetString, []byte("FD1208S")).
		Set("1.3.6.1.4.1.17409.2.3.4.1.1.8.1.1.1", gosnmp.Integer, 3)
	cp := newTestPlane(t, o)
	ctx := context.Background()

	info := cp.DeviceInfo(ctx, "olt-1")
	require.True(t, info.Success, info.Message)
	assert.Equal(t, "FD1208S", info.Data.Description)

	onus := cp.Onus(ctx, "olt-1", nil)
	require.True(t, onus.Success, onus.Message)
	require.Len(t, onus.Data, 1)
	assert.Equal(t, types.OnuLOS, onus.Data[0].Status)

	missing := cp.Stats(ctx, "olt-9")
	assert.False(t, missing.Success)
	assert.Contains(t, missing.Message, "olt-9")

	results := cp.Sweep(ctx)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success, results[0].Message)
}

func TestDisconnectUsesRadiusDefaults(t *testing.T) {
	// a NAS that never answers: reaching the timeout proves the secret
	// and port were filled in
	nas, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer nas.Close()

	cp := newTestPlane(t, mock.NewOLT())
	addr := nas.LocalAddr().(*net.UDPAddr)

	out, err := cp.Disconnect(context.Background(), types.CoaRequest{
		Username:   "alice",
		NASAddress: net.JoinHostPort(addr.IP.String(), strconv.Itoa(addr.Port)),
	})
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeTimedOut, out.Kind)
}

func TestRegistererReceivesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	cp := newTestPlane(t, mock.NewOLT(), WithRegisterer(reg))

	_, err := cp.Submit(context.Background(), "", "/system/identity/print")
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "ctlplane_router_commands_total")
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}
