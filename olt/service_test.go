package olt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanoncore/nano-ctlplane/drivers/mock"
	"github.com/nanoncore/nano-ctlplane/drivers/snmp"
	"github.com/nanoncore/nano-ctlplane/types"
	"github.com/nanoncore/nano-ctlplane/vendors"
)

func profile(id string, vendor types.Vendor) types.OltProfile {
	return types.OltProfile{ID: id, Host: "10.10.0." + id, Community: "public", Version: types.SNMPv2c, Vendor: vendor}
}

func newService(o *mock.OLT) *Service {
	return New(WithDialer(o.Dial))
}

func assertSessionsClosed(t *testing.T, o *mock.OLT) {
	t.Helper()
	opened, closed := o.Sessions()
	assert.Equal(t, opened, closed, "every session must be closed")
}

func TestDeviceInfo(t *testing.T) {
	o := mock.NewOLT().
		Set(OIDSysDescr, gosnmp.OctetString, []byte("ZXA10 C320 V2.1")).
		Set(OIDSysName, gosnmp.OctetString, []byte("olt-north")).
		Set(OIDSysLocation, gosnmp.OctetString, []byte("POP 3")).
		Set(OIDSysUpTime, gosnmp.TimeTicks, uint32(9006000))

	res := newService(o).DeviceInfo(context.Background(), profile("1", types.VendorZTE))
	require.True(t, res.Success, res.Message)
	assert.Equal(t, "ZXA10 C320 V2.1", res.Data.Description)
	assert.Equal(t, "olt-north", res.Data.Name)
	assert.Equal(t, "POP 3", res.Data.Location)
	assert.Equal(t, "1d 1h 1m", res.Data.Uptime)
	assert.Equal(t, uint32(9006000), res.Data.UptimeParts.Ticks)
	assertSessionsClosed(t, o)

	gets := o.Gets()
	require.Len(t, gets, 1)
	assert.Len(t, gets[0], 4)
}

func TestDeviceInfoPlaceholders(t *testing.T) {
	o := mock.NewOLT().Set(OIDSysDescr, gosnmp.OctetString, []byte("FD1104S"))

	res := newService(o).DeviceInfo(context.Background(), profile("1", types.VendorCData))
	require.True(t, res.Success)
	assert.Equal(t, "FD1104S", res.Data.Description)
	assert.Equal(t, "Unknown", res.Data.Name)
	assert.Equal(t, "Unknown", res.Data.Location)
	assert.Equal(t, "N/A", res.Data.Uptime)
}

func TestDeviceInfoFailures(t *testing.T) {
	t.Run("dial", func(t *testing.T) {
		o := mock.NewOLT()
		o.FailDial(errors.New("no route to host"))

		res := newService(o).DeviceInfo(context.Background(), profile("1", types.VendorZTE))
		assert.False(t, res.Success)
		assert.Contains(t, res.Message, "10.10.0.1")
		assert.Contains(t, res.Message, "no route to host")
	})

	t.Run("get", func(t *testing.T) {
		o := mock.NewOLT()
		o.FailGet(errors.New("request timeout"))

		res := newService(o).DeviceInfo(context.Background(), profile("1", types.VendorZTE))
		assert.False(t, res.Success)
		assert.Contains(t, res.Message, "request timeout")
		assertSessionsClosed(t, o)
	})
}

func TestSplitUptime(t *testing.T) {
	tests := []struct {
		ticks uint32
		want  string
	}{
		{0, "0d 0h 0m"},
		{5999, "0d 0h 0m"},
		{6000, "0d 0h 1m"},
		{360000, "0d 1h 0m"},
		{8640000, "1d 0h 0m"},
		{4294967295, "497d 2h 27m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SplitUptime(tt.ticks).String(), "ticks %d", tt.ticks)
	}
}

func withPorts(o *mock.OLT) *mock.OLT {
	return o.
		Set(OIDIfDescr+".1", gosnmp.OctetString, []byte("gpon-olt_1/1/1")).
		Set(OIDIfDescr+".2", gosnmp.OctetString, []byte("eth0")).
		Set(OIDIfDescr+".10", gosnmp.OctetString, []byte("EPON0/2")).
		Set(OIDIfOperStatus+".1", gosnmp.Integer, 1).
		Set(OIDIfOperStatus+".2", gosnmp.Integer, 1).
		Set(OIDIfOperStatus+".10", gosnmp.Integer, 2)
}

func TestPorts(t *testing.T) {
	o := withPorts(mock.NewOLT())

	res := newService(o).Ports(context.Background(), profile("1", types.VendorZTE))
	require.True(t, res.Success, res.Message)
	assert.Equal(t, []types.PortInfo{
		{Index: 1, Name: "gpon-olt_1/1/1", Status: "up"},
		{Index: 10, Name: "EPON0/2", Status: "down"},
	}, res.Data)
	assertSessionsClosed(t, o)
}

func TestPortsEmpty(t *testing.T) {
	o := mock.NewOLT()

	res := newService(o).Ports(context.Background(), profile("1", types.VendorZTE))
	require.True(t, res.Success)
	assert.NotNil(t, res.Data)
	assert.Empty(t, res.Data)
}

func cdataOLT() *mock.OLT {
	return mock.NewOLT().
		Set(vendors.OIDCDataOnuStatus+".1.1.1", gosnmp.Integer, 1).
		Set(vendors.OIDCDataOnuStatus+".1.1.2", gosnmp.Integer, 3).
		Set(vendors.OIDCDataOnuStatus+".1.2.1", gosnmp.Integer, 2).
		Set(vendors.OIDCDataOnuRxPower+".1.1.1", gosnmp.Integer, -2350).
		Set(vendors.OIDCDataOnuDistance+".1.1.1", gosnmp.Integer, 1200)
}

func TestOnusCData(t *testing.T) {
	o := cdataOLT()

	res := newService(o).Onus(context.Background(), profile("1", types.VendorCData), nil)
	require.True(t, res.Success, res.Message)
	require.Len(t, res.Data, 3)

	first := res.Data[0]
	assert.Equal(t, 1, first.PortIndex)
	assert.Equal(t, 1, first.Index)
	assert.Equal(t, types.OnuOnline, first.Status)
	assert.Equal(t, "C-Data", first.Vendor)
	require.NotNil(t, first.RxPowerDBm)
	assert.InDelta(t, -23.5, *first.RxPowerDBm, 0.0001)
	require.NotNil(t, first.DistanceM)
	assert.Equal(t, 1200, *first.DistanceM)

	assert.Equal(t, types.OnuLOS, res.Data[1].Status)
	assert.Equal(t, 3, res.Data[1].RawStatus)
	assert.Nil(t, res.Data[1].RxPowerDBm)
	assert.Nil(t, res.Data[1].DistanceM)

	assert.Equal(t, 2, res.Data[2].PortIndex)
	assert.Equal(t, types.OnuOffline, res.Data[2].Status)
	assertSessionsClosed(t, o)
}

func TestOnusPortFilter(t *testing.T) {
	port := 2
	res := newService(cdataOLT()).Onus(context.Background(), profile("1", types.VendorCData), &port)
	require.True(t, res.Success)
	require.Len(t, res.Data, 1)
	assert.Equal(t, 2, res.Data[0].PortIndex)

	port = 9
	res = newService(cdataOLT()).Onus(context.Background(), profile("1", types.VendorCData), &port)
	require.True(t, res.Success)
	assert.Empty(t, res.Data)
}

func TestOnusUnsupportedVendor(t *testing.T) {
	for _, v := range []types.Vendor{types.VendorGeneric, types.Vendor("nokia")} {
		o := mock.NewOLT()
		res := newService(o).Onus(context.Background(), profile("1", v), nil)
		assert.True(t, res.Success, "vendor %s", v)
		assert.Empty(t, res.Data)

		opened, _ := o.Sessions()
		assert.Zero(t, opened, "no session for vendor %s", v)
	}
}

func TestOnusOpticalWalkFailure(t *testing.T) {
	o := cdataOLT()
	o.FailWalk(vendors.OIDCDataOnuRxPower, errors.New("request timeout"))

	res := newService(o).Onus(context.Background(), profile("1", types.VendorCData), nil)
	require.True(t, res.Success, res.Message)
	require.Len(t, res.Data, 3)
	assert.Nil(t, res.Data[0].RxPowerDBm)
	require.NotNil(t, res.Data[0].DistanceM)
}

func TestOnusStatusWalkFailure(t *testing.T) {
	o := cdataOLT()
	o.FailWalk(vendors.OIDCDataOnuStatus, errors.New("request timeout"))

	res := newService(o).Onus(context.Background(), profile("1", types.VendorCData), nil)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "request timeout")
	assertSessionsClosed(t, o)
}

func TestOnusZTEInvalidPower(t *testing.T) {
	o := mock.NewOLT().
		Set(vendors.OIDZTEOnuStatus+".268501248.1", gosnmp.Integer, 1).
		Set(vendors.OIDZTEOnuStatus+".268501248.2", gosnmp.Integer, 1).
		Set(vendors.OIDZTEOnuRxPower+".268501248.1", gosnmp.Integer, 7500).
		Set(vendors.OIDZTEOnuRxPower+".268501248.2", gosnmp.Integer, 65535)

	res := newService(o).Onus(context.Background(), profile("1", types.VendorZTE), nil)
	require.True(t, res.Success)
	require.Len(t, res.Data, 2)
	require.NotNil(t, res.Data[0].RxPowerDBm)
	assert.InDelta(t, -15.0, *res.Data[0].RxPowerDBm, 0.0001)
	assert.Nil(t, res.Data[1].RxPowerDBm)
}

func TestOnuCounts(t *testing.T) {
	t.Run("count table", func(t *testing.T) {
		o := mock.NewOLT().
			Set(vendors.OIDZTEOnuCount+".268501248", gosnmp.Integer, 12).
			Set(vendors.OIDZTEOnuCount+".268501504", gosnmp.Integer, 4)

		res := newService(o).OnuCounts(context.Background(), profile("1", types.VendorZTE))
		require.True(t, res.Success)
		assert.Equal(t, map[int]int{268501248: 12, 268501504: 4}, res.Data)
	})

	t.Run("derived from status", func(t *testing.T) {
		o := mock.NewOLT().
			Set(vendors.OIDFiberHomeOnuStatus+".16975616", gosnmp.Integer, 1).
			Set(vendors.OIDFiberHomeOnuStatus+".16975872", gosnmp.Integer, 2).
			Set(vendors.OIDFiberHomeOnuStatus+".17039616", gosnmp.Integer, 1)

		res := newService(o).OnuCounts(context.Background(), profile("1", types.VendorFiberHome))
		require.True(t, res.Success)
		assert.Equal(t, map[int]int{3: 2, 4: 1}, res.Data)
		assertSessionsClosed(t, o)
	})

	t.Run("unsupported", func(t *testing.T) {
		res := newService(mock.NewOLT()).OnuCounts(context.Background(), profile("1", types.VendorGeneric))
		require.True(t, res.Success)
		assert.Empty(t, res.Data)
	})
}

func statsOLT() *mock.OLT {
	return mock.NewOLT().
		Set(OIDSysDescr, gosnmp.OctetString, []byte("MA5608T")).
		Set(OIDSysUpTime, gosnmp.TimeTicks, uint32(360000)).
		Set(OIDIfDescr+".1", gosnmp.OctetString, []byte("GPON 0/1/0")).
		Set(OIDIfDescr+".2", gosnmp.OctetString, []byte("GPON 0/1/1")).
		Set(OIDIfOperStatus+".1", gosnmp.Integer, 1).
		Set(OIDIfOperStatus+".2", gosnmp.Integer, 2).
		Set(OIDIfHCInOctets+".1", gosnmp.Counter64, uint64(5000000000)).
		Set(OIDIfHCOutOctets+".1", gosnmp.Counter64, uint64(7)).
		Set(OIDIfInOctets+".2", gosnmp.Counter32, uint(100)).
		Set(OIDIfOutOctets+".2", gosnmp.Counter32, uint(200))
}

func TestStats(t *testing.T) {
	o := statsOLT()
	s := newService(o)
	polled := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return polled }

	res := s.Stats(context.Background(), profile("1", types.VendorHuawei))
	require.True(t, res.Success, res.Message)

	stats := res.Data
	assert.Equal(t, "MA5608T", stats.Device.Description)
	assert.Equal(t, "0d 1h 0m", stats.Device.Uptime)
	assert.Equal(t, polled, stats.PolledAt)
	assert.Equal(t, 1, stats.PortsUp)
	assert.Equal(t, 1, stats.PortsDown)

	require.Len(t, stats.Ports, 2)
	assert.True(t, stats.Ports[0].HighCapacity)
	assert.Equal(t, uint64(5000000000), stats.Ports[0].InOctets)
	assert.Equal(t, uint64(7), stats.Ports[0].OutOctets)

	assert.False(t, stats.Ports[1].HighCapacity)
	assert.Equal(t, uint64(100), stats.Ports[1].InOctets)
	assert.Equal(t, uint64(200), stats.Ports[1].OutOctets)
	assert.Empty(t, stats.Ports[1].Error)

	opened, closed := o.Sessions()
	assert.Equal(t, 3, opened)
	assert.Equal(t, 3, closed)
}

func TestStatsDeviceFailure(t *testing.T) {
	o := statsOLT()
	o.FailDial(errors.New("connection refused"))

	res := newService(o).Stats(context.Background(), profile("1", types.VendorHuawei))
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "connection refused")
}

func TestSweep(t *testing.T) {
	healthy := statsOLT()
	broken := mock.NewOLT()
	broken.FailDial(errors.New("no route to host"))

	byHost := map[string]*mock.OLT{
		"10.10.0.1": healthy,
		"10.10.0.2": broken,
		"10.10.0.3": statsOLT(),
	}
	dial := func(ctx context.Context, p types.OltProfile) (snmp.Session, error) {
		return byHost[p.Host].Dial(ctx, p)
	}

	s := New(WithDialer(dial), WithSweepLimit(2))
	results := s.Sweep(context.Background(), []types.OltProfile{
		profile("1", types.VendorHuawei),
		profile("2", types.VendorHuawei),
		profile("3", types.VendorHuawei),
	})

	require.Len(t, results, 3)
	assert.True(t, results[0].Success, results[0].Message)
	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Message, "no route to host")
	assert.True(t, results[2].Success, results[2].Message)
	assertSessionsClosed(t, healthy)
}
