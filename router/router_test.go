package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	ros "github.com/go-routeros/routeros/v3"
	"github.com/go-routeros/routeros/v3/proto"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/nanoncore/nano-ctlplane/drivers/mock"
	"github.com/nanoncore/nano-ctlplane/drivers/routeros"
	"github.com/nanoncore/nano-ctlplane/metrics"
	"github.com/nanoncore/nano-ctlplane/registry"
	"github.com/nanoncore/nano-ctlplane/types"
)

func testRegistry(t *testing.T, routers ...types.RouterProfile) *registry.Registry {
	t.Helper()
	reg, err := registry.New(routers, nil)
	require.NoError(t, err)
	return reg
}

func profile(id string) types.RouterProfile {
	return types.RouterProfile{ID: id, Host: "10.0.0.1", Username: "api", Protocol: types.ProtocolMock}
}

// simulated returns a transport with one simulated router per id
func simulated(routers map[string]*mock.Router) Transport {
	return func(p types.RouterProfile) (routeros.Dialer, error) {
		r, ok := routers[p.ID]
		if !ok {
			return nil, fmt.Errorf("no simulated router %q", p.ID)
		}
		return r.Dial, nil
	}
}

// sequence returns a transport handing out conns in order
func sequence(dials *int32, conns ...routeros.Conn) Transport {
	return func(types.RouterProfile) (routeros.Dialer, error) {
		return func(context.Context, types.RouterProfile) (routeros.Conn, error) {
			n := int(atomic.AddInt32(dials, 1))
			if n > len(conns) {
				return nil, errors.New("unexpected dial")
			}
			return conns[n-1], nil
		}, nil
	}
}

func TestSubmitFIFOOrder(t *testing.T) {
	sim := mock.NewRouter("core-1")
	sim.SetDelay(time.Millisecond)
	ch := NewChannel(testRegistry(t, profile("core-1")), NewPool(simulated(map[string]*mock.Router{"core-1": sim})))
	defer ch.Close()

	ctx := context.Background()
	const n = 20
	pending := make([]*Pending, 0, n)
	want := make([]string, 0, n)
	for i := 0; i < n; i++ {
		p, err := ch.Enqueue(ctx, "core-1", "/queue/simple/print", routeros.Query("name", fmt.Sprintf("q%d", i)))
		require.NoError(t, err)
		pending = append(pending, p)
		want = append(want, fmt.Sprintf("/queue/simple/print ?name=q%d", i))
	}

	var wg sync.WaitGroup
	for _, p := range pending {
		wg.Add(1)
		go func(p *Pending) {
			defer wg.Done()
			_, err := p.Wait(ctx)
			assert.NoError(t, err)
		}(p)
	}
	wg.Wait()

	assert.Equal(t, want, sim.GetCommandHistory())
	assert.Equal(t, 1, sim.MaxInflight())
	assert.Equal(t, 1, sim.Dials())
}

func TestConcurrentSubmitsNeverOverlap(t *testing.T) {
	sims := map[string]*mock.Router{"a": mock.NewRouter("a"), "b": mock.NewRouter("b")}
	for _, s := range sims {
		s.SetDelay(time.Millisecond)
	}
	ch := NewChannel(testRegistry(t, profile("a"), profile("b")), NewPool(simulated(sims)))
	defer ch.Close()

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		id := "a"
		if i%2 == 1 {
			id = "b"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			name, err := ch.Identity(context.Background(), id)
			assert.NoError(t, err)
			assert.Equal(t, id, name)
		}()
	}
	wg.Wait()

	for id, s := range sims {
		assert.Equal(t, 1, s.MaxInflight(), id)
		assert.Len(t, s.GetCommandHistory(), 15, id)
	}
}

func TestDesyncRetriedOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	first := routeros.NewMockConn(ctrl)
	second := routeros.NewMockConn(ctrl)

	sentence := []string{"/ppp/active/print"}
	gomock.InOrder(
		first.EXPECT().Run(sentence).Return(nil, fmt.Errorf("%w: unregistered tag", routeros.ErrDesync)),
		first.EXPECT().Close().Return(nil),
		second.EXPECT().Run(sentence).Return([]map[string]string{{"name": "alice"}}, nil),
		second.EXPECT().Close().Return(nil),
	)

	var dials int32
	m := metrics.New()
	ch := NewChannel(testRegistry(t, profile("core-1")), NewPool(sequence(&dials, first, second), WithMetrics(m)))

	rows, err := ch.Submit(context.Background(), "core-1", "/ppp/active/print")
	require.NoError(t, err)
	assert.Equal(t, []map[string]string{{"name": "alice"}}, rows)
	assert.EqualValues(t, 2, atomic.LoadInt32(&dials))

	require.NoError(t, ch.Close())
}

func TestDesyncSecondFailureSurfaced(t *testing.T) {
	ctrl := gomock.NewController(t)
	first := routeros.NewMockConn(ctrl)
	second := routeros.NewMockConn(ctrl)

	secondErr := fmt.Errorf("%w: unknown reply tag", routeros.ErrDesync)
	first.EXPECT().Run(gomock.Any()).Return(nil, routeros.ErrDesync)
	first.EXPECT().Close().Return(nil)
	second.EXPECT().Run(gomock.Any()).Return(nil, secondErr)
	second.EXPECT().Close().Return(nil)

	var dials int32
	ch := NewChannel(testRegistry(t, profile("core-1")), NewPool(sequence(&dials, first, second)))
	defer ch.Close()

	_, err := ch.Submit(context.Background(), "", "/system/resource/print")
	require.ErrorIs(t, err, routeros.ErrDesync)
	assert.Same(t, secondErr, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&dials))
}

func TestTrapKeepsConnection(t *testing.T) {
	sim := mock.NewRouter("core-1")
	ch := NewChannel(testRegistry(t, profile("core-1")), NewPool(simulated(map[string]*mock.Router{"core-1": sim})))
	defer ch.Close()
	ctx := context.Background()

	_, err := ch.Submit(ctx, "core-1", "/ppp/secret/remove", routeros.ID("*99"))
	var trap *routeros.TrapError
	require.ErrorAs(t, err, &trap)
	assert.Equal(t, routeros.TrapNoSuchItem, trap.Code)

	_, err = ch.Submit(ctx, "core-1", "/system/identity/print")
	require.NoError(t, err)
	assert.Equal(t, 1, sim.Dials())
}

func TestFatalReplyDropsConnection(t *testing.T) {
	ctrl := gomock.NewController(t)
	first := routeros.NewMockConn(ctrl)
	second := routeros.NewMockConn(ctrl)

	fatal := &ros.DeviceError{Sentence: &proto.Sentence{
		Word: "!fatal",
		Map:  map[string]string{"message": "session terminated on request"},
	}}
	gomock.InOrder(
		first.EXPECT().Run(gomock.Any()).Return(nil, fatal),
		first.EXPECT().Close().Return(nil),
		second.EXPECT().Run(gomock.Any()).Return([]map[string]string{{"name": "core-1"}}, nil),
		second.EXPECT().Close().Return(nil),
	)

	var dials int32
	m := metrics.New()
	ch := NewChannel(testRegistry(t, profile("core-1")), NewPool(sequence(&dials, first, second), WithMetrics(m)))
	ctx := context.Background()

	_, err := ch.Submit(ctx, "", "/system/identity/print")
	require.ErrorIs(t, err, types.ErrConnection)
	assert.EqualValues(t, 1, atomic.LoadInt32(&dials))

	name, err := ch.Identity(ctx, "core-1")
	require.NoError(t, err)
	assert.Equal(t, "core-1", name)
	assert.EqualValues(t, 2, atomic.LoadInt32(&dials))
	assert.Zero(t, testutil.ToFloat64(m.RouterReconnects.WithLabelValues("core-1")))

	require.NoError(t, ch.Close())
}

func TestTransportErrorDropsConnectionWithoutRetry(t *testing.T) {
	sim := mock.NewRouter("core-1")
	ch := NewChannel(testRegistry(t, profile("core-1")), NewPool(simulated(map[string]*mock.Router{"core-1": sim})))
	defer ch.Close()
	ctx := context.Background()

	sim.FailNextRuns(errors.New("write: no route to host"))
	_, err := ch.Submit(ctx, "core-1", "/system/identity/print")
	require.ErrorIs(t, err, types.ErrConnection)
	assert.Len(t, sim.GetCommandHistory(), 1)

	_, err = ch.Submit(ctx, "core-1", "/system/identity/print")
	require.NoError(t, err)
	assert.Equal(t, 2, sim.Dials())
}

func TestDialFailureIsConnectionError(t *testing.T) {
	sim := mock.NewRouter("core-1")
	sim.FailNextDials(errors.New("connection refused"))
	ch := NewChannel(testRegistry(t, profile("core-1")), NewPool(simulated(map[string]*mock.Router{"core-1": sim})))
	defer ch.Close()

	_, err := ch.Submit(context.Background(), "core-1", "/system/identity/print")
	require.ErrorIs(t, err, types.ErrConnection)
	assert.Empty(t, sim.GetCommandHistory())
}

func TestValidationBeforeIO(t *testing.T) {
	var transportCalls int32
	transport := func(types.RouterProfile) (routeros.Dialer, error) {
		atomic.AddInt32(&transportCalls, 1)
		return nil, errors.New("must not be called")
	}
	noUser := types.RouterProfile{ID: "edge", Host: "10.0.0.9"}
	ch := NewChannel(testRegistry(t, noUser), NewPool(transport))
	defer ch.Close()

	_, err := ch.Submit(context.Background(), "edge", "/system/identity/print")
	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "username", verr.Field)
	assert.Zero(t, atomic.LoadInt32(&transportCalls))
}

func TestMissingProfile(t *testing.T) {
	ch := NewChannel(testRegistry(t, profile("a"), profile("b")), NewPool(simulated(nil)))
	defer ch.Close()

	_, err := ch.Submit(context.Background(), "nope", "/system/identity/print")
	require.ErrorIs(t, err, types.ErrProfileNotFound)
	require.ErrorIs(t, err, types.ErrConnection)

	// two routers and none marked default
	_, err = ch.Submit(context.Background(), "", "/system/identity/print")
	require.ErrorIs(t, err, types.ErrProfileNotFound)
}

func TestCanceledBeforeExecution(t *testing.T) {
	sim := mock.NewRouter("core-1")
	ch := NewChannel(testRegistry(t, profile("core-1")), NewPool(simulated(map[string]*mock.Router{"core-1": sim})))
	defer ch.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ch.Submit(ctx, "core-1", "/system/identity/print")
	require.ErrorIs(t, err, context.Canceled)

	// a later command still runs and the canceled one never reached the router
	_, err = ch.Submit(context.Background(), "core-1", "/system/resource/print")
	require.NoError(t, err)
	assert.Equal(t, []string{"/system/resource/print"}, sim.GetCommandHistory())
}

func TestClosedPoolRejects(t *testing.T) {
	sim := mock.NewRouter("core-1")
	ch := NewChannel(testRegistry(t, profile("core-1")), NewPool(simulated(map[string]*mock.Router{"core-1": sim})))

	_, err := ch.Submit(context.Background(), "core-1", "/system/identity/print")
	require.NoError(t, err)
	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close())

	_, err = ch.Submit(context.Background(), "core-1", "/system/identity/print")
	require.ErrorIs(t, err, ErrPoolClosed)
}

func TestInvalidateForcesRedial(t *testing.T) {
	sim := mock.NewRouter("core-1")
	ch := NewChannel(testRegistry(t, profile("core-1")), NewPool(simulated(map[string]*mock.Router{"core-1": sim})))
	defer ch.Close()
	ctx := context.Background()

	_, err := ch.Submit(ctx, "core-1", "/system/identity/print")
	require.NoError(t, err)
	require.NoError(t, ch.Invalidate("core-1"))

	require.Eventually(t, func() bool {
		_, err := ch.Submit(ctx, "core-1", "/system/identity/print")
		return err == nil && sim.Dials() == 2
	}, time.Second, 10*time.Millisecond)
}

func TestPPPHelpers(t *testing.T) {
	sim := mock.NewRouter("core-1")
	sim.AddRow("/ppp/secret", map[string]string{"name": "alice", "profile": "10M", "disabled": "no"})
	sim.AddRow("/ppp/active", map[string]string{"name": "alice", "address": "100.64.0.2"})
	sim.AddRow("/ppp/active", map[string]string{"name": "alice", "address": "100.64.0.3"})
	sim.AddRow("/ppp/active", map[string]string{"name": "bob", "address": "100.64.0.4"})

	ch := NewChannel(testRegistry(t, profile("core-1")), NewPool(simulated(map[string]*mock.Router{"core-1": sim})))
	defer ch.Close()
	ctx := context.Background()

	active, err := ch.PPPActive(ctx, "", "alice")
	require.NoError(t, err)
	assert.Len(t, active, 2)

	kicked, err := ch.KickPPPActive(ctx, "", "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, kicked)
	remaining := sim.Rows("/ppp/active")
	require.Len(t, remaining, 1)
	assert.Equal(t, "bob", remaining[0]["name"])

	require.NoError(t, ch.SetPPPSecretDisabled(ctx, "", "alice", true))
	require.NoError(t, ch.SetPPPSecretProfile(ctx, "", "alice", "isolir"))
	secret := sim.Rows("/ppp/secret")[0]
	assert.Equal(t, "yes", secret["disabled"])
	assert.Equal(t, "isolir", secret["profile"])

	err = ch.SetPPPSecretDisabled(ctx, "", "carol", true)
	var trap *routeros.TrapError
	require.ErrorAs(t, err, &trap)
	assert.Equal(t, routeros.TrapNoSuchItem, trap.Code)

	name, err := ch.Identity(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "core-1", name)

	res, err := ch.Resource(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, res["version"], "7.14")
}
