package noc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/nocsim/sim"
)

func newMesh(t *testing.T, w, h int) *Mesh {
	t.Helper()
	m := &Mesh{}
	require.NoError(t, m.Setup(sim.NetworkConfig{Width: w, Height: h, LinkBandwidth: 4, RouterLatency: 1, LinkLatency: 1}))
	return m
}

func deliver(t *testing.T, n sim.NoC) {
	t.Helper()
	require.NoError(t, n.DeliverAllTxns())
}

func latency(t *testing.T, n sim.NoC, id sim.TrackingID) int64 {
	t.Helper()
	lat, err := n.Latency(id)
	require.NoError(t, err)
	return lat
}

func TestMesh_StaticLatency(t *testing.T) {
	m := newMesh(t, 3, 3)

	// corner to corner: 4 hops of 2 cycles plus 16/4 serialization
	assert.Equal(t, int64(12), m.StaticLatency(0, 8, 16))
	assert.Equal(t, int64(3), m.StaticLatency(0, 1, 1), "partial flits round up")
	assert.Zero(t, m.StaticLatency(4, 4, 1024))
}

func TestMesh_RouteXY(t *testing.T) {
	m := newMesh(t, 3, 3)

	assert.Equal(t, []link{{0, 1}, {1, 4}}, m.routeXY(0, 4))
	assert.Equal(t, []link{{8, 7}, {7, 6}, {6, 3}, {3, 0}}, m.routeXY(8, 0))
	assert.Empty(t, m.routeXY(5, 5))
}

func TestMesh_SharedLinkContention(t *testing.T) {
	// GIVEN two 8-byte transfers from node 0 to node 2 posted at the same cycle
	m := newMesh(t, 3, 1)
	a := m.Post(0, 0, 2, 8)
	b := m.Post(0, 0, 2, 8)

	// WHEN delivered
	deliver(t, m)

	// THEN the first sees the uncontended latency and the second queues
	// behind it on every link
	assert.Equal(t, m.StaticLatency(0, 2, 8), latency(t, m, a))
	assert.Equal(t, int64(6), latency(t, m, a))
	assert.Equal(t, int64(8), latency(t, m, b))
}

func TestMesh_DisjointRoutesDoNotContend(t *testing.T) {
	m := newMesh(t, 2, 2)
	a := m.Post(0, 0, 1, 64)
	b := m.Post(0, 2, 3, 64)

	deliver(t, m)

	assert.Equal(t, m.StaticLatency(0, 1, 64), latency(t, m, a))
	assert.Equal(t, m.StaticLatency(2, 3, 64), latency(t, m, b))
}

func TestNetwork_InjectsInPostTimeOrder(t *testing.T) {
	// GIVEN a transfer posted later in program order but earlier in time
	m := newMesh(t, 3, 1)
	late := m.Post(1, 0, 2, 8)
	early := m.Post(0, 0, 2, 8)

	deliver(t, m)

	// THEN the earlier post claims the links first
	assert.Equal(t, int64(6), latency(t, m, early))
	assert.Equal(t, int64(7), latency(t, m, late))
}

func TestNetwork_EpochsStartWithFreeLinks(t *testing.T) {
	m := newMesh(t, 3, 1)
	m.Post(0, 0, 2, 400)
	deliver(t, m)

	id := m.Post(0, 0, 2, 8)
	deliver(t, m)

	assert.Equal(t, int64(6), latency(t, m, id))
}

func TestNetwork_LatencyErrors(t *testing.T) {
	m := newMesh(t, 2, 1)
	id := m.Post(0, 0, 1, 4)

	_, err := m.Latency(id)
	assert.ErrorIs(t, err, sim.ErrNotDelivered)

	_, err = m.Latency(42)
	assert.ErrorIs(t, err, sim.ErrUnknownTransaction)

	deliver(t, m)
	assert.Equal(t, int64(3), latency(t, m, id))
}

func TestNetwork_SelfTransferIsFree(t *testing.T) {
	m := newMesh(t, 2, 2)
	id := m.Post(5, 3, 3, 4096)
	deliver(t, m)
	assert.Zero(t, latency(t, m, id))
}

func TestNetwork_OutOfRangeNodePanics(t *testing.T) {
	m := newMesh(t, 3, 3)
	assert.PanicsWithValue(t, "mesh NoC: node 9 out of range [0,9)", func() { m.Post(0, 0, 9, 1) })
	assert.PanicsWithValue(t, "mesh NoC: node -1 out of range [0,9)", func() { m.StaticLatency(-1, 0, 1) })
}

func TestSetup_Errors(t *testing.T) {
	tests := []struct {
		name string
		noc  sim.NoC
		cfg  sim.NetworkConfig
		want string
	}{
		{"mesh without width", &Mesh{}, sim.NetworkConfig{Height: 2, LinkBandwidth: 1}, "width and height"},
		{"zero bandwidth", &Mesh{}, sim.NetworkConfig{Width: 2, Height: 2}, "link bandwidth"},
		{"negative latency", &Ring{}, sim.NetworkConfig{Nodes: 4, LinkBandwidth: 1, RouterLatency: -1}, "latency"},
		{"empty ring", &Ring{}, sim.NetworkConfig{LinkBandwidth: 1}, "node count"},
		{"empty crossbar", &Ideal{}, sim.NetworkConfig{LinkBandwidth: 1}, "node count"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.noc.Setup(tc.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestRegister_AllTopologies(t *testing.T) {
	cfg := sim.NetworkConfig{Width: 2, Height: 2, Nodes: 4, LinkBandwidth: 8, RouterLatency: 1, LinkLatency: 1}
	for _, name := range []string{"mesh", "ring", "ideal"} {
		cfg.Topology = name
		n, err := sim.NewNoC(cfg)
		require.NoError(t, err, name)
		assert.Equal(t, int64(3), n.StaticLatency(0, 1, 8), name)
	}
}
