package noc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/nocsim/sim"
)

func TestIdeal_SingleHopBetweenAnyPair(t *testing.T) {
	x := &Ideal{}
	require.NoError(t, x.Setup(sim.NetworkConfig{Nodes: 16, LinkBandwidth: 4, RouterLatency: 2, LinkLatency: 3}))

	assert.Equal(t, int64(7), x.StaticLatency(0, 15, 8))
	assert.Equal(t, x.StaticLatency(0, 1, 8), x.StaticLatency(3, 9, 8))
}

func TestIdeal_OnlySamePairContends(t *testing.T) {
	x := &Ideal{}
	require.NoError(t, x.Setup(sim.NetworkConfig{Nodes: 4, LinkBandwidth: 4, RouterLatency: 1, LinkLatency: 1}))
	a := x.Post(0, 0, 1, 8)
	b := x.Post(0, 2, 1, 8)
	c := x.Post(0, 0, 1, 8)

	deliver(t, x)

	assert.Equal(t, int64(4), latency(t, x, a))
	assert.Equal(t, int64(4), latency(t, x, b), "different source, own link")
	assert.Equal(t, int64(6), latency(t, x, c), "queues behind a")
}
