package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNoC_RegisteredTopologies(t *testing.T) {
	// sim/noc registers its topologies via register_import_test.go
	names := RegisteredTopologies()
	assert.Subset(t, names, []string{"ideal", "mesh", "ring"})
	assert.IsNonDecreasing(t, names)

	n, err := NewNoC(NetworkConfig{Topology: "mesh", Width: 2, Height: 2, LinkBandwidth: 8, RouterLatency: 1, LinkLatency: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n.StaticLatency(1, 1, 64))
}

func TestNewNoC_UnknownTopology(t *testing.T) {
	_, err := NewNoC(NetworkConfig{Topology: "torus"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown NoC topology "torus"`)
	assert.Contains(t, err.Error(), "mesh")
}

func TestNewNoC_SetupErrorIsWrapped(t *testing.T) {
	_, err := NewNoC(NetworkConfig{Topology: "mesh", Width: 0, Height: 2, LinkBandwidth: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup mesh NoC")
}

func TestRegisterNoC_DuplicatePanics(t *testing.T) {
	RegisterNoC("stub-dup", func() NoC { return &stubNoC{} })
	assert.PanicsWithValue(t,
		`RegisterNoC: topology "stub-dup" registered twice`,
		func() { RegisterNoC("stub-dup", func() NoC { return &stubNoC{} }) })
}

func TestNetworkConfig_NumNodes(t *testing.T) {
	assert.Equal(t, 12, NetworkConfig{Topology: "mesh", Width: 4, Height: 3, Nodes: 99}.NumNodes())
	assert.Equal(t, 5, NetworkConfig{Nodes: 5}.NumNodes())
	// width and height belong to the mesh only
	assert.Equal(t, 8, NetworkConfig{Topology: "ring", Width: 4, Height: 4, Nodes: 8}.NumNodes())
	assert.Equal(t, 6, NetworkConfig{Topology: "ideal", Width: 4, Height: 4, Nodes: 6}.NumNodes())
}

func TestCycleWindow_Extend(t *testing.T) {
	w := EmptyWindow()
	assert.True(t, w.Empty())

	w = w.Extend(5, 7)
	assert.Equal(t, CycleWindow{Start: 5, Stop: 7}, w)
	w = w.Extend(2, 3)
	assert.Equal(t, CycleWindow{Start: 2, Stop: 7}, w)
	assert.Equal(t, w, w.Extend(9, 8), "inverted ranges are ignored")
}

func TestParseBandwidthMode(t *testing.T) {
	m, err := ParseBandwidthMode("")
	require.NoError(t, err)
	assert.Equal(t, BandwidthEstimate, m)

	m, err = ParseBandwidthMode("USER")
	require.NoError(t, err)
	assert.Equal(t, BandwidthUser, m)

	_, err = ParseBandwidthMode("FAST")
	assert.Error(t, err)
}

func TestMemoryConfig_Validate(t *testing.T) {
	require.NoError(t, testMemoryConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*MemoryConfig)
	}{
		{"zero buffer", func(c *MemoryConfig) { c.FilterBufBytes = 0 }},
		{"zero word", func(c *MemoryConfig) { c.WordBytes = 0 }},
		{"zero bandwidth", func(c *MemoryConfig) { c.OfmapBandwidth = 0 }},
		{"bad mode", func(c *MemoryConfig) { c.BandwidthMode = "FAST" }},
		{"read fraction", func(c *MemoryConfig) { c.ReadActiveFraction = 1.5 }},
		{"write fraction", func(c *MemoryConfig) { c.WriteActiveFraction = 0 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testMemoryConfig()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
