package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/nocsim/sim/internal/testutil"
)

func simdLayer(rows, cols, cores int) *LayerSim {
	return NewLayerSim(LayerConfig{
		LayerID:   0,
		Name:      "act",
		NumCores:  cores,
		Memory:    testMemoryConfig(),
		SIMD:      &SIMDSpec{Lanes: 2, Op: SIMDReLU},
		SIMDCores: cores,
	}, OperandSet{Ifmap: testutil.SeqMatrix(rows, cols, 0)}, testPartitions(1, 1), nil)
}

func TestLayerSim_SIMDSplitsRowsAcrossCores(t *testing.T) {
	// GIVEN a 5x3 operand on two cores with 2-lane vector units
	ls := simdLayer(5, 3, 2)

	// WHEN the element-wise layer runs
	rep, err := ls.Run()
	require.NoError(t, err)

	// THEN core 0 gets 3 rows, core 1 gets 2, each row taking two passes
	require.Len(t, rep.Cores, 2)
	assert.Equal(t, "simd", rep.Strategy)
	assert.Equal(t, int64(6), rep.Cores[0].TotalCycles)
	assert.Equal(t, int64(4), rep.Cores[1].TotalCycles)
	assert.Equal(t, int64(6), rep.CompletionTime)

	// AND the report is compute-only
	assert.Zero(t, rep.TotalStalls)
	assert.Zero(t, rep.Transfers)
	for _, c := range rep.Cores {
		assert.Zero(t, c.StallCycles)
		assert.Zero(t, c.IfmapDRAMReads)
		testutil.AssertFloat64Equal(t, "overall util", 75, c.OverallUtil, 1e-9)
		testutil.AssertFloat64Equal(t, "mapping efficiency", 75, c.MappingEfficiency, 1e-9)
	}
	testutil.AssertFloat64Equal(t, "mean util", 75, rep.MeanUtil, 1e-9)
	assert.Nil(t, ls.Memories())
}

func TestLayerSim_SIMDMoreCoresThanRows(t *testing.T) {
	rep, err := simdLayer(2, 2, 3).Run()
	require.NoError(t, err)

	require.Len(t, rep.Cores, 3)
	assert.Equal(t, int64(1), rep.Cores[0].TotalCycles)
	assert.Equal(t, int64(1), rep.Cores[1].TotalCycles)
	assert.Zero(t, rep.Cores[2].TotalCycles)
	assert.Zero(t, rep.Cores[2].OverallUtil)
	testutil.AssertFloat64Equal(t, "mean util over active cores", 100, rep.MeanUtil, 1e-9)
}

func TestLayerSim_SIMDErrors(t *testing.T) {
	ls := simdLayer(2, 2, 1)
	_, err := ls.RunSIMD(SIMDSpec{Lanes: 2, Op: SIMDReLU}, 0)
	assert.ErrorContains(t, err, "at least one core")

	_, err = ls.RunSIMD(SIMDSpec{Lanes: 2, Op: "gelu"}, 1)
	assert.ErrorContains(t, err, "gelu")
}

func TestIsValidSIMDOp(t *testing.T) {
	for _, op := range []string{"relu", "add", "mul", "max"} {
		assert.True(t, IsValidSIMDOp(op), op)
	}
	assert.False(t, IsValidSIMDOp(""))
	assert.False(t, IsValidSIMDOp("RELU"))
}
