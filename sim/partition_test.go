package sim

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanPartitions_CoversOutputExactly(t *testing.T) {
	tests := []struct {
		rows, cols          int
		numInput, numFilter int
	}{
		{rows: 8, cols: 4, numInput: 1, numFilter: 1},
		{rows: 8, cols: 4, numInput: 2, numFilter: 2},
		{rows: 7, cols: 5, numInput: 3, numFilter: 2},
		{rows: 3, cols: 9, numInput: 4, numFilter: 3},
		{rows: 1, cols: 1, numInput: 2, numFilter: 2},
	}
	for _, tc := range tests {
		t.Run(fmt.Sprintf("%dx%d_into_%dx%d", tc.rows, tc.cols, tc.numInput, tc.numFilter), func(t *testing.T) {
			parts := PlanPartitions(tc.rows, tc.cols, tc.numInput, tc.numFilter)
			require.Len(t, parts, tc.numInput*tc.numFilter)
			assert.NoError(t, CheckCoverage(parts, tc.rows, tc.cols))
		})
	}
}

func TestPlanPartitions_InputMajorOrder(t *testing.T) {
	parts := PlanPartitions(4, 4, 2, 2)

	assert.Equal(t, Partition{InputIndex: 0, FilterIndex: 0, RowStart: 0, RowEnd: 2, ColStart: 0, ColEnd: 2}, parts[0])
	assert.Equal(t, Partition{InputIndex: 0, FilterIndex: 1, RowStart: 0, RowEnd: 2, ColStart: 2, ColEnd: 4}, parts[1])
	assert.Equal(t, Partition{InputIndex: 1, FilterIndex: 0, RowStart: 2, RowEnd: 4, ColStart: 0, ColEnd: 2}, parts[2])
}

func TestPlanPartitions_TrailingPartitionsMayBeEmpty(t *testing.T) {
	// 1 row over 2 input partitions: the second partition has nothing.
	parts := PlanPartitions(1, 1, 2, 1)
	assert.False(t, parts[0].Empty())
	assert.True(t, parts[1].Empty())
}

func TestPlanPartitions_PanicsOnZeroCount(t *testing.T) {
	assert.PanicsWithValue(t,
		"PlanPartitions: partition counts must be >= 1, got 0x2",
		func() { PlanPartitions(4, 4, 0, 2) })
}

func TestCheckCoverage_DetectsOverlapAndGap(t *testing.T) {
	overlap := []Partition{
		{RowStart: 0, RowEnd: 2, ColStart: 0, ColEnd: 2},
		{RowStart: 1, RowEnd: 2, ColStart: 0, ColEnd: 2},
	}
	assert.ErrorContains(t, CheckCoverage(overlap, 2, 2), "covered by partitions 0 and 1")

	gap := []Partition{{RowStart: 0, RowEnd: 1, ColStart: 0, ColEnd: 2}}
	assert.ErrorContains(t, CheckCoverage(gap, 2, 2), "not covered")

	outside := []Partition{{RowStart: 0, RowEnd: 3, ColStart: 0, ColEnd: 2}}
	assert.ErrorContains(t, CheckCoverage(outside, 2, 2), "exceeds")
}

func TestStaticPartitionSource_Overrides(t *testing.T) {
	src := StaticPartitionSource{
		NumInput:  2,
		NumFilter: 1,
		Compute:   ComputeSpec{ArrayRows: 4, ArrayCols: 4, Dataflow: DataflowOutputStationary},
		Overrides: map[int]PartitionOverride{
			1: {NumFilter: 4, Dataflow: DataflowWeightStationary},
		},
	}

	in, f := src.LayerPartitions(0)
	assert.Equal(t, [2]int{2, 1}, [2]int{in, f})
	assert.Equal(t, DataflowOutputStationary, src.ComputeParams(0).Dataflow)

	in, f = src.LayerPartitions(1)
	assert.Equal(t, [2]int{2, 4}, [2]int{in, f}, "unset override fields keep the default")
	assert.Equal(t, DataflowWeightStationary, src.ComputeParams(1).Dataflow)
	assert.Equal(t, 4, src.ComputeParams(1).ArrayRows)
}

func TestStaticPartitionSource_ZeroValueIsSingleCore(t *testing.T) {
	in, f := StaticPartitionSource{}.LayerPartitions(3)
	assert.Equal(t, 1, in)
	assert.Equal(t, 1, f)
}
