package sim

import "fmt"

// Partition assigns a contiguous ifmap row range and filter column range to
// one ComputeNode. Ranges are half-open.
type Partition struct {
	InputIndex  int // index along the ifmap-row split
	FilterIndex int // index along the filter-column split
	RowStart    int
	RowEnd      int
	ColStart    int
	ColEnd      int
}

// Empty reports whether the partition covers no output elements.
func (p Partition) Empty() bool {
	return p.RowEnd <= p.RowStart || p.ColEnd <= p.ColStart
}

// PlanPartitions splits a rows×cols output space into numInput×numFilter
// partitions in input-major order. Each split uses ceil(n/parts) elements per
// partition; trailing partitions are clamped at the bounds and may be empty.
// Panics if either partition count is < 1.
func PlanPartitions(rows, cols, numInput, numFilter int) []Partition {
	if numInput < 1 || numFilter < 1 {
		panic(fmt.Sprintf("PlanPartitions: partition counts must be >= 1, got %dx%d", numInput, numFilter))
	}
	rowsPerPart := ceilDiv(rows, numInput)
	colsPerPart := ceilDiv(cols, numFilter)

	parts := make([]Partition, 0, numInput*numFilter)
	for in := 0; in < numInput; in++ {
		rowStart := min(in*rowsPerPart, rows)
		rowEnd := min(rowStart+rowsPerPart, rows)
		for f := 0; f < numFilter; f++ {
			colStart := min(f*colsPerPart, cols)
			colEnd := min(colStart+colsPerPart, cols)
			parts = append(parts, Partition{
				InputIndex:  in,
				FilterIndex: f,
				RowStart:    rowStart,
				RowEnd:      rowEnd,
				ColStart:    colStart,
				ColEnd:      colEnd,
			})
		}
	}
	return parts
}

// CheckCoverage verifies that the partitions tile the rows×cols output space
// exactly: every element is owned by one partition, none twice.
func CheckCoverage(parts []Partition, rows, cols int) error {
	if rows == 0 || cols == 0 {
		return nil
	}
	owner := make([]int, rows*cols)
	for i := range owner {
		owner[i] = -1
	}
	for idx, p := range parts {
		if p.RowStart < 0 || p.ColStart < 0 || p.RowEnd > rows || p.ColEnd > cols {
			return fmt.Errorf("partition %d [%d,%d)x[%d,%d) exceeds %dx%d", idx, p.RowStart, p.RowEnd, p.ColStart, p.ColEnd, rows, cols)
		}
		for r := p.RowStart; r < p.RowEnd; r++ {
			for c := p.ColStart; c < p.ColEnd; c++ {
				if prev := owner[r*cols+c]; prev >= 0 {
					return fmt.Errorf("element (%d,%d) covered by partitions %d and %d", r, c, prev, idx)
				}
				owner[r*cols+c] = idx
			}
		}
	}
	for i, o := range owner {
		if o < 0 {
			return fmt.Errorf("element (%d,%d) not covered by any partition", i/cols, i%cols)
		}
	}
	return nil
}

// PartitionSource supplies per-layer partition counts and compute parameters.
type PartitionSource interface {
	// LayerPartitions returns the ifmap-row and filter-column split counts.
	LayerPartitions(layerID int) (numInput, numFilter int)
	// ComputeParams returns the compute-unit kind and dataflow for the layer.
	ComputeParams(layerID int) ComputeSpec
}

// PartitionOverride replaces the default partitioning for one layer.
// Zero-valued fields fall back to the defaults.
type PartitionOverride struct {
	NumInput  int
	NumFilter int
	Dataflow  Dataflow
}

// StaticPartitionSource returns the same split for every layer except those
// listed in Overrides.
type StaticPartitionSource struct {
	NumInput  int
	NumFilter int
	Compute   ComputeSpec
	Overrides map[int]PartitionOverride
}

func (s StaticPartitionSource) LayerPartitions(layerID int) (int, int) {
	numInput, numFilter := max(s.NumInput, 1), max(s.NumFilter, 1)
	if o, ok := s.Overrides[layerID]; ok {
		if o.NumInput > 0 {
			numInput = o.NumInput
		}
		if o.NumFilter > 0 {
			numFilter = o.NumFilter
		}
	}
	return numInput, numFilter
}

func (s StaticPartitionSource) ComputeParams(layerID int) ComputeSpec {
	spec := s.Compute
	if o, ok := s.Overrides[layerID]; ok && o.Dataflow != "" {
		spec.Dataflow = o.Dataflow
	}
	return spec
}
