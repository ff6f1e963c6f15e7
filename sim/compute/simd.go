package compute

import (
	"fmt"

	"github.com/inference-sim/nocsim/sim"
)

// Vector is a SIMD unit of Lanes lanes. Each operand row is processed in
// ceil(cols/Lanes) passes of one cycle each, whatever the op.
type Vector struct {
	Lanes int
	Op    sim.SIMDOp
}

// NewVector validates spec and returns the unit.
func NewVector(spec sim.SIMDSpec) (*Vector, error) {
	if spec.Lanes < 1 {
		return nil, fmt.Errorf("vector unit needs at least one lane, got %d", spec.Lanes)
	}
	if !sim.IsValidSIMDOp(string(spec.Op)) {
		return nil, fmt.Errorf("unknown element-wise op %q; valid options: relu, add, mul, max", spec.Op)
	}
	return &Vector{Lanes: spec.Lanes, Op: spec.Op}, nil
}

// Run applies the op to every non-idle entry of operand.
func (v *Vector) Run(operand sim.OperandMatrix) (sim.VectorResult, error) {
	res := sim.VectorResult{Units: int64(v.Lanes)}
	rows, cols := operand.Rows(), operand.Cols()
	if rows == 0 || cols == 0 {
		return res, nil
	}
	passes := ceilDiv(cols, v.Lanes)
	var mapped float64
	for p := range passes {
		used := min(cols-p*v.Lanes, v.Lanes)
		mapped += float64(used) / float64(v.Lanes)
	}
	res.Cycles = int64(rows * passes)
	res.Ops = operand.Accesses()
	res.MappingEfficiency = mapped / float64(passes)
	res.ComputeUtil = float64(res.Ops) / float64(res.Cycles*res.Units)
	return res, nil
}
