package sim

import "fmt"

// SIMDOp names an element-wise operation run on a vector unit.
type SIMDOp string

const (
	SIMDReLU SIMDOp = "relu"
	SIMDAdd  SIMDOp = "add"
	SIMDMul  SIMDOp = "mul"
	SIMDMax  SIMDOp = "max"
)

var validSIMDOps = map[SIMDOp]bool{
	SIMDReLU: true,
	SIMDAdd:  true,
	SIMDMul:  true,
	SIMDMax:  true,
}

// IsValidSIMDOp returns true if name is a recognized element-wise op.
func IsValidSIMDOp(name string) bool {
	return validSIMDOps[SIMDOp(name)]
}

// SIMDSpec describes the vector unit instantiated on every core of an
// element-wise layer.
type SIMDSpec struct {
	Lanes int
	Op    SIMDOp
}

// VectorResult is one core's compute-only outcome for an element-wise pass.
type VectorResult struct {
	Cycles            int64
	Ops               int64   // elements processed
	Units             int64   // lanes in the unit
	MappingEfficiency float64 // average fraction of lanes mapped per pass, in [0,1]
	ComputeUtil       float64 // fraction of lane-cycles busy, in [0,1]
}

// VectorUnit applies an element-wise op to every entry of an operand.
type VectorUnit interface {
	Run(operand OperandMatrix) (VectorResult, error)
}

// NewVectorUnitFunc builds a VectorUnit. It is set by sim/compute's init().
var NewVectorUnitFunc func(spec SIMDSpec) (VectorUnit, error)

// NewSIMDCoreReport reports a compute-only core. Element-wise layers do not
// model the memory hierarchy, so stalls and memory counters stay zero.
func NewSIMDCoreReport(coreID int, res VectorResult) CoreReport {
	r := CoreReport{
		CoreID:            coreID,
		TotalCycles:       res.Cycles,
		MappingEfficiency: res.MappingEfficiency * 100,
		ComputeUtil:       res.ComputeUtil * 100,
		IfmapSRAMWindow:   EmptyWindow(),
		FilterSRAMWindow:  EmptyWindow(),
		OfmapSRAMWindow:   EmptyWindow(),
		IfmapDRAMWindow:   EmptyWindow(),
		FilterDRAMWindow:  EmptyWindow(),
		OfmapDRAMWindow:   EmptyWindow(),
	}
	if res.Cycles > 0 && res.Units > 0 {
		r.OverallUtil = float64(res.Ops*100) / float64(res.Cycles*res.Units)
	}
	return r
}

// RunSIMD splits the layer's ifmap rows across numCores cores and runs the
// element-wise op on each share. Shares use ceil(rows/numCores) rows; trailing
// cores may receive none.
func (l *LayerSim) RunSIMD(spec SIMDSpec, numCores int) (*LayerReport, error) {
	if numCores < 1 {
		return nil, fmt.Errorf("layer %d: element-wise layer needs at least one core, got %d", l.cfg.LayerID, numCores)
	}
	if NewVectorUnitFunc == nil {
		return nil, fmt.Errorf("layer %d: no vector unit registered (import sim/compute)", l.cfg.LayerID)
	}
	unit, err := NewVectorUnitFunc(spec)
	if err != nil {
		return nil, fmt.Errorf("layer %d: %w", l.cfg.LayerID, err)
	}

	operand := l.operands.Ifmap
	parts := PlanPartitions(operand.Rows(), operand.Cols(), numCores, 1)
	rep := &LayerReport{
		LayerID:  l.cfg.LayerID,
		Name:     l.cfg.Name,
		Strategy: "simd",
		Cores:    make([]CoreReport, len(parts)),
	}
	utils := make([]float64, 0, len(parts))
	for i, p := range parts {
		var share OperandMatrix
		if !p.Empty() {
			share = operand.Slice(p.RowStart, p.RowEnd)
		}
		res, err := unit.Run(share)
		if err != nil {
			return nil, fmt.Errorf("layer %d core %d: %w", l.cfg.LayerID, l.cfg.FirstCore+i, err)
		}
		cr := NewSIMDCoreReport(l.cfg.FirstCore+i, res)
		rep.Cores[i] = cr
		rep.CompletionTime = max(rep.CompletionTime, cr.TotalCycles)
		if cr.TotalCycles > 0 {
			utils = append(utils, cr.OverallUtil)
		}
	}
	summarizeUtil(rep, utils)
	l.computeDone = true
	return rep, nil
}
