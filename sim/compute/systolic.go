// Package compute provides systolic-array implementations of sim.ComputeUnit
// and the SIMD sim.VectorUnit.
package compute

import (
	"fmt"

	"github.com/inference-sim/nocsim/sim"
)

// Systolic is a Rows×Cols array of processing elements. Its dataflow decides
// which operand is held stationary and therefore how operands are folded
// onto the array.
type Systolic struct {
	Rows     int
	Cols     int
	Dataflow sim.Dataflow
}

// NewSystolic validates spec and returns the matching array.
func NewSystolic(spec sim.ComputeSpec) (*Systolic, error) {
	if spec.ArrayRows < 1 || spec.ArrayCols < 1 {
		return nil, fmt.Errorf("systolic array must be at least 1x1, got %dx%d", spec.ArrayRows, spec.ArrayCols)
	}
	if !sim.IsValidDataflow(string(spec.Dataflow)) {
		return nil, fmt.Errorf("unknown dataflow %q; valid options: os, ws, is", spec.Dataflow)
	}
	return &Systolic{Rows: spec.ArrayRows, Cols: spec.ArrayCols, Dataflow: spec.Dataflow}, nil
}

// shape holds the GEMM dimensions of a partition: ifmap is Sr×T, filter is
// T×Sc and ofmap is Sr×Sc.
type shape struct {
	sr, t, sc int
}

func operandShape(ifmap, filter, ofmap sim.OperandMatrix) (shape, error) {
	s := shape{sr: ifmap.Rows(), t: ifmap.Cols(), sc: filter.Cols()}
	if s.sr == 0 || s.t == 0 || s.sc == 0 {
		return shape{}, nil
	}
	if filter.Rows() != s.t {
		return shape{}, fmt.Errorf("filter has %d rows, ifmap has %d columns", filter.Rows(), s.t)
	}
	if ofmap.Rows() != s.sr || ofmap.Cols() != s.sc {
		return shape{}, fmt.Errorf("ofmap is %dx%d, expected %dx%d", ofmap.Rows(), ofmap.Cols(), s.sr, s.sc)
	}
	return s, nil
}

func (s shape) empty() bool { return s.sr == 0 || s.t == 0 || s.sc == 0 }

// CalcDemand folds the operands onto the array. Each fold becomes one tile
// of the demand matrices.
func (a *Systolic) CalcDemand(ifmap, filter, ofmap sim.OperandMatrix) (sim.DemandSet, error) {
	s, err := operandShape(ifmap, filter, ofmap)
	if err != nil {
		return sim.DemandSet{}, err
	}
	units := int64(a.Rows * a.Cols)
	if s.empty() {
		return sim.DemandSet{Units: units}, nil
	}

	var f folder
	switch a.Dataflow {
	case sim.DataflowOutputStationary:
		f = &outputStationary{a: a, s: s}
	case sim.DataflowWeightStationary:
		f = &weightStationary{a: a, s: s}
	case sim.DataflowInputStationary:
		f = &inputStationary{a: a, s: s}
	default:
		return sim.DemandSet{}, fmt.Errorf("unknown dataflow %q", a.Dataflow)
	}

	d := &demandBuilder{ifmap: ifmap, filter: filter, ofmap: ofmap}
	outer, inner := f.folds()
	var mapping, util float64
	for i := range outer {
		for j := range inner {
			used, busy, total := f.emit(d, i, j)
			me := float64(used) / float64(units)
			mapping += me
			util += me * float64(busy) / float64(total)
		}
	}
	n := outer * inner
	return sim.DemandSet{
		Ifmap:             d.outIfmap,
		Filter:            d.outFilter,
		Ofmap:             d.outOfmap,
		TilesIfmap:        n,
		TilesFilter:       n,
		MACs:              int64(s.sr) * int64(s.t) * int64(s.sc),
		Units:             units,
		MappingEfficiency: mapping / float64(n),
		ComputeUtil:       util / float64(n),
	}, nil
}

// folder emits the demand rows of one dataflow.
type folder interface {
	folds() (outer, inner int)
	// emit appends fold (i, j) and returns the PEs it maps, the rows that
	// perform MACs and the total rows of the fold.
	emit(d *demandBuilder, i, j int) (used, busy, total int)
}

// demandBuilder reads operand addresses and appends demand rows.
type demandBuilder struct {
	ifmap, filter, ofmap          sim.OperandMatrix
	outIfmap, outFilter, outOfmap sim.DemandMatrix
}

// row appends one cycle of demand. Any of the lane slices may be nil to
// leave that operand idle, in which case width lanes of NoAccess are used.
func (d *demandBuilder) row(ifmap []int64, ifmapWidth int, filter []int64, filterWidth int, ofmap []int64, ofmapWidth int) {
	d.outIfmap = append(d.outIfmap, lanes(ifmap, ifmapWidth))
	d.outFilter = append(d.outFilter, lanes(filter, filterWidth))
	d.outOfmap = append(d.outOfmap, lanes(ofmap, ofmapWidth))
}

func lanes(vals []int64, width int) []int64 {
	if vals != nil {
		return vals
	}
	out := make([]int64, width)
	for i := range out {
		out[i] = sim.NoAccess
	}
	return out
}

// gather reads m[r(k)][c(k)] for k in [0,width), using NoAccess where the
// index runs past the matrix.
func gather(m sim.OperandMatrix, width int, at func(k int) (int, int)) []int64 {
	out := make([]int64, width)
	for k := range out {
		r, c := at(k)
		if r < len(m) && c < len(m[r]) {
			out[k] = m[r][c]
		} else {
			out[k] = sim.NoAccess
		}
	}
	return out
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }

// outputStationary keeps partial sums in the PEs. Array rows map ofmap rows
// and array columns map filters; each fold streams T operand rows then
// drains R output rows.
type outputStationary struct {
	a *Systolic
	s shape
}

func (o *outputStationary) folds() (int, int) {
	return ceilDiv(o.s.sr, o.a.Rows), ceilDiv(o.s.sc, o.a.Cols)
}

func (o *outputStationary) emit(d *demandBuilder, i, j int) (int, int, int) {
	R, C := o.a.Rows, o.a.Cols
	r0, c0 := i*R, j*C
	for k := range o.s.t {
		ifm := gather(d.ifmap, R, func(r int) (int, int) { return r0 + r, k })
		flt := gather(d.filter, C, func(c int) (int, int) { return k, c0 + c })
		d.row(ifm, R, flt, C, nil, C)
	}
	for r := range R {
		out := gather(d.ofmap, C, func(c int) (int, int) { return r0 + r, c0 + c })
		d.row(nil, R, nil, C, out, C)
	}
	used := min(R, o.s.sr-r0) * min(C, o.s.sc-c0)
	return used, o.s.t, o.s.t + R
}

// weightStationary preloads a R×C block of filter weights, then streams every
// ifmap row through it.
type weightStationary struct {
	a *Systolic
	s shape
}

func (w *weightStationary) folds() (int, int) {
	return ceilDiv(w.s.t, w.a.Rows), ceilDiv(w.s.sc, w.a.Cols)
}

func (w *weightStationary) emit(d *demandBuilder, i, j int) (int, int, int) {
	R, C := w.a.Rows, w.a.Cols
	k0, c0 := i*R, j*C
	for r := range R {
		flt := gather(d.filter, C, func(c int) (int, int) { return k0 + r, c0 + c })
		d.row(nil, R, flt, C, nil, C)
	}
	for p := range w.s.sr {
		ifm := gather(d.ifmap, R, func(r int) (int, int) { return p, k0 + r })
		out := gather(d.ofmap, C, func(c int) (int, int) { return p, c0 + c })
		d.row(ifm, R, nil, C, out, C)
	}
	used := min(R, w.s.t-k0) * min(C, w.s.sc-c0)
	return used, w.s.sr, R + w.s.sr
}

// inputStationary preloads a block of ifmap windows, then streams every
// filter through it.
type inputStationary struct {
	a *Systolic
	s shape
}

func (is *inputStationary) folds() (int, int) {
	return ceilDiv(is.s.t, is.a.Rows), ceilDiv(is.s.sr, is.a.Cols)
}

func (is *inputStationary) emit(d *demandBuilder, i, j int) (int, int, int) {
	R, C := is.a.Rows, is.a.Cols
	k0, p0 := i*R, j*C
	for r := range R {
		ifm := gather(d.ifmap, C, func(c int) (int, int) { return p0 + c, k0 + r })
		d.row(ifm, C, nil, R, nil, C)
	}
	for m := range is.s.sc {
		flt := gather(d.filter, R, func(r int) (int, int) { return k0 + r, m })
		out := gather(d.ofmap, C, func(c int) (int, int) { return p0 + c, m })
		d.row(nil, C, flt, R, out, C)
	}
	used := min(R, is.s.t-k0) * min(C, is.s.sr-p0)
	return used, is.s.sc, R + is.s.sc
}
