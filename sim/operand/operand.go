// Package operand builds the address matrices of a convolution or GEMM layer.
package operand

import (
	"fmt"

	"github.com/inference-sim/nocsim/sim"
)

// LayerSpec is the shape of one convolution layer.
type LayerSpec struct {
	Name       string `yaml:"name" json:"name"`
	IfmapH     int    `yaml:"ifmap_h" json:"ifmap_h"`
	IfmapW     int    `yaml:"ifmap_w" json:"ifmap_w"`
	FilterH    int    `yaml:"filter_h" json:"filter_h"`
	FilterW    int    `yaml:"filter_w" json:"filter_w"`
	Channels   int    `yaml:"channels" json:"channels"`
	NumFilters int    `yaml:"num_filters" json:"num_filters"`
	Stride     int    `yaml:"stride" json:"stride"`

	// Op makes the layer element-wise (e.g. relu) over an
	// (IfmapH*IfmapW)×Channels operand; filter fields are ignored.
	Op string `yaml:"op" json:"op,omitempty"`
}

// GEMMSpec describes an M×K by K×N matrix multiply as a 1×1 convolution.
func GEMMSpec(name string, m, n, k int) LayerSpec {
	return LayerSpec{
		Name:       name,
		IfmapH:     m,
		IfmapW:     1,
		FilterH:    1,
		FilterW:    1,
		Channels:   k,
		NumFilters: n,
		Stride:     1,
	}
}

// Validate checks that the layer produces a non-empty output.
func (l LayerSpec) Validate() error {
	if l.Op != "" {
		if !sim.IsValidSIMDOp(l.Op) {
			return fmt.Errorf("layer %q: unknown element-wise op %q; valid options: relu, add, mul, max", l.Name, l.Op)
		}
		if l.IfmapH < 1 || l.IfmapW < 1 || l.Channels < 1 {
			return fmt.Errorf("layer %q: ifmap dimensions and channels must be >= 1", l.Name)
		}
		return nil
	}
	if l.Stride < 1 {
		return fmt.Errorf("layer %q: stride must be >= 1, got %d", l.Name, l.Stride)
	}
	if l.IfmapH < 1 || l.IfmapW < 1 || l.FilterH < 1 || l.FilterW < 1 {
		return fmt.Errorf("layer %q: ifmap and filter dimensions must be >= 1", l.Name)
	}
	if l.Channels < 1 || l.NumFilters < 1 {
		return fmt.Errorf("layer %q: channels and num_filters must be >= 1, got %d and %d", l.Name, l.Channels, l.NumFilters)
	}
	if l.FilterH > l.IfmapH || l.FilterW > l.IfmapW {
		return fmt.Errorf("layer %q: filter %dx%d larger than ifmap %dx%d", l.Name, l.FilterH, l.FilterW, l.IfmapH, l.IfmapW)
	}
	return nil
}

// OfmapH is the output height.
func (l LayerSpec) OfmapH() int { return (l.IfmapH-l.FilterH)/l.Stride + 1 }

// OfmapW is the output width.
func (l LayerSpec) OfmapW() int { return (l.IfmapW-l.FilterW)/l.Stride + 1 }

// WindowSize is the number of MACs per output pixel per filter (T).
func (l LayerSpec) WindowSize() int { return l.FilterH * l.FilterW * l.Channels }

// MACs is the total multiply-accumulate count of the layer.
func (l LayerSpec) MACs() int64 {
	return int64(l.OfmapH()) * int64(l.OfmapW()) * int64(l.WindowSize()) * int64(l.NumFilters)
}

// Offsets are the base addresses of each operand's address space.
type Offsets struct {
	Ifmap  int64 `yaml:"ifmap" json:"ifmap"`
	Filter int64 `yaml:"filter" json:"filter"`
	Ofmap  int64 `yaml:"ofmap" json:"ofmap"`
}

// DefaultOffsets keeps the three operands in disjoint address ranges.
func DefaultOffsets() Offsets {
	return Offsets{Ifmap: 0, Filter: 10_000_000, Ofmap: 20_000_000}
}

// Build returns the ifmap (Sr×T), filter (T×M) and ofmap (Sr×M) address
// matrices, where Sr is the number of output pixels, T the window size and
// M the number of filters. An element-wise layer only gets an ifmap, one row
// per pixel and one column per channel.
func Build(l LayerSpec, off Offsets) (sim.OperandSet, error) {
	if err := l.Validate(); err != nil {
		return sim.OperandSet{}, err
	}
	if l.Op != "" {
		return sim.OperandSet{Ifmap: elementwise(l, off)}, nil
	}
	oh, ow := l.OfmapH(), l.OfmapW()
	sr, t, m := oh*ow, l.WindowSize(), l.NumFilters

	ifmap := make(sim.OperandMatrix, sr)
	for oy := range oh {
		for ox := range ow {
			row := make([]int64, 0, t)
			for fy := range l.FilterH {
				for fx := range l.FilterW {
					pixel := int64((oy*l.Stride+fy)*l.IfmapW + ox*l.Stride + fx)
					for c := range l.Channels {
						row = append(row, off.Ifmap+pixel*int64(l.Channels)+int64(c))
					}
				}
			}
			ifmap[oy*ow+ox] = row
		}
	}

	filter := make(sim.OperandMatrix, t)
	for k := range t {
		row := make([]int64, m)
		for f := range m {
			row[f] = off.Filter + int64(f)*int64(t) + int64(k)
		}
		filter[k] = row
	}

	ofmap := make(sim.OperandMatrix, sr)
	for p := range sr {
		row := make([]int64, m)
		for f := range m {
			row[f] = off.Ofmap + int64(p)*int64(m) + int64(f)
		}
		ofmap[p] = row
	}

	return sim.OperandSet{Ifmap: ifmap, Filter: filter, Ofmap: ofmap}, nil
}

func elementwise(l LayerSpec, off Offsets) sim.OperandMatrix {
	pixels := l.IfmapH * l.IfmapW
	m := make(sim.OperandMatrix, pixels)
	for p := range pixels {
		row := make([]int64, l.Channels)
		for c := range row {
			row[c] = off.Ifmap + int64(p*l.Channels+c)
		}
		m[p] = row
	}
	return m
}
