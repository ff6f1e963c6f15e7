package sim

import (
	"fmt"
)

// Dataflow selects which operand stays resident in the compute array.
type Dataflow string

const (
	DataflowOutputStationary Dataflow = "os"
	DataflowWeightStationary Dataflow = "ws"
	DataflowInputStationary  Dataflow = "is"
)

var validDataflows = map[Dataflow]bool{
	DataflowOutputStationary: true,
	DataflowWeightStationary: true,
	DataflowInputStationary:  true,
}

// IsValidDataflow returns true if name is a recognized dataflow.
func IsValidDataflow(name string) bool {
	return validDataflows[Dataflow(name)]
}

// ComputeSpec describes the compute unit instantiated for every partition of a layer.
type ComputeSpec struct {
	ArrayRows int
	ArrayCols int
	Dataflow  Dataflow
}

// DemandSet is the output of a compute unit for one partition.
type DemandSet struct {
	Ifmap  DemandMatrix
	Filter DemandMatrix
	Ofmap  DemandMatrix

	// Tile counts along each read operand; a valid unit reports equal counts.
	TilesIfmap  int
	TilesFilter int

	MACs              int64   // multiply-accumulates performed
	Units             int64   // processing elements in the unit
	MappingEfficiency float64 // average fraction of PEs mapped, in [0,1]
	ComputeUtil       float64 // average fraction of PE-cycles busy, in [0,1]
}

// ComputeUnit produces demand matrices for one partition's operands.
type ComputeUnit interface {
	// CalcDemand maps the operands onto the unit. ifmap is Sr×T, filter is
	// T×Sc and ofmap is Sr×Sc.
	CalcDemand(ifmap, filter, ofmap OperandMatrix) (DemandSet, error)
}

// NewComputeUnitFunc builds a ComputeUnit from a spec. It is set by
// sim/compute's init(); production code imports sim/compute to register it.
var NewComputeUnitFunc func(spec ComputeSpec) (ComputeUnit, error)

// TileSlices is the demand of one tile.
type TileSlices struct {
	Index  int
	Ifmap  DemandMatrix
	Filter DemandMatrix
	Ofmap  DemandMatrix
	Last   bool
}

// ComputeNode owns one partition's demand matrices and their tiling.
type ComputeNode struct {
	Partition Partition
	Spec      ComputeSpec

	TotalTiles  int
	PerTileSize int

	demand   DemandSet
	tiles    []TileSlices
	computed bool
}

// NewComputeNode returns an uncomputed node for the partition.
func NewComputeNode(part Partition, spec ComputeSpec) *ComputeNode {
	return &ComputeNode{Partition: part, Spec: spec}
}

// CalcDemand slices the layer operands down to the node's partition, runs the
// compute unit and tiles the resulting demand matrices.
// Panics if the unit reports different ifmap and filter tile counts.
func (n *ComputeNode) CalcDemand(unit ComputeUnit, ifmap, filter, ofmap OperandMatrix) error {
	p := n.Partition
	partIfmap := ifmap.Slice(p.RowStart, p.RowEnd)
	partFilter := filter.ColumnRange(p.ColStart, p.ColEnd)
	partOfmap := ofmap.Slice(p.RowStart, p.RowEnd).ColumnRange(p.ColStart, p.ColEnd)
	if p.Empty() {
		partIfmap, partFilter, partOfmap = nil, nil, nil
	}

	demand, err := unit.CalcDemand(partIfmap, partFilter, partOfmap)
	if err != nil {
		return fmt.Errorf("compute node %d.%d: %w", p.InputIndex, p.FilterIndex, err)
	}
	return n.SetDemand(demand)
}

// SetDemand installs precomputed demand matrices and builds the tile plan.
// Panics if ifmap and filter tile counts differ.
func (n *ComputeNode) SetDemand(demand DemandSet) error {
	if demand.TilesIfmap != demand.TilesFilter {
		panic(fmt.Sprintf("ComputeNode: ifmap tiles (%d) != filter tiles (%d)", demand.TilesIfmap, demand.TilesFilter))
	}
	rows := demand.Ifmap.Rows()
	if demand.Filter.Rows() != rows || demand.Ofmap.Rows() != rows {
		return fmt.Errorf("compute node: demand rows differ (ifmap=%d filter=%d ofmap=%d)",
			rows, demand.Filter.Rows(), demand.Ofmap.Rows())
	}
	if demand.TilesIfmap < 0 || (rows > 0 && demand.TilesIfmap > rows) {
		return fmt.Errorf("compute node: %d tiles for %d demand rows", demand.TilesIfmap, rows)
	}

	n.demand = demand
	n.TotalTiles = demand.TilesIfmap
	if n.TotalTiles > 0 {
		n.PerTileSize = rows / n.TotalTiles
	} else {
		n.PerTileSize = rows
	}

	n.tiles = make([]TileSlices, n.TotalTiles)
	for t := range n.tiles {
		start := t * n.PerTileSize
		end := min(start+n.PerTileSize, rows)
		last := t == n.TotalTiles-1
		if last {
			// integer division leaves remainder rows for the final tile
			end = rows
		}
		n.tiles[t] = TileSlices{
			Index:  t,
			Ifmap:  demand.Ifmap.Slice(start, end),
			Filter: demand.Filter.Slice(start, end),
			Ofmap:  demand.Ofmap.Slice(start, end),
			Last:   last,
		}
	}
	n.computed = true
	return nil
}

// Computed reports whether demand matrices have been produced.
func (n *ComputeNode) Computed() bool { return n.computed }

// Tile returns the demand slices of tile t.
func (n *ComputeNode) Tile(t int) TileSlices {
	return n.tiles[t]
}

// Demand returns the full demand matrices.
func (n *ComputeNode) Demand() DemandSet { return n.demand }

func (n *ComputeNode) MACs() int64  { return n.demand.MACs }
func (n *ComputeNode) Units() int64 { return n.demand.Units }

// AvgMappingEfficiency is the mean fraction of PEs mapped across folds.
func (n *ComputeNode) AvgMappingEfficiency() float64 { return n.demand.MappingEfficiency }

// AvgComputeUtil is the mean fraction of busy PE-cycles across folds.
func (n *ComputeNode) AvgComputeUtil() float64 { return n.demand.ComputeUtil }

func (n *ComputeNode) IfmapRequests() int64  { return n.demand.Ifmap.Accesses() }
func (n *ComputeNode) FilterRequests() int64 { return n.demand.Filter.Accesses() }
func (n *ComputeNode) OfmapRequests() int64  { return n.demand.Ofmap.Accesses() }

// PrefetchSchedule returns per-tile fetch cycle budgets for USER bandwidth
// mode: the number of rows in each tile that read the operand.
func (n *ComputeNode) PrefetchSchedule() PrefetchSchedule {
	sched := PrefetchSchedule{
		Ifmap:  make([]int64, n.TotalTiles),
		Filter: make([]int64, n.TotalTiles),
	}
	for t, tile := range n.tiles {
		sched.Ifmap[t] = tile.Ifmap.ActiveRows()
		sched.Filter[t] = tile.Filter.ActiveRows()
	}
	return sched
}
