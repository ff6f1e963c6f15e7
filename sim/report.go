package sim

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// CoreReport holds one core's utilization and bandwidth figures for a layer.
type CoreReport struct {
	CoreID int `json:"core_id"`

	TotalCycles       int64   `json:"total_cycles"`
	StallCycles       int64   `json:"stall_cycles"`
	OverallUtil       float64 `json:"overall_util_pct"`
	MappingEfficiency float64 `json:"mapping_efficiency_pct"`
	ComputeUtil       float64 `json:"compute_util_pct"`

	IfmapSRAMReads   int64       `json:"ifmap_sram_reads"`
	FilterSRAMReads  int64       `json:"filter_sram_reads"`
	OfmapSRAMWrites  int64       `json:"ofmap_sram_writes"`
	AvgIfmapSRAMBW   float64     `json:"avg_ifmap_sram_bw"`
	AvgFilterSRAMBW  float64     `json:"avg_filter_sram_bw"`
	AvgOfmapSRAMBW   float64     `json:"avg_ofmap_sram_bw"`
	IfmapSRAMWindow  CycleWindow `json:"ifmap_sram_window"`
	FilterSRAMWindow CycleWindow `json:"filter_sram_window"`
	OfmapSRAMWindow  CycleWindow `json:"ofmap_sram_window"`

	IfmapDRAMReads   int64       `json:"ifmap_dram_reads"`
	FilterDRAMReads  int64       `json:"filter_dram_reads"`
	OfmapDRAMWrites  int64       `json:"ofmap_dram_writes"`
	AvgIfmapDRAMBW   float64     `json:"avg_ifmap_dram_bw"`
	AvgFilterDRAMBW  float64     `json:"avg_filter_dram_bw"`
	AvgOfmapDRAMBW   float64     `json:"avg_ofmap_dram_bw"`
	IfmapDRAMWindow  CycleWindow `json:"ifmap_dram_window"`
	FilterDRAMWindow CycleWindow `json:"filter_dram_window"`
	OfmapDRAMWindow  CycleWindow `json:"ofmap_dram_window"`
}

// LayerReport aggregates all cores of one layer run.
type LayerReport struct {
	LayerID        int          `json:"layer_id"`
	Name           string       `json:"name,omitempty"`
	Strategy       string       `json:"strategy"`
	Cores          []CoreReport `json:"cores"`
	CompletionTime int64        `json:"completion_time"`
	TotalStalls    int64        `json:"total_stall_cycles"`
	MeanUtil       float64      `json:"mean_overall_util_pct"` // over cores with work
	PeakUtil       float64      `json:"peak_overall_util_pct"`
	Transfers      int          `json:"noc_transfers"`
}

// CoreReport returns the report of the given core id, if present.
func (r *LayerReport) CoreReport(coreID int) (CoreReport, bool) {
	for _, c := range r.Cores {
		if c.CoreID == coreID {
			return c, true
		}
	}
	return CoreReport{}, false
}

// NewCoreReport reduces one core's compute and memory counters.
func NewCoreReport(coreID int, node *ComputeNode, mem MemorySystem) CoreReport {
	total := mem.TotalCycles()
	stats := mem.Stats()

	r := CoreReport{
		CoreID:            coreID,
		TotalCycles:       total,
		StallCycles:       mem.StallCycles(),
		MappingEfficiency: node.AvgMappingEfficiency() * 100,
		ComputeUtil:       node.AvgComputeUtil() * 100,
		IfmapSRAMReads:    node.IfmapRequests(),
		FilterSRAMReads:   node.FilterRequests(),
		OfmapSRAMWrites:   node.OfmapRequests(),
		IfmapSRAMWindow:   stats.Ifmap.SRAMWindow,
		FilterSRAMWindow:  stats.Filter.SRAMWindow,
		OfmapSRAMWindow:   stats.Ofmap.SRAMWindow,
		IfmapDRAMReads:    stats.Ifmap.DRAMAccesses,
		FilterDRAMReads:   stats.Filter.DRAMAccesses,
		OfmapDRAMWrites:   stats.Ofmap.DRAMAccesses,
		IfmapDRAMWindow:   stats.Ifmap.DRAMWindow,
		FilterDRAMWindow:  stats.Filter.DRAMWindow,
		OfmapDRAMWindow:   stats.Ofmap.DRAMWindow,
	}
	if total > 0 {
		if units := node.Units(); units > 0 {
			r.OverallUtil = float64(node.MACs()*100) / float64(total*units)
		}
		r.AvgIfmapSRAMBW = float64(r.IfmapSRAMReads) / float64(total)
		r.AvgFilterSRAMBW = float64(r.FilterSRAMReads) / float64(total)
		r.AvgOfmapSRAMBW = float64(r.OfmapSRAMWrites) / float64(total)
	}
	r.AvgIfmapDRAMBW = DRAMBandwidth(r.IfmapDRAMReads, r.IfmapDRAMWindow)
	r.AvgFilterDRAMBW = DRAMBandwidth(r.FilterDRAMReads, r.FilterDRAMWindow)
	r.AvgOfmapDRAMBW = DRAMBandwidth(r.OfmapDRAMWrites, r.OfmapDRAMWindow)
	return r
}

// DRAMBandwidth returns count / (stop - start + 1). An empty window with no
// accesses yields 0. Panics if accesses were counted outside any window.
func DRAMBandwidth(count int64, w CycleWindow) float64 {
	if w.Empty() {
		if count != 0 {
			panic(fmt.Sprintf("DRAMBandwidth: %d accesses recorded with empty window [%d,%d]", count, w.Start, w.Stop))
		}
		return 0
	}
	return float64(count) / float64(w.Stop-w.Start+1)
}

// Aggregate builds a LayerReport from per-core nodes and memory systems.
// Core ids start at firstCore. Panics if lengths differ.
func Aggregate(layerID, firstCore int, nodes []*ComputeNode, mems []MemorySystem, sched ScheduleResult) *LayerReport {
	if len(nodes) != len(mems) {
		panic(fmt.Sprintf("Aggregate: %d compute nodes but %d memory systems", len(nodes), len(mems)))
	}
	rep := &LayerReport{
		LayerID:        layerID,
		Cores:          make([]CoreReport, len(nodes)),
		CompletionTime: sched.CompletionTime,
	}
	if sched.Tracking != nil {
		rep.Transfers = sched.Tracking.Len()
	}

	utils := make([]float64, 0, len(nodes))
	for i := range nodes {
		cr := NewCoreReport(firstCore+i, nodes[i], mems[i])
		rep.Cores[i] = cr
		rep.TotalStalls += cr.StallCycles
		if cr.TotalCycles > 0 {
			utils = append(utils, cr.OverallUtil)
		}
	}
	summarizeUtil(rep, utils)
	return rep
}

// summarizeUtil sets mean and peak overall utilization over cores with work.
func summarizeUtil(rep *LayerReport, utils []float64) {
	if len(utils) > 0 {
		rep.MeanUtil = stat.Mean(utils, nil)
		rep.PeakUtil = floats.Max(utils)
	}
}
