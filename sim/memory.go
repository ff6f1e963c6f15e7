package sim

import (
	"fmt"
	"strings"
)

// BandwidthMode selects how read-buffer fill time is derived.
type BandwidthMode string

const (
	// BandwidthEstimate derives fill time from backing-store bandwidth.
	BandwidthEstimate BandwidthMode = "ESTIMATE"
	// BandwidthUser takes fill time from a caller-supplied prefetch schedule.
	BandwidthUser BandwidthMode = "USER"
)

// ParseBandwidthMode accepts "ESTIMATE" or "USER" in any case; empty means ESTIMATE.
func ParseBandwidthMode(s string) (BandwidthMode, error) {
	switch BandwidthMode(strings.ToUpper(s)) {
	case "", BandwidthEstimate:
		return BandwidthEstimate, nil
	case BandwidthUser:
		return BandwidthUser, nil
	}
	return "", fmt.Errorf("unknown bandwidth mode %q (want ESTIMATE or USER)", s)
}

// Phase distinguishes the two passes of a NoC-aware scheduling run.
type Phase int

const (
	// PhasePriming discovers and posts transfers; its timing is provisional.
	PhasePriming Phase = iota
	// PhaseActual replays tiles with resolved transfer latencies.
	PhaseActual
)

func (p Phase) String() string {
	if p == PhasePriming {
		return "priming"
	}
	return "actual"
}

// NoNode marks an unset NoC node reference.
const NoNode = -1

// MemoryConfig configures one core's memory system.
type MemoryConfig struct {
	IfmapBufBytes  int64
	FilterBufBytes int64
	OfmapBufBytes  int64
	WordBytes      int64 // bytes per operand element

	IfmapBandwidth  float64 // backing-store words per cycle
	FilterBandwidth float64
	OfmapBandwidth  float64

	BandwidthMode  BandwidthMode
	SkipDRAMReads  bool
	SkipDRAMWrites bool

	ReadActiveFraction  float64 // usable fraction of a read half-buffer, in (0,1]
	WriteActiveFraction float64 // fill fraction of a write half-buffer that triggers a drain, in (0,1]

	DRAMNode     int // NoC node hosting the DRAM controller
	UpstreamNode int // NoC node supplying ifmap when DRAM reads are skipped, or NoNode

	RecordTraces bool
}

// Validate checks buffer sizes, bandwidths and active fractions.
func (c MemoryConfig) Validate() error {
	if c.IfmapBufBytes <= 0 || c.FilterBufBytes <= 0 || c.OfmapBufBytes <= 0 {
		return fmt.Errorf("memory config: buffer sizes must be > 0 (ifmap=%d filter=%d ofmap=%d)",
			c.IfmapBufBytes, c.FilterBufBytes, c.OfmapBufBytes)
	}
	if c.WordBytes <= 0 {
		return fmt.Errorf("memory config: WordBytes must be > 0, got %d", c.WordBytes)
	}
	if c.IfmapBandwidth <= 0 || c.FilterBandwidth <= 0 || c.OfmapBandwidth <= 0 {
		return fmt.Errorf("memory config: bandwidths must be > 0 (ifmap=%v filter=%v ofmap=%v)",
			c.IfmapBandwidth, c.FilterBandwidth, c.OfmapBandwidth)
	}
	if c.BandwidthMode != BandwidthEstimate && c.BandwidthMode != BandwidthUser {
		return fmt.Errorf("memory config: unknown bandwidth mode %q", c.BandwidthMode)
	}
	if c.ReadActiveFraction <= 0 || c.ReadActiveFraction > 1 {
		return fmt.Errorf("memory config: ReadActiveFraction must be in (0,1], got %v", c.ReadActiveFraction)
	}
	if c.WriteActiveFraction <= 0 || c.WriteActiveFraction > 1 {
		return fmt.Errorf("memory config: WriteActiveFraction must be in (0,1], got %v", c.WriteActiveFraction)
	}
	return nil
}

// PrefetchSchedule gives, per tile, the cycles needed to fill each read
// buffer. Used in BandwidthUser mode.
type PrefetchSchedule struct {
	Ifmap  []int64
	Filter []int64
}

// TileRequest carries everything a memory system needs to service one tile.
type TileRequest struct {
	Ifmap  DemandMatrix
	Filter DemandMatrix
	Ofmap  DemandMatrix

	CoreID    int // also the core's NoC node id
	TileIndex int
	LocalTime int64 // core's simulated clock at tile start
	LastTile  bool

	NoC      NoC // nil when the run is not NoC-aware
	Phase    Phase
	Tracking *TrackingTable
}

// CycleWindow is an inclusive [Start, Stop] cycle range.
// An empty window has Stop < Start.
type CycleWindow struct {
	Start int64 `json:"start"`
	Stop  int64 `json:"stop"`
}

// EmptyWindow returns a window that contains no cycles.
func EmptyWindow() CycleWindow { return CycleWindow{Start: 0, Stop: -1} }

// Empty reports whether the window contains no cycles.
func (w CycleWindow) Empty() bool { return w.Stop < w.Start }

// Extend grows the window to include [start, stop].
func (w CycleWindow) Extend(start, stop int64) CycleWindow {
	if stop < start {
		return w
	}
	if w.Empty() {
		return CycleWindow{Start: start, Stop: stop}
	}
	return CycleWindow{Start: min(w.Start, start), Stop: max(w.Stop, stop)}
}

// OperandStats holds one operand's access counters.
type OperandStats struct {
	SRAMAccesses int64 // reads for ifmap/filter, writes for ofmap
	DRAMAccesses int64
	SRAMWindow   CycleWindow
	DRAMWindow   CycleWindow
}

// MemoryStats holds the counters of all three operands.
type MemoryStats struct {
	Ifmap  OperandStats
	Filter OperandStats
	Ofmap  OperandStats
}

// TraceRow is one cycle of a memory trace.
type TraceRow struct {
	Cycle int64
	Addrs []int64
}

// MemoryTraces holds recorded SRAM and DRAM traces for one core.
type MemoryTraces struct {
	IfmapSRAM  []TraceRow
	FilterSRAM []TraceRow
	OfmapSRAM  []TraceRow
	IfmapDRAM  []TraceRow
	FilterDRAM []TraceRow
	OfmapDRAM  []TraceRow
}

// MemorySystem models one core's double-buffered scratchpad. Instances are
// owned by a single core and never shared.
type MemorySystem interface {
	// SetPrefetchSchedule supplies fill timing for BandwidthUser mode.
	SetPrefetchSchedule(sched PrefetchSchedule) error

	// ServiceTile processes one tile of demand and returns the cycles it took,
	// including stalls. In PhasePriming transfers are posted to req.NoC and
	// recorded in req.Tracking; in PhaseActual their resolved latency is used.
	ServiceTile(req TileRequest) (int64, error)

	// Reset zeroes all counters and buffer state, keeping configuration.
	Reset()

	TotalCycles() int64
	StallCycles() int64
	Stats() MemoryStats
	Traces() MemoryTraces
}

// NewMemorySystemFunc builds a MemorySystem. It is set by sim/memory's init();
// production code imports sim/memory to register it.
var NewMemorySystemFunc func(cfg MemoryConfig) (MemorySystem, error)
