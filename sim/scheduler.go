package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Strategy selects how the scheduler treats data movement.
type Strategy int

const (
	// StrategyLocal runs a single pass; fills are timed from backing bandwidth only.
	StrategyLocal Strategy = iota
	// StrategyNoCAware runs priming, delivery barrier and actual passes
	// against a shared NoC.
	StrategyNoCAware
)

func (s Strategy) String() string {
	if s == StrategyNoCAware {
		return "noc-aware"
	}
	return "local"
}

// CoreTask binds a core's compute node to its memory system. Core ids are
// the index of the task in the slice passed to Run, offset by FirstCore.
type CoreTask struct {
	Node   *ComputeNode
	Memory MemorySystem
}

// ScheduleResult is the outcome of one scheduling run.
type ScheduleResult struct {
	CoreCycles     []int64 // final local clock per core
	PrimingCycles  []int64 // provisional clock per core after the priming pass (NoC-aware only)
	CompletionTime int64   // max over CoreCycles
	Tracking       *TrackingTable
}

// TiledScheduler drives every core's tile stream to completion. Within a
// pass, cores advance one tile each per round, in core order, so that cores
// compete for the shared network in an interleaved fashion.
type TiledScheduler struct {
	Strategy  Strategy
	NoC       NoC
	FirstCore int // NoC node id of the first core
}

// Run schedules all cores.
// Panics if any node has not computed its demand, or if the strategy is
// NoC-aware and no NoC is set.
func (s *TiledScheduler) Run(cores []CoreTask) (ScheduleResult, error) {
	for i, c := range cores {
		if c.Node == nil || !c.Node.Computed() {
			panic(fmt.Sprintf("TiledScheduler: core %d scheduled before compute demand was calculated", s.FirstCore+i))
		}
		if c.Memory == nil {
			panic(fmt.Sprintf("TiledScheduler: core %d has no memory system", s.FirstCore+i))
		}
	}
	if s.Strategy == StrategyNoCAware && s.NoC == nil {
		panic("TiledScheduler: NoC-aware run requires a NoC")
	}

	tiles := make([]int, len(cores))
	for i, c := range cores {
		tiles[i] = c.Node.TotalTiles
	}
	table := NewTrackingTable(s.FirstCore, tiles)
	result := ScheduleResult{Tracking: table}

	if s.Strategy == StrategyLocal {
		clocks, err := s.runPass(cores, PhaseActual, nil, table)
		if err != nil {
			return result, err
		}
		table.Seal()
		result.CoreCycles = clocks
		result.CompletionTime = maxClock(clocks)
		return result, nil
	}

	primed, err := s.runPass(cores, PhasePriming, s.NoC, table)
	if err != nil {
		return result, fmt.Errorf("priming pass: %w", err)
	}
	logrus.Debugf("[noc] priming done: %d transfers posted, provisional completion %d", table.Len(), maxClock(primed))

	// Delivery barrier: no posts after this point, no latency queries before it.
	for _, c := range cores {
		c.Memory.Reset()
	}
	if err := s.NoC.DeliverAllTxns(); err != nil {
		return result, fmt.Errorf("deliver transfers: %w", err)
	}
	table.Seal()

	clocks, err := s.runPass(cores, PhaseActual, s.NoC, table)
	if err != nil {
		return result, fmt.Errorf("actual pass: %w", err)
	}
	result.PrimingCycles = primed
	result.CoreCycles = clocks
	result.CompletionTime = maxClock(clocks)
	logrus.Debugf("[noc] actual pass done: completion %d", result.CompletionTime)
	return result, nil
}

// runPass steps every unfinished core by one tile per round until all cores
// have exhausted their tiles, and returns each core's local clock.
func (s *TiledScheduler) runPass(cores []CoreTask, phase Phase, noc NoC, table *TrackingTable) ([]int64, error) {
	clocks := make([]int64, len(cores))
	next := make([]int, len(cores))
	for {
		active := 0
		for i, c := range cores {
			if next[i] >= c.Node.TotalTiles {
				continue
			}
			active++
			tile := c.Node.Tile(next[i])
			cycles, err := c.Memory.ServiceTile(TileRequest{
				Ifmap:     tile.Ifmap,
				Filter:    tile.Filter,
				Ofmap:     tile.Ofmap,
				CoreID:    s.FirstCore + i,
				TileIndex: tile.Index,
				LocalTime: clocks[i],
				LastTile:  tile.Last,
				NoC:       noc,
				Phase:     phase,
				Tracking:  table,
			})
			if err != nil {
				return nil, fmt.Errorf("core %d tile %d: %w", s.FirstCore+i, tile.Index, err)
			}
			clocks[i] += cycles
			next[i]++
		}
		if active == 0 {
			return clocks, nil
		}
	}
}

func maxClock(clocks []int64) int64 {
	var m int64
	for _, c := range clocks {
		m = max(m, c)
	}
	return m
}

// ResolveDRAMSkip applies the layer-pipelining policy to caller-supplied skip
// flags: the first layer always reads its inputs from DRAM and the last
// layer always writes its outputs to DRAM; intermediate layers keep the
// flags as given.
func ResolveDRAMSkip(layerID, numCores int, skipReads, skipWrites bool) (bool, bool) {
	if layerID == 0 {
		skipReads = false
	}
	if layerID == numCores-1 {
		skipWrites = false
	}
	return skipReads, skipWrites
}
