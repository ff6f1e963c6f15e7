package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// OperandSet holds a layer's full operand matrices: ifmap is Sr×T, filter
// T×M and ofmap Sr×M.
type OperandSet struct {
	Ifmap  OperandMatrix
	Filter OperandMatrix
	Ofmap  OperandMatrix
}

// LayerConfig groups the parameters of one layer run.
type LayerConfig struct {
	LayerID int
	Name    string

	// NumCores is the pipeline length used by the DRAM-skip policy.
	NumCores  int
	FirstCore int // NoC node id of the layer's first core

	Strategy       Strategy
	Memory         MemoryConfig // template; skip flags are resolved per layer

	// SIMD, when set, makes the layer element-wise: Run skips the memory
	// model and spreads the ifmap rows over SIMDCores cores.
	SIMD      *SIMDSpec
	SIMDCores int
	SkipDRAMReads  bool
	SkipDRAMWrites bool
}

// LayerSim partitions one layer, computes per-partition demand and drives the
// tiled scheduler over it. Phases run in order: RunCompute, RunMemory, Report.
type LayerSim struct {
	cfg        LayerConfig
	operands   OperandSet
	partitions PartitionSource
	noc        NoC

	nodes    []*ComputeNode
	memories []MemorySystem // indexed by core offset from FirstCore
	sched    ScheduleResult

	computeDone bool
	memoryDone  bool
}

// NewLayerSim creates a layer simulation. noc may be nil for StrategyLocal.
func NewLayerSim(cfg LayerConfig, operands OperandSet, partitions PartitionSource, noc NoC) *LayerSim {
	return &LayerSim{cfg: cfg, operands: operands, partitions: partitions, noc: noc}
}

// RunCompute partitions the operands and builds one ComputeNode per
// (input partition × filter partition) pair.
func (l *LayerSim) RunCompute() error {
	if NewComputeUnitFunc == nil {
		return fmt.Errorf("layer %d: no compute unit registered (import sim/compute)", l.cfg.LayerID)
	}
	numInput, numFilter := l.partitions.LayerPartitions(l.cfg.LayerID)
	spec := l.partitions.ComputeParams(l.cfg.LayerID)
	unit, err := NewComputeUnitFunc(spec)
	if err != nil {
		return fmt.Errorf("layer %d: %w", l.cfg.LayerID, err)
	}

	rows, cols := l.operands.Ofmap.Rows(), l.operands.Ofmap.Cols()
	parts := PlanPartitions(rows, cols, numInput, numFilter)
	if err := CheckCoverage(parts, rows, cols); err != nil {
		return fmt.Errorf("layer %d: %w", l.cfg.LayerID, err)
	}

	l.nodes = make([]*ComputeNode, 0, len(parts))
	for _, p := range parts {
		node := NewComputeNode(p, spec)
		if err := node.CalcDemand(unit, l.operands.Ifmap, l.operands.Filter, l.operands.Ofmap); err != nil {
			return fmt.Errorf("layer %d: %w", l.cfg.LayerID, err)
		}
		l.nodes = append(l.nodes, node)
	}
	l.computeDone = true
	logrus.Debugf("[layer %d] %dx%d partitions, dataflow %s", l.cfg.LayerID, numInput, numFilter, spec.Dataflow)
	return nil
}

// RunMemory configures one memory system per core and schedules all tiles.
// Panics if RunCompute has not completed.
func (l *LayerSim) RunMemory() error {
	if !l.computeDone {
		panic(fmt.Sprintf("LayerSim: layer %d memory simulation before compute", l.cfg.LayerID))
	}
	if NewMemorySystemFunc == nil {
		return fmt.Errorf("layer %d: no memory system registered (import sim/memory)", l.cfg.LayerID)
	}

	memCfg := l.cfg.Memory
	memCfg.SkipDRAMReads, memCfg.SkipDRAMWrites =
		ResolveDRAMSkip(l.cfg.LayerID, l.cfg.NumCores, l.cfg.SkipDRAMReads, l.cfg.SkipDRAMWrites)

	l.memories = make([]MemorySystem, len(l.nodes))
	cores := make([]CoreTask, len(l.nodes))
	for i, node := range l.nodes {
		mem, err := NewMemorySystemFunc(memCfg)
		if err != nil {
			return fmt.Errorf("layer %d core %d: %w", l.cfg.LayerID, l.cfg.FirstCore+i, err)
		}
		if memCfg.BandwidthMode == BandwidthUser {
			if err := mem.SetPrefetchSchedule(node.PrefetchSchedule()); err != nil {
				return fmt.Errorf("layer %d core %d: %w", l.cfg.LayerID, l.cfg.FirstCore+i, err)
			}
		}
		l.memories[i] = mem
		cores[i] = CoreTask{Node: node, Memory: mem}
	}

	sched := &TiledScheduler{Strategy: l.cfg.Strategy, NoC: l.noc, FirstCore: l.cfg.FirstCore}
	res, err := sched.Run(cores)
	if err != nil {
		return fmt.Errorf("layer %d: %w", l.cfg.LayerID, err)
	}
	l.sched = res
	l.memoryDone = true
	logrus.Infof("[layer %d] %s run complete in %d cycles", l.cfg.LayerID, l.cfg.Strategy, res.CompletionTime)
	return nil
}

// Report aggregates the layer's per-core counters.
// Panics unless both RunCompute and RunMemory have completed.
func (l *LayerSim) Report() *LayerReport {
	if !l.computeDone || !l.memoryDone {
		panic(fmt.Sprintf("LayerSim: layer %d report requested before compute and memory simulation", l.cfg.LayerID))
	}
	rep := Aggregate(l.cfg.LayerID, l.cfg.FirstCore, l.nodes, l.memories, l.sched)
	rep.Name = l.cfg.Name
	rep.Strategy = l.cfg.Strategy.String()
	return rep
}

// Run executes all three phases, or the compute-only pass of an
// element-wise layer.
func (l *LayerSim) Run() (*LayerReport, error) {
	if l.cfg.SIMD != nil {
		return l.RunSIMD(*l.cfg.SIMD, l.cfg.SIMDCores)
	}
	if err := l.RunCompute(); err != nil {
		return nil, err
	}
	if err := l.RunMemory(); err != nil {
		return nil, err
	}
	return l.Report(), nil
}

// Config returns the layer's configuration.
func (l *LayerSim) Config() LayerConfig { return l.cfg }

// Nodes returns the layer's compute nodes, one per core.
func (l *LayerSim) Nodes() []*ComputeNode { return l.nodes }

// Memories returns the layer's memory systems, one per core.
func (l *LayerSim) Memories() []MemorySystem { return l.memories }

// Schedule returns the raw scheduling result.
func (l *LayerSim) Schedule() ScheduleResult { return l.sched }
