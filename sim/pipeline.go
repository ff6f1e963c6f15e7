package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// ExecutionMode selects how a multi-layer network is mapped onto the cores.
type ExecutionMode string

const (
	// ModeLayerSharded runs layers one after another, each spread over all cores.
	ModeLayerSharded ExecutionMode = "ls"
	// ModeLayerPipelined places layer i on core i and streams activations
	// between neighbouring cores.
	ModeLayerPipelined ExecutionMode = "lp"
)

// LayerInput names one layer and its operands. A layer with Op set is
// element-wise and only uses Operands.Ifmap.
type LayerInput struct {
	Name     string
	Operands OperandSet
	Op       SIMDOp
}

// PipelineConfig groups parameters shared by every layer of a network run.
type PipelineConfig struct {
	NumCores       int
	Strategy       Strategy
	Memory         MemoryConfig
	SkipDRAMReads  bool
	SkipDRAMWrites bool
	Partitions     PartitionSource
	SIMDLanes      int // vector width for element-wise layers
}

// PipelineReport summarizes a multi-layer run.
type PipelineReport struct {
	Mode        ExecutionMode  `json:"mode"`
	Layers      []*LayerReport `json:"layers"`
	StageCycles []int64        `json:"stage_cycles"`
	TotalCycles int64          `json:"total_cycles"` // end-to-end latency of one input
	Bottleneck  int64          `json:"bottleneck_cycles"`
}

// Pipeline runs a sequence of layers on a shared NoC.
type Pipeline struct {
	cfg PipelineConfig
	noc NoC

	// OnLayer, if set, is called after each layer completes.
	OnLayer func(layer *LayerSim, report *LayerReport) error
}

// NewPipeline creates a Pipeline. noc may be nil for StrategyLocal.
// Panics if NumCores < 1 or Partitions is nil.
func NewPipeline(cfg PipelineConfig, noc NoC) *Pipeline {
	if cfg.NumCores < 1 {
		panic(fmt.Sprintf("Pipeline: NumCores must be >= 1, got %d", cfg.NumCores))
	}
	if cfg.Partitions == nil {
		panic("Pipeline: Partitions is nil")
	}
	return &Pipeline{cfg: cfg, noc: noc}
}

// Run dispatches to the runner for mode.
func (p *Pipeline) Run(mode ExecutionMode, layers []LayerInput) (*PipelineReport, error) {
	switch mode {
	case ModeLayerSharded:
		return p.RunLayerSharded(layers)
	case ModeLayerPipelined:
		return p.RunLayerPipelined(layers)
	}
	return nil, fmt.Errorf("unknown execution mode %q (want ls or lp)", mode)
}

// RunLayerSharded runs every layer across all cores, one layer at a time.
// Each layer reads from and writes to DRAM. Total cycles is the sum of the
// layers' completion times.
func (p *Pipeline) RunLayerSharded(layers []LayerInput) (*PipelineReport, error) {
	rep := &PipelineReport{Mode: ModeLayerSharded}
	for id, in := range layers {
		cfg := LayerConfig{
			LayerID:   id,
			Name:      in.Name,
			NumCores:  p.cfg.NumCores,
			Strategy:  p.cfg.Strategy,
			Memory:    p.cfg.Memory,
			SIMD:      p.simdSpec(in),
			SIMDCores: p.cfg.NumCores,
		}
		if numInput, numFilter := p.cfg.Partitions.LayerPartitions(id); cfg.SIMD == nil && numInput*numFilter > p.cfg.NumCores {
			return nil, fmt.Errorf("layer %d (%s): %dx%d partitions exceed %d cores", id, in.Name, numInput, numFilter, p.cfg.NumCores)
		}
		ls := NewLayerSim(cfg, in.Operands, p.cfg.Partitions, p.noc)
		if err := p.runLayer(ls, rep); err != nil {
			return nil, err
		}
	}
	return rep, nil
}

// RunLayerPipelined places layer i on core i. Intermediate layers honor the
// configured DRAM-skip flags, receiving activations from core i-1 over the
// NoC. Total cycles is the end-to-end latency (sum of stages); Bottleneck is
// the slowest stage, which bounds steady-state throughput.
func (p *Pipeline) RunLayerPipelined(layers []LayerInput) (*PipelineReport, error) {
	if len(layers) > p.cfg.NumCores {
		return nil, fmt.Errorf("layer pipelining needs one core per layer: %d layers, %d cores", len(layers), p.cfg.NumCores)
	}
	rep := &PipelineReport{Mode: ModeLayerPipelined}
	parts := singleCorePartitions{p.cfg.Partitions}
	for id, in := range layers {
		mem := p.cfg.Memory
		mem.UpstreamNode = NoNode
		if id > 0 {
			mem.UpstreamNode = id - 1
		}
		ls := NewLayerSim(LayerConfig{
			LayerID:        id,
			Name:           in.Name,
			NumCores:       len(layers),
			FirstCore:      id,
			Strategy:       p.cfg.Strategy,
			Memory:         mem,
			SkipDRAMReads:  p.cfg.SkipDRAMReads,
			SkipDRAMWrites: p.cfg.SkipDRAMWrites,
			SIMD:           p.simdSpec(in),
			SIMDCores:      1,
		}, in.Operands, parts, p.noc)
		if err := p.runLayer(ls, rep); err != nil {
			return nil, err
		}
	}
	return rep, nil
}

// simdSpec returns the vector unit of an element-wise layer, or nil.
func (p *Pipeline) simdSpec(in LayerInput) *SIMDSpec {
	if in.Op == "" {
		return nil
	}
	return &SIMDSpec{Lanes: p.cfg.SIMDLanes, Op: in.Op}
}

func (p *Pipeline) runLayer(ls *LayerSim, rep *PipelineReport) error {
	layerRep, err := ls.Run()
	if err != nil {
		return err
	}
	if p.OnLayer != nil {
		if err := p.OnLayer(ls, layerRep); err != nil {
			return fmt.Errorf("layer %d: %w", layerRep.LayerID, err)
		}
	}
	rep.Layers = append(rep.Layers, layerRep)
	rep.StageCycles = append(rep.StageCycles, layerRep.CompletionTime)
	rep.TotalCycles += layerRep.CompletionTime
	rep.Bottleneck = max(rep.Bottleneck, layerRep.CompletionTime)
	logrus.Debugf("[pipeline %s] layer %d done, running total %d cycles", rep.Mode, layerRep.LayerID, rep.TotalCycles)
	return nil
}

// singleCorePartitions forces a 1×1 split while keeping the wrapped source's
// compute parameters.
type singleCorePartitions struct {
	PartitionSource
}

func (singleCorePartitions) LayerPartitions(int) (int, int) { return 1, 1 }
