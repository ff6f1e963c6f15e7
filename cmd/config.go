package cmd

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/inference-sim/nocsim/sim"
	"github.com/inference-sim/nocsim/sim/operand"
)

// Config is the full run configuration file.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type Config struct {
	Architecture ArchitectureConfig  `yaml:"architecture"`
	Memory       MemorySection       `yaml:"memory"`
	NoC          NoCSection          `yaml:"noc"`
	Execution    ExecutionSection    `yaml:"execution"`
	Partitions   PartitionSection    `yaml:"partitions"`
	Offsets      *operand.Offsets    `yaml:"offsets"`
	Layers       []operand.LayerSpec `yaml:"layers"`
}

type ArchitectureConfig struct {
	NumCores  int    `yaml:"num_cores"`
	ArrayRows int    `yaml:"array_rows"`
	ArrayCols int    `yaml:"array_cols"`
	Dataflow  string `yaml:"dataflow"`
	SIMDLanes int    `yaml:"simd_lanes"` // vector width for element-wise layers; defaults to array_cols
}

// MemorySection sizes are per core.
type MemorySection struct {
	IfmapSRAMKB         int64   `yaml:"ifmap_sram_kb"`
	FilterSRAMKB        int64   `yaml:"filter_sram_kb"`
	OfmapSRAMKB         int64   `yaml:"ofmap_sram_kb"`
	WordBytes           int64   `yaml:"word_bytes"`
	IfmapBandwidth      float64 `yaml:"ifmap_dram_bw"` // words per cycle
	FilterBandwidth     float64 `yaml:"filter_dram_bw"`
	OfmapBandwidth      float64 `yaml:"ofmap_dram_bw"`
	BandwidthMode       string  `yaml:"bandwidth_mode"`
	ReadActiveFraction  float64 `yaml:"read_active_fraction"`
	WriteActiveFraction float64 `yaml:"write_active_fraction"`
	DRAMNode            *int    `yaml:"dram_node"` // defaults to the last NoC node
}

type NoCSection struct {
	Topology      string `yaml:"topology"`
	Width         int    `yaml:"width"`
	Height        int    `yaml:"height"`
	Nodes         int    `yaml:"nodes"`
	LinkBandwidth int64  `yaml:"link_bandwidth"` // bytes per cycle
	RouterLatency int64  `yaml:"router_latency"`
	LinkLatency   int64  `yaml:"link_latency"`
}

type ExecutionSection struct {
	Mode           string `yaml:"mode"`     // ls or lp
	Strategy       string `yaml:"strategy"` // local or noc-aware
	SkipDRAMReads  bool   `yaml:"skip_dram_reads"`
	SkipDRAMWrites bool   `yaml:"skip_dram_writes"`
}

type PartitionSection struct {
	NumInput  int             `yaml:"num_input"`
	NumFilter int             `yaml:"num_filter"`
	Overrides []LayerOverride `yaml:"overrides"`
}

// LayerOverride changes partitioning or dataflow for one layer.
type LayerOverride struct {
	Layer     int    `yaml:"layer"`
	NumInput  int    `yaml:"num_input"`
	NumFilter int    `yaml:"num_filter"`
	Dataflow  string `yaml:"dataflow"`
}

// LoadConfig reads path with strict field checking, fills defaults and
// validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML config (typos must cause errors).
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	a := &c.Architecture
	if a.NumCores == 0 {
		a.NumCores = 1
	}
	if a.ArrayRows == 0 {
		a.ArrayRows = 32
	}
	if a.ArrayCols == 0 {
		a.ArrayCols = 32
	}
	if a.Dataflow == "" {
		a.Dataflow = string(sim.DataflowOutputStationary)
	}
	a.SIMDLanes = orDefault(a.SIMDLanes, a.ArrayCols)

	m := &c.Memory
	m.IfmapSRAMKB = orDefault(m.IfmapSRAMKB, 64)
	m.FilterSRAMKB = orDefault(m.FilterSRAMKB, 64)
	m.OfmapSRAMKB = orDefault(m.OfmapSRAMKB, 64)
	m.WordBytes = orDefault(m.WordBytes, 1)
	m.IfmapBandwidth = orDefault(m.IfmapBandwidth, 10)
	m.FilterBandwidth = orDefault(m.FilterBandwidth, 10)
	m.OfmapBandwidth = orDefault(m.OfmapBandwidth, 10)
	m.ReadActiveFraction = orDefault(m.ReadActiveFraction, 1)
	m.WriteActiveFraction = orDefault(m.WriteActiveFraction, 1)

	n := &c.NoC
	if n.Topology == "" {
		n.Topology = "mesh"
	}
	if n.Topology == "mesh" && n.Width == 0 && n.Height == 0 {
		// smallest square mesh with room for every core plus the DRAM controller
		side := int(math.Ceil(math.Sqrt(float64(a.NumCores + 1))))
		n.Width, n.Height = side, side
	}
	if n.Topology != "mesh" && n.Nodes == 0 {
		n.Nodes = a.NumCores + 1
	}
	n.LinkBandwidth = orDefault(n.LinkBandwidth, 16)
	n.RouterLatency = orDefault(n.RouterLatency, 1)
	n.LinkLatency = orDefault(n.LinkLatency, 1)
	if m.DRAMNode == nil {
		last := c.NetworkConfig().NumNodes() - 1
		m.DRAMNode = &last
	}

	e := &c.Execution
	if e.Mode == "" {
		e.Mode = string(sim.ModeLayerSharded)
	}
	if e.Strategy == "" {
		e.Strategy = sim.StrategyNoCAware.String()
	}

	c.Partitions.NumInput = orDefault(c.Partitions.NumInput, 1)
	c.Partitions.NumFilter = orDefault(c.Partitions.NumFilter, 1)
}

func orDefault[T int | int64 | float64](v, def T) T {
	if v == 0 {
		return def
	}
	return v
}

// Validate checks the configuration for values the simulator cannot run.
func (c *Config) Validate() error {
	a := c.Architecture
	if a.NumCores < 1 {
		return fmt.Errorf("architecture.num_cores must be >= 1, got %d", a.NumCores)
	}
	if a.ArrayRows < 1 || a.ArrayCols < 1 {
		return fmt.Errorf("architecture array must be at least 1x1, got %dx%d", a.ArrayRows, a.ArrayCols)
	}
	if a.SIMDLanes < 1 {
		return fmt.Errorf("architecture.simd_lanes must be >= 1, got %d", a.SIMDLanes)
	}
	if !sim.IsValidDataflow(a.Dataflow) {
		return fmt.Errorf("unknown architecture.dataflow %q; valid options: os, ws, is", a.Dataflow)
	}
	if _, err := sim.ParseBandwidthMode(c.Memory.BandwidthMode); err != nil {
		return fmt.Errorf("memory.bandwidth_mode: %w", err)
	}
	if _, err := ParseStrategy(c.Execution.Strategy); err != nil {
		return err
	}
	if err := validateMode(c.Execution.Mode); err != nil {
		return err
	}
	if !slices.Contains(sim.RegisteredTopologies(), c.NoC.Topology) {
		return fmt.Errorf("unknown noc.topology %q (available: %v)", c.NoC.Topology, sim.RegisteredTopologies())
	}
	nodes := c.NetworkConfig().NumNodes()
	if nodes < a.NumCores {
		return fmt.Errorf("noc has %d nodes, need at least one per core (%d)", nodes, a.NumCores)
	}
	if d := c.Memory.DRAMNode; d != nil && (*d < 0 || *d >= nodes) {
		return fmt.Errorf("memory.dram_node %d outside noc nodes [0,%d)", *d, nodes)
	}
	if c.Partitions.NumInput < 1 || c.Partitions.NumFilter < 1 {
		return fmt.Errorf("partitions must be >= 1, got %dx%d", c.Partitions.NumInput, c.Partitions.NumFilter)
	}
	for _, o := range c.Partitions.Overrides {
		if o.Layer < 0 || o.Layer >= len(c.Layers) {
			return fmt.Errorf("partition override for layer %d: no such layer", o.Layer)
		}
		if o.Dataflow != "" && !sim.IsValidDataflow(o.Dataflow) {
			return fmt.Errorf("partition override for layer %d: unknown dataflow %q", o.Layer, o.Dataflow)
		}
	}
	if len(c.Layers) == 0 {
		return fmt.Errorf("config has no layers")
	}
	for i, l := range c.Layers {
		if err := l.Validate(); err != nil {
			return fmt.Errorf("layers[%d]: %w", i, err)
		}
	}
	return c.MemoryConfig(false).Validate()
}

func validateMode(mode string) error {
	switch sim.ExecutionMode(mode) {
	case sim.ModeLayerSharded, sim.ModeLayerPipelined:
		return nil
	}
	return fmt.Errorf("unknown execution mode %q (want ls or lp)", mode)
}

// ParseStrategy accepts "local" or "noc-aware".
func ParseStrategy(s string) (sim.Strategy, error) {
	switch s {
	case sim.StrategyLocal.String():
		return sim.StrategyLocal, nil
	case sim.StrategyNoCAware.String():
		return sim.StrategyNoCAware, nil
	}
	return 0, fmt.Errorf("unknown strategy %q (want local or noc-aware)", s)
}

// MemoryConfig builds the per-core memory template.
func (c *Config) MemoryConfig(recordTraces bool) sim.MemoryConfig {
	m := c.Memory
	mode, _ := sim.ParseBandwidthMode(m.BandwidthMode)
	dram := sim.NoNode
	if m.DRAMNode != nil {
		dram = *m.DRAMNode
	}
	return sim.MemoryConfig{
		IfmapBufBytes:       m.IfmapSRAMKB * 1024,
		FilterBufBytes:      m.FilterSRAMKB * 1024,
		OfmapBufBytes:       m.OfmapSRAMKB * 1024,
		WordBytes:           m.WordBytes,
		IfmapBandwidth:      m.IfmapBandwidth,
		FilterBandwidth:     m.FilterBandwidth,
		OfmapBandwidth:      m.OfmapBandwidth,
		BandwidthMode:       mode,
		ReadActiveFraction:  m.ReadActiveFraction,
		WriteActiveFraction: m.WriteActiveFraction,
		DRAMNode:            dram,
		UpstreamNode:        sim.NoNode,
		RecordTraces:        recordTraces,
	}
}

func (c *Config) NetworkConfig() sim.NetworkConfig {
	n := c.NoC
	return sim.NetworkConfig{
		Topology:      n.Topology,
		Width:         n.Width,
		Height:        n.Height,
		Nodes:         n.Nodes,
		LinkBandwidth: n.LinkBandwidth,
		RouterLatency: n.RouterLatency,
		LinkLatency:   n.LinkLatency,
	}
}

func (c *Config) PartitionSource() sim.StaticPartitionSource {
	src := sim.StaticPartitionSource{
		NumInput:  c.Partitions.NumInput,
		NumFilter: c.Partitions.NumFilter,
		Compute: sim.ComputeSpec{
			ArrayRows: c.Architecture.ArrayRows,
			ArrayCols: c.Architecture.ArrayCols,
			Dataflow:  sim.Dataflow(c.Architecture.Dataflow),
		},
		Overrides: make(map[int]sim.PartitionOverride, len(c.Partitions.Overrides)),
	}
	for _, o := range c.Partitions.Overrides {
		src.Overrides[o.Layer] = sim.PartitionOverride{
			NumInput:  o.NumInput,
			NumFilter: o.NumFilter,
			Dataflow:  sim.Dataflow(o.Dataflow),
		}
	}
	return src
}

// BuildLayers generates the operand matrices of every configured layer.
func (c *Config) BuildLayers() ([]sim.LayerInput, error) {
	off := operand.DefaultOffsets()
	if c.Offsets != nil {
		off = *c.Offsets
	}
	layers := make([]sim.LayerInput, 0, len(c.Layers))
	for i, spec := range c.Layers {
		ops, err := operand.Build(spec, off)
		if err != nil {
			return nil, fmt.Errorf("layers[%d]: %w", i, err)
		}
		layers = append(layers, sim.LayerInput{Name: spec.Name, Operands: ops, Op: sim.SIMDOp(spec.Op)})
	}
	return layers, nil
}
