// Package sim estimates the latency of one neural-network layer mapped onto a
// multi-core accelerator whose cores share an on-chip network (NoC).
//
// # Reading Guide
//
// Start with these files to understand the scheduling kernel:
//   - compute_node.go: a partition's demand matrices and how they split into tiles
//   - tracking.go: the per-run table correlating posted transfers with tiles
//   - scheduler.go: the two-phase round-robin tile loop (priming, barrier, actual)
//   - report.go: reduction of per-core counters into utilization and bandwidth
//
// # Architecture
//
// The sim package defines interfaces and the scheduling core; implementations
// live in sub-packages:
//   - sim/compute/: systolic-array compute units (OS, WS, IS dataflows) and
//     SIMD vector units for element-wise layers
//   - sim/memory/: double-buffered scratchpad memory systems
//   - sim/noc/: network models (mesh, ring, ideal crossbar)
//   - sim/operand/: layer shapes to operand address matrices
//   - sim/trace/: CSV trace files for memory activity
//
// Sub-packages register their implementations via init() functions that set
// package-level factory variables (NewComputeUnitFunc, NewVectorUnitFunc,
// NewMemorySystemFunc) or call RegisterNoC.
//
// # Key Interfaces
//
//   - ComputeUnit: turns a partition's operand matrices into demand matrices
//   - MemorySystem: services one tile of demand, reporting elapsed cycles
//   - NoC: accepts posted transfers and resolves their latency in bulk
//   - PartitionSource: per-layer partition counts and compute parameters
package sim
