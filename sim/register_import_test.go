package sim_test

// Blank imports trigger the init() of each implementation package, which sets
// NewComputeUnitFunc and NewMemorySystemFunc and registers the NoC
// topologies. This lets package sim's internal test files run whole layers
// without importing the sub-packages directly (which would create an import
// cycle).
import (
	_ "github.com/inference-sim/nocsim/sim/compute"
	_ "github.com/inference-sim/nocsim/sim/memory"
	_ "github.com/inference-sim/nocsim/sim/noc"
)
