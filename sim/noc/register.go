// register.go adds the mesh, ring and ideal topologies to the sim NoC
// registry. Importing sim/noc (even blank) is enough to make them available
// to sim.NewNoC.
package noc

import "github.com/inference-sim/nocsim/sim"

func init() {
	sim.RegisterNoC("mesh", func() sim.NoC { return &Mesh{} })
	sim.RegisterNoC("ring", func() sim.NoC { return &Ring{} })
	sim.RegisterNoC("ideal", func() sim.NoC { return &Ideal{} })
}
