// register.go wires the systolic array into sim.NewComputeUnitFunc and the
// vector unit into sim.NewVectorUnitFunc.
package compute

import "github.com/inference-sim/nocsim/sim"

func init() {
	sim.NewComputeUnitFunc = func(spec sim.ComputeSpec) (sim.ComputeUnit, error) {
		return NewSystolic(spec)
	}
	sim.NewVectorUnitFunc = func(spec sim.SIMDSpec) (sim.VectorUnit, error) {
		return NewVector(spec)
	}
}
