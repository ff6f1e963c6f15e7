// register.go wires the scratchpad constructor into sim.NewMemorySystemFunc.
// This init() runs when any package imports sim/memory; package sim's own
// tests pull it in through register_import_test.go.
package memory

import "github.com/inference-sim/nocsim/sim"

func init() {
	sim.NewMemorySystemFunc = func(cfg sim.MemoryConfig) (sim.MemorySystem, error) {
		return NewScratchpad(cfg)
	}
}
