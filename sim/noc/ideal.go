package noc

import (
	"fmt"

	"github.com/inference-sim/nocsim/sim"
)

// Ideal is a full crossbar: every (src, dest) pair has a dedicated
// single-hop link, so only transfers between the same pair contend.
type Ideal struct {
	network
}

func (i *Ideal) Setup(cfg sim.NetworkConfig) error {
	nodes := cfg.NumNodes()
	if nodes < 1 {
		return fmt.Errorf("ideal: node count must be >= 1, got %d", nodes)
	}
	return i.setup("ideal", cfg, nodes, func(src, dest int) []link {
		if src == dest {
			return nil
		}
		return []link{{from: src, to: dest}}
	})
}
