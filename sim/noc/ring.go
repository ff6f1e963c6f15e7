package noc

import (
	"fmt"

	"github.com/inference-sim/nocsim/sim"
)

// Ring is a bidirectional ring. Transfers take the shorter direction; ties
// go clockwise (increasing node id).
type Ring struct {
	network
}

func (r *Ring) Setup(cfg sim.NetworkConfig) error {
	nodes := cfg.NumNodes()
	if nodes < 1 {
		return fmt.Errorf("ring: node count must be >= 1, got %d", nodes)
	}
	return r.setup("ring", cfg, nodes, r.routeShortest)
}

func (r *Ring) routeShortest(src, dest int) []link {
	n := r.nodes
	cw := (dest - src + n) % n
	step := 1
	hops := cw
	if n-cw < cw {
		step = -1
		hops = n - cw
	}
	route := make([]link, 0, hops)
	cur := src
	for range hops {
		next := (cur + step + n) % n
		route = append(route, link{from: cur, to: next})
		cur = next
	}
	return route
}
