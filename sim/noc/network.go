// Package noc provides network-on-chip models for sim.NoC: a 2-D mesh, a
// bidirectional ring and an ideal crossbar. All share one link-reservation
// engine and differ only in routing.
package noc

import (
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/nocsim/sim"
)

// link is a directed connection between two adjacent nodes.
type link struct {
	from, to int
}

type router func(src, dest int) []link

type txn struct {
	id        sim.TrackingID
	post      int64
	src, dest int
	bytes     int64
}

// network holds the pending epoch and resolved latencies of one NoC
// instance. Topologies embed it and supply the route function.
type network struct {
	name    string
	cfg     sim.NetworkConfig
	nodes   int
	route   router
	nextID  sim.TrackingID
	pending []txn
	latency map[sim.TrackingID]int64
	posted  map[sim.TrackingID]struct{} // posted but not yet delivered
}

func (n *network) setup(name string, cfg sim.NetworkConfig, nodes int, route router) error {
	if nodes < 1 {
		return fmt.Errorf("%s: node count must be >= 1, got %d", name, nodes)
	}
	if cfg.LinkBandwidth <= 0 {
		return fmt.Errorf("%s: link bandwidth must be > 0, got %d", name, cfg.LinkBandwidth)
	}
	if cfg.RouterLatency < 0 || cfg.LinkLatency < 0 {
		return fmt.Errorf("%s: router and link latency must be >= 0, got %d and %d", name, cfg.RouterLatency, cfg.LinkLatency)
	}
	n.name = name
	n.cfg = cfg
	n.nodes = nodes
	n.route = route
	n.nextID = 0
	n.pending = nil
	n.latency = make(map[sim.TrackingID]int64)
	n.posted = make(map[sim.TrackingID]struct{})
	return nil
}

func (n *network) checkNode(node int) {
	if node < 0 || node >= n.nodes {
		panic(fmt.Sprintf("%s NoC: node %d out of range [0,%d)", n.name, node, n.nodes))
	}
}

// Post queues a transfer for the next DeliverAllTxns.
func (n *network) Post(clk int64, src, dest int, bytes int64) sim.TrackingID {
	n.checkNode(src)
	n.checkNode(dest)
	id := n.nextID
	n.nextID++
	n.pending = append(n.pending, txn{id: id, post: clk, src: src, dest: dest, bytes: bytes})
	n.posted[id] = struct{}{}
	return id
}

// DeliverAllTxns resolves every pending transfer. Transfers are injected in
// (post time, id) order and contend for directed links; link occupancy does
// not carry over between epochs.
func (n *network) DeliverAllTxns() error {
	sort.SliceStable(n.pending, func(i, j int) bool {
		if n.pending[i].post != n.pending[j].post {
			return n.pending[i].post < n.pending[j].post
		}
		return n.pending[i].id < n.pending[j].id
	})

	freeAt := make(map[link]int64)
	hop := n.cfg.RouterLatency + n.cfg.LinkLatency
	var worst int64
	for _, t := range n.pending {
		ser := n.serialization(t.bytes)
		clk := t.post
		route := n.route(t.src, t.dest)
		for _, l := range route {
			start := max(clk, freeAt[l])
			freeAt[l] = start + ser
			clk = start + hop
		}
		lat := int64(0)
		if len(route) > 0 {
			lat = clk + ser - t.post
		}
		n.latency[t.id] = lat
		delete(n.posted, t.id)
		worst = max(worst, lat)
	}
	logrus.Debugf("[noc] %s delivered %d transfers, worst latency %d", n.name, len(n.pending), worst)
	n.pending = n.pending[:0]
	return nil
}

func (n *network) Latency(id sim.TrackingID) (int64, error) {
	if lat, ok := n.latency[id]; ok {
		return lat, nil
	}
	if _, ok := n.posted[id]; ok {
		return 0, fmt.Errorf("transfer %d: %w", id, sim.ErrNotDelivered)
	}
	return 0, fmt.Errorf("transfer %d: %w", id, sim.ErrUnknownTransaction)
}

func (n *network) StaticLatency(src, dest int, bytes int64) int64 {
	n.checkNode(src)
	n.checkNode(dest)
	hops := int64(len(n.route(src, dest)))
	if hops == 0 {
		return 0
	}
	return hops*(n.cfg.RouterLatency+n.cfg.LinkLatency) + n.serialization(bytes)
}

func (n *network) serialization(bytes int64) int64 {
	if bytes <= 0 {
		return 0
	}
	return int64(math.Ceil(float64(bytes) / float64(n.cfg.LinkBandwidth)))
}
