package sim

import (
	"errors"
	"fmt"
	"sort"
)

// TrackingID identifies one posted NoC transfer.
type TrackingID int64

// Sentinel errors returned by NoC.Latency.
var (
	ErrNotDelivered       = errors.New("noc: transaction not yet delivered")
	ErrUnknownTransaction = errors.New("noc: unknown tracking id")
)

// NoC is a bulk network model: transfers are posted first and their latency
// is resolved for all of them at once, so contention between every in-flight
// transfer can be taken into account.
//
// Usage per scheduling run: Post during the priming pass, DeliverAllTxns
// exactly once, then Latency for each tracking id.
type NoC interface {
	// Setup prepares topology and routing state.
	Setup(cfg NetworkConfig) error

	// Post registers a transfer of bytes from src to dest at cycle clk.
	// Latency is not resolved until DeliverAllTxns.
	Post(clk int64, src, dest int, bytes int64) TrackingID

	// DeliverAllTxns resolves the latency of every transfer posted since the
	// previous call.
	DeliverAllTxns() error

	// Latency returns the resolved end-to-end latency of a delivered
	// transfer. Returns ErrNotDelivered or ErrUnknownTransaction otherwise.
	Latency(id TrackingID) (int64, error)

	// StaticLatency returns the contention-free latency (route plus
	// serialization) of a transfer without posting it.
	StaticLatency(src, dest int, bytes int64) int64
}

// NetworkConfig configures a NoC. Topologies ignore fields they do not use.
type NetworkConfig struct {
	Topology      string // registered topology name, e.g. "mesh"
	Width         int    // mesh columns
	Height        int    // mesh rows
	Nodes         int    // node count for non-mesh topologies
	LinkBandwidth int64  // bytes per cycle per link
	RouterLatency int64  // cycles per router traversal
	LinkLatency   int64  // cycles per link traversal
}

// NumNodes returns the number of addressable network nodes: Width*Height
// for a mesh, Nodes for every other topology.
func (c NetworkConfig) NumNodes() int {
	if c.Topology == "mesh" {
		return c.Width * c.Height
	}
	return c.Nodes
}

var nocRegistry = map[string]func() NoC{}

// RegisterNoC makes a topology available to NewNoC. Sub-packages call it from init().
// Panics on duplicate registration.
func RegisterNoC(topology string, factory func() NoC) {
	if _, exists := nocRegistry[topology]; exists {
		panic(fmt.Sprintf("RegisterNoC: topology %q registered twice", topology))
	}
	nocRegistry[topology] = factory
}

// RegisteredTopologies returns the registered topology names in sorted order.
func RegisteredTopologies() []string {
	names := make([]string, 0, len(nocRegistry))
	for name := range nocRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewNoC creates and sets up the NoC registered under cfg.Topology.
func NewNoC(cfg NetworkConfig) (NoC, error) {
	factory, ok := nocRegistry[cfg.Topology]
	if !ok {
		return nil, fmt.Errorf("unknown NoC topology %q (available: %v)", cfg.Topology, RegisteredTopologies())
	}
	n := factory()
	if err := n.Setup(cfg); err != nil {
		return nil, fmt.Errorf("setup %s NoC: %w", cfg.Topology, err)
	}
	return n, nil
}
