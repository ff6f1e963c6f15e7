package sim

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inference-sim/nocsim/sim/internal/testutil"
)

// stubNoC resolves every delivered transfer to a fixed latency.
type stubNoC struct {
	latency   int64
	next      TrackingID
	posts     []stubPost
	delivered bool
	delivers  int
}

type stubPost struct {
	clk       int64
	src, dest int
	bytes     int64
}

func (n *stubNoC) Setup(NetworkConfig) error { return nil }

func (n *stubNoC) Post(clk int64, src, dest int, bytes int64) TrackingID {
	if n.delivered {
		panic("stubNoC: post after delivery")
	}
	n.posts = append(n.posts, stubPost{clk: clk, src: src, dest: dest, bytes: bytes})
	id := n.next
	n.next++
	return id
}

func (n *stubNoC) DeliverAllTxns() error {
	n.delivered = true
	n.delivers++
	return nil
}

func (n *stubNoC) Latency(id TrackingID) (int64, error) {
	if id < 0 || id >= n.next {
		return 0, ErrUnknownTransaction
	}
	if !n.delivered {
		return 0, ErrNotDelivered
	}
	return n.latency, nil
}

func (n *stubNoC) StaticLatency(src, dest int, bytes int64) int64 {
	if src == dest {
		return 0
	}
	return n.latency
}

// stubMemory charges a fixed cost per tile. Tiles listed in transferTiles
// post one transfer from transferSrc during priming and add its resolved
// latency during the actual pass.
type stubMemory struct {
	cyclesPerTile int64
	transferTiles map[int]bool
	transferSrc   int

	log    *[]string // shared across cores to observe interleaving
	total  int64
	resets int
}

func (m *stubMemory) SetPrefetchSchedule(PrefetchSchedule) error { return nil }

func (m *stubMemory) ServiceTile(req TileRequest) (int64, error) {
	if m.log != nil {
		*m.log = append(*m.log, fmt.Sprintf("%s:c%d:t%d", req.Phase, req.CoreID, req.TileIndex))
	}
	cycles := m.cyclesPerTile
	if m.transferTiles[req.TileIndex] && req.NoC != nil {
		switch req.Phase {
		case PhasePriming:
			id := req.NoC.Post(req.LocalTime, m.transferSrc, req.CoreID, 64)
			req.Tracking.Record(req.CoreID, req.TileIndex, id, req.LocalTime)
		case PhaseActual:
			id, ok := req.Tracking.Lookup(req.CoreID, req.TileIndex)
			if !ok {
				return 0, fmt.Errorf("no transfer for core %d tile %d", req.CoreID, req.TileIndex)
			}
			lat, err := req.NoC.Latency(id)
			if err != nil {
				return 0, err
			}
			cycles += lat
		}
	}
	m.total += cycles
	return cycles, nil
}

func (m *stubMemory) Reset() {
	m.total = 0
	m.resets++
}

func (m *stubMemory) TotalCycles() int64 { return m.total }
func (m *stubMemory) StallCycles() int64 { return 0 }
func (m *stubMemory) Stats() MemoryStats { return MemoryStats{} }
func (m *stubMemory) Traces() MemoryTraces { return MemoryTraces{} }

// newTiledNode returns a computed node with tiles tiles of rowsPerTile
// demand rows each.
func newTiledNode(t *testing.T, part Partition, tiles, rowsPerTile int) *ComputeNode {
	t.Helper()
	rows := tiles * rowsPerTile
	node := NewComputeNode(part, ComputeSpec{ArrayRows: 1, ArrayCols: 1, Dataflow: DataflowOutputStationary})
	require.NoError(t, node.SetDemand(DemandSet{
		Ifmap:       testutil.SeqMatrix(rows, 1, 0),
		Filter:      testutil.SeqMatrix(rows, 1, 1000),
		Ofmap:       testutil.SeqMatrix(rows, 1, 2000),
		TilesIfmap:  tiles,
		TilesFilter: tiles,
		MACs:        int64(rows),
		Units:       1,
	}))
	return node
}

// gemmOperands returns ifmap (sr×t), filter (t×sc) and ofmap (sr×sc) with
// disjoint address ranges.
func gemmOperands(sr, t, sc int) OperandSet {
	return OperandSet{
		Ifmap:  testutil.SeqMatrix(sr, t, 0),
		Filter: testutil.SeqMatrix(t, sc, 10_000_000),
		Ofmap:  testutil.SeqMatrix(sr, sc, 20_000_000),
	}
}

func testMemoryConfig() MemoryConfig {
	return MemoryConfig{
		IfmapBufBytes:       64,
		FilterBufBytes:      64,
		OfmapBufBytes:       64,
		WordBytes:           1,
		IfmapBandwidth:      4,
		FilterBandwidth:     4,
		OfmapBandwidth:      4,
		BandwidthMode:       BandwidthEstimate,
		ReadActiveFraction:  1,
		WriteActiveFraction: 1,
		DRAMNode:            NoNode,
		UpstreamNode:        NoNode,
	}
}
