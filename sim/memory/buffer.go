package memory

import "github.com/inference-sim/nocsim/sim"

// readBuffer tracks which addresses are resident in the active half of a
// double-buffered read scratchpad. Replacement is FIFO.
type readBuffer struct {
	capacity int
	resident map[int64]struct{}
	order    []int64 // ring of resident addresses in insertion order
	head     int
}

func newReadBuffer(capacity int) *readBuffer {
	return &readBuffer{
		capacity: max(capacity, 1),
		resident: make(map[int64]struct{}),
	}
}

// misses returns the distinct addresses of the tile that are not resident, in
// first-touch order, and installs them.
func (b *readBuffer) misses(demand sim.DemandMatrix) []int64 {
	var out []int64
	seen := make(map[int64]struct{})
	for _, row := range demand {
		for _, addr := range row {
			if addr == sim.NoAccess {
				continue
			}
			if _, ok := seen[addr]; ok {
				continue
			}
			seen[addr] = struct{}{}
			if _, ok := b.resident[addr]; ok {
				continue
			}
			out = append(out, addr)
			b.install(addr)
		}
	}
	return out
}

func (b *readBuffer) install(addr int64) {
	if len(b.order) < b.capacity {
		b.order = append(b.order, addr)
		b.resident[addr] = struct{}{}
		return
	}
	delete(b.resident, b.order[b.head])
	b.order[b.head] = addr
	b.resident[addr] = struct{}{}
	b.head = (b.head + 1) % b.capacity
}

func (b *readBuffer) reset() {
	b.resident = make(map[int64]struct{})
	b.order = b.order[:0]
	b.head = 0
}

// writeBuffer accumulates output writes in the active half of a
// double-buffered write scratchpad until a drain.
type writeBuffer struct {
	threshold int
	pending   []int64
	busyUntil int64 // cycle at which the previous drain completes
}

func newWriteBuffer(threshold int) *writeBuffer {
	return &writeBuffer{threshold: max(threshold, 1)}
}

func (b *writeBuffer) reset() {
	b.pending = b.pending[:0]
	b.busyUntil = 0
}
