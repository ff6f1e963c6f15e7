// Package memory provides the double-buffered scratchpad implementation of
// sim.MemorySystem.
package memory

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/nocsim/sim"
)

// Scratchpad models one core's ifmap, filter and ofmap scratchpads, each
// split in two halves so that the next tile's fill overlaps the current
// tile's compute.
//
// Timing of a tile:
//   - compute takes one cycle per demand row
//   - read misses are filled from DRAM (or the upstream core when DRAM reads
//     are skipped); the fill overlaps the previous tile's compute and any
//     excess stalls the core
//   - output writes collect in the write half and drain when it fills or at
//     the last tile; a drain that cannot start because the previous one is
//     still busy stalls the core
type Scratchpad struct {
	cfg   sim.MemoryConfig
	sched *sim.PrefetchSchedule

	ifmap  *readBuffer
	filter *readBuffer
	ofmap  *writeBuffer

	prevCompute int64 // compute rows of the previous tile, available for overlap
	totalCycles int64
	stallCycles int64
	stats       sim.MemoryStats
	traces      sim.MemoryTraces
}

// NewScratchpad validates cfg and returns an empty scratchpad.
func NewScratchpad(cfg sim.MemoryConfig) (*Scratchpad, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Scratchpad{
		cfg:    cfg,
		ifmap:  newReadBuffer(halfWords(cfg.IfmapBufBytes, cfg.WordBytes, cfg.ReadActiveFraction)),
		filter: newReadBuffer(halfWords(cfg.FilterBufBytes, cfg.WordBytes, cfg.ReadActiveFraction)),
		ofmap:  newWriteBuffer(halfWords(cfg.OfmapBufBytes, cfg.WordBytes, cfg.WriteActiveFraction)),
	}
	s.Reset()
	return s, nil
}

// halfWords is the usable word capacity of one half of a double buffer.
func halfWords(bytes, wordBytes int64, activeFrac float64) int {
	return int(float64(bytes/wordBytes/2) * activeFrac)
}

func (s *Scratchpad) SetPrefetchSchedule(sched sim.PrefetchSchedule) error {
	if len(sched.Ifmap) != len(sched.Filter) {
		return fmt.Errorf("prefetch schedule: ifmap has %d tiles, filter has %d", len(sched.Ifmap), len(sched.Filter))
	}
	s.sched = &sched
	return nil
}

// Reset clears counters, buffer contents and traces. Configuration and the
// prefetch schedule are kept.
func (s *Scratchpad) Reset() {
	s.ifmap.reset()
	s.filter.reset()
	s.ofmap.reset()
	s.prevCompute = 0
	s.totalCycles = 0
	s.stallCycles = 0
	s.stats = sim.MemoryStats{
		Ifmap:  sim.OperandStats{SRAMWindow: sim.EmptyWindow(), DRAMWindow: sim.EmptyWindow()},
		Filter: sim.OperandStats{SRAMWindow: sim.EmptyWindow(), DRAMWindow: sim.EmptyWindow()},
		Ofmap:  sim.OperandStats{SRAMWindow: sim.EmptyWindow(), DRAMWindow: sim.EmptyWindow()},
	}
	s.traces = sim.MemoryTraces{}
}

// ServiceTile processes one tile. Panics in USER bandwidth mode if no
// prefetch schedule was supplied.
func (s *Scratchpad) ServiceTile(req sim.TileRequest) (int64, error) {
	if s.cfg.BandwidthMode == sim.BandwidthUser && s.sched == nil {
		panic("Scratchpad: USER bandwidth mode requires a prefetch schedule")
	}
	compute := int64(req.Ifmap.Rows())

	ifmapMiss := s.ifmap.misses(req.Ifmap)
	filterMiss := s.filter.misses(req.Filter)

	backing, err := s.backingFillCycles(req.TileIndex, len(ifmapMiss), len(filterMiss))
	if err != nil {
		return 0, err
	}
	fill, err := s.fillLatency(req, backing, len(ifmapMiss), len(filterMiss))
	if err != nil {
		return 0, err
	}

	readStall := max(fill-s.prevCompute, 0)
	start := req.LocalTime + readStall // first compute cycle of the tile
	fillStart := max(start-fill, req.LocalTime-s.prevCompute, 0)
	s.recordFill(ifmapMiss, filterMiss, fillStart, fill, req.Phase)

	s.recordSRAM(req, start)

	writeStall := s.serviceWrites(req, start, compute)

	stall := readStall + writeStall
	cycles := compute + stall
	s.prevCompute = compute
	s.totalCycles += cycles
	s.stallCycles += stall
	logrus.Tracef("[core %d tile %d %s] compute=%d fill=%d stall=%d", req.CoreID, req.TileIndex, req.Phase, compute, fill, stall)
	return cycles, nil
}

// backingFillCycles is the time the backing store needs to supply the tile's
// read misses. The two read interfaces work in parallel.
func (s *Scratchpad) backingFillCycles(tile, ifmapMiss, filterMiss int) (int64, error) {
	if s.cfg.BandwidthMode == sim.BandwidthUser {
		if tile >= len(s.sched.Ifmap) {
			return 0, fmt.Errorf("prefetch schedule covers %d tiles, tile %d requested", len(s.sched.Ifmap), tile)
		}
		var ifmapCycles, filterCycles int64
		if ifmapMiss > 0 {
			ifmapCycles = s.sched.Ifmap[tile]
		}
		if filterMiss > 0 {
			filterCycles = s.sched.Filter[tile]
		}
		return max(ifmapCycles, filterCycles), nil
	}
	return max(transferCycles(ifmapMiss, s.cfg.IfmapBandwidth), transferCycles(filterMiss, s.cfg.FilterBandwidth)), nil
}

// fillLatency combines backing-store time with NoC delivery. In the priming
// phase the fill is posted and the backing estimate stands in for the
// unresolved network latency. In the actual phase the fill takes
// max(backing, network latency); ServiceTile overlaps it with the previous
// tile's compute, so only the part of the network latency that compute does
// not cover becomes stall.
func (s *Scratchpad) fillLatency(req sim.TileRequest, backing int64, ifmapMiss, filterMiss int) (int64, error) {
	if req.NoC == nil {
		return backing, nil
	}
	src, words := s.fillSource(ifmapMiss, filterMiss)
	if words == 0 || src == sim.NoNode || src == req.CoreID {
		return backing, nil
	}

	if req.Phase == sim.PhasePriming {
		id := req.NoC.Post(req.LocalTime, src, req.CoreID, int64(words)*s.cfg.WordBytes)
		req.Tracking.Record(req.CoreID, req.TileIndex, id, req.LocalTime)
		return backing, nil
	}

	id, ok := req.Tracking.Lookup(req.CoreID, req.TileIndex)
	if !ok {
		return 0, fmt.Errorf("no transfer recorded for core %d tile %d", req.CoreID, req.TileIndex)
	}
	lat, err := req.NoC.Latency(id)
	if err != nil {
		return 0, fmt.Errorf("core %d tile %d: %w", req.CoreID, req.TileIndex, err)
	}
	if posted, ok := req.Tracking.PushedInTime(req.CoreID, req.TileIndex); ok {
		logrus.Tracef("[mem core %d] tile %d transfer %d posted at %d, replayed at %d, latency %d",
			req.CoreID, req.TileIndex, id, posted, req.LocalTime, lat)
	}
	return max(backing, lat), nil
}

// fillSource returns the node that supplies this tile's fill and the number
// of words carried over the network.
func (s *Scratchpad) fillSource(ifmapMiss, filterMiss int) (int, int) {
	if !s.cfg.SkipDRAMReads {
		return s.cfg.DRAMNode, ifmapMiss + filterMiss
	}
	if s.cfg.UpstreamNode != sim.NoNode && ifmapMiss > 0 {
		return s.cfg.UpstreamNode, ifmapMiss + filterMiss
	}
	return s.cfg.DRAMNode, filterMiss
}

func (s *Scratchpad) recordFill(ifmapMiss, filterMiss []int64, fillStart, fill int64, phase sim.Phase) {
	fillStop := fillStart + max(fill, 1) - 1
	if len(ifmapMiss) > 0 && !s.cfg.SkipDRAMReads {
		s.stats.Ifmap.DRAMAccesses += int64(len(ifmapMiss))
		s.stats.Ifmap.DRAMWindow = s.stats.Ifmap.DRAMWindow.Extend(fillStart, fillStop)
		if s.cfg.RecordTraces && phase == sim.PhaseActual {
			s.traces.IfmapDRAM = append(s.traces.IfmapDRAM, sim.TraceRow{Cycle: fillStart, Addrs: ifmapMiss})
		}
	}
	if len(filterMiss) > 0 {
		s.stats.Filter.DRAMAccesses += int64(len(filterMiss))
		s.stats.Filter.DRAMWindow = s.stats.Filter.DRAMWindow.Extend(fillStart, fillStop)
		if s.cfg.RecordTraces && phase == sim.PhaseActual {
			s.traces.FilterDRAM = append(s.traces.FilterDRAM, sim.TraceRow{Cycle: fillStart, Addrs: filterMiss})
		}
	}
}

func (s *Scratchpad) recordSRAM(req sim.TileRequest, start int64) {
	trace := s.cfg.RecordTraces && req.Phase == sim.PhaseActual
	recordOperand(&s.stats.Ifmap, &s.traces.IfmapSRAM, req.Ifmap, start, trace)
	recordOperand(&s.stats.Filter, &s.traces.FilterSRAM, req.Filter, start, trace)
	recordOperand(&s.stats.Ofmap, &s.traces.OfmapSRAM, req.Ofmap, start, trace)
}

func recordOperand(st *sim.OperandStats, rows *[]sim.TraceRow, demand sim.DemandMatrix, start int64, trace bool) {
	for i, row := range demand {
		n := 0
		for _, addr := range row {
			if addr != sim.NoAccess {
				n++
			}
		}
		if n == 0 {
			continue
		}
		cycle := start + int64(i)
		st.SRAMAccesses += int64(n)
		st.SRAMWindow = st.SRAMWindow.Extend(cycle, cycle)
		if trace {
			*rows = append(*rows, sim.TraceRow{Cycle: cycle, Addrs: row})
		}
	}
}

// serviceWrites buffers the tile's output writes and drains the write half
// when it fills, or unconditionally on the last tile. Returns write stalls.
func (s *Scratchpad) serviceWrites(req sim.TileRequest, start, compute int64) int64 {
	for _, row := range req.Ofmap {
		for _, addr := range row {
			if addr != sim.NoAccess {
				s.ofmap.pending = append(s.ofmap.pending, addr)
			}
		}
	}
	end := start + compute // cycle after the tile's last compute row

	var stall int64
	if len(s.ofmap.pending) >= s.ofmap.threshold {
		stall += s.drain(end, req.Phase)
	}
	if req.LastTile && len(s.ofmap.pending) > 0 {
		stall += s.drain(end+stall, req.Phase)
	}
	if req.LastTile {
		// the core is done only once every drain has landed
		stall += max(s.ofmap.busyUntil-(end+stall), 0)
	}
	return stall
}

// drain empties the pending writes starting no earlier than at. Returns the
// stall incurred waiting for the previous drain to finish.
func (s *Scratchpad) drain(at int64, phase sim.Phase) int64 {
	words := s.ofmap.pending
	begin := max(at, s.ofmap.busyUntil)
	stall := begin - at

	var cost int64
	if !s.cfg.SkipDRAMWrites {
		cost = transferCycles(len(words), s.cfg.OfmapBandwidth)
		s.stats.Ofmap.DRAMAccesses += int64(len(words))
		s.stats.Ofmap.DRAMWindow = s.stats.Ofmap.DRAMWindow.Extend(begin, begin+max(cost, 1)-1)
		if s.cfg.RecordTraces && phase == sim.PhaseActual {
			s.traces.OfmapDRAM = append(s.traces.OfmapDRAM, sim.TraceRow{Cycle: begin, Addrs: append([]int64(nil), words...)})
		}
	}
	s.ofmap.busyUntil = begin + cost
	s.ofmap.pending = s.ofmap.pending[:0]
	return stall
}

func transferCycles(words int, bandwidth float64) int64 {
	if words == 0 {
		return 0
	}
	return int64(math.Ceil(float64(words) / bandwidth))
}

func (s *Scratchpad) TotalCycles() int64 { return s.totalCycles }
func (s *Scratchpad) StallCycles() int64 { return s.stallCycles }
func (s *Scratchpad) Stats() sim.MemoryStats { return s.stats }
func (s *Scratchpad) Traces() sim.MemoryTraces { return s.traces }
