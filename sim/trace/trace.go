// Package trace writes per-core scratchpad and DRAM access traces as CSV.
// Each row is "cycle, addr0, addr1, ...", with idle lanes written as -1.
package trace

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/nocsim/sim"
)

// Kind names one of the six trace files kept per core.
type Kind string

const (
	IfmapSRAM  Kind = "IFMAP_SRAM_TRACE"
	FilterSRAM Kind = "FILTER_SRAM_TRACE"
	OfmapSRAM  Kind = "OFMAP_SRAM_TRACE"
	IfmapDRAM  Kind = "IFMAP_DRAM_TRACE"
	FilterDRAM Kind = "FILTER_DRAM_TRACE"
	OfmapDRAM  Kind = "OFMAP_DRAM_TRACE"
)

// Kinds lists every trace file in write order.
var Kinds = []Kind{IfmapSRAM, FilterSRAM, OfmapSRAM, IfmapDRAM, FilterDRAM, OfmapDRAM}

// Rows selects the rows of kind from a memory system's traces.
func Rows(t sim.MemoryTraces, kind Kind) []sim.TraceRow {
	switch kind {
	case IfmapSRAM:
		return t.IfmapSRAM
	case FilterSRAM:
		return t.FilterSRAM
	case OfmapSRAM:
		return t.OfmapSRAM
	case IfmapDRAM:
		return t.IfmapDRAM
	case FilterDRAM:
		return t.FilterDRAM
	case OfmapDRAM:
		return t.OfmapDRAM
	}
	panic(fmt.Sprintf("trace: unknown kind %q", kind))
}

// Writer lays traces out under Root as traces/layer<L>/core<C>/<KIND>.csv.
type Writer struct {
	Root string
}

// CoreDir returns the directory holding one core's traces for a layer.
func (w Writer) CoreDir(layerID, coreID int) string {
	return filepath.Join(w.Root, "traces", fmt.Sprintf("layer%d", layerID), fmt.Sprintf("core%d", coreID))
}

// WriteCore writes all six trace files for one core. A core with no recorded
// rows writes nothing.
func (w Writer) WriteCore(layerID, coreID int, traces sim.MemoryTraces) error {
	if Empty(traces) {
		return nil
	}
	dir := w.CoreDir(layerID, coreID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create trace directory: %w", err)
	}
	for _, kind := range Kinds {
		path := filepath.Join(dir, string(kind)+".csv")
		if err := writeCSV(path, Rows(traces, kind)); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	logrus.Debugf("wrote traces for layer %d core %d to %s", layerID, coreID, dir)
	return nil
}

// WriteLayer writes the traces of every core of a simulated layer. Cores are
// numbered from firstCore.
func (w Writer) WriteLayer(layerID, firstCore int, mems []sim.MemorySystem) error {
	for i, m := range mems {
		if err := w.WriteCore(layerID, firstCore+i, m.Traces()); err != nil {
			return err
		}
	}
	return nil
}

// Empty reports whether no trace rows were recorded.
func Empty(t sim.MemoryTraces) bool {
	for _, kind := range Kinds {
		if len(Rows(t, kind)) > 0 {
			return false
		}
	}
	return true
}

func writeCSV(path string, rows []sim.TraceRow) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	cw := csv.NewWriter(f)
	for _, row := range rows {
		rec := make([]string, 0, len(row.Addrs)+1)
		rec = append(rec, strconv.FormatInt(row.Cycle, 10))
		for _, addr := range row.Addrs {
			rec = append(rec, strconv.FormatInt(addr, 10))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
