package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/inference-sim/nocsim/sim"
)

// printCoreTable renders one layer's per-core figures.
func printCoreTable(w io.Writer, rep *sim.LayerReport) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("Layer %d %s (%s)", rep.LayerID, rep.Name, rep.Strategy))
	t.AppendHeader(table.Row{
		"Core", "Cycles", "Stalls", "Util %", "Mapping %", "Compute %",
		"SRAM BW (I/F/O)", "DRAM Reads (I/F)", "DRAM Writes", "DRAM BW (I/F/O)",
	})
	for _, c := range rep.Cores {
		t.AppendRow(table.Row{
			c.CoreID,
			c.TotalCycles,
			c.StallCycles,
			fmt.Sprintf("%.2f", c.OverallUtil),
			fmt.Sprintf("%.2f", c.MappingEfficiency),
			fmt.Sprintf("%.2f", c.ComputeUtil),
			fmt.Sprintf("%.2f/%.2f/%.2f", c.AvgIfmapSRAMBW, c.AvgFilterSRAMBW, c.AvgOfmapSRAMBW),
			fmt.Sprintf("%d/%d", c.IfmapDRAMReads, c.FilterDRAMReads),
			c.OfmapDRAMWrites,
			fmt.Sprintf("%.2f/%.2f/%.2f", c.AvgIfmapDRAMBW, c.AvgFilterDRAMBW, c.AvgOfmapDRAMBW),
		})
	}
	t.AppendFooter(table.Row{"", rep.CompletionTime, rep.TotalStalls, fmt.Sprintf("%.2f", rep.MeanUtil)})
	t.Render()
}

// printSummary renders one row per layer plus the network totals.
func printSummary(w io.Writer, rep *sim.PipelineReport) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("Network summary (mode %s)", rep.Mode))
	t.AppendHeader(table.Row{"Layer", "Name", "Cores", "Completion", "Stalls", "Mean Util %", "Peak Util %", "NoC Transfers"})
	for _, l := range rep.Layers {
		t.AppendRow(table.Row{
			l.LayerID,
			l.Name,
			len(l.Cores),
			l.CompletionTime,
			l.TotalStalls,
			fmt.Sprintf("%.2f", l.MeanUtil),
			fmt.Sprintf("%.2f", l.PeakUtil),
			l.Transfers,
		})
	}
	t.AppendFooter(table.Row{"Total", "", "", rep.TotalCycles, "", "", "Bottleneck", rep.Bottleneck})
	t.Render()
}

// printReport writes every layer table followed by the summary.
func printReport(w io.Writer, rep *sim.PipelineReport) {
	for _, l := range rep.Layers {
		printCoreTable(w, l)
		fmt.Fprintln(w)
	}
	printSummary(w, rep)
}

// runResults is the JSON document written by --results.
type runResults struct {
	Config   string              `json:"config"`
	Complete bool                `json:"complete"`
	Report   *sim.PipelineReport `json:"report"`
}

func saveResults(path string, res runResults) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}
