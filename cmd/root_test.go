package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/nocsim/sim"
	"github.com/inference-sim/nocsim/sim/trace"
)

const twoLayerConfig = `
architecture:
  num_cores: 4
  array_rows: 4
  array_cols: 4
memory:
  ifmap_sram_kb: 1
  filter_sram_kb: 1
  ofmap_sram_kb: 1
noc:
  link_bandwidth: 4
partitions:
  num_input: 2
  num_filter: 2
layers:
  - name: conv1
    ifmap_h: 6
    ifmap_w: 6
    filter_h: 3
    filter_w: 3
    channels: 2
    num_filters: 4
    stride: 1
  - name: fc
    ifmap_h: 8
    ifmap_w: 1
    filter_h: 1
    filter_w: 1
    channels: 16
    num_filters: 8
    stride: 1
`

func loadTestConfig(t *testing.T, extra string) *Config {
	t.Helper()
	cfg, err := ParseConfig([]byte(twoLayerConfig + extra))
	require.NoError(t, err)
	return cfg
}

func TestRunNetwork_LayerSharded(t *testing.T) {
	for _, strategy := range []string{"local", "noc-aware"} {
		t.Run(strategy, func(t *testing.T) {
			// GIVEN a two-layer network sharded over four cores
			cfg := loadTestConfig(t, "")
			cfg.Execution.Strategy = strategy

			// WHEN it is simulated
			var seen []int
			rep, err := runNetwork(cfg, runOptions{OnLayer: func(l *sim.LayerReport) {
				seen = append(seen, l.LayerID)
			}})

			// THEN both layers run in order on every core
			require.NoError(t, err)
			assert.Equal(t, []int{0, 1}, seen)
			require.Len(t, rep.Layers, 2)
			for _, l := range rep.Layers {
				assert.Equal(t, strategy, l.Strategy)
				assert.Len(t, l.Cores, 4)
				assert.Positive(t, l.CompletionTime)
			}
			assert.Equal(t, rep.Layers[0].CompletionTime+rep.Layers[1].CompletionTime, rep.TotalCycles)
		})
	}
}

func TestRunNetwork_Deterministic(t *testing.T) {
	cfg := loadTestConfig(t, "execution:\n  mode: lp\n")

	first, err := runNetwork(cfg, runOptions{})
	require.NoError(t, err)
	second, err := runNetwork(cfg, runOptions{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRunNetwork_WritesTraces(t *testing.T) {
	// GIVEN a traces directory
	dir := t.TempDir()
	cfg := loadTestConfig(t, "")

	// WHEN the network runs
	_, err := runNetwork(cfg, runOptions{TracesDir: dir})
	require.NoError(t, err)

	// THEN every core of every layer has all six files
	w := trace.Writer{Root: dir}
	for layer := 0; layer < 2; layer++ {
		for core := 0; core < 4; core++ {
			for _, kind := range trace.Kinds {
				path := filepath.Join(w.CoreDir(layer, core), string(kind)+".csv")
				assert.FileExists(t, path)
			}
		}
	}
	data, err := os.ReadFile(filepath.Join(w.CoreDir(0, 0), string(trace.IfmapSRAM)+".csv"))
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestRunNetwork_NoTracesWithoutDirectory(t *testing.T) {
	cfg := loadTestConfig(t, "")
	cwd := t.TempDir()
	t.Chdir(cwd)

	_, err := runNetwork(cfg, runOptions{})
	require.NoError(t, err)

	entries, err := os.ReadDir(cwd)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPrintReport_ContainsLayersAndTotals(t *testing.T) {
	cfg := loadTestConfig(t, "")
	rep, err := runNetwork(cfg, runOptions{})
	require.NoError(t, err)

	var buf bytes.Buffer
	printReport(&buf, rep)

	out := strings.ToUpper(buf.String())
	assert.Contains(t, out, "LAYER 0 CONV1")
	assert.Contains(t, out, "LAYER 1 FC")
	assert.Contains(t, out, "NETWORK SUMMARY")
	assert.Contains(t, out, "BOTTLENECK")
}

func TestSaveResults_RoundTripsReport(t *testing.T) {
	cfg := loadTestConfig(t, "")
	rep, err := runNetwork(cfg, runOptions{})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, saveResults(path, runResults{Config: "run.yaml", Complete: true, Report: rep}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got runResults
	require.NoError(t, json.Unmarshal(data, &got))
	assert.True(t, got.Complete)
	assert.Equal(t, "run.yaml", got.Config)
	assert.Equal(t, rep.TotalCycles, got.Report.TotalCycles)
	assert.Len(t, got.Report.Layers, 2)
}

func TestSaveResults_BadPath(t *testing.T) {
	err := saveResults(filepath.Join(t.TempDir(), "missing", "results.json"), runResults{})
	assert.ErrorContains(t, err, "write results")
}
