package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/inference-sim/nocsim/sim"
	_ "github.com/inference-sim/nocsim/sim/compute" // registers the systolic compute unit
	_ "github.com/inference-sim/nocsim/sim/memory"  // registers the scratchpad memory system
	_ "github.com/inference-sim/nocsim/sim/noc"     // registers mesh, ring and ideal NoCs
	"github.com/inference-sim/nocsim/sim/trace"
)

var (
	configPath   string // YAML run configuration
	logLevel     string // Log verbosity level
	modeFlag     string // Overrides execution.mode
	strategyFlag string // Overrides execution.strategy
	tracesDir    string // Root directory for per-core CSV traces; empty disables tracing
	resultsPath  string // JSON results file; empty disables
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "nocsim",
	Short: "NoC-aware latency estimator for tiled multi-core accelerators",
}

func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// runCmd simulates every layer of the configured network
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Simulate every layer of a network configuration",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		if configPath == "" {
			logrus.Fatalf("No config provided; pass --config <file.yaml>")
		}
		cfg, err := LoadConfig(configPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		// Flags override the file only when set explicitly.
		if cmd.Flags().Changed("mode") {
			cfg.Execution.Mode = modeFlag
		}
		if cmd.Flags().Changed("strategy") {
			cfg.Execution.Strategy = strategyFlag
		}
		if err := cfg.Validate(); err != nil {
			logrus.Fatalf("%v", err)
		}

		logrus.Infof("Starting %s run of %d layers on %d cores (%s)",
			cfg.Execution.Strategy, len(cfg.Layers), cfg.Architecture.NumCores, cfg.Execution.Mode)

		// Results are flushed at exit so that layers finished before a fatal
		// error are still recorded.
		progress := &sim.PipelineReport{Mode: sim.ExecutionMode(cfg.Execution.Mode)}
		complete := false
		if resultsPath != "" {
			atexit.Register(func() {
				if err := saveResults(resultsPath, runResults{Config: configPath, Complete: complete, Report: progress}); err != nil {
					logrus.Errorf("%v", err)
					return
				}
				logrus.Infof("Results written to %s", resultsPath)
			})
		}

		rep, err := runNetwork(cfg, runOptions{
			TracesDir: tracesDir,
			OnLayer: func(l *sim.LayerReport) {
				progress.Layers = append(progress.Layers, l)
			},
		})
		if err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
		progress, complete = rep, true

		printReport(os.Stdout, rep)
		logrus.Info("Simulation complete.")
	},
}

type runOptions struct {
	TracesDir string
	OnLayer   func(*sim.LayerReport) // called after each layer, before the next starts
}

// runNetwork builds operands, the NoC and the pipeline from cfg and runs it.
func runNetwork(cfg *Config, opts runOptions) (*sim.PipelineReport, error) {
	strategy, err := ParseStrategy(cfg.Execution.Strategy)
	if err != nil {
		return nil, err
	}
	layers, err := cfg.BuildLayers()
	if err != nil {
		return nil, err
	}

	var noc sim.NoC
	if strategy == sim.StrategyNoCAware {
		if noc, err = sim.NewNoC(cfg.NetworkConfig()); err != nil {
			return nil, err
		}
	}

	p := sim.NewPipeline(sim.PipelineConfig{
		NumCores:       cfg.Architecture.NumCores,
		Strategy:       strategy,
		Memory:         cfg.MemoryConfig(opts.TracesDir != ""),
		SkipDRAMReads:  cfg.Execution.SkipDRAMReads,
		SkipDRAMWrites: cfg.Execution.SkipDRAMWrites,
		Partitions:     cfg.PartitionSource(),
		SIMDLanes:      cfg.Architecture.SIMDLanes,
	}, noc)

	writer := trace.Writer{Root: opts.TracesDir}
	p.OnLayer = func(ls *sim.LayerSim, rep *sim.LayerReport) error {
		if opts.TracesDir != "" {
			first := ls.Config().FirstCore
			if err := writer.WriteLayer(rep.LayerID, first, ls.Memories()); err != nil {
				return err
			}
			for i, m := range ls.Memories() {
				for kind, s := range trace.Summarize(m.Traces()).ByKind {
					logrus.Debugf("[layer %d core %d] %s: %d rows, %d accesses, cycles %d-%d",
						rep.LayerID, first+i, kind, s.Rows, s.Accesses, s.FirstCycle, s.LastCycle)
				}
			}
		}
		if opts.OnLayer != nil {
			opts.OnLayer(rep)
		}
		return nil
	}
	return p.Run(sim.ExecutionMode(cfg.Execution.Mode), layers)
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		atexit.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	// logrus.Fatal exits through atexit so registered flushes still run.
	logrus.StandardLogger().ExitFunc = atexit.Exit

	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML run configuration")

	runCmd.Flags().StringVar(&modeFlag, "mode", string(sim.ModeLayerSharded), "Execution mode: ls (layer-sharded) or lp (layer-pipelined)")
	runCmd.Flags().StringVar(&strategyFlag, "strategy", sim.StrategyNoCAware.String(), "Scheduling strategy: local or noc-aware")
	runCmd.Flags().StringVar(&tracesDir, "traces-dir", "", "Write per-core SRAM/DRAM access traces under this directory")
	runCmd.Flags().StringVar(&resultsPath, "results", "", "Write JSON results to this file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(staticLatencyCmd)
}
