package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pnewstein/tf-permute/sim"
	"github.com/pnewstein/tf-permute/sim/native"
	"github.com/pnewstein/tf-permute/sim/parallel"
)

var (
	// CLI flags shared by run and continuous
	nCells      int     // Number of cells per trial
	nGenes      int     // Number of candidate genes per cell
	prob        float64 // Probability that a cell expresses a given gene
	seed        int64   // Master seed of the trial stream
	logLevel    string  // Log verbosity level
	presetName  string  // Named configuration from the presets file
	presetsPath string  // Path to the presets file
	nativePath  string  // Path to a native backend shared library

	// run
	resolution int // Number of trials in a finite run

	// continuous
	chunkSize     int    // Trials per chunk
	workers       int    // Concurrent chunks
	drainPolicy   string // abandon | wait
	maxChunks     uint64 // Stop after this many chunks (0 = until interrupted)
	progressEvery int64  // Log progress every N merged chunks (0 = never)
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "tf-permute",
	Short: "Monte-Carlo estimate of gene-expression collisions across cells",
}

// runCmd executes a finite, sequential run
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a fixed number of trials and print the histogram",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		applyPreset(cmd)

		cfg := sim.NewSimConfig(nCells, nGenes, prob, seed, resolution)
		if err := cfg.Validate(); err != nil {
			logrus.Fatalf("%v", err)
		}
		backend := selectBackend()
		defer closeBackend(backend)

		logrus.Infof("Starting run: n_cells=%d, n_genes=%d, prob=%v, seed=%d, resolution=%d, backend=%s",
			cfg.NCells, cfg.NGenes, cfg.Prob, cfg.Seed, cfg.Resolution, backendName(backend))
		startTime := time.Now()

		res, err := backend.Run(context.Background(), cfg.Seed, cfg.Prob, cfg.Resolution)
		if err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
		if err := writeReport(os.Stdout, newReport(cfg, backend, res, time.Since(startTime))); err != nil {
			logrus.Fatalf("Writing report: %v", err)
		}
		logrus.Info("Simulation complete.")
	},
}

// continuousCmd runs chunks in parallel until interrupted
var continuousCmd = &cobra.Command{
	Use:   "continuous",
	Short: "Run chunks in parallel until interrupted (Ctrl-C), then print the accumulated histogram",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		applyPreset(cmd)

		policy, ok := parallel.ValidDrainPolicies[drainPolicy]
		if !ok {
			logrus.Fatalf("Unknown drain policy %q (want abandon or wait)", drainPolicy)
		}
		backend := selectBackend()
		defer closeBackend(backend)

		ctrl, err := parallel.NewController(parallel.Config{
			NCells:    nCells,
			NGenes:    nGenes,
			Prob:      prob,
			Seed:      seed,
			ChunkSize: chunkSize,
			Workers:   workers,
			Drain:     policy,
			MaxChunks: maxChunks,
		}, backend)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if progressEvery > 0 {
			ctrl.OnMerge = func(r *sim.Result) {
				if r.Chunks%progressEvery == 0 {
					logrus.Infof("Progress: %d chunks, %d trials, avg zero-expression %.4f",
						r.Chunks, r.Trials, r.AverageZeroExpression())
				}
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		startTime := time.Now()
		res, err := ctrl.Run(ctx)
		if err != nil {
			logrus.Fatalf("Continuous run failed: %v", err)
		}
		eff := ctrl.Config()
		cfg := sim.NewSimConfig(eff.NCells, eff.NGenes, eff.Prob, eff.Seed, eff.ChunkSize)
		if err := writeReport(os.Stdout, newReport(cfg, backend, res, time.Since(startTime))); err != nil {
			logrus.Fatalf("Writing report: %v", err)
		}
	},
}

// presetsCmd lists the presets file
var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List named configurations in the presets file",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		cfg, err := loadPresetsConfig(presetsPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if err := writePresets(os.Stdout, cfg); err != nil {
			logrus.Fatalf("Writing presets: %v", err)
		}
	},
}

func setupLogging() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// applyPreset copies preset values into every flag the user did not set.
func applyPreset(cmd *cobra.Command) {
	if presetName == "" {
		return
	}
	p, err := GetPreset(presetsPath, presetName)
	if err != nil {
		logrus.Fatalf("%v", err)
	}
	logrus.Infof("Using preset %s", presetName)
	overridePreset(p, cmd.Flags().Changed)
}

func overridePreset(p Preset, changed func(string) bool) {
	if p.NCells != 0 && !changed("cells") {
		nCells = p.NCells
	}
	if p.NGenes != 0 && !changed("genes") {
		nGenes = p.NGenes
	}
	if p.Prob != 0 && !changed("prob") {
		prob = p.Prob
	}
	if p.Seed != 0 && !changed("seed") {
		seed = p.Seed
	}
	if p.Resolution != 0 && !changed("resolution") {
		resolution = p.Resolution
	}
	if p.ChunkSize != 0 && !changed("chunk-size") {
		chunkSize = p.ChunkSize
	}
}

// selectBackend opens --native if given and falls back to in-process when it
// is missing, unloadable or built for other dimensions.
func selectBackend() sim.Backend {
	if nativePath == "" {
		return sim.NewInProcessBackend(nCells, nGenes)
	}
	lib, err := native.Open(nativePath)
	if err != nil {
		logrus.Warnf("Native backend unavailable: %v", err)
		return sim.NewInProcessBackend(nCells, nGenes)
	}
	// SelectBackend closes lib itself when it is not chosen.
	return sim.SelectBackend(lib, nCells, nGenes, native.Reconfigurer(nativePath))
}

func closeBackend(b sim.Backend) {
	if lib, ok := b.(*native.Library); ok {
		if err := lib.Close(); err != nil {
			logrus.Warnf("Closing native backend: %v", err)
		}
	}
}

func backendName(b sim.Backend) string {
	if lib, ok := b.(*native.Library); ok {
		return "native:" + lib.Path()
	}
	return "in-process"
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&presetsPath, "presets", "presets.yaml", "Path to the presets file")

	for _, c := range []*cobra.Command{runCmd, continuousCmd} {
		c.Flags().IntVar(&nCells, "cells", 118, "Number of cells per trial")
		c.Flags().IntVar(&nGenes, "genes", 68, "Number of candidate genes per cell")
		c.Flags().Float64Var(&prob, "prob", 0.10269192422731803, "Probability that a cell expresses a given gene")
		c.Flags().Int64Var(&seed, "seed", 2132, "Master seed of the trial stream")
		c.Flags().StringVar(&presetName, "preset", "", "Named configuration from the presets file; explicit flags win")
		c.Flags().StringVar(&nativePath, "native", "", "Path to a native backend shared library (falls back to in-process)")
	}

	runCmd.Flags().IntVar(&resolution, "resolution", 100_000, "Number of trials")

	continuousCmd.Flags().IntVar(&chunkSize, "chunk-size", parallel.DefaultChunkSize, "Trials per chunk")
	continuousCmd.Flags().IntVar(&workers, "workers", 0, "Concurrent chunks (0 = number of CPUs)")
	continuousCmd.Flags().StringVar(&drainPolicy, "drain", "abandon", "In-flight chunks on interrupt: abandon or wait")
	continuousCmd.Flags().Uint64Var(&maxChunks, "max-chunks", 0, "Stop after this many chunks (0 = until interrupted)")
	continuousCmd.Flags().Int64Var(&progressEvery, "progress-every", 10, "Log progress every N merged chunks (0 = never)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(continuousCmd)
	rootCmd.AddCommand(presetsCmd)
}
