package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sparsefield/internal/monitoring"
	"sparsefield/pkg/config"
	"sparsefield/pkg/grid"
	"sparsefield/pkg/levelset"
	"sparsefield/pkg/snapshot"
	"sparsefield/pkg/solver"
	"sparsefield/pkg/speed"
	"sparsefield/pkg/visualization"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "sparsefield.yaml", "YAML configuration file (defaults are used when missing)")
	initConfig := flag.Bool("init-config", false, "Write the default configuration to -config and exit")
	outputPath := flag.String("output", "", "Snapshot file (overrides output.snapshotPath)")
	slicesDir := flag.String("slices-dir", "", "Directory to save slices of the final field (overrides output.slicesDir)")
	plotPath := flag.String("plot", "", "Iteration history plot (overrides output.plotPath)")
	numWorkers := flag.Int("workers", 0, "Workers per phase (overrides solver.numWorkers)")
	maxIterations := flag.Int("iterations", -1, "Iteration limit (overrides driver.maxIterations)")
	validate := flag.Bool("validate", false, "Check band invariants after every iteration")
	metricsAddr := flag.String("metrics-addr", "", "Serve prometheus metrics on this address, e.g. :9100")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write default config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *outputPath != "" {
		cfg.Output.SnapshotPath = *outputPath
	}
	if *slicesDir != "" {
		cfg.Output.SlicesDir = *slicesDir
	}
	if *plotPath != "" {
		cfg.Output.PlotPath = *plotPath
	}
	if *numWorkers > 0 {
		cfg.Solver.NumWorkers = *numWorkers
	}
	if *maxIterations >= 0 {
		cfg.Driver.MaxIterations = *maxIterations
	}
	if !cfg.Output.Verbose {
		monitoring.SetLogger(nil)
	}

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("Warning: metrics server stopped: %v", err)
			}
		}()
	}

	fmt.Println("================================")
	fmt.Println("SPARSE-FIELD LEVEL SET EVOLUTION")
	fmt.Println("================================")

	// Seed the initial field
	img, err := grid.New(cfg.Grid.Size...)
	if err != nil {
		log.Fatalf("Failed to allocate grid: %v", err)
	}
	if err := solver.Seed(img, cfg.Grid.Shape, cfg.Grid.Center, cfg.Grid.Radius, cfg.Grid.Lo, cfg.Grid.Hi); err != nil {
		log.Fatalf("Failed to seed grid: %v", err)
	}

	sp := speed.Speed{Propagation: cfg.Speed.Propagation, Curvature: cfg.Speed.Curvature, CFL: cfg.Speed.CFL}
	if err := sp.Validate(); err != nil {
		log.Fatalf("Invalid speed settings: %v", err)
	}
	filter, err := levelset.New(img, sp, cfg.Levelset())
	if err != nil {
		log.Fatalf("Failed to create filter: %v", err)
	}

	s := solver.NewSolver(filter, solver.Params{
		MaxIterations: cfg.Driver.MaxIterations,
		RMSTolerance:  cfg.Driver.RMSTolerance,
		Verbose:       cfg.Output.Verbose,
		Validate:      *validate,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("Evolving %v grid with %d workers, %d layers...\n", cfg.Grid.Size, cfg.Solver.NumWorkers, cfg.Solver.NumberOfLayers)
	startTime := time.Now()
	report, err := s.Run(ctx)
	if err != nil {
		log.Fatalf("Evolution failed: %v", err)
	}
	processingTime := time.Since(startTime)

	fmt.Printf("\nRun %s finished in %.2f seconds (%s)\n", report.RunID, processingTime.Seconds(), report.Stop)
	fmt.Printf("Iterations: %d\n", len(report.Iterations))
	fmt.Printf("Mean time step: %.4f\n", report.MeanTimeStep)
	fmt.Printf("Mean RMS change: %.6f\n", report.MeanRMSChange)
	fmt.Printf("Final active layer: %d pixels\n", report.FinalActive)
	ps := filter.PoolStats()
	fmt.Printf("Node pools: %d live, %d free, %d of %d grown past preallocation\n", ps.Live, ps.Free, ps.Grown, ps.Pools)

	if cfg.Output.SnapshotPath != "" {
		snap := snapshot.FromFilter(uuid.MustParse(report.RunID), len(report.Iterations), filter)
		if err := snapshot.Write(snap, cfg.Output.SnapshotPath); err != nil {
			log.Fatalf("Failed to write snapshot: %v", err)
		}
		fmt.Printf("Snapshot saved to: %s\n", cfg.Output.SnapshotPath)
	}

	if cfg.Output.PlotPath != "" && len(report.Iterations) > 0 {
		if err := visualization.PlotHistory(report.Iterations, cfg.Output.PlotPath); err != nil {
			log.Printf("Warning: Failed to plot history: %v", err)
		} else {
			fmt.Printf("History plots saved to: %s, %s\n", cfg.Output.PlotPath, visualization.ActivePlotPath(cfg.Output.PlotPath))
		}
	}

	if cfg.Output.SlicesDir != "" {
		fmt.Println("\nExtracting slices along all axes...")
		viewer, err := visualization.NewViewer(s.Volume(), cfg.Solver.DifferenceFactor*float64(cfg.Solver.NumberOfLayers))
		if err != nil {
			log.Fatalf("Failed to create viewer: %v", err)
		}
		fmt.Printf("Inside fraction: %.4f\n", viewer.InsideFraction())
		for _, axis := range []string{"x", "y", "z"} {
			axisDir := filepath.Join(cfg.Output.SlicesDir, axis)
			fmt.Printf("Saving %s-axis slices to: %s\n", axis, axisDir)
			if err := viewer.SaveSliceSequence(axis, axisDir); err != nil {
				log.Printf("Warning: Failed to save %s-axis slices: %v", axis, err)
			}
		}
		fmt.Println("Slice extraction completed!")
	}
}
