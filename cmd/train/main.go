// anneal-train: builds a feed-forward network and trains it by annealed random search
//
// Usage:
//
//	anneal-train --arch="2 2 1" --activation=relu --iterations=300 --population=100
//	anneal-train --arch="2 4 1" --data=examples.csv --workers=8 --seed=42
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"os/signal"
	"time"

	"gonum.org/v1/gonum/stat"

	"annealnet/neuron"
	"annealnet/nn"
	"annealnet/parallel"
	"annealnet/utils"
)

var (
	archFlag    = flag.String("arch", "2 2 1", "Layer sizes: inputs, hidden layers..., outputs")
	aggregation = flag.String("aggregation", "sum", "Neuron aggregation: sum")
	activation  = flag.String("activation", "relu", "Neuron activation: relu, tanh")
	iterations  = flag.Int("iterations", 300, "Number of search iterations")
	population  = flag.Int("population", 100, "Candidates per iteration")
	initWeight  = flag.Float64("init", 0, "Initial value of every weight")
	workers     = flag.Int("workers", 1, "Goroutines scoring candidates (0 = all cores)")
	seed        = flag.Uint64("seed", 0, "Random seed (0 = time based)")
	dataFile    = flag.String("data", "", "CSV examples: inputs then targets per row (default: built-in sample)")
	logEvery    = flag.Int("log-every", 50, "Print progress every N iterations (0 = ten lines per run)")
	verbose     = flag.Bool("verbose", true, "Verbose output")
	showWeights = flag.Bool("weights", false, "Print the trained weight matrices")
)

// sampleExamples is the built-in batch: only [1, 0] maps to 1.
var sampleExamples = utils.Examples{
	Inputs:  [][]float64{{1, 0}, {0, 1}, {0, 1}, {1, 1}},
	Targets: [][]float64{{1}, {0}, {0}, {0}},
}

func main() {
	flag.Parse()
	utils.Verbose = *verbose

	arch, err := utils.ParseArchitecture(*archFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing architecture: %v\n", err)
		os.Exit(1)
	}
	cfg := utils.Config{
		Architecture:  arch,
		Aggregation:   *aggregation,
		Activation:    *activation,
		Iterations:    *iterations,
		Population:    *population,
		InitialWeight: *initWeight,
		Workers:       *workers,
		Seed:          *seed,
		DataPath:      *dataFile,
		LogEvery:      *logEvery,
	}
	if err := utils.ValidateConfig(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg utils.Config) error {
	out := utils.Output
	stats := &utils.TimingStats{}
	totalStart := time.Now()

	fmt.Fprintln(out, "╔══════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(out, "║                    Annealed Search Trainer                   ║")
	fmt.Fprintln(out, "╚══════════════════════════════════════════════════════════════╝")
	fmt.Fprintf(out, "\nConfiguration:\n")
	fmt.Fprintf(out, "  Architecture:  %v\n", cfg.Architecture)
	fmt.Fprintf(out, "  Unit:          %s/%s\n", cfg.Aggregation, cfg.Activation)
	fmt.Fprintf(out, "  Iterations:    %d\n", cfg.Iterations)
	fmt.Fprintf(out, "  Population:    %d\n", cfg.Population)
	fmt.Fprintf(out, "  Workers:       %d\n", cfg.Workers)
	fmt.Fprintln(out)

	start := time.Now()
	examples := sampleExamples
	if cfg.DataPath != "" {
		var err error
		examples, err = utils.LoadExamples(cfg.DataPath, cfg.Inputs(), cfg.Outputs())
		if err != nil {
			return err
		}
	}
	stats.DataLoadingTime = time.Since(start)
	fmt.Fprintf(out, "Loaded %d examples\n", examples.Len())

	fmt.Fprintln(out, "Building network...")
	start = time.Now()
	net, err := buildNetwork(cfg)
	if err != nil {
		return err
	}
	stats.ModelInitTime = time.Since(start)
	fmt.Fprintf(out, "Network ready: %d layers %v\n", net.LayerCount(), net.LayerSizes())

	trainer := &nn.Trainer{
		Source:   newSource(cfg.Seed),
		Parallel: workerConfig(cfg.Workers),
		Verbose:  utils.Verbose,
		LogEvery: cfg.LogEvery,
		Output:   out,
	}

	fmt.Fprintln(out, "\nStarting training...")
	start = time.Now()
	report, err := trainer.Train(ctx, net, cfg.Iterations, cfg.Population, examples.Inputs, examples.Targets)
	stats.TrainingTime = time.Since(start)
	if report == nil {
		return err
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Training interrupted: %v\n", err)
	}
	printReport(report)

	fmt.Fprintln(out, "\nResults:")
	start = time.Now()
	for i, in := range examples.Inputs {
		result, err := net.Evaluate(in)
		if err != nil {
			return fmt.Errorf("example %d: %w", i, err)
		}
		fmt.Fprintf(out, "  %v -> %v (raw %.4f, want %v)\n", in, rounded(result), result, examples.Targets[i])
	}
	stats.EvaluationTime = time.Since(start)

	if *showWeights {
		fmt.Fprintf(out, "\nWeights:\n%v", net.Weights())
	}

	stats.TotalTime = time.Since(totalStart)
	utils.PrintTimingStats(stats, report.Iterations)
	return nil
}

// buildNetwork creates one layer per configured size, all sharing a single unit.
func buildNetwork(cfg utils.Config) (*nn.Network, error) {
	unit, err := neuron.Lookup(cfg.Aggregation, cfg.Activation)
	if err != nil {
		return nil, err
	}
	net := nn.New(cfg.Inputs(), cfg.Outputs())
	for _, size := range cfg.Layers() {
		if err := net.AddNeurons(net.CreateLayer(), unit, size); err != nil {
			return nil, err
		}
	}
	net.InitializeWeights(cfg.InitialWeight)
	return net, nil
}

func newSource(seed uint64) rand.Source {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
}

func workerConfig(n int) parallel.Config {
	if n == 0 {
		return parallel.DefaultConfig()
	}
	return parallel.WithWorkers(n)
}

func rounded(v []float64) []float64 {
	r := make([]float64, len(v))
	for i, x := range v {
		r[i] = math.Round(x)
	}
	return r
}

func printReport(r *nn.Report) {
	out := utils.Output
	fmt.Fprintf(out, "\nRun %s: %d iterations x %d candidates in %.2fs\n",
		r.RunID, r.Iterations, r.Population, r.Duration.Seconds())
	fmt.Fprintf(out, "  Fitness: %.6f -> %.6f\n", r.InitialFitness, r.FinalFitness)
	if len(r.History) > 1 {
		mean, std := stat.MeanStdDev(r.History, nil)
		fmt.Fprintf(out, "  Accepted fitness over run: mean %.6f, std %.6f\n", mean, std)
	}
}
