package nn

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"

	"annealnet/parallel"
	"annealnet/tensor"
	"annealnet/utils"
)

// IterationStats describes the weights accepted at the end of one iteration.
type IterationStats struct {
	Iteration  int
	Multiplier float64
	Fitness    float64
}

// Report summarizes a training run.
type Report struct {
	RunID          uuid.UUID
	Iterations     int
	Population     int
	InitialFitness float64
	FinalFitness   float64
	History        []float64 // fitness of the accepted weights after each iteration
	Duration       time.Duration
}

// Trainer improves network weights by annealed random search: every
// iteration perturbs copies of the current weights and keeps the copy with
// the lowest summed absolute error.
//
// The zero value is ready to use and runs sequentially with a time-seeded
// generator.
type Trainer struct {
	// Source drives every perturbation. Nil means a fresh time-seeded PCG.
	Source rand.Source

	// Parallel scores candidates concurrently. Candidates are still generated
	// and compared in order, so results do not depend on it.
	Parallel parallel.Config

	// Verbose prints a progress line every LogEvery iterations to Output
	// (utils.Output when nil).
	Verbose  bool
	LogEvery int
	Output   io.Writer

	// OnIteration is called after every iteration.
	OnIteration func(IterationStats)
}

// Train runs a default Trainer on n.
func (n *Network) Train(iterations, populationSize int, inputs, targets [][]float64) error {
	var t Trainer
	_, err := t.Train(context.Background(), n, iterations, populationSize, inputs, targets)
	return err
}

// Fitness returns the summed absolute error of the current weights over the
// batch. Only the first input is validated.
func (n *Network) Fitness(inputs, targets [][]float64) (float64, error) {
	if err := n.checkBatch(inputs); err != nil {
		return 0, fmt.Errorf("fitness: %w", err)
	}
	return n.fitness(n.weights, inputs, targets), nil
}

func (n *Network) checkBatch(inputs [][]float64) error {
	if len(inputs) == 0 {
		return fmt.Errorf("empty input batch: %w", ErrInvalidInput)
	}
	return n.check(inputs[0])
}

// fitness sums |output - target| over every example and output dimension.
// Targets shorter than the output only contribute their common prefix.
func (n *Network) fitness(w *tensor.Weights, inputs, targets [][]float64) float64 {
	var dif float64
	for k, in := range inputs {
		out := n.forward(in, w)
		var target []float64
		if k < len(targets) {
			target = targets[k]
		}
		m := min(len(out), len(target))
		dif += floats.Distance(out[:m], target[:m], 1)
	}
	return dif
}

// Train runs iterations rounds of populationSize candidates against the
// batch and leaves the last accepted weights installed in n. Only inputs[0]
// is validated. The step size schedule 2/(t+1) restarts on every call.
//
// When ctx is cancelled the run stops between iterations, keeping the
// weights accepted so far, and the returned error wraps ctx.Err().
func (t *Trainer) Train(ctx context.Context, n *Network, iterations, populationSize int, inputs, targets [][]float64) (*Report, error) {
	if err := n.checkBatch(inputs); err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	src := t.Source
	if src == nil {
		src = rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())
	}
	out := t.Output
	if out == nil {
		out = utils.Output
	}
	logEvery := t.LogEvery
	if logEvery <= 0 {
		logEvery = max(iterations/10, 1)
	}

	start := time.Now()
	report := &Report{
		RunID:      uuid.New(),
		Population: populationSize,
		History:    make([]float64, 0, max(iterations, 0)),
	}
	current := n.fitness(n.weights, inputs, targets)
	report.InitialFitness = current

	candidates := make([]*tensor.Weights, max(populationSize, 0))
	scores := make([]float64, len(candidates))

	var err error
	for it := 0; it < iterations; it++ {
		if cerr := ctx.Err(); cerr != nil {
			err = fmt.Errorf("train: stopped after %d of %d iterations: %w", it, iterations, cerr)
			break
		}
		multiplier := 2 / float64(it+1)

		for c, cand := range candidates {
			if cand == nil {
				cand = n.weights.Clone()
				candidates[c] = cand
			} else {
				copy(cand.Data, n.weights.Data)
			}
			cand.Perturb(multiplier, src)
		}

		parallel.For(len(candidates), func(c int) {
			scores[c] = n.fitness(candidates[c], inputs, targets)
		}, t.Parallel)

		best, bestFitness := -1, math.Inf(1)
		for c, s := range scores {
			if s < bestFitness {
				best, bestFitness = c, s
			}
		}
		if best >= 0 {
			// The replaced tensor becomes the candidate buffer for the next round.
			n.weights, candidates[best] = candidates[best], n.weights
			current = bestFitness
		}

		report.Iterations++
		report.History = append(report.History, current)
		if t.OnIteration != nil {
			t.OnIteration(IterationStats{Iteration: it, Multiplier: multiplier, Fitness: current})
		}
		if t.Verbose && (it%logEvery == 0 || it == iterations-1) {
			fmt.Fprintf(out, "Iteration %d/%d | Step: %.4f | Fitness: %.6f | Time: %.2fs\n",
				it+1, iterations, multiplier, current, time.Since(start).Seconds())
		}
	}

	report.FinalFitness = current
	report.Duration = time.Since(start)
	return report, err
}
