package nn

import (
	"bytes"
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"annealnet/neuron"
	"annealnet/parallel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sampleInputs  = [][]float64{{1, 0}, {0, 1}, {0, 1}, {1, 1}}
	sampleTargets = [][]float64{{1}, {0}, {0}, {0}}
)

func TestTrainReducesFitness(t *testing.T) {
	net := newSampleNetwork(t)

	initial, err := net.Fitness(sampleInputs, sampleTargets)
	require.NoError(t, err)
	assert.Equal(t, 1.0, initial)

	trainer := &Trainer{Source: rand.NewPCG(42, 1)}
	report, err := trainer.Train(context.Background(), net, 300, 100, sampleInputs, sampleTargets)
	require.NoError(t, err)

	assert.Equal(t, 300, report.Iterations)
	assert.Equal(t, 100, report.Population)
	assert.Len(t, report.History, 300)
	assert.Equal(t, 1.0, report.InitialFitness)
	assert.Less(t, report.FinalFitness, report.InitialFitness)
	assert.Less(t, report.FinalFitness, 0.5)
	assert.Equal(t, report.History[len(report.History)-1], report.FinalFitness)
	assert.NotEqual(t, [16]byte{}, [16]byte(report.RunID))

	final, err := net.Fitness(sampleInputs, sampleTargets)
	require.NoError(t, err)
	assert.InDelta(t, report.FinalFitness, final, 1e-12)

	for i, in := range sampleInputs {
		out, err := net.Evaluate(in)
		require.NoError(t, err)
		assert.Equal(t, sampleTargets[i][0], math.Round(out[0]), "example %d", i)
	}
}

func TestNetworkTrainDefault(t *testing.T) {
	net := newSampleNetwork(t)
	require.NoError(t, net.Train(50, 20, sampleInputs, sampleTargets))
	assert.True(t, net.CanEvaluate(sampleInputs[0]))
}

func TestTrainInvalidInput(t *testing.T) {
	net := newSampleNetwork(t)

	assert.ErrorIs(t, net.Train(10, 10, nil, nil), ErrInvalidInput)
	assert.ErrorIs(t, net.Train(10, 10, [][]float64{{1, 0, 1}}, [][]float64{{1}}), ErrInvalidInput)

	uninitialized := New(2, 1)
	require.NoError(t, uninitialized.AddNeurons(uninitialized.CreateLayer(), neuron.NewRectifier(), 1))
	assert.ErrorIs(t, uninitialized.Train(10, 10, sampleInputs, sampleTargets), ErrInvalidInput)

	_, err := net.Fitness(nil, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestTrainOnlyValidatesFirstExample(t *testing.T) {
	net := newSampleNetwork(t)
	inputs := [][]float64{{1, 0}, {1}, {1, 1, 1}}
	targets := [][]float64{{1}, {}, nil}
	assert.NoError(t, net.Train(5, 5, inputs, targets))
}

func TestTrainParallelMatchesSequential(t *testing.T) {
	seq := newSampleNetwork(t)
	par := newSampleNetwork(t)

	seqReport, err := (&Trainer{Source: rand.NewPCG(3, 9)}).
		Train(context.Background(), seq, 60, 24, sampleInputs, sampleTargets)
	require.NoError(t, err)

	parReport, err := (&Trainer{Source: rand.NewPCG(3, 9), Parallel: parallel.WithWorkers(4)}).
		Train(context.Background(), par, 60, 24, sampleInputs, sampleTargets)
	require.NoError(t, err)

	assert.Equal(t, seq.Weights(), par.Weights())
	assert.Equal(t, seqReport.History, parReport.History)
	assert.NotEqual(t, seqReport.RunID, parReport.RunID)
}

func TestTrainSchedule(t *testing.T) {
	net := newSampleNetwork(t)

	var multipliers []float64
	trainer := &Trainer{
		Source: rand.NewPCG(1, 1),
		OnIteration: func(s IterationStats) {
			assert.Equal(t, len(multipliers), s.Iteration)
			multipliers = append(multipliers, s.Multiplier)
		},
	}
	_, err := trainer.Train(context.Background(), net, 4, 3, sampleInputs, sampleTargets)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 1, 2.0 / 3, 0.5}, multipliers)

	// A second call starts the schedule over.
	multipliers = nil
	_, err = trainer.Train(context.Background(), net, 2, 3, sampleInputs, sampleTargets)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 1}, multipliers)
}

// constant returns a network whose output never depends on its weights.
func constant(t *testing.T, value float64) *Network {
	t.Helper()
	unit := neuron.New(func(_, _ []float64) float64 { return value }, func(x float64) float64 { return x })
	net := New(1, 1)
	require.NoError(t, net.AddNeurons(net.CreateLayer(), unit, 1))
	require.NoError(t, net.AddNeurons(net.CreateLayer(), unit, 1))
	net.InitializeWeights(0)
	return net
}

func TestTrainTiesKeepFirstCandidate(t *testing.T) {
	net := constant(t, 0.5)

	want := net.Weights()
	want.Perturb(2, rand.NewPCG(11, 12))

	trainer := &Trainer{Source: rand.NewPCG(11, 12)}
	report, err := trainer.Train(context.Background(), net, 1, 4, [][]float64{{1}}, [][]float64{{0}})
	require.NoError(t, err)

	assert.Equal(t, want, net.Weights())
	assert.Equal(t, []float64{0.5}, report.History)
}

func TestTrainNaNFitnessKeepsWeights(t *testing.T) {
	net := constant(t, math.NaN())
	before := net.Weights()

	report, err := (&Trainer{Source: rand.NewPCG(5, 5)}).
		Train(context.Background(), net, 3, 4, [][]float64{{1}}, [][]float64{{0}})
	require.NoError(t, err)

	assert.Equal(t, before, net.Weights())
	assert.Equal(t, 3, report.Iterations)
	assert.True(t, math.IsNaN(report.FinalFitness))
}

func TestTrainDegenerateSizes(t *testing.T) {
	net := newSampleNetwork(t)
	before := net.Weights()

	report, err := (&Trainer{}).Train(context.Background(), net, 0, 10, sampleInputs, sampleTargets)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Iterations)
	assert.Empty(t, report.History)
	assert.Equal(t, before, net.Weights())

	report, err = (&Trainer{}).Train(context.Background(), net, 5, 0, sampleInputs, sampleTargets)
	require.NoError(t, err)
	assert.Equal(t, 5, report.Iterations)
	assert.Equal(t, []float64{1, 1, 1, 1, 1}, report.History)
	assert.Equal(t, before, net.Weights())
}

func TestTrainCancel(t *testing.T) {
	net := newSampleNetwork(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	trainer := &Trainer{
		Source: rand.NewPCG(8, 8),
		OnIteration: func(s IterationStats) {
			if s.Iteration == 4 {
				cancel()
			}
		},
	}
	report, err := trainer.Train(ctx, net, 100, 10, sampleInputs, sampleTargets)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Equal(t, 5, report.Iterations)

	final, ferr := net.Fitness(sampleInputs, sampleTargets)
	require.NoError(t, ferr)
	assert.InDelta(t, report.FinalFitness, final, 1e-12)
}

func TestTrainVerbose(t *testing.T) {
	net := newSampleNetwork(t)
	var buf bytes.Buffer

	trainer := &Trainer{Source: rand.NewPCG(2, 2), Verbose: true, LogEvery: 2, Output: &buf}
	_, err := trainer.Train(context.Background(), net, 5, 3, sampleInputs, sampleTargets)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Iteration 1/5 | Step: 2.0000")
	assert.Contains(t, out, "Iteration 3/5")
	assert.Contains(t, out, "Iteration 5/5 | Step: 0.4000")
	assert.NotContains(t, out, "Iteration 2/5")
	assert.NotContains(t, out, "Iteration 4/5")
}
