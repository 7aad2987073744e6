// Package neuron holds the stateless units placed at every position of a network.
package neuron

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ErrUnknown is returned by Lookup for names missing from the lookup tables.
var ErrUnknown = errors.New("unknown neuron function")

// Aggregator folds an input vector and a weight vector into one scalar.
type Aggregator func(inputs, weights []float64) float64

// Activator maps an aggregated scalar to the neuron output.
type Activator func(x float64) float64

// Unit is an immutable aggregation + activation pair. A single Unit is meant
// to be shared by every position that uses the same pattern; it never holds
// weights.
type Unit struct {
	aggregate Aggregator
	activate  Activator
}

// New returns a Unit applying agg then act.
func New(agg Aggregator, act Activator) *Unit {
	return &Unit{aggregate: agg, activate: act}
}

// NewRectifier returns a weighted-sum unit with the Rectifier activation.
func NewRectifier() *Unit {
	return New(WeightedSum, Rectifier)
}

// NewBounded returns a weighted-sum unit with the Bounded activation.
func NewBounded() *Unit {
	return New(WeightedSum, Bounded)
}

// Evaluate computes act(agg(inputs, weights)). It has no side effects.
func (u *Unit) Evaluate(inputs, weights []float64) float64 {
	return u.activate(u.aggregate(inputs, weights))
}

// WeightedSum is the dot product of inputs and weights over their common
// prefix. Extra elements of the longer slice are ignored.
func WeightedSum(inputs, weights []float64) float64 {
	n := min(len(inputs), len(weights))
	if n == 0 {
		return 0
	}
	return floats.Dot(inputs[:n], weights[:n])
}

// Rectifier is f(x) = max(x, 0).
func Rectifier(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

// Bounded is f(x) = tanh(x), saturating to (-1, 1).
func Bounded(x float64) float64 {
	return math.Tanh(x)
}

// Aggregators maps configuration names to aggregation functions.
var Aggregators = map[string]Aggregator{
	"sum": WeightedSum,
}

// Activators maps configuration names to activation functions.
var Activators = map[string]Activator{
	"relu": Rectifier,
	"tanh": Bounded,
}

// Lookup builds a Unit from the names registered in Aggregators and Activators.
func Lookup(aggregator, activator string) (*Unit, error) {
	agg, ok := Aggregators[aggregator]
	if !ok {
		return nil, fmt.Errorf("aggregator %q: %w", aggregator, ErrUnknown)
	}
	act, ok := Activators[activator]
	if !ok {
		return nil, fmt.Errorf("activator %q: %w", activator, ErrUnknown)
	}
	return New(agg, act), nil
}
