// Package nn builds, evaluates and trains layered networks of neuron units.
package nn

import (
	"errors"
	"fmt"

	"annealnet/neuron"
	"annealnet/tensor"
)

var (
	// ErrOutOfRange is returned when a layer index does not exist.
	ErrOutOfRange = errors.New("layer index out of range")
	// ErrInvalidInput is returned when inputs, outputs or weights do not fit the network shape.
	ErrInvalidInput = errors.New("invalid input")
)

// Network is an ordered list of layers of shared neuron units plus the
// weight tensor it exclusively owns.
type Network struct {
	layers          [][]*neuron.Unit
	weights         *tensor.Weights
	numberOfInputs  int
	numberOfOutputs int
}

// New returns an empty network taking numberOfInputs values and producing
// numberOfOutputs values.
func New(numberOfInputs, numberOfOutputs int) *Network {
	return &Network{
		numberOfInputs:  numberOfInputs,
		numberOfOutputs: numberOfOutputs,
	}
}

// NumberOfInputs returns the input vector length.
func (n *Network) NumberOfInputs() int { return n.numberOfInputs }

// NumberOfOutputs returns the output vector length.
func (n *Network) NumberOfOutputs() int { return n.numberOfOutputs }

// LayerCount returns the number of layers.
func (n *Network) LayerCount() int { return len(n.layers) }

// LayerSizes returns the neuron count of every layer.
func (n *Network) LayerSizes() []int {
	sizes := make([]int, len(n.layers))
	for i, l := range n.layers {
		sizes[i] = len(l)
	}
	return sizes
}

// CreateLayer appends an empty layer and returns its index.
func (n *Network) CreateLayer() int {
	n.layers = append(n.layers, nil)
	return len(n.layers) - 1
}

// AddNeurons appends count references to unit onto layer.
func (n *Network) AddNeurons(layer int, unit *neuron.Unit, count int) error {
	if layer < 0 || layer >= len(n.layers) {
		return fmt.Errorf("add neurons to layer %d of %d: %w", layer, len(n.layers), ErrOutOfRange)
	}
	if unit == nil {
		return fmt.Errorf("add neurons to layer %d: nil unit: %w", layer, ErrInvalidInput)
	}
	for i := 0; i < count; i++ {
		n.layers[layer] = append(n.layers[layer], unit)
	}
	return nil
}

// shapes returns the weight layout implied by the current topology.
func (n *Network) shapes() []tensor.LayerShape {
	shapes := make([]tensor.LayerShape, len(n.layers))
	for i, l := range n.layers {
		inputs := n.numberOfInputs
		if i > 0 {
			inputs = len(n.layers[i-1])
		}
		shapes[i] = tensor.LayerShape{Neurons: len(l), Inputs: inputs}
	}
	return shapes
}

// InitializeWeights allocates the weight tensor for the current topology and
// fills it with initialValue, discarding any previous weights.
func (n *Network) InitializeWeights(initialValue float64) {
	w := tensor.New(n.shapes()...)
	w.Fill(initialValue)
	n.weights = w
}

// Weights returns a copy of the weight tensor, or nil before InitializeWeights.
func (n *Network) Weights() *tensor.Weights {
	if n.weights == nil {
		return nil
	}
	return n.weights.Clone()
}

// SetWeights replaces the weight tensor with a copy of w.
func (n *Network) SetWeights(w *tensor.Weights) error {
	if !n.fits(w) {
		return fmt.Errorf("weights do not match the network topology: %w", ErrInvalidInput)
	}
	n.weights = w.Clone()
	return nil
}

func (n *Network) fits(w *tensor.Weights) bool {
	if w == nil || len(w.Layers) != len(n.layers) {
		return false
	}
	for i, s := range n.shapes() {
		if w.Layers[i].Neurons != s.Neurons || w.Layers[i].Inputs != s.Inputs {
			return false
		}
	}
	return true
}

func (n *Network) check(inputs []float64) error {
	if len(inputs) != n.numberOfInputs {
		return fmt.Errorf("got %d inputs, network takes %d: %w", len(inputs), n.numberOfInputs, ErrInvalidInput)
	}
	if len(n.layers) == 0 {
		return fmt.Errorf("network has no layers: %w", ErrInvalidInput)
	}
	if last := len(n.layers[len(n.layers)-1]); last != n.numberOfOutputs {
		return fmt.Errorf("last layer has %d neurons, network produces %d: %w", last, n.numberOfOutputs, ErrInvalidInput)
	}
	if !n.fits(n.weights) {
		return fmt.Errorf("weights not initialized for the current topology: %w", ErrInvalidInput)
	}
	return nil
}

// CanEvaluate reports whether Evaluate would accept inputs.
func (n *Network) CanEvaluate(inputs []float64) bool {
	return n.check(inputs) == nil
}

// Evaluate propagates inputs through every layer and returns the last
// layer's outputs. The network is not modified.
func (n *Network) Evaluate(inputs []float64) ([]float64, error) {
	if err := n.check(inputs); err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	return n.forward(inputs, n.weights), nil
}

// forward runs the layers with w as the active weights. Every layer writes a
// freshly allocated slice that the next layer only reads.
func (n *Network) forward(inputs []float64, w *tensor.Weights) []float64 {
	prev := inputs
	for i, layer := range n.layers {
		out := make([]float64, len(layer))
		for j, unit := range layer {
			out[j] = unit.Evaluate(prev, w.Row(i, j))
		}
		prev = out
	}
	return prev
}
