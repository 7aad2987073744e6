package tensor

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrShape is returned when nested weights are ragged inside a layer.
var ErrShape = errors.New("ragged weight layer")

// LayerShape describes one layer of a Weights tensor: Neurons rows of Inputs
// weights each, stored from Offset in the flat buffer.
type LayerShape struct {
	Neurons int
	Inputs  int
	Offset  int
}

// Size is the number of weights in the layer.
func (s LayerShape) Size() int {
	return s.Neurons * s.Inputs
}

// Weights is a [layer][neuron][input] tensor backed by a flat []float64.
type Weights struct {
	Data   []float64
	Layers []LayerShape
}

// New allocates a zeroed tensor. Offsets in shapes are ignored and recomputed.
func New(shapes ...LayerShape) *Weights {
	layers := make([]LayerShape, len(shapes))
	total := 0
	for i, s := range shapes {
		layers[i] = LayerShape{Neurons: s.Neurons, Inputs: s.Inputs, Offset: total}
		total += s.Size()
	}
	return &Weights{
		Data:   make([]float64, total),
		Layers: layers,
	}
}

// FromNested copies a [layer][neuron][input] slice into a new tensor.
func FromNested(nested [][][]float64) (*Weights, error) {
	shapes := make([]LayerShape, len(nested))
	for l, layer := range nested {
		shapes[l].Neurons = len(layer)
		for j, row := range layer {
			if j == 0 {
				shapes[l].Inputs = len(row)
			} else if len(row) != shapes[l].Inputs {
				return nil, fmt.Errorf("layer %d neuron %d has %d weights, want %d: %w",
					l, j, len(row), shapes[l].Inputs, ErrShape)
			}
		}
	}
	w := New(shapes...)
	for l, layer := range nested {
		for j, row := range layer {
			copy(w.Row(l, j), row)
		}
	}
	return w, nil
}

// Row returns the weights of neuron j in layer l. The slice aliases Data but
// its capacity stops at the end of the row.
func (w *Weights) Row(l, j int) []float64 {
	s := w.Layers[l]
	if j < 0 || j >= s.Neurons {
		panic(fmt.Sprintf("Row: neuron %d out of bounds for layer %d (%d neurons)", j, l, s.Neurons))
	}
	start := s.Offset + j*s.Inputs
	end := start + s.Inputs
	return w.Data[start:end:end]
}

// At returns weights[l][j][k].
func (w *Weights) At(l, j, k int) float64 {
	return w.Data[w.index(l, j, k)]
}

// Set sets weights[l][j][k] to value.
func (w *Weights) Set(value float64, l, j, k int) {
	w.Data[w.index(l, j, k)] = value
}

func (w *Weights) index(l, j, k int) int {
	if l < 0 || l >= len(w.Layers) {
		panic(fmt.Sprintf("index: layer %d out of bounds (%d layers)", l, len(w.Layers)))
	}
	s := w.Layers[l]
	if j < 0 || j >= s.Neurons || k < 0 || k >= s.Inputs {
		panic(fmt.Sprintf("index: [%d][%d] out of bounds for layer %d shape %dx%d", j, k, l, s.Neurons, s.Inputs))
	}
	return s.Offset + j*s.Inputs + k
}

// Fill sets every weight to value.
func (w *Weights) Fill(value float64) {
	for i := range w.Data {
		w.Data[i] = value
	}
}

// Clone returns a deep copy.
func (w *Weights) Clone() *Weights {
	return &Weights{
		Data:   append([]float64(nil), w.Data...),
		Layers: append([]LayerShape(nil), w.Layers...),
	}
}

// Perturb adds an independent uniform draw from [-multiplier, multiplier] to
// every weight, in Data order. A nil src uses the global generator.
func (w *Weights) Perturb(multiplier float64, src rand.Source) {
	if len(w.Data) == 0 {
		return
	}
	dist := distuv.Uniform{Min: -multiplier, Max: multiplier, Src: src}
	noise := make([]float64, len(w.Data))
	for i := range noise {
		noise[i] = dist.Rand()
	}
	floats.Add(w.Data, noise)
}

// SameShape reports whether o has the same layer shapes as w.
func (w *Weights) SameShape(o *Weights) bool {
	if o == nil || len(w.Layers) != len(o.Layers) {
		return false
	}
	for i := range w.Layers {
		if w.Layers[i].Neurons != o.Layers[i].Neurons || w.Layers[i].Inputs != o.Layers[i].Inputs {
			return false
		}
	}
	return true
}

// Matrix returns a copy of layer l as a Neurons x Inputs matrix, or nil when
// the layer has no weights.
func (w *Weights) Matrix(l int) *mat.Dense {
	s := w.Layers[l]
	if s.Size() == 0 {
		return nil
	}
	data := append([]float64(nil), w.Data[s.Offset:s.Offset+s.Size()]...)
	return mat.NewDense(s.Neurons, s.Inputs, data)
}

// Nested returns a copy in [layer][neuron][input] form.
func (w *Weights) Nested() [][][]float64 {
	out := make([][][]float64, len(w.Layers))
	for l, s := range w.Layers {
		out[l] = make([][]float64, s.Neurons)
		for j := range out[l] {
			out[l][j] = append([]float64{}, w.Row(l, j)...)
		}
	}
	return out
}

// String formats each layer with mat.Formatted.
func (w *Weights) String() string {
	var s string
	for l := range w.Layers {
		m := w.Matrix(l)
		if m == nil {
			s += fmt.Sprintf("layer %d: []\n", l)
			continue
		}
		s += fmt.Sprintf("layer %d:\n%v\n", l, mat.Formatted(m, mat.Prefix("  "), mat.Squeeze()))
	}
	return s
}
