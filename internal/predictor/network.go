package predictor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

type activation func(float64) float64

var activations = map[string]activation{
	"linear":  func(v float64) float64 { return v },
	"relu":    func(v float64) float64 { return math.Max(0, v) },
	"tanh":    math.Tanh,
	"sigmoid": func(v float64) float64 { return 1 / (1 + math.Exp(-v)) },
}

type denseLayer struct {
	weights *mat.Dense
	bias    []float64
	act     activation
}

// Network evaluates a dense-v1 artifact. It is immutable after construction
// and safe for concurrent use.
type Network struct {
	inputDim  int
	outputDim int
	layers    []denseLayer
}

// NewNetwork builds the matrices for a validated artifact.
func NewNetwork(a Artifact) (*Network, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	layers := make([]denseLayer, len(a.Layers))
	for i, l := range a.Layers {
		rows, cols := len(l.Weights), len(l.Bias)
		data := make([]float64, 0, rows*cols)
		for _, row := range l.Weights {
			data = append(data, row...)
		}
		bias := make([]float64, cols)
		copy(bias, l.Bias)
		layers[i] = denseLayer{
			weights: mat.NewDense(rows, cols, data),
			bias:    bias,
			act:     activations[l.Activation],
		}
	}

	return &Network{inputDim: a.InputDim, outputDim: a.OutputDim(), layers: layers}, nil
}

// Predict evaluates a batch. inputs holds len(inputs)/InputDim samples laid
// out row by row; the result holds OutputDim values per sample in the same order.
func (n *Network) Predict(inputs []float64) ([]float64, error) {
	if len(inputs) == 0 || len(inputs)%n.inputDim != 0 {
		return nil, fmt.Errorf("%w: %d inputs for input_dim %d", ErrShape, len(inputs), n.inputDim)
	}

	x := make([]float64, len(inputs))
	copy(x, inputs)
	cur := mat.NewDense(len(inputs)/n.inputDim, n.inputDim, x)

	for _, l := range n.layers {
		var next mat.Dense
		next.Mul(cur, l.weights)
		next.Apply(func(_, j int, v float64) float64 {
			return l.act(v + l.bias[j])
		}, &next)
		cur = &next
	}

	out := make([]float64, 0, len(inputs)/n.inputDim*n.outputDim)
	rows, _ := cur.Dims()
	for i := range rows {
		out = append(out, cur.RawRowView(i)...)
	}
	return out, nil
}

// InputDim is the number of features per sample.
func (n *Network) InputDim() int { return n.inputDim }

// OutputDim is the number of values produced per sample.
func (n *Network) OutputDim() int { return n.outputDim }
