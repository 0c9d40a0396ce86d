package surrogate

import (
	"fmt"
	"math"
	"math/rand"
)

// Network is a small dense feedforward regressor: tanh hidden layers and a
// single linear output. Weights are stored layer-major so the whole model
// round-trips through JSON.
type Network struct {
	Sizes   []int         `json:"sizes"`
	Weights [][][]float64 `json:"weights"`
	Biases  [][]float64   `json:"biases"`
}

// NewNetwork initializes a network with the given layer sizes. The last
// size must be 1. Identical seeds reproduce identical initializations.
func NewNetwork(sizes []int, seed int64) (*Network, error) {
	if len(sizes) < 2 {
		return nil, fmt.Errorf("network requires at least input and output sizes, got %v", sizes)
	}
	if sizes[len(sizes)-1] != 1 {
		return nil, fmt.Errorf("network output size must be 1, got %d", sizes[len(sizes)-1])
	}
	rng := rand.New(rand.NewSource(seed))
	weights := make([][][]float64, len(sizes)-1)
	biases := make([][]float64, len(sizes)-1)
	for layer := 0; layer < len(sizes)-1; layer++ {
		in, out := sizes[layer], sizes[layer+1]
		limit := math.Sqrt(6.0 / float64(in+out))
		weights[layer] = make([][]float64, out)
		biases[layer] = make([]float64, out)
		for o := 0; o < out; o++ {
			weights[layer][o] = make([]float64, in)
			for i := 0; i < in; i++ {
				weights[layer][o][i] = (rng.Float64()*2 - 1) * limit
			}
		}
	}
	return &Network{Sizes: append([]int(nil), sizes...), Weights: weights, Biases: biases}, nil
}

// Forward evaluates the network on one input vector.
func (n *Network) Forward(input []float64) (float64, error) {
	activations, err := n.forwardAll(input)
	if err != nil {
		return 0, err
	}
	return activations[len(activations)-1][0], nil
}

// forwardAll returns the activation vector of every layer, input included.
func (n *Network) forwardAll(input []float64) ([][]float64, error) {
	if len(input) != n.Sizes[0] {
		return nil, fmt.Errorf("network expects %d inputs, got %d", n.Sizes[0], len(input))
	}
	activations := make([][]float64, len(n.Sizes))
	activations[0] = input
	for layer := range n.Weights {
		out := make([]float64, n.Sizes[layer+1])
		last := layer == len(n.Weights)-1
		for o := range out {
			sum := n.Biases[layer][o]
			row := n.Weights[layer][o]
			for i, v := range activations[layer] {
				sum += row[i] * v
			}
			if last {
				out[o] = sum
			} else {
				out[o] = math.Tanh(sum)
			}
		}
		activations[layer+1] = out
	}
	return activations, nil
}

// Step runs one stochastic gradient descent update toward target and
// returns the pre-update squared error.
func (n *Network) Step(input []float64, target, learnRate float64) (float64, error) {
	activations, err := n.forwardAll(input)
	if err != nil {
		return 0, err
	}
	prediction := activations[len(activations)-1][0]
	loss := (prediction - target) * (prediction - target)

	// Output delta for squared error with a linear output unit.
	deltas := []float64{prediction - target}
	for layer := len(n.Weights) - 1; layer >= 0; layer-- {
		prev := activations[layer]
		nextDeltas := make([]float64, n.Sizes[layer])
		for o, delta := range deltas {
			n.Biases[layer][o] -= learnRate * delta
			row := n.Weights[layer][o]
			for i := range row {
				nextDeltas[i] += delta * row[i]
				row[i] -= learnRate * delta * prev[i]
			}
		}
		if layer > 0 {
			// Backprop through the tanh of the previous hidden layer.
			for i := range nextDeltas {
				a := activations[layer][i]
				nextDeltas[i] *= 1 - a*a
			}
		}
		deltas = nextDeltas
	}
	return loss, nil
}
