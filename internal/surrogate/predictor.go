// Package surrogate provides the learned stand-in for the Monte Carlo MOCU
// estimator: a pre-trained predictor mapping (topology, bound state) to a
// MOCU estimate in one cheap forward pass. The rest of the system consumes
// it strictly through the two-function Predictor interface and falls back
// to the direct estimator whenever it is unavailable.
package surrogate

import (
	"errors"
	"fmt"
	"math"

	"syncprobe/internal/bounds"
	"syncprobe/internal/kuramoto"
)

// ErrUnavailable marks a missing, malformed, or mismatched predictor.
// Strategies treat it as a signal to fail over to the direct Monte Carlo
// path, never as a run-aborting error.
var ErrUnavailable = errors.New("surrogate unavailable")

// Topology is the static part of the surrogate input: the oscillator
// network's natural frequencies.
type Topology struct {
	Frequencies []float64
}

// N reports the oscillator count.
func (t Topology) N() int {
	return len(t.Frequencies)
}

// Predictor estimates MOCU quantities from a bound state. Both methods are
// pure and O(1) relative to the Monte Carlo cost they replace.
type Predictor interface {
	// Predict estimates the MOCU of the state itself.
	Predict(topo Topology, state *bounds.State) (float64, error)
	// PredictExpectedRemaining estimates the MOCU expected to remain
	// after experimenting on the candidate pair.
	PredictExpectedRemaining(topo Topology, state *bounds.State, candidate kuramoto.Pair) (float64, error)
}

// stateFeatures flattens the per-pair bounds and frequency gaps into the
// network input: (low, high, |Δω|) per pair, all scaled by the prior box
// height so inputs stay near [0, 1].
func stateFeatures(topo Topology, state *bounds.State, scale float64) ([]float64, error) {
	if topo.N() != state.N() {
		return nil, fmt.Errorf("%w: topology has %d oscillators, state %d", ErrUnavailable, topo.N(), state.N())
	}
	if scale <= 0 {
		return nil, fmt.Errorf("%w: feature scale %g", ErrUnavailable, scale)
	}
	pairs := state.Pairs()
	features := make([]float64, 0, 3*len(pairs))
	for _, p := range pairs {
		iv, err := state.At(p)
		if err != nil {
			return nil, err
		}
		gap := math.Abs(topo.Frequencies[p.I]-topo.Frequencies[p.J]) / 2
		features = append(features, iv.Low/scale, iv.High/scale, gap/scale)
	}
	return features, nil
}

// candidateFeatures appends a one-hot candidate marker to the state
// features.
func candidateFeatures(topo Topology, state *bounds.State, candidate kuramoto.Pair, scale float64) ([]float64, error) {
	features, err := stateFeatures(topo, state, scale)
	if err != nil {
		return nil, err
	}
	pairs := state.Pairs()
	oneHot := make([]float64, len(pairs))
	found := false
	for k, p := range pairs {
		if p == candidate {
			oneHot[k] = 1
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("candidate %s is not a pair of the %d-oscillator state", candidate, state.N())
	}
	return append(features, oneHot...), nil
}
