package surrogate

import (
	"encoding/json"
	"fmt"
	"os"

	"syncprobe/internal/bounds"
	"syncprobe/internal/kuramoto"
)

const checkpointVersion = 1

// Model is the concrete predictor: one network for state MOCU and one for
// expected-remaining-MOCU under a candidate, sharing a feature scale.
type Model struct {
	Version     int      `json:"version"`
	Oscillators int      `json:"oscillators"`
	Scale       float64  `json:"scale"`
	MOCUNet     *Network `json:"mocu_net"`
	RemainNet   *Network `json:"remain_net"`
}

// NewModel builds an untrained model for an n-oscillator system whose
// prior bound box tops out at scale.
func NewModel(n, hidden int, scale float64, seed int64) (*Model, error) {
	if n < 2 {
		return nil, fmt.Errorf("model requires at least 2 oscillators, got %d", n)
	}
	if hidden <= 0 {
		hidden = 32
	}
	if scale <= 0 {
		return nil, fmt.Errorf("model requires a positive feature scale, got %g", scale)
	}
	pairCount := n * (n - 1) / 2
	mocuNet, err := NewNetwork([]int{3 * pairCount, hidden, hidden, 1}, seed)
	if err != nil {
		return nil, err
	}
	remainNet, err := NewNetwork([]int{4 * pairCount, hidden, hidden, 1}, seed+1)
	if err != nil {
		return nil, err
	}
	return &Model{
		Version:     checkpointVersion,
		Oscillators: n,
		Scale:       scale,
		MOCUNet:     mocuNet,
		RemainNet:   remainNet,
	}, nil
}

// Predict implements Predictor. Estimates are clipped to be nonnegative
// since MOCU is a nonnegative quantity by construction.
func (m *Model) Predict(topo Topology, state *bounds.State) (float64, error) {
	if err := m.check(topo, state); err != nil {
		return 0, err
	}
	features, err := stateFeatures(topo, state, m.Scale)
	if err != nil {
		return 0, err
	}
	value, err := m.MOCUNet.Forward(features)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if value < 0 {
		value = 0
	}
	return value, nil
}

// PredictExpectedRemaining implements Predictor.
func (m *Model) PredictExpectedRemaining(topo Topology, state *bounds.State, candidate kuramoto.Pair) (float64, error) {
	if err := m.check(topo, state); err != nil {
		return 0, err
	}
	features, err := candidateFeatures(topo, state, candidate, m.Scale)
	if err != nil {
		return 0, err
	}
	value, err := m.RemainNet.Forward(features)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if value < 0 {
		value = 0
	}
	return value, nil
}

func (m *Model) check(topo Topology, state *bounds.State) error {
	if m == nil || m.MOCUNet == nil || m.RemainNet == nil {
		return fmt.Errorf("%w: model is not loaded", ErrUnavailable)
	}
	if topo.N() != m.Oscillators || state.N() != m.Oscillators {
		return fmt.Errorf("%w: model trained for %d oscillators, input has %d", ErrUnavailable, m.Oscillators, state.N())
	}
	return nil
}

// Save writes the model checkpoint as JSON.
func (m *Model) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

// Load reads a model checkpoint. Missing or malformed checkpoints surface
// as ErrUnavailable so callers can fail over instead of aborting.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read checkpoint %s: %v", ErrUnavailable, path, err)
	}
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: decode checkpoint %s: %v", ErrUnavailable, path, err)
	}
	if m.Version != checkpointVersion {
		return nil, fmt.Errorf("%w: checkpoint %s has version %d, want %d", ErrUnavailable, path, m.Version, checkpointVersion)
	}
	if m.MOCUNet == nil || m.RemainNet == nil || m.Oscillators < 2 || m.Scale <= 0 {
		return nil, fmt.Errorf("%w: checkpoint %s is incomplete", ErrUnavailable, path)
	}
	return &m, nil
}
