package surrogate

import (
	"fmt"
	"math/rand"

	"syncprobe/internal/bounds"
	"syncprobe/internal/kuramoto"
	"syncprobe/internal/model"
)

// TrainConfig tunes the SGD pass over a labeled dataset.
type TrainConfig struct {
	Epochs    int
	LearnRate float64
	Seed      int64
}

// TrainReport summarizes one training call.
type TrainReport struct {
	Epochs        int     `json:"epochs"`
	MOCUSamples   int     `json:"mocu_samples"`
	RemainSamples int     `json:"remain_samples"`
	MOCULoss      float64 `json:"mocu_loss"`
	RemainLoss    float64 `json:"remain_loss"`
}

// Train fits both model heads to the given dataset samples with plain SGD
// and reports final-epoch mean squared errors. Samples whose kind or shape
// does not match the model are rejected, not skipped, so a corrupted
// dataset cannot silently produce a half-trained checkpoint.
func Train(m *Model, samples []model.DatasetSample, cfg TrainConfig) (TrainReport, error) {
	if m == nil {
		return TrainReport{}, fmt.Errorf("model is required")
	}
	if len(samples) == 0 {
		return TrainReport{}, fmt.Errorf("training requires at least one sample")
	}
	if cfg.Epochs <= 0 {
		cfg.Epochs = 200
	}
	if cfg.LearnRate <= 0 {
		cfg.LearnRate = 0.01
	}

	type example struct {
		features []float64
		label    float64
	}
	var mocuSet, remainSet []example
	for i, sample := range samples {
		features, err := sampleFeatures(m, sample)
		if err != nil {
			return TrainReport{}, fmt.Errorf("sample %d: %w", i, err)
		}
		switch sample.Kind {
		case model.SampleKindMOCU:
			mocuSet = append(mocuSet, example{features: features, label: sample.Label})
		case model.SampleKindExpectedRemaining:
			remainSet = append(remainSet, example{features: features, label: sample.Label})
		default:
			return TrainReport{}, fmt.Errorf("sample %d has unknown kind %q", i, sample.Kind)
		}
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	report := TrainReport{
		Epochs:        cfg.Epochs,
		MOCUSamples:   len(mocuSet),
		RemainSamples: len(remainSet),
	}
	fit := func(net *Network, set []example) (float64, error) {
		if len(set) == 0 {
			return 0, nil
		}
		lastEpochLoss := 0.0
		for epoch := 0; epoch < cfg.Epochs; epoch++ {
			rng.Shuffle(len(set), func(i, j int) { set[i], set[j] = set[j], set[i] })
			total := 0.0
			for _, ex := range set {
				loss, err := net.Step(ex.features, ex.label, cfg.LearnRate)
				if err != nil {
					return 0, err
				}
				total += loss
			}
			lastEpochLoss = total / float64(len(set))
		}
		return lastEpochLoss, nil
	}

	var err error
	if report.MOCULoss, err = fit(m.MOCUNet, mocuSet); err != nil {
		return TrainReport{}, err
	}
	if report.RemainLoss, err = fit(m.RemainNet, remainSet); err != nil {
		return TrainReport{}, err
	}
	return report, nil
}

func sampleFeatures(m *Model, sample model.DatasetSample) ([]float64, error) {
	if sample.Oscillators != m.Oscillators {
		return nil, fmt.Errorf("sample describes %d oscillators, model expects %d", sample.Oscillators, m.Oscillators)
	}
	intervals := make([]bounds.Interval, len(sample.Intervals))
	for k, iv := range sample.Intervals {
		intervals[k] = bounds.Interval{Low: iv.Low, High: iv.High}
	}
	state, err := bounds.FromIntervals(sample.Oscillators, intervals)
	if err != nil {
		return nil, err
	}
	topo := Topology{Frequencies: sample.Frequencies}
	switch sample.Kind {
	case model.SampleKindMOCU:
		return stateFeatures(topo, state, m.Scale)
	case model.SampleKindExpectedRemaining:
		candidate := kuramoto.Pair{I: sample.CandidateI, J: sample.CandidateJ}
		return candidateFeatures(topo, state, candidate, m.Scale)
	default:
		return nil, fmt.Errorf("unknown sample kind %q", sample.Kind)
	}
}
