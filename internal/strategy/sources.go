package strategy

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"syncprobe/internal/bounds"
	"syncprobe/internal/kuramoto"
	"syncprobe/internal/mocu"
	"syncprobe/internal/surrogate"
)

// DirectConfig tunes the Monte Carlo candidate scoring.
type DirectConfig struct {
	// ProbSamples is how many coupling values are drawn from a
	// candidate's interval to estimate its sync probability.
	ProbSamples int
	// PairTrials is the Oracle trial count per isolated-pair simulation.
	PairTrials int
	Seed       int64
}

func (c DirectConfig) normalized() DirectConfig {
	if c.ProbSamples <= 0 {
		c.ProbSamples = 24
	}
	if c.PairTrials <= 0 {
		c.PairTrials = 8
	}
	return c
}

// DirectSource scores candidates with the full simulation path: sync
// probability by uniform sampling over the candidate's interval through
// the Oracle, and remaining MOCU of both hypothetical narrowings through
// the estimator.
type DirectSource struct {
	oracle     *kuramoto.Oracle
	estimator  *mocu.Estimator
	thresholds *kuramoto.ThresholdCache
	cfg        DirectConfig
}

// NewDirectSource wires the direct Monte Carlo value source.
func NewDirectSource(oracle *kuramoto.Oracle, estimator *mocu.Estimator, thresholds *kuramoto.ThresholdCache, cfg DirectConfig) *DirectSource {
	return &DirectSource{
		oracle:     oracle,
		estimator:  estimator,
		thresholds: thresholds,
		cfg:        cfg.normalized(),
	}
}

// ExpectedRemaining implements ValueSource:
//
//	p·MOCU(state narrowed for "synchronized") + (1−p)·MOCU(state narrowed for "not synchronized")
//
// where p is the candidate's estimated sync probability under its current
// interval. Branches with zero probability are not simulated.
func (s *DirectSource) ExpectedRemaining(ctx context.Context, state *bounds.State, candidate kuramoto.Pair) (float64, error) {
	iv, err := state.At(candidate)
	if err != nil {
		return 0, err
	}
	seed := s.pairSeed(candidate)

	if iv.Degenerate() {
		// A resolved pair carries no information; probing it leaves
		// the state as it is.
		value, err := s.estimator.Estimate(ctx, state, seed)
		if err != nil {
			return 0, err
		}
		return value.MOCU, nil
	}

	threshold, err := s.thresholds.Threshold(ctx, candidate, iv.Low, iv.High)
	if err != nil {
		return 0, err
	}
	pSync, err := s.syncProbability(ctx, candidate, iv, seed)
	if err != nil {
		return 0, err
	}

	expected := 0.0
	if pSync > 0 {
		narrowed, err := state.WithNarrowed(candidate, threshold, iv.High)
		if err != nil {
			return 0, err
		}
		value, err := s.estimator.Estimate(ctx, narrowed, seed+1)
		if err != nil {
			return 0, err
		}
		expected += pSync * value.MOCU
	}
	if pSync < 1 {
		narrowed, err := state.WithNarrowed(candidate, iv.Low, threshold)
		if err != nil {
			return 0, err
		}
		value, err := s.estimator.Estimate(ctx, narrowed, seed+2)
		if err != nil {
			return 0, err
		}
		expected += (1 - pSync) * value.MOCU
	}
	return expected, nil
}

// syncProbability estimates how likely a real probe of the candidate is to
// report "synchronized": uniform coupling samples over the interval, each
// classified by the isolated-pair Oracle.
func (s *DirectSource) syncProbability(ctx context.Context, candidate kuramoto.Pair, iv bounds.Interval, seed int64) (float64, error) {
	freqs := s.thresholds.Frequencies()
	rng := rand.New(rand.NewSource(seed))
	count := 0
	for sample := 0; sample < s.cfg.ProbSamples; sample++ {
		coupling := iv.Low + rng.Float64()*iv.Width()
		fraction, err := s.oracle.SimulatePair(ctx, freqs[candidate.I], freqs[candidate.J], coupling, s.cfg.PairTrials, seed+int64(sample))
		if err != nil {
			return 0, err
		}
		if fraction >= 0.5 {
			count++
		}
	}
	return float64(count) / float64(s.cfg.ProbSamples), nil
}

func (s *DirectSource) pairSeed(p kuramoto.Pair) int64 {
	return s.cfg.Seed + int64(p.I)*7919 + int64(p.J)*104729
}

// SurrogateSource scores candidates with one predictor forward pass and
// fails over to the direct path when the predictor is missing or rejects
// the input. Failover is reported through OnFallback so the loop can
// record it in trajectory metadata; it is never an error.
type SurrogateSource struct {
	topo     surrogate.Topology
	fallback *DirectSource

	// OnFallback, when set, observes every failover with its cause.
	OnFallback func(err error)

	mu        sync.Mutex
	predictor surrogate.Predictor
}

// NewSurrogateSource wires a predictor with its direct fallback. A nil
// predictor is allowed and simply means every call falls back.
func NewSurrogateSource(predictor surrogate.Predictor, topo surrogate.Topology, fallback *DirectSource) *SurrogateSource {
	return &SurrogateSource{
		topo:      topo,
		fallback:  fallback,
		predictor: predictor,
	}
}

// Disable drops the predictor, forcing the direct path from now on. Used
// when the serving side withdraws the model mid-run.
func (s *SurrogateSource) Disable() {
	s.mu.Lock()
	s.predictor = nil
	s.mu.Unlock()
}

// ExpectedRemaining implements ValueSource.
func (s *SurrogateSource) ExpectedRemaining(ctx context.Context, state *bounds.State, candidate kuramoto.Pair) (float64, error) {
	s.mu.Lock()
	predictor := s.predictor
	s.mu.Unlock()

	var cause error
	if predictor != nil {
		value, err := predictor.PredictExpectedRemaining(s.topo, state, candidate)
		if err == nil {
			return value, nil
		}
		cause = err
	} else {
		cause = surrogate.ErrUnavailable
	}

	if s.fallback == nil {
		return 0, fmt.Errorf("surrogate failed with no direct fallback: %w", cause)
	}
	if s.OnFallback != nil {
		s.OnFallback(cause)
	}
	return s.fallback.ExpectedRemaining(ctx, state, candidate)
}
