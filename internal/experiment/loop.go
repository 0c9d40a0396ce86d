// Package experiment orchestrates one full sequential-design run: ask the
// active strategy for a pair, probe it against the hidden ground truth,
// tighten the bound state with the observed outcome, and log the realized
// MOCU trajectory.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"syncprobe/internal/bounds"
	"syncprobe/internal/kuramoto"
	"syncprobe/internal/mocu"
	"syncprobe/internal/model"
	"syncprobe/internal/strategy"
)

// UpdatePolicy selects the bound-update rule applied after each probe.
type UpdatePolicy string

const (
	// PolicyThreshold narrows the probed pair's interval to the side of
	// its sync boundary consistent with the observed outcome.
	PolicyThreshold UpdatePolicy = "threshold"
	// PolicyExact additionally resolves the probed pair to its measured
	// coupling value, collapsing the interval to a point.
	PolicyExact UpdatePolicy = "exact"
)

// ParsePolicy maps a config string to an UpdatePolicy.
func ParsePolicy(raw string) (UpdatePolicy, error) {
	switch raw {
	case "", string(PolicyThreshold):
		return PolicyThreshold, nil
	case string(PolicyExact):
		return PolicyExact, nil
	default:
		return "", fmt.Errorf("unknown update policy: %s", raw)
	}
}

// Config carries the injected run parameters.
type Config struct {
	RunID string
	// Steps caps the number of experiments; the loop also stops early
	// once every pair has been probed.
	Steps int
	// ExperimentTrials is the high trial count for the single
	// ground-truth probe per step.
	ExperimentTrials int
	Policy           UpdatePolicy
	// ThresholdMargin pads threshold-policy narrowings on the excluded
	// side. The cached pair boundary is bisected with far fewer Oracle
	// trials than the real probe uses, so a truth near the boundary can
	// land on the wrong side of it; the margin keeps such a truth inside
	// the narrowed interval.
	ThresholdMargin float64
	Seed            int64
}

// Loop owns the mutable bound state for one run. All other components see
// read-only snapshots; only the update phase here narrows intervals.
type Loop struct {
	sys        *kuramoto.System
	oracle     *kuramoto.Oracle
	estimator  *mocu.Estimator
	thresholds *kuramoto.ThresholdCache
	picker     strategy.Picker
	state      *bounds.State
	cfg        Config
	log        *slog.Logger

	tested map[kuramoto.Pair]bool

	stepFellBack   bool
	totalFallbacks int
}

// NewLoop assembles a run over an initial bound state. The state is owned
// by the loop from here on.
func NewLoop(
	sys *kuramoto.System,
	oracle *kuramoto.Oracle,
	estimator *mocu.Estimator,
	thresholds *kuramoto.ThresholdCache,
	picker strategy.Picker,
	state *bounds.State,
	cfg Config,
	log *slog.Logger,
) (*Loop, error) {
	if sys == nil || oracle == nil || estimator == nil || thresholds == nil || picker == nil || state == nil {
		return nil, errors.New("loop requires system, oracle, estimator, thresholds, picker and state")
	}
	if state.N() != sys.N() {
		return nil, fmt.Errorf("state describes %d oscillators, system has %d", state.N(), sys.N())
	}
	if cfg.Steps <= 0 {
		return nil, fmt.Errorf("loop requires steps > 0, got %d", cfg.Steps)
	}
	if cfg.ExperimentTrials <= 0 {
		cfg.ExperimentTrials = 64
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyThreshold
	}
	if cfg.ThresholdMargin < 0 {
		return nil, fmt.Errorf("loop requires threshold margin >= 0, got %g", cfg.ThresholdMargin)
	}
	if cfg.ThresholdMargin == 0 {
		cfg.ThresholdMargin = defaultThresholdMargin
	}
	if log == nil {
		log = slog.Default()
	}
	if err := state.CheckContains(sys); err != nil {
		return nil, err
	}
	return &Loop{
		sys:        sys,
		oracle:     oracle,
		estimator:  estimator,
		thresholds: thresholds,
		picker:     picker,
		state:      state,
		cfg:        cfg,
		log:        log,
		tested:     make(map[kuramoto.Pair]bool),
	}, nil
}

// ObserveFallback records one surrogate failover for trajectory metadata.
// Wire it to the surrogate source's OnFallback hook.
func (l *Loop) ObserveFallback(err error) {
	l.stepFellBack = true
	l.totalFallbacks++
	l.log.Debug("surrogate_fallback", "run_id", l.cfg.RunID, "cause", err)
}

// State returns a read-only snapshot of the current bound state.
func (l *Loop) State() *bounds.State {
	return l.state.Snapshot()
}

// Run executes the select/experiment/update cycle until the step budget or
// the candidate pool is exhausted, and returns the run record with its
// trajectory. An ErrInvalidBounds from the update phase aborts immediately:
// it means the update rule itself is broken.
func (l *Loop) Run(ctx context.Context) (model.RunRecord, []model.TrajectoryStep, error) {
	record := model.RunRecord{
		RunID:        l.cfg.RunID,
		Strategy:     l.picker.Name(),
		Oscillators:  l.sys.N(),
		Seed:         l.cfg.Seed,
		UpdatePolicy: string(l.cfg.Policy),
		Terminated:   model.TerminatedStepBudget,
		StartedAtUTC: time.Now().UTC().Format(time.RFC3339Nano),
	}

	initial, err := l.estimator.Estimate(ctx, l.state.Snapshot(), l.cfg.Seed)
	if err != nil {
		return model.RunRecord{}, nil, fmt.Errorf("initial mocu: %w", err)
	}
	record.InitialMOCU = initial.MOCU
	record.FinalMOCU = initial.MOCU

	runStart := time.Now()
	trajectory := make([]model.TrajectoryStep, 0, l.cfg.Steps)
	for step := 0; step < l.cfg.Steps; step++ {
		candidates := l.untested()
		if len(candidates) == 0 {
			record.Terminated = model.TerminatedExhaustedCandidates
			break
		}
		stepStart := time.Now()
		l.stepFellBack = false

		pair, err := l.picker.SelectNext(ctx, l.state.Snapshot(), candidates)
		if err != nil {
			if errors.Is(err, strategy.ErrNoCandidates) {
				record.Terminated = model.TerminatedExhaustedCandidates
				break
			}
			return model.RunRecord{}, nil, fmt.Errorf("select step %d: %w", step, err)
		}

		outcome, err := l.oracle.Experiment(ctx, l.sys, pair, l.cfg.ExperimentTrials, l.cfg.Seed+int64(step))
		if err != nil {
			return model.RunRecord{}, nil, fmt.Errorf("experiment step %d on %s: %w", step, pair, err)
		}

		if err := l.update(ctx, pair, outcome); err != nil {
			return model.RunRecord{}, nil, err
		}
		if err := l.state.CheckContains(l.sys); err != nil {
			return model.RunRecord{}, nil, err
		}
		l.tested[pair] = true

		// Realized MOCU is always recomputed by direct Monte Carlo so
		// trajectories compare across strategies.
		realized, err := l.estimator.Estimate(ctx, l.state.Snapshot(), l.cfg.Seed+int64(step)+1)
		if err != nil {
			return model.RunRecord{}, nil, fmt.Errorf("realized mocu step %d: %w", step, err)
		}

		elapsed := time.Since(stepStart)
		trajectory = append(trajectory, model.TrajectoryStep{
			Step:               step,
			PairI:              pair.I,
			PairJ:              pair.J,
			Synchronized:       outcome,
			MOCU:               realized.MOCU,
			MOCUStdErr:         realized.StdErr,
			PrecisionShortfall: realized.Shortfall,
			SurrogateFellBack:  l.stepFellBack,
			ElapsedMS:          float64(elapsed.Microseconds()) / 1000,
		})
		record.FinalMOCU = realized.MOCU
		l.log.Info("experiment_step",
			"run_id", l.cfg.RunID,
			"strategy", record.Strategy,
			"step", step,
			"pair", pair.String(),
			"synchronized", outcome,
			"mocu", realized.MOCU,
			"shortfall", realized.Shortfall,
		)
	}

	record.Steps = len(trajectory)
	record.SurrogateFallbacks = l.totalFallbacks
	record.TotalElapsedMS = float64(time.Since(runStart).Microseconds()) / 1000
	record.CompletedAtUTC = time.Now().UTC().Format(time.RFC3339Nano)
	return record, trajectory, nil
}

func (l *Loop) update(ctx context.Context, pair kuramoto.Pair, synchronized bool) error {
	iv, err := l.state.At(pair)
	if err != nil {
		return err
	}
	switch l.cfg.Policy {
	case PolicyExact:
		value, err := l.oracle.MeasurePair(l.sys, pair)
		if err != nil {
			return err
		}
		return l.state.Collapse(pair, value)
	case PolicyThreshold:
		threshold, err := l.thresholds.Threshold(ctx, pair, iv.Low, iv.High)
		if err != nil {
			return err
		}
		low, high := thresholdWindow(iv, threshold, l.cfg.ThresholdMargin, synchronized)
		return l.state.Narrow(pair, low, high)
	default:
		return fmt.Errorf("unknown update policy: %s", l.cfg.Policy)
	}
}

// defaultThresholdMargin matches the precision of a boundary bisected with
// a handful of stochastic trials.
const defaultThresholdMargin = 0.05

// thresholdWindow maps an observed outcome to the narrowed interval. The
// excluded side is padded by margin so a truth inside the boundary's
// stochastic band stays contained.
func thresholdWindow(iv bounds.Interval, threshold, margin float64, synchronized bool) (float64, float64) {
	if synchronized {
		return math.Max(iv.Low, threshold-margin), iv.High
	}
	return iv.Low, math.Min(iv.High, threshold+margin)
}

func (l *Loop) untested() []kuramoto.Pair {
	pairs := make([]kuramoto.Pair, 0, len(l.state.Pairs()))
	for _, p := range l.state.Pairs() {
		if !l.tested[p] {
			pairs = append(pairs, p)
		}
	}
	return pairs
}
