package mocu

import (
	"context"
	"errors"
	"math"
	"testing"

	"syncprobe/internal/bounds"
	"syncprobe/internal/kuramoto"
)

func testOracle() *kuramoto.Oracle {
	return &kuramoto.Oracle{
		Dt:              0.02,
		Steps:           1200,
		BurnFraction:    0.5,
		SpreadTolerance: math.Pi / 2,
		Workers:         4,
	}
}

func testConfig() Config {
	return Config{
		MinSamples:   8,
		MaxSamples:   16,
		TargetStdErr: 0.05,
		OracleTrials: 4,
		BoostMax:     4,
		BisectIters:  10,
		SyncFraction: 0.9,
	}
}

func degenerateState(t *testing.T, n int, value float64) *bounds.State {
	t.Helper()
	state, err := bounds.NewState(n, value, value)
	if err != nil {
		t.Fatalf("new state: %v", err)
	}
	return state
}

func TestEstimateIsZeroWhenUncertaintyIsResolved(t *testing.T) {
	// Every interval is a point, so the robust and oracle-optimal controls
	// coincide and uncertainty carries no cost.
	estimator := NewEstimator(testOracle(), []float64{-0.5, 0.5}, testConfig())
	value, err := estimator.Estimate(context.Background(), degenerateState(t, 2, 1.5), 21)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if value.MOCU != 0 {
		t.Fatalf("expected zero MOCU for a resolved state, got %g", value.MOCU)
	}
	if value.Shortfall {
		t.Fatalf("zero-variance estimate must not report a precision shortfall")
	}
}

func TestEstimateIsDeterministicPerSeed(t *testing.T) {
	estimator := NewEstimator(testOracle(), []float64{-0.5, 0.5}, testConfig())
	state, err := bounds.NewState(2, 0, 3)
	if err != nil {
		t.Fatalf("new state: %v", err)
	}
	a, err := estimator.Estimate(context.Background(), state, 21)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	b, err := estimator.Estimate(context.Background(), state.Snapshot(), 21)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if a.MOCU != b.MOCU || a.Samples != b.Samples || a.StdErr != b.StdErr {
		t.Fatalf("identical seeds diverged: %+v vs %+v", a, b)
	}
}

func TestEstimateIsPositiveUnderWideUncertainty(t *testing.T) {
	// Over [0, 3] some realizations lock unaided while the worst case needs
	// a substantial boost, so the robust decision overpays on average.
	estimator := NewEstimator(testOracle(), []float64{-0.5, 0.5}, testConfig())
	state, err := bounds.NewState(2, 0, 3)
	if err != nil {
		t.Fatalf("new state: %v", err)
	}
	value, err := estimator.Estimate(context.Background(), state, 21)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if value.MOCU <= 0 {
		t.Fatalf("expected positive MOCU under wide uncertainty, got %g", value.MOCU)
	}
	if value.Samples < testConfig().MinSamples {
		t.Fatalf("expected at least the minimum batch, got %d samples", value.Samples)
	}
}

func TestEstimateFlagsShortfallAtSampleCeiling(t *testing.T) {
	cfg := testConfig()
	cfg.TargetStdErr = 1e-9
	estimator := NewEstimator(testOracle(), []float64{-0.5, 0.5}, cfg)
	state, err := bounds.NewState(2, 0, 3)
	if err != nil {
		t.Fatalf("new state: %v", err)
	}
	value, err := estimator.Estimate(context.Background(), state, 21)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if !value.Shortfall {
		t.Fatalf("expected shortfall flag when the target is unreachable, got %+v", value)
	}
	if value.Samples != cfg.MaxSamples {
		t.Fatalf("expected sampling up to the ceiling %d, got %d", cfg.MaxSamples, value.Samples)
	}
}

func TestEstimateFailsCleanlyWhenCancelledBeforeSampling(t *testing.T) {
	estimator := NewEstimator(testOracle(), []float64{-0.5, 0.5}, testConfig())
	state, err := bounds.NewState(2, 0, 3)
	if err != nil {
		t.Fatalf("new state: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := estimator.Estimate(ctx, state, 21); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled with no samples gathered, got %v", err)
	}
}

func TestRobustBoostCoversWorstCase(t *testing.T) {
	estimator := NewEstimator(testOracle(), []float64{-0.5, 0.5}, testConfig())
	state, err := bounds.NewState(2, 0, 3)
	if err != nil {
		t.Fatalf("new state: %v", err)
	}
	boost, err := estimator.RobustBoost(context.Background(), state, 21)
	if err != nil {
		t.Fatalf("robust boost: %v", err)
	}
	// The worst case is zero coupling; a frequency gap of 1 needs a boost
	// past the analytic lock threshold 0.5.
	if boost < 0.4 || boost > 2 {
		t.Fatalf("expected robust boost near the lock threshold, got %g", boost)
	}

	resolved := degenerateState(t, 2, 2)
	none, err := estimator.RobustBoost(context.Background(), resolved, 21)
	if err != nil {
		t.Fatalf("robust boost: %v", err)
	}
	if none != 0 {
		t.Fatalf("expected zero boost for a strongly coupled resolved state, got %g", none)
	}
}
