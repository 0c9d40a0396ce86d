package kuramoto

import (
	"context"
	"errors"
	"math"
	"testing"
)

func testOracle() *Oracle {
	return &Oracle{
		Dt:              0.02,
		Steps:           1200,
		BurnFraction:    0.5,
		SpreadTolerance: math.Pi / 2,
		Workers:         4,
	}
}

func TestSimulatePairLocksAboveFrequencyGap(t *testing.T) {
	oracle := testOracle()
	// Frequency gap 1, analytic lock threshold 0.5: coupling 2 locks hard.
	fraction, err := oracle.SimulatePair(context.Background(), -0.5, 0.5, 2.0, 6, 11)
	if err != nil {
		t.Fatalf("simulate pair: %v", err)
	}
	if fraction < 0.99 {
		t.Fatalf("expected strongly coupled pair to lock every trial, got fraction %g", fraction)
	}
}

func TestSimulatePairDriftsBelowFrequencyGap(t *testing.T) {
	oracle := testOracle()
	fraction, err := oracle.SimulatePair(context.Background(), -0.5, 0.5, 0.05, 6, 11)
	if err != nil {
		t.Fatalf("simulate pair: %v", err)
	}
	if fraction > 0.01 {
		t.Fatalf("expected weakly coupled pair to drift every trial, got fraction %g", fraction)
	}
}

func TestSimulateIsDeterministicPerSeed(t *testing.T) {
	oracle := testOracle()
	frequencies := []float64{-0.7, 0.1, 0.6}
	coupling := [][]float64{
		{0, 0.8, 0.4},
		{0.8, 0, 0.6},
		{0.4, 0.6, 0},
	}
	a, err := oracle.Simulate(context.Background(), frequencies, coupling, 8, 99)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	b, err := oracle.Simulate(context.Background(), frequencies, coupling, 8, 99)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if a != b {
		t.Fatalf("identical seeds produced different fractions: %g vs %g", a, b)
	}
}

func TestSimulateBatchMatchesSingleEvaluations(t *testing.T) {
	oracle := testOracle()
	frequencies := []float64{-0.5, 0.5}
	matrices := [][][]float64{
		{{0, 2.0}, {2.0, 0}},
		{{0, 0.05}, {0.05, 0}},
	}
	fractions, err := oracle.SimulateBatch(context.Background(), frequencies, matrices, 6, 7)
	if err != nil {
		t.Fatalf("simulate batch: %v", err)
	}
	if len(fractions) != 2 {
		t.Fatalf("expected 2 fractions, got %d", len(fractions))
	}
	if fractions[0] < 0.99 {
		t.Fatalf("expected first realization to lock, got %g", fractions[0])
	}
	if fractions[1] > 0.01 {
		t.Fatalf("expected second realization to drift, got %g", fractions[1])
	}
}

func TestPairThresholdBisectsNearHalfFrequencyGap(t *testing.T) {
	oracle := testOracle()
	threshold, err := oracle.PairThreshold(context.Background(), -0.5, 0.5, 0, 3, 6, 5)
	if err != nil {
		t.Fatalf("pair threshold: %v", err)
	}
	if threshold < 0.4 || threshold > 0.9 {
		t.Fatalf("expected threshold near 0.5 for frequency gap 1, got %g", threshold)
	}
}

func TestPairThresholdClampsToRangeEnds(t *testing.T) {
	oracle := testOracle()
	// Already locked at the lower end of the range.
	low, err := oracle.PairThreshold(context.Background(), -0.5, 0.5, 2, 3, 6, 5)
	if err != nil {
		t.Fatalf("pair threshold: %v", err)
	}
	if low != 2 {
		t.Fatalf("expected threshold at range start when already locked, got %g", low)
	}
	// Still drifting at the upper end.
	high, err := oracle.PairThreshold(context.Background(), -0.5, 0.5, 0, 0.1, 6, 5)
	if err != nil {
		t.Fatalf("pair threshold: %v", err)
	}
	if high != 0.1 {
		t.Fatalf("expected threshold at range end when never locking, got %g", high)
	}
}

func TestExperimentReadsHiddenCoupling(t *testing.T) {
	oracle := testOracle()
	sys, err := NewSystem([]float64{-0.5, 0.5}, [][]float64{
		{0, 2.0},
		{2.0, 0},
	})
	if err != nil {
		t.Fatalf("new system: %v", err)
	}
	synced, err := oracle.Experiment(context.Background(), sys, Pair{I: 0, J: 1}, 6, 3)
	if err != nil {
		t.Fatalf("experiment: %v", err)
	}
	if !synced {
		t.Fatalf("expected strongly coupled pair to synchronize")
	}
}

func TestMeasurePairReturnsTrueCoupling(t *testing.T) {
	oracle := testOracle()
	sys, err := NewSystem([]float64{-0.5, 0.5}, [][]float64{
		{0, 1.25},
		{1.25, 0},
	})
	if err != nil {
		t.Fatalf("new system: %v", err)
	}
	value, err := oracle.MeasurePair(sys, Pair{I: 0, J: 1})
	if err != nil {
		t.Fatalf("measure pair: %v", err)
	}
	if value != 1.25 {
		t.Fatalf("expected measured coupling 1.25, got %g", value)
	}
}

func TestBoostedAddsUniformOffDiagonalBoost(t *testing.T) {
	coupling := [][]float64{
		{0, 1, 2},
		{1, 0, 3},
		{2, 3, 0},
	}
	boosted := Boosted(coupling, 0.5)
	if boosted[0][0] != 0 || boosted[1][1] != 0 || boosted[2][2] != 0 {
		t.Fatalf("expected diagonal untouched, got %+v", boosted)
	}
	if boosted[0][1] != 1.5 || boosted[1][2] != 3.5 || boosted[2][0] != 2.5 {
		t.Fatalf("unexpected boosted matrix: %+v", boosted)
	}
	if coupling[0][1] != 1 {
		t.Fatalf("expected input matrix untouched, got %+v", coupling)
	}
}

func TestThresholdCacheBisectsOnceAndClamps(t *testing.T) {
	oracle := testOracle()
	cache := NewThresholdCache(oracle, []float64{-0.5, 0.5}, 6, 5)
	p := Pair{I: 0, J: 1}

	first, err := cache.Threshold(context.Background(), p, 0, 3)
	if err != nil {
		t.Fatalf("threshold: %v", err)
	}
	if first < 0.4 || first > 0.9 {
		t.Fatalf("expected threshold near 0.5, got %g", first)
	}

	// A narrower interval below the cached boundary clamps instead of
	// re-bisecting.
	clamped, err := cache.Threshold(context.Background(), p, 0, 0.2)
	if err != nil {
		t.Fatalf("threshold: %v", err)
	}
	if clamped != 0.2 {
		t.Fatalf("expected cached threshold clamped to 0.2, got %g", clamped)
	}
}

func TestSimulateStopsOnCancelledContext(t *testing.T) {
	oracle := testOracle()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := oracle.Simulate(ctx, []float64{-0.5, 0.5}, [][]float64{{0, 1}, {1, 0}}, 8, 3); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled from Simulate, got %v", err)
	}

	matrices := [][][]float64{
		{{0, 1}, {1, 0}},
		{{0, 2}, {2, 0}},
	}
	if _, err := oracle.SimulateBatch(ctx, []float64{-0.5, 0.5}, matrices, 8, 3); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled from SimulateBatch, got %v", err)
	}
}
