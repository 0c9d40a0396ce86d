package kuramoto

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"

	"github.com/sourcegraph/conc/pool"
)

// Oracle integrates Kuramoto phase dynamics and classifies trials as
// synchronized or not. It is the only source of ground truth in a run and
// by far the most expensive call, so batched invocations fan trials out
// across a bounded worker pool.
//
// A trial is synchronized when the wrapped phase spread across all
// oscillators falls below SpreadTolerance at the end of the burn-in window
// and stays below it for the remainder of the horizon. Non-finite phases
// classify the trial as not synchronized.
type Oracle struct {
	Dt              float64
	Steps           int
	BurnFraction    float64
	SpreadTolerance float64
	Workers         int
}

// DefaultOracle returns the integrator configuration used when the run
// config leaves oracle settings empty.
func DefaultOracle() *Oracle {
	return &Oracle{
		Dt:              0.01,
		Steps:           2400,
		BurnFraction:    0.75,
		SpreadTolerance: math.Pi / 2,
		Workers:         runtime.NumCPU(),
	}
}

func (o *Oracle) normalized() Oracle {
	out := *o
	def := DefaultOracle()
	if out.Dt <= 0 {
		out.Dt = def.Dt
	}
	if out.Steps <= 0 {
		out.Steps = def.Steps
	}
	if out.BurnFraction <= 0 || out.BurnFraction >= 1 {
		out.BurnFraction = def.BurnFraction
	}
	if out.SpreadTolerance <= 0 {
		out.SpreadTolerance = def.SpreadTolerance
	}
	if out.Workers <= 0 {
		out.Workers = def.Workers
	}
	return out
}

// Simulate runs trials independent random-phase integrations of the given
// coupling matrix and reports the synchronized fraction in [0, 1].
// Identical (coupling, trials, seed) inputs reproduce identical outcomes.
func (o *Oracle) Simulate(ctx context.Context, frequencies []float64, coupling [][]float64, trials int, seed int64) (float64, error) {
	if trials <= 0 {
		return 0, fmt.Errorf("oracle requires trials > 0, got %d", trials)
	}
	if len(coupling) != len(frequencies) {
		return 0, fmt.Errorf("coupling matrix has %d rows for %d oscillators", len(coupling), len(frequencies))
	}
	cfg := o.normalized()

	synced := make([]bool, trials)
	workers := pool.New().WithMaxGoroutines(cfg.Workers)
	var ctxErr error
	for trial := 0; trial < trials; trial++ {
		if ctxErr = ctx.Err(); ctxErr != nil {
			break
		}
		trial := trial
		workers.Go(func() {
			rng := rand.New(rand.NewSource(seed + int64(trial)))
			synced[trial] = cfg.simulateTrial(frequencies, coupling, rng)
		})
	}
	// Drain launched trials before returning so no goroutine writes into
	// synced after the call ends.
	workers.Wait()
	if ctxErr != nil {
		return 0, ctxErr
	}

	count := 0
	for _, ok := range synced {
		if ok {
			count++
		}
	}
	return float64(count) / float64(trials), nil
}

// SimulateBatch evaluates many coupling realizations in one parallel sweep.
// The result slice is ordered like the input; seeds are derived per matrix
// so the batch is reproducible and insensitive to scheduling order.
func (o *Oracle) SimulateBatch(ctx context.Context, frequencies []float64, matrices [][][]float64, trials int, seed int64) ([]float64, error) {
	if trials <= 0 {
		return nil, fmt.Errorf("oracle requires trials > 0, got %d", trials)
	}
	cfg := o.normalized()

	fractions := make([]float64, len(matrices))
	workers := pool.New().WithMaxGoroutines(cfg.Workers)
	var ctxErr error
	for m := range matrices {
		if ctxErr = ctx.Err(); ctxErr != nil {
			break
		}
		m := m
		workers.Go(func() {
			base := seed + int64(m)*int64(trials)
			count := 0
			for trial := 0; trial < trials; trial++ {
				rng := rand.New(rand.NewSource(base + int64(trial)))
				if cfg.simulateTrial(frequencies, matrices[m], rng) {
					count++
				}
			}
			fractions[m] = float64(count) / float64(trials)
		})
	}
	workers.Wait()
	if ctxErr != nil {
		return nil, ctxErr
	}
	return fractions, nil
}

// SimulatePair integrates the isolated two-oscillator subsystem with the
// given coupling strength and reports its synchronized fraction.
func (o *Oracle) SimulatePair(ctx context.Context, freqI, freqJ, coupling float64, trials int, seed int64) (float64, error) {
	matrix := [][]float64{
		{0, coupling},
		{coupling, 0},
	}
	return o.Simulate(ctx, []float64{freqI, freqJ}, matrix, trials, seed)
}

// PairThreshold locates the coupling strength inside [low, high] at which
// the isolated pair crosses from drift to lock, by bisection through the
// simulator. Returns low when the pair already locks at low and high when
// it still drifts at high.
func (o *Oracle) PairThreshold(ctx context.Context, freqI, freqJ, low, high float64, trials int, seed int64) (float64, error) {
	if high < low {
		return 0, fmt.Errorf("pair threshold range is inverted: [%g, %g]", low, high)
	}
	atLow, err := o.SimulatePair(ctx, freqI, freqJ, low, trials, seed)
	if err != nil {
		return 0, err
	}
	if atLow >= 0.5 {
		return low, nil
	}
	atHigh, err := o.SimulatePair(ctx, freqI, freqJ, high, trials, seed)
	if err != nil {
		return 0, err
	}
	if atHigh < 0.5 {
		return high, nil
	}

	lo, hi := low, high
	for iter := 0; iter < 40 && hi-lo > 1e-6; iter++ {
		mid := 0.5 * (lo + hi)
		fraction, err := o.SimulatePair(ctx, freqI, freqJ, mid, trials, seed)
		if err != nil {
			return 0, err
		}
		if fraction >= 0.5 {
			hi = mid
		} else {
			lo = mid
		}
	}
	return 0.5 * (lo + hi), nil
}

// Experiment runs the real physical probe for one pair: the isolated
// two-oscillator subsystem under the hidden true coupling, at a high trial
// count. This is the only read of the ground truth during a run.
func (o *Oracle) Experiment(ctx context.Context, sys *System, p Pair, trials int, seed int64) (bool, error) {
	if err := sys.checkPair(p); err != nil {
		return false, err
	}
	fraction, err := o.SimulatePair(ctx, sys.frequencies[p.I], sys.frequencies[p.J], sys.coupling[p.I][p.J], trials, seed)
	if err != nil {
		return false, err
	}
	return fraction >= 0.5, nil
}

// MeasurePair is the calibration readout backing the "exact" update policy:
// the lab resolves the pair's coupling to a point value after probing it.
func (o *Oracle) MeasurePair(sys *System, p Pair) (float64, error) {
	if err := sys.checkPair(p); err != nil {
		return 0, err
	}
	return sys.coupling[p.I][p.J], nil
}

func (o Oracle) simulateTrial(frequencies []float64, coupling [][]float64, rng *rand.Rand) bool {
	n := len(frequencies)
	phases := make([]float64, n)
	for i := range phases {
		phases[i] = rng.Float64() * 2 * math.Pi
	}

	k1 := make([]float64, n)
	k2 := make([]float64, n)
	k3 := make([]float64, n)
	k4 := make([]float64, n)
	scratch := make([]float64, n)

	burnSteps := int(float64(o.Steps) * o.BurnFraction)
	for step := 0; step < o.Steps; step++ {
		phaseDerivatives(frequencies, coupling, phases, k1)
		axpy(scratch, phases, k1, o.Dt/2)
		phaseDerivatives(frequencies, coupling, scratch, k2)
		axpy(scratch, phases, k2, o.Dt/2)
		phaseDerivatives(frequencies, coupling, scratch, k3)
		axpy(scratch, phases, k3, o.Dt)
		phaseDerivatives(frequencies, coupling, scratch, k4)
		for i := 0; i < n; i++ {
			phases[i] += o.Dt / 6 * (k1[i] + 2*k2[i] + 2*k3[i] + k4[i])
			if math.IsNaN(phases[i]) || math.IsInf(phases[i], 0) {
				return false
			}
		}
		if step >= burnSteps && phaseSpread(phases) > o.SpreadTolerance {
			return false
		}
	}
	return true
}

// phaseDerivatives evaluates dθi/dt = ωi + Σj a_ij·sin(θj − θi) into out.
func phaseDerivatives(frequencies []float64, coupling [][]float64, phases, out []float64) {
	for i := range phases {
		sum := frequencies[i]
		row := coupling[i]
		for j := range phases {
			if j == i {
				continue
			}
			sum += row[j] * math.Sin(phases[j]-phases[i])
		}
		out[i] = sum
	}
}

func axpy(dst, base, delta []float64, scale float64) {
	for i := range dst {
		dst[i] = base[i] + scale*delta[i]
	}
}

// phaseSpread is the largest wrapped pairwise phase difference.
func phaseSpread(phases []float64) float64 {
	spread := 0.0
	for i := 0; i < len(phases); i++ {
		for j := i + 1; j < len(phases); j++ {
			diff := math.Abs(wrapPi(phases[i] - phases[j]))
			if diff > spread {
				spread = diff
			}
		}
	}
	return spread
}

func wrapPi(angle float64) float64 {
	wrapped := math.Mod(angle+math.Pi, 2*math.Pi)
	if wrapped < 0 {
		wrapped += 2 * math.Pi
	}
	return wrapped - math.Pi
}

// Boosted returns a copy of the coupling matrix with a uniform additive
// boost applied to every off-diagonal entry. The robust control decision is
// expressed in this space.
func Boosted(coupling [][]float64, boost float64) [][]float64 {
	out := make([][]float64, len(coupling))
	for i := range coupling {
		out[i] = append([]float64(nil), coupling[i]...)
		for j := range out[i] {
			if j != i {
				out[i][j] += boost
			}
		}
	}
	return out
}
