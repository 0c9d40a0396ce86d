// Package mocu estimates the Mean Objective Cost of Uncertainty of a bound
// state: the expected penalty of committing to the robust synchronization
// control under the current uncertainty instead of the control an oracle
// with full knowledge of the coupling matrix would pick.
package mocu

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"syncprobe/internal/bounds"
	"syncprobe/internal/kuramoto"
)

// Config tunes the Monte Carlo estimator.
type Config struct {
	// MinSamples is the first batch size; MaxSamples is the hard ceiling.
	MinSamples int
	MaxSamples int
	// TargetStdErr stops sampling early once the standard error of the
	// mean falls under it. The ceiling wins over the target.
	TargetStdErr float64
	// OracleTrials is the per-realization trial count for sync checks.
	OracleTrials int
	// BoostMax caps the uniform coupling boost searched by bisection.
	BoostMax float64
	// BisectIters bounds the boost bisection depth.
	BisectIters int
	// SyncFraction is the synchronized trial fraction the Oracle must
	// report before a boost counts as confirmed.
	SyncFraction float64
}

// DefaultConfig returns the estimator settings used when the run config
// leaves the mocu section empty.
func DefaultConfig() Config {
	return Config{
		MinSamples:   64,
		MaxSamples:   512,
		TargetStdErr: 0.01,
		OracleTrials: 12,
		BoostMax:     8,
		BisectIters:  18,
		SyncFraction: 0.9,
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.MinSamples <= 0 {
		c.MinSamples = def.MinSamples
	}
	if c.MaxSamples < c.MinSamples {
		c.MaxSamples = c.MinSamples
	}
	if c.TargetStdErr <= 0 {
		c.TargetStdErr = def.TargetStdErr
	}
	if c.OracleTrials <= 0 {
		c.OracleTrials = def.OracleTrials
	}
	if c.BoostMax <= 0 {
		c.BoostMax = def.BoostMax
	}
	if c.BisectIters <= 0 {
		c.BisectIters = def.BisectIters
	}
	if c.SyncFraction <= 0 || c.SyncFraction > 1 {
		c.SyncFraction = def.SyncFraction
	}
	return c
}

// Value is one MOCU estimate. Shortfall marks a best-effort result whose
// standard error did not reach the configured target before the sample
// ceiling or an external deadline cut sampling off; it is informational,
// never an error.
type Value struct {
	MOCU      float64 `json:"mocu"`
	StdErr    float64 `json:"std_err"`
	Samples   int     `json:"samples"`
	Shortfall bool    `json:"shortfall,omitempty"`
}

// Estimator converts bound states into MOCU values by sampling coupling
// realizations through the synchronization Oracle.
type Estimator struct {
	oracle      *kuramoto.Oracle
	frequencies []float64
	cfg         Config
}

// NewEstimator wires an estimator to one system's natural frequencies.
func NewEstimator(oracle *kuramoto.Oracle, frequencies []float64, cfg Config) *Estimator {
	return &Estimator{
		oracle:      oracle,
		frequencies: append([]float64(nil), frequencies...),
		cfg:         cfg.normalized(),
	}
}

// Estimate computes the MOCU of a bound state.
//
// The robust boost is located once per state on the worst-case realization
// (all couplings at their lower bounds). Sampled realizations are then
// resolved in vectorized bisection sweeps, so each bisection depth costs a
// single batched Oracle invocation over all still-unresolved samples.
//
// Cancellation truncates sampling: if any samples landed before the
// deadline the call returns the running estimate flagged as a shortfall
// instead of failing.
func (e *Estimator) Estimate(ctx context.Context, state *bounds.State, seed int64) (Value, error) {
	if state.N() != len(e.frequencies) {
		return Value{}, fmt.Errorf("state describes %d oscillators, estimator has %d frequencies", state.N(), len(e.frequencies))
	}

	robust, err := e.minBoostBatch(ctx, [][][]float64{state.LowerMatrix()}, seed)
	if err != nil {
		return Value{}, err
	}
	robustBoost := robust[0]

	rng := rand.New(rand.NewSource(seed + 1))
	var costs []float64
	batch := e.cfg.MinSamples
	for len(costs) < e.cfg.MaxSamples {
		remaining := e.cfg.MaxSamples - len(costs)
		if batch > remaining {
			batch = remaining
		}
		matrices := make([][][]float64, batch)
		for m := range matrices {
			matrices[m] = state.SampleMatrix(rng)
		}
		optimal, err := e.minBoostBatch(ctx, matrices, seed+int64(len(costs))+2)
		if err != nil {
			if truncated(err) && len(costs) > 0 {
				value := summarize(costs)
				value.Shortfall = true
				return value, nil
			}
			return Value{}, err
		}
		for _, opt := range optimal {
			costs = append(costs, robustBoost-opt)
		}
		value := summarize(costs)
		if value.StdErr <= e.cfg.TargetStdErr {
			return value, nil
		}
	}
	value := summarize(costs)
	value.Shortfall = value.StdErr > e.cfg.TargetStdErr
	return value, nil
}

// RobustBoost exposes the worst-case control decision for a state: the
// smallest uniform boost the Oracle confirms synchronizes the lower-bound
// realization.
func (e *Estimator) RobustBoost(ctx context.Context, state *bounds.State, seed int64) (float64, error) {
	boosts, err := e.minBoostBatch(ctx, [][][]float64{state.LowerMatrix()}, seed)
	if err != nil {
		return 0, err
	}
	return boosts[0], nil
}

// minBoostBatch finds, per realization, the smallest uniform boost that
// reaches the confirmation fraction, by simultaneous bisection over all
// realizations. Realizations that never confirm within BoostMax are capped
// at BoostMax.
func (e *Estimator) minBoostBatch(ctx context.Context, matrices [][][]float64, seed int64) ([]float64, error) {
	count := len(matrices)
	lo := make([]float64, count)
	hi := make([]float64, count)
	resolved := make([]bool, count)
	for i := range hi {
		hi[i] = e.cfg.BoostMax
	}

	// Realizations that synchronize unboosted cost nothing.
	fractions, err := e.oracle.SimulateBatch(ctx, e.frequencies, matrices, e.cfg.OracleTrials, seed)
	if err != nil {
		return nil, err
	}
	for i, fraction := range fractions {
		if fraction >= e.cfg.SyncFraction {
			hi[i] = 0
			resolved[i] = true
		}
	}

	for iter := 0; iter < e.cfg.BisectIters; iter++ {
		active := make([]int, 0, count)
		for i := range matrices {
			if !resolved[i] && hi[i]-lo[i] > 1e-4 {
				active = append(active, i)
			}
		}
		if len(active) == 0 {
			break
		}
		boosted := make([][][]float64, len(active))
		for k, i := range active {
			boosted[k] = kuramoto.Boosted(matrices[i], 0.5*(lo[i]+hi[i]))
		}
		fractions, err := e.oracle.SimulateBatch(ctx, e.frequencies, boosted, e.cfg.OracleTrials, seed+int64(iter)+1)
		if err != nil {
			return nil, err
		}
		for k, i := range active {
			mid := 0.5 * (lo[i] + hi[i])
			if fractions[k] >= e.cfg.SyncFraction {
				hi[i] = mid
			} else {
				lo[i] = mid
			}
		}
	}
	return hi, nil
}

func summarize(costs []float64) Value {
	mean := 0.0
	for _, c := range costs {
		mean += c
	}
	mean /= float64(len(costs))

	variance := 0.0
	if len(costs) > 1 {
		for _, c := range costs {
			variance += (c - mean) * (c - mean)
		}
		variance /= float64(len(costs) - 1)
	}

	if mean < 0 {
		mean = 0
	}
	return Value{
		MOCU:    mean,
		StdErr:  math.Sqrt(variance / float64(len(costs))),
		Samples: len(costs),
	}
}

func truncated(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
