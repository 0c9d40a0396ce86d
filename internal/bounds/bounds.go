// Package bounds holds the uncertainty state of a run: one closed interval
// of possible coupling strengths per oscillator pair. Intervals only ever
// narrow; the true coupling stays inside its interval at all times.
//
// The symmetric pair matrix is stored as a flat upper-triangular arena so
// (i, j) and (j, i) share one mutable entry and hypothetical narrowings can
// be cheap copies.
package bounds

import (
	"errors"
	"fmt"
	"math/rand"

	"syncprobe/internal/kuramoto"
)

// ErrInvalidBounds marks a programming-invariant violation in the bound
// bookkeeping. It is fatal: the run must abort rather than continue from a
// corrupted state.
var ErrInvalidBounds = errors.New("invalid bound state")

// Interval is one closed coupling range [Low, High].
type Interval struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Width reports the interval length.
func (iv Interval) Width() float64 {
	return iv.High - iv.Low
}

// Degenerate reports whether the interval has collapsed to a single point.
func (iv Interval) Degenerate() bool {
	return iv.High-iv.Low <= degenerateWidth
}

const degenerateWidth = 1e-9

// State is the per-pair interval matrix. It is owned and mutated only by
// the experiment loop's update phase; everything else works on snapshots.
type State struct {
	n         int
	intervals []Interval
}

// NewState initializes every pair's interval to the prior box [low, high].
func NewState(n int, low, high float64) (*State, error) {
	if n < 2 {
		return nil, fmt.Errorf("bound state requires at least 2 oscillators, got %d", n)
	}
	if low > high {
		return nil, fmt.Errorf("%w: prior box [%g, %g] is inverted", ErrInvalidBounds, low, high)
	}
	intervals := make([]Interval, n*(n-1)/2)
	for k := range intervals {
		intervals[k] = Interval{Low: low, High: high}
	}
	return &State{n: n, intervals: intervals}, nil
}

// N reports the oscillator count the state describes.
func (s *State) N() int {
	return s.n
}

// Pairs enumerates every pair in index order.
func (s *State) Pairs() []kuramoto.Pair {
	return kuramoto.AllPairs(s.n)
}

// At returns the current interval for a pair.
func (s *State) At(p kuramoto.Pair) (Interval, error) {
	k, err := s.index(p)
	if err != nil {
		return Interval{}, err
	}
	return s.intervals[k], nil
}

// Narrow replaces a pair's interval with a sub-interval of itself.
// Widening in either direction, or an inverted replacement, is an
// ErrInvalidBounds violation.
func (s *State) Narrow(p kuramoto.Pair, low, high float64) error {
	k, err := s.index(p)
	if err != nil {
		return err
	}
	current := s.intervals[k]
	if low > high {
		return fmt.Errorf("%w: narrow %s to inverted [%g, %g]", ErrInvalidBounds, p, low, high)
	}
	if low < current.Low-narrowSlack || high > current.High+narrowSlack {
		return fmt.Errorf("%w: narrow %s to [%g, %g] widens current [%g, %g]",
			ErrInvalidBounds, p, low, high, current.Low, current.High)
	}
	if low < current.Low {
		low = current.Low
	}
	if high > current.High {
		high = current.High
	}
	s.intervals[k] = Interval{Low: low, High: high}
	return nil
}

// narrowSlack absorbs float noise from bisection-derived thresholds.
const narrowSlack = 1e-9

// Collapse pins a pair's interval to a single point inside it.
func (s *State) Collapse(p kuramoto.Pair, value float64) error {
	return s.Narrow(p, value, value)
}

// Snapshot returns an independent deep copy. Strategies evaluate several
// hypothetical narrowings of the same base state concurrently, so every
// consumer outside the update phase gets its own copy.
func (s *State) Snapshot() *State {
	return &State{
		n:         s.n,
		intervals: append([]Interval(nil), s.intervals...),
	}
}

// WithNarrowed returns a snapshot with one pair narrowed, leaving the
// receiver untouched.
func (s *State) WithNarrowed(p kuramoto.Pair, low, high float64) (*State, error) {
	out := s.Snapshot()
	if err := out.Narrow(p, low, high); err != nil {
		return nil, err
	}
	return out, nil
}

// AllDegenerate reports whether every interval has collapsed to a point.
func (s *State) AllDegenerate() bool {
	for _, iv := range s.intervals {
		if !iv.Degenerate() {
			return false
		}
	}
	return true
}

// MaxWidth returns the widest interval and its pair, in index order on ties.
func (s *State) MaxWidth() (kuramoto.Pair, float64) {
	best := kuramoto.Pair{I: 0, J: 1}
	width := -1.0
	for _, p := range s.Pairs() {
		iv, _ := s.At(p)
		if iv.Width() > width {
			best = p
			width = iv.Width()
		}
	}
	return best, width
}

// LowerMatrix materializes the worst-case realization consistent with the
// state: every coupling at its lower bound.
func (s *State) LowerMatrix() [][]float64 {
	matrix := make([][]float64, s.n)
	for i := range matrix {
		matrix[i] = make([]float64, s.n)
	}
	for _, p := range s.Pairs() {
		iv, _ := s.At(p)
		matrix[p.I][p.J] = iv.Low
		matrix[p.J][p.I] = iv.Low
	}
	return matrix
}

// SampleMatrix draws one coupling realization uniformly from the box.
func (s *State) SampleMatrix(rng *rand.Rand) [][]float64 {
	matrix := make([][]float64, s.n)
	for i := range matrix {
		matrix[i] = make([]float64, s.n)
	}
	for _, p := range s.Pairs() {
		iv, _ := s.At(p)
		value := iv.Low + rng.Float64()*iv.Width()
		matrix[p.I][p.J] = value
		matrix[p.J][p.I] = value
	}
	return matrix
}

// Intervals returns a copy of the flat upper-triangular interval arena in
// pair index order, for serialization and surrogate feature encoding.
func (s *State) Intervals() []Interval {
	return append([]Interval(nil), s.intervals...)
}

// FromIntervals rebuilds a state from a flat arena previously produced by
// Intervals.
func FromIntervals(n int, intervals []Interval) (*State, error) {
	if want := n * (n - 1) / 2; len(intervals) != want {
		return nil, fmt.Errorf("%w: %d intervals for %d oscillators, want %d", ErrInvalidBounds, len(intervals), n, want)
	}
	for k, iv := range intervals {
		if iv.Low > iv.High {
			return nil, fmt.Errorf("%w: interval %d is inverted [%g, %g]", ErrInvalidBounds, k, iv.Low, iv.High)
		}
	}
	return &State{n: n, intervals: append([]Interval(nil), intervals...)}, nil
}

// CheckContains asserts that every interval still contains the hidden true
// coupling. A failure is an update-rule bug and must abort the run.
func (s *State) CheckContains(sys *kuramoto.System) error {
	if sys.N() != s.n {
		return fmt.Errorf("%w: state describes %d oscillators, system has %d", ErrInvalidBounds, s.n, sys.N())
	}
	for _, p := range s.Pairs() {
		iv, _ := s.At(p)
		ok, err := sys.CouplingWithin(p, iv.Low-narrowSlack, iv.High+narrowSlack)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: interval [%g, %g] for %s no longer contains the true coupling",
				ErrInvalidBounds, iv.Low, iv.High, p)
		}
	}
	return nil
}

func (s *State) index(p kuramoto.Pair) (int, error) {
	if p.I < 0 || p.J >= s.n || p.I >= p.J {
		return 0, fmt.Errorf("pair %s is out of range for %d oscillators", p, s.n)
	}
	return p.I*s.n - p.I*(p.I+1)/2 + (p.J - p.I - 1), nil
}
