package kuramoto

import (
	"fmt"
	"math"
	"math/rand"
)

// Pair identifies one undirected oscillator pair with I < J.
type Pair struct {
	I int `json:"i"`
	J int `json:"j"`
}

func (p Pair) String() string {
	return fmt.Sprintf("(%d,%d)", p.I, p.J)
}

// Less orders pairs lexicographically for deterministic tie-breaking.
func (p Pair) Less(other Pair) bool {
	if p.I != other.I {
		return p.I < other.I
	}
	return p.J < other.J
}

// AllPairs enumerates every undirected pair of an n-oscillator network in index order.
func AllPairs(n int) []Pair {
	pairs := make([]Pair, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			pairs = append(pairs, Pair{I: i, J: j})
		}
	}
	return pairs
}

// System is an immutable description of a coupled oscillator network.
// The ground-truth coupling matrix is deliberately unexported: only the
// Oracle in this package may evaluate dynamics against it, so selection
// strategies can never rank candidates by peeking at the truth.
type System struct {
	n           int
	frequencies []float64
	coupling    [][]float64
}

// NewSystem builds a system from natural frequencies and a symmetric
// ground-truth coupling matrix. The diagonal is ignored.
func NewSystem(frequencies []float64, coupling [][]float64) (*System, error) {
	n := len(frequencies)
	if n < 2 {
		return nil, fmt.Errorf("system requires at least 2 oscillators, got %d", n)
	}
	if len(coupling) != n {
		return nil, fmt.Errorf("coupling matrix has %d rows, want %d", len(coupling), n)
	}
	matrix := make([][]float64, n)
	for i := range coupling {
		if len(coupling[i]) != n {
			return nil, fmt.Errorf("coupling row %d has %d columns, want %d", i, len(coupling[i]), n)
		}
		matrix[i] = append([]float64(nil), coupling[i]...)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if math.Abs(matrix[i][j]-matrix[j][i]) > 1e-12 {
				return nil, fmt.Errorf("coupling matrix is not symmetric at %d,%d", i, j)
			}
			if matrix[i][j] < 0 {
				return nil, fmt.Errorf("coupling %d,%d is negative", i, j)
			}
		}
	}
	return &System{
		n:           n,
		frequencies: append([]float64(nil), frequencies...),
		coupling:    matrix,
	}, nil
}

// RandomSystem draws natural frequencies and symmetric couplings uniformly
// from the given ranges. Identical seeds reproduce identical systems.
func RandomSystem(n int, freqMin, freqMax, couplingMin, couplingMax float64, seed int64) (*System, error) {
	if n < 2 {
		return nil, fmt.Errorf("system requires at least 2 oscillators, got %d", n)
	}
	if freqMax < freqMin {
		return nil, fmt.Errorf("frequency range is inverted: [%g, %g]", freqMin, freqMax)
	}
	if couplingMax < couplingMin {
		return nil, fmt.Errorf("coupling range is inverted: [%g, %g]", couplingMin, couplingMax)
	}
	rng := rand.New(rand.NewSource(seed))
	frequencies := make([]float64, n)
	for i := range frequencies {
		frequencies[i] = freqMin + rng.Float64()*(freqMax-freqMin)
	}
	coupling := make([][]float64, n)
	for i := range coupling {
		coupling[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			value := couplingMin + rng.Float64()*(couplingMax-couplingMin)
			coupling[i][j] = value
			coupling[j][i] = value
		}
	}
	return NewSystem(frequencies, coupling)
}

// N reports the oscillator count.
func (s *System) N() int {
	return s.n
}

// Frequencies returns a copy of the natural frequencies.
func (s *System) Frequencies() []float64 {
	return append([]float64(nil), s.frequencies...)
}

// CouplingWithin reports whether the hidden true coupling for the pair lies
// inside [low, high]. It exposes a containment predicate without leaking the
// value itself; the experiment loop uses it to assert the bound invariant.
func (s *System) CouplingWithin(p Pair, low, high float64) (bool, error) {
	if err := s.checkPair(p); err != nil {
		return false, err
	}
	value := s.coupling[p.I][p.J]
	return low <= value && value <= high, nil
}

func (s *System) checkPair(p Pair) error {
	if p.I < 0 || p.J >= s.n || p.I >= p.J {
		return fmt.Errorf("pair %s is out of range for %d oscillators", p, s.n)
	}
	return nil
}
