package kuramoto

import (
	"context"
	"sync"
)

// ThresholdCache memoizes the per-pair sync boundary. The boundary is a
// fixed physical property of a pair, so it is bisected once over the
// widest interval it is ever asked about and clamped afterwards.
type ThresholdCache struct {
	oracle      *Oracle
	frequencies []float64
	trials      int
	seed        int64

	mu    sync.Mutex
	cache map[Pair]float64
}

// NewThresholdCache builds a cache for one system's frequencies.
func NewThresholdCache(oracle *Oracle, frequencies []float64, trials int, seed int64) *ThresholdCache {
	return &ThresholdCache{
		oracle:      oracle,
		frequencies: append([]float64(nil), frequencies...),
		trials:      trials,
		seed:        seed,
		cache:       make(map[Pair]float64),
	}
}

// Frequencies returns a copy of the natural frequencies the cache serves.
func (c *ThresholdCache) Frequencies() []float64 {
	return append([]float64(nil), c.frequencies...)
}

// Threshold returns the pair's sync boundary clamped into [low, high].
func (c *ThresholdCache) Threshold(ctx context.Context, p Pair, low, high float64) (float64, error) {
	c.mu.Lock()
	value, ok := c.cache[p]
	c.mu.Unlock()
	if !ok {
		var err error
		value, err = c.oracle.PairThreshold(ctx, c.frequencies[p.I], c.frequencies[p.J], low, high, c.trials, c.seed)
		if err != nil {
			return 0, err
		}
		c.mu.Lock()
		c.cache[p] = value
		c.mu.Unlock()
	}
	if value < low {
		value = low
	}
	if value > high {
		value = high
	}
	return value, nil
}
