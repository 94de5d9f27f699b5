package testutil

import (
	"math"
	"math/rand"
	"sort"
	"sync"
)

// Zipf draws cache keys in [0, n) with Zipfian popularity: P(k) ∝ 1/(k+1)^s.
// s=1.0 gives standard Zipf, larger s concentrates traffic on fewer keys.
//
// The cumulative weights are computed once, so each draw is a binary search.
// It is safe for concurrent use.
type Zipf struct {
	mu   sync.Mutex
	rand *rand.Rand
	cdf  []float64
}

// NewZipf creates a sampler over n keys with skew s, seeded for reproducible
// benchmark workloads. n < 1 is treated as 1.
func NewZipf(seed int64, n int, s float64) *Zipf {
	n = max(n, 1)
	cdf := make([]float64, n)
	var total float64
	for k := range cdf {
		total += 1.0 / math.Pow(float64(k+1), s)
		cdf[k] = total
	}
	for k := range cdf {
		cdf[k] /= total
	}
	return &Zipf{
		rand: rand.New(rand.NewSource(seed)),
		cdf:  cdf,
	}
}

// Next returns the next key.
func (z *Zipf) Next() int {
	z.mu.Lock()
	u := z.rand.Float64()
	z.mu.Unlock()

	k := sort.SearchFloat64s(z.cdf, u)
	return min(k, len(z.cdf)-1)
}

// Keys returns n draws, for workloads precomputed outside the timed loop.
func (z *Zipf) Keys(n int) []int {
	keys := make([]int, n)
	for i := range keys {
		keys[i] = z.Next()
	}
	return keys
}
