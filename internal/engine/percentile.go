package engine

import (
	"fmt"
	"math"
	"sort"
)

// Percentile returns the p-th percentile of samples using linear
// interpolation between the two bracketing order statistics
// (rank = p/100 * (n-1)). Stored rollups were produced with this exact
// method, so nearest-rank or other definitions must not be substituted.
// An empty sample set yields 0.0. A p outside [0,100] is a caller bug,
// not a data condition.
func Percentile(samples []float64, p float64) float64 {
	if p < 0 || p > 100 {
		panic(fmt.Sprintf("percentile out of range [0,100]: %v", p))
	}
	if len(samples) == 0 {
		return 0.0
	}

	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}
