package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentile(t *testing.T) {
	tests := []struct {
		name     string
		samples  []float64
		p        float64
		expected float64
	}{
		{
			name:     "empty input yields zero",
			samples:  nil,
			p:        90,
			expected: 0.0,
		},
		{
			name:     "median of odd-length set",
			samples:  []float64{1, 2, 3, 4, 5},
			p:        50,
			expected: 3.0,
		},
		{
			name:     "median interpolates on even-length set",
			samples:  []float64{1, 2, 3, 4},
			p:        50,
			expected: 2.5,
		},
		{
			name:     "p0 is the minimum",
			samples:  []float64{7, 3, 9},
			p:        0,
			expected: 3.0,
		},
		{
			name:     "p100 is the maximum",
			samples:  []float64{7, 3, 9},
			p:        100,
			expected: 9.0,
		},
		{
			name:     "p90 interpolates between order statistics",
			samples:  []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
			p:        90,
			expected: 91.0,
		},
		{
			name:     "single sample",
			samples:  []float64{42},
			p:        99,
			expected: 42.0,
		},
		{
			name:     "input order does not matter",
			samples:  []float64{5, 1, 4, 2, 3},
			p:        50,
			expected: 3.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Percentile(tt.samples, tt.p), 1e-9)
		})
	}
}

func TestPercentileDoesNotMutateInput(t *testing.T) {
	samples := []float64{3, 1, 2}
	Percentile(samples, 50)
	assert.Equal(t, []float64{3, 1, 2}, samples)
}

func TestPercentilePanicsOutOfRange(t *testing.T) {
	assert.Panics(t, func() { Percentile([]float64{1, 2}, -1) })
	assert.Panics(t, func() { Percentile([]float64{1, 2}, 100.5) })
}
