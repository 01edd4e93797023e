package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWordErrorRate(t *testing.T) {
	tests := []struct {
		name       string
		reference  string
		hypothesis string
		expected   float64
	}{
		{
			name:       "empty reference scores zero regardless of hypothesis",
			reference:  "",
			hypothesis: "anything at all",
			expected:   0.0,
		},
		{
			name:       "whitespace-only reference scores zero",
			reference:  "   \t ",
			hypothesis: "anything",
			expected:   0.0,
		},
		{
			name:       "empty hypothesis against non-empty reference is a total miss",
			reference:  "the cat sat",
			hypothesis: "",
			expected:   1.0,
		},
		{
			name:       "identical strings",
			reference:  "the cat sat on the mat",
			hypothesis: "the cat sat on the mat",
			expected:   0.0,
		},
		{
			name:       "identical up to case",
			reference:  "The Cat SAT",
			hypothesis: "the cat sat",
			expected:   0.0,
		},
		{
			name:       "one substitution in three tokens",
			reference:  "the cat sat",
			hypothesis: "the dog sat",
			expected:   0.3333,
		},
		{
			name:       "deletion",
			reference:  "the cat sat down",
			hypothesis: "the cat sat",
			expected:   0.25,
		},
		{
			name:       "insertions can push the rate above one",
			reference:  "hi",
			hypothesis: "hello there my good friend",
			expected:   5.0,
		},
		{
			name:       "extra internal whitespace does not create tokens",
			reference:  "the   cat  sat",
			hypothesis: "the cat sat",
			expected:   0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, WordErrorRate(tt.reference, tt.hypothesis))
		})
	}
}

func TestWordErrorRateIsDirectional(t *testing.T) {
	// Swapping reference and hypothesis changes the normalization base.
	assert.Equal(t, 1.0, WordErrorRate("a b", "a b c d"))
	assert.Equal(t, 0.5, WordErrorRate("a b c d", "a b"))

	assert.Equal(t, 2.0, WordErrorRate("a", "b c"))
	assert.Equal(t, 1.0, WordErrorRate("b c", "a"))
}
