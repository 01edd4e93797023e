package engine

import (
	"math"
	"strings"
)

// WordErrorRate scores a produced transcript against its corrected ground
// truth: reference is the corrected text, hypothesis the ASR output. The two
// roles are not interchangeable because the edit distance is normalized by
// the reference token count; the result can exceed 1.0 when the hypothesis
// inserts more tokens than the reference holds.
//
// An empty reference means no error is attributable and scores 0.0; a
// non-empty reference with an empty hypothesis is a total miss and scores
// 1.0. Tokenization is whitespace splitting, token equality is
// case-insensitive, and the result is rounded to 4 decimal places.
func WordErrorRate(reference, hypothesis string) float64 {
	refTokens := strings.Fields(reference)
	if len(refTokens) == 0 {
		return 0.0
	}

	hypTokens := strings.Fields(hypothesis)
	if len(hypTokens) == 0 {
		return 1.0
	}

	dist := tokenEditDistance(refTokens, hypTokens)
	return round4(float64(dist) / float64(len(refTokens)))
}

// tokenEditDistance is the Levenshtein distance over token sequences with
// unit cost for substitution, insertion and deletion.
func tokenEditDistance(ref, hyp []string) int {
	n, m := len(ref), len(hyp)

	prev := make([]int, m+1)
	curr := make([]int, m+1)
	for j := 0; j <= m; j++ {
		prev[j] = j
	}

	for i := 1; i <= n; i++ {
		curr[0] = i
		for j := 1; j <= m; j++ {
			cost := 1
			if strings.EqualFold(ref[i-1], hyp[j-1]) {
				cost = 0
			}
			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[m]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
