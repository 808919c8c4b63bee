package matcher

import (
	"strings"

	"github.com/rshade/lcamatch/internal/preprocess"
)

// Score tiers. Trigram similarity is capped below ScoreNormalized so a
// fuzzy hit never outranks a normalized one.
const (
	ScoreExact           = 1.0
	ScoreCaseInsensitive = 0.99
	ScoreNormalized      = 0.95
	maxTrigramScore      = 0.94
)

// Score rates how well candidate matches name on a 0..1 scale.
func Score(name, candidate string) float64 {
	a, b := strings.TrimSpace(name), strings.TrimSpace(candidate)
	if a == "" || b == "" {
		return 0
	}
	switch {
	case a == b:
		return ScoreExact
	case strings.EqualFold(a, b):
		return ScoreCaseInsensitive
	}

	fa, fb := preprocess.FoldAlnum(a), preprocess.FoldAlnum(b)
	if fa != "" && fa == fb {
		return ScoreNormalized
	}
	return min(trigramSimilarity(fa, fb), maxTrigramScore)
}

// trigramSimilarity is the Jaccard index of the padded trigram sets of a
// and b.
func trigramSimilarity(a, b string) float64 {
	ta, tb := trigrams(a), trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	shared := 0
	for g := range ta {
		if tb[g] {
			shared++
		}
	}
	return float64(shared) / float64(len(ta)+len(tb)-shared)
}

// trigrams returns the trigrams of every word of s, each word padded with
// two leading and one trailing space.
func trigrams(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		r := []rune("  " + w + " ")
		for i := 0; i+3 <= len(r); i++ {
			out[string(r[i:i+3])] = true
		}
	}
	return out
}
