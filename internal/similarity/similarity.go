// Package similarity scores how closely a work description repeats earlier
// descriptions on the same subject.
package similarity

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// DefaultThreshold is the score above which an entry counts as copy-paste.
const DefaultThreshold = 0.70

// MaxCandidates bounds how many prior texts are compared.
const MaxCandidates = 10

// Jaccard returns the overlap of the lowercased word sets of a and b.
func Jaccard(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	wa := wordSet(a)
	wb := wordSet(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	inter := 0
	for w := range wa {
		if _, ok := wb[w]; ok {
			inter++
		}
	}
	union := len(wa) + len(wb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// SequenceRatio returns the sequence-alignment ratio over the lowercased
// character streams. The matcher is order-sensitive, so the larger of the two
// directions is taken to keep the score symmetric.
func SequenceRatio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	ca := chars(strings.ToLower(a))
	cb := chars(strings.ToLower(b))
	forward := difflib.NewMatcher(ca, cb).Ratio()
	backward := difflib.NewMatcher(cb, ca).Ratio()
	return max(forward, backward)
}

// Score is the larger of Jaccard and SequenceRatio.
func Score(a, b string) float64 {
	return max(Jaccard(a, b), SequenceRatio(a, b))
}

// Result is the outcome of comparing one text against its history.
type Result struct {
	MaxScore float64
	// Index of the prior text that produced MaxScore, -1 when none was compared.
	Index   int
	Flagged bool
}

// Detect compares current against at most MaxCandidates priors (most recent
// first) and flags copy-paste when the best score is strictly above threshold.
func Detect(current string, priors []string, threshold float64) Result {
	res := Result{Index: -1}
	if len(priors) > MaxCandidates {
		priors = priors[:MaxCandidates]
	}
	for i, prior := range priors {
		s := Score(current, prior)
		if res.Index == -1 || s > res.MaxScore {
			res.MaxScore = s
			res.Index = i
		}
	}
	res.Flagged = res.MaxScore > threshold
	return res
}

func wordSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		out[f] = struct{}{}
	}
	return out
}

func chars(s string) []string {
	return strings.Split(s, "")
}
