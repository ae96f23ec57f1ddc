// Package history matches transactions against a corpus of confirmed
// fraud cases. A match means the transaction resembles known fraud by
// merchant or location, with a confidence derived from how typical the
// amount is among those cases.
package history

import (
	"math"

	"github.com/yusdesign/trier/internal/domain"
)

// Match is the outcome of comparing one transaction to the fraud corpus.
type Match struct {
	Matched      bool
	SimilarCount int
	Confidence   float64
}

// Matcher indexes a fraud corpus for lookup by merchant and location.
// Build once from the loaded corpus; safe for concurrent reads.
type Matcher struct {
	byMerchant  map[string][]int
	byLocation  map[string][]int
	amounts     []float64
	requireBoth bool
}

// NewMatcher indexes the corpus. When requireBoth is set, a record is
// similar only if both merchant and location match; the default treats
// either as sufficient.
func NewMatcher(corpus []*domain.HistoricalFraud, requireBoth bool) *Matcher {
	m := &Matcher{
		byMerchant:  make(map[string][]int),
		byLocation:  make(map[string][]int),
		amounts:     make([]float64, 0, len(corpus)),
		requireBoth: requireBoth,
	}
	for _, f := range corpus {
		if f == nil {
			continue
		}
		i := len(m.amounts)
		m.amounts = append(m.amounts, f.Amount)
		m.byMerchant[f.Merchant] = append(m.byMerchant[f.Merchant], i)
		m.byLocation[f.Location] = append(m.byLocation[f.Location], i)
	}
	return m
}

// Size returns the number of fraud cases indexed.
func (m *Matcher) Size() int {
	return len(m.amounts)
}

// Lookup finds fraud cases similar to the given transaction attributes
// and scores how typical the amount is among them.
//
// Confidence is max(0, 1 - z/3) where z is the amount's distance from the
// similar cases' mean in standard deviations. With fewer than two cases,
// or when all case amounts are identical, the spread is undefined and
// confidence is a neutral 0.5.
func (m *Matcher) Lookup(merchant, location string, amount float64) Match {
	similar := m.similarIndexes(merchant, location)
	if len(similar) == 0 {
		return Match{}
	}

	res := Match{Matched: true, SimilarCount: len(similar)}

	if len(similar) < 2 {
		res.Confidence = 0.5
		return res
	}

	mean, stddev := meanStddev(m.amounts, similar)
	if stddev == 0 {
		res.Confidence = 0.5
		return res
	}

	z := math.Abs(amount-mean) / stddev
	res.Confidence = math.Max(0, 1-z/3)
	return res
}

func (m *Matcher) similarIndexes(merchant, location string) []int {
	byM := m.byMerchant[merchant]
	byL := m.byLocation[location]

	if m.requireBoth {
		return intersect(byM, byL)
	}
	return union(byM, byL)
}

func union(a, b []int) []int {
	if len(a) == 0 {
		return b
	}
	if len(b) == 0 {
		return a
	}
	seen := make(map[int]bool, len(a)+len(b))
	out := make([]int, 0, len(a)+len(b))
	for _, i := range a {
		if !seen[i] {
			seen[i] = true
			out = append(out, i)
		}
	}
	for _, i := range b {
		if !seen[i] {
			seen[i] = true
			out = append(out, i)
		}
	}
	return out
}

func intersect(a, b []int) []int {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	inA := make(map[int]bool, len(a))
	for _, i := range a {
		inA[i] = true
	}
	var out []int
	for _, i := range b {
		if inA[i] {
			out = append(out, i)
		}
	}
	return out
}

// meanStddev computes the population mean and standard deviation of the
// amounts at the given indexes.
func meanStddev(amounts []float64, idx []int) (float64, float64) {
	var sum float64
	for _, i := range idx {
		sum += amounts[i]
	}
	mean := sum / float64(len(idx))

	var sq float64
	for _, i := range idx {
		d := amounts[i] - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(idx)))
}
