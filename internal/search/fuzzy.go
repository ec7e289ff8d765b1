package search

import (
	"math"
	"slices"
)

// maxBitapPattern is the widest pattern a uint64 bit mask can hold
const maxBitapPattern = 64

// MatchOptions tune one approximate search. A Threshold of 0 accepts exact
// substrings only and a Threshold of 1 accepts anything.
type MatchOptions struct {
	Threshold      float64
	Location       int
	Distance       int
	IgnoreLocation bool
}

// Matcher finds pattern approximately inside text. Lower scores are better.
type Matcher interface {
	Match(pattern, text string, opts MatchOptions) (score float64, ok bool)
}

// MatcherFunc adapts a function to the Matcher interface
type MatcherFunc func(pattern, text string, opts MatchOptions) (float64, bool)

func (f MatcherFunc) Match(pattern, text string, opts MatchOptions) (float64, bool) {
	return f(pattern, text, opts)
}

// Bitap is a shift-or approximate substring matcher. Each error level allows
// one more insertion, deletion or substitution; a hit scores
// errors/len(pattern) plus its distance from Location scaled by Distance.
type Bitap struct{}

func (Bitap) Match(pattern, text string, opts MatchOptions) (float64, bool) {
	p := []rune(pattern)
	if len(p) == 0 {
		return 1, false
	}
	if opts.Threshold >= 1 {
		return 1, true
	}
	if pattern == text {
		return 0, true
	}
	if len(p) > maxBitapPattern {
		p = p[:maxBitapPattern]
	}
	return bitapSearch(p, []rune(text), opts)
}

func bitapSearch(p, t []rune, opts MatchOptions) (float64, bool) {
	m, n := len(p), len(t)
	expected := opts.Location
	threshold := opts.Threshold
	bestLocation := -1

	score := func(errors, location int) float64 {
		accuracy := float64(errors) / float64(m)
		if opts.IgnoreLocation {
			return accuracy
		}
		proximity := expected - location
		if proximity < 0 {
			proximity = -proximity
		}
		if opts.Distance <= 0 {
			if proximity != 0 {
				return 1
			}
			return accuracy
		}
		return accuracy + float64(proximity)/float64(opts.Distance)
	}

	// exact occurrences tighten the threshold before the fuzzy pass
	if idx := indexRunes(t, p, expected); idx >= 0 {
		threshold = math.Min(score(0, idx), threshold)
		if idx = lastIndexRunes(t, p, expected+m); idx >= 0 {
			threshold = math.Min(score(0, idx), threshold)
		}
	}

	alphabet := make(map[rune]uint64, m)
	for i, r := range p {
		alphabet[r] |= 1 << uint(m-i-1)
	}
	matchMask := uint64(1) << uint(m-1)

	binMax := m + n
	var last []uint64
	for i := 0; i < m; i++ {
		// widest window around the expected location still under the threshold
		binMin, binMid := 0, binMax
		for binMin < binMid {
			if score(i, expected+binMid) <= threshold {
				binMin = binMid
			} else {
				binMax = binMid
			}
			binMid = (binMax-binMin)/2 + binMin
		}
		binMax = binMid

		start := max(1, expected-binMid+1)
		finish := min(expected+binMid, n) + m

		bits := make([]uint64, finish+2)
		bits[finish+1] = (uint64(1) << uint(i)) - 1
		for j := finish; j >= start; j-- {
			location := j - 1
			var charMatch uint64
			if location < n {
				charMatch = alphabet[t[location]]
			}
			bits[j] = ((bits[j+1] << 1) | 1) & charMatch
			if i > 0 {
				bits[j] |= ((at(last, j+1) | at(last, j)) << 1) | 1 | at(last, j+1)
			}
			if bits[j]&matchMask == 0 {
				continue
			}
			if s := score(i, location); s <= threshold {
				threshold = s
				bestLocation = location
				if bestLocation <= expected {
					break
				}
				start = max(1, 2*expected-bestLocation)
			}
		}

		if score(i+1, expected) > threshold {
			break
		}
		last = bits
	}

	if bestLocation < 0 {
		return 1, false
	}
	return math.Max(0.001, threshold), true
}

func at(bits []uint64, i int) uint64 {
	if i < 0 || i >= len(bits) {
		return 0
	}
	return bits[i]
}

func indexRunes(t, p []rune, from int) int {
	if from < 0 {
		from = 0
	}
	for i := from; i+len(p) <= len(t); i++ {
		if slices.Equal(t[i:i+len(p)], p) {
			return i
		}
	}
	return -1
}

func lastIndexRunes(t, p []rune, from int) int {
	i := min(from, len(t)-len(p))
	for ; i >= 0; i-- {
		if slices.Equal(t[i:i+len(p)], p) {
			return i
		}
	}
	return -1
}
