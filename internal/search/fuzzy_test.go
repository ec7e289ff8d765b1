package search_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vboughner/brain-lambda/internal/search"
)

var defaultOptions = search.DefaultParameters().MatchOptions()

func TestBitapMatch(t *testing.T) {
	fred := "fred's phone number is 452-3394"
	door := "i put tape under the door"

	tests := []struct {
		name    string
		pattern string
		text    string
		match   bool
	}{
		{"Identical", "phone", "phone", true},
		{"Substring at start", "fred's", fred, true},
		{"Substring in middle", "number", fred, true},
		{"Near miss spelling", "fone", fred, true},
		{"Transposed letters", "nubmer", fred, true},
		{"Unrelated word", "fred's", door, false},
		{"Too many errors", "number", door, false},
		{"Nothing close", "zebra", fred, false},
		{"Empty text", "phone", "", false},
		{"Empty pattern", "", fred, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := search.Bitap{}.Match(tt.pattern, tt.text, defaultOptions)
			assert.Equal(t, tt.match, ok)
		})
	}
}

func TestBitapScores(t *testing.T) {
	exact, ok := search.Bitap{}.Match("phone", "my phone", defaultOptions)
	assert.True(t, ok)

	fuzzy, ok := search.Bitap{}.Match("fone", "my phone", defaultOptions)
	assert.True(t, ok)

	assert.Less(t, exact, fuzzy)
	assert.InDelta(t, 0.25, fuzzy, 0.0001)
}

func TestBitapThresholdBounds(t *testing.T) {
	exactOnly := defaultOptions
	exactOnly.Threshold = 0

	_, ok := search.Bitap{}.Match("phone", "my phone number", exactOnly)
	assert.True(t, ok)
	_, ok = search.Bitap{}.Match("fone", "my phone number", exactOnly)
	assert.False(t, ok)

	anything := defaultOptions
	anything.Threshold = 1

	_, ok = search.Bitap{}.Match("zebra", "my phone number", anything)
	assert.True(t, ok)
}

func TestBitapLocationWeighting(t *testing.T) {
	opts := search.MatchOptions{Threshold: 0.35, Location: 0, Distance: 100}
	far := strings.Repeat("x", 60) + "phone"

	_, ok := search.Bitap{}.Match("phone", "phone book", opts)
	assert.True(t, ok)

	_, ok = search.Bitap{}.Match("phone", far, opts)
	assert.False(t, ok)

	opts.IgnoreLocation = true
	_, ok = search.Bitap{}.Match("phone", far, opts)
	assert.True(t, ok)
}

func TestBitapKorean(t *testing.T) {
	ko, _ := search.DefaultCatalog().Lookup(search.Korean)

	_, ok := search.Bitap{}.Match("열쇠", "열쇠는 서랍에 있어요", ko.MatchOptions())
	assert.True(t, ok)
}

func TestMatcherFunc(t *testing.T) {
	var seen []string
	m := search.MatcherFunc(func(pattern, text string, opts search.MatchOptions) (float64, bool) {
		seen = append(seen, pattern)
		return 0, pattern == "yes"
	})

	_, ok := m.Match("yes", "anything", defaultOptions)
	assert.True(t, ok)
	_, ok = m.Match("no", "anything", defaultOptions)
	assert.False(t, ok)
	assert.Equal(t, []string{"yes", "no"}, seen)
}
