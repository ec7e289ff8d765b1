package search

import (
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var punctuation = regexp.MustCompile("[!?.,/#$%^&*;:{}=\\-_`~()]")

// Fold lowercases text in Unicode normal form C. Punctuation is kept.
func Fold(text string) string {
	return cases.Lower(language.Und).String(norm.NFC.String(text))
}

// Normalize folds text, strips punctuation and collapses whitespace
func Normalize(text string) string {
	stripped := punctuation.ReplaceAllString(Fold(text), "")
	return strings.Join(strings.Fields(stripped), " ")
}

// Tokenizer turns raw queries into significant search words
type Tokenizer struct {
	Catalog *Catalog
	Logger  *logrus.Entry
}

// NewTokenizer creates a tokenizer over catalog. A nil catalog means DefaultCatalog.
func NewTokenizer(catalog *Catalog, logger *logrus.Entry) *Tokenizer {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Tokenizer{Catalog: catalog, Logger: logger}
}

// Tokens returns the significant words of text in their original order
func (t *Tokenizer) Tokens(languageTag, text string) []string {
	_, tokens := t.analyze(languageTag, text)
	return tokens
}

// Locale resolves the locale for a language tag, warning when it is not configured
func (t *Tokenizer) Locale(languageTag string) Locale {
	lang := LanguageFromTag(languageTag)
	loc, ok := t.Catalog.Lookup(lang)
	if !ok {
		t.Logger.WithFields(logrus.Fields{
			"language":     lang,
			"language_tag": languageTag,
		}).Warn("No locale configured for language, using default parameters")
	}
	return loc
}

func (t *Tokenizer) analyze(languageTag, text string) (Locale, []string) {
	loc := t.Locale(languageTag)
	return loc, SignificantWords(loc, Normalize(text))
}

// SignificantWords splits normalized text on spaces, drops words shorter than the
// locale minimum, truncates words longer than the maximum pattern length and
// removes stop-words. Duplicates are kept.
func SignificantWords(loc Locale, normalized string) []string {
	words := make([]string, 0)
	for _, word := range strings.Split(normalized, " ") {
		runes := []rune(word)
		if len(runes) == 0 || len(runes) < loc.MinMatchCharLength {
			continue
		}
		if loc.MaxPatternLength > 0 && len(runes) > loc.MaxPatternLength {
			word = string(runes[:loc.MaxPatternLength])
		}
		if loc.IsStopWord(word) {
			continue
		}
		words = append(words, word)
	}
	return words
}
