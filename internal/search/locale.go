package search

import (
	"slices"
	"strings"

	"golang.org/x/text/language"
)

// Language is a two letter language code derived from a device language tag
type Language string

const (
	English Language = "en"
	Spanish Language = "es"
	French  Language = "fr"
	Korean  Language = "ko"
)

// LanguageFromTag resolves identifiers such as "bixby-mobile-en-US" to their
// language segment. A tag without hyphens is taken as the language itself.
func LanguageFromTag(tag string) Language {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return English
	}
	parts := strings.Split(tag, "-")
	segment := parts[0]
	if len(parts) > 1 {
		segment = parts[len(parts)-2]
	}
	if base, err := language.ParseBase(segment); err == nil {
		return Language(base.String())
	}
	return Language(strings.ToLower(segment))
}

// LocaleName returns the last two segments of a language tag ("en-US"),
// or the tag itself when it has a single segment.
func LocaleName(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return string(English)
	}
	parts := strings.Split(tag, "-")
	if len(parts) == 1 {
		return parts[0]
	}
	return strings.Join(parts[len(parts)-2:], "-")
}

// Locale holds the matching parameters and word lists for one language
type Locale struct {
	Threshold          float64
	Location           int
	Distance           int
	IgnoreLocation     bool
	MinMatchCharLength int
	MaxPatternLength   int

	StopWords       []string
	EverythingWords []string

	QuestionPrefixes  []string
	QuestionSuffixes  []string
	StatementPrefixes []string
	StatementSuffixes []string
}

// MatchOptions returns the fuzzy matcher parameters of the locale
func (l Locale) MatchOptions() MatchOptions {
	return MatchOptions{
		Threshold:      l.Threshold,
		Location:       l.Location,
		Distance:       l.Distance,
		IgnoreLocation: l.IgnoreLocation,
	}
}

// IsStopWord reports whether word is ignored when searching
func (l Locale) IsStopWord(word string) bool {
	return slices.Contains(l.StopWords, word)
}

// IsEverything reports whether the significant words of a query ask for every memory
func (l Locale) IsEverything(tokens []string) bool {
	if len(tokens) == 0 {
		return true
	}
	return len(tokens) == 1 && slices.Contains(l.EverythingWords, tokens[0])
}

func (l Locale) clone() Locale {
	l.StopWords = slices.Clone(l.StopWords)
	l.EverythingWords = slices.Clone(l.EverythingWords)
	l.QuestionPrefixes = slices.Clone(l.QuestionPrefixes)
	l.QuestionSuffixes = slices.Clone(l.QuestionSuffixes)
	l.StatementPrefixes = slices.Clone(l.StatementPrefixes)
	l.StatementSuffixes = slices.Clone(l.StatementSuffixes)
	return l
}

// Catalog is an immutable table of locales with a fallback entry
type Catalog struct {
	fallback Locale
	locales  map[Language]Locale
}

// NewCatalog copies fallback and locales into a new catalog. The fallback
// parameters are used for languages missing from locales; its word lists are not.
func NewCatalog(fallback Locale, locales map[Language]Locale) *Catalog {
	c := &Catalog{
		fallback: fallback.clone(),
		locales:  make(map[Language]Locale, len(locales)),
	}
	c.fallback.StopWords = nil
	c.fallback.EverythingWords = nil
	c.fallback.QuestionPrefixes = nil
	c.fallback.QuestionSuffixes = nil
	c.fallback.StatementPrefixes = nil
	c.fallback.StatementSuffixes = nil
	for lang, loc := range locales {
		c.locales[lang] = loc.clone()
	}
	return c
}

// Lookup returns the locale for lang. Unknown languages get the fallback
// parameters with empty word lists and ok set to false.
func (c *Catalog) Lookup(lang Language) (Locale, bool) {
	if loc, ok := c.locales[lang]; ok {
		return loc.clone(), true
	}
	return c.fallback.clone(), false
}

// Languages lists the configured languages in sorted order
func (c *Catalog) Languages() []Language {
	langs := make([]Language, 0, len(c.locales))
	for lang := range c.locales {
		langs = append(langs, lang)
	}
	slices.Sort(langs)
	return langs
}

// DefaultParameters are the matching parameters used for most languages
func DefaultParameters() Locale {
	return Locale{
		Threshold:          0.35,
		Location:           0,
		Distance:           100,
		IgnoreLocation:     true,
		MinMatchCharLength: 3,
		MaxPatternLength:   32,
	}
}

// DefaultCatalog returns the built-in English, Spanish, French and Korean locales
func DefaultCatalog() *Catalog {
	en := DefaultParameters()
	en.StopWords = []string{
		"who", "what", "where", "why", "how", "when", "many", "much",
		"a", "an", "the", "i", "you", "am", "are", "is", "my", "on", "of", "and",
		"did", "say", "said", "about",
	}
	en.EverythingWords = []string{"all", "everything"}
	en.QuestionPrefixes = []string{"hello", "please", "can you", "say", "tell", "ask", "my brain", "to", "me"}
	en.QuestionSuffixes = []string{"thank you"}
	en.StatementPrefixes = []string{
		"hello", "please", "tell my brain", "tell me a brain", "ask my brain", "that", "to", "remember",
	}
	en.StatementSuffixes = []string{"thank you"}

	es := DefaultParameters()
	es.StopWords = []string{
		"quien", "qué", "dónde", "por", "porqué", "cómo", "cuando", "muchas", "muchoes", "mucho", "quanto", "quanta",
		"una", "uno", "la", "el", "yo", "tú", "usted", "soy", "está", "eres", "es", "mi", "en", "de", "y",
		"hizo", "hice", "digo", "dije", "acerca",
	}
	es.EverythingWords = []string{"todos", "todo", "toda"}
	es.QuestionPrefixes = []string{"hola", "por favor", "puedes", "dice", "mi cerebro", "a", "yo"}
	es.QuestionSuffixes = []string{"gracias"}
	es.StatementPrefixes = []string{"hola", "por favor", "dile a mi cerebro", "pregunta a mi cerebro", "a", "recuerda"}
	es.StatementSuffixes = []string{"gracias"}

	fr := DefaultParameters()
	fr.StopWords = []string{
		"qui", "quoi", "où", "pourquoi", "comment", "quand", "beaucoup",
		"un", "une", "le", "la", "je", "vous", "tu", "suis", "es", "est", "ma", "mon", "sur", "de", "et",
		"a", "fait", "dit", "dites",
	}
	fr.EverythingWords = []string{"tout", "toute"}

	// Korean is written without reliable word spacing, so matching is looser
	ko := DefaultParameters()
	ko.Threshold = 0.6
	ko.MinMatchCharLength = 1
	ko.StopWords = []string{
		"누구", "뭐", "어디", "어디에", "왜", "어떻게", "언제", "많은",
		"나는", "내가", "당신", "너희", "자네", "너는", "그는", "그녀는", "나의", "에", "의", "과",
		"말하다", "말했다", "약", "대략",
	}
	ko.EverythingWords = []string{"모두"}

	return NewCatalog(DefaultParameters(), map[Language]Locale{
		English: en,
		Spanish: es,
		French:  fr,
		Korean:  ko,
	})
}
