package search

import "strings"

// TrimQuestion removes conversational lead-ins such as "please tell me" and
// trailing courtesies from a question
func (t *Tokenizer) TrimQuestion(languageTag, text string) string {
	loc := t.Locale(languageTag)
	return trimChatter(text, loc.QuestionPrefixes, loc.QuestionSuffixes)
}

// TrimStatement removes lead-ins such as "tell my brain that" from a statement
func (t *Tokenizer) TrimStatement(languageTag, text string) string {
	loc := t.Locale(languageTag)
	return trimChatter(text, loc.StatementPrefixes, loc.StatementSuffixes)
}

// trimChatter tries each phrase once, in order. A phrase only counts when a
// space separates it from the rest of the text.
func trimChatter(text string, prefixes, suffixes []string) string {
	text = strings.TrimSpace(text)
	for _, prefix := range prefixes {
		if len(text) > len(prefix) && text[len(prefix)] == ' ' && strings.EqualFold(text[:len(prefix)], prefix) {
			text = strings.TrimSpace(text[len(prefix):])
		}
	}
	for _, suffix := range suffixes {
		cut := len(text) - len(suffix)
		if cut > 0 && text[cut-1] == ' ' && strings.EqualFold(text[cut:], suffix) {
			text = strings.TrimSpace(text[:cut])
		}
	}
	return text
}
