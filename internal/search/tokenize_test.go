package search_test

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vboughner/brain-lambda/internal/search"
)

func newTokenizer() (*search.Tokenizer, *test.Hook) {
	logger, hook := test.NewNullLogger()
	return search.NewTokenizer(search.DefaultCatalog(), logger.WithField("test", "search")), hook
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Lowercase", "Fred's PHONE", "fred's phone"},
		{"Punctuation", "where (exactly) is it?!", "where exactly is it"},
		{"Hyphen and underscore", "452-3394 snake_case", "4523394 snakecase"},
		{"Whitespace runs", "  a \t b\n\nc  ", "a b c"},
		{"Empty", "", ""},
		{"Accents kept", "¿Dónde está?", "¿dónde está"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, search.Normalize(tt.input))
		})
	}
}

func TestTokens(t *testing.T) {
	tok, _ := newTokenizer()

	tokens := tok.Tokens("bixby-mobile-en-US", "What is Fred's phone number?")
	assert.Equal(t, []string{"fred's", "phone", "number"}, tokens)
}

func TestTokensKeepsOrderAndDuplicates(t *testing.T) {
	tok, _ := newTokenizer()

	tokens := tok.Tokens("en", "keys keys wallet keys")
	assert.Equal(t, []string{"keys", "keys", "wallet", "keys"}, tokens)
}

func TestTokensDropsShortWords(t *testing.T) {
	tok, _ := newTokenizer()

	assert.Equal(t, []string{"car"}, tok.Tokens("en", "go to my car"))
	assert.Empty(t, tok.Tokens("en", "is it on"))
}

func TestTokensTruncatesLongWords(t *testing.T) {
	tok, _ := newTokenizer()

	long := "supercalifragilisticexpialidocious"
	tokens := tok.Tokens("en", long)
	require.Len(t, tokens, 1)
	assert.Equal(t, long[:32], tokens[0])
}

func TestTokensSpanish(t *testing.T) {
	tok, _ := newTokenizer()

	tokens := tok.Tokens("bixby-mobile-es-ES", "Dónde está mi coche?")
	assert.Equal(t, []string{"coche"}, tokens)
}

func TestTokensKorean(t *testing.T) {
	tok, _ := newTokenizer()

	tokens := tok.Tokens("bixby-mobile-ko-KR", "열쇠 어디 있어")
	assert.Equal(t, []string{"열쇠", "있어"}, tokens)
}

func TestTokensUnknownLocale(t *testing.T) {
	tok, hook := newTokenizer()

	tokens := tok.Tokens("bixby-mobile-de-DE", "Wo ist der Schlüssel")
	assert.Equal(t, []string{"ist", "der", "schlüssel"}, tokens)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, search.Language("de"), hook.LastEntry().Data["language"])
}

func TestTokensKnownLocaleDoesNotWarn(t *testing.T) {
	tok, hook := newTokenizer()

	tok.Tokens("bixby-mobile-fr-FR", "où sont mes clés")
	assert.Empty(t, hook.AllEntries())
}
