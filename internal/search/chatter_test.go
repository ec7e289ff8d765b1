package search_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrimQuestion(t *testing.T) {
	tok, _ := newTokenizer()

	tests := []struct {
		name     string
		tag      string
		input    string
		expected string
	}{
		{"Lead-in chain", enTag, "please tell me what is fred's number", "what is fred's number"},
		{"Mixed case", enTag, "Can you tell me where I parked", "where I parked"},
		{"Trailing thanks", enTag, "where are my keys thank you", "where are my keys"},
		{"No chatter", enTag, "where are my keys", "where are my keys"},
		{"Word prefix is not a phrase", enTag, "tomorrow is garbage day", "tomorrow is garbage day"},
		{"Spanish", "bixby-mobile-es-ES", "por favor dónde está mi coche gracias", "dónde está mi coche"},
		{"No lists for language", "bixby-mobile-fr-FR", "  please où sont mes clés ", "please où sont mes clés"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tok.TrimQuestion(tt.tag, tt.input))
		})
	}
}

func TestTrimStatement(t *testing.T) {
	tok, _ := newTokenizer()

	tests := []struct {
		name     string
		tag      string
		input    string
		expected string
	}{
		{"Tell my brain that", enTag, "Tell my brain that I parked on level 3 thank you", "I parked on level 3"},
		{"Remember", enTag, "remember the wifi password is hunter2", "the wifi password is hunter2"},
		{"Only chatter", enTag, "please remember", "remember"},
		{"Spanish", "bixby-mobile-es-ES", "recuerda que el coche está en el garaje", "que el coche está en el garaje"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tok.TrimStatement(tt.tag, tt.input))
		})
	}
}
