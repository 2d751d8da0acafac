package textutil

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateBytes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxBytes int
		expected string
	}{
		{"shorter than limit", "card_declined", 20, "card_declined"},
		{"exact limit", "abc", 3, "abc"},
		{"ascii cut", "abcdef", 4, "abcd"},
		{"zero limit", "abc", 0, ""},
		{"negative limit", "abc", -1, ""},
		{"cut inside two-byte rune", "déclinée", 2, "d"},
		{"cut after two-byte rune", "déclinée", 3, "dé"},
		{"cut inside three-byte rune", "支払い失敗", 4, "支"},
		{"cut inside four-byte rune", "ok🙂", 5, "ok"},
		{"limit smaller than first rune", "🙂", 3, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateBytes(tt.input, tt.maxBytes)
			assert.Equal(t, tt.expected, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestTruncateBytes_LongMultibyteMessage(t *testing.T) {
	msg := strings.Repeat("é", 1500)
	got := TruncateBytes(msg, 1001)
	assert.Len(t, got, 1000)
	assert.True(t, utf8.ValidString(got))
}
