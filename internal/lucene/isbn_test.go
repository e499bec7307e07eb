package lucene

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestISBN10To13(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"0306406152", "9780306406157", true},
		{"0-306-40615-2", "9780306406157", true},
		{"0-8044-2957-x", "9780804429573", true},
		{"951-0-00000-1", "", false},
		{"0198526636", "9780198526636", true},
		{"9992158107", "9789992158104", true},
		{"9780306406157", "", false},
		{"03064061X2", "", false},
		{"030640615", "", false},
		{"", "", false},
		{"0306 406152", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ISBN10To13(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestISBN10To13_Idempotent(t *testing.T) {
	first, ok := ISBN10To13("0306406152")
	assert.True(t, ok)
	_, again := ISBN10To13(first)
	assert.False(t, again)
}
