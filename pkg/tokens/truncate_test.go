package tokens

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// wordCounter counts whitespace separated words.
type wordCounter struct{}

func (wordCounter) Count(text string) int {
	return len(strings.Fields(text))
}

func wrapPrompt(s string) string {
	return "please reorganize:\n" + s
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		maxTokens int
		want      string
	}{
		{
			name:      "fits unchanged",
			text:      "one two\nthree",
			maxTokens: 10,
			want:      "one two\nthree",
		},
		{
			name:      "keeps whole lines",
			text:      "a b c\nd e f\ng h i",
			maxTokens: 10,
			want:      "a b c\nd e f",
		},
		{
			name:      "prompt is charged once per line",
			text:      "a\nb\nc\nd\ne\nf\ng\nh\ni\nj",
			maxTokens: 10,
			want:      "a\nb\nc",
		},
		{
			name:      "first line alone is too large",
			text:      "a b c d e f g h i j k\nl",
			maxTokens: 5,
			want:      "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Truncate(wordCounter{}, tt.text, tt.maxTokens, wrapPrompt)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTruncateResultIsPrefixWithinBudget(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		b.WriteString(strings.Repeat("word ", i%7+1))
		b.WriteString("\n")
	}
	text := b.String()

	for _, max := range []int{5, 17, 60, 300} {
		got := Truncate(wordCounter{}, text, max, wrapPrompt)
		assert.True(t, strings.HasPrefix(text, got))
		assert.LessOrEqual(t, wordCounter{}.Count(wrapPrompt(got)), max)
		if got != "" {
			// Only whole lines survive.
			next := text[len(got):]
			assert.True(t, strings.HasPrefix(next, "\n"))
		}
	}
}

func TestTruncateWithoutWrapper(t *testing.T) {
	got := Truncate(wordCounter{}, "a b\nc d\ne f", 4, nil)
	assert.Equal(t, "a b\nc d", got)
}

func TestApproxCounter(t *testing.T) {
	c := ApproxCounter{}
	assert.Equal(t, 0, c.Count(""))
	assert.Equal(t, 1, c.Count("abc"))
	assert.Equal(t, 2, c.Count("abcde"))
	assert.Equal(t, 1, c.Count("héé"))
}
