package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanTitle(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "strips surrounding quotes and whitespace",
			raw:  `  "Training Curve Analysis"  `,
			want: "Training Curve Analysis",
		},
		{
			name: "drops a trailing full stop",
			raw:  "Gradient Descent.",
			want: "Gradient Descent",
		},
		{
			name: "truncates to the word limit",
			raw:  "one two three four five six seven eight",
			want: "one two three four five six",
		},
		{
			name: "empty input stays empty",
			raw:  "   ",
			want: "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CleanTitle(tc.raw))
		})
	}
}

func TestTitlePrompts(t *testing.T) {
	t.Run("title prompt embeds question and answer", func(t *testing.T) {
		p := Title("what is SGD?", "an optimiser")
		assert.Contains(t, p, "what is SGD?")
		assert.Contains(t, p, "an optimiser")
	})

	t.Run("note title prompt embeds selection and content", func(t *testing.T) {
		p := NoteTitle("the proof of lemma 2", "verify the bound")
		assert.Contains(t, p, "the proof of lemma 2")
		assert.Contains(t, p, "verify the bound")
	})

	t.Run("system prompt is plain text", func(t *testing.T) {
		assert.False(t, strings.Contains(System, "%s"), "no unfilled placeholders")
	})
}
