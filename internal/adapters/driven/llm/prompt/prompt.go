// Package prompt holds the prompt templates shared by all assistant
// provider adapters, so every provider answers with the same persona.
package prompt

import (
	"fmt"
	"strings"
)

// System is the assistant persona used for every question.
const System = `You are an expert academic assistant embedded in a PDF reader.
The user is reading a research paper and asks questions about selected excerpts,
often with a screenshot of the selected region attached.

Guidelines:
- Ground every answer in the excerpt and the conversation so far.
- Explain technical concepts clearly; define notation when you use it.
- Be concise. Prefer a short, direct answer over an exhaustive one.
- If the excerpt alone is not enough to answer, say what is missing.
- Use plain text unless the user asks for formatting.`

// MaxTitleWords bounds generated titles.
const MaxTitleWords = 6

// Title builds the prompt used to name a new annotation from its
// first question and answer.
func Title(question, answer string) string {
	return fmt.Sprintf(`Generate a short title (at most %d words) for a conversation about a research paper.

Question: %s

Answer: %s

Respond with the title only, no quotes, no trailing punctuation.`, MaxTitleWords, question, answer)
}

// NoteTitle builds the prompt used to name a note from its highlighted
// text and content.
func NoteTitle(selectedText, noteContent string) string {
	return fmt.Sprintf(`Generate a short title (at most %d words) for a reader's note on a research paper.

Highlighted text: %s

Note: %s

Respond with the title only, no quotes, no trailing punctuation.`, MaxTitleWords, selectedText, noteContent)
}

// CleanTitle normalises a model-generated title: surrounding quotes
// and whitespace go, and overly long output is truncated to the word
// limit.
func CleanTitle(raw string) string {
	title := strings.TrimSpace(raw)
	title = strings.Trim(title, `"'`)
	title = strings.TrimSuffix(title, ".")

	words := strings.Fields(title)
	if len(words) > MaxTitleWords {
		words = words[:MaxTitleWords]
	}
	return strings.Join(words, " ")
}
