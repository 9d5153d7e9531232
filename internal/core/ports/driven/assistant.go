package driven

import (
	"context"

	"github.com/margo-labs/margo/internal/core/domain"
)

// AssistantClient talks to an AI completion provider on behalf of the
// assistant service. The storage core never calls it; it only receives
// the resulting answer and title strings.
//
// Implementations may include:
//   - Gemini (Google cloud API)
//   - Anthropic (Claude)
//   - Ollama (local models)
type AssistantClient interface {
	// Ask answers a question about a PDF excerpt, optionally with an
	// attached screenshot and prior conversation turns.
	Ask(ctx context.Context, prompt AskPrompt) (string, error)

	// GenerateTitle produces a short title for a new annotation from
	// its first question/answer pair. imageBase64 may be empty.
	GenerateTitle(ctx context.Context, question, answer, imageBase64 string) (string, error)

	// GenerateNoteTitle produces a short title for a note from its
	// highlighted text and content.
	GenerateNoteTitle(ctx context.Context, selectedText, noteContent string) (string, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight
	// test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// AskPrompt is the input to AssistantClient.Ask.
type AskPrompt struct {
	// Question is the user's question text.
	Question string

	// ImageBase64 is an optional base64-encoded PNG of the selected
	// region, passed through opaquely.
	ImageBase64 string

	// Context is optional extra context prepended to the question.
	Context string

	// History is the prior conversation in order, oldest first.
	History []HistoryMessage
}

// HistoryMessage is one prior conversation turn.
type HistoryMessage struct {
	// Role is "user" or "assistant".
	Role string

	// Content is the message text.
	Content string
}

// AssistantClientFactory builds a client for the given provider
// settings. It validates the settings but does not contact the
// provider; use Ping for that.
type AssistantClientFactory func(settings domain.AssistantSettings) (AssistantClient, error)
