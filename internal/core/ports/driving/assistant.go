package driving

import (
	"context"

	"github.com/margo-labs/margo/internal/core/domain"
)

// AssistantService orchestrates question answering and title
// generation: it calls the AI provider and records the results through
// the chat service, then saves.
type AssistantService interface {
	// Ask answers a question against an annotation: it queries the
	// assistant, gets or creates the annotation, generates a title for
	// a first question when the annotation has none, appends the
	// user/assistant message pair, and saves the sidecar file.
	Ask(ctx context.Context, req AskRequest) (*AskResult, error)

	// UpdateNote applies a note update, generating a title first when
	// requested and the note has none. Title generation failure is
	// non-fatal; the content update still applies.
	UpdateNote(ctx context.Context, req UpdateNoteRequest) (*UpdateNoteResult, error)

	// IsConfigured reports whether an assistant provider is available.
	IsConfigured() bool
}

// HistoryTurn is one prior conversation turn supplied by the frontend.
type HistoryTurn struct {
	// Role is "user" or "assistant".
	Role string

	// Content is the message text.
	Content string
}

// AskRequest is the input to Ask.
type AskRequest struct {
	// PDFPath is the source PDF the question is about.
	PDFPath string

	// AnnotationID is the caller-assigned id of the annotation the
	// conversation belongs to.
	AnnotationID string

	// Question is the user's question.
	Question string

	// ImageBase64 is an optional screenshot of the selected region.
	ImageBase64 string

	// BoundingBox is the selected region, nil when absent.
	BoundingBox *domain.BoundingBox

	// PageNumber is the 0-based page of the selection.
	PageNumber int

	// History is the annotation's prior conversation as sent by the
	// frontend. Empty history marks a first question, which triggers
	// title generation.
	History []HistoryTurn
}

// AskResult is the outcome of Ask.
type AskResult struct {
	// Response is the assistant's answer.
	Response string

	// AnnotationID echoes the annotation the messages were stored on.
	AnnotationID string

	// UserMessageID and AssistantMessageID identify the stored pair.
	UserMessageID      string
	AssistantMessageID string

	// Title is the generated title, empty when none was generated.
	Title string
}

// UpdateNoteRequest is the input to UpdateNote. Nil fields are left
// untouched.
type UpdateNoteRequest struct {
	PDFPath string
	NoteID  string

	ContentType *domain.NoteContentType
	Content     *string

	// GenerateTitle requests automatic title generation for notes that
	// have no title yet.
	GenerateTitle bool
}

// UpdateNoteResult is the outcome of UpdateNote.
type UpdateNoteResult struct {
	// Note is the note after the update.
	Note *domain.Note

	// Title is the generated title, empty when none was generated.
	Title string
}
