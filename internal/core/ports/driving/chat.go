package driving

import (
	"context"

	"github.com/margo-labs/margo/internal/core/domain"
)

// ChatService is the per-document annotation storage engine: it owns
// the in-memory chat-file cache and every mutation of the nested
// entity graph.
//
// All operations resolve the document through the cache; none of them
// persist to disk. Persistence is always an explicit Save, batched by
// the caller after one or more mutations.
//
// Entity-returning operations (GetOrCreateAnnotation, CreateNote,
// GetNote, Snapshot) return deep copies taken under the document lock,
// so they are safe to read while other requests mutate the same
// document. Load and GetOrCreate return the live cached instance so a
// caller can observe uncommitted mutations; that instance must not be
// traversed concurrently with mutations, and all mutation happens only
// through this interface. Concurrent readers use Snapshot.
type ChatService interface {
	// Load returns the chat file for the PDF. A cached instance is
	// returned as-is without touching disk; otherwise the sidecar file
	// is read and cached. Returns (nil, false) when no sidecar exists
	// or it cannot be decoded; a corrupt sidecar degrades to "no prior
	// history" rather than blocking new annotation.
	Load(ctx context.Context, pdfPath string) (*domain.ChatFile, bool)

	// GetOrCreate is Load, except absence constructs a fresh empty chat
	// file in the cache. It never fails and never writes to disk; an
	// empty chat file only reaches disk on the first explicit Save.
	GetOrCreate(ctx context.Context, pdfPath string) *domain.ChatFile

	// Snapshot returns a deep copy of the chat file, taken under the
	// document lock, or (nil, false) on the same absence conditions as
	// Load. The copy is a consistent view that later mutations cannot
	// touch, which makes it the safe input for serialisation.
	Snapshot(ctx context.Context, pdfPath string) (*domain.ChatFile, bool)

	// Save advances the chat file's updated-at timestamp, encodes it,
	// and writes the sidecar file. Returns domain.ErrNotCached when the
	// path has no cached chat file. On write failure the in-memory
	// state is retained so the caller may retry.
	Save(ctx context.Context, pdfPath string) error

	// GetOrCreateAnnotation returns a copy of the existing annotation
	// with the given id, or creates it with the supplied fields.
	// Replaying the call never resets an existing annotation's fields
	// (first-write-wins for creation fields).
	GetOrCreateAnnotation(ctx context.Context, pdfPath string, in AnnotationInput) *domain.Annotation

	// AddMessages appends messages, in the given order, to the
	// annotation's conversation.
	AddMessages(ctx context.Context, pdfPath, annotationID string, messages []domain.Message) error

	// EditMessage replaces a message's content in place, preserving its
	// id, role, and timestamp.
	EditMessage(ctx context.Context, pdfPath, annotationID, messageID, newContent string) error

	// DeleteMessage removes the message with the given id from the
	// annotation's conversation.
	DeleteMessage(ctx context.Context, pdfPath, annotationID, messageID string) error

	// DeleteAnnotation removes the annotation and all of its messages.
	DeleteAnnotation(ctx context.Context, pdfPath, annotationID string) error

	// SetAnnotationTitle sets the annotation's title unconditionally.
	// Only explicit user actions go through this; the automatic
	// title-generation path uses SetAnnotationTitleIfUnset so an
	// existing title is never overwritten automatically.
	SetAnnotationTitle(ctx context.Context, pdfPath, annotationID, title string) error

	// SetAnnotationTitleIfUnset sets the title only when the annotation
	// has none yet, reporting whether it was applied. The check and the
	// write happen under the document lock, so of several concurrently
	// generated titles exactly one lands.
	SetAnnotationTitleIfUnset(ctx context.Context, pdfPath, annotationID, title string) (bool, error)

	// CreateNote creates a note and returns a copy of it, or a copy of
	// the existing one when the id is already present (idempotent
	// create).
	CreateNote(ctx context.Context, pdfPath string, in NoteInput) *domain.Note

	// GetNote returns a copy of the note with the given id.
	GetNote(ctx context.Context, pdfPath, noteID string) (*domain.Note, error)

	// UpdateNote applies a partial update to a note.
	UpdateNote(ctx context.Context, pdfPath, noteID string, upd domain.NoteUpdate) error

	// DeleteNote removes the note.
	DeleteNote(ctx context.Context, pdfPath, noteID string) error
}

// AnnotationInput holds the creation fields for an annotation.
type AnnotationInput struct {
	// ID is the caller-assigned annotation id.
	ID string

	// PageNumber is the 0-based page.
	PageNumber int

	// BoundingBox is the selected region, nil when absent.
	BoundingBox *domain.BoundingBox

	// ImageBase64 is the optional cached screenshot of the region.
	ImageBase64 string
}

// NoteInput holds the creation fields for a note.
type NoteInput struct {
	// ID is the caller-assigned note id.
	ID string

	// PageNumber is the 0-based page.
	PageNumber int

	// SelectedText is the highlighted excerpt.
	SelectedText string

	// BoundingBox is the highlighted region, nil when unknown.
	BoundingBox *domain.BoundingBox

	// ContentType is the note body format; empty defaults to text.
	ContentType domain.NoteContentType

	// Content is the initial note body.
	Content string
}
