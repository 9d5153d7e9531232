package domain

import "time"

// NoteContentType identifies the format of a note's content body.
type NoteContentType string

// Available note content types.
const (
	// NoteContentText is plain text.
	NoteContentText NoteContentType = "text"

	// NoteContentMarkdown is markdown-formatted text.
	NoteContentMarkdown NoteContentType = "markdown"
)

// IsValid returns true if the content type is recognised.
func (t NoteContentType) IsValid() bool {
	switch t {
	case NoteContentText, NoteContentMarkdown:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (t NoteContentType) String() string {
	return string(t)
}

// Note is a text-anchored, free-form annotation on one PDF page.
//
// The selected text is captured at creation and never changes; the
// content and content type are mutable.
type Note struct {
	// ID is the unique identifier, unique within the owning chat file.
	ID string

	// PageNumber is the 0-based page the note lives on.
	PageNumber int

	// CreatedAt is when the note was created.
	CreatedAt time.Time

	// SelectedText is the highlighted excerpt the note is anchored to.
	SelectedText string

	// BoundingBox is the highlighted region, nil when unknown.
	BoundingBox *BoundingBox

	// ContentType is the format of Content.
	ContentType NoteContentType

	// Content is the note body. Mutable via UpdateNote.
	Content string

	// Title is the human-readable title. Empty until set; the automatic
	// title generation path sets it at most once, explicit updates may
	// overwrite it.
	Title string
}

// NewNote creates a note with the current timestamp. An empty content
// type defaults to text.
func NewNote(id string, pageNumber int, selectedText string, box *BoundingBox, contentType NoteContentType, content string) *Note {
	if contentType == "" {
		contentType = NoteContentText
	}
	return &Note{
		ID:           id,
		PageNumber:   pageNumber,
		CreatedAt:    time.Now().UTC(),
		SelectedText: selectedText,
		BoundingBox:  box,
		ContentType:  contentType,
		Content:      content,
	}
}

// Clone returns a deep copy of the note, detached from the original.
func (n *Note) Clone() *Note {
	copied := *n
	copied.BoundingBox = n.BoundingBox.Clone()
	return &copied
}

// NoteUpdate is a partial update to a note. Nil fields are left
// untouched. Title is applied only when the note has no title yet,
// unless OverwriteTitle is set.
type NoteUpdate struct {
	ContentType    *NoteContentType
	Content        *string
	Title          *string
	OverwriteTitle bool
}
