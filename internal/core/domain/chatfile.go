package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// ChatFile is the sidecar aggregate for one source PDF: all of its
// annotations and notes, and the metadata of the file itself.
//
// A ChatFile exclusively owns its annotations, notes, and their
// messages; no entity is shared between chat files. Exactly one
// ChatFile exists per distinct source path.
type ChatFile struct {
	// PDFPath is the source PDF path as supplied by the frontend.
	PDFPath string

	// PDFName is the display name, derived from the filename without
	// its extension.
	PDFName string

	// CreatedAt is when the chat file was first created.
	CreatedAt time.Time

	// UpdatedAt is when the chat file was last saved. It advances on
	// every successful save.
	UpdatedAt time.Time

	// Annotations maps annotation id to annotation. Key order is
	// irrelevant.
	Annotations map[string]*Annotation

	// Notes maps note id to note. Key order is irrelevant.
	Notes map[string]*Note
}

// Clone returns a deep copy of the chat file and its full entity
// graph, detached from the original.
func (cf *ChatFile) Clone() *ChatFile {
	copied := *cf
	copied.Annotations = make(map[string]*Annotation, len(cf.Annotations))
	for id, ann := range cf.Annotations {
		copied.Annotations[id] = ann.Clone()
	}
	copied.Notes = make(map[string]*Note, len(cf.Notes))
	for id, note := range cf.Notes {
		copied.Notes[id] = note.Clone()
	}
	return &copied
}

// NewChatFile creates an empty chat file for the given PDF with both
// timestamps set to now.
func NewChatFile(pdfPath string) *ChatFile {
	now := time.Now().UTC()
	base := filepath.Base(pdfPath)
	return &ChatFile{
		PDFPath:     pdfPath,
		PDFName:     strings.TrimSuffix(base, filepath.Ext(base)),
		CreatedAt:   now,
		UpdatedAt:   now,
		Annotations: make(map[string]*Annotation),
		Notes:       make(map[string]*Note),
	}
}
