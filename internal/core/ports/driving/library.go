package driving

import (
	"context"
	"time"
)

// RecentDocument is one entry in the recently-opened list.
type RecentDocument struct {
	// PDFPath is the source PDF path.
	PDFPath string `json:"pdf_path"`

	// PDFName is the display name.
	PDFName string `json:"pdf_name"`

	// LastOpenedAt is when the document was last opened.
	LastOpenedAt time.Time `json:"last_opened_at"`

	// OpenCount is how many times the document has been opened.
	OpenCount int `json:"open_count"`

	// Missing is true when the PDF is no longer present on disk.
	Missing bool `json:"missing"`
}

// LibraryService tracks which PDFs the user has opened and whether
// they still exist on disk.
type LibraryService interface {
	// Touch records that the PDF was opened now and starts watching its
	// directory for the file disappearing.
	Touch(ctx context.Context, pdfPath string) error

	// Recents lists recently opened documents, newest first, up to
	// limit entries (0 = no limit).
	Recents(ctx context.Context, limit int) ([]RecentDocument, error)

	// Close stops the watcher and releases the catalog.
	Close() error
}
