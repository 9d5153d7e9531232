package driven

import (
	"context"
	"time"
)

// CatalogEntry is one recently-opened PDF in the catalog.
type CatalogEntry struct {
	// PDFPath is the source PDF path.
	PDFPath string

	// PDFName is the display name.
	PDFName string

	// LastOpenedAt is when the document was last opened.
	LastOpenedAt time.Time

	// OpenCount is how many times the document has been opened.
	OpenCount int

	// Missing is true when the PDF is no longer present on disk.
	Missing bool
}

// CatalogStore persists the recently-opened-documents catalog. This is
// application metadata, separate from the per-PDF sidecar files.
type CatalogStore interface {
	// Touch records that the PDF was opened now, creating the entry on
	// first open and bumping the open count otherwise.
	Touch(ctx context.Context, pdfPath, pdfName string, openedAt time.Time) error

	// List returns entries ordered by last-opened time, newest first,
	// up to limit entries (0 = no limit).
	List(ctx context.Context, limit int) ([]CatalogEntry, error)

	// SetMissing flags or unflags an entry whose PDF disappeared from
	// or reappeared on disk. Unknown paths are a no-op.
	SetMissing(ctx context.Context, pdfPath string, missing bool) error

	// Close releases the underlying storage.
	Close() error
}
