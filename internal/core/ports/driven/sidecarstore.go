package driven

import (
	"context"

	"github.com/margo-labs/margo/internal/core/domain"
)

// SidecarStore reads and writes the JSON sidecar files that live next
// to each source PDF. It performs I/O and (de)serialisation only; the
// chat service owns caching and all entity-graph mutation.
type SidecarStore interface {
	// SidecarPath maps a PDF path to its sidecar path: same directory,
	// same base name, extension replaced (paper.pdf -> paper.chat).
	// The returned path doubles as the canonical cache key.
	SidecarPath(pdfPath string) string

	// Exists reports whether a sidecar file exists at sidecarPath.
	Exists(sidecarPath string) bool

	// Read decodes the sidecar file at sidecarPath. Missing required
	// fields yield a domain.MalformedDocumentError; missing optional
	// fields fall back to their documented defaults; unknown fields are
	// ignored.
	Read(ctx context.Context, sidecarPath string) (*domain.ChatFile, error)

	// Write encodes the chat file and writes it to sidecarPath.
	Write(ctx context.Context, sidecarPath string, cf *domain.ChatFile) error
}
