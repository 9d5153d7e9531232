// Package pdftoppm renders PDF pages to PNG by shelling out to the
// poppler pdftoppm tool.
package pdftoppm

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/margo-labs/margo/internal/core/domain"
	"github.com/margo-labs/margo/internal/core/ports/driven"
	"github.com/margo-labs/margo/internal/logger"
)

// baseDPI is the rendering resolution at scale 1.0.
const baseDPI = 72

// Ensure Renderer implements the interface.
var _ driven.PageRenderer = (*Renderer)(nil)

// Renderer renders PDF pages using the pdftoppm binary.
type Renderer struct {
	binary string
}

// NewRenderer creates a renderer. It fails when pdftoppm is not on the
// PATH, so the missing dependency surfaces at startup rather than on
// the first render.
func NewRenderer() (*Renderer, error) {
	binary, err := exec.LookPath("pdftoppm")
	if err != nil {
		return nil, fmt.Errorf("pdftoppm not found, install poppler-utils: %w", err)
	}
	return &Renderer{binary: binary}, nil
}

// RenderPage renders one 0-based page of the PDF to PNG bytes at the
// given scale (1.0 = 72 DPI).
func (r *Renderer) RenderPage(ctx context.Context, pdfPath string, pageNumber int, scale float64) ([]byte, error) {
	if pageNumber < 0 {
		return nil, fmt.Errorf("page number %d: %w", pageNumber, domain.ErrInvalidInput)
	}
	if scale <= 0 {
		scale = 1.0
	}
	if _, err := os.Stat(pdfPath); err != nil {
		return nil, fmt.Errorf("pdf %s: %w", pdfPath, domain.ErrNotFound)
	}

	tmpDir, err := os.MkdirTemp("", "margo-render-*")
	if err != nil {
		return nil, fmt.Errorf("create render directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	// pdftoppm pages are 1-based.
	page := pageNumber + 1
	dpi := int(math.Round(scale * baseDPI))
	outPrefix := filepath.Join(tmpDir, "page")

	cmd := exec.CommandContext(ctx, r.binary,
		"-png",
		"-f", fmt.Sprint(page),
		"-l", fmt.Sprint(page),
		"-r", fmt.Sprint(dpi),
		"-singlefile",
		pdfPath,
		outPrefix,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("render page %d of %s: %w: %s", pageNumber, pdfPath, err, stderr.String())
	}

	data, err := os.ReadFile(outPrefix + ".png")
	if err != nil {
		// pdftoppm exits zero for an out-of-range page but writes nothing.
		return nil, fmt.Errorf("page %d of %s: %w", pageNumber, pdfPath, domain.ErrNotFound)
	}

	logger.Debug("rendered page %d of %s at %d dpi (%d bytes)", pageNumber, pdfPath, dpi, len(data))
	return data, nil
}
